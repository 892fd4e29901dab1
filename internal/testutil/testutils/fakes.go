package helpers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/wspkg/internal/compiler"
	"git.home.luguber.info/inful/wspkg/internal/process"
	"git.home.luguber.info/inful/wspkg/internal/workcache"
)

// FakeRunner is a process.Runner that records commands and answers them
// with Handler. Without a Handler every command succeeds with empty output.
type FakeRunner struct {
	Handler func(cmd process.Command) (process.Result, error)

	mu    sync.Mutex
	calls []process.Command
}

// Run records cmd and delegates to Handler.
func (r *FakeRunner) Run(ctx context.Context, cmd process.Command) (process.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return process.Result{}, err
	}
	if r.Handler == nil {
		return process.Result{Status: process.ExitStatus{Kind: process.ExitSuccess}}, nil
	}
	return r.Handler(cmd)
}

// Calls returns the commands run so far.
func (r *FakeRunner) Calls() []process.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Command(nil), r.calls...)
}

// Exit returns a result with the given exit code and stdout.
func Exit(code int, stdout string) process.Result {
	status := process.ExitStatus{Kind: process.ExitSuccess}
	if code != 0 {
		status = process.ExitStatus{Kind: process.ExitCode, Value: code}
	}
	return process.Result{Status: status, Stdout: []byte(stdout)}
}

// CompileCall is one recorded CompileUnit invocation.
type CompileCall struct {
	Input   string
	Mode    compiler.OutputMode
	OutPath string
	Cfgs    []string
	Sysroot string
}

// FakeDriver is a compiler.Driver that writes a small marker file for every
// output instead of invoking a compiler.
type FakeDriver struct {
	// Fail maps input base names to the error CompileUnit returns for them.
	Fail map[string]error

	mu    sync.Mutex
	calls []CompileCall
}

// ParseAndExpand captures cfg in the returned unit.
func (d *FakeDriver) ParseAndExpand(_ context.Context, _ compiler.Session, cfg compiler.Config, input string) (*compiler.Unit, error) {
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("parse %s: %w", input, err)
	}
	return &compiler.Unit{Input: input, Cfgs: append([]string(nil), cfg.Cfgs...)}, nil
}

// CompileUnit records the call and writes outPath.
func (d *FakeDriver) CompileUnit(_ context.Context, input string, exec *workcache.Exec, mode compiler.OutputMode, outPath string, sess compiler.Session, unit *compiler.Unit) error {
	call := CompileCall{Input: input, Mode: mode, OutPath: outPath, Sysroot: sess.Sysroot}
	if unit != nil {
		call.Cfgs = unit.Cfgs
	}
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()

	if err := d.Fail[filepath.Base(input)]; err != nil {
		return err
	}
	exec.DiscoverInput(workcache.KindFile, input, workcache.MethodFileWithDate)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, []byte("built from "+input+"\n"), 0o700); err != nil { //nolint:gosec // executable artifact
		return err
	}
	exec.DiscoverOutput(workcache.KindBinary, outPath, workcache.MethodDate)
	return exec.Err()
}

// Calls returns the compilations performed so far.
func (d *FakeDriver) Calls() []CompileCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]CompileCall(nil), d.calls...)
}
