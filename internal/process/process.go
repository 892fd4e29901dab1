// Package process runs child processes in their own process group and
// guarantees the group is killed and reaped on every exit path.
package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/wspkg/internal/logfields"
)

// ExitKind distinguishes how a child terminated.
type ExitKind int

const (
	ExitSuccess ExitKind = iota
	ExitCode
	ExitSignal
)

// ExitStatus is the termination status of a child process.
type ExitStatus struct {
	Kind  ExitKind
	Value int
}

// Success reports whether the child exited with status zero.
func (s ExitStatus) Success() bool { return s.Kind == ExitSuccess }

func (s ExitStatus) String() string {
	switch s.Kind {
	case ExitSuccess:
		return "success"
	case ExitCode:
		return fmt.Sprintf("exit code %d", s.Value)
	case ExitSignal:
		return fmt.Sprintf("signal %d", s.Value)
	default:
		return "unknown"
	}
}

// Command describes one child process invocation.
type Command struct {
	Program string
	Args    []string
	Dir     string
	// Env is appended to the current environment.
	Env []string
	// Stdout and Stderr, when set, receive a copy of the child's output.
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Program}, c.Args...), " ")
}

// Result is the outcome of a completed child.
type Result struct {
	Status ExitStatus
	Stdout []byte
	Stderr []byte
}

// Runner executes a command synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner returns the default Runner.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

// Run starts cmd in a new process group and waits for it. A canceled ctx kills
// the group; the group is also killed after the leader exits so no
// grandchildren outlive the call. A non-zero exit is reported in the Result,
// not as an error.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	c := exec.Command(cmd.Program, cmd.Args...) //nolint:gosec // program comes from the build pipeline
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)

	var stdout, stderr bytes.Buffer
	c.Stdout = teeTo(&stdout, cmd.Stdout)
	c.Stderr = teeTo(&stderr, cmd.Stderr)
	setProcessGroup(c)

	slog.Debug("Starting child process", logfields.Program(cmd.Program), slog.String("args", strings.Join(cmd.Args, " ")))
	if err := c.Start(); err != nil {
		return Result{}, fmt.Errorf("failed to start %s: %w", cmd.Program, err)
	}
	pid := c.Process.Pid
	defer killGroup(pid)

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	var waitErr error
	select {
	case <-ctx.Done():
		killGroup(pid)
		<-done
		return Result{}, fmt.Errorf("%s canceled: %w", cmd.Program, ctx.Err())
	case waitErr = <-done:
	}

	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); !ok {
			return res, fmt.Errorf("failed to wait for %s: %w", cmd.Program, waitErr)
		}
	}
	res.Status = exitStatusFrom(c.ProcessState)
	slog.Debug("Child process finished", logfields.Program(cmd.Program), logfields.ExitStatus(res.Status.String()))
	return res, nil
}

func teeTo(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}
