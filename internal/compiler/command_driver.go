package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/logfields"
	"git.home.luguber.info/inful/wspkg/internal/observability"
	"git.home.luguber.info/inful/wspkg/internal/process"
	"git.home.luguber.info/inful/wspkg/internal/workcache"
)

// CommandDriver compiles by invoking an external compiler with rustc-style flags.
type CommandDriver struct {
	command string
	runner  process.Runner
}

// NewCommandDriver returns a driver running command through runner.
func NewCommandDriver(command string, runner process.Runner) *CommandDriver {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	return &CommandDriver{command: command, runner: runner}
}

// ParseAndExpand checks that input is readable and captures the configuration
// it is compiled under.
func (d *CommandDriver) ParseAndExpand(_ context.Context, _ Session, cfg Config, input string) (*Unit, error) {
	fi, err := os.Stat(input)
	if err != nil || fi.IsDir() {
		return nil, errors.BuildError("cannot read compilation input").
			WithCause(err).
			WithContext("path", input).
			Build()
	}
	return &Unit{Input: input, Cfgs: append([]string(nil), cfg.Cfgs...)}, nil
}

// Args renders the compiler command line for one unit.
func (d *CommandDriver) Args(input string, mode OutputMode, outPath string, sess Session, unit *Unit) []string {
	args := append([]string(nil), sess.ExtraArgs...)
	switch mode {
	case OutputLibrary:
		args = append(args, "--crate-type", "dylib")
	case OutputTest:
		args = append(args, "--test")
	case OutputBench:
		args = append(args, "--test", "--cfg", "bench")
	}
	if sess.OptLevel > 0 {
		args = append(args, "-C", "opt-level="+strconv.Itoa(sess.OptLevel))
	}
	if sess.Target != "" {
		args = append(args, "--target", sess.Target)
	}
	if sess.TargetCPU != "" {
		args = append(args, "-C", "target-cpu="+sess.TargetCPU)
	}
	if sess.Linker != "" {
		args = append(args, "-C", "linker="+sess.Linker)
	}
	if sess.Sysroot != "" {
		args = append(args, "--sysroot", sess.Sysroot)
	}
	if unit != nil {
		for _, cfg := range unit.Cfgs {
			args = append(args, "--cfg", cfg)
		}
	}
	return append(args, "-o", outPath, input)
}

// CompileUnit runs the compiler and reports the input and output to exec.
func (d *CommandDriver) CompileUnit(ctx context.Context, input string, exec *workcache.Exec, mode OutputMode, outPath string, sess Session, unit *Unit) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return errors.FileSystemError("failed to create build directory").
			WithCause(err).
			WithContext("path", filepath.Dir(outPath)).
			Build()
	}
	exec.DiscoverInput(workcache.KindFile, input, workcache.MethodFileWithDate)

	args := d.Args(input, mode, outPath, sess, unit)
	observability.DebugContext(ctx, "Compiling unit", logfields.Unit(input), logfields.Program(d.command), logfields.Dest(outPath))
	res, err := d.runner.Run(ctx, process.Command{Program: d.command, Args: args, Dir: filepath.Dir(input), Stderr: os.Stderr})
	if err != nil {
		return errors.BuildError("failed to run compiler").
			WithCause(err).
			WithContext("program", d.command).
			WithContext("unit", input).
			Build()
	}
	if !res.Status.Success() {
		return errors.BuildError("compilation failed").
			WithContext("unit", input).
			WithContext("status", res.Status.String()).
			WithContext("command", d.command+" "+strings.Join(args, " ")).
			Build()
	}
	exec.DiscoverOutput(workcache.KindBinary, outPath, workcache.MethodDate)
	return exec.Err()
}

// ModeFor maps a unit role name to its output mode.
func ModeFor(role string) OutputMode {
	switch role {
	case "library":
		return OutputLibrary
	case "test":
		return OutputTest
	case "benchmark":
		return OutputBench
	default:
		return OutputExecutable
	}
}
