// Package compiler is the boundary to the language compiler. The build
// pipeline decides what to compile and with which flags; a Driver decides how.
package compiler

import (
	"context"
	"fmt"
	"strconv"

	"git.home.luguber.info/inful/wspkg/internal/workcache"
)

// OutputMode selects the kind of artifact a compilation produces.
type OutputMode int

const (
	OutputExecutable OutputMode = iota
	OutputLibrary
	OutputTest
	OutputBench
)

func (m OutputMode) String() string {
	switch m {
	case OutputExecutable:
		return "executable"
	case OutputLibrary:
		return "library"
	case OutputTest:
		return "test"
	case OutputBench:
		return "bench"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Session is the toolchain configuration for one build. It is passed
// explicitly to every driver call.
type Session struct {
	Sysroot   string
	OptLevel  int
	Target    string
	TargetCPU string
	Linker    string
	// ExtraArgs are passed to the compiler before the per-unit arguments.
	ExtraArgs []string
}

// Fingerprint renders every setting that affects compiler output, for use
// as a memoization input.
func (s Session) Fingerprint() string {
	return fmt.Sprintf("sysroot=%s opt=%d target=%s cpu=%s linker=%s args=%q",
		s.Sysroot, s.OptLevel, s.Target, s.TargetCPU, s.Linker, s.ExtraArgs)
}

// Config holds per-package configuration flags.
type Config struct {
	Cfgs []string
}

// Unit is the front end's view of one parsed and expanded source file.
type Unit struct {
	Input string
	Cfgs  []string
}

// Driver parses and compiles source files.
type Driver interface {
	ParseAndExpand(ctx context.Context, sess Session, cfg Config, input string) (*Unit, error)
	CompileUnit(ctx context.Context, input string, exec *workcache.Exec, mode OutputMode, outPath string, sess Session, unit *Unit) error
}
