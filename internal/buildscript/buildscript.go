// Package buildscript compiles and runs a package's custom build script.
//
// A script is compiled once per content change (memoized in the workcache)
// and always executed: first with the "install" command, then with "configs",
// whose whitespace separated stdout becomes extra configuration flags.
package buildscript

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"git.home.luguber.info/inful/wspkg/internal/compiler"
	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/logfields"
	"git.home.luguber.info/inful/wspkg/internal/observability"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	"git.home.luguber.info/inful/wspkg/internal/process"
	"git.home.luguber.info/inful/wspkg/internal/sourcetree"
	"git.home.luguber.info/inful/wspkg/internal/workcache"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// ErrCustomBuildFailed is the cause when the script's install command fails.
var ErrCustomBuildFailed = stderrors.New("custom build command failed")

const (
	commandInstall = "install"
	commandConfigs = "configs"
)

// Script is a located build script of one package.
type Script struct {
	ID       pkgid.ID
	Path     string
	BuildDir string
	Exe      string
	Unit     *compiler.Unit
}

// Find returns the build script of tree, if it has one.
func Find(tree *sourcetree.Tree, plat workspace.Platform) (*Script, bool) {
	path, ok := tree.BuildScriptPath()
	if !ok {
		return nil, false
	}
	paths := workspace.PathsFor(tree.BuildWorkspace(), tree.ID, plat)
	return &Script{ID: tree.ID, Path: path, BuildDir: paths.BuildDir, Exe: paths.BuildScriptExe}, true
}

// Tag names the workcache preparation that compiles the script at path.
func Tag(path string) string {
	return "build_package_script(" + path + ")"
}

// Runner compiles and executes build scripts.
type Runner struct {
	driver compiler.Driver
	runner process.Runner
	cache  *workcache.Context
}

// NewRunner returns a Runner compiling with driver and executing with runner.
func NewRunner(driver compiler.Driver, runner process.Runner, cache *workcache.Context) *Runner {
	return &Runner{driver: driver, runner: runner, cache: cache}
}

// Compile builds the script executable unless a fresh build is recorded.
// The script is compiled as an executable with only the sysroot of sess.
func (r *Runner) Compile(ctx context.Context, s *Script, sess compiler.Session) (string, error) {
	scriptSess := compiler.Session{Sysroot: sess.Sysroot}
	return workcache.Prepare(ctx, r.cache, Tag(s.Path),
		func(p *workcache.Prep) {
			p.DeclareValue("session", scriptSess.Fingerprint())
			p.DeclareInput(workcache.KindFile, s.Path, workcache.MethodFileWithDate)
		},
		func(exec *workcache.Exec) (string, error) {
			observability.DebugContext(ctx, "Compiling build script", logfields.Path(s.Path), logfields.Dest(s.Exe))
			unit, err := r.driver.ParseAndExpand(ctx, scriptSess, compiler.Config{}, s.Path)
			if err != nil {
				return "", err
			}
			s.Unit = unit
			if err := r.driver.CompileUnit(ctx, s.Path, exec, compiler.OutputExecutable, s.Exe, scriptSess, unit); err != nil {
				return "", err
			}
			exec.DiscoverOutput(workcache.KindBinary, s.Exe, workcache.MethodDate)
			return s.Exe, nil
		})
}

// Run executes exe with the install command and, when that succeeds, with
// the configs command. A failing configs command yields no flags.
func (r *Runner) Run(ctx context.Context, id pkgid.ID, exe, sysroot string) ([]string, error) {
	res, err := r.runner.Run(ctx, process.Command{
		Program: exe,
		Args:    []string{sysroot, commandInstall},
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
	if err != nil {
		return nil, errors.RuntimeError("failed to run build script").
			WithCause(err).
			WithContext("package", id.String()).
			WithContext("program", exe).
			Build()
	}
	if !res.Status.Success() {
		return nil, errors.BuildError("error running custom build command").
			WithCause(ErrCustomBuildFailed).
			WithContext("package", id.String()).
			WithContext("program", exe).
			WithContext("status", res.Status.String()).
			Fatal().
			Build()
	}

	res, err = r.runner.Run(ctx, process.Command{
		Program: exe,
		Args:    []string{sysroot, commandConfigs},
		Stderr:  os.Stderr,
	})
	switch {
	case err != nil:
		observability.WarnContext(ctx, "Build script configs command did not run",
			logfields.Package(id.String()), logfields.Program(exe), logfields.Error(err))
		return nil, nil
	case !res.Status.Success():
		observability.WarnContext(ctx, "Build script configs command failed",
			logfields.Package(id.String()), logfields.Program(exe), logfields.ExitStatus(res.Status.String()))
		return nil, nil
	}
	return strings.Fields(string(res.Stdout)), nil
}

// Execute compiles s if needed and runs it, returning the flags it reported.
func (r *Runner) Execute(ctx context.Context, s *Script, sess compiler.Session) ([]string, error) {
	exe, err := r.Compile(ctx, s, sess)
	if err != nil {
		return nil, err
	}
	flags, err := r.Run(ctx, s.ID, exe, sess.Sysroot)
	if err != nil {
		return nil, err
	}
	observability.DebugContext(ctx, "Build script finished", logfields.Package(s.ID.String()), logfields.Flags(flags))
	return flags, nil
}
