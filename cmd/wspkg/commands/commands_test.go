package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wspkg/internal/config"
	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	helpers "git.home.luguber.info/inful/wspkg/internal/testutil/testutils"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// fakeCompiler writes a runnable shell script to the -o path. Sources
// containing COMPILE_ERROR fail to compile; sources containing FAIL_TESTS
// produce a program that exits 1.
const fakeCompiler = `#!/bin/sh
out=""
src=""
while [ $# -gt 0 ]; do
  case "$1" in
    -o) out="$2"; shift ;;
    *) src="$1" ;;
  esac
  shift
done
if grep -q COMPILE_ERROR "$src"; then
  echo "error: cannot compile $src" >&2
  exit 1
fi
code=0
if grep -q FAIL_TESTS "$src"; then
  code=1
fi
mkdir -p "$(dirname "$out")"
printf '#!/bin/sh\nexit %s\n' "$code" > "$out"
chmod +x "$out"
`

// cliEnv is an isolated home, workspace and configuration for running commands.
type cliEnv struct {
	dir     string
	ws      workspace.Workspace
	cfgPath string
	out     *bytes.Buffer
	global  *Global
	cli     *CLI
}

func newCLIEnv(t *testing.T, extraConfig string) *cliEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("the stand-in compiler is a shell script")
	}
	for _, k := range []string{config.EnvConfig, config.EnvPath, config.EnvSysroot, config.EnvLogLevel, config.EnvCacheDir} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Chdir(dir)

	ws, err := workspace.Init(filepath.Join(dir, "ws"))
	require.NoError(t, err)

	compilerPath := filepath.Join(dir, "fakec")
	require.NoError(t, os.WriteFile(compilerPath, []byte(fakeCompiler), 0o700)) //nolint:gosec // test compiler must be executable

	cfgPath := filepath.Join(dir, "wspkg.yaml")
	cfg := fmt.Sprintf("search_path: [%s]\ncompiler:\n  command: %s\n%s", ws.Root, compilerPath, extraConfig)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	out := &bytes.Buffer{}
	return &cliEnv{
		dir:     dir,
		ws:      ws,
		cfgPath: cfgPath,
		out:     out,
		global:  &Global{Out: out},
		cli:     &CLI{Config: cfgPath, OptLevel: -1},
	}
}

func (e *cliEnv) paths(id string) workspace.Paths {
	return workspace.PathsFor(e.ws, pkgid.MustParse(id), workspace.HostPlatform())
}

type runner interface {
	Run(*Global, *CLI) error
}

func (e *cliEnv) run(cmd runner) error {
	return cmd.Run(e.global, e.cli)
}

func TestInstallListUninstall(t *testing.T) {
	env := newCLIEnv(t, "")
	helpers.WritePackage(t, env.ws, "github.com/ex/hello", "main.rs")
	p := env.paths("github.com/ex/hello")

	require.NoError(t, env.run(&InstallCmd{Package: "github.com/ex/hello"}))
	assert.FileExists(t, p.BuiltExecutable)
	assert.FileExists(t, p.TargetExecutable)
	assert.Contains(t, env.out.String(), "Installed package github.com/ex/hello")

	env.out.Reset()
	require.NoError(t, env.run(&ListCmd{}))
	assert.Equal(t, "Installed packages:\ngithub.com/ex/hello\n", env.out.String())

	env.out.Reset()
	require.NoError(t, env.run(&UninstallCmd{Package: "github.com/ex/hello"}))
	assert.NoFileExists(t, p.TargetExecutable)
	assert.Contains(t, env.out.String(), "Uninstalled package github.com/ex/hello (was installed in "+env.ws.Root+")")

	env.out.Reset()
	require.NoError(t, env.run(&UninstallCmd{Package: "github.com/ex/hello"}))
	assert.Contains(t, env.out.String(), "doesn't seem to be installed")
}

func TestInstallUnknownPackage(t *testing.T) {
	env := newCLIEnv(t, "")

	err := env.run(&InstallCmd{Package: "github.com/ex/missing"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestMalformedPackageIdentifier(t *testing.T) {
	env := newCLIEnv(t, "")

	err := env.run(&BuildCmd{Package: "github.com/ex/a#1#2"})
	require.ErrorIs(t, err, pkgid.ErrMalformed)
}

func TestBuildInfersPackageFromWorkingDirectory(t *testing.T) {
	env := newCLIEnv(t, "")
	dir := helpers.WritePackage(t, env.ws, "github.com/ex/tool", "main.rs", "lib.rs")
	t.Chdir(dir)

	require.NoError(t, env.run(&BuildCmd{}))
	p := env.paths("github.com/ex/tool")
	assert.FileExists(t, p.BuiltExecutable)
	assert.FileExists(t, p.BuiltLibrary)
	assert.NoFileExists(t, p.TargetExecutable, "build does not install")
}

func TestAdHocPackageInstallsIntoDefaultWorkspace(t *testing.T) {
	env := newCLIEnv(t, "")
	dir := filepath.Join(env.dir, "adhoc")
	helpers.WriteFile(t, dir, "main.rs", "fn main() {}\n")
	t.Chdir(dir)

	require.NoError(t, env.run(&InstallCmd{}))
	assert.FileExists(t, filepath.Join(env.ws.Bin(), "adhoc"))
}

func TestBuildOutsideAnyPackage(t *testing.T) {
	env := newCLIEnv(t, "")
	empty := filepath.Join(env.dir, "empty")
	require.NoError(t, os.MkdirAll(empty, 0o750))
	t.Chdir(empty)

	err := env.run(&BuildCmd{})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestBuildOnlyOneUnit(t *testing.T) {
	env := newCLIEnv(t, "")
	helpers.WritePackage(t, env.ws, "github.com/ex/two", "main.rs", "lib.rs")

	require.NoError(t, env.run(&BuildCmd{Package: "github.com/ex/two", Only: "lib.rs"}))
	p := env.paths("github.com/ex/two")
	assert.FileExists(t, p.BuiltLibrary)
	assert.NoFileExists(t, p.BuiltExecutable)
}

func TestCompileFailure(t *testing.T) {
	env := newCLIEnv(t, "")
	dir := helpers.WritePackage(t, env.ws, "github.com/ex/broken")
	helpers.WriteFile(t, dir, "main.rs", "COMPILE_ERROR\n")

	err := env.run(&BuildCmd{Package: "github.com/ex/broken"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryBuild))
}

func TestTestCommand(t *testing.T) {
	env := newCLIEnv(t, "")
	helpers.WritePackage(t, env.ws, "github.com/ex/good", "lib.rs", "test.rs")
	bad := helpers.WritePackage(t, env.ws, "github.com/ex/bad", "lib.rs")
	helpers.WriteFile(t, bad, "test.rs", "FAIL_TESTS\n")

	require.NoError(t, env.run(&TestCmd{Package: "github.com/ex/good"}))
	assert.FileExists(t, env.paths("github.com/ex/good").BuiltTest)
	assert.NoFileExists(t, env.paths("github.com/ex/good").BuiltLibrary, "only tests are built")
	assert.Contains(t, env.out.String(), "All tests passed for github.com/ex/good")

	err := env.run(&TestCmd{Package: "github.com/ex/bad"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryBuild))
	assert.Contains(t, err.Error(), "some tests failed")
}

func TestCleanCommand(t *testing.T) {
	env := newCLIEnv(t, "")
	helpers.WritePackage(t, env.ws, "github.com/ex/hello", "main.rs")
	p := env.paths("github.com/ex/hello")

	require.NoError(t, env.run(&BuildCmd{Package: "github.com/ex/hello"}))
	require.DirExists(t, p.BuildDir)

	require.NoError(t, env.run(&CleanCmd{Package: "github.com/ex/hello"}))
	assert.NoDirExists(t, p.BuildDir)
	assert.Contains(t, env.out.String(), "Cleaned package github.com/ex/hello")

	env.out.Reset()
	require.NoError(t, env.run(&CleanCmd{Package: "github.com/ex/hello"}))
	assert.Contains(t, env.out.String(), "Nothing to clean")
}

func TestInfoCommand(t *testing.T) {
	env := newCLIEnv(t, "")
	dir := helpers.WritePackage(t, env.ws, "github.com/ex/doc", "main.rs", "tests/test.rs")
	helpers.WriteFile(t, dir, "README.md", "# Doc tool\n\nRenders *docs* quickly.\n")

	require.NoError(t, env.run(&InfoCmd{Package: "github.com/ex/doc#1.2"}))
	out := env.out.String()
	assert.Contains(t, out, "Package:      github.com/ex/doc#1.2")
	assert.Contains(t, out, "Version:      1.2")
	assert.Contains(t, out, "Workspaces:   "+env.ws.Root)
	assert.Contains(t, out, "Installed in: none")
	assert.Contains(t, out, "Build script: none")
	assert.Contains(t, out, "Units:        2")
	assert.Contains(t, out, "tests/test.rs")
	assert.Contains(t, out, "Doc tool")
	assert.Contains(t, out, "Renders docs quickly.")
}

func TestInstallFromWorkingCopyOutsideWorkspaces(t *testing.T) {
	env := newCLIEnv(t, "")
	checkout := filepath.Join(env.dir, "checkouts")
	repo, _ := helpers.SetupTestGitRepo(t, filepath.Join(checkout, "github.com", "ex", "remote"))
	helpers.CommitFile(t, repo, "main.rs", "fn main() {}\n")
	helpers.RestoreWritable(t, env.ws.Src())
	t.Chdir(checkout)

	require.NoError(t, env.run(&InstallCmd{Package: "github.com/ex/remote"}))
	assert.FileExists(t, filepath.Join(env.ws.Src(), "github.com", "ex", "remote", "main.rs"))
	assert.FileExists(t, env.paths("github.com/ex/remote").TargetExecutable)
}

func TestMetricsFileIsWritten(t *testing.T) {
	env := newCLIEnv(t, "metrics_file: ${HOME}/metrics/wspkg.prom\n")
	helpers.WritePackage(t, env.ws, "github.com/ex/hello", "main.rs")

	require.NoError(t, env.run(&BuildCmd{Package: "github.com/ex/hello"}))
	helpers.NewFileAssertions(t, env.dir).
		AssertFileContains("metrics/wspkg.prom", "wspkg_build_outcomes_total").
		AssertFileContains("metrics/wspkg.prom", "wspkg_units_compiled_total")
}

func TestInitCommand(t *testing.T) {
	env := newCLIEnv(t, "")
	root := filepath.Join(env.dir, "fresh")
	env.cli.Config = filepath.Join(root, "wspkg.yaml")

	require.NoError(t, env.run(&InitCmd{Dir: root, WriteConfig: true}))
	for _, sub := range []string{workspace.SrcDir, workspace.LibDir, workspace.BinDir, workspace.BuildDir} {
		assert.DirExists(t, filepath.Join(root, sub))
	}
	assert.FileExists(t, env.cli.Config)

	err := env.run(&InitCmd{Dir: root, WriteConfig: true})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	require.NoError(t, env.run(&InitCmd{Dir: root, WriteConfig: true, Force: true}))
}

func TestFlagOverrides(t *testing.T) {
	cfg := &config.Config{Cfgs: []string{"from_file"}, Sysroot: "/usr"}
	cfg.Compiler.OptLevel = 1

	(&CLI{OptLevel: -1}).applyOverrides(cfg)
	assert.Equal(t, 1, cfg.Compiler.OptLevel)
	assert.Equal(t, "/usr", cfg.Sysroot)

	(&CLI{Cfg: []string{"cli"}, Sysroot: "/opt/sys", PathHack: true, OptLevel: 3, Target: "x86_64-unknown-linux-gnu"}).applyOverrides(cfg)
	assert.Equal(t, []string{"from_file", "cli"}, cfg.Cfgs)
	assert.Equal(t, "/opt/sys", cfg.Sysroot)
	assert.True(t, cfg.UsePathHack)
	assert.Equal(t, 3, cfg.Compiler.OptLevel)
	assert.Equal(t, "x86_64-unknown-linux-gnu", cfg.Compiler.Target)
}

func TestInvalidOptLevelFlag(t *testing.T) {
	env := newCLIEnv(t, "")
	env.cli.OptLevel = 9

	err := env.run(&BuildCmd{Package: "github.com/ex/any"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}
