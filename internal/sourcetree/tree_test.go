package sourcetree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

func writeFiles(t *testing.T, dir string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(dir, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("// "+f), 0o600))
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]Role{
		"lib.rs":          Library,
		"main.rs":         Executable,
		"src/main.rs":     Executable,
		"test.rs":         Test,
		"tests/bench.rs":  Benchmark,
		`sub\dir\test.rs`: Test,
	}
	for rel, want := range cases {
		got, err := Classify(rel, "rs")
		require.NoError(t, err, rel)
		assert.Equal(t, want, got, rel)
	}

	for _, rel := range []string{"tests/unit.rs", "main.go", "lib", "pkg.rs", "mainrs"} {
		_, err := Classify(rel, "rs")
		require.ErrorIs(t, err, ErrAmbiguousRole, rel)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	}

	role, err := Classify("main.go", "go")
	require.NoError(t, err)
	assert.Equal(t, "executable", role.String())
}

func TestHasUnitFile(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasUnitFile(dir, "rs"))

	writeFiles(t, dir, "README.md", "nested/main.rs")
	assert.False(t, HasUnitFile(dir, "rs"), "units below the top level do not count")

	writeFiles(t, dir, "lib.rs")
	assert.True(t, HasUnitFile(dir, "rs"))
	assert.True(t, HasUnitFile(dir, ""))
	assert.False(t, HasUnitFile(dir, "go"))
	assert.False(t, HasUnitFile(filepath.Join(dir, "missing"), "rs"))
}

func TestLocateCandidates(t *testing.T) {
	ws := workspace.New(t.TempDir())
	id := pkgid.MustParse("github.com/a/foo#1.0")

	_, err := Locate(ws, ws, false, id, Layout{})
	require.ErrorIs(t, err, ErrPackageNotFound)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	versioned := filepath.Join(ws.Src(), "github.com", "a", "foo-1.0")
	require.NoError(t, os.MkdirAll(versioned, 0o750))
	tree, err := Locate(ws, ws, false, id, Layout{})
	require.NoError(t, err)
	assert.Equal(t, versioned, tree.StartDir)

	plain := filepath.Join(ws.Src(), "github.com", "a", "foo")
	require.NoError(t, os.MkdirAll(plain, 0o750))
	tree, err = Locate(ws, ws, false, id, Layout{})
	require.NoError(t, err)
	assert.Equal(t, plain, tree.StartDir)
}

func TestLocateWorkingCopyAndInfer(t *testing.T) {
	ws := workspace.New(t.TempDir())
	id := pkgid.MustParse("ext/bar")
	direct := filepath.Join(ws.Root, "ext", "bar")
	require.NoError(t, os.MkdirAll(direct, 0o750))

	notVCS := Layout{IsWorkingCopy: func(string) bool { return false }}
	_, err := Locate(ws, ws, false, id, notVCS)
	require.ErrorIs(t, err, ErrPackageNotFound)

	vcs := Layout{IsWorkingCopy: func(dir string) bool { return dir == direct }}
	tree, err := Locate(ws, ws, false, id, vcs)
	require.NoError(t, err)
	assert.Equal(t, direct, tree.StartDir)

	tree, err = Locate(ws, ws, true, pkgid.MustParse("anything"), notVCS)
	require.NoError(t, err)
	assert.Equal(t, ws.Root, tree.StartDir)
}

func TestDiscoverUnits(t *testing.T) {
	ws := workspace.New(t.TempDir())
	id := pkgid.MustParse("foo")
	dir := filepath.Join(ws.Src(), "foo")
	writeFiles(t, dir, "lib.rs", "main.rs", "tests/test.rs", "benches/bench.rs", "util.rs", "pkg.rs", ".git/main.rs", "README.md")

	tree, err := Locate(ws, ws, false, id, Layout{})
	require.NoError(t, err)
	require.NoError(t, tree.DiscoverUnits(nil))

	files := func(units []Unit) []string {
		var out []string
		for _, u := range units {
			out = append(out, u.File)
		}
		return out
	}
	assert.Equal(t, []string{"lib.rs"}, files(tree.Units(Library)))
	assert.Equal(t, []string{"main.rs"}, files(tree.Units(Executable)))
	assert.Equal(t, []string{"tests/test.rs"}, files(tree.Units(Test)))
	assert.Equal(t, []string{"benches/bench.rs"}, files(tree.Units(Benchmark)))
	assert.Equal(t, []string{"lib.rs", "main.rs", "tests/test.rs", "benches/bench.rs"}, files(tree.AllUnits()))
	require.NoError(t, tree.Validate())

	testsOnly, err := Locate(ws, ws, false, id, Layout{})
	require.NoError(t, err)
	require.NoError(t, testsOnly.DiscoverUnits(func(rel string) bool { return strings.HasSuffix(rel, "test.rs") }))
	assert.Equal(t, []string{"tests/test.rs"}, files(testsOnly.AllUnits()))
}

func TestBuildScriptPath(t *testing.T) {
	ws := workspace.New(t.TempDir())
	dir := filepath.Join(ws.Src(), "bar")
	writeFiles(t, dir, "main.rs", "sub/pkg.rs")

	tree, err := Locate(ws, ws, false, pkgid.MustParse("bar"), Layout{})
	require.NoError(t, err)
	_, ok := tree.BuildScriptPath()
	assert.False(t, ok, "nested script must not count")

	writeFiles(t, dir, "pkg.rs")
	p, ok := tree.BuildScriptPath()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "pkg.rs"), p)
}

func TestPushExplicit(t *testing.T) {
	ws := workspace.New(t.TempDir())
	dir := filepath.Join(ws.Src(), "baz")
	writeFiles(t, dir, "tests/unit.rs", "src/main.rs")
	tree, err := Locate(ws, ws, false, pkgid.MustParse("baz"), Layout{})
	require.NoError(t, err)

	_, err = tree.PushExplicit("tests/unit.rs")
	require.ErrorIs(t, err, ErrAmbiguousRole)
	assert.False(t, tree.HasUnits())

	role, err := tree.PushExplicit("src/main.rs")
	require.NoError(t, err)
	assert.Equal(t, Executable, role)
	require.NoError(t, tree.Validate())

	tree.PushExplicitUnit(Library, "src/lib.rs")
	err = tree.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestBuildWorkspace(t *testing.T) {
	src := workspace.New(t.TempDir())
	dest := workspace.New(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join(src.Src(), "foo"), 0o750))
	id := pkgid.MustParse("foo")

	inPath := Layout{InSearchPath: func(ws workspace.Workspace) bool { return ws.Equal(src) }}
	tree, err := Locate(src, dest, false, id, inPath)
	require.NoError(t, err)
	assert.Equal(t, src, tree.BuildWorkspace())

	tree, err = Locate(src, dest, false, id, Layout{})
	require.NoError(t, err)
	assert.Equal(t, dest, tree.BuildWorkspace())
}
