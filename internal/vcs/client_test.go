package vcs

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// restoreWritable lets t.TempDir cleanup remove trees marked read-only.
func restoreWritable(t *testing.T, root string) {
	t.Helper()
	t.Cleanup(func() {
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if info, err := d.Info(); err == nil && d.Type()&fs.ModeSymlink == 0 {
				_ = os.Chmod(p, info.Mode().Perm()|0o200)
			}
			return nil
		})
	})
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	h, err := wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "wspkg", Email: "wspkg@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return h
}

// newSourceRepo creates a repository with tag v1 on the first commit and a
// second commit on HEAD.
func newSourceRepo(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ext", "hello")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	first := commitFile(t, repo, dir, "main.rs", "fn main() { v1 }")
	_, err = repo.CreateTag("v1", first, nil)
	require.NoError(t, err)
	commitFile(t, repo, dir, "main.rs", "fn main() { v2 }")
	return dir
}

func TestIsWorkingCopy(t *testing.T) {
	c := NewGitClient()
	src := newSourceRepo(t)
	require.True(t, c.IsWorkingCopy(src))
	require.False(t, c.IsWorkingCopy(filepath.Dir(src)))
}

func TestCheckoutHead(t *testing.T) {
	c := NewGitClient()
	src := newSourceRepo(t)
	dest := filepath.Join(t.TempDir(), "src", "ext", "hello")

	require.NoError(t, c.Checkout(t.Context(), src, "", dest))

	data, err := os.ReadFile(filepath.Join(dest, "main.rs"))
	require.NoError(t, err)
	require.Equal(t, "fn main() { v2 }", string(data))
	require.True(t, c.IsWorkingCopy(dest))
}

func TestCheckoutTag(t *testing.T) {
	c := NewGitClient()
	src := newSourceRepo(t)
	dest := filepath.Join(t.TempDir(), "hello")

	require.NoError(t, c.Checkout(t.Context(), src, "v1", dest))

	data, err := os.ReadFile(filepath.Join(dest, "main.rs"))
	require.NoError(t, err)
	require.Equal(t, "fn main() { v1 }", string(data))

	// an existing checkout at the requested revision is reused
	require.NoError(t, c.Checkout(t.Context(), src, "v1", dest))
}

func TestCheckoutHeadReuseFollowsSource(t *testing.T) {
	c := NewGitClient()
	src := newSourceRepo(t)
	dest := filepath.Join(t.TempDir(), "hello")

	require.NoError(t, c.Checkout(t.Context(), src, "", dest))
	require.NoError(t, c.Checkout(t.Context(), src, "", dest), "unchanged source HEAD is reused")

	repo, err := git.PlainOpen(src)
	require.NoError(t, err)
	commitFile(t, repo, src, "main.rs", "fn main() { v3 }")

	err = c.Checkout(t.Context(), src, "", dest)
	require.Error(t, err)
	require.Contains(t, err.Error(), "source HEAD")
}

func TestCheckoutUnknownVersion(t *testing.T) {
	c := NewGitClient()
	src := newSourceRepo(t)
	dest := filepath.Join(t.TempDir(), "hello")

	err := c.Checkout(t.Context(), src, "no-such-tag", dest)
	require.Error(t, err)
	_, statErr := os.Stat(dest)
	require.True(t, os.IsNotExist(statErr), "partial checkout must be removed")
}

func TestCheckoutNotARepository(t *testing.T) {
	err := NewGitClient().Checkout(t.Context(), t.TempDir(), "", filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
}

func TestSetTreeReadOnly(t *testing.T) {
	root := t.TempDir()
	restoreWritable(t, root)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", "f.rs"), []byte("x"), 0o640))

	require.NoError(t, SetTreeReadOnly(root))

	for _, p := range []string{root, filepath.Join(root, "a"), filepath.Join(root, "a", "b"), filepath.Join(root, "a", "b", "f.rs")} {
		fi, err := os.Stat(p)
		require.NoError(t, err)
		require.Zero(t, fi.Mode().Perm()&0o222, "%s still writable: %v", p, fi.Mode())
	}
	fi, err := os.Stat(filepath.Join(root, "a", "b", "f.rs"))
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o440), fi.Mode().Perm())
}
