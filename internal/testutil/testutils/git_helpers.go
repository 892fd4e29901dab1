package helpers

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SetupTestGitRepo initializes a git repository in dir.
// Returns the repository and its worktree.
func SetupTestGitRepo(t *testing.T, dir string) (*git.Repository, *git.Worktree) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("failed to create repo dir: %v", err)
	}
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to initialize git repo: %v", err)
	}

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}

	return repo, w
}

// CommitFile writes name under the worktree of repo and commits it.
func CommitFile(t *testing.T, repo *git.Repository, name, content string) plumbing.Hash {
	t.Helper()

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	path := filepath.Join(w.Filesystem.Root(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	if _, err := w.Add(name); err != nil {
		t.Fatalf("failed to add %s: %v", name, err)
	}
	hash, err := w.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit %s: %v", name, err)
	}
	return hash
}

// TagHead creates a lightweight tag at HEAD.
func TagHead(t *testing.T, repo *git.Repository, tag string) {
	t.Helper()

	head, err := repo.Head()
	if err != nil {
		t.Fatalf("failed to resolve HEAD: %v", err)
	}
	if _, err := repo.CreateTag(tag, head.Hash(), nil); err != nil {
		t.Fatalf("failed to create tag %s: %v", tag, err)
	}
}

// RestoreWritable registers a cleanup that makes root writable again so the
// test's temp dir can be removed after read-only marking.
func RestoreWritable(t *testing.T, root string) {
	t.Helper()
	t.Cleanup(func() {
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // best effort
			}
			mode := os.FileMode(0o600)
			if d.IsDir() {
				mode = 0o700
			}
			_ = os.Chmod(p, mode)
			return nil
		})
	})
}
