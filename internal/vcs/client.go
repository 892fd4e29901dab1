package vcs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/wspkg/internal/logfields"
)

// Client is the version control capability used by the fallback.
type Client interface {
	Checkout(ctx context.Context, src, version, dest string) error
	IsWorkingCopy(path string) bool
	SetTreeReadOnly(path string) error
}

// GitClient implements Client for git working copies.
type GitClient struct{}

// NewGitClient returns a go-git backed client.
func NewGitClient() *GitClient { return &GitClient{} }

// IsWorkingCopy reports whether path holds a .git directory or file.
func (c *GitClient) IsWorkingCopy(path string) bool {
	_, err := os.Stat(filepath.Join(path, git.GitDirName))
	return err == nil
}

// Checkout clones the working copy at src into dest and checks out version
// (tag, branch or revision; HEAD of src when empty). An existing working copy
// at dest is reused only when it already sits on the requested revision.
func (c *GitClient) Checkout(ctx context.Context, src, version, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	source, err := git.PlainOpen(src)
	if err != nil {
		return fmt.Errorf("open source repository %s: %w", src, err)
	}

	if c.IsWorkingCopy(dest) {
		return reuseExisting(source, dest, version)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create checkout parent: %w", err)
	}
	if err := cloneLocal(ctx, source, src, version, dest); err != nil {
		_ = os.RemoveAll(dest)
		return err
	}
	return nil
}

func cloneLocal(ctx context.Context, source *git.Repository, src, version, dest string) error {
	repo, err := git.PlainInit(dest, false)
	if err != nil {
		return fmt.Errorf("init %s: %w", dest, err)
	}

	objects, err := source.Storer.IterEncodedObjects(plumbing.AnyObject)
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	err = objects.ForEach(func(obj plumbing.EncodedObject) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := repo.Storer.SetEncodedObject(obj)
		return err
	})
	if err != nil {
		return fmt.Errorf("copy objects: %w", err)
	}

	refs, err := source.References()
	if err != nil {
		return fmt.Errorf("list references: %w", err)
	}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name := ref.Name()
		switch {
		case name.IsBranch():
			name = plumbing.NewRemoteReferenceName("origin", name.Short())
		case name.IsTag():
		default:
			return nil
		}
		return repo.Storer.SetReference(plumbing.NewHashReference(name, ref.Hash()))
	})
	if err != nil {
		return fmt.Errorf("copy references: %w", err)
	}

	if _, err := repo.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{src}}); err != nil {
		return fmt.Errorf("configure origin: %w", err)
	}

	hash, branch, err := resolveTarget(source, repo, version)
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	opts := &git.CheckoutOptions{Hash: hash, Force: true}
	if branch != "" {
		opts.Branch = branch
		opts.Create = true
	}
	if err := wt.Checkout(opts); err != nil {
		return fmt.Errorf("checkout %s: %w", hash.String()[:8], err)
	}

	slog.Info("Checked out package sources",
		logfields.Path(src),
		logfields.Dest(dest),
		logfields.Version(version),
		slog.String("commit", hash.String()[:8]))
	return nil
}

// resolveTarget picks the commit to check out. With no version, HEAD of the
// source is used and its branch name is recreated locally.
func resolveTarget(source, repo *git.Repository, version string) (plumbing.Hash, plumbing.ReferenceName, error) {
	if version == "" {
		head, err := source.Head()
		if err != nil {
			return plumbing.ZeroHash, "", fmt.Errorf("resolve source HEAD: %w", err)
		}
		var branch plumbing.ReferenceName
		if head.Name().IsBranch() {
			branch = head.Name()
		}
		return head.Hash(), branch, nil
	}
	hash, err := resolveRevision(repo, version)
	if err != nil {
		return plumbing.ZeroHash, "", err
	}
	return hash, "", nil
}

func resolveRevision(repo *git.Repository, version string) (plumbing.Hash, error) {
	for _, rev := range []string{version, "origin/" + version} {
		if h, err := repo.ResolveRevision(plumbing.Revision(rev)); err == nil {
			return *h, nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("version %q not found", version)
}

func reuseExisting(source *git.Repository, dest, version string) error {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return fmt.Errorf("open existing checkout %s: %w", dest, err)
	}
	var want plumbing.Hash
	if version == "" {
		srcHead, err := source.Head()
		if err != nil {
			return fmt.Errorf("resolve source HEAD: %w", err)
		}
		want = srcHead.Hash()
	} else if want, err = resolveRevision(repo, version); err != nil {
		return err
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolve HEAD of %s: %w", dest, err)
	}
	if head.Hash() != want {
		wanted := version
		if wanted == "" {
			wanted = "source HEAD " + want.String()[:8]
		}
		return fmt.Errorf("existing checkout %s is at %s, not %s; remove it to check out again",
			dest, head.Hash().String()[:8], wanted)
	}
	slog.Debug("Reusing existing checkout", logfields.Dest(dest), logfields.Version(version))
	return nil
}
