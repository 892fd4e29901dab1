package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/wspkg/internal/logfields"
)

// Fixed subdirectory names of a workspace.
const (
	SrcDir   = "src"
	LibDir   = "lib"
	BinDir   = "bin"
	BuildDir = "build"
)

// Workspace is a filesystem root holding src, lib, bin and build directories.
type Workspace struct {
	Root string
}

// New returns a workspace rooted at the cleaned, absolute form of root.
func New(root string) Workspace {
	return Workspace{Root: cleanPath(root)}
}

func (w Workspace) Src() string   { return filepath.Join(w.Root, SrcDir) }
func (w Workspace) Lib() string   { return filepath.Join(w.Root, LibDir) }
func (w Workspace) Bin() string   { return filepath.Join(w.Root, BinDir) }
func (w Workspace) Build() string { return filepath.Join(w.Root, BuildDir) }

// Equal compares cleaned roots.
func (w Workspace) Equal(o Workspace) bool {
	return cleanPath(w.Root) == cleanPath(o.Root)
}

// Contains reports whether path lies at or below the workspace root.
func (w Workspace) Contains(path string) bool {
	return isWithin(cleanPath(w.Root), cleanPath(path))
}

func (w Workspace) String() string { return w.Root }

// Init creates the four workspace subdirectories under dir.
func Init(dir string) (Workspace, error) {
	ws := New(dir)
	for _, sub := range []string{SrcDir, LibDir, BinDir, BuildDir} {
		p := filepath.Join(ws.Root, sub)
		if err := os.MkdirAll(p, 0o750); err != nil {
			return Workspace{}, fmt.Errorf("failed to create workspace directory %s: %w", p, err)
		}
	}
	slog.Info("Initialized workspace", logfields.Workspace(ws.Root))
	return ws, nil
}

func cleanPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
