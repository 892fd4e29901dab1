package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// NewWorkspace creates an initialized workspace in a fresh temp dir.
func NewWorkspace(t *testing.T) workspace.Workspace {
	t.Helper()
	ws, err := workspace.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init workspace: %v", err)
	}
	return ws
}

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatalf("failed to create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return p
}

// WritePackage writes each unit file under <ws>/src/<path>.
func WritePackage(t *testing.T, ws workspace.Workspace, path string, files ...string) string {
	t.Helper()
	dir := filepath.Join(ws.Src(), filepath.FromSlash(path))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("failed to create package dir: %v", err)
	}
	for _, f := range files {
		WriteFile(t, dir, f, "// "+f+"\n")
	}
	return dir
}
