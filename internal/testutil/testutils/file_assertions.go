package helpers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FileAssertions provides utilities for asserting file system state in tests.
type FileAssertions struct {
	t       *testing.T
	baseDir string
}

// NewFileAssertions creates a new file assertions helper.
func NewFileAssertions(t *testing.T, baseDir string) *FileAssertions {
	return &FileAssertions{
		t:       t,
		baseDir: baseDir,
	}
}

// AssertFileExists validates that a regular file exists.
func (fa *FileAssertions) AssertFileExists(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)
	stat, err := os.Stat(fullPath)
	switch {
	case err != nil:
		fa.t.Errorf("Expected file to exist: %s", fullPath)
	case stat.IsDir():
		fa.t.Errorf("Expected %s to be a file, but it's a directory", fullPath)
	}
	return fa
}

// AssertNotExists validates that nothing exists at relativePath.
func (fa *FileAssertions) AssertNotExists(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)
	if _, err := os.Stat(fullPath); err == nil {
		fa.t.Errorf("Expected %s to not exist", fullPath)
	}
	return fa
}

// AssertFileContains validates that a file contains expected content.
func (fa *FileAssertions) AssertFileContains(relativePath, expectedContent string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)

	content, err := os.ReadFile(fullPath)
	if err != nil {
		fa.t.Errorf("Failed to read file %s: %v", fullPath, err)
		return fa
	}

	if !strings.Contains(string(content), expectedContent) {
		fa.t.Errorf("Expected file %s to contain %q\nActual content:\n%s",
			relativePath, expectedContent, string(content))
	}
	return fa
}

// AssertReadOnly validates that relativePath has no write permission bits.
func (fa *FileAssertions) AssertReadOnly(relativePath string) *FileAssertions {
	fa.t.Helper()
	fullPath := filepath.Join(fa.baseDir, relativePath)
	stat, err := os.Stat(fullPath)
	if err != nil {
		fa.t.Errorf("Failed to stat %s: %v", fullPath, err)
		return fa
	}
	if stat.Mode().Perm()&0o222 != 0 {
		fa.t.Errorf("Expected %s to be read-only, mode is %v", fullPath, stat.Mode().Perm())
	}
	return fa
}
