package vcs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SetTreeReadOnly clears the write bits of every file and directory under path.
// Directories are changed after their contents.
func (c *GitClient) SetTreeReadOnly(path string) error {
	return SetTreeReadOnly(path)
}

// SetTreeReadOnly clears the write bits of every entry under path, path included.
func SetTreeReadOnly(path string) error {
	var dirs []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
			return nil
		}
		return clearWrite(p)
	})
	if err != nil {
		return fmt.Errorf("mark %s read-only: %w", path, err)
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := clearWrite(dirs[i]); err != nil {
			return fmt.Errorf("mark %s read-only: %w", path, err)
		}
	}
	return nil
}

func clearWrite(p string) error {
	fi, err := os.Lstat(p)
	if err != nil {
		return err
	}
	return os.Chmod(p, fi.Mode().Perm()&^0o222)
}
