package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default values applied by Load.
const (
	DefaultCompilerCommand = "rustc"
	DefaultSourceExt       = "rs"
	DefaultWatchDebounce   = 500 * time.Millisecond
	defaultWorkspaceDir    = ".wspkg"
	defaultCacheDir        = ".workcache"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// WorkspaceDefaultApplier fills the search path and makes its roots absolute.
type WorkspaceDefaultApplier struct{}

func (w *WorkspaceDefaultApplier) Domain() string { return "workspace" }

func (w *WorkspaceDefaultApplier) ApplyDefaults(cfg *Config) error {
	if len(cfg.SearchPath) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("no search path configured and home directory unknown: %w", err)
		}
		cfg.SearchPath = []string{filepath.Join(home, defaultWorkspaceDir)}
	}
	for i, root := range cfg.SearchPath {
		if root == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("search path entry %q: %w", root, err)
		}
		cfg.SearchPath[i] = abs
	}
	if cfg.CacheDir == "" && len(cfg.SearchPath) > 0 && cfg.SearchPath[0] != "" {
		cfg.CacheDir = filepath.Join(cfg.SearchPath[0], defaultCacheDir)
	}
	return nil
}

// CompilerDefaultApplier handles compiler defaults.
type CompilerDefaultApplier struct{}

func (c *CompilerDefaultApplier) Domain() string { return "compiler" }

func (c *CompilerDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Compiler.Command == "" {
		cfg.Compiler.Command = DefaultCompilerCommand
	}
	if cfg.Compiler.SourceExt == "" {
		cfg.Compiler.SourceExt = DefaultSourceExt
	}
	return nil
}

// RuntimeDefaultApplier handles logging and watch defaults.
type RuntimeDefaultApplier struct{}

func (r *RuntimeDefaultApplier) Domain() string { return "runtime" }

func (r *RuntimeDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogLevelInfo
	}
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = DefaultWatchDebounce.String()
	}
	return nil
}

// defaultAppliers run in order; later domains may rely on earlier ones.
func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		&WorkspaceDefaultApplier{},
		&CompilerDefaultApplier{},
		&RuntimeDefaultApplier{},
	}
}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers() {
		if err := a.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("%s defaults: %w", a.Domain(), err)
		}
	}
	return nil
}

// WatchDebounce returns the parsed watch debounce.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return DefaultWatchDebounce
	}
	return d
}
