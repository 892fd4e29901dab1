package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvConfig   = "WSPKG_CONFIG"
	EnvPath     = "WSPKG_PATH"
	EnvSysroot  = "WSPKG_SYSROOT"
	EnvLogLevel = "WSPKG_LOG_LEVEL"
	EnvCacheDir = "WSPKG_CACHE_DIR"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads .env and .env.local from the working directory.
// Existing process environment variables are not overwritten; missing files
// are skipped.
func loadEnvFiles() {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// applyEnvOverrides replaces file values with set environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPath); v != "" {
		var roots []string
		for _, p := range filepath.SplitList(v) {
			if p = strings.TrimSpace(p); p != "" {
				roots = append(roots, p)
			}
		}
		cfg.SearchPath = roots
	}
	if v := os.Getenv(EnvSysroot); v != "" {
		cfg.Sysroot = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = LogLevel(v)
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		cfg.CacheDir = v
	}
}
