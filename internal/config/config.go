// Package config loads wspkg configuration from YAML, .env files and the
// environment.
package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
)

// Config represents the application configuration
type Config struct {
	// SearchPath lists workspace roots in lookup order. The first entry is the
	// default workspace.
	SearchPath         []string       `yaml:"search_path"`
	Sysroot            string         `yaml:"sysroot,omitempty"`
	Cfgs               []string       `yaml:"cfgs,omitempty"`
	UsePathHack        bool           `yaml:"use_path_hack,omitempty"`
	CheckoutSubstitute string         `yaml:"checkout_substitute,omitempty"`
	Compiler           CompilerConfig `yaml:"compiler"`
	CacheDir           string         `yaml:"cache_dir,omitempty"`
	MetricsFile        string         `yaml:"metrics_file,omitempty"`
	LogLevel           LogLevel       `yaml:"log_level,omitempty"`
	Watch              WatchConfig    `yaml:"watch"`
}

// CompilerConfig selects the compiler command and its session settings.
type CompilerConfig struct {
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args,omitempty"`
	SourceExt string   `yaml:"source_ext"`
	OptLevel  int      `yaml:"opt_level"`
	Target    string   `yaml:"target,omitempty"`
	TargetCPU string   `yaml:"target_cpu,omitempty"`
	Linker    string   `yaml:"linker,omitempty"`
}

// WatchConfig configures the rebuild loop of the watch command.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultPath is the configuration file used when none is given.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "wspkg", "config.yaml")
}

// Load loads configuration from configPath. An empty configPath uses
// DefaultPath when that file exists and defaults only otherwise. Environment
// overrides are applied after the file, then defaults and validation.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	var config Config
	path, err := resolvePath(configPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := readFile(path, &config); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(&config)

	if err := applyDefaults(&config); err != nil {
		return nil, errors.ConfigError("failed to apply defaults").WithCause(err).Build()
	}
	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func resolvePath(configPath string) (string, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return "", errors.ConfigError("configuration file not found").
				WithCause(err).
				WithContext("path", configPath).
				Build()
		}
		return configPath, nil
	}
	def := DefaultPath()
	if def == "" {
		return "", nil
	}
	if _, err := os.Stat(def); err != nil {
		return "", nil //nolint:nilerr // a missing default file means defaults only
	}
	return def, nil
}

func readFile(path string, config *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // user supplied configuration path
	if err != nil {
		return errors.ConfigError("failed to read config file").WithCause(err).WithContext("path", path).Build()
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.ConfigError("failed to parse config file").WithCause(err).WithContext("path", path).Build()
	}
	return nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			WithContext("path", configPath).
			Build()
	}

	example := Config{
		SearchPath: []string{"${HOME}/.wspkg"},
		Compiler: CompilerConfig{
			Command:   DefaultCompilerCommand,
			SourceExt: DefaultSourceExt,
		},
		Watch: WatchConfig{Debounce: DefaultWatchDebounce.String()},
	}
	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.InternalError("failed to marshal example config").WithCause(err).Build()
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return errors.FileSystemError("failed to create config directory").WithCause(err).WithContext("path", configPath).Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.FileSystemError("failed to write config file").WithCause(err).WithContext("path", configPath).Build()
	}
	return nil
}
