package config

import (
	"strings"
	"time"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
)

// ValidateConfig validates the complete configuration.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateSearchPath(); err != nil {
		return err
	}
	if err := cv.validateCompiler(); err != nil {
		return err
	}
	return cv.validateRuntime()
}

func (cv *configurationValidator) validateSearchPath() error {
	seen := make(map[string]bool, len(cv.config.SearchPath))
	for i, root := range cv.config.SearchPath {
		if root == "" {
			return errors.ConfigError("search path entry is empty").WithContext("index", i).Build()
		}
		if seen[root] {
			return errors.ConfigError("search path entry is listed twice").WithContext("path", root).Build()
		}
		seen[root] = true
	}
	return nil
}

func (cv *configurationValidator) validateCompiler() error {
	c := cv.config.Compiler
	if strings.ContainsAny(c.SourceExt, `./\`) {
		return errors.ConfigError("compiler.source_ext must be a bare extension").
			WithContext("source_ext", c.SourceExt).
			Build()
	}
	if c.OptLevel < 0 || c.OptLevel > 3 {
		return errors.ConfigError("compiler.opt_level must be between 0 and 3").
			WithContext("opt_level", c.OptLevel).
			Build()
	}
	return nil
}

func (cv *configurationValidator) validateRuntime() error {
	if err := logLevels.Validate(string(cv.config.LogLevel)); err != nil {
		return err
	}
	if d, err := time.ParseDuration(cv.config.Watch.Debounce); err != nil || d <= 0 {
		return errors.ConfigError("watch.debounce must be a positive duration").
			WithCause(err).
			WithContext("debounce", cv.config.Watch.Debounce).
			Build()
	}
	return nil
}
