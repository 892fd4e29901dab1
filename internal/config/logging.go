package config

import (
	"log/slog"

	"git.home.luguber.info/inful/wspkg/internal/foundation/normalization"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevels = normalization.NewNormalizer("log_level", map[string]LogLevel{
	string(LogLevelDebug): LogLevelDebug,
	string(LogLevelInfo):  LogLevelInfo,
	string(LogLevelWarn):  LogLevelWarn,
	string(LogLevelError): LogLevelError,
}, "").WithAlias("warning", string(LogLevelWarn))

// NormalizeLogLevel case-folds raw; unknown values yield "".
func NormalizeLogLevel(raw string) LogLevel {
	return logLevels.Normalize(raw)
}

// SlogLevel maps the level to slog; unknown levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch NormalizeLogLevel(string(l)) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
