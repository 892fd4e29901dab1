package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPackage    = "package"
	KeyVersion    = "version"
	KeyWorkspace  = "workspace"
	KeyPath       = "path"
	KeyDest       = "dest"
	KeyTag        = "tag"
	KeyUnit       = "unit"
	KeyRole       = "role"
	KeyStage      = "stage"
	KeyProgram    = "program"
	KeyExitStatus = "exit_status"
	KeyFlags      = "flags"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyCacheHit   = "cache_hit"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Package(id string) slog.Attr     { return slog.String(KeyPackage, id) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Workspace(root string) slog.Attr { return slog.String(KeyWorkspace, root) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Dest(p string) slog.Attr         { return slog.String(KeyDest, p) }
func Tag(t string) slog.Attr          { return slog.String(KeyTag, t) }
func Unit(file string) slog.Attr      { return slog.String(KeyUnit, file) }
func Role(r string) slog.Attr         { return slog.String(KeyRole, r) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Program(p string) slog.Attr      { return slog.String(KeyProgram, p) }
func ExitStatus(s string) slog.Attr   { return slog.String(KeyExitStatus, s) }
func Flags(f []string) slog.Attr      { return slog.Any(KeyFlags, f) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func CacheHit(hit bool) slog.Attr     { return slog.Bool(KeyCacheHit, hit) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
