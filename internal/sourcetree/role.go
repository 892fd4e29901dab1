package sourcetree

import (
	stderrors "errors"
	"os"
	"path"
	"strings"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
)

// ErrAmbiguousRole is the cause when a file name matches no unit role.
var ErrAmbiguousRole = stderrors.New("file matches no unit role")

// Role is the kind of build unit a source file produces.
type Role int

const (
	Library Role = iota
	Executable
	Test
	Benchmark
)

// Roles lists every role in build order.
var Roles = []Role{Library, Executable, Test, Benchmark}

var roleStems = map[string]Role{
	"lib":   Library,
	"main":  Executable,
	"test":  Test,
	"bench": Benchmark,
}

func (r Role) String() string {
	switch r {
	case Library:
		return "library"
	case Executable:
		return "executable"
	case Test:
		return "test"
	case Benchmark:
		return "benchmark"
	default:
		return "unknown"
	}
}

// Classify maps a relative file path to its role by file name: lib, main,
// test or bench followed by the source extension.
func Classify(rel, ext string) (Role, error) {
	base := path.Base(strings.ReplaceAll(rel, `\`, "/"))
	stem, fileExt, ok := cutLast(base, ".")
	if ok && fileExt == ext {
		if role, known := roleStems[stem]; known {
			return role, nil
		}
	}
	return 0, errors.ConfigError("cannot determine unit role from file name").
		WithCause(ErrAmbiguousRole).
		WithContext("path", rel).
		WithContext("expected", "lib|main|test|bench."+ext).
		Build()
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

// HasUnitFile reports whether dir directly holds a file with a unit role.
func HasUnitFile(dir, ext string) bool {
	if ext == "" {
		ext = DefaultSourceExt
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := Classify(e.Name(), ext); err == nil {
			return true
		}
	}
	return false
}
