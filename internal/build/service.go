package build

import (
	"time"

	"git.home.luguber.info/inful/wspkg/internal/sourcetree"
)

// BuildType selects whether a package's build script may take over the build.
type BuildType int

const (
	// MaybeCustom runs the package's build script when it has one.
	MaybeCustom BuildType = iota
	// Inferred ignores any build script and compiles inferred units.
	Inferred
)

func (t BuildType) String() string {
	if t == Inferred {
		return "inferred"
	}
	return "maybe_custom"
}

type sourcesKind int

const (
	sourcesEverything sourcesKind = iota
	sourcesTestsOnly
	sourcesExactlyOne
)

// Sources selects which units an inferred build compiles.
type Sources struct {
	kind sourcesKind
	path string
}

// Everything compiles every unit found in the package.
func Everything() Sources { return Sources{kind: sourcesEverything} }

// TestsOnly compiles only test units.
func TestsOnly() Sources { return Sources{kind: sourcesTestsOnly} }

// ExactlyOne compiles the single unit at rel, relative to the package directory.
func ExactlyOne(rel string) Sources { return Sources{kind: sourcesExactlyOne, path: rel} }

// Path returns the unit requested by ExactlyOne.
func (s Sources) Path() (string, bool) {
	return s.path, s.kind == sourcesExactlyOne
}

func (s Sources) String() string {
	switch s.kind {
	case sourcesTestsOnly:
		return "tests"
	case sourcesExactlyOne:
		return "exactly_one(" + s.path + ")"
	default:
		return "everything"
	}
}

// What describes the requested build.
type What struct {
	Type    BuildType
	Sources Sources
}

// DefaultWhat builds everything, honoring build scripts.
func DefaultWhat() What {
	return What{Type: MaybeCustom, Sources: Everything()}
}

// CompiledUnit is one unit handed to the compiler driver.
type CompiledUnit struct {
	Role   sourcetree.Role
	Source string
	Output string
}

// Result is the outcome of a successful build.
type Result struct {
	// Tree is the tree that was built. After a source control fallback it is
	// the clone in the default workspace, not the tree passed in.
	Tree *sourcetree.Tree

	// Cfgs are the configuration flags in effect: build script flags first,
	// then configured flags, without duplicates.
	Cfgs []string

	// Custom is set when a build script handled the build.
	Custom bool

	// Compiled lists the units compiled, in build order.
	Compiled []CompiledUnit

	// FallbackHops counts source control fallbacks taken (0 or 1).
	FallbackHops int

	// Duration is the total build time.
	Duration time.Duration
}

// MergeFlags returns the union of script and configured flags, keeping the
// first occurrence of each.
func MergeFlags(script, configured []string) []string {
	seen := make(map[string]struct{}, len(script)+len(configured))
	merged := make([]string, 0, len(script)+len(configured))
	for _, list := range [][]string{script, configured} {
		for _, f := range list {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			merged = append(merged, f)
		}
	}
	return merged
}
