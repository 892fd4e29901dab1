// Package sourcetree locates a package's sources and records the build units found there.
package sourcetree

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// ErrPackageNotFound is the cause when no candidate directory holds the package.
var ErrPackageNotFound = stderrors.New("package not found")

// DefaultSourceExt is the unit file extension when none is configured.
const DefaultSourceExt = "rs"

// BuildScriptStem is the file name, without extension, of a package build script.
const BuildScriptStem = "pkg"

// Layout carries the conventions and probes used while locating a tree.
type Layout struct {
	SourceExt     string
	IsWorkingCopy func(dir string) bool
	InSearchPath  func(ws workspace.Workspace) bool
}

func (l Layout) ext() string {
	if l.SourceExt == "" {
		return DefaultSourceExt
	}
	return l.SourceExt
}

// Unit is one compilable source file relative to the tree's start directory.
type Unit struct {
	Role    Role
	Ordinal int
	File    string
}

// Tree is a located package source with its discovered units.
type Tree struct {
	SourceWorkspace      workspace.Workspace
	DestinationWorkspace workspace.Workspace
	StartDir             string
	ID                   pkgid.ID

	layout       Layout
	inSearchPath bool
	next         int
	units        map[Role][]Unit
}

// Locate finds id under sourceWS. Candidates are tried in order: src/<path>,
// src/<path>-<version>, <ws>/<path> when it is a working copy, and the
// workspace root itself when infer is set.
func Locate(sourceWS, destWS workspace.Workspace, infer bool, id pkgid.ID, layout Layout) (*Tree, error) {
	candidates := workspace.SourceCandidates(sourceWS, id)
	for _, dir := range candidates {
		if isDir(dir) {
			return newTree(sourceWS, destWS, id, dir, layout), nil
		}
	}

	direct := filepath.Join(sourceWS.Root, filepath.FromSlash(id.Path()))
	candidates = append(candidates, direct)
	if layout.IsWorkingCopy != nil && isDir(direct) && layout.IsWorkingCopy(direct) {
		return newTree(sourceWS, destWS, id, direct, layout), nil
	}

	if infer {
		candidates = append(candidates, sourceWS.Root)
		if isDir(sourceWS.Root) {
			return newTree(sourceWS, destWS, id, sourceWS.Root, layout), nil
		}
	}

	return nil, errors.NotFoundError("package not found in workspace").
		WithCause(ErrPackageNotFound).
		WithContext("package", id.String()).
		WithContext("workspace", sourceWS.Root).
		WithContext("tried", strings.Join(candidates, ", ")).
		Build()
}

// LocateAt builds a tree for id whose sources are known to live in startDir.
func LocateAt(sourceWS, destWS workspace.Workspace, id pkgid.ID, startDir string, layout Layout) (*Tree, error) {
	if !isDir(startDir) {
		return nil, errors.NotFoundError("package directory does not exist").
			WithCause(ErrPackageNotFound).
			WithContext("package", id.String()).
			WithContext("path", startDir).
			Build()
	}
	return newTree(sourceWS, destWS, id, startDir, layout), nil
}

func newTree(sourceWS, destWS workspace.Workspace, id pkgid.ID, startDir string, layout Layout) *Tree {
	inSearchPath := layout.InSearchPath != nil && layout.InSearchPath(sourceWS)
	return &Tree{
		SourceWorkspace:      sourceWS,
		DestinationWorkspace: destWS,
		StartDir:             startDir,
		ID:                   id,
		layout:               layout,
		inSearchPath:         inSearchPath,
		units:                make(map[Role][]Unit, len(Roles)),
	}
}

// SourceExt returns the unit file extension in use.
func (t *Tree) SourceExt() string { return t.layout.ext() }

// InSearchPath reports whether the source workspace is a configured workspace.
func (t *Tree) InSearchPath() bool { return t.inSearchPath }

// BuildWorkspace is where build outputs go: the source workspace for packages
// inside the search path, the destination workspace otherwise.
func (t *Tree) BuildWorkspace() workspace.Workspace {
	if t.inSearchPath {
		return t.SourceWorkspace
	}
	return t.DestinationWorkspace
}

// BuildScriptPath returns pkg.<ext> directly under the start directory if present.
func (t *Tree) BuildScriptPath() (string, bool) {
	p := filepath.Join(t.StartDir, BuildScriptStem+"."+t.layout.ext())
	fi, err := os.Stat(p)
	if err != nil || fi.IsDir() {
		return "", false
	}
	return p, true
}

// DiscoverUnits walks the start directory once and records every file whose
// name matches a role. filter receives slash-separated relative paths; nil
// accepts everything. Hidden directories are skipped.
func (t *Tree) DiscoverUnits(filter func(rel string) bool) error {
	ext := t.layout.ext()
	err := filepath.WalkDir(t.StartDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != t.StartDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(t.StartDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		role, err := Classify(rel, ext)
		if err != nil {
			return nil
		}
		if filter != nil && !filter(rel) {
			return nil
		}
		t.PushExplicitUnit(role, rel)
		return nil
	})
	if err != nil {
		return errors.FileSystemError("failed to scan package sources").
			WithCause(err).
			WithContext("path", t.StartDir).
			Build()
	}
	return nil
}

// PushExplicitUnit records rel under role without checking its name.
func (t *Tree) PushExplicitUnit(role Role, rel string) {
	t.units[role] = append(t.units[role], Unit{Role: role, Ordinal: t.next, File: rel})
	t.next++
}

// PushExplicit classifies rel and records it.
func (t *Tree) PushExplicit(rel string) (Role, error) {
	role, err := Classify(rel, t.layout.ext())
	if err != nil {
		return 0, err
	}
	t.PushExplicitUnit(role, filepath.ToSlash(rel))
	return role, nil
}

// Units returns the units recorded for role, in discovery order.
func (t *Tree) Units(role Role) []Unit {
	return append([]Unit(nil), t.units[role]...)
}

// AllUnits returns libraries, executables, tests then benchmarks.
func (t *Tree) AllUnits() []Unit {
	var all []Unit
	for _, role := range Roles {
		all = append(all, t.units[role]...)
	}
	return all
}

// HasUnits reports whether any unit was recorded.
func (t *Tree) HasUnits() bool {
	for _, role := range Roles {
		if len(t.units[role]) > 0 {
			return true
		}
	}
	return false
}

// UnitPath returns the absolute path of u.
func (t *Tree) UnitPath(u Unit) string {
	return filepath.Join(t.StartDir, filepath.FromSlash(u.File))
}

// Validate checks that every recorded unit exists under the start directory.
func (t *Tree) Validate() error {
	for _, u := range t.AllUnits() {
		p := t.UnitPath(u)
		fi, err := os.Stat(p)
		if err == nil && !fi.IsDir() {
			continue
		}
		return errors.ConfigError("build unit does not exist").
			WithCause(err).
			WithContext("package", t.ID.String()).
			WithContext("unit", u.File).
			WithContext("path", p).
			Build()
	}
	return nil
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
