package workspace

import (
	stderrors "errors"
	"path/filepath"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
)

// ErrNoWorkspace is returned when the search path is empty.
var ErrNoWorkspace = stderrors.New("no workspace configured")

// Resolver answers questions about the configured search path.
type Resolver struct {
	searchPath []Workspace
}

// NewResolver builds a resolver over roots, in priority order. Duplicates are dropped.
func NewResolver(roots []string) *Resolver {
	r := &Resolver{}
	for _, root := range roots {
		if root == "" {
			continue
		}
		ws := New(root)
		if r.IsSearchPathMember(ws) {
			continue
		}
		r.searchPath = append(r.searchPath, ws)
	}
	return r
}

// SearchPath returns a copy of the configured workspaces.
func (r *Resolver) SearchPath() []Workspace {
	return append([]Workspace(nil), r.searchPath...)
}

// DefaultWorkspace returns the first search path entry.
func (r *Resolver) DefaultWorkspace() (Workspace, error) {
	if len(r.searchPath) == 0 {
		return Workspace{}, errors.ConfigError("no workspace configured; set search_path or WSPKG_PATH").
			WithCause(ErrNoWorkspace).
			Build()
	}
	return r.searchPath[0], nil
}

// WorkspacesContaining returns every workspace whose src/ holds id, in search path order.
// A versioned source directory (path-version) also counts.
func (r *Resolver) WorkspacesContaining(id pkgid.ID) []Workspace {
	var found []Workspace
	for _, ws := range r.searchPath {
		if HasPackage(ws, id) {
			found = append(found, ws)
		}
	}
	return found
}

// HasPackage reports whether ws/src contains a directory for id.
func HasPackage(ws Workspace, id pkgid.ID) bool {
	for _, dir := range SourceCandidates(ws, id) {
		if isDir(dir) {
			return true
		}
	}
	return false
}

// SourceCandidates lists the directories under ws/src that may hold id, in lookup order.
func SourceCandidates(ws Workspace, id pkgid.ID) []string {
	rel := filepath.FromSlash(id.Path())
	dirs := []string{filepath.Join(ws.Src(), rel)}
	if id.HasVersion() {
		dirs = append(dirs, filepath.Join(ws.Src(), rel+"-"+id.Version()))
	}
	return dirs
}

// IsInWorkspace reports whether path lies under any configured workspace.
func (r *Resolver) IsInWorkspace(path string) bool {
	for _, ws := range r.searchPath {
		if ws.Contains(path) {
			return true
		}
	}
	return false
}

// IsSearchPathMember reports whether ws is one of the configured workspaces.
func (r *Resolver) IsSearchPathMember(ws Workspace) bool {
	for _, member := range r.searchPath {
		if member.Equal(ws) {
			return true
		}
	}
	return false
}

// DetermineDestination picks where artifacts built from sourceWS are installed.
// With the path hack enabled and cwd outside every workspace, cwd itself becomes
// the destination.
func (r *Resolver) DetermineDestination(cwd string, usePathHack bool, sourceWS Workspace) Workspace {
	if usePathHack && !r.IsInWorkspace(cwd) {
		return New(cwd)
	}
	return sourceWS
}

// CwdToWorkspace maps a directory of the form <ws>/src/<path> to its workspace and package.
func (r *Resolver) CwdToWorkspace(cwd string) (Workspace, pkgid.ID, bool) {
	dir := cleanPath(cwd)
	for _, ws := range r.searchPath {
		src := cleanPath(ws.Src())
		if dir == src || !isWithin(src, dir) {
			continue
		}
		rel, err := filepath.Rel(src, dir)
		if err != nil {
			continue
		}
		id, err := pkgid.New(filepath.ToSlash(rel))
		if err != nil {
			continue
		}
		return ws, id, true
	}
	return Workspace{}, pkgid.ID{}, false
}
