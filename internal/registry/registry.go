// Package registry answers which packages are installed in the search path.
package registry

import (
	"context"
	stderrors "errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	"git.home.luguber.info/inful/wspkg/internal/workcache"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

const installTagPrefix = "install:"

// Registry finds installed packages by their artifacts in each workspace.
type Registry struct {
	resolver *workspace.Resolver
	platform workspace.Platform
	cache    *workcache.Context
}

// New returns a Registry over the search path of resolver.
func New(resolver *workspace.Resolver, plat workspace.Platform) *Registry {
	return &Registry{resolver: resolver, platform: plat}
}

// WithCache adds packages recorded by earlier installs as candidates, which
// covers installs whose sources are no longer in a workspace.
func (r *Registry) WithCache(c *workcache.Context) *Registry {
	r.cache = c
	return r
}

// IsInstalled reports whether any search path workspace holds an installed
// executable or library for id.
func (r *Registry) IsInstalled(id pkgid.ID) bool {
	return len(r.InstalledIn(id)) > 0
}

// InstalledIn returns the workspaces holding installed artifacts of id.
func (r *Registry) InstalledIn(id pkgid.ID) []workspace.Workspace {
	var out []workspace.Workspace
	for _, ws := range r.resolver.SearchPath() {
		if workspace.IsInstalledIn(ws, id, r.platform) {
			out = append(out, ws)
		}
	}
	return out
}

// ForEachInstalled calls visit for every installed package, ordered by
// identifier, until visit returns false.
func (r *Registry) ForEachInstalled(ctx context.Context, visit func(pkgid.ID) bool) error {
	candidates, err := r.candidates(ctx)
	if err != nil {
		return err
	}
	for _, id := range candidates {
		if !r.IsInstalled(id) {
			continue
		}
		if !visit(id) {
			return nil
		}
	}
	return nil
}

func (r *Registry) candidates(ctx context.Context) ([]pkgid.ID, error) {
	seen := make(map[string]pkgid.ID)
	add := func(id pkgid.ID) {
		if _, ok := seen[id.String()]; !ok {
			seen[id.String()] = id
		}
	}

	for _, ws := range r.resolver.SearchPath() {
		if err := sourcePackages(ws, add); err != nil {
			return nil, err
		}
	}
	if r.cache != nil {
		tags, err := r.cache.Store().Tags(ctx, installTagPrefix)
		if err != nil {
			return nil, errors.CacheError("failed to list install records").WithCause(err).Build()
		}
		for _, tag := range tags {
			if id, err := pkgid.Parse(strings.TrimPrefix(tag, installTagPrefix)); err == nil {
				add(id)
			}
		}
	}

	ids := make([]pkgid.ID, 0, len(seen))
	for _, id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// sourcePackages reports every directory under ws/src as a candidate package path.
func sourcePackages(ws workspace.Workspace, add func(pkgid.ID)) error {
	src := ws.Src()
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == src && stderrors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() || p == src {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if id, err := pkgid.New(filepath.ToSlash(rel)); err == nil {
			add(id)
		}
		return nil
	})
	if err != nil {
		return errors.FileSystemError("failed to scan workspace sources").
			WithCause(err).
			WithContext("workspace", ws.Root).
			Build()
	}
	return nil
}
