package commands

import (
	"fmt"
	"io"
	"strings"

	"git.home.luguber.info/inful/wspkg/internal/buildscript"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	"git.home.luguber.info/inful/wspkg/internal/readme"
	"git.home.luguber.info/inful/wspkg/internal/sourcetree"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// ListCmd implements the 'list' command.
type ListCmd struct{}

func (l *ListCmd) Run(g *Global, root *CLI) error {
	ctx := g.context("list")
	s, err := newStack(g, root)
	if err != nil {
		return err
	}
	defer s.close()

	out := g.out()
	_, _ = fmt.Fprintln(out, "Installed packages:")
	return s.registry.ForEachInstalled(ctx, func(id pkgid.ID) bool {
		_, _ = fmt.Fprintln(out, id.Path())
		return true
	})
}

// InfoCmd implements the 'info' command.
type InfoCmd struct {
	Package string `arg:"" optional:"" help:"Package identifier (default: inferred from the working directory)"`
}

func (c *InfoCmd) Run(g *Global, root *CLI) error {
	s, err := newStack(g, root)
	if err != nil {
		return err
	}
	defer s.close()

	targets, err := s.targets(c.Package)
	if err != nil {
		return err
	}
	tree, err := targets[0].locate(s.layout)
	if err != nil {
		return err
	}
	if err := tree.DiscoverUnits(nil); err != nil {
		return err
	}
	summary, err := readme.Load(tree.StartDir)
	if err != nil {
		return err
	}

	writeInfo(g.out(), packageInfo{
		tree:       tree,
		sources:    s.resolver.WorkspacesContaining(tree.ID),
		installed:  s.registry.InstalledIn(tree.ID),
		platform:   s.orch.Platform(),
		readme:     summary,
		targetsLen: len(targets),
	})
	return nil
}

type packageInfo struct {
	tree       *sourcetree.Tree
	sources    []workspace.Workspace
	installed  []workspace.Workspace
	platform   workspace.Platform
	readme     *readme.Summary
	targetsLen int
}

func writeInfo(w io.Writer, info packageInfo) {
	t := info.tree
	p := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format+"\n", a...) }

	p("Package:      %s", t.ID)
	p("Version:      %s", t.ID.VersionOrDefault())
	p("Directory:    %s", t.StartDir)
	p("Workspaces:   %s", joinWorkspaces(info.sources))
	if info.targetsLen > 1 {
		p("              (found in %d workspaces; details are for the first)", info.targetsLen)
	}
	p("Installed in: %s", joinWorkspaces(info.installed))

	if script, ok := buildscript.Find(t, info.platform); ok {
		p("Build script: %s", script.Path)
	} else {
		p("Build script: none")
	}

	units := t.AllUnits()
	p("Units:        %d", len(units))
	for _, u := range units {
		p("  %-10s %s", u.Role, u.File)
	}

	if info.readme == nil {
		return
	}
	p("README:       %s", info.readme.File)
	if info.readme.Title != "" {
		p("  %s", info.readme.Title)
	}
	if info.readme.Description != "" {
		p("  %s", info.readme.Description)
	}
	for _, link := range info.readme.Links {
		p("  %s", link)
	}
}

func joinWorkspaces(list []workspace.Workspace) string {
	if len(list) == 0 {
		return "none"
	}
	roots := make([]string, 0, len(list))
	for _, ws := range list {
		roots = append(roots, ws.Root)
	}
	return strings.Join(roots, ", ")
}
