package commands

import (
	"context"

	"git.home.luguber.info/inful/wspkg/internal/build"
	"git.home.luguber.info/inful/wspkg/internal/observability"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Package  string `arg:"" optional:"" help:"Package identifier (default: inferred from the working directory)"`
	Only     string `name:"only" help:"Build only this unit file, relative to the package directory"`
	NoScript bool   `name:"no-script" help:"Ignore the package build script and infer units"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	ctx := g.context("build")
	s, err := newStack(g, root)
	if err != nil {
		return err
	}
	defer s.close()

	what := build.DefaultWhat()
	if b.NoScript {
		what.Type = build.Inferred
	}
	if b.Only != "" {
		what.Sources = build.ExactlyOne(b.Only)
	}
	_, err = s.buildEach(ctx, b.Package, what)
	return err
}

// buildEach builds every target of arg in order. When a package lives in
// several workspaces the last result is returned.
func (s *stack) buildEach(ctx context.Context, arg string, what build.What) (*build.Result, error) {
	targets, err := s.targets(arg)
	if err != nil {
		return nil, err
	}
	var last *build.Result
	for _, t := range targets {
		tree, err := t.locate(s.layout)
		if err != nil {
			return nil, err
		}
		res, err := s.orch.Build(ctx, tree, what)
		if err != nil {
			return nil, err
		}
		s.printer.Success("Built package %s in %s", res.Tree.ID, res.Tree.BuildWorkspace())
		last = res
	}
	return last, nil
}

// TestCmd implements the 'test' command.
type TestCmd struct {
	Package string `arg:"" optional:"" help:"Package identifier (default: inferred from the working directory)"`
}

func (c *TestCmd) Run(g *Global, root *CLI) error {
	ctx := g.context("test")
	s, err := newStack(g, root)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.buildEach(ctx, c.Package, build.What{Type: build.MaybeCustom, Sources: build.TestsOnly()})
	if err != nil {
		s.printer.Error("Testing failed because building the specified package failed.")
		return err
	}
	ctx = observability.WithPackage(ctx, res.Tree.ID.String())
	if err := s.installer.RunTests(ctx, res.Tree.ID, res.Tree.BuildWorkspace()); err != nil {
		return err
	}
	s.printer.Success("All tests passed for %s", res.Tree.ID)
	return nil
}

// CleanCmd implements the 'clean' command.
type CleanCmd struct {
	Package string `arg:"" optional:"" help:"Package identifier (default: inferred from the working directory)"`
}

func (c *CleanCmd) Run(g *Global, root *CLI) error {
	s, err := newStack(g, root)
	if err != nil {
		return err
	}
	defer s.close()

	ws, id, err := s.cleanTargets(c.Package)
	if err != nil {
		return err
	}
	for _, w := range ws {
		removed, err := s.orch.Clean(w, id)
		if err != nil {
			return err
		}
		if removed {
			s.printer.Note("Cleaned package %s in %s", id, w)
		} else {
			s.printer.Note("Nothing to clean for %s in %s", id, w)
		}
	}
	return nil
}

// cleanTargets lists the workspaces whose build directory for the package
// should be removed. Without an argument the package is inferred from the
// working directory; an ad-hoc package was built in the default workspace.
func (s *stack) cleanTargets(arg string) ([]workspace.Workspace, pkgid.ID, error) {
	if arg == "" {
		targets, err := s.targets("")
		if err != nil {
			return nil, pkgid.ID{}, err
		}
		t := targets[0]
		if t.infer {
			return []workspace.Workspace{t.dest}, t.id, nil
		}
		return []workspace.Workspace{t.source}, t.id, nil
	}
	id, err := pkgid.Parse(arg)
	if err != nil {
		return nil, pkgid.ID{}, err
	}
	found := s.resolver.WorkspacesContaining(id)
	if len(found) > 0 {
		return found, id, nil
	}
	def, err := s.resolver.DefaultWorkspace()
	if err != nil {
		return nil, pkgid.ID{}, err
	}
	return []workspace.Workspace{def}, id, nil
}
