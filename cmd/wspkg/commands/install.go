package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/wspkg/internal/build"
	"git.home.luguber.info/inful/wspkg/internal/install"
	"git.home.luguber.info/inful/wspkg/internal/logfields"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
)

// InstallCmd implements the 'install' command.
type InstallCmd struct {
	Package string `arg:"" optional:"" help:"Package identifier (default: inferred from the working directory)"`
}

func (c *InstallCmd) Run(g *Global, root *CLI) error {
	ctx := g.context("install")
	s, err := newStack(g, root)
	if err != nil {
		return err
	}
	defer s.close()

	targets, err := s.targets(c.Package)
	if err != nil {
		return err
	}
	// Each workspace holding the package is installed in turn; only the last
	// manifest is reported.
	var manifest *install.Manifest
	for _, t := range targets {
		tree, err := t.locate(s.layout)
		if err != nil {
			return err
		}
		manifest, err = s.installer.Install(ctx, tree, build.DefaultWhat())
		if err != nil {
			return err
		}
	}
	for _, p := range manifest.InstalledPaths {
		slog.Debug("Installed artifact", logfields.Path(p))
	}
	return nil
}

// UninstallCmd implements the 'uninstall' command.
type UninstallCmd struct {
	Package string `arg:"" help:"Package identifier"`
}

func (c *UninstallCmd) Run(g *Global, root *CLI) error {
	ctx := g.context("uninstall")
	s, err := newStack(g, root)
	if err != nil {
		return err
	}
	defer s.close()

	id, err := pkgid.Parse(c.Package)
	if err != nil {
		return err
	}
	holders := s.registry.InstalledIn(id)
	if len(holders) == 0 {
		s.printer.Warn("Package %s doesn't seem to be installed! Doing nothing.", id)
		return nil
	}
	if _, err := s.installer.Uninstall(ctx, id); err != nil {
		return err
	}
	for _, ws := range holders {
		s.printer.Note("Uninstalled package %s (was installed in %s)", id, ws)
	}
	return nil
}
