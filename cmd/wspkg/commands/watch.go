package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/wspkg/internal/build"
	"git.home.luguber.info/inful/wspkg/internal/logfields"
	"git.home.luguber.info/inful/wspkg/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Package string `arg:"" optional:"" help:"Package identifier (default: inferred from the working directory)"`
	Install bool   `help:"Install after every successful build"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(g.context("watch"), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := newStack(g, root)
	if err != nil {
		return err
	}
	defer s.close()

	targets, err := s.targets(w.Package)
	if err != nil {
		return err
	}
	t := targets[0]
	tree, err := t.locate(s.layout)
	if err != nil {
		return err
	}
	dir := tree.StartDir

	rebuild := func(ctx context.Context) error {
		// Units accumulate on a tree, so every rebuild starts from a fresh one.
		tree, err := t.locate(s.layout)
		if err != nil {
			return err
		}
		if w.Install {
			_, err = s.installer.Install(ctx, tree, build.DefaultWhat())
			return err
		}
		res, err := s.orch.Build(ctx, tree, build.DefaultWhat())
		if err != nil {
			return err
		}
		s.printer.Success("Rebuilt package %s", res.Tree.ID)
		return nil
	}

	if err := rebuild(ctx); err != nil {
		slog.Error("Initial build failed", logfields.Error(err))
	}

	watcher, err := watch.NewSourceWatcher(dir, s.cfg.WatchDebounce(), rebuild)
	if err != nil {
		return err
	}
	watcher.WithExtension(s.cfg.Compiler.SourceExt)
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	s.printer.Note("Watching %s for changes (Ctrl+C to stop)", dir)

	<-ctx.Done()
	watcher.Stop()
	slog.Info("Watch stopped", logfields.Path(dir))
	return nil
}
