package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/wspkg/internal/build"
	"git.home.luguber.info/inful/wspkg/internal/buildscript"
	"git.home.luguber.info/inful/wspkg/internal/compiler"
	"git.home.luguber.info/inful/wspkg/internal/config"
	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/install"
	"git.home.luguber.info/inful/wspkg/internal/logfields"
	"git.home.luguber.info/inful/wspkg/internal/messages"
	"git.home.luguber.info/inful/wspkg/internal/metrics"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	"git.home.luguber.info/inful/wspkg/internal/process"
	"git.home.luguber.info/inful/wspkg/internal/registry"
	"git.home.luguber.info/inful/wspkg/internal/sourcetree"
	"git.home.luguber.info/inful/wspkg/internal/vcs"
	"git.home.luguber.info/inful/wspkg/internal/workcache"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// stack is the wired set of services a command works with.
type stack struct {
	cfg       *config.Config
	resolver  *workspace.Resolver
	layout    sourcetree.Layout
	git       *vcs.GitClient
	cache     *workcache.Context
	prom      *metrics.PrometheusRecorder
	orch      *build.Orchestrator
	installer *install.Installer
	registry  *registry.Registry
	printer   *messages.Printer
}

func newStack(g *Global, root *CLI) (*stack, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	root.applyOverrides(cfg)
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	g.applyLogLevel(cfg, root.Verbose)

	s := &stack{
		cfg:      cfg,
		resolver: workspace.NewResolver(cfg.SearchPath),
		git:      vcs.NewGitClient(),
		printer:  messages.New(g.out()),
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.MetricsFile != "" {
		s.prom = metrics.NewPrometheusRecorder(prom.NewRegistry())
		recorder = s.prom
	}

	cache, err := workcache.Open(cfg.CacheDir)
	if err != nil {
		return nil, err
	}
	s.cache = cache.WithRecorder(recorder)

	s.layout = sourcetree.Layout{
		SourceExt:     cfg.Compiler.SourceExt,
		IsWorkingCopy: s.git.IsWorkingCopy,
		InSearchPath:  s.resolver.IsSearchPathMember,
	}

	runner := process.NewExecRunner()
	driver := compiler.NewCommandDriver(cfg.Compiler.Command, runner)
	session := compiler.Session{
		Sysroot:   cfg.Sysroot,
		OptLevel:  cfg.Compiler.OptLevel,
		Target:    cfg.Compiler.Target,
		TargetCPU: cfg.Compiler.TargetCPU,
		Linker:    cfg.Compiler.Linker,
		ExtraArgs: cfg.Compiler.Args,
	}

	s.orch = build.NewOrchestrator(driver, buildscript.NewRunner(driver, runner, s.cache), s.cache).
		WithFallback(vcs.NewFallback(s.git, s.resolver).WithRecorder(recorder)).
		WithLayout(s.layout).
		WithSession(session).
		WithCfgs(cfg.Cfgs).
		WithCheckoutSubstitute(cfg.CheckoutSubstitute).
		WithRecorder(recorder)
	s.installer = install.NewInstaller(s.orch, s.cache, s.resolver).
		WithRunner(runner).
		WithPrinter(s.printer)
	s.registry = registry.New(s.resolver, s.orch.Platform()).WithCache(s.cache)

	slog.Debug("Configuration loaded",
		slog.Any("search_path", cfg.SearchPath),
		slog.String("cache_dir", cfg.CacheDir),
		slog.String("compiler", cfg.Compiler.Command))
	return s, nil
}

// close exports metrics and releases the cache. Failures are logged only.
func (s *stack) close() {
	if s.prom != nil {
		if err := metrics.WriteTextfile(s.prom.Registry(), s.cfg.MetricsFile); err != nil {
			slog.Warn("Failed to write metrics", logfields.Path(s.cfg.MetricsFile), logfields.Error(err))
		}
	}
	if err := s.cache.Close(); err != nil {
		slog.Warn("Failed to close cache", logfields.Error(err))
	}
}

// target is one package location a command acts on.
type target struct {
	source workspace.Workspace
	dest   workspace.Workspace
	id     pkgid.ID
	infer  bool
}

func (t target) locate(layout sourcetree.Layout) (*sourcetree.Tree, error) {
	return sourcetree.Locate(t.source, t.dest, t.infer, t.id, layout)
}

// targets resolves the package argument. An empty arg infers the package from
// the working directory: a directory under <ws>/src names its package, and a
// directory outside every workspace with a unit file at its top level is built
// as an ad-hoc package installed into the default workspace.
//
// A named package yields one target per workspace holding it. A package found
// in no workspace is tried as a version-controlled checkout below the working
// directory, then in the default workspace.
func (s *stack) targets(arg string) ([]target, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.RuntimeError("failed to determine working directory").WithCause(err).Build()
	}

	if arg == "" {
		return s.inferTarget(cwd)
	}

	id, err := pkgid.Parse(arg)
	if err != nil {
		return nil, err
	}
	def, err := s.resolver.DefaultWorkspace()
	if err != nil {
		return nil, err
	}

	found := s.resolver.WorkspacesContaining(id)
	if len(found) == 0 {
		local := workspace.New(cwd)
		if !s.resolver.IsInWorkspace(cwd) && s.git.IsWorkingCopy(vcs.SourcePath(local, id)) {
			return []target{{source: local, dest: def, id: id}}, nil
		}
		return []target{{source: def, dest: def, id: id}}, nil
	}

	out := make([]target, 0, len(found))
	for _, ws := range found {
		out = append(out, target{
			source: ws,
			dest:   s.resolver.DetermineDestination(cwd, s.cfg.UsePathHack, ws),
			id:     id,
			infer:  s.cfg.UsePathHack,
		})
	}
	return out, nil
}

func (s *stack) inferTarget(cwd string) ([]target, error) {
	if ws, id, ok := s.resolver.CwdToWorkspace(cwd); ok {
		return []target{{source: ws, dest: ws, id: id}}, nil
	}
	if !sourcetree.HasUnitFile(cwd, s.cfg.Compiler.SourceExt) {
		return nil, errors.ValidationError("no package given and the current directory is not a package").
			WithContext("cwd", cwd).
			UserAction().
			Build()
	}
	id, err := pkgid.New(filepath.Base(cwd))
	if err != nil {
		return nil, err
	}
	def, err := s.resolver.DefaultWorkspace()
	if err != nil {
		return nil, err
	}
	return []target{{source: workspace.New(cwd), dest: def, id: id, infer: true}}, nil
}
