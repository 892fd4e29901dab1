package build

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/wspkg/internal/buildscript"
	"git.home.luguber.info/inful/wspkg/internal/compiler"
	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/logfields"
	"git.home.luguber.info/inful/wspkg/internal/metrics"
	"git.home.luguber.info/inful/wspkg/internal/observability"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	"git.home.luguber.info/inful/wspkg/internal/sourcetree"
	"git.home.luguber.info/inful/wspkg/internal/vcs"
	"git.home.luguber.info/inful/wspkg/internal/workcache"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// Stage names used in logs and metrics.
const (
	StageFallback = "fallback"
	StageScript   = "build_script"
	StageDiscover = "discover"
	StageCompile  = "compile"
)

// Orchestrator builds located packages.
type Orchestrator struct {
	driver   compiler.Driver
	scripts  *buildscript.Runner
	cache    *workcache.Context
	fallback *vcs.Fallback

	layout     sourcetree.Layout
	platform   workspace.Platform
	session    compiler.Session
	cfgs       []string
	substitute string
	recorder   metrics.Recorder
}

// NewOrchestrator returns an Orchestrator compiling with driver, running
// build scripts with scripts and memoizing in cache.
func NewOrchestrator(driver compiler.Driver, scripts *buildscript.Runner, cache *workcache.Context) *Orchestrator {
	return &Orchestrator{
		driver:   driver,
		scripts:  scripts,
		cache:    cache,
		platform: workspace.HostPlatform(),
		recorder: metrics.NoopRecorder{},
	}
}

// WithFallback enables cloning of version-controlled sources outside the search path.
func (o *Orchestrator) WithFallback(f *vcs.Fallback) *Orchestrator {
	o.fallback = f
	return o
}

// WithLayout sets the source layout used when a fallback relocates the tree.
func (o *Orchestrator) WithLayout(l sourcetree.Layout) *Orchestrator {
	o.layout = l
	return o
}

// WithPlatform overrides the host platform's file name affixes.
func (o *Orchestrator) WithPlatform(p workspace.Platform) *Orchestrator {
	o.platform = p
	return o
}

// WithSession sets the compiler session for every unit.
func (o *Orchestrator) WithSession(s compiler.Session) *Orchestrator {
	o.session = s
	return o
}

// WithCfgs sets the statically configured flags.
func (o *Orchestrator) WithCfgs(cfgs []string) *Orchestrator {
	o.cfgs = append([]string(nil), cfgs...)
	return o
}

// WithCheckoutSubstitute sets the directory a build continues from when the
// source control fallback fails. Empty means a failed checkout aborts.
func (o *Orchestrator) WithCheckoutSubstitute(dir string) *Orchestrator {
	o.substitute = dir
	return o
}

// WithRecorder sets the metrics recorder.
func (o *Orchestrator) WithRecorder(r metrics.Recorder) *Orchestrator {
	o.recorder = metrics.OrNoop(r)
	return o
}

// Platform returns the platform artifact names are derived for.
func (o *Orchestrator) Platform() workspace.Platform { return o.platform }

// Session returns the compiler session.
func (o *Orchestrator) Session() compiler.Session { return o.session }

// Build builds tree according to what. tree may gain explicit units; after a
// source control fallback the returned Result holds the relocated tree.
func (o *Orchestrator) Build(ctx context.Context, tree *sourcetree.Tree, what What) (*Result, error) {
	start := time.Now()
	ctx = observability.WithPackage(ctx, tree.ID.String())
	observability.InfoContext(ctx, "Building package",
		logfields.Path(tree.StartDir),
		slog.String("type", what.Type.String()),
		slog.String("sources", what.Sources.String()))

	result := &Result{}
	res, err := o.build(ctx, tree, what, result)
	result.Duration = time.Since(start)
	if err != nil {
		o.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
		return nil, err
	}
	if res.Custom {
		o.recorder.IncBuildOutcome(metrics.BuildOutcomeCustom)
	} else {
		o.recorder.IncBuildOutcome(metrics.BuildOutcomeSuccess)
	}
	observability.InfoContext(ctx, "Package built",
		logfields.Count(len(res.Compiled)),
		logfields.DurationMS(float64(result.Duration.Microseconds())/1000))
	return res, nil
}

func (o *Orchestrator) build(ctx context.Context, tree *sourcetree.Tree, what What, result *Result) (*Result, error) {
	tree, err := o.resolveSource(ctx, tree, result)
	if err != nil {
		return nil, err
	}
	result.Tree = tree

	var scriptFlags []string
	script, hasScript := buildscript.Find(tree, o.platform)
	switch {
	case hasScript && what.Type == MaybeCustom:
		err = o.stage(ctx, StageScript, func(ctx context.Context) error {
			flags, err := o.scripts.Execute(ctx, script, o.session)
			scriptFlags = flags
			return err
		})
		if err != nil {
			return nil, err
		}
		result.Custom = true
	case hasScript:
		observability.DebugContext(ctx, "Ignoring build script for inferred build", logfields.Path(script.Path))
	}
	result.Cfgs = MergeFlags(scriptFlags, o.cfgs)
	if result.Custom {
		return result, nil
	}

	if err := o.stage(ctx, StageDiscover, func(context.Context) error {
		return o.discover(tree, what.Sources)
	}); err != nil {
		return nil, err
	}
	if !tree.HasUnits() {
		observability.WarnContext(ctx, "No build units found", logfields.Path(tree.StartDir))
	}

	err = o.stage(ctx, StageCompile, func(ctx context.Context) error {
		compiled, err := o.compileUnits(ctx, tree, result.Cfgs)
		result.Compiled = compiled
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveSource applies the source control fallback. A second fallback
// within one build is an internal error.
func (o *Orchestrator) resolveSource(ctx context.Context, tree *sourcetree.Tree, result *Result) (*sourcetree.Tree, error) {
	for o.fallback != nil && o.fallback.Applies(tree.SourceWorkspace, tree.ID) {
		if result.FallbackHops > 0 {
			return nil, errors.InternalError("source control fallback would repeat").
				WithCause(ErrFallbackLoop).
				WithContext("package", tree.ID.String()).
				WithContext("workspace", tree.SourceWorkspace.Root).
				Build()
		}
		result.FallbackHops++
		var next *sourcetree.Tree
		err := o.stage(ctx, StageFallback, func(ctx context.Context) error {
			var err error
			next, err = o.fallbackTree(ctx, tree)
			return err
		})
		if err != nil {
			return nil, err
		}
		tree = next
	}
	return tree, nil
}

func (o *Orchestrator) fallbackTree(ctx context.Context, tree *sourcetree.Tree) (*sourcetree.Tree, error) {
	def, outDir, err := o.fallback.Clone(ctx, tree.SourceWorkspace, tree.ID)
	if err == nil {
		return sourcetree.Locate(def, def, false, tree.ID, o.layout)
	}

	var failed *vcs.CheckoutFailedError
	if !stderrors.As(err, &failed) {
		return nil, err
	}
	if o.substitute == "" {
		return nil, errors.GitError("failed to check out package sources").
			WithCause(err).
			WithContext("package", tree.ID.String()).
			WithContext("path", failed.Path).
			WithContext("out_dir", outDir).
			Build()
	}
	observability.WarnContext(ctx, "Checkout failed, continuing from substitute directory",
		logfields.Path(failed.Path),
		logfields.Dest(o.substitute),
		logfields.Error(failed.Err))
	return sourcetree.LocateAt(def, def, tree.ID, o.substitute, o.layout)
}

func (o *Orchestrator) discover(tree *sourcetree.Tree, sources Sources) error {
	rel, one := sources.Path()
	switch {
	case one:
		role, err := sourcetree.Classify(rel, tree.SourceExt())
		if err != nil {
			return errors.ConfigError("not building any units for requested path").
				WithCause(ErrUnresolvedTarget).
				WithContext("package", tree.ID.String()).
				WithContext("path", rel).
				Build()
		}
		p := filepath.Join(tree.StartDir, filepath.FromSlash(rel))
		if fi, err := os.Stat(p); err != nil || fi.IsDir() {
			return errors.ConfigError("requested unit does not exist").
				WithCause(err).
				WithContext("package", tree.ID.String()).
				WithContext("path", p).
				Build()
		}
		tree.PushExplicitUnit(role, filepath.ToSlash(rel))
		return nil
	case sources.kind == sourcesTestsOnly:
		ext := tree.SourceExt()
		return tree.DiscoverUnits(func(rel string) bool {
			role, err := sourcetree.Classify(rel, ext)
			return err == nil && role == sourcetree.Test
		})
	default:
		return tree.DiscoverUnits(nil)
	}
}

func (o *Orchestrator) compileUnits(ctx context.Context, tree *sourcetree.Tree, cfgs []string) ([]CompiledUnit, error) {
	if err := tree.Validate(); err != nil {
		return nil, err
	}
	paths := workspace.PathsFor(tree.BuildWorkspace(), tree.ID, o.platform)
	units := tree.AllUnits()
	compiled := make([]CompiledUnit, 0, len(units))
	for _, u := range units {
		cu := CompiledUnit{Role: u.Role, Source: tree.UnitPath(u), Output: OutputPath(paths, u)}
		if err := o.compileUnit(ctx, tree.ID, cu, cfgs); err != nil {
			return compiled, err
		}
		compiled = append(compiled, cu)
	}
	return compiled, nil
}

// compileUnit compiles one unit unless the workcache holds a fresh build of
// the same source, output, flags and session.
func (o *Orchestrator) compileUnit(ctx context.Context, id pkgid.ID, cu CompiledUnit, cfgs []string) error {
	cfg := compiler.Config{Cfgs: cfgs}
	_, err := workcache.Prepare(ctx, o.cache, CompileTag(cu.Source, cu.Output, cfgs),
		func(p *workcache.Prep) {
			p.DeclareValue("session", o.session.Fingerprint())
			p.DeclareInput(workcache.KindFile, cu.Source, workcache.MethodFileWithDate)
		},
		func(exec *workcache.Exec) (string, error) {
			observability.InfoContext(ctx, "Compiling unit",
				logfields.Unit(cu.Source), logfields.Role(cu.Role.String()), logfields.Dest(cu.Output))
			unit, err := o.driver.ParseAndExpand(ctx, o.session, cfg, cu.Source)
			if err == nil {
				err = o.driver.CompileUnit(ctx, cu.Source, exec, compiler.ModeFor(cu.Role.String()), cu.Output, o.session, unit)
			}
			if err != nil {
				return "", err
			}
			o.recorder.IncUnitsCompiled(cu.Role.String())
			return cu.Output, nil
		})
	if err == nil {
		return nil
	}
	if errors.IsClassified(err) {
		return err
	}
	return errors.BuildError("failed to compile unit").
		WithCause(err).
		WithContext("package", id.String()).
		WithContext("unit", cu.Source).
		Build()
}

func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	sctx, span := observability.StartStage(ctx, name)
	err := fn(sctx)
	o.recorder.ObserveStageDuration(name, span.End(err))
	o.recorder.IncStageResult(name, metrics.ResultFor(err))
	return err
}

// OutputPath is where unit u of a package is compiled to. Units in
// subdirectories keep their directory under the build dir.
func OutputPath(paths workspace.Paths, u sourcetree.Unit) string {
	var out string
	switch u.Role {
	case sourcetree.Library:
		out = paths.BuiltLibrary
	case sourcetree.Test:
		out = paths.BuiltTest
	case sourcetree.Benchmark:
		out = paths.BuiltBench
	default:
		out = paths.BuiltExecutable
	}
	if dir := path.Dir(u.File); dir != "." {
		out = filepath.Join(paths.BuildDir, filepath.FromSlash(dir), filepath.Base(out))
	}
	return out
}

// CompileTag names the workcache preparation compiling source to output
// under cfgs.
func CompileTag(source, output string, cfgs []string) string {
	sorted := append([]string(nil), cfgs...)
	sort.Strings(sorted)
	return "compile(" + source + " -> " + output + " [" + strings.Join(sorted, " ") + "])"
}

// Clean removes the build directory of id in ws. It reports whether a
// directory was removed.
func (o *Orchestrator) Clean(ws workspace.Workspace, id pkgid.ID) (bool, error) {
	dir := workspace.PathsFor(ws, id, o.platform).BuildDir
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, errors.FileSystemError("failed to remove build directory").
			WithCause(err).
			WithContext("path", dir).
			Build()
	}
	return true, nil
}
