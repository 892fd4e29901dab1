package install

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/wspkg/internal/build"
	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/logfields"
	"git.home.luguber.info/inful/wspkg/internal/messages"
	"git.home.luguber.info/inful/wspkg/internal/observability"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	"git.home.luguber.info/inful/wspkg/internal/process"
	"git.home.luguber.info/inful/wspkg/internal/sourcetree"
	"git.home.luguber.info/inful/wspkg/internal/workcache"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// Input is one source file an installed package was built from.
type Input struct {
	Kind workcache.Kind `json:"kind"`
	Path string         `json:"path"`
}

// Manifest describes one completed install.
type Manifest struct {
	InstalledPaths []string `json:"installed_paths"`
	DeclaredInputs []Input  `json:"declared_inputs"`
}

// Copier copies the file src to dst. dst's directory exists.
type Copier func(src, dst string) error

// Installer builds packages and installs their artifacts.
type Installer struct {
	orch     *build.Orchestrator
	cache    *workcache.Context
	resolver *workspace.Resolver
	runner   process.Runner
	copy     Copier
	printer  *messages.Printer
}

// NewInstaller returns an Installer building through orch.
func NewInstaller(orch *build.Orchestrator, cache *workcache.Context, resolver *workspace.Resolver) *Installer {
	return &Installer{
		orch:     orch,
		cache:    cache,
		resolver: resolver,
		runner:   process.NewExecRunner(),
		copy:     CopyFile,
		printer:  messages.New(io.Discard),
	}
}

// WithRunner sets the runner used for test executables.
func (i *Installer) WithRunner(r process.Runner) *Installer {
	i.runner = r
	return i
}

// WithCopier replaces the artifact copy function.
func (i *Installer) WithCopier(c Copier) *Installer {
	i.copy = c
	return i
}

// WithPrinter sets where user-facing notes go.
func (i *Installer) WithPrinter(p *messages.Printer) *Installer {
	i.printer = p
	return i
}

type artifact struct {
	src string
	dst string
}

// InstallNoBuild copies the built executable and library of id from buildWS
// into destWS. The copy is memoized under id's install tag: destWS and the
// built artifacts are declared inputs, the build inputs and artifacts are
// discovered inputs and the copies are discovered outputs. It returns the
// installed paths.
func (i *Installer) InstallNoBuild(ctx context.Context, buildWS workspace.Workspace, buildInputs []string, destWS workspace.Workspace, id pkgid.ID) ([]string, error) {
	plat := i.orch.Platform()
	built := workspace.PathsFor(buildWS, id, plat)
	target := workspace.PathsFor(destWS, id, plat)

	var artifacts []artifact
	if isFile(built.BuiltExecutable) {
		artifacts = append(artifacts, artifact{src: built.BuiltExecutable, dst: target.TargetExecutable})
	}
	if isFile(built.BuiltLibrary) {
		artifacts = append(artifacts, artifact{src: built.BuiltLibrary, dst: target.TargetLibrary})
	}
	observability.DebugContext(ctx, "Installing artifacts",
		logfields.Package(id.String()),
		logfields.Workspace(buildWS.Root),
		logfields.Dest(destWS.Root),
		logfields.Count(len(artifacts)))

	return workcache.Prepare(ctx, i.cache, id.InstallTag(),
		func(p *workcache.Prep) {
			p.DeclareValue("dest", destWS.Root)
			for _, a := range artifacts {
				p.DeclareInput(workcache.KindBinary, a.src, workcache.MethodDate)
			}
		},
		func(exec *workcache.Exec) ([]string, error) {
			for _, a := range artifacts {
				exec.DiscoverInput(workcache.KindBinary, a.src, workcache.MethodDate)
			}
			for _, in := range buildInputs {
				exec.DiscoverInput(workcache.KindFile, in, workcache.MethodFileWithDate)
			}
			installed := make([]string, 0, len(artifacts))
			for _, a := range artifacts {
				if err := i.copyArtifact(a); err != nil {
					return nil, err
				}
				observability.DebugContext(ctx, "Copied artifact", logfields.Path(a.src), logfields.Dest(a.dst))
				exec.DiscoverOutput(workcache.KindBinary, a.dst, workcache.MethodDate)
				installed = append(installed, a.dst)
			}
			return installed, exec.Err()
		})
}

func (i *Installer) copyArtifact(a artifact) error {
	if err := os.MkdirAll(filepath.Dir(a.dst), 0o750); err != nil {
		return errors.FileSystemError("failed to create install directory").
			WithCause(err).
			WithContext("source", a.src).
			WithContext("dest", a.dst).
			Build()
	}
	if err := i.copy(a.src, a.dst); err != nil {
		return errors.FileSystemError("failed to copy artifact").
			WithCause(err).
			WithContext("source", a.src).
			WithContext("dest", a.dst).
			Build()
	}
	return nil
}

// Install builds tree and installs its artifacts into its destination
// workspace. Every unit source is recorded as a build input.
func (i *Installer) Install(ctx context.Context, tree *sourcetree.Tree, what build.What) (*Manifest, error) {
	res, err := i.orch.Build(ctx, tree, what)
	if err != nil {
		return nil, err
	}
	tree = res.Tree

	units := tree.AllUnits()
	manifest := &Manifest{DeclaredInputs: make([]Input, 0, len(units))}
	buildInputs := make([]string, 0, len(units))
	for _, u := range units {
		p := tree.UnitPath(u)
		manifest.DeclaredInputs = append(manifest.DeclaredInputs, Input{Kind: workcache.KindFile, Path: p})
		buildInputs = append(buildInputs, p)
	}

	installed, err := i.InstallNoBuild(ctx, tree.BuildWorkspace(), buildInputs, tree.DestinationWorkspace, tree.ID)
	if err != nil {
		return nil, err
	}
	manifest.InstalledPaths = installed
	i.printer.Note("Installed package %s to %s", tree.ID, tree.DestinationWorkspace)
	return manifest, nil
}

// Uninstall removes the installed artifacts of id from every search path
// workspace holding them. It returns the removed paths.
func (i *Installer) Uninstall(ctx context.Context, id pkgid.ID) ([]string, error) {
	plat := i.orch.Platform()
	var removed []string
	for _, ws := range i.resolver.SearchPath() {
		if !workspace.IsInstalledIn(ws, id, plat) {
			continue
		}
		paths, err := workspace.UninstallFrom(ws, id, plat)
		removed = append(removed, paths...)
		if err != nil {
			return removed, errors.FileSystemError("failed to uninstall package").
				WithCause(err).
				WithContext("package", id.String()).
				WithContext("workspace", ws.Root).
				Build()
		}
		if err := i.cache.Invalidate(ctx, id.InstallTag()); err != nil {
			observability.WarnContext(ctx, "Failed to drop install record", logfields.Tag(id.InstallTag()), logfields.Error(err))
		}
		i.printer.Note("Uninstalled package %s from %s", id, ws)
	}
	if len(removed) == 0 {
		return nil, errors.NotFoundError("package is not installed").
			WithContext("package", id.String()).
			Build()
	}
	return removed, nil
}

// RunTests runs the built test executable of id in ws with --test.
func (i *Installer) RunTests(ctx context.Context, id pkgid.ID, ws workspace.Workspace) error {
	exe := workspace.PathsFor(ws, id, i.orch.Platform()).BuiltTest
	if !isFile(exe) {
		return errors.InternalError("test executable was not built").
			WithContext("package", id.String()).
			WithContext("workspace", ws.Root).
			WithContext("path", exe).
			Build()
	}
	res, err := i.runner.Run(ctx, process.Command{
		Program: exe,
		Args:    []string{"--test"},
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	})
	if err != nil {
		return errors.RuntimeError("failed to run tests").
			WithCause(err).
			WithContext("package", id.String()).
			WithContext("program", exe).
			Build()
	}
	if !res.Status.Success() {
		return errors.BuildError("some tests failed").
			WithContext("package", id.String()).
			WithContext("status", res.Status.String()).
			Build()
	}
	return nil
}

// CopyFile copies src to dst, keeping src's permission bits.
func CopyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // artifact paths are derived from workspace layout
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm()) //nolint:gosec // see above
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
