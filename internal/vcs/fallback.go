package vcs

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/wspkg/internal/logfields"
	"git.home.luguber.info/inful/wspkg/internal/metrics"
	"git.home.luguber.info/inful/wspkg/internal/observability"
	"git.home.luguber.info/inful/wspkg/internal/pkgid"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// ErrCheckoutFailed matches every CheckoutFailedError via errors.Is.
var ErrCheckoutFailed = stderrors.New("source checkout failed")

// CheckoutFailedError reports a failed fallback clone of Path into OutDir.
type CheckoutFailedError struct {
	Path   string
	OutDir string
	Err    error
}

func (e *CheckoutFailedError) Error() string {
	return fmt.Sprintf("checkout of %s into %s failed: %v", e.Path, e.OutDir, e.Err)
}

func (e *CheckoutFailedError) Unwrap() []error {
	return []error{ErrCheckoutFailed, e.Err}
}

// Fallback clones version-controlled sources found outside the search path
// into the default workspace.
type Fallback struct {
	client   Client
	resolver *workspace.Resolver
	recorder metrics.Recorder
}

// NewFallback returns a fallback using client and the search path in resolver.
func NewFallback(client Client, resolver *workspace.Resolver) *Fallback {
	return &Fallback{client: client, resolver: resolver, recorder: metrics.NoopRecorder{}}
}

// WithRecorder sets the metrics recorder.
func (f *Fallback) WithRecorder(r metrics.Recorder) *Fallback {
	f.recorder = metrics.OrNoop(r)
	return f
}

// SourcePath is the working copy location the fallback clones from.
func SourcePath(sourceWS workspace.Workspace, id pkgid.ID) string {
	return filepath.Join(sourceWS.Root, filepath.FromSlash(id.Path()))
}

// Applies reports whether sourceWS lies outside the search path and holds
// id as a working copy.
func (f *Fallback) Applies(sourceWS workspace.Workspace, id pkgid.ID) bool {
	if f.resolver.IsSearchPathMember(sourceWS) {
		return false
	}
	return f.client.IsWorkingCopy(SourcePath(sourceWS, id))
}

// OutDir is where id is cloned: <default workspace>/src/<path>.
func (f *Fallback) OutDir(id pkgid.ID) (workspace.Workspace, string, error) {
	def, err := f.resolver.DefaultWorkspace()
	if err != nil {
		return workspace.Workspace{}, "", err
	}
	return def, filepath.Join(def.Src(), filepath.FromSlash(id.Path())), nil
}

// Clone checks id.Version out of the working copy into the default workspace
// and marks the result read-only. Checkout failures are returned as
// *CheckoutFailedError.
func (f *Fallback) Clone(ctx context.Context, sourceWS workspace.Workspace, id pkgid.ID) (workspace.Workspace, string, error) {
	def, outDir, err := f.OutDir(id)
	if err != nil {
		return workspace.Workspace{}, "", err
	}
	src := SourcePath(sourceWS, id)
	observability.InfoContext(ctx, "Cloning package into default workspace",
		logfields.Path(src), logfields.Dest(outDir), logfields.Version(id.Version()))

	if err := f.client.Checkout(ctx, src, id.Version(), outDir); err != nil {
		f.recorder.IncFallbackClone(false)
		return def, outDir, &CheckoutFailedError{Path: src, OutDir: outDir, Err: err}
	}
	if err := f.client.SetTreeReadOnly(outDir); err != nil {
		f.recorder.IncFallbackClone(false)
		return def, outDir, &CheckoutFailedError{Path: src, OutDir: outDir, Err: err}
	}
	f.recorder.IncFallbackClone(true)
	return def, outDir, nil
}
