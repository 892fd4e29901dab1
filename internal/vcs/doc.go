// Package vcs materializes version-controlled package sources that live outside
// every configured workspace.
//
// GitClient performs the checkout with go-git, copying objects and refs from
// the local working copy so no git binary or network transport is involved.
// Fallback wraps the one-hop policy: clone into the default workspace, mark
// the result read-only, and report failure as a CheckoutFailedError value
// that the build orchestrator decides how to handle.
package vcs
