// Package workspace models wspkg workspaces and the ordered search path.
//
// A workspace is a directory with four fixed subdirectories: src/ holds
// package sources, lib/ and bin/ hold installed artifacts and build/ is
// per-package scratch space. The search path is read once at startup and
// passed to a Resolver; the first entry is the default workspace, which is
// where fallback clones and ad-hoc installs land.
//
// Every artifact location is derived from a (workspace, package) pair by
// the functions in paths.go, so the build, install and uninstall steps agree
// without sharing state.
package workspace
