// Package build drives the build of one located package.
//
// The Orchestrator walks a fixed sequence of states: it resolves the source
// tree, clones version-controlled sources found outside the search path into
// the default workspace (at most once per build), detects a custom build
// script, and then either runs the script or infers the package's units and
// compiles each of them through the compiler driver.
//
// Install, test and the CLI all route builds through the Orchestrator.
package build
