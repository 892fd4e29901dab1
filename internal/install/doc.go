// Package install copies built artifacts into a destination workspace and
// records their provenance in the workcache, so reinstalling an unchanged
// package copies nothing.
package install
