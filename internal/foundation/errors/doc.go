// Package errors provides the classified error primitives used across wspkg.
//
// Every failure that reaches the command line is a ClassifiedError carrying a
// category (config, validation, not_found, git, build, filesystem, cache,
// runtime, internal), a severity and structured context. Package-level
// sentinels (for example sourcetree.ErrPackageNotFound) are attached as the
// cause so callers can still match them with errors.Is.
//
// Example usage:
//
//	err := errors.NotFoundError("package not found").
//		WithCause(sourcetree.ErrPackageNotFound).
//		WithContext("package", id.String()).
//		Build()
//
// CLIErrorAdapter maps categories to process exit codes and Guard turns a
// panic inside a command into an internal error.
package errors
