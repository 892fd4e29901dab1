package errors

// ErrorCategory groups failures by the exit code and message the CLI gives them.
type ErrorCategory string

const (
	// Bad input: configuration, command arguments, package identifiers.
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"

	// Source control fallback checkouts.
	CategoryGit ErrorCategory = "git"

	// Compiling, running build scripts and copying artifacts.
	CategoryBuild      ErrorCategory = "build"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryCache      ErrorCategory = "cache"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // aborts the command
	SeverityError   ErrorSeverity = "error"   // fails the current operation
	SeverityWarning ErrorSeverity = "warning" // logged, work continues
)

// RetryStrategy tells the user whether running the command again can help.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryBackoff    RetryStrategy = "backoff" // transient, e.g. a locked cache database
	RetryUserAction RetryStrategy = "user"    // fix the input first
)

// contextStack holds the goroutine stack of a recovered panic.
const contextStack = "stack"

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	str, ok := c[key].(string)
	return str, ok
}
