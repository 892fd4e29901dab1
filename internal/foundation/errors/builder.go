package errors

// ErrorBuilder assembles a ClassifiedError step by step:
//
//	errors.BuildError("compile failed").WithCause(err).WithContext("unit", rel).Build()
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error of category that fails the current operation and
// is not worth retrying. Prefer the per-category constructors below.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
	}}
}

// WithCause attaches the underlying error; errors.Is and errors.As see through it.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.err.cause = cause
	return b
}

// WithContext records key=value for logs and verbose output.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.severity = severity
	return b
}

func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.err.retry = strategy
	return b
}

// Fatal marks the error as aborting the command.
func (b *ErrorBuilder) Fatal() *ErrorBuilder { return b.WithSeverity(SeverityFatal) }

// Retryable marks the failure as transient.
func (b *ErrorBuilder) Retryable() *ErrorBuilder { return b.WithRetry(RetryBackoff) }

// UserAction marks the failure as fixable only by changing the input.
func (b *ErrorBuilder) UserAction() *ErrorBuilder { return b.WithRetry(RetryUserAction) }

// Build returns the error. The builder may be reused; each call yields a copy.
func (b *ErrorBuilder) Build() *ClassifiedError {
	err := b.err
	if len(b.err.context) > 0 {
		err.context = make(ErrorContext, len(b.err.context))
		for k, v := range b.err.context {
			err.context[k] = v
		}
	}
	return &err
}

// categoryDefaults gives every category its severity and retry strategy.
// Everything but cache errors aborts the command: a failed memoization
// lookup only costs a rebuild.
var categoryDefaults = map[ErrorCategory]struct {
	severity ErrorSeverity
	retry    RetryStrategy
}{
	CategoryConfig:     {SeverityFatal, RetryUserAction},
	CategoryValidation: {SeverityFatal, RetryUserAction},
	CategoryNotFound:   {SeverityFatal, RetryUserAction},
	CategoryGit:        {SeverityFatal, RetryNever},
	CategoryBuild:      {SeverityFatal, RetryNever},
	CategoryFileSystem: {SeverityFatal, RetryNever},
	CategoryCache:      {SeverityError, RetryBackoff},
	CategoryRuntime:    {SeverityFatal, RetryNever},
	CategoryInternal:   {SeverityFatal, RetryNever},
}

func forCategory(category ErrorCategory, message string) *ErrorBuilder {
	d := categoryDefaults[category]
	return NewError(category, message).WithSeverity(d.severity).WithRetry(d.retry)
}

// ConfigError reports bad configuration or flags.
func ConfigError(message string) *ErrorBuilder { return forCategory(CategoryConfig, message) }

// ValidationError reports a bad command argument such as a malformed package id.
func ValidationError(message string) *ErrorBuilder {
	return forCategory(CategoryValidation, message)
}

// NotFoundError reports a missing package or workspace entry.
func NotFoundError(message string) *ErrorBuilder { return forCategory(CategoryNotFound, message) }

func GitError(message string) *ErrorBuilder { return forCategory(CategoryGit, message) }

// BuildError reports a failed compile, build script or test run.
func BuildError(message string) *ErrorBuilder { return forCategory(CategoryBuild, message) }

func FileSystemError(message string) *ErrorBuilder {
	return forCategory(CategoryFileSystem, message)
}

// CacheError reports a memoization store failure.
func CacheError(message string) *ErrorBuilder { return forCategory(CategoryCache, message) }

func RuntimeError(message string) *ErrorBuilder { return forCategory(CategoryRuntime, message) }

// InternalError reports a bug, including recovered panics.
func InternalError(message string) *ErrorBuilder { return forCategory(CategoryInternal, message) }
