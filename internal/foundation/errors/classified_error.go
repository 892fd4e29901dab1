package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
)

// ClassifiedError is a failure with a category, a severity and structured
// context. The cause, if any, stays reachable through Unwrap.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.category, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.category, e.message)
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory      { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity      { return e.severity }
func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }
func (e *ClassifiedError) Message() string              { return e.message }
func (e *ClassifiedError) Cause() error                 { return e.cause }
func (e *ClassifiedError) Context() ErrorContext        { return e.context }

// CanRetry reports whether repeating the operation unchanged may succeed.
func (e *ClassifiedError) CanRetry() bool {
	return e.retry == RetryBackoff
}

// IsFatal reports whether the error aborts the command.
func (e *ClassifiedError) IsFatal() bool {
	return e.severity == SeverityFatal
}

// LogAttrs renders the error for structured logging: category, cause and
// every context key except the stack, in key order.
func (e *ClassifiedError) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("category", string(e.category))}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	keys := make([]string, 0, len(e.context))
	for k := range e.context {
		if k != contextStack {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.context[k]))
	}
	return attrs
}

// IsClassified checks if an error chain contains a ClassifiedError.
func IsClassified(err error) bool {
	_, ok := AsClassified(err)
	return ok
}

// AsClassified returns the outermost ClassifiedError in the chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory reports whether the outermost classified error has category.
func HasCategory(err error, category ErrorCategory) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.category == category
	}
	return false
}

// HasSeverity reports whether the outermost classified error has severity.
func HasSeverity(err error, severity ErrorSeverity) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.severity == severity
	}
	return false
}
