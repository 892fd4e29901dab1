package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryBuild, "compile failed").Build()

		require.Equal(t, CategoryBuild, err.Category())
		require.Equal(t, SeverityError, err.Severity())
		require.Equal(t, RetryNever, err.RetryStrategy())
		require.False(t, err.IsFatal())
		require.Equal(t, "[build] compile failed", err.Error())
	})

	t.Run("Cause keeps sentinels visible", func(t *testing.T) {
		sentinel := stderrors.New("package not found")
		err := NotFoundError("cannot locate hello").WithCause(sentinel).Build()

		require.ErrorIs(t, err, sentinel)
		require.Equal(t, sentinel, err.Cause())
		require.Equal(t, "[not_found] cannot locate hello: package not found", err.Error())
	})

	t.Run("AsClassified finds wrapped errors", func(t *testing.T) {
		inner := GitError("checkout failed").WithContext("path", "foo/bar").Build()
		wrapped := fmt.Errorf("install: %w", inner)

		got, ok := AsClassified(wrapped)
		require.True(t, ok)
		require.Same(t, inner, got)
		require.True(t, HasCategory(wrapped, CategoryGit))
		require.True(t, HasSeverity(wrapped, SeverityFatal))
		path, ok := got.Context().GetString("path")
		require.True(t, ok)
		require.Equal(t, "foo/bar", path)
	})

	t.Run("Unclassified errors", func(t *testing.T) {
		err := stderrors.New("plain")
		require.False(t, IsClassified(err))
		require.False(t, HasCategory(err, CategoryInternal))
		require.False(t, HasSeverity(err, SeverityError))
	})

	t.Run("LogAttrs orders context and skips the stack", func(t *testing.T) {
		err := BuildError("link failed").
			WithCause(stderrors.New("exit 1")).
			WithContext("unit", "main.rs").
			WithContext("package", "hello").
			WithContext(contextStack, "goroutine 1").
			Build()

		var keys []string
		for _, attr := range err.LogAttrs() {
			keys = append(keys, attr.Key)
		}
		require.Equal(t, []string{"category", "cause", "package", "unit"}, keys)
	})
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name     string
		builder  *ErrorBuilder
		category ErrorCategory
		severity ErrorSeverity
		retry    RetryStrategy
	}{
		{"ConfigError", ConfigError("test"), CategoryConfig, SeverityFatal, RetryUserAction},
		{"ValidationError", ValidationError("test"), CategoryValidation, SeverityFatal, RetryUserAction},
		{"NotFoundError", NotFoundError("test"), CategoryNotFound, SeverityFatal, RetryUserAction},
		{"GitError", GitError("test"), CategoryGit, SeverityFatal, RetryNever},
		{"BuildError", BuildError("test"), CategoryBuild, SeverityFatal, RetryNever},
		{"FileSystemError", FileSystemError("test"), CategoryFileSystem, SeverityFatal, RetryNever},
		{"CacheError", CacheError("test"), CategoryCache, SeverityError, RetryBackoff},
		{"RuntimeError", RuntimeError("test"), CategoryRuntime, SeverityFatal, RetryNever},
		{"InternalError", InternalError("test"), CategoryInternal, SeverityFatal, RetryNever},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder.Build()
			require.Equal(t, tt.category, err.Category())
			require.Equal(t, tt.severity, err.Severity())
			require.Equal(t, tt.retry, err.RetryStrategy())
			require.Equal(t, tt.retry == RetryBackoff, err.CanRetry())
		})
	}
}

func TestErrorContext(t *testing.T) {
	var ctx ErrorContext
	ctx = ctx.Set("workspace", "/ws").Set("unit", "lib.rs")

	v, ok := ctx.GetString("workspace")
	require.True(t, ok)
	require.Equal(t, "/ws", v)

	ctx = ctx.Set("units", 3)
	_, ok = ctx.GetString("units")
	require.False(t, ok)
	n, ok := ctx.Get("units")
	require.True(t, ok)
	require.Equal(t, 3, n)

	_, exists := ctx.Get("missing")
	require.False(t, exists)
}
