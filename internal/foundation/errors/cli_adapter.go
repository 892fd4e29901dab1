package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
)

// Exit codes returned by the wspkg CLI.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitValidation = 2
	ExitNotFound   = 3
	ExitConfig     = 7
	ExitExternal   = 8
	ExitInternal   = 10
	ExitBuild      = 11
	ExitRuntime    = 12
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	if classified, ok := AsClassified(err); ok {
		return exitCodeFromCategory(classified.Category())
	}
	return ExitGeneral
}

func exitCodeFromCategory(category ErrorCategory) int {
	switch category {
	case CategoryValidation:
		return ExitValidation
	case CategoryNotFound:
		return ExitNotFound
	case CategoryConfig:
		return ExitConfig
	case CategoryGit:
		return ExitExternal
	case CategoryBuild, CategoryFileSystem, CategoryCache:
		return ExitBuild
	case CategoryRuntime:
		return ExitRuntime
	case CategoryInternal:
		return ExitInternal
	default:
		return ExitGeneral
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return a.formatVerbose(classified)
	}
	if classified.Category() == CategoryInternal {
		return fmt.Sprintf("Internal error: %s (use -v for details)", classified.Message())
	}
	if classified.Cause() != nil {
		return fmt.Sprintf("Error: %s: %v", classified.Message(), classified.Cause())
	}
	return "Error: " + classified.Message()
}

func (a *CLIErrorAdapter) formatVerbose(err *ClassifiedError) string {
	var b strings.Builder
	b.WriteString(err.Error())
	for _, attr := range err.LogAttrs() {
		// Error() already carries both.
		if attr.Key == "category" || attr.Key == "cause" {
			continue
		}
		fmt.Fprintf(&b, "\n  %s: %v", attr.Key, attr.Value)
	}
	if stack, ok := err.Context().GetString(contextStack); ok {
		b.WriteString("\n")
		b.WriteString(stack)
	}
	return b.String()
}

// Guard runs fn and converts both returned errors and panics into an error.
// A panic becomes an internal error carrying the recovered value and stack.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = InternalError(fmt.Sprintf("unexpected failure: %v", r)).
				WithContext(contextStack, string(debug.Stack())).
				Build()
		}
	}()
	return fn()
}

// Run executes fn inside Guard and returns the exit code, reporting any failure.
func (a *CLIErrorAdapter) Run(fn func() error) int {
	err := Guard(fn)
	if err == nil {
		return ExitOK
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	return a.ExitCodeFor(err)
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	code := a.Run(func() error { return err })
	a.exit(code)
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.Severity() == SeverityFatal
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	if classified, ok := AsClassified(err); ok {
		level := slogLevelFromSeverity(classified.Severity())
		attrs := classified.LogAttrs()
		if classified.CanRetry() {
			attrs = append(attrs, slog.Bool("retryable", true))
		}
		a.logger.LogAttrs(context.Background(), level, classified.Message(), attrs...)
		return
	}
	a.logger.Error("Unclassified error", "error", err)
}

func slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
