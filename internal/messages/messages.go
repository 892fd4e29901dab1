// Package messages prints the short user-facing status lines of the CLI.
package messages

import (
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
)

type styler interface {
	Sprint(a ...any) string
}

var (
	colNote    styler = color.Info
	colWarn    styler = color.Warn
	colError   styler = color.Error
	colSuccess styler = color.HEX("#1976D2")
)

// Printer writes prefixed, colored lines to out.
type Printer struct {
	out   io.Writer
	quiet bool
}

// New returns a Printer writing to out. A nil out means stderr.
func New(out io.Writer) *Printer {
	if out == nil {
		out = os.Stderr
	}
	return &Printer{out: out}
}

// WithQuiet suppresses notes and successes; warnings and errors still print.
func (p *Printer) WithQuiet(quiet bool) *Printer {
	p.quiet = quiet
	return p
}

// Note prints an informational line.
func (p *Printer) Note(format string, a ...any) {
	if p.quiet {
		return
	}
	p.line(colNote, "note", format, a...)
}

// Success prints a completion line.
func (p *Printer) Success(format string, a ...any) {
	if p.quiet {
		return
	}
	p.line(colSuccess, "done", format, a...)
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, a ...any) {
	p.line(colWarn, "warning", format, a...)
}

// Error prints an error line.
func (p *Printer) Error(format string, a ...any) {
	p.line(colError, "error", format, a...)
}

func (p *Printer) line(s styler, prefix, format string, a ...any) {
	_, _ = fmt.Fprintf(p.out, "%s: %s\n", s.Sprint(prefix), fmt.Sprintf(format, a...))
}
