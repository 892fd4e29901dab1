// Package readme extracts a short summary from a package's README.
package readme

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
)

// Names are the README file names looked up, in order.
var Names = []string{"README.md", "readme.md", "README.markdown", "README"}

// Summary is the title, first paragraph and link targets of a README.
type Summary struct {
	File        string
	Title       string
	Description string
	Links       []string
}

// Find returns the README in dir, if any.
func Find(dir string) (string, bool) {
	for _, name := range Names {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
	}
	return "", false
}

// Load summarizes the README in dir. It returns nil when there is none.
func Load(dir string) (*Summary, error) {
	p, ok := Find(dir)
	if !ok {
		return nil, nil
	}
	body, err := os.ReadFile(p) //nolint:gosec // path is inside the package directory
	if err != nil {
		return nil, errors.FileSystemError("failed to read README").WithCause(err).WithContext("path", p).Build()
	}
	s := Summarize(body)
	s.File = p
	return &s, nil
}

// Summarize parses body as Markdown. The title is the first level-one
// heading, or the first heading of any level; the description is the first
// paragraph.
func Summarize(body []byte) Summary {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	var s Summary
	titleLevel := 0
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			if titleLevel == 0 || (node.Level == 1 && titleLevel != 1) {
				s.Title = plainText(node, body)
				titleLevel = node.Level
			}
		case *gmast.Paragraph:
			if s.Description == "" {
				s.Description = plainText(node, body)
			}
		case *gmast.Link:
			s.Links = append(s.Links, string(node.Destination))
		case *gmast.AutoLink:
			s.Links = append(s.Links, string(node.URL(body)))
		}
		return gmast.WalkContinue, nil
	})
	return s
}

// plainText concatenates the text leaves under n.
func plainText(n gmast.Node, source []byte) string {
	var b strings.Builder
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(t.Value)
		case *gmast.AutoLink:
			b.Write(t.URL(source))
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
