// Package pkgid parses and renders package identifiers of the form path#version.
package pkgid

import (
	"encoding/hex"
	stderrors "errors"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
	"lukechampine.com/blake3"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
)

// ErrMalformed is the cause attached to every identifier parse failure.
var ErrMalformed = stderrors.New("malformed package identifier")

// DefaultVersion is used in artifact names when an identifier carries no version.
const DefaultVersion = "0.0"

const versionSeparator = "#"

// ID identifies a package by logical path and optional version.
// Two IDs are equal when Path and Version match; Name is derived.
type ID struct {
	path    string
	name    string
	version string
}

// Parse splits an optional #version suffix from text.
func Parse(text string) (ID, error) {
	p, v, hasVersion := strings.Cut(text, versionSeparator)
	p = strings.Trim(norm.NFC.String(p), "/")
	if p == "" {
		return ID{}, malformed(text, "empty package path")
	}
	if hasVersion {
		if v == "" {
			return ID{}, malformed(text, "empty version after '#'")
		}
		if strings.Contains(v, versionSeparator) {
			return ID{}, malformed(text, "version must not contain '#'")
		}
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ID{}, malformed(text, "invalid path segment")
		}
	}
	return ID{path: p, name: path.Base(p), version: v}, nil
}

// MustParse is Parse for constant inputs; it panics on error.
func MustParse(text string) ID {
	id, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return id
}

// New builds an unversioned identifier for path.
func New(p string) (ID, error) {
	if strings.Contains(p, versionSeparator) {
		return ID{}, malformed(p, "path must not contain '#'")
	}
	return Parse(p)
}

func malformed(text, reason string) error {
	return errors.ValidationError(reason).
		WithCause(ErrMalformed).
		WithContext("input", text).
		Build()
}

// Path returns the logical path.
func (id ID) Path() string { return id.path }

// Name returns the short name, by default the last path segment.
func (id ID) Name() string { return id.name }

// Version returns the version tag, empty when absent.
func (id ID) Version() string { return id.version }

// HasVersion reports whether a version tag is present.
func (id ID) HasVersion() bool { return id.version != "" }

// VersionOrDefault returns the version, or DefaultVersion when absent.
func (id ID) VersionOrDefault() string {
	if id.version == "" {
		return DefaultVersion
	}
	return id.version
}

// IsZero reports whether id was never parsed.
func (id ID) IsZero() bool { return id.path == "" }

// WithVersion returns a copy of id carrying version v. Like Parse it
// rejects versions containing '#', which would make InstallTag ambiguous.
func (id ID) WithVersion(v string) (ID, error) {
	if strings.Contains(v, versionSeparator) {
		return ID{}, malformed(id.path+versionSeparator+v, "version must not contain '#'")
	}
	id.version = v
	return id, nil
}

// WithName returns a copy of id whose short name is n.
func (id ID) WithName(n string) ID {
	id.name = n
	return id
}

// Equal compares path and version; name overrides are ignored.
func (id ID) Equal(o ID) bool {
	return id.path == o.path && id.version == o.version
}

// String renders path#version, or path when no version is set.
func (id ID) String() string {
	if id.version == "" {
		return id.path
	}
	return id.path + versionSeparator + id.version
}

// InstallTag is the memoization tag for installing this package.
func (id ID) InstallTag() string {
	return "install:" + id.String()
}

// Hash is a short stable digest of String, used in library file names.
func (id ID) Hash() string {
	sum := blake3.Sum256([]byte(id.String()))
	return hex.EncodeToString(sum[:4])
}
