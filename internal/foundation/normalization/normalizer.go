// Package normalization maps loosely written configuration strings onto
// closed value sets.
package normalization

import (
	"sort"
	"strings"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
)

// Normalizer maps case- and whitespace-insensitive keys to values of T.
type Normalizer[T comparable] struct {
	name         string
	validValues  map[string]T
	defaultValue T
	validKeys    []string // canonical spellings, sorted
}

// NewNormalizer builds a normalizer for the setting called name.
func NewNormalizer[T comparable](name string, values map[string]T, defaultValue T) *Normalizer[T] {
	n := &Normalizer[T]{
		name:         name,
		validValues:  make(map[string]T, len(values)),
		defaultValue: defaultValue,
		validKeys:    make([]string, 0, len(values)),
	}
	for k, v := range values {
		key := clean(k)
		n.validValues[key] = v
		n.validKeys = append(n.validKeys, key)
	}
	sort.Strings(n.validKeys)
	return n
}

// WithAlias accepts alias as another spelling of the value behind key.
// Aliases are not listed by ValidKeys.
func (n *Normalizer[T]) WithAlias(alias, key string) *Normalizer[T] {
	if v, ok := n.validValues[clean(key)]; ok {
		n.validValues[clean(alias)] = v
	}
	return n
}

// Lookup returns the value for raw and whether raw is recognized.
func (n *Normalizer[T]) Lookup(raw string) (T, bool) {
	v, ok := n.validValues[clean(raw)]
	return v, ok
}

// Normalize returns the value for raw, or the default when raw is unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.Lookup(raw); ok {
		return v
	}
	return n.defaultValue
}

// Validate returns a config error naming the valid keys when raw is unknown.
func (n *Normalizer[T]) Validate(raw string) error {
	if _, ok := n.Lookup(raw); ok {
		return nil
	}
	return errors.ConfigError("invalid "+n.name).
		WithContext(n.name, raw).
		WithContext("valid", strings.Join(n.validKeys, ", ")).
		Build()
}

// ValidKeys returns the canonical keys in sorted order.
func (n *Normalizer[T]) ValidKeys() []string {
	return append([]string(nil), n.validKeys...)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
