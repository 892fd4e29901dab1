// Package workcache memoizes named preparations keyed by a tag string.
//
// A preparation declares inputs up front, then runs a body that may discover
// further inputs and outputs. The tag, the declared inputs and every
// discovered entry are recorded together with the JSON-encoded result. A
// later preparation with the same tag is a hit when its declared inputs are
// identical and every recorded discovered input and output still has the same
// fingerprint; the body is then skipped and the recorded result returned.
//
// Two fingerprint methods exist: DigestOnlyDate (modification time only) for
// built artifacts and DigestFileWithDate (blake3 of the content plus
// modification time) for sources. Records live in SQLite. Preparations of one
// tag are serialized by an in-process mutex and, when a lock directory is
// configured, an advisory file lock.
package workcache
