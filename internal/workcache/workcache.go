package workcache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"lukechampine.com/blake3"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/logfields"
	"git.home.luguber.info/inful/wspkg/internal/metrics"
)

const (
	databaseFile    = "workcache.db"
	locksDir        = "locks"
	digestCacheSize = 4096
)

type digestKey struct {
	path  string
	mtime int64
	size  int64
}

// Context is the memoization engine shared by one wspkg invocation.
type Context struct {
	store    Store
	lockDir  string
	recorder metrics.Recorder

	mu       sync.Mutex
	tagLocks map[string]*sync.Mutex

	digests *lru.Cache[digestKey, string]
}

// New returns a Context backed by store.
func New(store Store) *Context {
	digests, _ := lru.New[digestKey, string](digestCacheSize)
	return &Context{
		store:    store,
		recorder: metrics.NoopRecorder{},
		tagLocks: make(map[string]*sync.Mutex),
		digests:  digests,
	}
}

// Open creates the cache directory and opens its SQLite database and lock directory.
func Open(cacheDir string) (*Context, error) {
	lockDir := filepath.Join(cacheDir, locksDir)
	if err := os.MkdirAll(lockDir, 0o750); err != nil {
		return nil, errors.CacheError("failed to create cache directory").
			WithCause(err).
			WithContext("path", cacheDir).
			Build()
	}
	store, err := NewSQLiteStore(filepath.Join(cacheDir, databaseFile))
	if err != nil {
		return nil, errors.CacheError("failed to open cache database").
			WithCause(err).
			WithContext("path", cacheDir).
			Build()
	}
	return New(store).WithLockDir(lockDir), nil
}

// WithLockDir enables cross-process file locks under dir.
func (c *Context) WithLockDir(dir string) *Context {
	c.lockDir = dir
	return c
}

// WithRecorder sets the metrics recorder.
func (c *Context) WithRecorder(r metrics.Recorder) *Context {
	c.recorder = metrics.OrNoop(r)
	return c
}

// Store returns the underlying record store.
func (c *Context) Store() Store { return c.store }

// Close releases the store.
func (c *Context) Close() error { return c.store.Close() }

// Invalidate drops the record for tag so the next preparation runs its body.
func (c *Context) Invalidate(ctx context.Context, tag string) error {
	return c.store.Delete(ctx, tag)
}

// fingerprint computes method over path, reusing content digests of unchanged files.
func (c *Context) fingerprint(method Method, path string) (string, error) {
	switch method {
	case MethodDate:
		return DigestOnlyDate(path)
	case MethodFileWithDate:
		fi, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		key := digestKey{path: path, mtime: fi.ModTime().UnixNano(), size: fi.Size()}
		if d, ok := c.digests.Get(key); ok {
			return d, nil
		}
		d, err := DigestFileWithDate(path)
		if err != nil {
			return "", err
		}
		c.digests.Add(key, d)
		return d, nil
	default:
		return "", fmt.Errorf("unknown fingerprint method %q", method)
	}
}

func (c *Context) entry(kind Kind, name string, method Method) (Entry, error) {
	fp, err := c.fingerprint(method, name)
	if err != nil {
		return Entry{}, errors.FileSystemError("failed to fingerprint build input").
			WithCause(err).
			WithContext("path", name).
			WithContext("kind", string(kind)).
			Build()
	}
	return Entry{Kind: kind, Name: name, Method: method, Fingerprint: fp}, nil
}

// stillValid reports whether every entry still has its recorded fingerprint.
func (c *Context) stillValid(entries []Entry) bool {
	for _, e := range entries {
		if e.Method == MethodValue {
			continue
		}
		fp, err := c.fingerprint(e.Method, e.Name)
		if err != nil || fp != e.Fingerprint {
			return false
		}
	}
	return true
}

func (c *Context) fresh(rec *Record, declared []Entry) bool {
	if !sameEntries(rec.DeclaredInputs, declared) {
		return false
	}
	return c.stillValid(rec.DiscoveredInputs) && c.stillValid(rec.DiscoveredOutputs)
}

func sameEntries(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	key := func(e Entry) string {
		return string(e.Kind) + "\x00" + e.Name + "\x00" + string(e.Method) + "\x00" + e.Fingerprint
	}
	ka := make([]string, len(a))
	kb := make([]string, len(b))
	for i := range a {
		ka[i], kb[i] = key(a[i]), key(b[i])
	}
	slices.Sort(ka)
	slices.Sort(kb)
	return slices.Equal(ka, kb)
}

// lock serializes preparations of tag within the process and, with a lock
// directory, across processes.
func (c *Context) lock(tag string) (func(), error) {
	c.mu.Lock()
	m, ok := c.tagLocks[tag]
	if !ok {
		m = &sync.Mutex{}
		c.tagLocks[tag] = m
	}
	c.mu.Unlock()

	m.Lock()
	if c.lockDir == "" {
		return m.Unlock, nil
	}
	sum := blake3.Sum256([]byte(tag))
	release, err := lockFile(filepath.Join(c.lockDir, hex.EncodeToString(sum[:8])+".lock"))
	if err != nil {
		m.Unlock()
		return nil, errors.CacheError("failed to lock preparation").WithCause(err).WithContext("tag", tag).Build()
	}
	return func() {
		release()
		m.Unlock()
	}, nil
}

// Prep collects the inputs declared before a preparation body runs.
type Prep struct {
	c        *Context
	declared []Entry
	err      error
}

// DeclareInput records name as an input fingerprinted by method.
func (p *Prep) DeclareInput(kind Kind, name string, method Method) {
	if p.err != nil {
		return
	}
	e, err := p.c.entry(kind, name, method)
	if err != nil {
		p.err = err
		return
	}
	p.declared = append(p.declared, e)
}

// DeclareValue records a setting as an input. A preparation recorded with a
// different value for name is stale.
func (p *Prep) DeclareValue(name, value string) {
	p.declared = append(p.declared, Entry{Kind: KindSetting, Name: name, Method: MethodValue, Fingerprint: value})
}

// Exec collects inputs and outputs discovered while a preparation body runs.
type Exec struct {
	c       *Context
	inputs  []Entry
	outputs []Entry
	err     error
}

// DiscoverInput records name as an input found during execution.
func (e *Exec) DiscoverInput(kind Kind, name string, method Method) {
	if e == nil || e.err != nil {
		return
	}
	entry, err := e.c.entry(kind, name, method)
	if err != nil {
		e.err = err
		return
	}
	e.inputs = append(e.inputs, entry)
}

// DiscoverOutput records name as an output produced during execution.
func (e *Exec) DiscoverOutput(kind Kind, name string, method Method) {
	if e == nil || e.err != nil {
		return
	}
	entry, err := e.c.entry(kind, name, method)
	if err != nil {
		e.err = err
		return
	}
	e.outputs = append(e.outputs, entry)
}

// Err returns the first discovery failure.
func (e *Exec) Err() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Prepare runs the preparation named tag. declare may be nil. When the
// recorded preparation is still fresh the body is skipped and the recorded
// result returned. Failed bodies are not recorded.
func Prepare[T any](ctx context.Context, c *Context, tag string, declare func(*Prep), body func(*Exec) (T, error)) (T, error) {
	var zero T
	unlock, err := c.lock(tag)
	if err != nil {
		return zero, err
	}
	defer unlock()

	prep := &Prep{c: c}
	if declare != nil {
		declare(prep)
	}
	if prep.err != nil {
		return zero, prep.err
	}

	rec, found, err := c.store.Load(ctx, tag)
	if err != nil {
		return zero, errors.CacheError("failed to load preparation").WithCause(err).WithContext("tag", tag).Build()
	}
	if found && c.fresh(rec, prep.declared) {
		var v T
		if err := json.Unmarshal(rec.Result, &v); err == nil {
			c.recorder.IncCacheLookup(true)
			slog.Debug("Preparation is fresh", logfields.Tag(tag), logfields.CacheHit(true))
			return v, nil
		}
	}
	c.recorder.IncCacheLookup(false)
	slog.Debug("Running preparation", logfields.Tag(tag), logfields.CacheHit(false))

	exec := &Exec{c: c}
	v, err := body(exec)
	if err != nil {
		return zero, err
	}
	if exec.err != nil {
		return zero, exec.err
	}

	result, err := json.Marshal(v)
	if err != nil {
		return zero, errors.InternalError("failed to encode preparation result").WithCause(err).WithContext("tag", tag).Build()
	}
	err = c.store.Save(ctx, &Record{
		Tag:               tag,
		DeclaredInputs:    prep.declared,
		DiscoveredInputs:  exec.inputs,
		DiscoveredOutputs: exec.outputs,
		Result:            result,
	})
	if err != nil {
		return zero, errors.CacheError("failed to record preparation").WithCause(err).WithContext("tag", tag).Build()
	}
	return v, nil
}
