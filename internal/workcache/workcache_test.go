package workcache

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryContext(t *testing.T) *Context {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	c := New(store)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// touch moves the modification time forward so date fingerprints change.
func touch(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	ts := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestDigests(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.rs")
	writeFile(t, p, "one")

	d1, err := DigestOnlyDate(p)
	require.NoError(t, err)
	f1, err := DigestFileWithDate(p)
	require.NoError(t, err)
	assert.Contains(t, f1, "@"+d1)

	ts := time.Now().Add(-time.Hour)
	require.NoError(t, os.WriteFile(p, []byte("two"), 0o600))
	require.NoError(t, os.Chtimes(p, ts, ts))
	f2, err := DigestFileWithDate(p)
	require.NoError(t, err)
	assert.NotEqual(t, f1, f2)

	_, err = DigestOnlyDate(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestPrepareMemoizes(t *testing.T) {
	c := newMemoryContext(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "main.rs")
	out := filepath.Join(dir, "out", "main")
	writeFile(t, src, "fn main() {}")

	var runs int
	run := func() (string, error) {
		return Prepare(t.Context(), c, "compile:main", func(p *Prep) {
			p.DeclareInput(KindFile, src, MethodFileWithDate)
		}, func(e *Exec) (string, error) {
			runs++
			writeFile(t, out, "binary")
			e.DiscoverOutput(KindBinary, out, MethodDate)
			return out, nil
		})
	}

	got, err := run()
	require.NoError(t, err)
	assert.Equal(t, out, got)
	got, err = run()
	require.NoError(t, err)
	assert.Equal(t, out, got)
	assert.Equal(t, 1, runs, "second preparation must be a hit")

	// changed source content invalidates
	writeFile(t, src, "fn main() { changed }")
	touch(t, src, time.Minute)
	_, err = run()
	require.NoError(t, err)
	assert.Equal(t, 2, runs)

	// removed output invalidates
	require.NoError(t, os.Remove(out))
	_, err = run()
	require.NoError(t, err)
	assert.Equal(t, 3, runs)
}

func TestPrepareDiscoveredInputChange(t *testing.T) {
	c := newMemoryContext(t)
	dep := filepath.Join(t.TempDir(), "dep.rs")
	writeFile(t, dep, "v1")

	var runs int
	run := func() {
		_, err := Prepare(t.Context(), c, "tag", nil, func(e *Exec) (int, error) {
			runs++
			e.DiscoverInput(KindFile, dep, MethodFileWithDate)
			return runs, nil
		})
		require.NoError(t, err)
	}
	run()
	run()
	assert.Equal(t, 1, runs)

	writeFile(t, dep, "v2")
	touch(t, dep, time.Minute)
	run()
	assert.Equal(t, 2, runs)
}

func TestPrepareDeclaredValueChange(t *testing.T) {
	c := newMemoryContext(t)

	var runs int
	run := func(dest string) {
		_, err := Prepare(t.Context(), c, "tag", func(p *Prep) {
			p.DeclareValue("dest", dest)
		}, func(*Exec) (int, error) {
			runs++
			return runs, nil
		})
		require.NoError(t, err)
	}
	run("/ws/a")
	run("/ws/a")
	assert.Equal(t, 1, runs)

	run("/ws/b")
	assert.Equal(t, 2, runs)
}

func TestPrepareFailuresAreNotRecorded(t *testing.T) {
	c := newMemoryContext(t)
	var runs int
	body := func(e *Exec) (string, error) {
		runs++
		if runs == 1 {
			return "", assert.AnError
		}
		return "ok", nil
	}

	_, err := Prepare(t.Context(), c, "flaky", nil, body)
	require.ErrorIs(t, err, assert.AnError)
	v, err := Prepare(t.Context(), c, "flaky", nil, body)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, runs)
}

func TestDeclareMissingInput(t *testing.T) {
	c := newMemoryContext(t)
	called := false
	_, err := Prepare(t.Context(), c, "missing", func(p *Prep) {
		p.DeclareInput(KindBinary, filepath.Join(t.TempDir(), "nope"), MethodDate)
	}, func(*Exec) (bool, error) {
		called = true
		return true, nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestDiscoverMissingOutputFails(t *testing.T) {
	c := newMemoryContext(t)
	_, err := Prepare(t.Context(), c, "out", nil, func(e *Exec) (bool, error) {
		e.DiscoverOutput(KindBinary, filepath.Join(t.TempDir(), "nope"), MethodDate)
		return true, nil
	})
	require.Error(t, err)

	tags, err := c.Store().Tags(t.Context(), "")
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestInvalidate(t *testing.T) {
	c := newMemoryContext(t)
	var runs int
	body := func(*Exec) (int, error) { runs++; return runs, nil }

	_, err := Prepare(t.Context(), c, "install:foo", nil, body)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(t.Context(), "install:foo"))
	_, err = Prepare(t.Context(), c, "install:foo", nil, body)
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
}

func TestPrepareSerializesSameTag(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Prepare(t.Context(), c, "install:shared", nil, func(*Exec) (bool, error) {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return true, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())
}
