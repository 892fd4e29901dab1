// Package watch rebuilds a package when its source files change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/wspkg/internal/logfields"
)

// RebuildFunc runs one rebuild. Its error is logged and watching continues.
type RebuildFunc func(ctx context.Context) error

// SourceWatcher monitors a package directory tree and triggers debounced rebuilds.
type SourceWatcher struct {
	root     string
	ext      string
	debounce time.Duration
	rebuild  RebuildFunc

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	started     bool
	stopOnce    sync.Once
	doneOnce    sync.Once
	stopChan    chan struct{}
	triggerChan chan struct{}
	done        chan struct{}
}

// NewSourceWatcher creates a watcher for root calling rebuild after changes
// settle for debounce.
func NewSourceWatcher(root string, debounce time.Duration, rebuild RebuildFunc) (*SourceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}

	return &SourceWatcher{
		root:        absRoot,
		debounce:    debounce,
		rebuild:     rebuild,
		watcher:     watcher,
		stopChan:    make(chan struct{}),
		triggerChan: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}, nil
}

// WithExtension limits rebuild triggers to files ending in .ext.
func (sw *SourceWatcher) WithExtension(ext string) *SourceWatcher {
	sw.ext = ext
	return sw
}

// Start watches root and every non-hidden directory below it, then begins
// processing events in the background.
func (sw *SourceWatcher) Start(ctx context.Context) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.started {
		return fmt.Errorf("watcher for %s already started", sw.root)
	}
	if err := sw.addTree(sw.root); err != nil {
		sw.close()
		sw.finish()
		return err
	}
	slog.Info("Watching package sources", logfields.Path(sw.root))

	sw.started = true
	go sw.loop(ctx)
	return nil
}

// Stop ends watching and waits for an in-flight rebuild to finish. It is
// safe to call on a watcher that was never started or failed to start.
func (sw *SourceWatcher) Stop() {
	sw.close()
	sw.mu.Lock()
	started := sw.started
	sw.mu.Unlock()
	if !started {
		sw.finish()
	}
	<-sw.done
}

func (sw *SourceWatcher) close() {
	sw.stopOnce.Do(func() {
		close(sw.stopChan)
		if err := sw.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	})
}

func (sw *SourceWatcher) finish() {
	sw.doneOnce.Do(func() { close(sw.done) })
}

// Done is closed when the event loop has exited.
func (sw *SourceWatcher) Done() <-chan struct{} { return sw.done }

func (sw *SourceWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := sw.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (sw *SourceWatcher) loop(ctx context.Context) {
	defer sw.finish()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.stopChan:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handle(event)
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Source watcher error", logfields.Error(err))
		case <-sw.triggerChan:
			// Reset/start debounce timer
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(sw.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			slog.Info("Sources changed, rebuilding", logfields.Path(sw.root))
			if err := sw.rebuild(ctx); err != nil {
				slog.Error("Rebuild failed", logfields.Error(err))
			}
		}
	}
}

func (sw *SourceWatcher) handle(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return
	}
	if event.Op&fsnotify.Create == fsnotify.Create {
		if err := sw.addTree(event.Name); err != nil {
			slog.Debug("Not watching new path", logfields.Path(event.Name), logfields.Error(err))
		}
	}
	if sw.ext != "" && !strings.HasSuffix(base, "."+sw.ext) && !isDirEvent(event) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	slog.Debug("Source change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
	sw.trigger()
}

// isDirEvent reports whether the event concerns a directory with no
// extension, which may hold or have held sources.
func isDirEvent(event fsnotify.Event) bool {
	return filepath.Ext(event.Name) == "" && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0
}

// trigger requests a debounced rebuild.
func (sw *SourceWatcher) trigger() {
	select {
	case sw.triggerChan <- struct{}{}:
		// Rebuild triggered
	default:
		// Rebuild already pending
	}
}
