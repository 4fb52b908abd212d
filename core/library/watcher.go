package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"AutoMixFM/logger"
)

// settleInterval is how long a new file must keep a stable size before
// it is considered fully written and safe to analyze.
const settleInterval = 2 * time.Second

var watchedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
}

// Watcher ingests audio files dropped into a directory. Files are
// picked up on create, waited on until their size settles (uploads and
// copies arrive incrementally), then analyzed and added to the library.
type Watcher struct {
	lib *Library
	dir string

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewWatcher creates a Watcher ingesting into lib from dir.
func NewWatcher(lib *Library, dir string) *Watcher {
	return &Watcher{
		lib:     lib,
		dir:     dir,
		pending: make(map[string]struct{}),
	}
}

// Run watches the directory until ctx is cancelled. Existing files are
// ingested once at startup so a pre-populated drop folder is not missed.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	logger.Info("watching drop folder", logger.String("dir", w.dir))

	w.ingestExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !watchedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			if w.markPending(event.Name) {
				go w.settleAndIngest(ctx, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("drop folder watch error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) ingestExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logger.Warn("failed to scan drop folder", logger.ErrorField(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !watchedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if _, err := w.lib.Ingest(ctx, path); err != nil {
			logger.Warn("failed to ingest existing file",
				logger.String("path", path),
				logger.ErrorField(err))
		}
	}
}

// markPending records that path is being waited on. Returns false when a
// settle goroutine is already running for it, so Write event bursts do
// not spawn duplicates.
func (w *Watcher) markPending(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.pending[path]; exists {
		return false
	}
	w.pending[path] = struct{}{}
	return true
}

func (w *Watcher) clearPending(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

// settleAndIngest polls the file size until it stops growing, then
// hands the file to the library.
func (w *Watcher) settleAndIngest(ctx context.Context, path string) {
	defer w.clearPending(path)

	var lastSize int64 = -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(settleInterval):
		}

		info, err := os.Stat(path)
		if err != nil {
			// Removed or renamed before it settled.
			logger.Debug("dropped file vanished before ingest", logger.String("path", path))
			return
		}
		if info.Size() == lastSize && info.Size() > 0 {
			break
		}
		lastSize = info.Size()
	}

	if _, err := w.lib.Ingest(ctx, path); err != nil {
		logger.Error("failed to ingest dropped file",
			logger.String("path", path),
			logger.ErrorField(err))
	}
}
