// Package watcher reports changes to the files of a project directory. It
// uses fsnotify when available and falls back to polling, debouncing bursts
// of events into a single notification.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/beadsync/pkg/debug"
)

// DefaultPollInterval is the polling interval in fallback mode.
const DefaultPollInterval = 2 * time.Second

// ForcePollEnvVar forces polling mode when set to a truthy value.
const ForcePollEnvVar = "BW_FORCE_POLL"

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnChange sets a callback invoked after each debounced change.
func WithOnChange(fn func()) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// WithFilter restricts which file names in the directory are watched.
func WithFilter(match func(name string) bool) Option {
	return func(w *Watcher) {
		if match != nil {
			w.match = match
		}
	}
}

// IsStoreFile matches the files a project store writes: JSONL exports and
// the SQLite database with its journal files.
func IsStoreFile(name string) bool {
	return strings.HasSuffix(name, ".jsonl") || strings.HasPrefix(name, "beads.db")
}

type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors the matching files of one directory.
type Watcher struct {
	dir              string
	match            func(string) bool
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool

	fsType      FilesystemType
	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	seen        map[string]fileState

	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// New creates a watcher for dir. It does nothing until Start.
func New(dir string, opts ...Option) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:              absDir,
		match:            IsStoreFile,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		changeCh:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	seen, err := w.scan()
	if err != nil {
		if os.IsPermission(err) {
			return ErrPermission
		}
		// The directory may not exist yet; polling picks it up later.
		seen = map[string]fileState{}
	}
	w.seen = seen

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.fsType = detectFilesystemTypeFunc(w.dir)
	w.useFallback = w.forcePoll || envBool(ForcePollEnvVar)
	if !w.useFallback && isRemoteFilesystem(w.fsType) {
		debug.Log("watcher: %s is on %s, polling", w.dir, w.fsType)
		w.useFallback = true
	}
	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			err = fsw.Add(w.dir)
			if err != nil {
				fsw.Close()
			}
		}
		if err != nil {
			debug.Log("watcher: fsnotify unavailable for %s, polling: %v", w.dir, err)
			w.useFallback = true
		} else {
			w.fsWatcher = fsw
			go w.watchFsnotify(ctx, fsw)
		}
	}
	if w.useFallback {
		go w.watchPolling(ctx)
	}

	w.started = true
	return nil
}

// Stop stops watching. The Changed channel is left open so a receiver blocked
// on it is not woken with a spurious notification.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	w.cancel()
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.debouncer.Cancel()
	w.started = false
}

// IsPolling reports whether the watcher uses polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// FilesystemType returns the filesystem detected when the watcher started.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// IsStarted reports whether the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives once per debounced change. Notifications are coalesced
// while nobody is receiving.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func (w *Watcher) scan() (map[string]fileState, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]fileState, len(entries))
	for _, e := range entries {
		if e.IsDir() || !w.match(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[e.Name()] = fileState{mtime: info.ModTime(), size: info.Size()}
	}
	return out, nil
}

func (w *Watcher) watchFsnotify(ctx context.Context, fsw *fsnotify.Watcher) {
	events, errs := fsw.Events, fsw.Errors
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if !w.match(name) {
				continue
			}
			if event.Op&fsnotify.Remove != 0 {
				w.onError(fmt.Errorf("%s: %w", name, ErrFileRemoved))
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debug.Log("watcher: %s %s", event.Op, name)
				w.debouncer.Trigger(w.notifyChange)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) watchPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		current, err := w.scan()
		if err != nil {
			if os.IsPermission(err) {
				w.onError(ErrPermission)
			} else if !os.IsNotExist(err) {
				w.onError(err)
			}
			continue
		}

		w.mu.Lock()
		changed := false
		for name, st := range current {
			prev, ok := w.seen[name]
			if !ok || st.mtime.After(prev.mtime) || st.size != prev.size {
				changed = true
			}
		}
		var removed []string
		for name := range w.seen {
			if _, ok := current[name]; !ok {
				removed = append(removed, name)
			}
		}
		w.seen = current
		w.mu.Unlock()

		for _, name := range removed {
			w.onError(fmt.Errorf("%s: %w", name, ErrFileRemoved))
		}
		if changed || len(removed) > 0 {
			w.debouncer.Trigger(w.notifyChange)
		}
	}
}

func (w *Watcher) notifyChange() {
	if !w.IsStarted() {
		return
	}
	w.onChange()
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
