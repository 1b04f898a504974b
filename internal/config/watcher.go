package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher reloads a config file when its content changes. A changed file
// that fails to parse or validate is reported once and ignored; the last
// valid config stays current until a valid file appears.
type Watcher struct {
	path     string
	interval time.Duration
	apply    func(old, new *Config)
	onReject func(error)

	mu      sync.Mutex
	current *Config
	mtime   time.Time
	seen    [sha256.Size]byte // content hash of the last file read, valid or not
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval used by [Watcher.Run]. The default
// is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithRejectHandler registers fn to receive the error of every changed file
// that could not be loaded. Errors are logged either way.
func WithRejectHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onReject = fn }
}

// NewWatcher loads path and returns a watcher that passes later valid
// versions of it to apply. Polling starts with [Watcher.Run].
func NewWatcher(path string, apply func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: 5 * time.Second, apply: apply}
	for _, opt := range opts {
		opt(w)
	}

	data, mtime, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.mtime, w.seen = cfg, mtime, sha256.Sum256(data)
	return w, nil
}

// Current returns the most recently applied config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the file until ctx is done and always returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Check(); err != nil {
				slog.Warn("config reload rejected", "path", w.path, "err", err)
			}
		}
	}
}

// Check looks at the file once. It reports whether a new config was applied
// and returns the load error of a changed but invalid file. An unchanged
// modification time, unchanged content, or content already rejected is a
// no-op.
func (w *Watcher) Check() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, fmt.Errorf("config: stat %s: %w", w.path, err)
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.mtime)
	w.mu.Unlock()
	if unchanged {
		return false, nil
	}

	data, mtime, err := w.read()
	if err != nil {
		return false, fmt.Errorf("config: read %s: %w", w.path, err)
	}
	sum := sha256.Sum256(data)

	w.mu.Lock()
	w.mtime = mtime
	if sum == w.seen {
		w.mu.Unlock()
		return false, nil
	}
	w.seen = sum
	w.mu.Unlock()

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		if w.onReject != nil {
			w.onReject(err)
		}
		return false, err
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	slog.Info("config reloaded", "path", w.path)
	if w.apply != nil {
		w.apply(old, cfg)
	}
	return true, nil
}

func (w *Watcher) read() ([]byte, time.Time, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}
