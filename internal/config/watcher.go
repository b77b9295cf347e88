package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	log "github.com/nghyane/gemini-wire/internal/logging"
)

// configReloadDebounce absorbs editor save bursts (truncate+write pairs).
const configReloadDebounce = 300 * time.Millisecond

// Watcher reloads the config file when its content changes and hands the
// fresh Config to the registered callback. A running client wired to
// Watcher.APIKey picks up a rotated credential without restart.
type Watcher struct {
	path     string
	onChange func(*Config)

	mu          sync.RWMutex
	current     *Config
	lastHash    string
	reloadTimer *time.Timer
	reloadMu    sync.Mutex

	fsw *fsnotify.Watcher
}

// NewWatcher loads path once and begins watching it. onChange may be nil.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files, which drops a watch on
	// the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		onChange: onChange,
		current:  cfg,
		lastHash: hashBytesOf(path),
		fsw:      fsw,
	}
	go w.run()
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// APIKey returns the current credential. Suitable as a client key source.
func (w *Watcher) APIKey() string {
	return w.Current().APIKey
}

// Close stops watching. The last loaded config stays readable.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(configReloadDebounce, func() {
		w.reloadMu.Lock()
		w.reloadTimer = nil
		w.reloadMu.Unlock()
		w.reloadIfChanged()
	})
}

func (w *Watcher) reloadIfChanged() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		log.Errorf("config watcher: read %s: %v", w.path, err)
		return
	}
	if len(data) == 0 {
		log.Debug("config watcher: ignoring empty write event")
		return
	}
	newHash := hashBytes(data)

	w.mu.RLock()
	unchanged := w.lastHash != "" && w.lastHash == newHash
	w.mu.RUnlock()
	if unchanged {
		log.Debug("config watcher: content unchanged, skipping reload")
		return
	}

	cfg, err := Parse(data)
	if err != nil {
		log.WithError(err).Error("config watcher: reload failed, keeping previous config")
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.lastHash = newHash
	w.mu.Unlock()

	log.Infof("config reloaded: %s", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashBytesOf(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return hashBytes(data)
}
