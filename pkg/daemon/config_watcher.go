package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/petekp/claude-hud-sub008/config"
	"github.com/petekp/claude-hud-sub008/logging"
	"github.com/sirupsen/logrus"
)

// ConfigWatcher watches the config directory and reloads the configuration
// when a hud config file changes. An invalid file is logged and ignored so
// the daemon keeps running on the last good config.
type ConfigWatcher struct {
	watcher      *fsnotify.Watcher
	debounce     time.Duration
	lastChange   time.Time
	mu           sync.Mutex
	logger       *logrus.Entry
	onReload     func(cfg *config.Config)
	load         func(path string) (*config.Config, error)
	targetToLink map[string]string // maps symlink targets to their names in configDir
	configDir    string
}

// NewConfigWatcher creates a ConfigWatcher for configDir. Symlinked config
// files have their target directories watched too, since fsnotify does not
// follow symlinks.
func NewConfigWatcher(configDir string, debounce time.Duration, onReload func(*config.Config)) (*ConfigWatcher, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger("config-watcher")
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, err
	}

	watchedDirs := map[string]bool{configDir: true}
	targetToLink := make(map[string]string)

	entries, err := os.ReadDir(configDir)
	if err == nil {
		for _, entry := range entries {
			if !isConfigFile(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.Mode()&os.ModeSymlink == 0 {
				continue
			}
			target, err := filepath.EvalSymlinks(filepath.Join(configDir, entry.Name()))
			if err != nil {
				logger.WithError(err).Warnf("Failed to resolve symlink %s", entry.Name())
				continue
			}
			targetToLink[target] = entry.Name()

			targetDir := filepath.Dir(target)
			if watchedDirs[targetDir] {
				continue
			}
			if err := watcher.Add(targetDir); err != nil {
				logger.WithError(err).Warnf("Failed to watch symlink target dir %s", targetDir)
				continue
			}
			watchedDirs[targetDir] = true
			logger.Debugf("Watching symlink target directory: %s", targetDir)
		}
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &ConfigWatcher{
		watcher:      watcher,
		debounce:     debounce,
		logger:       logger,
		onReload:     onReload,
		load:         config.Load,
		targetToLink: targetToLink,
		configDir:    configDir,
	}, nil
}

func isConfigFile(name string) bool {
	for _, n := range config.ConfigNames {
		if name == n {
			return true
		}
	}
	return false
}

// Start begins watching for config changes. It blocks until the context is cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			path := event.Name
			if linkName, ok := w.targetToLink[event.Name]; ok {
				path = filepath.Join(w.configDir, linkName)
			}
			if filepath.Dir(path) != w.configDir || !isConfigFile(filepath.Base(path)) {
				continue
			}
			w.handleChange(path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

// handleChange reloads the config with debouncing.
func (w *ConfigWatcher) handleChange(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if elapsed := time.Since(w.lastChange); elapsed < w.debounce {
		w.logger.Debugf("Debounced: %s (only %v since last change)", filepath.Base(path), elapsed)
		return
	}
	w.lastChange = time.Now()

	if _, err := os.Stat(path); err != nil {
		// renamed away by an editor's atomic save; the Create follows
		return
	}

	cfg, err := w.load(path)
	if err != nil {
		w.logger.WithError(err).Warnf("Ignoring invalid config %s", filepath.Base(path))
		return
	}
	w.logger.Infof("Config changed: %s", filepath.Base(path))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}
