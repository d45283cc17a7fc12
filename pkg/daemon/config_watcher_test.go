package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/petekp/claude-hud-sub008/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherReloadsRouting(t *testing.T) {
	t.Setenv("HUD_HOME", t.TempDir())
	dir := t.TempDir()

	var (
		mu    sync.Mutex
		modes []string
	)
	w, err := NewConfigWatcher(dir, 10*time.Millisecond, func(cfg *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		modes = append(modes, cfg.Routing.Mode)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	path := filepath.Join(dir, "hud.yml")
	require.NoError(t, os.WriteFile(path, []byte("routing:\n  mode: shadow\n"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(modes) > 0 && modes[len(modes)-1] == "shadow"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestConfigWatcherIgnoresInvalidAndUnrelatedFiles(t *testing.T) {
	t.Setenv("HUD_HOME", t.TempDir())
	dir := t.TempDir()

	calls := 0
	w, err := NewConfigWatcher(dir, time.Millisecond, func(cfg *config.Config) { calls++ })
	require.NoError(t, err)
	defer w.Close()

	bad := filepath.Join(dir, "hud.yml")
	require.NoError(t, os.WriteFile(bad, []byte("routing:\n  mode: sometimes\n"), 0644))
	w.handleChange(bad)
	assert.Equal(t, 0, calls)

	assert.False(t, isConfigFile("notes.yml"))
	assert.True(t, isConfigFile("hud.toml"))
}
