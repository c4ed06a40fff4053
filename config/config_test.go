package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticedb/lattice/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lattice.yaml", `
server_address: "0.0.0.0:1729"
data_directory: /var/lib/lattice
`)
	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:1729", cfg.ServerAddress)
	assert.Equal(t, 4*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 9100, cfg.Diagnostics.MonitoringPort)
}

func TestLoadRejectsMissingServerAddress(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lattice.yaml", `
data_directory: /var/lib/lattice
`)
	_, err := config.Load(path, nil)
	require.Error(t, err)
}

func TestLoadRejectsMissingDataDirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lattice.yaml", `
server_address: "0.0.0.0:1729"
`)
	_, err := config.Load(path, nil)
	require.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lattice.yaml", `
server_address: "0.0.0.0:1729"
data_directory: /var/lib/lattice
development: false
`)
	initial, err := config.Load(path, nil)
	require.NoError(t, err)

	var lastErr error
	w, stop, err := config.NewWatcher(path, nil, initial, func(e error) { lastErr = e })
	require.NoError(t, err)
	defer stop()

	assert.False(t, w.Current().Development)

	writeFile(t, dir, "lattice.yaml", `
server_address: "0.0.0.0:1729"
data_directory: /var/lib/lattice
development: true
`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Current().Development {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.True(t, w.Current().Development)
	assert.NoError(t, lastErr)
}
