package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetState(t *testing.T) {
	t.Helper()
	viper.Reset()
	cfg = nil
	configPathOverride = ""
	t.Cleanup(func() {
		viper.Reset()
		cfg = nil
		configPathOverride = ""
	})
}

func TestGetReturnsDefaultsBeforeInit(t *testing.T) {
	resetState(t)

	c := Get()
	require.NotNil(t, c)
	assert.Equal(t, uint32(4096), c.Adapter.MaxVirtualDisplayDimension)
	assert.Equal(t, 120, c.Simulation.Frames)
}

func TestInitWithConfigFile(t *testing.T) {
	resetState(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "displayhal.toml")
	content := `[adapter]
max_virtual_display_dimension = 1920
max_virtual_displays = 2
update_product_info_on_reconnect = true

[logging]
log_level = "debug"

[simulation]
frames = 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	SetConfigPath(path)
	require.NoError(t, Init())

	c := Get()
	assert.Equal(t, uint32(1920), c.Adapter.MaxVirtualDisplayDimension)
	assert.Equal(t, uint32(2), c.Adapter.MaxVirtualDisplays)
	assert.True(t, c.Adapter.UpdateProductInfoOnReconnect)
	assert.Equal(t, "debug", c.Logging.LogLevel)
	assert.Equal(t, 10, c.Simulation.Frames)
	// Unset keys keep their defaults
	assert.Equal(t, 250, c.Watch.RefreshMs)
	assert.Equal(t, path, GetConfigPath())
}

func TestInitRejectsInvalidTOML(t *testing.T) {
	resetState(t)

	path := filepath.Join(t.TempDir(), "displayhal.toml")
	require.NoError(t, os.WriteFile(path, []byte("[adapter\nmax = 1"), 0644))

	SetConfigPath(path)
	assert.Error(t, Init())
}

func TestInitRejectsInvalidValues(t *testing.T) {
	resetState(t)

	path := filepath.Join(t.TempDir(), "displayhal.toml")
	require.NoError(t, os.WriteFile(path, []byte("[watch]\nrefresh_ms = 0\n"), 0644))

	SetConfigPath(path)
	err := Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh_ms")
	assert.Equal(t, &DefaultConfig, Get(), "failed init keeps the previous config")
}

func TestSave(t *testing.T) {
	resetState(t)

	path := filepath.Join(t.TempDir(), "nested", "displayhal.toml")
	SetConfigPath(path)
	require.NoError(t, Init())
	require.NoError(t, Save())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
