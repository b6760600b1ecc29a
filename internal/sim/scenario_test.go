package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScenario(t *testing.T) {
	s, err := DefaultScenario()
	require.NoError(t, err)

	assert.True(t, s.VsyncPeriodSwitch)
	assert.Equal(t, uint32(2), s.MaxVirtualDisplays)
	require.Len(t, s.Displays, 2)
	assert.Equal(t, uint64(1), s.Displays[0].Handle)
	assert.Equal(t, "Builtin Panel", s.Displays[0].Identity.Name)
	assert.Equal(t, uint32(11), s.Displays[0].ActiveConfig)
}

func TestLoadScenario(t *testing.T) {
	t.Run("empty path uses default", func(t *testing.T) {
		s, err := LoadScenario("")
		require.NoError(t, err)
		assert.Len(t, s.Displays, 2)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scenario.yaml")
		data := []byte(`
max_virtual_displays: 1
displays:
  - handle: 7
    port: 2
    modes:
      - { config: 1, width: 1280, height: 720, refresh_hz: 50 }
`)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		s, err := LoadScenario(path)
		require.NoError(t, err)
		require.Len(t, s.Displays, 1)
		assert.Nil(t, s.Displays[0].Identity)
		assert.Equal(t, int32(20000000), s.Displays[0].Modes[0].VsyncPeriod())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestParseScenarioRejects(t *testing.T) {
	const mode = "    modes: [{ config: 1, width: 640, height: 480, refresh_hz: 60 }]\n"
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "displays: [\n"},
		{"zero handle", "displays:\n  - handle: 0\n" + mode},
		{"duplicate handle", "displays:\n  - handle: 1\n" + mode + "  - handle: 1\n" + mode},
		{"no modes", "displays:\n  - handle: 1\n"},
		{"unknown capability", "capabilities: [teleport]\n"},
		{"unknown display capability", "displays:\n  - handle: 1\n    capabilities: [hover]\n" + mode},
		{"unknown color mode", "displays:\n  - handle: 1\n    color_modes: [ultraviolet]\n" + mode},
		{"unknown content type", "displays:\n  - handle: 1\n    content_types: [podcast]\n" + mode},
		{"bad pnp id", "displays:\n  - handle: 1\n    identity: { pnp_id: toolong }\n" + mode},
		{"name too long", "displays:\n  - handle: 1\n    identity: { pnp_id: BOE, name: Built-in Panel }\n" + mode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestModeSpecVsyncPeriod(t *testing.T) {
	assert.Equal(t, int32(16666666), ModeSpec{RefreshHz: 60}.VsyncPeriod())
	assert.Equal(t, int32(0), ModeSpec{}.VsyncPeriod())
}
