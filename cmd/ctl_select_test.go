package cmd

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/displayhal/internal/config"
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ipc"
)

func TestDisplayChoices(t *testing.T) {
	status, err := structpb.NewStruct(map[string]interface{}{
		"displays": []interface{}{
			map[string]interface{}{"name": "Builtin Panel", "rawId": "0x1", "state": "connected", "virtual": false},
			map[string]interface{}{"name": "Virtual display", "rawId": "0x8000000000000000", "state": "connected", "virtual": true},
			map[string]interface{}{"name": "LG ULTRAFINE", "rawId": "0x2", "state": "disconnected", "virtual": false},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []displayChoice{
		{Descriptive: "Builtin Panel (0x1, connected)", RawID: "0x1"},
		{Descriptive: "LG ULTRAFINE (0x2, disconnected)", RawID: "0x2"},
	}, displayChoices(status))

	assert.Empty(t, displayChoices(&structpb.Struct{}))
}

func TestCtlDisplayPicker(t *testing.T) {
	defaults := config.DefaultConfig
	config.Set(&defaults)

	s, err := startSimulation()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ctl.sock")
	server, err := ipc.NewSocketServer(path, &controlHandler{sim: s})
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(server.Stop)

	client, err := ipc.NewClient(path)
	require.NoError(t, err)
	status, err := client.Status()
	require.NoError(t, err)
	panel, err := parseDisplayID(rawIDByName(t, status, "Builtin Panel"))
	require.NoError(t, err)
	external, err := parseDisplayID(rawIDByName(t, status, "LG ULTRAFINE"))
	require.NoError(t, err)

	original := runDisplaySelect
	t.Cleanup(func() { runDisplaySelect = original })

	var offered []huh.Option[string]
	pick := func(name string) {
		offered = nil
		runDisplaySelect = func(_, _ string, options []huh.Option[string]) (string, error) {
			offered = options
			for _, o := range options {
				if strings.HasPrefix(o.Key, name) {
					return o.Value, nil
				}
			}
			return "", errors.New(name + " was not offered")
		}
	}

	t.Run("power without display", func(t *testing.T) {
		pick("LG ULTRAFINE")
		_, err := executeCommand(t, "ctl", "power", "--socket", path, "off")
		require.NoError(t, err)
		assert.Len(t, offered, 2)

		mode, ok := s.adapter.PowerMode(external)
		require.True(t, ok)
		assert.Equal(t, hal.PowerModeOff, mode)
	})

	t.Run("vsync without display", func(t *testing.T) {
		pick("Builtin Panel")
		_, err := executeCommand(t, "ctl", "vsync", "--socket", path, "on")
		require.NoError(t, err)
		assert.Len(t, offered, 2)
		assert.True(t, s.adapter.VsyncEnabled(panel))
	})

	t.Run("mode without display", func(t *testing.T) {
		pick("Builtin Panel")
		_, err := executeCommand(t, "ctl", "mode", "--socket", path, "0")
		require.NoError(t, err)
		m, err := s.adapter.ActiveMode(panel)
		require.NoError(t, err)
		assert.Equal(t, 0, m.ID())
	})

	t.Run("explicit display skips the picker", func(t *testing.T) {
		pick("Builtin Panel")
		_, err := executeCommand(t, "ctl", "vsync", "--socket", path, rawIDByName(t, status, "Builtin Panel"), "off")
		require.NoError(t, err)
		assert.Nil(t, offered)
		assert.False(t, s.adapter.VsyncEnabled(panel))
	})

	t.Run("cancelled selection", func(t *testing.T) {
		runDisplaySelect = func(string, string, []huh.Option[string]) (string, error) {
			return "", errors.New("display selection cancelled: user aborted")
		}
		_, err := executeCommand(t, "ctl", "power", "--socket", path, "on")
		assert.ErrorContains(t, err, "display selection cancelled")
	})
}
