package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/displayhal/internal/config"
	"github.com/bnema/displayhal/internal/display"
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ipc"
)

// rawIDByName finds the rawId of the display called name in a status snapshot.
func rawIDByName(t *testing.T, status *structpb.Struct, name string) string {
	t.Helper()
	for _, v := range status.Fields["displays"].GetListValue().GetValues() {
		d := v.GetStructValue()
		if d.Fields["name"].GetStringValue() == name {
			return d.Fields["rawId"].GetStringValue()
		}
	}
	t.Fatalf("display %q not in status", name)
	return ""
}

func TestControlSocket(t *testing.T) {
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
	assert.Equal(t, "generalized", status.Fields["multiDisplayMode"].GetStringValue())

	panelRaw := rawIDByName(t, status, "Builtin Panel")
	panel, err := parseDisplayID(panelRaw)
	require.NoError(t, err)
	externalRaw := rawIDByName(t, status, "LG ULTRAFINE")
	external, err := parseDisplayID(externalRaw)
	require.NoError(t, err)

	t.Run("power", func(t *testing.T) {
		require.NoError(t, client.SetPowerMode(panelRaw, "doze"))
		mode, ok := s.adapter.PowerMode(panel)
		require.True(t, ok)
		assert.Equal(t, hal.PowerModeDoze, mode)

		assert.ErrorContains(t, client.SetPowerMode(panelRaw, "sleep"), "unknown power mode")
		assert.ErrorContains(t, client.SetPowerMode("panel", "on"), "invalid display id")
	})

	t.Run("vsync", func(t *testing.T) {
		require.NoError(t, client.SetVsyncEnabled(panelRaw, true))
		assert.True(t, s.adapter.VsyncEnabled(panel))
		require.NoError(t, client.SetVsyncEnabled(panelRaw, false))
		assert.False(t, s.adapter.VsyncEnabled(panel))
	})

	t.Run("mode", func(t *testing.T) {
		require.NoError(t, client.SetActiveMode(panelRaw, 0))
		m, err := s.adapter.ActiveMode(panel)
		require.NoError(t, err)
		assert.Equal(t, 0, m.ID())

		assert.Error(t, client.SetActiveMode(panelRaw, 9))
	})

	t.Run("hotplug", func(t *testing.T) {
		require.NoError(t, client.Hotplug(2, false))
		assert.Equal(t, display.StateDisconnected, s.adapter.State(external))

		require.NoError(t, client.Hotplug(2, true))
		assert.Equal(t, display.StateConnected, s.adapter.State(external))

		assert.ErrorContains(t, client.Hotplug(99, true), "unknown display handle 99")
	})
}
