package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/sim"
)

func TestLegacyModeAssignsTwoSlots(t *testing.T) {
	f := newFixture(t, legacyScenario)
	a := f.adapter

	primary := f.connect(t, 10)
	external := f.connect(t, 20)

	assert.Equal(t, "legacy", a.MultiDisplayMode())
	assert.Equal(t, ident.FromPort(ident.LegacyPrimaryPort), primary)
	assert.Equal(t, ident.FromPort(ident.LegacyExternalPort), external)

	info, ok := a.Info(primary)
	require.True(t, ok)
	assert.Equal(t, "Internal display", info.Name)
	info, ok = a.Info(external)
	require.True(t, ok)
	assert.Equal(t, "External display", info.Name)

	f.backend.Hotplug(30, hal.ConnectionConnected)
	assert.Len(t, f.listener.hotplugs, 2, "tertiary display must be ignored")
	assert.Len(t, a.Displays(), 2)
}

func TestGeneralizedModeUsesIdentificationData(t *testing.T) {
	f := newFixture(t, "")
	a := f.adapter

	internal := f.connect(t, 1)
	external := f.connect(t, 2)

	assert.Equal(t, "generalized", a.MultiDisplayMode())
	assert.Equal(t, edidID(t, f.backend, 1), internal)
	assert.Equal(t, edidID(t, f.backend, 2), external)
	assert.True(t, internal.IsStable())

	info, ok := a.Info(external)
	require.True(t, ok)
	assert.Equal(t, "LG ULTRAFINE", info.Name)
	require.NotNil(t, info.ProductInfo)
	assert.Equal(t, "GSM", info.ProductInfo.ManufacturerPnpID)
	assert.Equal(t, 2021, info.ProductInfo.ManufactureYear)

	ct, err := a.ConnectionType(internal)
	require.NoError(t, err)
	assert.Equal(t, hal.ConnectionTypeInternal, ct)
	ct, err = a.ConnectionType(external)
	require.NoError(t, err)
	assert.Equal(t, hal.ConnectionTypeExternal, ct)
}

func TestGeneralizedModeRejectsDisplayWithoutIdentification(t *testing.T) {
	f := newFixture(t, "")
	f.connect(t, 1)

	require.NoError(t, f.backend.AddDisplay(sim.DisplaySpec{
		Handle: 40,
		Modes:  []sim.ModeSpec{{Config: 1, Width: 640, Height: 480, RefreshHz: 60}},
	}))
	f.backend.Hotplug(40, hal.ConnectionConnected)

	assert.Len(t, f.listener.hotplugs, 1)
	_, known := f.adapter.physicalID(40)
	assert.False(t, known)
}

func TestMultiDisplayModeIsFixedByFirstConnect(t *testing.T) {
	f := newFixture(t, legacyScenario)
	f.connect(t, 10)

	require.NoError(t, f.backend.AddDisplay(sim.DisplaySpec{
		Handle:   40,
		Port:     7,
		Identity: &sim.IdentitySpec{PnpID: "DEL", ProductCode: 1, Name: "Dell"},
		Modes:    []sim.ModeSpec{{Config: 1, Width: 640, Height: 480, RefreshHz: 60}},
	}))
	id := f.connect(t, 40)

	assert.Equal(t, "legacy", f.adapter.MultiDisplayMode())
	assert.Equal(t, ident.FromPort(ident.LegacyExternalPort), id)

	// Erasing every display does not reopen the decision.
	for _, d := range f.adapter.Displays() {
		require.NoError(t, f.adapter.DisconnectDisplay(d))
	}
	assert.Equal(t, "legacy", f.adapter.MultiDisplayMode())
}

func TestDisconnectKeepsRecordUntilErased(t *testing.T) {
	f := newFixture(t, "")
	a := f.adapter
	id := f.connect(t, 2)

	f.backend.Hotplug(2, hal.ConnectionDisconnected)
	require.Len(t, f.listener.hotplugs, 2)
	assert.Equal(t, hal.ConnectionDisconnected, f.listener.hotplugs[1].connection)
	assert.Equal(t, id, f.listener.hotplugs[1].info.ID)

	assert.False(t, a.IsConnected(id))
	assert.Equal(t, StateDisconnected, a.State(id))
	assert.NotEmpty(t, a.Modes(id))

	reconnected := f.connect(t, 2)
	assert.Equal(t, id, reconnected)
	assert.Equal(t, StateConnected, a.State(id))

	require.NoError(t, a.DisconnectDisplay(id))
	assert.Equal(t, StateUnregistered, a.State(id))
	_, known := a.physicalID(2)
	assert.False(t, known)
	assert.ErrorIs(t, a.DisconnectDisplay(id), ErrInvalidDisplay)
}

func TestDisconnectOfUnknownHandleIsIgnored(t *testing.T) {
	f := newFixture(t, "")
	f.backend.Hotplug(2, hal.ConnectionDisconnected)
	assert.Empty(t, f.listener.hotplugs)

	_, ok := f.adapter.ResolveHotplug(2, hal.ConnectionInvalid)
	assert.False(t, ok)
}

func TestReconnectWhileConnectedKeepsState(t *testing.T) {
	f := newFixture(t, "")
	id := f.connect(t, 1)
	require.NoError(t, f.adapter.SetVsyncEnabled(id, true))

	again := f.connect(t, 1)
	assert.Equal(t, id, again)
	assert.True(t, f.adapter.VsyncEnabled(id))
	assert.Len(t, f.adapter.Displays(), 1)
}

func TestReconnectRefreshesProductInfoWhenEnabled(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		f := newFixture(t, "", WithUpdateProductInfoOnReconnect(enabled))
		id := f.connect(t, 2)
		calls := f.backend.Calls(sim.OpGetIdentificationData)

		f.connect(t, 2)
		refreshed := f.backend.Calls(sim.OpGetIdentificationData) - calls
		if enabled {
			assert.Equal(t, 1, refreshed)
		} else {
			assert.Zero(t, refreshed)
		}
		info, ok := f.adapter.Info(id)
		require.True(t, ok)
		assert.NotNil(t, info.ProductInfo)
	}
}

func TestSameIdentityUnderTwoHandles(t *testing.T) {
	f := newFixture(t, "")
	id := f.connect(t, 2)

	// Same EDID on the same port resolves to the same identifier.
	require.NoError(t, f.backend.AddDisplay(sim.DisplaySpec{
		Handle:   50,
		Port:     3,
		Identity: &sim.IdentitySpec{PnpID: "GSM", ProductCode: 23423, Name: "LG ULTRAFINE", Year: 2021, Week: 40},
		Modes:    []sim.ModeSpec{{Config: 1, Width: 640, Height: 480, RefreshHz: 60}},
	}))
	f.backend.Hotplug(50, hal.ConnectionConnected)
	assert.Len(t, f.listener.hotplugs, 1, "duplicate identity must be ignored while connected")

	// Once the first handle is gone the identifier moves to the new handle.
	f.backend.Hotplug(2, hal.ConnectionDisconnected)
	moved := f.connect(t, 50)
	assert.Equal(t, id, moved)

	h, ok := f.adapter.Handle(id)
	require.True(t, ok)
	assert.Equal(t, hal.DisplayHandle(50), h)
	_, stale := f.adapter.physicalID(2)
	assert.False(t, stale)
}

func TestErasedPrimarySlotIsReused(t *testing.T) {
	f := newFixture(t, legacyScenario)
	primary := f.connect(t, 10)
	f.connect(t, 20)

	f.backend.Hotplug(10, hal.ConnectionDisconnected)
	require.NoError(t, f.adapter.DisconnectDisplay(primary))

	id := f.connect(t, 30)
	assert.Equal(t, ident.FromPort(ident.LegacyPrimaryPort), id)
}

func TestRefreshAndTimingEventsForwarded(t *testing.T) {
	f := newFixture(t, "")
	id := f.connect(t, 1)

	f.backend.Refresh(1)
	f.backend.Refresh(99)
	f.adapter.OnVsyncPeriodTimingChanged(1, hal.VsyncPeriodChangeTimeline{RefreshRequired: true})
	f.adapter.OnSeamlessPossible(1)
	f.adapter.OnSeamlessPossible(99)

	assert.Equal(t, []ident.ID{id}, f.listener.refreshes)
	assert.Equal(t, []ident.ID{id}, f.listener.timelines)
	assert.Equal(t, []ident.ID{id}, f.listener.seamless)
}
