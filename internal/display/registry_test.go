package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/sim"
)

func TestModesLoadedOnConnect(t *testing.T) {
	f := newFixture(t, legacyScenario)
	id := f.connect(t, 10)

	modes := f.adapter.Modes(id)
	require.Len(t, modes, 2)
	m := modes[0]
	assert.Equal(t, hal.ConfigID(1), m.HwcID())
	assert.Equal(t, 0, m.ID())
	assert.Equal(t, int32(1920), m.Width())
	assert.Equal(t, int32(1080), m.Height())
	assert.Equal(t, int64(16666666), m.VsyncPeriod())
	assert.InDelta(t, 60.0, m.RefreshRate(), 0.01)
	assert.InDelta(t, 160.0, m.DpiX(), 0.001)
	assert.Equal(t, int32(1), modes[1].ConfigGroup())
	assert.Zero(t, modes[1].DpiX())
}

func TestLoadModesReplacesAtomically(t *testing.T) {
	f := newFixture(t, legacyScenario)
	a, b := f.adapter, f.backend
	id := f.connect(t, 10)
	old := a.Modes(id)

	b.SetModes(10, []sim.ModeSpec{
		{Config: 7, Width: 3840, Height: 2160, RefreshHz: 30},
		{Config: 8, Width: 3840, Height: 2160, RefreshHz: 60},
		{Config: 9, Width: 1280, Height: 720, RefreshHz: 60},
	}, 8)

	failures := []struct {
		name   string
		config hal.ConfigID
		attr   hal.Attribute
	}{
		{name: "second of three", config: 8, attr: hal.AttributeVsyncPeriod},
		{name: "last of three", config: 9, attr: hal.AttributeHeight},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			b.SetAttributeError(10, tt.config, tt.attr, hal.BadConfig)
			defer b.SetAttributeError(10, tt.config, tt.attr, nil)

			err := a.LoadModes(id)
			assert.ErrorIs(t, err, ErrBackendFailure)
			assert.Equal(t, old, a.Modes(id), "failed reload must keep the previous list")
		})
	}

	require.NoError(t, a.LoadModes(id))
	modes := a.Modes(id)
	require.Len(t, modes, 3)
	assert.Equal(t, hal.ConfigID(9), modes[2].HwcID())
	assert.Equal(t, 2, modes[2].ID())

	// Values handed out earlier are not mutated by a reload.
	assert.Equal(t, int32(1920), old[0].Width())

	b.SetError(sim.OpGetDisplayConfigs, 10, hal.BadDisplay)
	assert.Error(t, a.LoadModes(id))
	assert.Len(t, a.Modes(id), 3)

	assert.ErrorIs(t, a.LoadModes(ident.FromPort(9)), ErrInvalidDisplay)
	assert.Nil(t, a.Modes(ident.FromPort(9)))
}

func TestActiveMode(t *testing.T) {
	f := newFixture(t, legacyScenario)
	a, b := f.adapter, f.backend
	id := f.connect(t, 10)

	m, err := a.ActiveMode(id)
	require.NoError(t, err)
	assert.Equal(t, hal.ConfigID(2), m.HwcID())

	// Backend switched to a config the adapter never loaded.
	b.SetModes(10, []sim.ModeSpec{{Config: 99, Width: 640, Height: 480, RefreshHz: 60}}, 99)
	_, err = a.ActiveMode(id)
	assert.ErrorIs(t, err, ErrUnknownMode)

	b.SetModes(10, []sim.ModeSpec{{Config: 99, Width: 640, Height: 480, RefreshHz: 60}}, 0)
	_, err = a.ActiveMode(id)
	assert.ErrorIs(t, err, ErrNoActiveMode)
	assert.NotErrorIs(t, err, ErrUnknownMode)

	b.SetError(sim.OpGetActiveConfig, 10, hal.NoResources)
	_, err = a.ActiveMode(id)
	assert.ErrorIs(t, err, ErrBackendFailure)
}

func TestVsyncPeriod(t *testing.T) {
	t.Run("from active mode", func(t *testing.T) {
		f := newFixture(t, legacyScenario)
		id := f.connect(t, 10)
		period, err := f.adapter.VsyncPeriod(id)
		require.NoError(t, err)
		assert.Equal(t, int64(1000000), period)
		assert.Zero(t, f.backend.Calls(sim.OpGetDisplayVsyncPeriod))
	})

	t.Run("from backend", func(t *testing.T) {
		f := newFixture(t, "")
		id := f.connect(t, 1)
		period, err := f.adapter.VsyncPeriod(id)
		require.NoError(t, err)
		assert.Equal(t, int64(8333333), period)
		assert.Equal(t, 1, f.backend.Calls(sim.OpGetDisplayVsyncPeriod))

		f.backend.SetError(sim.OpGetDisplayVsyncPeriod, 1, hal.BadDisplay)
		_, err = f.adapter.VsyncPeriod(id)
		assert.ErrorIs(t, err, ErrBackendFailure)
	})
}

func TestRefreshTimestamp(t *testing.T) {
	now := int64(5500000)
	f := newFixture(t, legacyScenario, WithClock(func() int64 { return now }))
	id := f.connect(t, 10)
	f.backend.Vsync(10, 1000000)

	ts, err := f.adapter.RefreshTimestamp(id)
	require.NoError(t, err)
	assert.Equal(t, int64(5000000), ts)

	now = 6000000
	ts, err = f.adapter.RefreshTimestamp(id)
	require.NoError(t, err)
	assert.Equal(t, int64(6000000), ts)

	// Clock behind the last vsync: the boundary stays on the vsync grid
	// and never lies in the future.
	f.backend.Vsync(10, 5000000)
	now = 2500000
	ts, err = f.adapter.RefreshTimestamp(id)
	require.NoError(t, err)
	assert.Equal(t, int64(2000000), ts)
	assert.LessOrEqual(t, ts, now)

	_, err = f.adapter.RefreshTimestamp(ident.FromPort(9))
	assert.ErrorIs(t, err, ErrInvalidDisplay)
}

func TestSetActiveModeWithConstraints(t *testing.T) {
	f := newFixture(t, legacyScenario)
	a, b := f.adapter, f.backend
	id := f.connect(t, 10)

	timeline, err := a.SetActiveModeWithConstraints(id, 0, hal.VsyncPeriodChangeConstraints{DesiredTimeNanos: 77})
	require.NoError(t, err)
	assert.Equal(t, int64(77), timeline.NewVsyncAppliedTimeNanos)
	m, err := a.ActiveMode(id)
	require.NoError(t, err)
	assert.Equal(t, 0, m.ID())

	_, err = a.SetActiveModeWithConstraints(id, 2, hal.VsyncPeriodChangeConstraints{})
	assert.ErrorIs(t, err, ErrBadParameter)
	_, err = a.SetActiveModeWithConstraints(id, -1, hal.VsyncPeriodChangeConstraints{})
	assert.ErrorIs(t, err, ErrBadParameter)

	// Modes 0 and 1 are in different groups.
	_, err = a.SetActiveModeWithConstraints(id, 1, hal.VsyncPeriodChangeConstraints{SeamlessRequired: true})
	assert.ErrorIs(t, err, hal.SeamlessNotPossible)
	assert.ErrorIs(t, err, ErrBackendFailure)
	assert.Equal(t, 2, b.Calls(sim.OpSetActiveConfig))
}

func TestConnectionTypeFallback(t *testing.T) {
	f := newFixture(t, legacyScenario)
	f.connect(t, 10)
	f.connect(t, 20)
	f.backend.Hotplug(20, hal.ConnectionDisconnected)
	require.NoError(t, f.adapter.DisconnectDisplay(ident.FromPort(ident.LegacyExternalPort)))

	// Handle 30 reports no connection type and is not the primary.
	id := f.connect(t, 30)
	ct, err := f.adapter.ConnectionType(id)
	require.NoError(t, err)
	assert.Equal(t, hal.ConnectionTypeExternal, ct)

	_, err = f.adapter.ConnectionType(ident.FromPort(9))
	assert.ErrorIs(t, err, ErrInvalidDisplay)
}

func TestCapabilities(t *testing.T) {
	f := newFixture(t, "")
	a := f.adapter
	internal := f.connect(t, 1)
	external := f.connect(t, 2)

	assert.True(t, a.HasCapability(hal.CapabilitySkipValidate))
	assert.False(t, a.HasCapability(hal.CapabilitySidebandStream))
	assert.True(t, a.IsVsyncPeriodSwitchSupported())
	assert.Equal(t, uint32(2), a.MaxVirtualDisplayCount())
	assert.Equal(t, map[string]bool{"org.example.layer.priority": false}, a.SupportedLayerGenericMetadata())

	assert.True(t, a.HasDisplayCapability(internal, hal.DisplayCapabilityBrightness))
	assert.False(t, a.HasDisplayCapability(external, hal.DisplayCapabilityBrightness))
	assert.True(t, a.HasDisplayCapability(external, hal.DisplayCapabilityAutoLowLatencyMode))
	assert.False(t, a.HasDisplayCapability(ident.FromPort(9), hal.DisplayCapabilityDoze))
}

func TestOpErrorFormatting(t *testing.T) {
	err := &OpError{Op: "setContentType", Display: ident.FromPort(1), Kind: ErrUnsupported, Err: hal.Unsupported}
	assert.Contains(t, err.Error(), "setContentType")
	assert.Contains(t, err.Error(), ErrUnsupported.Error())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, err, hal.Unsupported)

	bare := &OpError{Op: "loadModes", Display: ident.FromPort(1), Kind: ErrInvalidDisplay}
	assert.ErrorIs(t, bare, ErrInvalidDisplay)
	assert.NotErrorIs(t, bare, ErrBackendFailure)
}
