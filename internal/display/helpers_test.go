package display

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bnema/displayhal/internal/backend"
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/sim"
)

// Three displays without identification data, two per-display behaviours.
const legacyScenario = `
capabilities: [skip_validate]
vsync_period_switch: false
max_virtual_displays: 2
displays:
  - handle: 10
    connection_type: internal
    modes:
      - { config: 1, width: 1920, height: 1080, refresh_hz: 60, dpi_x: 160000, dpi_y: 160000 }
      - { config: 2, width: 1920, height: 1080, refresh_hz: 1000, group: 1 }
    active_config: 2
    doze: true
    capabilities: [doze, brightness]
    skip_validate: true
  - handle: 20
    connection_type: external
    modes:
      - { config: 5, width: 1280, height: 720, refresh_hz: 50 }
    capabilities: [auto_low_latency_mode]
    content_types: [game]
  - handle: 30
    modes:
      - { config: 9, width: 800, height: 600, refresh_hz: 60 }
`

type hotplugEvent struct {
	info       ident.Info
	connection hal.Connection
}

type recordingListener struct {
	mu        sync.Mutex
	hotplugs  []hotplugEvent
	vsyncs    []int64
	periods   []hal.VsyncPeriodNanos
	refreshes []ident.ID
	timelines []ident.ID
	seamless  []ident.ID
}

func (l *recordingListener) OnHotplug(info ident.Info, connection hal.Connection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hotplugs = append(l.hotplugs, hotplugEvent{info, connection})
}

func (l *recordingListener) OnVsync(_ ident.ID, timestamp int64, period hal.VsyncPeriodNanos) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vsyncs = append(l.vsyncs, timestamp)
	l.periods = append(l.periods, period)
}

func (l *recordingListener) OnVsyncPeriodTimingChanged(id ident.ID, _ hal.VsyncPeriodChangeTimeline) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timelines = append(l.timelines, id)
}

func (l *recordingListener) OnSeamlessPossible(id ident.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seamless = append(l.seamless, id)
}

func (l *recordingListener) OnRefresh(id ident.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshes = append(l.refreshes, id)
}

type fixture struct {
	adapter  *Adapter
	backend  *sim.Backend
	listener *recordingListener
}

func newFixture(t *testing.T, scenario string, opts ...Option) *fixture {
	t.Helper()
	var s *sim.Scenario
	var err error
	if scenario == "" {
		s, err = sim.DefaultScenario()
	} else {
		s, err = sim.ParseScenario([]byte(scenario))
	}
	require.NoError(t, err)
	b, err := sim.New(s)
	require.NoError(t, err)

	l := &recordingListener{}
	opts = append([]Option{WithListener(l)}, opts...)
	a := New(backend.New(b), opts...)
	return &fixture{adapter: a, backend: b, listener: l}
}

// connect announces h and returns the identifier the adapter resolved.
func (f *fixture) connect(t *testing.T, h hal.DisplayHandle) ident.ID {
	t.Helper()
	before := len(f.listener.hotplugs)
	f.backend.Hotplug(h, hal.ConnectionConnected)
	require.Len(t, f.listener.hotplugs, before+1, "hotplug of %d was ignored", h)
	return f.listener.hotplugs[before].info.ID
}

// edidID computes the identifier the backend's identification data maps to.
func edidID(t *testing.T, b *sim.Backend, h hal.DisplayHandle) ident.ID {
	t.Helper()
	port, data, err := b.GetDisplayIdentificationData(h)
	require.NoError(t, err)
	info, err := ident.Parse(port, data)
	require.NoError(t, err)
	return info.ID
}
