package display

import (
	"sync"

	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
)

// State is the lifecycle of a registered display.
type State int

const (
	StateUnregistered State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unregistered"
	}
}

// record is the adapter-side state of one display.
type record struct {
	handle    hal.DisplayHandle
	isVirtual bool

	// mu guards the fields below. It is never held across backend calls.
	mu                 sync.Mutex
	state              State
	info               ident.Info
	modes              []*Mode
	capabilities       map[hal.DisplayCapability]struct{}
	connectionType     hal.ConnectionType
	powerMode          hal.PowerMode
	powerModeKnown     bool
	releaseFences      map[hal.LayerHandle]hal.Fence
	lastPresentFence   hal.Fence
	validateWasSkipped bool
	presentError       error
	width, height      uint32
	format             hal.PixelFormat

	// vsyncEnabledMu is held across the backend call so concurrent toggles
	// are serialized.
	vsyncEnabledMu sync.Mutex
	vsyncEnabled   bool

	lastVsyncMu      sync.Mutex
	lastVsync        int64
	haveVsync        bool
	vsyncTraceToggle bool
}

func newRecord(h hal.DisplayHandle, virtual bool) *record {
	return &record{
		handle:        h,
		isVirtual:     virtual,
		state:         StateConnected,
		capabilities:  make(map[hal.DisplayCapability]struct{}),
		releaseFences: make(map[hal.LayerHandle]hal.Fence),
	}
}

func (r *record) connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateConnected
}

func (r *record) setState(s State) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.state
	r.state = s
	return prev
}

func (r *record) loadedModes() []*Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modes
}

func (r *record) hasCapability(c hal.DisplayCapability) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.capabilities[c]
	return ok
}
