// Package display adapts a display composition backend to the compositor.
//
// An Adapter keeps the mapping between backend handles and logical display
// identifiers, drives each display's validate/present cycle, filters vsync
// events and manages power, color and virtual display resources.
package display

import (
	"sync"
	"time"

	"github.com/bnema/displayhal/internal/backend"
	"github.com/bnema/displayhal/internal/config"
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/logger"
)

// Listener receives display events after the adapter has processed them.
type Listener interface {
	OnHotplug(info ident.Info, connection hal.Connection)
	OnVsync(id ident.ID, timestamp int64, period hal.VsyncPeriodNanos)
	OnVsyncPeriodTimingChanged(id ident.ID, timeline hal.VsyncPeriodChangeTimeline)
	OnSeamlessPossible(id ident.ID)
	OnRefresh(id ident.ID)
}

type options struct {
	maxVirtualDimension          uint32
	maxVirtualDisplays           uint32
	updateProductInfoOnReconnect bool
	listener                     Listener
	clock                        func() int64
}

// Option configures an Adapter.
type Option func(*options)

// WithConfig applies the adapter section of the configuration.
func WithConfig(cfg config.AdapterConfig) Option {
	return func(o *options) {
		o.maxVirtualDimension = cfg.MaxVirtualDisplayDimension
		o.maxVirtualDisplays = cfg.MaxVirtualDisplays
		o.updateProductInfoOnReconnect = cfg.UpdateProductInfoOnReconnect
	}
}

// WithMaxVirtualDisplayDimension limits virtual display width and height. 0 disables the check.
func WithMaxVirtualDisplayDimension(n uint32) Option {
	return func(o *options) { o.maxVirtualDimension = n }
}

// WithMaxVirtualDisplays caps the virtual display pool below the backend limit.
func WithMaxVirtualDisplays(n uint32) Option {
	return func(o *options) { o.maxVirtualDisplays = n }
}

// WithUpdateProductInfoOnReconnect re-reads identification data for known displays.
func WithUpdateProductInfoOnReconnect(enabled bool) Option {
	return func(o *options) { o.updateProductInfoOnReconnect = enabled }
}

// WithListener forwards processed events to l.
func WithListener(l Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithClock replaces the monotonic nanosecond clock.
func WithClock(clock func() int64) Option {
	return func(o *options) { o.clock = clock }
}

// Adapter is the compositor-facing view of the display backend.
type Adapter struct {
	session *backend.Session
	opts    options

	// mu guards the registry maps and the legacy slots.
	mu          sync.RWMutex
	displays    map[ident.ID]*record
	physicalIDs map[hal.DisplayHandle]ident.ID
	primary     slot
	external    slot

	// hotplugMu serializes hotplug resolution, which makes backend calls
	// between registry updates.
	hotplugMu sync.Mutex
	mode      multiDisplayMode

	virtualIDs *idPool
}

type slot struct {
	handle hal.DisplayHandle
	set    bool
}

var startTime = time.Now()

func monotonicNow() int64 {
	return int64(time.Since(startTime))
}

// New creates an adapter and registers it as the session's event sink.
func New(session *backend.Session, opts ...Option) *Adapter {
	o := options{
		maxVirtualDimension: config.DefaultConfig.Adapter.MaxVirtualDisplayDimension,
		clock:               monotonicNow,
	}
	for _, opt := range opts {
		opt(&o)
	}

	capacity := session.MaxVirtualDisplayCount()
	if o.maxVirtualDisplays != 0 {
		capacity = o.maxVirtualDisplays
	}

	a := &Adapter{
		session:     session,
		opts:        o,
		displays:    make(map[ident.ID]*record),
		physicalIDs: make(map[hal.DisplayHandle]ident.ID),
		virtualIDs:  newIDPool(capacity),
	}
	logger.Debugf("Display adapter created: virtual display capacity %d", capacity)
	session.Configure(a)
	return a
}

func (a *Adapter) composer() hal.Composer {
	return a.session.Composer()
}

// HasCapability reports a process-wide backend capability.
func (a *Adapter) HasCapability(c hal.Capability) bool {
	return a.session.HasCapability(c)
}

// SupportedLayerGenericMetadata maps metadata key names to their mandatory flag.
func (a *Adapter) SupportedLayerGenericMetadata() map[string]bool {
	return a.session.SupportedLayerGenericMetadata()
}

// IsVsyncPeriodSwitchSupported reports whether the backend can switch vsync period per display.
func (a *Adapter) IsVsyncPeriodSwitchSupported() bool {
	return a.session.IsVsyncPeriodSwitchSupported()
}

// MaxVirtualDisplayCount is the backend's virtual display limit.
func (a *Adapter) MaxVirtualDisplayCount() uint32 {
	return a.session.MaxVirtualDisplayCount()
}

// OnHotplug implements hal.EventSink.
func (a *Adapter) OnHotplug(h hal.DisplayHandle, connection hal.Connection) {
	info, ok := a.ResolveHotplug(h, connection)
	if !ok {
		return
	}
	if l := a.opts.listener; l != nil {
		l.OnHotplug(info, connection)
	}
}

// OnVsync implements hal.EventSink.
func (a *Adapter) OnVsync(h hal.DisplayHandle, timestamp int64, period hal.VsyncPeriodNanos) {
	id, ok := a.AcceptVsync(h, timestamp)
	if !ok {
		return
	}
	if l := a.opts.listener; l != nil {
		l.OnVsync(id, timestamp, period)
	}
}

// OnRefresh implements hal.EventSink.
func (a *Adapter) OnRefresh(h hal.DisplayHandle) {
	id, ok := a.physicalID(h)
	if !ok {
		logger.Warn("Refresh for unknown display handle", "handle", h)
		return
	}
	if l := a.opts.listener; l != nil {
		l.OnRefresh(id)
	}
}

// OnVsyncPeriodTimingChanged implements hal.EventSink.
func (a *Adapter) OnVsyncPeriodTimingChanged(h hal.DisplayHandle, timeline hal.VsyncPeriodChangeTimeline) {
	id, ok := a.physicalID(h)
	if !ok {
		logger.Warn("Vsync period timing change for unknown display handle", "handle", h)
		return
	}
	logger.Debug("Vsync period timing changed", "display", id,
		"applied", timeline.NewVsyncAppliedTimeNanos, "refreshRequired", timeline.RefreshRequired)
	if l := a.opts.listener; l != nil {
		l.OnVsyncPeriodTimingChanged(id, timeline)
	}
}

// OnSeamlessPossible implements hal.EventSink.
func (a *Adapter) OnSeamlessPossible(h hal.DisplayHandle) {
	id, ok := a.physicalID(h)
	if !ok {
		logger.Warn("Seamless possible for unknown display handle", "handle", h)
		return
	}
	if l := a.opts.listener; l != nil {
		l.OnSeamlessPossible(id)
	}
}

var _ hal.EventSink = (*Adapter)(nil)
