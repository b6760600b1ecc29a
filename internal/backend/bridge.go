package backend

import (
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/logger"
)

// bridge adapts backend callbacks to an EventSink. Backends that support
// vsync period switching report vsync through OnVsyncWithPeriod only; older
// backends through OnVsync only. The unexpected variant is dropped.
type bridge struct {
	sink                    hal.EventSink
	vsyncSwitchingSupported bool
}

var _ hal.Callback = (*bridge)(nil)

func (b *bridge) OnHotplug(display hal.DisplayHandle, connection hal.Connection) {
	b.sink.OnHotplug(display, connection)
}

func (b *bridge) OnRefresh(display hal.DisplayHandle) {
	b.sink.OnRefresh(display)
}

func (b *bridge) OnVsync(display hal.DisplayHandle, timestamp int64) {
	if b.vsyncSwitchingSupported {
		logger.Warn("Unexpected vsync callback without period, ignoring", "hwc_display", display)
		return
	}
	b.sink.OnVsync(display, timestamp, 0)
}

func (b *bridge) OnVsyncWithPeriod(display hal.DisplayHandle, timestamp int64, period hal.VsyncPeriodNanos) {
	if !b.vsyncSwitchingSupported {
		logger.Warn("Unexpected vsync callback with period, ignoring", "hwc_display", display)
		return
	}
	b.sink.OnVsync(display, timestamp, period)
}

func (b *bridge) OnVsyncPeriodTimingChanged(display hal.DisplayHandle, timeline hal.VsyncPeriodChangeTimeline) {
	b.sink.OnVsyncPeriodTimingChanged(display, timeline)
}

func (b *bridge) OnSeamlessPossible(display hal.DisplayHandle) {
	b.sink.OnSeamlessPossible(display)
}
