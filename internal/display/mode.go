package display

import (
	"fmt"
	"time"

	"github.com/bnema/displayhal/internal/hal"
)

// Mode is one display configuration. It is immutable; a mode reload builds
// new values and drops the previous ones.
type Mode struct {
	hwcID       hal.ConfigID
	id          int
	width       int32
	height      int32
	vsyncPeriod int64
	dpiX        float32
	dpiY        float32
	configGroup int32
}

// HwcID is the backend's config id for this mode.
func (m *Mode) HwcID() hal.ConfigID { return m.hwcID }

// ID is the logical index of the mode within its reload generation.
func (m *Mode) ID() int { return m.id }

func (m *Mode) Width() int32  { return m.width }
func (m *Mode) Height() int32 { return m.height }

// VsyncPeriod is the refresh period in nanoseconds.
func (m *Mode) VsyncPeriod() int64 { return m.vsyncPeriod }

// RefreshRate is the refresh rate in Hz.
func (m *Mode) RefreshRate() float64 {
	if m.vsyncPeriod <= 0 {
		return 0
	}
	return float64(time.Second) / float64(m.vsyncPeriod)
}

// DpiX and DpiY are zero when the backend does not report density.
func (m *Mode) DpiX() float32 { return m.dpiX }
func (m *Mode) DpiY() float32 { return m.dpiY }

// ConfigGroup groups modes that can switch seamlessly.
func (m *Mode) ConfigGroup() int32 { return m.configGroup }

func (m *Mode) String() string {
	return fmt.Sprintf("{id=%d, hwcId=%d, %dx%d, %.2fHz, dpi=%.1fx%.1f, group=%d}",
		m.id, m.hwcID, m.width, m.height, m.RefreshRate(), m.dpiX, m.dpiY, m.configGroup)
}

// modeAttributes are fetched for every config, in this order.
var modeAttributes = []hal.Attribute{
	hal.AttributeWidth,
	hal.AttributeHeight,
	hal.AttributeVsyncPeriod,
	hal.AttributeDpiX,
	hal.AttributeDpiY,
	hal.AttributeConfigGroup,
}

// buildMode assembles a mode from its attribute values. Densities are
// reported in dots per thousand inches.
func buildMode(config hal.ConfigID, index int, attrs map[hal.Attribute]int32) *Mode {
	m := &Mode{
		hwcID:       config,
		id:          index,
		width:       attrs[hal.AttributeWidth],
		height:      attrs[hal.AttributeHeight],
		vsyncPeriod: int64(attrs[hal.AttributeVsyncPeriod]),
		configGroup: attrs[hal.AttributeConfigGroup],
	}
	if v := attrs[hal.AttributeDpiX]; v > 0 {
		m.dpiX = float32(v) / 1000
	}
	if v := attrs[hal.AttributeDpiY]; v > 0 {
		m.dpiY = float32(v) / 1000
	}
	return m
}
