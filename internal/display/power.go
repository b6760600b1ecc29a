package display

import (
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/logger"
)

// SetPowerMode applies a power mode to a physical display. Turning a display
// off disables vsync first. Doze modes fall back to on when the display
// cannot doze. Backend failures are logged and not returned.
func (a *Adapter) SetPowerMode(id ident.ID, mode hal.PowerMode) error {
	r, err := a.physicalRecordFor("setPowerMode", id)
	if err != nil {
		return err
	}
	logger.Debug("Setting power mode", "display", id, "mode", mode)

	c := a.composer()
	switch mode {
	case hal.PowerModeOff, hal.PowerModeOn:
		if mode == hal.PowerModeOff {
			if err := a.SetVsyncEnabled(id, false); err != nil {
				logger.Warn("Failed to disable vsync before power off", "display", id, "error", err)
			}
		}
		a.applyPowerMode(r, id, mode)
	case hal.PowerModeDoze, hal.PowerModeDozeSuspend:
		supported, err := c.SupportsDoze(r.handle)
		if err != nil {
			logger.Error("Failed to query doze support", "display", id, "error", err)
		}
		if !supported {
			logger.Info("Doze unsupported, using on", "display", id, "requested", mode)
			mode = hal.PowerModeOn
		}
		a.applyPowerMode(r, id, mode)
	default:
		logger.Debug("Not forwarding power mode to backend", "display", id, "mode", mode)
	}
	return nil
}

func (a *Adapter) applyPowerMode(r *record, id ident.ID, mode hal.PowerMode) {
	if err := a.composer().SetPowerMode(r.handle, mode); err != nil {
		logger.Error("Failed to set power mode", "op", "setPowerMode", "display", id, "mode", mode, "error", err)
		return
	}
	r.mu.Lock()
	r.powerMode = mode
	r.powerModeKnown = true
	r.mu.Unlock()
}

// PowerMode returns the last power mode the backend accepted for id.
func (a *Adapter) PowerMode(id ident.ID) (hal.PowerMode, bool) {
	r, ok := a.lookup(id)
	if !ok {
		return hal.PowerModeOff, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.powerMode, r.powerModeKnown
}
