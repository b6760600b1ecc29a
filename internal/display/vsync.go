package display

import (
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/logger"
)

// AcceptVsync filters a hardware vsync. It returns false for unknown or
// virtual displays and for a timestamp equal to the last accepted one.
func (a *Adapter) AcceptVsync(h hal.DisplayHandle, timestamp int64) (ident.ID, bool) {
	id, ok := a.physicalID(h)
	if !ok {
		logger.Error("Ignoring vsync for unknown display handle", "handle", h)
		return 0, false
	}
	r, ok := a.lookup(id)
	if !ok {
		logger.Error("Ignoring vsync for erased display", "handle", h, "display", id)
		return 0, false
	}
	if r.isVirtual {
		logger.Error("Ignoring vsync for virtual display", "display", id)
		return 0, false
	}

	r.lastVsyncMu.Lock()
	if r.haveVsync && r.lastVsync == timestamp {
		r.lastVsyncMu.Unlock()
		logger.Warn("Ignoring duplicate vsync", "display", id, "timestamp", timestamp)
		return 0, false
	}
	r.lastVsync = timestamp
	r.haveVsync = true
	r.vsyncTraceToggle = !r.vsyncTraceToggle
	toggle := r.vsyncTraceToggle
	r.lastVsyncMu.Unlock()

	logger.Debug("HW_VSYNC", "display", id, "toggle", toggle)
	return id, true
}

// LastVsync returns the last accepted vsync timestamp of id.
func (a *Adapter) LastVsync(id ident.ID) (int64, bool) {
	r, ok := a.lookup(id)
	if !ok {
		return 0, false
	}
	r.lastVsyncMu.Lock()
	defer r.lastVsyncMu.Unlock()
	return r.lastVsync, r.haveVsync
}

// SetVsyncEnabled turns hardware vsync events for id on or off. Requesting
// the current state does not reach the backend.
func (a *Adapter) SetVsyncEnabled(id ident.ID, enabled bool) error {
	r, err := a.physicalRecordFor("setVsyncEnabled", id)
	if err != nil {
		return err
	}

	r.vsyncEnabledMu.Lock()
	defer r.vsyncEnabledMu.Unlock()
	if r.vsyncEnabled == enabled {
		return nil
	}
	v := hal.VsyncDisable
	if enabled {
		v = hal.VsyncEnable
	}
	if err := a.composer().SetVsyncEnabled(r.handle, v); err != nil {
		return backendError("setVsyncEnabled", id, err)
	}
	r.vsyncEnabled = enabled
	return nil
}

// VsyncEnabled reports the last vsync state applied to id.
func (a *Adapter) VsyncEnabled(id ident.ID) bool {
	r, ok := a.lookup(id)
	if !ok {
		return false
	}
	r.vsyncEnabledMu.Lock()
	defer r.vsyncEnabledMu.Unlock()
	return r.vsyncEnabled
}
