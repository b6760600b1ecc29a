package display

import (
	"errors"
	"sort"

	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/logger"
)

func (a *Adapter) lookup(id ident.ID) (*record, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.displays[id]
	return r, ok
}

// physicalID resolves a backend handle to its logical identifier.
func (a *Adapter) physicalID(h hal.DisplayHandle) (ident.ID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.physicalIDs[h]
	return id, ok
}

func (a *Adapter) recordFor(op string, id ident.ID) (*record, error) {
	r, ok := a.lookup(id)
	if !ok {
		return nil, invalidDisplay(op, id)
	}
	return r, nil
}

// physicalRecordFor rejects virtual displays as well as unknown ones.
func (a *Adapter) physicalRecordFor(op string, id ident.ID) (*record, error) {
	r, ok := a.lookup(id)
	if !ok || r.isVirtual {
		return nil, invalidDisplay(op, id)
	}
	return r, nil
}

// Displays returns every registered identifier in ascending order.
func (a *Adapter) Displays() []ident.ID {
	a.mu.RLock()
	ids := make([]ident.ID, 0, len(a.displays))
	for id := range a.displays {
		ids = append(ids, id)
	}
	a.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Info returns the identity recorded for a physical display.
func (a *Adapter) Info(id ident.ID) (ident.Info, bool) {
	r, ok := a.lookup(id)
	if !ok {
		return ident.Info{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info, true
}

// Handle returns the backend handle behind id.
func (a *Adapter) Handle(id ident.ID) (hal.DisplayHandle, bool) {
	r, ok := a.lookup(id)
	if !ok {
		return 0, false
	}
	return r.handle, true
}

// IsConnected reports whether id is registered and connected.
func (a *Adapter) IsConnected(id ident.ID) bool {
	r, ok := a.lookup(id)
	return ok && r.connected()
}

// State returns the lifecycle state of id.
func (a *Adapter) State(id ident.ID) State {
	r, ok := a.lookup(id)
	if !ok {
		return StateUnregistered
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ConnectionType reports whether a physical display is internal or external.
func (a *Adapter) ConnectionType(id ident.ID) (hal.ConnectionType, error) {
	r, err := a.physicalRecordFor("getConnectionType", id)
	if err != nil {
		return hal.ConnectionTypeExternal, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectionType, nil
}

// HasDisplayCapability reports a per-display capability.
func (a *Adapter) HasDisplayCapability(id ident.ID, c hal.DisplayCapability) bool {
	r, ok := a.lookup(id)
	if !ok {
		logger.Error("Capability query for unknown display", "display", id)
		return false
	}
	return r.hasCapability(c)
}

// LoadModes replaces the mode list of id with the backend's current configs.
// On failure the previous list is kept.
func (a *Adapter) LoadModes(id ident.ID) error {
	r, err := a.recordFor("loadModes", id)
	if err != nil {
		return err
	}
	modes, err := a.fetchModes(id, r.handle)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.modes = modes
	r.mu.Unlock()
	return nil
}

func (a *Adapter) fetchModes(id ident.ID, h hal.DisplayHandle) ([]*Mode, error) {
	c := a.composer()
	configs, err := c.GetDisplayConfigs(h)
	if err != nil {
		return nil, backendError("getDisplayConfigs", id, err)
	}

	modes := make([]*Mode, 0, len(configs))
	for i, config := range configs {
		attrs := make(map[hal.Attribute]int32, len(modeAttributes))
		for _, attr := range modeAttributes {
			v, err := c.GetDisplayAttribute(h, config, attr)
			if err != nil {
				return nil, backendError("getDisplayAttribute", id, err)
			}
			attrs[attr] = v
		}
		modes = append(modes, buildMode(config, i, attrs))
	}
	return modes, nil
}

// Modes returns the loaded modes of id, or nil if it is unknown.
func (a *Adapter) Modes(id ident.ID) []*Mode {
	r, ok := a.lookup(id)
	if !ok {
		logger.Error("Modes requested for unknown display", "display", id)
		return nil
	}
	return r.loadedModes()
}

// ActiveMode returns the mode the backend reports as active. It fails with
// ErrNoActiveMode when the backend has none configured and ErrUnknownMode
// when the backend's config is not among the loaded modes.
func (a *Adapter) ActiveMode(id ident.ID) (*Mode, error) {
	r, err := a.recordFor("getActiveMode", id)
	if err != nil {
		return nil, err
	}
	config, err := a.composer().GetActiveConfig(r.handle)
	if err != nil {
		if errors.Is(err, hal.BadConfig) {
			logger.Warn("No active mode configured", "display", id)
			return nil, &OpError{Op: "getActiveMode", Display: id, Kind: ErrNoActiveMode, Err: err}
		}
		return nil, backendError("getActiveConfig", id, err)
	}
	for _, m := range r.loadedModes() {
		if m.hwcID == config {
			return m, nil
		}
	}
	logger.Error("Active config not in loaded modes", "display", id, "config", config)
	return nil, &OpError{Op: "getActiveMode", Display: id, Kind: ErrUnknownMode}
}

// VsyncPeriod returns the current refresh period of id in nanoseconds.
func (a *Adapter) VsyncPeriod(id ident.ID) (int64, error) {
	r, err := a.recordFor("getDisplayVsyncPeriod", id)
	if err != nil {
		return 0, err
	}
	if a.session.IsVsyncPeriodSwitchSupported() {
		period, err := a.composer().GetDisplayVsyncPeriod(r.handle)
		if err != nil {
			return 0, backendError("getDisplayVsyncPeriod", id, err)
		}
		return int64(period), nil
	}
	m, err := a.ActiveMode(id)
	if err != nil {
		return 0, err
	}
	return m.VsyncPeriod(), nil
}

// RefreshTimestamp projects the last accepted vsync onto the most recent
// refresh boundary at or before now.
func (a *Adapter) RefreshTimestamp(id ident.ID) (int64, error) {
	r, err := a.recordFor("getRefreshTimestamp", id)
	if err != nil {
		return 0, err
	}
	period, err := a.VsyncPeriod(id)
	if err != nil {
		return 0, err
	}
	now := a.opts.clock()

	r.lastVsyncMu.Lock()
	last := r.lastVsync
	r.lastVsyncMu.Unlock()

	if period <= 0 {
		return now, nil
	}
	// A vsync stamped after now still yields a boundary at or before now.
	elapsed := (now - last) % period
	if elapsed < 0 {
		elapsed += period
	}
	return now - elapsed, nil
}

// SetActiveModeWithConstraints switches id to the mode at logical index modeID.
func (a *Adapter) SetActiveModeWithConstraints(id ident.ID, modeID int, constraints hal.VsyncPeriodChangeConstraints) (hal.VsyncPeriodChangeTimeline, error) {
	r, err := a.recordFor("setActiveModeWithConstraints", id)
	if err != nil {
		return hal.VsyncPeriodChangeTimeline{}, err
	}
	modes := r.loadedModes()
	if modeID < 0 || modeID >= len(modes) {
		logger.Error("Mode index out of range", "display", id, "mode", modeID, "count", len(modes))
		return hal.VsyncPeriodChangeTimeline{}, &OpError{Op: "setActiveModeWithConstraints", Display: id, Kind: ErrBadParameter}
	}
	timeline, err := a.composer().SetActiveConfigWithConstraints(r.handle, modes[modeID].hwcID, constraints)
	if err != nil {
		return hal.VsyncPeriodChangeTimeline{}, backendError("setActiveConfigWithConstraints", id, err)
	}
	return timeline, nil
}

// DisconnectDisplay erases a display record. Physical displays release their
// legacy slot and handle mapping; virtual displays are destroyed and their
// index is returned to the pool.
func (a *Adapter) DisconnectDisplay(id ident.ID) error {
	r, err := a.recordFor("disconnectDisplay", id)
	if err != nil {
		return err
	}
	if r.isVirtual {
		return a.ReleaseVirtualDisplay(id)
	}

	a.mu.Lock()
	if a.primary.set && a.primary.handle == r.handle {
		a.primary = slot{}
	}
	if a.external.set && a.external.handle == r.handle {
		a.external = slot{}
	}
	if mapped, ok := a.physicalIDs[r.handle]; ok && mapped == id {
		delete(a.physicalIDs, r.handle)
	}
	delete(a.displays, id)
	a.mu.Unlock()

	r.setState(StateUnregistered)
	logger.Info("Display erased", "display", id)
	return nil
}

// CreateLayer creates a backend layer on id.
func (a *Adapter) CreateLayer(id ident.ID) (hal.LayerHandle, error) {
	r, err := a.recordFor("createLayer", id)
	if err != nil {
		return 0, err
	}
	l, err := a.composer().CreateLayer(r.handle)
	if err != nil {
		return 0, backendError("createLayer", id, err)
	}
	return l, nil
}

// DestroyLayer destroys a backend layer and forgets its release fence.
func (a *Adapter) DestroyLayer(id ident.ID, layer hal.LayerHandle) error {
	r, err := a.recordFor("destroyLayer", id)
	if err != nil {
		return err
	}
	if err := a.composer().DestroyLayer(r.handle, layer); err != nil {
		return backendError("destroyLayer", id, err)
	}
	r.mu.Lock()
	delete(r.releaseFences, layer)
	r.mu.Unlock()
	return nil
}

// SetClientTarget hands the client-composited buffer to the backend.
func (a *Adapter) SetClientTarget(id ident.ID, bufferSlot uint32, target hal.BufferHandle, acquire hal.Fence, dataspace hal.Dataspace) error {
	r, err := a.recordFor("setClientTarget", id)
	if err != nil {
		return err
	}
	if err := a.composer().SetClientTarget(r.handle, bufferSlot, target, acquire, dataspace); err != nil {
		return backendError("setClientTarget", id, err)
	}
	return nil
}

// SetOutputBuffer sets the output buffer of a virtual display.
func (a *Adapter) SetOutputBuffer(id ident.ID, buffer hal.BufferHandle, release hal.Fence) error {
	r, ok := a.lookup(id)
	if !ok || !r.isVirtual {
		return invalidDisplay("setOutputBuffer", id)
	}
	if err := a.composer().SetOutputBuffer(r.handle, buffer, release); err != nil {
		return backendError("setOutputBuffer", id, err)
	}
	return nil
}
