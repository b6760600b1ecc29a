package display

import (
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/logger"
)

// multiDisplayMode is fixed by the first connect ever seen.
type multiDisplayMode int

const (
	modeUndecided multiDisplayMode = iota
	// modeLegacy has two slots, primary on port 0 and external on port 1.
	modeLegacy
	// modeGeneralized derives identifiers from identification data.
	modeGeneralized
)

func (m multiDisplayMode) String() string {
	switch m {
	case modeLegacy:
		return "legacy"
	case modeGeneralized:
		return "generalized"
	default:
		return "undecided"
	}
}

// MultiDisplayMode reports "undecided", "legacy" or "generalized".
func (a *Adapter) MultiDisplayMode() string {
	a.hotplugMu.Lock()
	defer a.hotplugMu.Unlock()
	return a.mode.String()
}

// ResolveHotplug turns a backend hotplug into a logical display transition.
// It returns false when the event was ignored.
func (a *Adapter) ResolveHotplug(h hal.DisplayHandle, connection hal.Connection) (ident.Info, bool) {
	a.hotplugMu.Lock()
	defer a.hotplugMu.Unlock()

	switch connection {
	case hal.ConnectionConnected:
		return a.onHotplugConnect(h)
	case hal.ConnectionDisconnected:
		return a.onHotplugDisconnect(h)
	default:
		logger.Warn("Ignoring hotplug with invalid connection state", "handle", h, "connection", connection)
		return ident.Info{}, false
	}
}

type identification struct {
	port uint8
	data []byte
	ok   bool
}

func (a *Adapter) identificationData(h hal.DisplayHandle) identification {
	port, data, err := a.composer().GetDisplayIdentificationData(h)
	if err != nil {
		logger.Debug("No identification data", "handle", h, "error", err)
		return identification{}
	}
	return identification{port: port, data: data, ok: true}
}

func (a *Adapter) onHotplugConnect(h hal.DisplayHandle) (ident.Info, bool) {
	if id, known := a.physicalID(h); known {
		return a.onHotplugReconnect(h, id), true
	}

	idData := a.identificationData(h)

	if a.mode == modeUndecided {
		if idData.ok {
			a.mode = modeGeneralized
		} else {
			a.mode = modeLegacy
		}
		logger.Infof("Switching to %s multi-display mode", a.mode)
	}

	a.mu.RLock()
	primaryTaken := a.primary.set
	bothTaken := a.primary.set && a.external.set
	a.mu.RUnlock()

	var info ident.Info
	switch a.mode {
	case modeGeneralized:
		if !idData.ok {
			logger.Error("Ignoring connection of display without identification data", "handle", h)
			return ident.Info{}, false
		}
		info = a.generalizedInfo(h, idData, !primaryTaken)
	default:
		if bothTaken {
			logger.Error("Ignoring connection of tertiary display", "handle", h)
			return ident.Info{}, false
		}
		info = legacyInfo(!primaryTaken)
	}

	if other, bound := a.boundHandle(info.ID); bound && other != h && a.IsConnected(info.ID) {
		logger.Error("Ignoring connection of display already connected under another handle",
			"handle", h, "display", info.ID, "existing", other)
		return ident.Info{}, false
	}

	a.allocatePhysical(h, info)
	logger.Info("Display connected", "handle", h, "display", info.ID, "name", info.Name)
	return info, true
}

func legacyInfo(primary bool) ident.Info {
	if primary {
		return ident.Info{
			ID:   ident.FromPort(ident.LegacyPrimaryPort),
			Port: ident.LegacyPrimaryPort,
			Name: "Internal display",
		}
	}
	return ident.Info{
		ID:   ident.FromPort(ident.LegacyExternalPort),
		Port: ident.LegacyExternalPort,
		Name: "External display",
	}
}

func (a *Adapter) generalizedInfo(h hal.DisplayHandle, idData identification, primary bool) ident.Info {
	info, err := ident.Parse(idData.port, idData.data)
	if err == nil {
		return info
	}
	logger.Error("Failed to parse identification data", "handle", h, "port", idData.port, "error", err)
	name := "External display"
	if primary {
		name = "Internal display"
	}
	return ident.Info{ID: ident.FromPort(idData.port), Port: idData.port, Name: name}
}

// onHotplugReconnect handles a connect for a handle that already has an identifier.
func (a *Adapter) onHotplugReconnect(h hal.DisplayHandle, id ident.ID) ident.Info {
	r, ok := a.lookup(id)
	if !ok {
		logger.Warn("Handle mapped to an erased display", "handle", h, "display", id)
		info := ident.Info{ID: id, Port: id.Port()}
		a.allocatePhysical(h, info)
		return info
	}

	r.mu.Lock()
	info := r.info
	r.mu.Unlock()

	if a.opts.updateProductInfoOnReconnect {
		if idData := a.identificationData(h); idData.ok {
			if parsed, err := ident.Parse(idData.port, idData.data); err == nil {
				info.ProductInfo = parsed.ProductInfo
				r.mu.Lock()
				r.info.ProductInfo = parsed.ProductInfo
				r.mu.Unlock()
			} else {
				logger.Warn("Failed to refresh product info", "display", id, "error", err)
			}
		}
	}

	if !r.connected() {
		a.probe(r, id)
		r.setState(StateConnected)
		logger.Info("Display reconnected", "handle", h, "display", id)
	}
	return info
}

func (a *Adapter) onHotplugDisconnect(h hal.DisplayHandle) (ident.Info, bool) {
	id, ok := a.physicalID(h)
	if !ok {
		logger.Error("Ignoring disconnection of unknown display handle", "handle", h)
		return ident.Info{}, false
	}
	r, ok := a.lookup(id)
	if !ok {
		logger.Error("Ignoring disconnection of erased display", "handle", h, "display", id)
		return ident.Info{}, false
	}

	if prev := r.setState(StateDisconnected); prev != StateConnected {
		logger.Warn("Display was not connected", "display", id, "state", prev)
	}
	r.mu.Lock()
	info := r.info
	r.mu.Unlock()
	logger.Info("Display disconnected", "handle", h, "display", id)
	return info, true
}

// boundHandle finds the handle currently mapped to id.
func (a *Adapter) boundHandle(id ident.ID) (hal.DisplayHandle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for h, mapped := range a.physicalIDs {
		if mapped == id {
			return h, true
		}
	}
	return 0, false
}

// probe refreshes capabilities, connection type and modes of r from the backend.
func (a *Adapter) probe(r *record, id ident.ID) {
	c := a.composer()
	h := r.handle

	caps := make(map[hal.DisplayCapability]struct{})
	if list, err := c.GetDisplayCapabilities(h); err != nil {
		logger.Warn("Failed to get display capabilities", "display", id, "error", err)
	} else {
		for _, dc := range list {
			caps[dc] = struct{}{}
		}
	}

	ct, err := c.GetDisplayConnectionType(h)
	if err != nil {
		a.mu.RLock()
		primary := !a.primary.set || a.primary.handle == h
		a.mu.RUnlock()
		ct = hal.ConnectionTypeExternal
		if primary {
			ct = hal.ConnectionTypeInternal
		}
	}

	modes, err := a.fetchModes(id, h)
	if err != nil {
		logger.Warn("Display connected without modes", "display", id, "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities = caps
	r.connectionType = ct
	if err == nil {
		r.modes = modes
	}
}

// allocatePhysical registers a connected physical display, replacing any
// record previously bound to the same identifier.
func (a *Adapter) allocatePhysical(h hal.DisplayHandle, info ident.Info) {
	r := newRecord(h, false)
	r.info = info
	a.probe(r, info.ID)

	a.mu.Lock()
	defer a.mu.Unlock()
	for other, mapped := range a.physicalIDs {
		if mapped == info.ID && other != h {
			delete(a.physicalIDs, other)
			if a.primary.set && a.primary.handle == other {
				a.primary = slot{}
			}
			if a.external.set && a.external.handle == other {
				a.external = slot{}
			}
		}
	}
	a.physicalIDs[h] = info.ID
	if !a.primary.set {
		a.primary = slot{handle: h, set: true}
	} else if a.primary.handle != h && !a.external.set {
		a.external = slot{handle: h, set: true}
	}
	a.displays[info.ID] = r
}
