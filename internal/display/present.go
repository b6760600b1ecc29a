package display

import (
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/logger"
)

// Changes are the backend's composition adjustments for one frame.
type Changes struct {
	ChangedTypes         map[hal.LayerHandle]hal.Composition
	DisplayRequests      hal.DisplayRequest
	LayerRequests        map[hal.LayerHandle]hal.LayerRequest
	ClientTargetProperty hal.ClientTargetProperty
}

// frameOutcome is the result of asking the backend to validate or present.
type frameOutcome interface {
	frameOutcome()
}

// presented means the backend presented without a separate validate.
type presented struct {
	fence         hal.Fence
	releaseFences map[hal.LayerHandle]hal.Fence
	err           error
}

// validatedOnly means the frame still needs changes accepted and a present.
type validatedOnly struct {
	numTypes    uint32
	numRequests uint32
}

type failed struct {
	op  string
	err error
}

func (presented) frameOutcome()     {}
func (validatedOnly) frameOutcome() {}
func (failed) frameOutcome()        {}

func (a *Adapter) presentOrValidate(h hal.DisplayHandle) frameOutcome {
	c := a.composer()
	res, err := c.PresentOrValidate(h)
	if !hal.IsHasChanges(err) {
		return failed{op: "presentOrValidate", err: err}
	}
	if res.State != hal.StatePresented {
		return validatedOnly{numTypes: res.NumTypes, numRequests: res.NumRequests}
	}
	fences, err := c.GetReleaseFences(h)
	return presented{fence: res.PresentFence, releaseFences: fences, err: err}
}

func (a *Adapter) validate(h hal.DisplayHandle) frameOutcome {
	numTypes, numRequests, err := a.composer().Validate(h)
	if !hal.IsHasChanges(err) {
		return failed{op: "validate", err: err}
	}
	return validatedOnly{numTypes: numTypes, numRequests: numRequests}
}

// ComputeChanges validates the frame of id, or presents it directly when no
// client composition is needed and the backend allows skipping validation.
// It returns nil changes for disconnected displays and presented frames.
func (a *Adapter) ComputeChanges(id ident.ID, frameUsesClientComposition bool) (*Changes, error) {
	r, err := a.recordFor("computeChanges", id)
	if err != nil {
		return nil, err
	}
	if !r.connected() {
		return nil, nil
	}

	r.mu.Lock()
	r.validateWasSkipped = false
	r.mu.Unlock()

	var outcome frameOutcome
	if frameUsesClientComposition {
		outcome = a.validate(r.handle)
	} else {
		outcome = a.presentOrValidate(r.handle)
	}

	switch o := outcome.(type) {
	case failed:
		return nil, backendError(o.op, id, o.err)
	case presented:
		if o.err != nil {
			logger.Warn("Failed to get release fences after present", "display", id, "error", o.err)
		}
		r.mu.Lock()
		r.lastPresentFence = o.fence
		if o.releaseFences != nil {
			r.releaseFences = o.releaseFences
		} else {
			r.releaseFences = make(map[hal.LayerHandle]hal.Fence)
		}
		r.presentError = o.err
		r.validateWasSkipped = true
		r.mu.Unlock()
		return nil, nil
	case validatedOnly:
		logger.Debug("Frame validated", "display", id, "types", o.numTypes, "requests", o.numRequests)
	}

	c := a.composer()
	changedTypes, err := c.GetChangedCompositionTypes(r.handle)
	if err != nil {
		return nil, backendError("getChangedCompositionTypes", id, err)
	}
	displayRequests, layerRequests, err := c.GetRequests(r.handle)
	if err != nil {
		return nil, backendError("getRequests", id, err)
	}
	changes := &Changes{
		ChangedTypes:    changedTypes,
		DisplayRequests: displayRequests,
		LayerRequests:   layerRequests,
	}
	if prop, err := c.GetClientTargetProperty(r.handle); err == nil {
		changes.ClientTargetProperty = prop
	} else {
		logger.Debug("No client target property", "display", id, "error", err)
	}

	if err := c.AcceptChanges(r.handle); err != nil {
		return nil, backendError("acceptChanges", id, err)
	}
	return changes, nil
}

// PresentAndCollectFences presents the validated frame of id and records the
// present and release fences. When ComputeChanges already presented, it only
// flushes queued commands and reports the error stored at that time.
func (a *Adapter) PresentAndCollectFences(id ident.ID) error {
	r, err := a.recordFor("presentAndCollectFences", id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	skipped := r.validateWasSkipped
	stored := r.presentError
	r.mu.Unlock()

	if skipped {
		if err := a.session.ExecuteCommands(); err != nil {
			return backendError("executeCommands", id, err)
		}
		if stored != nil {
			return backendError("present", id, stored)
		}
		return nil
	}

	c := a.composer()
	fence, err := c.Present(r.handle)
	if err != nil {
		return backendError("present", id, err)
	}
	fences, err := c.GetReleaseFences(r.handle)
	r.mu.Lock()
	r.lastPresentFence = fence
	if err == nil {
		r.releaseFences = fences
	}
	r.mu.Unlock()
	if err != nil {
		return backendError("getReleaseFences", id, err)
	}
	return nil
}

// PresentFence returns the fence of the last present on id.
func (a *Adapter) PresentFence(id ident.ID) hal.Fence {
	r, ok := a.lookup(id)
	if !ok {
		logger.Error("Present fence requested for unknown display", "display", id)
		return hal.NoFence
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPresentFence
}

// LayerReleaseFence returns the release fence of layer, or NoFence.
func (a *Adapter) LayerReleaseFence(id ident.ID, layer hal.LayerHandle) hal.Fence {
	r, ok := a.lookup(id)
	if !ok {
		logger.Error("Release fence requested for unknown display", "display", id)
		return hal.NoFence
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.releaseFences[layer]; ok {
		return f
	}
	return hal.NoFence
}

// ClearReleaseFences drops every stored release fence of id.
func (a *Adapter) ClearReleaseFences(id ident.ID) {
	r, ok := a.lookup(id)
	if !ok {
		logger.Error("Clear release fences for unknown display", "display", id)
		return
	}
	r.mu.Lock()
	r.releaseFences = make(map[hal.LayerHandle]hal.Fence)
	r.mu.Unlock()
}
