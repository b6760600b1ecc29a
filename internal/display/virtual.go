package display

import (
	"sync"

	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/logger"
)

// idPool hands out virtual display indices, lowest free first.
type idPool struct {
	mu    sync.Mutex
	inUse []bool
}

func newIDPool(capacity uint32) *idPool {
	return &idPool{inUse: make([]bool, capacity)}
}

func (p *idPool) acquire() (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, used := range p.inUse {
		if !used {
			p.inUse[i] = true
			return uint32(i), true
		}
	}
	return 0, false
}

// release returns false if index was not handed out.
func (p *idPool) release(index uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(index) >= len(p.inUse) || !p.inUse[index] {
		return false
	}
	p.inUse[index] = false
	return true
}

func (p *idPool) usage() (inUse, capacity int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, used := range p.inUse {
		if used {
			inUse++
		}
	}
	return inUse, len(p.inUse)
}

// AllocateVirtualDisplay creates a backend virtual display. format is the
// requested pixel format; the returned one is what the backend chose.
func (a *Adapter) AllocateVirtualDisplay(width, height uint32, format hal.PixelFormat) (ident.ID, hal.PixelFormat, bool) {
	if limit := a.opts.maxVirtualDimension; limit != 0 && (width > limit || height > limit) {
		logger.Error("Virtual display too large", "width", width, "height", height, "max", limit)
		return 0, format, false
	}

	index, ok := a.virtualIDs.acquire()
	if !ok {
		logger.Error("No remaining virtual displays", "width", width, "height", height)
		return 0, format, false
	}
	id := ident.Virtual(index)

	h, chosen, err := a.composer().CreateVirtualDisplay(width, height, format)
	if err != nil {
		logger.Error("Failed to create virtual display", "op", "createVirtualDisplay", "display", id, "error", err)
		a.virtualIDs.release(index)
		return 0, format, false
	}

	r := newRecord(h, true)
	r.info = ident.Info{ID: id, Name: "Virtual display"}
	r.width, r.height = width, height
	r.format = chosen

	a.mu.Lock()
	a.displays[id] = r
	a.mu.Unlock()

	logger.Info("Virtual display created", "display", id, "handle", h,
		"width", width, "height", height, "format", chosen)
	return id, chosen, true
}

// ReleaseVirtualDisplay destroys the backend display behind id, erases it and
// returns its index to the pool.
func (a *Adapter) ReleaseVirtualDisplay(id ident.ID) error {
	r, ok := a.lookup(id)
	if !ok || !r.isVirtual {
		return invalidDisplay("releaseVirtualDisplay", id)
	}

	var destroyErr error
	if err := a.composer().DestroyVirtualDisplay(r.handle); err != nil {
		destroyErr = backendError("destroyVirtualDisplay", id, err)
	}

	a.mu.Lock()
	delete(a.displays, id)
	a.mu.Unlock()
	r.setState(StateUnregistered)

	if !a.virtualIDs.release(id.VirtualIndex()) {
		logger.Error("Virtual display index released twice", "display", id)
	}
	return destroyErr
}

// VirtualDisplayUsage reports allocated and total pool slots.
func (a *Adapter) VirtualDisplayUsage() (inUse, capacity int) {
	return a.virtualIDs.usage()
}
