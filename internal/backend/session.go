// Package backend owns the single connection to the composition backend.
package backend

import (
	"sort"
	"sync"

	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/logger"
)

// Session holds the composer handle and the process-wide capability state
// loaded at configuration time. It never holds per-display state.
type Session struct {
	composer hal.Composer

	mu                 sync.Mutex
	configured         bool
	capabilities       map[hal.Capability]struct{}
	genericMetadata    map[string]bool
	vsyncSwitchSupport bool
}

// New wraps a composer. Configure must be called before capabilities are queried.
func New(composer hal.Composer) *Session {
	return &Session{
		composer:        composer,
		capabilities:    make(map[hal.Capability]struct{}),
		genericMetadata: make(map[string]bool),
	}
}

// Configure loads capabilities and generic layer metadata keys and registers
// sink for backend notifications. Only the first call has any effect.
func (s *Session) Configure(sink hal.EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.configured {
		logger.Warn("Callback already registered, ignoring extra registration attempt")
		return
	}

	for _, c := range s.composer.GetCapabilities() {
		s.capabilities[c] = struct{}{}
	}
	s.loadLayerMetadataSupport()
	s.vsyncSwitchSupport = s.composer.IsVsyncPeriodSwitchSupported()

	s.configured = true
	s.composer.RegisterCallback(&bridge{sink: sink, vsyncSwitchingSupported: s.vsyncSwitchSupport})
	logger.Debug("Backend session configured",
		"capabilities", len(s.capabilities),
		"generic_metadata_keys", len(s.genericMetadata),
		"vsync_period_switch", s.vsyncSwitchSupport)
}

func (s *Session) loadLayerMetadataSupport() {
	keys, err := s.composer.GetLayerGenericMetadataKeys()
	if err != nil {
		logger.Error("getLayerGenericMetadataKeys failed", "error", err)
		return
	}
	for _, k := range keys {
		s.genericMetadata[k.Name] = k.Mandatory
	}
}

// Composer returns the underlying backend.
func (s *Session) Composer() hal.Composer {
	return s.composer
}

// HasCapability reports whether the backend advertised c.
func (s *Session) HasCapability(c hal.Capability) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.capabilities[c]
	return ok
}

// Capabilities returns the advertised capabilities in ascending order.
func (s *Session) Capabilities() []hal.Capability {
	s.mu.Lock()
	defer s.mu.Unlock()
	caps := make([]hal.Capability, 0, len(s.capabilities))
	for c := range s.capabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// SupportedLayerGenericMetadata maps metadata key names to whether they are mandatory.
func (s *Session) SupportedLayerGenericMetadata() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.genericMetadata))
	for k, v := range s.genericMetadata {
		out[k] = v
	}
	return out
}

// IsVsyncPeriodSwitchSupported reports the vsync-period switching support
// read by Configure, the same value the callback bridge routes vsync with.
func (s *Session) IsVsyncPeriodSwitchSupported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vsyncSwitchSupport
}

// MaxVirtualDisplayCount is the number of virtual displays the backend can create.
func (s *Session) MaxVirtualDisplayCount() uint32 {
	return s.composer.GetMaxVirtualDisplayCount()
}

// ExecuteCommands flushes commands queued in the backend.
func (s *Session) ExecuteCommands() error {
	return s.composer.ExecuteCommands()
}

// DumpDebugInfo returns the backend's own diagnostic text.
func (s *Session) DumpDebugInfo() string {
	return s.composer.DumpDebugInfo()
}
