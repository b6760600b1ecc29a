package display

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bnema/displayhal/internal/ident"
)

// ModeSnapshot is a copy of one mode for reporting.
type ModeSnapshot struct {
	ID          int
	HwcID       uint32
	Width       int32
	Height      int32
	RefreshRate float64
	VsyncPeriod int64
	DpiX        float32
	DpiY        float32
	ConfigGroup int32
}

// DisplaySnapshot is the reportable state of one display.
type DisplaySnapshot struct {
	ID                 ident.ID
	Name               string
	Port               uint8
	Handle             uint64
	Virtual            bool
	State              string
	ConnectionType     string
	ProductInfo        *ident.ProductInfo
	Capabilities       []string
	Modes              []ModeSnapshot
	ActiveMode         int
	VsyncEnabled       bool
	LastVsync          int64
	HaveVsync          bool
	PowerMode          string
	PresentFence       string
	ReleaseFences      int
	ValidateWasSkipped bool
	PresentError       string
	Width, Height      uint32
}

// Snapshot is the reportable state of the adapter.
type Snapshot struct {
	MultiDisplayMode  string
	Capabilities      []string
	VsyncPeriodSwitch bool
	GenericMetadata   map[string]bool
	VirtualInUse      int
	VirtualCapacity   int
	Displays          []DisplaySnapshot
	BackendDebug      string
}

// Snapshot collects the current state of every display.
func (a *Adapter) Snapshot() Snapshot {
	s := Snapshot{
		MultiDisplayMode:  a.MultiDisplayMode(),
		VsyncPeriodSwitch: a.session.IsVsyncPeriodSwitchSupported(),
		GenericMetadata:   a.session.SupportedLayerGenericMetadata(),
		BackendDebug:      a.session.DumpDebugInfo(),
	}
	for _, c := range a.session.Capabilities() {
		s.Capabilities = append(s.Capabilities, c.String())
	}
	s.VirtualInUse, s.VirtualCapacity = a.virtualIDs.usage()

	for _, id := range a.Displays() {
		if r, ok := a.lookup(id); ok {
			s.Displays = append(s.Displays, a.snapshotDisplay(id, r))
		}
	}
	return s
}

func (a *Adapter) snapshotDisplay(id ident.ID, r *record) DisplaySnapshot {
	d := DisplaySnapshot{
		ID:         id,
		Handle:     uint64(r.handle),
		Virtual:    r.isVirtual,
		ActiveMode: -1,
	}

	r.mu.Lock()
	d.Name = r.info.Name
	d.Port = r.info.Port
	d.ProductInfo = r.info.ProductInfo
	d.State = r.state.String()
	if !r.isVirtual {
		d.ConnectionType = r.connectionType.String()
	}
	for c := range r.capabilities {
		d.Capabilities = append(d.Capabilities, c.String())
	}
	modes := r.modes
	if r.powerModeKnown {
		d.PowerMode = r.powerMode.String()
	}
	d.PresentFence = r.lastPresentFence.String()
	d.ReleaseFences = len(r.releaseFences)
	d.ValidateWasSkipped = r.validateWasSkipped
	if r.presentError != nil {
		d.PresentError = r.presentError.Error()
	}
	d.Width, d.Height = r.width, r.height
	r.mu.Unlock()
	sort.Strings(d.Capabilities)

	for _, m := range modes {
		d.Modes = append(d.Modes, ModeSnapshot{
			ID:          m.id,
			HwcID:       uint32(m.hwcID),
			Width:       m.width,
			Height:      m.height,
			RefreshRate: m.RefreshRate(),
			VsyncPeriod: m.vsyncPeriod,
			DpiX:        m.dpiX,
			DpiY:        m.dpiY,
			ConfigGroup: m.configGroup,
		})
	}
	if !r.isVirtual && len(modes) > 0 {
		if config, err := a.composer().GetActiveConfig(r.handle); err == nil {
			for _, m := range modes {
				if m.hwcID == config {
					d.ActiveMode = m.id
				}
			}
		}
	}

	r.vsyncEnabledMu.Lock()
	d.VsyncEnabled = r.vsyncEnabled
	r.vsyncEnabledMu.Unlock()

	r.lastVsyncMu.Lock()
	d.LastVsync, d.HaveVsync = r.lastVsync, r.haveVsync
	r.lastVsyncMu.Unlock()
	return d
}

// Dump renders the adapter state as plain text.
func (a *Adapter) Dump() string {
	s := a.Snapshot()
	var b strings.Builder

	fmt.Fprintf(&b, "Display adapter state:\n")
	fmt.Fprintf(&b, "  multi-display mode: %s\n", s.MultiDisplayMode)
	fmt.Fprintf(&b, "  capabilities: [%s]\n", strings.Join(s.Capabilities, ", "))
	fmt.Fprintf(&b, "  vsync period switch: %t\n", s.VsyncPeriodSwitch)
	fmt.Fprintf(&b, "  virtual displays: %d/%d\n", s.VirtualInUse, s.VirtualCapacity)

	keys := make([]string, 0, len(s.GenericMetadata))
	for k := range s.GenericMetadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  layer metadata %s (mandatory=%t)\n", k, s.GenericMetadata[k])
	}

	for _, d := range s.Displays {
		fmt.Fprintf(&b, "\n%s %q handle=%d %s\n", d.ID, d.Name, d.Handle, d.State)
		if d.Virtual {
			fmt.Fprintf(&b, "  virtual %dx%d\n", d.Width, d.Height)
		} else {
			fmt.Fprintf(&b, "  port=%d connection=%s power=%s\n", d.Port, d.ConnectionType, orNone(d.PowerMode))
		}
		if d.ProductInfo != nil {
			p := d.ProductInfo
			fmt.Fprintf(&b, "  product: %s %s week=%d year=%d model year=%d\n",
				p.ManufacturerPnpID, p.ProductID, p.ManufactureWeek, p.ManufactureYear, p.ModelYear)
		}
		if len(d.Capabilities) > 0 {
			fmt.Fprintf(&b, "  capabilities: [%s]\n", strings.Join(d.Capabilities, ", "))
		}
		for _, m := range d.Modes {
			marker := " "
			if m.ID == d.ActiveMode {
				marker = "*"
			}
			fmt.Fprintf(&b, "  %s mode %d (hwc %d): %dx%d @ %.2fHz group %d\n",
				marker, m.ID, m.HwcID, m.Width, m.Height, m.RefreshRate, m.ConfigGroup)
		}
		fmt.Fprintf(&b, "  vsync enabled=%t", d.VsyncEnabled)
		if d.HaveVsync {
			fmt.Fprintf(&b, " last=%d", d.LastVsync)
		}
		fmt.Fprintf(&b, "\n  present fence=%s release fences=%d validate skipped=%t\n",
			d.PresentFence, d.ReleaseFences, d.ValidateWasSkipped)
		if d.PresentError != "" {
			fmt.Fprintf(&b, "  present error: %s\n", d.PresentError)
		}
	}

	if s.BackendDebug != "" {
		fmt.Fprintf(&b, "\nBackend:\n%s\n", strings.TrimRight(s.BackendDebug, "\n"))
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
