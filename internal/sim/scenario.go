// Package sim implements an in-memory composition backend driven by a YAML
// scenario. The CLI runs the adapter against it and tests use it as a fake
// that records calls and injects errors.
package sim

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
)

//go:embed default_scenario.yaml
var defaultScenario []byte

// Scenario describes the simulated backend.
type Scenario struct {
	Capabilities       []string          `yaml:"capabilities"`
	VsyncPeriodSwitch  bool              `yaml:"vsync_period_switch"`
	MaxVirtualDisplays uint32            `yaml:"max_virtual_displays"`
	GenericMetadata    []MetadataKeySpec `yaml:"generic_metadata"`
	Displays           []DisplaySpec     `yaml:"displays"`
}

// MetadataKeySpec is a generic layer metadata key.
type MetadataKeySpec struct {
	Name      string `yaml:"name"`
	Mandatory bool   `yaml:"mandatory"`
}

// DisplaySpec describes one physical display.
type DisplaySpec struct {
	Handle         uint64        `yaml:"handle"`
	Port           uint8         `yaml:"port"`
	Identity       *IdentitySpec `yaml:"identity"`
	ConnectionType string        `yaml:"connection_type"`
	Modes          []ModeSpec    `yaml:"modes"`
	ActiveConfig   uint32        `yaml:"active_config"`
	Doze           bool          `yaml:"doze"`
	Capabilities   []string      `yaml:"capabilities"`
	ColorModes     []string      `yaml:"color_modes"`
	ContentTypes   []string      `yaml:"content_types"`
	// SkipValidate makes present-or-validate present the frame directly.
	SkipValidate bool `yaml:"skip_validate"`
}

// IdentitySpec is turned into an EDID block. A display without identity
// reports no identification data.
type IdentitySpec struct {
	PnpID       string `yaml:"pnp_id"`
	ProductCode uint16 `yaml:"product_code"`
	Name        string `yaml:"name"`
	SerialText  string `yaml:"serial"`
	Year        int    `yaml:"year"`
	Week        int    `yaml:"week"`
}

// ModeSpec is one display configuration.
type ModeSpec struct {
	Config    uint32  `yaml:"config"`
	Width     int32   `yaml:"width"`
	Height    int32   `yaml:"height"`
	RefreshHz float64 `yaml:"refresh_hz"`
	DpiX      int32   `yaml:"dpi_x"`
	DpiY      int32   `yaml:"dpi_y"`
	Group     int32   `yaml:"group"`
}

// VsyncPeriod converts the refresh rate to nanoseconds.
func (m ModeSpec) VsyncPeriod() int32 {
	if m.RefreshHz <= 0 {
		return 0
	}
	return int32(1e9 / m.RefreshHz)
}

// DefaultScenario returns the built-in two-display scenario.
func DefaultScenario() (*Scenario, error) {
	return ParseScenario(defaultScenario)
}

// LoadScenario reads a scenario file. An empty path yields the default scenario.
func LoadScenario(path string) (*Scenario, error) {
	if path == "" {
		return DefaultScenario()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks handles are unique and every name resolves.
func (s *Scenario) Validate() error {
	if _, err := parseCapabilities(s.Capabilities); err != nil {
		return err
	}
	seen := make(map[uint64]bool)
	for i, d := range s.Displays {
		if d.Handle == 0 {
			return fmt.Errorf("display %d: handle must be non-zero", i)
		}
		if seen[d.Handle] {
			return fmt.Errorf("display %d: duplicate handle %d", i, d.Handle)
		}
		seen[d.Handle] = true
		if len(d.Modes) == 0 {
			return fmt.Errorf("display %d: at least one mode is required", i)
		}
		if _, err := parseDisplayCapabilities(d.Capabilities); err != nil {
			return fmt.Errorf("display %d: %w", i, err)
		}
		if _, err := parseColorModes(d.ColorModes); err != nil {
			return fmt.Errorf("display %d: %w", i, err)
		}
		if _, err := parseContentTypes(d.ContentTypes); err != nil {
			return fmt.Errorf("display %d: %w", i, err)
		}
		if d.Identity != nil {
			if _, err := d.identificationData(); err != nil {
				return fmt.Errorf("display %d: %w", i, err)
			}
		}
	}
	return nil
}

func (d DisplaySpec) identificationData() ([]byte, error) {
	if d.Identity == nil {
		return nil, nil
	}
	return ident.BuildEDID(ident.EDIDSpec{
		PnpID:       d.Identity.PnpID,
		ProductCode: d.Identity.ProductCode,
		Name:        d.Identity.Name,
		SerialText:  d.Identity.SerialText,
		Year:        d.Identity.Year,
		Week:        d.Identity.Week,
	})
}

var capabilityNames = map[string]hal.Capability{
	"sideband_stream":               hal.CapabilitySidebandStream,
	"skip_client_color_transform":   hal.CapabilitySkipClientColorTransform,
	"present_fence_is_not_reliable": hal.CapabilityPresentFenceIsNotReliable,
	"skip_validate":                 hal.CapabilitySkipValidate,
}

var displayCapabilityNames = map[string]hal.DisplayCapability{
	"skip_client_color_transform": hal.DisplayCapabilitySkipClientColorTransform,
	"doze":                        hal.DisplayCapabilityDoze,
	"brightness":                  hal.DisplayCapabilityBrightness,
	"protected_contents":          hal.DisplayCapabilityProtectedContents,
	"auto_low_latency_mode":       hal.DisplayCapabilityAutoLowLatencyMode,
}

var colorModeNames = map[string]hal.ColorMode{
	"native":     hal.ColorModeNative,
	"srgb":       hal.ColorModeSRGB,
	"display_p3": hal.ColorModeDisplayP3,
	"bt2100_pq":  hal.ColorModeBT2100PQ,
}

var contentTypeNames = map[string]hal.ContentType{
	"graphics": hal.ContentTypeGraphics,
	"photo":    hal.ContentTypePhoto,
	"cinema":   hal.ContentTypeCinema,
	"game":     hal.ContentTypeGame,
}

func lookupAll[T any](kind string, names []string, table map[string]T) ([]T, error) {
	out := make([]T, 0, len(names))
	for _, n := range names {
		v, ok := table[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown %s %q", kind, n)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseCapabilities(names []string) ([]hal.Capability, error) {
	return lookupAll("capability", names, capabilityNames)
}

func parseDisplayCapabilities(names []string) ([]hal.DisplayCapability, error) {
	return lookupAll("display capability", names, displayCapabilityNames)
}

func parseColorModes(names []string) ([]hal.ColorMode, error) {
	return lookupAll("color mode", names, colorModeNames)
}

func parseContentTypes(names []string) ([]hal.ContentType, error) {
	return lookupAll("content type", names, contentTypeNames)
}
