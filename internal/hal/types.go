package hal

import "fmt"

// DisplayHandle is the backend's handle for a display. It is only valid while
// the backend considers the display connected.
type DisplayHandle uint64

// LayerHandle is the backend's handle for a layer on a display.
type LayerHandle uint64

// ConfigID identifies a display configuration (mode) in the backend.
type ConfigID uint32

// VsyncPeriodNanos is a vsync period in nanoseconds. Zero means unknown.
type VsyncPeriodNanos uint32

// Connection is the transition carried by a hotplug notification.
type Connection int32

const (
	ConnectionInvalid      Connection = 0
	ConnectionConnected    Connection = 1
	ConnectionDisconnected Connection = 2
)

func (c Connection) String() string {
	switch c {
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	default:
		return "invalid"
	}
}

// DisplayType distinguishes physical from virtual displays in the backend.
type DisplayType int32

const (
	DisplayTypePhysical DisplayType = 1
	DisplayTypeVirtual  DisplayType = 2
)

// ConnectionType reports how a physical display is attached.
type ConnectionType int32

const (
	ConnectionTypeInternal ConnectionType = 0
	ConnectionTypeExternal ConnectionType = 1
)

func (c ConnectionType) String() string {
	if c == ConnectionTypeInternal {
		return "internal"
	}
	return "external"
}

// Capability is a process-wide backend capability.
type Capability int32

const (
	CapabilityInvalid                   Capability = 0
	CapabilitySidebandStream            Capability = 1
	CapabilitySkipClientColorTransform  Capability = 2
	CapabilityPresentFenceIsNotReliable Capability = 3
	CapabilitySkipValidate              Capability = 4
)

func (c Capability) String() string {
	switch c {
	case CapabilitySidebandStream:
		return "SidebandStream"
	case CapabilitySkipClientColorTransform:
		return "SkipClientColorTransform"
	case CapabilityPresentFenceIsNotReliable:
		return "PresentFenceIsNotReliable"
	case CapabilitySkipValidate:
		return "SkipValidate"
	default:
		return fmt.Sprintf("Capability(%d)", int32(c))
	}
}

// DisplayCapability is a capability reported for a single display.
type DisplayCapability int32

const (
	DisplayCapabilityInvalid                  DisplayCapability = 0
	DisplayCapabilitySkipClientColorTransform DisplayCapability = 1
	DisplayCapabilityDoze                     DisplayCapability = 2
	DisplayCapabilityBrightness               DisplayCapability = 3
	DisplayCapabilityProtectedContents        DisplayCapability = 4
	DisplayCapabilityAutoLowLatencyMode       DisplayCapability = 5
)

func (c DisplayCapability) String() string {
	switch c {
	case DisplayCapabilitySkipClientColorTransform:
		return "SkipClientColorTransform"
	case DisplayCapabilityDoze:
		return "Doze"
	case DisplayCapabilityBrightness:
		return "Brightness"
	case DisplayCapabilityProtectedContents:
		return "ProtectedContents"
	case DisplayCapabilityAutoLowLatencyMode:
		return "AutoLowLatencyMode"
	default:
		return fmt.Sprintf("DisplayCapability(%d)", int32(c))
	}
}

// Attribute selects a per-config display attribute.
type Attribute int32

const (
	AttributeWidth       Attribute = 1
	AttributeHeight      Attribute = 2
	AttributeVsyncPeriod Attribute = 3
	AttributeDpiX        Attribute = 4
	AttributeDpiY        Attribute = 5
	AttributeConfigGroup Attribute = 7
)

func (a Attribute) String() string {
	switch a {
	case AttributeWidth:
		return "width"
	case AttributeHeight:
		return "height"
	case AttributeVsyncPeriod:
		return "vsync_period"
	case AttributeDpiX:
		return "dpi_x"
	case AttributeDpiY:
		return "dpi_y"
	case AttributeConfigGroup:
		return "config_group"
	default:
		return fmt.Sprintf("attribute(%d)", int32(a))
	}
}

// Vsync toggles hardware vsync delivery.
type Vsync int32

const (
	VsyncInvalid Vsync = 0
	VsyncEnable  Vsync = 1
	VsyncDisable Vsync = 2
)

// PowerMode is a display power state.
type PowerMode int32

const (
	PowerModeOff         PowerMode = 0
	PowerModeDoze        PowerMode = 1
	PowerModeOn          PowerMode = 2
	PowerModeDozeSuspend PowerMode = 3
	PowerModeOnSuspend   PowerMode = 4
)

func (m PowerMode) String() string {
	switch m {
	case PowerModeOff:
		return "off"
	case PowerModeDoze:
		return "doze"
	case PowerModeOn:
		return "on"
	case PowerModeDozeSuspend:
		return "doze_suspend"
	case PowerModeOnSuspend:
		return "on_suspend"
	default:
		return fmt.Sprintf("power_mode(%d)", int32(m))
	}
}

// ParsePowerMode is the inverse of PowerMode.String.
func ParsePowerMode(name string) (PowerMode, error) {
	for _, m := range []PowerMode{PowerModeOff, PowerModeDoze, PowerModeOn, PowerModeDozeSuspend, PowerModeOnSuspend} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown power mode %q", name)
}

// Composition is the composition type of a layer.
type Composition int32

const (
	CompositionInvalid    Composition = 0
	CompositionClient     Composition = 1
	CompositionDevice     Composition = 2
	CompositionSolidColor Composition = 3
	CompositionCursor     Composition = 4
	CompositionSideband   Composition = 5
)

func (c Composition) String() string {
	switch c {
	case CompositionClient:
		return "client"
	case CompositionDevice:
		return "device"
	case CompositionSolidColor:
		return "solid_color"
	case CompositionCursor:
		return "cursor"
	case CompositionSideband:
		return "sideband"
	default:
		return "invalid"
	}
}

// DisplayRequest is a bit set of requests the backend makes of the whole display.
type DisplayRequest uint32

const (
	DisplayRequestFlipClientTarget          DisplayRequest = 1 << 0
	DisplayRequestWriteClientTargetToOutput DisplayRequest = 1 << 1
)

// LayerRequest is a bit set of requests the backend makes of one layer.
type LayerRequest uint32

const (
	LayerRequestClearClientTarget LayerRequest = 1 << 0
)

// PixelFormat of a buffer.
type PixelFormat int32

const (
	PixelFormatUnspecified PixelFormat = 0
	PixelFormatRGBA8888    PixelFormat = 1
	PixelFormatRGBX8888    PixelFormat = 2
	PixelFormatRGB888      PixelFormat = 3
	PixelFormatRGB565      PixelFormat = 4
	PixelFormatBGRA8888    PixelFormat = 5
)

// Dataspace describes how buffer contents are interpreted.
type Dataspace int32

const (
	DataspaceUnknown   Dataspace = 0
	DataspaceSRGB      Dataspace = 142671872
	DataspaceDisplayP3 Dataspace = 143261696
	DataspaceBT2020PQ  Dataspace = 163971072
)

// ClientTargetProperty is the backend's preferred client target format.
type ClientTargetProperty struct {
	PixelFormat PixelFormat
	Dataspace   Dataspace
}

// ColorMode is a display color mode.
type ColorMode int32

const (
	ColorModeNative    ColorMode = 0
	ColorModeSRGB      ColorMode = 7
	ColorModeDisplayP3 ColorMode = 9
	ColorModeBT2100PQ  ColorMode = 11
)

func (m ColorMode) String() string {
	switch m {
	case ColorModeNative:
		return "native"
	case ColorModeSRGB:
		return "srgb"
	case ColorModeDisplayP3:
		return "display_p3"
	case ColorModeBT2100PQ:
		return "bt2100_pq"
	default:
		return fmt.Sprintf("color_mode(%d)", int32(m))
	}
}

// RenderIntent selects a color rendering intent.
type RenderIntent int32

const (
	RenderIntentColorimetric        RenderIntent = 0
	RenderIntentEnhance             RenderIntent = 1
	RenderIntentToneMapColorimetric RenderIntent = 2
	RenderIntentToneMapEnhance      RenderIntent = 3
)

func (r RenderIntent) String() string {
	switch r {
	case RenderIntentColorimetric:
		return "colorimetric"
	case RenderIntentEnhance:
		return "enhance"
	case RenderIntentToneMapColorimetric:
		return "tone_map_colorimetric"
	case RenderIntentToneMapEnhance:
		return "tone_map_enhance"
	default:
		return fmt.Sprintf("render_intent(%d)", int32(r))
	}
}

// ColorTransformHint tells the backend whether a color matrix is trivial.
type ColorTransformHint int32

const (
	ColorTransformIdentity        ColorTransformHint = 0
	ColorTransformArbitraryMatrix ColorTransformHint = 1
)

// Mat4 is a column-major 4x4 color matrix.
type Mat4 [16]float32

// IdentityMat4 returns the identity matrix.
func IdentityMat4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// ContentType is a hint about the kind of content on a display.
type ContentType int32

const (
	ContentTypeNone     ContentType = 0
	ContentTypeGraphics ContentType = 1
	ContentTypePhoto    ContentType = 2
	ContentTypeCinema   ContentType = 3
	ContentTypeGame     ContentType = 4
)

func (c ContentType) String() string {
	switch c {
	case ContentTypeNone:
		return "none"
	case ContentTypeGraphics:
		return "graphics"
	case ContentTypePhoto:
		return "photo"
	case ContentTypeCinema:
		return "cinema"
	case ContentTypeGame:
		return "game"
	default:
		return fmt.Sprintf("content_type(%d)", int32(c))
	}
}

// HdrCapabilities reports HDR support of a display.
type HdrCapabilities struct {
	Types               []int32
	MaxLuminance        float32
	MaxAverageLuminance float32
	MinLuminance        float32
}

// PerFrameMetadataKey is a per-frame HDR metadata key.
type PerFrameMetadataKey int32

// ContentSamplingAttributes describe the format of displayed content samples.
type ContentSamplingAttributes struct {
	Format        PixelFormat
	Dataspace     Dataspace
	ComponentMask uint8
}

// DisplayedFrameStats is a histogram of displayed content.
type DisplayedFrameStats struct {
	NumFrames  uint64
	Component0 []uint64
	Component1 []uint64
	Component2 []uint64
	Component3 []uint64
}

// VsyncPeriodChangeConstraints constrain a mode switch.
type VsyncPeriodChangeConstraints struct {
	DesiredTimeNanos int64
	SeamlessRequired bool
}

// VsyncPeriodChangeTimeline is returned by the backend for a mode switch.
type VsyncPeriodChangeTimeline struct {
	NewVsyncAppliedTimeNanos int64
	RefreshRequired          bool
	RefreshTimeNanos         int64
}

// LayerGenericMetadataKey describes a generic layer metadata key supported by the backend.
type LayerGenericMetadataKey struct {
	Name      string
	Mandatory bool
}

// BufferHandle is an opaque reference to a graphics buffer owned upstream.
type BufferHandle uint64
