package hal

// PresentOrValidateState reports what a combined present-or-validate call did.
type PresentOrValidateState int32

const (
	// StateValidated means the backend validated the frame but did not present it.
	StateValidated PresentOrValidateState = 0
	// StatePresented means the backend presented the frame during the call.
	StatePresented PresentOrValidateState = 1
)

// PresentOrValidateResult is returned by Composer.PresentOrValidate.
type PresentOrValidateResult struct {
	State        PresentOrValidateState
	NumTypes     uint32
	NumRequests  uint32
	PresentFence Fence
}

// Composer is the command surface of the composition backend. Every call is
// synchronous; the backend bounds its own latency.
type Composer interface {
	GetCapabilities() []Capability
	GetLayerGenericMetadataKeys() ([]LayerGenericMetadataKey, error)
	GetMaxVirtualDisplayCount() uint32
	IsVsyncPeriodSwitchSupported() bool
	RegisterCallback(cb Callback)
	ExecuteCommands() error
	DumpDebugInfo() string

	CreateVirtualDisplay(width, height uint32, format PixelFormat) (DisplayHandle, PixelFormat, error)
	DestroyVirtualDisplay(display DisplayHandle) error
	GetDisplayIdentificationData(display DisplayHandle) (port uint8, data []byte, err error)
	GetDisplayCapabilities(display DisplayHandle) ([]DisplayCapability, error)
	GetDisplayConnectionType(display DisplayHandle) (ConnectionType, error)

	GetDisplayConfigs(display DisplayHandle) ([]ConfigID, error)
	GetDisplayAttribute(display DisplayHandle, config ConfigID, attr Attribute) (int32, error)
	GetActiveConfig(display DisplayHandle) (ConfigID, error)
	SetActiveConfigWithConstraints(display DisplayHandle, config ConfigID, constraints VsyncPeriodChangeConstraints) (VsyncPeriodChangeTimeline, error)
	GetDisplayVsyncPeriod(display DisplayHandle) (VsyncPeriodNanos, error)

	CreateLayer(display DisplayHandle) (LayerHandle, error)
	DestroyLayer(display DisplayHandle, layer LayerHandle) error
	SetClientTarget(display DisplayHandle, slot uint32, target BufferHandle, acquire Fence, dataspace Dataspace) error
	SetOutputBuffer(display DisplayHandle, buffer BufferHandle, release Fence) error

	Validate(display DisplayHandle) (numTypes, numRequests uint32, err error)
	PresentOrValidate(display DisplayHandle) (PresentOrValidateResult, error)
	Present(display DisplayHandle) (Fence, error)
	AcceptChanges(display DisplayHandle) error
	GetChangedCompositionTypes(display DisplayHandle) (map[LayerHandle]Composition, error)
	GetRequests(display DisplayHandle) (DisplayRequest, map[LayerHandle]LayerRequest, error)
	GetClientTargetProperty(display DisplayHandle) (ClientTargetProperty, error)
	GetReleaseFences(display DisplayHandle) (map[LayerHandle]Fence, error)

	SetVsyncEnabled(display DisplayHandle, enabled Vsync) error
	SetPowerMode(display DisplayHandle, mode PowerMode) error
	SupportsDoze(display DisplayHandle) (bool, error)

	GetColorModes(display DisplayHandle) ([]ColorMode, error)
	GetRenderIntents(display DisplayHandle, mode ColorMode) ([]RenderIntent, error)
	SetColorMode(display DisplayHandle, mode ColorMode, intent RenderIntent) error
	SetColorTransform(display DisplayHandle, matrix Mat4, hint ColorTransformHint) error
	GetDataspaceSaturationMatrix(display DisplayHandle, dataspace Dataspace) (Mat4, error)
	GetHdrCapabilities(display DisplayHandle) (HdrCapabilities, error)
	GetPerFrameMetadataKeys(display DisplayHandle) ([]PerFrameMetadataKey, error)

	GetDisplayedContentSamplingAttributes(display DisplayHandle) (ContentSamplingAttributes, error)
	SetDisplayedContentSamplingEnabled(display DisplayHandle, enabled bool, componentMask uint8, maxFrames uint64) error
	GetDisplayedContentSample(display DisplayHandle, maxFrames, timestamp uint64) (DisplayedFrameStats, error)

	SetDisplayBrightness(display DisplayHandle, brightness float32) error
	SetAutoLowLatencyMode(display DisplayHandle, on bool) error
	GetSupportedContentTypes(display DisplayHandle) ([]ContentType, error)
	SetContentType(display DisplayHandle, contentType ContentType) error
}

// EventSink receives asynchronous backend notifications. Methods may be
// called from backend goroutines, concurrently across displays.
type EventSink interface {
	OnHotplug(display DisplayHandle, connection Connection)
	OnRefresh(display DisplayHandle)
	// OnVsync delivers a vsync timestamp. period is zero when the backend
	// does not report one.
	OnVsync(display DisplayHandle, timestamp int64, period VsyncPeriodNanos)
	OnVsyncPeriodTimingChanged(display DisplayHandle, timeline VsyncPeriodChangeTimeline)
	OnSeamlessPossible(display DisplayHandle)
}

// Callback is what a backend invokes. It mirrors EventSink but keeps the
// legacy and period-carrying vsync entry points apart so the session can
// route them by backend version.
type Callback interface {
	OnHotplug(display DisplayHandle, connection Connection)
	OnRefresh(display DisplayHandle)
	OnVsync(display DisplayHandle, timestamp int64)
	OnVsyncWithPeriod(display DisplayHandle, timestamp int64, period VsyncPeriodNanos)
	OnVsyncPeriodTimingChanged(display DisplayHandle, timeline VsyncPeriodChangeTimeline)
	OnSeamlessPossible(display DisplayHandle)
}
