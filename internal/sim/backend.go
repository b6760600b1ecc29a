package sim

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bnema/displayhal/internal/hal"
)

// Operation names used by Calls and SetError.
const (
	OpCreateVirtualDisplay         = "CreateVirtualDisplay"
	OpDestroyVirtualDisplay        = "DestroyVirtualDisplay"
	OpGetIdentificationData        = "GetDisplayIdentificationData"
	OpGetDisplayCapabilities       = "GetDisplayCapabilities"
	OpGetConnectionType            = "GetDisplayConnectionType"
	OpGetDisplayConfigs            = "GetDisplayConfigs"
	OpGetDisplayAttribute          = "GetDisplayAttribute"
	OpGetActiveConfig              = "GetActiveConfig"
	OpSetActiveConfig              = "SetActiveConfigWithConstraints"
	OpGetDisplayVsyncPeriod        = "GetDisplayVsyncPeriod"
	OpCreateLayer                  = "CreateLayer"
	OpDestroyLayer                 = "DestroyLayer"
	OpSetClientTarget              = "SetClientTarget"
	OpSetOutputBuffer              = "SetOutputBuffer"
	OpValidate                     = "Validate"
	OpPresentOrValidate            = "PresentOrValidate"
	OpPresent                      = "Present"
	OpAcceptChanges                = "AcceptChanges"
	OpGetChangedCompositionTypes   = "GetChangedCompositionTypes"
	OpGetRequests                  = "GetRequests"
	OpGetClientTargetProperty      = "GetClientTargetProperty"
	OpGetReleaseFences             = "GetReleaseFences"
	OpExecuteCommands              = "ExecuteCommands"
	OpSetVsyncEnabled              = "SetVsyncEnabled"
	OpSetPowerMode                 = "SetPowerMode"
	OpSupportsDoze                 = "SupportsDoze"
	OpGetColorModes                = "GetColorModes"
	OpGetRenderIntents             = "GetRenderIntents"
	OpSetColorMode                 = "SetColorMode"
	OpSetColorTransform            = "SetColorTransform"
	OpGetSaturationMatrix          = "GetDataspaceSaturationMatrix"
	OpGetHdrCapabilities           = "GetHdrCapabilities"
	OpGetPerFrameMetadataKeys      = "GetPerFrameMetadataKeys"
	OpGetContentSamplingAttributes = "GetDisplayedContentSamplingAttributes"
	OpSetContentSamplingEnabled    = "SetDisplayedContentSamplingEnabled"
	OpGetContentSample             = "GetDisplayedContentSample"
	OpSetDisplayBrightness         = "SetDisplayBrightness"
	OpSetAutoLowLatencyMode        = "SetAutoLowLatencyMode"
	OpGetSupportedContentTypes     = "GetSupportedContentTypes"
	OpSetContentType               = "SetContentType"
	OpGetLayerGenericMetadataKeys  = "GetLayerGenericMetadataKeys"
)

// firstVirtualHandle keeps virtual handles clear of scenario handles.
const firstVirtualHandle hal.DisplayHandle = 1 << 16

type errKey struct {
	op      string
	display hal.DisplayHandle
}

type attrKey struct {
	display hal.DisplayHandle
	config  hal.ConfigID
	attr    hal.Attribute
}

type display struct {
	spec      DisplaySpec
	virtual   bool
	connected bool
	width     uint32
	height    uint32

	capabilities []hal.DisplayCapability
	colorModes   []hal.ColorMode
	contentTypes []hal.ContentType

	activeConfig hal.ConfigID
	activeKnown  bool
	vsync        hal.Vsync
	power        hal.PowerMode
	colorMode    hal.ColorMode
	renderIntent hal.RenderIntent
	colorHint    hal.ColorTransformHint
	contentType  hal.ContentType
	brightness   float32
	lowLatency   bool
	sampling     bool

	layers       map[hal.LayerHandle]bool
	changedTypes map[hal.LayerHandle]hal.Composition
	layerReqs    map[hal.LayerHandle]hal.LayerRequest
	displayReqs  hal.DisplayRequest
	validated    bool
	pvState      *hal.PresentOrValidateState
	lastPresent  hal.Fence
	releases     map[hal.LayerHandle]hal.Fence
	presents     int
}

// Backend is a simulated hal.Composer. It is safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	capabilities      []hal.Capability
	vsyncPeriodSwitch bool
	maxVirtual        uint32
	metadata          []hal.LayerGenericMetadataKey

	displays    map[hal.DisplayHandle]*display
	callback    hal.Callback
	nextFence   uint64
	nextLayer   hal.LayerHandle
	nextVirtual hal.DisplayHandle

	calls     map[string]int
	errs      map[errKey]error
	attrErrs  map[attrKey]error
	identErrs map[hal.DisplayHandle]error
	commands  int
}

var _ hal.Composer = (*Backend)(nil)

// New builds a backend from a validated scenario. Displays start disconnected;
// call Hotplug to announce them.
func New(s *Scenario) (*Backend, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	caps, _ := parseCapabilities(s.Capabilities)
	b := &Backend{
		capabilities:      caps,
		vsyncPeriodSwitch: s.VsyncPeriodSwitch,
		maxVirtual:        s.MaxVirtualDisplays,
		displays:          make(map[hal.DisplayHandle]*display),
		nextFence:         1,
		nextLayer:         1,
		nextVirtual:       firstVirtualHandle,
		calls:             make(map[string]int),
		errs:              make(map[errKey]error),
		attrErrs:          make(map[attrKey]error),
		identErrs:         make(map[hal.DisplayHandle]error),
	}
	for _, m := range s.GenericMetadata {
		b.metadata = append(b.metadata, hal.LayerGenericMetadataKey{Name: m.Name, Mandatory: m.Mandatory})
	}
	for _, spec := range s.Displays {
		if err := b.AddDisplay(spec); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// AddDisplay registers a physical display without announcing it.
func (b *Backend) AddDisplay(spec DisplaySpec) error {
	caps, err := parseDisplayCapabilities(spec.Capabilities)
	if err != nil {
		return err
	}
	colorModes, err := parseColorModes(spec.ColorModes)
	if err != nil {
		return err
	}
	contentTypes, err := parseContentTypes(spec.ContentTypes)
	if err != nil {
		return err
	}
	if len(colorModes) == 0 {
		colorModes = []hal.ColorMode{hal.ColorModeNative}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	h := hal.DisplayHandle(spec.Handle)
	if _, ok := b.displays[h]; ok {
		return fmt.Errorf("display handle %d already exists", spec.Handle)
	}
	d := newDisplay(spec)
	d.capabilities = caps
	d.colorModes = colorModes
	d.contentTypes = contentTypes
	b.displays[h] = d
	return nil
}

func newDisplay(spec DisplaySpec) *display {
	d := &display{
		spec:         spec,
		vsync:        hal.VsyncDisable,
		power:        hal.PowerModeOff,
		layers:       make(map[hal.LayerHandle]bool),
		changedTypes: make(map[hal.LayerHandle]hal.Composition),
		layerReqs:    make(map[hal.LayerHandle]hal.LayerRequest),
		releases:     make(map[hal.LayerHandle]hal.Fence),
	}
	if spec.ActiveConfig != 0 {
		d.activeConfig = hal.ConfigID(spec.ActiveConfig)
		d.activeKnown = true
	} else if len(spec.Modes) > 0 {
		d.activeConfig = hal.ConfigID(spec.Modes[0].Config)
		d.activeKnown = true
	}
	return d
}

// Handles returns the scenario's physical display handles in ascending order.
func (b *Backend) Handles() []hal.DisplayHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []hal.DisplayHandle
	for h, d := range b.displays {
		if !d.virtual {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Hotplug changes the connection state of a display and notifies the
// registered callback.
func (b *Backend) Hotplug(h hal.DisplayHandle, conn hal.Connection) {
	b.mu.Lock()
	if d, ok := b.displays[h]; ok {
		switch conn {
		case hal.ConnectionConnected:
			d.connected = true
		case hal.ConnectionDisconnected:
			d.connected = false
		}
	}
	cb := b.callback
	b.mu.Unlock()

	if cb != nil {
		cb.OnHotplug(h, conn)
	}
}

// Connected reports whether h is currently plugged in.
func (b *Backend) Connected(h hal.DisplayHandle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.displays[h]
	return ok && d.connected
}

// Vsync emits a vsync event through the variant matching the backend version.
func (b *Backend) Vsync(h hal.DisplayHandle, timestamp int64) {
	b.mu.Lock()
	cb := b.callback
	switchSupported := b.vsyncPeriodSwitch
	var period hal.VsyncPeriodNanos
	if d, ok := b.displays[h]; ok {
		if m, ok := d.mode(d.activeConfig); ok {
			period = hal.VsyncPeriodNanos(m.VsyncPeriod())
		}
	}
	b.mu.Unlock()

	if cb == nil {
		return
	}
	if switchSupported {
		cb.OnVsyncWithPeriod(h, timestamp, period)
	} else {
		cb.OnVsync(h, timestamp)
	}
}

// Refresh asks the compositor to redraw a display.
func (b *Backend) Refresh(h hal.DisplayHandle) {
	b.mu.Lock()
	cb := b.callback
	b.mu.Unlock()
	if cb != nil {
		cb.OnRefresh(h)
	}
}

// Callback returns the registered callback, nil before registration.
func (b *Backend) Callback() hal.Callback {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callback
}

// Calls returns how many times op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// ResetCalls clears all call counters.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = make(map[string]int)
}

// SetError makes op fail with err for display h. A nil err clears it.
func (b *Backend) SetError(op string, h hal.DisplayHandle, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.errs, errKey{op, h})
		return
	}
	b.errs[errKey{op, h}] = err
}

// SetAttributeError makes one attribute query fail.
func (b *Backend) SetAttributeError(h hal.DisplayHandle, config hal.ConfigID, attr hal.Attribute, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.attrErrs, attrKey{h, config, attr})
		return
	}
	b.attrErrs[attrKey{h, config, attr}] = err
}

// SetModes replaces the modes of a display, as a backend-initiated mode
// change would.
func (b *Backend) SetModes(h hal.DisplayHandle, modes []ModeSpec, active uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.displays[h]; ok {
		d.spec.Modes = modes
		d.activeConfig = hal.ConfigID(active)
		d.activeKnown = active != 0
	}
}

// SetPresentOrValidateState forces the outcome of the next present-or-validate calls.
func (b *Backend) SetPresentOrValidateState(h hal.DisplayHandle, state hal.PresentOrValidateState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.displays[h]; ok {
		d.pvState = &state
	}
}

// SetChangedTypes sets the composition changes reported after validation.
func (b *Backend) SetChangedTypes(h hal.DisplayHandle, changes map[hal.LayerHandle]hal.Composition, displayReqs hal.DisplayRequest, layerReqs map[hal.LayerHandle]hal.LayerRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.displays[h]; ok {
		d.changedTypes = copyMap(changes)
		d.layerReqs = copyMap(layerReqs)
		d.displayReqs = displayReqs
	}
}

// VsyncState reports the vsync toggle of a display.
func (b *Backend) VsyncState(h hal.DisplayHandle) hal.Vsync {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.displays[h]; ok {
		return d.vsync
	}
	return hal.VsyncInvalid
}

// PowerMode reports the power mode of a display.
func (b *Backend) PowerMode(h hal.DisplayHandle) hal.PowerMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.displays[h]; ok {
		return d.power
	}
	return hal.PowerModeOff
}

// Brightness reports the last brightness set on a display.
func (b *Backend) Brightness(h hal.DisplayHandle) float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.displays[h]; ok {
		return d.brightness
	}
	return 0
}

// Presents reports how many frames a display presented.
func (b *Backend) Presents(h hal.DisplayHandle) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.displays[h]; ok {
		return d.presents
	}
	return 0
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// begin records a call and returns the display plus any injected error.
// Callers hold b.mu.
func (b *Backend) begin(op string, h hal.DisplayHandle) (*display, error) {
	b.calls[op]++
	if err, ok := b.errs[errKey{op, h}]; ok {
		return nil, err
	}
	d, ok := b.displays[h]
	if !ok {
		return nil, hal.BadDisplay
	}
	return d, nil
}

func (b *Backend) newFence() hal.Fence {
	f := hal.NewFence(b.nextFence)
	b.nextFence++
	return f
}

func (d *display) mode(config hal.ConfigID) (ModeSpec, bool) {
	for _, m := range d.spec.Modes {
		if hal.ConfigID(m.Config) == config {
			return m, true
		}
	}
	return ModeSpec{}, false
}

func (d *display) hasCapability(c hal.DisplayCapability) bool {
	for _, have := range d.capabilities {
		if have == c {
			return true
		}
	}
	return false
}

func (b *Backend) GetCapabilities() []hal.Capability {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]hal.Capability(nil), b.capabilities...)
}

func (b *Backend) GetLayerGenericMetadataKeys() ([]hal.LayerGenericMetadataKey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[OpGetLayerGenericMetadataKeys]++
	if err, ok := b.errs[errKey{OpGetLayerGenericMetadataKeys, 0}]; ok {
		return nil, err
	}
	return append([]hal.LayerGenericMetadataKey(nil), b.metadata...), nil
}

func (b *Backend) GetMaxVirtualDisplayCount() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxVirtual
}

func (b *Backend) IsVsyncPeriodSwitchSupported() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vsyncPeriodSwitch
}

func (b *Backend) RegisterCallback(cb hal.Callback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callback = cb
}

func (b *Backend) ExecuteCommands() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[OpExecuteCommands]++
	if err, ok := b.errs[errKey{OpExecuteCommands, 0}]; ok {
		return err
	}
	b.commands++
	return nil
}

func (b *Backend) DumpDebugInfo() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Simulated composer: %d display(s), vsync period switch %t, max virtual %d\n",
		len(b.displays), b.vsyncPeriodSwitch, b.maxVirtual)
	handles := make([]hal.DisplayHandle, 0, len(b.displays))
	for h := range b.displays {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		d := b.displays[h]
		kind := "physical"
		if d.virtual {
			kind = "virtual"
		}
		fmt.Fprintf(&sb, "  hwc display %d (%s): connected=%t power=%s vsync=%t config=%d layers=%d presents=%d\n",
			h, kind, d.connected, d.power, d.vsync == hal.VsyncEnable, d.activeConfig, len(d.layers), d.presents)
	}
	return sb.String()
}

func (b *Backend) CreateVirtualDisplay(width, height uint32, format hal.PixelFormat) (hal.DisplayHandle, hal.PixelFormat, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[OpCreateVirtualDisplay]++
	if err, ok := b.errs[errKey{OpCreateVirtualDisplay, 0}]; ok {
		return 0, format, err
	}
	live := 0
	for _, d := range b.displays {
		if d.virtual {
			live++
		}
	}
	if uint32(live) >= b.maxVirtual {
		return 0, format, hal.NoResources
	}
	if format == hal.PixelFormatUnspecified {
		format = hal.PixelFormatRGBA8888
	}
	h := b.nextVirtual
	b.nextVirtual++
	d := newDisplay(DisplaySpec{Handle: uint64(h)})
	d.virtual = true
	d.connected = true
	d.width, d.height = width, height
	d.power = hal.PowerModeOn
	d.colorModes = []hal.ColorMode{hal.ColorModeNative}
	b.displays[h] = d
	return h, format, nil
}

func (b *Backend) DestroyVirtualDisplay(h hal.DisplayHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpDestroyVirtualDisplay, h)
	if err != nil {
		return err
	}
	if !d.virtual {
		return hal.BadDisplay
	}
	delete(b.displays, h)
	return nil
}

func (b *Backend) GetDisplayIdentificationData(h hal.DisplayHandle) (uint8, []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetIdentificationData, h)
	if err != nil {
		return 0, nil, err
	}
	if d.spec.Identity == nil {
		return 0, nil, hal.Unsupported
	}
	data, err := d.spec.identificationData()
	if err != nil {
		return 0, nil, hal.BadParameter
	}
	return d.spec.Port, data, nil
}

func (b *Backend) GetDisplayCapabilities(h hal.DisplayHandle) ([]hal.DisplayCapability, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetDisplayCapabilities, h)
	if err != nil {
		return nil, err
	}
	return append([]hal.DisplayCapability(nil), d.capabilities...), nil
}

func (b *Backend) GetDisplayConnectionType(h hal.DisplayHandle) (hal.ConnectionType, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetConnectionType, h)
	if err != nil {
		return 0, err
	}
	switch strings.ToLower(d.spec.ConnectionType) {
	case "internal":
		return hal.ConnectionTypeInternal, nil
	case "external":
		return hal.ConnectionTypeExternal, nil
	default:
		return 0, hal.Unsupported
	}
}

func (b *Backend) GetDisplayConfigs(h hal.DisplayHandle) ([]hal.ConfigID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetDisplayConfigs, h)
	if err != nil {
		return nil, err
	}
	ids := make([]hal.ConfigID, 0, len(d.spec.Modes))
	for _, m := range d.spec.Modes {
		ids = append(ids, hal.ConfigID(m.Config))
	}
	return ids, nil
}

func (b *Backend) GetDisplayAttribute(h hal.DisplayHandle, config hal.ConfigID, attr hal.Attribute) (int32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetDisplayAttribute, h)
	if err != nil {
		return 0, err
	}
	if err, ok := b.attrErrs[attrKey{h, config, attr}]; ok {
		return 0, err
	}
	m, ok := d.mode(config)
	if !ok {
		return 0, hal.BadConfig
	}
	switch attr {
	case hal.AttributeWidth:
		return m.Width, nil
	case hal.AttributeHeight:
		return m.Height, nil
	case hal.AttributeVsyncPeriod:
		return m.VsyncPeriod(), nil
	case hal.AttributeDpiX:
		return m.DpiX, nil
	case hal.AttributeDpiY:
		return m.DpiY, nil
	case hal.AttributeConfigGroup:
		return m.Group, nil
	default:
		return 0, hal.BadParameter
	}
}

func (b *Backend) GetActiveConfig(h hal.DisplayHandle) (hal.ConfigID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetActiveConfig, h)
	if err != nil {
		return 0, err
	}
	if !d.activeKnown {
		return 0, hal.BadConfig
	}
	return d.activeConfig, nil
}

func (b *Backend) SetActiveConfigWithConstraints(h hal.DisplayHandle, config hal.ConfigID, constraints hal.VsyncPeriodChangeConstraints) (hal.VsyncPeriodChangeTimeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSetActiveConfig, h)
	if err != nil {
		return hal.VsyncPeriodChangeTimeline{}, err
	}
	next, ok := d.mode(config)
	if !ok {
		return hal.VsyncPeriodChangeTimeline{}, hal.BadConfig
	}
	if cur, ok := d.mode(d.activeConfig); ok && constraints.SeamlessRequired && cur.Group != next.Group {
		return hal.VsyncPeriodChangeTimeline{}, hal.SeamlessNotPossible
	}
	d.activeConfig = config
	d.activeKnown = true
	return hal.VsyncPeriodChangeTimeline{
		NewVsyncAppliedTimeNanos: constraints.DesiredTimeNanos,
		RefreshRequired:          false,
	}, nil
}

func (b *Backend) GetDisplayVsyncPeriod(h hal.DisplayHandle) (hal.VsyncPeriodNanos, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetDisplayVsyncPeriod, h)
	if err != nil {
		return 0, err
	}
	if !b.vsyncPeriodSwitch {
		return 0, hal.Unsupported
	}
	m, ok := d.mode(d.activeConfig)
	if !ok {
		return 0, hal.BadConfig
	}
	return hal.VsyncPeriodNanos(m.VsyncPeriod()), nil
}

func (b *Backend) CreateLayer(h hal.DisplayHandle) (hal.LayerHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpCreateLayer, h)
	if err != nil {
		return 0, err
	}
	l := b.nextLayer
	b.nextLayer++
	d.layers[l] = true
	return l, nil
}

func (b *Backend) DestroyLayer(h hal.DisplayHandle, l hal.LayerHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpDestroyLayer, h)
	if err != nil {
		return err
	}
	if !d.layers[l] {
		return hal.BadLayer
	}
	delete(d.layers, l)
	delete(d.changedTypes, l)
	delete(d.layerReqs, l)
	delete(d.releases, l)
	return nil
}

func (b *Backend) SetClientTarget(h hal.DisplayHandle, slot uint32, target hal.BufferHandle, acquire hal.Fence, dataspace hal.Dataspace) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.begin(OpSetClientTarget, h)
	return err
}

func (b *Backend) SetOutputBuffer(h hal.DisplayHandle, buffer hal.BufferHandle, release hal.Fence) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSetOutputBuffer, h)
	if err != nil {
		return err
	}
	if !d.virtual {
		return hal.Unsupported
	}
	return nil
}

func (b *Backend) validate(d *display) (uint32, uint32, error) {
	d.validated = true
	if len(d.changedTypes) > 0 || len(d.layerReqs) > 0 {
		return uint32(len(d.changedTypes)), uint32(len(d.layerReqs)), hal.HasChanges
	}
	return 0, 0, nil
}

func (b *Backend) present(d *display) hal.Fence {
	d.validated = false
	d.presents++
	d.lastPresent = b.newFence()
	d.releases = make(map[hal.LayerHandle]hal.Fence, len(d.layers))
	for l := range d.layers {
		d.releases[l] = b.newFence()
	}
	return d.lastPresent
}

func (b *Backend) Validate(h hal.DisplayHandle) (uint32, uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpValidate, h)
	if err != nil {
		return 0, 0, err
	}
	return b.validate(d)
}

func (b *Backend) PresentOrValidate(h hal.DisplayHandle) (hal.PresentOrValidateResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpPresentOrValidate, h)
	if err != nil {
		return hal.PresentOrValidateResult{}, err
	}
	presentDirectly := d.spec.SkipValidate && len(d.changedTypes) == 0
	if d.pvState != nil {
		presentDirectly = *d.pvState == hal.StatePresented
	}
	if presentDirectly {
		return hal.PresentOrValidateResult{State: hal.StatePresented, PresentFence: b.present(d)}, nil
	}
	types, reqs, err := b.validate(d)
	return hal.PresentOrValidateResult{State: hal.StateValidated, NumTypes: types, NumRequests: reqs}, err
}

func (b *Backend) Present(h hal.DisplayHandle) (hal.Fence, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpPresent, h)
	if err != nil {
		return hal.NoFence, err
	}
	if !d.validated {
		return hal.NoFence, hal.NotValidated
	}
	return b.present(d), nil
}

func (b *Backend) AcceptChanges(h hal.DisplayHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpAcceptChanges, h)
	if err != nil {
		return err
	}
	if !d.validated {
		return hal.NotValidated
	}
	d.changedTypes = make(map[hal.LayerHandle]hal.Composition)
	d.layerReqs = make(map[hal.LayerHandle]hal.LayerRequest)
	d.displayReqs = 0
	return nil
}

func (b *Backend) GetChangedCompositionTypes(h hal.DisplayHandle) (map[hal.LayerHandle]hal.Composition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetChangedCompositionTypes, h)
	if err != nil {
		return nil, err
	}
	if !d.validated {
		return nil, hal.NotValidated
	}
	return copyMap(d.changedTypes), nil
}

func (b *Backend) GetRequests(h hal.DisplayHandle) (hal.DisplayRequest, map[hal.LayerHandle]hal.LayerRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetRequests, h)
	if err != nil {
		return 0, nil, err
	}
	if !d.validated {
		return 0, nil, hal.NotValidated
	}
	return d.displayReqs, copyMap(d.layerReqs), nil
}

func (b *Backend) GetClientTargetProperty(h hal.DisplayHandle) (hal.ClientTargetProperty, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.begin(OpGetClientTargetProperty, h); err != nil {
		return hal.ClientTargetProperty{}, err
	}
	return hal.ClientTargetProperty{PixelFormat: hal.PixelFormatRGBA8888, Dataspace: hal.DataspaceSRGB}, nil
}

func (b *Backend) GetReleaseFences(h hal.DisplayHandle) (map[hal.LayerHandle]hal.Fence, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetReleaseFences, h)
	if err != nil {
		return nil, err
	}
	return copyMap(d.releases), nil
}

func (b *Backend) SetVsyncEnabled(h hal.DisplayHandle, enabled hal.Vsync) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSetVsyncEnabled, h)
	if err != nil {
		return err
	}
	if enabled != hal.VsyncEnable && enabled != hal.VsyncDisable {
		return hal.BadParameter
	}
	d.vsync = enabled
	return nil
}

func (b *Backend) SetPowerMode(h hal.DisplayHandle, mode hal.PowerMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSetPowerMode, h)
	if err != nil {
		return err
	}
	if (mode == hal.PowerModeDoze || mode == hal.PowerModeDozeSuspend) && !d.spec.Doze {
		return hal.Unsupported
	}
	d.power = mode
	return nil
}

func (b *Backend) SupportsDoze(h hal.DisplayHandle) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSupportsDoze, h)
	if err != nil {
		return false, err
	}
	return d.spec.Doze || d.hasCapability(hal.DisplayCapabilityDoze), nil
}

func (b *Backend) GetColorModes(h hal.DisplayHandle) ([]hal.ColorMode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetColorModes, h)
	if err != nil {
		return nil, err
	}
	return append([]hal.ColorMode(nil), d.colorModes...), nil
}

func (b *Backend) supportsColorMode(d *display, mode hal.ColorMode) bool {
	for _, m := range d.colorModes {
		if m == mode {
			return true
		}
	}
	return false
}

func (b *Backend) GetRenderIntents(h hal.DisplayHandle, mode hal.ColorMode) ([]hal.RenderIntent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetRenderIntents, h)
	if err != nil {
		return nil, err
	}
	if !b.supportsColorMode(d, mode) {
		return nil, hal.BadParameter
	}
	intents := []hal.RenderIntent{hal.RenderIntentColorimetric}
	if mode != hal.ColorModeNative {
		intents = append(intents, hal.RenderIntentEnhance)
	}
	return intents, nil
}

func (b *Backend) SetColorMode(h hal.DisplayHandle, mode hal.ColorMode, intent hal.RenderIntent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSetColorMode, h)
	if err != nil {
		return err
	}
	if !b.supportsColorMode(d, mode) {
		return hal.BadParameter
	}
	d.colorMode, d.renderIntent = mode, intent
	return nil
}

func (b *Backend) SetColorTransform(h hal.DisplayHandle, matrix hal.Mat4, hint hal.ColorTransformHint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSetColorTransform, h)
	if err != nil {
		return err
	}
	d.colorHint = hint
	return nil
}

// ColorTransformHint reports the last hint passed with a color transform.
func (b *Backend) ColorTransformHint(h hal.DisplayHandle) hal.ColorTransformHint {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.displays[h]; ok {
		return d.colorHint
	}
	return hal.ColorTransformIdentity
}

func (b *Backend) GetDataspaceSaturationMatrix(h hal.DisplayHandle, dataspace hal.Dataspace) (hal.Mat4, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.begin(OpGetSaturationMatrix, h); err != nil {
		return hal.Mat4{}, err
	}
	if dataspace != hal.DataspaceSRGB {
		return hal.Mat4{}, hal.BadParameter
	}
	return hal.IdentityMat4(), nil
}

func (b *Backend) GetHdrCapabilities(h hal.DisplayHandle) (hal.HdrCapabilities, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetHdrCapabilities, h)
	if err != nil {
		return hal.HdrCapabilities{}, err
	}
	if !b.supportsColorMode(d, hal.ColorModeBT2100PQ) {
		return hal.HdrCapabilities{}, nil
	}
	return hal.HdrCapabilities{Types: []int32{2}, MaxLuminance: 1000, MaxAverageLuminance: 500, MinLuminance: 0.05}, nil
}

func (b *Backend) GetPerFrameMetadataKeys(h hal.DisplayHandle) ([]hal.PerFrameMetadataKey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetPerFrameMetadataKeys, h)
	if err != nil {
		return nil, err
	}
	if !b.supportsColorMode(d, hal.ColorModeBT2100PQ) {
		return nil, hal.Unsupported
	}
	return []hal.PerFrameMetadataKey{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, nil
}

func (b *Backend) GetDisplayedContentSamplingAttributes(h hal.DisplayHandle) (hal.ContentSamplingAttributes, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.begin(OpGetContentSamplingAttributes, h); err != nil {
		return hal.ContentSamplingAttributes{}, err
	}
	return hal.ContentSamplingAttributes{Format: hal.PixelFormatRGBA8888, Dataspace: hal.DataspaceSRGB, ComponentMask: 0x7}, nil
}

func (b *Backend) SetDisplayedContentSamplingEnabled(h hal.DisplayHandle, enabled bool, componentMask uint8, maxFrames uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSetContentSamplingEnabled, h)
	if err != nil {
		return err
	}
	if enabled && componentMask == 0 {
		return hal.BadParameter
	}
	d.sampling = enabled
	return nil
}

func (b *Backend) GetDisplayedContentSample(h hal.DisplayHandle, maxFrames, timestamp uint64) (hal.DisplayedFrameStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetContentSample, h)
	if err != nil {
		return hal.DisplayedFrameStats{}, err
	}
	if !d.sampling {
		return hal.DisplayedFrameStats{}, hal.BadParameter
	}
	frames := uint64(d.presents)
	if maxFrames != 0 && frames > maxFrames {
		frames = maxFrames
	}
	return hal.DisplayedFrameStats{NumFrames: frames}, nil
}

func (b *Backend) SetDisplayBrightness(h hal.DisplayHandle, brightness float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSetDisplayBrightness, h)
	if err != nil {
		return err
	}
	if !d.hasCapability(hal.DisplayCapabilityBrightness) {
		return hal.Unsupported
	}
	if brightness < -1 || brightness > 1 {
		return hal.BadParameter
	}
	d.brightness = brightness
	return nil
}

func (b *Backend) SetAutoLowLatencyMode(h hal.DisplayHandle, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSetAutoLowLatencyMode, h)
	if err != nil {
		return err
	}
	if !d.hasCapability(hal.DisplayCapabilityAutoLowLatencyMode) {
		return hal.Unsupported
	}
	d.lowLatency = on
	return nil
}

func (b *Backend) GetSupportedContentTypes(h hal.DisplayHandle) ([]hal.ContentType, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpGetSupportedContentTypes, h)
	if err != nil {
		return nil, err
	}
	return append([]hal.ContentType(nil), d.contentTypes...), nil
}

func (b *Backend) SetContentType(h hal.DisplayHandle, contentType hal.ContentType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, err := b.begin(OpSetContentType, h)
	if err != nil {
		return err
	}
	if contentType == hal.ContentTypeNone {
		d.contentType = contentType
		return nil
	}
	if len(d.contentTypes) == 0 {
		return hal.Unsupported
	}
	for _, ct := range d.contentTypes {
		if ct == contentType {
			d.contentType = contentType
			return nil
		}
	}
	return hal.BadParameter
}
