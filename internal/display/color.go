package display

import (
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/logger"
)

// ColorModes lists the color modes id supports.
func (a *Adapter) ColorModes(id ident.ID) ([]hal.ColorMode, error) {
	r, err := a.recordFor("getColorModes", id)
	if err != nil {
		return nil, err
	}
	modes, err := a.composer().GetColorModes(r.handle)
	if err != nil {
		return nil, backendError("getColorModes", id, err)
	}
	return modes, nil
}

// RenderIntents lists the render intents available for mode.
func (a *Adapter) RenderIntents(id ident.ID, mode hal.ColorMode) ([]hal.RenderIntent, error) {
	r, err := a.recordFor("getRenderIntents", id)
	if err != nil {
		return nil, err
	}
	intents, err := a.composer().GetRenderIntents(r.handle, mode)
	if err != nil {
		return nil, backendError("getRenderIntents", id, err)
	}
	return intents, nil
}

// SetActiveColorMode selects a color mode and render intent.
func (a *Adapter) SetActiveColorMode(id ident.ID, mode hal.ColorMode, intent hal.RenderIntent) error {
	r, err := a.recordFor("setActiveColorMode", id)
	if err != nil {
		return err
	}
	if err := a.composer().SetColorMode(r.handle, mode, intent); err != nil {
		return backendError("setColorMode", id, err)
	}
	return nil
}

// SetColorTransform applies a color matrix. The identity matrix is sent with
// the identity hint so the backend can skip the transform.
func (a *Adapter) SetColorTransform(id ident.ID, matrix hal.Mat4) error {
	r, err := a.recordFor("setColorTransform", id)
	if err != nil {
		return err
	}
	hint := hal.ColorTransformArbitraryMatrix
	if matrix == hal.IdentityMat4() {
		hint = hal.ColorTransformIdentity
	}
	if err := a.composer().SetColorTransform(r.handle, matrix, hint); err != nil {
		return backendError("setColorTransform", id, err)
	}
	return nil
}

// DataspaceSaturationMatrix returns the backend's saturation matrix for dataspace.
func (a *Adapter) DataspaceSaturationMatrix(id ident.ID, dataspace hal.Dataspace) (hal.Mat4, error) {
	r, err := a.recordFor("getDataspaceSaturationMatrix", id)
	if err != nil {
		return hal.IdentityMat4(), err
	}
	m, err := a.composer().GetDataspaceSaturationMatrix(r.handle, dataspace)
	if err != nil {
		return hal.IdentityMat4(), backendError("getDataspaceSaturationMatrix", id, err)
	}
	return m, nil
}

// HdrCapabilities returns the HDR types and luminance range of id.
func (a *Adapter) HdrCapabilities(id ident.ID) (hal.HdrCapabilities, error) {
	r, err := a.recordFor("getHdrCapabilities", id)
	if err != nil {
		return hal.HdrCapabilities{}, err
	}
	caps, err := a.composer().GetHdrCapabilities(r.handle)
	if err != nil {
		return hal.HdrCapabilities{}, backendError("getHdrCapabilities", id, err)
	}
	return caps, nil
}

// SupportedPerFrameMetadata lists the per-frame HDR metadata keys of id.
// An unknown display or backend failure yields an empty list.
func (a *Adapter) SupportedPerFrameMetadata(id ident.ID) []hal.PerFrameMetadataKey {
	r, ok := a.lookup(id)
	if !ok {
		logger.Error("Per-frame metadata requested for unknown display", "display", id)
		return nil
	}
	keys, err := a.composer().GetPerFrameMetadataKeys(r.handle)
	if err != nil {
		logger.Warn("Failed to get per-frame metadata keys", "display", id, "error", err)
		return nil
	}
	return keys
}

// DisplayedContentSamplingAttributes reports the format of content samples.
func (a *Adapter) DisplayedContentSamplingAttributes(id ident.ID) (hal.ContentSamplingAttributes, error) {
	r, err := a.recordFor("getDisplayedContentSamplingAttributes", id)
	if err != nil {
		return hal.ContentSamplingAttributes{}, err
	}
	attrs, err := a.composer().GetDisplayedContentSamplingAttributes(r.handle)
	if err != nil {
		return hal.ContentSamplingAttributes{}, backendError("getDisplayedContentSamplingAttributes", id, err)
	}
	return attrs, nil
}

// SetDisplayContentSamplingEnabled starts or stops collecting content samples.
func (a *Adapter) SetDisplayContentSamplingEnabled(id ident.ID, enabled bool, componentMask uint8, maxFrames uint64) error {
	r, err := a.recordFor("setDisplayContentSamplingEnabled", id)
	if err != nil {
		return err
	}
	if err := a.composer().SetDisplayedContentSamplingEnabled(r.handle, enabled, componentMask, maxFrames); err != nil {
		return backendError("setDisplayedContentSamplingEnabled", id, err)
	}
	return nil
}

// DisplayedContentSample returns the histogram collected since timestamp.
func (a *Adapter) DisplayedContentSample(id ident.ID, maxFrames, timestamp uint64) (hal.DisplayedFrameStats, error) {
	r, err := a.recordFor("getDisplayedContentSample", id)
	if err != nil {
		return hal.DisplayedFrameStats{}, err
	}
	stats, err := a.composer().GetDisplayedContentSample(r.handle, maxFrames, timestamp)
	if err != nil {
		return hal.DisplayedFrameStats{}, backendError("getDisplayedContentSample", id, err)
	}
	return stats, nil
}

// SetDisplayBrightness changes the panel brightness without blocking the
// caller. The channel yields the result once and is then closed.
func (a *Adapter) SetDisplayBrightness(id ident.ID, brightness float32) <-chan error {
	result := make(chan error, 1)
	r, err := a.physicalRecordFor("setDisplayBrightness", id)
	if err != nil {
		result <- err
		close(result)
		return result
	}
	go func() {
		defer close(result)
		if err := a.composer().SetDisplayBrightness(r.handle, brightness); err != nil {
			result <- backendError("setDisplayBrightness", id, err)
			return
		}
		result <- nil
	}()
	return result
}

// SetAutoLowLatencyMode toggles the display's low latency mode.
func (a *Adapter) SetAutoLowLatencyMode(id ident.ID, on bool) error {
	r, err := a.physicalRecordFor("setAutoLowLatencyMode", id)
	if err != nil {
		return err
	}
	if err := a.composer().SetAutoLowLatencyMode(r.handle, on); err != nil {
		return backendError("setAutoLowLatencyMode", id, err)
	}
	return nil
}

// SupportedContentTypes lists the content types id can optimize for.
func (a *Adapter) SupportedContentTypes(id ident.ID) ([]hal.ContentType, error) {
	r, err := a.physicalRecordFor("getSupportedContentTypes", id)
	if err != nil {
		return nil, err
	}
	types, err := a.composer().GetSupportedContentTypes(r.handle)
	if err != nil {
		return nil, backendError("getSupportedContentTypes", id, err)
	}
	return types, nil
}

// SetContentType tells the display what kind of content is shown.
func (a *Adapter) SetContentType(id ident.ID, contentType hal.ContentType) error {
	r, err := a.physicalRecordFor("setContentType", id)
	if err != nil {
		return err
	}
	if err := a.composer().SetContentType(r.handle, contentType); err != nil {
		return backendError("setContentType", id, err)
	}
	return nil
}
