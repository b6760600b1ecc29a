package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/sim"
)

func TestColorModes(t *testing.T) {
	f := newFixture(t, "")
	a := f.adapter
	id := f.connect(t, 1)

	modes, err := a.ColorModes(id)
	require.NoError(t, err)
	assert.Equal(t, []hal.ColorMode{hal.ColorModeNative, hal.ColorModeSRGB, hal.ColorModeDisplayP3}, modes)

	intents, err := a.RenderIntents(id, hal.ColorModeSRGB)
	require.NoError(t, err)
	assert.NotEmpty(t, intents)

	require.NoError(t, a.SetActiveColorMode(id, hal.ColorModeDisplayP3, intents[0]))
	assert.ErrorIs(t, a.SetActiveColorMode(id, hal.ColorModeBT2100PQ, intents[0]), ErrBadParameter)
}

func TestSetColorTransformHint(t *testing.T) {
	f := newFixture(t, "")
	a, b := f.adapter, f.backend
	id := f.connect(t, 1)

	m := hal.IdentityMat4()
	m[0] = 0.5
	require.NoError(t, a.SetColorTransform(id, m))
	assert.Equal(t, hal.ColorTransformArbitraryMatrix, b.ColorTransformHint(1))

	require.NoError(t, a.SetColorTransform(id, hal.IdentityMat4()))
	assert.Equal(t, hal.ColorTransformIdentity, b.ColorTransformHint(1))
}

func TestHdrAndSampling(t *testing.T) {
	f := newFixture(t, "")
	a := f.adapter
	sdr := f.connect(t, 1)
	require.NoError(t, f.backend.AddDisplay(sim.DisplaySpec{
		Handle:     60,
		Port:       5,
		Identity:   &sim.IdentitySpec{PnpID: "SAM", ProductCode: 3, Name: "HDR Monitor"},
		ColorModes: []string{"native", "bt2100_pq"},
		Modes:      []sim.ModeSpec{{Config: 1, Width: 3840, Height: 2160, RefreshHz: 60}},
	}))
	hdr := f.connect(t, 60)

	caps, err := a.HdrCapabilities(hdr)
	require.NoError(t, err)
	assert.InDelta(t, 1000, caps.MaxLuminance, 0.01)
	caps, err = a.HdrCapabilities(sdr)
	require.NoError(t, err)
	assert.Empty(t, caps.Types)

	assert.Len(t, a.SupportedPerFrameMetadata(hdr), 12)
	assert.Empty(t, a.SupportedPerFrameMetadata(sdr))
	assert.Empty(t, a.SupportedPerFrameMetadata(ident.FromPort(9)))

	m, err := a.DataspaceSaturationMatrix(sdr, hal.DataspaceSRGB)
	require.NoError(t, err)
	assert.Equal(t, hal.IdentityMat4(), m)
	_, err = a.DataspaceSaturationMatrix(sdr, hal.DataspaceDisplayP3)
	assert.ErrorIs(t, err, ErrBadParameter)

	attrs, err := a.DisplayedContentSamplingAttributes(sdr)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x7), attrs.ComponentMask)
	_, err = a.DisplayedContentSample(sdr, 0, 0)
	assert.ErrorIs(t, err, ErrBadParameter, "sampling not enabled yet")
	assert.ErrorIs(t, a.SetDisplayContentSamplingEnabled(sdr, true, 0, 0), ErrBadParameter)
	require.NoError(t, a.SetDisplayContentSamplingEnabled(sdr, true, 0x7, 0))
	_, err = a.DisplayedContentSample(sdr, 0, 0)
	require.NoError(t, err)

	f.backend.SetError(sim.OpGetHdrCapabilities, 60, hal.Unsupported)
	_, err = a.HdrCapabilities(hdr)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSetDisplayBrightnessIsAsynchronous(t *testing.T) {
	f := newFixture(t, "")
	a, b := f.adapter, f.backend
	internal := f.connect(t, 1)
	external := f.connect(t, 2)

	require.NoError(t, <-a.SetDisplayBrightness(internal, 0.5))
	assert.InDelta(t, 0.5, b.Brightness(1), 0.0001)

	assert.ErrorIs(t, <-a.SetDisplayBrightness(internal, 2), ErrBadParameter)
	assert.ErrorIs(t, <-a.SetDisplayBrightness(external, 0.5), ErrUnsupported)
	assert.ErrorIs(t, <-a.SetDisplayBrightness(ident.FromPort(9), 0.5), ErrInvalidDisplay)

	// The channel is closed after the single result.
	ch := a.SetDisplayBrightness(internal, 0.1)
	<-ch
	_, open := <-ch
	assert.False(t, open)
}

func TestContentTypes(t *testing.T) {
	f := newFixture(t, "")
	a := f.adapter
	internal := f.connect(t, 1)
	external := f.connect(t, 2)

	types, err := a.SupportedContentTypes(external)
	require.NoError(t, err)
	assert.Equal(t, []hal.ContentType{hal.ContentTypeGame, hal.ContentTypeCinema}, types)

	require.NoError(t, a.SetContentType(external, hal.ContentTypeGame))
	assert.ErrorIs(t, a.SetContentType(external, hal.ContentTypePhoto), ErrBadParameter)

	err = a.SetContentType(internal, hal.ContentTypeGame)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, err, hal.Unsupported)
	assert.NotErrorIs(t, err, ErrBadParameter)

	require.NoError(t, a.SetAutoLowLatencyMode(external, true))
	assert.ErrorIs(t, a.SetAutoLowLatencyMode(internal, true), ErrUnsupported)
}

func TestColorOpsOnUnknownDisplay(t *testing.T) {
	f := newFixture(t, "")
	unknown := ident.FromPort(9)

	_, err := f.adapter.ColorModes(unknown)
	assert.ErrorIs(t, err, ErrInvalidDisplay)
	assert.ErrorIs(t, f.adapter.SetColorTransform(unknown, hal.IdentityMat4()), ErrInvalidDisplay)
	_, err = f.adapter.SupportedContentTypes(unknown)
	assert.ErrorIs(t, err, ErrInvalidDisplay)
	assert.Zero(t, f.backend.Calls(sim.OpGetColorModes))
}
