package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseEDID(t *testing.T) {
	data, err := BuildEDID(EDIDSpec{
		PnpID:       "GSM",
		ProductCode: 0x5b7f,
		Serial:      42,
		Name:        "LG ULTRAFINE",
		Week:        12,
		Year:        2021,
	})
	require.NoError(t, err)
	require.Len(t, data, edidBlockSize)

	e, err := ParseEDID(data)
	require.NoError(t, err)
	assert.Equal(t, "GSM", e.PnpID)
	assert.Equal(t, uint16(0x5b7f), e.ProductCode)
	assert.Equal(t, "LG ULTRAFINE", e.DisplayName)
	assert.Equal(t, 2021, e.Year)
	assert.Equal(t, 12, e.Week)
	assert.True(t, e.ChecksumValid)
}

func TestParse(t *testing.T) {
	data, err := BuildEDID(EDIDSpec{PnpID: "DEL", ProductCode: 1, Name: "DELL U2720Q", Year: 2020, Week: 0xff})
	require.NoError(t, err)

	info, err := Parse(3, data)
	require.NoError(t, err)
	assert.True(t, info.ID.IsStable())
	assert.False(t, info.ID.IsVirtual())
	assert.Equal(t, uint8(3), info.ID.Port())
	assert.Equal(t, "DELL U2720Q", info.Name)
	require.NotNil(t, info.ProductInfo)
	assert.Equal(t, "DEL", info.ProductInfo.ManufacturerPnpID)
	assert.Equal(t, 2020, info.ProductInfo.ModelYear)
	assert.Zero(t, info.ProductInfo.ManufactureYear)

	again, err := Parse(3, data)
	require.NoError(t, err)
	assert.Equal(t, info.ID, again.ID, "parsing is deterministic")

	other, err := Parse(4, data)
	require.NoError(t, err)
	assert.NotEqual(t, info.ID, other.ID, "port is part of the id")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrNotEDID},
		{name: "short", data: edidHeader, want: ErrNotEDID},
		{name: "bad header", data: make([]byte, edidBlockSize), want: ErrNotEDID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(0, tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("no model string", func(t *testing.T) {
		data, err := BuildEDID(EDIDSpec{PnpID: "ABC"})
		require.NoError(t, err)
		_, err = Parse(0, data)
		assert.ErrorIs(t, err, ErrNoModelString)
	})

	t.Run("serial text is used when name is missing", func(t *testing.T) {
		data, err := BuildEDID(EDIDSpec{PnpID: "ABC", SerialText: "SN1234"})
		require.NoError(t, err)
		_, err = Parse(0, data)
		assert.NoError(t, err)
	})
}

func TestBuildEDIDRejectsBadPnpID(t *testing.T) {
	for _, id := range []string{"", "AB", "abc", "A1C"} {
		_, err := BuildEDID(EDIDSpec{PnpID: id, Name: "x"})
		assert.Error(t, err, id)
	}
}

func TestBuildEDIDRejectsLongName(t *testing.T) {
	tests := []struct {
		name string
		spec EDIDSpec
	}{
		{name: "display name", spec: EDIDSpec{PnpID: "BOE", Name: "Built-in Panel"}},
		{name: "serial text", spec: EDIDSpec{PnpID: "BOE", SerialText: "SN-01234567890"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildEDID(tt.spec)
			assert.ErrorContains(t, err, "longer than 13 bytes")
		})
	}

	t.Run("thirteen bytes fit", func(t *testing.T) {
		data, err := BuildEDID(EDIDSpec{PnpID: "BOE", ProductCode: 1, Name: "Builtin Panel"})
		require.NoError(t, err)
		info, err := Parse(0, data)
		require.NoError(t, err)
		assert.Equal(t, "Builtin Panel", info.Name)
	})
}

func TestIDLayout(t *testing.T) {
	assert.Equal(t, ID(0), FromPort(LegacyPrimaryPort))
	assert.Equal(t, ID(1), FromPort(LegacyExternalPort))
	assert.False(t, FromPort(1).IsStable())

	v := Virtual(5)
	assert.True(t, v.IsVirtual())
	assert.False(t, v.IsStable())
	assert.Equal(t, uint32(5), v.VirtualIndex())
	assert.Equal(t, "HalVirtualDisplayId(5)", v.String())
	assert.Equal(t, "PhysicalDisplayId(1)", FromPort(1).String())
}
