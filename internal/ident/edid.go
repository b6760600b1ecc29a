package ident

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

const edidBlockSize = 128

var edidHeader = []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}

// Descriptor tags in the EDID detailed timing area.
const (
	descriptorSerial byte = 0xff
	descriptorText   byte = 0xfe
	descriptorName   byte = 0xfc
)

var (
	ErrNotEDID         = errors.New("identification data has unknown format")
	ErrBadManufacturer = errors.New("invalid EDID manufacturer id")
	ErrNoModelString   = errors.New("EDID has no display name, serial number or text")
)

// EDID holds the fields of a base EDID block the adapter cares about.
type EDID struct {
	ManufacturerID uint16
	PnpID          string
	ProductCode    uint16
	DisplayName    string
	SerialText     string
	ASCIIText      string
	Week           int
	Year           int
	ChecksumValid  bool
}

// IsEDID reports whether data starts with an EDID header.
func IsEDID(data []byte) bool {
	return len(data) >= edidBlockSize && bytes.Equal(data[:len(edidHeader)], edidHeader)
}

// ParseEDID decodes the base block of data.
func ParseEDID(data []byte) (*EDID, error) {
	if !IsEDID(data) {
		return nil, ErrNotEDID
	}
	block := data[:edidBlockSize]

	var sum byte
	for _, b := range block {
		sum += b
	}

	manufacturerID := binary.BigEndian.Uint16(block[8:10])
	pnp, ok := pnpIDFromManufacturerID(manufacturerID)
	if !ok {
		return nil, ErrBadManufacturer
	}

	e := &EDID{
		ManufacturerID: manufacturerID,
		PnpID:          pnp,
		ProductCode:    binary.LittleEndian.Uint16(block[10:12]),
		Week:           int(block[16]),
		Year:           int(block[17]) + 1990,
		// Checksum mismatches are common on cheap panels; parsing continues.
		ChecksumValid: sum == 0,
	}

	for i := 0; i < 4; i++ {
		d := block[54+i*18 : 54+(i+1)*18]
		if d[0] != 0 || d[1] != 0 {
			continue // detailed timing, not a display descriptor
		}
		text := descriptorString(d[5:])
		switch d[3] {
		case descriptorName:
			e.DisplayName = text
		case descriptorSerial:
			e.SerialText = text
		case descriptorText:
			e.ASCIIText = text
		}
	}
	return e, nil
}

func descriptorString(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}

// pnpIDFromManufacturerID unpacks three 5-bit letters ('A' = 1).
func pnpIDFromManufacturerID(id uint16) (string, bool) {
	letters := [3]byte{
		byte(id>>10) & 0x1f,
		byte(id>>5) & 0x1f,
		byte(id) & 0x1f,
	}
	var sb strings.Builder
	for _, l := range letters {
		if l < 1 || l > 26 {
			return "", false
		}
		sb.WriteByte('A' + l - 1)
	}
	return sb.String(), true
}

// ModelHash hashes the model string: the display name, else the serial
// text, else the free text descriptor.
func (e *EDID) ModelHash() (uint32, error) {
	model := e.DisplayName
	if model == "" {
		model = e.SerialText
	}
	if model == "" {
		model = e.ASCIIText
	}
	if model == "" {
		return 0, ErrNoModelString
	}
	h := fnv.New32a()
	h.Write([]byte(model))
	return h.Sum32(), nil
}

// ProductInfo converts the EDID to a ProductInfo.
func (e *EDID) ProductInfo() *ProductInfo {
	info := &ProductInfo{
		ManufacturerPnpID: e.PnpID,
		ProductID:         strconv.Itoa(int(e.ProductCode)),
	}
	switch {
	case e.Week == 0xff:
		info.ModelYear = e.Year
	case e.Week == 0:
		info.ManufactureYear = e.Year
	default:
		info.ManufactureYear = e.Year
		info.ManufactureWeek = e.Week
	}
	return info
}

// Parse resolves identification data into an Info. It is a pure function.
func Parse(port uint8, data []byte) (Info, error) {
	e, err := ParseEDID(data)
	if err != nil {
		return Info{}, err
	}
	hash, err := e.ModelHash()
	if err != nil {
		return Info{}, err
	}
	return Info{
		ID:          FromEDID(port, e.ManufacturerID, hash),
		Port:        port,
		Name:        e.DisplayName,
		ProductInfo: e.ProductInfo(),
	}, nil
}

// descriptorTextSize is the payload length of a text display descriptor.
const descriptorTextSize = 13

// EDIDSpec describes a synthetic EDID block.
type EDIDSpec struct {
	PnpID       string
	ProductCode uint16
	Serial      uint32
	Name        string
	SerialText  string
	Week        int
	Year        int
}

// BuildEDID encodes spec as a 128-byte EDID base block with a valid checksum.
func BuildEDID(spec EDIDSpec) ([]byte, error) {
	if len(spec.PnpID) != 3 {
		return nil, fmt.Errorf("pnp id %q must be three letters", spec.PnpID)
	}
	var manufacturerID uint16
	for i := 0; i < 3; i++ {
		c := spec.PnpID[i]
		if c < 'A' || c > 'Z' {
			return nil, fmt.Errorf("pnp id %q must be upper case letters", spec.PnpID)
		}
		manufacturerID = manufacturerID<<5 | uint16(c-'A'+1)
	}
	if len(spec.Name) > descriptorTextSize {
		return nil, fmt.Errorf("display name %q is longer than %d bytes", spec.Name, descriptorTextSize)
	}
	if len(spec.SerialText) > descriptorTextSize {
		return nil, fmt.Errorf("serial text %q is longer than %d bytes", spec.SerialText, descriptorTextSize)
	}

	block := make([]byte, edidBlockSize)
	copy(block, edidHeader)
	binary.BigEndian.PutUint16(block[8:10], manufacturerID)
	binary.LittleEndian.PutUint16(block[10:12], spec.ProductCode)
	binary.LittleEndian.PutUint32(block[12:16], spec.Serial)
	block[16] = byte(spec.Week)
	if spec.Year >= 1990 {
		block[17] = byte(spec.Year - 1990)
	}
	block[18], block[19] = 1, 4 // EDID 1.4

	slot := 0
	putDescriptor := func(tag byte, text string) {
		if text == "" || slot >= 4 {
			return
		}
		d := block[54+slot*18 : 54+(slot+1)*18]
		d[3] = tag
		payload := d[5:]
		for i := range payload {
			payload[i] = ' '
		}
		n := copy(payload, text)
		if n < len(payload) {
			payload[n] = '\n'
		}
		slot++
	}
	putDescriptor(descriptorName, spec.Name)
	putDescriptor(descriptorSerial, spec.SerialText)

	var sum byte
	for _, b := range block[:edidBlockSize-1] {
		sum += b
	}
	block[edidBlockSize-1] = byte(0x100 - int(sum))
	return block, nil
}
