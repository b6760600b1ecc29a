// Package ident defines logical display identifiers and parses display
// identification data (EDID) into identities.
package ident

import "fmt"

// ID is a process-stable logical display identifier.
//
// Layout: bit 63 marks virtual displays, bit 62 marks identifiers derived
// from identification data. Physical ids keep the connector port in the low
// byte; EDID-derived ids add the model hash in bits 8-39 and the
// manufacturer id in bits 40-55. Virtual ids carry the pool index.
type ID uint64

const (
	flagVirtual uint64 = 1 << 63
	flagStable  uint64 = 1 << 62
)

// Legacy multi-display mode has exactly two physical slots.
const (
	LegacyPrimaryPort  uint8 = 0
	LegacyExternalPort uint8 = 1
)

// FromPort derives a physical id from a connector port alone.
func FromPort(port uint8) ID {
	return ID(uint64(port))
}

// FromEDID derives a stable physical id from identification data.
func FromEDID(port uint8, manufacturerID uint16, modelHash uint32) ID {
	return ID(flagStable | uint64(manufacturerID)<<40 | uint64(modelHash)<<8 | uint64(port))
}

// Virtual returns the id for virtual display pool slot index.
func Virtual(index uint32) ID {
	return ID(flagVirtual | uint64(index))
}

// IsVirtual reports whether id names a virtual display.
func (id ID) IsVirtual() bool {
	return uint64(id)&flagVirtual != 0
}

// IsStable reports whether id was derived from identification data.
func (id ID) IsStable() bool {
	return !id.IsVirtual() && uint64(id)&flagStable != 0
}

// Port returns the connector port of a physical id.
func (id ID) Port() uint8 {
	return uint8(id)
}

// VirtualIndex returns the pool slot of a virtual id.
func (id ID) VirtualIndex() uint32 {
	return uint32(uint64(id) &^ flagVirtual)
}

func (id ID) String() string {
	if id.IsVirtual() {
		return fmt.Sprintf("HalVirtualDisplayId(%d)", id.VirtualIndex())
	}
	return fmt.Sprintf("PhysicalDisplayId(%d)", uint64(id))
}

// ProductInfo describes the display hardware as read from identification data.
type ProductInfo struct {
	ManufacturerPnpID string
	ProductID         string
	// ManufactureYear and ManufactureWeek are zero when unknown.
	ManufactureYear int
	ManufactureWeek int
	// ModelYear is set instead of the manufacture date when the EDID says so.
	ModelYear int
}

// Info is the resolved identity of a physical display.
type Info struct {
	ID          ID
	Port        uint8
	Name        string
	ProductInfo *ProductInfo
}
