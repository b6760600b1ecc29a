// Package report renders adapter snapshots for the CLI.
package report

import (
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/displayhal/internal/display"
)

// JSON renders s as indented protobuf JSON.
func JSON(s display.Snapshot) ([]byte, error) {
	st, err := structpb.NewStruct(snapshotFields(s))
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot struct: %w", err)
	}
	out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return out, nil
}

// Struct converts s to a protobuf Struct.
func Struct(s display.Snapshot) (*structpb.Struct, error) {
	return structpb.NewStruct(snapshotFields(s))
}

func snapshotFields(s display.Snapshot) map[string]interface{} {
	metadata := make(map[string]interface{}, len(s.GenericMetadata))
	for k, v := range s.GenericMetadata {
		metadata[k] = v
	}
	displays := make([]interface{}, 0, len(s.Displays))
	for _, d := range s.Displays {
		displays = append(displays, displayFields(d))
	}
	return map[string]interface{}{
		"multiDisplayMode":  s.MultiDisplayMode,
		"capabilities":      stringList(s.Capabilities),
		"vsyncPeriodSwitch": s.VsyncPeriodSwitch,
		"genericMetadata":   metadata,
		"virtualDisplays": map[string]interface{}{
			"inUse":    s.VirtualInUse,
			"capacity": s.VirtualCapacity,
		},
		"displays": displays,
	}
}

func displayFields(d display.DisplaySnapshot) map[string]interface{} {
	modes := make([]interface{}, 0, len(d.Modes))
	for _, m := range d.Modes {
		modes = append(modes, map[string]interface{}{
			"id":          m.ID,
			"hwcId":       m.HwcID,
			"width":       m.Width,
			"height":      m.Height,
			"refreshRate": m.RefreshRate,
			"vsyncPeriod": m.VsyncPeriod,
			"dpiX":        m.DpiX,
			"dpiY":        m.DpiY,
			"configGroup": m.ConfigGroup,
		})
	}

	f := map[string]interface{}{
		"id":                 d.ID.String(),
		"rawId":              fmt.Sprintf("%#x", uint64(d.ID)),
		"name":               d.Name,
		"handle":             d.Handle,
		"virtual":            d.Virtual,
		"state":              d.State,
		"capabilities":       stringList(d.Capabilities),
		"modes":              modes,
		"activeMode":         d.ActiveMode,
		"vsyncEnabled":       d.VsyncEnabled,
		"presentFence":       d.PresentFence,
		"releaseFences":      d.ReleaseFences,
		"validateWasSkipped": d.ValidateWasSkipped,
	}
	if d.Virtual {
		f["width"] = d.Width
		f["height"] = d.Height
	} else {
		f["port"] = uint32(d.Port)
		f["connectionType"] = d.ConnectionType
	}
	if d.HaveVsync {
		f["lastVsync"] = d.LastVsync
	}
	if d.PowerMode != "" {
		f["powerMode"] = d.PowerMode
	}
	if d.PresentError != "" {
		f["presentError"] = d.PresentError
	}
	if p := d.ProductInfo; p != nil {
		f["productInfo"] = map[string]interface{}{
			"manufacturerPnpId": p.ManufacturerPnpID,
			"productId":         p.ProductID,
			"manufactureYear":   p.ManufactureYear,
			"manufactureWeek":   p.ManufactureWeek,
			"modelYear":         p.ModelYear,
		}
	}
	return f
}

func stringList(in []string) []interface{} {
	sorted := append([]string(nil), in...)
	sort.Strings(sorted)
	out := make([]interface{}, len(sorted))
	for i, s := range sorted {
		out[i] = s
	}
	return out
}
