package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/displayhal/internal/display"
	"github.com/bnema/displayhal/internal/ui"
)

// Text renders s as a styled terminal report.
func Text(s display.Snapshot) string {
	var sections []string

	header := []string{
		ui.TitleStyle.Render("displayhal"),
		"",
		ui.FormatField("Multi-display mode", s.MultiDisplayMode),
		ui.FormatField("Capabilities", joinOrNone(s.Capabilities)),
		ui.FormatField("Vsync period switch", fmt.Sprintf("%t", s.VsyncPeriodSwitch)),
		ui.FormatField("Virtual displays", fmt.Sprintf("%d/%d", s.VirtualInUse, s.VirtualCapacity)),
	}
	if len(s.GenericMetadata) > 0 {
		keys := make([]string, 0, len(s.GenericMetadata))
		for k := range s.GenericMetadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := "optional"
			if s.GenericMetadata[k] {
				v = "mandatory"
			}
			header = append(header, ui.FormatField("Layer metadata", k+" ("+v+")"))
		}
	}
	sections = append(sections, strings.Join(header, "\n"))

	if len(s.Displays) == 0 {
		sections = append(sections, ui.SubtleStyle.Render("No displays registered"))
	}
	for _, d := range s.Displays {
		sections = append(sections, ui.BoxStyle.Render(displayText(d)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func displayText(d display.DisplaySnapshot) string {
	title := d.Name
	if title == "" {
		title = "Virtual display"
	}
	lines := []string{
		ui.SubheaderStyle.Render(title) + " " + ui.SubtleStyle.Render(d.ID.String()),
		ui.FormatField("State", ui.FormatState(d.State, d.Virtual)),
		ui.FormatField("Handle", fmt.Sprintf("%d", d.Handle)),
	}
	if d.Virtual {
		lines = append(lines, ui.FormatField("Size", fmt.Sprintf("%dx%d", d.Width, d.Height)))
	} else {
		lines = append(lines,
			ui.FormatField("Port", fmt.Sprintf("%d", d.Port)),
			ui.FormatField("Connection", d.ConnectionType),
			ui.FormatField("Power", noneIfEmpty(d.PowerMode)),
		)
	}
	if p := d.ProductInfo; p != nil {
		product := p.ManufacturerPnpID + " " + p.ProductID
		if p.ModelYear != 0 {
			product += fmt.Sprintf(" model %d", p.ModelYear)
		} else if p.ManufactureYear != 0 {
			product += fmt.Sprintf(" %d week %d", p.ManufactureYear, p.ManufactureWeek)
		}
		lines = append(lines, ui.FormatField("Product", product))
	}
	if len(d.Capabilities) > 0 {
		lines = append(lines, ui.FormatField("Capabilities", strings.Join(d.Capabilities, ", ")))
	}
	for _, m := range d.Modes {
		mode := fmt.Sprintf("%dx%d @ %.2fHz group %d", m.Width, m.Height, m.RefreshRate, m.ConfigGroup)
		label := fmt.Sprintf("Mode %d", m.ID)
		if m.ID == d.ActiveMode {
			lines = append(lines, ui.LabelStyle.Render(label)+ui.ActiveModeStyle.Render(mode+" (active)"))
			continue
		}
		lines = append(lines, ui.FormatField(label, mode))
	}

	vsync := "disabled"
	if d.VsyncEnabled {
		vsync = "enabled"
	}
	if d.HaveVsync {
		vsync += fmt.Sprintf(", last %d", d.LastVsync)
	}
	lines = append(lines,
		ui.FormatField("Vsync", vsync),
		ui.FormatField("Present fence", d.PresentFence),
		ui.FormatField("Release fences", fmt.Sprintf("%d", d.ReleaseFences)),
	)
	if d.ValidateWasSkipped {
		lines = append(lines, ui.FormatField("Validate", ui.InfoStyle.Render("skipped")))
	}
	if d.PresentError != "" {
		lines = append(lines, ui.FormatField("Present error", ui.ErrorStyle.Render(d.PresentError)))
	}
	return strings.Join(lines, "\n")
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}

func noneIfEmpty(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
