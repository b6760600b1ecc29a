package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/displayhal/internal/ipc"
	"github.com/bnema/displayhal/internal/logger"
)

// displayChoice is a physical display offered by the picker.
type displayChoice struct {
	Descriptive string
	RawID       string
}

// displayChoices lists the physical displays of a status snapshot.
func displayChoices(status *structpb.Struct) []displayChoice {
	var choices []displayChoice
	for _, v := range status.GetFields()["displays"].GetListValue().GetValues() {
		d := v.GetStructValue().GetFields()
		if d["virtual"].GetBoolValue() {
			continue
		}
		rawID := d["rawId"].GetStringValue()
		choices = append(choices, displayChoice{
			Descriptive: fmt.Sprintf("%s (%s, %s)",
				d["name"].GetStringValue(), rawID, d["state"].GetStringValue()),
			RawID: rawID,
		})
	}
	return choices
}

// runDisplaySelect shows the interactive picker. Tests swap it out.
var runDisplaySelect = func(title, description string, options []huh.Option[string]) (string, error) {
	var selected string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Description(description).
				Options(options...).
				Value(&selected),
		),
	)

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("display selection cancelled: %w", err)
	}
	return selected, nil
}

// selectDisplay asks the running instance for its displays and returns the
// rawId of the one the user picks.
func selectDisplay(client *ipc.Client, title, description string) (string, error) {
	status, err := client.Status()
	if err != nil {
		return "", err
	}
	choices := displayChoices(status)
	if len(choices) == 0 {
		return "", fmt.Errorf("no physical displays registered")
	}

	// If only one display, use it automatically
	if len(choices) == 1 {
		logger.Infof("Auto-selected display: %s", choices[0].Descriptive)
		return choices[0].RawID, nil
	}

	options := make([]huh.Option[string], len(choices))
	for i, c := range choices {
		options[i] = huh.NewOption(c.Descriptive, c.RawID)
	}
	return runDisplaySelect(title, description, options)
}

// displayAndValue splits "[display] <value>" arguments, picking the display
// interactively when it was left out.
func displayAndValue(client *ipc.Client, args []string, title, description string) (string, string, error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	display, err := selectDisplay(client, title, description)
	if err != nil {
		return "", "", err
	}
	return display, args[0], nil
}
