package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/bnema/displayhal/internal/ipc"
	"github.com/bnema/displayhal/internal/logger"
)

var ctlSocket string

var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Control a running 'displayhal serve'",
	Long: `Send requests to a running 'displayhal serve'. Displays are addressed by
the rawId field printed by 'ctl status'. When the display is left out, the
running instance is asked for its displays and one can be picked interactively.`,
}

func newControlClient() (*ipc.Client, error) {
	return ipc.NewClient(ctlSocket)
}

var ctlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the adapter state of the running instance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newControlClient()
		if err != nil {
			return err
		}
		status, err := client.Status()
		if err != nil {
			return err
		}
		data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var ctlHotplugCmd = &cobra.Command{
	Use:       "hotplug <handle> <connect|disconnect>",
	Short:     "Connect or disconnect a backend display handle",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"connect", "disconnect"},
	RunE: func(cmd *cobra.Command, args []string) error {
		handle, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid handle %q: %w", args[0], err)
		}
		var connected bool
		switch args[1] {
		case "connect":
			connected = true
		case "disconnect":
		default:
			return fmt.Errorf("invalid connection %q (must be connect or disconnect)", args[1])
		}

		client, err := newControlClient()
		if err != nil {
			return err
		}
		if err := client.Hotplug(handle, connected); err != nil {
			return err
		}
		logger.Info("Hotplug sent", "handle", handle, "connection", args[1])
		return nil
	},
}

var ctlPowerCmd = &cobra.Command{
	Use:   "power [display] <off|doze|on|doze_suspend|on_suspend>",
	Short: "Set the power mode of a display",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newControlClient()
		if err != nil {
			return err
		}
		display, value, err := displayAndValue(client, args, "Select Display", "Choose the display to change the power mode of")
		if err != nil {
			return err
		}
		return client.SetPowerMode(display, value)
	},
}

var ctlVsyncCmd = &cobra.Command{
	Use:   "vsync [display] <on|off>",
	Short: "Enable or disable vsync delivery for a display",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch state := args[len(args)-1]; state {
		case "on":
			enabled = true
		case "off":
		default:
			return fmt.Errorf("invalid vsync state %q (must be on or off)", state)
		}
		client, err := newControlClient()
		if err != nil {
			return err
		}
		display, _, err := displayAndValue(client, args, "Select Display", "Choose the display to toggle vsync on")
		if err != nil {
			return err
		}
		return client.SetVsyncEnabled(display, enabled)
	},
}

var ctlModeCmd = &cobra.Command{
	Use:   "mode [display] <index>",
	Short: "Switch the active mode of a display",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index := args[len(args)-1]
		mode, err := strconv.Atoi(index)
		if err != nil {
			return fmt.Errorf("invalid mode index %q: %w", index, err)
		}
		client, err := newControlClient()
		if err != nil {
			return err
		}
		display, _, err := displayAndValue(client, args, "Select Display", "Choose the display to switch modes on")
		if err != nil {
			return err
		}
		return client.SetActiveMode(display, mode)
	},
}

func init() {
	rootCmd.AddCommand(ctlCmd)
	ctlCmd.PersistentFlags().StringVar(&ctlSocket, "socket", "", "Control socket path (default /tmp/displayhal-<user>.sock)")

	ctlCmd.AddCommand(ctlStatusCmd)
	ctlCmd.AddCommand(ctlHotplugCmd)
	ctlCmd.AddCommand(ctlPowerCmd)
	ctlCmd.AddCommand(ctlVsyncCmd)
	ctlCmd.AddCommand(ctlModeCmd)
}
