package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/ipc"
	"github.com/bnema/displayhal/internal/logger"
	"github.com/bnema/displayhal/internal/report"
)

var (
	serveSocket       string
	serveHotplugEvery time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulated displays with a control socket",
	Long: `Run the adapter against the simulated backend until interrupted, driving
vsync and frames, and accept control requests from 'displayhal ctl'.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveSocket, "socket", "", "Control socket path (default /tmp/displayhal-<user>.sock)")
	serveCmd.Flags().DurationVar(&serveHotplugEvery, "hotplug-every", 0, "Toggle the last display this often, 0 to disable")
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := startSimulation()
	if err != nil {
		return err
	}
	targets, err := prepareTargets(s.adapter, s.adapter.Displays())
	if err != nil {
		return err
	}

	server, err := ipc.NewSocketServer(serveSocket, &controlHandler{sim: s})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Serving displays", "socket", server.Path(), "displays", len(targets))
	return driveDisplays(ctx, s, targets, serveHotplugEvery)
}

// controlHandler applies control socket requests to the simulation.
type controlHandler struct {
	sim *simulation
}

var _ ipc.Handler = (*controlHandler)(nil)

func parseDisplayID(s string) (ident.ID, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid display id %q: %w", s, err)
	}
	return ident.ID(v), nil
}

func (h *controlHandler) HandleStatus() (*structpb.Struct, error) {
	return report.Struct(h.sim.adapter.Snapshot())
}

func (h *controlHandler) HandleHotplug(handle uint64, connected bool) error {
	dh := hal.DisplayHandle(handle)
	known := false
	for _, k := range h.sim.backend.Handles() {
		if k == dh {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown display handle %d", handle)
	}

	conn := hal.ConnectionDisconnected
	if connected {
		conn = hal.ConnectionConnected
	}
	h.sim.backend.Hotplug(dh, conn)
	return nil
}

func (h *controlHandler) HandlePower(displayID, mode string) error {
	id, err := parseDisplayID(displayID)
	if err != nil {
		return err
	}
	m, err := hal.ParsePowerMode(mode)
	if err != nil {
		return err
	}
	return h.sim.adapter.SetPowerMode(id, m)
}

func (h *controlHandler) HandleVsync(displayID string, enabled bool) error {
	id, err := parseDisplayID(displayID)
	if err != nil {
		return err
	}
	return h.sim.adapter.SetVsyncEnabled(id, enabled)
}

func (h *controlHandler) HandleMode(displayID string, mode int) error {
	id, err := parseDisplayID(displayID)
	if err != nil {
		return err
	}
	_, err = h.sim.adapter.SetActiveModeWithConstraints(id, mode, hal.VsyncPeriodChangeConstraints{})
	return err
}
