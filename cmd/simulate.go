package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/displayhal/internal/config"
	"github.com/bnema/displayhal/internal/display"
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/ident"
	"github.com/bnema/displayhal/internal/logger"
	"github.com/bnema/displayhal/internal/ui"
)

const defaultVsyncPeriod = int64(16666667)

var (
	simulateRealtime bool
	simulateHotplug  bool
	simulateVirtual  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a frame loop against the simulated backend",
	Long: `Drive vsync and composition on every scenario display for a number of
frames, optionally unplugging and replugging the last display halfway through,
and print a summary of the run.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntP("frames", "n", 0, "Frames to run (default from config)")
	simulateCmd.Flags().Int("client-every", 0, "Use client composition every Nth frame")
	simulateCmd.Flags().BoolVar(&simulateRealtime, "realtime", false, "Pace frames at the primary display's vsync period")
	simulateCmd.Flags().BoolVar(&simulateHotplug, "hotplug", false, "Unplug and replug the last display during the run")
	simulateCmd.Flags().BoolVar(&simulateVirtual, "virtual", true, "Compose a virtual display alongside the physical ones")
}

// simStats counts adapter notifications and frame results.
type simStats struct {
	hotplugs      atomic.Int64
	vsyncs        atomic.Int64
	refreshes     atomic.Int64
	frames        atomic.Int64
	presented     atomic.Int64
	skipped       atomic.Int64
	failures      atomic.Int64
	releaseFences atomic.Int64
}

var _ display.Listener = (*simStats)(nil)

func (s *simStats) OnHotplug(info ident.Info, connection hal.Connection) {
	s.hotplugs.Add(1)
	logger.Debug("Hotplug", "display", info.ID, "name", info.Name, "connection", connection)
}

func (s *simStats) OnVsync(id ident.ID, timestamp int64, period hal.VsyncPeriodNanos) {
	s.vsyncs.Add(1)
}

func (s *simStats) OnVsyncPeriodTimingChanged(id ident.ID, timeline hal.VsyncPeriodChangeTimeline) {
}

func (s *simStats) OnSeamlessPossible(id ident.ID) {}

func (s *simStats) OnRefresh(id ident.ID) {
	s.refreshes.Add(1)
}

// frameTarget is one display composed by the frame loop.
type frameTarget struct {
	id      ident.ID
	virtual bool
	layers  []hal.LayerHandle
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := config.Get().Simulation
	if cfg.Frames == 0 {
		logger.Info("Nothing to simulate, frame count is 0")
		return nil
	}

	stats := &simStats{}
	s, err := startSimulation(display.WithListener(stats))
	if err != nil {
		return err
	}
	a := s.adapter

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	physical := a.Displays()
	targets, err := prepareTargets(a, physical)
	if err != nil {
		return err
	}
	if simulateVirtual {
		if id, format, ok := a.AllocateVirtualDisplay(1280, 720, hal.PixelFormatRGBA8888); ok {
			logger.Debug("Composing virtual display", "display", id, "format", format)
			targets = append(targets, frameTarget{id: id, virtual: true})
			defer func() {
				if err := a.ReleaseVirtualDisplay(id); err != nil {
					logger.Warn("Failed to release virtual display", "display", id, "error", err)
				}
			}()
		}
	}

	period := defaultVsyncPeriod
	if len(physical) > 0 {
		if p, err := a.VsyncPeriod(physical[0]); err == nil && p > 0 {
			period = p
		}
	}

	// The generator waits for each frame so hotplugs land between frames.
	ticks := make(chan int)
	composed := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	// Vsync and hotplug generator.
	g.Go(func() error {
		defer close(ticks)

		var pace <-chan time.Time
		if simulateRealtime {
			ticker := time.NewTicker(time.Duration(period))
			defer ticker.Stop()
			pace = ticker.C
		}

		handles := s.backend.Handles()
		var timestamp int64
		for frame := 0; frame < cfg.Frames; frame++ {
			if simulateHotplug && len(handles) > 1 {
				last := handles[len(handles)-1]
				switch frame {
				case cfg.Frames / 3:
					s.backend.Hotplug(last, hal.ConnectionDisconnected)
				case 2 * cfg.Frames / 3:
					s.backend.Hotplug(last, hal.ConnectionConnected)
				}
			}

			timestamp += period
			for _, h := range handles {
				if s.backend.Connected(h) {
					s.backend.Vsync(h, timestamp)
				}
			}

			select {
			case ticks <- frame:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case <-composed:
			case <-gctx.Done():
				return gctx.Err()
			}
			if pace != nil {
				select {
				case <-pace:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
		return nil
	})

	// Compositor.
	g.Go(func() error {
		every := cfg.ClientCompositionEvery
		for frame := range ticks {
			client := every > 0 && (frame+1)%every == 0
			for _, t := range targets {
				if !a.IsConnected(t.id) {
					stats.skipped.Add(1)
					continue
				}
				if err := composeFrame(a, t, frame, client, stats); err != nil {
					stats.failures.Add(1)
					logger.Warn("Frame failed", "display", t.id, "frame", frame, "error", err)
					continue
				}
				stats.presented.Add(1)
			}
			stats.frames.Add(1)
			select {
			case composed <- struct{}{}:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if ctx.Err() != nil {
		logger.Info("Simulation interrupted")
	}

	printSummary(cmd, a, stats)
	return nil
}

// prepareTargets powers on every physical display, enables vsync and
// creates two layers for it.
func prepareTargets(a *display.Adapter, ids []ident.ID) ([]frameTarget, error) {
	targets := make([]frameTarget, 0, len(ids)+1)
	for _, id := range ids {
		if err := a.SetPowerMode(id, hal.PowerModeOn); err != nil {
			return nil, err
		}
		if err := a.SetVsyncEnabled(id, true); err != nil {
			logger.Warn("Failed to enable vsync", "display", id, "error", err)
		}
		t := frameTarget{id: id}
		for i := 0; i < 2; i++ {
			l, err := a.CreateLayer(id)
			if err != nil {
				return nil, fmt.Errorf("failed to create layer on %s: %w", id, err)
			}
			t.layers = append(t.layers, l)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func composeFrame(a *display.Adapter, t frameTarget, frame int, client bool, stats *simStats) error {
	changes, err := a.ComputeChanges(t.id, client)
	if err != nil {
		return err
	}
	if changes != nil && (client || len(changes.ChangedTypes) > 0) {
		buffer := hal.BufferHandle(frame + 1)
		if err := a.SetClientTarget(t.id, uint32(frame%3), buffer, hal.NoFence, hal.DataspaceSRGB); err != nil {
			return err
		}
	}
	if t.virtual {
		if err := a.SetOutputBuffer(t.id, hal.BufferHandle(frame+1), hal.NoFence); err != nil {
			return err
		}
	}
	if err := a.PresentAndCollectFences(t.id); err != nil {
		return err
	}
	for _, l := range t.layers {
		if a.LayerReleaseFence(t.id, l).Valid() {
			stats.releaseFences.Add(1)
		}
	}
	a.ClearReleaseFences(t.id)
	return nil
}

func printSummary(cmd *cobra.Command, a *display.Adapter, stats *simStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.HeaderStyle.Render("Simulation summary"))
	fmt.Fprintln(out, ui.FormatField("Multi-display mode", a.MultiDisplayMode()))
	fmt.Fprintln(out, ui.FormatField("Frames", fmt.Sprintf("%d", stats.frames.Load())))
	fmt.Fprintln(out, ui.FormatField("Presented", fmt.Sprintf("%d", stats.presented.Load())))
	fmt.Fprintln(out, ui.FormatField("Skipped (disconnected)", fmt.Sprintf("%d", stats.skipped.Load())))
	fmt.Fprintln(out, ui.FormatField("Failed", fmt.Sprintf("%d", stats.failures.Load())))
	fmt.Fprintln(out, ui.FormatField("Release fences", fmt.Sprintf("%d", stats.releaseFences.Load())))
	fmt.Fprintln(out, ui.FormatField("Vsync events", fmt.Sprintf("%d", stats.vsyncs.Load())))
	fmt.Fprintln(out, ui.FormatField("Hotplug events", fmt.Sprintf("%d", stats.hotplugs.Load())))
	fmt.Fprintln(out, ui.FormatField("Refresh requests", fmt.Sprintf("%d", stats.refreshes.Load())))
}
