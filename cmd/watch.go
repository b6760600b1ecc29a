package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
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

var (
	watchHotplugEvery time.Duration
	watchLogFile      string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the simulated displays",
	Long: `Run the adapter against the simulated backend with a vsync and frame
driver and show display state as it changes. Press q to quit.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Int("refresh", 0, "Table refresh interval in milliseconds (default from config)")
	watchCmd.Flags().DurationVar(&watchHotplugEvery, "hotplug-every", 5*time.Second, "Toggle the last display this often, 0 to disable")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "Write the UI to this file instead of the terminal")
}

// watchListener forwards adapter notifications to the event log.
type watchListener struct {
	runner *ui.ProgramRunner
}

var _ display.Listener = (*watchListener)(nil)

func (l *watchListener) send(format string, args ...interface{}) {
	l.runner.Send(ui.EventMsg{Time: time.Now(), Text: fmt.Sprintf(format, args...)})
}

func (l *watchListener) OnHotplug(info ident.Info, connection hal.Connection) {
	l.send("%s %s (%s)", info.Name, connection, info.ID)
}

func (l *watchListener) OnVsync(id ident.ID, timestamp int64, period hal.VsyncPeriodNanos) {}

func (l *watchListener) OnVsyncPeriodTimingChanged(id ident.ID, timeline hal.VsyncPeriodChangeTimeline) {
	l.send("%s vsync period change applies at %d", id, timeline.NewVsyncAppliedTimeNanos)
}

func (l *watchListener) OnSeamlessPossible(id ident.ID) {
	l.send("%s seamless mode change possible", id)
}

func (l *watchListener) OnRefresh(id ident.ID) {
	l.send("%s refresh requested", id)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	programConfig := ui.DefaultProgramConfig()
	programConfig.LogFile = watchLogFile
	runner := ui.NewProgramRunner(programConfig)

	s, err := startSimulation(display.WithListener(&watchListener{runner: runner}))
	if err != nil {
		return err
	}
	targets, err := prepareTargets(s.adapter, s.adapter.Displays())
	if err != nil {
		return err
	}

	model := ui.NewWatchModel(s.adapter, time.Duration(cfg.Watch.RefreshMs)*time.Millisecond)
	if err := runner.Start(model); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-runner.Done():
			return context.Canceled
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		return driveDisplays(gctx, s, targets, watchHotplugEvery)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// driveDisplays emits vsync and composes a frame on every connected display
// at the primary display's period, toggling the last display every
// hotplugEvery when it is positive.
func driveDisplays(ctx context.Context, s *simulation, targets []frameTarget, hotplugEvery time.Duration) error {
	period := defaultVsyncPeriod
	if ids := s.adapter.Displays(); len(ids) > 0 {
		if p, err := s.adapter.VsyncPeriod(ids[0]); err == nil && p > 0 {
			period = p
		}
	}

	frameTicker := time.NewTicker(time.Duration(period))
	defer frameTicker.Stop()

	var (
		hotplug <-chan time.Time
		toggled hal.DisplayHandle
	)
	handles := s.backend.Handles()
	if hotplugEvery > 0 && len(handles) > 1 {
		t := time.NewTicker(hotplugEvery)
		defer t.Stop()
		hotplug = t.C
		toggled = handles[len(handles)-1]
	}
	stats := &simStats{}

	for frame := 0; ; frame++ {
		select {
		case <-ctx.Done():
			return nil
		case <-hotplug:
			conn := hal.ConnectionDisconnected
			if !s.backend.Connected(toggled) {
				conn = hal.ConnectionConnected
			}
			s.backend.Hotplug(toggled, conn)
		case now := <-frameTicker.C:
			for _, h := range handles {
				if s.backend.Connected(h) {
					s.backend.Vsync(h, now.UnixNano())
				}
			}
			for _, t := range targets {
				if !s.adapter.IsConnected(t.id) {
					continue
				}
				if err := composeFrame(s.adapter, t, frame, false, stats); err != nil {
					logger.Debug("Frame failed", "display", t.id, "error", err)
				}
			}
		}
	}
}
