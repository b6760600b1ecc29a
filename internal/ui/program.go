package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/displayhal/internal/logger"
)

// ProgramConfig holds configuration for running a UI program
type ProgramConfig struct {
	AltScreen bool
	LogFile   string        // Redirects program output when set
	KillAfter time.Duration // Grace period before a cancelled program is killed
}

// DefaultProgramConfig returns default configuration
func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		AltScreen: true,
		KillAfter: 2 * time.Second,
	}
}

// ProgramRunner manages the lifecycle of a Bubble Tea program
type ProgramRunner struct {
	config  ProgramConfig
	program *tea.Program
	done    chan struct{}
}

// NewProgramRunner creates a new program runner
func NewProgramRunner(config ProgramConfig) *ProgramRunner {
	return &ProgramRunner{
		config: config,
		done:   make(chan struct{}),
	}
}

// Start creates the program so Send works before Run is called.
func (r *ProgramRunner) Start(model tea.Model) error {
	var opts []tea.ProgramOption
	if r.config.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if r.config.LogFile != "" {
		f, err := os.OpenFile(r.config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(model, opts...)
	return nil
}

// Run runs the started program until it exits or ctx is cancelled
func (r *ProgramRunner) Run(ctx context.Context) error {
	defer close(r.done)
	if r.program == nil {
		return fmt.Errorf("program not started")
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := r.program.Run()
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		r.program.Quit()
		select {
		case err := <-errCh:
			return err
		case <-time.After(r.config.KillAfter):
			logger.Warn("UI did not quit in time, killing it")
			r.program.Kill()
			<-errCh
			return nil
		}
	}
}

// Send sends a message to the running program
func (r *ProgramRunner) Send(msg tea.Msg) {
	if r.program != nil {
		r.program.Send(msg)
	}
}

// Done returns a channel that's closed when the program exits
func (r *ProgramRunner) Done() <-chan struct{} {
	return r.done
}
