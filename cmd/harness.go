package cmd

import (
	"fmt"

	"github.com/bnema/displayhal/internal/backend"
	"github.com/bnema/displayhal/internal/config"
	"github.com/bnema/displayhal/internal/display"
	"github.com/bnema/displayhal/internal/hal"
	"github.com/bnema/displayhal/internal/logger"
	"github.com/bnema/displayhal/internal/sim"
)

// simulation is an adapter running on the simulated backend.
type simulation struct {
	backend *sim.Backend
	adapter *display.Adapter
}

// startSimulation builds the adapter from the current configuration and
// announces every scenario display as connected.
func startSimulation(opts ...display.Option) (*simulation, error) {
	cfg := config.Get()

	scenario, err := sim.LoadScenario(cfg.Simulation.Scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	b, err := sim.New(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulated backend: %w", err)
	}

	opts = append([]display.Option{display.WithConfig(cfg.Adapter)}, opts...)
	a := display.New(backend.New(b), opts...)

	for _, h := range b.Handles() {
		b.Hotplug(h, hal.ConnectionConnected)
	}
	logger.Debug("Simulation started", "displays", len(a.Displays()), "mode", a.MultiDisplayMode())
	return &simulation{backend: b, adapter: a}, nil
}
