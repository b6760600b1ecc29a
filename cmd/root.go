package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/displayhal/internal/config"
	"github.com/bnema/displayhal/internal/logger"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "displayhal",
		Short: "displayhal - display hardware adapter",
		Long: `displayhal sits between a compositor and a display composition backend.
It tracks physical and virtual displays across hotplug, drives frame
presentation and vsync, and reports display state. The CLI runs the adapter
against a simulated backend described by a YAML scenario.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

// flagKeys maps command flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":    "logging.log_level",
	"scenario":     "simulation.scenario",
	"frames":       "simulation.frames",
	"client-every": "simulation.client_composition_every",
	"refresh":      "watch.refresh_ms",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default searches /etc/displayhal, ~/.config/displayhal, .)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringP("scenario", "s", "", "Simulation scenario YAML (default built-in)")
}

// initConfig binds the flags of the running command and loads the
// configuration. Flags are bound here rather than in init so that a viper
// reset between runs does not lose them.
func initConfig(cmd *cobra.Command, args []string) error {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if configPath != "" {
		config.SetConfigPath(configPath)
	}
	if err := config.Init(); err != nil {
		return err
	}

	if level := config.Get().Logging.LogLevel; level != "" && !logger.SetLevel(level) {
		logger.Warn("Unknown log level, keeping current", "level", level)
	}
	return nil
}
