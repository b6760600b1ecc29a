package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/displayhal/internal/config"
	"github.com/bnema/displayhal/internal/logger"
	"github.com/bnema/displayhal/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage displayhal configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, ui.FormatField("Config file", config.GetConfigPath()))
		fmt.Fprintln(out)

		section := func(name string) {
			fmt.Fprintln(out, ui.SubheaderStyle.Render("["+name+"]"))
		}
		field := func(key string, value interface{}) {
			fmt.Fprintf(out, "  %s = %v\n", key, value)
		}

		section("adapter")
		field("max_virtual_display_dimension", cfg.Adapter.MaxVirtualDisplayDimension)
		field("max_virtual_displays", cfg.Adapter.MaxVirtualDisplays)
		field("update_product_info_on_reconnect", cfg.Adapter.UpdateProductInfoOnReconnect)

		section("logging")
		field("log_level", valueOrDefault(cfg.Logging.LogLevel, "(from LOG_LEVEL)"))

		section("simulation")
		field("scenario", valueOrDefault(cfg.Simulation.Scenario, "(built-in)"))
		field("frames", cfg.Simulation.Frames)
		field("client_composition_every", cfg.Simulation.ClientCompositionEvery)

		section("watch")
		field("refresh_ms", cfg.Watch.RefreshMs)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				logger.Info("Configuration file already exists, use --force to overwrite", "path", configPath)
				return nil
			}
		}

		if err := config.Save(); err != nil {
			return err
		}

		logger.Info("Configuration initialized", "path", configPath)
		return nil
	},
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("force", false, "Force overwrite existing configuration")
}
