// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Display adapter policy
	Adapter AdapterConfig `mapstructure:"adapter"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Simulated backend used by the CLI
	Simulation SimulationConfig `mapstructure:"simulation"`

	// Live view settings
	Watch WatchConfig `mapstructure:"watch"`
}

// AdapterConfig contains display adapter policy
type AdapterConfig struct {
	// Largest width or height accepted for a virtual display, 0 for no limit
	MaxVirtualDisplayDimension uint32 `mapstructure:"max_virtual_display_dimension"`
	// Virtual display pool size, 0 to use the backend's limit
	MaxVirtualDisplays uint32 `mapstructure:"max_virtual_displays"`
	// Re-read identification data when a known display reconnects
	UpdateProductInfoOnReconnect bool `mapstructure:"update_product_info_on_reconnect"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

// SimulationConfig drives the simulated backend
type SimulationConfig struct {
	Scenario               string `mapstructure:"scenario"`                 // YAML scenario path, empty for the built-in one
	Frames                 int    `mapstructure:"frames"`                   // Frames to run in simulate
	ClientCompositionEvery int    `mapstructure:"client_composition_every"` // Every Nth frame uses client composition, 0 never
}

// WatchConfig contains live view settings
type WatchConfig struct {
	RefreshMs int `mapstructure:"refresh_ms"`
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Adapter: AdapterConfig{
			MaxVirtualDisplayDimension:   4096,
			MaxVirtualDisplays:           0,
			UpdateProductInfoOnReconnect: false,
		},
		Logging: LoggingConfig{
			LogLevel: "", // Empty means use LOG_LEVEL env var
		},
		Simulation: SimulationConfig{
			Scenario:               "",
			Frames:                 120,
			ClientCompositionEvery: 0,
		},
		Watch: WatchConfig{
			RefreshMs: 250,
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("displayhal")
	viper.SetConfigType("toml")

	// If a specific path is set, use only that
	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		// Add config paths in order of precedence
		viper.AddConfigPath("/etc/displayhal")
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "displayhal"))
		}
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("adapter.max_virtual_display_dimension", DefaultConfig.Adapter.MaxVirtualDisplayDimension)
	viper.SetDefault("adapter.max_virtual_displays", DefaultConfig.Adapter.MaxVirtualDisplays)
	viper.SetDefault("adapter.update_product_info_on_reconnect", DefaultConfig.Adapter.UpdateProductInfoOnReconnect)

	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	viper.SetDefault("simulation.scenario", DefaultConfig.Simulation.Scenario)
	viper.SetDefault("simulation.frames", DefaultConfig.Simulation.Frames)
	viper.SetDefault("simulation.client_composition_every", DefaultConfig.Simulation.ClientCompositionEvery)

	viper.SetDefault("watch.refresh_ms", DefaultConfig.Watch.RefreshMs)

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !(configPathOverride != "" && os.IsNotExist(err)) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	// Unmarshal config
	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	return nil
}

// Validate rejects values the adapter cannot work with
func (c *Config) Validate() error {
	if c.Simulation.Frames < 0 {
		return fmt.Errorf("simulation.frames must not be negative, got %d", c.Simulation.Frames)
	}
	if c.Simulation.ClientCompositionEvery < 0 {
		return fmt.Errorf("simulation.client_composition_every must not be negative, got %d", c.Simulation.ClientCompositionEvery)
	}
	if c.Watch.RefreshMs <= 0 {
		return fmt.Errorf("watch.refresh_ms must be positive, got %d", c.Watch.RefreshMs)
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		if os.IsPermission(err) && strings.Contains(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config
	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	// If override is set, use that
	if configPathOverride != "" {
		return configPathOverride
	}

	// Check if config file is already loaded
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if os.Getuid() == 0 {
		return "/etc/displayhal/displayhal.toml"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/displayhal/displayhal.toml"
	}

	return filepath.Join(home, ".config", "displayhal", "displayhal.toml")
}
