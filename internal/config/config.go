// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Shim    ShimConfig    `mapstructure:"shim"`
	Run     RunConfig     `mapstructure:"run"`
	Report  ReportConfig  `mapstructure:"report"`
	Logging LoggingConfig `mapstructure:"logging"`
	Display DisplayConfig `mapstructure:"display"`
}

// ShimConfig selects the compositor under test
type ShimConfig struct {
	Path string   `mapstructure:"path"` // Go plugin exporting the shim entry points
	Args []string `mapstructure:"args"` // Passed to CreateServer unmodified
}

// RunConfig controls case execution
type RunConfig struct {
	Timeout time.Duration `mapstructure:"timeout"` // Per case, 0 disables
	Cases   []string      `mapstructure:"cases"`   // Empty runs every case
}

// ReportConfig controls the YAML report
type ReportConfig struct {
	Path string `mapstructure:"path"` // Empty disables the report
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

// DisplayConfig is used when the shim cannot create client sockets
type DisplayConfig struct {
	Name string `mapstructure:"name"` // Socket name or absolute path, empty uses WAYLAND_DISPLAY
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Shim: ShimConfig{
			Path: "",
			Args: []string{},
		},
		Run: RunConfig{
			Timeout: 30 * time.Second,
			Cases:   []string{},
		},
		Report: ReportConfig{
			Path: "",
		},
		Logging: LoggingConfig{
			LogLevel: "", // Empty means use LOG_LEVEL env var
		},
		Display: DisplayConfig{
			Name: "",
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
	viper.SetConfigName("waycheck")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "waycheck"))
		}
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("shim.path", DefaultConfig.Shim.Path)
	viper.SetDefault("shim.args", DefaultConfig.Shim.Args)

	viper.SetDefault("run.timeout", DefaultConfig.Run.Timeout)
	viper.SetDefault("run.cases", DefaultConfig.Run.Cases)

	viper.SetDefault("report.path", DefaultConfig.Report.Path)

	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	viper.SetDefault("display.name", DefaultConfig.Display.Name)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "waycheck.toml"
	}
	return filepath.Join(home, ".config", "waycheck", "waycheck.toml")
}

// Settings returns every resolved key, for display
func Settings() map[string]any {
	return viper.AllSettings()
}
