package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// PassSpec describes one pass of a custom method in the config file.
type PassSpec struct {
	Pattern string `yaml:"pattern"` // zeros, ones, random, complement
	Verify  bool   `yaml:"verify"`
}

// MethodSpec describes a custom sanitization method.
type MethodSpec struct {
	Name   string     `yaml:"name"`
	Passes []PassSpec `yaml:"passes"`
}

type SecurityConfig struct {
	AllowDeviceWrites bool     `yaml:"allow_device_writes"`
	RequireRoot       bool     `yaml:"require_root"`
	ExcludedDevices   []string `yaml:"excluded_devices"`
}

type WipeConfig struct {
	ChunkSize       int64        `yaml:"chunk_size"`
	MaxSpeedMBps    float64      `yaml:"max_speed_mbps"`
	SimulatedSizeMB int64        `yaml:"simulated_size_mb"`
	CheckpointEvery int          `yaml:"checkpoint_every"`
	CustomMethods   []MethodSpec `yaml:"custom_methods"`
}

type CloneConfig struct {
	Compression string `yaml:"compression"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ReportingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	LocalPath      string `yaml:"local_path"`
	CheckpointFile string `yaml:"checkpoint_file"`
}

type UIConfig struct {
	TickMs int `yaml:"tick_ms"`
}

// Config is the full application configuration
type Config struct {
	Security  SecurityConfig  `yaml:"security"`
	Wipe      WipeConfig      `yaml:"wipe"`
	Clone     CloneConfig     `yaml:"clone"`
	Logging   LoggingConfig   `yaml:"logging"`
	Reporting ReportingConfig `yaml:"reporting"`
	UI        UIConfig        `yaml:"ui"`
}

// Default returns the built-in configuration. Device writes are disabled.
func Default() *Config {
	return &Config{
		Security: SecurityConfig{
			AllowDeviceWrites: false,
			RequireRoot:       true,
			ExcludedDevices:   []string{},
		},
		Wipe: WipeConfig{
			ChunkSize:       1024 * 1024, // 1MB
			MaxSpeedMBps:    0,           // unlimited
			SimulatedSizeMB: 64,
			CheckpointEvery: 64,
		},
		Clone: CloneConfig{
			Compression: "",
		},
		Logging: LoggingConfig{
			Level: "INFO",
			File:  "",
		},
		Reporting: ReportingConfig{
			Enabled:        true,
			LocalPath:      "./reports",
			CheckpointFile: "./reports/checkpoint.yaml",
		},
		UI: UIConfig{
			TickMs: 200,
		},
	}
}

// Load reads the configuration from path on top of the defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks the configuration for consistency
func Validate(config *Config) error {
	if config.Wipe.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.Wipe.ChunkSize)
	}
	if config.Wipe.ChunkSize%512 != 0 {
		return fmt.Errorf("chunk size must be a multiple of 512, got %d", config.Wipe.ChunkSize)
	}
	if config.Wipe.ChunkSize > 256*1024*1024 {
		return fmt.Errorf("chunk size must not exceed 256MB, got %d", config.Wipe.ChunkSize)
	}
	if config.Wipe.MaxSpeedMBps < 0 {
		return fmt.Errorf("max speed must not be negative, got %.1f", config.Wipe.MaxSpeedMBps)
	}
	if config.Wipe.SimulatedSizeMB <= 0 {
		return fmt.Errorf("simulated size must be positive, got %d", config.Wipe.SimulatedSizeMB)
	}
	if config.Wipe.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint interval must not be negative, got %d", config.Wipe.CheckpointEvery)
	}

	validPatterns := map[string]bool{
		"zeros":      true,
		"ones":       true,
		"random":     true,
		"complement": true,
	}
	for _, m := range config.Wipe.CustomMethods {
		if m.Name == "" {
			return fmt.Errorf("custom method without a name")
		}
		if len(m.Passes) == 0 {
			return fmt.Errorf("custom method %q has no passes", m.Name)
		}
		for i, p := range m.Passes {
			if !validPatterns[p.Pattern] {
				return fmt.Errorf("custom method %q pass %d: invalid pattern %q", m.Name, i+1, p.Pattern)
			}
			if i == 0 && p.Pattern == "complement" {
				return fmt.Errorf("custom method %q: first pass cannot be a complement", m.Name)
			}
		}
	}

	validCompression := map[string]bool{
		"":       true,
		"gzip":   true,
		"zlib":   true,
		"bzip2":  true,
		"snappy": true,
		"s2":     true,
		"zstd":   true,
	}
	if !validCompression[config.Clone.Compression] {
		return fmt.Errorf("invalid clone compression: %s", config.Clone.Compression)
	}

	validLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}
	if !validLevels[config.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	for _, dev := range config.Security.ExcludedDevices {
		if dev == "" {
			return fmt.Errorf("empty excluded device")
		}
	}

	if config.UI.TickMs <= 0 {
		return fmt.Errorf("ui tick must be positive, got %d", config.UI.TickMs)
	}

	return nil
}

// Save writes the configuration to path
func Save(config *Config, path string) error {
	if err := Validate(config); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Init writes the defaults, tuned by profile when set, to a new file at
// path. An existing file is never overwritten.
func Init(path, profile string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file %s: %w", path, err)
	}

	config := Default()
	if profile != "" {
		if err := ApplyProfile(config, profile); err != nil {
			return err
		}
	}
	return Save(config, path)
}

// TickInterval returns the UI refresh period
func (config *Config) TickInterval() time.Duration {
	return time.Duration(config.UI.TickMs) * time.Millisecond
}

// SimulatedSize returns the size in bytes of the in-memory device used
// while device writes are not armed
func (config *Config) SimulatedSize() int64 {
	return config.Wipe.SimulatedSizeMB * 1024 * 1024
}
