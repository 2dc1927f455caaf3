package config

import (
	"fmt"
)

// ApplyProfile applies a performance profile to the configuration
func ApplyProfile(cfg *Config, profile string) error {
	switch profile {
	case "safe":
		cfg.Wipe.MaxSpeedMBps = 10
		cfg.Wipe.ChunkSize = 1024 * 1024 // 1MB
		cfg.Wipe.CheckpointEvery = 16
	case "balanced":
		cfg.Wipe.MaxSpeedMBps = 50
		cfg.Wipe.ChunkSize = 4 * 1024 * 1024 // 4MB
		cfg.Wipe.CheckpointEvery = 64
	case "fast":
		cfg.Wipe.MaxSpeedMBps = 0             // unlimited
		cfg.Wipe.ChunkSize = 16 * 1024 * 1024 // 16MB
		cfg.Wipe.CheckpointEvery = 256
	default:
		return fmt.Errorf("unknown profile: %s", profile)
	}
	return nil
}
