// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Log configures the process logger.
type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Live configures the live telemetry store.
type Live struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Video configures the frame relay.
type Video struct {
	MaxFrameBytes int `yaml:"max_frame_bytes"`
}

// Scenario names a playback scenario loaded at startup. Preset is either a
// built-in preset name or a preset file.
type Scenario struct {
	Preset          string   `yaml:"preset"`
	SimulationFile  string   `yaml:"simulation_file"`
	OriginLat       *float64 `yaml:"origin_lat"`
	OriginLon       *float64 `yaml:"origin_lon"`
	FacilityMapFile string   `yaml:"facility_map_file"`
}

// Greptime configures the GreptimeDB sink.
type Greptime struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	Database       string `yaml:"database"`
	Table          string `yaml:"table"`
	ViolationTable string `yaml:"violation_table"`
	Scenario       string `yaml:"scenario"`
}

// Output configures the JSONL frame log of live traffic.
type Output struct {
	FrameLog     string `yaml:"frame_log"`
	ViolationLog string `yaml:"violation_log"`
}

// ServerConfig is the root configuration of the API server.
type ServerConfig struct {
	Listen   string   `yaml:"listen"`
	Log      Log      `yaml:"log"`
	Live     Live     `yaml:"live"`
	Video    Video    `yaml:"video"`
	Scenario Scenario `yaml:"scenario"`
	Greptime Greptime `yaml:"greptime"`
	Output   Output   `yaml:"output"`
}

// Default returns the configuration used when no file is given.
func Default() *ServerConfig {
	return &ServerConfig{
		Listen: ":8000",
		Log: Log{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Live:  Live{Timeout: 30 * time.Second},
		Video: Video{MaxFrameBytes: 8 << 20},
		Greptime: Greptime{
			Endpoint: "localhost:4001",
			Database: "public",
			Scenario: "live",
		},
	}
}

// Load reads a YAML config, validates it against a CUE schema and applies
// environment overrides. Fields absent from the file keep their defaults.
func Load(configPath, cueSchemaPath string) (*ServerConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides settings from the environment. Setting
// GREPTIMEDB_ENDPOINT enables the GreptimeDB sink.
func (c *ServerConfig) ApplyEnv() {
	if v := os.Getenv("DRONEVIS_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		c.Greptime.Endpoint = v
		c.Greptime.Enabled = true
	}
	if v := os.Getenv("GREPTIMEDB_DATABASE"); v != "" {
		c.Greptime.Database = v
	}
	if v := os.Getenv("GREPTIMEDB_TABLE"); v != "" {
		c.Greptime.Table = v
	}
}
