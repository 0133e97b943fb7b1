package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"dronevis/internal/config"
	"dronevis/internal/logging"
)

var (
	configPath    string
	cueSchemaPath string
	logLevel      string
)

var rootCmd = &cobra.Command{
	Use:   "dronevis",
	Short: "Drone telemetry playback and live visualization backend",
	Long: "dronevis serves recorded simulation exports and live drone telemetry over HTTP and WebSocket, " +
		"checks drones against facility-map altitude ceilings and replays frames into GreptimeDB.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to server configuration YAML")
	rootCmd.PersistentFlags().StringVar(&cueSchemaPath, "schema", "schemas/server.cue", "Path to CUE schema file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(ceilingCmd)
	rootCmd.AddCommand(generateDemoCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// loadConfig reads --config, or the defaults when no file is given.
func loadConfig() (*config.ServerConfig, error) {
	if configPath == "" {
		cfg := config.Default()
		cfg.ApplyEnv()
		return cfg, nil
	}
	return config.Load(configPath, cueSchemaPath)
}

func newLogger(cfg *config.ServerConfig) *slog.Logger {
	opts := logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
	if logLevel != "" {
		opts.Level = logLevel
	}
	return logging.New(opts)
}
