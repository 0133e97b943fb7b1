package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dronevis/internal/altitude"
	"dronevis/internal/api"
	"dronevis/internal/config"
	"dronevis/internal/geo"
	"dronevis/internal/live"
	"dronevis/internal/logging"
	"dronevis/internal/scenario"
	"dronevis/internal/stream"
	"dronevis/internal/video"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		if serveListen != "" {
			cfg.Listen = serveListen
		}
		log := newLogger(cfg)
		slog.SetDefault(log)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.NewContext(ctx, log)

		w, cleanup, err := newWriters(cfg, writerOptions{
			Quiet:        true,
			FrameLog:     cfg.Output.FrameLog,
			ViolationLog: cfg.Output.ViolationLog,
		})
		if err != nil {
			return err
		}
		defer cleanup()

		srv := api.NewServer(api.Options{
			Live:     live.New(live.WithTimeout(cfg.Live.Timeout), live.WithLogger(log)),
			Hub:      stream.NewHub(log),
			Video:    video.NewRelay(cfg.Video.MaxFrameBytes, log),
			Altitude: altitude.NewService(),
			Sink:     w,
			Logger:   log,
		})
		if err := loadStartupScenario(ctx, srv, cfg.Scenario); err != nil {
			return err
		}
		return srv.ListenAndServe(ctx, cfg.Listen)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address, overrides the config")
}

// loadStartupScenario loads the configured preset or simulation file, if any.
// Explicit scenario fields override the preset's.
func loadStartupScenario(ctx context.Context, srv *api.Server, sc config.Scenario) error {
	log := logging.FromContext(ctx)
	req := api.LoadRequest{
		SimulationFile:  sc.SimulationFile,
		FacilityMapFile: sc.FacilityMapFile,
	}
	if sc.Preset != "" {
		p, err := resolvePreset(sc.Preset)
		if err != nil {
			return err
		}
		req.Origin = p.Origin()
		if req.SimulationFile == "" {
			req.SimulationFile = p.SimulationFile
		}
		if req.FacilityMapFile == "" {
			req.FacilityMapFile = p.FacilityMapCache
		}
	}
	if sc.OriginLat != nil && sc.OriginLon != nil {
		req.Origin = geo.Origin{Lat: *sc.OriginLat, Lon: *sc.OriginLon}
	}
	if req.SimulationFile == "" {
		log.Info("no startup scenario configured")
		return nil
	}
	info, err := srv.LoadScenario(req)
	if err != nil {
		return fmt.Errorf("load startup scenario: %w", err)
	}
	log.Info("startup scenario ready", "file", info.SimulationFile, "drones", len(info.Drones))
	return nil
}

// resolvePreset returns a built-in preset by name, or loads a preset file.
func resolvePreset(name string) (*scenario.Preset, error) {
	if p, ok := scenario.Lookup(name); ok {
		return &p, nil
	}
	return scenario.Load(name)
}
