package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"dronevis/internal/altitude"
	"dronevis/internal/geo"
	"dronevis/internal/playback"
	"dronevis/internal/sink"
)

var (
	replayInput     string
	replayPreset    string
	replayOriginLat float64
	replayOriginLon float64
	replayFacility  string
	replaySpeed     float64
	replayPrintOnly bool
	replayTUI       bool
	replayLogFile   string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a simulation export or frame log",
	Long: "replay feeds frames from a simulation export (.json or .json.zst) or a JSONL frame log " +
		"back into GreptimeDB or STDOUT, paced by the recorded timestamps.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		log := newLogger(cfg)
		slog.SetDefault(log)

		origin := geo.Origin{Lat: replayOriginLat, Lon: replayOriginLon}
		if replayPreset != "" {
			p, err := resolvePreset(replayPreset)
			if err != nil {
				return err
			}
			origin = p.Origin()
			if replayInput == "" {
				replayInput = p.SimulationFile
			}
			if replayFacility == "" {
				replayFacility = p.FacilityMapCache
			}
		}
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}

		ceilings := altitude.NewService()
		if replayFacility != "" {
			if ceilings, err = altitude.Load(replayFacility); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := playback.ReplayOptions{Speed: replaySpeed, Ceilings: ceilings}
		if strings.HasSuffix(replayInput, ".jsonl") {
			w, cleanup, err := newWriters(cfg, writerOptions{PrintOnly: replayPrintOnly, TUI: replayTUI, FrameLog: replayLogFile})
			if err != nil {
				return err
			}
			defer cleanup()
			return playback.ReplayLogFile(ctx, replayInput, w, opts)
		}

		store, err := playback.Load(replayInput, origin, playback.WithElevation(ceilings), playback.WithLogger(log))
		if err != nil {
			return err
		}
		overview := &sink.Overview{
			Scenario:  replayInput,
			Origin:    origin,
			Duration:  store.Duration(),
			Drones:    len(store.DroneIDs()),
			Corridors: len(store.Corridors()),
		}
		w, cleanup, err := newWriters(cfg, writerOptions{
			PrintOnly:    replayPrintOnly,
			TUI:          replayTUI,
			FrameLog:     replayLogFile,
			ViolationLog: violationLogPath(replayLogFile),
			Overview:     overview,
		})
		if err != nil {
			return err
		}
		defer cleanup()
		log.Info("replay starting", "file", replayInput, "frames", store.Len(), "speed", replaySpeed)
		return playback.Replay(ctx, store, w, opts)
	},
}

func violationLogPath(frameLog string) string {
	if frameLog == "" {
		return ""
	}
	return frameLog + ".violations"
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Simulation export or JSONL frame log")
	replayCmd.Flags().StringVar(&replayPreset, "preset", "", "Built-in preset name or preset file supplying origin and files")
	replayCmd.Flags().Float64Var(&replayOriginLat, "origin-lat", 0, "Origin latitude of the export")
	replayCmd.Flags().Float64Var(&replayOriginLon, "origin-lon", 0, "Origin longitude of the export")
	replayCmd.Flags().StringVar(&replayFacility, "facility-map", "", "Facility map used for ceiling checks")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier, 0 for no delay")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print frames to STDOUT instead of writing to DB")
	replayCmd.Flags().BoolVar(&replayTUI, "tui", false, "Render frames in an interactive table")
	replayCmd.Flags().StringVar(&replayLogFile, "log-file", "", "Also export frames to a JSONL file")
}
