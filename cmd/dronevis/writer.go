package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"dronevis/internal/config"
	"dronevis/internal/sink"
)

// writerOptions selects the outputs built by newWriters.
type writerOptions struct {
	// PrintOnly forces STDOUT output even when GreptimeDB is configured.
	PrintOnly bool
	// Quiet drops the STDOUT fallback, leaving only GreptimeDB and log files.
	Quiet bool
	TUI   bool
	// FrameLog and ViolationLog are JSONL export paths.
	FrameLog     string
	ViolationLog string
	Overview     *sink.Overview
}

// newWriters sets up the frame writer based on flags, config and env vars.
// It returns nil when Quiet leaves nothing to write to, and a cleanup
// function to close any resources.
func newWriters(cfg *config.ServerConfig, opts writerOptions) (sink.FrameWriter, func(), error) {
	cleanup := func() {}

	base, err := baseWriter(cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	if opts.FrameLog == "" {
		if c, ok := base.(interface{ Close() error }); ok {
			cleanup = func() { c.Close() }
		}
		return base, cleanup, nil
	}

	fw, err := sink.NewFileWriter(opts.FrameLog, opts.ViolationLog)
	if err != nil {
		return nil, nil, err
	}
	fws := []sink.FrameWriter{fw}
	vws := []sink.ViolationWriter{fw}
	if base != nil {
		fws = append(fws, base)
		if vw, ok := base.(sink.ViolationWriter); ok {
			vws = append(vws, vw)
		}
	}
	mw := sink.NewMultiWriter(fws, vws)
	cleanup = func() { mw.Close() }
	return mw, cleanup, nil
}

// baseWriter chooses GreptimeDB or STDOUT.
func baseWriter(cfg *config.ServerConfig, opts writerOptions) (sink.FrameWriter, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.PrintOnly || !cfg.Greptime.Enabled || cfg.Greptime.Endpoint == "" {
		switch {
		case opts.Quiet:
			return nil, nil
		case opts.TUI:
			if !isTerminal() {
				return nil, fmt.Errorf("--tui needs an interactive terminal")
			}
			return sink.NewTUIWriter(opts.Overview), nil
		default:
			return sink.NewStdoutWriter(opts.Overview, isTerminal()), nil
		}
	}
	w, err := sink.NewGreptimeDBWriter(sink.GreptimeOptions{
		Endpoint:       cfg.Greptime.Endpoint,
		Database:       cfg.Greptime.Database,
		Table:          cfg.Greptime.Table,
		ViolationTable: cfg.Greptime.ViolationTable,
		Scenario:       cfg.Greptime.Scenario,
	})
	if err != nil {
		return nil, fmt.Errorf("init GreptimeDB writer: %w", err)
	}
	return w, nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
