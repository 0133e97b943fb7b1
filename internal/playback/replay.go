package playback

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"os"
	"time"

	"dronevis/internal/sink"
	"dronevis/internal/telemetry"
)

// ReplayOptions tunes Replay and ReplayLog.
type ReplayOptions struct {
	// Speed > 1 accelerates playback. Speed <= 0 inserts no delay.
	Speed float64
	// Ceilings, when set, is checked for every frame and violations are sent
	// to writers that accept them.
	Ceilings sink.CeilingChecker
}

// Replay writes every frame of s to w, paced by the recorded timestamps.
func Replay(ctx context.Context, s *Store, w sink.FrameWriter, opts ReplayOptions) error {
	return replayFrames(ctx, s.Frames(), w, opts)
}

// ReplayLog replays JSONL frames from r, as written by sink.FileWriter.
func ReplayLog(ctx context.Context, r io.Reader, w sink.FrameWriter, opts ReplayOptions) error {
	dec := json.NewDecoder(r)
	var decodeErr error
	frames := func(yield func(telemetry.Frame) bool) {
		for {
			var f telemetry.Frame
			if err := dec.Decode(&f); err != nil {
				if !errors.Is(err, io.EOF) {
					decodeErr = err
				}
				return
			}
			if !yield(f) {
				return
			}
		}
	}
	if err := replayFrames(ctx, frames, w, opts); err != nil {
		return err
	}
	return decodeErr
}

// ReplayLogFile opens a file and replays its frames.
func ReplayLogFile(ctx context.Context, path string, w sink.FrameWriter, opts ReplayOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(ctx, f, w, opts)
}

func replayFrames(ctx context.Context, frames iter.Seq[telemetry.Frame], w sink.FrameWriter, opts ReplayOptions) error {
	vw, _ := w.(sink.ViolationWriter)
	first := true
	var prev float64
	for f := range frames {
		if !first && opts.Speed > 0 {
			diff := time.Duration((f.Time - prev) / opts.Speed * float64(time.Second))
			if err := sleep(ctx, diff); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.WriteFrame(f); err != nil {
			return err
		}
		if vw != nil && opts.Ceilings != nil {
			if rows := sink.Violations(f, opts.Ceilings); len(rows) > 0 {
				if err := sink.WriteViolations(vw, rows); err != nil {
					return err
				}
			}
		}
		prev = f.Time
		first = false
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
