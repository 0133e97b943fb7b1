package sink

import (
	"dronevis/internal/telemetry"
)

// MultiWriter fans out frames and violations to multiple writers.
type MultiWriter struct {
	frameWriters     []FrameWriter
	violationWriters []ViolationWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(fws []FrameWriter, vws []ViolationWriter) *MultiWriter {
	return &MultiWriter{frameWriters: fws, violationWriters: vws}
}

// WriteFrame sends a frame to all frame writers.
func (mw *MultiWriter) WriteFrame(f telemetry.Frame) error {
	for _, w := range mw.frameWriters {
		if err := w.WriteFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// WriteFrames sends multiple frames to all writers, using batch if supported.
func (mw *MultiWriter) WriteFrames(frames []telemetry.Frame) error {
	for _, w := range mw.frameWriters {
		if err := WriteFrames(w, frames); err != nil {
			return err
		}
	}
	return nil
}

// WriteViolation sends a violation row to all violation writers.
func (mw *MultiWriter) WriteViolation(row ViolationRow) error {
	for _, w := range mw.violationWriters {
		if err := w.WriteViolation(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteViolations sends multiple rows to all violation writers, using batch
// if supported.
func (mw *MultiWriter) WriteViolations(rows []ViolationRow) error {
	for _, w := range mw.violationWriters {
		if err := WriteViolations(w, rows); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer with a Close method, each once.
func (mw *MultiWriter) Close() error {
	var err error
	seen := make(map[any]bool)
	closeOne := func(w any) {
		c, ok := w.(interface{ Close() error })
		if !ok || seen[w] {
			return
		}
		seen[w] = true
		if e := c.Close(); e != nil && err == nil {
			err = e
		}
	}
	for _, w := range mw.frameWriters {
		closeOne(w)
	}
	for _, w := range mw.violationWriters {
		closeOne(w)
	}
	return err
}
