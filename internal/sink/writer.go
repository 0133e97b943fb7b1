// Package sink writes telemetry frames and ceiling violations to outputs.
package sink

import (
	"dronevis/internal/altitude"
	"dronevis/internal/telemetry"
)

// FrameWriter consumes telemetry frames.
type FrameWriter interface {
	WriteFrame(telemetry.Frame) error
}

// batchFrameWriter is implemented by writers that can flush several frames
// at once.
type batchFrameWriter interface {
	WriteFrames([]telemetry.Frame) error
}

// ViolationWriter consumes ceiling violation rows.
type ViolationWriter interface {
	WriteViolation(ViolationRow) error
}

type batchViolationWriter interface {
	WriteViolations([]ViolationRow) error
}

// ViolationRow records one drone above its local ceiling in one frame.
type ViolationRow struct {
	Time       float64 `json:"time"`
	DroneID    string  `json:"drone_id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	AltAGL     float64 `json:"alt_agl"`
	CeilingAGL float64 `json:"ceiling_agl"`
	Margin     float64 `json:"margin"`
}

// CeilingChecker is satisfied by *altitude.Service.
type CeilingChecker interface {
	CheckViolation(lat, lon, altAGL float64) altitude.Violation
}

// Violations returns a row for every drone in f above its ceiling.
func Violations(f telemetry.Frame, c CeilingChecker) []ViolationRow {
	var rows []ViolationRow
	for _, d := range f.Drones {
		v := c.CheckViolation(d.Lat, d.Lon, d.AltAGL)
		if !v.Violation {
			continue
		}
		rows = append(rows, ViolationRow{
			Time:       f.Time,
			DroneID:    d.ID,
			Lat:        d.Lat,
			Lon:        d.Lon,
			AltAGL:     d.AltAGL,
			CeilingAGL: v.CeilingAGL,
			Margin:     v.Margin,
		})
	}
	return rows
}

// WriteFrames sends frames to w, in one batch when w supports it.
func WriteFrames(w FrameWriter, frames []telemetry.Frame) error {
	if bw, ok := w.(batchFrameWriter); ok {
		return bw.WriteFrames(frames)
	}
	for _, f := range frames {
		if err := w.WriteFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// WriteViolations sends rows to w, in one batch when w supports it.
func WriteViolations(w ViolationWriter, rows []ViolationRow) error {
	if bw, ok := w.(batchViolationWriter); ok {
		return bw.WriteViolations(rows)
	}
	for _, r := range rows {
		if err := w.WriteViolation(r); err != nil {
			return err
		}
	}
	return nil
}
