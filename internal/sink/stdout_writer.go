// Writer implementation printing frames to STDOUT
package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"

	"dronevis/internal/geo"
	"dronevis/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

var dronePalette = []string{colorRed, colorGreen, colorYellow, colorBlue, colorMagenta, colorCyan}

// Overview is printed once before the first colorized frame.
type Overview struct {
	Scenario  string
	Origin    geo.Origin
	Duration  float64
	Drones    int
	Corridors int
}

// StdoutWriter prints frames either as JSON lines or, when colorize is set,
// as one colored line per drone.
type StdoutWriter struct {
	overview    *Overview
	out         io.Writer
	colorize    bool
	once        sync.Once
	mu          sync.Mutex
	droneColors map[string]string
	colorIdx    int
}

// NewStdoutWriter creates a StdoutWriter writing to os.Stdout. overview may
// be nil.
func NewStdoutWriter(overview *Overview, colorize bool) *StdoutWriter {
	return &StdoutWriter{
		overview:    overview,
		out:         os.Stdout,
		colorize:    colorize,
		droneColors: make(map[string]string),
	}
}

func (w *StdoutWriter) droneColor(id string) string {
	if c, ok := w.droneColors[id]; ok {
		return c
	}
	c := dronePalette[w.colorIdx%len(dronePalette)]
	w.droneColors[id] = c
	w.colorIdx++
	return c
}

func healthColor(h telemetry.Health) string {
	switch h {
	case telemetry.HealthWarning:
		return colorYellow
	case telemetry.HealthError:
		return colorRed
	case telemetry.HealthOffline:
		return colorGray
	}
	return colorGreen
}

func (w *StdoutWriter) printOverview() {
	if w.overview == nil {
		return
	}
	fmt.Fprintln(w.out, "Scenario:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", w.overview.Scenario)
	fmt.Fprintf(tw, "Origin:\t%.6f, %.6f\n", w.overview.Origin.Lat, w.overview.Origin.Lon)
	fmt.Fprintf(tw, "Duration (s):\t%.1f\n", w.overview.Duration)
	fmt.Fprintf(tw, "Drones:\t%d\n", w.overview.Drones)
	fmt.Fprintf(tw, "Corridors:\t%d\n", w.overview.Corridors)
	tw.Flush()
	fmt.Fprintln(w.out)
}

// WriteFrame outputs every drone of a frame.
func (w *StdoutWriter) WriteFrame(f telemetry.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.colorize {
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w.out, string(data))
		return err
	}

	w.once.Do(w.printOverview)
	for _, d := range f.Drones {
		fmt.Fprintf(w.out, "%s[t=%7.1fs]%s ", colorGray, f.Time, colorReset)
		fmt.Fprintf(w.out, "%sdrone=%s%s ", w.droneColor(d.ID), d.ID, colorReset)
		fmt.Fprintf(w.out, "%slat=%.6f%s ", colorGreen, d.Lat, colorReset)
		fmt.Fprintf(w.out, "%slon=%.6f%s ", colorYellow, d.Lon, colorReset)
		fmt.Fprintf(w.out, "%smsl=%.1f agl=%.1f%s ", colorMagenta, d.AltMSL, d.AltAGL, colorReset)
		fmt.Fprintf(w.out, "%shdg=%.0f spd=%.1f%s ", colorCyan, d.Heading, d.Speed, colorReset)
		if d.Payload != nil {
			fmt.Fprintf(w.out, "%sbatt=%.0f%%%s ", colorBlue, d.Payload.Battery*100, colorReset)
		}
		if d.CorridorID != "" {
			fmt.Fprintf(w.out, "%scorridor=%s%s ", colorBlue, d.CorridorID, colorReset)
		}
		fmt.Fprintf(w.out, "%shealth=%s%s\n", healthColor(d.Health), d.Health, colorReset)
	}
	return nil
}

// WriteViolation prints a ceiling violation.
func (w *StdoutWriter) WriteViolation(v ViolationRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.colorize {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w.out, string(data))
		return err
	}
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%s[t=%7.1fs]%s %sVIOLATION%s drone=%s lat=%.6f lon=%.6f agl=%.1f ceiling=%.1f margin=%.1f\n",
		colorGray, v.Time, colorReset, colorRed, colorReset,
		v.DroneID, v.Lat, v.Lon, v.AltAGL, v.CeilingAGL, v.Margin)
	return nil
}
