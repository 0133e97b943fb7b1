// Package scenario loads venue presets: an origin, bounds, drone paths and
// the files a playback session needs.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dronevis/internal/geo"
	"dronevis/internal/telemetry"
)

// Preset describes a venue.
type Preset struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	OriginLat   float64     `yaml:"-" json:"originLat"`
	OriginLon   float64     `yaml:"-" json:"originLon"`
	Bounds      Bounds      `yaml:"bounds" json:"bounds"`
	Drones      []DronePath `yaml:"drones" json:"drones"`

	// FacilityMapCache is the facility-map file for the venue.
	FacilityMapCache string `yaml:"facilityMapCache,omitempty" json:"facilityMapCache,omitempty"`

	// SimulationFile is the export played back for the venue.
	SimulationFile string `yaml:"simulationFile,omitempty" json:"simulationFile,omitempty"`

	Timeline *Timeline `yaml:"timeline,omitempty" json:"timeline,omitempty"`
}

// Bounds is the local ENU extent of the venue in meters.
type Bounds struct {
	Min []float64 `yaml:"min" json:"min"`
	Max []float64 `yaml:"max" json:"max"`
}

// DronePath is a scripted route: waypoints are [lon, lat, altAGL].
type DronePath struct {
	ID      string         `yaml:"id" json:"id"`
	Path    [][]float64    `yaml:"path" json:"path"`
	Speed   float64        `yaml:"speed" json:"speed"`
	Payload map[string]any `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// Timeline splits a scenario into named phases ordered by start time.
type Timeline struct {
	Duration float64 `yaml:"duration" json:"duration"`
	Phases   []Phase `yaml:"phases" json:"phases"`
}

// Phase starts at Start seconds and lasts until the next phase begins.
type Phase struct {
	Name        string  `yaml:"name" json:"name"`
	Start       float64 `yaml:"start" json:"start"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
}

type presetFile struct {
	Preset    `yaml:",inline"`
	OriginLat *float64 `yaml:"originLat"`
	OriginLon *float64 `yaml:"originLon"`
}

// Load reads a preset from YAML or JSON. The name defaults to the file stem.
// Relative file references resolve against the preset's directory.
func Load(path string) (*Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &telemetry.LoadError{Path: path, Err: fmt.Errorf("read scenario: %w", err)}
	}
	p, err := Parse(b)
	if err != nil {
		return nil, &telemetry.LoadError{Path: path, Err: err}
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	dir := filepath.Dir(path)
	p.FacilityMapCache = resolve(dir, p.FacilityMapCache)
	p.SimulationFile = resolve(dir, p.SimulationFile)
	return p, nil
}

// Parse decodes a preset document.
func Parse(b []byte) (*Preset, error) {
	var f presetFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if f.OriginLat == nil || f.OriginLon == nil {
		return nil, errors.New("parse scenario: originLat and originLon are required")
	}
	p := f.Preset
	p.OriginLat, p.OriginLon = *f.OriginLat, *f.OriginLon
	for i, d := range p.Drones {
		if d.ID == "" {
			return nil, fmt.Errorf("parse scenario: drone %d: missing id", i)
		}
		for j, wp := range d.Path {
			if len(wp) != 2 && len(wp) != 3 {
				return nil, fmt.Errorf("parse scenario: drone %s waypoint %d: needs 2 or 3 components", d.ID, j)
			}
		}
	}
	return &p, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Origin is the preset's ENU origin.
func (p *Preset) Origin() geo.Origin {
	return geo.Origin{Lat: p.OriginLat, Lon: p.OriginLon}
}

// PhaseAt returns the phase active at t seconds.
func (p *Preset) PhaseAt(t float64) (Phase, bool) {
	if p.Timeline == nil {
		return Phase{}, false
	}
	var (
		cur   Phase
		found bool
	)
	for _, ph := range p.Timeline.Phases {
		if ph.Start > t {
			break
		}
		cur, found = ph, true
	}
	if p.Timeline.Duration > 0 && t > p.Timeline.Duration {
		return Phase{}, false
	}
	return cur, found
}
