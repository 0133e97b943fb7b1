package altitude

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"dronevis/internal/telemetry"
)

// cellRecord accepts both persisted cell layouts. The canonical layout uses
// latMin/latMax/lonMin/lonMax/groundElevation; the legacy layout uses
// latRange/lonRange/ground.
type cellRecord struct {
	LatMin          *float64  `json:"latMin"`
	LatMax          *float64  `json:"latMax"`
	LonMin          *float64  `json:"lonMin"`
	LonMax          *float64  `json:"lonMax"`
	LatRange        []float64 `json:"latRange"`
	LonRange        []float64 `json:"lonRange"`
	MaxAltitudeAGL  *float64  `json:"maxAltitudeAgl"`
	GroundElevation *float64  `json:"groundElevation"`
	Ground          *float64  `json:"ground"`
}

type cellFile struct {
	Cells []cellRecord `json:"cells"`
}

// Load reads a facility map and returns a service over its cells.
func Load(path string) (*Service, error) {
	cells, err := LoadCells(path)
	if err != nil {
		return nil, err
	}
	return NewService(cells...), nil
}

// LoadCells reads facility-map cells from a JSON file. The file is either
// {"cells": [...]} or a bare array of cells. Any failure is a LoadError.
func LoadCells(path string) ([]Cell, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &telemetry.LoadError{Path: path, Err: err}
	}
	cells, err := ParseCells(data)
	if err != nil {
		return nil, &telemetry.LoadError{Path: path, Err: err}
	}
	return cells, nil
}

// ParseCells decodes and validates a facility map document. An empty cells
// list is valid and leaves every point under the default ceiling.
func ParseCells(data []byte) ([]Cell, error) {
	var records []cellRecord
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("parse facility map: %w", err)
		}
	} else {
		var f cellFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("parse facility map: %w", err)
		}
		if f.Cells == nil {
			return nil, errors.New("facility map has no cells list")
		}
		records = f.Cells
	}

	cells := make([]Cell, 0, len(records))
	for i, r := range records {
		c, err := r.cell()
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		cells = append(cells, c)
	}
	return cells, nil
}

func (r cellRecord) cell() (Cell, error) {
	var c Cell
	switch {
	case r.LatMin != nil && r.LatMax != nil && r.LonMin != nil && r.LonMax != nil:
		c.LatMin, c.LatMax, c.LonMin, c.LonMax = *r.LatMin, *r.LatMax, *r.LonMin, *r.LonMax
	case len(r.LatRange) == 2 && len(r.LonRange) == 2:
		c.LatMin, c.LatMax = r.LatRange[0], r.LatRange[1]
		c.LonMin, c.LonMax = r.LonRange[0], r.LonRange[1]
	default:
		return c, errors.New("missing bounds")
	}
	if r.MaxAltitudeAGL == nil {
		return c, errors.New("missing maxAltitudeAgl")
	}
	c.MaxAltitudeAGL = *r.MaxAltitudeAGL
	c.Ground = r.GroundElevation
	if c.Ground == nil {
		c.Ground = r.Ground
	}

	if c.LatMin > c.LatMax || c.LonMin > c.LonMax {
		return c, fmt.Errorf("inverted bounds lat [%g, %g] lon [%g, %g]", c.LatMin, c.LatMax, c.LonMin, c.LonMax)
	}
	if c.MaxAltitudeAGL < 0 {
		return c, fmt.Errorf("negative ceiling %g", c.MaxAltitudeAGL)
	}
	return c, nil
}

// MarshalCells encodes cells in the canonical persisted layout.
func MarshalCells(cells []Cell) ([]byte, error) {
	return json.MarshalIndent(struct {
		Cells []Cell `json:"cells"`
	}{cells}, "", "  ")
}
