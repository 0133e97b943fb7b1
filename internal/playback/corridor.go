package playback

import (
	"encoding/json"
	"errors"
	"fmt"

	"dronevis/internal/geo"
	"dronevis/internal/telemetry"
)

type corridorRecord struct {
	ID            string      `json:"id"`
	Centerline    [][]float64 `json:"centerline"`
	Width         *float64    `json:"width"`
	AltitudeRange []float64   `json:"altitudeRange"`
	Capacity      *int        `json:"capacity"`
	Type          string      `json:"type"`
	RiskScore     *float64    `json:"riskScore"`
	RFQuality     *float64    `json:"rfQuality"`
	Connections   []string    `json:"connections"`
}

// parseCorridor applies defaults and converts centerline points. Points with
// three components are ENU [x, y, z]; points with two are geodetic [lat, lon].
func parseCorridor(raw json.RawMessage, origin geo.Origin) (telemetry.Corridor, error) {
	var c telemetry.Corridor
	canon, err := telemetry.Canonicalize(raw, telemetry.CorridorAliases)
	if err != nil {
		return c, err
	}
	var rec corridorRecord
	if err := json.Unmarshal(canon, &rec); err != nil {
		return c, err
	}
	if rec.ID == "" {
		return c, errors.New("missing id")
	}

	c = telemetry.Corridor{
		ID:            rec.ID,
		Centerline:    make([][3]float64, 0, len(rec.Centerline)),
		Width:         telemetry.DefaultCorridorWidth,
		AltitudeRange: telemetry.DefaultCorridorAltitude,
		Capacity:      telemetry.DefaultCorridorCapacity,
		Type:          telemetry.DefaultCorridorType,
		RFQuality:     telemetry.DefaultCorridorRF,
		Connections:   append([]string{}, rec.Connections...),
	}
	for i, p := range rec.Centerline {
		switch len(p) {
		case 3:
			lat, lon := origin.ToGeodetic(p[0], p[1])
			c.Centerline = append(c.Centerline, [3]float64{lat, lon, p[2]})
		case 2:
			c.Centerline = append(c.Centerline, [3]float64{p[0], p[1], 0})
		default:
			return c, fmt.Errorf("%s: centerline point %d has %d components", rec.ID, i, len(p))
		}
	}
	if rec.Width != nil {
		c.Width = *rec.Width
	}
	if rec.AltitudeRange != nil {
		if len(rec.AltitudeRange) != 2 || rec.AltitudeRange[0] > rec.AltitudeRange[1] {
			return c, fmt.Errorf("%s: invalid altitude range %v", rec.ID, rec.AltitudeRange)
		}
		c.AltitudeRange = [2]float64{rec.AltitudeRange[0], rec.AltitudeRange[1]}
	}
	if rec.Capacity != nil {
		c.Capacity = *rec.Capacity
	}
	if rec.Type != "" {
		c.Type = rec.Type
	}
	if rec.RiskScore != nil {
		c.RiskScore = *rec.RiskScore
	}
	if rec.RFQuality != nil {
		c.RFQuality = *rec.RFQuality
	}
	return c, nil
}
