package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"dronevis/internal/geo"
)

// PayloadRecord is the wire form of a payload before defaults are applied.
type PayloadRecord struct {
	CameraStreams  []string `json:"cameraStreams"`
	GimbalYaw      *float64 `json:"gimbalYaw"`
	GimbalPitch    *float64 `json:"gimbalPitch"`
	Battery        *float64 `json:"battery"`
	ThermalEnabled *bool    `json:"thermalEnabled"`
}

// LiveRecord is a geodetic-native telemetry message after alias rewriting.
// Pointer fields distinguish "absent" from zero.
type LiveRecord struct {
	ID            *string        `json:"id"`
	Lat           *float64       `json:"lat"`
	Lon           *float64       `json:"lon"`
	AltMSL        *float64       `json:"alt_msl"`
	AltAGL        *float64       `json:"alt_agl"`
	Heading       *float64       `json:"heading"`
	Speed         *float64       `json:"speed"`
	Health        string         `json:"health"`
	LinkQuality   *float64       `json:"link_quality"`
	VerticalSpeed *float64       `json:"vertical_speed"`
	Payload       *PayloadRecord `json:"payload"`
	CorridorID    *string        `json:"corridor_id"`
	RouteIndex    *int           `json:"route_index"`
}

// PlaybackRecord is one drone entry of a recorded simulation export. The
// position is an ENU offset unless lat/lon are present; a missing position
// decodes as the origin.
type PlaybackRecord struct {
	Position         []float64 `json:"position"`
	Velocity         []float64 `json:"velocity"`
	Lat              *float64  `json:"lat"`
	Lon              *float64  `json:"lon"`
	AltAGL           *float64  `json:"alt_agl"`
	Heading          *float64  `json:"heading"`
	Speed            *float64  `json:"speed"`
	Battery          *float64  `json:"battery"`
	OperationalState string    `json:"operational_state"`
	CorridorID       *string   `json:"corridor_id"`
	RouteIndex       *int      `json:"route_index"`
}

// ElevationSource supplies ground elevation in meters MSL.
type ElevationSource interface {
	GroundElevation(lat, lon float64) float64
}

// DecodeLive is the single decoding boundary for live telemetry.
func DecodeLive(data []byte) (LiveRecord, error) {
	var rec LiveRecord
	canon, err := Canonicalize(data, LiveAliases)
	if err != nil {
		return rec, &ValidationError{Reason: err.Error()}
	}
	if err := json.Unmarshal(canon, &rec); err != nil {
		return rec, &ValidationError{Reason: err.Error()}
	}
	return rec, nil
}

// DecodePlayback decodes one drone entry of a simulation export.
func DecodePlayback(data []byte) (PlaybackRecord, error) {
	var rec PlaybackRecord
	canon, err := Canonicalize(data, PlaybackAliases)
	if err != nil {
		return rec, &ValidationError{Reason: err.Error()}
	}
	if err := json.Unmarshal(canon, &rec); err != nil {
		return rec, &ValidationError{Reason: err.Error()}
	}
	if err := rec.validate(); err != nil {
		return rec, err
	}
	if rec.Lat == nil && len(rec.Position) == 0 {
		rec.Position = []float64{0, 0, 0}
	}
	return rec, nil
}

func (r PlaybackRecord) validate() error {
	if (r.Lat == nil) != (r.Lon == nil) {
		return &ValidationError{Field: "lat/lon", Reason: "must be given together"}
	}
	if r.Lat == nil && len(r.Position) != 0 && len(r.Position) != 2 && len(r.Position) != 3 {
		return &ValidationError{Field: "position", Reason: fmt.Sprintf("needs 2 or 3 components, got %d", len(r.Position))}
	}
	if n := len(r.Velocity); n != 0 && n != 2 && n != 3 {
		return &ValidationError{Field: "velocity", Reason: fmt.Sprintf("needs 2 or 3 components, got %d", n)}
	}
	return nil
}

// ParseLive decodes and normalizes a raw live telemetry message.
func ParseLive(data []byte) (DroneState, error) {
	rec, err := DecodeLive(data)
	if err != nil {
		return DroneState{}, err
	}
	return NormalizeLive(rec)
}

// NormalizeLive converts a geodetic-native record into a DroneState,
// filling defaults. The identifier and both coordinates are required.
func NormalizeLive(rec LiveRecord) (DroneState, error) {
	if rec.ID == nil || strings.TrimSpace(*rec.ID) == "" {
		return DroneState{}, &ValidationError{Field: "id", Reason: "is required"}
	}
	if rec.Lat == nil {
		return DroneState{}, &ValidationError{Field: "lat", Reason: "is required"}
	}
	if rec.Lon == nil {
		return DroneState{}, &ValidationError{Field: "lon", Reason: "is required"}
	}
	health, _ := ParseHealth(rec.Health)
	d := DroneState{
		ID:            *rec.ID,
		Lat:           *rec.Lat,
		Lon:           *rec.Lon,
		AltMSL:        valueOr(rec.AltMSL, 0),
		AltAGL:        valueOr(rec.AltAGL, 0),
		Heading:       geo.NormalizeHeading(valueOr(rec.Heading, 0)),
		Speed:         math.Abs(valueOr(rec.Speed, 0)),
		Health:        health,
		LinkQuality:   clampUnit(valueOr(rec.LinkQuality, 1)),
		VerticalSpeed: valueOr(rec.VerticalSpeed, 0),
		RouteIndex:    rec.RouteIndex,
	}
	if rec.CorridorID != nil {
		d.CorridorID = *rec.CorridorID
	}
	// every live drone carries a payload, as playback drones do
	p := rec.Payload
	if p == nil {
		p = &PayloadRecord{}
	}
	d.Payload = &Payload{
		CameraStreams:  append([]string{}, p.CameraStreams...),
		GimbalYaw:      valueOr(p.GimbalYaw, 0),
		GimbalPitch:    valueOr(p.GimbalPitch, 0),
		Battery:        NormalizeBattery(valueOr(p.Battery, 1)),
		ThermalEnabled: p.ThermalEnabled != nil && *p.ThermalEnabled,
	}
	return d, nil
}

// Normalizer converts recorded simulation entries into DroneStates relative
// to a scenario origin. Elevation is optional; without it MSL equals AGL.
type Normalizer struct {
	Origin    geo.Origin
	Elevation ElevationSource
}

// Playback normalizes one recorded entry. The record must have passed
// DecodePlayback validation.
func (n Normalizer) Playback(id string, rec PlaybackRecord) DroneState {
	var lat, lon, agl float64
	if rec.Lat != nil {
		lat, lon = *rec.Lat, *rec.Lon
		if len(rec.Position) > 2 {
			agl = rec.Position[2]
		}
	} else {
		lat, lon = n.Origin.ToGeodetic(rec.Position[0], rec.Position[1])
		if len(rec.Position) > 2 {
			agl = rec.Position[2]
		}
	}
	if rec.AltAGL != nil {
		agl = *rec.AltAGL
	}

	var vx, vy, vz float64
	if len(rec.Velocity) >= 2 {
		vx, vy = rec.Velocity[0], rec.Velocity[1]
	}
	if len(rec.Velocity) == 3 {
		vz = rec.Velocity[2]
	}

	heading := geo.HeadingFromVelocity(vx, vy)
	if rec.Heading != nil {
		heading = geo.NormalizeHeading(*rec.Heading)
	}
	speed := geo.GroundSpeed(vx, vy)
	if rec.Speed != nil {
		speed = math.Abs(*rec.Speed)
	}

	msl := agl
	if n.Elevation != nil {
		msl = agl + n.Elevation.GroundElevation(lat, lon)
	}
	// Cosmetic stagger so co-located drones separate in 3D views.
	offset := StaggerOffset(id)
	agl += offset
	msl += offset

	health := HealthWarning
	if rec.OperationalState == "" || rec.OperationalState == "active" {
		health = HealthOK
	}

	d := DroneState{
		ID:            id,
		Lat:           lat,
		Lon:           lon,
		AltMSL:        msl,
		AltAGL:        agl,
		Heading:       heading,
		Speed:         speed,
		Health:        health,
		LinkQuality:   1,
		VerticalSpeed: vz,
		Payload: &Payload{
			CameraStreams: []string{},
			Battery:       NormalizeBattery(valueOr(rec.Battery, 1)),
		},
		RouteIndex: rec.RouteIndex,
	}
	if rec.CorridorID != nil {
		d.CorridorID = *rec.CorridorID
	}
	return d
}

// StaggerOffset is a deterministic 0-15 m display offset derived from the
// drone identifier. It is not a physical altitude.
func StaggerOffset(id string) float64 {
	sum := 0
	for _, r := range id {
		sum += int(r)
	}
	return float64(sum%6) * 3
}

// NormalizeBattery converts percentages (> 1) to fractions and clamps the
// result to [0, 1].
func NormalizeBattery(b float64) float64 {
	if b > 1 {
		b /= 100
	}
	return clampUnit(b)
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
