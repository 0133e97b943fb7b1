// Canonical drone telemetry types shared by playback, live ingest and sinks
package telemetry

import (
	"strings"
)

// Health is the operational health of a drone.
type Health string

// Drone health values.
const (
	HealthOK      Health = "OK"
	HealthWarning Health = "WARNING"
	HealthError   Health = "ERROR"
	HealthOffline Health = "OFFLINE"
)

// ParseHealth maps a case-insensitive health string onto a Health value.
// Unknown and empty strings report false.
func ParseHealth(s string) (Health, bool) {
	switch Health(strings.ToUpper(strings.TrimSpace(s))) {
	case HealthOK:
		return HealthOK, true
	case HealthWarning:
		return HealthWarning, true
	case HealthError:
		return HealthError, true
	case HealthOffline:
		return HealthOffline, true
	}
	return HealthOK, false
}

// Payload describes camera and gimbal equipment carried by a drone.
type Payload struct {
	CameraStreams  []string `json:"cameraStreams" msgpack:"cameraStreams"`
	GimbalYaw      float64  `json:"gimbalYaw" msgpack:"gimbalYaw"`
	GimbalPitch    float64  `json:"gimbalPitch" msgpack:"gimbalPitch"`
	Battery        float64  `json:"battery" msgpack:"battery"` // 0..1
	ThermalEnabled bool     `json:"thermalEnabled" msgpack:"thermalEnabled"`
}

// DroneState is the canonical snapshot of one drone. Every input source
// converges on this record.
type DroneState struct {
	ID            string   `json:"id" msgpack:"id"`
	Lat           float64  `json:"lat" msgpack:"lat"`
	Lon           float64  `json:"lon" msgpack:"lon"`
	AltMSL        float64  `json:"alt_msl" msgpack:"alt_msl"`
	AltAGL        float64  `json:"alt_agl" msgpack:"alt_agl"`
	Heading       float64  `json:"heading" msgpack:"heading"` // degrees, [0, 360)
	Speed         float64  `json:"speed" msgpack:"speed"`     // horizontal, m/s
	Health        Health   `json:"health" msgpack:"health"`
	LinkQuality   float64  `json:"linkQuality" msgpack:"linkQuality"`
	VerticalSpeed float64  `json:"verticalSpeed" msgpack:"verticalSpeed"`
	Payload       *Payload `json:"payload,omitempty" msgpack:"payload,omitempty"`
	CorridorID    string   `json:"corridorId,omitempty" msgpack:"corridorId,omitempty"`
	RouteIndex    *int     `json:"routeIndex,omitempty" msgpack:"routeIndex,omitempty"`
}

// Clone returns a deep copy so callers can't alias store-owned slices.
func (d DroneState) Clone() DroneState {
	if d.Payload != nil {
		p := *d.Payload
		p.CameraStreams = append([]string(nil), d.Payload.CameraStreams...)
		d.Payload = &p
	}
	if d.RouteIndex != nil {
		ri := *d.RouteIndex
		d.RouteIndex = &ri
	}
	return d
}

// Frame is the set of drone states active at one instant.
type Frame struct {
	Time   float64      `json:"time" msgpack:"time"` // seconds
	Drones []DroneState `json:"drones" msgpack:"drones"`
}

// Corridor is a designated flight path loaded with a scenario.
type Corridor struct {
	ID            string       `json:"id"`
	Centerline    [][3]float64 `json:"centerline"` // [lat, lon, alt]
	Width         float64      `json:"width"`
	AltitudeRange [2]float64   `json:"altitudeRange"` // meters AGL
	Capacity      int          `json:"capacity"`
	Type          string       `json:"type"`
	RiskScore     float64      `json:"riskScore"`
	RFQuality     float64      `json:"rfQuality"`
	Connections   []string     `json:"connections"`
}

// Corridor defaults applied when the source omits a field.
const (
	DefaultCorridorWidth    = 30.0
	DefaultCorridorCapacity = 4
	DefaultCorridorType     = "specific"
	DefaultCorridorRF       = 1.0
)

// DefaultCorridorAltitude is the altitude band used when none is given.
var DefaultCorridorAltitude = [2]float64{40, 60}
