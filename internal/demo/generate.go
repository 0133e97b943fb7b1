// Package demo synthesizes simulation exports for venues that have no
// recorded data.
package demo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"dronevis/internal/geo"
	"dronevis/internal/scenario"
)

// Patrol is a drone flying a circle around the origin.
type Patrol struct {
	ID          string
	Radius      float64 // meters
	AltitudeAGL float64
	Speed       float64 // m/s
}

// DefaultPatrols are the three perimeter loops of the reference venue.
var DefaultPatrols = []Patrol{
	{ID: "PATROL_001", Radius: 500, AltitudeAGL: 60, Speed: 12},
	{ID: "PATROL_002", Radius: 700, AltitudeAGL: 80, Speed: 14},
	{ID: "PATROL_003", Radius: 400, AltitudeAGL: 50, Speed: 10},
}

const (
	defaultStep      = 0.1
	defaultWaypoints = 24
	batteryLife      = 3600.0 // seconds of flight from full charge
	minBattery       = 0.1
)

// Options controls Generate.
type Options struct {
	Region string
	Origin geo.Origin
	// Patrols become circular waypoint paths.
	Patrols []Patrol
	// Paths are flown as given; waypoints are [lon, lat, altAGL].
	Paths []scenario.DronePath
	// Step is the sample interval in seconds.
	Step float64
	// Waypoints per patrol circle.
	Waypoints int
}

// Export mirrors the simulation export document read by playback.
type Export struct {
	Metadata  Metadata   `json:"metadata"`
	Corridors []Corridor `json:"corridors"`
	UAVIDs    []string   `json:"uav_ids"`
	Timesteps []Timestep `json:"timesteps"`
}

// Metadata describes an export.
type Metadata struct {
	Region        string               `json:"region"`
	SpatialBounds map[string][]float64 `json:"spatial_bounds"`
	UAVCount      int                  `json:"uav_count"`
	Timesteps     int                  `json:"timesteps"`
	Generator     string               `json:"generator"`
}

// Corridor has an ENU centerline.
type Corridor struct {
	ID            string       `json:"id"`
	Centerline    [][3]float64 `json:"centerline"`
	Width         float64      `json:"width"`
	AltitudeRange [2]float64   `json:"altitudeRange"`
	Capacity      int          `json:"capacity"`
	Type          string       `json:"type"`
	RiskScore     float64      `json:"riskScore"`
	RFQuality     float64      `json:"rfQuality"`
	Connections   []string     `json:"connections"`
}

// Timestep holds every drone sampled at Time.
type Timestep struct {
	Time float64           `json:"time"`
	UAVs map[string]Sample `json:"uavs"`
}

// Sample is one drone entry in ENU coordinates.
type Sample struct {
	Position         [3]float64 `json:"position"`
	Velocity         [3]float64 `json:"velocity"`
	Battery          float64    `json:"battery"`
	OperationalState string     `json:"operational_state"`
	CorridorID       string     `json:"corridor_id,omitempty"`
	RouteIndex       int        `json:"route_index"`
}

type route struct {
	id       string
	speed    float64
	points   [][3]float64 // ENU
	corridor string
}

// Generate builds an export. Drones fly their paths once at constant speed,
// sampled every Step seconds; a drone drops out of timesteps after it lands.
func Generate(opts Options) (Export, error) {
	if opts.Step <= 0 {
		opts.Step = defaultStep
	}
	if opts.Waypoints < 3 {
		opts.Waypoints = defaultWaypoints
	}
	if len(opts.Patrols) == 0 && len(opts.Paths) == 0 {
		opts.Patrols = DefaultPatrols
	}

	var routes []route
	for _, p := range opts.Patrols {
		if p.Radius <= 0 || p.Speed <= 0 {
			return Export{}, fmt.Errorf("patrol %s: radius and speed must be positive", p.ID)
		}
		routes = append(routes, route{id: p.ID, speed: p.Speed, points: circle(p, opts.Waypoints)})
	}
	for _, d := range opts.Paths {
		r, err := pathRoute(d, opts.Origin)
		if err != nil {
			return Export{}, err
		}
		routes = append(routes, r)
	}

	ex := Export{Corridors: make([]Corridor, 0, len(routes))}
	samples := make(map[int]map[string]Sample)
	maxStep := 0
	var extent, top float64
	for _, r := range routes {
		r.corridor = "corridor_" + r.id
		ex.UAVIDs = append(ex.UAVIDs, r.id)
		ex.Corridors = append(ex.Corridors, corridorFor(r))
		for i, s := range fly(r, opts.Step) {
			if samples[i] == nil {
				samples[i] = make(map[string]Sample)
			}
			samples[i][r.id] = s
			maxStep = max(maxStep, i)
		}
		for _, p := range r.points {
			extent = max(extent, math.Abs(p[0]), math.Abs(p[1]))
			top = max(top, p[2])
		}
	}

	ex.Timesteps = make([]Timestep, 0, maxStep+1)
	for i := 0; i <= maxStep; i++ {
		ex.Timesteps = append(ex.Timesteps, Timestep{Time: round(float64(i)*opts.Step, 6), UAVs: samples[i]})
	}
	region := opts.Region
	if region == "" {
		region = "demo"
	}
	bound := math.Ceil(extent/100) * 100
	ex.Metadata = Metadata{
		Region: region,
		SpatialBounds: map[string][]float64{
			"x": {-bound, bound},
			"y": {-bound, bound},
			"z": {0, math.Ceil(top/50) * 50},
		},
		UAVCount:  len(routes),
		Timesteps: len(ex.Timesteps),
		Generator: "dronevis",
	}
	return ex, nil
}

func circle(p Patrol, n int) [][3]float64 {
	pts := make([][3]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts = append(pts, [3]float64{p.Radius * math.Cos(a), p.Radius * math.Sin(a), p.AltitudeAGL})
	}
	return pts
}

func pathRoute(d scenario.DronePath, origin geo.Origin) (route, error) {
	if d.Speed <= 0 {
		return route{}, fmt.Errorf("drone %s: speed must be positive", d.ID)
	}
	if len(d.Path) < 2 {
		return route{}, fmt.Errorf("drone %s: path needs at least two waypoints", d.ID)
	}
	r := route{id: d.ID, speed: d.Speed}
	for _, wp := range d.Path {
		x, y := origin.ToPlanar(wp[1], wp[0])
		alt := 0.0
		if len(wp) > 2 {
			alt = wp[2]
		}
		r.points = append(r.points, [3]float64{x, y, alt})
	}
	return r, nil
}

// fly samples r every step seconds from t=0 until the last waypoint.
func fly(r route, step float64) []Sample {
	var out []Sample
	t := 0.0
	for leg := 0; leg < len(r.points)-1; leg++ {
		a, b := r.points[leg], r.points[leg+1]
		dx, dy, dz := b[0]-a[0], b[1]-a[1], b[2]-a[2]
		dist := math.Hypot(dx, dy)
		travel := dist / r.speed
		if travel == 0 {
			continue
		}
		vel := [3]float64{dx / travel, dy / travel, dz / travel}
		// tolerate rounding so exact multiples of step are not cut short
		n := max(1, int(travel/step+1e-9))
		for i := 0; i < n; i++ {
			f := float64(i) / float64(n)
			out = append(out, Sample{
				Position:         [3]float64{a[0] + f*dx, a[1] + f*dy, a[2] + f*dz},
				Velocity:         vel,
				Battery:          round(math.Max(minBattery, 1-t/batteryLife), 4),
				OperationalState: "active",
				CorridorID:       r.corridor,
				RouteIndex:       leg,
			})
			t += step
		}
	}
	return out
}

func corridorFor(r route) Corridor {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range r.points {
		lo, hi = math.Min(lo, p[2]), math.Max(hi, p[2])
	}
	return Corridor{
		ID:            r.corridor,
		Centerline:    r.points,
		Width:         30,
		AltitudeRange: [2]float64{math.Max(0, lo-20), hi + 20},
		Capacity:      4,
		Type:          "specific",
		RiskScore:     0.1,
		RFQuality:     0.95,
		Connections:   []string{},
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Write encodes ex as indented JSON.
func Write(w io.Writer, ex Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ex)
}

// WriteFile writes ex to path. A .zst suffix selects zstd compression.
func WriteFile(path string, ex Export) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if !strings.HasSuffix(path, ".zst") {
		return Write(f, ex)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if err := Write(zw, ex); err != nil {
		return errors.Join(err, zw.Close())
	}
	return zw.Close()
}
