// Package altitude answers ground-elevation, MSL/AGL conversion and
// facility-map ceiling queries.
package altitude

import (
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/floats/scalar"
)

// DefaultCeilingAGL is the ceiling applied outside every facility-map cell
// (400 ft).
const DefaultCeilingAGL = 121.92

// Placeholder terrain model calibrated for the Atlanta reference venue. It
// is not real terrain data.
const (
	estimateBase   = 300.0
	estimateRefLat = 33.755489
	estimateSlope  = 1000.0
	estimateMin    = 250.0
	estimateMax    = 350.0
)

const (
	defaultCacheSize = 4096
	cachePrecision   = 6
)

// Cell is an axis-aligned lat/lon rectangle carrying a maximum permitted
// altitude above ground. Bounds are inclusive.
type Cell struct {
	LatMin         float64  `json:"latMin"`
	LatMax         float64  `json:"latMax"`
	LonMin         float64  `json:"lonMin"`
	LonMax         float64  `json:"lonMax"`
	MaxAltitudeAGL float64  `json:"maxAltitudeAgl"`
	Ground         *float64 `json:"groundElevation,omitempty"`
}

// Contains reports whether the point lies inside c.
func (c Cell) Contains(lat, lon float64) bool {
	return lat >= c.LatMin && lat <= c.LatMax && lon >= c.LonMin && lon <= c.LonMax
}

// Violation is the result of an altitude check against the local ceiling.
type Violation struct {
	Violation     bool    `json:"violation"`
	CurrentAltAGL float64 `json:"currentAltAgl"`
	CeilingAGL    float64 `json:"ceilingAgl"`
	Margin        float64 `json:"margin"`
}

type cacheKey struct{ lat, lon float64 }

// Service holds an ordered set of facility-map cells. It is safe for
// concurrent use.
type Service struct {
	mu    sync.RWMutex
	cells []Cell
	cache *lru.Cache[cacheKey, float64]
}

// NewService returns a service over cells, kept in the given order.
func NewService(cells ...Cell) *Service {
	cache, err := lru.New[cacheKey, float64](defaultCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &Service{cells: append([]Cell(nil), cells...), cache: cache}
}

// AddCell appends a cell. Cached ground elevations are dropped since the
// new cell may carry its own ground value.
func (s *Service) AddCell(c Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = append(s.cells, c)
	s.cache.Purge()
}

// Cells returns a copy of the cells in load order.
func (s *Service) Cells() []Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Cell(nil), s.cells...)
}

// Len is the number of loaded cells.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}

// LookupCell returns the first cell in load order containing the point.
func (s *Service) LookupCell(lat, lon float64) (Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cells {
		if c.Contains(lat, lon) {
			return c, true
		}
	}
	return Cell{}, false
}

// Ceiling returns the maximum permitted AGL altitude at a point, or
// DefaultCeilingAGL when no cell contains it.
func (s *Service) Ceiling(lat, lon float64) float64 {
	if c, ok := s.LookupCell(lat, lon); ok {
		return c.MaxAltitudeAGL
	}
	return DefaultCeilingAGL
}

// CheckViolation compares an AGL altitude against the local ceiling.
func (s *Service) CheckViolation(lat, lon, altAGL float64) Violation {
	ceiling := s.Ceiling(lat, lon)
	return Violation{
		Violation:     altAGL > ceiling,
		CurrentAltAGL: altAGL,
		CeilingAGL:    ceiling,
		Margin:        ceiling - altAGL,
	}
}

// GroundElevation returns ground elevation in meters MSL. A containing cell
// with a ground value wins; otherwise a clamped linear estimate is used.
func (s *Service) GroundElevation(lat, lon float64) float64 {
	key := cacheKey{scalar.Round(lat, cachePrecision), scalar.Round(lon, cachePrecision)}
	// held across compute and insert so AddCell's purge cannot interleave
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.cache.Get(key); ok {
		return v
	}
	v, ok := s.cellGround(lat, lon)
	if !ok {
		v = EstimateGround(lat)
	}
	s.cache.Add(key, v)
	return v
}

// cellGround must be called with s.mu held.
func (s *Service) cellGround(lat, lon float64) (float64, bool) {
	for _, c := range s.cells {
		if c.Ground != nil && c.Contains(lat, lon) {
			return *c.Ground, true
		}
	}
	return 0, false
}

// MSLToAGL converts an altitude above mean sea level to above ground.
func (s *Service) MSLToAGL(lat, lon, altMSL float64) float64 {
	return altMSL - s.GroundElevation(lat, lon)
}

// AGLToMSL converts an altitude above ground to above mean sea level.
func (s *Service) AGLToMSL(lat, lon, altAGL float64) float64 {
	return altAGL + s.GroundElevation(lat, lon)
}

// EstimateGround is the placeholder terrain model used when no cell
// provides a ground value.
func EstimateGround(lat float64) float64 {
	v := estimateBase + (lat-estimateRefLat)*estimateSlope
	return math.Max(estimateMin, math.Min(estimateMax, v))
}
