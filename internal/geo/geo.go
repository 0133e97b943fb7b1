// Package geo converts between local ENU offsets and geodetic coordinates.
//
// The planar conversion is a flat-earth approximation that is only accurate
// for offsets of a few tens of kilometres from the origin.
package geo

import "math"

const (
	// MetersPerDegreeLat is the length of one degree of latitude.
	MetersPerDegreeLat = 111320.0
	// EarthRadius is the WGS84 equatorial radius in meters.
	EarthRadius = 6378137.0

	// stillEpsilon is the velocity magnitude (m/s) below which heading is 0.
	stillEpsilon = 0.01
)

// Origin is the geodetic anchor of a local ENU frame.
type Origin struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// ToGeodetic converts an east/north offset from o into latitude and longitude.
func (o Origin) ToGeodetic(x, y float64) (lat, lon float64) {
	return PlanarToGeodetic(x, y, o.Lat, o.Lon)
}

// ToPlanar converts latitude and longitude into an east/north offset from o.
func (o Origin) ToPlanar(lat, lon float64) (x, y float64) {
	return GeodeticToPlanar(lat, lon, o.Lat, o.Lon)
}

func metersPerDegreeLon(originLat float64) float64 {
	return MetersPerDegreeLat * math.Cos(originLat*math.Pi/180)
}

// PlanarToGeodetic maps an east (x) and north (y) offset in meters to
// latitude/longitude in degrees.
func PlanarToGeodetic(x, y, originLat, originLon float64) (lat, lon float64) {
	lat = originLat + y/MetersPerDegreeLat
	lon = originLon + x/metersPerDegreeLon(originLat)
	return lat, lon
}

// GeodeticToPlanar is the exact inverse of PlanarToGeodetic.
func GeodeticToPlanar(lat, lon, originLat, originLon float64) (x, y float64) {
	x = (lon - originLon) * metersPerDegreeLon(originLat)
	y = (lat - originLat) * MetersPerDegreeLat
	return x, y
}

// Bearing returns the initial great-circle bearing from one point to another
// in degrees, clockwise from north, in [0, 360).
func Bearing(fromLat, fromLon, toLat, toLon float64) float64 {
	lat1 := fromLat * math.Pi / 180
	lat2 := toLat * math.Pi / 180
	dLon := (toLon - fromLon) * math.Pi / 180

	x := math.Sin(dLon) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeHeading(math.Atan2(x, y) * 180 / math.Pi)
}

// HaversineDistance returns the great-circle distance in meters.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// HeadingFromVelocity derives a compass heading from an east/north velocity.
// A vehicle at rest has heading 0.
func HeadingFromVelocity(vx, vy float64) float64 {
	if math.Abs(vx) <= stillEpsilon && math.Abs(vy) <= stillEpsilon {
		return 0
	}
	return NormalizeHeading(math.Atan2(vx, vy) * 180 / math.Pi)
}

// GroundSpeed is the horizontal magnitude of an east/north velocity.
func GroundSpeed(vx, vy float64) float64 {
	return math.Hypot(vx, vy)
}

// NormalizeHeading wraps any angle in degrees into [0, 360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	// -1e-15 wraps to 360 after the addition above.
	if h >= 360 {
		h = 0
	}
	return h
}
