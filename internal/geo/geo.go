package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000

// Point is a WGS-84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Site is a geofenced location attendance can be recorded against.
type Site struct {
	ID           int64
	Name         string
	Center       Point
	RadiusMeters float64
	Active       bool
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// NearestSite returns the active site closest to p and the distance to it.
// Ties break toward the lower site id so the result is deterministic. Returns
// nil when sites is empty.
func NearestSite(p Point, sites []Site) (*Site, float64) {
	var nearest *Site
	minDist := math.Inf(1)
	for i := range sites {
		s := &sites[i]
		d := Distance(p, s.Center)
		if d < minDist || (d == minDist && nearest != nil && s.ID < nearest.ID) {
			minDist = d
			nearest = s
		}
	}
	if nearest == nil {
		return nil, 0
	}
	return nearest, minDist
}

// WithinRadius reports whether p falls inside the site's geofence. The
// boundary is inclusive: a point exactly at the radius passes.
func WithinRadius(p Point, s Site) (bool, float64) {
	d := Distance(p, s.Center)
	return d <= s.RadiusMeters, d
}

// Valid reports whether the coordinate is a representable WGS-84 position.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
