package geo

import (
	"math"
	"testing"
)

func TestDistanceIdentity(t *testing.T) {
	points := []Point{
		{Lat: 0, Lon: 0},
		{Lat: 21.0285, Lon: 105.8542},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 89.9, Lon: -179.9},
	}
	for _, p := range points {
		if d := Distance(p, p); d != 0 {
			t.Errorf("Distance(%v, %v) = %g, want 0", p, p, d)
		}
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := Point{Lat: 21.0285, Lon: 105.8542}
	b := Point{Lat: 10.7769, Lon: 106.7009}
	if ab, ba := Distance(a, b), Distance(b, a); ab != ba {
		t.Errorf("Distance not symmetric: %g vs %g", ab, ba)
	}
}

func TestDistanceAlongMeridian(t *testing.T) {
	// One degree of latitude is ~111.19 km, so 0.0009 degrees is ~100 m.
	a := Point{Lat: 21.0000, Lon: 105.8542}
	b := Point{Lat: 21.0009, Lon: 105.8542}
	d := Distance(a, b)
	want := 100.0
	if math.Abs(d-want)/want > 0.05 {
		t.Errorf("Distance = %.2f m, want %.2f m +/- 5%%", d, want)
	}
}

func TestWithinRadiusBoundary(t *testing.T) {
	center := Point{Lat: 21.0285, Lon: 105.8542}
	site := Site{ID: 1, Name: "HQ", Center: center, RadiusMeters: 50}

	// ~45 m and ~55 m north of center.
	near := Point{Lat: center.Lat + 45.0/111195.0, Lon: center.Lon}
	far := Point{Lat: center.Lat + 55.0/111195.0, Lon: center.Lon}

	if ok, d := WithinRadius(near, site); !ok {
		t.Errorf("point at %.1f m should be within 50 m radius", d)
	}
	if ok, d := WithinRadius(far, site); ok {
		t.Errorf("point at %.1f m should be outside 50 m radius", d)
	}
}

func TestWithinRadiusInclusive(t *testing.T) {
	site := Site{ID: 1, Center: Point{}, RadiusMeters: 10}
	if ok, _ := WithinRadius(Point{}, site); !ok {
		t.Error("zero-distance point must be within any positive radius")
	}
}

func TestNearestSite(t *testing.T) {
	p := Point{Lat: 21.0285, Lon: 105.8542}
	sites := []Site{
		{ID: 2, Name: "far", Center: Point{Lat: 21.1, Lon: 105.9}, RadiusMeters: 50},
		{ID: 1, Name: "near", Center: Point{Lat: 21.0287, Lon: 105.8543}, RadiusMeters: 50},
	}
	s, d := NearestSite(p, sites)
	if s == nil || s.ID != 1 {
		t.Fatalf("NearestSite picked %+v, want site 1", s)
	}
	if d <= 0 {
		t.Errorf("distance = %g, want > 0", d)
	}
}

func TestNearestSiteEmpty(t *testing.T) {
	if s, _ := NearestSite(Point{}, nil); s != nil {
		t.Errorf("NearestSite with no sites = %+v, want nil", s)
	}
}

func TestNearestSiteTieBreak(t *testing.T) {
	p := Point{Lat: 0, Lon: 0}
	// Two sites mirrored across the point: identical distance.
	sites := []Site{
		{ID: 7, Center: Point{Lat: 0.001, Lon: 0}},
		{ID: 3, Center: Point{Lat: -0.001, Lon: 0}},
	}
	s, _ := NearestSite(p, sites)
	if s == nil || s.ID != 3 {
		t.Errorf("tie should resolve to lower id, got %+v", s)
	}
}

func TestPointValid(t *testing.T) {
	cases := []struct {
		p    Point
		want bool
	}{
		{Point{Lat: 0, Lon: 0}, true},
		{Point{Lat: 90, Lon: 180}, true},
		{Point{Lat: -90, Lon: -180}, true},
		{Point{Lat: 90.01, Lon: 0}, false},
		{Point{Lat: 0, Lon: -180.5}, false},
	}
	for _, c := range cases {
		if got := c.p.Valid(); got != c.want {
			t.Errorf("Valid(%v) = %v, want %v", c.p, got, c.want)
		}
	}
}
