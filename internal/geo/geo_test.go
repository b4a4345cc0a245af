package geo

import (
	"math"
	"testing"
)

func TestHaversineZeroDistance(t *testing.T) {
	if d := HaversineKM(15, 70, 15, 70); d != 0 {
		t.Fatalf("identical points: want=0 got=%f", d)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// One degree of latitude along a meridian is ~111.19 km.
	d := HaversineKM(0, 70, 1, 70)
	if math.Abs(d-111.19) > 0.5 {
		t.Fatalf("one degree latitude: want~111.19 got=%f", d)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := HaversineKM(15, 70, -20, 95)
	b := HaversineKM(-20, 95, 15, 70)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	const lat, lon, radius = 15.0, 70.0, 100.0
	latMin, latMax, lonMin, lonMax := BoundingBox(lat, lon, radius)

	// Every point within the radius must fall inside the box.
	for angle := 0.0; angle < 360; angle += 15 {
		rad := angle * math.Pi / 180
		pLat := lat + (radius/111.0)*math.Sin(rad)*0.999
		pLon := lon + (radius/(111.0*math.Cos(lat*math.Pi/180)))*math.Cos(rad)*0.999
		if HaversineKM(lat, lon, pLat, pLon) > radius {
			continue
		}
		if pLat < latMin || pLat > latMax || pLon < lonMin || pLon > lonMax {
			t.Fatalf("point (%f, %f) within %fkm but outside box [%f,%f]x[%f,%f]",
				pLat, pLon, radius, latMin, latMax, lonMin, lonMax)
		}
	}
}

func TestValidCoords(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{0, 0, true},
		{-90, 180, true},
		{90.1, 0, false},
		{0, -180.5, false},
		{99999, 99999, false},
	}
	for _, tc := range cases {
		if got := ValidCoords(tc.lat, tc.lon); got != tc.want {
			t.Fatalf("ValidCoords(%f, %f): want=%v got=%v", tc.lat, tc.lon, tc.want, got)
		}
	}
}
