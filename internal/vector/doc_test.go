package vector

import (
	"strings"
	"testing"
	"time"

	"github.com/floatchat/floatchat-backend/internal/types"
)

func f(v float64) *float64 { return &v }

func TestRegionPartition(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     string
	}{
		{15, 65, "Arabian Sea"},
		{10, 90, "Bay of Bengal"},
		{20, 110, "Northern Indian Ocean"},
		{-20, 80, "Southern Indian Ocean"},
		{10, 140, "North Pacific Ocean"},
		{-10, -100, "South Pacific Ocean"},
		{40, -30, "North Atlantic Ocean"},
		{-40, 0, "South Atlantic Ocean"},
	}
	for _, tc := range cases {
		if got := Region(f(tc.lat), f(tc.lon)); got != tc.want {
			t.Fatalf("Region(%f, %f): want=%q got=%q", tc.lat, tc.lon, tc.want, got)
		}
	}
	if got := Region(nil, f(70)); got != "unknown region" {
		t.Fatalf("missing latitude: want=%q got=%q", "unknown region", got)
	}
}

func TestSeasonYear(t *testing.T) {
	dec := time.Date(2024, time.December, 10, 0, 0, 0, 0, time.UTC)
	season, year := SeasonYear(&dec)
	if season != "winter" || year != 2024 {
		t.Fatalf("december: want=winter/2024 got=%s/%d", season, year)
	}
	if season, year := SeasonYear(nil); season != "" || year != 0 {
		t.Fatalf("nil time: want empty got=%s/%d", season, year)
	}
}

func TestDepthBand(t *testing.T) {
	cases := []struct {
		pressure *float64
		want     string
	}{
		{f(50), "surface"},
		{f(350), "shallow"},
		{f(800), "intermediate"},
		{f(1900), "deep"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := DepthBand(tc.pressure); got != tc.want {
			t.Fatalf("DepthBand(%v): want=%q got=%q", tc.pressure, tc.want, got)
		}
	}
}

func testProfile() *types.ArgoProfile {
	dt := time.Date(2025, time.January, 12, 6, 0, 0, 0, time.UTC)
	return &types.ArgoProfile{
		GlobalProfileID:  421,
		FloatID:          "1902482",
		CycleNumber:      17,
		Datetime:         &dt,
		Latitude:         f(14.5),
		Longitude:        f(68.2),
		MaxPressure:      f(1850),
		MeasurementCount: 112,
		Institution:      "INCOIS",
	}
}

func TestDocTextDeterministicAndGrounded(t *testing.T) {
	p := testProfile()
	first := DocText(p)
	for i := 0; i < 3; i++ {
		if got := DocText(p); got != first {
			t.Fatalf("doc text not deterministic:\n%s\nvs\n%s", first, got)
		}
	}
	for _, want := range []string{"1902482", "INCOIS", "cycle 17", "winter 2025", "Arabian Sea", "112 measurements"} {
		if !strings.Contains(first, want) {
			t.Fatalf("doc text missing %q:\n%s", want, first)
		}
	}
}

func TestMetadataFields(t *testing.T) {
	meta := Metadata(testProfile())
	if meta["global_profile_id"] != "421" {
		t.Fatalf("global_profile_id: want=%q got=%v", "421", meta["global_profile_id"])
	}
	if meta["region"] != "Arabian Sea" {
		t.Fatalf("region: want=%q got=%v", "Arabian Sea", meta["region"])
	}
	if meta["year"] != 2025 || meta["month"] != 1 {
		t.Fatalf("year/month: want=2025/1 got=%v/%v", meta["year"], meta["month"])
	}
	if meta["lat_bucket"] != 10 || meta["lon_bucket"] != 60 {
		t.Fatalf("buckets: want=10/60 got=%v/%v", meta["lat_bucket"], meta["lon_bucket"])
	}
	if meta["depth_band"] != "deep" {
		t.Fatalf("depth_band: want=deep got=%v", meta["depth_band"])
	}
}
