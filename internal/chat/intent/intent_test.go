package intent

import (
	"reflect"
	"testing"
	"time"

	"github.com/floatchat/floatchat-backend/internal/config"
)

func testClassifier() *Classifier {
	return NewClassifier(config.DefaultGazetteer())
}

func TestClassifyInformational(t *testing.T) {
	c := testClassifier()
	for _, query := range []string{
		"What are Argo floats?",
		"how does argo work",
		"Tell me about Argo",
	} {
		cls := c.Classify(query)
		if cls.Intent != Informational {
			t.Fatalf("query %q: intent want=%s got=%s", query, Informational, cls.Intent)
		}
		if cls.Query != query {
			t.Fatalf("raw query must be preserved: want=%q got=%q", query, cls.Query)
		}
	}
}

func TestClassifyFloatLookup(t *testing.T) {
	c := testClassifier()
	cls := c.Classify("Get data from float 1902482")
	if cls.Intent != FloatLookup {
		t.Fatalf("intent want=%s got=%s", FloatLookup, cls.Intent)
	}
	if want := []string{"1902482"}; !reflect.DeepEqual(cls.Entities.FloatIDs, want) {
		t.Fatalf("float ids want=%v got=%v", want, cls.Entities.FloatIDs)
	}
}

func TestClassifySpatialWithParameter(t *testing.T) {
	c := testClassifier()
	cls := c.Classify("Show me temperature in the Arabian Sea")
	if cls.Intent != Spatial {
		t.Fatalf("intent want=%s got=%s", Spatial, cls.Intent)
	}
	if want := []string{"Arabian Sea"}; !reflect.DeepEqual(cls.Entities.Regions, want) {
		t.Fatalf("regions want=%v got=%v", want, cls.Entities.Regions)
	}
	if want := []string{"temperature"}; !reflect.DeepEqual(cls.Entities.Parameters, want) {
		t.Fatalf("parameters want=%v got=%v", want, cls.Entities.Parameters)
	}
	if cls.Store != StoreDev {
		t.Fatalf("store want=%s got=%s", StoreDev, cls.Store)
	}
}

func TestClassifyRegionLongestNameWins(t *testing.T) {
	c := testClassifier()
	cls := c.Classify("profiles in the southern indian ocean")
	if len(cls.Entities.Regions) == 0 || cls.Entities.Regions[0] != "Southern Indian Ocean" {
		t.Fatalf("regions[0] want=%q got=%v", "Southern Indian Ocean", cls.Entities.Regions)
	}
}

func TestClassifyHybridSpatialTemporal(t *testing.T) {
	c := testClassifier()
	cls := c.Classify("Find profiles in the Arabian Sea from winter 2025")
	if cls.Intent != Hybrid {
		t.Fatalf("intent want=%s got=%s", Hybrid, cls.Intent)
	}
	tr := cls.Entities.TimeRange
	if tr == nil {
		t.Fatalf("time range missing")
	}
	wantStart := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !tr.Start.Equal(wantStart) || !tr.End.Equal(wantEnd) {
		t.Fatalf("winter 2025 range want=[%s,%s) got=[%s,%s)", wantStart, wantEnd, tr.Start, tr.End)
	}
}

func TestClassifyTemporalMonth(t *testing.T) {
	c := testClassifier()
	cls := c.Classify("profiles from January 2025")
	if cls.Intent != Temporal {
		t.Fatalf("intent want=%s got=%s", Temporal, cls.Intent)
	}
	tr := cls.Entities.TimeRange
	if tr == nil {
		t.Fatalf("time range missing")
	}
	wantStart := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !tr.Start.Equal(wantStart) || !tr.End.Equal(wantEnd) {
		t.Fatalf("january 2025 range want=[%s,%s) got=[%s,%s)", wantStart, wantEnd, tr.Start, tr.End)
	}
}

func TestClassifyLatestRoutesToLiveStore(t *testing.T) {
	c := testClassifier()
	cls := c.Classify("latest temperature measurements")
	if cls.Store != StoreLive {
		t.Fatalf("store want=%s got=%s", StoreLive, cls.Store)
	}
	if cls.Intent != Temporal {
		t.Fatalf("intent want=%s got=%s", Temporal, cls.Intent)
	}
}

func TestClassifySemantic(t *testing.T) {
	c := testClassifier()
	cls := c.Classify("show me unusual deep water patterns")
	if cls.Intent != Semantic {
		t.Fatalf("intent want=%s got=%s", Semantic, cls.Intent)
	}
}

func TestClassifyStatistics(t *testing.T) {
	c := testClassifier()
	cls := c.Classify("show dataset statistics")
	if cls.Intent != Statistics {
		t.Fatalf("intent want=%s got=%s", Statistics, cls.Intent)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := testClassifier()
	const query = "Compare salinity profiles from INCOIS floats in the Bay of Bengal in summer 2024"
	first := c.Classify(query)
	for i := 0; i < 5; i++ {
		if got := c.Classify(query); !reflect.DeepEqual(first, got) {
			t.Fatalf("classification not deterministic: first=%+v got=%+v", first, got)
		}
	}
}

func TestDeriveDepthWindow(t *testing.T) {
	cases := []struct {
		query string
		want  *DepthWindow
	}{
		{"temperature at 100 m", &DepthWindow{Min: 75, Max: 125}},
		{"temperature at 10m depth", &DepthWindow{Min: 0, Max: 35}},
		{"salinity between 50 and 200 meters", &DepthWindow{Min: 50, Max: 200}},
		{"surface conditions", nil},
	}
	for _, tc := range cases {
		got := deriveDepthWindow(Normalize(tc.query))
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("query %q: depth window want=%+v got=%+v", tc.query, tc.want, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Show   ME\tdata "); got != "show me data" {
		t.Fatalf("normalize: want=%q got=%q", "show me data", got)
	}
}
