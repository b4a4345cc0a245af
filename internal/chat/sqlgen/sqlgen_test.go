package sqlgen

import (
	"strings"
	"testing"

	"github.com/floatchat/floatchat-backend/internal/chat/intent"
	"github.com/floatchat/floatchat-backend/internal/config"
	"github.com/floatchat/floatchat-backend/internal/repos"
)

func testSynthesizer() *Synthesizer {
	return NewSynthesizer(config.QueryConfig{
		RowCap:            5000,
		RawLimit:          500,
		DepthBinMeters:    50,
		DepthBinMaxMeters: 2000,
		RegionGazetteer:   config.DefaultGazetteer(),
	})
}

func classify(t *testing.T, query string) intent.Classification {
	t.Helper()
	return intent.NewClassifier(config.DefaultGazetteer()).Classify(query)
}

func TestAggregatedSpatialStatement(t *testing.T) {
	s := testSynthesizer()
	cls := classify(t, "Show me temperature in the Arabian Sea")

	stmt, err := s.Synthesize(cls, nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if stmt.Form != FormAggregated {
		t.Fatalf("form want=%s got=%s", FormAggregated, stmt.Form)
	}
	lower := strings.ToLower(stmt.SQL)
	if !strings.Contains(lower, "group by") {
		t.Fatalf("aggregated statement must GROUP BY: %s", stmt.SQL)
	}
	if strings.Contains(lower, "limit") {
		t.Fatalf("aggregated statement must not LIMIT: %s", stmt.SQL)
	}
	for _, col := range []string{"depth_range", "avg_temperature", "min_temperature", "max_temperature", "measurement_count"} {
		if !contains(stmt.Columns, col) {
			t.Fatalf("missing column %q in %v", col, stmt.Columns)
		}
	}
	if err := repos.ValidateSQL(stmt.SQL); err != nil {
		t.Fatalf("synthesized SQL rejected by validator: %v\n%s", err, stmt.SQL)
	}
	// Bounding box plus the three formatting params and the depth cap.
	if len(stmt.Params) != 8 {
		t.Fatalf("param count want=8 got=%d (%v)", len(stmt.Params), stmt.Params)
	}
}

func TestRawFloatLookupStatement(t *testing.T) {
	s := testSynthesizer()
	cls := classify(t, "Get data from float 1902482")

	stmt, err := s.Synthesize(cls, nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if stmt.Form != FormRaw {
		t.Fatalf("form want=%s got=%s", FormRaw, stmt.Form)
	}
	lower := strings.ToLower(stmt.SQL)
	if !strings.Contains(lower, "limit") {
		t.Fatalf("raw statement must carry a LIMIT: %s", stmt.SQL)
	}
	if err := repos.ValidateSQL(stmt.SQL); err != nil {
		t.Fatalf("synthesized SQL rejected by validator: %v", err)
	}
	if !containsParam(stmt.Params, "1902482") {
		t.Fatalf("float id must be bound as a parameter: %v", stmt.Params)
	}
	if strings.Contains(stmt.SQL, "1902482") {
		t.Fatalf("float id leaked into SQL text: %s", stmt.SQL)
	}
}

// The synthesized statement must never contain any substring of the user's
// query; all user-supplied values travel as parameter bindings.
func TestNoQueryTextInSQL(t *testing.T) {
	s := testSynthesizer()
	queries := []string{
		"Show me temperature in the Arabian Sea",
		"Get data from float 1902482",
		"salinity in the Bay of Bengal in January 2025",
		"show dataset statistics",
	}
	for _, query := range queries {
		cls := classify(t, query)
		stmt, err := s.Synthesize(cls, nil)
		if err != nil {
			t.Fatalf("query %q: synthesize: %v", query, err)
		}
		lowerSQL := strings.ToLower(stmt.SQL)
		for _, word := range strings.Fields(strings.ToLower(query)) {
			if len(word) < 4 || isSchemaWord(word) {
				continue
			}
			if strings.Contains(lowerSQL, word) {
				t.Fatalf("query %q: word %q appears in SQL: %s", query, word, stmt.SQL)
			}
		}
	}
}

// Schema vocabulary and SQL keywords legitimately appear in both queries and
// templates.
func isSchemaWord(word string) bool {
	switch word {
	case "temperature", "salinity", "pressure", "float", "statistics", "data", "from":
		return true
	default:
		return false
	}
}

func TestHybridCandidateRefinement(t *testing.T) {
	s := testSynthesizer()
	cls := classify(t, "Find temperature profiles in the Arabian Sea from winter 2025")
	if cls.Intent != intent.Hybrid {
		t.Fatalf("intent want=%s got=%s", intent.Hybrid, cls.Intent)
	}

	ids := []int64{11, 12, 13}
	stmt, err := s.Synthesize(cls, ids)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !strings.Contains(strings.ToLower(stmt.SQL), "any(") {
		t.Fatalf("hybrid statement must carry the candidate IN-list: %s", stmt.SQL)
	}
	found := false
	for _, p := range stmt.Params {
		if got, ok := p.([]int64); ok && len(got) == 3 {
			found = true
		}
	}
	if !found {
		t.Fatalf("candidate ids must be bound as one parameter: %v", stmt.Params)
	}
	if err := repos.ValidateSQL(stmt.SQL); err != nil {
		t.Fatalf("synthesized SQL rejected by validator: %v", err)
	}
}

func TestStatsStatement(t *testing.T) {
	s := testSynthesizer()
	cls := classify(t, "show dataset statistics")

	stmt, err := s.Synthesize(cls, nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if stmt.Form != FormStats {
		t.Fatalf("form want=%s got=%s", FormStats, stmt.Form)
	}
	for _, col := range []string{"total_profiles", "unique_floats", "earliest", "latest"} {
		if !contains(stmt.Columns, col) {
			t.Fatalf("missing column %q in %v", col, stmt.Columns)
		}
	}
	if err := repos.ValidateSQL(stmt.SQL); err != nil {
		t.Fatalf("synthesized SQL rejected by validator: %v", err)
	}
}

func TestInformationalHasNoSQLRoute(t *testing.T) {
	s := testSynthesizer()
	cls := classify(t, "What are Argo floats?")
	if _, err := s.Synthesize(cls, nil); err == nil {
		t.Fatalf("informational intent must not synthesize SQL")
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func containsParam(params []interface{}, want interface{}) bool {
	for _, p := range params {
		if p == want {
			return true
		}
	}
	return false
}
