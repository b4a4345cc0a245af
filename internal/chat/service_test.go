package chat

import (
	"context"
	"testing"

	"github.com/floatchat/floatchat-backend/internal/chat/intent"
	"github.com/floatchat/floatchat-backend/internal/config"
	"github.com/floatchat/floatchat-backend/internal/repos"
)

func testService(t *testing.T, queries repos.QueryExecutor) *Service {
	t.Helper()
	classifier := intent.NewClassifier(config.DefaultGazetteer())
	executor := testExecutor(t, queries, &fakeProfileRepo{}, nil, nil, nil)
	answers := NewAnswerSynthesizer(nil, 4, 4, testLogger(t))
	return NewService(classifier, executor, answers, testLogger(t))
}

func TestAnswerInformational(t *testing.T) {
	s := testService(t, &fakeQueryExecutor{})
	resp, err := s.Answer(context.Background(), "What are Argo floats?")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("status want=success got=%s", resp.Status)
	}
	if resp.HasData {
		t.Fatalf("informational answer must not carry data")
	}
	if resp.TableData != nil {
		t.Fatalf("informational answer must omit table_data")
	}
	if n := countSentences(resp.Message); n < 2 || n > 4 {
		t.Fatalf("message sentence count want in [2,4] got=%d: %s", n, resp.Message)
	}
}

func TestAnswerAggregatedSpatial(t *testing.T) {
	queries := &fakeQueryExecutor{rows: &repos.QueryRows{
		Columns: []string{"depth_range", "avg_temperature", "min_temperature", "max_temperature", "measurement_count"},
		Rows: []map[string]interface{}{
			{"depth_range": "0-50m", "avg_temperature": 27.5, "min_temperature": 26.1, "max_temperature": 28.9, "measurement_count": int64(42)},
			{"depth_range": "50-100m", "avg_temperature": 24.0, "min_temperature": 23.0, "max_temperature": 25.5, "measurement_count": int64(38)},
			{"depth_range": "100-150m", "avg_temperature": 20.2, "min_temperature": 19.0, "max_temperature": 21.7, "measurement_count": int64(31)},
		},
	}}
	s := testService(t, queries)

	resp, err := s.Answer(context.Background(), "Show me temperature in the Arabian Sea")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !resp.HasData {
		t.Fatalf("aggregated spatial answer must carry data")
	}
	if resp.TableData == nil {
		t.Fatalf("table_data missing")
	}
	// Total rows is the number of depth bins, not a row cap.
	if resp.TableData.TotalRows != 3 {
		t.Fatalf("total_rows want=3 got=%d", resp.TableData.TotalRows)
	}
	for _, col := range []string{"depth_range", "avg_temperature", "min_temperature", "max_temperature", "measurement_count"} {
		found := false
		for _, c := range resp.TableData.Columns {
			if c == col {
				found = true
			}
		}
		if !found {
			t.Fatalf("column %q missing from table_data: %v", col, resp.TableData.Columns)
		}
	}
	if resp.ShowMap {
		t.Fatalf("aggregated rows carry no coordinates; map must stay hidden")
	}
}

func TestAnswerRowsWithCoordinatesShowMap(t *testing.T) {
	queries := &fakeQueryExecutor{rows: &repos.QueryRows{
		Columns: []string{"global_profile_id", "float_id", "cycle_number", "latitude", "longitude", "datetime", "measurement_count"},
		Rows: []map[string]interface{}{
			{"global_profile_id": int64(3), "float_id": "2902746", "cycle_number": int64(2), "latitude": 12.5, "longitude": 88.0, "datetime": "2025-01-05T00:00:00Z", "measurement_count": int64(64)},
		},
	}}
	s := testService(t, queries)

	resp, err := s.Answer(context.Background(), "profiles in the Bay of Bengal")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !resp.ShowMap || resp.MapData == nil {
		t.Fatalf("positioned rows must produce map data")
	}
	if len(resp.MapData.Points) != 1 {
		t.Fatalf("map points want=1 got=%d", len(resp.MapData.Points))
	}
	point := resp.MapData.Points[0]
	if point["lat"] != 12.5 || point["lng"] != 88.0 {
		t.Fatalf("point coordinates wrong: %+v", point)
	}
	if resp.MapData.Region != "Bay of Bengal" {
		t.Fatalf("map region want=%q got=%q", "Bay of Bengal", resp.MapData.Region)
	}
}

func TestAnswerEmptyResult(t *testing.T) {
	queries := &fakeQueryExecutor{rows: &repos.QueryRows{
		Columns: []string{"depth_range"},
		Rows:    []map[string]interface{}{},
	}}
	s := testService(t, queries)

	resp, err := s.Answer(context.Background(), "salinity in the Arabian Sea")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if resp.HasData {
		t.Fatalf("empty result must report has_data=false")
	}
	if resp.TableData != nil {
		t.Fatalf("empty result must omit table_data")
	}
}
