package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/floatchat/floatchat-backend/internal/chat/intent"
	"github.com/floatchat/floatchat-backend/internal/config"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func classifyFor(t *testing.T, query string) intent.Classification {
	t.Helper()
	return intent.NewClassifier(config.DefaultGazetteer()).Classify(query)
}

func TestInformationalFallsBackWithoutNarrator(t *testing.T) {
	s := NewAnswerSynthesizer(nil, 4, 4, testLogger(t))
	msg := s.Informational(context.Background(), "What are Argo floats?")
	if msg == "" {
		t.Fatalf("informational answer must not be empty")
	}
	if n := countSentences(msg); n < 2 || n > 4 {
		t.Fatalf("informational answer sentence count want in [2,4] got=%d: %s", n, msg)
	}
}

func TestInformationalNarratorFaultDegrades(t *testing.T) {
	narrate := func(ctx context.Context, system, user string) (string, error) {
		return "", fmt.Errorf("provider down")
	}
	s := NewAnswerSynthesizer(narrate, 4, 4, testLogger(t))
	msg := s.Informational(context.Background(), "What are Argo floats?")
	if !strings.Contains(msg, "Argo floats") {
		t.Fatalf("fallback template expected, got: %s", msg)
	}
}

func TestSummarizeEmptyRowsSuggestsBroadening(t *testing.T) {
	s := NewAnswerSynthesizer(nil, 4, 4, testLogger(t))
	cls := classifyFor(t, "temperature in the Arabian Sea")
	msg := s.Summarize(context.Background(), cls, &Result{Columns: []string{"depth_range"}, Rows: nil})
	if !strings.Contains(msg, "No matching data") {
		t.Fatalf("empty result must be stated plainly: %s", msg)
	}
	if !strings.Contains(msg, "broadening") {
		t.Fatalf("empty result must suggest broadening the filter: %s", msg)
	}
	if !strings.Contains(msg, "Arabian Sea") {
		t.Fatalf("summary should name the region: %s", msg)
	}
}

func TestSummarizeUsesOnlyRowValues(t *testing.T) {
	s := NewAnswerSynthesizer(nil, 4, 4, testLogger(t))
	cls := classifyFor(t, "Show me temperature in the Arabian Sea")
	result := &Result{
		Columns: []string{"depth_range", "avg_temperature", "min_temperature", "max_temperature", "measurement_count"},
		Rows: []map[string]interface{}{
			{"depth_range": "0-50m", "avg_temperature": 27.1, "min_temperature": 26.2, "max_temperature": 28.4, "measurement_count": int64(120)},
			{"depth_range": "50-100m", "avg_temperature": 24.3, "min_temperature": 22.8, "max_temperature": 25.9, "measurement_count": int64(98)},
		},
	}
	msg := s.Summarize(context.Background(), cls, result)
	if !strings.Contains(msg, "22.80") || !strings.Contains(msg, "28.40") {
		t.Fatalf("summary must cite the observed temperature range: %s", msg)
	}
	if !strings.Contains(msg, "2 depth bands") {
		t.Fatalf("summary must describe the depth bins: %s", msg)
	}
}

func TestSummarizeNarratorFaultKeepsDeterministicText(t *testing.T) {
	narrate := func(ctx context.Context, system, user string) (string, error) {
		return "", fmt.Errorf("timeout")
	}
	s := NewAnswerSynthesizer(narrate, 4, 4, testLogger(t))
	cls := classifyFor(t, "Show me temperature in the Arabian Sea")
	result := &Result{
		Columns: []string{"depth_range", "avg_temperature", "min_temperature", "max_temperature", "measurement_count"},
		Rows: []map[string]interface{}{
			{"depth_range": "0-50m", "avg_temperature": 27.1, "min_temperature": 26.2, "max_temperature": 28.4, "measurement_count": int64(120)},
		},
	}
	msg := s.Summarize(context.Background(), cls, result)
	if !strings.Contains(msg, "Found 1 result rows") {
		t.Fatalf("deterministic summary expected on narrator fault: %s", msg)
	}
}

func TestClampSentences(t *testing.T) {
	text := "One. Two. Three. Four. Five."
	if got := clampSentences(text, 2); got != "One. Two." {
		t.Fatalf("clamp: want=%q got=%q", "One. Two.", got)
	}
	if got := clampSentences("No terminal punctuation", 2); got != "No terminal punctuation" {
		t.Fatalf("clamp without sentences: got=%q", got)
	}
}

func countSentences(s string) int {
	return len(sentenceSplitPattern.FindAllString(s, -1))
}
