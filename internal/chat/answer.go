package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/floatchat/floatchat-backend/internal/chat/intent"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
)

// NarrateFunc is the injected LLM capability used to polish summaries. It is
// optional; every answer has a deterministic template fallback.
type NarrateFunc func(ctx context.Context, system string, user string) (string, error)

// AnswerSynthesizer turns retrieval results into a short natural-language
// message. Narratives are grounded exclusively in statistics computed from
// the rows; the model is never shown anything it could contradict.
type AnswerSynthesizer struct {
	narrate          NarrateFunc
	maxInformational int
	maxData          int
	log              *logger.Logger
}

func NewAnswerSynthesizer(narrate NarrateFunc, maxInformational, maxData int, baseLog *logger.Logger) *AnswerSynthesizer {
	if maxInformational <= 0 {
		maxInformational = 4
	}
	if maxData <= 0 {
		maxData = 4
	}
	return &AnswerSynthesizer{
		narrate:          narrate,
		maxInformational: maxInformational,
		maxData:          maxData,
		log:              baseLog.With("service", "AnswerSynthesizer"),
	}
}

const informationalFallback = "Argo floats are autonomous drifting instruments that profile the ocean by " +
	"diving to depth and rising to the surface, measuring temperature, salinity, and pressure along the way. " +
	"Each surfacing produces a vertical profile that is transmitted by satellite and shared openly. " +
	"Ask about a region, a float ID, or a parameter to explore the data itself."

// Informational answers concept questions without touching data.
func (s *AnswerSynthesizer) Informational(ctx context.Context, query string) string {
	if s.narrate != nil {
		system := fmt.Sprintf(
			"You are FloatChat, an oceanographic data assistant for Argo float observations. "+
				"Answer the user's question in at most %d sentences. Do not cite specific measurement values.",
			s.maxInformational,
		)
		text, err := s.narrate(ctx, system, query)
		if err == nil && strings.TrimSpace(text) != "" {
			return clampSentences(text, s.maxInformational)
		}
		s.log.Warn("informational narration failed, using template", "error", err)
	}
	return clampSentences(informationalFallback, s.maxInformational)
}

// Summarize describes a data result. The deterministic summary is always
// computed first; the narrator may rephrase it but its output is dropped on
// any fault.
func (s *AnswerSynthesizer) Summarize(ctx context.Context, cls intent.Classification, result *Result) string {
	base := s.deterministicSummary(cls, result)
	if s.narrate == nil || len(result.Rows) == 0 {
		return base
	}
	system := fmt.Sprintf(
		"You are FloatChat, an oceanographic data assistant. Rewrite the provided result summary as a fluent "+
			"answer of at most %d sentences. Use only the numbers present in the summary; never invent values.",
		s.maxData,
	)
	text, err := s.narrate(ctx, system, "Question: "+cls.Query+"\nResult summary: "+base)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.log.Warn("summary narration failed, using deterministic summary", "error", err)
		}
		return base
	}
	return clampSentences(text, s.maxData)
}

func (s *AnswerSynthesizer) deterministicSummary(cls intent.Classification, result *Result) string {
	if len(result.Rows) == 0 {
		scope := describeScope(cls)
		if scope != "" {
			return fmt.Sprintf("No matching data was found %s. Try broadening the region, time window, or depth filter.", scope)
		}
		return "No matching data was found. Try broadening the region, time window, or depth filter."
	}

	var parts []string
	scope := describeScope(cls)
	if scope != "" {
		parts = append(parts, fmt.Sprintf("Found %d result rows %s.", len(result.Rows), scope))
	} else {
		parts = append(parts, fmt.Sprintf("Found %d result rows.", len(result.Rows)))
	}

	if n := uniqueStrings(result.Rows, "float_id"); n > 0 {
		parts = append(parts, fmt.Sprintf("The rows cover %d distinct floats.", n))
	}

	hasDepthBins := hasColumn(result.Columns, "depth_range")
	for _, param := range cls.Entities.Parameters {
		min, max, okRange := columnRange(result.Rows, "min_"+param, "max_"+param)
		if !okRange {
			min, max, okRange = columnRange(result.Rows, param, param)
		}
		if okRange {
			unit := parameterUnit(param)
			parts = append(parts, fmt.Sprintf("%s ranges from %.2f to %.2f%s.", titleCase(param), min, max, unit))
		}
	}
	if hasDepthBins {
		parts = append(parts, fmt.Sprintf("Values are aggregated into %d depth bands from the surface downward.", len(result.Rows)))
	}

	return clampSentences(strings.Join(parts, " "), s.maxData)
}

func describeScope(cls intent.Classification) string {
	var scope []string
	if len(cls.Entities.Regions) > 0 {
		scope = append(scope, "in the "+cls.Entities.Regions[0])
	}
	if tr := cls.Entities.TimeRange; tr != nil {
		scope = append(scope, fmt.Sprintf("between %s and %s", tr.Start.Format("2006-01-02"), tr.End.Format("2006-01-02")))
	}
	if len(cls.Entities.FloatIDs) > 0 {
		scope = append(scope, "for float "+strings.Join(cls.Entities.FloatIDs, ", "))
	}
	return strings.Join(scope, " ")
}

func hasColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

func uniqueStrings(rows []map[string]interface{}, column string) int {
	seen := map[string]struct{}{}
	for _, row := range rows {
		if v, ok := row[column].(string); ok && v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

func columnRange(rows []map[string]interface{}, minCol, maxCol string) (float64, float64, bool) {
	var (
		min, max float64
		found    bool
	)
	for _, row := range rows {
		lo, okLo := asFloat(row[minCol])
		hi, okHi := asFloat(row[maxCol])
		if !okLo || !okHi {
			continue
		}
		if !found {
			min, max, found = lo, hi, true
			continue
		}
		if lo < min {
			min = lo
		}
		if hi > max {
			max = hi
		}
	}
	return min, max, found
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func parameterUnit(param string) string {
	switch param {
	case "temperature":
		return "°C"
	case "salinity":
		return " PSU"
	case "pressure":
		return " dbar"
	default:
		return ""
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var sentenceSplitPattern = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)

// clampSentences truncates text to at most n sentences.
func clampSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	matches := sentenceSplitPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 || len(matches) <= n {
		return text
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strings.TrimSpace(matches[i][1]))
	}
	return b.String()
}
