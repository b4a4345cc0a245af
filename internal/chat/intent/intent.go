package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/floatchat/floatchat-backend/internal/config"
)

// Intent is the closed set of query routes.
type Intent string

const (
	Informational    Intent = "informational"
	FloatLookup      Intent = "float_lookup"
	Spatial          Intent = "spatial"
	Temporal         Intent = "temporal"
	ParameterProfile Intent = "parameter_profile"
	Semantic         Intent = "semantic"
	Hybrid           Intent = "hybrid"
	Statistics       Intent = "statistics"
)

// StoreSelection names which relational store a query should read.
type StoreSelection string

const (
	StoreDev  StoreSelection = "dev"
	StoreLive StoreSelection = "live"
)

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DepthWindow bounds measurements by pressure in decibars.
type DepthWindow struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Entities struct {
	FloatIDs     []string     `json:"float_ids,omitempty"`
	Regions      []string     `json:"regions,omitempty"`
	Parameters   []string     `json:"parameters,omitempty"`
	Institutions []string     `json:"institutions,omitempty"`
	DepthTerms   []string     `json:"depth_terms,omitempty"`
	Seasons      []string     `json:"seasons,omitempty"`
	Years        []int        `json:"years,omitempty"`
	TimeRange    *TimeRange   `json:"time_range,omitempty"`
	DepthWindow  *DepthWindow `json:"depth_window,omitempty"`
	Latest       bool         `json:"latest,omitempty"`
}

// Classification is the routing decision for one query. Query carries the raw
// input back unchanged for downstream logging.
type Classification struct {
	Query      string         `json:"query"`
	Normalized string         `json:"normalized"`
	Intent     Intent         `json:"intent"`
	Entities   Entities       `json:"entities"`
	Store      StoreSelection `json:"store"`
}

// Classifier is a pure function from query string to intent + entities.
// Given the same gazetteer it always produces the same classification.
type Classifier struct {
	gazetteer map[string]config.BBox
	// region keys sorted longest-first so "southern indian ocean" wins over
	// the bare "indian ocean" substring.
	regionKeys []string
}

func NewClassifier(gazetteer map[string]config.BBox) *Classifier {
	keys := make([]string, 0, len(gazetteer))
	for name := range gazetteer {
		keys = append(keys, name)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return &Classifier{gazetteer: gazetteer, regionKeys: keys}
}

func (c *Classifier) Gazetteer() map[string]config.BBox { return c.gazetteer }

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	floatIDPattern    = regexp.MustCompile(`\bfloat\s+(\d{5,8})\b`)
	bareFloatPattern  = regexp.MustCompile(`\b(\d{7})\b`)
	yearPattern       = regexp.MustCompile(`\b(20\d{2})\b`)
	depthAtPattern    = regexp.MustCompile(`\b(?:at|near)\s+(\d+)\s*(?:m\b|meter|metre)`)
	depthRangePattern = regexp.MustCompile(`\b(?:between|from)\s+(\d+)\s*(?:m\b|meters?|metres?)?\s+(?:and|to)\s+(\d+)\s*(?:m\b|meters?|metres?)\b`)
)

var informationalPhrases = []string{
	"what is argo", "what are argo floats", "what is an argo",
	"tell me about argo", "explain argo", "describe argo",
	"information about argo", "can you explain argo",
	"how does argo work", "how do argo floats work",
	"what data do you have", "what can you do", "what are your capabilities",
	"what is a thermocline", "what is salinity", "what is an oceanographic profile",
}

var statisticsWords = []string{"statistics", "summary", "overview", "dataset info", "data summary", "basic info"}

var semanticWords = []string{
	"similar", "pattern", "patterns", "trend", "trends", "anomaly", "anomalies",
	"compare", "comparison", "analyze", "analysis", "deep-water", "deep water",
	"water mass", "interesting", "unusual",
}

var latestWords = []string{"latest", "recent", "current", "newest", "right now"}

var parameterKeywords = map[string][]string{
	"temperature": {"temperature", "temp", "thermal", "heat"},
	"salinity":    {"salinity", "salt", "saline", "psu"},
	"pressure":    {"pressure"},
}

var institutionKeywords = map[string][]string{
	"INCOIS":  {"incois", "indian national centre"},
	"CSIRO":   {"csiro", "commonwealth scientific"},
	"IFREMER": {"ifremer", "french research", "french institutions"},
}

var depthTermKeywords = map[string][]string{
	"surface":      {"surface", "top layer"},
	"deep":         {"deep", "bottom", "abyssal"},
	"intermediate": {"intermediate", "mid-depth"},
}

var seasonMonths = map[string][]string{
	"winter": {"december", "january", "february"},
	"spring": {"march", "april", "may"},
	"summer": {"june", "july", "august"},
	"autumn": {"autumn", "fall", "september", "october", "november"},
}

// monthNames is ordered so that a query naming several months always
// resolves to the earliest one.
var monthNames = []struct {
	name  string
	month time.Month
}{
	{"january", time.January}, {"february", time.February}, {"march", time.March},
	{"april", time.April}, {"may", time.May}, {"june", time.June},
	{"july", time.July}, {"august", time.August}, {"september", time.September},
	{"october", time.October}, {"november", time.November}, {"december", time.December},
}

var dataActionVerbs = []string{"show", "get", "find", "list", "display", "retrieve", "fetch", "give me"}

// Normalize collapses a query to the form used for cache fingerprints.
func Normalize(query string) string {
	return whitespacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(query)), " ")
}

// Classify routes one natural-language query. It is deterministic and never
// errors; an unrecognizable query becomes an informational classification.
func (c *Classifier) Classify(query string) Classification {
	normalized := Normalize(query)
	cls := Classification{
		Query:      query,
		Normalized: normalized,
		Entities:   c.extractEntities(query, normalized),
	}

	cls.Store = StoreDev
	if cls.Entities.Latest {
		cls.Store = StoreLive
	}

	cls.Intent = c.classify(normalized, cls.Entities)
	return cls
}

func (c *Classifier) classify(normalized string, e Entities) Intent {
	if containsAny(normalized, informationalPhrases) {
		return Informational
	}
	if containsAny(normalized, statisticsWords) {
		return Statistics
	}
	if len(e.FloatIDs) > 0 {
		return FloatLookup
	}

	hasRegion := len(e.Regions) > 0
	hasTime := e.TimeRange != nil || len(e.Seasons) > 0 || len(e.Years) > 0 || e.Latest
	isSemantic := containsAny(normalized, semanticWords) || len(e.Institutions) > 0

	switch {
	case isSemantic && (hasRegion || hasTime):
		return Hybrid
	case hasRegion && hasTime:
		return Hybrid
	case isSemantic:
		return Semantic
	case hasRegion:
		return Spatial
	case hasTime:
		return Temporal
	case len(e.Parameters) > 0 || e.DepthWindow != nil || len(e.DepthTerms) > 0:
		return ParameterProfile
	case containsAny(normalized, dataActionVerbs):
		// A data request with nothing structured to latch onto; free-text
		// similarity is the only retrieval that can serve it.
		return Semantic
	default:
		return Informational
	}
}

func (c *Classifier) extractEntities(raw, normalized string) Entities {
	var e Entities

	seenIDs := map[string]bool{}
	for _, m := range floatIDPattern.FindAllStringSubmatch(normalized, -1) {
		if !seenIDs[m[1]] {
			seenIDs[m[1]] = true
			e.FloatIDs = append(e.FloatIDs, m[1])
		}
	}
	for _, m := range bareFloatPattern.FindAllStringSubmatch(normalized, -1) {
		if !seenIDs[m[1]] {
			seenIDs[m[1]] = true
			e.FloatIDs = append(e.FloatIDs, m[1])
		}
	}
	sort.Strings(e.FloatIDs)

	consumed := normalized
	for _, name := range c.regionKeys {
		key := strings.ToLower(name)
		if strings.Contains(consumed, key) {
			e.Regions = append(e.Regions, name)
			consumed = strings.ReplaceAll(consumed, key, " ")
		}
	}

	for _, param := range []string{"temperature", "salinity", "pressure"} {
		if containsAnyWord(normalized, parameterKeywords[param]) {
			e.Parameters = append(e.Parameters, param)
		}
	}
	for inst, keywords := range institutionKeywords {
		if containsAny(normalized, keywords) {
			e.Institutions = append(e.Institutions, inst)
		}
	}
	sort.Strings(e.Institutions)
	for term, keywords := range depthTermKeywords {
		if containsAnyWord(normalized, keywords) {
			e.DepthTerms = append(e.DepthTerms, term)
		}
	}
	sort.Strings(e.DepthTerms)

	for _, season := range []string{"winter", "spring", "summer", "autumn"} {
		if containsAnyWord(normalized, append([]string{season}, seasonMonths[season]...)) {
			e.Seasons = append(e.Seasons, season)
		}
	}

	seenYears := map[int]bool{}
	for _, m := range yearPattern.FindAllStringSubmatch(normalized, -1) {
		y, _ := strconv.Atoi(m[1])
		if !seenYears[y] {
			seenYears[y] = true
			e.Years = append(e.Years, y)
		}
	}
	sort.Ints(e.Years)

	e.Latest = containsAny(normalized, latestWords)
	e.TimeRange = deriveTimeRange(normalized, e.Years)
	e.DepthWindow = deriveDepthWindow(normalized)

	return e
}

// deriveTimeRange turns year/month/season mentions into one half-open
// interval. Winter spans December of the prior year through February.
func deriveTimeRange(normalized string, years []int) *TimeRange {
	if len(years) == 0 {
		return nil
	}
	year := years[0]

	for _, entry := range monthNames {
		if containsWord(normalized, entry.name) {
			start := time.Date(year, entry.month, 1, 0, 0, 0, 0, time.UTC)
			return &TimeRange{Start: start, End: start.AddDate(0, 1, 0)}
		}
	}
	if containsWord(normalized, "winter") {
		start := time.Date(year-1, time.December, 1, 0, 0, 0, 0, time.UTC)
		return &TimeRange{Start: start, End: start.AddDate(0, 3, 0)}
	}
	if containsWord(normalized, "spring") {
		start := time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC)
		return &TimeRange{Start: start, End: start.AddDate(0, 3, 0)}
	}
	if containsWord(normalized, "summer") {
		start := time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC)
		return &TimeRange{Start: start, End: start.AddDate(0, 3, 0)}
	}
	if containsWord(normalized, "autumn") || containsWord(normalized, "fall") {
		start := time.Date(year, time.September, 1, 0, 0, 0, 0, time.UTC)
		return &TimeRange{Start: start, End: start.AddDate(0, 3, 0)}
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return &TimeRange{Start: start, End: start.AddDate(1, 0, 0)}
}

func deriveDepthWindow(normalized string) *DepthWindow {
	if m := depthRangePattern.FindStringSubmatch(normalized); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		if lo > hi {
			lo, hi = hi, lo
		}
		return &DepthWindow{Min: lo, Max: hi}
	}
	if m := depthAtPattern.FindStringSubmatch(normalized); m != nil {
		depth, _ := strconv.ParseFloat(m[1], 64)
		lo := depth - 25
		if lo < 0 {
			lo = 0
		}
		return &DepthWindow{Min: lo, Max: depth + 25}
	}
	return nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`).MatchString(s)
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if containsWord(s, w) {
			return true
		}
	}
	return false
}
