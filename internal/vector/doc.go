package vector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/floatchat/floatchat-backend/internal/types"
)

// Region places a position into a named ocean region. The Indian Ocean
// partition matches the region gazetteer used by the query side.
func Region(lat, lon *float64) string {
	if lat == nil || lon == nil {
		return "unknown region"
	}
	la, lo := *lat, *lon
	switch {
	case lo >= 20 && lo <= 120:
		switch {
		case la >= 0 && la <= 30:
			switch {
			case lo >= 50 && lo <= 80:
				return "Arabian Sea"
			case lo >= 80 && lo <= 100:
				return "Bay of Bengal"
			default:
				return "Northern Indian Ocean"
			}
		case la >= -40 && la < 0:
			return "Southern Indian Ocean"
		case la > 30:
			return "Northern Indian Ocean"
		}
	case lo > 120 || lo < -80:
		if la > 0 {
			return "North Pacific Ocean"
		}
		return "South Pacific Ocean"
	case lo >= -80 && lo < 20:
		if la > 0 {
			return "North Atlantic Ocean"
		}
		return "South Atlantic Ocean"
	}
	return "Indian Ocean"
}

// SeasonYear derives the Northern Hemisphere season and the calendar year.
func SeasonYear(t *time.Time) (season string, year int) {
	if t == nil {
		return "", 0
	}
	switch t.UTC().Month() {
	case time.December, time.January, time.February:
		season = "winter"
	case time.March, time.April, time.May:
		season = "spring"
	case time.June, time.July, time.August:
		season = "summer"
	default:
		season = "autumn"
	}
	return season, t.UTC().Year()
}

// DepthBand categorizes a profile by the deepest pressure it reached.
// Pressure in decibars approximates depth in meters.
func DepthBand(maxPressure *float64) string {
	if maxPressure == nil || *maxPressure <= 0 {
		return ""
	}
	switch {
	case *maxPressure < 100:
		return "surface"
	case *maxPressure < 500:
		return "shallow"
	case *maxPressure < 1000:
		return "intermediate"
	default:
		return "deep"
	}
}

func depthDescription(maxPressure *float64) string {
	if maxPressure == nil {
		return ""
	}
	maxDepth := int(*maxPressure)
	switch {
	case maxDepth < 100:
		return fmt.Sprintf("down to %dm depth, focusing on surface waters", maxDepth)
	case maxDepth < 500:
		return fmt.Sprintf("down to %dm depth, capturing upper ocean structure", maxDepth)
	case maxDepth < 1000:
		return fmt.Sprintf("down to %dm depth, reaching intermediate waters", maxDepth)
	case maxDepth < 2000:
		return fmt.Sprintf("down to %dm depth, sampling deep ocean layers", maxDepth)
	default:
		return fmt.Sprintf("down to %dm depth, providing full-depth ocean profiling", maxDepth)
	}
}

// DocText builds the embedding input for one profile. It serializes only
// metadata and a coarse depth description, never raw measurements, and is
// deterministic so re-ingestion produces an identical embedding input.
func DocText(p *types.ArgoProfile) string {
	var b strings.Builder
	b.WriteString("Argo float ")
	b.WriteString(p.FloatID)

	if inst := strings.TrimSpace(p.Institution); inst != "" && inst != "unknown" {
		b.WriteString(" deployed by ")
		b.WriteString(inst)
	}
	if p.CycleNumber > 0 {
		b.WriteString(fmt.Sprintf(" (cycle %d)", p.CycleNumber))
	}
	season, year := SeasonYear(p.Datetime)
	if season != "" && year != 0 {
		b.WriteString(fmt.Sprintf(" in %s %d", season, year))
	}
	region := Region(p.Latitude, p.Longitude)
	if region != "" {
		b.WriteString(" in the ")
		b.WriteString(region)
	}
	if p.Latitude != nil && p.Longitude != nil {
		b.WriteString(fmt.Sprintf(" at coordinates %.2f°N, %.2f°E", *p.Latitude, *p.Longitude))
	}
	b.WriteString(fmt.Sprintf(". This oceanographic profile collected %d measurements", p.MeasurementCount))
	if desc := depthDescription(p.MaxPressure); desc != "" {
		b.WriteString(" ")
		b.WriteString(desc)
	}
	b.WriteString(". The deployment provides valuable oceanographic data for climate monitoring and marine research")
	if region != "" {
		b.WriteString(" in the ")
		b.WriteString(region)
		b.WriteString(" region")
	}
	b.WriteString(".")
	return b.String()
}

// Metadata builds the filterable payload stored next to the embedding.
func Metadata(p *types.ArgoProfile) map[string]interface{} {
	meta := map[string]interface{}{
		"global_profile_id": strconv.FormatInt(p.GlobalProfileID, 10),
		"float_id":          p.FloatID,
		"cycle_number":      p.CycleNumber,
		"measurement_count": p.MeasurementCount,
		"region":            Region(p.Latitude, p.Longitude),
	}
	if inst := strings.TrimSpace(p.Institution); inst != "" {
		meta["institution"] = inst
	}
	if p.Latitude != nil {
		meta["latitude"] = *p.Latitude
		meta["lat_bucket"] = bucket(*p.Latitude)
	}
	if p.Longitude != nil {
		meta["longitude"] = *p.Longitude
		meta["lon_bucket"] = bucket(*p.Longitude)
	}
	if p.Datetime != nil {
		season, year := SeasonYear(p.Datetime)
		meta["season"] = season
		meta["year"] = year
		meta["month"] = int(p.Datetime.UTC().Month())
	}
	if band := DepthBand(p.MaxPressure); band != "" {
		meta["depth_band"] = band
	}
	return meta
}

// bucket snaps a coordinate onto a 10-degree grid for coarse spatial filters.
func bucket(deg float64) int {
	return int(math.Floor(deg/10) * 10)
}
