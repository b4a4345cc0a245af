package netcdfparse

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/floatchat/floatchat-backend/internal/geo"
)

// Argo fill sentinels: measured values use 99999.0, JULD uses 999999.0.
// Anything at or beyond these thresholds is treated as missing.
const (
	valueFillThreshold = 99000.0
	juldFillThreshold  = 900000.0
)

// juldEpoch is the Argo reference instant: JULD counts days since it.
var juldEpoch = time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)

// Level is one decoded depth sample. Missing values are nil.
type Level struct {
	Pressure    *float64
	Temperature *float64
	Salinity    *float64
}

// ParsedProfile carries per-file-local identity only; global IDs are the
// store's business.
type ParsedProfile struct {
	LocalProfileID int
	FloatID        string
	CycleNumber    int
	Datetime       *time.Time
	Latitude       *float64
	Longitude      *float64
	MinPressure    *float64
	MaxPressure    *float64
	ProjectName    string
	Institution    string
	DataMode       string
}

// ProfileBundle pairs a profile with its ordered levels. Levels are dense:
// index i is level i.
type ProfileBundle struct {
	Profile ParsedProfile
	Levels  []Level
}

// Diagnostics records what the parser saw and skipped. Content problems
// never abort a parse.
type Diagnostics struct {
	File          string
	Profiles      int
	LevelsKept    int
	LevelsDropped int
	Problems      []string
}

func (d *Diagnostics) problem(format string, args ...interface{}) {
	d.Problems = append(d.Problems, fmt.Sprintf(format, args...))
}

// ParseFile decodes one Argo NetCDF profile file. It returns an error only
// when the file cannot be opened at all; content defects are reported through
// the diagnostics record.
func ParseFile(path string) ([]ProfileBundle, *Diagnostics, error) {
	diag := &Diagnostics{File: filepath.Base(path)}

	group, err := netcdf.Open(path)
	if err != nil {
		return nil, diag, fmt.Errorf("open netcdf file %s: %w", path, err)
	}
	defer group.Close()

	pres, okPres := readMatrix(group, "PRES")
	temp, okTemp := readMatrix(group, "TEMP")
	psal, okPsal := readMatrix(group, "PSAL")
	if !okPres {
		diag.problem("variable PRES missing or unreadable")
		return nil, diag, nil
	}
	nProf := len(pres)
	if nProf == 0 {
		diag.problem("file contains no profiles")
		return nil, diag, nil
	}
	if !okTemp {
		diag.problem("variable TEMP missing; temperatures recorded as null")
	}
	if !okPsal {
		diag.problem("variable PSAL missing; salinities recorded as null")
	}

	lat, _ := readVector(group, "LATITUDE")
	lon, _ := readVector(group, "LONGITUDE")
	juld, _ := readVector(group, "JULD")
	cycles, _ := readVector(group, "CYCLE_NUMBER")
	platforms, _ := readStrings(group, "PLATFORM_NUMBER")
	projects, _ := readStrings(group, "PROJECT_NAME")
	dataModes := readRaw(group, "DATA_MODE")
	institution := globalAttribute(group, "institution")

	bundles := make([]ProfileBundle, 0, nProf)
	for i := 0; i < nProf; i++ {
		profile := ParsedProfile{
			LocalProfileID: i,
			FloatID:        extractFloatID(platforms, i),
			CycleNumber:    extractCycle(cycles, i),
			Datetime:       extractDatetime(juld, i, diag),
			ProjectName:    extractString(projects, i, "ARGO"),
			Institution:    institution,
			DataMode:       charAt(dataModes, i),
		}
		profile.Latitude, profile.Longitude = extractPosition(lat, lon, i, diag)

		levels := extractLevels(pres, temp, psal, i, diag)
		for _, level := range levels {
			if level.Pressure == nil {
				continue
			}
			if profile.MinPressure == nil || *level.Pressure < *profile.MinPressure {
				p := *level.Pressure
				profile.MinPressure = &p
			}
			if profile.MaxPressure == nil || *level.Pressure > *profile.MaxPressure {
				p := *level.Pressure
				profile.MaxPressure = &p
			}
		}

		bundles = append(bundles, ProfileBundle{Profile: profile, Levels: levels})
	}

	diag.Profiles = len(bundles)
	return bundles, diag, nil
}

// extractLevels keeps every level with a valid pressure and re-indexes the
// kept levels densely from zero, preserving file order. Temperature and
// salinity stay nullable per level.
func extractLevels(pres, temp, psal [][]float64, profileIdx int, diag *Diagnostics) []Level {
	row := pres[profileIdx]
	levels := make([]Level, 0, len(row))
	for j := range row {
		p := sample(pres, profileIdx, j)
		if p == nil {
			diag.LevelsDropped++
			continue
		}
		levels = append(levels, Level{
			Pressure:    p,
			Temperature: sample(temp, profileIdx, j),
			Salinity:    sample(psal, profileIdx, j),
		})
		diag.LevelsKept++
	}
	return levels
}

// sample reads one cell, converting fill sentinels and NaN to nil.
func sample(matrix [][]float64, i, j int) *float64 {
	if i >= len(matrix) || j >= len(matrix[i]) {
		return nil
	}
	v := matrix[i][j]
	if v != v || v >= valueFillThreshold || v <= -valueFillThreshold {
		return nil
	}
	return &v
}

func extractPosition(lat, lon []float64, i int, diag *Diagnostics) (*float64, *float64) {
	if i >= len(lat) || i >= len(lon) {
		return nil, nil
	}
	la, lo := lat[i], lon[i]
	if la != la || lo != lo || la >= valueFillThreshold || lo >= valueFillThreshold {
		return nil, nil
	}
	if !geo.ValidCoords(la, lo) {
		diag.problem("profile %d: coordinates out of bounds (%.3f, %.3f); position dropped", i, la, lo)
		return nil, nil
	}
	return &la, &lo
}

func extractDatetime(juld []float64, i int, diag *Diagnostics) *time.Time {
	if i >= len(juld) {
		return nil
	}
	days := juld[i]
	if days != days || days >= juldFillThreshold || days < 0 {
		return nil
	}
	t := juldEpoch.Add(time.Duration(days * float64(24*time.Hour))).UTC()
	if t.Year() < 1990 || t.Year() > 2035 {
		diag.problem("profile %d: datetime %s outside plausible range; recorded as null", i, t.Format(time.RFC3339))
		return nil
	}
	return &t
}

func extractFloatID(platforms []string, i int) string {
	if i < len(platforms) {
		id := digitsOnly(platforms[i])
		if len(id) >= 4 {
			return id
		}
	}
	return "unknown"
}

func extractCycle(cycles []float64, i int) int {
	if i >= len(cycles) {
		return 0
	}
	v := cycles[i]
	if v != v || v < 0 || v >= valueFillThreshold {
		return 0
	}
	return int(v)
}

func extractString(values []string, i int, def string) string {
	if i < len(values) {
		if s := strings.TrimSpace(values[i]); s != "" {
			return s
		}
	}
	return def
}

func readMatrix(group api.Group, name string) ([][]float64, bool) {
	v, err := group.GetVariable(name)
	if err != nil || v == nil {
		return nil, false
	}
	return floatMatrix(v.Values)
}

func readVector(group api.Group, name string) ([]float64, bool) {
	v, err := group.GetVariable(name)
	if err != nil || v == nil {
		return nil, false
	}
	return floatVector(v.Values)
}

func readStrings(group api.Group, name string) ([]string, bool) {
	v, err := group.GetVariable(name)
	if err != nil || v == nil {
		return nil, false
	}
	return stringVector(v.Values)
}

func readRaw(group api.Group, name string) interface{} {
	v, err := group.GetVariable(name)
	if err != nil || v == nil {
		return nil
	}
	return v.Values
}

func globalAttribute(group api.Group, name string) string {
	attrs := group.Attributes()
	if attrs == nil {
		return "unknown"
	}
	val, has := attrs.Get(name)
	if !has || val == nil {
		return "unknown"
	}
	if s, ok := val.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return "unknown"
}
