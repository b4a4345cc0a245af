package sqlgen

import (
	"fmt"
	"strings"

	"github.com/floatchat/floatchat-backend/internal/chat/intent"
	"github.com/floatchat/floatchat-backend/internal/config"
)

// Form describes which template shape a statement came from.
type Form string

const (
	FormAggregated Form = "aggregated"
	FormRaw        Form = "raw"
	FormStats      Form = "stats"
)

// Statement is a single parameterized SELECT plus its bindings. User input is
// never interpolated into SQL; it only ever appears in Params.
type Statement struct {
	SQL     string
	Params  []interface{}
	Form    Form
	Columns []string
}

type Synthesizer struct {
	gazetteer    map[string]config.BBox
	binMeters    int
	binMaxMeters int
	rawLimit     int
}

func NewSynthesizer(cfg config.QueryConfig) *Synthesizer {
	return &Synthesizer{
		gazetteer:    cfg.RegionGazetteer,
		binMeters:    cfg.DepthBinMeters,
		binMaxMeters: cfg.DepthBinMaxMeters,
		rawLimit:     cfg.RawLimit,
	}
}

// paramList numbers bindings as they are appended.
type paramList struct {
	values []interface{}
}

func (p *paramList) add(v interface{}) string {
	p.values = append(p.values, v)
	return fmt.Sprintf("$%d", len(p.values))
}

// Synthesize translates a classification into SQL. candidateIDs, when
// non-empty, restricts the statement to the profiles a preceding vector
// search selected (the hybrid refinement path).
func (s *Synthesizer) Synthesize(cls intent.Classification, candidateIDs []int64) (*Statement, error) {
	switch cls.Intent {
	case intent.Statistics:
		return s.statsStatement(cls, candidateIDs)
	case intent.FloatLookup:
		return s.rawMeasurementStatement(cls, candidateIDs)
	case intent.Spatial, intent.Temporal, intent.ParameterProfile, intent.Hybrid:
		if len(cls.Entities.Parameters) > 0 {
			return s.aggregatedStatement(cls, candidateIDs)
		}
		return s.rawProfileStatement(cls, candidateIDs)
	default:
		return nil, fmt.Errorf("intent %q has no SQL route", cls.Intent)
	}
}

// aggregatedStatement groups measurements into fixed-width depth bands and
// reports AVG/MIN/MAX/COUNT per band. Analytical queries deliberately carry
// no LIMIT: the number of bands is bounded by the depth cap.
func (s *Synthesizer) aggregatedStatement(cls intent.Classification, candidateIDs []int64) (*Statement, error) {
	params := &paramList{}
	bin := params.add(s.binMeters)
	dash := params.add("-")
	meters := params.add("m")

	cols := []string{
		fmt.Sprintf(
			"concat(cast(floor(m.pressure / %[1]s) * %[1]s as int), %[2]s, cast(floor(m.pressure / %[1]s) * %[1]s + %[1]s as int), %[3]s) as depth_range",
			bin, dash, meters,
		),
	}
	outCols := []string{"depth_range"}
	for _, p := range cls.Entities.Parameters {
		col, err := measurementColumn(p)
		if err != nil {
			return nil, err
		}
		cols = append(cols,
			fmt.Sprintf("avg(m.%s) as avg_%s", col, col),
			fmt.Sprintf("min(m.%s) as min_%s", col, col),
			fmt.Sprintf("max(m.%s) as max_%s", col, col),
		)
		outCols = append(outCols, "avg_"+col, "min_"+col, "max_"+col)
	}
	cols = append(cols, "count(*) as measurement_count")
	outCols = append(outCols, "measurement_count")

	where := []string{
		"m.pressure is not null",
		fmt.Sprintf("m.pressure <= %s", params.add(s.binMaxMeters)),
	}
	filterClauses, err := s.profileFilters(cls, params, candidateIDs, true)
	if err != nil {
		return nil, err
	}
	where = append(where, filterClauses...)

	sql := fmt.Sprintf(`select %s
from argo_measurements m
join argo_profiles p on p.global_profile_id = m.global_profile_id
where %s
group by 1
order by min(m.pressure)`,
		strings.Join(cols, ", "),
		strings.Join(where, " and "),
	)
	return &Statement{SQL: sql, Params: params.values, Form: FormAggregated, Columns: outCols}, nil
}

// rawMeasurementStatement returns point-lookup rows with a safety LIMIT.
func (s *Synthesizer) rawMeasurementStatement(cls intent.Classification, candidateIDs []int64) (*Statement, error) {
	params := &paramList{}
	where := []string{}
	filterClauses, err := s.profileFilters(cls, params, candidateIDs, true)
	if err != nil {
		return nil, err
	}
	where = append(where, filterClauses...)
	if len(where) == 0 {
		return nil, fmt.Errorf("float lookup requires at least one filter")
	}

	sql := fmt.Sprintf(`select p.float_id, p.cycle_number, p.latitude, p.longitude, p.datetime, m.pressure, m.temperature, m.salinity
from argo_profiles p
join argo_measurements m on m.global_profile_id = p.global_profile_id
where %s
order by p.datetime desc, m.level asc
limit %s`,
		strings.Join(where, " and "),
		params.add(s.rawLimit),
	)
	cols := []string{"float_id", "cycle_number", "latitude", "longitude", "datetime", "pressure", "temperature", "salinity"}
	return &Statement{SQL: sql, Params: params.values, Form: FormRaw, Columns: cols}, nil
}

// rawProfileStatement lists matching profiles when no parameter was asked
// for, so there is nothing to aggregate.
func (s *Synthesizer) rawProfileStatement(cls intent.Classification, candidateIDs []int64) (*Statement, error) {
	params := &paramList{}
	where := []string{"p.latitude is not null", "p.longitude is not null"}
	filterClauses, err := s.profileFilters(cls, params, candidateIDs, false)
	if err != nil {
		return nil, err
	}
	where = append(where, filterClauses...)

	sql := fmt.Sprintf(`select p.global_profile_id, p.float_id, p.cycle_number, p.latitude, p.longitude, p.datetime, p.measurement_count
from argo_profiles p
where %s
order by p.datetime desc
limit %s`,
		strings.Join(where, " and "),
		params.add(s.rawLimit),
	)
	cols := []string{"global_profile_id", "float_id", "cycle_number", "latitude", "longitude", "datetime", "measurement_count"}
	return &Statement{SQL: sql, Params: params.values, Form: FormRaw, Columns: cols}, nil
}

func (s *Synthesizer) statsStatement(cls intent.Classification, candidateIDs []int64) (*Statement, error) {
	params := &paramList{}
	where := []string{"p.datetime is not null"}
	filterClauses, err := s.profileFilters(cls, params, candidateIDs, false)
	if err != nil {
		return nil, err
	}
	where = append(where, filterClauses...)

	sql := fmt.Sprintf(`select count(*) as total_profiles,
count(distinct p.float_id) as unique_floats,
min(p.datetime) as earliest,
max(p.datetime) as latest,
min(p.latitude) as min_lat,
max(p.latitude) as max_lat,
min(p.longitude) as min_lon,
max(p.longitude) as max_lon
from argo_profiles p
where %s`,
		strings.Join(where, " and "),
	)
	cols := []string{"total_profiles", "unique_floats", "earliest", "latest", "min_lat", "max_lat", "min_lon", "max_lon"}
	return &Statement{SQL: sql, Params: params.values, Form: FormStats, Columns: cols}, nil
}

// profileFilters renders the entity bag into WHERE clauses. Every value goes
// through the parameter list. Measurement-level filters only apply when the
// statement joins the measurements table.
func (s *Synthesizer) profileFilters(cls intent.Classification, params *paramList, candidateIDs []int64, hasMeasurements bool) ([]string, error) {
	var clauses []string
	e := cls.Entities

	if len(e.FloatIDs) == 1 {
		clauses = append(clauses, fmt.Sprintf("p.float_id = %s", params.add(e.FloatIDs[0])))
	} else if len(e.FloatIDs) > 1 {
		clauses = append(clauses, fmt.Sprintf("p.float_id = any(%s)", params.add(e.FloatIDs)))
	}

	if len(e.Regions) > 0 {
		bbox, ok := s.gazetteer[e.Regions[0]]
		if !ok {
			return nil, fmt.Errorf("region %q not in gazetteer", e.Regions[0])
		}
		clauses = append(clauses,
			fmt.Sprintf("p.latitude between %s and %s", params.add(bbox.LatMin), params.add(bbox.LatMax)),
			fmt.Sprintf("p.longitude between %s and %s", params.add(bbox.LonMin), params.add(bbox.LonMax)),
		)
	}

	if e.TimeRange != nil {
		clauses = append(clauses,
			fmt.Sprintf("p.datetime >= %s", params.add(e.TimeRange.Start)),
			fmt.Sprintf("p.datetime < %s", params.add(e.TimeRange.End)),
		)
	}

	if len(e.Institutions) > 0 {
		clauses = append(clauses, fmt.Sprintf("p.institution ilike %s", params.add("%"+e.Institutions[0]+"%")))
	}

	if e.DepthWindow != nil && hasMeasurements {
		clauses = append(clauses,
			fmt.Sprintf("m.pressure between %s and %s", params.add(e.DepthWindow.Min), params.add(e.DepthWindow.Max)),
		)
	}

	if len(candidateIDs) > 0 {
		clauses = append(clauses, fmt.Sprintf("p.global_profile_id = any(%s)", params.add(candidateIDs)))
	}

	return clauses, nil
}

func measurementColumn(parameter string) (string, error) {
	switch parameter {
	case "temperature", "salinity", "pressure":
		return parameter, nil
	default:
		return "", fmt.Errorf("unknown parameter %q", parameter)
	}
}
