package repos

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floatchat/floatchat-backend/internal/geo"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/types"
)

// FloatPosition is the latest known position of one float.
type FloatPosition struct {
	FloatID          string     `json:"float_id"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	DistanceKM       float64    `json:"distance_km"`
	Datetime         *time.Time `json:"datetime"`
	CycleNumber      int        `json:"cycle_number"`
	MeasurementCount int        `json:"measurement_count"`
	GlobalProfileID  int64      `json:"global_profile_id"`
}

// TrajectoryPoint is one position in a float's profile history. Field names
// match what the map client consumes.
type TrajectoryPoint struct {
	ProfileID   int64   `json:"profileId"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	FloatID     string  `json:"floatId"`
	CycleNumber int     `json:"cycleNumber"`
	Datetime    string  `json:"datetime"`
}

// FloatDetail is one float's latest profile with its depth-windowed
// measurements.
type FloatDetail struct {
	Profile      types.ArgoProfile       `json:"profile"`
	Measurements []types.ArgoMeasurement `json:"measurements"`
}

type FloatLocationRepo interface {
	FloatsInRadius(ctx context.Context, lat, lon, radiusKM float64, limit int) ([]FloatPosition, error)
	FloatsInBBox(ctx context.Context, latMin, latMax, lonMin, lonMax float64, limit int) ([]FloatPosition, error)
	AllFloats(ctx context.Context, limit int) ([]FloatPosition, error)
	TrajectoriesInRadius(ctx context.Context, lat, lon, radiusKM float64, limit int) ([]TrajectoryPoint, error)
	FloatWithMeasurements(ctx context.Context, floatID string, minDepth, maxDepth *float64) (*FloatDetail, error)
}

type floatLocationRepo struct {
	pool        *pgxpool.Pool
	windowStart time.Time
	log         *logger.Logger
}

func NewFloatLocationRepo(pool *pgxpool.Pool, windowStart time.Time, baseLog *logger.Logger) FloatLocationRepo {
	return &floatLocationRepo{
		pool:        pool,
		windowStart: windowStart,
		log:         baseLog.With("repo", "FloatLocationRepo"),
	}
}

// latestPerFloatSQL selects one row per float: its most recent positioned
// profile inside the data window.
const latestPerFloatSQL = `
WITH latest_profiles AS (
	SELECT DISTINCT ON (float_id)
		float_id,
		latitude,
		longitude,
		datetime,
		global_profile_id,
		cycle_number,
		measurement_count
	FROM argo_profiles
	WHERE latitude IS NOT NULL
		AND longitude IS NOT NULL
		AND datetime >= $1
	ORDER BY float_id, datetime DESC
)
SELECT
	float_id,
	latitude,
	longitude,
	datetime,
	global_profile_id,
	cycle_number,
	measurement_count
FROM latest_profiles
`

func (r *floatLocationRepo) FloatsInRadius(ctx context.Context, lat, lon, radiusKM float64, limit int) ([]FloatPosition, error) {
	if limit <= 0 {
		limit = 100
	}
	latMin, latMax, lonMin, lonMax := geo.BoundingBox(lat, lon, radiusKM)

	// Over-fetch inside the bounding box, then keep only floats whose exact
	// great-circle distance is within the radius.
	sql := latestPerFloatSQL + `
WHERE latitude BETWEEN $2 AND $3
	AND longitude BETWEEN $4 AND $5
LIMIT $6
`
	rows, err := r.pool.Query(ctx, sql, r.windowStart, latMin, latMax, lonMin, lonMax, limit*2)
	if err != nil {
		return nil, fmt.Errorf("radius query: %w", err)
	}
	candidates, err := scanFloatPositions(rows)
	if err != nil {
		return nil, err
	}

	inRadius := make([]FloatPosition, 0, len(candidates))
	for _, f := range candidates {
		d := geo.HaversineKM(lat, lon, f.Latitude, f.Longitude)
		if d <= radiusKM {
			f.DistanceKM = math.Round(d*100) / 100
			inRadius = append(inRadius, f)
		}
	}
	sort.Slice(inRadius, func(i, j int) bool {
		if inRadius[i].DistanceKM == inRadius[j].DistanceKM {
			return inRadius[i].FloatID < inRadius[j].FloatID
		}
		return inRadius[i].DistanceKM < inRadius[j].DistanceKM
	})
	if len(inRadius) > limit {
		inRadius = inRadius[:limit]
	}
	return inRadius, nil
}

func (r *floatLocationRepo) FloatsInBBox(ctx context.Context, latMin, latMax, lonMin, lonMax float64, limit int) ([]FloatPosition, error) {
	if limit <= 0 {
		limit = 50
	}
	sql := latestPerFloatSQL + `
WHERE latitude BETWEEN $2 AND $3
	AND longitude BETWEEN $4 AND $5
ORDER BY datetime DESC
LIMIT $6
`
	rows, err := r.pool.Query(ctx, sql, r.windowStart, latMin, latMax, lonMin, lonMax, limit)
	if err != nil {
		return nil, fmt.Errorf("bbox query: %w", err)
	}
	return scanFloatPositions(rows)
}

func (r *floatLocationRepo) AllFloats(ctx context.Context, limit int) ([]FloatPosition, error) {
	if limit <= 0 {
		limit = 100
	}
	sql := latestPerFloatSQL + `
ORDER BY datetime DESC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, sql, r.windowStart, limit)
	if err != nil {
		return nil, fmt.Errorf("all floats query: %w", err)
	}
	return scanFloatPositions(rows)
}

func (r *floatLocationRepo) TrajectoriesInRadius(ctx context.Context, lat, lon, radiusKM float64, limit int) ([]TrajectoryPoint, error) {
	if limit <= 0 {
		limit = 50
	}
	anchors, err := r.FloatsInRadius(ctx, lat, lon, radiusKM, limit)
	if err != nil {
		return nil, err
	}
	if len(anchors) == 0 {
		return []TrajectoryPoint{}, nil
	}
	floatIDs := make([]string, 0, len(anchors))
	for _, a := range anchors {
		floatIDs = append(floatIDs, a.FloatID)
	}

	sql := `
SELECT
	global_profile_id,
	latitude,
	longitude,
	float_id,
	cycle_number,
	datetime
FROM argo_profiles
WHERE float_id = ANY($1)
	AND latitude IS NOT NULL
	AND longitude IS NOT NULL
	AND datetime >= $2
ORDER BY float_id, datetime
`
	rows, err := r.pool.Query(ctx, sql, floatIDs, r.windowStart)
	if err != nil {
		return nil, fmt.Errorf("trajectory query: %w", err)
	}
	defer rows.Close()

	out := make([]TrajectoryPoint, 0, len(floatIDs)*8)
	for rows.Next() {
		var (
			p  TrajectoryPoint
			dt *time.Time
		)
		if err := rows.Scan(&p.ProfileID, &p.Lat, &p.Lon, &p.FloatID, &p.CycleNumber, &dt); err != nil {
			return nil, fmt.Errorf("trajectory scan: %w", err)
		}
		if dt != nil {
			p.Datetime = dt.UTC().Format(time.RFC3339)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trajectory rows: %w", err)
	}
	return out, nil
}

func (r *floatLocationRepo) FloatWithMeasurements(ctx context.Context, floatID string, minDepth, maxDepth *float64) (*FloatDetail, error) {
	profileSQL := `
SELECT
	global_profile_id, source_file, source_file_fingerprint, local_profile_id,
	float_id, cycle_number, datetime, latitude, longitude,
	min_pressure, max_pressure, measurement_count,
	project_name, institution, data_mode, created_at
FROM argo_profiles
WHERE float_id = $1
	AND datetime >= $2
ORDER BY datetime DESC
LIMIT 1
`
	row := r.pool.QueryRow(ctx, profileSQL, floatID, r.windowStart)
	var p types.ArgoProfile
	err := row.Scan(
		&p.GlobalProfileID, &p.SourceFile, &p.SourceFingerprint, &p.LocalProfileID,
		&p.FloatID, &p.CycleNumber, &p.Datetime, &p.Latitude, &p.Longitude,
		&p.MinPressure, &p.MaxPressure, &p.MeasurementCount,
		&p.ProjectName, &p.Institution, &p.DataMode, &p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("float profile query: %w", err)
	}

	measurementsSQL := `
SELECT global_profile_id, level, pressure, temperature, salinity, latitude, longitude, datetime, created_at
FROM argo_measurements
WHERE global_profile_id = $1
`
	args := []interface{}{p.GlobalProfileID}
	if minDepth != nil && maxDepth != nil {
		measurementsSQL += ` AND pressure BETWEEN $2 AND $3`
		args = append(args, *minDepth, *maxDepth)
	}
	measurementsSQL += `
ORDER BY pressure
LIMIT 1000
`
	rows, err := r.pool.Query(ctx, measurementsSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("float measurements query: %w", err)
	}
	defer rows.Close()

	measurements := make([]types.ArgoMeasurement, 0, 64)
	for rows.Next() {
		var m types.ArgoMeasurement
		if err := rows.Scan(&m.GlobalProfileID, &m.Level, &m.Pressure, &m.Temperature, &m.Salinity,
			&m.Latitude, &m.Longitude, &m.Datetime, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("measurement scan: %w", err)
		}
		measurements = append(measurements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("measurement rows: %w", err)
	}

	return &FloatDetail{Profile: p, Measurements: measurements}, nil
}

func scanFloatPositions(rows pgx.Rows) ([]FloatPosition, error) {
	defer rows.Close()
	out := make([]FloatPosition, 0, 32)
	for rows.Next() {
		var (
			f  FloatPosition
			dt *time.Time
		)
		if err := rows.Scan(&f.FloatID, &f.Latitude, &f.Longitude, &dt, &f.GlobalProfileID, &f.CycleNumber, &f.MeasurementCount); err != nil {
			return nil, fmt.Errorf("float position scan: %w", err)
		}
		f.Datetime = dt
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("float position rows: %w", err)
	}
	return out, nil
}
