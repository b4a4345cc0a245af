package repos

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floatchat/floatchat-backend/internal/platform/logger"
)

// QueryRows is the canonical result of one read-only query: a fixed column
// order and one map per row. Values are normalized so a cached payload is
// byte-identical to a freshly computed one.
type QueryRows struct {
	Columns []string                 `json:"columns"`
	Rows    []map[string]interface{} `json:"rows"`
}

// ValidationError is returned to the caller unchanged; it is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "sql validation: " + e.Reason }

type QueryExecutor interface {
	// Execute runs a single validated SELECT with a wall-clock timeout and a
	// hard row cap.
	Execute(ctx context.Context, sql string, params []interface{}) (*QueryRows, error)
}

type queryExecutor struct {
	pool    *pgxpool.Pool
	rowCap  int
	timeout time.Duration
	log     *logger.Logger
}

func NewQueryExecutor(pool *pgxpool.Pool, rowCap int, timeout time.Duration, baseLog *logger.Logger) QueryExecutor {
	if rowCap <= 0 {
		rowCap = 5000
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &queryExecutor{
		pool:    pool,
		rowCap:  rowCap,
		timeout: timeout,
		log:     baseLog.With("repo", "QueryExecutor"),
	}
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// allowedWords is the closed vocabulary a synthesized statement may use:
// SQL keywords, the functions the templates emit, the whitelisted tables and
// columns, and the aliases the templates assign.
var allowedWords = map[string]bool{
	// keywords
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"not": true, "null": true, "is": true, "in": true, "as": true,
	"group": true, "order": true, "by": true, "asc": true, "desc": true,
	"limit": true, "join": true, "inner": true, "left": true, "on": true,
	"between": true, "distinct": true, "having": true, "with": true,
	"like": true, "ilike": true,
	"any": true, "case": true, "when": true, "then": true, "else": true,
	"end": true, "cast": true, "int": true, "bigint": true, "text": true,
	"true": true, "false": true, "interval": true,
	// functions
	"avg": true, "min": true, "max": true, "count": true, "sum": true,
	"floor": true, "round": true, "coalesce": true, "concat": true,
	// tables
	"argo_profiles": true, "argo_measurements": true, "automation_log": true,
	// table aliases used by the templates
	"p": true, "m": true,
	// columns
	"global_profile_id": true, "source_file": true, "source_file_fingerprint": true,
	"local_profile_id": true, "float_id": true, "cycle_number": true,
	"datetime": true, "latitude": true, "longitude": true,
	"min_pressure": true, "max_pressure": true, "measurement_count": true,
	"project_name": true, "institution": true, "data_mode": true,
	"created_at": true, "level": true, "pressure": true, "temperature": true,
	"salinity": true, "run_timestamp": true, "status": true,
	// result aliases
	"depth_bin": true, "depth_range": true,
	"avg_temperature": true, "min_temperature": true, "max_temperature": true,
	"avg_salinity": true, "min_salinity": true, "max_salinity": true,
	"avg_pressure": true, "min_pressure_v": true, "max_pressure_v": true,
	"total_profiles": true, "total_measurements": true, "unique_floats": true,
	"earliest": true, "latest": true, "min_lat": true, "max_lat": true,
	"min_lon": true, "max_lon": true, "score": true,
}

var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "truncate", "alter", "create",
	"grant", "revoke", "copy", "vacuum", "execute", "call", "do",
}

// ValidateSQL enforces the read-only contract: exactly one SELECT statement,
// no quoted literals (string values must arrive as parameter bindings;
// numeric literals are not rejected), and no identifiers outside the
// whitelist.
func ValidateSQL(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &ValidationError{Reason: "empty statement"}
	}
	lower := strings.ToLower(trimmed)

	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return &ValidationError{Reason: "only SELECT statements are allowed"}
	}
	if strings.Contains(trimmed, ";") {
		return &ValidationError{Reason: "multiple statements are not allowed"}
	}
	if strings.Contains(trimmed, "--") || strings.Contains(trimmed, "/*") {
		return &ValidationError{Reason: "comments are not allowed"}
	}
	if strings.Contains(trimmed, "'") || strings.Contains(trimmed, `"`) {
		return &ValidationError{Reason: "literals are not allowed; use parameter bindings"}
	}
	for _, kw := range forbiddenKeywords {
		if regexp.MustCompile(`\b` + kw + `\b`).MatchString(lower) {
			return &ValidationError{Reason: "forbidden keyword: " + kw}
		}
	}
	for _, word := range identifierPattern.FindAllString(lower, -1) {
		if !allowedWords[word] {
			return &ValidationError{Reason: "identifier not in whitelist: " + word}
		}
	}
	return nil
}

func (e *queryExecutor) Execute(ctx context.Context, sql string, params []interface{}) (*QueryRows, error) {
	if err := ValidateSQL(sql); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	result := &QueryRows{Columns: columns, Rows: make([]map[string]interface{}, 0, 64)}
	for rows.Next() {
		if len(result.Rows) >= e.rowCap {
			return nil, &ValidationError{Reason: fmt.Sprintf("result exceeds row cap of %d", e.rowCap)}
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("row values: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = canonicalValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return result, nil
}

// canonicalValue maps driver types onto the small set of JSON-stable types
// the cache and the API payload share.
func canonicalValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []byte:
		return string(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
