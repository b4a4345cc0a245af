package netcdfparse

import "strings"

// The NetCDF reader surfaces variable values as interface{} with the concrete
// shape depending on the on-disk type. These helpers normalize the handful of
// shapes Argo profile files actually use.

// floatMatrix normalizes a 2-D numeric variable (N_PROF x N_LEVELS).
func floatMatrix(values interface{}) ([][]float64, bool) {
	switch v := values.(type) {
	case [][]float64:
		return v, true
	case [][]float32:
		out := make([][]float64, len(v))
		for i, row := range v {
			out[i] = make([]float64, len(row))
			for j, val := range row {
				out[i][j] = float64(val)
			}
		}
		return out, true
	case []float64:
		// Single-profile file: one row.
		return [][]float64{v}, true
	case []float32:
		row := make([]float64, len(v))
		for j, val := range v {
			row[j] = float64(val)
		}
		return [][]float64{row}, true
	default:
		return nil, false
	}
}

// floatVector normalizes a 1-D numeric variable (N_PROF).
func floatVector(values interface{}) ([]float64, bool) {
	switch v := values.(type) {
	case []float64:
		return v, true
	case []float32:
		out := make([]float64, len(v))
		for i, val := range v {
			out[i] = float64(val)
		}
		return out, true
	case []int32:
		out := make([]float64, len(v))
		for i, val := range v {
			out[i] = float64(val)
		}
		return out, true
	case []int64:
		out := make([]float64, len(v))
		for i, val := range v {
			out[i] = float64(val)
		}
		return out, true
	case float64:
		return []float64{v}, true
	case float32:
		return []float64{float64(v)}, true
	case int32:
		return []float64{float64(v)}, true
	default:
		return nil, false
	}
}

// stringVector normalizes a char-array variable (N_PROF x STRING_N), which
// the reader presents as one string per profile.
func stringVector(values interface{}) ([]string, bool) {
	switch v := values.(type) {
	case []string:
		return v, true
	case string:
		return []string{v}, true
	default:
		return nil, false
	}
}

// charAt indexes a per-profile single-character variable such as DATA_MODE,
// which may surface either as a string per profile or as one packed string.
func charAt(values interface{}, idx int) string {
	switch v := values.(type) {
	case []string:
		if idx >= 0 && idx < len(v) {
			return strings.TrimSpace(v[idx])
		}
	case string:
		if idx >= 0 && idx < len(v) {
			return strings.TrimSpace(string(v[idx]))
		}
	}
	return ""
}

// digitsOnly strips everything but ASCII digits; Argo float identifiers are
// numeric but arrive padded with blanks and NULs.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
