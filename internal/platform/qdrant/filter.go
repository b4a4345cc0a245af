package qdrant

import "fmt"

// Filters arrive as a flat map of metadata field -> condition. A condition is
// either a scalar (equality match) or a range map with "gte"/"lte"/"gt"/"lt"
// keys. Anything else is rejected as unsupported rather than silently
// widened.

type translatedFilter struct {
	Must []interface{}
}

func (f *translatedFilter) asMap() map[string]interface{} {
	if len(f.Must) == 0 {
		return nil
	}
	return map[string]interface{}{"must": f.Must}
}

func qdrantMatchCondition(key string, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"key":   key,
		"match": map[string]interface{}{"value": value},
	}
}

func qdrantRangeCondition(key string, bounds map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"key":   key,
		"range": bounds,
	}
}

func translateFilterMap(filter map[string]interface{}) (*translatedFilter, error) {
	out := &translatedFilter{}
	for key, raw := range filter {
		if key == "" {
			return nil, opErr("filter", OperationErrorUnsupportedFilter, "empty filter key", nil)
		}
		switch cond := raw.(type) {
		case nil:
			continue
		case string, bool, int, int32, int64, float32, float64:
			out.Must = append(out.Must, qdrantMatchCondition(key, cond))
		case map[string]interface{}:
			bounds := map[string]interface{}{}
			for op, v := range cond {
				switch op {
				case "gte", "lte", "gt", "lt":
					bounds[op] = v
				default:
					return nil, opErr(
						"filter",
						OperationErrorUnsupportedFilter,
						fmt.Sprintf("unsupported range operator %q for field %q", op, key),
						nil,
					)
				}
			}
			if len(bounds) == 0 {
				continue
			}
			out.Must = append(out.Must, qdrantRangeCondition(key, bounds))
		default:
			return nil, opErr(
				"filter",
				OperationErrorUnsupportedFilter,
				fmt.Sprintf("unsupported condition type %T for field %q", raw, key),
				nil,
			)
		}
	}
	return out, nil
}

func mergeTranslatedFilters(base, extra *translatedFilter) {
	if extra == nil {
		return
	}
	base.Must = append(base.Must, extra.Must...)
}
