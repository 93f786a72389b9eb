package storage

import (
	"fmt"
	"time"
)

// NormalizeValue maps driver values onto the table value set: string, int64,
// float64, bool, time.Time or nil.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil, string, int64, float64, bool, time.Time:
		return x
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// rowValues converts a table row into driver-ready values. Only the value
// set produced by table.Convert reaches the drivers.
func rowValues(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = NormalizeValue(v)
	}
	return out
}
