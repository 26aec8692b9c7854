package frame

import (
	"strconv"
	"strings"
	"time"
)

// AsFloat converts Go numeric values, booleans, numeric strings and
// timestamps (as epoch seconds) to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case time.Time:
		return float64(x.Unix()), true
	}
	return 0, false
}

// IsIntegerLike reports whether v is a Go integer value or a string holding
// only a decimal integer.
func IsIntegerLike(v any) bool {
	switch x := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case string:
		_, err := strconv.Atoi(strings.TrimSpace(x))
		return err == nil
	}
	return false
}
