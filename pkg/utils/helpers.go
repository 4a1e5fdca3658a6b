package utils

import (
	"encoding/json"
	"reflect"
	"time"
)

// ParseDuration safely parses a duration string like "5m",
// falling back to the given default on empty or malformed input.
func ParseDuration(d string, fallback time.Duration) time.Duration {
	if d == "" {
		return fallback
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return fallback
	}
	return duration
}

// AsNumber converts supported numeric types to float64.
// The second return value reports whether the value was numeric;
// JSON-decoded numbers arrive as float64 but rule params written in
// Go tests may carry ints.
func AsNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		if v == nil {
			return 0, false
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Float64 {
			return rv.Convert(reflect.TypeOf(float64(0))).Float(), true
		}
		return 0, false
	}
}
