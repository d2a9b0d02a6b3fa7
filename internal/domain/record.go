package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Record is the wire and storage form of an entity: a plain keyed map of
// strings, numbers and nested maps.
type Record map[string]any

// Snapshot is a full point-in-time copy of a collection, keyed by record key.
// Values are left untyped so a malformed entry can be skipped on its own.
type Snapshot map[string]any

// ChangeEvent is delivered by RecordBackend.Watch. Exactly one of Snapshot
// and Err is meaningful.
type ChangeEvent struct {
	Snapshot Snapshot
	Err      error
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	default:
		return nil, false
	}
}

func requiredString(rec map[string]any, key string) (string, error) {
	v, ok := rec[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrDeserialization, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, want string", ErrDeserialization, key, v)
	}
	return s, nil
}

// optionalString returns the string at key. Absent and mistyped values are
// both reported as not present.
func optionalString(rec map[string]any, key string) (string, bool) {
	s, ok := rec[key].(string)
	return s, ok
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func requiredNumber(rec map[string]any, key string) (float64, error) {
	v, ok := rec[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrDeserialization, key)
	}
	n, ok := asNumber(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: %q is %T, want number", ErrDeserialization, key, v)
	}
	return n, nil
}

func requiredRecord(rec map[string]any, key string) (map[string]any, error) {
	v, ok := rec[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrDeserialization, key)
	}
	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want map", ErrDeserialization, key, v)
	}
	return m, nil
}

// Timestamps travel as epoch seconds. They are held at millisecond precision
// so the float form converts back to the same instant.

func normalizeTime(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

func timeFromEpochSeconds(s float64) time.Time {
	return time.UnixMilli(int64(math.Round(s * 1000))).UTC()
}
