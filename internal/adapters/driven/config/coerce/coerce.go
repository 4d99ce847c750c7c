// Package coerce converts loosely typed configuration values, as decoded
// from TOML or set in code, to the Go types the ConfigStore getters return.
// Unconvertible values yield the zero value.
package coerce

import (
	"strconv"
	"time"
)

// Int accepts any integer or float. Floats are truncated.
func Int(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// Float widens integers.
func Float(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// String returns v when it is a string.
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Bool returns v when it is a bool.
func Bool(v any) bool {
	b, _ := v.(bool)
	return b
}

// Duration accepts a time.Duration, a duration string ("90s", "2m") or a
// number of seconds given as an integer or a numeric string.
func Duration(v any) time.Duration {
	switch d := v.(type) {
	case time.Duration:
		return d
	case string:
		if parsed, err := time.ParseDuration(d); err == nil {
			return parsed
		}
		if n, err := strconv.Atoi(d); err == nil {
			return time.Duration(n) * time.Second
		}
		return 0
	case int, int64:
		return time.Duration(Int(d)) * time.Second
	}
	return 0
}

// Strings keeps the string elements of an array. TOML arrays decode as []any.
func Strings(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Floats keeps the numeric elements of an array.
func Floats(v any) []float64 {
	switch items := v.(type) {
	case []float64:
		return items
	case []any:
		out := make([]float64, 0, len(items))
		for _, item := range items {
			switch item.(type) {
			case float64, int64, int:
				out = append(out, Float(item))
			}
		}
		return out
	}
	return nil
}
