// Package coerce converts loosely-typed external values into nullable typed
// primitives. The rule throughout: a legitimate falsy value (0, false, "")
// survives coercion; only nil and unparseable inputs yield nil.
package coerce

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ToFloat converts a loosely-typed value to a *float64.
// Returns nil for nil or unparseable input; 0 is preserved as &0.
func ToFloat(v interface{}) *float64 {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return &val
	case float32:
		f := float64(val)
		return &f
	case int:
		f := float64(val)
		return &f
	case int64:
		f := float64(val)
		return &f
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// ToInt converts a loosely-typed value to a *int. Float inputs are truncated
// toward zero, matching how external feeds encode integral counts.
func ToInt(v interface{}) *int {
	switch val := v.(type) {
	case nil:
		return nil
	case int:
		return &val
	case int64:
		i := int(val)
		return &i
	case float64:
		i := int(val)
		return &i
	case float32:
		i := int(val)
		return &i
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			f, ferr := val.Float64()
			if ferr != nil {
				return nil
			}
			i := int(f)
			return &i
		}
		i := int(n)
		return &i
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return nil
			}
			i := int(f)
			return &i
		}
		return &n
	default:
		return nil
	}
}

// ToBool converts a loosely-typed value to a *bool.
// false is preserved; nil and unrecognized values yield nil.
func ToBool(v interface{}) *bool {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return &val
	case int:
		b := val != 0
		return &b
	case int64:
		b := val != 0
		return &b
	case float64:
		b := val != 0
		return &b
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		return &b
	default:
		return nil
	}
}

// ToString converts a value to a *string. Empty strings are preserved so that
// "present but blank" remains distinguishable from "absent"; DQ rules decide
// whether blank is acceptable.
func ToString(v interface{}) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return &val
	default:
		return nil
	}
}

// ToTime converts a value to a *time.Time. Accepts time.Time, RFC 3339
// strings, and unix-second numbers.
func ToTime(v interface{}) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return &val
	case *time.Time:
		return val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil
		}
		return &t
	case float64:
		t := time.Unix(int64(val), 0).UTC()
		return &t
	case int64:
		t := time.Unix(val, 0).UTC()
		return &t
	case int:
		t := time.Unix(int64(val), 0).UTC()
		return &t
	default:
		return nil
	}
}
