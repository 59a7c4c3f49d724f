package normalize

import (
	"strconv"
	"strings"
	"time"

	"trash4cash/internal/gateway"
)

// text reads a string field, stringifying numbers so numeric ids survive.
func text(raw gateway.RawRecord, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// number reads a numeric field. Numeric strings are accepted because the
// backend serializes decimals as strings in some responses.
func number(raw gateway.RawRecord, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func flag(raw gateway.RawRecord, key string) (value, present bool) {
	switch v := raw[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}

func nested(raw gateway.RawRecord, key string) gateway.RawRecord {
	if m, ok := raw[key].(map[string]any); ok {
		return m
	}
	return nil
}

func timestamp(raw gateway.RawRecord, key string) time.Time {
	s, ok := raw[key].(string)
	if !ok || s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstText(raw gateway.RawRecord, keys ...string) string {
	for _, k := range keys {
		if v := text(raw, k); v != "" {
			return v
		}
	}
	return ""
}
