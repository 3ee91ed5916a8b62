package item

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metadata carries source-specific signals. Keys differ per source, so every
// accessor treats a missing or wrongly typed value as absent.
type Metadata map[string]any

// String returns the value for key as a string, or "" when absent.
// Numbers and booleans are formatted; other types are treated as absent.
func (m Metadata) String(key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Bool returns the value for key as a boolean. Strings "true"/"yes"/"1" are
// accepted so sources that stringify everything still work.
func (m Metadata) Bool(key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true
		}
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

// Len returns the length of a list, map or string value, or 0.
func (m Metadata) Len(key string) int {
	switch v := m[key].(type) {
	case []any:
		return len(v)
	case []string:
		return len(v)
	case []map[string]any:
		return len(v)
	case map[string]any:
		return len(v)
	case string:
		return len(v)
	default:
		return 0
	}
}

// dateLayouts are tried in order when a time value arrives as a string.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Time parses the value for key as a point in time. Date-only and
// zone-less values are interpreted in loc. ok is false when the key is
// absent or unparseable.
func (m Metadata) Time(key string, loc *time.Location) (t time.Time, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch v := m[key].(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
