package types

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FlexTime is a timestamp field that tolerates the provider's loosely-typed
// payloads: RFC 3339 strings, epoch seconds, epoch milliseconds, null, or a
// missing field. Unmarshalling is total -- an unparseable value leaves the
// field unset rather than failing the whole payload.
type FlexTime struct {
	Time  time.Time
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler. It never returns an error;
// values it cannot interpret result in Valid=false.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	t.Valid = false

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			t.Time = parsed.UTC()
			t.Valid = true
		}
		return nil
	}

	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		// Heuristic: values past the year 33658 in seconds are milliseconds.
		if f > 1e12 {
			f = f / 1000
		}
		sec := int64(f)
		nsec := int64((f - float64(sec)) * float64(time.Second))
		t.Time = time.Unix(sec, nsec).UTC()
		t.Valid = true
	}
	return nil
}

// MarshalJSON emits the timestamp as RFC 3339 UTC, or null when unset.
func (t FlexTime) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339))
}

// Ptr returns the timestamp as a *time.Time in UTC, or nil when unset.
func (t FlexTime) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}
