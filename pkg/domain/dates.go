package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	timestampLayout         = "2006-01-02T15:04:05Z"
	timestampLayoutFraction = "2006-01-02T15:04:05.000000Z"
)

// naive layouts carry no offset and are interpreted as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
}

// ParseDate parses an ISO-8601 date or timestamp from user input.
// Date-only values become midnight UTC, values without an offset are taken
// as UTC, and values with an offset are converted to UTC. Blank or
// unparsable input yields nil.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// FormatTimestamp renders t in UTC with a Z suffix. Sub-second precision is
// kept to microseconds and omitted when zero.
func FormatTimestamp(t time.Time) string {
	t = t.UTC().Truncate(time.Microsecond)
	if t.Nanosecond() == 0 {
		return t.Format(timestampLayout)
	}
	return t.Format(timestampLayoutFraction)
}

// Timestamp is a UTC instant rendered by FormatTimestamp in JSON.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatTimestamp(t.Time))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed := ParseDate(raw)
	if parsed == nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time = *parsed
	return nil
}
