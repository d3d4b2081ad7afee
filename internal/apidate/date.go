// Package apidate implements the date wire format used by the Corbo backend.
//
// Dates at local midnight travel as a bare calendar date ("2024-07-01"),
// everything else as a second-precision timestamp with offset. Decoding
// additionally accepts a fractional-seconds variant emitted by some endpoints.
package apidate

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	layoutDate       = "2006-01-02"
	layoutTimestamp  = "2006-01-02T15:04:05Z07:00"
	layoutFractional = "2006-01-02T15:04:05.999999999Z0700"
)

// decodeLayouts are tried in order.
var decodeLayouts = []string{layoutDate, layoutTimestamp, layoutFractional}

// Format renders t in the backend format, using t's own location to decide
// whether it falls on midnight.
func Format(t time.Time) string {
	if h, m, s := t.Clock(); h == 0 && m == 0 && s == 0 {
		return t.Format(layoutDate)
	}
	return t.Format(layoutTimestamp)
}

// Parse decodes s, interpreting bare dates as local midnight.
func Parse(s string) (time.Time, error) {
	return ParseInLocation(s, time.Local)
}

// ParseInLocation decodes s, interpreting bare dates as midnight in loc.
// Timestamps carry their own offset and ignore loc.
func ParseInLocation(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range decodeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: no supported layout matched", s)
}

// Time wraps time.Time with the backend JSON encoding.
type Time struct {
	time.Time
}

// New wraps t.
func New(t time.Time) Time {
	return Time{Time: t}
}

// Ptr wraps t and returns a pointer, for optional fields.
func Ptr(t time.Time) *Time {
	return &Time{Time: t}
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(Format(t.Time))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
