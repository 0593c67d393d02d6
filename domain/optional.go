package domain

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var jsonNull = []byte("null")

// dateLayouts are accepted for due dates, most specific first. Date-only
// values come from HTML date inputs and are read as UTC midnight.
var dateLayouts = [...]string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// OptionalTime is a JSON field that records whether it was present.
// Null and empty strings clear the value.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = nil
	if bytes.Equal(data, jsonNull) {
		return nil
	}
	raw, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if raw == "" {
		return nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// ParseDate parses the date formats clients send.
func ParseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ValidationError{Field: "dueDate", Message: "Invalid date " + strconv.Quote(raw)}
}

// OptionalFloat is a JSON number field that records whether it was present.
type OptionalFloat struct {
	Set   bool
	Value *float64
}

// Form clients send numbers as strings; an empty string counts as absent.
func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = nil
	if bytes.Equal(data, jsonNull) {
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("malformed string: %w", err)
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			return nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ValidationError{Field: "hours", Message: "Invalid number " + strconv.Quote(raw)}
	}
	o.Value = &f
	return nil
}
