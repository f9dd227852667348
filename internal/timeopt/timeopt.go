// Package timeopt turns the time dimension of a data source into the bounds
// and initial values of a time slider or date picker.
package timeopt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode is how a time dimension is queried.
type Mode string

const (
	ModeValue    Mode = "value"
	ModeRange    Mode = "range"
	ModeDisabled Mode = "disabled"
)

var (
	ErrMissing = errors.New("missing time value")
	ErrInvalid = errors.New("invalid time value")
)

// Property is the time dimension of a data source. Values are RFC 3339
// timestamps, YYYY-MM-DD dates or epoch milliseconds.
type Property struct {
	MinValue    string `json:"minValue,omitempty" doc:"Lower bound" example:"2000-01-01"`
	MaxValue    string `json:"maxValue,omitempty" doc:"Upper bound" example:"2020-12-31"`
	MinDefValue string `json:"minDefValue,omitempty" doc:"Initial lower value, defaults to minValue"`
	MaxDefValue string `json:"maxDefValue,omitempty" doc:"Initial upper value, defaults to maxValue"`
	Mode        Mode   `json:"mode,omitempty" enum:"value,range,disabled" doc:"Selection mode"`
}

// SliderOptions configures the time widget. Dates are epoch milliseconds. Values
// holds two entries in range mode, one otherwise.
type SliderOptions struct {
	MinDate int64   `json:"minDate"`
	MaxDate int64   `json:"maxDate"`
	Values  []int64 `json:"values"`
}

// GetOptions computes the widget options of p.
func GetOptions(p Property) (SliderOptions, error) {
	minDate, err := parseOptional(p.MinValue, nil)
	if err != nil {
		return SliderOptions{}, fmt.Errorf("minValue: %w", err)
	}
	maxDate, err := parseOptional(p.MaxValue, nil)
	if err != nil {
		return SliderOptions{}, fmt.Errorf("maxValue: %w", err)
	}
	minDef, err := parseOptional(p.MinDefValue, minDate)
	if err != nil {
		return SliderOptions{}, fmt.Errorf("minDefValue: %w", err)
	}
	maxDef, err := parseOptional(p.MaxDefValue, maxDate)
	if err != nil {
		return SliderOptions{}, fmt.Errorf("maxDefValue: %w", err)
	}

	switch {
	case minDef == nil:
		return SliderOptions{}, fmt.Errorf("%w: min default date", ErrMissing)
	case maxDef == nil:
		return SliderOptions{}, fmt.Errorf("%w: max default date", ErrMissing)
	case minDate == nil:
		return SliderOptions{}, fmt.Errorf("%w: min date", ErrMissing)
	case maxDate == nil:
		return SliderOptions{}, fmt.Errorf("%w: max date", ErrMissing)
	}

	out := SliderOptions{
		MinDate: minDate.UnixMilli(),
		MaxDate: maxDate.UnixMilli(),
		Values:  []int64{minDef.UnixMilli()},
	}
	if p.Mode == ModeRange {
		out.Values = append(out.Values, maxDef.UnixMilli())
	}
	return out, nil
}

// Parse reads a time value. Bare dates are UTC midnight.
func Parse(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w %q", ErrInvalid, v)
}

// UTCDate returns midnight, in t's location, of the calendar day t falls on
// in UTC.
func UTCDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, t.Location())
}

func parseOptional(v string, def *time.Time) (*time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return def, nil
	}
	t, err := Parse(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
