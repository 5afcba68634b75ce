package models

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// WireInt is an int64 that also decodes from a decimal with a zero fraction
// (1500.0) or a numeric string, as Python backends emit for money fields.
type WireInt int64

func (n *WireInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = WireInt(v)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v >= math.MaxInt64 || v < math.MinInt64 {
		return fmt.Errorf("number out of range: %s", s)
	}
	if v != math.Trunc(v) {
		return fmt.Errorf("fractional amount not supported: %s", s)
	}
	*n = WireInt(v)
	return nil
}

// WireTime is a time.Time that also decodes the zone-less ISO form some
// servers emit. Zone-less timestamps are read as UTC.
type WireTime time.Time

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *WireTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range wireTimeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = WireTime(v.UTC())
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t WireTime) Time() time.Time { return time.Time(t) }

// wireTimePtr converts an optional timestamp.
func wireTimePtr(t *WireTime) *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time()
	return &v
}
