// Package timespec turns the time resolver's loosely typed output into a schedule.Request.
package timespec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/schedule"
)

const (
	TypeRelative = "relative"
	TypeAbsolute = "absolute"
)

// Spec is the resolver's answer. Seconds is whatever the resolver emitted: a JSON number,
// a numeric string, or nothing.
type Spec struct {
	Type    string `json:"type"`
	Time    string `json:"time,omitempty"`
	Seconds any    `json:"seconds,omitempty"`
}

// Decode parses resolver output. A JSON null yields a nil spec and no error.
func Decode(data []byte) (*Spec, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var spec *Spec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode time spec: %v: %w", err, models.ErrInvalidTimeSpec)
	}
	return spec, nil
}

// Normalizer validates specs against an injected clock.
type Normalizer struct {
	clock clockwork.Clock
}

// NewNormalizer returns a normalizer reading the current time from clock. A nil clock
// means the real clock.
func NewNormalizer(clock clockwork.Clock) *Normalizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Normalizer{clock: clock}
}

// Normalize converts spec into a request and the instant it would fire if armed now.
// A nil spec is models.ErrNoTimeFound; anything malformed is models.ErrInvalidTimeSpec.
func (n *Normalizer) Normalize(spec *Spec) (schedule.Request, time.Time, error) {
	if spec == nil {
		return schedule.Request{}, time.Time{}, models.ErrNoTimeFound
	}
	now := n.clock.Now()

	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case TypeRelative:
		secs, err := Seconds(spec.Seconds)
		if err != nil {
			return schedule.Request{}, time.Time{}, err
		}
		req, err := schedule.RelativeAfter(secs)
		if err != nil {
			return schedule.Request{}, time.Time{}, err
		}
		return req, req.FireAt(now), nil
	case TypeAbsolute:
		hour, minute, err := ParseClock(spec.Time)
		if err != nil {
			return schedule.Request{}, time.Time{}, err
		}
		req, err := schedule.AbsoluteAt(hour, minute)
		if err != nil {
			return schedule.Request{}, time.Time{}, err
		}
		return req, req.FireAt(now), nil
	}
	return schedule.Request{}, time.Time{}, fmt.Errorf("type %q: %w", spec.Type, models.ErrInvalidTimeSpec)
}

// Seconds coerces a resolver "seconds" value to a non-negative whole number.
func Seconds(v any) (int64, error) {
	var f float64
	switch s := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing seconds: %w", models.ErrInvalidTimeSpec)
	case int:
		f = float64(s)
	case int64:
		f = float64(s)
	case float64:
		f = s
	case json.Number:
		return parseSeconds(s.String())
	case string:
		return parseSeconds(s)
	default:
		return 0, fmt.Errorf("seconds of type %T: %w", v, models.ErrInvalidTimeSpec)
	}
	return wholeSeconds(f)
}

func parseSeconds(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative seconds %d: %w", n, models.ErrInvalidTimeSpec)
		}
		if n > schedule.MaxDelaySeconds {
			return 0, fmt.Errorf("seconds %d too large: %w", n, models.ErrInvalidTimeSpec)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("seconds %q: %w", s, models.ErrInvalidTimeSpec)
	}
	return wholeSeconds(f)
}

func wholeSeconds(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("seconds %v is not a whole number: %w", f, models.ErrInvalidTimeSpec)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative seconds %v: %w", f, models.ErrInvalidTimeSpec)
	}
	if f > float64(schedule.MaxDelaySeconds) {
		return 0, fmt.Errorf("seconds %v too large: %w", f, models.ErrInvalidTimeSpec)
	}
	return int64(f), nil
}

var clockLayouts = []string{"3:04 PM", "3:04PM"}

// ParseClock reads a 12-hour clock string such as "06:00 AM" or " 6:30 pm ".
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, 0, fmt.Errorf("missing time: %w", models.ErrInvalidTimeSpec)
	}
	for _, layout := range clockLayouts {
		if t, perr := time.Parse(layout, s); perr == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("time %q: %w", s, models.ErrInvalidTimeSpec)
}
