// Package schedule arms deferred callbacks: relative delays and wall-clock alarms driven by a
// single coordinator goroutine over a min-heap of timers.
package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/hyperjump/studybuddy/internal/models"
)

// Kind distinguishes relative delays from wall-clock alarms.
type Kind string

const (
	KindRelative Kind = "relative"
	KindAbsolute Kind = "absolute"
)

// Request is a normalized instruction to fire once, either after Delay or at the next
// occurrence of Hour:Minute on the local wall clock.
type Request struct {
	Kind   Kind          `json:"kind"`
	Delay  time.Duration `json:"delay,omitempty"`
	Hour   int           `json:"hour,omitempty"`
	Minute int           `json:"minute,omitempty"`
}

// MaxDelaySeconds is the longest relative delay a time.Duration can hold.
const MaxDelaySeconds = math.MaxInt64 / int64(time.Second)

// RelativeAfter returns a request that fires seconds after it is armed.
func RelativeAfter(seconds int64) (Request, error) {
	if seconds > MaxDelaySeconds {
		return Request{}, fmt.Errorf("delay of %d seconds exceeds %d: %w", seconds, MaxDelaySeconds, models.ErrInvalidTimeSpec)
	}
	r := Request{Kind: KindRelative, Delay: time.Duration(seconds) * time.Second}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// AbsoluteAt returns a request that fires at the next hour:minute.
func AbsoluteAt(hour, minute int) (Request, error) {
	r := Request{Kind: KindAbsolute, Hour: hour, Minute: minute}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Validate reports malformed requests as models.ErrInvalidTimeSpec.
func (r Request) Validate() error {
	switch r.Kind {
	case KindRelative:
		if r.Delay < 0 {
			return fmt.Errorf("negative delay %s: %w", r.Delay, models.ErrInvalidTimeSpec)
		}
	case KindAbsolute:
		if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
			return fmt.Errorf("clock time %02d:%02d out of range: %w", r.Hour, r.Minute, models.ErrInvalidTimeSpec)
		}
	default:
		return fmt.Errorf("kind %q: %w", r.Kind, models.ErrInvalidTimeSpec)
	}
	return nil
}

// FireAt returns the instant the request fires if armed at now.
func (r Request) FireAt(now time.Time) time.Time {
	if r.Kind == KindAbsolute {
		return NextWallClock(now, r.Hour, r.Minute)
	}
	return now.Add(r.Delay)
}

// String renders the request for replies and logs, e.g. "in 1500s" or "at 06:00 AM".
func (r Request) String() string {
	if r.Kind == KindAbsolute {
		return "at " + time.Date(2000, 1, 1, r.Hour, r.Minute, 0, 0, time.UTC).Format("03:04 PM")
	}
	return fmt.Sprintf("in %ds", int64(r.Delay/time.Second))
}

// NextWallClock returns hour:minute:00 on now's date in now's location, or on the following
// date when that instant is not after now. The day is added on the calendar, so across a DST
// change the result keeps the requested wall-clock time.
func NextWallClock(now time.Time, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return candidate
}
