// Package notify delivers timer events to whoever is listening: logs, a webhook, or an
// in-memory feed polled by front ends.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/pkg/utils"
)

// EventKind names what happened to a timer.
type EventKind string

const (
	EventTimerStarted EventKind = "timer_started"
	EventTimerFired   EventKind = "timer_fired"
	EventAlarmFired   EventKind = "alarm_fired"
)

// Event is one notification.
type Event struct {
	Kind    EventKind `json:"kind"`
	TimerID string    `json:"timer_id,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier is a notification sink.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: utils.OrNop(logger)}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.logger.Info("notification",
		zap.String("kind", string(ev.Kind)),
		zap.String("timer_id", ev.TimerID),
		zap.String("message", ev.Message),
		zap.Time("at", ev.At))
	return nil
}

// Multi fans an event out to every sink. A failing sink does not stop the others; their
// errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
