// Package assistant routes classified sub-queries to retrieval, the scheduler or a plain
// generated answer, and assembles the combined reply.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/notify"
	"github.com/hyperjump/studybuddy/internal/retrieval"
	"github.com/hyperjump/studybuddy/internal/schedule"
	"github.com/hyperjump/studybuddy/internal/timespec"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

const (
	ReplyEmptyInput    = "I couldn't find relevant information. Can you rephrase?"
	ReplyClarification = "I can set up your study session, but I need a valid time. When should we start?"
	ReplyGenerateError = "Sorry, I couldn't come up with an answer right now. Please try again."
	ReplyScheduleError = "Sorry, I couldn't set that up right now. Please try again."

	MessageTimerFinished = "Timer finished! Take a short break!"
)

// Classifier splits a message into sub-queries, each tagged with an intent.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]models.SubQuery, error)
}

// TimeResolver extracts a time specification from a request. A nil spec means no time.
type TimeResolver interface {
	ResolveTime(ctx context.Context, text string) (*timespec.Spec, error)
}

// Generator produces a reply. Non-empty passages ask for an answer grounded in them.
type Generator interface {
	Generate(ctx context.Context, intent models.Intent, query, passages string) (string, error)
}

// Retriever returns the context blob for a query, or retrieval.NoContext.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) string
}

// Assistant is the intent router.
type Assistant struct {
	classifier Classifier
	resolver   TimeResolver
	generator  Generator
	retriever  Retriever
	scheduler  *schedule.Scheduler
	normalizer *timespec.Normalizer
	notifier   notify.Notifier
	topK       int
	logger     *zap.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) { a.logger = utils.OrNop(l) }
}

// WithTopK sets how many passages grounded answers use.
func WithTopK(k int) Option {
	return func(a *Assistant) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithNotifier sets where timer events go.
func WithNotifier(n notify.Notifier) Option {
	return func(a *Assistant) {
		if n != nil {
			a.notifier = n
		}
	}
}

// New wires the router. Time specs are normalized against the scheduler's clock.
func New(classifier Classifier, resolver TimeResolver, generator Generator, retriever Retriever,
	scheduler *schedule.Scheduler, opts ...Option) *Assistant {
	a := &Assistant{
		classifier: classifier,
		resolver:   resolver,
		generator:  generator,
		retriever:  retriever,
		scheduler:  scheduler,
		normalizer: timespec.NewNormalizer(scheduler.Clock()),
		topK:       retrieval.DefaultTopK,
		logger:     zap.NewNop(),
	}
	a.notifier = notify.NewLogNotifier(nil)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Chat classifies text and answers every sub-query in order. Replies are separated by a
// blank line.
func (a *Assistant) Chat(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ReplyEmptyInput
	}

	subs, err := a.classifier.Classify(ctx, text)
	if err != nil {
		a.logger.Warn("classification failed, answering as a general query", zap.Error(err))
		subs = nil
	}
	subs = validSubQueries(subs)
	if len(subs) == 0 {
		subs = []models.SubQuery{{Query: text, Intent: models.IntentGeneralQuery}}
	}

	replies := make([]string, 0, len(subs))
	for _, sq := range subs {
		a.logger.Debug("handling sub-query", zap.String("intent", string(sq.Intent)), zap.String("query", sq.Query))
		replies = append(replies, a.Handle(ctx, sq))
	}
	return strings.Join(replies, "\n\n")
}

func validSubQueries(subs []models.SubQuery) []models.SubQuery {
	out := subs[:0:0]
	for _, sq := range subs {
		if sq.Intent.Valid() && strings.TrimSpace(sq.Query) != "" {
			out = append(out, sq)
		}
	}
	return out
}

// Handle answers a single sub-query.
func (a *Assistant) Handle(ctx context.Context, sq models.SubQuery) string {
	switch {
	case sq.Intent.Schedules():
		reply, err := a.scheduleFromText(ctx, sq.Query)
		if err != nil {
			if models.NeedsClarification(err) {
				a.logger.Info("asking for a clearer time", zap.String("query", sq.Query), zap.Error(err))
				return ReplyClarification
			}
			a.logger.Warn("scheduling failed", zap.String("query", sq.Query), zap.Error(err))
			return ReplyScheduleError
		}
		return reply
	case sq.Intent == models.IntentDocumentQuery:
		return a.AskWithDocuments(ctx, sq.Query)
	default:
		return a.generate(ctx, sq.Intent, sq.Query, "")
	}
}

// AskWithDocuments answers query from the indexed documents, or as a plain question when
// nothing relevant is indexed.
func (a *Assistant) AskWithDocuments(ctx context.Context, query string) string {
	passages := a.retriever.Retrieve(ctx, query, a.topK)
	if retrieval.IsNoContext(passages) {
		return a.generate(ctx, models.IntentGeneralQuery, query, "")
	}
	return a.generate(ctx, models.IntentDocumentQuery, query, passages)
}

func (a *Assistant) generate(ctx context.Context, intent models.Intent, query, passages string) string {
	reply, err := a.generator.Generate(ctx, intent, query, passages)
	if err != nil {
		a.logger.Warn("generation failed", zap.String("intent", string(intent)), zap.Error(err))
		return ReplyGenerateError
	}
	return reply
}

func (a *Assistant) scheduleFromText(ctx context.Context, text string) (string, error) {
	spec, err := a.resolver.ResolveTime(ctx, text)
	if err != nil {
		return "", fmt.Errorf("resolve time: %w", err)
	}
	t, err := a.Schedule(ctx, spec, "")
	if err != nil {
		return "", err
	}
	return Confirmation(t.Request, spec), nil
}

// Schedule normalizes spec and arms a timer that notifies when it fires. message replaces
// the default fired notice when non-empty.
func (a *Assistant) Schedule(ctx context.Context, spec *timespec.Spec, message string) (*schedule.Timer, error) {
	req, _, err := a.normalizer.Normalize(spec)
	if err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	label := message
	if label == "" {
		label = req.String()
	}

	t, err := a.scheduler.Arm(req, a.onFire(req, message), schedule.Labeled(label))
	if err != nil {
		return nil, fmt.Errorf("arm timer: %w", err)
	}
	a.emit(ctx, notify.Event{
		Kind:    notify.EventTimerStarted,
		TimerID: t.ID,
		Message: Confirmation(req, spec),
		At:      t.ArmedAt,
	})
	return t, nil
}

func (a *Assistant) onFire(req schedule.Request, message string) schedule.Callback {
	kind := notify.EventTimerFired
	if req.Kind == schedule.KindAbsolute {
		kind = notify.EventAlarmFired
	}
	if message == "" {
		message = FiredMessage(req)
	}
	return func(ctx context.Context, t *schedule.Timer) error {
		return a.notifier.Notify(ctx, notify.Event{
			Kind:    kind,
			TimerID: t.ID,
			Message: message,
			At:      a.scheduler.Clock().Now(),
		})
	}
}

func (a *Assistant) emit(ctx context.Context, ev notify.Event) {
	if err := a.notifier.Notify(ctx, ev); err != nil {
		a.logger.Warn("notification failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

// Confirmation is the reply sent when a timer is armed. spec may be nil.
func Confirmation(req schedule.Request, spec *timespec.Spec) string {
	if req.Kind == schedule.KindAbsolute {
		return fmt.Sprintf("Alarm set for %s. I'll call and message you when it's time!", clockText(req, spec))
	}
	return fmt.Sprintf("Timer started! Your study session is set for %d seconds. Time to focus!",
		int64(req.Delay/time.Second))
}

// FiredMessage is the default notice for a fired timer.
func FiredMessage(req schedule.Request) string {
	if req.Kind == schedule.KindAbsolute {
		return fmt.Sprintf("Hi! It's time for your scheduled session at %s. Stay sharp!", clockText(req, nil))
	}
	return MessageTimerFinished
}

func clockText(req schedule.Request, spec *timespec.Spec) string {
	if spec != nil && strings.TrimSpace(spec.Time) != "" {
		return strings.TrimSpace(spec.Time)
	}
	return strings.TrimPrefix(req.String(), "at ")
}
