package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/studybuddy/pkg/utils"
)

// WebhookNotifier POSTs each event as JSON to a URL.
type WebhookNotifier struct {
	url     string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithToken sends the token as a bearer Authorization header.
func WithToken(token string) WebhookOption {
	return func(w *WebhookNotifier) { w.token = strings.TrimSpace(token) }
}

// WithRateLimit caps outbound requests per second. Zero or less disables the cap.
func WithRateLimit(perSecond float64) WebhookOption {
	return func(w *WebhookNotifier) {
		if perSecond > 0 {
			w.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			w.limiter = nil
		}
	}
}

// WithHTTPClient replaces the default client, which times out after 10s.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) {
		if c != nil {
			w.client = c
		}
	}
}

func WithWebhookLogger(logger *zap.Logger) WebhookOption {
	return func(w *WebhookNotifier) { w.logger = utils.OrNop(logger) }
}

func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	w := &WebhookNotifier{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebhookNotifier) Notify(ctx context.Context, ev Event) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("webhook rate limit: %w", err)
		}
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	w.logger.Debug("webhook delivered", zap.String("kind", string(ev.Kind)), zap.String("timer_id", ev.TimerID))
	return nil
}
