// Package llm adapts an OpenAI-compatible chat API (Groq by default) to the assistant's
// classifier, time resolver and generator roles.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/studybuddy/pkg/utils"
)

const (
	DefaultBaseURL      = "https://api.groq.com/openai/v1"
	DefaultChatModel    = "llama-3.3-70b-versatile"
	DefaultContextModel = "llama-3.3-70b-versatile"
	DefaultTimeout      = 30 * time.Second
)

// ErrEmptyResponse is returned when the API answers without any choices.
var ErrEmptyResponse = errors.New("llm returned no choices")

// Config selects the endpoint and models.
type Config struct {
	BaseURL           string
	APIKey            string
	ChatModel         string
	ContextModel      string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client talks to the chat completions endpoint.
type Client struct {
	api          *openai.Client
	chatModel    string
	contextModel string
	limiter      *rate.Limiter
	logger       *zap.Logger
}

// NewClient builds a client; empty fields take the package defaults.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm api key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.ContextModel == "" {
		cfg.ContextModel = DefaultContextModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	oc := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	c := &Client{
		api:          openai.NewClientWithConfig(oc),
		chatModel:    cfg.ChatModel,
		contextModel: cfg.ContextModel,
		logger:       utils.OrNop(logger),
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

func (c *Client) complete(ctx context.Context, model, system, user string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("llm rate limit: %w", err)
		}
	}
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	c.logger.Debug("chat completion",
		zap.String("model", model),
		zap.Duration("took", time.Since(start)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
