package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/timespec"
)

const classifyPrompt = `You split a student's message into separate requests and label each one.
Allowed intents: greeting, study_schedule, set_reminder, motivation, general_query.
Answer with a JSON array only, for example:
[{"query": "hello", "intent": "greeting"}, {"query": "remind me at 7 PM", "intent": "set_reminder"}]`

const timePrompt = `You extract when a study session, timer or alarm should go off.
A duration from now ("in 20 minutes", "for one hour") is "relative".
A clock time ("at 6 AM", "wake me at 2:30 PM") is "absolute".
Answer with one JSON object only:
{"type": "relative" or "absolute", "time": "hh:mm AM/PM", "seconds": whole seconds from now, relative only}
If the message contains no time, answer null.`

const studyPrompt = `You are a study assistant. Help students with study plans, reminders and motivation.
Keep answers short, simple and in points.`

const greetingPrompt = `You are a cheerful, game-like study buddy. Greet the student in a short, upbeat way.`

const groundedPrompt = `You answer strictly from the context you are given. Do not add information that is not in it.`

// Classify splits text into sub-queries. An unparseable answer becomes a single general query.
func (c *Client) Classify(ctx context.Context, text string) ([]models.SubQuery, error) {
	out, err := c.complete(ctx, c.chatModel, classifyPrompt, "User message: "+text)
	if err != nil {
		return nil, err
	}
	var subs []models.SubQuery
	if err := json.Unmarshal([]byte(jsonPayload(out, '[', ']')), &subs); err != nil {
		c.logger.Warn("unparseable classification", zap.String("output", out), zap.Error(err))
		return []models.SubQuery{{Query: text, Intent: models.IntentGeneralQuery}}, nil
	}
	return subs, nil
}

// ResolveTime asks for a time spec. An unparseable answer is treated as no time.
func (c *Client) ResolveTime(ctx context.Context, text string) (*timespec.Spec, error) {
	out, err := c.complete(ctx, c.chatModel, timePrompt, "Query: "+text)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.Trim(out, "` \n"), "null") {
		return nil, nil
	}
	spec, err := timespec.Decode([]byte(jsonPayload(out, '{', '}')))
	if err != nil {
		c.logger.Warn("unparseable time spec", zap.String("output", out), zap.Error(err))
		return nil, nil
	}
	return spec, nil
}

// Generate answers query. A non-empty passages string selects the grounded prompt.
func (c *Client) Generate(ctx context.Context, intent models.Intent, query, passages string) (string, error) {
	if strings.TrimSpace(passages) != "" {
		user := fmt.Sprintf("Use the following context to answer the question.\n\nContext:\n%s\n\nQuestion:\n%s\n", passages, query)
		out, err := c.complete(ctx, c.contextModel, groundedPrompt, user)
		if err != nil {
			return "", err
		}
		return cleanResponse(out), nil
	}

	system := studyPrompt
	if intent == models.IntentGreeting {
		system = greetingPrompt
	}
	out, err := c.complete(ctx, c.chatModel, system, "User Query: "+query)
	if err != nil {
		return "", err
	}
	return cleanResponse(out), nil
}

var (
	boldRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe = regexp.MustCompile(`\*(.*?)\*`)
)

// cleanResponse strips markdown emphasis.
func cleanResponse(s string) string {
	s = boldRe.ReplaceAllString(s, "$1")
	s = italicRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// jsonPayload cuts the outermost first...last span out of s, dropping code fences or chatter
// around it. s is returned unchanged when no span exists.
func jsonPayload(s string, first, last byte) string {
	i := strings.IndexByte(s, first)
	j := strings.LastIndexByte(s, last)
	if i < 0 || j < i {
		return s
	}
	return s[i : j+1]
}
