package llm

import (
	"context"
	"errors"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/timespec"
)

// ErrDisabled is returned by Disabled for every call.
var ErrDisabled = errors.New("llm not configured")

// Disabled stands in for Client when no API key is configured. Chat degrades to the
// assistant's fallback replies while retrieval and explicit scheduling keep working.
type Disabled struct{}

func (Disabled) Classify(context.Context, string) ([]models.SubQuery, error) {
	return nil, ErrDisabled
}

func (Disabled) ResolveTime(context.Context, string) (*timespec.Spec, error) {
	return nil, ErrDisabled
}

func (Disabled) Generate(context.Context, models.Intent, string, string) (string, error) {
	return "", ErrDisabled
}
