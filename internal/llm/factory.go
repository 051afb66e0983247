// Package llm selects the completion backend wire variant and bounds every
// request with a hard deadline.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"voice-relay/internal/domain"
	"voice-relay/internal/integrations/anthropic"
	"voice-relay/internal/integrations/openai"
	"voice-relay/internal/integrations/yandex"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderYandex    = "yandex"
)

// Completer turns a transcript plus system instruction into the next reply.
type Completer interface {
	Complete(ctx context.Context, system string, turns []domain.Turn) (string, error)
}

// Settings carries everything needed to build a backend client. An empty
// Model or BaseURL and a zero MaxTokens select the provider's defaults.
type Settings struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	YandexFolderID string
	HTTPClient     *http.Client
}

// ModelName returns the model the backend built from s requests.
func (s Settings) ModelName() string {
	if m := strings.TrimSpace(s.Model); m != "" {
		return m
	}
	switch provider(s) {
	case ProviderAnthropic:
		return anthropic.DefaultModel
	case ProviderOpenAI:
		return openai.DefaultModel
	case ProviderYandex:
		return yandex.Model
	}
	return ""
}

func provider(s Settings) string {
	return strings.ToLower(strings.TrimSpace(s.Provider))
}

// New builds the client for s.Provider. Unknown providers are rejected.
func New(s Settings) (Completer, error) {
	switch provider(s) {
	case ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithBaseURL(s.BaseURL), anthropic.WithMaxTokens(s.MaxTokens)}
		if s.HTTPClient != nil {
			opts = append(opts, anthropic.WithHTTPClient(s.HTTPClient))
		}
		c, err := anthropic.NewClient(s.APIKey, s.ModelName(), opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithBaseURL(s.BaseURL), openai.WithMaxTokens(s.MaxTokens)}
		if s.HTTPClient != nil {
			opts = append(opts, openai.WithHTTPClient(s.HTTPClient))
		}
		c, err := openai.NewClient(s.APIKey, s.ModelName(), opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderYandex:
		// yagpt fixes the model and the output cap per request.
		if s.ModelName() != yandex.Model {
			return nil, fmt.Errorf("llm: yandex backend only serves model %q, got %q", yandex.Model, s.Model)
		}
		if s.MaxTokens > 0 {
			return nil, errors.New("llm: yandex backend does not support a max token override")
		}
		c, err := yandex.NewClient(s.APIKey, s.YandexFolderID)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", s.Provider)
	}
}
