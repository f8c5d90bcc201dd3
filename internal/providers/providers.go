// Package providers validates AI provider API keys client-side before
// they are handed to the engine, so a typo'd key surfaces immediately
// instead of failing mid-pipeline.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/lexhq/lex-desktop/internal/logging"
)

// Supported provider identifiers, shared with the engine.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// Config is the AI provider configuration exchanged with the engine.
type Config struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model,omitempty"`
}

var (
	// ErrInvalidProvider marks an unknown provider identifier.
	ErrInvalidProvider = errors.New("unknown AI provider")
	// ErrInvalidKey marks a key the provider rejected.
	ErrInvalidKey = errors.New("API key rejected by provider")
)

// retryLogger adapts retryablehttp's leveled logger onto ours. Only
// warnings and errors are forwarded; per-attempt chatter stays quiet.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, kv ...interface{}) {
	l.logger.Error().Interface("detail", kv).Msg(msg)
}
func (l *retryLogger) Warn(msg string, kv ...interface{}) {
	l.logger.Warn().Interface("detail", kv).Msg(msg)
}
func (l *retryLogger) Info(msg string, kv ...interface{})  {}
func (l *retryLogger) Debug(msg string, kv ...interface{}) {}

// Validator checks API keys against each provider's cheapest
// authenticated endpoint (the model listing).
type Validator struct {
	client    *retryablehttp.Client
	logger    *logging.Logger
	endpoints map[string]string
}

// NewValidator creates a validator with short retries; transient provider
// hiccups retry, auth failures do not.
func NewValidator(logger *logging.Logger) *Validator {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = &retryLogger{logger: logger}

	return &Validator{
		client: rc,
		logger: logger,
		endpoints: map[string]string{
			ProviderGemini:     "https://generativelanguage.googleapis.com/v1beta/models",
			ProviderOpenRouter: "https://openrouter.ai/api/v1/models",
		},
	}
}

// ValidateKey verifies a key against the provider. Returns ErrInvalidKey
// when the provider rejects it and ErrInvalidProvider for an unknown
// provider identifier.
func (v *Validator) ValidateKey(ctx context.Context, provider, key string) error {
	url, ok := v.endpoints[provider]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}
	switch provider {
	case ProviderGemini:
		req.Header.Set("x-goog-api-key", key)
	case ProviderOpenRouter:
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach %s: %w", provider, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		v.logger.Warn().Str("provider", provider).Int("status", resp.StatusCode).Msg("API key rejected")
		return ErrInvalidKey
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		v.logger.Debug().Str("provider", provider).Msg("API key validated")
		return nil
	default:
		return fmt.Errorf("%s validation returned %s", provider, resp.Status)
	}
}
