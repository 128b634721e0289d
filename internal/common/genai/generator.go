// internal/common/genai/generator.go
package genai

import (
	"context"
	"errors"
	"time"

	"loan-advisor/internal/common/config"
	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"
	"loan-advisor/internal/common/metrics"
)

const (
	ProviderNone   = "none"
	ProviderHTTP   = "http"
	ProviderGemini = "gemini"
)

// Generator phrases one prompt.
type Generator interface {
	Generate(ctx context.Context, stage string, facts map[string]string, directive string) (string, error)
}

// Bounded caps every call with a timeout and counts failures. Errors are
// still returned so the caller can use its fallback text.
type Bounded struct {
	next     Generator
	provider string
	timeout  time.Duration
	logger   logger.Logger
}

func NewBounded(next Generator, provider string, timeout time.Duration, log logger.Logger) *Bounded {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Bounded{next: next, provider: provider, timeout: timeout, logger: log}
}

func (b *Bounded) Generate(ctx context.Context, stage string, facts map[string]string, directive string) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	text, err := b.next.Generate(ctx, stage, facts, directive)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = apperrors.NewTextGenerationTimeoutError()
		}
		metrics.TextGenerationFallbacks.WithLabelValues(b.provider).Inc()
		b.logger.Warn("Text generation failed, caller will use fallback", map[string]interface{}{
			"provider": b.provider,
			"stage":    stage,
			"code":     string(apperrors.CodeOf(err)),
		})
		return "", err
	}
	return text, nil
}

// New builds the configured provider. It returns a nil Generator for
// provider "none", which makes every prompt use its fallback.
func New(ctx context.Context, cfg config.APIsConfig, log logger.Logger) (Generator, func() error, error) {
	g := cfg.GenAI
	timeout := config.GetDuration(g.Timeout)
	noop := func() error { return nil }

	switch g.Provider {
	case "", ProviderNone:
		return nil, noop, nil
	case ProviderHTTP:
		c, err := NewHTTPClient(HTTPConfig{
			BaseURL:     g.BaseURL,
			APIKey:      g.APIKey,
			Timeout:     timeout,
			MaxRetries:  g.MaxRetries,
			MaxTokens:   g.MaxTokens,
			Temperature: g.Temperature,
		}, log)
		if err != nil {
			return nil, noop, err
		}
		return NewBounded(c, ProviderHTTP, timeout, log), noop, nil
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:      g.APIKey,
			Model:       g.Model,
			MaxTokens:   g.MaxTokens,
			Temperature: g.Temperature,
		}, log)
		if err != nil {
			return nil, noop, err
		}
		return NewBounded(c, ProviderGemini, timeout, log), c.Close, nil
	default:
		return nil, noop, apperrors.NewValidationError("unknown genai provider " + g.Provider)
	}
}
