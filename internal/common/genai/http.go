// internal/common/genai/http.go
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "loan-advisor/internal/common/errors"
	httpclient "loan-advisor/internal/common/http"
	"loan-advisor/internal/common/logger"
)

const generatePath = "/api/ai/generate"

// HTTPConfig configures the JSON text-generation endpoint.
type HTTPConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
	// Backoff is the first retry delay; it doubles on each attempt.
	Backoff time.Duration
}

// HTTPClient calls a generic "prompt in, text out" JSON endpoint.
type HTTPClient struct {
	config HTTPConfig
	client *httpclient.Client
	logger logger.Logger
}

func NewHTTPClient(cfg HTTPConfig, log logger.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("genai base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 100 * time.Millisecond
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &HTTPClient{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, httpclient.WithBearerToken(cfg.APIKey)),
		logger: log.With(map[string]interface{}{"provider": "http"}),
	}, nil
}

type generateRequest struct {
	Prompt      string            `json:"prompt"`
	Stage       string            `json:"stage"`
	Context     map[string]string `json:"context,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (c *HTTPClient) Generate(ctx context.Context, stage string, facts map[string]string, directive string) (string, error) {
	req := generateRequest{
		Prompt:      BuildPrompt(stage, facts, directive),
		Stage:       stage,
		Context:     facts,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
	url := strings.TrimRight(c.config.BaseURL, "/") + generatePath

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.Backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", apperrors.NewTextGenerationTimeoutError()
			}
		}

		var out generateResponse
		err := c.client.PostJSON(ctx, url, req, &out)
		if err == nil {
			if text := cleanOutput(out.Text); text != "" {
				return text, nil
			}
			return "", apperrors.NewTextGenerationFailedError(errors.New("empty completion"))
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", apperrors.NewTextGenerationTimeoutError()
		}
		if !httpclient.IsRetryable(err) {
			break
		}
		c.logger.Debug("Text generation attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}
	return "", apperrors.NewTextGenerationFailedError(lastErr)
}
