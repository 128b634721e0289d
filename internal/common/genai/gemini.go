// internal/common/genai/gemini.go
package genai

import (
	"context"
	"errors"
	"fmt"

	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"

	gemini "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

// contentGenerator is the part of *gemini.GenerativeModel we use.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...gemini.Part) (*gemini.GenerateContentResponse, error)
}

// GeminiClient phrases prompts with a Google Gemini model.
type GeminiClient struct {
	client *gemini.Client
	model  contentGenerator
	logger logger.Logger
}

// GeminiConfig configures the Gemini model.
type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig, log logger.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	client, err := gemini.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	if cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	}
	if cfg.Temperature > 0 {
		model.SetTemperature(float32(cfg.Temperature))
	}

	return &GeminiClient{
		client: client,
		model:  model,
		logger: log.With(map[string]interface{}{"provider": "gemini", "model": cfg.Model}),
	}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, stage string, facts map[string]string, directive string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, gemini.Text(BuildPrompt(stage, facts, directive)))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperrors.NewTextGenerationTimeoutError()
		}
		return "", apperrors.NewTextGenerationFailedError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", apperrors.NewTextGenerationFailedError(errors.New("no content returned from AI"))
	}

	textPart, ok := resp.Candidates[0].Content.Parts[0].(gemini.Text)
	if !ok {
		return "", apperrors.NewTextGenerationFailedError(
			fmt.Errorf("response part is not text, received %T", resp.Candidates[0].Content.Parts[0]))
	}
	text := cleanOutput(string(textPart))
	if text == "" {
		return "", apperrors.NewTextGenerationFailedError(errors.New("empty completion"))
	}
	return text, nil
}

func (g *GeminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
