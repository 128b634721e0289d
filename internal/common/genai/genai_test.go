package genai

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"loan-advisor/internal/common/config"
	apperrors "loan-advisor/internal/common/errors"
	"loan-advisor/internal/common/logger"

	gemini "github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Prompt
// ==========================

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("sales", map[string]string{
		"loan_amount":   "₹5,00,000",
		"customer_name": "John Doe",
		"emi":           "",
	}, "Ask for tenure preference")

	assert.Contains(t, p, "loan sales specialist")
	assert.Contains(t, p, "- customer_name: John Doe\n- loan_amount: ₹5,00,000\n")
	assert.NotContains(t, p, "- emi:")
	assert.Contains(t, p, "- Ask for tenure preference")

	assert.Contains(t, BuildPrompt("unknown", nil, "x"), defaultPersona)
}

func TestCleanOutput(t *testing.T) {
	assert.Equal(t, "Hello there", cleanOutput("```text\nHello there\n```"))
	assert.Equal(t, "Hello there", cleanOutput(`  "Hello there" `))
	assert.Equal(t, "", cleanOutput("  "))
}

// ==========================
// Gemini
// ==========================

type fakeModel struct {
	resp   *gemini.GenerateContentResponse
	err    error
	prompt string
}

func (m *fakeModel) GenerateContent(_ context.Context, parts ...gemini.Part) (*gemini.GenerateContentResponse, error) {
	if len(parts) > 0 {
		if txt, ok := parts[0].(gemini.Text); ok {
			m.prompt = string(txt)
		}
	}
	return m.resp, m.err
}

func textResponse(parts ...gemini.Part) *gemini.GenerateContentResponse {
	return &gemini.GenerateContentResponse{
		Candidates: []*gemini.Candidate{{Content: &gemini.Content{Parts: parts}}},
	}
}

func TestGeminiClient_Generate(t *testing.T) {
	tests := []struct {
		name     string
		model    *fakeModel
		validate func(t *testing.T, text string, err error)
	}{
		{
			name:  "text part",
			model: &fakeModel{resp: textResponse(gemini.Text("Welcome aboard!"))},
			validate: func(t *testing.T, text string, err error) {
				require.NoError(t, err)
				assert.Equal(t, "Welcome aboard!", text)
			},
		},
		{
			name:  "no candidates",
			model: &fakeModel{resp: &gemini.GenerateContentResponse{}},
			validate: func(t *testing.T, _ string, err error) {
				assert.Equal(t, apperrors.ErrCodeTextGenerationFailed, apperrors.CodeOf(err))
			},
		},
		{
			name:  "non text part",
			model: &fakeModel{resp: textResponse(gemini.Blob{MIMEType: "image/png"})},
			validate: func(t *testing.T, _ string, err error) {
				assert.Error(t, err)
			},
		},
		{
			name:  "deadline",
			model: &fakeModel{err: context.DeadlineExceeded},
			validate: func(t *testing.T, _ string, err error) {
				assert.Equal(t, apperrors.ErrCodeTextGenerationTimeout, apperrors.CodeOf(err))
			},
		},
		{
			name:  "api error",
			model: &fakeModel{err: stderrors.New("quota exceeded")},
			validate: func(t *testing.T, _ string, err error) {
				assert.Equal(t, apperrors.ErrCodeTextGenerationFailed, apperrors.CodeOf(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &GeminiClient{model: tt.model, logger: logger.NewTestLogger(t)}
			text, err := g.Generate(context.Background(), "verification", map[string]string{"customer_name": "Asha"}, "Ask for PAN")
			tt.validate(t, text, err)
			assert.Contains(t, tt.model.prompt, "KYC verification assistant")
		})
	}
}

// ==========================
// Bounded
// ==========================

type slowGenerator struct{}

func (slowGenerator) Generate(ctx context.Context, _ string, _ map[string]string, _ string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(time.Second):
		return "late", nil
	}
}

func TestBounded_TimesOut(t *testing.T) {
	b := NewBounded(slowGenerator{}, "test", 10*time.Millisecond, logger.NewTestLogger(t))
	_, err := b.Generate(context.Background(), "sales", nil, "x")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTextGenerationTimeout, apperrors.CodeOf(err))
}

func TestNew_Providers(t *testing.T) {
	var cfg config.APIsConfig

	g, closeFn, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, g)
	assert.NoError(t, closeFn())

	cfg.GenAI.Provider = ProviderHTTP
	cfg.GenAI.BaseURL = "http://localhost:9"
	g, _, err = New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &Bounded{}, g)

	cfg.GenAI.Provider = "openai"
	_, _, err = New(context.Background(), cfg, nil)
	assert.True(t, stderrors.Is(err, apperrors.ErrValidation))
}
