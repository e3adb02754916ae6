package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/company-insights/internal/schemas"
)

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestNewClient_UnsupportedProvider(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Provider: ProviderOpenAI}, "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM provider")
}

func TestConfigureModel_FreeText(t *testing.T) {
	model := &genai.GenerativeModel{}
	configureModel(model, GenerateOptions{MaxTokens: 300, Temperature: 0.3})

	require.NotNil(t, model.MaxOutputTokens)
	assert.Equal(t, int32(300), *model.MaxOutputTokens)
	require.NotNil(t, model.Temperature)
	assert.InDelta(t, 0.3, *model.Temperature, 1e-6)
	assert.Empty(t, model.ResponseMIMEType)
	assert.Nil(t, model.ResponseSchema)
}

func TestConfigureModel_Structured(t *testing.T) {
	model := &genai.GenerativeModel{}
	configureModel(model, GenerateOptions{
		MaxTokens:   1000,
		Temperature: 0.2,
		Schema:      schemas.MustLoad(schemas.CompanyInfo),
	})

	assert.Equal(t, "application/json", model.ResponseMIMEType)
	require.NotNil(t, model.ResponseSchema)
	assert.Equal(t, genai.TypeObject, model.ResponseSchema.Type)
}

func TestExtractTextFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Hello, "), genai.Text("world")}},
		}},
	}

	text, err := extractTextFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)
}

func TestExtractTextFromResponse_Empty(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{name: "nil response", resp: nil},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}},
		{name: "no content", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}},
		{name: "no text parts", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}},
		}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractTextFromResponse(tt.resp)
			assert.ErrorIs(t, err, errNoText)
		})
	}
}
