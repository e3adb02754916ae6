package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/company-insights/internal/schemas"
)

// GenerateOptions controls a single model call.
type GenerateOptions struct {
	MaxTokens   int32
	Temperature float32
	// Schema, when set, switches the model to JSON output constrained to this document.
	Schema *schemas.Definition
}

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateContent runs a single-turn prompt and returns the reply text
	GenerateContent(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	// ChatCompletion replays messages as a chat and returns the reply to the last one
	ChatCompletion(ctx context.Context, messages []Message, opts GenerateOptions) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// GenerateContent runs a single-turn prompt.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	model := c.client.GenerativeModel(c.config.GetModel())
	configureModel(model, opts)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return extractTextFromResponse(resp)
}

// ChatCompletion replays all but the last message as chat history and sends the last one.
func (c *GeminiClient) ChatCompletion(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	history, final, err := BuildChatHistory(messages)
	if err != nil {
		return "", err
	}

	model := c.client.GenerativeModel(c.config.GetModel())
	configureModel(model, opts)

	session := model.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, genai.Text(final))
	if err != nil {
		return "", fmt.Errorf("failed to send chat message: %w", err)
	}

	return extractTextFromResponse(resp)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// configureModel applies per-call generation settings.
func configureModel(model *genai.GenerativeModel, opts GenerateOptions) {
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(opts.MaxTokens)
	}
	model.SetTemperature(opts.Temperature)
	if opts.Schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toGenaiSchema(opts.Schema.Root)
	}
}

var errNoText = errors.New("no text in response")

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response: %w", errNoText)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response (finish reason %v): %w", candidate.FinishReason, errNoText)
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response: %w", errNoText)
	}

	return strings.Join(parts, ""), nil
}
