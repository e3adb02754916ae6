// Package conversation answers follow-up questions about a website, grounded on its
// content and on earlier exchanges recorded for the same URL.
package conversation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/company-insights/internal/fetch"
	"github.com/jonathan/company-insights/internal/llm"
	"github.com/jonathan/company-insights/internal/observability"
	"github.com/jonathan/company-insights/internal/prompts"
	"github.com/jonathan/company-insights/internal/schemas"
	"github.com/jonathan/company-insights/internal/types"
)

// Chat call parameters.
const (
	ContentLimit = 8000
	MaxTokens    = 500
	Temperature  = 0.5
)

// PageFetcher returns the extracted text of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.CachedResult, error)
}

// HistoryStore reads and records exchanges per URL.
type HistoryStore interface {
	Get(url string) []types.HistoryTurn
	Append(url string, turns ...types.HistoryTurn)
}

// Agent holds conversations about websites.
type Agent struct {
	fetcher PageFetcher
	client  llm.Client
	history HistoryStore
	logger  *zap.Logger
}

// NewAgent creates an Agent. A nil logger disables logging.
func NewAgent(fetcher PageFetcher, client llm.Client, history HistoryStore, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		fetcher: fetcher,
		client:  client,
		history: history,
		logger:  logger,
	}
}

// Converse answers query about url. clientHistory is replayed after the stored history
// but is not itself stored; only the new exchange is appended.
func (a *Agent) Converse(ctx context.Context, url, query string, clientHistory []types.HistoryTurn) (*types.ConversationExchange, error) {
	page, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	def, err := schemas.Load(schemas.ConversationReply)
	if err != nil {
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx, a.logger)
	stored := a.history.Get(url)
	messages := BuildMessages(page.Text, query, stored, clientHistory)
	logger.Info("conversation turn",
		zap.String("url", url),
		zap.Int("stored_turns", len(stored)),
		zap.Int("client_turns", len(clientHistory)),
		zap.Int("messages", len(messages)))

	text, err := a.client.ChatCompletion(ctx, messages, llm.GenerateOptions{
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		Schema:      def,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	var reply types.ConversationReply
	if err := llm.DecodeJSON(text, def, &reply); err != nil {
		logger.Warn("conversation reply rejected", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	if reply.ContextSources == nil {
		reply.ContextSources = []string{}
	}

	a.history.Append(url, types.HistoryTurn{User: query, Agent: reply.AgentResponse})

	return &types.ConversationExchange{
		URL:            url,
		UserQuery:      query,
		AgentResponse:  reply.AgentResponse,
		ContextSources: reply.ContextSources,
	}, nil
}

// BuildMessages assembles the chat transcript: the grounding system message, stored
// turns, client-supplied turns, then the new query.
func BuildMessages(content, query string, stored, clientHistory []types.HistoryTurn) []llm.Message {
	system := prompts.Format(prompts.MustGet("conversation.json", "system-instruction"), map[string]string{
		"Content": prompts.Truncate(content, ContentLimit),
	})

	messages := make([]llm.Message, 0, 2+2*(len(stored)+len(clientHistory)))
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	messages = appendTurns(messages, stored)
	messages = appendTurns(messages, clientHistory)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	return messages
}

func appendTurns(messages []llm.Message, turns []types.HistoryTurn) []llm.Message {
	for _, turn := range turns {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.User},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Agent},
		)
	}
	return messages
}
