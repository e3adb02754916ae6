package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/company-insights/internal/analysis"
	"github.com/jonathan/company-insights/internal/config"
	"github.com/jonathan/company-insights/internal/conversation"
	"github.com/jonathan/company-insights/internal/fetch"
	"github.com/jonathan/company-insights/internal/history"
	"github.com/jonathan/company-insights/internal/llm"
)

// services is the object graph shared by every command.
type services struct {
	client   llm.Client
	fetcher  *fetch.CachedFetcher
	history  *history.Store
	analyzer *analysis.Analyzer
	agent    *conversation.Agent
}

// newServices builds the fetcher, history store, LLM client and orchestrators.
func newServices(ctx context.Context, cfg *config.Config, log *zap.Logger) (*services, error) {
	client, err := llm.NewClient(ctx, llm.DefaultConfig().WithModel(cfg.GeminiModel), cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	fetcherConfig := fetch.DefaultCachedFetcherConfig()
	fetcherConfig.UseBrowser = cfg.UseBrowser
	fetcherConfig.Logger = log.Named("fetch")

	fetcher := fetch.NewCachedFetcher(fetch.NewPageCache(), fetcherConfig)
	store := history.NewStore()

	return &services{
		client:   client,
		fetcher:  fetcher,
		history:  store,
		analyzer: analysis.NewAnalyzer(fetcher, client, store, analysis.WithLogger(log.Named("analysis"))),
		agent:    conversation.NewAgent(fetcher, client, store, log.Named("conversation")),
	}, nil
}

// Close releases the LLM client.
func (s *services) Close() error {
	return s.client.Close()
}
