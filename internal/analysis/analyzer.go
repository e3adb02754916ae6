// Package analysis extracts a structured company profile from a website and answers
// free-form questions about it.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/company-insights/internal/fetch"
	"github.com/jonathan/company-insights/internal/llm"
	"github.com/jonathan/company-insights/internal/observability"
	"github.com/jonathan/company-insights/internal/prompts"
	"github.com/jonathan/company-insights/internal/schemas"
	"github.com/jonathan/company-insights/internal/types"
)

// TimestampLayout renders analysis times as UTC ISO-8601 with microseconds and a trailing Z.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Call parameters for the two kinds of model request.
const (
	ProfileContentLimit = 8000
	ProfileMaxTokens    = 1000
	ProfileTemperature  = 0.2

	AnswerContentLimit = 4000
	AnswerMaxTokens    = 300
	AnswerTemperature  = 0.3
)

// PageFetcher returns the extracted text of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.CachedResult, error)
}

// HistoryAppender records question and answer turns for a URL.
type HistoryAppender interface {
	Append(url string, turns ...types.HistoryTurn)
}

// Analyzer runs website analyses.
type Analyzer struct {
	fetcher PageFetcher
	client  llm.Client
	history HistoryAppender
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for progress messages.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the time source for analysis timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(fetcher PageFetcher, client llm.Client, history HistoryAppender, opts ...Option) *Analyzer {
	a := &Analyzer{
		fetcher: fetcher,
		client:  client,
		history: history,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze fetches url, extracts its company profile, and answers each question in order.
// The first failure aborts the analysis; answers are recorded in history only on success.
func (a *Analyzer) Analyze(ctx context.Context, url string, questions []string) (*types.AnalysisResult, error) {
	page, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	observability.LoggerFromContext(ctx, a.logger).Info("analyzing website",
		zap.String("url", url),
		zap.Bool("from_cache", page.FromCache),
		zap.Int("questions", len(questions)))

	info, err := a.extractProfile(ctx, page.Text)
	if err != nil {
		return nil, err
	}

	answers := make([]types.ExtractedAnswer, 0, len(questions))
	for i, question := range questions {
		answer, err := a.answerQuestion(ctx, question, page.Text)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		answers = append(answers, types.ExtractedAnswer{Question: question, Answer: answer})
	}

	if len(answers) > 0 {
		turns := make([]types.HistoryTurn, len(answers))
		for i, ans := range answers {
			turns[i] = types.HistoryTurn{User: ans.Question, Agent: ans.Answer}
		}
		a.history.Append(url, turns...)
	}

	return &types.AnalysisResult{
		URL:               url,
		AnalysisTimestamp: a.now().UTC().Format(TimestampLayout),
		CompanyInfo:       *info,
		ExtractedAnswers:  answers,
	}, nil
}

func (a *Analyzer) extractProfile(ctx context.Context, content string) (*types.CompanyInfo, error) {
	def, err := schemas.Load(schemas.CompanyInfo)
	if err != nil {
		return nil, err
	}

	prompt := ProfilePrompt(content)
	reply, err := a.client.GenerateContent(ctx, prompt, llm.GenerateOptions{
		MaxTokens:   ProfileMaxTokens,
		Temperature: ProfileTemperature,
		Schema:      def,
	})
	if err != nil {
		return nil, fmt.Errorf("profile extraction failed: %w", err)
	}

	var info types.CompanyInfo
	if err := llm.DecodeJSON(reply, def, &info); err != nil {
		observability.LoggerFromContext(ctx, a.logger).Warn("profile reply rejected", zap.Error(err))
		return nil, err
	}
	info.Normalize()
	return &info, nil
}

func (a *Analyzer) answerQuestion(ctx context.Context, question, content string) (string, error) {
	reply, err := a.client.GenerateContent(ctx, AnswerPrompt(question, content), llm.GenerateOptions{
		MaxTokens:   AnswerMaxTokens,
		Temperature: AnswerTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("answer generation failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// ProfilePrompt builds the company profile extraction prompt.
func ProfilePrompt(content string) string {
	return prompts.Format(prompts.MustGet("analysis.json", "company-profile"), map[string]string{
		"Content": prompts.Truncate(content, ProfileContentLimit),
	})
}

// AnswerPrompt builds the prompt for a single question.
func AnswerPrompt(question, content string) string {
	return prompts.Format(prompts.MustGet("analysis.json", "answer-question"), map[string]string{
		"Question": question,
		"Content":  prompts.Truncate(content, AnswerContentLimit),
	})
}
