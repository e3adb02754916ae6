package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/jonathan/company-insights/internal/analysis"
	"github.com/jonathan/company-insights/internal/conversation"
	"github.com/jonathan/company-insights/internal/fetch"
	"github.com/jonathan/company-insights/internal/history"
	"github.com/jonathan/company-insights/internal/llm"
	"github.com/jonathan/company-insights/internal/server/ratelimit"
	"github.com/jonathan/company-insights/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

const testSecret = "test-secret"

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeAnalyzer struct {
	result *types.AnalysisResult
	err    error
	calls  int
	gotURL string
	gotQs  []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, url string, questions []string) (*types.AnalysisResult, error) {
	f.calls++
	f.gotURL = url
	f.gotQs = questions
	return f.result, f.err
}

type fakeAgent struct {
	exchange   *types.ConversationExchange
	err        error
	calls      int
	gotHistory []types.HistoryTurn
}

func (f *fakeAgent) Converse(_ context.Context, url, query string, history []types.HistoryTurn) (*types.ConversationExchange, error) {
	f.calls++
	f.gotHistory = history
	if f.exchange != nil {
		return f.exchange, f.err
	}
	return &types.ConversationExchange{URL: url, UserQuery: query, AgentResponse: "ok", ContextSources: []string{}}, f.err
}

func testRateConfig(t *testing.T) *ratelimit.Config {
	t.Helper()
	endpoints, err := ratelimit.EndpointConfigs(DefaultAnalyzeRate, DefaultConversationRate)
	require.NoError(t, err)
	return &ratelimit.Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		EndpointConfigs: endpoints,
		Clock:           func() time.Time { return testNow },
	}
}

func newTestServer(t *testing.T, analyzer Analyzer, agent Conversationalist) *Server {
	t.Helper()
	s, err := New(Config{
		Port:      0,
		SecretKey: testSecret,
		RateLimit: testRateConfig(t),
		Logger:    zaptest.NewLogger(t),
	}, analyzer, agent)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func doRequest(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(Config{}, &fakeAnalyzer{}, &fakeAgent{})
	assert.Error(t, err)
}

func TestNew_HTTPServerTimeouts(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{}, &fakeAgent{})

	assert.Equal(t, 30*time.Second, s.httpServer.ReadTimeout)
	assert.Zero(t, s.httpServer.WriteTimeout, "long analyses must be able to write their response")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{}, &fakeAgent{})

	rr := doRequest(t, s.Handler(), http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestUnauthorizedHasNoSideEffects(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	agent := &fakeAgent{}
	s := newTestServer(t, analyzer, agent)

	for _, token := range []string{"", "wrong"} {
		rr := doRequest(t, s.Handler(), http.MethodPost, "/analyze-website", `{"url":"https://acme.test"}`, token)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Unauthorized", decodeBody(t, rr)["detail"])

		rr = doRequest(t, s.Handler(), http.MethodPost, "/conversations", `{"url":"https://acme.test","query":"q"}`, token)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	assert.Zero(t, analyzer.calls)
	assert.Zero(t, agent.calls)
}

func TestAnalyzeWebsite_OK(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &types.AnalysisResult{
		URL:               "https://acme.test",
		AnalysisTimestamp: "2024-01-01T00:00:00.000000Z",
		CompanyInfo:       types.CompanyInfo{Industry: "Footwear", CoreProductsServices: []string{}},
		ExtractedAnswers:  []types.ExtractedAnswer{},
	}}
	s := newTestServer(t, analyzer, &fakeAgent{})

	rr := doRequest(t, s.Handler(), http.MethodPost, "/analyze-website",
		`{"url":"https://acme.test","questions":["Who?"]}`, testSecret)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, "https://acme.test", body["url"])
	assert.Equal(t, []any{}, body["extracted_answers"])
	assert.Equal(t, "Footwear", body["company_info"].(map[string]any)["industry"])
	assert.Equal(t, []string{"Who?"}, analyzer.gotQs)
	assert.Equal(t, "5", rr.Header().Get("X-RateLimit-Limit"))
}

func TestAnalyzeWebsite_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"scrape", &fetch.ScrapeError{URL: "u", Message: "HTTP status 404", StatusCode: 404}, http.StatusBadRequest, "Failed to scrape URL: HTTP status 404"},
		{"format", &llm.ResponseFormatError{Cause: errors.New("x")}, http.StatusInternalServerError, "Failed to parse LLM response"},
		{"provider", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &fakeAnalyzer{err: tt.err}, &fakeAgent{})

			rr := doRequest(t, s.Handler(), http.MethodPost, "/analyze-website", `{"url":"https://acme.test"}`, testSecret)

			assert.Equal(t, tt.status, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, tt.detail, body["detail"])
			assert.Equal(t, float64(tt.status), body["status_code"])
		})
	}
}

func TestAnalyzeWebsite_InvalidBody(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	s := newTestServer(t, analyzer, &fakeAgent{})

	for _, body := range []string{"", "{", `{"questions":["q"]}`, `{"url": 5}`, `{"url":""}`} {
		rr := doRequest(t, s.Handler(), http.MethodPost, "/analyze-website", body, testSecret)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "body %q", body)
	}
	assert.Zero(t, analyzer.calls)
}

func TestConversations_OK(t *testing.T) {
	agent := &fakeAgent{}
	s := newTestServer(t, &fakeAnalyzer{}, agent)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/conversations",
		`{"url":"https://acme.test","query":"q","conversation_history":[{"user":"C","agent":"D"}]}`, testSecret)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "q", body["user_query"])
	assert.Equal(t, "ok", body["agent_response"])
	assert.Equal(t, []types.HistoryTurn{{User: "C", Agent: "D"}}, agent.gotHistory)
}

func TestConversations_MissingQuery(t *testing.T) {
	agent := &fakeAgent{}
	s := newTestServer(t, &fakeAnalyzer{}, agent)

	rr := doRequest(t, s.Handler(), http.MethodPost, "/conversations", `{"url":"https://acme.test"}`, testSecret)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Zero(t, agent.calls)
}

func TestRateLimit(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &types.AnalysisResult{}}
	s := newTestServer(t, analyzer, &fakeAgent{})

	for i := 0; i < 5; i++ {
		rr := doRequest(t, s.Handler(), http.MethodPost, "/analyze-website", `{"url":"https://acme.test"}`, testSecret)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := doRequest(t, s.Handler(), http.MethodPost, "/analyze-website", `{"url":"https://acme.test"}`, testSecret)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	body := decodeBody(t, rr)
	assert.Equal(t, "Rate limit exceeded: 5 per 1 minute", body["detail"])
	assert.Equal(t, 5, analyzer.calls)

	// Conversation limit is separate
	rr = doRequest(t, s.Handler(), http.MethodPost, "/conversations", `{"url":"https://acme.test","query":"q"}`, testSecret)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimit_UnauthenticatedRequestsDoNotConsume(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &types.AnalysisResult{}}
	s := newTestServer(t, analyzer, &fakeAgent{})

	for i := 0; i < 10; i++ {
		doRequest(t, s.Handler(), http.MethodPost, "/analyze-website", `{"url":"https://acme.test"}`, "wrong")
	}

	rr := doRequest(t, s.Handler(), http.MethodPost, "/analyze-website", `{"url":"https://acme.test"}`, testSecret)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{}, &fakeAgent{})

	req := httptest.NewRequest(http.MethodOptions, "/analyze-website", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "authorization, content-type", rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{}, &fakeAgent{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

// scriptedLLM replies to profile, answer and chat calls for the end-to-end test.
type scriptedLLM struct {
	mu       sync.Mutex
	lastChat []llm.Message
}

func (c *scriptedLLM) GenerateContent(_ context.Context, _ string, opts llm.GenerateOptions) (string, error) {
	if opts.Schema != nil {
		return `{"industry":"Footwear","company_size":"Not specified","location":"Lisbon",
			"core_products_services":["Sneakers"],"unique_selling_proposition":"Handmade",
			"target_audience":"Commuters","contact_info":{"email":null,"phone":null,"social_media":{}}}`, nil
	}
	return " Lisbon. ", nil
}

func (c *scriptedLLM) ChatCompletion(_ context.Context, messages []llm.Message, _ llm.GenerateOptions) (string, error) {
	c.mu.Lock()
	c.lastChat = messages
	c.mu.Unlock()
	return "```json\n{\"agent_response\":\"They sell sneakers.\",\"context_sources\":[\"We make sneakers\"]}\n```", nil
}

func (c *scriptedLLM) Close() error { return nil }

func TestEndToEnd_AnalyzeThenConverse(t *testing.T) {
	var siteHits atomic.Int32
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		siteHits.Add(1)
		_, _ = w.Write([]byte(`<html><body><h1>Acme</h1><p>We make sneakers</p></body></html>`))
	}))
	defer site.Close()

	client := &scriptedLLM{}
	store := history.NewStore()
	fetcher := fetch.NewCachedFetcher(fetch.NewPageCache(), nil)
	analyzer := analysis.NewAnalyzer(fetcher, client, store)
	agent := conversation.NewAgent(fetcher, client, store, nil)
	s := newTestServer(t, analyzer, agent)

	payload, err := json.Marshal(map[string]any{"url": site.URL, "questions": []string{"Where?"}})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/analyze-website", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+testSecret)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var result types.AnalysisResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "Footwear", result.CompanyInfo.Industry)
	assert.Equal(t, []types.ExtractedAnswer{{Question: "Where?", Answer: "Lisbon."}}, result.ExtractedAnswers)
	assert.True(t, strings.HasSuffix(result.AnalysisTimestamp, "Z"))

	rr = doRequest(t, s.Handler(), http.MethodPost, "/conversations",
		`{"url":"`+site.URL+`","query":"What do they sell?"}`, testSecret)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var exchange types.ConversationExchange
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &exchange))
	assert.Equal(t, "They sell sneakers.", exchange.AgentResponse)
	assert.Equal(t, []string{"We make sneakers"}, exchange.ContextSources)

	// system, stored Q/A from the analysis, new query
	require.Len(t, client.lastChat, 4)
	assert.Equal(t, "Where?", client.lastChat[1].Content)
	assert.Equal(t, "Lisbon.", client.lastChat[2].Content)
	assert.Contains(t, client.lastChat[0].Content, "Acme We make sneakers")

	assert.Equal(t, int32(1), siteHits.Load(), "second request served from cache")
	assert.Equal(t, 2, store.Len(site.URL))
}
