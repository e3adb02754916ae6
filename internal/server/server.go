package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/company-insights/internal/observability"
	"github.com/jonathan/company-insights/internal/server/middleware"
	"github.com/jonathan/company-insights/internal/server/ratelimit"
	"github.com/jonathan/company-insights/internal/types"
)

// Analyzer produces a company analysis for a URL.
type Analyzer interface {
	Analyze(ctx context.Context, url string, questions []string) (*types.AnalysisResult, error)
}

// Conversationalist answers a follow-up question about a URL.
type Conversationalist interface {
	Converse(ctx context.Context, url, query string, history []types.HistoryTurn) (*types.ConversationExchange, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	analyzer    Analyzer
	agent       Conversationalist
	rateLimiter *ratelimit.Limiter
	logger      *zap.Logger
}

// Config holds server configuration
type Config struct {
	Port      int
	SecretKey string
	// RateLimit configures the limiter; nil means ratelimit.LoadConfig with the default rates.
	RateLimit *ratelimit.Config
	Logger    *zap.Logger
}

// Default endpoint rates.
const (
	DefaultAnalyzeRate      = "5/minute"
	DefaultConversationRate = "10/minute"
)

// New creates a new server instance
func New(cfg Config, analyzer Analyzer, agent Conversationalist) (*Server, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key is required")
	}
	if analyzer == nil || agent == nil {
		return nil, errors.New("analyzer and conversation agent are required")
	}

	rateConfig := cfg.RateLimit
	if rateConfig == nil {
		var err error
		rateConfig, err = ratelimit.LoadConfig(DefaultAnalyzeRate, DefaultConversationRate)
		if err != nil {
			return nil, fmt.Errorf("failed to load rate limit config: %w", err)
		}
	}

	s := &Server{
		analyzer:    analyzer,
		agent:       agent,
		rateLimiter: ratelimit.NewLimiter(rateConfig),
		logger:      cfg.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	protect := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.NewStaticToken(cfg.SecretKey))(s.withRateLimit(h))
	}

	// Setup router
	mux := http.NewServeMux()
	mux.Handle("POST /analyze-website", protect(s.handleAnalyzeWebsite))
	mux.Handle("POST /conversations", protect(s.handleConversations))
	mux.HandleFunc("GET /health", s.handleHealth)

	s.handler = s.withLogging(s.withCORS(mux))

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: an analysis runs until its LLM calls return or the client goes away.
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.Close()
	s.logger.Info("server stopped")
	return nil
}

// Close stops the rate limiter cleanup goroutine.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// withCORS allows any origin, method and header, with credentials.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Credentialed requests need an explicit origin.
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
				w.Header().Set("Access-Control-Allow-Headers", requested)
			} else {
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			}
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging assigns a request ID and logs each request
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := observability.WithRequestID(r.Context(), requestID)
		logger := observability.LoggerFromContext(ctx, s.logger)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]any{
		"detail":      message,
		"status_code": status,
	})
}

// extractClientID extracts the client identifier from the request.
// Uses the IP address from RemoteAddr; forwarding headers are not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	message := "Rate limit exceeded"
	if info.Endpoint != nil && info.Endpoint.Limit > 0 {
		message = "Rate limit exceeded: " + info.Endpoint.String()
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds())
		if time.Duration(seconds)*time.Second < info.RetryAfter {
			seconds++
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	observability.LoggerFromContext(r.Context(), s.logger).Warn("rate limit exceeded",
		zap.String("path", r.URL.Path),
		zap.String("client", s.extractClientID(r)),
		zap.Int("limit", info.Limit),
		zap.Time("reset_at", info.ResetTime))

	s.errorResponse(w, http.StatusTooManyRequests, message)
}

// wantsJSON reports whether the request declares a JSON body.
func wantsJSON(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	return contentType == "" || strings.HasPrefix(strings.ToLower(contentType), "application/json")
}
