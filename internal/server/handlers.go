package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/jonathan/company-insights/internal/observability"
	"github.com/jonathan/company-insights/internal/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// handleAnalyzeWebsite runs a full website analysis
func (s *Server) handleAnalyzeWebsite(w http.ResponseWriter, r *http.Request) {
	var req types.AnalysisRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.handleError(w, r, newValidationError(err))
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req.URL, req.Questions)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, result)
}

// handleConversations answers a follow-up question about a website
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	var req types.ConversationRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.handleError(w, r, newValidationError(err))
		return
	}

	exchange, err := s.agent.Converse(r.Context(), req.URL, req.Query, req.ConversationHistory)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, exchange)
}

// decodeRequest reads a JSON request body into dst.
func (s *Server) decodeRequest(r *http.Request, dst any) error {
	if !wantsJSON(r) {
		return &ErrValidation{Field: "Content-Type", Message: "expected application/json"}
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &ErrValidation{Message: "request body is required"}
		}
		return newValidationError(err)
	}
	return nil
}

// handleError maps err to a status and writes the error body.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	logger := observability.LoggerFromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	} else {
		logger.Info("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	s.errorResponse(w, status, ErrorDetail(err))
}
