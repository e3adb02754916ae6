package types

import (
	"github.com/go-playground/validator/v10"
)

// AnalysisRequest represents the body of POST /analyze-website.
type AnalysisRequest struct {
	URL       string   `json:"url" validate:"required"`
	Questions []string `json:"questions,omitempty" validate:"omitempty,dive,required"`
}

// ConversationRequest represents the body of POST /conversations.
type ConversationRequest struct {
	URL                 string        `json:"url" validate:"required"`
	Query               string        `json:"query" validate:"required"`
	ConversationHistory []HistoryTurn `json:"conversation_history,omitempty"`
}

// Validate validates the AnalysisRequest using the validator.
func (r *AnalysisRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the ConversationRequest using the validator.
func (r *ConversationRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
