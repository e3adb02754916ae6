// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import (
	"encoding/json"
	"strings"

	"github.com/jonathan/company-insights/internal/schemas"
)

// CleanJSONBlock removes markdown code block wrappers from JSON responses.
// LLMs often wrap JSON in ```json ... ``` blocks even when instructed not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	// Handle ```json ... ``` blocks
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		return text
	}

	// Handle generic ``` ... ``` blocks
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip potential language identifier on first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
		return text
	}

	return text
}

// DecodeJSON parses a structured model reply into out.
// Text that is not JSON yields a *ResponseFormatError; JSON that does not match def
// yields a *schemas.ValidationError. A nil def skips validation.
func DecodeJSON(text string, def *schemas.Definition, out any) error {
	cleaned := CleanJSONBlock(text)

	var probe any
	if err := json.Unmarshal([]byte(cleaned), &probe); err != nil {
		return &ResponseFormatError{Content: text, Cause: err}
	}

	if def != nil {
		if err := def.Validate(cleaned); err != nil {
			return err
		}
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &ResponseFormatError{Content: text, Cause: err}
	}
	return nil
}
