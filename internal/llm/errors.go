package llm

import "fmt"

// ResponseFormatError is returned when a model reply that should be JSON cannot be parsed.
type ResponseFormatError struct {
	Content string
	Cause   error
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("failed to parse LLM response: %v", e.Cause)
}

func (e *ResponseFormatError) Unwrap() error {
	return e.Cause
}
