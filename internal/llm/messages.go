package llm

import (
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// Role identifies the author of a chat message.
type Role string

// Chat roles
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat transcript.
type Message struct {
	Role    Role
	Content string
}

// systemAck is the model turn recorded after each system message.
const systemAck = "Understood."

// ErrEmptyConversation is returned when a chat has no messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

// BuildChatHistory converts a transcript into Gemini prior turns plus the final message.
// Gemini chats have no system role, so a system message becomes a user turn followed by
// a model acknowledgement. The last message is returned separately to be sent as the new turn.
func BuildChatHistory(messages []Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", ErrEmptyConversation
	}

	history := make([]*genai.Content, 0, len(messages))
	for i, msg := range messages[:len(messages)-1] {
		switch msg.Role {
		case RoleSystem:
			history = append(history, textContent("user", msg.Content), textContent("model", systemAck))
		case RoleUser:
			history = append(history, textContent("user", msg.Content))
		case RoleAssistant:
			history = append(history, textContent("model", msg.Content))
		default:
			return nil, "", fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
	}

	return history, messages[len(messages)-1].Content, nil
}

func textContent(role, text string) *genai.Content {
	return &genai.Content{Role: role, Parts: []genai.Part{genai.Text(text)}}
}
