package types

// HistoryTurn is one question-and-answer exchange, replayed to the model oldest first.
type HistoryTurn struct {
	User  string `json:"user"`
	Agent string `json:"agent"`
}

// ConversationReply is the structured reply the model produces in chat mode.
type ConversationReply struct {
	AgentResponse  string   `json:"agent_response"`
	ContextSources []string `json:"context_sources"`
}

// ConversationExchange is the response for a single conversational query.
type ConversationExchange struct {
	URL            string   `json:"url"`
	UserQuery      string   `json:"user_query"`
	AgentResponse  string   `json:"agent_response"`
	ContextSources []string `json:"context_sources"`
}
