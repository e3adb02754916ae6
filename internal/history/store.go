// Package history keeps the per-URL question and answer log that grounds follow-up conversations.
package history

import (
	"sync"

	"github.com/jonathan/company-insights/internal/types"
)

// Store maps a URL to its ordered conversation turns for the lifetime of the process.
// Each call is safe for concurrent use; a Get followed by an Append is not atomic.
type Store struct {
	mu   sync.RWMutex
	logs map[string][]types.HistoryTurn
}

// NewStore creates an empty history store.
func NewStore() *Store {
	return &Store{logs: make(map[string][]types.HistoryTurn)}
}

// Append adds turns to the end of the log for url.
func (s *Store) Append(url string, turns ...types.HistoryTurn) {
	if len(turns) == 0 {
		return
	}
	s.mu.Lock()
	s.logs[url] = append(s.logs[url], turns...)
	s.mu.Unlock()
}

// Get returns a copy of the turns recorded for url, oldest first.
func (s *Store) Get(url string) []types.HistoryTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.logs[url]
	if len(turns) == 0 {
		return nil
	}
	out := make([]types.HistoryTurn, len(turns))
	copy(out, turns)
	return out
}

// Len returns the number of turns recorded for url.
func (s *Store) Len(url string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[url])
}
