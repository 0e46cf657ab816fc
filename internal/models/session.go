// internal/models/session.go
package models

import "time"

// Bounds on per-session memory.
const (
	MaxHistory          = 10
	MaxPreviousIntents  = 5
	MaxPreviousEntities = 20
)

// Turn is one remembered exchange.
type Turn struct {
	UserInput string    `json:"user_input"`
	Intent    Intent    `json:"intent"`
	Entities  []Entity  `json:"entities"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionContext is the bounded, volatile memory kept for one conversation.
// A zero LastUpdated means the session was never stamped and is treated as
// expired by cleanup.
type SessionContext struct {
	SessionID           string    `json:"session_id"`
	ConversationHistory []Turn    `json:"conversation_history"`
	PreviousIntents     []Intent  `json:"previous_intents"`
	PreviousEntities    []Entity  `json:"previous_entities"`
	Topic               string    `json:"topic"`
	CreatedAt           time.Time `json:"created_at"`
	LastUpdated         time.Time `json:"last_updated"`
}

func NewSessionContext(id string, now time.Time) *SessionContext {
	return &SessionContext{
		SessionID:           id,
		ConversationHistory: []Turn{},
		PreviousIntents:     []Intent{},
		PreviousEntities:    []Entity{},
		CreatedAt:           now,
		LastUpdated:         now,
	}
}

// Remember appends a turn and evicts the oldest entries beyond each bound.
func (s *SessionContext) Remember(turn Turn) {
	s.ConversationHistory = KeepLast(append(s.ConversationHistory, turn), MaxHistory)
	s.PreviousIntents = KeepLast(append(s.PreviousIntents, *turn.Intent.Clone()), MaxPreviousIntents)
	for _, e := range turn.Entities {
		s.PreviousEntities = KeepLast(append(s.PreviousEntities, e), MaxPreviousEntities)
	}
}

// LastTurn returns the most recent history entry, if any.
func (s *SessionContext) LastTurn() (Turn, bool) {
	if len(s.ConversationHistory) == 0 {
		return Turn{}, false
	}
	return s.ConversationHistory[len(s.ConversationHistory)-1], true
}

// Clone returns a deep copy suitable for handing across a store boundary.
func (s *SessionContext) Clone() *SessionContext {
	if s == nil {
		return nil
	}
	out := *s
	out.ConversationHistory = make([]Turn, len(s.ConversationHistory))
	for i, t := range s.ConversationHistory {
		t.Intent = *t.Intent.Clone()
		t.Entities = append([]Entity{}, t.Entities...)
		out.ConversationHistory[i] = t
	}
	out.PreviousIntents = make([]Intent, len(s.PreviousIntents))
	for i := range s.PreviousIntents {
		out.PreviousIntents[i] = *s.PreviousIntents[i].Clone()
	}
	out.PreviousEntities = append([]Entity{}, s.PreviousEntities...)
	return &out
}

// KeepLast drops the oldest elements so that at most n remain.
func KeepLast[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return append([]T(nil), items[len(items)-n:]...)
}
