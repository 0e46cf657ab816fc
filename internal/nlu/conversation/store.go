package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"

	"scrape-planner/internal/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrCorruptSession marks a stored session that can no longer be decoded.
	ErrCorruptSession = errors.New("corrupt session")
)

// Store holds session contexts by id. Implementations hand out copies, so
// callers may mutate what Get returns and persist it with Save.
type Store interface {
	Get(ctx context.Context, sessionID string) (*models.SessionContext, error)
	Save(ctx context.Context, session *models.SessionContext) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

// MemoryStore is the process-local store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.SessionContext
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.SessionContext)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*models.SessionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sc.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, session *models.SessionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.SessionID] = session.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
