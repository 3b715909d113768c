// Package session provides the session stores selected by SESSION_BACKEND.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-chat/internal/core/domain"
)

func notFound(id string) error {
	return domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id=%s", id))
}

// prepare assigns a fresh identifier and creation time.
func prepare(s domain.Session) domain.Session {
	s.ID = uuid.NewString()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return s
}

// MemoryStore keeps every session for the life of the process. Nothing is
// ever evicted.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.Session)}
}

func (s *MemoryStore) Put(_ context.Context, session domain.Session) (string, error) {
	session = prepare(session)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return &session, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
