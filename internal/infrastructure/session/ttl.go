package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kirillkom/document-chat/internal/core/domain"
)

// TTLStore expires sessions a fixed time after creation.
type TTLStore struct {
	cache *cache.Cache
}

func NewTTLStore(ttl, cleanupInterval time.Duration) *TTLStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &TTLStore{cache: cache.New(ttl, cleanupInterval)}
}

func (s *TTLStore) Put(_ context.Context, session domain.Session) (string, error) {
	session = prepare(session)
	s.cache.Set(session.ID, session, cache.DefaultExpiration)
	return session.ID, nil
}

func (s *TTLStore) Get(_ context.Context, id string) (*domain.Session, error) {
	x, found := s.cache.Get(id)
	if !found {
		return nil, notFound(id)
	}
	session := x.(domain.Session)
	return &session, nil
}

func (s *TTLStore) Len() int {
	return s.cache.ItemCount()
}
