package tokenstore

import (
	"context"
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/cache"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

// Memory keeps sessions in process memory. Sessions are lost on restart.
type Memory struct {
	items *cache.InMemory[domain.Session]
}

var _ port.SessionStorage = (*Memory)(nil)

// NewMemory creates a store whose entries live for ttl after the last access.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{items: cache.New[domain.Session](ttl, cache.WithSlidingExpiry[domain.Session]())}
}

func (m *Memory) Load(_ context.Context, key string) (*domain.Session, error) {
	s, ok := m.items.Get(key)
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) Save(_ context.Context, key string, s *domain.Session) error {
	m.items.Set(key, *s)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

// Close stops the expiry goroutine.
func (m *Memory) Close() error {
	m.items.Close()
	return nil
}
