// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"encoding/json"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
)

// Subscription is the handle returned by OnAuthStateChange.
// Unsubscribe must be safe to call more than once.
type Subscription interface {
	Unsubscribe()
}

// SessionStore is the hosted auth service as seen by one browser session.
type SessionStore interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*domain.Session, error)
	// OnAuthStateChange registers a push listener for lifecycle events.
	OnAuthStateChange(fn func(domain.AuthEvent)) (Subscription, error)

	// SignInWithPassword returns the new session; SIGNED_IN is emitted too.
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]any) error
	SignOut(ctx context.Context) error

	// StartAutoRefresh keeps the access token fresh until ctx is done.
	StartAutoRefresh(ctx context.Context)
}

// UserDataStore loads the per-user rows the auth core needs.
type UserDataStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	ListRoles(ctx context.Context, userID string) (domain.RoleSet, error)
}

// RecordStore issues row queries against the business tables.
type RecordStore interface {
	Select(ctx context.Context, q domain.RecordQuery) ([]json.RawMessage, error)
	Count(ctx context.Context, table domain.Table, filters map[string]string) (int, error)
	Insert(ctx context.Context, table domain.Table, row map[string]any) (json.RawMessage, error)
	Update(ctx context.Context, table domain.Table, id string, changes map[string]any) (json.RawMessage, error)
	Delete(ctx context.Context, table domain.Table, id string) error
}

// SessionStorage persists Session Store tokens per browser session.
type SessionStorage interface {
	Load(ctx context.Context, key string) (*domain.Session, error)
	Save(ctx context.Context, key string, s *domain.Session) error
	Delete(ctx context.Context, key string) error
}

// Navigator is the routing shell: auth components navigate as a side effect
// and read the current location to decide whether a redirect is needed.
type Navigator interface {
	CurrentPath() string
	Navigate(path string)
}

// Notifier shows transient user-visible messages.
type Notifier interface {
	Notify(level domain.NoticeLevel, message string)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
