package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

// --- Mocks ---

type mockSubscription struct {
	calls *atomic.Int32
}

func (m mockSubscription) Unsubscribe() { m.calls.Add(1) }

// mockSessions is a scriptable Session Store.
type mockSessions struct {
	getSession func(ctx context.Context, call int) (*domain.Session, error)
	signIn     func(email, password string) error
	signUp     func(email string) error
	signOut    func() error

	getCalls     atomic.Int32
	unsubscribes atomic.Int32

	mu       sync.Mutex
	listener func(domain.AuthEvent)
}

func (m *mockSessions) GetSession(ctx context.Context) (*domain.Session, error) {
	n := int(m.getCalls.Add(1))
	if m.getSession == nil {
		return nil, nil
	}
	return m.getSession(ctx, n)
}

func (m *mockSessions) OnAuthStateChange(fn func(domain.AuthEvent)) (port.Subscription, error) {
	m.mu.Lock()
	m.listener = fn
	m.mu.Unlock()
	return mockSubscription{calls: &m.unsubscribes}, nil
}

func (m *mockSessions) emit(e domain.AuthEvent) {
	m.mu.Lock()
	fn := m.listener
	m.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

func (m *mockSessions) SignInWithPassword(_ context.Context, email, password string) (*domain.Session, error) {
	if m.signIn != nil {
		if err := m.signIn(email, password); err != nil {
			return nil, err
		}
	}
	return &domain.Session{User: domain.User{ID: "u-1", Email: email}, AccessToken: "token"}, nil
}

func (m *mockSessions) SignUp(_ context.Context, email, _ string, _ map[string]any) error {
	if m.signUp == nil {
		return nil
	}
	return m.signUp(email)
}

func (m *mockSessions) SignOut(context.Context) error {
	if m.signOut == nil {
		return nil
	}
	return m.signOut()
}

func (m *mockSessions) StartAutoRefresh(context.Context) {}

type mockUserData struct {
	profile    *domain.Profile
	profileErr error
	roles      domain.RoleSet
	rolesErr   error
}

func (m *mockUserData) GetProfile(context.Context, string) (*domain.Profile, error) {
	return m.profile, m.profileErr
}

func (m *mockUserData) ListRoles(context.Context, string) (domain.RoleSet, error) {
	return m.roles, m.rolesErr
}

type mockRecords struct {
	mu        sync.Mutex
	lastQuery domain.RecordQuery
	counts    map[string]int
	countErr  error
	deleted   []string
}

func (m *mockRecords) Select(_ context.Context, q domain.RecordQuery) ([]json.RawMessage, error) {
	m.mu.Lock()
	m.lastQuery = q
	m.mu.Unlock()
	return []json.RawMessage{}, nil
}

func (m *mockRecords) Count(_ context.Context, table domain.Table, filters map[string]string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	key := string(table)
	if s := filters["status"]; s != "" {
		key += ":" + s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

func (m *mockRecords) Insert(_ context.Context, _ domain.Table, _ map[string]any) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"new"}`), nil
}

func (m *mockRecords) Update(_ context.Context, _ domain.Table, id string, _ map[string]any) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"` + id + `"}`), nil
}

func (m *mockRecords) Delete(_ context.Context, _ domain.Table, id string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, id)
	m.mu.Unlock()
	return nil
}

// mockBackend bundles the three stores for providers.
type mockBackend struct {
	*mockSessions
	*mockUserData
	*mockRecords
}

func newMockBackend() *mockBackend {
	return &mockBackend{&mockSessions{}, &mockUserData{}, &mockRecords{}}
}
