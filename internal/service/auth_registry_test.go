package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/observability"
	"github.com/boddenberg/hr-admin-bfa-go/internal/service"

	"go.uber.org/zap"
)

func newRegistry(ttl time.Duration, backend *mockBackend, metrics *observability.Metrics) *service.ProviderRegistry {
	cfg := service.ProviderConfig{
		Bootstrap:     service.BootstrapConfig{MaxAttempts: 2, RetryDelay: 10 * time.Millisecond},
		UserDataRate:  100,
		UserDataBurst: 10,
	}
	return service.NewProviderRegistry(ttl, func(string) service.SessionBackend { return backend }, cfg, metrics, zap.NewNop())
}

func TestProviderRegistry_OneProviderPerSession(t *testing.T) {
	metrics := observability.NewMetrics()
	backend := newMockBackend()
	backend.roles = domain.RoleSet{domain.RoleEmployee}
	backend.getSession = func(context.Context, int) (*domain.Session, error) {
		return &domain.Session{User: domain.User{ID: "u-1"}}, nil
	}
	reg := newRegistry(time.Minute, backend, metrics)
	defer reg.Close()

	p1, err := reg.Get("sid-1", domain.PathLogin)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	p2, _ := reg.Get("sid-1", "/other")
	if p1 != p2 {
		t.Fatal("expected the same provider for one session")
	}

	st := p1.WaitSettled(context.Background(), time.Second)
	if st.User == nil || !p1.HasRole(domain.RoleEmployee) {
		t.Errorf("expected bootstrapped employee, got %+v", st)
	}

	snap := metrics.GetAuthSnapshot()
	if snap.ActiveProviders != 1 || snap.ProviderCacheHit != 0.5 {
		t.Errorf("unexpected metrics: %+v", snap)
	}
}

func TestProviderRegistry_CloseTearsDownProviders(t *testing.T) {
	metrics := observability.NewMetrics()
	backend := newMockBackend()
	reg := newRegistry(time.Minute, backend, metrics)

	p, _ := reg.Get("sid-1", "/dashboard")
	events, _ := p.Events.Subscribe(16)

	reg.Close()

	for range events {
	}
	if got := backend.unsubscribes.Load(); got != 1 {
		t.Errorf("expected listener released once, got %d", got)
	}
	if metrics.GetAuthSnapshot().ActiveProviders != 0 {
		t.Error("expected no active providers after close")
	}
}

func TestProviderRegistry_IdleEviction(t *testing.T) {
	backend := newMockBackend()
	reg := newRegistry(20*time.Millisecond, backend, observability.NewMetrics())
	defer reg.Close()

	reg.Get("sid-1", "/dashboard")

	deadline := time.Now().Add(time.Second)
	for reg.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if reg.Len() != 0 {
		t.Fatal("idle provider was not evicted")
	}
	if _, ok := reg.Lookup("sid-1"); ok {
		t.Error("evicted provider must not be found")
	}
}
