package observability_test

import (
	"testing"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/observability"
)

func TestGetAuthSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.RecordBootstrap(observability.BootstrapRetry)
	m.RecordBootstrap(observability.BootstrapSuccess)
	m.RecordAuthEvent(domain.EventSignedIn)
	m.RecordGateDecision(domain.GateAllow)
	m.RecordGateDecision(domain.GateRedirectLogin)
	m.IncrCacheHit("providers")
	m.IncrCacheMiss("providers")
	m.ProviderStarted()
	m.ProviderStarted()
	m.ProviderStopped()

	snap := m.GetAuthSnapshot()

	if snap.BootstrapRetried != 1 || snap.BootstrapSucceeded != 1 {
		t.Errorf("unexpected bootstrap counters: %+v", snap)
	}
	if snap.SignedInEvents != 1 || snap.SignedOutEvents != 0 {
		t.Errorf("unexpected event counters: %+v", snap)
	}
	if snap.GateAllowed != 1 || snap.GateRedirected != 1 || snap.GateLoading != 0 {
		t.Errorf("unexpected gate counters: %+v", snap)
	}
	if snap.ActiveProviders != 1 {
		t.Errorf("expected 1 active provider, got %d", snap.ActiveProviders)
	}
	if snap.ProviderCacheHit != 0.5 {
		t.Errorf("expected hit rate 0.5, got %f", snap.ProviderCacheHit)
	}
}

func TestNewMetrics_Twice(t *testing.T) {
	// private registries: creating two must not panic
	_ = observability.NewMetrics()
	_ = observability.NewMetrics()
}
