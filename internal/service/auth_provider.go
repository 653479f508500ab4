package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/observability"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

// SessionBackend is everything a Provider needs from the Session Store,
// bound to one browser session.
type SessionBackend interface {
	port.SessionStore
	port.UserDataStore
	port.RecordStore
}

// ProviderConfig carries the auth tunables shared by all providers.
type ProviderConfig struct {
	Bootstrap     BootstrapConfig
	UserDataRate  float64
	UserDataBurst int
}

// Provider is the auth context of one browser session: its AuthState,
// navigation, notices, stream and the bootstrap/subscription that keep the
// state current.
type Provider struct {
	ID      string
	State   *AuthStateStore
	Nav     *Navigator
	Notices *NoticeQueue
	Events  *EventHub
	Actions *AuthActions
	Records port.RecordStore

	sessions     port.SessionStore
	bootstrap    *Bootstrapper
	subscription *AuthSubscription
	metrics      *observability.Metrics
	logger       *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	release   func()
	closeOnce sync.Once
}

// NewProvider wires the auth components of one browser session. Nothing
// runs until Mount.
func NewProvider(id string, backend SessionBackend, initialPath string, cfg ProviderConfig, metrics *observability.Metrics, logger *zap.Logger) *Provider {
	logger = logger.With(zap.String("sid", shortID(id)))

	events := NewEventHub()
	state := NewAuthStateStore(func(st domain.AuthState) {
		events.Publish(domain.ClientEvent{Type: domain.ClientEventState, State: &st})
	})
	nav := NewNavigator(initialPath, func(path string) {
		events.Publish(domain.ClientEvent{Type: domain.ClientEventNavigate, Path: path})
	})
	notices := NewNoticeQueue(func(n domain.Notice) {
		events.Publish(domain.ClientEvent{Type: domain.ClientEventNotice, Notice: &n})
	})

	var limiter *rate.Limiter
	if cfg.UserDataRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.UserDataRate), max(cfg.UserDataBurst, 1))
	}
	loader := NewUserDataLoader(backend, limiter, logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		ID:           id,
		State:        state,
		Nav:          nav,
		Notices:      notices,
		Events:       events,
		Actions:      NewAuthActions(backend, notices, logger),
		Records:      backend,
		sessions:     backend,
		bootstrap:    NewBootstrapper(backend, loader, state, nav, notices, metrics, cfg.Bootstrap, logger),
		subscription: NewAuthSubscription(backend, loader, state, nav, notices, metrics, logger),
		metrics:      metrics,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Mount subscribes to session events, starts token auto-refresh and runs
// the bootstrap in the background.
func (p *Provider) Mount() error {
	release, err := p.subscription.Subscribe(p.ctx)
	if err != nil {
		return err
	}
	p.release = release

	p.sessions.StartAutoRefresh(p.ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.bootstrap.Initialize(p.ctx); err != nil && p.ctx.Err() == nil {
			p.logger.Error("auth bootstrap failed", zap.Error(err))
		}
	}()

	p.metrics.ProviderStarted()
	p.logger.Debug("auth provider mounted", zap.String("path", p.Nav.CurrentPath()))
	return nil
}

// Close tears the provider down: pending retries are cancelled, the
// listener is released and open streams end.
func (p *Provider) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		if p.release != nil {
			p.release()
			p.metrics.ProviderStopped()
		}
		p.subscription.Wait()
		p.wg.Wait()
		p.State.Close()
		p.Events.Close()
		p.logger.Debug("auth provider closed")
	})
}

// Snapshot is the latest published AuthState.
func (p *Provider) Snapshot() domain.AuthState {
	return p.State.Snapshot()
}

// HasRole is a pure membership test on the current roles.
func (p *Provider) HasRole(r domain.Role) bool {
	return p.State.Snapshot().HasRole(r)
}

// WaitSettled blocks until the state is no longer loading or timeout passes.
func (p *Provider) WaitSettled(ctx context.Context, timeout time.Duration) domain.AuthState {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	st, _ := p.State.WaitFor(ctx, func(s domain.AuthState) bool { return !s.IsLoading })
	return st
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
