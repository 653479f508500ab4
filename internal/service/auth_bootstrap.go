// Package service holds the per-browser auth core (state coordinator,
// bootstrap, subscription, actions) and the dashboard services built on it.
package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/observability"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

var authTracer = otel.Tracer("service/auth")

var errSuperseded = errors.New("bootstrap superseded")

// BootstrapConfig bounds the session lookup retries.
type BootstrapConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// Bootstrapper establishes the initial AuthState once per browser session.
type Bootstrapper struct {
	sessions port.SessionStore
	loader   *UserDataLoader
	state    *AuthStateStore
	nav      port.Navigator
	notifier port.Notifier
	metrics  *observability.Metrics
	cfg      BootstrapConfig
	logger   *zap.Logger

	attempted atomic.Bool
}

func NewBootstrapper(
	sessions port.SessionStore,
	loader *UserDataLoader,
	state *AuthStateStore,
	nav port.Navigator,
	notifier port.Notifier,
	metrics *observability.Metrics,
	cfg BootstrapConfig,
	logger *zap.Logger,
) *Bootstrapper {
	return &Bootstrapper{
		sessions: sessions,
		loader:   loader,
		state:    state,
		nav:      nav,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
}

// Initialize looks up the existing session, loads the user's profile and
// roles and decides the first navigation. Only the first call does work.
// A bootstrap superseded by a newer session event, or whose ctx is
// cancelled, stops without writing the state.
func (b *Bootstrapper) Initialize(ctx context.Context) error {
	if !b.attempted.CompareAndSwap(false, true) {
		return nil
	}

	ctx, span := authTracer.Start(ctx, "Bootstrapper.Initialize")
	defer span.End()

	epoch, err := b.state.Begin(ctx)
	if err != nil {
		return err
	}

	var sess *domain.Session
	err = resilience.RetryFixed(ctx, b.cfg.MaxAttempts, b.cfg.RetryDelay, func(attempt int) error {
		if !b.state.IsCurrent(epoch) {
			return resilience.Permanent(errSuperseded)
		}

		s, err := b.sessions.GetSession(ctx)
		if err != nil {
			b.logger.Warn("session lookup failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", b.cfg.MaxAttempts),
				zap.Error(err),
			)
			if attempt < b.cfg.MaxAttempts {
				b.metrics.RecordBootstrap(observability.BootstrapRetry)
			}
			return err
		}
		sess = s
		return nil
	})

	switch {
	case errors.Is(err, errSuperseded):
		b.superseded()
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		b.logger.Error("auth bootstrap gave up", zap.Int("attempts", b.cfg.MaxAttempts), zap.Error(err))
		if b.commit(ctx, epoch, domain.SignedOutState()) {
			b.metrics.RecordBootstrap(observability.BootstrapFailed)
			b.notifier.Notify(domain.NoticeError, domain.MsgBootstrapFailed)
		}
		return nil
	}

	if sess == nil {
		span.SetAttributes(attribute.Bool("session.found", false))
		if b.commit(ctx, epoch, domain.SignedOutState()) {
			b.metrics.RecordBootstrap(observability.BootstrapSuccess)
			if b.nav.CurrentPath() != domain.PathLogin {
				b.nav.Navigate(domain.PathLogin)
			}
		}
		return ctx.Err()
	}

	span.SetAttributes(attribute.Bool("session.found", true), attribute.String("user.id", sess.User.ID))
	profile, roles := b.loader.Load(ctx, sess.User.ID)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if b.commit(ctx, epoch, domain.SignedInState(sess.User, profile, roles)) {
		b.metrics.RecordBootstrap(observability.BootstrapSuccess)
		if b.nav.CurrentPath() == domain.PathLogin {
			b.nav.Navigate(domain.PathDashboard)
		}
	}
	return ctx.Err()
}

// commit reports whether the state was written; a lost race is counted.
func (b *Bootstrapper) commit(ctx context.Context, epoch Epoch, st domain.AuthState) bool {
	ok, err := b.state.Commit(ctx, epoch, st)
	if err != nil {
		b.logger.Debug("bootstrap commit skipped", zap.Error(err))
		return false
	}
	if !ok {
		b.superseded()
	}
	return ok
}

func (b *Bootstrapper) superseded() {
	b.metrics.RecordBootstrap(observability.BootstrapSuperseded)
	b.logger.Info("auth bootstrap superseded by a newer session event")
}
