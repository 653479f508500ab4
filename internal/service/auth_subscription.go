package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/observability"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

// AuthSubscription keeps AuthState in step with session lifecycle events
// pushed by the Session Store. Events are handled one at a time, in order.
type AuthSubscription struct {
	sessions port.SessionStore
	loader   *UserDataLoader
	state    *AuthStateStore
	nav      port.Navigator
	notifier port.Notifier
	metrics  *observability.Metrics
	logger   *zap.Logger

	wg sync.WaitGroup
}

func NewAuthSubscription(
	sessions port.SessionStore,
	loader *UserDataLoader,
	state *AuthStateStore,
	nav port.Navigator,
	notifier port.Notifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AuthSubscription {
	return &AuthSubscription{
		sessions: sessions,
		loader:   loader,
		state:    state,
		nav:      nav,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// eventQueue never blocks the Session Store's emitting goroutine.
type eventQueue struct {
	mu     sync.Mutex
	items  []domain.AuthEvent
	signal chan struct{}
}

func (q *eventQueue) push(e domain.AuthEvent) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) take() []domain.AuthEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Subscribe registers the listener and starts the handler goroutine. The
// returned release is idempotent; it also runs when ctx ends or the handler
// goroutine exits, so the listener never outlives its owner.
func (s *AuthSubscription) Subscribe(ctx context.Context) (release func(), err error) {
	var alive atomic.Bool
	alive.Store(true)

	q := &eventQueue{signal: make(chan struct{}, 1)}
	sub, err := s.sessions.OnAuthStateChange(func(e domain.AuthEvent) {
		if alive.Load() {
			q.push(e)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to auth state changes: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	release = func() {
		once.Do(func() {
			alive.Store(false)
			cancel()
			sub.Unsubscribe()
		})
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer release()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("auth event handler panicked", zap.Any("panic", r))
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-q.signal:
			}
			for _, e := range q.take() {
				if !alive.Load() {
					return
				}
				s.handle(ctx, e)
			}
		}
	}()

	return release, nil
}

// Wait blocks until the handler goroutine has exited.
func (s *AuthSubscription) Wait() {
	s.wg.Wait()
}

func (s *AuthSubscription) handle(ctx context.Context, e domain.AuthEvent) {
	s.metrics.RecordAuthEvent(e.Type)

	var err error
	switch e.Type {
	case domain.EventSignedIn:
		err = s.onSignedIn(ctx, e)
	case domain.EventSignedOut:
		err = s.onSignedOut(ctx)
	default:
		s.logger.Debug("ignoring auth event", zap.String("event", string(e.Type)))
		return
	}

	if err == nil || ctx.Err() != nil || errors.Is(err, domain.ErrStateClosed) {
		return
	}
	s.logger.Error("auth event handling failed", zap.String("event", string(e.Type)), zap.Error(err))
	s.notifier.Notify(domain.NoticeError, domain.MsgAuthEventFailed)
}

func (s *AuthSubscription) onSignedIn(ctx context.Context, e domain.AuthEvent) (err error) {
	ctx, span := authTracer.Start(ctx, "AuthSubscription.SignedIn")
	defer span.End()

	if e.Session == nil || e.Session.User.ID == "" {
		return errors.New("SIGNED_IN event without a session")
	}

	epoch, err := s.state.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := s.state.MarkLoading(ctx, epoch); err != nil {
		return err
	}
	defer func() {
		// a failed re-fetch must not leave the gate stuck on loading
		if err != nil && ctx.Err() == nil {
			st := s.state.Snapshot()
			_, _ = s.state.Commit(context.WithoutCancel(ctx), epoch, st)
		}
	}()

	profile, roles := s.loader.Load(ctx, e.Session.User.ID)
	if err := ctx.Err(); err != nil {
		return err
	}

	committed, err := s.state.Commit(ctx, epoch, domain.SignedInState(e.Session.User, profile, roles))
	if err != nil {
		return err
	}
	if committed {
		s.logger.Info("signed in", zap.String("user_id", e.Session.User.ID), zap.Strings("roles", roles.Strings()))
		s.nav.Navigate(domain.PathDashboard)
	}
	return nil
}

func (s *AuthSubscription) onSignedOut(ctx context.Context) error {
	epoch, err := s.state.Begin(ctx)
	if err != nil {
		return err
	}
	committed, err := s.state.Commit(ctx, epoch, domain.SignedOutState())
	if err != nil {
		return err
	}
	if committed {
		s.logger.Info("signed out")
		s.nav.Navigate(domain.PathLogin)
	}
	return nil
}
