package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

// SessionOptions tunes token handling for a SessionClient.
type SessionOptions struct {
	// JWTSecret verifies recovered access tokens (HS256). Empty means claims
	// are read without signature checks.
	JWTSecret           string
	RefreshMargin       time.Duration
	AutoRefreshInterval time.Duration
}

// SessionClient is the Session Store as seen by one browser session. It
// owns that session's tokens, persists them under key and pushes lifecycle
// events to its listeners.
type SessionClient struct {
	client  *Client
	storage port.SessionStorage
	key     string
	opts    SessionOptions
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex // serializes token reads, refreshes and writes
	session *domain.Session
	loaded  bool

	lmu       sync.Mutex
	listeners map[uint64]func(domain.AuthEvent)
	nextID    uint64
}

var (
	_ port.SessionStore  = (*SessionClient)(nil)
	_ port.UserDataStore = (*SessionClient)(nil)
	_ port.RecordStore   = (*SessionClient)(nil)
)

// NewSessionClient binds the shared client to one browser session.
func NewSessionClient(client *Client, storage port.SessionStorage, key string, opts SessionOptions, logger *zap.Logger) *SessionClient {
	if opts.AutoRefreshInterval <= 0 {
		opts.AutoRefreshInterval = 30 * time.Second
	}
	return &SessionClient{
		client:    client,
		storage:   storage,
		key:       key,
		opts:      opts,
		logger:    logger.With(zap.String("component", "session_store")),
		now:       time.Now,
		listeners: make(map[uint64]func(domain.AuthEvent)),
	}
}

// ============================================================
// Session lifecycle
// ============================================================

// GetSession returns the current session, refreshing it first when the
// access token is inside the refresh margin. A rejected refresh token clears
// the persisted session and yields nil without error.
func (s *SessionClient) GetSession(ctx context.Context) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "SessionStore.GetSession")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}
	if s.session == nil {
		return nil, nil
	}

	if s.session.Expired(s.now(), s.opts.RefreshMargin) {
		if err := s.refreshLocked(ctx); err != nil {
			if isRejected(err) {
				s.logger.Info("refresh token rejected, clearing session", zap.Error(err))
				s.clearLocked(ctx)
				return nil, nil
			}
			return nil, err
		}
	}

	cp := *s.session
	return &cp, nil
}

// loadLocked recovers persisted tokens on first use.
func (s *SessionClient) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	stored, err := s.storage.Load(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load persisted session: %w", err)
	}
	s.loaded = true

	if stored == nil {
		return nil
	}
	if err := s.applyClaims(stored); err != nil {
		s.logger.Warn("discarding persisted session with unreadable token", zap.Error(err))
		s.clearLocked(ctx)
		return nil
	}
	s.session = stored
	return nil
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// applyClaims checks the access token and fills identity and expiry from it
// when the stored record lacks them. Expired tokens are accepted here; the
// caller refreshes them.
func (s *SessionClient) applyClaims(sess *domain.Session) error {
	claims := &accessClaims{}
	if s.opts.JWTSecret != "" {
		_, err := jwt.ParseWithClaims(sess.AccessToken, claims, func(*jwt.Token) (any, error) {
			return []byte(s.opts.JWTSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
		if err != nil {
			return err
		}
	} else if _, _, err := jwt.NewParser().ParseUnverified(sess.AccessToken, claims); err != nil {
		return err
	}

	if claims.Subject == "" {
		return errors.New("access token has no subject")
	}
	if sess.User.ID == "" {
		sess.User.ID = claims.Subject
	}
	if sess.User.Email == "" {
		sess.User.Email = claims.Email
	}
	if sess.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return nil
}

func (s *SessionClient) refreshLocked(ctx context.Context) error {
	refreshed, err := s.client.RefreshSession(ctx, s.session.RefreshToken)
	if err != nil {
		return err
	}
	if refreshed.User.ID == "" {
		refreshed.User = s.session.User
	}
	if err := s.storage.Save(ctx, s.key, refreshed); err != nil {
		return fmt.Errorf("persist refreshed session: %w", err)
	}
	s.session = refreshed
	return nil
}

func (s *SessionClient) clearLocked(ctx context.Context) {
	s.session = nil
	if err := s.storage.Delete(ctx, s.key); err != nil {
		s.logger.Warn("failed to delete persisted session", zap.Error(err))
	}
}

// isRejected reports a credential rejection, as opposed to an outage.
func isRejected(err error) bool {
	var apiErr *domain.ErrAuthAPI
	return errors.As(err, &apiErr) && apiErr.Credential()
}

// SignInWithPassword authenticates and emits SIGNED_IN on success.
func (s *SessionClient) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	sess, err := s.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.storage.Save(ctx, s.key, sess); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s.session, s.loaded = sess, true
	s.mu.Unlock()

	s.emit(domain.AuthEvent{Type: domain.EventSignedIn, Session: sess})
	cp := *sess
	return &cp, nil
}

// SignUp registers the user. When the project auto-confirms, the returned
// session is adopted and SIGNED_IN is emitted.
func (s *SessionClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) error {
	sess, err := s.client.SignUp(ctx, email, password, metadata)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}

	s.mu.Lock()
	if err := s.storage.Save(ctx, s.key, sess); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	s.session, s.loaded = sess, true
	s.mu.Unlock()

	s.emit(domain.AuthEvent{Type: domain.EventSignedIn, Session: sess})
	return nil
}

// SignOut revokes the session remotely, forgets it locally and emits
// SIGNED_OUT.
func (s *SessionClient) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.session != nil {
		if err := s.client.SignOut(ctx, s.session.AccessToken); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.clearLocked(ctx)
	s.mu.Unlock()

	s.emit(domain.AuthEvent{Type: domain.EventSignedOut})
	return nil
}

// StartAutoRefresh refreshes the access token in the background until ctx
// is done. A rejected refresh ends the session with SIGNED_OUT.
func (s *SessionClient) StartAutoRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.opts.AutoRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.autoRefresh(ctx)
			}
		}
	}()
}

func (s *SessionClient) autoRefresh(ctx context.Context) {
	s.mu.Lock()
	if s.session == nil || !s.session.Expired(s.now(), s.opts.RefreshMargin) {
		s.mu.Unlock()
		return
	}

	err := s.refreshLocked(ctx)
	var event *domain.AuthEvent
	switch {
	case err == nil:
		cp := *s.session
		event = &domain.AuthEvent{Type: domain.EventTokenRefreshed, Session: &cp}
	case isRejected(err):
		s.logger.Info("session expired externally", zap.Error(err))
		s.clearLocked(ctx)
		event = &domain.AuthEvent{Type: domain.EventSignedOut}
	default:
		s.logger.Warn("token refresh failed, will retry", zap.Error(err))
	}
	s.mu.Unlock()

	if event != nil {
		s.emit(*event)
	}
}

// accessToken returns the current token without refreshing. Empty when
// signed out.
func (s *SessionClient) accessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// ============================================================
// Listeners
// ============================================================

type subscription struct {
	once sync.Once
	fn   func()
}

func (u *subscription) Unsubscribe() { u.once.Do(u.fn) }

// OnAuthStateChange registers fn for lifecycle events. fn runs on the
// emitting goroutine and must not block.
func (s *SessionClient) OnAuthStateChange(fn func(domain.AuthEvent)) (port.Subscription, error) {
	if fn == nil {
		return nil, errors.New("nil auth state listener")
	}

	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return &subscription{fn: func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}}, nil
}

func (s *SessionClient) emit(event domain.AuthEvent) {
	s.lmu.Lock()
	fns := make([]func(domain.AuthEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

// ============================================================
// Row access with the session's token
// ============================================================

func (s *SessionClient) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.client.GetProfile(ctx, s.accessToken(), userID)
}

func (s *SessionClient) ListRoles(ctx context.Context, userID string) (domain.RoleSet, error) {
	return s.client.ListRoles(ctx, s.accessToken(), userID)
}

func (s *SessionClient) Select(ctx context.Context, q domain.RecordQuery) ([]json.RawMessage, error) {
	return s.client.Select(ctx, s.accessToken(), q)
}

func (s *SessionClient) Count(ctx context.Context, table domain.Table, filters map[string]string) (int, error) {
	return s.client.Count(ctx, s.accessToken(), table, filters)
}

func (s *SessionClient) Insert(ctx context.Context, table domain.Table, row map[string]any) (json.RawMessage, error) {
	return s.client.Insert(ctx, s.accessToken(), table, row)
}

func (s *SessionClient) Update(ctx context.Context, table domain.Table, id string, changes map[string]any) (json.RawMessage, error) {
	return s.client.Update(ctx, s.accessToken(), table, id, changes)
}

func (s *SessionClient) Delete(ctx context.Context, table domain.Table, id string) error {
	return s.client.Delete(ctx, s.accessToken(), table, id)
}
