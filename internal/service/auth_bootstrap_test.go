package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/observability"
	"github.com/boddenberg/hr-admin-bfa-go/internal/service"

	"go.uber.org/zap"
)

type bootstrapFixture struct {
	sessions *mockSessions
	userData *mockUserData
	state    *service.AuthStateStore
	nav      *service.Navigator
	notices  *service.NoticeQueue
	metrics  *observability.Metrics
	loader   *service.UserDataLoader
	boot     *service.Bootstrapper
}

func newBootstrapFixture(t *testing.T, path string, sessions *mockSessions, userData *mockUserData, delay time.Duration) *bootstrapFixture {
	t.Helper()
	f := &bootstrapFixture{
		sessions: sessions,
		userData: userData,
		state:    service.NewAuthStateStore(nil),
		nav:      service.NewNavigator(path, nil),
		notices:  service.NewNoticeQueue(nil),
		metrics:  observability.NewMetrics(),
	}
	t.Cleanup(f.state.Close)

	f.loader = service.NewUserDataLoader(userData, nil, zap.NewNop())
	f.boot = service.NewBootstrapper(sessions, f.loader, f.state, f.nav, f.notices, f.metrics,
		service.BootstrapConfig{MaxAttempts: 2, RetryDelay: delay}, zap.NewNop())
	return f
}

func TestInitialize_NoSessionNavigatesToLogin(t *testing.T) {
	f := newBootstrapFixture(t, "/employees", &mockSessions{}, &mockUserData{}, 10*time.Millisecond)

	if err := f.boot.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	st := f.state.Snapshot()
	if st.User != nil || st.Profile != nil || len(st.Roles) != 0 || st.IsLoading {
		t.Errorf("expected {nil, nil, [], false}, got %+v", st)
	}
	if f.nav.CurrentPath() != domain.PathLogin {
		t.Errorf("expected /login, got %q", f.nav.CurrentPath())
	}
}

func TestInitialize_NoSessionAlreadyOnLogin(t *testing.T) {
	f := newBootstrapFixture(t, domain.PathLogin, &mockSessions{}, &mockUserData{}, 10*time.Millisecond)

	f.boot.Initialize(context.Background())

	if _, ok := f.nav.TakePending(domain.PathLogin); ok {
		t.Error("no navigation expected when already on /login")
	}
}

func TestInitialize_SessionOnLoginGoesToDashboard(t *testing.T) {
	first := "Ani"
	sessions := &mockSessions{getSession: func(context.Context, int) (*domain.Session, error) {
		return &domain.Session{User: domain.User{ID: "u-1", Email: "ani@example.com"}}, nil
	}}
	userData := &mockUserData{
		profile: &domain.Profile{ID: "u-1", FirstName: &first},
		roles:   domain.RoleSet{domain.RoleEmployee},
	}
	f := newBootstrapFixture(t, domain.PathLogin, sessions, userData, 10*time.Millisecond)

	if err := f.boot.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	st := f.state.Snapshot()
	if st.User == nil || st.User.ID != "u-1" || st.IsLoading {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Profile == nil || *st.Profile.FirstName != "Ani" {
		t.Errorf("expected profile, got %+v", st.Profile)
	}
	if !st.HasRole(domain.RoleEmployee) || st.HasRole(domain.RoleAdmin) {
		t.Errorf("unexpected roles: %v", st.Roles)
	}
	if f.nav.CurrentPath() != domain.PathDashboard {
		t.Errorf("expected /dashboard, got %q", f.nav.CurrentPath())
	}
}

func TestInitialize_SessionOnOtherPathStays(t *testing.T) {
	sessions := &mockSessions{getSession: func(context.Context, int) (*domain.Session, error) {
		return &domain.Session{User: domain.User{ID: "u-1"}}, nil
	}}
	f := newBootstrapFixture(t, "/clients", sessions, &mockUserData{}, 10*time.Millisecond)

	f.boot.Initialize(context.Background())

	if f.nav.CurrentPath() != "/clients" {
		t.Errorf("expected to stay on /clients, got %q", f.nav.CurrentPath())
	}
}

func TestInitialize_ProfileFailureKeepsRoles(t *testing.T) {
	sessions := &mockSessions{getSession: func(context.Context, int) (*domain.Session, error) {
		return &domain.Session{User: domain.User{ID: "u-1"}}, nil
	}}
	userData := &mockUserData{
		profileErr: errors.New("profiles unavailable"),
		roles:      domain.RoleSet{domain.RoleAdmin},
	}
	f := newBootstrapFixture(t, "/dashboard", sessions, userData, 10*time.Millisecond)

	f.boot.Initialize(context.Background())

	st := f.state.Snapshot()
	if st.Profile != nil {
		t.Errorf("expected nil profile, got %+v", st.Profile)
	}
	if !st.HasRole(domain.RoleAdmin) {
		t.Errorf("roles must survive a profile failure, got %v", st.Roles)
	}
}

func TestInitialize_RolesFailureKeepsProfile(t *testing.T) {
	sessions := &mockSessions{getSession: func(context.Context, int) (*domain.Session, error) {
		return &domain.Session{User: domain.User{ID: "u-1"}}, nil
	}}
	userData := &mockUserData{
		profile:  &domain.Profile{ID: "u-1"},
		rolesErr: errors.New("user_roles unavailable"),
	}
	f := newBootstrapFixture(t, "/dashboard", sessions, userData, 10*time.Millisecond)

	f.boot.Initialize(context.Background())

	st := f.state.Snapshot()
	if st.Profile == nil {
		t.Error("profile must survive a roles failure")
	}
	if st.Roles == nil || len(st.Roles) != 0 {
		t.Errorf("expected empty roles, got %v", st.Roles)
	}
}

func TestInitialize_RetriesThenGivesUp(t *testing.T) {
	sessions := &mockSessions{getSession: func(context.Context, int) (*domain.Session, error) {
		return nil, errors.New("network down")
	}}
	f := newBootstrapFixture(t, "/dashboard", sessions, &mockUserData{}, 10*time.Millisecond)

	if err := f.boot.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := sessions.getCalls.Load(); got != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", got)
	}
	st := f.state.Snapshot()
	if st.IsLoading || st.User != nil {
		t.Errorf("expected signed-out settled state, got %+v", st)
	}

	notices := f.notices.Drain()
	if len(notices) != 1 || notices[0].Message != domain.MsgBootstrapFailed || notices[0].Level != domain.NoticeError {
		t.Errorf("expected one failure notice, got %+v", notices)
	}

	snap := f.metrics.GetAuthSnapshot()
	if snap.BootstrapRetried != 1 || snap.BootstrapFailed != 1 {
		t.Errorf("unexpected metrics: %+v", snap)
	}
}

func TestInitialize_RecoversOnSecondAttempt(t *testing.T) {
	sessions := &mockSessions{getSession: func(_ context.Context, call int) (*domain.Session, error) {
		if call == 1 {
			return nil, errors.New("timeout")
		}
		return &domain.Session{User: domain.User{ID: "u-1"}}, nil
	}}
	f := newBootstrapFixture(t, "/dashboard", sessions, &mockUserData{}, 10*time.Millisecond)

	f.boot.Initialize(context.Background())

	if st := f.state.Snapshot(); st.User == nil || st.User.ID != "u-1" {
		t.Errorf("expected u-1 after retry, got %+v", st.User)
	}
	if len(f.notices.Drain()) != 0 {
		t.Error("no notice expected after a successful retry")
	}
}

func TestInitialize_OnlyOnce(t *testing.T) {
	sessions := &mockSessions{}
	f := newBootstrapFixture(t, "/dashboard", sessions, &mockUserData{}, 10*time.Millisecond)

	f.boot.Initialize(context.Background())
	f.boot.Initialize(context.Background())

	if got := sessions.getCalls.Load(); got != 1 {
		t.Errorf("expected one session lookup, got %d", got)
	}
}

func TestInitialize_CancelledDuringRetryLeavesStateAlone(t *testing.T) {
	sessions := &mockSessions{getSession: func(context.Context, int) (*domain.Session, error) {
		return nil, errors.New("network down")
	}}
	f := newBootstrapFixture(t, "/dashboard", sessions, &mockUserData{}, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := f.boot.Initialize(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if !f.state.Snapshot().IsLoading {
		t.Error("a cancelled bootstrap must not write the state")
	}
	if len(f.notices.Drain()) != 0 {
		t.Error("a cancelled bootstrap must not notify")
	}
}

// A SIGNED_IN event that arrives while the bootstrap waits to retry wins.
func TestInitialize_SupersededBySignedIn(t *testing.T) {
	firstCall := make(chan struct{})
	sessions := &mockSessions{getSession: func(_ context.Context, call int) (*domain.Session, error) {
		if call == 1 {
			close(firstCall)
			return nil, errors.New("timeout")
		}
		return &domain.Session{User: domain.User{ID: "u-1"}}, nil
	}}
	f := newBootstrapFixture(t, "/dashboard", sessions, &mockUserData{roles: domain.RoleSet{domain.RoleAdmin}}, 200*time.Millisecond)

	sub := service.NewAuthSubscription(sessions, f.loader, f.state, f.nav, f.notices, f.metrics, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	release, err := sub.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer release()

	done := make(chan error, 1)
	go func() { done <- f.boot.Initialize(ctx) }()

	<-firstCall
	sessions.emit(domain.AuthEvent{Type: domain.EventSignedIn, Session: &domain.Session{User: domain.User{ID: "u-2"}}})

	if err := <-done; err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	wctx, wcancel := context.WithTimeout(ctx, time.Second)
	defer wcancel()
	st, err := f.state.WaitFor(wctx, func(s domain.AuthState) bool {
		return !s.IsLoading && s.User != nil
	})
	if err != nil {
		t.Fatalf("state did not settle: %v", err)
	}
	if st.User.ID != "u-2" {
		t.Errorf("expected u-2 to win, got %q", st.User.ID)
	}
	if got := sessions.getCalls.Load(); got != 1 {
		t.Errorf("superseded bootstrap must not retry, got %d lookups", got)
	}
	if f.metrics.GetAuthSnapshot().BootstrapSuperseded != 1 {
		t.Error("expected superseded bootstrap to be counted")
	}
}
