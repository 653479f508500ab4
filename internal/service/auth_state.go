package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
)

// Epoch identifies one initiation (bootstrap run or session-change event).
// Only the most recent initiation may commit.
type Epoch uint64

type intentKind int

const (
	intentBegin intentKind = iota
	intentMarkLoading
	intentCommit
)

type intent struct {
	kind  intentKind
	epoch Epoch
	state domain.AuthState
	reply chan intentResult
}

type intentResult struct {
	epoch   Epoch
	applied bool
}

// AuthStateStore owns the AuthState of one browser session. Writers send
// intents to a single coordinator goroutine; readers load the last
// published value without locking.
type AuthStateStore struct {
	intents chan intent
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	current atomic.Pointer[domain.AuthState]
	latest  atomic.Uint64

	watchMu sync.Mutex
	changed chan struct{}

	onPublish func(domain.AuthState)
	now       func() time.Time
}

// NewAuthStateStore starts the coordinator with the initial loading state.
// onPublish, if set, runs on the coordinator goroutine after every publish
// and must not block.
func NewAuthStateStore(onPublish func(domain.AuthState)) *AuthStateStore {
	s := &AuthStateStore{
		intents:   make(chan intent),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		changed:   make(chan struct{}),
		onPublish: onPublish,
		now:       time.Now,
	}
	initial := domain.InitialAuthState(s.now())
	s.current.Store(&initial)

	go s.run()
	return s
}

func (s *AuthStateStore) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case in := <-s.intents:
			in.reply <- s.apply(in)
		}
	}
}

func (s *AuthStateStore) apply(in intent) intentResult {
	switch in.kind {
	case intentBegin:
		return intentResult{epoch: Epoch(s.latest.Add(1)), applied: true}

	case intentMarkLoading:
		if uint64(in.epoch) != s.latest.Load() {
			return intentResult{epoch: in.epoch}
		}
		next := *s.current.Load()
		if !next.IsLoading {
			now := s.now()
			next.IsLoading = true
			next.LoadingSince = &now
		}
		s.publish(next)
		return intentResult{epoch: in.epoch, applied: true}

	case intentCommit:
		if uint64(in.epoch) != s.latest.Load() {
			return intentResult{epoch: in.epoch}
		}
		next := in.state
		next.IsLoading = false
		next.LoadingSince = nil
		if next.Roles == nil {
			next.Roles = domain.RoleSet{}
		}
		s.publish(next)
		return intentResult{epoch: in.epoch, applied: true}
	}
	return intentResult{}
}

// publish runs on the coordinator goroutine only.
func (s *AuthStateStore) publish(next domain.AuthState) {
	next.Version = s.current.Load().Version + 1
	s.current.Store(&next)

	s.watchMu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.watchMu.Unlock()

	if s.onPublish != nil {
		s.onPublish(next)
	}
}

func (s *AuthStateStore) send(ctx context.Context, in intent) (intentResult, error) {
	in.reply = make(chan intentResult, 1)
	select {
	case <-s.done:
		return intentResult{}, domain.ErrStateClosed
	case <-ctx.Done():
		return intentResult{}, ctx.Err()
	case s.intents <- in:
	}
	return <-in.reply, nil
}

// Begin starts a new initiation and supersedes every older one.
func (s *AuthStateStore) Begin(ctx context.Context) (Epoch, error) {
	res, err := s.send(ctx, intent{kind: intentBegin})
	return res.epoch, err
}

// IsCurrent reports whether epoch is still the latest initiation.
func (s *AuthStateStore) IsCurrent(epoch Epoch) bool {
	return uint64(epoch) == s.latest.Load()
}

// MarkLoading flags an in-flight re-fetch. The previous user, profile and
// roles stay visible until the commit.
func (s *AuthStateStore) MarkLoading(ctx context.Context, epoch Epoch) (bool, error) {
	res, err := s.send(ctx, intent{kind: intentMarkLoading, epoch: epoch})
	return res.applied, err
}

// Commit publishes state as a settled (not loading) AuthState if epoch is
// still current. A superseded commit is discarded and reports false.
func (s *AuthStateStore) Commit(ctx context.Context, epoch Epoch, state domain.AuthState) (bool, error) {
	res, err := s.send(ctx, intent{kind: intentCommit, epoch: epoch, state: state})
	return res.applied, err
}

// Snapshot returns the latest published state.
func (s *AuthStateStore) Snapshot() domain.AuthState {
	return *s.current.Load()
}

// Watch returns a channel closed at the next publish.
func (s *AuthStateStore) Watch() <-chan struct{} {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	return s.changed
}

// WaitFor blocks until pred holds for a published state or ctx is done.
func (s *AuthStateStore) WaitFor(ctx context.Context, pred func(domain.AuthState) bool) (domain.AuthState, error) {
	for {
		ch := s.Watch()
		st := s.Snapshot()
		if pred(st) {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-s.done:
			return st, domain.ErrStateClosed
		case <-ch:
		}
	}
}

// Close stops the coordinator. Later writes fail with domain.ErrStateClosed;
// Snapshot keeps returning the last state.
func (s *AuthStateStore) Close() {
	s.once.Do(func() {
		close(s.done)
		<-s.stopped
	})
}
