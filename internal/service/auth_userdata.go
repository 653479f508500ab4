package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

// UserDataLoader fetches the profile and role rows of a signed-in user.
type UserDataLoader struct {
	store   port.UserDataStore
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewUserDataLoader paces lookups with limiter (nil means unpaced).
func NewUserDataLoader(store port.UserDataStore, limiter *rate.Limiter, logger *zap.Logger) *UserDataLoader {
	return &UserDataLoader{store: store, limiter: limiter, logger: logger}
}

// Load queries profile and roles concurrently. Each query falls back on its
// own: a failed profile yields nil, failed roles yield an empty set, and
// neither failure discards the other result.
func (l *UserDataLoader) Load(ctx context.Context, userID string) (*domain.Profile, domain.RoleSet) {
	ctx, span := authTracer.Start(ctx, "UserDataLoader.Load")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			l.logger.Warn("user data lookup abandoned while rate limited",
				zap.String("user_id", userID), zap.Error(err))
			return nil, domain.RoleSet{}
		}
	}

	var (
		profile *domain.Profile
		roles   = domain.RoleSet{}
		g       errgroup.Group // no shared context: one failure must not cancel the other
	)

	g.Go(func() error {
		p, err := l.store.GetProfile(ctx, userID)
		if err != nil {
			l.logger.Warn("profile lookup failed, continuing without profile",
				zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		profile = p
		return nil
	})

	g.Go(func() error {
		r, err := l.store.ListRoles(ctx, userID)
		if err != nil {
			l.logger.Warn("role lookup failed, continuing without roles",
				zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		if r != nil {
			roles = r
		}
		return nil
	})

	_ = g.Wait()

	span.SetAttributes(
		attribute.Bool("profile.found", profile != nil),
		attribute.Int("roles.count", len(roles)),
	)
	return profile, roles
}
