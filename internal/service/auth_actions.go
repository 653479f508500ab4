package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

// AuthActions are the form-driven credential calls. They are never retried:
// a failure pushes a notice and is returned so the form stays interactive.
// State changes arrive through the AuthSubscription.
type AuthActions struct {
	sessions port.SessionStore
	notifier port.Notifier
	logger   *zap.Logger
}

func NewAuthActions(sessions port.SessionStore, notifier port.Notifier, logger *zap.Logger) *AuthActions {
	return &AuthActions{sessions: sessions, notifier: notifier, logger: logger}
}

// SignIn returns the user the new session belongs to.
func (a *AuthActions) SignIn(ctx context.Context, req domain.SignInRequest) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthActions.SignIn")
	defer span.End()

	sess, err := a.sessions.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		a.logger.Warn("sign in failed", zap.Error(err))
		a.notifier.Notify(domain.NoticeError, failureMessage(err, domain.MsgSignInFailed))
		return nil, err
	}
	a.notifier.Notify(domain.NoticeSuccess, domain.MsgSignInSucceeded)
	user := sess.User
	return &user, nil
}

func (a *AuthActions) SignUp(ctx context.Context, req domain.SignUpRequest) error {
	ctx, span := authTracer.Start(ctx, "AuthActions.SignUp")
	defer span.End()

	metadata := map[string]any{
		"first_name": req.FirstName,
		"last_name":  req.LastName,
	}
	err := a.sessions.SignUp(ctx, req.Email, req.Password, metadata)
	switch {
	case err == nil:
		a.notifier.Notify(domain.NoticeSuccess, domain.MsgSignUpSucceeded)
		return nil
	case domain.IsAlreadyRegistered(err):
		a.logger.Info("sign up rejected, email already registered")
		a.notifier.Notify(domain.NoticeError, domain.MsgSignUpDuplicate)
		return &domain.ErrConflict{Message: domain.MsgSignUpDuplicate}
	default:
		a.logger.Warn("sign up failed", zap.Error(err))
		a.notifier.Notify(domain.NoticeError, failureMessage(err, domain.MsgSignUpFailed))
		return err
	}
}

func (a *AuthActions) SignOut(ctx context.Context) error {
	ctx, span := authTracer.Start(ctx, "AuthActions.SignOut")
	defer span.End()

	if err := a.sessions.SignOut(ctx); err != nil {
		a.logger.Warn("sign out failed", zap.Error(err))
		a.notifier.Notify(domain.NoticeError, failureMessage(err, domain.MsgSignOutFailed))
		return err
	}
	a.notifier.Notify(domain.NoticeSuccess, domain.MsgSignOutSucceeded)
	return nil
}

// failureMessage shows the auth service's own message for credential
// rejections and the fallback text for everything else.
func failureMessage(err error, fallback string) string {
	var apiErr *domain.ErrAuthAPI
	if errors.As(err, &apiErr) && apiErr.Credential() && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
