package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/service"
	"github.com/boddenberg/hr-admin-bfa-go/internal/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Auth state & role query
// ============================================================

func authStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := ProviderFromContext(r.Context())
		writeJSON(w, http.StatusOK, domain.AuthStateResponse{AuthState: p.Snapshot()})
	}
}

func roleCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, ok := domain.ParseRole(chi.URLParam(r, "role"))
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		p := ProviderFromContext(r.Context())
		writeJSON(w, http.StatusOK, domain.RoleCheckResponse{Role: role, HasRole: p.HasRole(role)})
	}
}

func noticesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := ProviderFromContext(r.Context())
		writeJSON(w, http.StatusOK, p.Notices.Drain())
	}
}

// ============================================================
// Auth actions
// ============================================================

// settled waits until the auth state reflects the session change made
// after version since and reports where the browser is sent next. user is
// the account just signed in, nil for a sign-out.
func settled(ctx context.Context, p *service.Provider, timeout time.Duration, since uint64, user *domain.User) domain.AuthStateResponse {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st, err := p.State.WaitFor(ctx, func(s domain.AuthState) bool {
		if s.IsLoading || s.Version <= since {
			return false
		}
		if user == nil {
			return !s.Authenticated()
		}
		return s.Authenticated() && s.User.ID == user.ID
	})
	resp := domain.AuthStateResponse{AuthState: st}
	switch {
	case err != nil:
	case user != nil:
		resp.Redirect = domain.PathDashboard
	default:
		resp.Redirect = domain.PathLogin
	}
	return resp
}

func signInHandler(settleTimeout time.Duration, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.SignInRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := validation.ValidateStruct(req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		p := ProviderFromContext(ctx)
		since := p.Snapshot().Version
		user, err := p.Actions.SignIn(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, settled(ctx, p, settleTimeout, since, user))
	}
}

func signUpHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/signup")
		defer span.End()

		var req domain.SignUpRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := validation.ValidateStruct(req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		p := ProviderFromContext(ctx)
		if err := p.Actions.SignUp(ctx, req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// With auto-confirm the sign-in arrives on the stream; otherwise the
		// user still has to confirm the e-mail.
		resp := domain.AuthStateResponse{AuthState: p.Snapshot()}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func signOutHandler(settleTimeout time.Duration, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		p := ProviderFromContext(ctx)
		since := p.Snapshot().Version
		if err := p.Actions.SignOut(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, settled(ctx, p, settleTimeout, since, nil))
	}
}
