package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/observability"
	"github.com/boddenberg/hr-admin-bfa-go/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const providerKey contextKey = "authProvider"

// SessionMiddleware binds the request to its browser session: the session
// cookie is issued when missing and the session's auth provider is mounted
// on first use.
func SessionMiddleware(registry *service.ProviderRegistry, cookie CookieConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if c, err := r.Cookie(cookie.Name); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					sid = c.Value
				}
			}
			if sid == "" {
				sid = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookie.Name,
					Value:    sid,
					Path:     "/",
					HttpOnly: true,
					Secure:   cookie.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			// API calls do not tell where the browser is.
			path := r.URL.Path
			if strings.HasPrefix(path, "/v1/") {
				path = ""
			}

			p, err := registry.Get(sid, path)
			if err != nil {
				logger.Error("auth provider unavailable", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "session unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), providerKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProviderFromContext returns the auth provider bound by SessionMiddleware.
func ProviderFromContext(ctx context.Context) *service.Provider {
	p, _ := ctx.Value(providerKey).(*service.Provider)
	return p
}

// sessionIDField adds the short session id to request logs.
func sessionIDField(cookieName string) observability.RequestFields {
	return func(r *http.Request) []zap.Field {
		c, err := r.Cookie(cookieName)
		if err != nil || len(c.Value) < 8 {
			return nil
		}
		return []zap.Field{zap.String("sid", c.Value[:8])}
	}
}

// FollowNavigation records where the browser is and redirects it to a
// target the auth components navigated to since its last view request.
func FollowNavigation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := ProviderFromContext(r.Context())
		if target, ok := p.Nav.TakePending(r.URL.Path); ok {
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		p.Nav.SetCurrentPath(r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeLoading(w http.ResponseWriter, st domain.AuthState, slowAfter time.Duration) {
	w.Header().Set("X-Auth-Loading", "true")
	w.Header().Set("Retry-After", "1")
	writeJSON(w, http.StatusServiceUnavailable, domain.LoadingResponse{
		Status:  "loading",
		Message: domain.LoadingMessage(st, time.Now(), slowAfter),
	})
}

// ViewGate guards page routes: a loading placeholder while the auth state
// settles, a redirect to /login without a session, the view otherwise.
func ViewGate(metrics *observability.Metrics, slowAfter time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := ProviderFromContext(r.Context())
			st := p.Snapshot()

			decision := domain.EvaluateGate(st)
			metrics.RecordGateDecision(decision)

			switch decision {
			case domain.GateLoading:
				writeLoading(w, st, slowAfter)
			case domain.GateRedirectLogin:
				p.Nav.SetCurrentPath(domain.PathLogin)
				http.Redirect(w, r, domain.PathLogin, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// APIGate is ViewGate for JSON routes: 503 while loading, 401 with a
// redirect hint without a session.
func APIGate(metrics *observability.Metrics, slowAfter time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := ProviderFromContext(r.Context())
			st := p.Snapshot()

			decision := domain.EvaluateGate(st)
			metrics.RecordGateDecision(decision)

			switch decision {
			case domain.GateLoading:
				writeLoading(w, st, slowAfter)
			case domain.GateRedirectLogin:
				writeJSON(w, http.StatusUnauthorized, errorResponse{
					Error:    "not signed in",
					Redirect: domain.PathLogin,
				})
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
