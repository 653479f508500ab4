package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
)

// ============================================================
// View shell
// ============================================================

func viewName(path string) string {
	return strings.TrimPrefix(path, "/")
}

// loginViewHandler renders the login form. A signed-in browser is sent to
// the dashboard; while loading the placeholder is shown.
func loginViewHandler(slowAfter time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := ProviderFromContext(r.Context())
		st := p.Snapshot()

		switch domain.EvaluateGate(st) {
		case domain.GateLoading:
			writeLoading(w, st, slowAfter)
		case domain.GateAllow:
			p.Nav.SetCurrentPath(domain.PathDashboard)
			http.Redirect(w, r, domain.PathDashboard, http.StatusSeeOther)
		default:
			writeJSON(w, http.StatusOK, domain.ViewResponse{
				View:  viewName(domain.PathLogin),
				Path:  domain.PathLogin,
				Roles: domain.RoleSet{},
			})
		}
	}
}

func viewHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := ProviderFromContext(r.Context()).Snapshot()
		writeJSON(w, http.StatusOK, domain.ViewResponse{
			View:    viewName(path),
			Path:    path,
			User:    st.User,
			Profile: st.Profile,
			Roles:   st.Roles,
		})
	}
}
