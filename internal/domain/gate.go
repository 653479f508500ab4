package domain

import "time"

// Application paths the auth components navigate to.
const (
	PathLogin     = "/login"
	PathDashboard = "/dashboard"
)

// GateDecision is the outcome of the Role Gate for one request.
type GateDecision string

const (
	GateLoading       GateDecision = "loading"
	GateRedirectLogin GateDecision = "redirect_login"
	GateAllow         GateDecision = "allow"
)

// EvaluateGate only distinguishes "has a session" from "has none";
// role checks are left to the views.
func EvaluateGate(s AuthState) GateDecision {
	switch {
	case s.IsLoading:
		return GateLoading
	case s.User == nil:
		return GateRedirectLogin
	default:
		return GateAllow
	}
}

// Loading placeholder messages.
const (
	MsgLoading     = "Memuat..."
	MsgLoadingSlow = "Memuat lebih lama dari biasanya... Mohon tunggu sebentar."
)

// LoadingMessage picks the placeholder text. Purely cosmetic.
func LoadingMessage(s AuthState, now time.Time, slowAfter time.Duration) string {
	if s.LoadingSince != nil && now.Sub(*s.LoadingSince) >= slowAfter {
		return MsgLoadingSlow
	}
	return MsgLoading
}

// LoadingResponse is the body of the blocking placeholder.
type LoadingResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ViewResponse describes a rendered view of the dashboard shell.
type ViewResponse struct {
	View    string   `json:"view"`
	Path    string   `json:"path"`
	User    *User    `json:"user,omitempty"`
	Profile *Profile `json:"profile,omitempty"`
	Roles   RoleSet  `json:"roles"`
}
