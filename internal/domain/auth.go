package domain

import (
	"slices"
	"time"
)

// ============================================================
// Auth — session, profile, roles and the per-browser AuthState
// ============================================================

// Role is a label from the app_role enumeration.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleEmployee   Role = "employee"
)

// ParseRole validates a raw role label.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleSuperAdmin, RoleAdmin, RoleEmployee:
		return r, true
	}
	return "", false
}

// RoleSet is the set of roles granted to a user. Order is irrelevant.
type RoleSet []Role

// Has reports whether r is a member of the set.
func (s RoleSet) Has(r Role) bool {
	return slices.Contains(s, r)
}

// Strings returns the labels, used by the authorization layer.
func (s RoleSet) Strings() []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// User is the read-only projection of the authenticated principal.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is what the Session Store hands back after sign-in or refresh.
// Tokens are persisted so the session can be recovered at startup.
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token expires within margin.
func (s *Session) Expired(now time.Time, margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(s.ExpiresAt)
}

// Profile maps the profiles table. Every field may be null.
type Profile struct {
	ID        string  `json:"id"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	PhotoURL  *string `json:"photo_url"`
}

// AuthState is the application's projection of Session + Profile + Roles.
// A published AuthState is immutable; writers replace it as a whole.
type AuthState struct {
	User         *User      `json:"user"`
	Profile      *Profile   `json:"profile"`
	Roles        RoleSet    `json:"roles"`
	IsLoading    bool       `json:"isLoading"`
	Version      uint64     `json:"version"`
	LoadingSince *time.Time `json:"loadingSince,omitempty"`
}

// InitialAuthState is the state before bootstrap has resolved.
func InitialAuthState(now time.Time) AuthState {
	return AuthState{Roles: RoleSet{}, IsLoading: true, LoadingSince: &now}
}

// SignedOutState is the steady unauthenticated shape.
func SignedOutState() AuthState {
	return AuthState{Roles: RoleSet{}}
}

// SignedInState is the steady authenticated shape.
func SignedInState(user User, profile *Profile, roles RoleSet) AuthState {
	if roles == nil {
		roles = RoleSet{}
	}
	return AuthState{User: &user, Profile: profile, Roles: roles}
}

// Authenticated reports whether a session is present.
func (s AuthState) Authenticated() bool {
	return s.User != nil
}

// HasRole is a pure membership test over the current role set.
func (s AuthState) HasRole(r Role) bool {
	return s.Roles.Has(r)
}

// AuthEventType mirrors the session lifecycle events pushed by the Session Store.
type AuthEventType string

const (
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent is delivered to OnAuthStateChange listeners.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}

// ============================================================
// Request / Response types
// ============================================================

// SignInRequest is the body for POST /v1/auth/login.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpRequest is the body for POST /v1/auth/signup.
type SignUpRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// AuthStateResponse is returned by GET /v1/auth/state and the auth actions.
type AuthStateResponse struct {
	AuthState
	Redirect string `json:"redirect,omitempty"`
}

// RoleCheckResponse is returned by GET /v1/auth/roles/{role}.
type RoleCheckResponse struct {
	Role    Role `json:"role"`
	HasRole bool `json:"hasRole"`
}
