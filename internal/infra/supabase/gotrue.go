package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
)

// ============================================================
// GoTrue (/auth/v1) endpoints. Credential calls are never retried.
// ============================================================

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (t *tokenResponse) session(now time.Time) *domain.Session {
	s := &domain.Session{
		User:         domain.User{ID: t.User.ID, Email: t.User.Email},
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return s
}

// gotrueError covers both the OAuth-style and the newer GoTrue error bodies.
type gotrueError struct {
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

// authError turns a non-2xx GoTrue reply into *domain.ErrAuthAPI.
func authError(err error) error {
	var se *statusError
	if !errors.As(err, &se) {
		return err
	}

	var body gotrueError
	_ = json.Unmarshal([]byte(se.Body), &body)

	apiErr := &domain.ErrAuthAPI{Status: se.Status, Code: body.ErrorCode}
	if apiErr.Code == "" {
		apiErr.Code = body.Error
	}
	for _, m := range []string{body.Msg, body.Message, body.ErrorDescription} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	return apiErr
}

func (c *Client) auth(ctx context.Context, service, method, path, token string, payload any) (*response, error) {
	var resp *response
	_, err := c.authCB.Execute(func() (any, error) {
		var err error
		resp, err = c.do(ctx, method, c.baseURL+"/auth/v1"+path, token, payload, nil)
		return nil, authError(err)
	})
	if err != nil {
		return nil, mapError(service, err)
	}
	return resp, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignInWithPassword")
	defer span.End()

	resp, err := c.auth(ctx, "supabase/auth", http.MethodPost, "/token?grant_type=password", "",
		map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", tr.User.ID))
	return tr.session(time.Now()), nil
}

// RefreshSession trades a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RefreshSession")
	defer span.End()

	resp, err := c.auth(ctx, "supabase/auth", http.MethodPost, "/token?grant_type=refresh_token", "",
		map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return tr.session(time.Now()), nil
}

// SignUp registers a user. The returned session is nil when the project
// requires e-mail confirmation.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SignUp")
	defer span.End()

	resp, err := c.auth(ctx, "supabase/auth", http.MethodPost, "/signup", "",
		map[string]any{"email": email, "password": password, "data": metadata})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, nil
	}
	return tr.session(time.Now()), nil
}

// SignOut revokes the session behind accessToken. A token GoTrue no longer
// knows counts as already signed out.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Supabase.SignOut")
	defer span.End()

	_, err := c.auth(ctx, "supabase/auth", http.MethodPost, "/logout", accessToken, nil)
	var apiErr *domain.ErrAuthAPI
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return nil
		}
	}
	return err
}

// Health pings the auth service.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Health")
	defer span.End()

	_, err := c.auth(ctx, "supabase/auth", http.MethodGet, "/health", "", nil)
	return err
}
