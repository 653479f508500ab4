// Package supabase provides a client for Supabase (PostgREST + GoTrue).
// It backs the Session Store port: authentication, the per-user profile and
// role rows, and the business tables of the HR dashboard.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/resilience"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase REST and auth APIs.
// It is shared by every browser session; per-session tokens are passed in.
type Client struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
	restCB     *gobreaker.CircuitBreaker
	authCB     *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	logger     *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, anonKey string, cfg resilience.Config, logger *zap.Logger) *Client {
	isSuccessful := func(err error) bool { return err == nil || isClientError(err) }
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		restCB:     resilience.NewCircuitBreaker("supabase-rest", isSuccessful),
		authCB:     resilience.NewCircuitBreaker("supabase-auth", isSuccessful),
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:     logger,
	}
}

// read runs a PostgREST read through the breaker with retry.
func (c *Client) read(ctx context.Context, service string, fn func() error) error {
	_, err := c.restCB.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			err := fn()
			if isClientError(err) {
				return resilience.Permanent(err)
			}
			return err
		})
	})
	return mapError(service, err)
}

// write runs a mutation through the breaker once.
func (c *Client) write(service string, fn func() error) error {
	_, err := c.restCB.Execute(func() (any, error) {
		return nil, fn()
	})
	return mapError(service, err)
}

// mapError converts transport and PostgREST failures into domain errors.
func mapError(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: service}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ErrTimeout{Operation: service}
	}

	var authErr *domain.ErrAuthAPI
	if errors.As(err, &authErr) {
		return authErr
	}

	var se *statusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusUnauthorized:
			return &domain.ErrUnauthorized{Message: "session rejected by " + service}
		case http.StatusForbidden:
			return &domain.ErrForbidden{Action: service}
		case http.StatusNotFound:
			return &domain.ErrNotFound{Resource: service}
		case http.StatusConflict:
			return &domain.ErrConflict{Message: se.Body}
		case http.StatusBadRequest:
			return &domain.ErrValidation{Field: "query", Message: se.Body}
		}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// --- Profiles & roles (port.UserDataStore) ---

// GetProfile returns the profiles row for userID, or nil when there is none.
func (c *Client) GetProfile(ctx context.Context, token, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var profile *domain.Profile
	err := c.read(ctx, "supabase/profiles", func() error {
		q := eqFilters(map[string]string{"id": userID})
		q.Set("select", "*")
		q.Set("limit", "1")

		resp, err := c.do(ctx, http.MethodGet, c.restURL(domain.TableProfiles, q), token, nil, nil)
		if err != nil {
			return err
		}

		var rows []domain.Profile
		if err := json.Unmarshal(resp.body, &rows); err != nil {
			return fmt.Errorf("decode profiles: %w", err)
		}
		if len(rows) > 0 {
			profile = &rows[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// ListRoles returns the role labels granted to userID. Unknown labels are
// dropped.
func (c *Client) ListRoles(ctx context.Context, token, userID string) (domain.RoleSet, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRoles")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	roles := domain.RoleSet{}
	err := c.read(ctx, "supabase/user_roles", func() error {
		q := eqFilters(map[string]string{"user_id": userID})
		q.Set("select", "role")

		resp, err := c.do(ctx, http.MethodGet, c.restURL(domain.TableUserRoles, q), token, nil, nil)
		if err != nil {
			return err
		}

		var rows []struct {
			Role string `json:"role"`
		}
		if err := json.Unmarshal(resp.body, &rows); err != nil {
			return fmt.Errorf("decode user_roles: %w", err)
		}

		roles = roles[:0]
		for _, r := range rows {
			if role, ok := domain.ParseRole(r.Role); ok && !roles.Has(role) {
				roles = append(roles, role)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.StringSlice("user.roles", roles.Strings()))
	return roles, nil
}

// --- Business tables (port.RecordStore) ---

// Select lists rows matching the equality filters.
func (c *Client) Select(ctx context.Context, token string, q domain.RecordQuery) ([]json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Select")
	defer span.End()
	span.SetAttributes(attribute.String("table", string(q.Table)))

	var rows []json.RawMessage
	service := "supabase/" + string(q.Table)
	err := c.read(ctx, service, func() error {
		query := eqFilters(q.Filters)
		query.Set("select", "*")
		if q.Order != "" {
			query.Set("order", q.Order)
		}
		if q.Limit > 0 {
			query.Set("limit", strconv.Itoa(q.Limit))
		}
		if q.Offset > 0 {
			query.Set("offset", strconv.Itoa(q.Offset))
		}

		resp, err := c.do(ctx, http.MethodGet, c.restURL(q.Table, query), token, nil, nil)
		if err != nil {
			return err
		}
		rows = nil
		if err := json.Unmarshal(resp.body, &rows); err != nil {
			return fmt.Errorf("decode %s: %w", q.Table, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []json.RawMessage{}
	}
	return rows, nil
}

// Count returns the exact number of rows matching filters without
// transferring them.
func (c *Client) Count(ctx context.Context, token string, table domain.Table, filters map[string]string) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Count")
	defer span.End()
	span.SetAttributes(attribute.String("table", string(table)))

	var total int
	err := c.read(ctx, "supabase/"+string(table), func() error {
		query := eqFilters(filters)
		query.Set("select", "*")

		resp, err := c.do(ctx, http.MethodHead, c.restURL(table, query), token, nil,
			map[string]string{"Prefer": "count=exact"})
		if err != nil {
			return err
		}

		n, err := parseContentRange(resp.header.Get("Content-Range"))
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// parseContentRange reads the total from "0-24/3573" or "*/0".
func parseContentRange(v string) (int, error) {
	_, total, ok := strings.Cut(v, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("missing count in Content-Range %q", v)
	}
	return strconv.Atoi(total)
}

// Insert creates a row and returns its representation.
func (c *Client) Insert(ctx context.Context, token string, table domain.Table, row map[string]any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Insert")
	defer span.End()
	span.SetAttributes(attribute.String("table", string(table)))

	var created json.RawMessage
	err := c.write("supabase/"+string(table), func() error {
		resp, err := c.do(ctx, http.MethodPost, c.restURL(table, nil), token, row,
			map[string]string{"Prefer": "return=representation"})
		if err != nil {
			return err
		}
		created, err = firstRow(resp.body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update patches the row with the given id.
func (c *Client) Update(ctx context.Context, token string, table domain.Table, id string, changes map[string]any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Update")
	defer span.End()
	span.SetAttributes(attribute.String("table", string(table)), attribute.String("row.id", id))

	var updated json.RawMessage
	err := c.write("supabase/"+string(table), func() error {
		q := eqFilters(map[string]string{"id": id})
		resp, err := c.do(ctx, http.MethodPatch, c.restURL(table, q), token, changes,
			map[string]string{"Prefer": "return=representation"})
		if err != nil {
			return err
		}
		updated, err = firstRow(resp.body)
		return err
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, &domain.ErrNotFound{Resource: string(table), ID: id}
	}
	return updated, nil
}

// Delete removes the row with the given id.
func (c *Client) Delete(ctx context.Context, token string, table domain.Table, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("table", string(table)), attribute.String("row.id", id))

	var deleted json.RawMessage
	err := c.write("supabase/"+string(table), func() error {
		q := eqFilters(map[string]string{"id": id})
		resp, err := c.do(ctx, http.MethodDelete, c.restURL(table, q), token, nil,
			map[string]string{"Prefer": "return=representation"})
		if err != nil {
			return err
		}
		deleted, err = firstRow(resp.body)
		return err
	})
	if err != nil {
		return err
	}
	if deleted == nil {
		return &domain.ErrNotFound{Resource: string(table), ID: id}
	}
	return nil
}

// firstRow returns the first element of a representation array, or nil.
func firstRow(body []byte) (json.RawMessage, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode representation: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
