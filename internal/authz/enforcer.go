// Package authz decides which dashboard roles may read or write which
// resources, using an embedded Casbin RBAC model with role inheritance
// (super_admin > admin > employee).
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Action is what a caller wants to do with a resource.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// ResourceDashboardMetrics guards the super_admin summary.
const ResourceDashboardMetrics = "dashboard_metrics"

// Enforcer is safe for concurrent use.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an enforcer from the embedded model and policy.
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if err := loadPolicy(e, embeddedPolicy); err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: e}, nil
}

func loadPolicy(e *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := e.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := e.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Allowed reports whether any of roles may perform act on resource.
func (e *Enforcer) Allowed(roles domain.RoleSet, resource string, act Action) (bool, error) {
	for _, role := range roles {
		ok, err := e.enforcer.Enforce(string(role), resource, string(act))
		if err != nil {
			return false, fmt.Errorf("enforce %s %s on %s: %w", role, act, resource, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Check is Allowed with a denial turned into *domain.ErrForbidden.
func (e *Enforcer) Check(roles domain.RoleSet, resource string, act Action) error {
	ok, err := e.Allowed(roles, resource, act)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.ErrForbidden{Action: fmt.Sprintf("%s %s", act, resource)}
	}
	return nil
}
