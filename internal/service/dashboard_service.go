package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/hr-admin-bfa-go/internal/authz"
	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

// DashboardService computes the super_admin summary on the dashboard view.
type DashboardService struct {
	enforcer *authz.Enforcer
	logger   *zap.Logger
}

func NewDashboardService(enforcer *authz.Enforcer, logger *zap.Logger) *DashboardService {
	return &DashboardService{enforcer: enforcer, logger: logger}
}

// Metrics runs the five counts concurrently.
func (s *DashboardService) Metrics(ctx context.Context, store port.RecordStore, roles domain.RoleSet) (*domain.DashboardMetrics, error) {
	ctx, span := recordsTracer.Start(ctx, "DashboardService.Metrics")
	defer span.End()

	if err := s.enforcer.Check(roles, authz.ResourceDashboardMetrics, authz.ActionRead); err != nil {
		return nil, err
	}

	var m domain.DashboardMetrics
	pending := map[string]string{"status": "pending"}

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, table domain.Table, filters map[string]string) {
		g.Go(func() error {
			n, err := store.Count(gctx, table, filters)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	count(&m.TotalEmployees, domain.TableEmployees, nil)
	count(&m.TotalClients, domain.TableClients, nil)
	count(&m.TotalProjects, domain.TableProjects, nil)
	count(&m.PendingLeaveRequests, domain.TableLeaveRequests, pending)
	count(&m.PendingLoanRequests, domain.TableLoanRequests, pending)

	if err := g.Wait(); err != nil {
		s.logger.Error("dashboard metrics failed", zap.Error(err))
		return nil, err
	}
	return &m, nil
}
