package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/hr-admin-bfa-go/internal/authz"
	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/service"

	"go.uber.org/zap"
)

func newEnforcer(t *testing.T) *authz.Enforcer {
	t.Helper()
	e, err := authz.NewEnforcer()
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	return e
}

func TestRecordsService_ListPaging(t *testing.T) {
	svc := service.NewRecordsService(newEnforcer(t), zap.NewNop())
	store := &mockRecords{}
	employee := domain.RoleSet{domain.RoleEmployee}

	list, err := svc.List(context.Background(), store, employee, domain.RecordQuery{Table: domain.TableAttendance})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Limit != 50 || store.lastQuery.Limit != 50 {
		t.Errorf("expected default limit 50, got %d", list.Limit)
	}

	svc.List(context.Background(), store, employee, domain.RecordQuery{Table: domain.TableAttendance, Limit: 10000, Offset: -3})
	if store.lastQuery.Limit != 500 || store.lastQuery.Offset != 0 {
		t.Errorf("expected clamped paging, got limit=%d offset=%d", store.lastQuery.Limit, store.lastQuery.Offset)
	}
}

func TestRecordsService_RoleChecks(t *testing.T) {
	svc := service.NewRecordsService(newEnforcer(t), zap.NewNop())
	store := &mockRecords{}
	ctx := context.Background()
	var forbidden *domain.ErrForbidden

	_, err := svc.List(ctx, store, domain.RoleSet{domain.RoleEmployee}, domain.RecordQuery{Table: domain.TableEmployees})
	if !errors.As(err, &forbidden) {
		t.Errorf("employee listing employees: expected forbidden, got %v", err)
	}

	_, err = svc.Create(ctx, store, domain.RoleSet{domain.RoleEmployee}, domain.TableLeaveRequests, map[string]any{"reason": "sick"})
	if err != nil {
		t.Errorf("employee creating leave request: %v", err)
	}

	_, err = svc.Update(ctx, store, domain.RoleSet{domain.RoleAdmin}, domain.TableUserRoles, "r-1", map[string]any{"role": "admin"})
	if !errors.As(err, &forbidden) {
		t.Errorf("admin writing user_roles: expected forbidden, got %v", err)
	}

	_, err = svc.Update(ctx, store, domain.RoleSet{domain.RoleSuperAdmin}, domain.TableUserRoles, "r-1", map[string]any{"role": "admin"})
	if err != nil {
		t.Errorf("super_admin writing user_roles: %v", err)
	}

	if err := svc.Delete(ctx, store, domain.RoleSet{}, domain.TableClients, "c-1"); !errors.As(err, &forbidden) {
		t.Errorf("no roles: expected forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, store, domain.RoleSet{domain.RoleAdmin}, domain.TableClients, "c-1"); err != nil {
		t.Errorf("admin deleting client: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "c-1" {
		t.Errorf("unexpected deletes: %v", store.deleted)
	}
}

func TestRecordsService_EmptyWrites(t *testing.T) {
	svc := service.NewRecordsService(newEnforcer(t), zap.NewNop())
	admin := domain.RoleSet{domain.RoleAdmin}
	var validation *domain.ErrValidation

	if _, err := svc.Create(context.Background(), &mockRecords{}, admin, domain.TableClients, nil); !errors.As(err, &validation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.Update(context.Background(), &mockRecords{}, admin, domain.TableClients, "c-1", map[string]any{}); !errors.As(err, &validation) {
		t.Errorf("expected validation error, got %v", err)
	}
	// the primary key is never patched, so an id-only body changes nothing
	if _, err := svc.Update(context.Background(), &mockRecords{}, admin, domain.TableClients, "c-1", map[string]any{"id": "c-2"}); !errors.As(err, &validation) {
		t.Errorf("id-only update: expected validation error, got %v", err)
	}
}

func TestDashboardService_Metrics(t *testing.T) {
	svc := service.NewDashboardService(newEnforcer(t), zap.NewNop())
	store := &mockRecords{counts: map[string]int{
		"employees":              12,
		"clients":                4,
		"projects":               7,
		"leave_requests:pending": 2,
		"loan_requests:pending":  1,
	}}

	m, err := svc.Metrics(context.Background(), store, domain.RoleSet{domain.RoleSuperAdmin})
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	want := domain.DashboardMetrics{TotalEmployees: 12, TotalClients: 4, TotalProjects: 7, PendingLeaveRequests: 2, PendingLoanRequests: 1}
	if *m != want {
		t.Errorf("got %+v, want %+v", *m, want)
	}
}

func TestDashboardService_Forbidden(t *testing.T) {
	svc := service.NewDashboardService(newEnforcer(t), zap.NewNop())

	_, err := svc.Metrics(context.Background(), &mockRecords{}, domain.RoleSet{domain.RoleAdmin})
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Errorf("admin: expected forbidden, got %v", err)
	}
}

func TestDashboardService_CountFailure(t *testing.T) {
	svc := service.NewDashboardService(newEnforcer(t), zap.NewNop())
	store := &mockRecords{countErr: &domain.ErrTimeout{Operation: "supabase/employees"}}

	_, err := svc.Metrics(context.Background(), store, domain.RoleSet{domain.RoleSuperAdmin})
	var timeout *domain.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Errorf("expected timeout, got %v", err)
	}
}
