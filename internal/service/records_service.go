package service

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/hr-admin-bfa-go/internal/authz"
	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

var recordsTracer = otel.Tracer("service/records")

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// RecordsService is the CRUD glue behind the table views. Role checks run
// here; row ownership is left to the Session Store's row-level policy.
type RecordsService struct {
	enforcer *authz.Enforcer
	logger   *zap.Logger
}

func NewRecordsService(enforcer *authz.Enforcer, logger *zap.Logger) *RecordsService {
	return &RecordsService{enforcer: enforcer, logger: logger}
}

func (s *RecordsService) List(ctx context.Context, store port.RecordStore, roles domain.RoleSet, q domain.RecordQuery) (*domain.RecordList, error) {
	ctx, span := recordsTracer.Start(ctx, "RecordsService.List")
	defer span.End()
	span.SetAttributes(attribute.String("table", string(q.Table)))

	if err := s.enforcer.Check(roles, string(q.Table), authz.ActionRead); err != nil {
		return nil, err
	}

	switch {
	case q.Limit <= 0:
		q.Limit = defaultPageSize
	case q.Limit > maxPageSize:
		q.Limit = maxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	rows, err := store.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	return &domain.RecordList{Table: q.Table, Rows: rows, Limit: q.Limit, Offset: q.Offset}, nil
}

func (s *RecordsService) Create(ctx context.Context, store port.RecordStore, roles domain.RoleSet, table domain.Table, row map[string]any) (json.RawMessage, error) {
	ctx, span := recordsTracer.Start(ctx, "RecordsService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("table", string(table)))

	if err := s.enforcer.Check(roles, string(table), authz.ActionWrite); err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "row must not be empty"}
	}

	created, err := store.Insert(ctx, table, row)
	if err != nil {
		return nil, err
	}
	s.logger.Info("row created", zap.String("table", string(table)))
	return created, nil
}

func (s *RecordsService) Update(ctx context.Context, store port.RecordStore, roles domain.RoleSet, table domain.Table, id string, changes map[string]any) (json.RawMessage, error) {
	ctx, span := recordsTracer.Start(ctx, "RecordsService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("table", string(table)), attribute.String("row.id", id))

	if err := s.enforcer.Check(roles, string(table), authz.ActionWrite); err != nil {
		return nil, err
	}
	delete(changes, "id")
	if len(changes) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no changes given"}
	}

	updated, err := store.Update(ctx, table, id, changes)
	if err != nil {
		return nil, err
	}
	s.logger.Info("row updated", zap.String("table", string(table)), zap.String("id", id))
	return updated, nil
}

func (s *RecordsService) Delete(ctx context.Context, store port.RecordStore, roles domain.RoleSet, table domain.Table, id string) error {
	ctx, span := recordsTracer.Start(ctx, "RecordsService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("table", string(table)), attribute.String("row.id", id))

	if err := s.enforcer.Check(roles, string(table), authz.ActionWrite); err != nil {
		return err
	}
	if err := store.Delete(ctx, table, id); err != nil {
		return err
	}
	s.logger.Info("row deleted", zap.String("table", string(table)), zap.String("id", id))
	return nil
}
