package handler

import (
	"net/http"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// CRUD views
// ============================================================

// reservedParams are query keys that are not column filters.
var reservedParams = map[string]bool{"limit": true, "offset": true, "order": true}

// operatorParams carry PostgREST syntax of their own and are refused.
var operatorParams = map[string]bool{
	"select": true, "or": true, "and": true, "not": true,
	"columns": true, "on_conflict": true,
}

func tableParam(w http.ResponseWriter, r *http.Request) (domain.Table, bool) {
	table, ok := domain.ParseTable(chi.URLParam(r, "table"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown table")
	}
	return table, ok
}

func listRecordsHandler(svc *service.RecordsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tables/{table}")
		defer span.End()

		table, ok := tableParam(w, r)
		if !ok {
			return
		}
		span.SetAttributes(attribute.String("table", string(table)))

		q := domain.RecordQuery{Table: table, Filters: map[string]string{}, Order: r.URL.Query().Get("order")}
		q.Limit, q.Offset = parsePagination(r)
		for key, values := range r.URL.Query() {
			if operatorParams[key] {
				handleServiceError(w, &domain.ErrValidation{Field: key, Message: "unsupported query parameter"}, logger)
				return
			}
			if !reservedParams[key] && len(values) > 0 {
				q.Filters[key] = values[0]
			}
		}

		p := ProviderFromContext(ctx)
		list, err := svc.List(ctx, p.Records, p.Snapshot().Roles, q)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func createRecordHandler(svc *service.RecordsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tables/{table}")
		defer span.End()

		table, ok := tableParam(w, r)
		if !ok {
			return
		}

		var row map[string]any
		if err := decodeJSON(w, r, &row); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		p := ProviderFromContext(ctx)
		created, err := svc.Create(ctx, p.Records, p.Snapshot().Roles, table, row)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

func updateRecordHandler(svc *service.RecordsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/tables/{table}/{id}")
		defer span.End()

		table, ok := tableParam(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		var changes map[string]any
		if err := decodeJSON(w, r, &changes); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		p := ProviderFromContext(ctx)
		updated, err := svc.Update(ctx, p.Records, p.Snapshot().Roles, table, id, changes)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteRecordHandler(svc *service.RecordsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/tables/{table}/{id}")
		defer span.End()

		table, ok := tableParam(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")

		p := ProviderFromContext(ctx)
		if err := svc.Delete(ctx, p.Records, p.Snapshot().Roles, table, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "deleted", ID: id})
	}
}
