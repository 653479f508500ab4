package handler

import (
	"errors"
	"net/http"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/service"

	"go.uber.org/zap"
)

func dashboardMetricsHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/metrics")
		defer span.End()

		p := ProviderFromContext(ctx)
		m, err := svc.Metrics(ctx, p.Records, p.Snapshot().Roles)
		if err != nil {
			var forbidden *domain.ErrForbidden
			if errors.As(err, &forbidden) {
				writeError(w, http.StatusForbidden, domain.MsgDashboardForbidden)
				return
			}
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, m)
	}
}
