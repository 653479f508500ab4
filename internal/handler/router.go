package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/infra/observability"
	"github.com/boddenberg/hr-admin-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthChecker pings the Session Store.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// CookieConfig names the browser session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Config carries the HTTP-facing settings.
type Config struct {
	Cookie           CookieConfig
	AllowedOrigins   []string
	LoginPerMinute   int
	SlowLoadingAfter time.Duration
	// SettleTimeout bounds how long auth actions wait for the state to
	// reflect the session change before answering.
	SettleTimeout time.Duration
}

func (c *Config) withDefaults() {
	if c.Cookie.Name == "" {
		c.Cookie.Name = "hrdash_sid"
	}
	if c.LoginPerMinute <= 0 {
		c.LoginPerMinute = 10
	}
	if c.SlowLoadingAfter <= 0 {
		c.SlowLoadingAfter = 5 * time.Second
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = 5 * time.Second
	}
}

// protectedViews are the dashboard pages behind the Role Gate.
var protectedViews = []string{
	"/dashboard",
	"/employees",
	"/attendance",
	"/time-report",
	"/leave-requests",
	"/loan-requests",
	"/clients",
	"/audit-budget",
	"/invoices",
	"/project-profit",
	"/profile",
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	registry *service.ProviderRegistry,
	records *service.RecordsService,
	dashboard *service.DashboardService,
	health HealthChecker,
	cfg Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	cfg.withDefaults()
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, sessionIDField(cfg.Cookie.Name)))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Auth-Loading", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(health, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/auth", authMetricsHandler(metrics))

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(registry, cfg.Cookie, logger))

			// =============================================
			// Auth state, role query, notices and stream
			// =============================================
			r.Get("/auth/state", authStateHandler())
			r.Get("/auth/roles/{role}", roleCheckHandler())
			r.Get("/notices", noticesHandler())
			r.Get("/auth/stream", authStreamHandler(cfg.AllowedOrigins, logger))

			// =============================================
			// Auth actions
			// =============================================
			r.With(httprate.LimitByIP(cfg.LoginPerMinute, time.Minute)).
				Post("/auth/login", signInHandler(cfg.SettleTimeout, logger))
			r.Post("/auth/signup", signUpHandler(logger))
			r.Post("/auth/logout", signOutHandler(cfg.SettleTimeout, logger))

			// =============================================
			// Gated data
			// =============================================
			r.Group(func(r chi.Router) {
				r.Use(APIGate(metrics, cfg.SlowLoadingAfter))

				r.Get("/dashboard/metrics", dashboardMetricsHandler(dashboard, logger))

				r.Get("/tables/{table}", listRecordsHandler(records, logger))
				r.Post("/tables/{table}", createRecordHandler(records, logger))
				r.Patch("/tables/{table}/{id}", updateRecordHandler(records, logger))
				r.Delete("/tables/{table}/{id}", deleteRecordHandler(records, logger))
			})
		})
	})

	// --- Views ---
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, domain.PathDashboard, http.StatusSeeOther)
	})
	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(registry, cfg.Cookie, logger))
		r.Use(FollowNavigation)

		r.Get(domain.PathLogin, loginViewHandler(cfg.SlowLoadingAfter))

		r.Group(func(r chi.Router) {
			r.Use(ViewGate(metrics, cfg.SlowLoadingAfter))
			for _, path := range protectedViews {
				r.Get(path, viewHandler(path))
			}
		})
	})

	return r
}

func healthzHandler(health HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "bfa-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if health != nil {
			start := time.Now()
			err := health.Health(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				logger.Warn("supabase health check failed", zap.Error(err))
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase-auth", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func authMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAuthSnapshot())
	}
}
