package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/admin"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/authz"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/gate"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/observability"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Gate         *gate.Gate
	AdminHandler *admin.Handler
	JobsHandler  *jobs.Handler
	Metrics      *observability.Metrics

	// Mount lets the domain API attach its routes under the gate.
	Mount func(r chi.Router)
}

// NewRouter constructs the chi.Router with the gate wired in.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.AdminHandler != nil {
		adminLimit := 60
		if params.Config != nil && params.Config.AdminRateLimit > 0 {
			adminLimit = params.Config.AdminRateLimit
		}
		r.Route("/admin", func(r chi.Router) {
			// Second belt on top of the gate's own counters.
			r.Use(httprate.Limit(adminLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			r.Use(params.Gate.Middleware(gate.Requirement{
				CredentialRequired: true,
				RequireVerified:    true,
				ActivityClass:      "admin",
				Permissions:        []authz.Permission{authz.PermUsersManage},
				RequireAll:         true,
				Roles:              []identity.Role{identity.RoleSuperAdmin, identity.RoleMarketingCoordinator},
				SkipForSuperAdmin:  true,
			}, nil))
			params.AdminHandler.MountRoutes(r)
			if params.JobsHandler != nil {
				r.Route("/jobs", params.JobsHandler.MountRoutes)
			}
		})
	}

	if params.Mount != nil {
		params.Mount(r)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
