package http

import (
	"net/http"

	"memosync/internal/auth"
	"memosync/internal/config"
	"memosync/internal/http/handler"
	mw "memosync/internal/http/middleware"
	"memosync/internal/metrics"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Deps are the services the router wires into handlers.
type Deps struct {
	Store   handler.RecordStore
	Users   auth.Users
	JWT     *auth.JWT
	OAuth   auth.OAuth2Providers
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.Logger(d.Logger.Named("http")))
	r.Use(chimw.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	requireAuth := auth.RequireAuth(d.JWT)

	ah := &handler.AuthHandler{Users: d.Users, JWT: d.JWT, OAuth: d.OAuth, Metrics: d.Metrics, Logger: d.Logger}
	r.Route("/api/collections/users", func(r chi.Router) {
		r.Post("/register", ah.Register)
		r.Post("/auth-with-password", ah.Login)
		r.With(requireAuth).Post("/auth-refresh", ah.Refresh)
	})
	r.Get("/api/oauth2/{provider}/url", ah.OAuthURL)
	r.Post("/api/oauth2/{provider}/exchange", ah.OAuthExchange)

	me := &handler.MeHandler{Users: d.Users}
	r.With(requireAuth).Get("/me", me.Me)

	rh := &handler.RecordsHandler{Store: d.Store, Logger: d.Logger}
	r.Route("/api/collections/{collection}/records", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/", rh.List)
		r.Post("/", rh.Create)
		r.Get("/first", rh.First)
		r.Get("/{id}", rh.Get)
		r.Patch("/{id}", rh.Update)
		r.Delete("/{id}", rh.Delete)
	})

	return r
}
