package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ledgersync/internal/http/handlers"
	"ledgersync/internal/middleware"
)

type Options struct {
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/integrations/{provider}", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))
		r.Use(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))
		r.Get("/", app.IntegrationStatus)
		r.Post("/", app.IntegrationAction)
		r.Delete("/", app.IntegrationDisconnect)
		r.Get("/authorize", app.IntegrationAuthorize)
	})

	return r
}
