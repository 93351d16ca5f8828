package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ClarenceChoo/Digital-Forensics/internal/http/handlers"
	"github.com/ClarenceChoo/Digital-Forensics/internal/infra"
	"github.com/ClarenceChoo/Digital-Forensics/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, log infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(log),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.Get("/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/images", func(r chi.Router) {
			r.With(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)).
				Post("/", app.ImagesUpload)
			r.Get("/", app.ImagesList)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.ImageGet)
				r.Get("/thumbnails/{size}", app.ImageThumbnail)
				r.Get("/export", app.ImageExport)
			})
		})
		r.Get("/stats", app.Stats)
	})

	return r
}
