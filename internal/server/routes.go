package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// routes builds the full handler tree.
func (s *Server) routes() chi.Router {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		accessLog(s.log),
		middleware.Recoverer,
	)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Content-Disposition", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	// Export bodies are streamed and stay uncompressed.
	gz := middleware.Compress(5, "application/json")

	r.Get("/healthz", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/connections", func(r chi.Router) {
			r.Use(gz)
			r.Post("/", s.createConnection)
			r.Get("/", s.listConnections)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getConnection)
				r.Delete("/", s.deleteConnection)
				r.Post("/index", s.indexConnection)
				r.Get("/schema", s.getSchema)
				r.Get("/tables/{table}/preview", s.previewTable)
			})
		})

		r.Route("/query", func(r chi.Router) {
			r.With(gz).Post("/validate", s.validateSQL)
			r.With(gz).Post("/sql", s.executeSQL)
			r.With(gz).Post("/natural-language", s.naturalLanguage)
			r.Post("/export", s.exportQuery)
		})

		r.Route("/exports", func(r chi.Router) {
			r.With(gz).Get("/", s.listExports)
			r.Get("/*", s.getExport)
		})
	})

	return r
}
