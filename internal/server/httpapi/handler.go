// Package httpapi exposes the server's REST surface: the OIDC login flow,
// session management, and the encrypted vault CRUD endpoints.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/akarpov91/vaultd/internal/logging"
	"github.com/akarpov91/vaultd/internal/server/services"
)

// Handler wires the HTTP routes to the service layer.
type Handler struct {
	auth      *services.AuthService
	records   *services.RecordService
	tags      *services.TagService
	jwtSecret []byte
	logger    logging.Logger
}

func NewHandler(auth *services.AuthService, records *services.RecordService,
	tags *services.TagService, jwtSecret []byte, logger logging.Logger) *Handler {
	return &Handler{
		auth:      auth,
		records:   records,
		tags:      tags,
		jwtSecret: jwtSecret,
		logger:    logger.With("component", "httpapi"),
	}
}

// Routes returns the assembled router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.handleHealth)

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/login", h.handleLogin)
		r.Get("/callback", h.handleCallback)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/logout", h.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout_all", h.handleLogoutAll)
			r.Get("/me", h.handleMe)
			r.Delete("/me", h.handleDeleteAccount)
			r.Put("/me/preferences", h.handlePreferences)
		})
	})

	r.Route("/api/vault", func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/items", h.handleListRecords)
		r.Post("/items", h.handleCreateRecord)
		r.Post("/items/upload-url", h.handleUploadURL)
		r.Get("/items/{id}", h.handleGetRecord)
		r.Patch("/items/{id}", h.handleUpdateRecord)
		r.Delete("/items/{id}", h.handleDeleteRecord)
		r.Get("/items/{id}/download-url", h.handleDownloadURL)

		r.Get("/tags", h.handleListTags)
		r.Post("/tags", h.handleCreateTag)
		r.Get("/tags/{id}", h.handleGetTag)
		r.Patch("/tags/{id}", h.handleUpdateTag)
		r.Delete("/tags/{id}", h.handleDeleteTag)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
