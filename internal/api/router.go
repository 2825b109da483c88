package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/stacks/internal/noteservice"
	"github.com/starford/stacks/internal/sse"
	"github.com/starford/stacks/internal/syncer"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, also serves the SSE events endpoint.
func NewRouter(svc *noteservice.Service, coord *syncer.Coordinator, broker *sse.Broker, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc, coord, broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Bookshelf pages.
	r.Get("/pages", h.ListPages)
	r.Post("/pages", h.CreatePage)
	r.Get("/pages/{index}", h.GetPage)

	// Notes.
	r.Post("/notes", h.CreateNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Post("/notes/{id}/move", h.MoveNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Sync control.
	r.Get("/sync", h.SyncStatus)
	r.Put("/sync", h.SetSync)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Method(http.MethodGet, "/events", broker)
	}

	return r
}
