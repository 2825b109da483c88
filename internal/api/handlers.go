package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/stacks/internal/apperr"
	"github.com/starford/stacks/internal/models"
	"github.com/starford/stacks/internal/noteservice"
	"github.com/starford/stacks/internal/sse"
	"github.com/starford/stacks/internal/syncer"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *noteservice.Service
	coord  *syncer.Coordinator
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil (no event broadcast).
func NewHandler(svc *noteservice.Service, coord *syncer.Coordinator, broker *sse.Broker) *Handler {
	return &Handler{svc: svc, coord: coord, broker: broker}
}

func (h *Handler) publishNote(kind string, id int64) {
	if h.broker != nil {
		h.broker.PublishNoteEvent(kind, id)
	}
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("slot occupied"))
	case errors.Is(err, apperr.ErrCapacityExceeded):
		writeJSON(w, http.StatusConflict, errorBody("bookshelf is full"))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func noteID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func decodeImage(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// ListPages handles GET /api/pages.
//
//	@Summary		List bookshelf pages in swipe order
//	@Tags			pages
//	@Produce		json
//	@Success		200	{object}	PageListResponse
//	@Security		BearerAuth
//	@Router			/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.svc.ListPages(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: pages})
}

// CreatePage handles POST /api/pages.
//
//	@Summary		Append a new empty bookshelf page
//	@Tags			pages
//	@Produce		json
//	@Success		201	{object}	models.BookshelfPage
//	@Security		BearerAuth
//	@Router			/pages [post]
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.CreatePage(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

// GetPage handles GET /api/pages/{index}.
//
//	@Summary		Get one bookshelf page with its notes sorted by position
//	@Tags			pages
//	@Produce		json
//	@Param			index	path		int	true	"Page index"
//	@Success		200		{object}	PageView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{index} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid page index"))
		return
	}
	view, err := h.svc.ListPage(r.Context(), index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note at an explicit slot or the first free one
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	image, err := decodeImage(req.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("image is not valid base64"))
		return
	}

	var pos *models.Position
	if req.Pos != nil {
		p := req.Pos.position()
		pos = &p
	}

	note, err := h.svc.CreateNote(r.Context(), req.PageIndex, pos, req.Title, req.Body, image)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.publishNote("created", note.ID)
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Edit a note in place
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Note id"
//	@Param			body	body		UpdateNoteRequest	true	"New content"
//	@Success		200		{object}	models.Note
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	image, err := decodeImage(req.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("image is not valid base64"))
		return
	}

	note, err := h.svc.EditNote(r.Context(), id, req.Title, req.Body, image)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.publishNote("updated", note.ID)
	writeJSON(w, http.StatusOK, note)
}

// MoveNote handles POST /api/notes/{id}/move.
//
//	@Summary		Move a note to another slot; occupied targets are rejected
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Note id"
//	@Param			body	body		MoveNoteRequest	true	"Target position"
//	@Success		200		{object}	models.Note
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/move [post]
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	var req MoveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	note, err := h.svc.MoveNote(r.Context(), id, req.PageIndex, req.Pos.position())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.publishNote("moved", note.ID)
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note locally and from the remote mirror
//	@Tags			notes
//	@Param			id	path	int	true	"Note id"
//	@Success		204
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := noteID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid note id"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.publishNote("deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// SyncStatus handles GET /api/sync.
func (h *Handler) SyncStatus(w http.ResponseWriter, _ *http.Request) {
	enabled, userID, subscribed := h.coord.Status()
	writeJSON(w, http.StatusOK, SyncStatusResponse{Enabled: enabled, UserID: userID, Subscribed: subscribed})
}

// SetSync handles PUT /api/sync.
//
//	@Summary		Enable or disable remote mirroring
//	@Tags			sync
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SyncRequest	true	"Desired state"
//	@Success		200		{object}	SyncStatusResponse
//	@Security		BearerAuth
//	@Router			/sync [put]
func (h *Handler) SetSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	// The subscription outlives this request.
	if err := h.coord.SetEnabled(context.Background(), req.Enabled); err != nil {
		slog.Error("sync toggle failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("remote subscription failed"))
		return
	}
	h.SyncStatus(w, r)
}
