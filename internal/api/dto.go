package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/stacks/internal/grid"
	"github.com/starford/stacks/internal/models"
	"github.com/starford/stacks/internal/noteservice"
)

// PositionDTO is a slot address in a request body.
type PositionDTO struct {
	Shelf int `json:"shelf" example:"0"`
	Slot  int `json:"slot" example:"4"`
}

// Validate checks grid bounds.
func (p PositionDTO) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Shelf, validation.Min(0), validation.Max(grid.ShelfCount-1)),
		validation.Field(&p.Slot, validation.Min(0), validation.Max(grid.SlotsPerShelf-1)),
	)
}

func (p PositionDTO) position() models.Position {
	return models.Position{Shelf: p.Shelf, Slot: p.Slot}
}

// CreateNoteRequest is the request body for creating a note. Pos is
// optional; when omitted the first free slot on the page is used. Image is
// base64-encoded source bytes.
type CreateNoteRequest struct {
	PageIndex int          `json:"page_index" example:"0"`
	Pos       *PositionDTO `json:"pos,omitempty"`
	Title     string       `json:"title" example:"Groceries"`
	Body      string       `json:"body" example:"milk, eggs"`
	Image     string       `json:"image,omitempty"`
}

// Validate validates the create request.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PageIndex, validation.Min(0)),
		validation.Field(&r.Pos),
	)
}

// UpdateNoteRequest is the request body for editing a note.
type UpdateNoteRequest struct {
	Title string `json:"title" example:"Groceries"`
	Body  string `json:"body" example:"milk, eggs, bread"`
	Image string `json:"image,omitempty"`
}

// MoveNoteRequest is the request body for moving a note to another slot.
type MoveNoteRequest struct {
	PageIndex int         `json:"page_index" example:"0"`
	Pos       PositionDTO `json:"pos"`
}

// Validate validates the move request.
func (r MoveNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PageIndex, validation.Min(0)),
		validation.Field(&r.Pos),
	)
}

// SyncRequest toggles remote mirroring.
type SyncRequest struct {
	Enabled bool `json:"enabled"`
}

// SyncStatusResponse reports the sync session state.
type SyncStatusResponse struct {
	Enabled    bool   `json:"enabled"`
	UserID     string `json:"user_id,omitempty"`
	Subscribed bool   `json:"subscribed"`
}

// PageView is one bookshelf page with its notes (aliased from the domain layer).
type PageView = noteservice.PageView

// PageListResponse wraps the bookshelf page listing.
type PageListResponse struct {
	Pages []models.BookshelfPage `json:"pages" validate:"required"`
}
