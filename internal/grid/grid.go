// Package grid assigns and locates note slots within the fixed-capacity
// shelf grid of a bookshelf page.
package grid

import (
	"fmt"

	"github.com/starford/stacks/internal/apperr"
	"github.com/starford/stacks/internal/models"
)

// Grid dimensions of one bookshelf page.
const (
	ShelfCount    = 3
	SlotsPerShelf = 10
)

// Capacity returns the total number of slots on one bookshelf page.
func Capacity() int {
	return ShelfCount * SlotsPerShelf
}

// InBounds reports whether pos addresses a valid slot.
func InBounds(pos models.Position) bool {
	return pos.Shelf >= 0 && pos.Shelf < ShelfCount &&
		pos.Slot >= 0 && pos.Slot < SlotsPerShelf
}

// NoteAt returns the note occupying pos, if any.
func NoteAt(notes []models.Note, pos models.Position) (*models.Note, bool) {
	for i := range notes {
		if notes[i].Pos == pos {
			return &notes[i], true
		}
	}
	return nil, false
}

// Allocate returns the first free slot on the page, scanning shelves top to
// bottom and slots left to right. It returns apperr.ErrCapacityExceeded when
// every slot is occupied.
func Allocate(notes []models.Note) (models.Position, error) {
	occupied := make(map[models.Position]struct{}, len(notes))
	for _, n := range notes {
		occupied[n.Pos] = struct{}{}
	}
	for shelf := 0; shelf < ShelfCount; shelf++ {
		for slot := 0; slot < SlotsPerShelf; slot++ {
			pos := models.Position{Shelf: shelf, Slot: slot}
			if _, ok := occupied[pos]; !ok {
				return pos, nil
			}
		}
	}
	return models.Position{}, fmt.Errorf("grid: page holds %d notes: %w", len(notes), apperr.ErrCapacityExceeded)
}
