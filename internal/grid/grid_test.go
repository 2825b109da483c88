package grid

import (
	"errors"
	"testing"

	"github.com/starford/stacks/internal/apperr"
	"github.com/starford/stacks/internal/models"
)

func TestAllocate_RowMajorOrder(t *testing.T) {
	var notes []models.Note
	for i := 0; i < Capacity(); i++ {
		pos, err := Allocate(notes)
		if err != nil {
			t.Fatalf("Allocate after %d notes: %v", i, err)
		}
		wantShelf, wantSlot := i/SlotsPerShelf, i%SlotsPerShelf
		if pos.Shelf != wantShelf || pos.Slot != wantSlot {
			t.Fatalf("allocation %d = (%d,%d), want (%d,%d)", i, pos.Shelf, pos.Slot, wantShelf, wantSlot)
		}
		notes = append(notes, models.Note{ID: int64(i + 1), Pos: pos})
	}
}

func TestAllocate_FullPage(t *testing.T) {
	var notes []models.Note
	for shelf := 0; shelf < ShelfCount; shelf++ {
		for slot := 0; slot < SlotsPerShelf; slot++ {
			notes = append(notes, models.Note{Pos: models.Position{Shelf: shelf, Slot: slot}})
		}
	}
	_, err := Allocate(notes)
	if !errors.Is(err, apperr.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestAllocate_FillsGaps(t *testing.T) {
	// Leave (0,3) free in an otherwise packed first shelf.
	var notes []models.Note
	for slot := 0; slot < SlotsPerShelf; slot++ {
		if slot == 3 {
			continue
		}
		notes = append(notes, models.Note{Pos: models.Position{Shelf: 0, Slot: slot}})
	}
	pos, err := Allocate(notes)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if pos != (models.Position{Shelf: 0, Slot: 3}) {
		t.Errorf("pos = (%d,%d), want (0,3)", pos.Shelf, pos.Slot)
	}
}

func TestInBounds(t *testing.T) {
	cases := []struct {
		pos  models.Position
		want bool
	}{
		{models.Position{Shelf: 0, Slot: 0}, true},
		{models.Position{Shelf: ShelfCount - 1, Slot: SlotsPerShelf - 1}, true},
		{models.Position{Shelf: -1, Slot: 0}, false},
		{models.Position{Shelf: 0, Slot: -1}, false},
		{models.Position{Shelf: ShelfCount, Slot: 0}, false},
		{models.Position{Shelf: 0, Slot: SlotsPerShelf}, false},
	}
	for _, c := range cases {
		if got := InBounds(c.pos); got != c.want {
			t.Errorf("InBounds(%d,%d) = %v, want %v", c.pos.Shelf, c.pos.Slot, got, c.want)
		}
	}
}

func TestNoteAt(t *testing.T) {
	notes := []models.Note{
		{ID: 1, Pos: models.Position{Shelf: 0, Slot: 0}},
		{ID: 2, Pos: models.Position{Shelf: 1, Slot: 4}},
	}
	n, ok := NoteAt(notes, models.Position{Shelf: 1, Slot: 4})
	if !ok || n.ID != 2 {
		t.Fatalf("NoteAt(1,4) = %v, %v; want note 2", n, ok)
	}
	if _, ok := NoteAt(notes, models.Position{Shelf: 2, Slot: 9}); ok {
		t.Error("NoteAt on empty slot reported a note")
	}
}
