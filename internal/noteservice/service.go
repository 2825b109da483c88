// Package noteservice implements the collaborator-facing note operations:
// create, edit, move, delete, and page listing.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/stacks/internal/apperr"
	"github.com/starford/stacks/internal/cache"
	"github.com/starford/stacks/internal/grid"
	"github.com/starford/stacks/internal/imaging"
	"github.com/starford/stacks/internal/models"
	"github.com/starford/stacks/internal/syncer"
)

// Options control slot allocation and image normalization.
type Options struct {
	// AutoExpand creates a new bookshelf page when the target page is full
	// instead of failing the create.
	AutoExpand bool
	// ThumbWidth is the maximum artifact width in pixels.
	ThumbWidth int
	// Quality is the JPEG re-encode quality in (0, 1].
	Quality float64
}

// Service coordinates the cache, the position allocator, the image pipeline,
// and the sync coordinator.
type Service struct {
	cache  cache.Store
	coord  *syncer.Coordinator
	opts   Options
	logger *slog.Logger
}

// NewService creates a new note service.
func NewService(c cache.Store, coord *syncer.Coordinator, opts Options, logger *slog.Logger) *Service {
	return &Service{cache: c, coord: coord, opts: opts, logger: logger}
}

// PageView is one bookshelf page with its notes sorted by shelf, then slot.
type PageView struct {
	Page  models.BookshelfPage `json:"page"`
	Notes []models.Note        `json:"notes"`
}

// CreateNote creates a note on the page at pageIndex. With pos nil the first
// free slot is used; when the page is full, auto-expand (if enabled) creates
// a new page and places the note at its first slot, otherwise the create
// fails with apperr.ErrCapacityExceeded and nothing is written. An explicit
// occupied slot fails with apperr.ErrConflict.
func (s *Service) CreateNote(ctx context.Context, pageIndex int, pos *models.Position, title, body string, image []byte) (*models.Note, error) {
	if pageIndex < 0 {
		return nil, fmt.Errorf("noteservice: page %d: %w", pageIndex, apperr.ErrNotFound)
	}
	pages, err := s.cache.ListBookshelves()
	if err != nil {
		return nil, err
	}
	var page models.BookshelfPage
	if pageIndex < len(pages) {
		page = pages[pageIndex]
	} else {
		// Target page does not exist yet; create the next one, as the
		// swipe UI only ever reaches one page past the end.
		p, cErr := s.cache.CreateBookshelf(nextLabel(len(pages)))
		if cErr != nil {
			return nil, cErr
		}
		page = *p
		pages = append(pages, page)
	}
	notes, err := s.cache.NotesForBookshelf(page.ID)
	if err != nil {
		return nil, err
	}

	if pos == nil {
		p, err := grid.Allocate(notes)
		if errors.Is(err, apperr.ErrCapacityExceeded) {
			if !s.opts.AutoExpand {
				return nil, err
			}
			next, cErr := s.cache.CreateBookshelf(nextLabel(len(pages)))
			if cErr != nil {
				return nil, cErr
			}
			page = *next
			p = models.Position{}
		} else if err != nil {
			return nil, err
		}
		pos = &p
	} else {
		if !grid.InBounds(*pos) {
			return nil, fmt.Errorf("noteservice: position (%d,%d) out of grid bounds", pos.Shelf, pos.Slot)
		}
		if _, taken := grid.NoteAt(notes, *pos); taken {
			return nil, fmt.Errorf("noteservice: slot (%d,%d) occupied: %w", pos.Shelf, pos.Slot, apperr.ErrConflict)
		}
	}

	now := time.Now()
	n := &models.Note{
		Title:     title,
		Body:      body,
		Bookshelf: page.ID,
		Pos:       *pos,
		CreatedAt: now,
		UpdatedAt: now,
		Image:     s.processImage(image),
	}
	if err := s.cache.SaveNote(n); err != nil {
		return nil, err
	}
	s.coord.NoteSaved(ctx, n)
	return n, nil
}

// EditNote mutates a note in place. A new image replaces the local artifact
// and clears the remote reference so the next push re-uploads it.
func (s *Service) EditNote(ctx context.Context, id int64, title, body string, image []byte) (*models.Note, error) {
	n, err := s.cache.GetNote(id)
	if err != nil {
		return nil, err
	}
	n.Title = title
	n.Body = body
	if len(image) > 0 {
		n.Image = s.processImage(image)
		n.RemoteImage = nil
	}
	n.UpdatedAt = time.Now()
	n.Synced = false
	if err := s.cache.SaveNote(n); err != nil {
		return nil, err
	}
	s.coord.NoteSaved(ctx, n)
	return n, nil
}

// MoveNote relocates a note to the given slot on the page at toPage.
// Moving onto an occupied slot is rejected with apperr.ErrConflict; the
// occupant is never silently overwritten.
func (s *Service) MoveNote(ctx context.Context, id int64, toPage int, to models.Position) (*models.Note, error) {
	n, err := s.cache.GetNote(id)
	if err != nil {
		return nil, err
	}
	page, err := s.pageAt(toPage)
	if err != nil {
		return nil, err
	}
	if !grid.InBounds(to) {
		return nil, fmt.Errorf("noteservice: position (%d,%d) out of grid bounds", to.Shelf, to.Slot)
	}

	notes, err := s.cache.NotesForBookshelf(page.ID)
	if err != nil {
		return nil, err
	}
	if occ, taken := grid.NoteAt(notes, to); taken && occ.ID != n.ID {
		return nil, fmt.Errorf("noteservice: slot (%d,%d) occupied by note %d: %w", to.Shelf, to.Slot, occ.ID, apperr.ErrConflict)
	}

	n.Bookshelf = page.ID
	n.Pos = to
	n.UpdatedAt = time.Now()
	n.Synced = false
	if err := s.cache.SaveNote(n); err != nil {
		return nil, err
	}
	s.coord.NoteSaved(ctx, n)
	return n, nil
}

// DeleteNote removes a note locally and mirrors the delete. Deleting an
// absent note is a no-op.
func (s *Service) DeleteNote(ctx context.Context, id int64) error {
	n, err := s.cache.GetNote(id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.cache.DeleteNote(id); err != nil {
		return err
	}
	s.coord.NoteDeleted(ctx, *n)
	return nil
}

// ListPage returns the page at pageIndex with its notes sorted by position.
func (s *Service) ListPage(_ context.Context, pageIndex int) (*PageView, error) {
	page, err := s.pageAt(pageIndex)
	if err != nil {
		return nil, err
	}
	notes, err := s.cache.NotesForBookshelf(page.ID)
	if err != nil {
		return nil, err
	}
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Pos.Shelf != notes[j].Pos.Shelf {
			return notes[i].Pos.Shelf < notes[j].Pos.Shelf
		}
		return notes[i].Pos.Slot < notes[j].Pos.Slot
	})
	if notes == nil {
		notes = []models.Note{}
	}
	return &PageView{Page: page, Notes: notes}, nil
}

// ListPages returns all bookshelf pages in swipe order.
func (s *Service) ListPages(_ context.Context) ([]models.BookshelfPage, error) {
	pages, err := s.cache.ListBookshelves()
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []models.BookshelfPage{}
	}
	return pages, nil
}

// CreatePage appends a new empty bookshelf page.
func (s *Service) CreatePage(_ context.Context) (*models.BookshelfPage, error) {
	pages, err := s.cache.ListBookshelves()
	if err != nil {
		return nil, err
	}
	return s.cache.CreateBookshelf(nextLabel(len(pages)))
}

// pageAt resolves an existing page index.
func (s *Service) pageAt(pageIndex int) (models.BookshelfPage, error) {
	pages, err := s.cache.ListBookshelves()
	if err != nil {
		return models.BookshelfPage{}, err
	}
	if pageIndex < 0 || pageIndex >= len(pages) {
		return models.BookshelfPage{}, fmt.Errorf("noteservice: page %d: %w", pageIndex, apperr.ErrNotFound)
	}
	return pages[pageIndex], nil
}

// processImage runs the compression pipeline, falling back to the original
// bytes when the source cannot be decoded.
func (s *Service) processImage(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	artifact, err := imaging.Compress(src, s.opts.ThumbWidth, s.opts.Quality)
	if err != nil {
		s.logger.Warn("noteservice: compress failed, storing original", slog.String("error", err.Error()))
		return src
	}
	return artifact
}

func nextLabel(count int) string {
	return fmt.Sprintf("bookshelf-%d", count+1)
}
