package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/stacks/internal/apperr"
	"github.com/starford/stacks/internal/models"
)

const noteColumns = `id, title, body, bookshelf, shelf, slot, created_at, updated_at, image, remote_path, remote_url, synced`

// SaveNote inserts n when its ID is unset, assigning a new unique id, and
// otherwise fully replaces the record with the same id. The position UNIQUE
// constraint rejects a write that would put two notes in one slot.
func (db *DB) SaveNote(n *models.Note) error {
	path, url := "", ""
	if n.RemoteImage != nil {
		path, url = n.RemoteImage.Path, n.RemoteImage.URL
	}

	if n.ID == 0 {
		res, err := db.conn.Exec(`
			INSERT INTO notes (title, body, bookshelf, shelf, slot, created_at, updated_at, image, remote_path, remote_url, synced)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, n.Title, n.Body, n.Bookshelf, n.Pos.Shelf, n.Pos.Slot, n.CreatedAt, n.UpdatedAt, n.Image, path, url, n.Synced)
		if err != nil {
			return fmt.Errorf("cache: insert note: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("cache: last insert id: %w", err)
		}
		n.ID = id
		return nil
	}

	_, err := db.conn.Exec(`
		INSERT INTO notes (id, title, body, bookshelf, shelf, slot, created_at, updated_at, image, remote_path, remote_url, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title       = excluded.title,
			body        = excluded.body,
			bookshelf   = excluded.bookshelf,
			shelf       = excluded.shelf,
			slot        = excluded.slot,
			created_at  = excluded.created_at,
			updated_at  = excluded.updated_at,
			image       = excluded.image,
			remote_path = excluded.remote_path,
			remote_url  = excluded.remote_url,
			synced      = excluded.synced
	`, n.ID, n.Title, n.Body, n.Bookshelf, n.Pos.Shelf, n.Pos.Slot, n.CreatedAt, n.UpdatedAt, n.Image, path, url, n.Synced)
	if err != nil {
		return fmt.Errorf("cache: replace note %d: %w", n.ID, err)
	}
	return nil
}

// GetNote returns the note with the given id, or apperr.ErrNotFound.
func (db *DB) GetNote(id int64) (*models.Note, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("cache: get note %d: %w", id, err)
	}
	return n, nil
}

// DeleteNote removes the note with the given id. Deleting an absent note is
// not an error.
func (db *DB) DeleteNote(id int64) error {
	if _, err := db.conn.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("cache: delete note %d: %w", id, err)
	}
	return nil
}

// NotesForBookshelf returns all notes on the given bookshelf page, in no
// particular order.
func (db *DB) NotesForBookshelf(bookshelfID int64) ([]models.Note, error) {
	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes WHERE bookshelf = ?`, bookshelfID)
	if err != nil {
		return nil, fmt.Errorf("cache: notes for bookshelf %d: %w", bookshelfID, err)
	}
	return collectNotes(rows)
}

// UnsyncedNotes returns every note not yet mirrored remotely.
func (db *DB) UnsyncedNotes() ([]models.Note, error) {
	rows, err := db.conn.Query(`SELECT ` + noteColumns + ` FROM notes WHERE synced = 0`)
	if err != nil {
		return nil, fmt.Errorf("cache: unsynced notes: %w", err)
	}
	return collectNotes(rows)
}

// MarkSynced flags the note as matching the last-pushed remote document.
func (db *DB) MarkSynced(id int64) error {
	if _, err := db.conn.Exec(`UPDATE notes SET synced = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("cache: mark synced %d: %w", id, err)
	}
	return nil
}

// SetRemoteImage records the remote object reference for the note's artifact.
func (db *DB) SetRemoteImage(id int64, img models.RemoteImage) error {
	_, err := db.conn.Exec(`UPDATE notes SET remote_path = ?, remote_url = ? WHERE id = ?`, img.Path, img.URL, id)
	if err != nil {
		return fmt.Errorf("cache: set remote image %d: %w", id, err)
	}
	return nil
}

// UpsertFromRemote applies one remote document to the cache, keyed by id.
// An existing local image artifact is preserved (remote documents never carry
// binary image data). Applied records are marked synced.
func (db *DB) UpsertFromRemote(n models.Note) error {
	path, url := "", ""
	if n.RemoteImage != nil {
		path, url = n.RemoteImage.Path, n.RemoteImage.URL
	}
	_, err := db.conn.Exec(`
		INSERT INTO notes (id, title, body, bookshelf, shelf, slot, created_at, updated_at, image, remote_path, remote_url, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			title       = excluded.title,
			body        = excluded.body,
			bookshelf   = excluded.bookshelf,
			shelf       = excluded.shelf,
			slot        = excluded.slot,
			created_at  = excluded.created_at,
			updated_at  = excluded.updated_at,
			remote_path = excluded.remote_path,
			remote_url  = excluded.remote_url,
			synced      = 1
	`, n.ID, n.Title, n.Body, n.Bookshelf, n.Pos.Shelf, n.Pos.Slot, n.CreatedAt, n.UpdatedAt, path, url)
	if err != nil {
		return fmt.Errorf("cache: upsert from remote %d: %w", n.ID, err)
	}
	return nil
}

// ListBookshelves returns all bookshelf pages ordered by page index.
func (db *DB) ListBookshelves() ([]models.BookshelfPage, error) {
	rows, err := db.conn.Query(`SELECT id, label, created_at, page_index FROM bookshelves ORDER BY page_index ASC`)
	if err != nil {
		return nil, fmt.Errorf("cache: list bookshelves: %w", err)
	}
	defer rows.Close()

	var out []models.BookshelfPage
	for rows.Next() {
		var p models.BookshelfPage
		if err := rows.Scan(&p.ID, &p.Label, &p.CreatedAt, &p.PageIndex); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateBookshelf appends a new page with page_index = current count.
func (db *DB) CreateBookshelf(label string) (*models.BookshelfPage, error) {
	p := models.BookshelfPage{Label: label, CreatedAt: time.Now()}

	res, err := db.conn.Exec(`
		INSERT INTO bookshelves (label, created_at, page_index)
		VALUES (?, ?, (SELECT COUNT(*) FROM bookshelves))
	`, p.Label, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("cache: create bookshelf: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("cache: last insert id: %w", err)
	}

	if err := db.conn.QueryRow(`SELECT page_index FROM bookshelves WHERE id = ?`, p.ID).Scan(&p.PageIndex); err != nil {
		return nil, fmt.Errorf("cache: read page index: %w", err)
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.Note, error) {
	var n models.Note
	var path, url string
	if err := s.Scan(&n.ID, &n.Title, &n.Body, &n.Bookshelf, &n.Pos.Shelf, &n.Pos.Slot,
		&n.CreatedAt, &n.UpdatedAt, &n.Image, &path, &url, &n.Synced); err != nil {
		return nil, err
	}
	if path != "" || url != "" {
		n.RemoteImage = &models.RemoteImage{Path: path, URL: url}
	}
	return &n, nil
}

func collectNotes(rows *sql.Rows) ([]models.Note, error) {
	defer rows.Close()
	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}
