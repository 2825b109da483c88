// Package cache provides the SQLite-backed local store for notes and
// bookshelf pages.
package cache

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/stacks/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS bookshelves (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	label      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	page_index INTEGER NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS notes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	bookshelf   INTEGER NOT NULL,
	shelf       INTEGER NOT NULL,
	slot        INTEGER NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	image       BLOB,
	remote_path TEXT NOT NULL DEFAULT '',
	remote_url  TEXT NOT NULL DEFAULT '',
	synced      INTEGER NOT NULL DEFAULT 0,
	UNIQUE(bookshelf, shelf, slot)
);

CREATE INDEX IF NOT EXISTS idx_notes_bookshelf ON notes(bookshelf);
`

// Store defines the interface for local cache operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Store interface {
	SaveNote(n *models.Note) error
	GetNote(id int64) (*models.Note, error)
	DeleteNote(id int64) error
	NotesForBookshelf(bookshelfID int64) ([]models.Note, error)
	UnsyncedNotes() ([]models.Note, error)
	MarkSynced(id int64) error
	SetRemoteImage(id int64, img models.RemoteImage) error
	UpsertFromRemote(n models.Note) error
	ListBookshelves() ([]models.BookshelfPage, error)
	CreateBookshelf(label string) (*models.BookshelfPage, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// DB wraps a sql.DB with cache-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("cache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
