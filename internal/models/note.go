// Package models defines the domain types for Stacks.
package models

import "time"

// Position addresses one slot on a bookshelf page.
type Position struct {
	Shelf int `json:"shelf"`
	Slot  int `json:"slot"`
}

// RemoteImage references an uploaded image artifact in the remote object store.
type RemoteImage struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Note represents one book on a bookshelf page.
//
// ID is assigned by the local cache on first insert and is immutable
// afterwards; it is the join key between the local cache and the remote
// mirror (serialized as a string key remotely). Image holds the compressed
// local artifact and is never written to the remote document store.
type Note struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	Bookshelf   int64        `json:"bookshelf"`
	Pos         Position     `json:"pos"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Image       []byte       `json:"-"`
	RemoteImage *RemoteImage `json:"remote_image,omitempty"`
	Synced      bool         `json:"synced"`
}

// BookshelfPage is one fixed-capacity grid of note slots.
type BookshelfPage struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	PageIndex int       `json:"page_index"`
}
