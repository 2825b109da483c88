// Package mirror pushes local notes to a remote document store and object
// store, and applies the remote change feed back into the local cache.
package mirror

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/starford/stacks/internal/models"
)

// Doc is the remote document mirroring one note. The note id is serialized
// as a string key remotely; timestamps are unix milliseconds. Binary image
// data is never part of a Doc, only the CloudImage reference.
type Doc struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Body       string              `json:"body"`
	Bookshelf  int64               `json:"bookshelf"`
	Pos        models.Position     `json:"pos"`
	CreatedAt  int64               `json:"created_at"`
	UpdatedAt  int64               `json:"updated_at"`
	CloudImage *models.RemoteImage `json:"cloud_image"`

	// Deleted marks a tombstone on the change feed; tombstones are never
	// stored as documents.
	Deleted bool `json:"deleted,omitempty"`
}

// DocStore is the remote document store, one document per note under
// users/{userId}/notes/{noteId}.
type DocStore interface {
	// Put fully replaces the document keyed by doc.ID (last-write-wins).
	Put(ctx context.Context, userID string, doc Doc) error
	// Delete removes the document and emits a tombstone on the change feed.
	Delete(ctx context.Context, userID, id string) error
	// Snapshots returns a feed of document batches: first the full current
	// state, then one batch per remote change. The channel is closed when
	// ctx is cancelled.
	Snapshots(ctx context.Context, userID string) (<-chan []Doc, error)
}

// BlobStore is the remote object store for image artifacts.
type BlobStore interface {
	// Upload stores data under key and returns a fetchable URL.
	Upload(ctx context.Context, key string, data []byte) (string, error)
	// Remove deletes the object at key.
	Remove(ctx context.Context, key string) error
}

// FromNote converts a local note into its remote document form.
func FromNote(n models.Note) Doc {
	return Doc{
		ID:         strconv.FormatInt(n.ID, 10),
		Title:      n.Title,
		Body:       n.Body,
		Bookshelf:  n.Bookshelf,
		Pos:        n.Pos,
		CreatedAt:  n.CreatedAt.UnixMilli(),
		UpdatedAt:  n.UpdatedAt.UnixMilli(),
		CloudImage: n.RemoteImage,
	}
}

// Note converts the document back into a local note, coercing the string id
// to its numeric local form.
func (d Doc) Note() (models.Note, error) {
	id, err := strconv.ParseInt(d.ID, 10, 64)
	if err != nil {
		return models.Note{}, fmt.Errorf("mirror: non-numeric doc id %q: %w", d.ID, err)
	}
	return models.Note{
		ID:          id,
		Title:       d.Title,
		Body:        d.Body,
		Bookshelf:   d.Bookshelf,
		Pos:         d.Pos,
		CreatedAt:   time.UnixMilli(d.CreatedAt),
		UpdatedAt:   time.UnixMilli(d.UpdatedAt),
		RemoteImage: d.CloudImage,
	}, nil
}
