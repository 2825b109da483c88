package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/starford/stacks/internal/cache"
	"github.com/starford/stacks/internal/models"
)

// Mirror keeps the local cache and the remote stores consistent under
// manual, one-way, last-write-wins synchronization.
type Mirror struct {
	cache  cache.Store
	docs   DocStore
	blobs  BlobStore
	logger *slog.Logger
}

// New creates a Mirror over the given cache and remote stores.
func New(c cache.Store, docs DocStore, blobs BlobStore, logger *slog.Logger) *Mirror {
	return &Mirror{cache: c, docs: docs, blobs: blobs, logger: logger}
}

// blobKey namespaces an image object by user and note id plus a timestamp
// disambiguator, so repeated edits never overwrite an object in place.
func blobKey(userID string, noteID int64) string {
	return fmt.Sprintf("users/%s/images/%d-%d.jpg", userID, noteID, time.Now().UnixMilli())
}

// PushNote writes the note's remote document, uploading a pending local
// image artifact first. The artifact binary never enters the document store;
// the uploaded {path,url} reference replaces it in the written document.
// On success the note is marked synced locally. A failed push leaves the
// note unsynced and its local state untouched.
func (m *Mirror) PushNote(ctx context.Context, userID string, n *models.Note) error {
	if len(n.Image) > 0 && n.RemoteImage == nil {
		key := blobKey(userID, n.ID)
		url, err := m.blobs.Upload(ctx, key, n.Image)
		if err != nil {
			return fmt.Errorf("mirror: upload image for note %d: %w", n.ID, err)
		}
		n.RemoteImage = &models.RemoteImage{Path: key, URL: url}
		if err := m.cache.SetRemoteImage(n.ID, *n.RemoteImage); err != nil {
			return err
		}
	}

	if err := m.docs.Put(ctx, userID, FromNote(*n)); err != nil {
		return fmt.Errorf("mirror: push note %d: %w", n.ID, err)
	}
	if err := m.cache.MarkSynced(n.ID); err != nil {
		return err
	}
	n.Synced = true
	return nil
}

// PushAllUnsynced pushes every local note lacking the synced flag. Each note
// is attempted independently; a failure is logged and does not abort the
// scan.
func (m *Mirror) PushAllUnsynced(ctx context.Context, userID string) error {
	notes, err := m.cache.UnsyncedNotes()
	if err != nil {
		return fmt.Errorf("mirror: scan unsynced: %w", err)
	}
	for i := range notes {
		if err := m.PushNote(ctx, userID, &notes[i]); err != nil {
			m.logger.Warn("mirror: push failed",
				slog.Int64("note", notes[i].ID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// DeleteNote removes the note's remote document and, best-effort, its blob.
// A blob removal failure is logged, never surfaced: deleting a note must not
// block on it.
func (m *Mirror) DeleteNote(ctx context.Context, userID string, n models.Note) error {
	if err := m.docs.Delete(ctx, userID, strconv.FormatInt(n.ID, 10)); err != nil {
		return fmt.Errorf("mirror: delete note %d: %w", n.ID, err)
	}
	if n.RemoteImage != nil {
		if err := m.blobs.Remove(ctx, n.RemoteImage.Path); err != nil {
			m.logger.Warn("mirror: blob delete failed",
				slog.String("path", n.RemoteImage.Path),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// Subscribe establishes the live remote change feed. Every document in a
// batch is upserted into (or deleted from) the local cache before onApplied
// runs, so observers never see a partially applied batch.
//
// The returned unsubscribe is idempotent; it cancels the feed and waits for
// the pump goroutine to exit, so no callback is invoked after it returns.
func (m *Mirror) Subscribe(ctx context.Context, userID string, onApplied func()) (func(), error) {
	sctx, cancel := context.WithCancel(ctx)
	batches, err := m.docs.Snapshots(sctx, userID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mirror: subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for batch := range batches {
			m.applyBatch(batch)
			if onApplied != nil {
				onApplied()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(cancel)
		<-done
	}, nil
}

// applyBatch upserts each document by id; tombstones delete. A bad document
// is logged and skipped so the rest of the batch still lands.
func (m *Mirror) applyBatch(batch []Doc) {
	for _, d := range batch {
		if d.Deleted {
			id, err := strconv.ParseInt(d.ID, 10, 64)
			if err != nil {
				m.logger.Warn("mirror: tombstone with bad id", slog.String("id", d.ID))
				continue
			}
			if err := m.cache.DeleteNote(id); err != nil {
				m.logger.Warn("mirror: apply delete failed",
					slog.Int64("note", id), slog.String("error", err.Error()))
			}
			continue
		}

		n, err := d.Note()
		if err != nil {
			m.logger.Warn("mirror: skip doc", slog.String("id", d.ID), slog.String("error", err.Error()))
			continue
		}
		if err := m.cache.UpsertFromRemote(n); err != nil {
			m.logger.Warn("mirror: apply upsert failed",
				slog.Int64("note", n.ID), slog.String("error", err.Error()))
		}
	}
}
