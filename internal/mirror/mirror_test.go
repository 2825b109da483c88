package mirror

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/starford/stacks/internal/cache"
	"github.com/starford/stacks/internal/models"
	"github.com/starford/stacks/internal/testutil"
)

type fakeDocs struct {
	mu      sync.Mutex
	docs    map[string]Doc
	puts    int
	deletes []string
	failPut map[string]bool
	feed    chan []Doc
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{
		docs:    make(map[string]Doc),
		failPut: make(map[string]bool),
		feed:    make(chan []Doc, 8),
	}
}

func (f *fakeDocs) Put(_ context.Context, _ string, doc Doc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut[doc.ID] {
		return errors.New("put rejected")
	}
	f.docs[doc.ID] = doc
	f.puts++
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeDocs) Snapshots(ctx context.Context, _ string) (<-chan []Doc, error) {
	out := make(chan []Doc)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case batch := <-f.feed:
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type fakeBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	removed  []string
	failNext bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (f *fakeBlobs) Upload(_ context.Context, key string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return "", errors.New("upload rejected")
	}
	f.objects[key] = data
	return "http://blobs/" + key, nil
}

func (f *fakeBlobs) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("remove rejected")
	}
	delete(f.objects, key)
	f.removed = append(f.removed, key)
	return nil
}

func savedNote(t *testing.T, db *cache.DB, image []byte) *models.Note {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	n := &models.Note{
		Title:     "pushed",
		Body:      "body",
		Bookshelf: 1,
		Pos:       models.Position{Shelf: 0, Slot: 0},
		CreatedAt: now,
		UpdatedAt: now,
		Image:     image,
	}
	if err := db.SaveNote(n); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	return n
}

func TestPushNote_UploadsImageFirst(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	m := New(db, docs, blobs, testutil.Logger())

	n := savedNote(t, db, []byte{0xff, 0xd8, 0x01})
	if err := m.PushNote(context.Background(), "u1", n); err != nil {
		t.Fatalf("PushNote: %v", err)
	}

	if len(blobs.objects) != 1 {
		t.Fatalf("expected 1 uploaded blob, got %d", len(blobs.objects))
	}
	doc, ok := docs.docs[strconv.FormatInt(n.ID, 10)]
	if !ok {
		t.Fatal("document not written")
	}
	if doc.CloudImage == nil {
		t.Fatal("document lacks the uploaded image reference")
	}
	if _, stored := blobs.objects[doc.CloudImage.Path]; !stored {
		t.Errorf("document references %q, which was never uploaded", doc.CloudImage.Path)
	}

	got, err := db.GetNote(n.ID)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if !got.Synced {
		t.Error("pushed note is not marked synced")
	}
	if got.RemoteImage == nil || got.RemoteImage.Path != doc.CloudImage.Path {
		t.Error("local remote-image reference does not match the pushed document")
	}
}

func TestPushNote_NoImageNoUpload(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	m := New(db, docs, blobs, testutil.Logger())

	n := savedNote(t, db, nil)
	if err := m.PushNote(context.Background(), "u1", n); err != nil {
		t.Fatalf("PushNote: %v", err)
	}
	if len(blobs.objects) != 0 {
		t.Errorf("unexpected blob upload for imageless note")
	}
}

func TestPushNote_UploadFailureLeavesUnsynced(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	blobs.failNext = true
	m := New(db, docs, blobs, testutil.Logger())

	n := savedNote(t, db, []byte{0x01})
	if err := m.PushNote(context.Background(), "u1", n); err == nil {
		t.Fatal("expected push to fail when upload fails")
	}
	if len(docs.docs) != 0 {
		t.Error("document written despite failed upload")
	}
	got, _ := db.GetNote(n.ID)
	if got.Synced {
		t.Error("note marked synced despite failed push")
	}
}

func TestPushAllUnsynced_SecondPassIsEmpty(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	m := New(db, docs, blobs, testutil.Logger())

	for slot := 0; slot < 3; slot++ {
		n := &models.Note{Bookshelf: 1, Pos: models.Position{Shelf: 0, Slot: slot}}
		if err := db.SaveNote(n); err != nil {
			t.Fatalf("SaveNote: %v", err)
		}
	}

	if err := m.PushAllUnsynced(context.Background(), "u1"); err != nil {
		t.Fatalf("PushAllUnsynced: %v", err)
	}
	if docs.puts != 3 {
		t.Fatalf("first pass wrote %d documents, want 3", docs.puts)
	}

	if err := m.PushAllUnsynced(context.Background(), "u1"); err != nil {
		t.Fatalf("PushAllUnsynced: %v", err)
	}
	if docs.puts != 3 {
		t.Errorf("second pass wrote %d extra documents, want 0", docs.puts-3)
	}
}

func TestPushAllUnsynced_FailureDoesNotAbort(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	m := New(db, docs, blobs, testutil.Logger())

	var ids []int64
	for slot := 0; slot < 3; slot++ {
		n := &models.Note{Bookshelf: 1, Pos: models.Position{Shelf: 0, Slot: slot}}
		if err := db.SaveNote(n); err != nil {
			t.Fatalf("SaveNote: %v", err)
		}
		ids = append(ids, n.ID)
	}
	docs.failPut[strconv.FormatInt(ids[1], 10)] = true

	if err := m.PushAllUnsynced(context.Background(), "u1"); err != nil {
		t.Fatalf("PushAllUnsynced: %v", err)
	}
	if len(docs.docs) != 2 {
		t.Errorf("expected 2 documents despite one failure, got %d", len(docs.docs))
	}
	pending, _ := db.UnsyncedNotes()
	if len(pending) != 1 || pending[0].ID != ids[1] {
		t.Errorf("unsynced after partial push = %+v, want only note %d", pending, ids[1])
	}
}

func TestDeleteNote_RemovesDocAndBlob(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	m := New(db, docs, blobs, testutil.Logger())

	n := savedNote(t, db, []byte{0x01})
	if err := m.PushNote(context.Background(), "u1", n); err != nil {
		t.Fatalf("PushNote: %v", err)
	}

	if err := m.DeleteNote(context.Background(), "u1", *n); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if len(docs.docs) != 0 {
		t.Error("document survived delete")
	}
	if len(blobs.objects) != 0 {
		t.Error("blob survived delete")
	}
}

func TestDeleteNote_BlobFailureIsNotFatal(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	m := New(db, docs, blobs, testutil.Logger())

	n := savedNote(t, db, []byte{0x01})
	if err := m.PushNote(context.Background(), "u1", n); err != nil {
		t.Fatalf("PushNote: %v", err)
	}

	blobs.failNext = true
	if err := m.DeleteNote(context.Background(), "u1", *n); err != nil {
		t.Errorf("DeleteNote failed on blob error: %v", err)
	}
	if len(docs.docs) != 0 {
		t.Error("document survived delete")
	}
}

func TestSubscribe_AppliesBatchBeforeCallback(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	m := New(db, docs, blobs, testutil.Logger())

	applied := make(chan struct{}, 1)
	unsub, err := m.Subscribe(context.Background(), "u1", func() { applied <- struct{}{} })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	now := time.Now().UnixMilli()
	docs.feed <- []Doc{{ID: "5", Title: "remote", Bookshelf: 1, CreatedAt: now, UpdatedAt: now}}

	select {
	case <-applied:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	got, err := db.GetNote(5)
	if err != nil {
		t.Fatalf("note not applied before callback: %v", err)
	}
	if got.Title != "remote" {
		t.Errorf("title = %q, want %q", got.Title, "remote")
	}
}

func TestSubscribe_TombstoneDeletes(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	m := New(db, docs, blobs, testutil.Logger())

	n := savedNote(t, db, nil)

	applied := make(chan struct{}, 1)
	unsub, err := m.Subscribe(context.Background(), "u1", func() { applied <- struct{}{} })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	docs.feed <- []Doc{{ID: strconv.FormatInt(n.ID, 10), Deleted: true}}
	select {
	case <-applied:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	if _, err := db.GetNote(n.ID); err == nil {
		t.Error("note survived tombstone")
	}
}

func TestSubscribe_SkipsBadDoc(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	m := New(db, docs, blobs, testutil.Logger())

	applied := make(chan struct{}, 1)
	unsub, err := m.Subscribe(context.Background(), "u1", func() { applied <- struct{}{} })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	now := time.Now().UnixMilli()
	docs.feed <- []Doc{
		{ID: "not-a-number", Title: "bad"},
		{ID: "9", Title: "good", Bookshelf: 1, CreatedAt: now, UpdatedAt: now},
	}
	select {
	case <-applied:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	if _, err := db.GetNote(9); err != nil {
		t.Errorf("valid doc in mixed batch not applied: %v", err)
	}
}

func TestSubscribe_UnsubscribeStopsCallbacks(t *testing.T) {
	db := testutil.TestDB(t)
	docs, blobs := newFakeDocs(), newFakeBlobs()
	m := New(db, docs, blobs, testutil.Logger())

	var mu sync.Mutex
	calls := 0
	unsub, err := m.Subscribe(context.Background(), "u1", func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	unsub()
	unsub() // idempotent

	mu.Lock()
	after := calls
	mu.Unlock()

	select {
	case docs.feed <- []Doc{{ID: "1", Title: "late"}}:
	default:
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != after {
		t.Errorf("callback fired after unsubscribe returned")
	}
}
