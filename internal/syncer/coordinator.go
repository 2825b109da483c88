// Package syncer decides when the remote mirror runs: on identity changes,
// on explicit local mutations, and on the sync-enabled toggle.
package syncer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/stacks/internal/mirror"
	"github.com/starford/stacks/internal/models"
)

// Coordinator owns the sync session: the current identity, the enabled flag,
// and the active remote subscription. All methods serialize on one mutex, so
// a mutation never races an identity change.
//
// A nil *Mirror disables remote mirroring entirely; every method is then a
// no-op, which keeps the local-only deployment free of conditionals at call
// sites.
type Coordinator struct {
	mu          sync.Mutex
	mirror      *mirror.Mirror
	logger      *slog.Logger
	enabled     bool
	userID      string
	unsubscribe func()
	onApplied   func()
}

// New creates a Coordinator. enabled is the initial sync-enabled setting.
func New(m *mirror.Mirror, enabled bool, logger *slog.Logger) *Coordinator {
	return &Coordinator{mirror: m, enabled: enabled, logger: logger}
}

// SetOnRemoteApplied registers the hook invoked after each remote change
// batch has been durably applied to the local cache. Set it before SignIn.
func (c *Coordinator) SetOnRemoteApplied(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onApplied = fn
}

// SignIn handles the none→present identity transition: it subscribes to
// remote changes and then pushes all unsynced local notes.
func (c *Coordinator) SignIn(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.userID = userID
	if !c.activeLocked() {
		return nil
	}
	return c.startLocked(ctx)
}

// SignOut handles the present→none transition: it stops the remote
// subscription. Idempotent.
func (c *Coordinator) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = ""
	c.stopLocked()
}

// SetEnabled toggles sync. Enabling with an identity present starts the
// subscription and pushes unsynced notes; disabling stops the subscription.
func (c *Coordinator) SetEnabled(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return nil
	}
	c.enabled = enabled
	if !enabled {
		c.stopLocked()
		return nil
	}
	if !c.activeLocked() {
		return nil
	}
	return c.startLocked(ctx)
}

// NoteSaved mirrors a single note's create/edit/move immediately,
// best-effort. A push failure leaves the note local-only; the local mutation
// already succeeded and is never reverted.
func (c *Coordinator) NoteSaved(ctx context.Context, n *models.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.activeLocked() {
		return
	}
	if err := c.mirror.PushNote(ctx, c.userID, n); err != nil {
		c.logger.Warn("syncer: push failed, note stays local-only",
			slog.Int64("note", n.ID),
			slog.String("error", err.Error()))
	}
}

// NoteDeleted mirrors a single note's deletion immediately, best-effort.
func (c *Coordinator) NoteDeleted(ctx context.Context, n models.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.activeLocked() {
		return
	}
	if err := c.mirror.DeleteNote(ctx, c.userID, n); err != nil {
		c.logger.Warn("syncer: remote delete failed",
			slog.Int64("note", n.ID),
			slog.String("error", err.Error()))
	}
}

// Status reports the current sync state for the UI.
func (c *Coordinator) Status() (enabled bool, userID string, subscribed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled, c.userID, c.unsubscribe != nil
}

func (c *Coordinator) activeLocked() bool {
	return c.mirror != nil && c.enabled && c.userID != ""
}

func (c *Coordinator) startLocked(ctx context.Context) error {
	unsub, err := c.mirror.Subscribe(ctx, c.userID, c.onApplied)
	if err != nil {
		return err
	}
	c.unsubscribe = unsub
	c.logger.Info("syncer: subscribed", slog.String("user", c.userID))
	if err := c.mirror.PushAllUnsynced(ctx, c.userID); err != nil {
		c.logger.Warn("syncer: initial push failed", slog.String("error", err.Error()))
	}
	return nil
}

func (c *Coordinator) stopLocked() {
	if c.unsubscribe == nil {
		return
	}
	c.unsubscribe()
	c.unsubscribe = nil
	c.logger.Info("syncer: unsubscribed")
}
