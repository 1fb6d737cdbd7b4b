// Package syncer drains unsynced drafts to the backend while it is reachable.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/sms-drafts/internal/logger"
	"github.com/atinyakov/sms-drafts/internal/metrics"
	"github.com/atinyakov/sms-drafts/internal/models"
)

// SyncFunc delivers one draft to the backend. A nil error means the backend
// accepted it.
type SyncFunc func(ctx context.Context, draft models.Draft) error

// DataOnly adapts a function that only needs the draft payload.
func DataOnly(fn func(ctx context.Context, data json.RawMessage) error) SyncFunc {
	return func(ctx context.Context, d models.Draft) error {
		return fn(ctx, d.Data)
	}
}

// DraftStore is the subset of storage.Store the coordinator uses.
type DraftStore interface {
	Unsynced() []models.Draft
	MarkSyncedIfUnchanged(t models.DraftType, id string, savedAt time.Time) (bool, error)
	Delete(t models.DraftType, id string) error
}

// Connectivity reports and publishes the backend's reachability.
type Connectivity interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// FailedDraft describes a draft left unsynced by a pass.
type FailedDraft struct {
	Type  models.DraftType `json:"type"`
	ID    string           `json:"id"`
	Error string           `json:"error"`
}

// Result summarizes one SyncDrafts pass.
type Result struct {
	// Skipped is true when the pass did not run because the backend was offline.
	Skipped   bool          `json:"skipped"`
	Attempted int           `json:"attempted"`
	Synced    int           `json:"synced"`
	Failed    []FailedDraft `json:"failed,omitempty"`
}

// Coordinator uploads unsynced drafts one at a time.
type Coordinator struct {
	store   DraftStore
	conn    Connectivity
	log     *zap.Logger
	metrics *metrics.Sync

	// pass serializes SyncDrafts calls so at most one upload is in flight.
	pass sync.Mutex
}

// New returns a Coordinator. m may be nil.
func New(store DraftStore, conn Connectivity, log *zap.Logger, m *metrics.Sync) *Coordinator {
	if m == nil {
		m = metrics.NewSync(nil)
	}
	return &Coordinator{
		store:   store,
		conn:    conn,
		log:     logger.OrNop(log),
		metrics: m,
	}
}

// SyncDrafts uploads a snapshot of the unsynced drafts, in collection order,
// through fn. It does nothing while offline. A failing draft is logged and
// left unsynced; the pass continues with the next one. Drafts saved after the
// snapshot is taken wait for the next pass. If a draft is saved again while
// its upload is in flight, it stays unsynced so the newer data is sent later.
// Cancelling ctx stops the pass before the next upload.
func (c *Coordinator) SyncDrafts(ctx context.Context, fn SyncFunc) Result {
	c.pass.Lock()
	defer c.pass.Unlock()

	if !c.conn.Online() {
		return Result{Skipped: true}
	}
	c.metrics.Runs.Inc()

	var res Result
	for _, d := range c.store.Unsynced() {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++
		if err := c.syncOne(ctx, fn, d); err != nil {
			c.metrics.Failures.WithLabelValues(string(d.Type)).Inc()
			c.log.Warn("draft sync failed",
				zap.String("draft_type", string(d.Type)),
				zap.String("draft_id", d.ID),
				zap.Error(err),
			)
			res.Failed = append(res.Failed, FailedDraft{Type: d.Type, ID: d.ID, Error: err.Error()})
			continue
		}
		c.metrics.Synced.WithLabelValues(string(d.Type)).Inc()
		res.Synced++
	}

	if res.Attempted > 0 {
		c.log.Info("draft sync pass finished",
			zap.Int("attempted", res.Attempted),
			zap.Int("synced", res.Synced),
			zap.Int("failed", len(res.Failed)),
		)
	}
	return res
}

// errChangedDuringUpload marks a draft that was saved again mid-upload.
var errChangedDuringUpload = errors.New("draft changed during upload")

func (c *Coordinator) syncOne(ctx context.Context, fn SyncFunc, d models.Draft) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()

	if err := fn(ctx, d); err != nil {
		return err
	}
	marked, err := c.store.MarkSyncedIfUnchanged(d.Type, d.ID, d.SavedAt)
	if err != nil {
		return err
	}
	if !marked {
		return errChangedDuringUpload
	}
	return nil
}

// ClearDraftAfterSync deletes a draft once the caller has confirmed the
// backend holds its data. Marking synced never deletes on its own.
func (c *Coordinator) ClearDraftAfterSync(t models.DraftType, id string) error {
	return c.store.Delete(t, id)
}

// Run syncs once if already online, then on every transition to online,
// until ctx is done. It blocks.
func (c *Coordinator) Run(ctx context.Context, fn SyncFunc) {
	trigger := make(chan struct{}, 1)
	kick := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	unsubscribe := c.conn.Subscribe(func(online bool) {
		c.metrics.SetOnline(online)
		if online {
			kick()
		}
	})
	defer unsubscribe()

	online := c.conn.Online()
	c.metrics.SetOnline(online)
	if online {
		kick()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
			c.SyncDrafts(ctx, fn)
		}
	}
}
