package autosave

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/sms-drafts/internal/logger"
	"github.com/atinyakov/sms-drafts/internal/models"
)

// DefaultDelay is the quiet period used when none is configured.
const DefaultDelay = 1000 * time.Millisecond

// DraftStore is the subset of storage.Store an Autosaver writes through.
type DraftStore interface {
	Save(t models.DraftType, id string, data json.RawMessage) (models.Draft, error)
	Get(t models.DraftType, id string) (models.Draft, bool)
	Delete(t models.DraftType, id string) error
}

// Autosaver is bound to a single (type, id) draft key for the lifetime of a form.
type Autosaver struct {
	store DraftStore
	key   models.DraftKey
	deb   *Debouncer
	log   *zap.Logger

	mu        sync.Mutex
	lastSaved time.Time
}

// New returns an Autosaver for (t, id). A non-positive delay means DefaultDelay.
func New(store DraftStore, t models.DraftType, id string, delay time.Duration, log *zap.Logger) *Autosaver {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Autosaver{
		store: store,
		key:   models.DraftKey{Type: t, ID: id},
		deb:   NewDebouncer(delay),
		log:   logger.OrNop(log),
	}
}

// Key returns the draft key this Autosaver writes.
func (a *Autosaver) Key() models.DraftKey {
	return a.key
}

// Save writes data through to the store and records the save time.
func (a *Autosaver) Save(data json.RawMessage) error {
	d, err := a.store.Save(a.key.Type, a.key.ID, data)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.lastSaved = d.SavedAt
	a.mu.Unlock()
	return nil
}

// DebouncedSave schedules Save(data) after the quiet period. Each call
// restarts the period and replaces the pending data. Errors from the
// deferred write are logged.
func (a *Autosaver) DebouncedSave(data json.RawMessage) (cancel func()) {
	data = append(json.RawMessage(nil), data...)
	return a.deb.Schedule(func() {
		if err := a.Save(data); err != nil {
			a.log.Error("autosave failed",
				zap.String("draft_type", string(a.key.Type)),
				zap.String("draft_id", a.key.ID),
				zap.Error(err),
			)
		}
	})
}

// Flush writes pending debounced data now.
func (a *Autosaver) Flush() {
	a.deb.Flush()
}

// Close drops pending debounced data without writing it.
func (a *Autosaver) Close() {
	a.deb.Cancel()
}

// Pending reports whether a debounced write is waiting.
func (a *Autosaver) Pending() bool {
	return a.deb.Pending()
}

// Restore returns the stored data for this key, for repopulating a form.
func (a *Autosaver) Restore() (json.RawMessage, bool) {
	d, ok := a.store.Get(a.key.Type, a.key.ID)
	if !ok {
		return nil, false
	}
	return d.Data, true
}

// Clear cancels pending writes, deletes the draft and resets LastSaved.
func (a *Autosaver) Clear() error {
	a.deb.Cancel()
	if err := a.store.Delete(a.key.Type, a.key.ID); err != nil {
		return err
	}
	a.mu.Lock()
	a.lastSaved = time.Time{}
	a.mu.Unlock()
	return nil
}

// HasDraft reports whether a draft currently exists for the key.
func (a *Autosaver) HasDraft() bool {
	_, ok := a.store.Get(a.key.Type, a.key.ID)
	return ok
}

// LastSaved returns the time of this Autosaver's last successful write.
func (a *Autosaver) LastSaved() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSaved, !a.lastSaved.IsZero()
}
