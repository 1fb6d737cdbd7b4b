// Package storage keeps offline form drafts in memory and persists the whole
// collection through a KV backend on every mutation.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atinyakov/sms-drafts/internal/models"
)

// StorageKey is the single durable key holding the JSON array of drafts.
const StorageKey = "sms-drafts-storage"

var (
	// ErrEmptyID is returned when a draft is saved without an id.
	ErrEmptyID = errors.New("draft id is empty")
	// ErrInvalidData is returned when draft data is not valid JSON.
	ErrInvalidData = errors.New("draft data is not valid JSON")
	// ErrCorrupt is returned when the persisted collection cannot be decoded.
	ErrCorrupt = errors.New("corrupt drafts storage")
)

// Store owns the drafts collection. At most one draft exists per (type, id).
// Every mutating call serializes the full collection and writes it to the KV
// before returning; if the write fails the in-memory state is left untouched.
type Store struct {
	mu     sync.Mutex
	kv     KV
	drafts []models.Draft
	index  map[models.DraftKey]int
	now    func() time.Time

	// dropped counts persisted records skipped on load.
	dropped int
}

// NewStore loads the persisted collection from kv.
func NewStore(kv KV) (*Store, error) {
	s := &Store{kv: kv, now: time.Now}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, ok, err := s.kv.GetItem(StorageKey)
	if err != nil {
		return fmt.Errorf("read drafts: %w", err)
	}
	s.drafts = []models.Draft{}
	raw = bytes.TrimSpace(raw)
	if ok && len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		drafts, err := decodeDrafts(raw)
		if err != nil {
			return err
		}
		kept := drafts[:0]
		for _, d := range drafts {
			if !d.Type.Valid() || d.ID == "" {
				s.dropped++
				continue
			}
			kept = append(kept, d)
		}
		s.drafts = dedupe(kept)
	}
	s.reindex()
	return nil
}

// Dropped returns how many persisted records were skipped on load because
// their type is unknown or their id is empty. They are gone from storage
// after the next mutation.
func (s *Store) Dropped() int {
	return s.dropped
}

// persistedState is the envelope written by older front-end builds.
type persistedState struct {
	State struct {
		Drafts []models.Draft `json:"drafts"`
	} `json:"state"`
	Version int `json:"version"`
}

func decodeDrafts(raw []byte) ([]models.Draft, error) {
	raw = bytes.TrimSpace(raw)
	switch raw[0] {
	case '[':
		var drafts []models.Draft
		if err := json.Unmarshal(raw, &drafts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return drafts, nil
	case '{':
		var st persistedState
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return st.State.Drafts, nil
	}
	return nil, fmt.Errorf("%w: unexpected leading byte %q", ErrCorrupt, raw[0])
}

// dedupe keeps the last record for each key at the position of the first.
func dedupe(drafts []models.Draft) []models.Draft {
	out := make([]models.Draft, 0, len(drafts))
	pos := make(map[models.DraftKey]int, len(drafts))
	for _, d := range drafts {
		if i, ok := pos[d.Key()]; ok {
			out[i] = d
			continue
		}
		pos[d.Key()] = len(out)
		out = append(out, d)
	}
	return out
}

func (s *Store) reindex() {
	s.index = make(map[models.DraftKey]int, len(s.drafts))
	for i, d := range s.drafts {
		s.index[d.Key()] = i
	}
}

// commit persists next and, only on success, makes it the live collection.
func (s *Store) commit(next []models.Draft) error {
	buf, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode drafts: %w", err)
	}
	if err := s.kv.SetItem(StorageKey, buf); err != nil {
		return fmt.Errorf("persist drafts: %w", err)
	}
	s.drafts = next
	s.reindex()
	return nil
}

func (s *Store) snapshot() []models.Draft {
	next := make([]models.Draft, len(s.drafts))
	copy(next, s.drafts)
	return next
}

// Save inserts or overwrites the draft for (t, id). An overwrite replaces the
// data, refreshes SavedAt and resets the synced state; the draft keeps its
// position in the collection.
func (s *Store) Save(t models.DraftType, id string, data json.RawMessage) (models.Draft, error) {
	if !t.Valid() {
		return models.Draft{}, fmt.Errorf("%w: %q", models.ErrUnknownDraftType, t)
	}
	if id == "" {
		return models.Draft{}, ErrEmptyID
	}
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	if !json.Valid(data) {
		return models.Draft{}, ErrInvalidData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d := models.Draft{
		ID:      id,
		Type:    t,
		Data:    append(json.RawMessage(nil), data...),
		SavedAt: s.now(),
	}
	next := s.snapshot()
	if i, ok := s.index[d.Key()]; ok {
		next[i] = d
	} else {
		next = append(next, d)
	}
	if err := s.commit(next); err != nil {
		return models.Draft{}, err
	}
	return d.Clone(), nil
}

// Get returns the draft for (t, id).
func (s *Store) Get(t models.DraftType, id string) (models.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[models.DraftKey{Type: t, ID: id}]
	if !ok {
		return models.Draft{}, false
	}
	return s.drafts[i].Clone(), true
}

// ListByType returns the drafts of type t in collection order.
func (s *Store) ListByType(t models.DraftType) []models.Draft {
	return s.filter(func(d models.Draft) bool { return d.Type == t })
}

// Unsynced returns every draft not yet accepted by the server, across all types.
func (s *Store) Unsynced() []models.Draft {
	return s.filter(func(d models.Draft) bool { return !d.IsSynced })
}

// All returns every draft in collection order.
func (s *Store) All() []models.Draft {
	return s.filter(func(models.Draft) bool { return true })
}

// Len returns the number of stored drafts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

func (s *Store) filter(keep func(models.Draft) bool) []models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		if keep(d) {
			out = append(out, d.Clone())
		}
	}
	return out
}

// MarkSynced flags the draft for (t, id) as accepted by the server.
// Absent keys and already synced drafts are left alone.
func (s *Store) MarkSynced(t models.DraftType, id string) error {
	_, err := s.markSynced(models.DraftKey{Type: t, ID: id}, nil)
	return err
}

// MarkSyncedIfUnchanged is MarkSynced guarded by the SavedAt the caller
// uploaded: a draft saved again since then stays unsynced. It reports
// whether the draft was marked.
func (s *Store) MarkSyncedIfUnchanged(t models.DraftType, id string, savedAt time.Time) (bool, error) {
	return s.markSynced(models.DraftKey{Type: t, ID: id}, &savedAt)
}

func (s *Store) markSynced(key models.DraftKey, savedAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return false, nil
	}
	cur := s.drafts[i]
	if savedAt != nil && !cur.SavedAt.Equal(*savedAt) {
		return false, nil
	}
	if cur.IsSynced {
		return true, nil
	}

	now := s.now()
	cur.IsSynced = true
	cur.SyncedAt = &now
	next := s.snapshot()
	next[i] = cur
	if err := s.commit(next); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the draft for (t, id). Absent keys are a no-op.
func (s *Store) Delete(t models.DraftType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[models.DraftKey{Type: t, ID: id}]
	if !ok {
		return nil
	}
	next := make([]models.Draft, 0, len(s.drafts)-1)
	next = append(next, s.drafts[:i]...)
	next = append(next, s.drafts[i+1:]...)
	return s.commit(next)
}

// ClearByType removes every draft of type t.
func (s *Store) ClearByType(t models.DraftType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]models.Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		if d.Type != t {
			next = append(next, d)
		}
	}
	if len(next) == len(s.drafts) {
		return nil
	}
	return s.commit(next)
}
