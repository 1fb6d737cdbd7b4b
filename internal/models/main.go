// Package models defines the core data structures for offline form drafts.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownDraftType is returned for a draft type outside the fixed enumeration.
var ErrUnknownDraftType = errors.New("unknown draft type")

// DraftType defines the set of valid draft type identifiers.
type DraftType string

const (
	// CAScores is a draft of continuous-assessment scores.
	CAScores DraftType = "ca-scores"
	// ExamScores is a draft of exam scores.
	ExamScores DraftType = "exam-scores"
	// AdmissionForm is a draft of a student admission form.
	AdmissionForm DraftType = "admission-form"
	// Message is a draft of an outgoing message.
	Message DraftType = "message"
)

// DraftTypes lists every valid draft type.
var DraftTypes = []DraftType{CAScores, ExamScores, AdmissionForm, Message}

// Valid reports whether t is one of DraftTypes.
func (t DraftType) Valid() bool {
	switch t {
	case CAScores, ExamScores, AdmissionForm, Message:
		return true
	}
	return false
}

// ParseDraftType converts s to a DraftType.
func ParseDraftType(s string) (DraftType, error) {
	t := DraftType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDraftType, s)
	}
	return t, nil
}

// Draft holds unsaved user input for one form instance.
type Draft struct {
	// ID is chosen by the caller and unique within Type.
	ID string `json:"id"`
	// Type is the kind of form the draft belongs to.
	Type DraftType `json:"type"`
	// Data is the form payload. Its shape is owned by the caller.
	Data json.RawMessage `json:"data"`
	// SavedAt is the time of the last local write.
	SavedAt time.Time `json:"savedAt"`
	// SyncedAt is the time the server last accepted the draft, if ever.
	SyncedAt *time.Time `json:"syncedAt,omitempty"`
	// IsSynced is false until a sync succeeds, and reset by every save.
	IsSynced bool `json:"isSynced"`
}

// DraftKey identifies a draft.
type DraftKey struct {
	Type DraftType
	ID   string
}

// Key returns the (type, id) identity of d.
func (d Draft) Key() DraftKey {
	return DraftKey{Type: d.Type, ID: d.ID}
}

// String renders the key as "type/id".
func (k DraftKey) String() string {
	return string(k.Type) + "/" + k.ID
}

// Clone returns a copy of d that shares no memory with it.
func (d Draft) Clone() Draft {
	out := d
	if d.Data != nil {
		out.Data = append(json.RawMessage(nil), d.Data...)
	}
	if d.SyncedAt != nil {
		ts := *d.SyncedAt
		out.SyncedAt = &ts
	}
	return out
}
