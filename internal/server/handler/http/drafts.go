// Package http provides the local draft API used by the browser UI in place
// of browser local storage.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/sms-drafts/internal/client/storage"
	"github.com/atinyakov/sms-drafts/internal/models"
)

// maxDraftBytes caps a single draft body.
const maxDraftBytes = 1 << 20

// DraftStore defines the draft operations required by the DraftHandler.
type DraftStore interface {
	Save(t models.DraftType, id string, data json.RawMessage) (models.Draft, error)
	Get(t models.DraftType, id string) (models.Draft, bool)
	ListByType(t models.DraftType) []models.Draft
	All() []models.Draft
	Unsynced() []models.Draft
	MarkSynced(t models.DraftType, id string) error
	Delete(t models.DraftType, id string) error
	ClearByType(t models.DraftType) error
}

// DraftHandler serves CRUD over the local draft store.
type DraftHandler struct {
	Store    DraftStore
	Log      *zap.Logger
	validate *validator.Validate
}

// NewDraftHandler returns a DraftHandler over store.
func NewDraftHandler(store DraftStore, log *zap.Logger) *DraftHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DraftHandler{Store: store, Log: log, validate: newValidator()}
}

// List handles GET /api/drafts with an optional ?type= filter.
func (h *DraftHandler) List(w http.ResponseWriter, r *http.Request) {
	drafts := h.Store.All()
	if q := r.URL.Query().Get("type"); q != "" {
		t, fields := h.parseType(q)
		if fields != nil {
			writeInvalid(w, fields)
			return
		}
		drafts = h.Store.ListByType(t)
	}
	writeJSON(w, http.StatusOK, nonNil(drafts))
}

// Unsynced handles GET /api/drafts/unsynced.
func (h *DraftHandler) Unsynced(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Store.Unsynced()))
}

// Get handles GET /api/drafts/{type}/{id}.
func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, fields := h.keyFromPath(r)
	if fields != nil {
		writeInvalid(w, fields)
		return
	}
	d, ok := h.Store.Get(key.Type, key.ID)
	if !ok {
		writeError(w, http.StatusNotFound, "draft not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Put handles PUT /api/drafts/{type}/{id}. The body is the raw form data.
func (h *DraftHandler) Put(w http.ResponseWriter, r *http.Request) {
	key, fields := h.keyFromPath(r)
	if fields != nil {
		writeInvalid(w, fields)
		return
	}
	h.save(w, r, key, http.StatusOK)
}

// Create handles POST /api/drafts/{type}, saving under a generated id.
func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, fields := h.typeFromPath(r)
	if fields != nil {
		writeInvalid(w, fields)
		return
	}
	h.save(w, r, models.DraftKey{Type: t, ID: uuid.NewString()}, http.StatusCreated)
}

func (h *DraftHandler) save(w http.ResponseWriter, r *http.Request, key models.DraftKey, status int) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDraftBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	d, err := h.Store.Save(key.Type, key.ID, body)
	switch {
	case errors.Is(err, storage.ErrInvalidData):
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	case err != nil:
		h.Log.Error("save draft failed", zap.String("draft_key", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save draft")
		return
	}
	writeJSON(w, status, d)
}

// Delete handles DELETE /api/drafts/{type}/{id}. Deleting a missing draft succeeds.
func (h *DraftHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, fields := h.keyFromPath(r)
	if fields != nil {
		writeInvalid(w, fields)
		return
	}
	if err := h.Store.Delete(key.Type, key.ID); err != nil {
		h.Log.Error("delete draft failed", zap.String("draft_key", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete draft")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/drafts/{type}.
func (h *DraftHandler) Clear(w http.ResponseWriter, r *http.Request) {
	t, fields := h.typeFromPath(r)
	if fields != nil {
		writeInvalid(w, fields)
		return
	}
	if err := h.Store.ClearByType(t); err != nil {
		h.Log.Error("clear drafts failed", zap.String("draft_type", string(t)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear drafts")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkSynced handles POST /api/drafts/{type}/{id}/synced.
func (h *DraftHandler) MarkSynced(w http.ResponseWriter, r *http.Request) {
	key, fields := h.keyFromPath(r)
	if fields != nil {
		writeInvalid(w, fields)
		return
	}
	if err := h.Store.MarkSynced(key.Type, key.ID); err != nil {
		h.Log.Error("mark synced failed", zap.String("draft_key", key.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to mark draft synced")
		return
	}
	d, ok := h.Store.Get(key.Type, key.ID)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func nonNil(drafts []models.Draft) []models.Draft {
	if drafts == nil {
		return []models.Draft{}
	}
	return drafts
}
