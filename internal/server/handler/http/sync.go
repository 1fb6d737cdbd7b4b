package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/sms-drafts/internal/client/syncer"
	"github.com/atinyakov/sms-drafts/internal/models"
)

// SyncRunner runs one sync pass.
type SyncRunner interface {
	SyncDrafts(ctx context.Context, fn syncer.SyncFunc) syncer.Result
}

// SyncHandler handles explicit sync requests from the UI.
type SyncHandler struct {
	Syncer SyncRunner
	// Upload is handed to every pass.
	Upload syncer.SyncFunc
}

// Sync handles POST /api/sync. It always answers 200 with the pass result;
// per-draft failures are reported inside it.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res := h.Syncer.SyncDrafts(r.Context(), h.Upload)
	writeJSON(w, http.StatusOK, res)
}

// OnlineSource reports backend reachability.
type OnlineSource interface {
	Online() bool
}

// UnsyncedLister lists drafts waiting for upload.
type UnsyncedLister interface {
	Unsynced() []models.Draft
}

// StatusHandler reports connectivity and backlog.
type StatusHandler struct {
	Conn  OnlineSource
	Store UnsyncedLister
}

// Status is the body of GET /api/status.
type Status struct {
	Online   bool `json:"online"`
	Unsynced int  `json:"unsynced"`
}

// Status handles GET /api/status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Status{
		Online:   h.Conn.Online(),
		Unsynced: len(h.Store.Unsynced()),
	})
}
