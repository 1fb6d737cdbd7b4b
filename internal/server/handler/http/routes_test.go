package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/sms-drafts/internal/client/storage"
	"github.com/atinyakov/sms-drafts/internal/client/syncer"
	"github.com/atinyakov/sms-drafts/internal/models"
	handler "github.com/atinyakov/sms-drafts/internal/server/handler/http"
)

// switchKV is a MemoryKV whose writes can be made to fail.
type switchKV struct {
	*storage.MemoryKV
	fail bool
}

func (k *switchKV) SetItem(key string, value []byte) error {
	if k.fail {
		return errors.New("disk full")
	}
	return k.MemoryKV.SetItem(key, value)
}

// fakeSyncer records calls and returns a preconfigured result.
type fakeSyncer struct {
	called bool
	fn     syncer.SyncFunc
	result syncer.Result
}

func (f *fakeSyncer) SyncDrafts(ctx context.Context, fn syncer.SyncFunc) syncer.Result {
	f.called = true
	f.fn = fn
	return f.result
}

type fixedOnline bool

func (o fixedOnline) Online() bool { return bool(o) }

type fixture struct {
	kv     *switchKV
	store  *storage.Store
	syncer *fakeSyncer
	router http.Handler
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	kv := &switchKV{MemoryKV: storage.NewMemoryKV()}
	store, err := storage.NewStore(kv)
	require.NoError(t, err)
	fs := &fakeSyncer{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# metrics\n")
	})
	router := handler.NewRouter(handler.RouterConfig{
		Drafts:         handler.NewDraftHandler(store, nil),
		Sync:           &handler.SyncHandler{Syncer: fs, Upload: func(context.Context, models.Draft) error { return nil }},
		Status:         &handler.StatusHandler{Conn: fixedOnline(true), Store: store},
		Metrics:        metrics,
		AllowedOrigins: []string{"http://localhost:3000"},
		APIToken:       token,
	})
	return &fixture{kv: kv, store: store, syncer: fs, router: router}
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestDrafts_PutGetList(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(t, http.MethodPut, "/api/drafts/ca-scores/cls-1", `{"scores":[10,12]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	saved := decode[models.Draft](t, w)
	assert.Equal(t, models.CAScores, saved.Type)
	assert.Equal(t, "cls-1", saved.ID)
	assert.False(t, saved.IsSynced)
	assert.JSONEq(t, `{"scores":[10,12]}`, string(saved.Data))

	f.do(t, http.MethodPut, "/api/drafts/message/m-1", `{"body":"hi"}`)

	w = f.do(t, http.MethodGet, "/api/drafts/ca-scores/cls-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, saved.SavedAt.UnixNano(), decode[models.Draft](t, w).SavedAt.UnixNano())

	all := decode[[]models.Draft](t, f.do(t, http.MethodGet, "/api/drafts", ""))
	assert.Len(t, all, 2)

	byType := decode[[]models.Draft](t, f.do(t, http.MethodGet, "/api/drafts?type=message", ""))
	require.Len(t, byType, 1)
	assert.Equal(t, "m-1", byType[0].ID)

	empty := f.do(t, http.MethodGet, "/api/drafts?type=exam-scores", "")
	assert.Equal(t, "[]\n", empty.Body.String())
}

func TestDrafts_GetMissing(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodGet, "/api/drafts/message/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDrafts_BadRequests(t *testing.T) {
	f := newFixture(t, "")
	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		wantField string
	}{
		{"unknown type on put", http.MethodPut, "/api/drafts/homework/x", `{}`, "type"},
		{"unknown type on get", http.MethodGet, "/api/drafts/homework/x", "", "type"},
		{"unknown type on list", http.MethodGet, "/api/drafts?type=homework", "", "type"},
		{"unknown type on clear", http.MethodDelete, "/api/drafts/homework", "", "type"},
		{"id too long", http.MethodPut, "/api/drafts/message/" + strings.Repeat("a", 129), `{}`, "id"},
		{"invalid json", http.MethodPut, "/api/drafts/message/m1", `{"body":`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			if tt.wantField != "" {
				var body struct {
					Fields map[string]string `json:"fields"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Contains(t, body.Fields, tt.wantField)
			}
		})
	}
	assert.Zero(t, f.store.Len())
}

func TestDrafts_WrongContentType(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodPut, "/api/drafts/message/m1", `{}`, "Content-Type", "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestDrafts_Create(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodPost, "/api/drafts/admission-form", `{"firstName":"Ada"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	d := decode[models.Draft](t, w)
	assert.Len(t, d.ID, 36)
	_, ok := f.store.Get(models.AdmissionForm, d.ID)
	assert.True(t, ok)
}

func TestDrafts_PersistenceError(t *testing.T) {
	f := newFixture(t, "")
	f.kv.fail = true
	w := f.do(t, http.MethodPut, "/api/drafts/message/m1", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, f.store.Len())
}

func TestDrafts_DeleteAndClear(t *testing.T) {
	f := newFixture(t, "")
	f.do(t, http.MethodPut, "/api/drafts/message/m1", `{}`)
	f.do(t, http.MethodPut, "/api/drafts/message/m2", `{}`)
	f.do(t, http.MethodPut, "/api/drafts/exam-scores/e1", `{}`)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/drafts/message/m1", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/drafts/message/m1", "").Code, "missing key is a no-op")
	assert.Equal(t, 2, f.store.Len())

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/drafts/message", "").Code)
	all := f.store.All()
	require.Len(t, all, 1)
	assert.Equal(t, models.ExamScores, all[0].Type)
}

func TestDrafts_MarkSyncedAndUnsynced(t *testing.T) {
	f := newFixture(t, "")
	f.do(t, http.MethodPut, "/api/drafts/message/m1", `{}`)
	f.do(t, http.MethodPut, "/api/drafts/message/m2", `{}`)

	w := f.do(t, http.MethodPost, "/api/drafts/message/m1/synced", "")
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[models.Draft](t, w)
	assert.True(t, d.IsSynced)
	require.NotNil(t, d.SyncedAt)

	unsynced := decode[[]models.Draft](t, f.do(t, http.MethodGet, "/api/drafts/unsynced", ""))
	require.Len(t, unsynced, 1)
	assert.Equal(t, "m2", unsynced[0].ID)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/drafts/message/ghost/synced", "").Code)
}

func TestSyncAndStatus(t *testing.T) {
	f := newFixture(t, "")
	f.syncer.result = syncer.Result{Attempted: 2, Synced: 1, Failed: []syncer.FailedDraft{{Type: models.Message, ID: "m2", Error: "boom"}}}
	f.do(t, http.MethodPut, "/api/drafts/message/m1", `{}`)

	w := f.do(t, http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.syncer.called)
	assert.NotNil(t, f.syncer.fn)
	res := decode[syncer.Result](t, w)
	assert.Equal(t, f.syncer.result, res)

	status := decode[handler.Status](t, f.do(t, http.MethodGet, "/api/status", ""))
	assert.Equal(t, handler.Status{Online: true, Unsynced: 1}, status)
}

func TestTokenAndMetrics(t *testing.T) {
	f := newFixture(t, "s3cret")

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/status", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/status", "", "Authorization", "Bearer s3cret").Code)

	w := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics\n", w.Body.String())
}

func TestCORS(t *testing.T) {
	f := newFixture(t, "s3cret")

	w := f.do(t, http.MethodOptions, "/api/drafts/message/m1", "",
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", http.MethodPut,
	)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = f.do(t, http.MethodGet, "/api/status", "", "Origin", "http://evil.example", "Authorization", "Bearer s3cret")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
