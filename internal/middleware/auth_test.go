package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// dummyHandler is a placeholder that records if it was called.
type dummyHandler struct {
	called bool
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	w.WriteHeader(http.StatusOK)
}

func TestTokenAuth(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		path       string
		header     string
		wantCalled bool
		wantCode   int
	}{
		{"disabled", "", "/api/drafts", "", true, http.StatusOK},
		{"missing header", "s3cret", "/api/drafts", "", false, http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "/api/drafts", "Basic s3cret", false, http.StatusUnauthorized},
		{"wrong token", "s3cret", "/api/drafts", "Bearer nope", false, http.StatusUnauthorized},
		{"valid token", "s3cret", "/api/drafts", "Bearer s3cret", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := TokenAuth(tt.token)(dummy)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(rec, req)

			if dummy.called != tt.wantCalled {
				t.Errorf("called = %v; want %v", dummy.called, tt.wantCalled)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d; want %d", rec.Code, tt.wantCode)
			}
		})
	}
}
