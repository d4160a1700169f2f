package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/menus", nil))
	line := buf.String()
	if !strings.Contains(line, "level=DEBUG") || !strings.Contains(line, "status=200") || !strings.Contains(line, "bytes=2") {
		t.Errorf("unexpected log line: %s", line)
	}

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	if line := buf.String(); !strings.Contains(line, "level=ERROR") || !strings.Contains(line, "status=500") {
		t.Errorf("unexpected log line: %s", line)
	}
}

func TestStripTrailingSlash(t *testing.T) {
	handler := StripTrailingSlash(okHandler())

	tests := []struct {
		method   string
		target   string
		wantCode int
		wantLoc  string
	}{
		{http.MethodGet, "/", http.StatusOK, ""},
		{http.MethodGet, "/menus", http.StatusOK, ""},
		{http.MethodGet, "/menus/", http.StatusMovedPermanently, "/menus"},
		{http.MethodGet, "/menus/tree/?placement=header", http.StatusMovedPermanently, "/menus/tree?placement=header"},
		{http.MethodPut, "/menus/reorder/", http.StatusPermanentRedirect, "/menus/reorder"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if loc := rec.Header().Get("Location"); loc != tt.wantLoc {
				t.Errorf("Location = %q, want %q", loc, tt.wantLoc)
			}
		})
	}
}
