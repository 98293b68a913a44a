package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})

	r := httptest.NewRequest(http.MethodGet, "/api/draws/current", nil)
	w := httptest.NewRecorder()
	Logger(zap.New(core))(next).ServeHTTP(w, r)

	requestID := w.Header().Get(requestIDHeader)
	if requestID == "" {
		t.Fatalf("request id header not set")
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("status field = %v", fields["status"])
	}
	if fields["size"] != int64(5) {
		t.Fatalf("size field = %v", fields["size"])
	}
	if fields["requestID"] != requestID {
		t.Fatalf("requestID field = %v, want %s", fields["requestID"], requestID)
	}
}

func TestLogger_KeepsClientRequestID(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(requestIDHeader, "abc")
	w := httptest.NewRecorder()
	Logger(zap.New(core))(http.NotFoundHandler()).ServeHTTP(w, r)

	if got := w.Header().Get(requestIDHeader); got != "abc" {
		t.Fatalf("request id = %q, want abc", got)
	}
}
