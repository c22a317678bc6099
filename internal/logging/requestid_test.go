package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()
	if len(id) != 36 {
		t.Errorf("GenerateRequestID() length = %d, want 36", len(id))
	}

	// Verify uniqueness
	id2 := GenerateRequestID()
	if id == id2 {
		t.Errorf("GenerateRequestID() generated duplicate IDs: %s", id)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	id := "test1234"

	// Without ID
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID(empty context) = %q, want empty string", got)
	}

	// With ID
	ctx = WithRequestID(ctx, id)
	if got := GetRequestID(ctx); got != id {
		t.Errorf("GetRequestID() = %q, want %q", got, id)
	}
}

func TestGetOrGenerateRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "from-client")
	if got := GetOrGenerateRequestID(req); got != "from-client" {
		t.Errorf("GetOrGenerateRequestID() = %q, want from-client", got)
	}

	req.Header.Del(RequestIDHeader)
	if got := GetOrGenerateRequestID(req); got == "" {
		t.Error("GetOrGenerateRequestID() returned empty ID")
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, "production", "info")

	var seenID string
	var seenLogger bool
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		seenLogger = zerolog.Ctx(r.Context()).GetLevel() != zerolog.Disabled
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenID != "abc" {
		t.Errorf("request ID in context = %q, want abc", seenID)
	}
	if !seenLogger {
		t.Error("expected request-scoped logger in context")
	}
	if rec.Header().Get(RequestIDHeader) != "abc" {
		t.Errorf("response header = %q, want abc", rec.Header().Get(RequestIDHeader))
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["request_id"] != "abc" || line["path"] != "/healthz" || line["status"] != float64(http.StatusTeapot) {
		t.Errorf("unexpected log line: %v", line)
	}
}

func TestFromContext_Fallback(t *testing.T) {
	fallback := zerolog.Nop()
	got := FromContext(context.Background(), fallback)
	if got.GetLevel() != zerolog.Disabled {
		t.Errorf("expected fallback logger")
	}
}
