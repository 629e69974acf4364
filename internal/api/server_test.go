package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/chattxt/internal/convert"
	"github.com/MikeSquared-Agency/chattxt/internal/metrics"
	"github.com/MikeSquared-Agency/chattxt/internal/processor"
	"github.com/MikeSquared-Agency/chattxt/internal/store"
)

const export = `{"messages":[{"type":"message","date_unixtime":"1700000000","from":"Alice","text":"hello"}]}`

type fakeHistory struct {
	rows []store.Conversion
}

func (f *fakeHistory) RecentConversions(_ context.Context, limit int) ([]store.Conversion, error) {
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeHistory) GetConversion(_ context.Context, id uuid.UUID) (*store.Conversion, error) {
	for _, c := range f.rows {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(opts Options, history History) *Server {
	proc := processor.New(convert.Options{Location: time.UTC}, nil, nil, nil, quietLogger())
	return NewServer(opts, proc, history, quietLogger())
}

type upload struct {
	name, content string
}

func multipartBody(t *testing.T, files []upload, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		io.WriteString(part, f.content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postConvert(t *testing.T, srv *Server, files []upload, fields map[string]string, token string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files, fields)
	req := httptest.NewRequest("POST", "/api/v1/convert", body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body["error"]
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(Options{Port: 8760}, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(Options{Port: 8760}, nil)

	req := httptest.NewRequest("GET", "/api/v1/chattxt/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["service"] != "chattxt" {
		t.Errorf("expected service chattxt, got %v", body["service"])
	}
	if body["history"] != false {
		t.Errorf("expected history false, got %v", body["history"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(Options{Port: 8760}, nil)

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestConvertEndpoint(t *testing.T) {
	srv := newTestServer(Options{}, nil)

	w := postConvert(t, srv, []upload{{"result.json", export}}, nil, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="_chat.txt"` {
		t.Errorf("unexpected content disposition %q", cd)
	}
	if _, err := uuid.Parse(w.Header().Get("X-Conversion-Id")); err != nil {
		t.Errorf("expected conversion id header, got %q", w.Header().Get("X-Conversion-Id"))
	}
	if got := w.Body.String(); got != "[11/14/23, 10:13:20 PM] Alice: hello\n" {
		t.Errorf("unexpected transcript %q", got)
	}
}

func TestConvertEndpoint_KeepsUploadOrder(t *testing.T) {
	srv := newTestServer(Options{}, nil)
	second := strings.Replace(export, "hello", "again", 1)

	w := postConvert(t, srv, []upload{{"b.json", second}, {"a.json", export}}, nil, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	want := "[11/14/23, 10:13:20 PM] Alice: again\n[11/14/23, 10:13:20 PM] Alice: hello\n"
	if got := w.Body.String(); got != want {
		t.Errorf("unexpected transcript %q", got)
	}
}

func TestConvertEndpoint_MixedFormats(t *testing.T) {
	srv := newTestServer(Options{}, nil)

	w := postConvert(t, srv, []upload{{"result.json", export}, {"messages.html", "<html></html>"}}, nil, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := decodeError(t, w); !strings.Contains(msg, "same format") {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestConvertEndpoint_NoFiles(t *testing.T) {
	srv := newTestServer(Options{}, nil)

	w := postConvert(t, srv, nil, map[string]string{"base_url": "x"}, "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestConvertEndpoint_Malformed(t *testing.T) {
	srv := newTestServer(Options{}, nil)

	w := postConvert(t, srv, []upload{{"result.json", `{"messages": [`}}, nil, "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestConvertEndpoint_TooLarge(t *testing.T) {
	srv := newTestServer(Options{MaxUploadBytes: 512}, nil)

	w := postConvert(t, srv, []upload{{"result.json", strings.Repeat("x", 4096)}}, nil, "")

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestConvertEndpoint_BearerAuth(t *testing.T) {
	srv := newTestServer(Options{APIToken: "s3cret"}, nil)

	if w := postConvert(t, srv, []upload{{"result.json", export}}, nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if w := postConvert(t, srv, []upload{{"result.json", export}}, nil, "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := postConvert(t, srv, []upload{{"result.json", export}}, nil, "s3cret"); w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	proc := processor.New(convert.Options{Location: time.UTC}, m, nil, nil, quietLogger())
	srv := NewServer(Options{Gatherer: reg}, proc, nil, quietLogger())

	postConvert(t, srv, []upload{{"result.json", export}}, nil, "")

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "chattxt_conversions_total") {
		t.Errorf("expected conversion counter in metrics output")
	}
}

func TestConversionsEndpoints(t *testing.T) {
	id := uuid.New()
	history := &fakeHistory{rows: []store.Conversion{
		{ID: id, Format: "json", Files: 1, Lines: 3, Source: "api"},
		{ID: uuid.New(), Format: "html", Files: 2, Lines: 9, Source: "nats"},
	}}
	srv := newTestServer(Options{}, history)

	req := httptest.NewRequest("GET", "/api/v1/conversions?limit=1", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list conversionsResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if list.Count != 1 || list.Conversions[0].ID != id {
		t.Errorf("unexpected list %+v", list)
	}

	req = httptest.NewRequest("GET", "/api/v1/conversions?limit=abc", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/conversions/"+id.String(), nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/conversions/"+uuid.New().String(), nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestConversionsEndpoint_NotMountedWithoutHistory(t *testing.T) {
	srv := newTestServer(Options{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/conversions", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
