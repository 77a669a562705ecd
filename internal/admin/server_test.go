package admin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mxxx222/TennisBot-sub005/internal/sched"
	"github.com/mxxx222/TennisBot-sub005/internal/store"
	"github.com/mxxx222/TennisBot-sub005/pkg/logx"
)

type stubScheduler struct {
	paused  bool
	resumed bool
	added   []store.Job
	removed []string
}

func (s *stubScheduler) Status() sched.Status                     { return sched.Status{State: "running"} }
func (s *stubScheduler) JobStatistics() map[string]sched.JobStats { return map[string]sched.JobStats{} }
func (s *stubScheduler) Pause()                                   { s.paused = true }
func (s *stubScheduler) Resume()                                  { s.resumed = true }
func (s *stubScheduler) AddJob(j store.Job) error {
	if j.ID == "" {
		return &store.ValidationError{Field: "id", Reason: "required"}
	}
	s.added = append(s.added, j)
	return nil
}
func (s *stubScheduler) RemoveJob(id string) error {
	if id == "missing" {
		return store.ErrNotFound
	}
	s.removed = append(s.removed, id)
	return nil
}
func (s *stubScheduler) Enable(id string) error  { return nil }
func (s *stubScheduler) Disable(id string) error { return nil }
func (s *stubScheduler) ExportResults(ctx context.Context, w io.Writer, jobID, format string) error {
	_, err := io.WriteString(w, "[]")
	return err
}

func newTestHandler(cfg Config, stub *stubScheduler) http.Handler {
	s := New(cfg, stub, logx.Nop())
	return s.handler(cfg)
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()
	h := newTestHandler(Config{Enabled: true}, &stubScheduler{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"running"`) {
		t.Fatalf("body missing state: %s", rec.Body.String())
	}
}

func TestPauseResume(t *testing.T) {
	t.Parallel()
	stub := &stubScheduler{}
	h := newTestHandler(Config{Enabled: true}, stub)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pause", nil))
	if rec.Code != http.StatusNoContent || !stub.paused {
		t.Fatalf("pause: code %d paused %v", rec.Code, stub.paused)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/resume", nil))
	if rec.Code != http.StatusNoContent || !stub.resumed {
		t.Fatalf("resume: code %d resumed %v", rec.Code, stub.resumed)
	}
}

func TestAddJobValidationStatus(t *testing.T) {
	t.Parallel()
	stub := &stubScheduler{}
	h := newTestHandler(Config{Enabled: true}, stub)

	body := strings.NewReader(`{"id":"j1","source":"flashscore","category":"tennis.odds","cadence":"hourly","enabled":true}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: code %d body %s", rec.Code, rec.Body.String())
	}
	if len(stub.added) != 1 || stub.added[0].ID != "j1" {
		t.Fatalf("job not forwarded: %+v", stub.added)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"source":"x"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid job: code %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"id":"j2","bogus":1}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: code %d, want 400", rec.Code)
	}
}

func TestRemoveJobNotFound(t *testing.T) {
	t.Parallel()
	h := newTestHandler(Config{Enabled: true}, &stubScheduler{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code %d, want 404", rec.Code)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	t.Parallel()
	h := newTestHandler(Config{Enabled: true}, &stubScheduler{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export?format=xml", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export?format=csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("csv export code %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type %q", ct)
	}
}

func TestBearerAuth(t *testing.T) {
	t.Parallel()
	h := newTestHandler(Config{Enabled: true, Token: "s3cret"}, &stubScheduler{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: code %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: code %d, want 200", rec.Code)
	}
}

func TestThrottleReturns429(t *testing.T) {
	t.Parallel()
	h := newTestHandler(Config{Enabled: true, RatePerSec: 1, Burst: 1}, &stubScheduler{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: code %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: code %d, want 429", rec.Code)
	}
}

func TestLoopbackGuard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8646", true},
		{"localhost:8646", true},
		{"[::1]:8646", true},
		{"0.0.0.0:8646", false},
		{":8646", false},
		{"10.1.2.3:8646", false},
	}
	for _, tt := range tests {
		if got := isLoopbackAddr(tt.addr); got != tt.want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
