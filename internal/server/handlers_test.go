package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/balkashynov/tasktick/internal/db"
	"github.com/balkashynov/tasktick/internal/heartbeat"
	"github.com/balkashynov/tasktick/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(secs int) { c.now = c.now.Add(time.Duration(secs) * time.Second) }

type testEnv struct {
	store  *db.Store
	clock  *clock
	server *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	c := &clock{now: t0}
	store, err := db.OpenMemory(db.WithClock(c.Now))
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	monitor := heartbeat.NewMonitor(store, 90*time.Second, log.New(io.Discard, "", 0))
	return &testEnv{store: store, clock: c, server: NewServer(store, monitor, false)}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) models.SessionView {
	t.Helper()
	var v models.SessionView
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v (%s)", err, w.Body.String())
	}
	return v
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v (%s)", err, w.Body.String())
	}
	return body
}

func (e *testEnv) start(t *testing.T, user string, taskID uint) models.SessionView {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/sessions", user, gin.H{"task_id": taskID})
	if w.Code != http.StatusCreated {
		t.Fatalf("start: status %d: %s", w.Code, w.Body.String())
	}
	return decodeView(t, w)
}

func path(id uint, action string) string {
	p := "/api/sessions/" + strconv.FormatUint(uint64(id), 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

// ============================================================
// Health and identity
// ============================================================

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if w.Header().Get(HeaderRequestID) == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestMissingUserIsUnauthorized(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodGet, "/api/sessions/active", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", w.Code)
	}
	if decodeError(t, w).Code != codeUnauthorized {
		t.Fatal("unexpected error code")
	}
}

// ============================================================
// Session lifecycle
// ============================================================

func TestStartAndConflict(t *testing.T) {
	e := newTestEnv(t)
	v := e.start(t, "alice", 3)
	if v.State != "running" || v.TaskID != 3 || v.UserID != "alice" || !v.IsActive {
		t.Fatalf("unexpected view: %+v", v)
	}
	if !v.ServerTime.Equal(t0) {
		t.Fatalf("server time = %v", v.ServerTime)
	}

	w := e.do(t, http.MethodPost, "/api/sessions", "alice", gin.H{"task_id": 4})
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", w.Code)
	}
	if decodeError(t, w).Code != codeConflict {
		t.Fatal("unexpected error code")
	}

	w = e.do(t, http.MethodGet, path(v.ID, ""), "alice", nil)
	if got := decodeView(t, w); got.TaskID != 3 || got.State != "running" {
		t.Fatalf("existing session changed: %+v", got)
	}
}

func TestStartRequiresTaskID(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/api/sessions", "alice", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestPauseResumeEndOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	v := e.start(t, "alice", 1)

	e.clock.Advance(3600)
	w := e.do(t, http.MethodPost, path(v.ID, "pause"), "alice", nil)
	if w.Code != http.StatusOK || decodeView(t, w).State != "paused" {
		t.Fatalf("pause: %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPost, path(v.ID, "pause"), "alice", nil)
	if w.Code != http.StatusUnprocessableEntity || decodeError(t, w).Code != codeInvalidState {
		t.Fatalf("second pause: %d %s", w.Code, w.Body.String())
	}

	e.clock.Advance(60)
	w = e.do(t, http.MethodPost, path(v.ID, "resume"), "alice", nil)
	if w.Code != http.StatusOK || decodeView(t, w).State != "running" {
		t.Fatalf("resume: %d %s", w.Code, w.Body.String())
	}

	e.clock.Advance(3600)
	w = e.do(t, http.MethodPost, path(v.ID, "end"), "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end: %d %s", w.Code, w.Body.String())
	}
	ended := decodeView(t, w)
	if ended.State != "ended" || ended.DurationHours == nil || *ended.DurationHours != 2.0 {
		t.Fatalf("unexpected ended view: %+v", ended)
	}
	if ended.ElapsedSeconds != 7200 {
		t.Fatalf("elapsed = %d, want 7200", ended.ElapsedSeconds)
	}

	w = e.do(t, http.MethodPost, path(v.ID, "end"), "alice", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("second end: status %d", w.Code)
	}
}

func TestHeartbeatOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	v := e.start(t, "alice", 1)

	e.clock.Advance(30)
	w := e.do(t, http.MethodPost, path(v.ID, "heartbeat"), "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("heartbeat: %d", w.Code)
	}
	got := decodeView(t, w)
	if got.LastHeartbeat == nil || !got.LastHeartbeat.Equal(t0.Add(30*time.Second)) {
		t.Fatalf("last heartbeat = %v", got.LastHeartbeat)
	}
}

func TestNotFoundAndForeignSessions(t *testing.T) {
	e := newTestEnv(t)
	v := e.start(t, "alice", 1)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		status int
	}{
		{"unknown id", http.MethodPost, path(999, "pause"), "alice", http.StatusNotFound},
		{"foreign pause", http.MethodPost, path(v.ID, "pause"), "bob", http.StatusNotFound},
		{"foreign get", http.MethodGet, path(v.ID, ""), "bob", http.StatusNotFound},
		{"bad id", http.MethodPost, "/api/sessions/abc/pause", "alice", http.StatusBadRequest},
		{"zero id", http.MethodGet, "/api/sessions/0", "alice", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, tt.user, nil)
			if w.Code != tt.status {
				t.Fatalf("status %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

// ============================================================
// Active session and lazy liveness check
// ============================================================

func TestActiveSession(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/sessions/active", "alice", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status %d, want 204", w.Code)
	}

	v := e.start(t, "alice", 1)
	e.clock.Advance(45)
	w = e.do(t, http.MethodGet, "/api/sessions/active", "alice", nil)
	got := decodeView(t, w)
	if got.ID != v.ID || got.ElapsedSeconds != 45 || got.State != "running" {
		t.Fatalf("unexpected active view: %+v", got)
	}
}

func TestActiveSessionAutoPausesStaleClient(t *testing.T) {
	e := newTestEnv(t)
	v := e.start(t, "alice", 1)

	e.clock.Advance(30)
	e.do(t, http.MethodPost, path(v.ID, "heartbeat"), "alice", nil)
	e.clock.Advance(170)

	w := e.do(t, http.MethodGet, "/api/sessions/active", "alice", nil)
	got := decodeView(t, w)
	if got.State != "auto_paused" || !got.AutoPaused || got.ElapsedSeconds != 30 {
		t.Fatalf("unexpected view: %+v", got)
	}
	if !got.PauseTime.Equal(t0.Add(30 * time.Second)) {
		t.Fatalf("pause time = %v", got.PauseTime)
	}

	e.clock.Advance(10)
	w = e.do(t, http.MethodPost, path(v.ID, "resume"), "alice", nil)
	if got := decodeView(t, w); got.State != "running" || got.AutoPaused {
		t.Fatalf("unexpected resumed view: %+v", got)
	}
}

// ============================================================
// Task queries
// ============================================================

func TestTaskSessionsAndSummary(t *testing.T) {
	e := newTestEnv(t)
	v := e.start(t, "alice", 8)
	e.clock.Advance(1800)
	e.do(t, http.MethodPost, path(v.ID, "end"), "alice", nil)
	e.start(t, "alice", 8)

	w := e.do(t, http.MethodGet, "/api/tasks/8/sessions", "alice", nil)
	var list sessionList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 2 || len(list.Sessions) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}

	w = e.do(t, http.MethodGet, "/api/tasks/8/summary", "alice", nil)
	var summary models.TaskSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.SessionCount != 2 || summary.TotalDurationHours != 0.5 || summary.TaskID != 8 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	w = e.do(t, http.MethodGet, "/api/tasks/8/sessions", "bob", nil)
	if !strings.Contains(w.Body.String(), `"sessions":[]`) {
		t.Fatalf("other users see nothing, got %s", w.Body.String())
	}
}

// ============================================================
// Internal errors
// ============================================================

type brokenStore struct {
	*db.Store
}

func (b brokenStore) GetActiveSession(ctx context.Context, userID string) (*models.Session, error) {
	return nil, errors.New("database is locked")
}

func TestInternalErrorsAreHidden(t *testing.T) {
	e := newTestEnv(t)
	e.server = NewServer(brokenStore{e.store}, nil, false)

	w := e.do(t, http.MethodGet, "/api/sessions/active", "alice", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", w.Code)
	}
	body := decodeError(t, w)
	if body.Code != codeInternal || strings.Contains(body.Error, "locked") {
		t.Fatalf("unexpected body: %+v", body)
	}
}
