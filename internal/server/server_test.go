package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/stridecoach/setback/internal/engine"
	"github.com/stridecoach/setback/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	resolver := engine.StaticHabitResolver{"morning run": "habit-run"}
	eng := engine.New(db, resolver, zap.NewNop().Sugar())
	return New(db, eng, zap.NewNop().Sugar(), "test-version")
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "GET", "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestCreateEventEndpoint(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/subjects/subj-1/events", map[string]any{
		"title":       "Sprained ankle",
		"description": "Rolled it on a trail run",
		"event_type":  "injury",
		"severity":    "medium",
		"habit_names": []string{"morning run", "unknown habit"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusCreated, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "active" {
		t.Errorf("status = %v, want active", body["status"])
	}
	if body["impact_level"] != 0.65 {
		t.Errorf("impact_level = %v, want 0.65", body["impact_level"])
	}
	habits, _ := body["affected_habits"].([]any)
	if len(habits) != 1 || habits[0] != "habit-run" {
		t.Errorf("affected_habits = %v, want [habit-run]", habits)
	}
}

func TestCreateEventValidationError(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/subjects/subj-1/events", map[string]any{
		"title":      "",
		"event_type": "injury",
		"severity":   "medium",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["field"] != "title" {
		t.Errorf("field = %q, want title", body["field"])
	}
}

func TestAmendAndResolveFlow(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/subjects/subj-1/events", map[string]any{
		"title":      "Work crunch",
		"event_type": "work_stress",
		"severity":   "high",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var created map[string]any
	json.Unmarshal(w.Body.Bytes(), &created)
	eventID, _ := created["id"].(string)
	if eventID == "" {
		t.Fatal("expected event id")
	}

	// Amend by id
	w = doJSON(t, srv, "POST", "/api/events/"+eventID+"/updates", map[string]any{
		"note":    "launch slipped, pressure off",
		"feeling": "better",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("amend status = %d (%s)", w.Code, w.Body.String())
	}
	var amended map[string]any
	json.Unmarshal(w.Body.Bytes(), &amended)
	if amended["status"] != "improving" {
		t.Errorf("status after better = %v, want improving", amended["status"])
	}
	if amended["mention_count"] != float64(2) {
		t.Errorf("mention_count = %v, want 2", amended["mention_count"])
	}

	// Amend by title
	w = doJSON(t, srv, "POST", "/api/subjects/subj-1/events/amend", map[string]any{
		"title":   "crunch",
		"note":    "still easing",
		"feeling": "same",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("amend by title status = %d (%s)", w.Code, w.Body.String())
	}

	// Resolve
	w = doJSON(t, srv, "POST", "/api/events/"+eventID+"/resolve", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve status = %d", w.Code)
	}
	var resolved map[string]any
	json.Unmarshal(w.Body.Bytes(), &resolved)
	if resolved["status"] != "resolved" {
		t.Errorf("status = %v, want resolved", resolved["status"])
	}
	if resolved["resolved_at"] == nil {
		t.Error("expected resolved_at to be set")
	}

	// Event detail carries the full update history
	w = doJSON(t, srv, "GET", "/api/events/"+eventID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var detail struct {
		Updates []map[string]any `json:"updates"`
	}
	json.Unmarshal(w.Body.Bytes(), &detail)
	if len(detail.Updates) != 2 {
		t.Errorf("updates = %d, want 2", len(detail.Updates))
	}
}

func TestAmendByTitleNotFound(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/subjects/subj-1/events/amend", map[string]any{
		"title":   "phantom",
		"note":    "n/a",
		"feeling": "worse",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetEventNotFound(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "GET", "/api/events/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestContextEndpoint(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/subjects/subj-1/events", map[string]any{
		"title":       "Caught the flu",
		"description": "High fever",
		"event_type":  "illness",
		"severity":    "high",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = doJSON(t, srv, "GET", "/api/subjects/subj-1/context", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("context status = %d", w.Code)
	}

	var body struct {
		Context string           `json:"context"`
		Events  []map[string]any `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(body.Events))
	}
	if body.Context == "" {
		t.Fatal("expected non-empty context text")
	}
	if !bytes.Contains([]byte(body.Context), []byte("Caught the flu")) {
		t.Errorf("context text missing event title: %q", body.Context)
	}

	// format=text returns the bare block
	w = doJSON(t, srv, "GET", "/api/subjects/subj-1/context?format=text", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("text context status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("content type = %q, want text/plain", ct)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("Caught the flu")) {
		t.Errorf("text context missing event title: %q", w.Body.String())
	}

	// Empty subject yields empty context, not an error
	w = doJSON(t, srv, "GET", "/api/subjects/nobody/context", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("empty context status = %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Context != "" {
		t.Errorf("context = %q, want empty", body.Context)
	}
}

func TestHabitEventsEndpoint(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/subjects/subj-1/events", map[string]any{
		"title":      "Sprained ankle",
		"event_type": "injury",
		"severity":   "medium",
		"habit_ids":  []string{"habit-run"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = doJSON(t, srv, "GET", "/api/habits/habit-run/events", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := testServer(t)

	for _, title := range []string{"Flu", "Trip"} {
		w := doJSON(t, srv, "POST", "/api/subjects/subj-1/events", map[string]any{
			"title":      title,
			"event_type": "other",
			"severity":   "low",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("create status = %d", w.Code)
		}
	}

	w := doJSON(t, srv, "GET", "/api/subjects/subj-1/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Count != 2 {
		t.Errorf("count = %d, want 2", body.Count)
	}

	w = doJSON(t, srv, "GET", "/api/subjects/subj-1/history?since=notanumber", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad since status = %d, want 400", w.Code)
	}
}
