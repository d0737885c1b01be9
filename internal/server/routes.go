package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stridecoach/setback/internal/engine"
	"github.com/stridecoach/setback/internal/store"
)

type eventJSON struct {
	ID              string   `json:"id"`
	SubjectID       string   `json:"subject_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	EventType       string   `json:"event_type"`
	Severity        string   `json:"severity"`
	DecayRate       string   `json:"decay_rate"`
	ImpactLevel     float64  `json:"impact_level"`
	Status          string   `json:"status"`
	AffectedHabits  []string `json:"affected_habits,omitempty"`
	MentionCount    int      `json:"mention_count"`
	CreatedAt       int64    `json:"created_at"`
	DetectedAt      int64    `json:"detected_at"`
	LastMentionedAt int64    `json:"last_mentioned_at"`
	ResolvedAt      *int64   `json:"resolved_at,omitempty"`
}

type updateJSON struct {
	ID           string  `json:"id"`
	EventID      string  `json:"event_id"`
	Note         string  `json:"note,omitempty"`
	ImpactChange float64 `json:"impact_change"`
	CreatedAt    int64   `json:"created_at"`
}

func toEventJSON(e *store.Event) eventJSON {
	return eventJSON{
		ID:              e.ID,
		SubjectID:       e.SubjectID,
		Title:           e.Title,
		Description:     e.Description,
		EventType:       string(e.EventType),
		Severity:        string(e.Severity),
		DecayRate:       string(e.DecayRate),
		ImpactLevel:     e.ImpactLevel,
		Status:          string(e.Status),
		AffectedHabits:  e.AffectedHabits,
		MentionCount:    e.MentionCount,
		CreatedAt:       e.CreatedAt,
		DetectedAt:      e.DetectedAt,
		LastMentionedAt: e.LastMentionedAt,
		ResolvedAt:      e.ResolvedAt,
	}
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	var req struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		EventType   string   `json:"event_type"`
		Severity    string   `json:"severity"`
		DecayRate   string   `json:"decay_rate"`
		HabitIDs    []string `json:"habit_ids"`
		HabitNames  []string `json:"habit_names"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := s.eng.CreateEvent(engine.CreateEventParams{
		SubjectID:   subjectID,
		Title:       req.Title,
		Description: req.Description,
		Type:        store.EventType(req.EventType),
		Severity:    store.Severity(req.Severity),
		DecayRate:   store.DecayRate(req.DecayRate),
		HabitIDs:    req.HabitIDs,
		HabitNames:  req.HabitNames,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventJSON(event))
}

func (s *Server) handleAmendByTitle(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	var req struct {
		Title   string `json:"title"`
		Note    string `json:"note"`
		Feeling string `json:"feeling"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := s.eng.AmendEventByTitle(subjectID, req.Title, req.Note, engine.Feeling(req.Feeling))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventJSON(event))
}

func (s *Server) handleAmendEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req struct {
		Note    string `json:"note"`
		Feeling string `json:"feeling"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	event, err := s.eng.AmendEvent(eventID, req.Note, engine.Feeling(req.Feeling))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventJSON(event))
}

func (s *Server) handleResolveEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	event, err := s.eng.ResolveEvent(eventID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEventJSON(event))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	event, updates, err := s.eng.GetEvent(eventID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]updateJSON, len(updates))
	for i, u := range updates {
		out[i] = updateJSON{u.ID, u.EventID, u.Note, u.ImpactChange, u.CreatedAt}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event":   toEventJSON(event),
		"updates": out,
	})
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	lookbackDays := 0
	if l := r.URL.Query().Get("lookback_days"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			lookbackDays = n
		}
	}
	minImpact := 0.0
	if m := r.URL.Query().Get("min_impact"); m != "" {
		if f, err := strconv.ParseFloat(m, 64); err == nil && f > 0 {
			minImpact = f
		}
	}

	events, err := s.eng.ActiveEventsForContext(subjectID, lookbackDays, minImpact)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// format=text returns just the splice-ready block
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(buildContext(events)))
		return
	}

	type contextEventJSON struct {
		Event         eventJSON `json:"event"`
		CurrentImpact float64   `json:"current_impact"`
	}
	out := make([]contextEventJSON, len(events))
	for i := range events {
		out[i] = contextEventJSON{toEventJSON(&events[i].Event), events[i].CurrentImpact}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"context":    buildContext(events),
		"events":     out,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be unix milliseconds"})
			return
		}
		since = time.UnixMilli(ms)
	}

	events, err := s.eng.History(subjectID, since)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]eventJSON, len(events))
	for i := range events {
		out[i] = toEventJSON(&events[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject_id": subjectID,
		"count":      len(out),
		"events":     out,
	})
}

func (s *Server) handleEventsByHabit(w http.ResponseWriter, r *http.Request) {
	habitID := chi.URLParam(r, "habitID")

	events, err := s.eng.EventsByHabit(habitID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]eventJSON, len(events))
	for i := range events {
		out[i] = toEventJSON(&events[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"habit_id": habitID,
		"count":    len(out),
		"events":   out,
	})
}
