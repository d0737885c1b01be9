package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/stridecoach/setback/internal/store"
)

const (
	defaultLookbackDays = 30
	defaultMinImpact    = 0.1
	// Resolved events stay visible to reporting for this long.
	historyWindowDays = 90
)

// ContextEvent is an event decorated with its freshly computed impact.
type ContextEvent struct {
	Event         store.Event
	CurrentImpact float64
}

// ActiveEventsForContext returns the subject's active and improving events
// created within the lookback window, each with its current impact, filtered
// to impact above minImpact and ordered most impactful first. That ordering
// is load-bearing: consumers typically splice only the top few into the
// agent's instructions. Evaluation is lazy — events that have decayed past
// the auto-resolve threshold are resolved here and excluded from the result.
func (eng *Engine) ActiveEventsForContext(subjectID string, lookbackDays int, minImpact float64) ([]ContextEvent, error) {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}
	if minImpact <= 0 {
		minImpact = defaultMinImpact
	}

	now := eng.now()
	since := now.Add(-time.Duration(lookbackDays) * 24 * time.Hour).UnixMilli()

	events, err := eng.db.ListBySubject(subjectID,
		[]store.Status{store.StatusActive, store.StatusImproving}, since)
	if err != nil {
		return nil, fmt.Errorf("list active events: %w", err)
	}

	var out []ContextEvent
	for i := range events {
		impact, err := eng.evaluate(&events[i], now)
		if err != nil {
			return nil, err
		}
		if events[i].Status == store.StatusResolved {
			continue
		}
		if impact <= minImpact {
			continue
		}
		out = append(out, ContextEvent{Event: events[i], CurrentImpact: impact})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentImpact != out[j].CurrentImpact {
			return out[i].CurrentImpact > out[j].CurrentImpact
		}
		return out[i].Event.LastMentionedAt > out[j].Event.LastMentionedAt
	})
	return out, nil
}

// History returns all of a subject's events regardless of status since the
// cutoff (zero time means the 90-day reporting window), newest first.
func (eng *Engine) History(subjectID string, since time.Time) ([]store.Event, error) {
	if since.IsZero() {
		since = eng.now().Add(-historyWindowDays * 24 * time.Hour)
	}
	events, err := eng.db.ListBySubject(subjectID, nil, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return events, nil
}

// EventsByHabit returns the non-resolved events referencing a habit id. The
// habit may have been deleted; a dangling reference is not an error.
func (eng *Engine) EventsByHabit(habitID string) ([]store.Event, error) {
	events, err := eng.db.ListByHabit(habitID, true)
	if err != nil {
		return nil, fmt.Errorf("events by habit: %w", err)
	}
	return events, nil
}

// GetEvent returns an event with its full update history.
func (eng *Engine) GetEvent(eventID string) (*store.Event, []store.Update, error) {
	event, err := eng.db.GetEvent(eventID)
	if err != nil {
		return nil, nil, err
	}
	updates, err := eng.db.Updates(eventID)
	if err != nil {
		return nil, nil, err
	}
	return event, updates, nil
}
