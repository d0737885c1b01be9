package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridecoach/setback/internal/store"
)

// Severity bands map to fixed initial impact levels.
const (
	impactLow    = 0.35
	impactMedium = 0.65
	impactHigh   = 0.90
)

// Feeling is the subject's self-reported direction on an amendment.
type Feeling string

const (
	FeelingBetter Feeling = "better"
	FeelingWorse  Feeling = "worse"
	FeelingSame   Feeling = "same"
)

// feelingDelta is the signed impact_change recorded per feeling.
const feelingDelta = 0.15

// How far back amend-by-title searches a subject's events.
const titleMatchWindow = 30 * 24 * time.Hour

// Engine implements event mutations, lifecycle evaluation, and the query
// surface over the store.
type Engine struct {
	db     *store.DB
	habits HabitResolver
	log    *zap.SugaredLogger
	stopCh chan struct{}

	// Injectable clock for tests.
	now func() time.Time
}

// New creates an Engine. A nil resolver disables habit-name resolution
// (names are dropped with a warning; pre-resolved ids still work).
func New(db *store.DB, habits HabitResolver, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if habits == nil {
		habits = NopHabitResolver{}
	}
	return &Engine{
		db:     db,
		habits: habits,
		log:    log,
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

// CreateEventParams carries the inputs for CreateEvent. DecayRate is optional;
// when empty the event type's default applies. HabitIDs are taken as-is,
// HabitNames go through the habit resolver.
type CreateEventParams struct {
	SubjectID   string
	Title       string
	Description string
	Type        store.EventType
	Severity    store.Severity
	DecayRate   store.DecayRate
	HabitIDs    []string
	HabitNames  []string
}

// CreateEvent records a newly mentioned disruption. Severity picks the initial
// impact level, the event type picks the default decay rate, and unresolvable
// habit names are dropped with a warning rather than failing the write.
func (eng *Engine) CreateEvent(p CreateEventParams) (*store.Event, error) {
	now := eng.now().UnixMilli()

	decayRate := p.DecayRate
	if decayRate == "" {
		decayRate = defaultDecayRate(p.Type)
	}

	habitIDs := append([]string(nil), p.HabitIDs...)
	if len(p.HabitNames) > 0 {
		resolved, err := eng.habits.ResolveHabitIDs(p.HabitNames)
		if err != nil {
			eng.log.Warnw("habit resolution failed, dropping names",
				"subject_id", p.SubjectID, "names", p.HabitNames, "error", err)
		} else {
			if len(resolved) < len(p.HabitNames) {
				eng.log.Warnw("some habit names did not resolve",
					"subject_id", p.SubjectID, "requested", len(p.HabitNames), "resolved", len(resolved))
			}
			habitIDs = append(habitIDs, resolved...)
		}
	}

	event := &store.Event{
		ID:              uuid.New().String(),
		SubjectID:       p.SubjectID,
		Title:           p.Title,
		Description:     p.Description,
		EventType:       p.Type,
		Severity:        p.Severity,
		DecayRate:       decayRate,
		ImpactLevel:     severityImpact(p.Severity),
		Status:          store.StatusActive,
		AffectedHabits:  habitIDs,
		MentionCount:    1,
		CreatedAt:       now,
		DetectedAt:      now,
		LastMentionedAt: now,
	}

	if err := eng.withRetry(func() error { return eng.db.PutEvent(event) }); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	eng.log.Infow("event created",
		"event_id", event.ID, "subject_id", event.SubjectID,
		"type", event.EventType, "severity", event.Severity, "impact", event.ImpactLevel)
	return event, nil
}

// AmendEvent appends a progress note to an active or improving event, shifts
// its stored impact level by the feeling's delta, and re-evaluates lifecycle
// transitions before returning, so the caller sees the new status
// synchronously. Amending a resolved event fails with ErrNotFound.
func (eng *Engine) AmendEvent(eventID, note string, feeling Feeling) (*store.Event, error) {
	delta, err := impactChange(feeling)
	if err != nil {
		return nil, err
	}

	event, err := eng.db.GetEvent(eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == store.StatusResolved {
		return nil, fmt.Errorf("event %s already resolved: %w", eventID, store.ErrNotFound)
	}

	update := &store.Update{
		ID:           uuid.New().String(),
		EventID:      eventID,
		Note:         note,
		ImpactChange: delta,
		CreatedAt:    eng.now().UnixMilli(),
	}
	if err := eng.withRetry(func() error { return eng.db.AppendUpdate(update) }); err != nil {
		return nil, fmt.Errorf("amend event: %w", err)
	}

	// Reload so the lifecycle evaluation sees the post-amendment state
	event, err = eng.db.GetEvent(eventID)
	if err != nil {
		return nil, err
	}
	if _, err := eng.evaluate(event, eng.now()); err != nil {
		return nil, err
	}

	eng.log.Infow("event amended",
		"event_id", eventID, "feeling", feeling, "impact_change", delta, "status", event.Status)
	return event, nil
}

// AmendEventByTitle amends the subject's most recently mentioned non-resolved
// event whose title matches the query (case-insensitive substring, 30-day
// window). Fails with ErrNotFound when nothing matches; nothing is written in
// that case.
func (eng *Engine) AmendEventByTitle(subjectID, title, note string, feeling Feeling) (*store.Event, error) {
	if strings.TrimSpace(title) == "" {
		return nil, &store.ValidationError{Field: "title", Reason: "must not be empty"}
	}

	event, err := eng.findByTitle(subjectID, title)
	if err != nil {
		return nil, err
	}
	return eng.AmendEvent(event.ID, note, feeling)
}

func (eng *Engine) findByTitle(subjectID, title string) (*store.Event, error) {
	since := eng.now().Add(-titleMatchWindow).UnixMilli()
	events, err := eng.db.ListBySubject(subjectID,
		[]store.Status{store.StatusActive, store.StatusImproving}, since)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}

	query := strings.ToLower(strings.TrimSpace(title))
	var match *store.Event
	for i := range events {
		if !strings.Contains(strings.ToLower(events[i].Title), query) {
			continue
		}
		if match == nil || events[i].LastMentionedAt > match.LastMentionedAt {
			match = &events[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no active event matching %q for subject %s: %w",
			title, subjectID, store.ErrNotFound)
	}
	return match, nil
}

// ResolveEvent applies an explicit user resolution signal. Resolving an
// already-resolved event is a no-op.
func (eng *Engine) ResolveEvent(eventID string) (*store.Event, error) {
	event, err := eng.db.GetEvent(eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == store.StatusResolved {
		return event, nil
	}

	resolvedAt := eng.now().UnixMilli()
	err = eng.withRetry(func() error {
		_, err := eng.db.TransitionStatus(eventID,
			[]store.Status{store.StatusActive, store.StatusImproving},
			store.StatusResolved, &resolvedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve event: %w", err)
	}

	eng.log.Infow("event resolved by user", "event_id", eventID)
	return eng.db.GetEvent(eventID)
}

func severityImpact(s store.Severity) float64 {
	switch s {
	case store.SeverityLow:
		return impactLow
	case store.SeverityHigh:
		return impactHigh
	default:
		return impactMedium
	}
}

// defaultDecayRate picks the decay class for an event type: illness and
// travel disruptions fade fast, chronic work stress lingers.
func defaultDecayRate(t store.EventType) store.DecayRate {
	switch t {
	case store.TypeIllness, store.TypeTravel:
		return store.DecayFast
	case store.TypeWorkStress:
		return store.DecaySlow
	default:
		return store.DecayMedium
	}
}

func impactChange(f Feeling) (float64, error) {
	switch f {
	case FeelingBetter:
		return -feelingDelta, nil
	case FeelingWorse:
		return feelingDelta, nil
	case FeelingSame:
		return 0, nil
	default:
		return 0, &store.ValidationError{Field: "feeling", Reason: fmt.Sprintf("unknown feeling %q", f)}
	}
}
