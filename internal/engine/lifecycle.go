package engine

import (
	"fmt"
	"time"

	"github.com/stridecoach/setback/internal/store"
)

// Lifecycle thresholds over the decayed current impact.
const (
	// Below this the event no longer meaningfully shapes coaching behavior.
	meaningfulImpact = 0.1
	// Below this the event auto-resolves.
	autoResolveImpact = 0.05
)

// NextStatus decides the status an event should hold given its current impact
// and most recent update. Pure. Resolved is terminal: no input produces a
// transition out of it — a reopened disruption is a new event.
func NextStatus(e *store.Event, latest *store.Update, impact float64) store.Status {
	if e.Status == store.StatusResolved {
		return store.StatusResolved
	}
	if impact < autoResolveImpact {
		return store.StatusResolved
	}
	if impact < meaningfulImpact {
		return store.StatusImproving
	}
	// An explicit report of improvement moves an active event forward even
	// while its impact is still meaningful.
	if e.Status == store.StatusActive && latest != nil && latest.ImpactChange < 0 {
		return store.StatusImproving
	}
	return e.Status
}

// evaluate recomputes an event's status and writes back any transition via a
// status compare-and-set, so concurrent evaluations of the same event settle
// on a single deterministic outcome. Idempotent: with no new updates a second
// call changes nothing. The event is mutated in place to reflect the outcome.
func (eng *Engine) evaluate(e *store.Event, now time.Time) (float64, error) {
	latest, err := eng.db.LatestUpdate(e.ID)
	if err != nil {
		return 0, fmt.Errorf("latest update for %s: %w", e.ID, err)
	}

	impact := CurrentImpact(e, latest, now)
	next := NextStatus(e, latest, impact)
	if next == e.Status {
		return impact, nil
	}

	switch next {
	case store.StatusResolved:
		resolvedAt := now.UnixMilli()
		changed, err := eng.db.TransitionStatus(e.ID,
			[]store.Status{store.StatusActive, store.StatusImproving},
			store.StatusResolved, &resolvedAt)
		if err != nil {
			return impact, fmt.Errorf("resolve %s: %w", e.ID, err)
		}
		if changed {
			e.Status = store.StatusResolved
			e.ResolvedAt = &resolvedAt
			eng.log.Infow("event auto-resolved", "event_id", e.ID, "impact", impact)
		}
	case store.StatusImproving:
		changed, err := eng.db.TransitionStatus(e.ID,
			[]store.Status{store.StatusActive}, store.StatusImproving, nil)
		if err != nil {
			return impact, fmt.Errorf("mark improving %s: %w", e.ID, err)
		}
		if changed {
			e.Status = store.StatusImproving
		}
	}

	return impact, nil
}

// Sweep lazily evaluates every non-resolved event across all subjects and
// returns the number of status transitions applied. Safe to run repeatedly.
func (eng *Engine) Sweep() (int, error) {
	subjects, err := eng.db.OpenSubjects()
	if err != nil {
		return 0, fmt.Errorf("list open subjects: %w", err)
	}

	transitions := 0
	for _, subjectID := range subjects {
		n, err := eng.SweepSubject(subjectID)
		if err != nil {
			return transitions, err
		}
		transitions += n
	}
	return transitions, nil
}

// SweepSubject evaluates a single subject's non-resolved events.
func (eng *Engine) SweepSubject(subjectID string) (int, error) {
	events, err := eng.db.ListBySubject(subjectID,
		[]store.Status{store.StatusActive, store.StatusImproving}, 0)
	if err != nil {
		return 0, fmt.Errorf("list events for %s: %w", subjectID, err)
	}

	now := eng.now()
	transitions := 0
	for i := range events {
		before := events[i].Status
		if _, err := eng.evaluate(&events[i], now); err != nil {
			return transitions, err
		}
		if events[i].Status != before {
			transitions++
		}
	}
	return transitions, nil
}

// StartSweepTimer runs a sweep at startup and then on the given interval
// until Stop is called.
func (eng *Engine) StartSweepTimer(interval time.Duration) {
	sweep := func() {
		if n, err := eng.Sweep(); err != nil {
			eng.log.Errorw("sweep failed", "error", err)
		} else if n > 0 {
			eng.log.Infow("sweep applied transitions", "count", n)
		}
	}

	sweep()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sweep()
			case <-eng.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (eng *Engine) Stop() {
	close(eng.stopCh)
}
