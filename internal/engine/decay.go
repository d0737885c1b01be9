package engine

import (
	"math"
	"time"

	"github.com/stridecoach/setback/internal/store"
)

// Decay constants. The stored impact_level is never rewritten by decay;
// CurrentImpact recomputes from the immutable baseline on every call, so no
// background process has to touch the database for impact to fade.
const (
	dailyDecayFast   = 0.10
	dailyDecayMedium = 0.05
	dailyDecaySlow   = 0.02

	// Silence past this many days accelerates the fade-out.
	silenceDays   = 7.0
	silenceFactor = 1.5

	// Only the single most recent update, if fresh enough, skews the result.
	updateRecency = 72 * time.Hour
	reliefFactor  = 0.7
	worsenFactor  = 1.2

	msPerDay = 24 * 60 * 60 * 1000
)

func dailyDecay(rate store.DecayRate) float64 {
	switch rate {
	case store.DecayFast:
		return dailyDecayFast
	case store.DecaySlow:
		return dailyDecaySlow
	default:
		return dailyDecayMedium
	}
}

// CurrentImpact computes an event's decayed impact at the given instant.
// Pure: no I/O, no side effects, never errors. latest is the event's most
// recent update, or nil if it has none.
//
// impact = impact_level × (1 − dailyDecay)^daysSinceCreated, where the daily
// decay grows 1.5× once the event has gone unmentioned for over a week, then
// skewed by the latest update if it landed within the recency window
// (improvement ×0.7, worsening ×1.2). Result is clamped to [0, 1].
func CurrentImpact(e *store.Event, latest *store.Update, now time.Time) float64 {
	if e.ImpactLevel <= 0 {
		return 0
	}

	nowMs := now.UnixMilli()

	// Clock skew guard: negative elapsed time is treated as zero
	daysSinceCreated := float64(nowMs-e.CreatedAt) / msPerDay
	if daysSinceCreated < 0 {
		daysSinceCreated = 0
	}
	daysSinceMentioned := float64(nowMs-e.LastMentionedAt) / msPerDay
	if daysSinceMentioned < 0 {
		daysSinceMentioned = 0
	}

	decay := dailyDecay(e.DecayRate)
	if daysSinceMentioned > silenceDays {
		decay *= silenceFactor
	}

	impact := e.ImpactLevel * math.Pow(1-decay, daysSinceCreated)

	if latest != nil {
		age := nowMs - latest.CreatedAt
		if age >= 0 && age <= updateRecency.Milliseconds() {
			switch {
			case latest.ImpactChange < 0:
				impact *= reliefFactor
			case latest.ImpactChange > 0:
				impact *= worsenFactor
			}
		}
	}

	return clamp01(impact)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
