package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stridecoach/setback/internal/store"
)

var decayEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func decayEvent(impact float64, rate store.DecayRate) *store.Event {
	ms := decayEpoch.UnixMilli()
	return &store.Event{
		ID:              "evt-1",
		SubjectID:       "subj-1",
		Title:           "Knee injury",
		EventType:       store.TypeInjury,
		Severity:        store.SeverityHigh,
		DecayRate:       rate,
		ImpactLevel:     impact,
		Status:          store.StatusActive,
		MentionCount:    1,
		CreatedAt:       ms,
		DetectedAt:      ms,
		LastMentionedAt: ms,
	}
}

func TestCurrentImpactFreshEvent(t *testing.T) {
	// Zero elapsed days leaves the stored baseline untouched
	e := decayEvent(0.9, store.DecaySlow)
	got := CurrentImpact(e, nil, decayEpoch)
	assert.InDelta(t, 0.9, got, 1e-9)
}

func TestCurrentImpactSilentFortnight(t *testing.T) {
	// 14 days with no mentions: >7 days silent raises 5%/day to 7.5%/day
	e := decayEvent(0.9, store.DecayMedium)
	now := decayEpoch.Add(14 * 24 * time.Hour)

	want := 0.9 * math.Pow(1-0.05*1.5, 14)
	got := CurrentImpact(e, nil, now)
	assert.InDelta(t, want, got, 1e-9)
	assert.InDelta(t, 0.30, got, 0.01)
}

func TestCurrentImpactDecayRates(t *testing.T) {
	now := decayEpoch.Add(5 * 24 * time.Hour)

	tests := []struct {
		name string
		rate store.DecayRate
		want float64
	}{
		{"fast", store.DecayFast, 0.8 * math.Pow(0.90, 5)},
		{"medium", store.DecayMedium, 0.8 * math.Pow(0.95, 5)},
		{"slow", store.DecaySlow, 0.8 * math.Pow(0.98, 5)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := decayEvent(0.8, tc.rate)
			e.LastMentionedAt = now.UnixMilli() // mentioned today, no silence factor
			assert.InDelta(t, tc.want, CurrentImpact(e, nil, now), 1e-9)
		})
	}
}

func TestCurrentImpactMonotonicWithoutUpdates(t *testing.T) {
	e := decayEvent(0.9, store.DecayMedium)

	prev := math.Inf(1)
	for day := 0; day <= 400; day++ {
		now := decayEpoch.Add(time.Duration(day) * 24 * time.Hour)
		got := CurrentImpact(e, nil, now)
		assert.LessOrEqual(t, got, prev, "impact rose between day %d and %d", day-1, day)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
		prev = got
	}
}

func TestCurrentImpactFarFuture(t *testing.T) {
	e := decayEvent(1.0, store.DecaySlow)
	now := decayEpoch.Add(100 * 365 * 24 * time.Hour)

	got := CurrentImpact(e, nil, now)
	assert.GreaterOrEqual(t, got, 0.0)
	assert.LessOrEqual(t, got, 1.0)
	assert.Less(t, got, 1e-6)
}

func TestCurrentImpactClockSkew(t *testing.T) {
	// now before created_at must not blow up the exponent
	e := decayEvent(0.7, store.DecayFast)
	now := decayEpoch.Add(-48 * time.Hour)

	assert.InDelta(t, 0.7, CurrentImpact(e, nil, now), 1e-9)
}

func TestCurrentImpactZeroBaseline(t *testing.T) {
	e := decayEvent(0, store.DecayFast)
	for _, days := range []int{0, 1, 100} {
		now := decayEpoch.Add(time.Duration(days) * 24 * time.Hour)
		assert.Zero(t, CurrentImpact(e, nil, now))
	}
}

func TestCurrentImpactRecentUpdateOverride(t *testing.T) {
	now := decayEpoch.Add(2 * 24 * time.Hour)
	base := func() float64 {
		e := decayEvent(0.6, store.DecayMedium)
		return CurrentImpact(e, nil, now)
	}()

	tests := []struct {
		name   string
		change float64
		age    time.Duration
		want   float64
	}{
		{"recent improvement relieves", -0.15, 12 * time.Hour, base * 0.7},
		{"recent worsening amplifies", 0.15, 12 * time.Hour, base * 1.2},
		{"neutral update changes nothing", 0, 12 * time.Hour, base},
		{"stale update ignored", -0.15, 96 * time.Hour, base},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := decayEvent(0.6, store.DecayMedium)
			latest := &store.Update{
				ID:           "upd-1",
				EventID:      e.ID,
				ImpactChange: tc.change,
				CreatedAt:    now.Add(-tc.age).UnixMilli(),
			}
			assert.InDelta(t, tc.want, CurrentImpact(e, latest, now), 1e-9)
		})
	}
}

func TestCurrentImpactWorsenClamped(t *testing.T) {
	// 1.2x override on a near-full baseline must still clamp to 1.0
	e := decayEvent(1.0, store.DecaySlow)
	latest := &store.Update{ID: "upd-1", EventID: e.ID, ImpactChange: 0.3, CreatedAt: decayEpoch.UnixMilli()}

	got := CurrentImpact(e, latest, decayEpoch)
	assert.Equal(t, 1.0, got)
}
