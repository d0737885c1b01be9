package store

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAppendUpdate(t *testing.T) {
	db := testDB(t)

	e := testEvent("evt-1", "subj-1")
	if err := db.PutEvent(e); err != nil {
		t.Fatalf("PutEvent: %v", err)
	}

	u := &Update{
		ID:           "upd-1",
		EventID:      "evt-1",
		Note:         "feeling a bit better",
		ImpactChange: -0.15,
		CreatedAt:    e.LastMentionedAt + 1000,
	}
	if err := db.AppendUpdate(u); err != nil {
		t.Fatalf("AppendUpdate: %v", err)
	}

	got, _ := db.GetEvent("evt-1")
	if got.MentionCount != 2 {
		t.Errorf("mention_count = %d, want 2", got.MentionCount)
	}
	if got.LastMentionedAt != u.CreatedAt {
		t.Errorf("last_mentioned_at = %d, want %d", got.LastMentionedAt, u.CreatedAt)
	}
	if diff := got.ImpactLevel - 0.5; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("impact_level = %f, want 0.5", got.ImpactLevel)
	}

	updates, err := db.Updates("evt-1")
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	if len(updates) != 1 || updates[0].ImpactChange != -0.15 {
		t.Errorf("updates = %v, want one row with impact_change -0.15", updates)
	}
}

func TestAppendUpdateMissingEvent(t *testing.T) {
	db := testDB(t)

	u := &Update{ID: "upd-1", EventID: "ghost", ImpactChange: 0.1, CreatedAt: time.Now().UnixMilli()}
	err := db.AppendUpdate(u)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// Nothing written
	updates, _ := db.Updates("ghost")
	if len(updates) != 0 {
		t.Errorf("updates = %d, want 0", len(updates))
	}
}

func TestAppendUpdateValidation(t *testing.T) {
	db := testDB(t)

	u := &Update{ID: "upd-1", EventID: "evt-1", ImpactChange: 1.5, CreatedAt: time.Now().UnixMilli()}
	err := db.AppendUpdate(u)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if ve.Field != "impact_change" {
		t.Errorf("field = %q, want impact_change", ve.Field)
	}
}

func TestAppendUpdateClampsImpact(t *testing.T) {
	db := testDB(t)

	e := testEvent("evt-1", "subj-1")
	e.ImpactLevel = 0.9
	if err := db.PutEvent(e); err != nil {
		t.Fatalf("PutEvent: %v", err)
	}

	u := &Update{ID: "upd-1", EventID: "evt-1", ImpactChange: 0.5, CreatedAt: e.LastMentionedAt + 1000}
	if err := db.AppendUpdate(u); err != nil {
		t.Fatalf("AppendUpdate: %v", err)
	}

	got, _ := db.GetEvent("evt-1")
	if got.ImpactLevel != 1.0 {
		t.Errorf("impact_level = %f, want clamped 1.0", got.ImpactLevel)
	}
}

func TestUpdatesAppendOnly(t *testing.T) {
	db := testDB(t)

	e := testEvent("evt-1", "subj-1")
	if err := db.PutEvent(e); err != nil {
		t.Fatalf("PutEvent: %v", err)
	}

	base := e.LastMentionedAt
	for i := 0; i < 5; i++ {
		u := &Update{
			ID:           fmt.Sprintf("upd-%d", i),
			EventID:      "evt-1",
			Note:         fmt.Sprintf("note %d", i),
			ImpactChange: -0.01,
			CreatedAt:    base + int64(i)*1000,
		}
		if err := db.AppendUpdate(u); err != nil {
			t.Fatalf("AppendUpdate %d: %v", i, err)
		}

		// mention_count strictly increases with every append
		got, _ := db.GetEvent("evt-1")
		if got.MentionCount != i+2 {
			t.Errorf("mention_count after append %d = %d, want %d", i, got.MentionCount, i+2)
		}
	}

	updates, err := db.Updates("evt-1")
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	if len(updates) != 5 {
		t.Fatalf("len = %d, want 5", len(updates))
	}
	for i, u := range updates {
		if u.ID != fmt.Sprintf("upd-%d", i) {
			t.Errorf("updates[%d].ID = %s, order disturbed", i, u.ID)
		}
	}
}

func TestLatestUpdateTieBreak(t *testing.T) {
	db := testDB(t)

	e := testEvent("evt-1", "subj-1")
	if err := db.PutEvent(e); err != nil {
		t.Fatalf("PutEvent: %v", err)
	}

	none, err := db.LatestUpdate("evt-1")
	if err != nil {
		t.Fatalf("LatestUpdate: %v", err)
	}
	if none != nil {
		t.Fatal("expected nil for event with no updates")
	}

	// Two updates with the same timestamp: the later insert wins
	ts := e.LastMentionedAt + 1000
	for _, id := range []string{"upd-first", "upd-second"} {
		u := &Update{ID: id, EventID: "evt-1", ImpactChange: 0.05, CreatedAt: ts}
		if err := db.AppendUpdate(u); err != nil {
			t.Fatalf("AppendUpdate %s: %v", id, err)
		}
	}

	latest, err := db.LatestUpdate("evt-1")
	if err != nil {
		t.Fatalf("LatestUpdate: %v", err)
	}
	if latest == nil || latest.ID != "upd-second" {
		t.Errorf("latest = %v, want upd-second", latest)
	}
}
