package store

import (
	"database/sql"
	"fmt"
)

// Update is one immutable progress note on an event. Updates are append-only:
// once written they are never modified or reordered, forming the audit trail
// for every impact adjustment.
type Update struct {
	ID           string
	EventID      string
	Note         string
	ImpactChange float64
	CreatedAt    int64
}

// ValidateUpdate checks an update's invariants before it is written.
func ValidateUpdate(u *Update) error {
	if u.EventID == "" {
		return &ValidationError{Field: "event_id", Reason: "must not be empty"}
	}
	if u.ImpactChange < -1.0 || u.ImpactChange > 1.0 {
		return &ValidationError{Field: "impact_change", Reason: "must be in [-1.0, 1.0]"}
	}
	return nil
}

// AppendUpdate atomically appends an update and applies its side effects to
// the parent event: mention_count increments, last_mentioned_at advances, and
// impact_level shifts by the update's impact_change (clamped to [0,1]). Both
// writes happen in one transaction so an update can never exist with stale
// parent counters. Returns ErrNotFound if the parent event does not exist.
func (db *DB) AppendUpdate(u *Update) error {
	if err := ValidateUpdate(u); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return classify(fmt.Errorf("begin append update: %w", err))
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE events SET
			mention_count = mention_count + 1,
			last_mentioned_at = MAX(last_mentioned_at, ?),
			impact_level = MIN(1.0, MAX(0.0, impact_level + ?))
		WHERE id = ?
	`, u.CreatedAt, u.ImpactChange, u.EventID)
	if err != nil {
		return classify(fmt.Errorf("bump event counters: %w", err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", u.EventID, ErrNotFound)
	}

	if _, err := tx.Exec(`
		INSERT INTO event_updates (id, event_id, note, impact_change, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.EventID, u.Note, u.ImpactChange, u.CreatedAt); err != nil {
		return classify(fmt.Errorf("append update: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit append update: %w", err))
	}
	return nil
}

// Updates returns an event's full update history, oldest first. Ties on
// created_at keep insertion order.
func (db *DB) Updates(eventID string) ([]Update, error) {
	rows, err := db.Query(`
		SELECT id, event_id, note, impact_change, created_at
		FROM event_updates WHERE event_id = ?
		ORDER BY created_at, rowid
	`, eventID)
	if err != nil {
		return nil, classify(fmt.Errorf("get updates: %w", err))
	}
	defer rows.Close()

	var updates []Update
	for rows.Next() {
		var u Update
		var note sql.NullString
		if err := rows.Scan(&u.ID, &u.EventID, &note, &u.ImpactChange, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		u.Note = note.String
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// LatestUpdate returns the most recent update for an event, or nil if none
// exists. Ties on created_at are broken by the later insert.
func (db *DB) LatestUpdate(eventID string) (*Update, error) {
	var u Update
	var note sql.NullString
	err := db.QueryRow(`
		SELECT id, event_id, note, impact_change, created_at
		FROM event_updates WHERE event_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, eventID).Scan(&u.ID, &u.EventID, &note, &u.ImpactChange, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(fmt.Errorf("latest update: %w", err))
	}
	u.Note = note.String
	return &u, nil
}
