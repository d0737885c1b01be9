package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "events: exceptional life events per subject",
		SQL: `
CREATE TABLE events (
    id                TEXT PRIMARY KEY,
    subject_id        TEXT NOT NULL,
    title             TEXT NOT NULL,
    description       TEXT,
    event_type        TEXT NOT NULL CHECK (event_type IN ('injury', 'illness', 'travel', 'work_stress', 'family_event', 'other')),
    severity          TEXT NOT NULL CHECK (severity IN ('low', 'medium', 'high')),
    decay_rate        TEXT NOT NULL CHECK (decay_rate IN ('fast', 'medium', 'slow')),

    -- Stored baseline; current impact is derived at read time
    impact_level      REAL NOT NULL CHECK (impact_level >= 0.0 AND impact_level <= 1.0),
    status            TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'improving', 'resolved')),

    mention_count     INTEGER NOT NULL DEFAULT 1,
    created_at        INTEGER NOT NULL,
    detected_at       INTEGER NOT NULL,
    last_mentioned_at INTEGER NOT NULL,
    resolved_at       INTEGER
);

CREATE INDEX idx_events_subject        ON events(subject_id);
CREATE INDEX idx_events_subject_status ON events(subject_id, status);
CREATE INDEX idx_events_created        ON events(created_at DESC);
`,
	},
	{
		Version:     2,
		Description: "event_updates: append-only progress notes per event",
		SQL: `
CREATE TABLE event_updates (
    id            TEXT PRIMARY KEY,
    event_id      TEXT NOT NULL,
    note          TEXT,
    impact_change REAL NOT NULL CHECK (impact_change >= -1.0 AND impact_change <= 1.0),
    created_at    INTEGER NOT NULL,

    FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
);

CREATE INDEX idx_updates_event   ON event_updates(event_id);
CREATE INDEX idx_updates_created ON event_updates(created_at DESC);
`,
	},
	{
		Version:     3,
		Description: "event_habits: weak habit references per event",
		SQL: `
CREATE TABLE event_habits (
    event_id TEXT NOT NULL,
    habit_id TEXT NOT NULL,

    PRIMARY KEY (event_id, habit_id),
    FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
);

CREATE INDEX idx_event_habits_habit ON event_habits(habit_id);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
