package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// EventType classifies a disruption.
type EventType string

const (
	TypeInjury      EventType = "injury"
	TypeIllness     EventType = "illness"
	TypeTravel      EventType = "travel"
	TypeWorkStress  EventType = "work_stress"
	TypeFamilyEvent EventType = "family_event"
	TypeOther       EventType = "other"
)

// Severity is the reported seriousness of a disruption.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DecayRate controls how quickly an event's impact fades per day.
type DecayRate string

const (
	DecayFast   DecayRate = "fast"
	DecayMedium DecayRate = "medium"
	DecaySlow   DecayRate = "slow"
)

// Status is an event's lifecycle state. Resolved is terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusImproving Status = "improving"
	StatusResolved  Status = "resolved"
)

// Event represents one temporary life disruption owned by a subject.
// ImpactLevel is the stored baseline; the decayed current impact is
// derived on read and never written back here.
type Event struct {
	ID          string
	SubjectID   string
	Title       string
	Description string
	EventType   EventType
	Severity    Severity
	DecayRate   DecayRate

	ImpactLevel float64
	Status      Status

	// Weak references into the habit subsystem. May dangle.
	AffectedHabits []string

	MentionCount    int
	CreatedAt       int64
	DetectedAt      int64
	LastMentionedAt int64
	ResolvedAt      *int64
}

var (
	validEventTypes = map[EventType]bool{
		TypeInjury: true, TypeIllness: true, TypeTravel: true,
		TypeWorkStress: true, TypeFamilyEvent: true, TypeOther: true,
	}
	validSeverities = map[Severity]bool{
		SeverityLow: true, SeverityMedium: true, SeverityHigh: true,
	}
	validDecayRates = map[DecayRate]bool{
		DecayFast: true, DecayMedium: true, DecaySlow: true,
	}
	validStatuses = map[Status]bool{
		StatusActive: true, StatusImproving: true, StatusResolved: true,
	}
)

// ValidateEvent checks the data-model invariants. Returns a *ValidationError
// naming the first violated field, or nil.
func ValidateEvent(e *Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if e.SubjectID == "" {
		return &ValidationError{Field: "subject_id", Reason: "must not be empty"}
	}
	if !validEventTypes[e.EventType] {
		return &ValidationError{Field: "event_type", Reason: fmt.Sprintf("unknown type %q", e.EventType)}
	}
	if !validSeverities[e.Severity] {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", e.Severity)}
	}
	if !validDecayRates[e.DecayRate] {
		return &ValidationError{Field: "decay_rate", Reason: fmt.Sprintf("unknown decay rate %q", e.DecayRate)}
	}
	if !validStatuses[e.Status] {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", e.Status)}
	}
	if e.ImpactLevel < 0.0 || e.ImpactLevel > 1.0 {
		return &ValidationError{Field: "impact_level", Reason: "must be in [0.0, 1.0]"}
	}
	if e.MentionCount < 1 {
		return &ValidationError{Field: "mention_count", Reason: "must be at least 1"}
	}
	if e.DetectedAt < e.CreatedAt {
		return &ValidationError{Field: "detected_at", Reason: "must not precede created_at"}
	}
	if e.LastMentionedAt < e.DetectedAt {
		return &ValidationError{Field: "last_mentioned_at", Reason: "must not precede detected_at"}
	}
	if (e.ResolvedAt != nil) != (e.Status == StatusResolved) {
		return &ValidationError{Field: "resolved_at", Reason: "set if and only if status is resolved"}
	}
	return nil
}

// PutEvent inserts or fully replaces an event, including its habit reference
// set. Fails with *ValidationError if the record violates invariants.
func (db *DB) PutEvent(e *Event) error {
	if err := ValidateEvent(e); err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return classify(fmt.Errorf("begin put event: %w", err))
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO events (id, subject_id, title, description, event_type, severity, decay_rate,
			impact_level, status, mention_count, created_at, detected_at, last_mentioned_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject_id = excluded.subject_id,
			title = excluded.title,
			description = excluded.description,
			event_type = excluded.event_type,
			severity = excluded.severity,
			decay_rate = excluded.decay_rate,
			impact_level = excluded.impact_level,
			status = excluded.status,
			mention_count = excluded.mention_count,
			created_at = excluded.created_at,
			detected_at = excluded.detected_at,
			last_mentioned_at = excluded.last_mentioned_at,
			resolved_at = excluded.resolved_at
	`, e.ID, e.SubjectID, e.Title, e.Description, e.EventType, e.Severity, e.DecayRate,
		e.ImpactLevel, e.Status, e.MentionCount, e.CreatedAt, e.DetectedAt, e.LastMentionedAt, e.ResolvedAt)
	if err != nil {
		return classify(fmt.Errorf("put event: %w", err))
	}

	// Full replace of the habit reference set
	if _, err := tx.Exec(`DELETE FROM event_habits WHERE event_id = ?`, e.ID); err != nil {
		return classify(fmt.Errorf("clear event habits: %w", err))
	}
	for _, habitID := range e.AffectedHabits {
		if habitID == "" {
			continue
		}
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO event_habits (event_id, habit_id) VALUES (?, ?)
		`, e.ID, habitID); err != nil {
			return classify(fmt.Errorf("put event habit %s: %w", habitID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit put event: %w", err))
	}
	return nil
}

const eventColumns = `id, subject_id, title, description, event_type, severity, decay_rate,
	impact_level, status, mention_count, created_at, detected_at, last_mentioned_at, resolved_at`

// GetEvent returns an event by id, with its habit references loaded.
// Returns ErrNotFound if no such event exists.
func (db *DB) GetEvent(id string) (*Event, error) {
	row := db.QueryRow(`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("get event: %w", err))
	}
	if err := db.loadHabits(e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListBySubject returns a subject's events, optionally filtered by status and
// creation cutoff (UnixMilli; 0 means no cutoff). Newest first.
func (db *DB) ListBySubject(subjectID string, statuses []Status, sinceMs int64) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE subject_id = ?`
	args := []any{subjectID}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ",") + `)`
	}
	if sinceMs > 0 {
		query += ` AND created_at >= ?`
		args = append(args, sinceMs)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("list by subject: %w", err))
	}
	defer rows.Close()

	return db.scanEvents(rows)
}

// ListByHabit returns events referencing a habit id, newest first.
// The habit itself may no longer exist; this is a pure reference lookup.
func (db *DB) ListByHabit(habitID string, excludeResolved bool) ([]Event, error) {
	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE id IN (SELECT event_id FROM event_habits WHERE habit_id = ?)`
	args := []any{habitID}
	if excludeResolved {
		query += ` AND status != ?`
		args = append(args, StatusResolved)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("list by habit: %w", err))
	}
	defer rows.Close()

	return db.scanEvents(rows)
}

// OpenSubjects returns the distinct subject ids that have non-resolved events.
func (db *DB) OpenSubjects() ([]string, error) {
	rows, err := db.Query(`
		SELECT DISTINCT subject_id FROM events WHERE status != ? ORDER BY subject_id
	`, StatusResolved)
	if err != nil {
		return nil, classify(fmt.Errorf("open subjects: %w", err))
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// TransitionStatus performs a compare-and-set on an event's status. The write
// applies only if the current status is one of from; concurrent evaluators
// therefore cannot double-apply a transition. Returns whether a row changed.
func (db *DB) TransitionStatus(id string, from []Status, to Status, resolvedAt *int64) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	placeholders := make([]string, len(from))
	args := []any{to, resolvedAt, id}
	for i, st := range from {
		placeholders[i] = "?"
		args = append(args, st)
	}

	result, err := db.Exec(`
		UPDATE events SET status = ?, resolved_at = COALESCE(?, resolved_at)
		WHERE id = ? AND status IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return false, classify(fmt.Errorf("transition status: %w", err))
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (db *DB) loadHabits(e *Event) error {
	rows, err := db.Query(`
		SELECT habit_id FROM event_habits WHERE event_id = ? ORDER BY habit_id
	`, e.ID)
	if err != nil {
		return classify(fmt.Errorf("load habits: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return fmt.Errorf("scan habit: %w", err)
		}
		e.AffectedHabits = append(e.AffectedHabits, h)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var e Event
	var description sql.NullString
	var resolvedAt sql.NullInt64
	err := row.Scan(&e.ID, &e.SubjectID, &e.Title, &description, &e.EventType, &e.Severity, &e.DecayRate,
		&e.ImpactLevel, &e.Status, &e.MentionCount, &e.CreatedAt, &e.DetectedAt, &e.LastMentionedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	e.Description = description.String
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.Int64
	}
	return &e, nil
}

func (db *DB) scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range events {
		if err := db.loadHabits(&events[i]); err != nil {
			return nil, err
		}
	}
	return events, nil
}
