package sqlite

import (
	"fmt"

	"lanepilot/internal/model"
)

// EventRepository implements repository.EventRepository for SQLite.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertBatch adds multiple events in a single transaction.
func (r *EventRepository) InsertBatch(events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO events (run_id, tick, kind, behavior, intersection_count, left_turn_count, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(ev.RunID, ev.Tick, string(ev.Kind), ev.Behavior, ev.IntersectionCount, ev.LeftTurnCount, ev.Detail, ev.Timestamp); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	return tx.Commit()
}

// GetRecent returns up to limit events, newest first. An empty runID matches
// every run.
func (r *EventRepository) GetRecent(runID string, limit int) ([]model.Event, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, run_id, tick, kind, behavior, intersection_count, left_turn_count, detail, timestamp
		FROM events`
	var args []interface{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		var ev model.Event
		var kind string
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Tick, &kind, &ev.Behavior, &ev.IntersectionCount, &ev.LeftTurnCount, &ev.Detail, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Kind = model.EventKind(kind)
		events = append(events, ev)
	}

	return events, rows.Err()
}

// CountByKind returns the number of events per kind. An empty runID matches
// every run.
func (r *EventRepository) CountByKind(runID string) (map[model.EventKind]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT kind, COUNT(*) FROM events`
	var args []interface{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` GROUP BY kind`

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.EventKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[model.EventKind(kind)] = n
	}

	return counts, rows.Err()
}

// DeleteAll removes every event.
func (r *EventRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM events`); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}
