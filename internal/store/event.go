package store

import (
	"database/sql"
	"slices"
	"time"
)

// Event kinds stored for centroid transitions.
const (
	EventAppear = "appear"
	EventMove   = "move"
	EventLost   = "lost"
)

// CentroidEvent is a recorded change of the motion centroid.
type CentroidEvent struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Frame     int       `json:"frame"`
	Kind      string    `json:"kind"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Distance  int       `json:"distance"`
	Angle     int       `json:"angle"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRepository stores centroid events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

const insertEvent = `INSERT INTO centroid_events (session_id, frame, kind, x, y, distance, angle, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Create inserts one event and sets its ID.
func (r *EventRepository) Create(e *CentroidEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(insertEvent,
		e.SessionID, e.Frame, e.Kind, e.X, e.Y, e.Distance, e.Angle, e.CreatedAt)
	if err != nil {
		return err
	}

	e.ID, err = result.LastInsertId()
	return err
}

// CreateBatch inserts several events in a single transaction.
func (r *EventRepository) CreateBatch(events []*CentroidEvent) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertEvent)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range events {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		result, err := stmt.Exec(e.SessionID, e.Frame, e.Kind, e.X, e.Y, e.Distance, e.Angle, e.CreatedAt)
		if err != nil {
			return err
		}
		if e.ID, err = result.LastInsertId(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBySession returns a session's events in frame order. A positive
// limit keeps only the most recent ones.
func (r *EventRepository) ListBySession(sessionID string, limit int) ([]CentroidEvent, error) {
	query := `SELECT id, session_id, frame, kind, x, y, distance, angle, created_at
		FROM centroid_events WHERE session_id = ? ORDER BY frame DESC, id DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []CentroidEvent
	for rows.Next() {
		var e CentroidEvent
		err := rows.Scan(&e.ID, &e.SessionID, &e.Frame, &e.Kind, &e.X, &e.Y, &e.Distance, &e.Angle, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(events)
	return events, nil
}

// CountBySession returns how many events a session has.
func (r *EventRepository) CountBySession(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM centroid_events WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
