package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session is one run of the tracking pipeline.
type Session struct {
	ID           string     `json:"id"`
	CameraID     int        `json:"camera_id"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Frames       int        `json:"frames"`
	ActiveFrames int        `json:"active_frames"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, camera_id, started_at, ended_at, frames, active_frames`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	s := &Session{}
	var ended sql.NullTime

	if err := row.Scan(&s.ID, &s.CameraID, &s.StartedAt, &ended, &s.Frames, &s.ActiveFrames); err != nil {
		return nil, err
	}
	if ended.Valid {
		s.EndedAt = &ended.Time
	}
	return s, nil
}

// Create inserts a new session. StartedAt is set to now when zero.
func (r *SessionRepository) Create(s *Session) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, camera_id, started_at, frames, active_frames)
		 VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.CameraID, s.StartedAt, s.Frames, s.ActiveFrames,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRow(
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Finish records the end time and frame counters of a session.
func (r *SessionRepository) Finish(id string, frames, activeFrames int) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, frames = ?, active_frames = ? WHERE id = ?`,
		time.Now(), frames, activeFrames, id,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes a session and, through the foreign key, its events.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}
