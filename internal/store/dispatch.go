package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Dispatch is one action sent to the player and its outcome.
type Dispatch struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Value        int64     `json:"value"`
	Mode         int       `json:"mode"`
	TrackID      string    `json:"track_id,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	DispatchedAt time.Time `json:"dispatched_at"`
}

// DispatchRepository stores the dispatch history.
type DispatchRepository struct {
	db *sql.DB
}

// Dispatches returns the dispatch repository for this store.
func (s *Store) Dispatches() *DispatchRepository {
	return &DispatchRepository{db: s.db}
}

// Create inserts a dispatch record, assigning an ID if it has none.
func (r *DispatchRepository) Create(d *Dispatch) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.DispatchedAt.IsZero() {
		d.DispatchedAt = time.Now()
	}

	var trackID sql.NullString
	if d.TrackID != "" {
		trackID = sql.NullString{String: d.TrackID, Valid: true}
	}

	_, err := r.db.Exec(
		`INSERT INTO dispatches (id, kind, value, mode, track_id, success, error, dispatched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Kind, d.Value, d.Mode, trackID, d.Success, d.Error, d.DispatchedAt.UTC(),
	)
	return err
}

// List returns up to limit dispatches, newest first. A non-positive limit returns all.
func (r *DispatchRepository) List(limit int) ([]*Dispatch, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, kind, value, mode, track_id, success, error, dispatched_at
		 FROM dispatches ORDER BY dispatched_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dispatches []*Dispatch
	for rows.Next() {
		d := &Dispatch{}
		var trackID sql.NullString
		var success int

		if err := rows.Scan(&d.ID, &d.Kind, &d.Value, &d.Mode, &trackID, &success, &d.Error, &d.DispatchedAt); err != nil {
			return nil, err
		}

		d.TrackID = trackID.String
		d.Success = success != 0
		dispatches = append(dispatches, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return dispatches, nil
}

// Prune deletes all but the newest keep dispatches and returns how many were removed.
func (r *DispatchRepository) Prune(keep int) (int64, error) {
	result, err := r.db.Exec(
		`DELETE FROM dispatches WHERE id NOT IN (
			SELECT id FROM dispatches ORDER BY dispatched_at DESC, rowid DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
