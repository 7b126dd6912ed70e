package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Track is a media file in the library.
type Track struct {
	ID           string     `json:"id"`
	Path         string     `json:"path"`
	Title        string     `json:"title"`
	PlayCount    int        `json:"play_count"`
	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`
	AddedAt      time.Time  `json:"added_at"`
}

// TrackRepository provides access to library tracks.
type TrackRepository struct {
	db *sql.DB
}

// Tracks returns the track repository for this store.
func (s *Store) Tracks() *TrackRepository {
	return &TrackRepository{db: s.db}
}

const trackColumns = `id, path, title, play_count, last_played_at, added_at`

// Add inserts a track for path unless one already exists. It reports whether
// a new row was created.
func (r *TrackRepository) Add(path, title string) (bool, error) {
	result, err := r.db.Exec(
		`INSERT INTO tracks (id, path, title, added_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO NOTHING`,
		uuid.New().String(), path, title, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// GetByID retrieves a track by its ID.
func (r *TrackRepository) GetByID(id string) (*Track, error) {
	return r.queryOne(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
}

// GetByPath retrieves a track by its file path.
func (r *TrackRepository) GetByPath(path string) (*Track, error) {
	return r.queryOne(`SELECT `+trackColumns+` FROM tracks WHERE path = ?`, path)
}

// LeastRecentlyPlayed returns the track that was played longest ago. Tracks
// never played come first; ties are broken by path.
func (r *TrackRepository) LeastRecentlyPlayed() (*Track, error) {
	return r.queryOne(
		`SELECT ` + trackColumns + ` FROM tracks
		 ORDER BY last_played_at IS NOT NULL, last_played_at, path
		 LIMIT 1`,
	)
}

// List retrieves all tracks ordered by path.
func (r *TrackRepository) List() ([]*Track, error) {
	rows, err := r.db.Query(`SELECT ` + trackColumns + ` FROM tracks ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tracks, nil
}

// Count returns the number of tracks.
func (r *TrackRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&n)
	return n, err
}

// MarkPlayed increments the play count of a track and stamps it with at.
func (r *TrackRepository) MarkPlayed(id string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE tracks SET play_count = play_count + 1, last_played_at = ? WHERE id = ?`,
		at.UTC(), id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteByPath removes the track stored for path.
func (r *TrackRepository) DeleteByPath(path string) error {
	result, err := r.db.Exec(`DELETE FROM tracks WHERE path = ?`, path)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *TrackRepository) queryOne(query string, args ...any) (*Track, error) {
	t, err := scanTrack(r.db.QueryRow(query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (*Track, error) {
	t := &Track{}
	var lastPlayed sql.NullTime

	if err := row.Scan(&t.ID, &t.Path, &t.Title, &t.PlayCount, &lastPlayed, &t.AddedAt); err != nil {
		return nil, err
	}

	if lastPlayed.Valid {
		at := lastPlayed.Time
		t.LastPlayedAt = &at
	}
	return t, nil
}
