package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Tracks table - media files found in the library directory
		`CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			play_count INTEGER NOT NULL DEFAULT 0,
			last_played_at DATETIME,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Dispatches table - history of actions sent to the player
		`CREATE TABLE IF NOT EXISTS dispatches (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK(kind IN ('play_pause', 'set_volume', 'seek', 'load_track')),
			value INTEGER NOT NULL DEFAULT 0,
			mode INTEGER NOT NULL,
			track_id TEXT REFERENCES tracks(id) ON DELETE SET NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			dispatched_at DATETIME NOT NULL
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_tracks_last_played_at ON tracks(last_played_at)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_dispatched_at ON dispatches(dispatched_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
