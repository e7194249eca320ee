package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per pipeline run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			camera_id INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			frames INTEGER NOT NULL DEFAULT 0,
			active_frames INTEGER NOT NULL DEFAULT 0
		)`,

		// Centroid events table - COG appear / move / lost transitions
		`CREATE TABLE IF NOT EXISTS centroid_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			frame INTEGER NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('appear', 'move', 'lost')),
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			distance INTEGER NOT NULL DEFAULT 0,
			angle INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Bindings table - plugin actions to run on centroid events
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			event TEXT NOT NULL CHECK(event IN ('appear', 'move', 'lost')),
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_centroid_events_session_id ON centroid_events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_event ON bindings(event)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
