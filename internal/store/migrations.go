package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Markers table - the registry of known fiducial markers
		`CREATE TABLE IF NOT EXISTS markers (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL UNIQUE,
			label TEXT NOT NULL DEFAULT '',
			size_cm REAL NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Scans table - every recorded sighting of a marker
		`CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			distance_cm REAL NOT NULL,
			center_x REAL NOT NULL,
			center_y REAL NOT NULL,
			edge_px REAL NOT NULL,
			corners TEXT NOT NULL DEFAULT '[]',
			source TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_scans_payload ON scans(payload)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
