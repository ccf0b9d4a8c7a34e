package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Scan represents one recorded sighting of a marker.
type Scan struct {
	ID         string
	Payload    string
	DistanceCM float64
	CenterX    float64
	CenterY    float64
	EdgePx     float64
	// Corners holds the four detected corner points as [x, y] pairs.
	Corners [][2]float64
	// Source names what recorded the scan: "scan" for the CLI tool,
	// "arrival" for the tracking loop.
	Source    string
	CreatedAt time.Time
}

// ScanRepository provides operations for the scan history.
type ScanRepository struct {
	db *sql.DB
}

// Scans returns the scan repository for this store.
func (s *Store) Scans() *ScanRepository {
	return &ScanRepository{db: s.db}
}

// Create inserts a new scan record.
func (r *ScanRepository) Create(sc *Scan) error {
	sc.CreatedAt = time.Now()

	corners := sc.Corners
	if corners == nil {
		corners = [][2]float64{}
	}
	cornersJSON, err := json.Marshal(corners)
	if err != nil {
		return fmt.Errorf("encode corners: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO scans (id, payload, distance_cm, center_x, center_y, edge_px, corners, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.Payload, sc.DistanceCM, sc.CenterX, sc.CenterY, sc.EdgePx,
		string(cornersJSON), sc.Source, sc.CreatedAt,
	)
	if err != nil {
		return err
	}

	return nil
}

// GetByID retrieves a scan by its ID.
func (r *ScanRepository) GetByID(id string) (*Scan, error) {
	sc := &Scan{}
	var cornersJSON string

	err := r.db.QueryRow(
		`SELECT id, payload, distance_cm, center_x, center_y, edge_px, corners, source, created_at
		 FROM scans WHERE id = ?`,
		id,
	).Scan(&sc.ID, &sc.Payload, &sc.DistanceCM, &sc.CenterX, &sc.CenterY,
		&sc.EdgePx, &cornersJSON, &sc.Source, &sc.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(cornersJSON), &sc.Corners); err != nil {
		return nil, fmt.Errorf("decode corners: %w", err)
	}

	return sc, nil
}

// List retrieves the most recent scans, newest first. A limit of 0
// returns everything.
func (r *ScanRepository) List(limit int) ([]*Scan, error) {
	query := `SELECT id, payload, distance_cm, center_x, center_y, edge_px, corners, source, created_at
		 FROM scans ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []*Scan
	for rows.Next() {
		sc := &Scan{}
		var cornersJSON string

		err := rows.Scan(&sc.ID, &sc.Payload, &sc.DistanceCM, &sc.CenterX, &sc.CenterY,
			&sc.EdgePx, &cornersJSON, &sc.Source, &sc.CreatedAt)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(cornersJSON), &sc.Corners); err != nil {
			return nil, fmt.Errorf("decode corners: %w", err)
		}

		scans = append(scans, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return scans, nil
}

// ListByPayload retrieves the most recent scans for one payload.
func (r *ScanRepository) ListByPayload(payload string, limit int) ([]*Scan, error) {
	query := `SELECT id, payload, distance_cm, center_x, center_y, edge_px, corners, source, created_at
		 FROM scans WHERE payload = ? ORDER BY created_at DESC`
	args := []any{payload}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []*Scan
	for rows.Next() {
		sc := &Scan{}
		var cornersJSON string

		err := rows.Scan(&sc.ID, &sc.Payload, &sc.DistanceCM, &sc.CenterX, &sc.CenterY,
			&sc.EdgePx, &cornersJSON, &sc.Source, &sc.CreatedAt)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(cornersJSON), &sc.Corners); err != nil {
			return nil, fmt.Errorf("decode corners: %w", err)
		}

		scans = append(scans, sc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return scans, nil
}

// Delete removes a scan by its ID.
func (r *ScanRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM scans WHERE id = ?`, id)
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
