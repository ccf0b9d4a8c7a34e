package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Marker represents a registered fiducial marker.
type Marker struct {
	ID      string
	Payload string
	Label   string
	// SizeCM is the marker's physical edge length. Zero means "use
	// the globally configured size".
	SizeCM    float64
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarkerRepository provides CRUD operations for the marker registry.
type MarkerRepository struct {
	db *sql.DB
}

// Markers returns the marker repository for this store.
func (s *Store) Markers() *MarkerRepository {
	return &MarkerRepository{db: s.db}
}

// Create inserts a new marker into the registry.
func (r *MarkerRepository) Create(m *Marker) error {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO markers (id, payload, label, size_cm, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Payload, m.Label, m.SizeCM, m.Enabled, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return nil
}

// GetByID retrieves a marker by its ID.
func (r *MarkerRepository) GetByID(id string) (*Marker, error) {
	return r.get(`SELECT id, payload, label, size_cm, enabled, created_at, updated_at
		 FROM markers WHERE id = ?`, id)
}

// GetByPayload retrieves a marker by its encoded payload.
func (r *MarkerRepository) GetByPayload(payload string) (*Marker, error) {
	return r.get(`SELECT id, payload, label, size_cm, enabled, created_at, updated_at
		 FROM markers WHERE payload = ?`, payload)
}

func (r *MarkerRepository) get(query string, arg any) (*Marker, error) {
	m := &Marker{}

	err := r.db.QueryRow(query, arg).Scan(
		&m.ID, &m.Payload, &m.Label, &m.SizeCM, &m.Enabled, &m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return m, nil
}

// List retrieves all markers from the registry.
func (r *MarkerRepository) List() ([]*Marker, error) {
	rows, err := r.db.Query(
		`SELECT id, payload, label, size_cm, enabled, created_at, updated_at
		 FROM markers ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markers []*Marker
	for rows.Next() {
		m := &Marker{}

		err := rows.Scan(&m.ID, &m.Payload, &m.Label, &m.SizeCM, &m.Enabled, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}

		markers = append(markers, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return markers, nil
}

// Update updates an existing marker in the registry.
func (r *MarkerRepository) Update(m *Marker) error {
	m.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE markers SET payload = ?, label = ?, size_cm = ?, enabled = ?, updated_at = ?
		 WHERE id = ?`,
		m.Payload, m.Label, m.SizeCM, m.Enabled, m.UpdatedAt, m.ID,
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

// SetEnabled flips a marker's enabled flag by payload.
func (r *MarkerRepository) SetEnabled(payload string, enabled bool) error {
	result, err := r.db.Exec(
		`UPDATE markers SET enabled = ?, updated_at = ? WHERE payload = ?`,
		enabled, time.Now(), payload,
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

// Delete removes a marker from the registry by its ID.
func (r *MarkerRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM markers WHERE id = ?`, id)
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

// MarkerSize looks up the registry entry for a payload. It implements
// the localizer's registry interface: size 0 falls back to the global
// marker size, ok is false for payloads never registered.
func (r *MarkerRepository) MarkerSize(payload string) (sizeCM float64, enabled, ok bool) {
	m, err := r.GetByPayload(payload)
	if err != nil {
		return 0, false, false
	}
	return m.SizeCM, m.Enabled, true
}
