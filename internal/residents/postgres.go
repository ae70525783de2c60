package residents

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type postgresService struct {
	db *sql.DB
}

// NewPostgresService creates a Postgres-backed resident directory and
// ensures its schema.
func NewPostgresService(db *sql.DB) (Service, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS residents (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			floor INT NOT NULL,
			flat TEXT NOT NULL DEFAULT '',
			contact TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("ensure residents schema: %w", err)
	}
	return &postgresService{db: db}, nil
}

func (s *postgresService) AddResident(ctx context.Context, name string, floor int, flat, contact string) (*Resident, error) {
	resident := &Resident{
		ID:        uuid.New(),
		Name:      name,
		Floor:     floor,
		Flat:      flat,
		Contact:   contact,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO residents (id, name, floor, flat, contact, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, resident.ID, resident.Name, resident.Floor, resident.Flat, resident.Contact, resident.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert resident: %w", err)
	}
	return resident, nil
}

func (s *postgresService) GetResident(ctx context.Context, id uuid.UUID) (*Resident, error) {
	resident := &Resident{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, floor, flat, contact, created_at
		FROM residents WHERE id = $1
	`, id).Scan(&resident.ID, &resident.Name, &resident.Floor, &resident.Flat, &resident.Contact, &resident.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get resident: %w", err)
	}
	return resident, nil
}

func (s *postgresService) ListResidents(ctx context.Context) ([]*Resident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, floor, flat, contact, created_at
		FROM residents ORDER BY floor, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	defer rows.Close()

	var residents []*Resident
	for rows.Next() {
		resident := &Resident{}
		if err := rows.Scan(&resident.ID, &resident.Name, &resident.Floor, &resident.Flat, &resident.Contact, &resident.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan resident: %w", err)
		}
		residents = append(residents, resident)
	}
	return residents, rows.Err()
}

func (s *postgresService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM residents WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check resident exists: %w", err)
	}
	return exists, nil
}
