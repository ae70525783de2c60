package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// postgresService is the Postgres-backed Service.
type postgresService struct {
	db   *sql.DB
	refs ReferenceChecker
}

// NewPostgresService creates a Postgres-backed registry and ensures its
// schema. refs may be nil, in which case RemoveItem skips the
// open-borrowing check.
func NewPostgresService(db *sql.DB, refs ReferenceChecker) (Service, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			owner_id UUID NOT NULL,
			status TEXT NOT NULL,
			risk_level TEXT NOT NULL DEFAULT '',
			version INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("ensure items schema: %w", err)
	}
	return &postgresService{db: db, refs: refs}, nil
}

const itemColumns = `id, name, description, tags, owner_id, status, risk_level, version, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	item := &Item{}
	var tags pq.StringArray
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&tags,
		&item.OwnerID,
		&item.Status,
		&item.RiskLevel,
		&item.Version,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Tags = []string(tags)
	return item, nil
}

func (s *postgresService) AddItem(ctx context.Context, ownerID uuid.UUID, name, description string, tags []string, riskLevel string) (*Item, error) {
	if !ValidRiskLevel(riskLevel) {
		return nil, ErrInvalidField
	}
	now := time.Now().UTC()
	item := &Item{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Tags:        append([]string(nil), tags...),
		OwnerID:     ownerID,
		Status:      StatusAvailable,
		RiskLevel:   riskLevel,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, item.ID, item.Name, item.Description, pq.StringArray(item.Tags), item.OwnerID,
		item.Status, item.RiskLevel, item.Version, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return item, nil
}

func (s *postgresService) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *postgresService) ListItems(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *postgresService) UpdateItem(ctx context.Context, id, callerID uuid.UUID, update ItemUpdate) (*Item, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != callerID {
		return nil, ErrNotOwner
	}
	if update.Name != nil {
		item.Name = *update.Name
	}
	if update.Description != nil {
		item.Description = *update.Description
	}
	if update.Tags != nil {
		item.Tags = append([]string(nil), (*update.Tags)...)
	}
	if update.Status != nil {
		if !ValidStatus(*update.Status) || *update.Status == StatusBorrowed {
			// "borrowed" is owned by the lifecycle, not the owner.
			return nil, ErrInvalidField
		}
		if item.Status == StatusBorrowed {
			// The active loan releases it when it ends.
			return nil, ErrItemReferenced
		}
		item.Status = *update.Status
	}
	if update.RiskLevel != nil {
		if !ValidRiskLevel(*update.RiskLevel) {
			return nil, ErrInvalidField
		}
		item.RiskLevel = *update.RiskLevel
	}

	item.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET name = $1, description = $2, tags = $3, status = $4, risk_level = $5,
		    version = version + 1, updated_at = $6
		WHERE id = $7 AND version = $8
	`, item.Name, item.Description, pq.StringArray(item.Tags), item.Status,
		item.RiskLevel, item.UpdatedAt, id, item.Version)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrVersionConflict
	}
	item.Version++
	return item, nil
}

func (s *postgresService) RemoveItem(ctx context.Context, id, callerID uuid.UUID) error {
	if s.refs != nil {
		referenced, err := s.refs.ItemReferenced(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return ErrItemReferenced
		}
	}

	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.OwnerID != callerID {
		return ErrNotOwner
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (s *postgresService) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Item, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidField
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE items
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3
		RETURNING `+itemColumns+`
	`, status, time.Now().UTC(), id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set item status: %w", err)
	}
	return item, nil
}

func (s *postgresService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check item exists: %w", err)
	}
	return exists, nil
}
