package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const uniqueViolation = "23505"

// postgresLedger is the Postgres-backed Ledger. The open-borrowing-per-
// item invariant is a partial unique index, so two concurrent requests
// for the same item cannot both land; transition updates use optimistic
// version checks and append an audit row in the same transaction.
type postgresLedger struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewPostgresLedger creates a Postgres-backed ledger and ensures its
// schema.
func NewPostgresLedger(db *sql.DB) (Ledger, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS borrowings (
			id UUID PRIMARY KEY,
			item_id UUID NOT NULL,
			lender_id UUID NOT NULL,
			borrower_id UUID NOT NULL,
			start_at TIMESTAMPTZ NOT NULL,
			due_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			version INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS borrowings_open_item
			ON borrowings (item_id)
			WHERE status IN ('requested', 'confirmed', 'return_requested')`,
		`CREATE TABLE IF NOT EXISTS borrowing_events (
			id BIGSERIAL PRIMARY KEY,
			borrowing_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			actor_id UUID NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			version INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (borrowing_id, version)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("ensure borrowings schema: %w", err)
		}
	}
	return &postgresLedger{
		db:     db,
		tracer: otel.Tracer("shairing/lifecycle/ledger"),
	}, nil
}

const borrowingColumns = `id, item_id, lender_id, borrower_id, start_at, due_at, status, version, created_at, updated_at`

func scanBorrowing(row interface{ Scan(...any) error }) (*Borrowing, error) {
	b := &Borrowing{}
	err := row.Scan(
		&b.ID,
		&b.ItemID,
		&b.LenderID,
		&b.BorrowerID,
		&b.Start,
		&b.Due,
		&b.Status,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (l *postgresLedger) Create(ctx context.Context, b *Borrowing) error {
	ctx, span := l.tracer.Start(ctx, "ledger.create",
		trace.WithAttributes(
			attribute.String("borrowing.id", b.ID.String()),
			attribute.String("item.id", b.ItemID.String()),
		),
	)
	defer span.End()

	now := time.Now().UTC()
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO borrowings (`+borrowingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.ItemID, b.LenderID, b.BorrowerID, b.Start, b.Due, b.Status, b.Version, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			// Another open borrowing claimed the item first.
			span.SetAttributes(attribute.Bool("conflict.detected", true))
			return ErrItemUnavailable
		}
		return fmt.Errorf("insert borrowing: %w", err)
	}

	if err := appendEvent(ctx, tx, TransitionEvent{
		BorrowingID: b.ID,
		Event:       EventRequest,
		ActorID:     b.BorrowerID,
		To:          StatusRequested,
		Version:     1,
		CreatedAt:   now,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (l *postgresLedger) Get(ctx context.Context, id uuid.UUID) (*Borrowing, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+borrowingColumns+` FROM borrowings WHERE id = $1`, id)
	b, err := scanBorrowing(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get borrowing: %w", err)
	}
	return b, nil
}

func (l *postgresLedger) Update(ctx context.Context, b *Borrowing, expectedVersion int, rec TransitionRecord) (*Borrowing, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.update",
		trace.WithAttributes(
			attribute.String("borrowing.id", b.ID.String()),
			attribute.String("event", string(rec.Event)),
			attribute.Int("expected.version", expectedVersion),
		),
	)
	defer span.End()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	row := tx.QueryRowContext(ctx, `
		UPDATE borrowings
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
		RETURNING `+borrowingColumns+`
	`, rec.To, now, b.ID, expectedVersion)
	updated, err := scanBorrowing(row)
	if err == sql.ErrNoRows {
		// Either the borrowing vanished or someone else advanced it.
		if _, getErr := l.Get(ctx, b.ID); errors.Is(getErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update borrowing: %w", err)
	}

	if err := appendEvent(ctx, tx, TransitionEvent{
		BorrowingID: b.ID,
		Event:       rec.Event,
		ActorID:     rec.ActorID,
		From:        rec.From,
		To:          rec.To,
		Version:     updated.Version,
		CreatedAt:   now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return updated, nil
}

func appendEvent(ctx context.Context, tx *sql.Tx, ev TransitionEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO borrowing_events (borrowing_id, event_type, actor_id, from_status, to_status, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.BorrowingID, ev.Event, ev.ActorID, ev.From, ev.To, ev.Version, ev.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("append borrowing event: %w", err)
	}
	return nil
}

func (l *postgresLedger) OpenByItem(ctx context.Context, itemID uuid.UUID) (*Borrowing, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+borrowingColumns+` FROM borrowings
		WHERE item_id = $1 AND status IN ('requested', 'confirmed', 'return_requested')
	`, itemID)
	b, err := scanBorrowing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open borrowing: %w", err)
	}
	return b, nil
}

func (l *postgresLedger) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Borrowing, error) {
	return l.query(ctx, `
		SELECT `+borrowingColumns+` FROM borrowings
		WHERE lender_id = $1 OR borrower_id = $1
		ORDER BY start_at, id
	`, userID)
}

func (l *postgresLedger) List(ctx context.Context) ([]*Borrowing, error) {
	return l.query(ctx, `SELECT `+borrowingColumns+` FROM borrowings ORDER BY start_at, id`)
}

func (l *postgresLedger) query(ctx context.Context, query string, args ...any) ([]*Borrowing, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query borrowings: %w", err)
	}
	defer rows.Close()

	var out []*Borrowing
	for rows.Next() {
		b, err := scanBorrowing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan borrowing: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (l *postgresLedger) Events(ctx context.Context, borrowingID uuid.UUID) ([]TransitionEvent, error) {
	if _, err := l.Get(ctx, borrowingID); err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT borrowing_id, event_type, actor_id, from_status, to_status, version, created_at
		FROM borrowing_events
		WHERE borrowing_id = $1
		ORDER BY version
	`, borrowingID)
	if err != nil {
		return nil, fmt.Errorf("query borrowing events: %w", err)
	}
	defer rows.Close()

	var events []TransitionEvent
	for rows.Next() {
		var ev TransitionEvent
		if err := rows.Scan(&ev.BorrowingID, &ev.Event, &ev.ActorID, &ev.From, &ev.To, &ev.Version, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan borrowing event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
