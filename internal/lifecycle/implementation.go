package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shairing/internal/registry"
	"shairing/internal/residents"
)

// Config carries lifecycle policy knobs.
type Config struct {
	// RequestTTL is the age after which open requested/return_requested
	// borrowings count as stale for the StaleRequests view. Zero disables
	// the view. No transition consults it; nothing auto-expires.
	RequestTTL time.Duration

	// MaxRetries bounds internal retries of a transition on version
	// conflict before ErrConflict surfaces to the caller. Zero means the
	// default of 3.
	MaxRetries int
}

func (c Config) maxRetries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// service implements the Service interface.
type service struct {
	ledger    Ledger
	items     registry.Service
	residents residents.Service
	cfg       Config
	tracer    trace.Tracer
	now       func() time.Time
}

// NewService creates the lifecycle service on top of a ledger, the item
// registry and the resident directory.
func NewService(ledger Ledger, items registry.Service, directory residents.Service, cfg Config) Service {
	return &service{
		ledger:    ledger,
		items:     items,
		residents: directory,
		cfg:       cfg,
		tracer:    otel.Tracer("shairing/lifecycle"),
		now:       time.Now,
	}
}

func (s *service) RequestBorrowing(ctx context.Context, itemID, borrowerID uuid.UUID, start, due time.Time) (*Borrowing, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.request",
		trace.WithAttributes(
			attribute.String("item.id", itemID.String()),
			attribute.String("borrower.id", borrowerID.String()),
		),
	)
	defer span.End()

	if due.Before(start) {
		return nil, ErrInvalidPeriod
	}

	item, err := s.items.GetItem(ctx, itemID)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("look up item: %w", err)
	}
	if borrowerID == item.OwnerID {
		return nil, fmt.Errorf("cannot borrow own item: %w", ErrUnauthorized)
	}

	known, err := s.residents.Exists(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("look up borrower: %w", err)
	}
	if !known {
		return nil, fmt.Errorf("borrower %s: %w", borrowerID, ErrNotFound)
	}

	// A retried request from the same borrower finds their own pending
	// request and succeeds without creating a duplicate.
	open, err := s.ledger.OpenByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		if open.BorrowerID == borrowerID && open.Status == StatusRequested {
			recordTransition(EventRequest, "noop")
			return open, nil
		}
		return nil, ErrItemUnavailable
	}
	if item.Status != registry.StatusAvailable {
		return nil, ErrItemUnavailable
	}

	b := &Borrowing{
		ID:         uuid.New(),
		ItemID:     itemID,
		LenderID:   item.OwnerID,
		BorrowerID: borrowerID,
		Start:      start,
		Due:        due,
		Status:     StatusRequested,
	}
	if err := s.ledger.Create(ctx, b); err != nil {
		recordTransition(EventRequest, "error")
		return nil, err
	}
	recordTransition(EventRequest, "ok")
	span.SetAttributes(attribute.String("borrowing.id", b.ID.String()))
	return b, nil
}

func (s *service) ConfirmBorrowing(ctx context.Context, borrowingID, lenderID uuid.UUID) (*Borrowing, error) {
	return s.transition(ctx, borrowingID, lenderID, EventConfirm)
}

func (s *service) RejectBorrowing(ctx context.Context, borrowingID, lenderID uuid.UUID) (*Borrowing, error) {
	return s.transition(ctx, borrowingID, lenderID, EventReject)
}

func (s *service) CancelBorrowing(ctx context.Context, borrowingID, borrowerID uuid.UUID) (*Borrowing, error) {
	return s.transition(ctx, borrowingID, borrowerID, EventCancel)
}

func (s *service) RequestReturn(ctx context.Context, borrowingID, borrowerID uuid.UUID) (*Borrowing, error) {
	return s.transition(ctx, borrowingID, borrowerID, EventRequestReturn)
}

func (s *service) ConfirmReturn(ctx context.Context, borrowingID, lenderID uuid.UUID) (*Borrowing, error) {
	return s.transition(ctx, borrowingID, lenderID, EventConfirmReturn)
}

// transition loads, decides, and applies one event under optimistic
// concurrency, retrying a bounded number of times on version conflicts.
// Lock order is borrowing first, item second.
func (s *service) transition(ctx context.Context, borrowingID, callerID uuid.UUID, event Event) (*Borrowing, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle."+string(event),
		trace.WithAttributes(attribute.String("borrowing.id", borrowingID.String())),
	)
	defer span.End()

	for attempt := 0; attempt < s.cfg.maxRetries(); attempt++ {
		b, err := s.ledger.Get(ctx, borrowingID)
		if err != nil {
			return nil, err
		}

		next, noop, err := NextStatus(b, event, callerID)
		if err != nil {
			recordTransition(event, "denied")
			return nil, err
		}
		if noop {
			// The ledger already holds the target state, but a prior
			// attempt may have failed between the commit and the item
			// flip. Re-applying here makes the retry repair the mirror.
			if err := s.applyItemSideEffect(ctx, b); err != nil {
				recordTransition(event, "error")
				return nil, err
			}
			recordTransition(event, "noop")
			return b, nil
		}

		updated, err := s.ledger.Update(ctx, b, b.Version, TransitionRecord{
			Event:   event,
			ActorID: callerID,
			From:    b.Status,
			To:      next,
		})
		if errors.Is(err, ErrConflict) {
			span.AddEvent("transition.conflict", trace.WithAttributes(attribute.Int("attempt", attempt+1)))
			continue
		}
		if err != nil {
			recordTransition(event, "error")
			return nil, err
		}

		if err := s.applyItemSideEffect(ctx, updated); err != nil {
			recordTransition(event, "error")
			return nil, err
		}
		recordTransition(event, "ok")
		return updated, nil
	}
	recordTransition(event, "conflict")
	return nil, ErrConflict
}

// applyItemSideEffect mirrors the borrowing state onto the item:
// entering confirmed marks it borrowed, entering a terminal state
// releases it. Every branch is safe to re-run, so a retried transition
// repairs a flip that failed after the ledger committed.
func (s *service) applyItemSideEffect(ctx context.Context, b *Borrowing) error {
	switch {
	case b.Status == StatusConfirmed:
		if _, err := s.items.SetStatus(ctx, b.ItemID, registry.StatusBorrowed); err != nil {
			return fmt.Errorf("mark item borrowed: %w", err)
		}
	case b.Status.Terminal():
		item, err := s.items.GetItem(ctx, b.ItemID)
		if errors.Is(err, registry.ErrNotFound) {
			// The owner removed the item after the loan ended; there is
			// no mirror left to release.
			return nil
		}
		if err != nil {
			return fmt.Errorf("look up item for release: %w", err)
		}
		if item.Status != registry.StatusBorrowed {
			// Nothing to release. A rejected or cancelled request never
			// flipped the item, and once it is available again another
			// resident may already have an open request on it.
			return nil
		}
		open, err := s.ledger.OpenByItem(ctx, b.ItemID)
		if err != nil {
			return err
		}
		if open != nil {
			// Must not happen under the no-double-booking invariant:
			// new requests are refused while the item is borrowed.
			// Surface it instead of silently flipping the item.
			return fmt.Errorf("item %s still claimed by borrowing %s after terminal transition", b.ItemID, open.ID)
		}
		if _, err := s.items.SetStatus(ctx, b.ItemID, registry.StatusAvailable); err != nil {
			return fmt.Errorf("release item: %w", err)
		}
	}
	return nil
}

func (s *service) GetBorrowing(ctx context.Context, id uuid.UUID) (*Borrowing, error) {
	return s.ledger.Get(ctx, id)
}

func (s *service) History(ctx context.Context, id uuid.UUID) ([]TransitionEvent, error) {
	return s.ledger.Events(ctx, id)
}

func (s *service) PendingForLender(ctx context.Context, residentID uuid.UUID) ([]*Borrowing, error) {
	return s.filterByUser(ctx, residentID, func(b *Borrowing) bool {
		return b.Status == StatusRequested && b.LenderID == residentID
	})
}

func (s *service) PendingReturnsForLender(ctx context.Context, residentID uuid.UUID) ([]*Borrowing, error) {
	return s.filterByUser(ctx, residentID, func(b *Borrowing) bool {
		return b.Status == StatusReturnRequested && b.LenderID == residentID
	})
}

func (s *service) ActiveForBorrower(ctx context.Context, residentID uuid.UUID) ([]*Borrowing, error) {
	return s.filterByUser(ctx, residentID, func(b *Borrowing) bool {
		return b.Status == StatusConfirmed && b.BorrowerID == residentID
	})
}

func (s *service) ActiveForLender(ctx context.Context, residentID uuid.UUID) ([]*Borrowing, error) {
	return s.filterByUser(ctx, residentID, func(b *Borrowing) bool {
		return b.Status == StatusConfirmed && b.LenderID == residentID
	})
}

func (s *service) filterByUser(ctx context.Context, residentID uuid.UUID, keep func(*Borrowing) bool) ([]*Borrowing, error) {
	all, err := s.ledger.ListByUser(ctx, residentID)
	if err != nil {
		return nil, err
	}
	out := make([]*Borrowing, 0, len(all))
	for _, b := range all {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *service) ListForUser(ctx context.Context, residentID uuid.UUID) ([]*Borrowing, []*Borrowing, error) {
	all, err := s.ledger.ListByUser(ctx, residentID)
	if err != nil {
		return nil, nil, err
	}
	asLender := make([]*Borrowing, 0, len(all))
	asBorrower := make([]*Borrowing, 0, len(all))
	for _, b := range all {
		if b.LenderID == residentID {
			asLender = append(asLender, b)
		}
		if b.BorrowerID == residentID {
			asBorrower = append(asBorrower, b)
		}
	}
	return asLender, asBorrower, nil
}

func (s *service) StaleRequests(ctx context.Context) ([]*Borrowing, error) {
	if s.cfg.RequestTTL <= 0 {
		return nil, nil
	}
	all, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().UTC().Add(-s.cfg.RequestTTL)
	var stale []*Borrowing
	for _, b := range all {
		if (b.Status == StatusRequested || b.Status == StatusReturnRequested) && b.UpdatedAt.Before(cutoff) {
			stale = append(stale, b)
		}
	}
	return stale, nil
}

// ReferenceChecker adapts a ledger for the registry's delete guard.
func ReferenceChecker(l Ledger) registry.ReferenceChecker {
	return refChecker{ledger: l}
}

type refChecker struct {
	ledger Ledger
}

func (r refChecker) ItemReferenced(ctx context.Context, itemID uuid.UUID) (bool, error) {
	open, err := r.ledger.OpenByItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	return open != nil, nil
}
