package lifecycle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryLedger is an in-memory Ledger used by tests and DB-less runs.
// A single mutex covers both maps; transitions are short critical
// sections with no I/O inside, so one lock is enough.
type memoryLedger struct {
	mu         sync.RWMutex
	borrowings map[uuid.UUID]*Borrowing
	openByItem map[uuid.UUID]uuid.UUID
	events     map[uuid.UUID][]TransitionEvent
	now        func() time.Time
}

// NewMemoryLedger creates an in-memory borrowing ledger.
func NewMemoryLedger() Ledger {
	return &memoryLedger{
		borrowings: make(map[uuid.UUID]*Borrowing),
		openByItem: make(map[uuid.UUID]uuid.UUID),
		events:     make(map[uuid.UUID][]TransitionEvent),
		now:        time.Now,
	}
}

func (l *memoryLedger) Create(ctx context.Context, b *Borrowing) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, claimed := l.openByItem[b.ItemID]; claimed {
		return ErrItemUnavailable
	}

	now := l.now().UTC()
	b.Version = 1
	b.CreatedAt = now
	b.UpdatedAt = now

	stored := *b
	l.borrowings[b.ID] = &stored
	l.openByItem[b.ItemID] = b.ID
	l.events[b.ID] = append(l.events[b.ID], TransitionEvent{
		BorrowingID: b.ID,
		Event:       EventRequest,
		ActorID:     b.BorrowerID,
		To:          StatusRequested,
		Version:     1,
		CreatedAt:   now,
	})
	return nil
}

func (l *memoryLedger) Get(ctx context.Context, id uuid.UUID) (*Borrowing, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	b, ok := l.borrowings[id]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *b
	return &dup, nil
}

func (l *memoryLedger) Update(ctx context.Context, b *Borrowing, expectedVersion int, rec TransitionRecord) (*Borrowing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.borrowings[b.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, ErrConflict
	}

	stored.Status = rec.To
	stored.Version++
	stored.UpdatedAt = l.now().UTC()
	if rec.To.Terminal() {
		delete(l.openByItem, stored.ItemID)
	}
	l.events[b.ID] = append(l.events[b.ID], TransitionEvent{
		BorrowingID: b.ID,
		Event:       rec.Event,
		ActorID:     rec.ActorID,
		From:        rec.From,
		To:          rec.To,
		Version:     stored.Version,
		CreatedAt:   stored.UpdatedAt,
	})

	dup := *stored
	return &dup, nil
}

func (l *memoryLedger) OpenByItem(ctx context.Context, itemID uuid.UUID) (*Borrowing, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.openByItem[itemID]
	if !ok {
		return nil, nil
	}
	dup := *l.borrowings[id]
	return &dup, nil
}

func (l *memoryLedger) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Borrowing, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Borrowing
	for _, b := range l.borrowings {
		if b.LenderID == userID || b.BorrowerID == userID {
			dup := *b
			out = append(out, &dup)
		}
	}
	sortByStart(out)
	return out, nil
}

func (l *memoryLedger) List(ctx context.Context) ([]*Borrowing, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Borrowing, 0, len(l.borrowings))
	for _, b := range l.borrowings {
		dup := *b
		out = append(out, &dup)
	}
	sortByStart(out)
	return out, nil
}

func (l *memoryLedger) Events(ctx context.Context, borrowingID uuid.UUID) ([]TransitionEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.borrowings[borrowingID]; !ok {
		return nil, ErrNotFound
	}
	return append([]TransitionEvent(nil), l.events[borrowingID]...), nil
}

func sortByStart(bs []*Borrowing) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Start.Equal(bs[j].Start) {
			return bs[i].ID.String() < bs[j].ID.String()
		}
		return bs[i].Start.Before(bs[j].Start)
	})
}
