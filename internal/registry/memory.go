package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryService is an in-memory Service used by tests and DB-less runs.
type memoryService struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Item
	refs  ReferenceChecker
	now   func() time.Time
}

// NewMemoryService creates an in-memory registry. refs may be nil, in
// which case RemoveItem skips the open-borrowing check.
func NewMemoryService(refs ReferenceChecker) Service {
	return &memoryService{
		items: make(map[uuid.UUID]*Item),
		refs:  refs,
		now:   time.Now,
	}
}

func (s *memoryService) AddItem(ctx context.Context, ownerID uuid.UUID, name, description string, tags []string, riskLevel string) (*Item, error) {
	if !ValidRiskLevel(riskLevel) {
		return nil, ErrInvalidField
	}
	now := s.now().UTC()
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

	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()

	return cloneItem(item), nil
}

func (s *memoryService) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneItem(item), nil
}

func (s *memoryService) ListItems(ctx context.Context) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, cloneItem(item))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *memoryService) UpdateItem(ctx context.Context, id, callerID uuid.UUID, update ItemUpdate) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
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
	item.Version++
	item.UpdatedAt = s.now().UTC()
	return cloneItem(item), nil
}

func (s *memoryService) RemoveItem(ctx context.Context, id, callerID uuid.UUID) error {
	if s.refs != nil {
		referenced, err := s.refs.ItemReferenced(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return ErrItemReferenced
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	if item.OwnerID != callerID {
		return ErrNotOwner
	}
	delete(s.items, id)
	return nil
}

func (s *memoryService) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Item, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	item.Status = status
	item.Version++
	item.UpdatedAt = s.now().UTC()
	return cloneItem(item), nil
}

func (s *memoryService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.items[id]
	return ok, nil
}

func cloneItem(item *Item) *Item {
	dup := *item
	dup.Tags = append([]string(nil), item.Tags...)
	return &dup
}
