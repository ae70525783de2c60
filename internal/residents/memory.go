package residents

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryService struct {
	mu        sync.RWMutex
	residents map[uuid.UUID]*Resident
}

// NewMemoryService creates an in-memory resident directory.
func NewMemoryService() Service {
	return &memoryService{residents: make(map[uuid.UUID]*Resident)}
}

func (s *memoryService) AddResident(ctx context.Context, name string, floor int, flat, contact string) (*Resident, error) {
	resident := &Resident{
		ID:        uuid.New(),
		Name:      name,
		Floor:     floor,
		Flat:      flat,
		Contact:   contact,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.residents[resident.ID] = resident
	s.mu.Unlock()

	dup := *resident
	return &dup, nil
}

func (s *memoryService) GetResident(ctx context.Context, id uuid.UUID) (*Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resident, ok := s.residents[id]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *resident
	return &dup, nil
}

func (s *memoryService) ListResidents(ctx context.Context) ([]*Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	residents := make([]*Resident, 0, len(s.residents))
	for _, resident := range s.residents {
		dup := *resident
		residents = append(residents, &dup)
	}
	sort.Slice(residents, func(i, j int) bool {
		if residents[i].Floor != residents[j].Floor {
			return residents[i].Floor < residents[j].Floor
		}
		return residents[i].Name < residents[j].Name
	})
	return residents, nil
}

func (s *memoryService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.residents[id]
	return ok, nil
}
