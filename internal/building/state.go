// Package building assembles the building-wide overview served to the
// dashboard: directory, shared items and the impact tally.
package building

import (
	"context"

	"shairing/internal/lifecycle"
	"shairing/internal/registry"
	"shairing/internal/residents"
)

// Per-completed-borrow estimates for the impact tiles. A borrowed drill
// is a drill not bought; the figures are deliberately rough.
const (
	co2PerBorrowKg   = 2.5
	wastePerBorrowKg = 0.8
)

// Info identifies the building, from configuration.
type Info struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	City       string `json:"city"`
	FlatsCount int    `json:"flats_count"`
}

// Impact is the running sharing tally.
type Impact struct {
	CO2SavedKg     float64 `json:"co2_saved_kg"`
	WasteAvoidedKg float64 `json:"waste_avoided_kg"`
	BorrowsCount   int     `json:"borrows_count"`
	EventsCount    int     `json:"events_count"`
	ItemsShared    int     `json:"items_shared"`
}

// State is the /api/building-state payload.
type State struct {
	Building  Info                  `json:"building"`
	Residents []*residents.Resident `json:"residents"`
	Items     []*registry.Item      `json:"items"`
	Impact    Impact                `json:"impact"`
}

// Service computes the building state on demand. No materialization at
// this scale.
type Service struct {
	info      Info
	items     registry.Service
	directory residents.Service
	ledger    lifecycle.Ledger
}

func NewService(info Info, items registry.Service, directory residents.Service, ledger lifecycle.Ledger) *Service {
	return &Service{info: info, items: items, directory: directory, ledger: ledger}
}

// State assembles the current building state.
func (s *Service) State(ctx context.Context) (*State, error) {
	people, err := s.directory.ListResidents(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	borrowings, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}

	impact := Impact{ItemsShared: len(items)}
	for _, b := range borrowings {
		impact.EventsCount++
		// A borrow counts once it was actually handed over.
		switch b.Status {
		case lifecycle.StatusConfirmed, lifecycle.StatusReturnRequested, lifecycle.StatusReturned:
			impact.BorrowsCount++
		}
	}
	impact.CO2SavedKg = float64(impact.BorrowsCount) * co2PerBorrowKg
	impact.WasteAvoidedKg = float64(impact.BorrowsCount) * wastePerBorrowKg

	if people == nil {
		people = []*residents.Resident{}
	}
	if items == nil {
		items = []*registry.Item{}
	}
	return &State{
		Building:  s.info,
		Residents: people,
		Items:     items,
		Impact:    impact,
	}, nil
}
