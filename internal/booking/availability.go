package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// Availability is the answer to an availability query.
type Availability struct {
	Available bool          `json:"available"`
	Tables    []model.Table `json:"tables"`
}

// Resolver computes which tables can serve a party at a slot. Occupancy
// is derived by set subtraction: a table is free unless an occupying
// reservation at the exact slot references it.
type Resolver struct {
	catalog Catalog
	ledger  Ledger
}

// NewResolver returns a Resolver reading tables from catalog and
// occupancy from ledger.
func NewResolver(catalog Catalog, ledger Ledger) *Resolver {
	if catalog == nil || ledger == nil {
		panic("nil dependency passed to NewResolver")
	}
	return &Resolver{catalog: catalog, ledger: ledger}
}

// FindAvailableTables returns the available tables with capacity of at
// least partySize that no occupying reservation holds at the slot,
// smallest capacity first. An empty result is not an error. excludeID
// names a reservation whose own occupancy is ignored (0 for none).
func (r *Resolver) FindAvailableTables(ctx context.Context, restaurantID uint64, slot model.Slot, partySize int, excludeID uint64) ([]model.Table, error) {
	if partySize <= 0 {
		return nil, fmt.Errorf("%w: party size must be positive", ErrInvalidInput)
	}
	if _, err := r.activeRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	free, _, err := r.freeTables(ctx, restaurantID, slot, partySize, excludeID)
	return free, err
}

// HasCapacity reports whether FindAvailableTables would return at least
// one table.
func (r *Resolver) HasCapacity(ctx context.Context, restaurantID uint64, slot model.Slot, partySize int, excludeID uint64) (bool, error) {
	tables, err := r.FindAvailableTables(ctx, restaurantID, slot, partySize, excludeID)
	if err != nil {
		return false, err
	}
	return len(tables) > 0, nil
}

// Check answers an availability query from raw date and time strings.
func (r *Resolver) Check(ctx context.Context, restaurantID uint64, date, clock string, partySize int) (Availability, error) {
	slot, err := model.ParseSlot(date, clock)
	if err != nil {
		return Availability{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	tables, err := r.FindAvailableTables(ctx, restaurantID, slot, partySize, 0)
	if err != nil {
		return Availability{}, err
	}
	if tables == nil {
		tables = []model.Table{}
	}
	return Availability{Available: len(tables) > 0, Tables: tables}, nil
}

// admit picks the table a booking should get. A restaurant with no tables
// defined at all is tracked in aggregate and admits every booking without
// a table. Otherwise the smallest sufficient free table wins.
func (r *Resolver) admit(ctx context.Context, restaurantID uint64, slot model.Slot, partySize int, excludeID uint64, keep *uint64) (*uint64, error) {
	free, defined, err := r.freeTables(ctx, restaurantID, slot, partySize, excludeID)
	if err != nil {
		return nil, err
	}
	if defined == 0 {
		return nil, nil
	}
	if len(free) == 0 {
		return nil, ErrNoAvailability
	}
	if keep != nil {
		for _, t := range free {
			if t.ID == *keep {
				id := t.ID
				return &id, nil
			}
		}
	}
	id := free[0].ID
	return &id, nil
}

func (r *Resolver) freeTables(ctx context.Context, restaurantID uint64, slot model.Slot, partySize int, excludeID uint64) ([]model.Table, int, error) {
	tables, err := r.catalog.GetTables(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, fmt.Errorf("%w: restaurant %d", ErrNotFound, restaurantID)
		}
		return nil, 0, fmt.Errorf("load tables: %w", err)
	}
	occupied, err := r.ledger.OccupiedTableIDs(ctx, restaurantID, slot, excludeID)
	if err != nil {
		return nil, 0, fmt.Errorf("load occupancy: %w", err)
	}
	free := make([]model.Table, 0, len(tables))
	for _, t := range tables {
		if !t.IsAvailable || t.Capacity < partySize {
			continue
		}
		if _, taken := occupied[t.ID]; taken {
			continue
		}
		free = append(free, t)
	}
	sort.SliceStable(free, func(i, j int) bool {
		if free[i].Capacity != free[j].Capacity {
			return free[i].Capacity < free[j].Capacity
		}
		return free[i].ID < free[j].ID
	})
	return free, len(tables), nil
}

func (r *Resolver) activeRestaurant(ctx context.Context, id uint64) (*model.Restaurant, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: restaurant id is required", ErrInvalidInput)
	}
	rest, err := r.catalog.GetRestaurant(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: restaurant %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load restaurant: %w", err)
	}
	if !rest.IsActive {
		return nil, fmt.Errorf("%w: restaurant %d is not active", ErrNotFound, id)
	}
	return rest, nil
}
