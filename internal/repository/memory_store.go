package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
)

// MemoryStore keeps restaurants, tables and reservations in memory. It
// satisfies the same contracts as RestaurantRepo and ReservationRepo,
// including the occupancy uniqueness rule, and is meant for tests and
// local runs. Each store is independent; nothing is shared between
// instances.
type MemoryStore struct {
	mu           sync.RWMutex
	restaurants  map[uint64]model.Restaurant
	tables       map[uint64]model.Table
	hours        map[uint64][]model.OpeningHours
	reservations map[uint64]model.Reservation
	nextID       uint64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		restaurants:  make(map[uint64]model.Restaurant),
		tables:       make(map[uint64]model.Table),
		hours:        make(map[uint64][]model.OpeningHours),
		reservations: make(map[uint64]model.Reservation),
	}
}

func (s *MemoryStore) id() uint64 {
	s.nextID++
	return s.nextID
}

// ---- Restaurants ----

// CreateRestaurant stores r and fills its ID and timestamps.
func (s *MemoryStore) CreateRestaurant(_ context.Context, r *model.Restaurant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.Country == "" {
		r.Country = "USA"
	}
	s.restaurants[r.ID] = *r
	return nil
}

// GetRestaurant returns a restaurant whether or not it is active.
func (s *MemoryStore) GetRestaurant(_ context.Context, id uint64) (*model.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// ListRestaurants returns active restaurants matching f, newest first.
func (s *MemoryStore) ListRestaurants(_ context.Context, f model.RestaurantFilter) ([]model.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Restaurant, 0)
	for _, r := range s.restaurants {
		if !r.IsActive {
			continue
		}
		if f.Cuisine != "" && !containsFold(r.Cuisine, f.Cuisine) {
			continue
		}
		if f.City != "" && !containsFold(r.City, f.City) {
			continue
		}
		if f.Search != "" {
			desc := ""
			if r.Description != nil {
				desc = *r.Description
			}
			if !containsFold(r.Name, f.Search) && !containsFold(desc, f.Search) {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// UpdateRestaurant applies the non-nil fields of p.
func (s *MemoryStore) UpdateRestaurant(_ context.Context, id uint64, p model.RestaurantPatch) (*model.Restaurant, error) {
	if p.Empty() {
		return nil, ErrNoChange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	setStr := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setStr(&r.Name, p.Name)
	setStr(&r.Cuisine, p.Cuisine)
	setStr(&r.StreetAddress, p.StreetAddress)
	setStr(&r.City, p.City)
	setStr(&r.State, p.State)
	setStr(&r.ZipCode, p.ZipCode)
	setStr(&r.Country, p.Country)
	setStr(&r.PriceRange, p.PriceRange)
	if p.Description != nil {
		r.Description = strPtr(*p.Description)
	}
	if p.Phone != nil {
		r.Phone = strPtr(*p.Phone)
	}
	if p.Email != nil {
		r.Email = strPtr(*p.Email)
	}
	r.UpdatedAt = time.Now().UTC()
	s.restaurants[id] = r
	return &r, nil
}

// DeactivateRestaurant clears the active flag. Rows are never removed.
func (s *MemoryStore) DeactivateRestaurant(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[id]
	if !ok || !r.IsActive {
		return ErrNotFound
	}
	r.IsActive = false
	r.UpdatedAt = time.Now().UTC()
	s.restaurants[id] = r
	return nil
}

// ---- Tables ----

// GetTables returns all tables of a restaurant ordered by table number.
func (s *MemoryStore) GetTables(_ context.Context, restaurantID uint64) ([]model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.restaurants[restaurantID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]model.Table, 0)
	for _, t := range s.tables {
		if t.RestaurantID == restaurantID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableNumber < out[j].TableNumber })
	return out, nil
}

// AddTable stores t. Table numbers are unique per restaurant.
func (s *MemoryStore) AddTable(_ context.Context, t *model.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.restaurants[t.RestaurantID]; !ok {
		return ErrNotFound
	}
	for _, other := range s.tables {
		if other.RestaurantID == t.RestaurantID && other.TableNumber == t.TableNumber {
			return ErrConflict
		}
	}
	t.ID = s.id()
	t.CreatedAt = time.Now().UTC()
	s.tables[t.ID] = *t
	return nil
}

// UpdateTable changes capacity or availability of a table.
func (s *MemoryStore) UpdateTable(_ context.Context, restaurantID, tableID uint64, p model.TablePatch) (*model.Table, error) {
	if p.Capacity == nil && p.IsAvailable == nil {
		return nil, ErrNoChange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok || t.RestaurantID != restaurantID {
		return nil, ErrNotFound
	}
	if p.Capacity != nil {
		t.Capacity = *p.Capacity
	}
	if p.IsAvailable != nil {
		t.IsAvailable = *p.IsAvailable
	}
	s.tables[tableID] = t
	return &t, nil
}

// ---- Hours ----

// GetHours returns the weekly schedule ordered by weekday.
func (s *MemoryStore) GetHours(_ context.Context, restaurantID uint64) ([]model.OpeningHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.restaurants[restaurantID]; !ok {
		return nil, ErrNotFound
	}
	out := append([]model.OpeningHours{}, s.hours[restaurantID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out, nil
}

// SetHours replaces the weekly schedule.
func (s *MemoryStore) SetHours(_ context.Context, restaurantID uint64, hours []model.OpeningHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.restaurants[restaurantID]; !ok {
		return ErrNotFound
	}
	s.hours[restaurantID] = append([]model.OpeningHours{}, hours...)
	return nil
}

// ---- Reservations ----

// Create stores res and fills its ID.
func (s *MemoryStore) Create(_ context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slotTaken(res.RestaurantID, res.TableID, res.Slot, res.Status, 0) {
		return ErrSlotTaken
	}
	res.ID = s.id()
	s.reservations[res.ID] = cloneReservation(*res)
	return nil
}

// GetByID returns a reservation by id.
func (s *MemoryStore) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneReservation(r)
	return &out, nil
}

// ListByUser lists a user's reservations, latest slot first.
func (s *MemoryStore) ListByUser(_ context.Context, userID uint64, f model.ReservationFilter) ([]model.Reservation, error) {
	out := s.collect(func(r model.Reservation) bool { return r.UserID == userID && matches(r, f) })
	sort.Slice(out, func(i, j int) bool { return slotLess(out[j], out[i]) })
	return out, nil
}

// ListByRestaurant lists a restaurant's reservations, earliest slot first.
func (s *MemoryStore) ListByRestaurant(_ context.Context, restaurantID uint64, f model.ReservationFilter) ([]model.Reservation, error) {
	out := s.collect(func(r model.Reservation) bool { return r.RestaurantID == restaurantID && matches(r, f) })
	sort.Slice(out, func(i, j int) bool { return slotLess(out[i], out[j]) })
	return out, nil
}

// ListUpcoming lists occupying reservations dated today or later.
func (s *MemoryStore) ListUpcoming(_ context.Context, today string, limit int) ([]model.Reservation, error) {
	out := s.collect(func(r model.Reservation) bool { return r.Status.Occupying() && r.Date >= today })
	sort.Slice(out, func(i, j int) bool { return slotLess(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// OccupiedTableIDs returns tables held at the slot by occupying reservations.
func (s *MemoryStore) OccupiedTableIDs(_ context.Context, restaurantID uint64, slot model.Slot, excludeID uint64) (map[uint64]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64]struct{})
	for _, r := range s.reservations {
		if r.ID == excludeID || r.RestaurantID != restaurantID || r.Slot != slot {
			continue
		}
		if r.Status.Occupying() && r.TableID != nil {
			out[*r.TableID] = struct{}{}
		}
	}
	return out, nil
}

// UpdateFields writes every field of upd in one step, provided the row is
// still occupying and unchanged since upd.Prior was read.
func (s *MemoryStore) UpdateFields(_ context.Context, id uint64, upd model.ReservationUpdate) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !r.Status.Occupying() || !upd.Prior.Matches(&r) {
		return nil, ErrStaleState
	}
	if s.slotTaken(r.RestaurantID, upd.TableID, upd.Slot, r.Status, id) {
		return nil, ErrSlotTaken
	}
	r.Slot = upd.Slot
	r.PartySize = upd.PartySize
	r.SpecialRequests = upd.SpecialRequests
	r.TableID = upd.TableID
	r.UpdatedAt = upd.UpdatedAt
	r = cloneReservation(r)
	s.reservations[id] = r
	out := cloneReservation(r)
	return &out, nil
}

// SetStatus moves a non-terminal reservation to status.
func (s *MemoryStore) SetStatus(_ context.Context, id uint64, status model.Status, at time.Time) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status.Terminal() {
		return nil, ErrStaleState
	}
	if s.slotTaken(r.RestaurantID, r.TableID, r.Slot, status, id) {
		return nil, ErrSlotTaken
	}
	r.Status = status
	r.UpdatedAt = at
	s.reservations[id] = r
	out := cloneReservation(r)
	return &out, nil
}

// Statistics aggregates reservations dated between from and to inclusive.
func (s *MemoryStore) Statistics(_ context.Context, restaurantID uint64, from, to string) (*model.ReservationStats, error) {
	rows := s.collect(func(r model.Reservation) bool {
		return r.RestaurantID == restaurantID && r.Date >= from && r.Date <= to
	})
	var st model.ReservationStats
	guests := 0
	for _, r := range rows {
		st.Total++
		guests += r.PartySize
		switch r.Status {
		case model.StatusConfirmed:
			st.Confirmed++
		case model.StatusCancelled:
			st.Cancelled++
		case model.StatusCompleted:
			st.Completed++
		case model.StatusNoShow:
			st.NoShow++
		}
	}
	if st.Total > 0 {
		st.AvgPartySize = float64(guests) / float64(st.Total)
	}
	return &st, nil
}

// slotTaken must be called with s.mu held.
func (s *MemoryStore) slotTaken(restaurantID uint64, tableID *uint64, slot model.Slot, status model.Status, self uint64) bool {
	if tableID == nil || !status.Occupying() {
		return false
	}
	for _, r := range s.reservations {
		if r.ID == self || !r.Status.Occupying() || r.TableID == nil {
			continue
		}
		if r.RestaurantID == restaurantID && *r.TableID == *tableID && r.Slot == slot {
			return true
		}
	}
	return false
}

func (s *MemoryStore) collect(keep func(model.Reservation) bool) []model.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0)
	for _, r := range s.reservations {
		if keep(r) {
			out = append(out, cloneReservation(r))
		}
	}
	return out
}

func matches(r model.Reservation, f model.ReservationFilter) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Upcoming && r.Date < f.Today {
		return false
	}
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	return true
}

func slotLess(a, b model.Reservation) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return a.ID < b.ID
}

func cloneReservation(r model.Reservation) model.Reservation {
	if r.TableID != nil {
		id := *r.TableID
		r.TableID = &id
	}
	if r.SpecialRequests != nil {
		r.SpecialRequests = strPtr(*r.SpecialRequests)
	}
	return r
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func strPtr(s string) *string { return &s }
