package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/model"
)

func seedRestaurant(t *testing.T, s *MemoryStore, name string) *model.Restaurant {
	t.Helper()
	r := &model.Restaurant{Name: name, Cuisine: "Italian", City: "Springfield", PriceRange: "$$", IsActive: true}
	require.NoError(t, s.CreateRestaurant(context.Background(), r))
	return r
}

func TestMemoryStoreRestaurants(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := seedRestaurant(t, s, "Trattoria Roma")
	b := seedRestaurant(t, s, "Sushi Bar")
	assert.Equal(t, "USA", a.Country)

	list, err := s.ListRestaurants(ctx, model.RestaurantFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID, "newest first")

	list, err = s.ListRestaurants(ctx, model.RestaurantFilter{Search: "roma"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	name := "Sushi Place"
	upd, err := s.UpdateRestaurant(ctx, b.ID, model.RestaurantPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, upd.Name)

	_, err = s.UpdateRestaurant(ctx, b.ID, model.RestaurantPatch{})
	assert.ErrorIs(t, err, ErrNoChange)

	require.NoError(t, s.DeactivateRestaurant(ctx, a.ID))
	assert.ErrorIs(t, s.DeactivateRestaurant(ctx, a.ID), ErrNotFound)

	list, err = s.ListRestaurants(ctx, model.RestaurantFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := s.GetRestaurant(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestMemoryStoreTables(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := seedRestaurant(t, s, "Trattoria Roma")

	require.NoError(t, s.AddTable(ctx, &model.Table{RestaurantID: r.ID, TableNumber: "T2", Capacity: 4, IsAvailable: true}))
	require.NoError(t, s.AddTable(ctx, &model.Table{RestaurantID: r.ID, TableNumber: "T1", Capacity: 2, IsAvailable: true}))
	err := s.AddTable(ctx, &model.Table{RestaurantID: r.ID, TableNumber: "T1", Capacity: 6})
	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, s.AddTable(ctx, &model.Table{RestaurantID: 999, TableNumber: "T1"}), ErrNotFound)

	tables, err := s.GetTables(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "T1", tables[0].TableNumber)

	off := false
	upd, err := s.UpdateTable(ctx, r.ID, tables[0].ID, model.TablePatch{IsAvailable: &off})
	require.NoError(t, err)
	assert.False(t, upd.IsAvailable)

	_, err = s.UpdateTable(ctx, r.ID+100, tables[0].ID, model.TablePatch{IsAvailable: &off})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetTables(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreHours(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := seedRestaurant(t, s, "Trattoria Roma")

	hours := []model.OpeningHours{
		{DayOfWeek: 2, OpenTime: "11:00", CloseTime: "22:00"},
		{DayOfWeek: 0, IsClosed: true},
	}
	require.NoError(t, s.SetHours(ctx, r.ID, hours))
	got, err := s.GetHours(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].DayOfWeek)
	assert.True(t, got[0].IsClosed)
}

func TestMemoryStoreOccupancyUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := seedRestaurant(t, s, "Trattoria Roma")
	table := &model.Table{RestaurantID: r.ID, TableNumber: "T1", Capacity: 4, IsAvailable: true}
	require.NoError(t, s.AddTable(ctx, table))

	slot := model.Slot{Date: "2024-06-02", Time: "19:00"}
	first := &model.Reservation{UserID: 1, RestaurantID: r.ID, TableID: &table.ID, Slot: slot, PartySize: 2, Status: model.StatusConfirmed}
	require.NoError(t, s.Create(ctx, first))

	second := &model.Reservation{UserID: 2, RestaurantID: r.ID, TableID: &table.ID, Slot: slot, PartySize: 2, Status: model.StatusConfirmed}
	assert.ErrorIs(t, s.Create(ctx, second), ErrSlotTaken)

	occ, err := s.OccupiedTableIDs(ctx, r.ID, slot, 0)
	require.NoError(t, err)
	assert.Contains(t, occ, table.ID)

	occ, err = s.OccupiedTableIDs(ctx, r.ID, slot, first.ID)
	require.NoError(t, err)
	assert.Empty(t, occ)

	_, err = s.SetStatus(ctx, first.ID, model.StatusCancelled, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, second))

	// A cancelled row is terminal and cannot be re-activated.
	_, err = s.SetStatus(ctx, first.ID, model.StatusConfirmed, time.Now())
	assert.ErrorIs(t, err, ErrStaleState)
}

func TestMemoryStoreRejectsWritesToTerminalRows(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := seedRestaurant(t, s, "Trattoria Roma")

	res := &model.Reservation{UserID: 1, RestaurantID: r.ID, Slot: model.Slot{Date: "2024-06-02", Time: "19:00"},
		PartySize: 2, Status: model.StatusConfirmed}
	require.NoError(t, s.Create(ctx, res))
	_, err := s.SetStatus(ctx, res.ID, model.StatusCompleted, time.Now())
	require.NoError(t, err)

	_, err = s.SetStatus(ctx, res.ID, model.StatusCancelled, time.Now())
	assert.ErrorIs(t, err, ErrStaleState)
	_, err = s.UpdateFields(ctx, res.ID, model.ReservationUpdate{
		Slot: res.Slot, PartySize: 3, Prior: model.StateOf(res),
	})
	assert.ErrorIs(t, err, ErrStaleState)

	got, err := s.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 2, got.PartySize)

	_, err = s.SetStatus(ctx, 404, model.StatusCancelled, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateFieldsRequiresUnchangedRow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := seedRestaurant(t, s, "Trattoria Roma")

	res := &model.Reservation{UserID: 1, RestaurantID: r.ID, Slot: model.Slot{Date: "2024-06-02", Time: "19:00"},
		PartySize: 2, Status: model.StatusConfirmed}
	require.NoError(t, s.Create(ctx, res))
	stale := model.StateOf(res)

	moved, err := s.UpdateFields(ctx, res.ID, model.ReservationUpdate{
		Slot: model.Slot{Date: "2024-06-02", Time: "20:00"}, PartySize: 2, Prior: stale,
	})
	require.NoError(t, err)
	assert.Equal(t, "20:00", moved.Time)

	// A notes edit computed from the earlier read must not undo the move.
	notes := "window"
	_, err = s.UpdateFields(ctx, res.ID, model.ReservationUpdate{
		Slot: stale.Slot, PartySize: 2, SpecialRequests: &notes, Prior: stale,
	})
	assert.ErrorIs(t, err, ErrStaleState)

	got, err := s.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "20:00", got.Time)
	assert.Nil(t, got.SpecialRequests)
}

func TestMemoryStoreListingsAndStatistics(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := seedRestaurant(t, s, "Trattoria Roma")

	mk := func(user uint64, date, clock string, party int, st model.Status) *model.Reservation {
		res := &model.Reservation{UserID: user, RestaurantID: r.ID, Slot: model.Slot{Date: date, Time: clock}, PartySize: party, Status: st}
		require.NoError(t, s.Create(ctx, res))
		return res
	}
	mk(1, "2024-06-01", "19:00", 2, model.StatusCompleted)
	mk(1, "2024-06-03", "18:00", 4, model.StatusConfirmed)
	mk(2, "2024-06-02", "20:00", 3, model.StatusCancelled)
	mk(2, "2024-06-02", "12:00", 3, model.StatusNoShow)

	mine, err := s.ListByUser(ctx, 1, model.ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "2024-06-03", mine[0].Date)

	upcoming, err := s.ListByUser(ctx, 1, model.ReservationFilter{Upcoming: true, Today: "2024-06-02"})
	require.NoError(t, err)
	require.Len(t, upcoming, 1)

	day, err := s.ListByRestaurant(ctx, r.ID, model.ReservationFilter{Date: "2024-06-02"})
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, "12:00", day[0].Time)

	next, err := s.ListUpcoming(ctx, "2024-06-01", 10)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, model.StatusConfirmed, next[0].Status)

	st, err := s.Statistics(ctx, r.ID, "2024-06-01", "2024-06-02")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Completed)
	assert.Equal(t, 1, st.Cancelled)
	assert.Equal(t, 1, st.NoShow)
	assert.InDelta(t, 8.0/3.0, st.AvgPartySize, 0.001)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := seedRestaurant(t, s, "Trattoria Roma")
	note := "window seat"
	res := &model.Reservation{UserID: 1, RestaurantID: r.ID, Slot: model.Slot{Date: "2024-06-02", Time: "19:00"},
		PartySize: 2, Status: model.StatusConfirmed, SpecialRequests: &note}
	require.NoError(t, s.Create(ctx, res))

	got, err := s.GetByID(ctx, res.ID)
	require.NoError(t, err)
	*got.SpecialRequests = "changed"

	again, err := s.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "window seat", *again.SpecialRequests)
}
