//go:build integration
// +build integration

package repository

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/model"
)

// setupMySQL starts a MySQL container with the schema applied.
func setupMySQL(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := mysql.Run(ctx,
		"mysql:8.0.36",
		mysql.WithDatabase("table_reservation"),
		mysql.WithUsername("tester"),
		mysql.WithPassword("tester"),
	)
	if err != nil {
		t.Fatalf("Failed to start MySQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "parseTime=true", "loc=UTC")
	require.NoError(t, err)
	db, err := database.OpenDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db))
	// Running twice must be harmless.
	require.NoError(t, database.Migrate(ctx, db))
	return db
}

func TestMySQLRepositories(t *testing.T) {
	db := setupMySQL(t)
	ctx := context.Background()
	rests := NewRestaurantRepo(db)
	ledger := NewReservationRepo(db)

	desc := "Wood-fired pizza"
	r := &model.Restaurant{Name: "Trattoria Roma", Description: &desc, Cuisine: "Italian",
		StreetAddress: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701",
		PriceRange: "$$", IsActive: true}
	require.NoError(t, rests.CreateRestaurant(ctx, r))
	require.NotZero(t, r.ID)
	assert.Equal(t, "USA", r.Country)

	list, err := rests.ListRestaurants(ctx, model.RestaurantFilter{Search: "pizza"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	t1 := &model.Table{RestaurantID: r.ID, TableNumber: "T1", Capacity: 2, IsAvailable: true}
	t2 := &model.Table{RestaurantID: r.ID, TableNumber: "T2", Capacity: 4, IsAvailable: true}
	require.NoError(t, rests.AddTable(ctx, t1))
	require.NoError(t, rests.AddTable(ctx, t2))
	assert.ErrorIs(t, rests.AddTable(ctx, &model.Table{RestaurantID: r.ID, TableNumber: "T1", Capacity: 8}), ErrConflict)

	require.NoError(t, rests.SetHours(ctx, r.ID, []model.OpeningHours{
		{DayOfWeek: 1, OpenTime: "11:00", CloseTime: "22:00"},
		{DayOfWeek: 0, IsClosed: true},
	}))
	hours, err := rests.GetHours(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, hours, 2)
	assert.Equal(t, "11:00", hours[1].OpenTime)

	slot := model.Slot{Date: "2031-06-02", Time: "19:00"}
	now := time.Now().UTC().Truncate(time.Second)
	res := &model.Reservation{UserID: 7, RestaurantID: r.ID, TableID: &t1.ID, Slot: slot, PartySize: 2,
		Status: model.StatusConfirmed, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, ledger.Create(ctx, res))

	got, err := ledger.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, slot, got.Slot)
	require.NotNil(t, got.TableID)
	assert.Equal(t, t1.ID, *got.TableID)

	dup := &model.Reservation{UserID: 8, RestaurantID: r.ID, TableID: &t1.ID, Slot: slot, PartySize: 2,
		Status: model.StatusConfirmed, CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, ledger.Create(ctx, dup), ErrSlotTaken)

	occ, err := ledger.OccupiedTableIDs(ctx, r.ID, slot, 0)
	require.NoError(t, err)
	assert.Contains(t, occ, t1.ID)

	_, err = ledger.SetStatus(ctx, res.ID, model.StatusCancelled, now)
	require.NoError(t, err)
	require.NoError(t, ledger.Create(ctx, dup), "cancelling frees the table")

	// Aggregate bookings without a table never collide.
	for i := 0; i < 2; i++ {
		require.NoError(t, ledger.Create(ctx, &model.Reservation{UserID: 9, RestaurantID: r.ID, Slot: slot,
			PartySize: 2, Status: model.StatusConfirmed, CreatedAt: now, UpdatedAt: now}))
	}

	upd, err := ledger.UpdateFields(ctx, dup.ID, model.ReservationUpdate{
		Slot: model.Slot{Date: "2031-06-02", Time: "20:30"}, PartySize: 3, TableID: &t2.ID, UpdatedAt: now,
		Prior: model.StateOf(dup),
	})
	require.NoError(t, err)
	assert.Equal(t, "20:30", upd.Time)
	assert.Equal(t, 3, upd.PartySize)

	// Rewriting identical values reports zero affected rows but still lands.
	same, err := ledger.UpdateFields(ctx, dup.ID, model.ReservationUpdate{
		Slot: upd.Slot, PartySize: 3, TableID: &t2.ID, UpdatedAt: now, Prior: model.StateOf(upd),
	})
	require.NoError(t, err)
	assert.Equal(t, "20:30", same.Time)

	// Writes computed from the pre-move read are stale.
	_, err = ledger.UpdateFields(ctx, dup.ID, model.ReservationUpdate{
		Slot: dup.Slot, PartySize: 2, TableID: &t1.ID, UpdatedAt: now, Prior: model.StateOf(dup),
	})
	assert.ErrorIs(t, err, ErrStaleState)

	// Terminal rows reject further transitions and edits.
	_, err = ledger.SetStatus(ctx, res.ID, model.StatusCompleted, now)
	assert.ErrorIs(t, err, ErrStaleState)
	_, err = ledger.UpdateFields(ctx, res.ID, model.ReservationUpdate{
		Slot: res.Slot, PartySize: 4, TableID: res.TableID, UpdatedAt: now, Prior: model.StateOf(res),
	})
	assert.ErrorIs(t, err, ErrStaleState)
	_, err = ledger.SetStatus(ctx, 999999, model.StatusCancelled, now)
	assert.ErrorIs(t, err, ErrNotFound)

	mine, err := ledger.ListByUser(ctx, 8, model.ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	st, err := ledger.Statistics(ctx, r.ID, "2031-06-01", "2031-06-30")
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 1, st.Cancelled)
	assert.Equal(t, 3, st.Confirmed)

	upcoming, err := ledger.ListUpcoming(ctx, "2031-06-01", 10)
	require.NoError(t, err)
	assert.Len(t, upcoming, 3)
}

func TestMySQLConcurrentCreateOnSameTable(t *testing.T) {
	db := setupMySQL(t)
	ctx := context.Background()
	rests := NewRestaurantRepo(db)
	ledger := NewReservationRepo(db)

	r := &model.Restaurant{Name: "Bistro", Cuisine: "French", City: "Paris", PriceRange: "$$$", IsActive: true}
	require.NoError(t, rests.CreateRestaurant(ctx, r))
	tbl := &model.Table{RestaurantID: r.ID, TableNumber: "A", Capacity: 2, IsAvailable: true}
	require.NoError(t, rests.AddTable(ctx, tbl))

	slot := model.Slot{Date: "2031-07-01", Time: "20:00"}
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, taken := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			now := time.Now().UTC()
			err := ledger.Create(ctx, &model.Reservation{UserID: user, RestaurantID: r.ID, TableID: &tbl.ID,
				Slot: slot, PartySize: 2, Status: model.StatusConfirmed, CreatedAt: now, UpdatedAt: now})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, ErrSlotTaken):
				taken++
			}
		}(uint64(i + 1))
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, taken)
}
