package booking

import (
	"context"
	"time"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
)

// Catalog is the read side of restaurant data the core depends on.
// Implementations return repository.ErrNotFound for unknown ids.
type Catalog interface {
	GetRestaurant(ctx context.Context, id uint64) (*model.Restaurant, error)
	// GetTables returns every table of the restaurant, including
	// unavailable ones.
	GetTables(ctx context.Context, restaurantID uint64) ([]model.Table, error)
}

// Ledger is the authoritative store of reservations. Create and
// UpdateFields must reject a second occupying reservation on the same
// (restaurant, table, date, time) with repository.ErrSlotTaken.
type Ledger interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	// ListByUser orders by date and time descending.
	ListByUser(ctx context.Context, userID uint64, f model.ReservationFilter) ([]model.Reservation, error)
	// ListByRestaurant orders by date and time ascending.
	ListByRestaurant(ctx context.Context, restaurantID uint64, f model.ReservationFilter) ([]model.Reservation, error)
	// ListUpcoming returns occupying reservations dated today or later,
	// ascending, at most limit rows.
	ListUpcoming(ctx context.Context, today string, limit int) ([]model.Reservation, error)
	// OccupiedTableIDs returns the tables held by occupying reservations
	// at the slot, ignoring reservation excludeID (0 excludes nothing).
	OccupiedTableIDs(ctx context.Context, restaurantID uint64, slot model.Slot, excludeID uint64) (map[uint64]struct{}, error)
	// UpdateFields applies upd only while the row is occupying and still
	// matches upd.Prior; otherwise it returns repository.ErrStaleState.
	UpdateFields(ctx context.Context, id uint64, upd model.ReservationUpdate) (*model.Reservation, error)
	// SetStatus returns repository.ErrStaleState when the row is already
	// terminal.
	SetStatus(ctx context.Context, id uint64, status model.Status, at time.Time) (*model.Reservation, error)
	Statistics(ctx context.Context, restaurantID uint64, from, to string) (*model.ReservationStats, error)
}

// EventPublisher receives reservation events after writes succeed.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, queue.ReservationEvent) error { return nil }
