// Package booking implements the reservation availability and lifecycle
// engine: admission control, table assignment and status transitions.
//
// Two occupying reservations (pending or confirmed) never share a table
// at the same restaurant, date and time. The Ledger enforces this with a
// uniqueness rule; Manager additionally serializes check and write per
// slot through a SlotLocker so that concurrent bookings fall through to
// the next free table instead of colliding.
package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// DefaultUpcomingLimit caps ListUpcomingReservations when the caller
// passes no limit.
const DefaultUpcomingLimit = 20

// Options configures a Manager. Zero values select defaults: a local
// slot locker, no event publishing, the wall clock, UTC and a discarding
// logger.
type Options struct {
	Locker        SlotLocker
	Events        EventPublisher
	Clock         func() time.Time
	Location      *time.Location
	Logger        *log.Logger
	UpcomingLimit int
}

// Manager enforces the reservation state machine on top of a Catalog
// and a Ledger.
type Manager struct {
	resolver      *Resolver
	catalog       Catalog
	ledger        Ledger
	locker        SlotLocker
	events        EventPublisher
	now           func() time.Time
	loc           *time.Location
	logger        *log.Logger
	upcomingLimit int
}

// NewManager wires a Manager. catalog and ledger must be non-nil.
func NewManager(catalog Catalog, ledger Ledger, opts Options) *Manager {
	m := &Manager{
		resolver:      NewResolver(catalog, ledger),
		catalog:       catalog,
		ledger:        ledger,
		locker:        opts.Locker,
		events:        opts.Events,
		now:           opts.Clock,
		loc:           opts.Location,
		logger:        opts.Logger,
		upcomingLimit: opts.UpcomingLimit,
	}
	if m.locker == nil {
		m.locker = NewLocalSlotLocker()
	}
	if m.events == nil {
		m.events = noopPublisher{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	if m.logger == nil {
		m.logger = log.New("reservation")
		m.logger.SetOutput(io.Discard)
	}
	if m.upcomingLimit <= 0 {
		m.upcomingLimit = DefaultUpcomingLimit
	}
	return m
}

// Resolver exposes the availability resolver the manager admits with.
func (m *Manager) Resolver() *Resolver { return m.resolver }

// CreateRequest holds the caller-supplied fields of a new reservation.
type CreateRequest struct {
	RestaurantID    uint64
	Date            string
	Time            string
	PartySize       int
	SpecialRequests *string
}

// CreateReservation admits and stores a new confirmed reservation owned
// by the actor. The smallest sufficient free table is assigned.
func (m *Manager) CreateReservation(ctx context.Context, actor model.Actor, req CreateRequest) (*model.Reservation, error) {
	if actor.UserID == 0 {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	if req.RestaurantID == 0 {
		return nil, fmt.Errorf("%w: restaurant id is required", ErrInvalidInput)
	}
	if req.PartySize <= 0 {
		return nil, fmt.Errorf("%w: party size must be positive", ErrInvalidInput)
	}
	slot, err := model.ParseSlot(req.Date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := m.resolver.activeRestaurant(ctx, req.RestaurantID); err != nil {
		return nil, err
	}
	now := m.now()
	if err := m.checkFuture(slot, now); err != nil {
		return nil, err
	}

	unlock, err := m.locker.Lock(ctx, SlotKey(req.RestaurantID, slot))
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	defer unlock()

	tableID, err := m.resolver.admit(ctx, req.RestaurantID, slot, req.PartySize, 0, nil)
	if err != nil {
		return nil, err
	}
	res := &model.Reservation{
		UserID:          actor.UserID,
		RestaurantID:    req.RestaurantID,
		TableID:         tableID,
		Slot:            slot,
		PartySize:       req.PartySize,
		SpecialRequests: trimRequests(req.SpecialRequests),
		Status:          model.StatusConfirmed,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if err := m.ledger.Create(ctx, res); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, ErrNoAvailability
		}
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	m.logger.Infof("reservation %d created: restaurant=%d table=%s slot=%s %s party=%d",
		res.ID, res.RestaurantID, tableLabel(res.TableID), res.Date, res.Time, res.PartySize)
	m.publish(ctx, queue.EventCreated, res)
	return res, nil
}

// UpdateReservation applies a customer's changes to their reservation.
// When the date, time or party size change the new slot must pass
// admission again, ignoring the reservation's own occupancy. A rejected
// update leaves the reservation untouched.
func (m *Manager) UpdateReservation(ctx context.Context, actor model.Actor, id uint64, patch model.ReservationPatch) (*model.Reservation, error) {
	res, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	if res.Status.Terminal() {
		return nil, fmt.Errorf("%w: reservation is %s", ErrInvalidState, res.Status)
	}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	date, clock, party := res.Date, res.Time, res.PartySize
	if patch.Date != nil {
		date = *patch.Date
	}
	if patch.Time != nil {
		clock = *patch.Time
	}
	if patch.PartySize != nil {
		party = *patch.PartySize
	}
	if party <= 0 {
		return nil, fmt.Errorf("%w: party size must be positive", ErrInvalidInput)
	}
	slot, err := model.ParseSlot(date, clock)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if slot != res.Slot {
		if err := m.checkFuture(slot, m.now()); err != nil {
			return nil, err
		}
	}

	upd := model.ReservationUpdate{
		Slot:            slot,
		PartySize:       party,
		SpecialRequests: res.SpecialRequests,
		TableID:         res.TableID,
		Prior:           model.StateOf(res),
	}
	if patch.SpecialRequests != nil {
		upd.SpecialRequests = trimRequests(patch.SpecialRequests)
	}

	if patch.TouchesAdmission() {
		unlock, err := m.locker.Lock(ctx, SlotKey(res.RestaurantID, slot))
		if err != nil {
			return nil, fmt.Errorf("lock slot: %w", err)
		}
		defer unlock()

		// Status may have moved while waiting for the slot.
		if res, err = m.load(ctx, id); err != nil {
			return nil, err
		}
		if res.Status.Terminal() {
			return nil, fmt.Errorf("%w: reservation is %s", ErrInvalidState, res.Status)
		}
		if !upd.Prior.Matches(res) {
			return nil, errModifiedConcurrently
		}
		if _, err := m.resolver.activeRestaurant(ctx, res.RestaurantID); err != nil {
			return nil, err
		}
		upd.TableID, err = m.resolver.admit(ctx, res.RestaurantID, slot, party, res.ID, res.TableID)
		if err != nil {
			return nil, err
		}
	}

	upd.UpdatedAt = m.now().UTC()
	updated, err := m.ledger.UpdateFields(ctx, res.ID, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotTaken):
			return nil, ErrNoAvailability
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
		case errors.Is(err, repository.ErrStaleState):
			return nil, errModifiedConcurrently
		}
		return nil, fmt.Errorf("update reservation: %w", err)
	}
	m.logger.Infof("reservation %d updated: table=%s slot=%s %s party=%d",
		updated.ID, tableLabel(updated.TableID), updated.Date, updated.Time, updated.PartySize)
	m.publish(ctx, queue.EventUpdated, updated)
	return updated, nil
}

// CancelReservation cancels a reservation on behalf of its owner or an
// admin. Cancelling frees the table for the slot.
func (m *Manager) CancelReservation(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	res, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if res.Status.Terminal() {
		return nil, fmt.Errorf("%w: reservation is %s", ErrInvalidState, res.Status)
	}
	out, err := m.setStatus(ctx, res.ID, model.StatusCancelled)
	if err != nil {
		return nil, err
	}
	m.publish(ctx, queue.EventCancelled, out)
	return out, nil
}

// SetReservationStatus performs an admin transition to confirmed,
// completed or no_show. Confirming an already confirmed reservation is a
// no-op; any transition out of a terminal status fails.
func (m *Manager) SetReservationStatus(ctx context.Context, actor model.Actor, id uint64, target model.Status) (*model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	switch target {
	case model.StatusConfirmed, model.StatusCompleted, model.StatusNoShow:
	default:
		return nil, fmt.Errorf("%w: cannot set status %q", ErrInvalidInput, target)
	}
	res, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status.Terminal() {
		return nil, fmt.Errorf("%w: reservation is %s", ErrInvalidState, res.Status)
	}
	if target == model.StatusConfirmed && res.Status == model.StatusConfirmed {
		return res, nil
	}
	out, err := m.setStatus(ctx, res.ID, target)
	if err != nil {
		return nil, err
	}
	m.publish(ctx, queue.EventStatusChanged, out)
	return out, nil
}

// GetReservation returns a reservation visible to its owner or an admin.
func (m *Manager) GetReservation(ctx context.Context, actor model.Actor, id uint64) (*model.Reservation, error) {
	res, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return res, nil
}

// ListMyReservations lists the actor's reservations, newest slot first.
func (m *Manager) ListMyReservations(ctx context.Context, actor model.Actor, f model.ReservationFilter) ([]model.Reservation, error) {
	if actor.UserID == 0 {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	if err := validFilter(f); err != nil {
		return nil, err
	}
	f.Today = m.today()
	out, err := m.ledger.ListByUser(ctx, actor.UserID, f)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

// ListRestaurantReservations lists a restaurant's reservations for
// staff, nearest slot first. Admin only.
func (m *Manager) ListRestaurantReservations(ctx context.Context, actor model.Actor, restaurantID uint64, f model.ReservationFilter) ([]model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := validFilter(f); err != nil {
		return nil, err
	}
	if f.Date != "" {
		if _, err := model.ParseSlot(f.Date, "00:00"); err != nil {
			return nil, fmt.Errorf("%w: invalid date %q", ErrInvalidInput, f.Date)
		}
	}
	if err := m.restaurantExists(ctx, restaurantID); err != nil {
		return nil, err
	}
	f.Today = m.today()
	out, err := m.ledger.ListByRestaurant(ctx, restaurantID, f)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

// ListUpcomingReservations lists occupying reservations from today on,
// nearest first. Admin only. A non-positive limit selects the default.
func (m *Manager) ListUpcomingReservations(ctx context.Context, actor model.Actor, limit int) ([]model.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = m.upcomingLimit
	}
	out, err := m.ledger.ListUpcoming(ctx, m.today(), limit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming: %w", err)
	}
	return out, nil
}

// Statistics aggregates a restaurant's reservations between two dates,
// both inclusive. Admin only.
func (m *Manager) Statistics(ctx context.Context, actor model.Actor, restaurantID uint64, from, to string) (*model.ReservationStats, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	start, err := model.ParseSlot(from, "00:00")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start date", ErrInvalidInput)
	}
	end, err := model.ParseSlot(to, "00:00")
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end date", ErrInvalidInput)
	}
	if end.Date < start.Date {
		return nil, fmt.Errorf("%w: end date before start date", ErrInvalidInput)
	}
	if err := m.restaurantExists(ctx, restaurantID); err != nil {
		return nil, err
	}
	stats, err := m.ledger.Statistics(ctx, restaurantID, start.Date, end.Date)
	if err != nil {
		return nil, fmt.Errorf("reservation statistics: %w", err)
	}
	return stats, nil
}

func (m *Manager) load(ctx context.Context, id uint64) (*model.Reservation, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: reservation id is required", ErrInvalidInput)
	}
	res, err := m.ledger.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	return res, nil
}

func (m *Manager) setStatus(ctx context.Context, id uint64, status model.Status) (*model.Reservation, error) {
	out, err := m.ledger.SetStatus(ctx, id, status, m.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: reservation %d", ErrNotFound, id)
		case errors.Is(err, repository.ErrStaleState):
			return nil, errModifiedConcurrently
		}
		return nil, fmt.Errorf("set status: %w", err)
	}
	m.logger.Infof("reservation %d is now %s", out.ID, out.Status)
	return out, nil
}

func (m *Manager) restaurantExists(ctx context.Context, id uint64) error {
	if _, err := m.catalog.GetRestaurant(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: restaurant %d", ErrNotFound, id)
		}
		return fmt.Errorf("load restaurant: %w", err)
	}
	return nil
}

func (m *Manager) checkFuture(slot model.Slot, now time.Time) error {
	if !slot.Start(m.loc).After(now) {
		return ErrInvalidTemporal
	}
	return nil
}

func (m *Manager) today() string {
	return m.now().In(m.loc).Format(model.DateLayout)
}

func (m *Manager) publish(ctx context.Context, kind string, res *model.Reservation) {
	ev := queue.ReservationEvent{
		Type:          kind,
		ReservationID: res.ID,
		UserID:        res.UserID,
		RestaurantID:  res.RestaurantID,
		TableID:       res.TableID,
		Date:          res.Date,
		Time:          res.Time,
		PartySize:     res.PartySize,
		Status:        string(res.Status),
		OccurredAt:    m.now().UTC().Format(time.RFC3339),
	}
	if err := m.events.Publish(ctx, ev); err != nil {
		m.logger.Warnf("publish %s for reservation %d: %v", kind, res.ID, err)
	}
}

func validFilter(f model.ReservationFilter) error {
	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	return nil
}

func trimRequests(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func tableLabel(id *uint64) string {
	if id == nil {
		return "none"
	}
	return fmt.Sprint(*id)
}
