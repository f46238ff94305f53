package model

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// Occupying reports whether a reservation in status s holds its table.
func (s Status) Occupying() bool {
	return s == StatusPending || s == StatusConfirmed
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ErrInvalidSlot is returned by ParseSlot for malformed dates or times.
var ErrInvalidSlot = errors.New("invalid date or time")

// Slot is a (date, time) pair at booking granularity. Both parts are kept
// in normalized string form so slots compare by plain equality.
type Slot struct {
	Date string `json:"reservation_date"` // YYYY-MM-DD
	Time string `json:"reservation_time"` // HH:MM
}

// ParseSlot validates and normalizes a calendar date and a time of day.
// Times may carry seconds ("19:00:00"); they are truncated to minutes.
func ParseSlot(date, clock string) (Slot, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return Slot{}, ErrInvalidSlot
	}
	clock = strings.TrimSpace(clock)
	t, err := time.Parse(TimeLayout, clock)
	if err != nil {
		if t, err = time.Parse("15:04:05", clock); err != nil {
			return Slot{}, ErrInvalidSlot
		}
	}
	return Slot{Date: d.Format(DateLayout), Time: t.Format(TimeLayout)}, nil
}

// Start returns the instant the slot begins in loc.
func (s Slot) Start(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.Time, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Reservation records a user's booking at a restaurant for one slot.
// TableID is nil when the restaurant has no table matching the booking,
// in which case the reservation is tracked without a physical table.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – user who owns the reservation.
//  RestaurantID    – restaurant being booked.
//  TableID         – assigned table (nullable, weak reference).
//  Slot            – reservation date and time.
//  PartySize       – number of guests.
//  SpecialRequests – optional free text.
//  Status          – lifecycle state.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Reservation struct {
	ID              uint64  `json:"id"`            // reservations.id
	UserID          uint64  `json:"user_id"`       // reservations.user_id
	RestaurantID    uint64  `json:"restaurant_id"` // reservations.restaurant_id
	TableID         *uint64 `json:"table_id"`      // reservations.table_id (nullable)
	Slot                    // reservations.reservation_date, reservations.reservation_time
	PartySize       int       `json:"party_size"`       // reservations.party_size
	SpecialRequests *string   `json:"special_requests"` // reservations.special_requests (nullable)
	Status          Status    `json:"status"`           // reservations.status
	CreatedAt       time.Time `json:"created_at"`       // reservations.created_at
	UpdatedAt       time.Time `json:"updated_at"`       // reservations.updated_at
}

// ReservationPatch is the set of optional changes a customer may apply
// to their reservation. Nil fields are left untouched.
type ReservationPatch struct {
	Date            *string
	Time            *string
	PartySize       *int
	SpecialRequests *string
}

// TouchesAdmission reports whether the patch changes anything the
// availability check depends on.
func (p ReservationPatch) TouchesAdmission() bool {
	return p.Date != nil || p.Time != nil || p.PartySize != nil
}

// Empty reports whether the patch changes nothing.
func (p ReservationPatch) Empty() bool {
	return !p.TouchesAdmission() && p.SpecialRequests == nil
}

// ReservationUpdate is the full set of mutable fields written by a
// single ledger update. Every field is applied together or not at all.
// The write only lands while the row is pending or confirmed and still
// carries the Prior values the update was computed from.
type ReservationUpdate struct {
	Slot            Slot
	PartySize       int
	SpecialRequests *string
	TableID         *uint64
	UpdatedAt       time.Time
	Prior           ReservationState
}

// ReservationState is the mutable part of a reservation as last read.
type ReservationState struct {
	Slot            Slot
	PartySize       int
	SpecialRequests *string
	TableID         *uint64
}

// StateOf captures the mutable fields of r.
func StateOf(r *Reservation) ReservationState {
	return ReservationState{Slot: r.Slot, PartySize: r.PartySize, SpecialRequests: r.SpecialRequests, TableID: r.TableID}
}

// Matches reports whether r still carries the values in s.
func (s ReservationState) Matches(r *Reservation) bool {
	return r.Slot == s.Slot && r.PartySize == s.PartySize &&
		eqUint64(r.TableID, s.TableID) && eqString(r.SpecialRequests, s.SpecialRequests)
}

func eqUint64(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ReservationFilter narrows reservation listings. Upcoming keeps rows
// whose date is on or after Today; Date restricts to a single day.
type ReservationFilter struct {
	Status   Status
	Upcoming bool
	Today    string
	Date     string
}

// ReservationStats aggregates reservations of a restaurant over a date range.
type ReservationStats struct {
	Total        int     `json:"total_reservations"`
	Confirmed    int     `json:"confirmed_reservations"`
	Cancelled    int     `json:"cancelled_reservations"`
	Completed    int     `json:"completed_reservations"`
	NoShow       int     `json:"no_show_reservations"`
	AvgPartySize float64 `json:"avg_party_size"`
}
