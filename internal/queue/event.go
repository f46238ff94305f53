// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types published on the reservations queue.
const (
	EventCreated       = "reservation.created"
	EventUpdated       = "reservation.updated"
	EventCancelled     = "reservation.cancelled"
	EventStatusChanged = "reservation.status_changed"
)

// ReservationQueue is the durable queue reservation events are routed to.
const ReservationQueue = "reservation.events"

// ReservationEvent is published after a reservation write commits. It
// carries enough of the reservation for consumers to log, notify or feed
// analytics without reading the primary database.
type ReservationEvent struct {
	Type          string  `json:"type"`
	ReservationID uint64  `json:"reservation_id"`
	UserID        uint64  `json:"user_id"`
	RestaurantID  uint64  `json:"restaurant_id"`
	TableID       *uint64 `json:"table_id,omitempty"`
	Date          string  `json:"reservation_date"`
	Time          string  `json:"reservation_time"`
	PartySize     int     `json:"party_size"`
	Status        string  `json:"status"`
	OccurredAt    string  `json:"occurred_at"`
}
