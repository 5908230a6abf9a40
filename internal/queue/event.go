// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the booking log consumer.
package queue

// SeatsBookedQueue is the durable queue that receives SeatsBookedEvent
// messages.
const SeatsBookedQueue = "seats.booked"

// SeatsBookedEvent is published after a booking commits.  It carries enough
// information for downstream consumers to log, notify or trigger analytics
// without querying the seat store.
type SeatsBookedEvent struct {
	MessageID        string   `json:"message_id"`
	ShowtimeID       uint64   `json:"showtime_id"`
	UserID           uint64   `json:"user_id"`
	BookingRef       string   `json:"booking_ref"`
	SeatIDs          []uint64 `json:"seat_ids"`
	SeatLabels       []string `json:"seats"`
	TotalAmountCents uint64   `json:"total_amount_cents"`
	BookedAt         string   `json:"booked_at"`
}
