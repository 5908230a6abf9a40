package model

import "time"

// PriceTable holds the per-seat-type prices of a showtime in cents.
type PriceTable struct {
	Regular uint32 `json:"regular"`
	VIP     uint32 `json:"vip"`
	Couple  uint32 `json:"couple"`
}

// PriceFor returns the price for the given seat type.
func (p PriceTable) PriceFor(t SeatType) uint32 {
	switch t {
	case SeatTypeVIP:
		return p.VIP
	case SeatTypeCouple:
		return p.Couple
	default:
		return p.Regular
	}
}

// Showtime represents a scheduled screening of a movie in a room.  It is
// owned by catalog management; the seat engine only reads it to resolve the
// room and the price table.  Corresponds to a row in the `showtimes` table.
//
// Fields:
//
//	ID         – primary key identifier.
//	MovieID    – movie being screened.
//	RoomID     – room where the screening takes place.
//	StartsAt   – scheduled start time (UTC).
//	DiscountID – optional discount applied to the screening.
//	Pricing    – price per seat type.
//	Status     – catalog status (active, cancelled, ...).
type Showtime struct {
	ID         uint64     `json:"id"`
	MovieID    uint64     `json:"movie_id"`
	RoomID     uint64     `json:"room_id"`
	StartsAt   time.Time  `json:"starts_at"`
	DiscountID *uint64    `json:"discount_id,omitempty"`
	Pricing    PriceTable `json:"pricing"`
	Status     string     `json:"status"`
}
