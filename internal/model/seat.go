package model

import (
	"fmt"
	"time"
)

// SeatType classifies a seat for pricing.  The set is fixed by the room
// layout templates: regular, vip and couple.
type SeatType string

const (
	SeatTypeRegular SeatType = "regular"
	SeatTypeVIP     SeatType = "vip"
	SeatTypeCouple  SeatType = "couple"
)

// ParseSeatType maps a layout type string onto a SeatType.  Unknown or empty
// values are treated as regular seats.
func ParseSeatType(s string) SeatType {
	switch SeatType(s) {
	case SeatTypeVIP:
		return SeatTypeVIP
	case SeatTypeCouple:
		return SeatTypeCouple
	default:
		return SeatTypeRegular
	}
}

// SeatStatus is the lifecycle state of a seat within one showtime.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatReserved  SeatStatus = "RESERVED"
	SeatBooked    SeatStatus = "BOOKED"
)

// Seat is one bookable unit of a showtime.  Seats are created once when the
// showtime's seat set is materialized and are never reassigned to another
// showtime.  This struct corresponds to a row in the `seats` table.
//
// Fields:
//
//	ID         – primary key identifier.
//	ShowtimeID – owning showtime.
//	RowLabel   – row designation from the layout (e.g. A, B, AA).
//	SeatNumber – seat number within the row as written in the layout.
//	SeatType   – regular, vip or couple.
//	PriceCents – price copied from the showtime price table at creation.
//	Status     – AVAILABLE, RESERVED or BOOKED.
//	HolderID   – user holding (RESERVED) or owning (BOOKED) the seat.
//	BookingRef – booking reference, set only while BOOKED.
//	ExpiresAt  – hold expiry, set only while RESERVED.
//	BookedAt   – time of sale, set only while BOOKED.
//	Version    – incremented on every state change.
type Seat struct {
	ID         uint64     `json:"id"`
	ShowtimeID uint64     `json:"showtime_id"`
	RowLabel   string     `json:"row"`
	SeatNumber string     `json:"seat_number"`
	SeatType   SeatType   `json:"seat_type"`
	PriceCents uint32     `json:"price_cents"`
	Status     SeatStatus `json:"status"`
	HolderID   *uint64    `json:"holder_id,omitempty"`
	BookingRef *string    `json:"booking_ref,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	BookedAt   *time.Time `json:"booked_at,omitempty"`
	Version    uint32     `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Label returns the human readable seat label, e.g. "A1".
func (s Seat) Label() string {
	return fmt.Sprintf("%s%s", s.RowLabel, s.SeatNumber)
}

// IsHoldActive reports whether the seat is RESERVED by userID and the hold
// has not yet expired at now.
func (s Seat) IsHoldActive(userID uint64, now time.Time) bool {
	if s.Status != SeatReserved || s.HolderID == nil || s.ExpiresAt == nil {
		return false
	}
	return *s.HolderID == userID && s.ExpiresAt.After(now)
}

// IsHoldExpired reports whether the seat is RESERVED with an expiry strictly
// before now.
func (s Seat) IsHoldExpired(now time.Time) bool {
	return s.Status == SeatReserved && s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// Reserve moves the seat into RESERVED for userID until expiresAt.
func (s *Seat) Reserve(userID uint64, expiresAt, now time.Time) {
	holder := userID
	exp := expiresAt.UTC()
	s.Status = SeatReserved
	s.HolderID = &holder
	s.ExpiresAt = &exp
	s.BookingRef = nil
	s.BookedAt = nil
	s.touch(now)
}

// Book moves the seat into BOOKED for userID under bookingRef.  Any hold
// expiry is cleared.
func (s *Seat) Book(userID uint64, bookingRef string, now time.Time) {
	holder := userID
	ref := bookingRef
	at := now.UTC()
	s.Status = SeatBooked
	s.HolderID = &holder
	s.BookingRef = &ref
	s.BookedAt = &at
	s.ExpiresAt = nil
	s.touch(now)
}

// Release returns a RESERVED seat to AVAILABLE and clears the holder and
// expiry.
func (s *Seat) Release(now time.Time) {
	s.Status = SeatAvailable
	s.HolderID = nil
	s.ExpiresAt = nil
	s.BookingRef = nil
	s.BookedAt = nil
	s.touch(now)
}

func (s *Seat) touch(now time.Time) {
	s.Version++
	s.UpdatedAt = now.UTC()
}

// StateEqual reports whether two snapshots of the same seat carry identical
// state and holder metadata.
func (s Seat) StateEqual(o Seat) bool {
	return s.Status == o.Status &&
		eqUint(s.HolderID, o.HolderID) &&
		eqString(s.BookingRef, o.BookingRef) &&
		eqTime(s.ExpiresAt, o.ExpiresAt) &&
		eqTime(s.BookedAt, o.BookedAt)
}

func eqUint(a, b *uint64) bool {
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

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
