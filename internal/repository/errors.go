// Package repository defines the error taxonomy shared by the seat stores,
// the catalog readers and the service layer.  Each failure class is a
// sentinel; specific failures wrap their class with %w so that handlers can
// translate them with errors.Is without knowing every individual case.
// For example, ErrSeatsUnavailable is a Conflict and a missing showtime is a
// NotFound, which lets a client tell "seat taken" from "seat does not exist".
package repository

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Failure classes.  Handlers map these onto HTTP status codes.
var (
	// ErrNotFound is returned when a showtime, room, layout or seat is missing.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when the requested seats are not in the state
	// required by the operation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyInitialized is returned when seats already exist for a showtime.
	ErrAlreadyInitialized = errors.New("already initialized")
	// ErrTransient signals that storage was unavailable.  Callers may retry.
	ErrTransient = errors.New("storage unavailable")
)

// Specific failures.
var (
	ErrShowtimeNotFound        = fmt.Errorf("showtime %w", ErrNotFound)
	ErrRoomNotFound            = fmt.Errorf("room %w", ErrNotFound)
	ErrLayoutNotFound          = fmt.Errorf("layout %w", ErrNotFound)
	ErrSeatNotFound            = fmt.Errorf("seat %w", ErrNotFound)
	ErrSeatsUnavailable        = fmt.Errorf("seats unavailable: %w", ErrConflict)
	ErrSeatsNotBookable        = fmt.Errorf("seats not bookable: %w", ErrConflict)
	ErrSeatsAlreadyInitialized = fmt.Errorf("seats %w", ErrAlreadyInitialized)
	ErrEmptySeatList           = fmt.Errorf("%w: seat_ids is required", ErrInvalidInput)
	ErrInvalidSeatID           = fmt.Errorf("%w: seat id must be positive", ErrInvalidInput)
	ErrInvalidTTL              = fmt.Errorf("%w: ttl must be between 5 and 60 minutes", ErrInvalidInput)
	ErrSeatShowtimeMismatch    = fmt.Errorf("%w: seat does not belong to showtime", ErrInvalidInput)
	ErrInvalidLayout           = fmt.Errorf("%w: invalid seat layout", ErrInvalidInput)
	ErrMissingBookingRef       = fmt.Errorf("%w: booking_ref is required", ErrInvalidInput)
	ErrBookingRefTooLong       = fmt.Errorf("%w: booking_ref is too long", ErrInvalidInput)
)

// SeatConflictError names the seats that blocked a reserve or book request.
// It unwraps to the specific conflict sentinel.
type SeatConflictError struct {
	Err     error
	SeatIDs []uint64
}

// NewSeatConflictError returns a conflict error for the given seats; ids are
// reported in ascending order.
func NewSeatConflictError(kind error, seatIDs []uint64) *SeatConflictError {
	ids := append([]uint64(nil), seatIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &SeatConflictError{Err: kind, SeatIDs: ids}
}

func (e *SeatConflictError) Error() string {
	parts := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		parts[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%v [%s]", e.Err, strings.Join(parts, ","))
}

func (e *SeatConflictError) Unwrap() error { return e.Err }

// SeatNotFoundError names seat ids that do not exist.
type SeatNotFoundError struct {
	SeatIDs []uint64
}

func (e *SeatNotFoundError) Error() string {
	return fmt.Sprintf("%v: %v", ErrSeatNotFound, e.SeatIDs)
}

func (e *SeatNotFoundError) Unwrap() error { return ErrSeatNotFound }

// transient marks err as a storage fault while keeping the original cause
// reachable through errors.Is/As.
func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}
