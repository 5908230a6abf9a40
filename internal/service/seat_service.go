// Package service implements the seat inventory and reservation engine:
// seat initialization from a room layout, the reservation allocator, the
// booking finalizer, the release paths and the expiry sweeper.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-seat-engine/internal/logger"
	"github.com/iliyamo/cinema-seat-engine/internal/model"
	"github.com/iliyamo/cinema-seat-engine/internal/queue"
	"github.com/iliyamo/cinema-seat-engine/internal/repository"
)

// Hold ttl bounds, in minutes.
const (
	DefaultHoldTTL = 15
	MinHoldTTL     = 5
	MaxHoldTTL     = 60
)

const publishTimeout = 5 * time.Second

// Column widths of the seats table.
const (
	MaxBookingRefLen = 64
	MaxRowLabelLen   = 8
	MaxSeatNumberLen = 16
)

// SeatStore is the seat record store.  Mutate is the only write path for
// existing seats: it must run fn and persist its changes as one atomic unit
// with respect to every other Mutate or ReleaseExpired touching any of the
// same seats.
type SeatStore interface {
	CreateSeats(ctx context.Context, showtimeID uint64, seats []model.Seat) ([]model.Seat, error)
	ListByShowtime(ctx context.Context, showtimeID uint64, onlyAvailable bool) ([]model.Seat, error)
	CountByStatus(ctx context.Context, showtimeID uint64) (map[model.SeatStatus]int, error)
	Mutate(ctx context.Context, seatIDs []uint64, fn func(seats []*model.Seat) error) ([]model.Seat, error)
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
}

// Catalog resolves showtimes, rooms and layouts owned by catalog management.
type Catalog interface {
	GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error)
	GetRoom(ctx context.Context, id uint64) (*model.Room, error)
	GetRoomLayout(ctx context.Context, id uint64) (*model.RoomLayout, error)
}

// EventPublisher delivers booking events downstream.
type EventPublisher interface {
	PublishSeatsBooked(ctx context.Context, ev queue.SeatsBookedEvent) error
}

// SeatSummary counts the seats of a showtime per status.
type SeatSummary struct {
	ShowtimeID uint64 `json:"showtime_id"`
	Total      int    `json:"total"`
	Available  int    `json:"available"`
	Reserved   int    `json:"reserved"`
	Booked     int    `json:"booked"`
}

// SeatService coordinates the seat store and the catalog.
type SeatService struct {
	store     SeatStore
	catalog   Catalog
	publisher EventPublisher
	log       logger.Logger
	now       func() time.Time
}

// Option configures a SeatService.
type Option func(*SeatService)

// WithClock replaces time.Now.  Tests use it to move time forward.
func WithClock(now func() time.Time) Option {
	return func(s *SeatService) { s.now = now }
}

// WithPublisher enables seats.booked events.
func WithPublisher(p EventPublisher) Option {
	return func(s *SeatService) { s.publisher = p }
}

// NewSeatService constructs a SeatService.  store, catalog and log must be
// non-nil.
func NewSeatService(store SeatStore, catalog Catalog, log logger.Logger, opts ...Option) *SeatService {
	if store == nil || catalog == nil || log == nil {
		panic("nil dependency passed to NewSeatService")
	}
	s := &SeatService{
		store:   store,
		catalog: catalog,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitializeSeats materializes the seat set of a showtime from its room's
// layout template.  Every seat starts AVAILABLE and is priced from the
// showtime's price table as it is right now; later price edits do not
// affect existing seats.  Either the whole set is created or nothing is.
func (s *SeatService) InitializeSeats(ctx context.Context, showtimeID uint64) ([]model.Seat, error) {
	if showtimeID == 0 {
		return nil, repository.ErrShowtimeNotFound
	}
	st, err := s.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	room, err := s.catalog.GetRoom(ctx, st.RoomID)
	if err != nil {
		return nil, err
	}
	layout, err := s.catalog.GetRoomLayout(ctx, room.LayoutID)
	if err != nil {
		return nil, err
	}
	seats, err := buildSeats(st, layout, s.now().UTC())
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateSeats(ctx, showtimeID, seats)
	if err != nil {
		return nil, err
	}
	s.log.Info("seats initialized", "showtime_id", showtimeID, "room_id", room.ID, "count", len(created))
	return created, nil
}

func buildSeats(st *model.Showtime, layout *model.RoomLayout, now time.Time) ([]model.Seat, error) {
	if layout.SeatCount() == 0 {
		return nil, fmt.Errorf("%w: layout %d has no seats", repository.ErrInvalidLayout, layout.ID)
	}
	seen := make(map[string]struct{}, layout.SeatCount())
	seats := make([]model.Seat, 0, layout.SeatCount())
	for _, row := range layout.Rows {
		label := strings.TrimSpace(row.Row)
		if label == "" {
			return nil, fmt.Errorf("%w: row without label", repository.ErrInvalidLayout)
		}
		if len(label) > MaxRowLabelLen {
			return nil, fmt.Errorf("%w: row label %q longer than %d bytes", repository.ErrInvalidLayout, label, MaxRowLabelLen)
		}
		for _, ls := range row.Seats {
			number := strings.TrimSpace(ls.Number)
			if number == "" {
				return nil, fmt.Errorf("%w: row %s has a seat without number", repository.ErrInvalidLayout, label)
			}
			if len(number) > MaxSeatNumberLen {
				return nil, fmt.Errorf("%w: seat number %q longer than %d bytes", repository.ErrInvalidLayout, number, MaxSeatNumberLen)
			}
			key := label + "\x00" + number
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("%w: duplicate seat %s%s", repository.ErrInvalidLayout, label, number)
			}
			seen[key] = struct{}{}
			seatType := model.ParseSeatType(ls.Type)
			seats = append(seats, model.Seat{
				ShowtimeID: st.ID,
				RowLabel:   label,
				SeatNumber: number,
				SeatType:   seatType,
				PriceCents: st.Pricing.PriceFor(seatType),
				Status:     model.SeatAvailable,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
	}
	return seats, nil
}

// Reserve holds every requested seat for userID, or none of them.  The
// request fails with a *repository.SeatConflictError wrapping
// ErrSeatsUnavailable when any seat is not AVAILABLE.  ttlMinutes of zero
// selects DefaultHoldTTL.
func (s *SeatService) Reserve(ctx context.Context, showtimeID uint64, seatIDs []uint64, userID uint64, ttlMinutes int) ([]model.Seat, error) {
	ids, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}
	ttl, err := holdTTL(ttlMinutes)
	if err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", repository.ErrInvalidInput)
	}
	var expiresAt time.Time
	seats, err := s.store.Mutate(ctx, ids, func(seats []*model.Seat) error {
		if err := checkMembership(showtimeID, ids, seats); err != nil {
			return err
		}
		// The clock is read once the seat locks are held.
		now := s.now().UTC()
		expiresAt = now.Add(ttl)
		var conflicts []uint64
		for _, st := range seats {
			if st.Status != model.SeatAvailable {
				conflicts = append(conflicts, st.ID)
			}
		}
		if len(conflicts) > 0 {
			return repository.NewSeatConflictError(repository.ErrSeatsUnavailable, conflicts)
		}
		for _, st := range seats {
			st.Reserve(userID, expiresAt, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("seats reserved", "showtime_id", showtimeID, "user_id", userID, "seat_ids", ids, "expires_at", expiresAt)
	return seats, nil
}

// Book sells every requested seat to userID under bookingRef, or none of
// them.  A seat is eligible when it is AVAILABLE or RESERVED by userID with
// an unexpired hold; anything else fails the request with a
// *repository.SeatConflictError wrapping ErrSeatsNotBookable.  Eligibility
// is checked and written in the same atomic unit, so a hold cannot expire
// between the two.
func (s *SeatService) Book(ctx context.Context, showtimeID uint64, seatIDs []uint64, userID uint64, bookingRef string) ([]model.Seat, error) {
	ids, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}
	bookingRef = strings.TrimSpace(bookingRef)
	if bookingRef == "" {
		return nil, repository.ErrMissingBookingRef
	}
	if len(bookingRef) > MaxBookingRefLen {
		return nil, repository.ErrBookingRefTooLong
	}
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", repository.ErrInvalidInput)
	}
	var now time.Time
	seats, err := s.store.Mutate(ctx, ids, func(seats []*model.Seat) error {
		if err := checkMembership(showtimeID, ids, seats); err != nil {
			return err
		}
		now = s.now().UTC()
		var conflicts []uint64
		for _, st := range seats {
			if st.Status != model.SeatAvailable && !st.IsHoldActive(userID, now) {
				conflicts = append(conflicts, st.ID)
			}
		}
		if len(conflicts) > 0 {
			return repository.NewSeatConflictError(repository.ErrSeatsNotBookable, conflicts)
		}
		for _, st := range seats {
			st.Book(userID, bookingRef, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("seats booked", "showtime_id", showtimeID, "user_id", userID, "booking_ref", bookingRef, "seat_ids", ids)
	s.publishBooked(ctx, showtimeID, userID, bookingRef, seats, now)
	return seats, nil
}

// publishBooked emits the seats.booked event.  The booking is already
// committed, so a failure is only logged.
func (s *SeatService) publishBooked(ctx context.Context, showtimeID, userID uint64, bookingRef string, seats []model.Seat, now time.Time) {
	if s.publisher == nil {
		return
	}
	ev := queue.SeatsBookedEvent{
		MessageID:  uuid.NewString(),
		ShowtimeID: showtimeID,
		UserID:     userID,
		BookingRef: bookingRef,
		BookedAt:   now.Format(time.RFC3339),
	}
	for _, st := range seats {
		ev.SeatIDs = append(ev.SeatIDs, st.ID)
		ev.SeatLabels = append(ev.SeatLabels, st.Label())
		ev.TotalAmountCents += uint64(st.PriceCents)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishSeatsBooked(pctx, ev); err != nil {
		s.log.Warn("failed to publish seats.booked event", "booking_ref", bookingRef, "message_id", ev.MessageID, "error", err)
	}
}

// Release returns the requested seats of a showtime that are currently
// RESERVED to AVAILABLE.  Seats that are AVAILABLE, BOOKED, unknown or part
// of another showtime are left untouched, so retries are harmless.  No
// holder check is made here; see ReleaseHeldBy.
func (s *SeatService) Release(ctx context.Context, showtimeID uint64, seatIDs []uint64) (int, error) {
	return s.release(ctx, showtimeID, seatIDs, func(st *model.Seat) bool { return true })
}

// ReleaseHeldBy is Release restricted to seats held by userID.
func (s *SeatService) ReleaseHeldBy(ctx context.Context, showtimeID uint64, seatIDs []uint64, userID uint64) (int, error) {
	return s.release(ctx, showtimeID, seatIDs, func(st *model.Seat) bool {
		return st.HolderID != nil && *st.HolderID == userID
	})
}

func (s *SeatService) release(ctx context.Context, showtimeID uint64, seatIDs []uint64, allowed func(*model.Seat) bool) (int, error) {
	ids, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return 0, err
	}
	released := 0
	_, err = s.store.Mutate(ctx, ids, func(seats []*model.Seat) error {
		released = 0
		now := s.now().UTC()
		for _, st := range seats {
			if st.ShowtimeID != showtimeID || st.Status != model.SeatReserved || !allowed(st) {
				continue
			}
			st.Release(now)
			released++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if released > 0 {
		s.log.Info("seats released", "showtime_id", showtimeID, "count", released)
	}
	return released, nil
}

// ReleaseExpired runs a single sweep pass and reports how many holds it
// reclaimed.
func (s *SeatService) ReleaseExpired(ctx context.Context) (int, error) {
	return s.store.ReleaseExpired(ctx, s.now().UTC())
}

// ListSeats returns the seats of an existing showtime, optionally only the
// AVAILABLE ones.
func (s *SeatService) ListSeats(ctx context.Context, showtimeID uint64, onlyAvailable bool) ([]model.Seat, error) {
	if _, err := s.showtime(ctx, showtimeID); err != nil {
		return nil, err
	}
	seats, err := s.store.ListByShowtime(ctx, showtimeID, onlyAvailable)
	if err != nil {
		return nil, err
	}
	if seats == nil {
		seats = []model.Seat{}
	}
	return seats, nil
}

// GetPricing returns the current price table of a showtime.
func (s *SeatService) GetPricing(ctx context.Context, showtimeID uint64) (model.PriceTable, error) {
	st, err := s.showtime(ctx, showtimeID)
	if err != nil {
		return model.PriceTable{}, err
	}
	return st.Pricing, nil
}

// SeatSummary counts the seats of a showtime per status.
func (s *SeatService) SeatSummary(ctx context.Context, showtimeID uint64) (SeatSummary, error) {
	if _, err := s.showtime(ctx, showtimeID); err != nil {
		return SeatSummary{}, err
	}
	counts, err := s.store.CountByStatus(ctx, showtimeID)
	if err != nil {
		return SeatSummary{}, err
	}
	sum := SeatSummary{
		ShowtimeID: showtimeID,
		Available:  counts[model.SeatAvailable],
		Reserved:   counts[model.SeatReserved],
		Booked:     counts[model.SeatBooked],
	}
	sum.Total = sum.Available + sum.Reserved + sum.Booked
	return sum, nil
}

func (s *SeatService) showtime(ctx context.Context, showtimeID uint64) (*model.Showtime, error) {
	if showtimeID == 0 {
		return nil, repository.ErrShowtimeNotFound
	}
	return s.catalog.GetShowtime(ctx, showtimeID)
}

// normalizeSeatIDs rejects empty lists and zero ids and collapses
// duplicates.  The result is sorted ascending.
func normalizeSeatIDs(seatIDs []uint64) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, repository.ErrEmptySeatList
	}
	seen := make(map[uint64]struct{}, len(seatIDs))
	ids := make([]uint64, 0, len(seatIDs))
	for _, id := range seatIDs {
		if id == 0 {
			return nil, repository.ErrInvalidSeatID
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func holdTTL(minutes int) (time.Duration, error) {
	if minutes == 0 {
		minutes = DefaultHoldTTL
	}
	if minutes < MinHoldTTL || minutes > MaxHoldTTL {
		return 0, repository.ErrInvalidTTL
	}
	return time.Duration(minutes) * time.Minute, nil
}

// checkMembership verifies that every requested id was found and belongs
// to showtimeID.
func checkMembership(showtimeID uint64, ids []uint64, seats []*model.Seat) error {
	if len(seats) != len(ids) {
		found := make(map[uint64]struct{}, len(seats))
		for _, st := range seats {
			found[st.ID] = struct{}{}
		}
		var missing []uint64
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		return &repository.SeatNotFoundError{SeatIDs: missing}
	}
	var foreign []uint64
	for _, st := range seats {
		if st.ShowtimeID != showtimeID {
			foreign = append(foreign, st.ID)
		}
	}
	if len(foreign) > 0 {
		return fmt.Errorf("%w: %v", repository.ErrSeatShowtimeMismatch, foreign)
	}
	return nil
}

// IsConflict reports whether err is a seat conflict and returns the
// conflicting seat ids when known.
func IsConflict(err error) ([]uint64, bool) {
	var ce *repository.SeatConflictError
	if errors.As(err, &ce) {
		return ce.SeatIDs, true
	}
	return nil, errors.Is(err, repository.ErrConflict)
}
