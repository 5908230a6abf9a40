package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/cinema-seat-engine/internal/model"
)

// seatEntry guards one seat.  The entry lock is the unit of mutual
// exclusion for state transitions.
type seatEntry struct {
	mu   sync.RWMutex
	seat model.Seat
}

// MemorySeatStore is an in-process seat store.  The index lock only guards
// the maps; seat state is guarded by the per-seat entry locks, which
// mutations acquire in ascending seat id order.  Operations on disjoint seat
// sets therefore run in parallel.
type MemorySeatStore struct {
	mu         sync.RWMutex
	seats      map[uint64]*seatEntry
	byShowtime map[uint64][]uint64
	nextID     atomic.Uint64
}

// NewMemorySeatStore returns an empty store.
func NewMemorySeatStore() *MemorySeatStore {
	return &MemorySeatStore{
		seats:      make(map[uint64]*seatEntry),
		byShowtime: make(map[uint64][]uint64),
	}
}

// CreateSeats stores the seat set of a showtime and assigns ids.  The whole
// set is published under the index lock, so readers observe either none or
// all of it.
func (m *MemorySeatStore) CreateSeats(ctx context.Context, showtimeID uint64, seats []model.Seat) ([]model.Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient("create seats", err)
	}
	if len(seats) == 0 {
		return nil, ErrInvalidLayout
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.byShowtime[showtimeID]) > 0 {
		return nil, ErrSeatsAlreadyInitialized
	}
	created := make([]model.Seat, len(seats))
	ids := make([]uint64, len(seats))
	for i, s := range seats {
		s.ID = m.nextID.Add(1)
		s.ShowtimeID = showtimeID
		s.Status = model.SeatAvailable
		s.HolderID, s.BookingRef, s.ExpiresAt, s.BookedAt = nil, nil, nil, nil
		s.Version = 0
		s.UpdatedAt = s.CreatedAt
		created[i] = s
		ids[i] = s.ID
		m.seats[s.ID] = &seatEntry{seat: s}
	}
	m.byShowtime[showtimeID] = ids
	return created, nil
}

// entries returns the entries for ids in ascending id order, skipping
// unknown ids.
func (m *MemorySeatStore) entries(ids []uint64) []*seatEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*seatEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.seats[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemorySeatStore) showtimeEntries(showtimeID uint64) []*seatEntry {
	m.mu.RLock()
	ids := m.byShowtime[showtimeID]
	m.mu.RUnlock()
	return m.entries(ids)
}

// ListByShowtime returns the seats of a showtime ordered by id.
func (m *MemorySeatStore) ListByShowtime(ctx context.Context, showtimeID uint64, onlyAvailable bool) ([]model.Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, transient("list seats", err)
	}
	var out []model.Seat
	for _, e := range m.showtimeEntries(showtimeID) {
		e.mu.RLock()
		s := e.seat
		e.mu.RUnlock()
		if onlyAvailable && s.Status != model.SeatAvailable {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// CountByStatus returns the number of seats per status for a showtime.
func (m *MemorySeatStore) CountByStatus(ctx context.Context, showtimeID uint64) (map[model.SeatStatus]int, error) {
	seats, err := m.ListByShowtime(ctx, showtimeID, false)
	if err != nil {
		return nil, err
	}
	counts := make(map[model.SeatStatus]int, 3)
	for _, s := range seats {
		counts[s.Status]++
	}
	return counts, nil
}

// Mutate locks the requested seats in ascending id order, runs fn on copies
// and stores the copies back only when fn succeeds.
func (m *MemorySeatStore) Mutate(ctx context.Context, seatIDs []uint64, fn func(seats []*model.Seat) error) ([]model.Seat, error) {
	ids := sortedUnique(seatIDs)
	if len(ids) == 0 {
		return nil, ErrEmptySeatList
	}
	if err := ctx.Err(); err != nil {
		return nil, transient("mutate", err)
	}
	locked := m.entries(ids)
	for _, e := range locked {
		e.mu.Lock()
	}
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].mu.Unlock()
		}
	}()

	working := make([]*model.Seat, len(locked))
	for i, e := range locked {
		s := e.seat
		working[i] = &s
	}
	if err := fn(working); err != nil {
		return nil, err
	}
	out := make([]model.Seat, len(working))
	for i, s := range working {
		locked[i].seat = *s
		out[i] = *s
	}
	return out, nil
}

// ReleaseExpired reverts every RESERVED seat whose hold expired strictly
// before now.  Each seat is checked and released under its own lock.
func (m *MemorySeatStore) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, transient("release expired", err)
	}
	m.mu.RLock()
	all := make([]uint64, 0, len(m.seats))
	for id := range m.seats {
		all = append(all, id)
	}
	m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	released := 0
	for _, e := range m.entries(all) {
		e.mu.Lock()
		if e.seat.IsHoldExpired(now) {
			e.seat.Release(now)
			released++
		}
		e.mu.Unlock()
	}
	return released, nil
}
