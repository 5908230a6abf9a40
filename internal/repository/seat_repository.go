// Package repository contains data access logic for showtime seats.  This
// file implements the MySQL backed seat store.  Every mutation runs inside a
// transaction that row-locks exactly the requested seats with
// SELECT ... FOR UPDATE in ascending id order, so two requests that touch an
// overlapping seat set serialize while requests for disjoint seats (and for
// other showtimes) never wait on each other.
package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/cinema-seat-engine/internal/model"
)

const seatColumns = `id, showtime_id, row_label, seat_number, seat_type, price_cents, status,
       holder_id, booking_ref, expires_at, booked_at, version, created_at, updated_at`

// SeatRepo provides methods to work with showtime seats in the database.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// DB exposes the underlying sql.DB.
func (r *SeatRepo) DB() *sql.DB {
	return r.db
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(sc rowScanner) (model.Seat, error) {
	var (
		s        model.Seat
		seatType string
		status   string
		holder   sql.Null[uint64]
		ref      sql.NullString
		expires  sql.NullTime
		booked   sql.NullTime
	)
	if err := sc.Scan(
		&s.ID, &s.ShowtimeID, &s.RowLabel, &s.SeatNumber, &seatType, &s.PriceCents, &status,
		&holder, &ref, &expires, &booked, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return s, err
	}
	s.SeatType = model.SeatType(seatType)
	s.Status = model.SeatStatus(status)
	if holder.Valid {
		v := holder.V
		s.HolderID = &v
	}
	if ref.Valid {
		v := ref.String
		s.BookingRef = &v
	}
	if expires.Valid {
		v := expires.Time.UTC()
		s.ExpiresAt = &v
	}
	if booked.Valid {
		v := booked.Time.UTC()
		s.BookedAt = &v
	}
	return s, nil
}

func collectSeats(rows *sql.Rows) ([]model.Seat, error) {
	defer rows.Close()
	var result []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// CreateSeats inserts the full seat set of a showtime in a single multi-row
// INSERT inside one transaction.  It fails with ErrSeatsAlreadyInitialized
// when the showtime already has seats, either found up front or reported by
// the (showtime_id, row_label, seat_number) unique key when two
// initializations race.  The stored seats are returned ordered by id.
func (r *SeatRepo) CreateSeats(ctx context.Context, showtimeID uint64, seats []model.Seat) ([]model.Seat, error) {
	if len(seats) == 0 {
		return nil, ErrInvalidLayout
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin create seats", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats WHERE showtime_id = ?`, showtimeID).Scan(&existing); err != nil {
		return nil, classify("count seats", err)
	}
	if existing > 0 {
		return nil, ErrSeatsAlreadyInitialized
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO seats (showtime_id, row_label, seat_number, seat_type, price_cents, status, version, created_at, updated_at) VALUES `)
	args := make([]any, 0, len(seats)*9)
	for i, s := range seats {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, showtimeID, s.RowLabel, s.SeatNumber, string(s.SeatType), s.PriceCents,
			string(model.SeatAvailable), 0, s.CreatedAt.UTC(), s.CreatedAt.UTC())
	}
	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		if isDuplicateKey(err) {
			return nil, ErrSeatsAlreadyInitialized
		}
		return nil, classify("insert seats", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+seatColumns+` FROM seats WHERE showtime_id = ? ORDER BY id`, showtimeID)
	if err != nil {
		return nil, classify("reload seats", err)
	}
	created, err := collectSeats(rows)
	if err != nil {
		return nil, classify("reload seats", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit create seats", err)
	}
	committed = true
	return created, nil
}

// ListByShowtime returns the seats of a showtime ordered by id.  When
// onlyAvailable is true only AVAILABLE seats are returned.  Plain reads take
// no locks.
func (r *SeatRepo) ListByShowtime(ctx context.Context, showtimeID uint64, onlyAvailable bool) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats WHERE showtime_id = ?`
	args := []any{showtimeID}
	if onlyAvailable {
		q += ` AND status = ?`
		args = append(args, string(model.SeatAvailable))
	}
	q += ` ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify("list seats", err)
	}
	seats, err := collectSeats(rows)
	if err != nil {
		return nil, classify("list seats", err)
	}
	return seats, nil
}

// CountByStatus returns the number of seats per status for a showtime.
func (r *SeatRepo) CountByStatus(ctx context.Context, showtimeID uint64) (map[model.SeatStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM seats WHERE showtime_id = ? GROUP BY status`, showtimeID)
	if err != nil {
		return nil, classify("count seats", err)
	}
	defer rows.Close()
	counts := make(map[model.SeatStatus]int, 3)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, classify("count seats", err)
		}
		counts[model.SeatStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, classify("count seats", err)
	}
	return counts, nil
}

// Mutate is the atomic read-check-write unit of the store.  It opens a
// transaction, locks the requested seats in ascending id order, hands copies
// of them to fn and writes back every seat fn changed.  When fn returns an
// error nothing is written.  Seats that do not exist are simply absent from
// the slice passed to fn.  The returned slice holds the post-commit state of
// every seat passed to fn.
func (r *SeatRepo) Mutate(ctx context.Context, seatIDs []uint64, fn func(seats []*model.Seat) error) ([]model.Seat, error) {
	ids := sortedUnique(seatIDs)
	if len(ids) == 0 {
		return nil, ErrEmptySeatList
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin mutate", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT ` + seatColumns + ` FROM seats WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify("lock seats", err)
	}
	before, err := collectSeats(rows)
	if err != nil {
		return nil, classify("lock seats", err)
	}

	working := make([]*model.Seat, len(before))
	for i := range before {
		s := before[i]
		working[i] = &s
	}
	if err := fn(working); err != nil {
		return nil, err
	}

	const upd = `UPDATE seats
	             SET status = ?, holder_id = ?, booking_ref = ?, expires_at = ?, booked_at = ?, version = ?, updated_at = ?
	             WHERE id = ?`
	for i, s := range working {
		if s.StateEqual(before[i]) {
			continue
		}
		if _, err := tx.ExecContext(ctx, upd,
			string(s.Status), nullUint(s.HolderID), nullString(s.BookingRef),
			nullTime(s.ExpiresAt), nullTime(s.BookedAt), s.Version, s.UpdatedAt.UTC(), s.ID,
		); err != nil {
			return nil, classify("update seat", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit mutate", err)
	}
	committed = true

	out := make([]model.Seat, len(working))
	for i, s := range working {
		out[i] = *s
	}
	return out, nil
}

// ReleaseExpired returns every RESERVED seat whose hold expired strictly
// before now to AVAILABLE.  The status predicate is re-evaluated on each
// locked row, so a seat booked concurrently is never touched.
func (r *SeatRepo) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	const q = `UPDATE seats
	           SET status = ?, holder_id = NULL, booking_ref = NULL, expires_at = NULL, booked_at = NULL,
	               version = version + 1, updated_at = ?
	           WHERE status = ? AND expires_at < ?`
	res, err := r.db.ExecContext(ctx, q, string(model.SeatAvailable), now.UTC(), string(model.SeatReserved), now.UTC())
	if err != nil {
		return 0, classify("release expired", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("release expired", err)
	}
	return int(n), nil
}

func sortedUnique(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func nullUint(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}
