package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-seat-engine/internal/model"
)

// CatalogRepo reads showtimes, rooms and room layouts owned by catalog
// management.  It never writes to those tables.
type CatalogRepo struct {
	db *sql.DB
}

// NewCatalogRepo constructs a CatalogRepo with the given DB handle.
func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// GetShowtime retrieves a showtime and its price table.  It returns
// ErrShowtimeNotFound if there is no matching row.
func (r *CatalogRepo) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, movie_id, room_id, starts_at, discount_id,
	                  price_regular_cents, price_vip_cents, price_couple_cents, status
	           FROM showtimes WHERE id = ?`
	var (
		s        model.Showtime
		discount sql.Null[uint64]
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.MovieID, &s.RoomID, &s.StartsAt, &discount,
		&s.Pricing.Regular, &s.Pricing.VIP, &s.Pricing.Couple, &s.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowtimeNotFound
		}
		return nil, classify("get showtime", err)
	}
	if discount.Valid {
		v := discount.V
		s.DiscountID = &v
	}
	s.StartsAt = s.StartsAt.UTC()
	return &s, nil
}

// GetRoom retrieves a room by id.  It returns ErrRoomNotFound if there is no
// matching row.
func (r *CatalogRepo) GetRoom(ctx context.Context, id uint64) (*model.Room, error) {
	const q = `SELECT id, name, layout_id FROM rooms WHERE id = ?`
	var room model.Room
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&room.ID, &room.Name, &room.LayoutID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, classify("get room", err)
	}
	return &room, nil
}

// GetRoomLayout retrieves and decodes a seat layout template.  It returns
// ErrLayoutNotFound if there is no matching row and ErrInvalidLayout when
// the stored document cannot be decoded.
func (r *CatalogRepo) GetRoomLayout(ctx context.Context, id uint64) (*model.RoomLayout, error) {
	const q = `SELECT id, seat_layout FROM room_layouts WHERE id = ?`
	var (
		layout model.RoomLayout
		raw    []byte
	)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&layout.ID, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLayoutNotFound
		}
		return nil, classify("get room layout", err)
	}
	rows, err := model.ParseSeatLayout(raw)
	if err != nil {
		return nil, errors.Join(ErrInvalidLayout, err)
	}
	layout.Rows = rows
	return &layout, nil
}
