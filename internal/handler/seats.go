package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-engine/internal/logger"
	"github.com/iliyamo/cinema-seat-engine/internal/middleware"
	"github.com/iliyamo/cinema-seat-engine/internal/model"
	"github.com/iliyamo/cinema-seat-engine/internal/service"
)

// SeatService is the subset of service.SeatService the HTTP layer uses.
type SeatService interface {
	InitializeSeats(ctx context.Context, showtimeID uint64) ([]model.Seat, error)
	Reserve(ctx context.Context, showtimeID uint64, seatIDs []uint64, userID uint64, ttlMinutes int) ([]model.Seat, error)
	Book(ctx context.Context, showtimeID uint64, seatIDs []uint64, userID uint64, bookingRef string) ([]model.Seat, error)
	Release(ctx context.Context, showtimeID uint64, seatIDs []uint64) (int, error)
	ReleaseHeldBy(ctx context.Context, showtimeID uint64, seatIDs []uint64, userID uint64) (int, error)
	ListSeats(ctx context.Context, showtimeID uint64, onlyAvailable bool) ([]model.Seat, error)
	GetPricing(ctx context.Context, showtimeID uint64) (model.PriceTable, error)
	SeatSummary(ctx context.Context, showtimeID uint64) (service.SeatSummary, error)
}

// SeatHandler exposes the seat engine over HTTP.  Mutating endpoints
// assume JWTAuth has stored the caller's identity in the context.
type SeatHandler struct {
	Seats SeatService
	Log   logger.Logger
}

// NewSeatHandler constructs a SeatHandler.  Both dependencies must be
// non-nil.
func NewSeatHandler(seats SeatService, log logger.Logger) *SeatHandler {
	if seats == nil || log == nil {
		panic("nil dependency passed to NewSeatHandler")
	}
	return &SeatHandler{Seats: seats, Log: log}
}

type reserveRequest struct {
	SeatIDs          []uint64 `json:"seat_ids"`
	ExpiresInMinutes int      `json:"expires_in_minutes"`
}

type bookRequest struct {
	SeatIDs    []uint64 `json:"seat_ids"`
	BookingRef string   `json:"booking_ref"`
}

type releaseRequest struct {
	SeatIDs []uint64 `json:"seat_ids"`
}

func showtimeParam(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// ListSeats handles GET /v1/showtimes/:id/seats.  ?available=true limits
// the result to AVAILABLE seats.
func (h *SeatHandler) ListSeats(c echo.Context) error {
	onlyAvailable, _ := strconv.ParseBool(c.QueryParam("available"))
	return h.listSeats(c, onlyAvailable)
}

// ListAvailableSeats handles GET /v1/showtimes/:id/seats/available.
func (h *SeatHandler) ListAvailableSeats(c echo.Context) error {
	return h.listSeats(c, true)
}

func (h *SeatHandler) listSeats(c echo.Context, onlyAvailable bool) error {
	showtimeID, ok := showtimeParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	seats, err := h.Seats.ListSeats(c.Request().Context(), showtimeID, onlyAvailable)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": seats})
}

// GetPricing handles GET /v1/showtimes/:id/pricing.
func (h *SeatHandler) GetPricing(c echo.Context) error {
	showtimeID, ok := showtimeParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	pricing, err := h.Seats.GetPricing(c.Request().Context(), showtimeID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"showtime_id": showtimeID,
		"pricing":     pricing,
	})
}

// Summary handles GET /v1/showtimes/:id/seats/summary.
func (h *SeatHandler) Summary(c echo.Context) error {
	showtimeID, ok := showtimeParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	sum, err := h.Seats.SeatSummary(c.Request().Context(), showtimeID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// Reserve handles POST /v1/showtimes/:id/seats/reserve.  The body is
// {"seat_ids": [...], "expires_in_minutes": 15}; the ttl is optional.  All
// seats are held or none are; a 409 lists the seats that were not
// AVAILABLE.
func (h *SeatHandler) Reserve(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := showtimeParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body reserveRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	seats, err := h.Seats.Reserve(c.Request().Context(), showtimeID, body.SeatIDs, userID, body.ExpiresInMinutes)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	resp := echo.Map{"items": seats}
	if len(seats) > 0 && seats[0].ExpiresAt != nil {
		resp["expires_at"] = seats[0].ExpiresAt.Format(time.RFC3339)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Book handles POST /v1/showtimes/:id/seats/book.  The body is
// {"seat_ids": [...], "booking_ref": "..."}.  Seats may be AVAILABLE or
// held by the caller.
func (h *SeatHandler) Book(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := showtimeParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body bookRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	seats, err := h.Seats.Book(c.Request().Context(), showtimeID, body.SeatIDs, userID, body.BookingRef)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var total uint64
	var ref string
	for _, s := range seats {
		total += uint64(s.PriceCents)
		if s.BookingRef != nil {
			ref = *s.BookingRef
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"items":              seats,
		"booking_ref":        ref,
		"total_amount_cents": total,
	})
}

// Release handles POST /v1/showtimes/:id/seats/release.  Customers can only
// release their own holds; administrators can release any hold.  Seats
// that are not held are ignored, so the call is safe to retry.
func (h *SeatHandler) Release(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := showtimeParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body releaseRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ctx := c.Request().Context()
	var (
		n   int
		err error
	)
	if middleware.Role(c) == middleware.RoleAdmin {
		n, err = h.Seats.Release(ctx, showtimeID, body.SeatIDs)
	} else {
		n, err = h.Seats.ReleaseHeldBy(ctx, showtimeID, body.SeatIDs, userID)
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}

// InitializeSeats handles POST /v1/admin/showtimes/:id/seats.  It
// materializes the seat set from the room layout; a second call answers 409.
func (h *SeatHandler) InitializeSeats(c echo.Context) error {
	showtimeID, ok := showtimeParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	seats, err := h.Seats.InitializeSeats(c.Request().Context(), showtimeID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"count": len(seats),
		"items": seats,
	})
}
