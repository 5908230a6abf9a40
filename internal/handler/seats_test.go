package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-engine/internal/handler"
	"github.com/iliyamo/cinema-seat-engine/internal/logger"
	"github.com/iliyamo/cinema-seat-engine/internal/middleware"
	"github.com/iliyamo/cinema-seat-engine/internal/model"
	"github.com/iliyamo/cinema-seat-engine/internal/repository"
	"github.com/iliyamo/cinema-seat-engine/internal/router"
	"github.com/iliyamo/cinema-seat-engine/internal/service"
	"github.com/iliyamo/cinema-seat-engine/internal/utils"
)

const secret = "handler-test-secret"

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	t.Helper()
	catalog := repository.NewMemoryCatalog()
	catalog.Apply(repository.CatalogSeed{
		Showtimes: []model.Showtime{{ID: 1, RoomID: 1, Pricing: model.PriceTable{Regular: 800, VIP: 1500}}},
		Rooms:     []model.Room{{ID: 1, LayoutID: 1}},
		Layouts: []model.RoomLayout{{ID: 1, Rows: []model.LayoutRow{
			{Row: "A", Seats: []model.LayoutSeat{{Number: "1"}, {Number: "2", Type: "vip"}}},
		}}},
	})
	log := logger.NewNop()
	svc := service.NewSeatService(repository.NewMemorySeatStore(), catalog, log)

	e := echo.New()
	router.Register(e, router.Deps{
		Seats:     handler.NewSeatHandler(svc, log),
		Sweeper:   service.NewSweeper(svc, log, service.SweeperConfig{}),
		JWTSecret: secret,
	})
	return &api{t: t, e: e}
}

func (a *api) token(userID uint64, role string) string {
	a.t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, 5)
	require.NoError(a.t, err)
	return tok.Token
}

func (a *api) do(method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

// seatIDs initializes showtime 1 as an admin and returns the seat ids.
func (a *api) seatIDs() []uint64 {
	a.t.Helper()
	rec, body := a.do(http.MethodPost, "/v1/admin/showtimes/1/seats", a.token(100, middleware.RoleAdmin), "")
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	items := body["items"].([]any)
	ids := make([]uint64, len(items))
	for i, it := range items {
		ids[i] = uint64(it.(map[string]any)["id"].(float64))
	}
	return ids
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec, _ := a.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec, body := a.do(http.MethodGet, "/healthz/sweeper", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["is_running"])
}

func TestInitializeSeats(t *testing.T) {
	a := newAPI(t)

	rec, _ := a.do(http.MethodPost, "/v1/admin/showtimes/1/seats", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = a.do(http.MethodPost, "/v1/admin/showtimes/1/seats", a.token(1, middleware.RoleCustomer), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	ids := a.seatIDs()
	assert.Len(t, ids, 2)

	rec, _ = a.do(http.MethodPost, "/v1/admin/showtimes/1/seats", a.token(100, middleware.RoleAdmin), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = a.do(http.MethodPost, "/v1/admin/showtimes/9/seats", a.token(100, middleware.RoleAdmin), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadEndpoints(t *testing.T) {
	a := newAPI(t)
	a.seatIDs()

	rec, body := a.do(http.MethodGet, "/v1/showtimes/1/seats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["items"], 2)

	rec, body = a.do(http.MethodGet, "/v1/showtimes/1/pricing", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pricing := body["pricing"].(map[string]any)
	assert.Equal(t, float64(1500), pricing["vip"])

	rec, body = a.do(http.MethodGet, "/v1/showtimes/1/seats/summary", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["available"])

	rec, _ = a.do(http.MethodGet, "/v1/showtimes/abc/seats", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = a.do(http.MethodGet, "/v1/showtimes/42/seats", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReserveBookRelease(t *testing.T) {
	a := newAPI(t)
	ids := a.seatIDs()
	alice, bob := a.token(1, middleware.RoleCustomer), a.token(2, middleware.RoleCustomer)

	rec, body := a.do(http.MethodPost, "/v1/showtimes/1/seats/reserve", alice,
		fmt.Sprintf(`{"seat_ids":[%d],"expires_in_minutes":5}`, ids[0]))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, body["expires_at"])

	rec, body = a.do(http.MethodPost, "/v1/showtimes/1/seats/reserve", bob,
		fmt.Sprintf(`{"seat_ids":[%d,%d]}`, ids[0], ids[1]))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []any{float64(ids[0])}, body["conflicting_seat_ids"])

	rec, body = a.do(http.MethodGet, "/v1/showtimes/1/seats/available", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["items"], 1, "the rejected request must not hold the free seat")

	rec, body = a.do(http.MethodPost, "/v1/showtimes/1/seats/release", bob,
		fmt.Sprintf(`{"seat_ids":[%d]}`, ids[0]))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["released"], "customers cannot release foreign holds")

	rec, body = a.do(http.MethodPost, "/v1/showtimes/1/seats/book", alice,
		fmt.Sprintf(`{"seat_ids":[%d],"booking_ref":"  B1 "}`, ids[0]))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "B1", body["booking_ref"])
	assert.Equal(t, float64(800), body["total_amount_cents"])

	rec, _ = a.do(http.MethodPost, "/v1/showtimes/1/seats/book", bob,
		fmt.Sprintf(`{"seat_ids":[%d],"booking_ref":"B2"}`, ids[0]))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// an admin can clear any hold
	rec, _ = a.do(http.MethodPost, "/v1/showtimes/1/seats/reserve", bob,
		fmt.Sprintf(`{"seat_ids":[%d]}`, ids[1]))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, body = a.do(http.MethodPost, "/v1/showtimes/1/seats/release", a.token(100, middleware.RoleAdmin),
		fmt.Sprintf(`{"seat_ids":[%d,%d]}`, ids[0], ids[1]))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["released"])
}

func TestMutationErrors(t *testing.T) {
	a := newAPI(t)
	ids := a.seatIDs()
	alice := a.token(1, middleware.RoleCustomer)

	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"no seats", "/v1/showtimes/1/seats/reserve", `{"seat_ids":[]}`, http.StatusBadRequest},
		{"ttl too long", "/v1/showtimes/1/seats/reserve", fmt.Sprintf(`{"seat_ids":[%d],"expires_in_minutes":90}`, ids[0]), http.StatusBadRequest},
		{"unknown seat", "/v1/showtimes/1/seats/reserve", `{"seat_ids":[999]}`, http.StatusNotFound},
		{"malformed body", "/v1/showtimes/1/seats/reserve", `{"seat_ids":`, http.StatusBadRequest},
		{"booking ref too long", "/v1/showtimes/1/seats/book", fmt.Sprintf(`{"seat_ids":[%d],"booking_ref":"%s"}`, ids[0], strings.Repeat("r", 65)), http.StatusBadRequest},
		{"missing booking ref", "/v1/showtimes/1/seats/book", fmt.Sprintf(`{"seat_ids":[%d]}`, ids[0]), http.StatusBadRequest},
		{"bad showtime id", "/v1/showtimes/0/seats/book", fmt.Sprintf(`{"seat_ids":[%d],"booking_ref":"x"}`, ids[0]), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := a.do(http.MethodPost, tc.path, alice, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}

	rec, body := a.do(http.MethodPost, "/v1/showtimes/1/seats/reserve", alice, `{"seat_ids":[999]}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []any{float64(999)}, body["seat_ids"])

	rec, _ = a.do(http.MethodPost, "/v1/showtimes/1/seats/reserve", "", fmt.Sprintf(`{"seat_ids":[%d]}`, ids[0]))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// failingService answers every call with err.
type failingService struct {
	handler.SeatService
	err error
}

func (f failingService) GetPricing(context.Context, uint64) (model.PriceTable, error) {
	return model.PriceTable{}, f.err
}

func TestErrorTranslation(t *testing.T) {
	cases := []struct {
		err        error
		want       int
		retryAfter string
	}{
		{fmt.Errorf("lock seats: %w: %w", repository.ErrTransient, errors.New("deadlock")), http.StatusServiceUnavailable, "1"},
		{errors.New("something else"), http.StatusInternalServerError, ""},
		{repository.ErrShowtimeNotFound, http.StatusNotFound, ""},
		{repository.ErrSeatsAlreadyInitialized, http.StatusConflict, ""},
	}
	for _, tc := range cases {
		h := handler.NewSeatHandler(failingService{err: tc.err}, logger.NewNop())
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.SetParamNames("id")
		c.SetParamValues("1")

		require.NoError(t, h.GetPricing(c))
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
		assert.Equal(t, tc.retryAfter, rec.Header().Get("Retry-After"))
	}
}
