package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-engine/internal/logger"
	"github.com/iliyamo/cinema-seat-engine/internal/repository"
)

// writeError translates the repository error taxonomy into a JSON error
// response.  Conflicts list the seats that blocked the request so a client
// can tell "seat taken" apart from "seat does not exist".
func writeError(c echo.Context, log logger.Logger, err error) error {
	var conflict *repository.SeatConflictError
	var missing *repository.SeatNotFoundError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":                conflict.Err.Error(),
			"conflicting_seat_ids": conflict.SeatIDs,
		})
	case errors.As(err, &missing):
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":    repository.ErrSeatNotFound.Error(),
			"seat_ids": missing.SeatIDs,
		})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrAlreadyInitialized):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrTransient):
		log.Warn("storage unavailable", "path", c.Path(), "error", err)
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage unavailable, retry later"})
	default:
		log.Error("unexpected error", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
