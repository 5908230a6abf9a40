package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-engine/internal/service"
)

// Health is the liveness endpoint used by load balancers.  It returns a
// plain text "ok".
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// SweeperStatusProvider reports the expiry sweeper state.
type SweeperStatusProvider interface {
	Status() service.SweeperStatus
}

// SweeperHealth serves the sweeper status.  It answers 503 when the
// sweeper is not running so monitors notice a dead schedule.
func SweeperHealth(s SweeperStatusProvider) echo.HandlerFunc {
	return func(c echo.Context) error {
		st := s.Status()
		code := http.StatusOK
		if !st.IsRunning {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, st)
	}
}
