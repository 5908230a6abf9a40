package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user id stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	return parseUserID(c.Get(ContextUserID))
}

// Role returns the authenticated role stored by JWTAuth.
func Role(c echo.Context) string {
	r, _ := c.Get(ContextRole).(string)
	return r
}

// parseUserID accepts the representations a subject claim arrives in:
// JSON numbers decode to float64, some issuers send strings.
func parseUserID(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint64:
		return t, t > 0
	case int:
		return uint64(t), t > 0
	case int64:
		return uint64(t), t > 0
	case float64:
		if t <= 0 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}
