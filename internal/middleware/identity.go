package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservation/internal/handler"
)

// currentUserID is the caller's id as a string for key building, or
// "anon" before JWTAuth has run.
func currentUserID(c echo.Context) string {
	switch v := c.Get(handler.ContextUserID).(type) {
	case uuid.UUID:
		if v != uuid.Nil {
			return v.String()
		}
	case string:
		if v != "" {
			return v
		}
	}
	return "anon"
}
