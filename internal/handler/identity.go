package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContextUserID is the echo.Context key under which the identity
// middleware stores the caller's uuid.UUID.
const ContextUserID = "user_id"

// getUserID extracts the authenticated caller from echo.Context.
func getUserID(c echo.Context) (uuid.UUID, error) {
	switch v := c.Get(ContextUserID).(type) {
	case uuid.UUID:
		if v != uuid.Nil {
			return v, nil
		}
	case string:
		if id, err := uuid.Parse(v); err == nil {
			return id, nil
		}
	}
	return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
}

// paramUUID parses the path parameter name as a UUID.
func paramUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, badRequest("invalid " + name)
	}
	return id, nil
}
