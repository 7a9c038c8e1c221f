package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/repository"
)

// errorKind is how a domain error looks on the wire.
type errorKind struct {
	status int
	code   string
}

// errorTable maps every domain error to its HTTP status and stable code.
// Handlers return errors unchanged and ErrorHandler looks them up here.
var errorTable = []struct {
	err  error
	kind errorKind
}{
	{model.ErrNotEnoughSeats, errorKind{http.StatusBadRequest, "NOT_ENOUGH_SEATS"}},
	{model.ErrDuplicateReservation, errorKind{http.StatusBadRequest, "DUPLICATE_RESERVATION"}},
	{model.ErrEventNotFound, errorKind{http.StatusNotFound, "EVENT_NOT_FOUND"}},
	{model.ErrEventLocked, errorKind{http.StatusConflict, "EVENT_BUSY"}},
	{model.ErrEventNotOwner, errorKind{http.StatusForbidden, "EVENT_NOT_OWNER"}},
	{model.ErrEventTimeConflict, errorKind{http.StatusConflict, "EVENT_TIME_CONFLICT"}},
	{model.ErrEventStartDatetime, errorKind{http.StatusBadRequest, "EVENT_START_DATETIME"}},
	{model.ErrEventUpdateLocked, errorKind{http.StatusBadRequest, "EVENT_UPDATE_LOCKED"}},
	{model.ErrReservationNotFound, errorKind{http.StatusNotFound, "RESERVATION_NOT_FOUND"}},
	{model.ErrInvalidCapacity, errorKind{http.StatusBadRequest, "INVALID_CAPACITY"}},
	{model.ErrInvalidSeats, errorKind{http.StatusBadRequest, "INVALID_SEATS"}},
	{model.ErrInvalidReservationTransition, errorKind{http.StatusConflict, "INVALID_STATUS_TRANSITION"}},
	{model.ErrForbidden, errorKind{http.StatusForbidden, "FORBIDDEN"}},
	{model.ErrAddressNotFound, errorKind{http.StatusNotFound, "ADDRESS_NOT_FOUND"}},
	{repository.ErrConflict, errorKind{http.StatusConflict, "CONFLICT"}},
}

var internalError = errorKind{http.StatusInternalServerError, "INTERNAL_ERROR"}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// lookup resolves err against errorTable. The message of a domain error is
// the sentinel's own text, without the wrapping context added on the way up.
func lookup(err error) (errorKind, string) {
	for _, row := range errorTable {
		if errors.Is(err, row.err) {
			return row.kind, row.err.Error()
		}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return errorKind{he.Code, statusCode(he.Code)}, msg
	}
	return internalError, "internal server error"
}

func statusCode(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// ErrorHandler renders every error returned by a handler or middleware as
// {"error": {"code", "message"}}. Unknown errors become a logged 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	kind, msg := lookup(err)
	if kind.status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(kind.status)
	} else {
		werr = c.JSON(kind.status, errorBody{Error: errorDetail{Code: kind.code, Message: msg}})
	}
	if werr != nil {
		c.Logger().Errorf("write error response: %v", werr)
	}
}

// badRequest is returned for malformed input that never reaches a service.
func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
