package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/service"
)

// ReservationService is the part of service.ReservationService the HTTP
// layer needs.
type ReservationService interface {
	Create(ctx context.Context, userID, eventID uuid.UUID, seats int) (*model.Reservation, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*model.Reservation, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error)
	Update(ctx context.Context, id, userID uuid.UUID, patch service.ReservationPatch) (*model.Reservation, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// ReservationHandler serves /reservation.
type ReservationHandler struct {
	svc ReservationService
}

func NewReservationHandler(svc ReservationService) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

// createReservationRequest accepts the event id as event_id or eventId.
type createReservationRequest struct {
	EventID      string `json:"event_id"`
	EventIDCamel string `json:"eventId"`
	Seats        int    `json:"seats"`
}

type updateReservationRequest struct {
	Seats  *int    `json:"seats"`
	Status *string `json:"status"`
}

// Create handles POST /reservation.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}
	var req createReservationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	raw := req.EventID
	if raw == "" {
		raw = req.EventIDCamel
	}
	eventID, err := uuid.Parse(raw)
	if err != nil {
		return badRequest("invalid event_id")
	}
	r, err := h.svc.Create(c.Request().Context(), userID, eventID, req.Seats)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

// Get handles GET /reservation/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), id, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// ListMine handles GET /reservation/my.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}
	list, err := h.svc.ListMine(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	if list == nil {
		list = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, list)
}

// Update handles PATCH /reservation/:id.
func (h *ReservationHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req updateReservationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if req.Seats == nil && req.Status == nil {
		return badRequest("nothing to update")
	}
	patch := service.ReservationPatch{Seats: req.Seats}
	if req.Status != nil {
		st := model.ReservationStatus(*req.Status)
		if !st.Valid() {
			return badRequest("invalid status")
		}
		patch.Status = &st
	}
	r, err := h.svc.Update(c.Request().Context(), id, userID, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Delete handles DELETE /reservation/:id. The reservation is canceled, not
// removed, and the response body is the literal true.
func (h *ReservationHandler) Delete(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, true)
}
