package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/service"
)

const (
	defaultLimit    = 20
	maxLimit        = 100
	defaultRadiusKm = 10.0
	maxRadiusKm     = 500.0
)

// EventService is the part of service.EventService the HTTP layer needs.
type EventService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in service.CreateEventInput) (*model.Event, error)
	Update(ctx context.Context, eventID, userID uuid.UUID, patch service.EventPatch) (*model.Event, error)
	Delete(ctx context.Context, eventID, userID uuid.UUID) error
	Get(ctx context.Context, eventID uuid.UUID) (*model.Event, error)
	List(ctx context.Context, offset, limit int) ([]model.Event, error)
	GetNearbyEvents(ctx context.Context, lat, lon, radiusKm float64) ([]model.Event, error)
	GetAddressForUser(ctx context.Context, eventID, userID uuid.UUID) (string, error)
}

// EventHandler serves /events.
type EventHandler struct {
	svc EventService
}

func NewEventHandler(svc EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// eventResponse is the public view of an event. Individual reservations
// stay private; only the seat counts are exposed.
type eventResponse struct {
	ID             uuid.UUID `json:"id"`
	MovieID        uuid.UUID `json:"movie_id"`
	AddressID      uuid.UUID `json:"address_id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	Capacity       int       `json:"capacity"`
	AvailableSeats int       `json:"available_seats"`
	StartDatetime  time.Time `json:"start_datetime"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toEventResponse(e *model.Event) eventResponse {
	return eventResponse{
		ID:             e.ID,
		MovieID:        e.MovieID,
		AddressID:      e.AddressID,
		OwnerID:        e.OwnerID,
		Capacity:       e.Capacity,
		AvailableSeats: e.AvailableSeats(),
		StartDatetime:  e.StartDatetime,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toEventList(events []model.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for i := range events {
		out = append(out, toEventResponse(&events[i]))
	}
	return out
}

type createEventRequest struct {
	MovieID       string    `json:"movie_id"`
	AddressID     string    `json:"address_id"`
	Capacity      int       `json:"capacity"`
	StartDatetime time.Time `json:"start_datetime"`
}

type updateEventRequest struct {
	MovieID       *string    `json:"movie_id"`
	AddressID     *string    `json:"address_id"`
	Capacity      *int       `json:"capacity"`
	StartDatetime *time.Time `json:"start_datetime"`
}

// Create handles POST /events.
func (h *EventHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}
	var req createEventRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	movieID, err := uuid.Parse(req.MovieID)
	if err != nil {
		return badRequest("invalid movie_id")
	}
	addressID, err := uuid.Parse(req.AddressID)
	if err != nil {
		return badRequest("invalid address_id")
	}
	if req.StartDatetime.IsZero() {
		return badRequest("start_datetime is required")
	}
	e, err := h.svc.Create(c.Request().Context(), userID, service.CreateEventInput{
		MovieID:       movieID,
		AddressID:     addressID,
		Capacity:      req.Capacity,
		StartDatetime: req.StartDatetime,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toEventResponse(e))
}

// List handles GET /events?offset=&limit=.
func (h *EventHandler) List(c echo.Context) error {
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		return badRequest("invalid offset")
	}
	limit, err := queryInt(c, "limit", defaultLimit)
	if err != nil || limit <= 0 {
		return badRequest("invalid limit")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	events, err := h.svc.List(c.Request().Context(), offset, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventList(events))
}

// Nearby handles GET /events/nearby?lat=&lon=&radius=.
func (h *EventHandler) Nearby(c echo.Context) error {
	lat, err := strconv.ParseFloat(c.QueryParam("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return badRequest("invalid lat")
	}
	lon, err := strconv.ParseFloat(c.QueryParam("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return badRequest("invalid lon")
	}
	radius := defaultRadiusKm
	if s := c.QueryParam("radius"); s != "" {
		radius, err = strconv.ParseFloat(s, 64)
		if err != nil || radius <= 0 || radius > maxRadiusKm {
			return badRequest("invalid radius")
		}
	}
	events, err := h.svc.GetNearbyEvents(c.Request().Context(), lat, lon, radius)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventList(events))
}

// Get handles GET /events/:id.
func (h *EventHandler) Get(c echo.Context) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Address handles GET /events/:id/address. Confirmed guests and the owner
// see the full address, everyone else only the street.
func (h *EventHandler) Address(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	addr, err := h.svc.GetAddressForUser(c.Request().Context(), id, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"address": addr})
}

// Update handles PATCH /events/:id.
func (h *EventHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req updateEventRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	var patch service.EventPatch
	if req.MovieID != nil {
		v, err := uuid.Parse(*req.MovieID)
		if err != nil {
			return badRequest("invalid movie_id")
		}
		patch.MovieID = &v
	}
	if req.AddressID != nil {
		v, err := uuid.Parse(*req.AddressID)
		if err != nil {
			return badRequest("invalid address_id")
		}
		patch.AddressID = &v
	}
	patch.Capacity = req.Capacity
	patch.StartDatetime = req.StartDatetime
	if patch == (service.EventPatch{}) {
		return badRequest("nothing to update")
	}
	e, err := h.svc.Update(c.Request().Context(), id, userID, patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toEventResponse(e))
}

// Delete handles DELETE /events/:id.
func (h *EventHandler) Delete(c echo.Context) error {
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

func queryInt(c echo.Context, name string, def int) (int, error) {
	s := c.QueryParam(name)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
