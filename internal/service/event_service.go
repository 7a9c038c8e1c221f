package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/event-reservation/internal/model"
)

// CreateEventInput is what an owner submits to publish an event.
type CreateEventInput struct {
	MovieID       uuid.UUID
	AddressID     uuid.UUID
	Capacity      int
	StartDatetime time.Time
}

// EventPatch changes the non-nil fields of an event.
type EventPatch struct {
	MovieID       *uuid.UUID
	AddressID     *uuid.UUID
	Capacity      *int
	StartDatetime *time.Time
}

// EventService owns every operation that reads or changes an event and the
// reservations it holds.
type EventService struct {
	core
}

// NewEventService wires an EventService.
func NewEventService(d Deps) *EventService {
	return &EventService{core: newCore(d)}
}

// Create publishes a new event for ownerID after checking the venue exists
// and the start keeps clear of the owner's other events.
func (s *EventService) Create(ctx context.Context, ownerID uuid.UUID, in CreateEventInput) (_ *model.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "event.create", trace.WithAttributes(
		attribute.String("owner.id", ownerID.String()),
		attribute.Int("event.capacity", in.Capacity),
	))
	defer func() { finish(span, err) }()

	e, err := model.NewEvent(model.EventDraft{
		MovieID:       in.MovieID,
		AddressID:     in.AddressID,
		OwnerID:       ownerID,
		Capacity:      in.Capacity,
		StartDatetime: in.StartDatetime,
	}, s.Clock.Now())
	if err != nil {
		return nil, err
	}
	if _, err := s.Addresses.GetAddress(ctx, in.AddressID); err != nil {
		return nil, err
	}

	err = s.UoW.Do(ctx, func(ctx context.Context) error {
		mine, err := s.Events.ListByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := model.CheckScheduleConflict(e.StartDatetime, mine, uuid.Nil); err != nil {
			return err
		}
		return s.Events.Create(ctx, e)
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	span.SetAttributes(attribute.String("event.id", e.ID.String()))
	return e, nil
}

// Update applies patch on behalf of userID. Only the owner may change an
// event, and only while it is outside the update lock window. Every guest
// holding a reservation is notified before the change is written.
func (s *EventService) Update(ctx context.Context, eventID, userID uuid.UUID, patch EventPatch) (_ *model.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "event.update", trace.WithAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.String("user.id", userID.String()),
	))
	defer func() { finish(span, err) }()

	var updated *model.Event
	err = s.inLockedTx(ctx, func(ctx context.Context) error {
		e, err := s.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if e.OwnerID != userID {
			return model.ErrEventNotOwner
		}
		now := s.Clock.Now()
		if err := e.CanBeUpdated(now); err != nil {
			return err
		}

		if patch.StartDatetime != nil && !patch.StartDatetime.Equal(e.StartDatetime) {
			if err := e.ChangeDatetime(*patch.StartDatetime, now); err != nil {
				return err
			}
			mine, err := s.Events.ListByOwner(ctx, e.OwnerID)
			if err != nil {
				return err
			}
			if err := model.CheckScheduleConflict(e.StartDatetime, mine, e.ID); err != nil {
				return err
			}
		}
		if patch.AddressID != nil && *patch.AddressID != e.AddressID {
			if _, err := s.Addresses.GetAddress(ctx, *patch.AddressID); err != nil {
				return err
			}
			if err := e.ChangeAddress(*patch.AddressID, now); err != nil {
				return err
			}
		}
		if patch.Capacity != nil && *patch.Capacity != e.Capacity {
			if err := e.ChangeCapacity(*patch.Capacity, now); err != nil {
				return err
			}
		}
		if patch.MovieID != nil && *patch.MovieID != e.MovieID {
			if err := e.ChangeMovie(*patch.MovieID, now); err != nil {
				return err
			}
		}

		for _, guest := range activeGuests(e) {
			s.notify(guest, "Event updated", "The organiser updated the event. Please review the details.")
		}
		if err := s.Events.Update(ctx, e); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return updated, nil
}

// Delete removes an event together with its reservations. Guests are told
// before the row goes.
func (s *EventService) Delete(ctx context.Context, eventID, userID uuid.UUID) (err error) {
	ctx, span := s.tracer.Start(ctx, "event.delete", trace.WithAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.String("user.id", userID.String()),
	))
	defer func() { finish(span, err) }()

	err = s.inLockedTx(ctx, func(ctx context.Context) error {
		e, err := s.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if e.OwnerID != userID {
			return model.ErrEventNotOwner
		}
		for _, guest := range activeGuests(e) {
			s.notify(guest, "Event deleted", "An event you booked has been cancelled.")
		}
		return s.Events.Delete(ctx, e.ID)
	})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// Get loads an event with its reservations.
func (s *EventService) Get(ctx context.Context, eventID uuid.UUID) (_ *model.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "event.get", trace.WithAttributes(attribute.String("event.id", eventID.String())))
	defer func() { finish(span, err) }()

	return s.Events.GetByID(ctx, eventID)
}

// List pages through upcoming events.
func (s *EventService) List(ctx context.Context, offset, limit int) (_ []model.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "event.list", trace.WithAttributes(
		attribute.Int("page.offset", offset),
		attribute.Int("page.limit", limit),
	))
	defer func() { finish(span, err) }()

	events, err := s.Events.List(ctx, s.Clock.Now(), offset, limit)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// ReserveSeats books seats on eventID for userID under the event row lock.
// The lock is taken without waiting; a unit of work that loses it is
// retried according to the retry policy and then fails with
// model.ErrEventLocked, never with model.ErrEventNotFound.
func (s *EventService) ReserveSeats(ctx context.Context, eventID, userID uuid.UUID, seats int) (_ *model.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "event.reserve_seats", trace.WithAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.String("user.id", userID.String()),
		attribute.Int("seats.requested", seats),
	))
	defer func() { finish(span, err) }()

	r, _, err := s.reserve(ctx, eventID, userID, seats)
	return r, err
}

// reserve is ReserveSeats returning also the owner of the locked event.
func (s *EventService) reserve(ctx context.Context, eventID, userID uuid.UUID, seats int) (*model.Reservation, uuid.UUID, error) {
	span := trace.SpanFromContext(ctx)
	var (
		reserved model.Reservation
		ownerID  uuid.UUID
	)
	err := s.inLockedTx(ctx, func(ctx context.Context) error {
		e, err := s.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		r, err := e.Reserve(userID, seats, s.Clock.Now())
		if err != nil {
			return err
		}
		if err := s.Reservations.Create(ctx, r); err != nil {
			return err
		}
		reserved, ownerID = *r, e.OwnerID
		span.SetAttributes(attribute.Int("seats.available", e.AvailableSeats()))
		return nil
	})
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("reserve seats: %w", err)
	}
	return &reserved, ownerID, nil
}

// GetNearbyEvents returns upcoming events held within radiusKm of (lat, lon).
func (s *EventService) GetNearbyEvents(ctx context.Context, lat, lon, radiusKm float64) (_ []model.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "event.nearby", trace.WithAttributes(
		attribute.Float64("geo.lat", lat),
		attribute.Float64("geo.lon", lon),
		attribute.Float64("geo.radius_km", radiusKm),
	))
	defer func() { finish(span, err) }()

	addrs, err := s.Addresses.NearbyAddresses(ctx, lat, lon, radiusKm)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(addrs))
	for _, a := range addrs {
		ids = append(ids, a.ID)
	}
	return s.Events.ListByAddresses(ctx, ids, s.Clock.Now())
}

// GetAddressForUser returns the venue address as userID may see it.
func (s *EventService) GetAddressForUser(ctx context.Context, eventID, userID uuid.UUID) (_ string, err error) {
	ctx, span := s.tracer.Start(ctx, "event.address", trace.WithAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.String("user.id", userID.String()),
	))
	defer func() { finish(span, err) }()

	e, err := s.Events.GetByID(ctx, eventID)
	if err != nil {
		return "", err
	}
	addr, err := s.Addresses.GetAddress(ctx, e.AddressID)
	if err != nil {
		return "", err
	}
	return e.AddressFor(userID, addr)
}

// activeGuests lists the users holding a pending or successful reservation.
func activeGuests(e *model.Event) []uuid.UUID {
	var out []uuid.UUID
	for _, r := range e.Reservations() {
		if r.Status.Active() {
			out = append(out, r.UserID)
		}
	}
	return out
}
