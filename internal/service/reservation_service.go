package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/event-reservation/internal/model"
)

// ReservationPatch carries the optional fields of PATCH /reservation/:id.
type ReservationPatch struct {
	Seats  *int
	Status *model.ReservationStatus
}

// ReservationService is the guest and owner facing side of reservations.
// Everything that changes seats goes through the event lock.
type ReservationService struct {
	core
	events *EventService
}

// NewReservationService wires a ReservationService on top of events.
func NewReservationService(d Deps, events *EventService) *ReservationService {
	return &ReservationService{core: newCore(d), events: events}
}

// Create reserves seats for userID and tells the event owner about the
// request.
func (s *ReservationService) Create(ctx context.Context, userID, eventID uuid.UUID, seats int) (_ *model.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "reservation.create", trace.WithAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.String("user.id", userID.String()),
	))
	defer func() { finish(span, err) }()

	r, ownerID, err := s.events.reserve(ctx, eventID, userID, seats)
	if err != nil {
		return nil, err
	}
	s.notify(ownerID, "New reservation request", "A guest reserved seats. Approve or decline the request.")
	return r, nil
}

// Get returns a reservation to its guest or to the owner of its event.
// Anyone else gets model.ErrReservationNotFound.
func (s *ReservationService) Get(ctx context.Context, id, userID uuid.UUID) (_ *model.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "reservation.get", trace.WithAttributes(attribute.String("reservation.id", id.String())))
	defer func() { finish(span, err) }()

	r, err := s.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID == userID {
		return r, nil
	}
	e, err := s.Events.GetByID(ctx, r.EventID)
	if err != nil || e.OwnerID != userID {
		return nil, model.ErrReservationNotFound
	}
	return r, nil
}

// ListMine returns every reservation of userID; none is an empty list.
func (s *ReservationService) ListMine(ctx context.Context, userID uuid.UUID) (_ []model.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "reservation.list_mine", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer func() { finish(span, err) }()

	return s.Reservations.ListByUser(ctx, userID)
}

// Update changes seats or status of a reservation under the event lock.
//
// The guest may change the seat count and cancel. The event owner decides
// on the request: approve (success) or decline (canceled). The other party
// is notified whenever the status actually changes.
func (s *ReservationService) Update(ctx context.Context, id, userID uuid.UUID, patch ReservationPatch) (_ *model.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "reservation.update", trace.WithAttributes(
		attribute.String("reservation.id", id.String()),
		attribute.String("user.id", userID.String()),
	))
	defer func() { finish(span, err) }()

	var out model.Reservation
	err = s.inLockedTx(ctx, func(ctx context.Context) error {
		e, current, err := s.lockReservation(ctx, id)
		if err != nil {
			return err
		}
		isGuest, isOwner := current.UserID == userID, e.OwnerID == userID
		if !isGuest && !isOwner {
			return model.ErrReservationNotFound
		}
		now := s.Clock.Now()

		if patch.Seats != nil && *patch.Seats != current.Seats {
			if !isGuest {
				return model.ErrForbidden
			}
			if _, err := e.ResizeReservation(id, *patch.Seats, now); err != nil {
				return err
			}
		}

		if patch.Status != nil && *patch.Status != current.Status {
			switch *patch.Status {
			case model.ReservationSuccess:
				if !isOwner {
					return model.ErrForbidden
				}
				_, err = e.ApproveReservation(id, now)
			case model.ReservationCanceled:
				_, err = e.CancelReservation(id, now)
			default:
				err = model.ErrInvalidReservationTransition
			}
			if err != nil {
				return err
			}
			s.notifyDecision(e, current, *patch.Status, isOwner)
		}

		changed, _ := e.Reservation(id)
		if err := s.Reservations.Update(ctx, &changed); err != nil {
			return err
		}
		out = changed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update reservation: %w", err)
	}
	return &out, nil
}

// Delete cancels a reservation; the row is kept so the history survives.
// Canceling an already canceled reservation succeeds.
func (s *ReservationService) Delete(ctx context.Context, id, userID uuid.UUID) (err error) {
	ctx, span := s.tracer.Start(ctx, "reservation.delete", trace.WithAttributes(
		attribute.String("reservation.id", id.String()),
		attribute.String("user.id", userID.String()),
	))
	defer func() { finish(span, err) }()

	err = s.inLockedTx(ctx, func(ctx context.Context) error {
		e, current, err := s.lockReservation(ctx, id)
		if err != nil {
			return err
		}
		if current.UserID != userID && e.OwnerID != userID {
			return model.ErrReservationNotFound
		}
		if current.Status == model.ReservationCanceled {
			return nil
		}
		r, err := e.CancelReservation(id, s.Clock.Now())
		if err != nil {
			return err
		}
		s.notifyDecision(e, current, model.ReservationCanceled, e.OwnerID == userID)
		return s.Reservations.Update(ctx, r)
	})
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

// lockReservation finds the reservation's event and locks it, then reads
// the reservation from the locked aggregate.
func (s *ReservationService) lockReservation(ctx context.Context, id uuid.UUID) (*model.Event, model.Reservation, error) {
	row, err := s.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, model.Reservation{}, err
	}
	e, err := s.Events.GetForUpdate(ctx, row.EventID)
	if err != nil {
		return nil, model.Reservation{}, err
	}
	current, ok := e.Reservation(id)
	if !ok {
		return nil, model.Reservation{}, model.ErrReservationNotFound
	}
	return e, current, nil
}

// notifyDecision tells the guest about an owner's decision, or the owner
// about a guest canceling.
func (s *ReservationService) notifyDecision(e *model.Event, r model.Reservation, to model.ReservationStatus, byOwner bool) {
	if !byOwner {
		s.notify(e.OwnerID, "Reservation canceled", "A guest canceled their reservation.")
		return
	}
	switch to {
	case model.ReservationSuccess:
		s.notify(r.UserID, "The organiser decided on your request", "Your reservation was accepted.")
	case model.ReservationCanceled:
		s.notify(r.UserID, "The organiser decided on your request", "Your reservation was declined.")
	}
}
