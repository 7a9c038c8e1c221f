package model

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the state of a reservation.
type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "pending"
	ReservationSuccess  ReservationStatus = "success"
	ReservationCanceled ReservationStatus = "canceled"
)

// Valid reports whether s is one of the known statuses.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationSuccess, ReservationCanceled:
		return true
	}
	return false
}

// Active reports whether the reservation still occupies seats.
func (s ReservationStatus) Active() bool {
	return s == ReservationPending || s == ReservationSuccess
}

const (
	MinSeatsPerReservation = 1
	MaxSeatsPerReservation = 10
)

// Reservation is a guest's claim on an aggregate number of seats for one
// event. It moves pending -> success | canceled and success -> canceled;
// nothing ever returns to pending.
//
// Fields:
//
//	ID        – reservations.id
//	UserID    – guest who made the reservation
//	EventID   – owning event
//	Seats     – number of seats (1..10)
//	Status    – pending, success or canceled
//	CreatedAt – creation timestamp
//	UpdatedAt – last change timestamp
type Reservation struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	EventID   uuid.UUID         `json:"event_id"`
	Seats     int               `json:"seats"`
	Status    ReservationStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewReservation builds a pending reservation. It only validates the seat
// count; availability is the event's job.
func NewReservation(userID, eventID uuid.UUID, seats int, now time.Time) (*Reservation, error) {
	if err := validSeats(seats); err != nil {
		return nil, err
	}
	return &Reservation{
		ID:        uuid.New(),
		UserID:    userID,
		EventID:   eventID,
		Seats:     seats,
		Status:    ReservationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Approve moves a pending reservation to success. Approving a reservation
// that already succeeded is a no-op; approving a canceled one fails.
func (r *Reservation) Approve(now time.Time) error {
	switch r.Status {
	case ReservationSuccess:
		return nil
	case ReservationPending:
		r.Status = ReservationSuccess
		r.UpdatedAt = now
		return nil
	}
	return ErrInvalidReservationTransition
}

// Cancel moves a pending or successful reservation to canceled. Canceling
// twice is a no-op.
func (r *Reservation) Cancel(now time.Time) error {
	switch r.Status {
	case ReservationCanceled:
		return nil
	case ReservationPending, ReservationSuccess:
		r.Status = ReservationCanceled
		r.UpdatedAt = now
		return nil
	}
	return ErrInvalidReservationTransition
}

// Transition applies the requested target status through Approve or Cancel.
func (r *Reservation) Transition(to ReservationStatus, now time.Time) error {
	switch to {
	case ReservationSuccess:
		return r.Approve(now)
	case ReservationCanceled:
		return r.Cancel(now)
	case ReservationPending:
		if r.Status == ReservationPending {
			return nil
		}
	}
	return ErrInvalidReservationTransition
}

func validSeats(seats int) error {
	if seats < MinSeatsPerReservation || seats > MaxSeatsPerReservation {
		return ErrInvalidSeats
	}
	return nil
}
