// Package model holds the Event and Reservation aggregates together with the
// sentinel errors they raise. Higher layers compare against these values with
// errors.Is, and the HTTP layer maps each of them to a status code in one
// table (see handler/errors.go).
package model

import "errors"

var (
	// ErrNotEnoughSeats is returned when a request asks for more seats than
	// the event has left.
	ErrNotEnoughSeats = errors.New("not enough seats available")

	// ErrDuplicateReservation is returned when the user already holds a
	// non-canceled reservation for the event.
	ErrDuplicateReservation = errors.New("user already has a reservation for this event")

	// ErrEventNotFound is returned when the event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrEventLocked is returned when another transaction holds the event row
	// and the bounded retry gave up. It is never folded into ErrEventNotFound.
	ErrEventLocked = errors.New("event is being modified by another request")

	ErrEventNotOwner       = errors.New("user is not the owner of the event")
	ErrEventTimeConflict   = errors.New("event overlaps with another event of the owner")
	ErrEventStartDatetime  = errors.New("event start time must be in the future")
	ErrEventUpdateLocked   = errors.New("event can no longer be changed")
	ErrInvalidCapacity     = errors.New("capacity must be between 1 and 100 and cover reserved seats")
	ErrInvalidSeats        = errors.New("seats must be between 1 and 10")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrAddressNotFound     = errors.New("address not found")
	ErrForbidden           = errors.New("forbidden")

	// ErrInvalidReservationTransition is returned for a status change the
	// reservation state machine does not allow (canceled -> success, or any
	// move back to pending).
	ErrInvalidReservationTransition = errors.New("invalid reservation status transition")
)
