package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinCapacity = 1
	MaxCapacity = 100

	// UpdateLockWindow is how long before the start the owner loses the
	// right to move the event or change its venue.
	UpdateLockWindow = 2 * time.Hour

	// ScheduleConflictWindow is the minimum distance between the starts of
	// two events run by the same owner.
	ScheduleConflictWindow = 3 * time.Hour
)

// EventDraft carries the owner-supplied fields of a new event.
type EventDraft struct {
	MovieID       uuid.UUID
	AddressID     uuid.UUID
	OwnerID       uuid.UUID
	Capacity      int
	StartDatetime time.Time
}

// Event is the aggregate root of the reservation engine. It owns its
// reservations: they are only created, resized and moved between states
// through Event methods so that the seat invariant
//
//	sum(seats of pending|success reservations) <= Capacity
//
// is checked in a single place. Persisting the result is the repository's job.
type Event struct {
	ID            uuid.UUID `json:"id"`
	MovieID       uuid.UUID `json:"movie_id"`
	AddressID     uuid.UUID `json:"address_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Capacity      int       `json:"capacity"`
	StartDatetime time.Time `json:"start_datetime"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	reservations []*Reservation
}

// NewEvent validates a draft and returns a fresh event with a generated ID.
func NewEvent(d EventDraft, now time.Time) (*Event, error) {
	if d.Capacity < MinCapacity || d.Capacity > MaxCapacity {
		return nil, ErrInvalidCapacity
	}
	if !d.StartDatetime.After(now) {
		return nil, ErrEventStartDatetime
	}
	return &Event{
		ID:            uuid.New(),
		MovieID:       d.MovieID,
		AddressID:     d.AddressID,
		OwnerID:       d.OwnerID,
		Capacity:      d.Capacity,
		StartDatetime: d.StartDatetime.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// RestoreReservations replaces the owned collection with rows loaded from
// storage. Only repositories rehydrating the aggregate should call it.
func (e *Event) RestoreReservations(rs []Reservation) {
	e.reservations = make([]*Reservation, 0, len(rs))
	for i := range rs {
		r := rs[i]
		e.reservations = append(e.reservations, &r)
	}
}

// Reservations returns a copy of the owned reservations in insertion order.
func (e *Event) Reservations() []Reservation {
	out := make([]Reservation, 0, len(e.reservations))
	for _, r := range e.reservations {
		out = append(out, *r)
	}
	return out
}

// Reservation returns a copy of the reservation with the given ID.
func (e *Event) Reservation(id uuid.UUID) (Reservation, bool) {
	if r := e.find(id); r != nil {
		return *r, true
	}
	return Reservation{}, false
}

// ReservedSeats sums the seats of pending and successful reservations.
func (e *Event) ReservedSeats() int {
	total := 0
	for _, r := range e.reservations {
		if r.Status.Active() {
			total += r.Seats
		}
	}
	return total
}

// AvailableSeats is Capacity minus ReservedSeats.
func (e *Event) AvailableSeats() int {
	return e.Capacity - e.ReservedSeats()
}

// HasReservationFor reports whether userID holds a non-canceled reservation.
func (e *Event) HasReservationFor(userID uuid.UUID) bool {
	for _, r := range e.reservations {
		if r.UserID == userID && r.Status.Active() {
			return true
		}
	}
	return false
}

// Reserve books seats for userID. The duplicate check runs first so a
// second attempt by the same guest always fails the same way whatever it
// asks for. On success the pending reservation is appended to the event
// and returned.
func (e *Event) Reserve(userID uuid.UUID, seats int, now time.Time) (*Reservation, error) {
	if e.HasReservationFor(userID) {
		return nil, ErrDuplicateReservation
	}
	if seats > e.AvailableSeats() {
		return nil, ErrNotEnoughSeats
	}
	r, err := NewReservation(userID, e.ID, seats, now)
	if err != nil {
		return nil, err
	}
	e.reservations = append(e.reservations, r)
	return r, nil
}

// ApproveReservation moves one of the event's reservations to success.
func (e *Event) ApproveReservation(id uuid.UUID, now time.Time) (*Reservation, error) {
	r := e.find(id)
	if r == nil {
		return nil, ErrReservationNotFound
	}
	if err := r.Approve(now); err != nil {
		return nil, err
	}
	return r, nil
}

// CancelReservation releases the seats held by one of the event's reservations.
func (e *Event) CancelReservation(id uuid.UUID, now time.Time) (*Reservation, error) {
	r := e.find(id)
	if r == nil {
		return nil, ErrReservationNotFound
	}
	if err := r.Cancel(now); err != nil {
		return nil, err
	}
	e.UpdatedAt = now
	return r, nil
}

// ResizeReservation changes the seat count of an active reservation. The
// reservation's current seats count as available for the check.
func (e *Event) ResizeReservation(id uuid.UUID, seats int, now time.Time) (*Reservation, error) {
	r := e.find(id)
	if r == nil {
		return nil, ErrReservationNotFound
	}
	if !r.Status.Active() {
		return nil, ErrInvalidReservationTransition
	}
	if err := validSeats(seats); err != nil {
		return nil, err
	}
	if seats-r.Seats > e.AvailableSeats() {
		return nil, ErrNotEnoughSeats
	}
	r.Seats = seats
	r.UpdatedAt = now
	return r, nil
}

// CanBeUpdated fails with ErrEventUpdateLocked once the start is less than
// UpdateLockWindow away.
func (e *Event) CanBeUpdated(now time.Time) error {
	if e.StartDatetime.Sub(now) < UpdateLockWindow {
		return ErrEventUpdateLocked
	}
	return nil
}

// ChangeDatetime moves the event. The new start must be in the future.
func (e *Event) ChangeDatetime(start time.Time, now time.Time) error {
	if err := e.CanBeUpdated(now); err != nil {
		return err
	}
	if !start.After(now) {
		return ErrEventStartDatetime
	}
	e.StartDatetime = start.UTC()
	e.UpdatedAt = now
	return nil
}

// ChangeAddress points the event at another venue.
func (e *Event) ChangeAddress(addressID uuid.UUID, now time.Time) error {
	if err := e.CanBeUpdated(now); err != nil {
		return err
	}
	e.AddressID = addressID
	e.UpdatedAt = now
	return nil
}

// ChangeCapacity resizes the venue. It may not drop below the seats that
// are already reserved.
func (e *Event) ChangeCapacity(capacity int, now time.Time) error {
	if err := e.CanBeUpdated(now); err != nil {
		return err
	}
	if capacity < MinCapacity || capacity > MaxCapacity || capacity < e.ReservedSeats() {
		return ErrInvalidCapacity
	}
	e.Capacity = capacity
	e.UpdatedAt = now
	return nil
}

// ChangeMovie swaps the screened movie.
func (e *Event) ChangeMovie(movieID uuid.UUID, now time.Time) error {
	if err := e.CanBeUpdated(now); err != nil {
		return err
	}
	e.MovieID = movieID
	e.UpdatedAt = now
	return nil
}

// AddressFor returns the address string userID may see: the full address
// for the owner and for guests with an approved reservation, the public
// part for everyone else.
func (e *Event) AddressFor(userID uuid.UUID, addr *Address) (string, error) {
	if addr == nil {
		return "", ErrAddressNotFound
	}
	if e.OwnerID == userID {
		return addr.FullAddress(), nil
	}
	for _, r := range e.reservations {
		if r.UserID == userID && r.Status == ReservationSuccess {
			return addr.FullAddress(), nil
		}
	}
	return addr.PublicAddress(), nil
}

func (e *Event) find(id uuid.UUID) *Reservation {
	for _, r := range e.reservations {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// CheckScheduleConflict fails with ErrEventTimeConflict when start lies
// strictly within ScheduleConflictWindow of another event in events. The
// event identified by self is ignored so an event never conflicts with
// itself when it is being moved.
func CheckScheduleConflict(start time.Time, events []Event, self uuid.UUID) error {
	for _, other := range events {
		if other.ID == self {
			continue
		}
		lo := other.StartDatetime.Add(-ScheduleConflictWindow)
		hi := other.StartDatetime.Add(ScheduleConflictWindow)
		if start.After(lo) && start.Before(hi) {
			return ErrEventTimeConflict
		}
	}
	return nil
}
