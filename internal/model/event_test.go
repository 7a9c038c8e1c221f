package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testingT is satisfied by both *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

func newTestEvent(t testingT, capacity int) *Event {
	t.Helper()
	e, err := NewEvent(EventDraft{
		MovieID:       uuid.New(),
		AddressID:     uuid.New(),
		OwnerID:       uuid.New(),
		Capacity:      capacity,
		StartDatetime: testNow.Add(48 * time.Hour),
	}, testNow)
	require.NoError(t, err)
	return e
}

func TestNewEvent(t *testing.T) {
	t.Run("rejects start in the past", func(t *testing.T) {
		_, err := NewEvent(EventDraft{Capacity: 10, StartDatetime: testNow.Add(-time.Minute)}, testNow)
		assert.ErrorIs(t, err, ErrEventStartDatetime)
	})
	t.Run("rejects start equal to now", func(t *testing.T) {
		_, err := NewEvent(EventDraft{Capacity: 10, StartDatetime: testNow}, testNow)
		assert.ErrorIs(t, err, ErrEventStartDatetime)
	})
	t.Run("rejects capacity out of range", func(t *testing.T) {
		for _, c := range []int{0, -1, 101} {
			_, err := NewEvent(EventDraft{Capacity: c, StartDatetime: testNow.Add(time.Hour)}, testNow)
			assert.ErrorIs(t, err, ErrInvalidCapacity, "capacity %d", c)
		}
	})
	t.Run("creates event with generated id", func(t *testing.T) {
		e := newTestEvent(t, 100)
		assert.NotEqual(t, uuid.Nil, e.ID)
		assert.Equal(t, 100, e.AvailableSeats())
		assert.Empty(t, e.Reservations())
	})
}

func TestEventReserveWalkthrough(t *testing.T) {
	e := newTestEvent(t, 4)
	guestA, guestB := uuid.New(), uuid.New()

	r, err := e.Reserve(guestA, 2, testNow)
	require.NoError(t, err)
	assert.Equal(t, ReservationPending, r.Status)
	assert.Equal(t, e.ID, r.EventID)
	assert.Equal(t, 2, e.AvailableSeats())

	_, err = e.Reserve(guestA, 1, testNow)
	assert.ErrorIs(t, err, ErrDuplicateReservation)

	_, err = e.Reserve(guestB, 3, testNow)
	assert.ErrorIs(t, err, ErrNotEnoughSeats)
	assert.Len(t, e.Reservations(), 1)

	_, err = e.Reserve(guestB, 2, testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, e.AvailableSeats())
}

func TestEventReserveAfterCancel(t *testing.T) {
	e := newTestEvent(t, 2)
	guest := uuid.New()

	r, err := e.Reserve(guest, 2, testNow)
	require.NoError(t, err)
	_, err = e.CancelReservation(r.ID, testNow)
	require.NoError(t, err)

	assert.False(t, e.HasReservationFor(guest))
	assert.Equal(t, 2, e.AvailableSeats())

	_, err = e.Reserve(guest, 1, testNow)
	assert.NoError(t, err)
}

func TestEventReserveRejectsInvalidSeats(t *testing.T) {
	e := newTestEvent(t, 100)
	_, err := e.Reserve(uuid.New(), 11, testNow)
	assert.ErrorIs(t, err, ErrInvalidSeats)
	_, err = e.Reserve(uuid.New(), 0, testNow)
	assert.ErrorIs(t, err, ErrInvalidSeats)
	assert.Empty(t, e.Reservations())
}

func TestEventReservationsIsACopy(t *testing.T) {
	e := newTestEvent(t, 10)
	_, err := e.Reserve(uuid.New(), 3, testNow)
	require.NoError(t, err)

	rs := e.Reservations()
	rs[0].Seats = 10
	rs[0].Status = ReservationCanceled

	assert.Equal(t, 7, e.AvailableSeats())
}

func TestEventResizeReservation(t *testing.T) {
	e := newTestEvent(t, 5)
	a, err := e.Reserve(uuid.New(), 2, testNow)
	require.NoError(t, err)
	_, err = e.Reserve(uuid.New(), 2, testNow)
	require.NoError(t, err)

	_, err = e.ResizeReservation(a.ID, 4, testNow)
	assert.ErrorIs(t, err, ErrNotEnoughSeats)

	r, err := e.ResizeReservation(a.ID, 3, testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Seats)
	assert.Equal(t, 0, e.AvailableSeats())

	_, err = e.ResizeReservation(uuid.New(), 1, testNow)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestEventCanBeUpdated(t *testing.T) {
	e := newTestEvent(t, 10)

	assert.NoError(t, e.CanBeUpdated(testNow))

	inside := e.StartDatetime.Add(-UpdateLockWindow + time.Second)
	assert.ErrorIs(t, e.CanBeUpdated(inside), ErrEventUpdateLocked)
	assert.ErrorIs(t, e.ChangeDatetime(e.StartDatetime.Add(24*time.Hour), inside), ErrEventUpdateLocked)
	assert.ErrorIs(t, e.ChangeAddress(uuid.New(), inside), ErrEventUpdateLocked)

	edge := e.StartDatetime.Add(-UpdateLockWindow)
	assert.NoError(t, e.CanBeUpdated(edge))
}

func TestEventChangeDatetime(t *testing.T) {
	e := newTestEvent(t, 10)
	later := testNow.Add(time.Hour)
	start := testNow.Add(72 * time.Hour)

	require.NoError(t, e.ChangeDatetime(start, later))
	assert.Equal(t, start, e.StartDatetime)
	assert.Equal(t, later, e.UpdatedAt)

	assert.ErrorIs(t, e.ChangeDatetime(testNow.Add(-time.Hour), later), ErrEventStartDatetime)
}

func TestEventChangeCapacity(t *testing.T) {
	e := newTestEvent(t, 10)
	_, err := e.Reserve(uuid.New(), 6, testNow)
	require.NoError(t, err)

	assert.ErrorIs(t, e.ChangeCapacity(5, testNow), ErrInvalidCapacity)
	assert.ErrorIs(t, e.ChangeCapacity(101, testNow), ErrInvalidCapacity)
	require.NoError(t, e.ChangeCapacity(6, testNow))
	assert.Equal(t, 0, e.AvailableSeats())
}

func TestEventAddressFor(t *testing.T) {
	e := newTestEvent(t, 10)
	flat := "12"
	addr := &Address{Country: "NL", City: "Utrecht", Street: "Oudegracht", House: "1", Flat: &flat}
	guest, stranger := uuid.New(), uuid.New()

	r, err := e.Reserve(guest, 1, testNow)
	require.NoError(t, err)

	got, err := e.AddressFor(guest, addr)
	require.NoError(t, err)
	assert.Equal(t, "NL, Utrecht, Oudegracht", got)

	_, err = e.ApproveReservation(r.ID, testNow)
	require.NoError(t, err)

	got, _ = e.AddressFor(guest, addr)
	assert.Equal(t, "NL, Utrecht, Oudegracht, 1, 12", got)
	got, _ = e.AddressFor(e.OwnerID, addr)
	assert.Equal(t, "NL, Utrecht, Oudegracht, 1, 12", got)
	got, _ = e.AddressFor(stranger, addr)
	assert.Equal(t, "NL, Utrecht, Oudegracht", got)

	_, err = e.AddressFor(guest, nil)
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestCheckScheduleConflict(t *testing.T) {
	existing := Event{ID: uuid.New(), StartDatetime: testNow.Add(24 * time.Hour)}
	others := []Event{existing}

	assert.ErrorIs(t, CheckScheduleConflict(existing.StartDatetime.Add(2*time.Hour), others, uuid.Nil), ErrEventTimeConflict)
	assert.ErrorIs(t, CheckScheduleConflict(existing.StartDatetime.Add(-2*time.Hour), others, uuid.Nil), ErrEventTimeConflict)
	assert.NoError(t, CheckScheduleConflict(existing.StartDatetime.Add(ScheduleConflictWindow), others, uuid.Nil))
	assert.NoError(t, CheckScheduleConflict(existing.StartDatetime.Add(-ScheduleConflictWindow), others, uuid.Nil))
	assert.NoError(t, CheckScheduleConflict(existing.StartDatetime.Add(time.Hour), others, existing.ID))
}

// Any sequence of reserve, cancel and approve calls keeps the active seats
// within capacity, and a rejected reserve never changes the collection.
func TestEventSeatInvariantProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(MinCapacity, MaxCapacity).Draw(t, "capacity")
		e := newTestEvent(t, capacity)
		users := make([]uuid.UUID, rapid.IntRange(1, 8).Draw(t, "users"))
		for i := range users {
			users[i] = uuid.New()
		}

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			user := rapid.SampledFrom(users).Draw(t, "user")
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				seats := rapid.IntRange(1, MaxSeatsPerReservation).Draw(t, "seats")
				before := len(e.Reservations())
				available := e.AvailableSeats()
				duplicate := e.HasReservationFor(user)

				_, err := e.Reserve(user, seats, testNow)
				switch {
				case duplicate:
					if err != ErrDuplicateReservation {
						t.Fatalf("expected duplicate error, got %v", err)
					}
				case seats > available:
					if err != ErrNotEnoughSeats {
						t.Fatalf("expected not enough seats, got %v", err)
					}
				default:
					if err != nil {
						t.Fatalf("unexpected error: %v", err)
					}
				}
				if err != nil && len(e.Reservations()) != before {
					t.Fatalf("failed reserve changed the reservation set")
				}
			case 1, 2:
				rs := e.Reservations()
				if len(rs) == 0 {
					continue
				}
				target := rapid.SampledFrom(rs).Draw(t, "reservation")
				if rapid.Bool().Draw(t, "cancel") {
					_, _ = e.CancelReservation(target.ID, testNow)
				} else {
					_, _ = e.ApproveReservation(target.ID, testNow)
				}
			}

			if e.ReservedSeats() > e.Capacity {
				t.Fatalf("reserved %d seats on capacity %d", e.ReservedSeats(), e.Capacity)
			}
			active := map[uuid.UUID]int{}
			for _, r := range e.Reservations() {
				if r.Status.Active() {
					active[r.UserID]++
					if active[r.UserID] > 1 {
						t.Fatalf("user %s holds two active reservations", r.UserID)
					}
				}
			}
		}
	})
}

func TestEventUpdateLockProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := newTestEvent(t, 10)
		// distance to the start, from well past it up to just under the window
		before := time.Duration(rapid.Int64Range(int64(-24*time.Hour), int64(UpdateLockWindow)-1).Draw(t, "before"))
		now := e.StartDatetime.Add(-before)

		if err := e.CanBeUpdated(now); err != ErrEventUpdateLocked {
			t.Fatalf("expected lock %s before start, got %v", before, err)
		}
		if err := e.ChangeCapacity(20, now); err != ErrEventUpdateLocked {
			t.Fatalf("capacity changed inside the lock window: %v", err)
		}
	})
}
