package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-reservation/internal/model"
)

const eventColumns = `id, movie_id, address_id, owner_id, capacity, start_datetime, created_at, updated_at`

// EventRepo persists the Event aggregate: the events row and the
// reservations it owns. Loading an event always loads its reservations;
// saving an event writes back every reservation in the aggregate.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts a new event. A fresh aggregate has no reservations, but
// any present are written as well.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := conn(ctx, r.db).ExecContext(ctx, q,
		e.ID, e.MovieID, e.AddressID, e.OwnerID, e.Capacity, e.StartDatetime, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return r.saveReservations(ctx, e.Reservations())
}

// Update writes the event row and upserts all of its reservations.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	const q = `UPDATE events
               SET movie_id = ?, address_id = ?, capacity = ?, start_datetime = ?, updated_at = ?
               WHERE id = ?`
	_, err := conn(ctx, r.db).ExecContext(ctx, q,
		e.MovieID, e.AddressID, e.Capacity, e.StartDatetime, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return r.saveReservations(ctx, e.Reservations())
}

// saveReservations upserts rs in a single statement. Passing an empty slice
// has no effect.
func (r *EventRepo) saveReservations(ctx context.Context, rs []model.Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO reservations (` + reservationColumns + `) VALUES `)
	args := make([]any, 0, len(rs)*7)
	for i, res := range rs {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, res.ID, res.UserID, res.EventID, res.Seats, string(res.Status), res.CreatedAt, res.UpdatedAt)
	}
	b.WriteString(` ON DUPLICATE KEY UPDATE seats = VALUES(seats), status = VALUES(status), updated_at = VALUES(updated_at)`)
	if _, err := conn(ctx, r.db).ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("save reservations: %w", err)
	}
	return nil
}

// Delete removes the event; its reservations go with it through the
// foreign key cascade.
func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

// GetByID loads an event and its reservations without locking.
func (r *EventRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	q := conn(ctx, r.db)
	e, err := scanEvent(q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	rs, err := queryReservations(ctx, q, `SELECT `+reservationColumns+` FROM reservations WHERE event_id = ? ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	e.RestoreReservations(rs)
	return e, nil
}

// GetForUpdate loads an event and takes its row lock for the rest of the
// transaction in ctx. The read uses SKIP LOCKED and never waits: when the
// row is held by another transaction it returns model.ErrEventLocked, and
// model.ErrEventNotFound only when the row does not exist.
func (r *EventRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}
	e, err := scanEvent(tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? FOR UPDATE SKIP LOCKED`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.lockMiss(ctx, tx, id)
		}
		if isLockContention(err) {
			return nil, model.ErrEventLocked
		}
		return nil, fmt.Errorf("lock event: %w", err)
	}
	// Reservations only change under the event lock, so a locking read here
	// sees the latest committed rows without contending.
	rs, err := queryReservations(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations WHERE event_id = ? ORDER BY created_at, id FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	e.RestoreReservations(rs)
	return e, nil
}

// lockMiss tells a skipped row apart from a missing one with a plain
// consistent read, which does not wait for the lock.
func (r *EventRepo) lockMiss(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.ErrEventNotFound
	case err != nil:
		return fmt.Errorf("probe event: %w", err)
	}
	return model.ErrEventLocked
}

// ListByOwner returns every event of ownerID ordered by start. Reservations
// are not loaded; the result feeds the schedule conflict check.
func (r *EventRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Event, error) {
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE owner_id = ? ORDER BY start_datetime`, ownerID)
}

// List pages through events that have not started yet, newest first, with
// their reservations loaded.
func (r *EventRepo) List(ctx context.Context, now time.Time, offset, limit int) ([]model.Event, error) {
	events, err := r.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE start_datetime > ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		now, limit, offset)
	if err != nil {
		return nil, err
	}
	return events, r.attachReservations(ctx, events)
}

// ListByAddresses returns upcoming events held at any of addressIDs.
func (r *EventRepo) ListByAddresses(ctx context.Context, addressIDs []uuid.UUID, now time.Time) ([]model.Event, error) {
	if len(addressIDs) == 0 {
		return []model.Event{}, nil
	}
	args := make([]any, 0, len(addressIDs)+1)
	for _, id := range addressIDs {
		args = append(args, id)
	}
	args = append(args, now)
	q := `SELECT ` + eventColumns + ` FROM events WHERE address_id IN (` + placeholders(len(addressIDs)) +
		`) AND start_datetime > ? ORDER BY start_datetime`
	events, err := r.queryEvents(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return events, r.attachReservations(ctx, events)
}

func (r *EventRepo) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// attachReservations loads the reservations of events with one query.
func (r *EventRepo) attachReservations(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	args := make([]any, 0, len(events))
	for _, e := range events {
		args = append(args, e.ID)
	}
	rs, err := queryReservations(ctx, conn(ctx, r.db),
		`SELECT `+reservationColumns+` FROM reservations WHERE event_id IN (`+placeholders(len(events))+`) ORDER BY created_at, id`,
		args...)
	if err != nil {
		return err
	}
	byEvent := make(map[uuid.UUID][]model.Reservation, len(events))
	for _, res := range rs {
		byEvent[res.EventID] = append(byEvent[res.EventID], res)
	}
	for i := range events {
		events[i].RestoreReservations(byEvent[events[i].ID])
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(s rowScanner) (*model.Event, error) {
	var e model.Event
	if err := s.Scan(&e.ID, &e.MovieID, &e.AddressID, &e.OwnerID, &e.Capacity,
		&e.StartDatetime, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.StartDatetime = e.StartDatetime.UTC()
	return &e, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
