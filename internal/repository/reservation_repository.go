package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/event-reservation/internal/model"
)

const reservationColumns = `id, user_id, event_id, seats, status, created_at, updated_at`

// ReservationRepo gives direct access to reservation rows for the flows
// around the core: a guest's own bookings, lookups by ID and status writes.
// EventService.ReserveSeats writes each new reservation through Create in
// the same transaction that holds the event row lock.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create inserts a single reservation.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := conn(ctx, r.db).ExecContext(ctx, q,
		res.ID, res.UserID, res.EventID, res.Seats, string(res.Status), res.CreatedAt, res.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetByID returns model.ErrReservationNotFound when no row matches.
func (r *ReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	res, err := scanReservation(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrReservationNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// ListByUser returns the reservations of userID, newest first. A user with
// no reservations gets an empty, non-nil slice.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error) {
	return queryReservations(ctx, conn(ctx, r.db),
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
}

// Update writes seats and status back to an existing row.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	const q = `UPDATE reservations SET seats = ?, status = ?, updated_at = ? WHERE id = ?`
	if _, err := conn(ctx, r.db).ExecContext(ctx, q, res.Seats, string(res.Status), res.UpdatedAt, res.ID); err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	return nil
}

// Delete physically removes a reservation row.
func (r *ReservationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if n == 0 {
		return model.ErrReservationNotFound
	}
	return nil
}

func queryReservations(ctx context.Context, q querier, query string, args ...any) ([]model.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		res    model.Reservation
		status string
	)
	if err := s.Scan(&res.ID, &res.UserID, &res.EventID, &res.Seats, &status, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	if !res.Status.Valid() {
		return nil, fmt.Errorf("unknown reservation status %q", status)
	}
	return &res, nil
}
