package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/event-reservation/internal/model"
)

const addressColumns = `id, user_id, latitude, longitude, country, city, street, house, flat, created_at, updated_at`

// earthRadiusKm is the mean radius used by the haversine distance.
const earthRadiusKm = 6371.0

// AddressRepo reads the address service's table. The reservation engine
// never writes addresses; any lookup failure is reported as
// model.ErrAddressNotFound.
type AddressRepo struct {
	db *sql.DB
}

// NewAddressRepo returns a new AddressRepo bound to the given database.
func NewAddressRepo(db *sql.DB) *AddressRepo { return &AddressRepo{db: db} }

// GetAddress returns the address with the given ID.
func (r *AddressRepo) GetAddress(ctx context.Context, id uuid.UUID) (*model.Address, error) {
	a, err := scanAddress(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAddressNotFound
		}
		return nil, fmt.Errorf("%w: %v", model.ErrAddressNotFound, err)
	}
	return a, nil
}

// NearbyAddresses returns the addresses within radiusKm of (lat, lon),
// closest first.
func (r *AddressRepo) NearbyAddresses(ctx context.Context, lat, lon, radiusKm float64) ([]model.Address, error) {
	const q = `SELECT ` + addressColumns + ` FROM (
                   SELECT a.*, ? * ACOS(LEAST(1, GREATEST(-1,
                       COS(RADIANS(?)) * COS(RADIANS(a.latitude)) * COS(RADIANS(a.longitude) - RADIANS(?)) +
                       SIN(RADIANS(?)) * SIN(RADIANS(a.latitude))))) AS distance_km
                   FROM addresses a
               ) d
               WHERE d.distance_km <= ?
               ORDER BY d.distance_km`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, earthRadiusKm, lat, lon, lat, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrAddressNotFound, err)
	}
	defer rows.Close()
	out := []model.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrAddressNotFound, err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrAddressNotFound, err)
	}
	return out, nil
}

func scanAddress(s rowScanner) (*model.Address, error) {
	var (
		a    model.Address
		flat sql.NullString
	)
	if err := s.Scan(&a.ID, &a.UserID, &a.Latitude, &a.Longitude, &a.Country, &a.City,
		&a.Street, &a.House, &flat, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if flat.Valid {
		f := flat.String
		a.Flat = &f
	}
	return &a, nil
}
