package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address is the read model of the address service. Events only reference
// an address by ID; the full record is needed for geolocation and for
// revealing the venue to confirmed guests.
type Address struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Country   string    `json:"country"`
	City      string    `json:"city"`
	Street    string    `json:"street"`
	House     string    `json:"house"`
	Flat      *string   `json:"flat,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullAddress includes house and flat.
func (a Address) FullAddress() string {
	parts := []string{a.Country, a.City, a.Street, a.House}
	if a.Flat != nil {
		parts = append(parts, *a.Flat)
	}
	return strings.Join(parts, ", ")
}

// PublicAddress stops at the street.
func (a Address) PublicAddress() string {
	return strings.Join([]string{a.Country, a.City, a.Street}, ", ")
}
