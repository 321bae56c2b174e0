package models

import (
	"time"
)

// TripStatus represents the lifecycle status of a scheduled trip
type TripStatus string

const (
	TripStatusScheduled  TripStatus = "scheduled"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
)

// Valid reports whether the value is a known trip status
func (s TripStatus) Valid() bool {
	switch s {
	case TripStatusScheduled, TripStatusInProgress, TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// Trip represents a scheduled run of a vehicle on a route. Trip and Seat rows
// are created by the scheduling back-office; the booking core only reads them,
// except for lifecycle status transitions.
type Trip struct {
	ID                string     `json:"id" db:"id"`
	CompanyID         string     `json:"company_id" db:"company_id"`
	RouteName         string     `json:"route_name" db:"route_name"`
	DepartureDatetime time.Time  `json:"departure_datetime" db:"departure_datetime"`
	ArrivalDatetime   *time.Time `json:"arrival_datetime,omitempty" db:"arrival_datetime"`
	TotalSeats        int        `json:"total_seats" db:"total_seats"`
	BasePrice         float64    `json:"base_price" db:"base_price"`
	Status            TripStatus `json:"status" db:"status"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// IsBookable reports whether new reservations may be created against the trip
func (t *Trip) IsBookable() bool {
	return t.Status == TripStatusScheduled
}

// SeatType categorizes seats on a vehicle
type SeatType string

const (
	SeatTypeStandard SeatType = "standard"
	SeatTypeVIP      SeatType = "vip"
	SeatTypeSleeper  SeatType = "sleeper"
)

// Seat is a named slot on a vehicle. The seat price is the trip base price
// multiplied by PriceMultiplier. Seats carry no reservation state; occupancy
// is always derived from the reservation ledger.
type Seat struct {
	ID              string    `json:"id" db:"id"`
	TripID          string    `json:"trip_id" db:"trip_id"`
	SeatNumber      string    `json:"seat_number" db:"seat_number"`
	SeatType        SeatType  `json:"seat_type" db:"seat_type"`
	PriceMultiplier float64   `json:"price_multiplier" db:"price_multiplier"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// TripStatusLogEntry is an append-only audit record of a trip status
// transition. Never mutated after insert.
type TripStatusLogEntry struct {
	ID         string     `json:"id" db:"id"`
	TripID     string     `json:"trip_id" db:"trip_id"`
	FromStatus TripStatus `json:"from_status" db:"from_status"`
	ToStatus   TripStatus `json:"to_status" db:"to_status"`
	ActorID    string     `json:"actor_id" db:"actor_id"`
	Note       *string    `json:"note,omitempty" db:"note"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
