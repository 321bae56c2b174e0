package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
)

// TripRepository handles database operations for trips, seats and the trip
// status audit log. Trip and seat rows are created by the scheduling
// back-office; the booking core reads them and drives status transitions.
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// BeginTx starts a new transaction
func (r *TripRepository) BeginTx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

const tripColumns = `
	id, company_id, route_name, departure_datetime, arrival_datetime,
	total_seats, base_price, status, created_at, updated_at`

// GetByID retrieves a trip by ID
func (r *TripRepository) GetByID(tripID string) (*models.Trip, error) {
	var trip models.Trip
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	err := r.db.Get(&trip, query, tripID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// GetForUpdateTx retrieves a trip under a row-level lock. The lock serializes
// all reservation attempts against the same trip for the transaction's
// duration; it is the only blocking lock in the booking path.
func (r *TripRepository) GetForUpdateTx(tx *sqlx.Tx, tripID string) (*models.Trip, error) {
	var trip models.Trip
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE`

	err := tx.Get(&trip, query, tripID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock trip: %w", err)
	}
	return &trip, nil
}

// GetSeatsByTrip returns the full seat map of a trip, ordered by seat number
func (r *TripRepository) GetSeatsByTrip(tripID string) ([]models.Seat, error) {
	query := `
		SELECT id, trip_id, seat_number, seat_type, price_multiplier, created_at
		FROM seats
		WHERE trip_id = $1
		ORDER BY seat_number`

	var seats []models.Seat
	if err := r.db.Select(&seats, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to get seats: %w", err)
	}
	return seats, nil
}

// GetSeatsByTripTx returns the seat map inside an open transaction
func (r *TripRepository) GetSeatsByTripTx(tx *sqlx.Tx, tripID string) ([]models.Seat, error) {
	query := `
		SELECT id, trip_id, seat_number, seat_type, price_multiplier, created_at
		FROM seats
		WHERE trip_id = $1
		ORDER BY seat_number`

	var seats []models.Seat
	if err := tx.Select(&seats, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to get seats: %w", err)
	}
	return seats, nil
}

// UpdateStatusGuardedTx moves a trip from one status to another. The WHERE
// guard on the current status makes the transition lose cleanly if another
// writer got there first; callers must treat zero affected rows as a
// rejected transition.
func (r *TripRepository) UpdateStatusGuardedTx(tx *sqlx.Tx, tripID string, from, to models.TripStatus) (bool, error) {
	query := `
		UPDATE trips
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`

	result, err := tx.Exec(query, tripID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update trip status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// InsertStatusLogTx appends one trip status audit entry
func (r *TripRepository) InsertStatusLogTx(tx *sqlx.Tx, entry *models.TripStatusLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO trip_status_logs (id, trip_id, from_status, to_status, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(query,
		entry.ID, entry.TripID, entry.FromStatus, entry.ToStatus,
		entry.ActorID, entry.Note, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trip status log: %w", err)
	}
	return nil
}

// GetStatusLog returns the audit trail for a trip, oldest first
func (r *TripRepository) GetStatusLog(tripID string) ([]models.TripStatusLogEntry, error) {
	query := `
		SELECT id, trip_id, from_status, to_status, actor_id, note, created_at
		FROM trip_status_logs
		WHERE trip_id = $1
		ORDER BY created_at`

	var entries []models.TripStatusLogEntry
	if err := r.db.Select(&entries, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to get trip status log: %w", err)
	}
	return entries, nil
}
