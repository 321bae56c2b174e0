package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
)

// ReservationRepository handles database operations for reservations
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// BeginTx starts a new transaction
func (r *ReservationRepository) BeginTx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

const reservationColumns = `
	id, trip_id, user_id, seat_ids, passenger_name, passenger_phone,
	passenger_email, total_price, voucher_id, discount_amount,
	booking_status, payment_status, cancelled_at, cancel_reason,
	created_at, updated_at`

// CreateTx inserts a new reservation inside an open transaction
func (r *ReservationRepository) CreateTx(tx *sqlx.Tx, reservation *models.Reservation) error {
	if reservation.ID == "" {
		reservation.ID = uuid.New().String()
	}
	now := time.Now()
	reservation.CreatedAt = now
	reservation.UpdatedAt = now

	query := `
		INSERT INTO reservations (
			id, trip_id, user_id, seat_ids, passenger_name, passenger_phone,
			passenger_email, total_price, voucher_id, discount_amount,
			booking_status, payment_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`

	_, err := tx.Exec(query,
		reservation.ID, reservation.TripID, reservation.UserID, reservation.SeatIDs,
		reservation.PassengerName, reservation.PassengerPhone, reservation.PassengerEmail,
		reservation.TotalPrice, reservation.VoucherID, reservation.DiscountAmount,
		reservation.BookingStatus, reservation.PaymentStatus,
		reservation.CreatedAt, reservation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

// GetByID retrieves a reservation by ID
func (r *ReservationRepository) GetByID(reservationID string) (*models.Reservation, error) {
	var reservation models.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	err := r.db.Get(&reservation, query, reservationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &reservation, nil
}

// GetForUpdateTx retrieves a reservation under a row-level lock. Cancellation
// and callback application both take this lock first, which keeps the two
// paths mutually exclusive on the same reservation.
func (r *ReservationRepository) GetForUpdateTx(tx *sqlx.Tx, reservationID string) (*models.Reservation, error) {
	var reservation models.Reservation
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`

	err := tx.Get(&reservation, query, reservationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}
	return &reservation, nil
}

// GetHeldSeatIDsTx returns the union of seat identifiers held by confirmed
// and completed reservations on a trip. Occupancy is always derived from
// this ledger, never from a counter.
func (r *ReservationRepository) GetHeldSeatIDsTx(tx *sqlx.Tx, tripID string) ([]string, error) {
	query := `
		SELECT seat_ids
		FROM reservations
		WHERE trip_id = $1
		  AND booking_status IN ('confirmed', 'completed')`

	rows, err := tx.Query(query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query held seats: %w", err)
	}
	defer rows.Close()

	var held []string
	for rows.Next() {
		var seatIDs []string
		if err := rows.Scan(pq.Array(&seatIDs)); err != nil {
			return nil, fmt.Errorf("failed to scan held seats: %w", err)
		}
		held = append(held, seatIDs...)
	}
	return held, rows.Err()
}

// GetByUserID retrieves all reservations for a user, newest first
func (r *ReservationRepository) GetByUserID(userID string, limit, offset int) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	reservations := []models.Reservation{}
	if err := r.db.Select(&reservations, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to get reservations: %w", err)
	}
	return reservations, nil
}

// UpdatePaymentStatusTx updates the reservation's derived payment status
func (r *ReservationRepository) UpdatePaymentStatusTx(tx *sqlx.Tx, reservationID string, status models.ReservationPaymentStatus) error {
	query := `
		UPDATE reservations
		SET payment_status = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := tx.Exec(query, reservationID, status)
	if err != nil {
		return fmt.Errorf("failed to update reservation payment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	return nil
}

// MarkCancelRequestedTx moves the reservation into cancel_requested and
// records the requester's reason, so the approval step and the API both
// report what the database holds
func (r *ReservationRepository) MarkCancelRequestedTx(tx *sqlx.Tx, reservationID string, reason *string) error {
	query := `
		UPDATE reservations
		SET booking_status = 'cancel_requested',
		    cancel_reason = COALESCE($2, cancel_reason),
		    updated_at = NOW()
		WHERE id = $1`

	result, err := tx.Exec(query, reservationID, reason)
	if err != nil {
		return fmt.Errorf("failed to request cancellation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	return nil
}

// MarkCancelledTx finalizes a cancellation. Seats are released implicitly:
// occupancy queries only count confirmed/completed reservations.
func (r *ReservationRepository) MarkCancelledTx(tx *sqlx.Tx, reservationID string, paymentStatus models.ReservationPaymentStatus, reason *string) error {
	query := `
		UPDATE reservations
		SET booking_status = 'cancelled',
		    payment_status = $2,
		    cancel_reason = $3,
		    cancelled_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1`

	result, err := tx.Exec(query, reservationID, paymentStatus, reason)
	if err != nil {
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	return nil
}

// GetStalePending returns reservations whose payment has been pending longer
// than the cutoff. Consumed by the external sweeper, which routes each one
// through requestCancellation; the core runs no timers of its own.
func (r *ReservationRepository) GetStalePending(cutoff time.Time, limit int) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE booking_status = 'confirmed'
		  AND payment_status = 'pending'
		  AND created_at < $1
		ORDER BY created_at
		LIMIT $2`

	reservations := []models.Reservation{}
	if err := r.db.Select(&reservations, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to get stale pending reservations: %w", err)
	}
	return reservations, nil
}
