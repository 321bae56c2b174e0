package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
)

// PaymentRepository handles database operations for payments and their
// gateway transaction records
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// BeginTx starts a new transaction
func (r *PaymentRepository) BeginTx() (*sqlx.Tx, error) {
	return r.db.Beginx()
}

const paymentColumns = `
	id, reservation_id, order_id, amount, discount_amount, payment_method,
	payment_status, transaction_id, paid_at, created_at, updated_at`

// CreateTx inserts a new payment attempt inside an open transaction
func (r *PaymentRepository) CreateTx(tx *sqlx.Tx, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	query := `
		INSERT INTO payments (
			id, reservation_id, order_id, amount, discount_amount,
			payment_method, payment_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := tx.Exec(query,
		payment.ID, payment.ReservationID, payment.OrderID,
		payment.Amount, payment.DiscountAmount,
		payment.PaymentMethod, payment.PaymentStatus,
		payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByOrderID retrieves a payment by its gateway order identifier
func (r *PaymentRepository) GetByOrderID(orderID string) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1`

	err := r.db.Get(&payment, query, orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// GetByOrderIDForUpdateTx retrieves a payment by order ID under a row lock.
// The idempotency check and the state transition both happen under this
// lock, so concurrent duplicate callbacks serialize.
func (r *PaymentRepository) GetByOrderIDForUpdateTx(tx *sqlx.Tx, orderID string) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 FOR UPDATE`

	err := tx.Get(&payment, query, orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	return &payment, nil
}

// GetPendingByReservationForUpdateTx returns the reservation's single
// non-terminal payment under a row lock, or nil if none exists
func (r *PaymentRepository) GetPendingByReservationForUpdateTx(tx *sqlx.Tx, reservationID string) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE reservation_id = $1 AND payment_status = 'pending'
		FOR UPDATE`

	err := tx.Get(&payment, query, reservationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock pending payment: %w", err)
	}
	return &payment, nil
}

// MarkResultTx records the terminal outcome of a pending payment. The WHERE
// guard on 'pending' means a concurrent writer that already finished the
// payment wins and this call affects zero rows.
func (r *PaymentRepository) MarkResultTx(tx *sqlx.Tx, paymentID string, status models.PaymentStatus, transactionID *string, paidAt *time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET payment_status = $2,
		    transaction_id = COALESCE($3, transaction_id),
		    paid_at = COALESCE($4, paid_at),
		    updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'`

	result, err := tx.Exec(query, paymentID, status, transactionID, paidAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment result: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// UpdateStatusGuardedTx moves a payment between non-pending states (refund
// flow). Returns false when the payment was not in the expected state.
func (r *PaymentRepository) UpdateStatusGuardedTx(tx *sqlx.Tx, paymentID string, from, to models.PaymentStatus) (bool, error) {
	query := `
		UPDATE payments
		SET payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status = $2`

	result, err := tx.Exec(query, paymentID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// InsertGatewayTransactionTx records the processor-specific outcome of one
// redirect/callback cycle, one row per payment attempt
func (r *PaymentRepository) InsertGatewayTransactionTx(tx *sqlx.Tx, gt *models.GatewayTransaction) error {
	if gt.ID == "" {
		gt.ID = uuid.New().String()
	}
	if gt.CreatedAt.IsZero() {
		gt.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO gateway_transactions (
			id, payment_id, order_id, response_code, bank_code,
			transaction_id, paid_at, signature_verified, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := tx.Exec(query,
		gt.ID, gt.PaymentID, gt.OrderID, gt.ResponseCode, gt.BankCode,
		gt.TransactionID, gt.PaidAt, gt.SignatureVerified, gt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert gateway transaction: %w", err)
	}
	return nil
}

// GetByReservationID returns all payment attempts for a reservation,
// oldest first
func (r *PaymentRepository) GetByReservationID(reservationID string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE reservation_id = $1
		ORDER BY created_at`

	payments := []models.Payment{}
	if err := r.db.Select(&payments, query, reservationID); err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	return payments, nil
}
