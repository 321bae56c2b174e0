package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
)

// VoucherRepository handles database operations for vouchers and their usage
// records. It is the single writer of used_count; both directions go through
// atomic UPDATE expressions, never read-modify-write in application code.
type VoucherRepository struct {
	db *sqlx.DB
}

// NewVoucherRepository creates a new VoucherRepository
func NewVoucherRepository(db *sqlx.DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

const voucherColumns = `
	id, code, discount_type, discount_value, min_order_value, max_discount,
	valid_from, valid_until, company_id, usage_limit, usage_per_user,
	used_count, is_active, created_at, updated_at`

// GetByCode retrieves a voucher by its code
func (r *VoucherRepository) GetByCode(code string) (*models.Voucher, error) {
	var voucher models.Voucher
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`

	err := r.db.Get(&voucher, query, code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return &voucher, nil
}

// CountUsageByUser returns how many redemptions a user holds on a voucher
func (r *VoucherRepository) CountUsageByUser(voucherID, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM voucher_usages WHERE voucher_id = $1 AND user_id = $2`

	if err := r.db.Get(&count, query, voucherID, userID); err != nil {
		return 0, fmt.Errorf("failed to count voucher usage: %w", err)
	}
	return count, nil
}

// CountUsageByUserTx counts a user's redemptions inside the caller's
// transaction. Run after IncrementUsageTx: the voucher row lock that
// increment takes serializes concurrent redemptions, so this count always
// sees the other side's committed usage rows.
func (r *VoucherRepository) CountUsageByUserTx(tx *sqlx.Tx, voucherID, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM voucher_usages WHERE voucher_id = $1 AND user_id = $2`

	if err := tx.Get(&count, query, voucherID, userID); err != nil {
		return 0, fmt.Errorf("failed to count voucher usage: %w", err)
	}
	return count, nil
}

// IncrementUsageTx consumes one use of the voucher. The usage-limit check
// and the increment are a single statement, so two concurrent redemptions
// racing for the last slot cannot both succeed; the loser sees zero
// affected rows.
func (r *VoucherRepository) IncrementUsageTx(tx *sqlx.Tx, voucherID string) (bool, error) {
	query := `
		UPDATE vouchers
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1 AND used_count < usage_limit`

	result, err := tx.Exec(query, voucherID)
	if err != nil {
		return false, fmt.Errorf("failed to increment voucher usage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// InsertUsageTx records one redemption linking the voucher to a reservation
func (r *VoucherRepository) InsertUsageTx(tx *sqlx.Tx, usage *models.VoucherUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.New().String()
	}
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO voucher_usages (id, voucher_id, reservation_id, user_id, discount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(query,
		usage.ID, usage.VoucherID, usage.ReservationID,
		usage.UserID, usage.Discount, usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert voucher usage: %w", err)
	}
	return nil
}

// GetUsageByReservationTx returns the redemption attached to a reservation,
// or nil when the reservation carried no voucher
func (r *VoucherRepository) GetUsageByReservationTx(tx *sqlx.Tx, reservationID string) (*models.VoucherUsage, error) {
	var usage models.VoucherUsage
	query := `
		SELECT id, voucher_id, reservation_id, user_id, discount, created_at
		FROM voucher_usages
		WHERE reservation_id = $1`

	err := tx.Get(&usage, query, reservationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher usage: %w", err)
	}
	return &usage, nil
}

// RollbackUsageTx undoes one redemption: the counter is decremented
// atomically (floored at zero) and the usage row deleted
func (r *VoucherRepository) RollbackUsageTx(tx *sqlx.Tx, usage *models.VoucherUsage) error {
	decrement := `
		UPDATE vouchers
		SET used_count = GREATEST(used_count - 1, 0), updated_at = NOW()
		WHERE id = $1`

	if _, err := tx.Exec(decrement, usage.VoucherID); err != nil {
		return fmt.Errorf("failed to decrement voucher usage: %w", err)
	}

	remove := `DELETE FROM voucher_usages WHERE id = $1`
	if _, err := tx.Exec(remove, usage.ID); err != nil {
		return fmt.Errorf("failed to delete voucher usage: %w", err)
	}
	return nil
}
