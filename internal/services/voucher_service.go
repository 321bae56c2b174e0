package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/database"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
)

// VoucherService validates and redeems discount vouchers. Redeem and
// Rollback are the only writers of a voucher's used_count, and both go
// through the repository's atomic counter updates.
type VoucherService struct {
	voucherRepo *database.VoucherRepository
}

// NewVoucherService creates a new VoucherService
func NewVoucherService(voucherRepo *database.VoucherRepository) *VoucherService {
	return &VoucherService{voucherRepo: voucherRepo}
}

// Validate checks a voucher code against a prospective order and returns the
// voucher plus the computed discount. Checks short-circuit in a fixed order
// so the reported reason is always the first failing condition: exists,
// active, date window, company scope, global usage, per-user usage, minimum
// order value, and finally a non-zero discount.
func (s *VoucherService) Validate(code string, companyID string, orderAmount float64, userID string) (*models.Voucher, float64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, 0, models.NewValidationError("voucher code is required")
	}

	voucher, err := s.voucherRepo.GetByCode(code)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to look up voucher: %w", err)
	}
	if voucher == nil {
		return nil, 0, &models.NotFoundError{Resource: "voucher", ID: code}
	}

	if !voucher.IsActive {
		return nil, 0, models.NewValidationError("voucher %s is not active", code)
	}
	if !voucher.InDateWindow(time.Now()) {
		return nil, 0, models.NewValidationError("voucher %s is outside its validity period", code)
	}
	if !voucher.AppliesTo(companyID) {
		return nil, 0, models.NewValidationError("voucher %s does not apply to this operator", code)
	}
	if voucher.UsedCount >= voucher.UsageLimit {
		return nil, 0, &models.ConflictError{Detail: fmt.Sprintf("voucher %s is fully redeemed", code)}
	}

	if voucher.UsagePerUser > 0 && userID != "" {
		userUsage, err := s.voucherRepo.CountUsageByUser(voucher.ID, userID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to count voucher usage: %w", err)
		}
		if userUsage >= voucher.UsagePerUser {
			return nil, 0, &models.ConflictError{Detail: fmt.Sprintf("voucher %s usage limit reached for this user", code)}
		}
	}

	if voucher.MinOrderValue != nil && orderAmount < *voucher.MinOrderValue {
		return nil, 0, models.NewValidationError("order amount is below the %.0f minimum for voucher %s", *voucher.MinOrderValue, code)
	}

	discount := voucher.ComputeDiscount(orderAmount)
	if discount <= 0 {
		return nil, 0, models.NewValidationError("voucher %s yields no discount for this order", code)
	}
	return voucher, discount, nil
}

// RedeemTx consumes one usage slot and records the usage row, inside the
// caller's transaction. The atomic increment is guarded by the usage limit
// in the same statement, so two concurrent redemptions of the last slot
// cannot both succeed; the loser gets a ConflictError and the transaction
// aborts with no partial state. The increment also takes the voucher row
// lock, which serializes redemptions of the same voucher: the per-user
// count below runs under that lock and is the authoritative check, where
// the unlocked count in Validate is only an early courtesy rejection.
func (s *VoucherService) RedeemTx(tx *sqlx.Tx, voucher *models.Voucher, reservationID string, userID string, discount float64) (*models.VoucherUsage, error) {
	incremented, err := s.voucherRepo.IncrementUsageTx(tx, voucher.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem voucher: %w", err)
	}
	if !incremented {
		return nil, &models.ConflictError{Detail: fmt.Sprintf("voucher %s is fully redeemed", voucher.Code)}
	}

	if voucher.UsagePerUser > 0 && userID != "" {
		userUsage, err := s.voucherRepo.CountUsageByUserTx(tx, voucher.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to count voucher usage: %w", err)
		}
		if userUsage >= voucher.UsagePerUser {
			return nil, &models.ConflictError{Detail: fmt.Sprintf("voucher %s usage limit reached for this user", voucher.Code)}
		}
	}

	usage := &models.VoucherUsage{
		VoucherID:     voucher.ID,
		ReservationID: reservationID,
		Discount:      discount,
	}
	if userID != "" {
		usage.UserID = &userID
	}
	if err := s.voucherRepo.InsertUsageTx(tx, usage); err != nil {
		return nil, fmt.Errorf("failed to record voucher usage: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"voucher_id":     voucher.ID,
		"voucher_code":   voucher.Code,
		"reservation_id": reservationID,
		"discount":       discount,
	}).Info("Voucher redeemed")
	return usage, nil
}

// RollbackTx returns a redeemed slot when the reservation it paid for is
// cancelled before payment completed: decrements used_count (floored at
// zero) and removes the usage row. A reservation with no usage row is a
// no-op, so cancellation stays idempotent.
func (s *VoucherService) RollbackTx(tx *sqlx.Tx, reservationID string) error {
	usage, err := s.voucherRepo.GetUsageByReservationTx(tx, reservationID)
	if err != nil {
		return fmt.Errorf("failed to look up voucher usage: %w", err)
	}
	if usage == nil {
		return nil
	}

	if err := s.voucherRepo.RollbackUsageTx(tx, usage); err != nil {
		return fmt.Errorf("failed to roll back voucher usage: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"voucher_id":     usage.VoucherID,
		"reservation_id": reservationID,
	}).Info("Voucher usage rolled back")
	return nil
}
