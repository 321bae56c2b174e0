package models

import (
	"time"
)

// DiscountType determines how a voucher's discount is computed
type DiscountType string

const (
	DiscountTypePercent DiscountType = "percent"
	DiscountTypeAmount  DiscountType = "amount"
)

// Voucher is a discount instrument. UsedCount only moves through the atomic
// increment/decrement in VoucherRepository; it never exceeds UsageLimit.
type Voucher struct {
	ID            string       `json:"id" db:"id"`
	Code          string       `json:"code" db:"code"`
	DiscountType  DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue float64      `json:"discount_value" db:"discount_value"`
	MinOrderValue *float64     `json:"min_order_value,omitempty" db:"min_order_value"`
	MaxDiscount   *float64     `json:"max_discount,omitempty" db:"max_discount"`
	ValidFrom     *time.Time   `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil    *time.Time   `json:"valid_until,omitempty" db:"valid_until"`
	CompanyID     *string      `json:"company_id,omitempty" db:"company_id"`
	UsageLimit    int          `json:"usage_limit" db:"usage_limit"`
	UsagePerUser  int          `json:"usage_per_user" db:"usage_per_user"`
	UsedCount     int          `json:"used_count" db:"used_count"`
	IsActive      bool         `json:"is_active" db:"is_active"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}

// InDateWindow reports whether the voucher is usable at the given instant
func (v *Voucher) InDateWindow(now time.Time) bool {
	if v.ValidFrom != nil && now.Before(*v.ValidFrom) {
		return false
	}
	if v.ValidUntil != nil && now.After(*v.ValidUntil) {
		return false
	}
	return true
}

// AppliesTo reports whether the voucher's company scope matches. Global
// vouchers apply everywhere; company-scoped vouchers only to that company.
func (v *Voucher) AppliesTo(companyID string) bool {
	return v.CompanyID == nil || *v.CompanyID == companyID
}

// ComputeDiscount returns the discount for an order amount. The result is
// never negative and never exceeds the order amount.
func (v *Voucher) ComputeDiscount(orderAmount float64) float64 {
	var discount float64
	switch v.DiscountType {
	case DiscountTypePercent:
		discount = orderAmount * v.DiscountValue / 100
		if v.MaxDiscount != nil && discount > *v.MaxDiscount {
			discount = *v.MaxDiscount
		}
	case DiscountTypeAmount:
		discount = v.DiscountValue
	}
	if discount > orderAmount {
		discount = orderAmount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// VoucherUsage links one voucher redemption to exactly one reservation. The
// existence of this row is what increments UsedCount; it is deleted (and the
// counter decremented) if the reservation is cancelled before payment
// completes.
type VoucherUsage struct {
	ID            string    `json:"id" db:"id"`
	VoucherID     string    `json:"voucher_id" db:"voucher_id"`
	ReservationID string    `json:"reservation_id" db:"reservation_id"`
	UserID        *string   `json:"user_id,omitempty" db:"user_id"`
	Discount      float64   `json:"discount" db:"discount"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
