package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name        string
		voucher     Voucher
		orderAmount float64
		want        float64
	}{
		{
			name:        "PercentDiscount",
			voucher:     Voucher{DiscountType: DiscountTypePercent, DiscountValue: 10},
			orderAmount: 200000,
			want:        20000,
		},
		{
			name: "PercentCappedByMaxDiscount",
			voucher: Voucher{
				DiscountType:  DiscountTypePercent,
				DiscountValue: 10,
				MaxDiscount:   floatPtr(5000),
			},
			orderAmount: 200000,
			want:        5000,
		},
		{
			name:        "FixedAmountDiscount",
			voucher:     Voucher{DiscountType: DiscountTypeAmount, DiscountValue: 15000},
			orderAmount: 200000,
			want:        15000,
		},
		{
			name:        "FixedAmountCappedByOrderTotal",
			voucher:     Voucher{DiscountType: DiscountTypeAmount, DiscountValue: 300000},
			orderAmount: 200000,
			want:        200000,
		},
		{
			name:        "NegativeDiscountValueClampedToZero",
			voucher:     Voucher{DiscountType: DiscountTypeAmount, DiscountValue: -500},
			orderAmount: 200000,
			want:        0,
		},
		{
			name:        "UnknownTypeGivesNothing",
			voucher:     Voucher{DiscountType: "mystery", DiscountValue: 50},
			orderAmount: 200000,
			want:        0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.voucher.ComputeDiscount(tt.orderAmount))
		})
	}
}

func TestInDateWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-24 * time.Hour)
	after := now.Add(24 * time.Hour)

	t.Run("NoBounds", func(t *testing.T) {
		v := Voucher{}
		assert.True(t, v.InDateWindow(now))
	})

	t.Run("WithinBounds", func(t *testing.T) {
		v := Voucher{ValidFrom: &before, ValidUntil: &after}
		assert.True(t, v.InDateWindow(now))
	})

	t.Run("NotStartedYet", func(t *testing.T) {
		v := Voucher{ValidFrom: &after}
		assert.False(t, v.InDateWindow(now))
	})

	t.Run("Expired", func(t *testing.T) {
		v := Voucher{ValidUntil: &before}
		assert.False(t, v.InDateWindow(now))
	})
}

func TestAppliesTo(t *testing.T) {
	company := "company-1"

	t.Run("GlobalVoucher", func(t *testing.T) {
		v := Voucher{}
		assert.True(t, v.AppliesTo("any-company"))
	})

	t.Run("MatchingCompany", func(t *testing.T) {
		v := Voucher{CompanyID: &company}
		assert.True(t, v.AppliesTo("company-1"))
	})

	t.Run("OtherCompany", func(t *testing.T) {
		v := Voucher{CompanyID: &company}
		assert.False(t, v.AppliesTo("company-2"))
	})
}
