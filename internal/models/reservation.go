package models

import (
	"errors"
	"time"
)

// BookingStatus represents the status of a reservation
type BookingStatus string

const (
	BookingStatusConfirmed       BookingStatus = "confirmed"
	BookingStatusCancelRequested BookingStatus = "cancel_requested"
	BookingStatusCancelled       BookingStatus = "cancelled"
	BookingStatusCompleted       BookingStatus = "completed"
)

// ReservationPaymentStatus is the reservation's money-side status, derived
// from its payment attempts by the reconciliation state machine.
type ReservationPaymentStatus string

const (
	ReservationPaymentPending       ReservationPaymentStatus = "pending"
	ReservationPaymentPaid          ReservationPaymentStatus = "paid"
	ReservationPaymentCancelled     ReservationPaymentStatus = "cancelled"
	ReservationPaymentRefundPending ReservationPaymentStatus = "refund_pending"
	ReservationPaymentRefunded      ReservationPaymentStatus = "refunded"
)

// Reservation is the atomic unit of a purchase: an immutable set of seat
// identifiers on one trip. The seat sets of all confirmed/completed
// reservations on a trip are pairwise disjoint; that invariant is what the
// orchestrator's trip lock protects. Reservations are never hard-deleted;
// cancellation is a status transition so the audit trail survives.
type Reservation struct {
	ID             string                   `json:"id" db:"id"`
	TripID         string                   `json:"trip_id" db:"trip_id"`
	UserID         string                   `json:"user_id" db:"user_id"`
	SeatIDs        StringArray              `json:"seat_ids" db:"seat_ids"`
	PassengerName  string                   `json:"passenger_name" db:"passenger_name"`
	PassengerPhone string                   `json:"passenger_phone" db:"passenger_phone"`
	PassengerEmail *string                  `json:"passenger_email,omitempty" db:"passenger_email"`
	TotalPrice     float64                  `json:"total_price" db:"total_price"`
	VoucherID      *string                  `json:"voucher_id,omitempty" db:"voucher_id"`
	DiscountAmount float64                  `json:"discount_amount" db:"discount_amount"`
	BookingStatus  BookingStatus            `json:"booking_status" db:"booking_status"`
	PaymentStatus  ReservationPaymentStatus `json:"payment_status" db:"payment_status"`
	CancelledAt    *time.Time               `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelReason   *string                  `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt      time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at" db:"updated_at"`
}

// HoldsSeats reports whether the reservation currently occupies its seats
func (r *Reservation) HoldsSeats() bool {
	return r.BookingStatus == BookingStatusConfirmed || r.BookingStatus == BookingStatusCompleted
}

// CanRequestCancellation checks whether a cancellation request is allowed
func (r *Reservation) CanRequestCancellation() bool {
	return r.BookingStatus == BookingStatusConfirmed
}

// PayableAmount is what the passenger owes after the discount
func (r *Reservation) PayableAmount() float64 {
	amount := r.TotalPrice - r.DiscountAmount
	if amount < 0 {
		return 0
	}
	return amount
}

// CreateReservationRequest is the request to create a reservation. Fields are
// enumerated explicitly; unknown or missing required fields are rejected at
// the boundary.
type CreateReservationRequest struct {
	TripID         string   `json:"trip_id" binding:"required"`
	SeatIDs        []string `json:"seat_ids" binding:"required"`
	PassengerName  string   `json:"passenger_name" binding:"required"`
	PassengerPhone string   `json:"passenger_phone" binding:"required"`
	PassengerEmail *string  `json:"passenger_email,omitempty"`
	VoucherCode    *string  `json:"voucher_code,omitempty"`
	PaymentMethod  string   `json:"payment_method" binding:"required"`
}

// Validate validates the create reservation request
func (r *CreateReservationRequest) Validate() error {
	if len(r.SeatIDs) == 0 {
		return errors.New("at least one seat must be selected")
	}
	seen := make(map[string]struct{}, len(r.SeatIDs))
	for _, id := range r.SeatIDs {
		if id == "" {
			return errors.New("seat identifier cannot be empty")
		}
		if _, dup := seen[id]; dup {
			return errors.New("duplicate seat identifier: " + id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// CancelReservationRequest is the request to cancel a reservation
type CancelReservationRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// ReservationResponse is returned after a successful createReservation; the
// client proceeds to the payment redirect using PaymentOrderID.
type ReservationResponse struct {
	Reservation    *Reservation `json:"reservation"`
	PaymentID      string       `json:"payment_id"`
	PaymentOrderID string       `json:"payment_order_id"`
	AmountDue      float64      `json:"amount_due"`
}
