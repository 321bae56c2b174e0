package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/config"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/database"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
)

// ReservationService orchestrates the booking flow: seat holds, voucher
// redemption, payment attempt creation, and the two-phase cancellation
// path. Every mutation runs inside one transaction with the trip row (or
// reservation row, for cancellation) locked for the duration, which is the
// mechanism that keeps confirmed seat sets disjoint.
type ReservationService struct {
	tripRepo        *database.TripRepository
	reservationRepo *database.ReservationRepository
	paymentRepo     *database.PaymentRepository
	inventory       *InventoryService
	vouchers        *VoucherService
	cfg             config.BookingConfig
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	tripRepo *database.TripRepository,
	reservationRepo *database.ReservationRepository,
	paymentRepo *database.PaymentRepository,
	inventory *InventoryService,
	vouchers *VoucherService,
	cfg config.BookingConfig,
) *ReservationService {
	return &ReservationService{
		tripRepo:        tripRepo,
		reservationRepo: reservationRepo,
		paymentRepo:     paymentRepo,
		inventory:       inventory,
		vouchers:        vouchers,
		cfg:             cfg,
	}
}

// newOrderID generates the globally unique gateway order identifier for a
// payment attempt. It doubles as the callback idempotency key.
func newOrderID() string {
	return "ORD" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// CreateReservation books the requested seats on a trip, optionally applying
// a voucher, and opens a pending payment attempt. The whole flow runs in one
// transaction holding the trip row lock: trip status gate, availability
// recheck, pricing, voucher redemption, and the reservation/payment inserts
// all commit or abort together.
func (s *ReservationService) CreateReservation(userID string, req *models.CreateReservationRequest) (*models.ReservationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, models.NewValidationError("%s", err.Error())
	}
	if len(req.SeatIDs) > s.cfg.MaxSeatsPerOrder {
		return nil, models.NewValidationError("maximum %d seats can be reserved at once", s.cfg.MaxSeatsPerOrder)
	}
	seatIDs := NormalizeSeatIDs(req.SeatIDs)

	tx, err := s.reservationRepo.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	trip, err := s.tripRepo.GetForUpdateTx(tx, req.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock trip: %w", err)
	}
	if trip == nil {
		return nil, &models.NotFoundError{Resource: "trip", ID: req.TripID}
	}
	if !trip.IsBookable() {
		return nil, &models.ForbiddenTransitionError{
			Entity: "trip",
			From:   string(trip.Status),
			To:     "book",
		}
	}

	if err := s.inventory.CheckAvailabilityTx(tx, trip.ID, seatIDs); err != nil {
		return nil, err
	}

	grossPrice, err := s.inventory.PriceSeatsTx(tx, trip, seatIDs)
	if err != nil {
		return nil, err
	}

	reservation := &models.Reservation{
		ID:             uuid.New().String(),
		TripID:         trip.ID,
		UserID:         userID,
		SeatIDs:        seatIDs,
		PassengerName:  req.PassengerName,
		PassengerPhone: req.PassengerPhone,
		PassengerEmail: req.PassengerEmail,
		TotalPrice:     grossPrice,
		BookingStatus:  models.BookingStatusConfirmed,
		PaymentStatus:  models.ReservationPaymentPending,
	}

	if req.VoucherCode != nil && *req.VoucherCode != "" {
		voucher, discount, err := s.vouchers.Validate(*req.VoucherCode, trip.CompanyID, grossPrice, userID)
		if err != nil {
			return nil, err
		}
		if _, err := s.vouchers.RedeemTx(tx, voucher, reservation.ID, userID, discount); err != nil {
			return nil, err
		}
		reservation.VoucherID = &voucher.ID
		reservation.DiscountAmount = discount
	}

	if err := s.reservationRepo.CreateTx(tx, reservation); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	payment := &models.Payment{
		ID:             uuid.New().String(),
		ReservationID:  reservation.ID,
		OrderID:        newOrderID(),
		Amount:         reservation.PayableAmount(),
		DiscountAmount: reservation.DiscountAmount,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  models.PaymentStatusPending,
	}
	if err := s.paymentRepo.CreateTx(tx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"trip_id":        trip.ID,
		"user_id":        userID,
		"seats":          seatIDs,
		"total_price":    grossPrice,
		"discount":       reservation.DiscountAmount,
		"order_id":       payment.OrderID,
	}).Info("Reservation created")

	return &models.ReservationResponse{
		Reservation:    reservation,
		PaymentID:      payment.ID,
		PaymentOrderID: payment.OrderID,
		AmountDue:      payment.Amount,
	}, nil
}

// GetReservation returns one reservation with its payment attempts, checking
// that the caller owns it unless the caller is staff.
func (s *ReservationService) GetReservation(reservationID, userID string, isStaff bool) (*models.Reservation, []models.Payment, error) {
	reservation, err := s.reservationRepo.GetByID(reservationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if reservation == nil {
		return nil, nil, &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	if !isStaff && reservation.UserID != userID {
		return nil, nil, &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}

	payments, err := s.paymentRepo.GetByReservationID(reservationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get payments: %w", err)
	}
	return reservation, payments, nil
}

// GetUserReservations lists a user's reservations, newest first
func (s *ReservationService) GetUserReservations(userID string, limit, offset int) ([]models.Reservation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.reservationRepo.GetByUserID(userID, limit, offset)
}

// RequestCancellation starts the two-phase cancellation: the reservation
// moves to cancel_requested and keeps holding its seats until approval. Only
// a confirmed reservation may enter this state.
func (s *ReservationService) RequestCancellation(reservationID, userID string, isStaff bool, reason *string) (*models.Reservation, error) {
	tx, err := s.reservationRepo.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reservation, err := s.reservationRepo.GetForUpdateTx(tx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}
	if reservation == nil {
		return nil, &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	if !isStaff && reservation.UserID != userID {
		return nil, &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	if !reservation.CanRequestCancellation() {
		return nil, &models.ForbiddenTransitionError{
			Entity: "reservation",
			From:   string(reservation.BookingStatus),
			To:     string(models.BookingStatusCancelRequested),
		}
	}

	if err := s.reservationRepo.MarkCancelRequestedTx(tx, reservationID, reason); err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation request: %w", err)
	}

	reservation.BookingStatus = models.BookingStatusCancelRequested
	if reason != nil {
		reservation.CancelReason = reason
	}
	logrus.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"user_id":        userID,
	}).Info("Cancellation requested")
	return reservation, nil
}

// ApproveCancellation completes the two-phase cancellation. If payment never
// completed, the seats are released, the pending payment attempt is voided,
// and any voucher redemption rolls back. If payment did complete, the money
// side instead routes to refund_pending so collected funds are never silently
// voided. The reservation row lock is taken before the payment row lock;
// callback application orders its locks the same way.
func (s *ReservationService) ApproveCancellation(reservationID string, actorID string, reason *string) (*models.Reservation, error) {
	tx, err := s.reservationRepo.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reservation, err := s.reservationRepo.GetForUpdateTx(tx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}
	if reservation == nil {
		return nil, &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	if reservation.BookingStatus != models.BookingStatusCancelRequested &&
		reservation.BookingStatus != models.BookingStatusConfirmed {
		return nil, &models.ForbiddenTransitionError{
			Entity: "reservation",
			From:   string(reservation.BookingStatus),
			To:     string(models.BookingStatusCancelled),
		}
	}

	pending, err := s.paymentRepo.GetPendingByReservationForUpdateTx(tx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock pending payment: %w", err)
	}
	if pending != nil {
		voided, err := s.paymentRepo.MarkResultTx(tx, pending.ID, models.PaymentStatusCancelled, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to void pending payment: %w", err)
		}
		if !voided {
			// Lost the race with a concurrent callback that just landed.
			return nil, &models.ConflictError{Detail: "payment settled concurrently, retry the cancellation"}
		}
	}

	finalPaymentStatus := models.ReservationPaymentCancelled
	if reservation.PaymentStatus == models.ReservationPaymentPaid {
		finalPaymentStatus = models.ReservationPaymentRefundPending
	} else {
		if err := s.vouchers.RollbackTx(tx, reservationID); err != nil {
			return nil, err
		}
	}

	if err := s.reservationRepo.MarkCancelledTx(tx, reservationID, finalPaymentStatus, reason); err != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	now := time.Now()
	reservation.BookingStatus = models.BookingStatusCancelled
	reservation.PaymentStatus = finalPaymentStatus
	reservation.CancelledAt = &now
	reservation.CancelReason = reason

	logrus.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"actor_id":       actorID,
		"payment_status": finalPaymentStatus,
	}).Info("Reservation cancelled")
	return reservation, nil
}

// RetryPayment opens a fresh payment attempt with a new order identifier
// after a failed one. The reservation keeps its seats and voucher; only one
// non-terminal payment may exist per reservation at a time.
func (s *ReservationService) RetryPayment(reservationID, userID string, isStaff bool, paymentMethod string) (*models.Payment, error) {
	tx, err := s.reservationRepo.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reservation, err := s.reservationRepo.GetForUpdateTx(tx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}
	if reservation == nil {
		return nil, &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	if !isStaff && reservation.UserID != userID {
		return nil, &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	if reservation.BookingStatus != models.BookingStatusConfirmed {
		return nil, &models.ForbiddenTransitionError{
			Entity: "reservation",
			From:   string(reservation.BookingStatus),
			To:     "retry_payment",
		}
	}
	if reservation.PaymentStatus == models.ReservationPaymentPaid {
		return nil, &models.ConflictError{Detail: "reservation is already paid"}
	}

	pending, err := s.paymentRepo.GetPendingByReservationForUpdateTx(tx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending payment: %w", err)
	}
	if pending != nil {
		return nil, &models.ConflictError{Detail: "a pending payment already exists for this reservation"}
	}

	payment := &models.Payment{
		ID:             uuid.New().String(),
		ReservationID:  reservationID,
		OrderID:        newOrderID(),
		Amount:         reservation.PayableAmount(),
		DiscountAmount: reservation.DiscountAmount,
		PaymentMethod:  paymentMethod,
		PaymentStatus:  models.PaymentStatusPending,
	}
	if err := s.paymentRepo.CreateTx(tx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	if err := s.reservationRepo.UpdatePaymentStatusTx(tx, reservationID, models.ReservationPaymentPending); err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment retry: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"order_id":       payment.OrderID,
	}).Info("Payment retry created")
	return payment, nil
}

// SweepStalePending cancels reservations whose payment has been pending
// longer than the configured TTL. It reuses the approval path one
// reservation at a time so each sweep victim gets the full rollback
// semantics; individual failures are logged and skipped.
func (s *ReservationService) SweepStalePending(limit int) int {
	cutoff := time.Now().Add(-s.cfg.PendingPaymentTTL)
	stale, err := s.reservationRepo.GetStalePending(cutoff, limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to list stale pending reservations")
		return 0
	}

	reason := "payment window expired"
	swept := 0
	for i := range stale {
		if _, err := s.ApproveCancellation(stale[i].ID, "system", &reason); err != nil {
			logrus.WithFields(logrus.Fields{
				"reservation_id": stale[i].ID,
			}).WithError(err).Warn("Failed to sweep stale reservation")
			continue
		}
		swept++
	}
	if swept > 0 {
		logrus.WithField("count", swept).Info("Swept stale pending reservations")
	}
	return swept
}
