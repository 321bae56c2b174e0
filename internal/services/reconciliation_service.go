package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/database"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
	"github.com/son28bmt/Bus-Ticketing-sub002/pkg/notify"
)

// ReconciliationService drives the payment state machine from verified
// gateway callbacks and from internal refund actions. Callbacks reach it
// only after signature verification; it trusts its input and concentrates
// on idempotence and the pending -> terminal transitions.
type ReconciliationService struct {
	reservationRepo *database.ReservationRepository
	paymentRepo     *database.PaymentRepository
	notifier        notify.Notifier
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(
	reservationRepo *database.ReservationRepository,
	paymentRepo *database.PaymentRepository,
	notifier notify.Notifier,
) *ReconciliationService {
	return &ReconciliationService{
		reservationRepo: reservationRepo,
		paymentRepo:     paymentRepo,
		notifier:        notifier,
	}
}

// ApplyCallback applies one verified gateway result to the payment it
// references. Unknown orders are acknowledged and discarded; terminal
// payments return their stored status unchanged, which is what makes
// duplicate and reordered callbacks safe. The reservation row lock is taken
// before the payment row lock, matching the cancellation path, so the two
// flows cannot deadlock against each other.
func (s *ReconciliationService) ApplyCallback(result *models.CallbackResult) (*models.CallbackOutcome, error) {
	// Unlocked probe to find the reservation, so locks can be taken in
	// reservation-then-payment order.
	probe, err := s.paymentRepo.GetByOrderID(result.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}
	if probe == nil {
		logrus.WithFields(logrus.Fields{
			"order_id":      result.OrderID,
			"response_code": result.ResponseCode,
		}).Warn("Callback for unknown order, acknowledged and discarded")
		return &models.CallbackOutcome{Known: false}, nil
	}

	tx, err := s.paymentRepo.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reservation, err := s.reservationRepo.GetForUpdateTx(tx, probe.ReservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}

	payment, err := s.paymentRepo.GetByOrderIDForUpdateTx(tx, result.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	if payment == nil {
		return &models.CallbackOutcome{Known: false}, nil
	}
	if payment.IsTerminal() {
		logrus.WithFields(logrus.Fields{
			"order_id": result.OrderID,
			"status":   payment.PaymentStatus,
		}).Info("Duplicate callback against terminal payment, no change")
		return &models.CallbackOutcome{Known: true, Applied: false, Status: payment.PaymentStatus}, nil
	}

	target := models.PaymentStatusFailed
	if result.Result == models.GatewayResultSuccess {
		target = models.PaymentStatusPaid
	}

	var txnID *string
	if result.TransactionID != "" {
		txnID = &result.TransactionID
	}
	paidAt := result.PaidAt
	if target == models.PaymentStatusPaid && paidAt == nil {
		now := time.Now()
		paidAt = &now
	}

	applied, err := s.paymentRepo.MarkResultTx(tx, payment.ID, target, txnID, paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to apply payment result: %w", err)
	}
	if !applied {
		// Guarded update found the row no longer pending; treat as duplicate.
		return &models.CallbackOutcome{Known: true, Applied: false, Status: payment.PaymentStatus}, nil
	}

	gt := &models.GatewayTransaction{
		PaymentID:         payment.ID,
		OrderID:           result.OrderID,
		ResponseCode:      result.ResponseCode,
		TransactionID:     txnID,
		PaidAt:            paidAt,
		SignatureVerified: true,
	}
	if result.BankCode != "" {
		gt.BankCode = &result.BankCode
	}
	if err := s.paymentRepo.InsertGatewayTransactionTx(tx, gt); err != nil {
		return nil, fmt.Errorf("failed to record gateway transaction: %w", err)
	}

	// A failed attempt leaves the reservation bookable for a retry; only
	// success cascades to the reservation's money side.
	if target == models.PaymentStatusPaid {
		if err := s.reservationRepo.UpdatePaymentStatusTx(tx, payment.ReservationID, models.ReservationPaymentPaid); err != nil {
			return nil, fmt.Errorf("failed to update reservation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit callback: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":      result.OrderID,
		"payment_id":    payment.ID,
		"status":        target,
		"response_code": result.ResponseCode,
	}).Info("Gateway callback applied")

	if target == models.PaymentStatusPaid && reservation != nil {
		s.notifyPaid(reservation, payment)
	}
	return &models.CallbackOutcome{Known: true, Applied: true, Status: target}, nil
}

// notifyPaid fires the booking confirmation after commit. Delivery is best
// effort; a failure is logged and never unwinds the payment.
func (s *ReconciliationService) notifyPaid(reservation *models.Reservation, payment *models.Payment) {
	if s.notifier == nil {
		return
	}
	msg := notify.Message{
		Recipient: reservation.PassengerPhone,
		Subject:   "Booking confirmed",
		Body: fmt.Sprintf("Payment of %.0f received for reservation %s, seats %v.",
			payment.Amount, reservation.ID, []string(reservation.SeatIDs)),
	}
	if reservation.PassengerEmail != nil {
		msg.Email = *reservation.PassengerEmail
	}
	if err := s.notifier.Send(msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"reservation_id": reservation.ID,
		}).WithError(err).Warn("Failed to send booking confirmation")
	}
}

// MarkRefundPending queues a paid reservation for refund. The payment row
// stays paid until the refund actually settles; only the reservation's money
// side moves. This is an internal admin action, never driven by the gateway
// callback.
func (s *ReconciliationService) MarkRefundPending(reservationID string, actorID string) error {
	tx, err := s.reservationRepo.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reservation, err := s.reservationRepo.GetForUpdateTx(tx, reservationID)
	if err != nil {
		return fmt.Errorf("failed to lock reservation: %w", err)
	}
	if reservation == nil {
		return &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	if reservation.PaymentStatus != models.ReservationPaymentPaid {
		return &models.ForbiddenTransitionError{
			Entity: "reservation",
			From:   string(reservation.PaymentStatus),
			To:     string(models.ReservationPaymentRefundPending),
		}
	}

	if err := s.reservationRepo.UpdatePaymentStatusTx(tx, reservationID, models.ReservationPaymentRefundPending); err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit refund request: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"actor_id":       actorID,
	}).Info("Refund requested")
	return nil
}

// CompleteRefund records that a queued refund has settled: the paid payment
// row moves to refunded and the reservation's money side follows.
func (s *ReconciliationService) CompleteRefund(reservationID string, paymentID string, actorID string) error {
	tx, err := s.reservationRepo.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reservation, err := s.reservationRepo.GetForUpdateTx(tx, reservationID)
	if err != nil {
		return fmt.Errorf("failed to lock reservation: %w", err)
	}
	if reservation == nil {
		return &models.NotFoundError{Resource: "reservation", ID: reservationID}
	}
	if reservation.PaymentStatus != models.ReservationPaymentRefundPending {
		return &models.ForbiddenTransitionError{
			Entity: "reservation",
			From:   string(reservation.PaymentStatus),
			To:     string(models.ReservationPaymentRefunded),
		}
	}

	moved, err := s.paymentRepo.UpdateStatusGuardedTx(tx, paymentID, models.PaymentStatusPaid, models.PaymentStatusRefunded)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if !moved {
		return &models.ForbiddenTransitionError{Entity: "payment", From: "unknown", To: string(models.PaymentStatusRefunded)}
	}

	if err := s.reservationRepo.UpdatePaymentStatusTx(tx, reservationID, models.ReservationPaymentRefunded); err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit refund: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"payment_id":     paymentID,
		"actor_id":       actorID,
	}).Info("Refund completed")
	return nil
}
