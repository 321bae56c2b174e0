package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/config"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/database"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reservationTestColumns = []string{
	"id", "trip_id", "user_id", "seat_ids", "passenger_name", "passenger_phone",
	"passenger_email", "total_price", "voucher_id", "discount_amount",
	"booking_status", "payment_status", "cancelled_at", "cancel_reason",
	"created_at", "updated_at",
}

var paymentTestColumns = []string{
	"id", "reservation_id", "order_id", "amount", "discount_amount", "payment_method",
	"payment_status", "transaction_id", "paid_at", "created_at", "updated_at",
}

func reservationRow(booking models.BookingStatus, payment models.ReservationPaymentStatus) *sqlmock.Rows {
	return sqlmock.NewRows(reservationTestColumns).AddRow(
		"res-1", "trip-1", "user-1", "{A1,A2}", "Nguyen Van A", "0901234567",
		nil, 200000.0, nil, 0.0,
		string(booking), string(payment), nil, nil,
		testTime(0), testTime(0),
	)
}

func pendingPaymentRow() *sqlmock.Rows {
	return sqlmock.NewRows(paymentTestColumns).AddRow(
		"pay-1", "res-1", "ORDX1", 200000.0, 0.0, "card",
		string(models.PaymentStatusPending), nil, nil, testTime(0), testTime(0),
	)
}

func newReservationService(db *sqlx.DB) *ReservationService {
	tripRepo := database.NewTripRepository(db)
	reservationRepo := database.NewReservationRepository(db)
	paymentRepo := database.NewPaymentRepository(db)
	voucherRepo := database.NewVoucherRepository(db)
	return NewReservationService(
		tripRepo,
		reservationRepo,
		paymentRepo,
		NewInventoryService(tripRepo, reservationRepo),
		NewVoucherService(voucherRepo),
		config.BookingConfig{PendingPaymentTTL: 30 * time.Minute, MaxSeatsPerOrder: 10},
	)
}

func validCreateRequest() *models.CreateReservationRequest {
	return &models.CreateReservationRequest{
		TripID:         "trip-1",
		SeatIDs:        []string{"a1", "A2"},
		PassengerName:  "Nguyen Van A",
		PassengerPhone: "0901234567",
		PaymentMethod:  "card",
	}
}

func TestCreateReservation(t *testing.T) {
	t.Run("Success Without Voucher", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = \$1 FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(tripRow(models.TripStatusScheduled))
		// Availability check reads the seat map and the held-seat ledger
		mock.ExpectQuery(`SELECT id, trip_id, seat_number`).
			WithArgs("trip-1").
			WillReturnRows(seatRows("A1", "A2", "B1"))
		mock.ExpectQuery(`SELECT seat_ids`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows([]string{"seat_ids"}).AddRow("{B1}"))
		// Pricing re-reads the seat map
		mock.ExpectQuery(`SELECT id, trip_id, seat_number`).
			WithArgs("trip-1").
			WillReturnRows(seatRows("A1", "A2", "B1"))
		mock.ExpectExec(`INSERT INTO reservations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		resp, err := svc.CreateReservation("user-1", validCreateRequest())
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusConfirmed, resp.Reservation.BookingStatus)
		assert.Equal(t, models.ReservationPaymentPending, resp.Reservation.PaymentStatus)
		assert.Equal(t, []string{"A1", "A2"}, []string(resp.Reservation.SeatIDs))
		assert.InDelta(t, 200000, resp.Reservation.TotalPrice, 0.001)
		assert.InDelta(t, 200000, resp.AmountDue, 0.001)
		assert.NotEmpty(t, resp.PaymentOrderID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	// The seat cap comes from config alone; nothing else imposes a bound
	t.Run("Seat Cap Follows Config", func(t *testing.T) {
		db, mock := newMockDB(t)
		tripRepo := database.NewTripRepository(db)
		reservationRepo := database.NewReservationRepository(db)
		svc := NewReservationService(
			tripRepo,
			reservationRepo,
			database.NewPaymentRepository(db),
			NewInventoryService(tripRepo, reservationRepo),
			NewVoucherService(database.NewVoucherRepository(db)),
			config.BookingConfig{PendingPaymentTTL: 30 * time.Minute, MaxSeatsPerOrder: 12},
		)

		bigOrder := func(seats int) *models.CreateReservationRequest {
			req := validCreateRequest()
			req.SeatIDs = nil
			for i := 1; i <= seats; i++ {
				req.SeatIDs = append(req.SeatIDs, fmt.Sprintf("A%d", i))
			}
			return req
		}

		// 11 seats clear validation under a 12-seat cap and reach the trip
		// lookup
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = \$1 FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows(tripTestColumns))
		mock.ExpectRollback()

		_, err := svc.CreateReservation("user-1", bigOrder(11))
		assert.Equal(t, models.ErrKindNotFound, models.KindOf(err))

		// 13 seats are rejected before any database work
		_, err = svc.CreateReservation("user-1", bigOrder(13))
		assert.Equal(t, models.ErrKindValidation, models.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Trip Not Bookable", func(t *testing.T) {
		for _, status := range []models.TripStatus{models.TripStatusCompleted, models.TripStatusCancelled, models.TripStatusInProgress} {
			db, mock := newMockDB(t)
			svc := newReservationService(db)

			mock.ExpectBegin()
			mock.ExpectQuery(`FROM trips WHERE id = \$1 FOR UPDATE`).
				WithArgs("trip-1").
				WillReturnRows(tripRow(status))
			mock.ExpectRollback()

			_, err := svc.CreateReservation("user-1", validCreateRequest())
			assert.Equal(t, models.ErrKindForbiddenTransition, models.KindOf(err), "status %s must gate booking", status)
			assert.NoError(t, mock.ExpectationsWereMet(), "no rows may be written for status %s", status)
		}
	})

	t.Run("Seat Conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = \$1 FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(tripRow(models.TripStatusScheduled))
		mock.ExpectQuery(`SELECT id, trip_id, seat_number`).
			WithArgs("trip-1").
			WillReturnRows(seatRows("A1", "A2"))
		mock.ExpectQuery(`SELECT seat_ids`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows([]string{"seat_ids"}).AddRow("{A1}"))
		mock.ExpectRollback()

		_, err := svc.CreateReservation("user-1", validCreateRequest())
		var conflict *models.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"A1"}, conflict.Seats)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Trip Not Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = \$1 FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows(tripTestColumns))
		mock.ExpectRollback()

		_, err := svc.CreateReservation("user-1", validCreateRequest())
		assert.Equal(t, models.ErrKindNotFound, models.KindOf(err))
	})

	t.Run("Duplicate Seats Rejected", func(t *testing.T) {
		db, _ := newMockDB(t)
		svc := newReservationService(db)

		req := validCreateRequest()
		req.SeatIDs = []string{"A1", "A1"}
		_, err := svc.CreateReservation("user-1", req)
		assert.Equal(t, models.ErrKindValidation, models.KindOf(err))
	})

	t.Run("Voucher Failure Creates Nothing", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM trips WHERE id = \$1 FOR UPDATE`).
			WithArgs("trip-1").
			WillReturnRows(tripRow(models.TripStatusScheduled))
		mock.ExpectQuery(`SELECT id, trip_id, seat_number`).
			WithArgs("trip-1").
			WillReturnRows(seatRows("A1", "A2"))
		mock.ExpectQuery(`SELECT seat_ids`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows([]string{"seat_ids"}))
		mock.ExpectQuery(`SELECT id, trip_id, seat_number`).
			WithArgs("trip-1").
			WillReturnRows(seatRows("A1", "A2"))
		mock.ExpectQuery(`FROM vouchers WHERE code`).
			WithArgs("NOPE").
			WillReturnRows(sqlmock.NewRows(voucherTestColumns))
		mock.ExpectRollback()

		req := validCreateRequest()
		code := "NOPE"
		req.VoucherCode = &code
		_, err := svc.CreateReservation("user-1", req)
		assert.Equal(t, models.ErrKindNotFound, models.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRequestCancellation(t *testing.T) {
	t.Run("Confirmed Moves To CancelRequested", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)
		reason := "plans changed"

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \$1 FOR UPDATE`).
			WithArgs("res-1").
			WillReturnRows(reservationRow(models.BookingStatusConfirmed, models.ReservationPaymentPending))
		// The requester's reason travels in the same UPDATE that flips the
		// status, so the stored row matches what the API echoes back
		mock.ExpectExec(`UPDATE reservations`).
			WithArgs("res-1", reason).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		reservation, err := svc.RequestCancellation("res-1", "user-1", false, &reason)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelRequested, reservation.BookingStatus)
		require.NotNil(t, reservation.CancelReason)
		assert.Equal(t, reason, *reservation.CancelReason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Cancelled Rejected", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \$1 FOR UPDATE`).
			WithArgs("res-1").
			WillReturnRows(reservationRow(models.BookingStatusCancelled, models.ReservationPaymentCancelled))
		mock.ExpectRollback()

		_, err := svc.RequestCancellation("res-1", "user-1", false, nil)
		assert.Equal(t, models.ErrKindForbiddenTransition, models.KindOf(err))
	})

	t.Run("Foreign Reservation Hidden", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \$1 FOR UPDATE`).
			WithArgs("res-1").
			WillReturnRows(reservationRow(models.BookingStatusConfirmed, models.ReservationPaymentPending))
		mock.ExpectRollback()

		_, err := svc.RequestCancellation("res-1", "user-2", false, nil)
		assert.Equal(t, models.ErrKindNotFound, models.KindOf(err))
	})
}

func TestApproveCancellation(t *testing.T) {
	t.Run("Unpaid Releases Seats And Rolls Back Voucher", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \$1 FOR UPDATE`).
			WithArgs("res-1").
			WillReturnRows(reservationRow(models.BookingStatusCancelRequested, models.ReservationPaymentPending))
		mock.ExpectQuery(`FROM payments`).
			WithArgs("res-1").
			WillReturnRows(pendingPaymentRow())
		mock.ExpectExec(`UPDATE payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		// Voucher rollback path
		mock.ExpectQuery(`FROM voucher_usages WHERE reservation_id`).
			WithArgs("res-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "voucher_id", "reservation_id", "user_id", "discount", "created_at"}).
				AddRow("usage-1", "voucher-1", "res-1", "user-1", 20000.0, testTime(0)))
		mock.ExpectExec(`UPDATE vouchers`).
			WithArgs("voucher-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM voucher_usages`).
			WithArgs("usage-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE reservations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		reservation, err := svc.ApproveCancellation("res-1", "staff-1", nil)
		require.NoError(t, err)
		assert.Equal(t, models.BookingStatusCancelled, reservation.BookingStatus)
		assert.Equal(t, models.ReservationPaymentCancelled, reservation.PaymentStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Paid Routes To RefundPending", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \$1 FOR UPDATE`).
			WithArgs("res-1").
			WillReturnRows(reservationRow(models.BookingStatusCancelRequested, models.ReservationPaymentPaid))
		mock.ExpectQuery(`FROM payments`).
			WithArgs("res-1").
			WillReturnRows(sqlmock.NewRows(paymentTestColumns))
		mock.ExpectExec(`UPDATE reservations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		reservation, err := svc.ApproveCancellation("res-1", "staff-1", nil)
		require.NoError(t, err)
		assert.Equal(t, models.ReservationPaymentRefundPending, reservation.PaymentStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Concurrent Settlement Wins", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \$1 FOR UPDATE`).
			WithArgs("res-1").
			WillReturnRows(reservationRow(models.BookingStatusCancelRequested, models.ReservationPaymentPending))
		mock.ExpectQuery(`FROM payments`).
			WithArgs("res-1").
			WillReturnRows(pendingPaymentRow())
		mock.ExpectExec(`UPDATE payments`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := svc.ApproveCancellation("res-1", "staff-1", nil)
		assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
	})
}

func TestRetryPayment(t *testing.T) {
	t.Run("Creates Fresh Order", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \$1 FOR UPDATE`).
			WithArgs("res-1").
			WillReturnRows(reservationRow(models.BookingStatusConfirmed, models.ReservationPaymentPending))
		mock.ExpectQuery(`FROM payments`).
			WithArgs("res-1").
			WillReturnRows(sqlmock.NewRows(paymentTestColumns))
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE reservations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		payment, err := svc.RetryPayment("res-1", "user-1", false, "card")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPending, payment.PaymentStatus)
		assert.NotEmpty(t, payment.OrderID)
	})

	t.Run("Pending Attempt Blocks Retry", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \$1 FOR UPDATE`).
			WithArgs("res-1").
			WillReturnRows(reservationRow(models.BookingStatusConfirmed, models.ReservationPaymentPending))
		mock.ExpectQuery(`FROM payments`).
			WithArgs("res-1").
			WillReturnRows(pendingPaymentRow())
		mock.ExpectRollback()

		_, err := svc.RetryPayment("res-1", "user-1", false, "card")
		assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
	})

	t.Run("Paid Reservation Blocks Retry", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newReservationService(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \$1 FOR UPDATE`).
			WithArgs("res-1").
			WillReturnRows(reservationRow(models.BookingStatusConfirmed, models.ReservationPaymentPaid))
		mock.ExpectRollback()

		_, err := svc.RetryPayment("res-1", "user-1", false, "card")
		assert.Equal(t, models.ErrKindConflict, models.KindOf(err))
	})
}
