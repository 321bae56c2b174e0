package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentTestColumns = []string{
	"id", "reservation_id", "order_id", "amount", "discount_amount",
	"payment_method", "payment_status", "transaction_id", "paid_at",
	"created_at", "updated_at",
}

func TestPaymentGetByOrderID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`FROM payments WHERE order_id = \$1`).
			WithArgs("ORD123").
			WillReturnRows(sqlmock.NewRows(paymentTestColumns).
				AddRow("pay-1", "res-1", "ORD123", 200000.0, 0.0,
					"card", "pending", nil, nil, testNow(), testNow()))

		payment, err := repo.GetByOrderID("ORD123")
		require.NoError(t, err)
		require.NotNil(t, payment)
		assert.Equal(t, models.PaymentStatusPending, payment.PaymentStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		mock.ExpectQuery(`FROM payments WHERE order_id = \$1`).
			WithArgs("ORDNOPE").
			WillReturnRows(sqlmock.NewRows(paymentTestColumns))

		payment, err := repo.GetByOrderID("ORDNOPE")
		require.NoError(t, err)
		assert.Nil(t, payment)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkResultTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	t.Run("PendingPaymentSettles", func(t *testing.T) {
		txnID := "GW-001"
		paidAt := testNow()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE payments`).
			WithArgs("pay-1", "paid", txnID, paidAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		tx, err := repo.BeginTx()
		require.NoError(t, err)

		applied, err := repo.MarkResultTx(tx, "pay-1", models.PaymentStatusPaid, &txnID, &paidAt)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AlreadyTerminal", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE payments`).
			WithArgs("pay-1", "failed", nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 0))

		tx, err := repo.BeginTx()
		require.NoError(t, err)

		applied, err := repo.MarkResultTx(tx, "pay-1", models.PaymentStatusFailed, nil, nil)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateStatusGuardedTx(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	t.Run("RefundApplied", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE payments`).
			WithArgs("pay-1", "paid", "refunded").
			WillReturnResult(sqlmock.NewResult(0, 1))

		tx, err := repo.BeginTx()
		require.NoError(t, err)

		moved, err := repo.UpdateStatusGuardedTx(tx, "pay-1", models.PaymentStatusPaid, models.PaymentStatusRefunded)
		require.NoError(t, err)
		assert.True(t, moved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("WrongSourceState", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE payments`).
			WithArgs("pay-1", "paid", "refunded").
			WillReturnResult(sqlmock.NewResult(0, 0))

		tx, err := repo.BeginTx()
		require.NoError(t, err)

		moved, err := repo.UpdateStatusGuardedTx(tx, "pay-1", models.PaymentStatusPaid, models.PaymentStatusRefunded)
		require.NoError(t, err)
		assert.False(t, moved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
