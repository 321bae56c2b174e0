package handlers

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/config"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/database"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/services"
	"github.com/son28bmt/Bus-Ticketing-sub002/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callbackTestSecret = "test-hash-secret"

func setupCallbackTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func setupCallbackRouter(db *sqlx.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)

	gateway := services.NewGatewayService(config.GatewayConfig{
		BaseURL:      "https://gateway.test/pay",
		MerchantCode: "MERCH01",
		HashSecret:   callbackTestSecret,
		ReturnURL:    "https://app.test/return",
		Version:      "2.1.0",
		Currency:     "LKR",
		RedirectTTL:  15 * time.Minute,
	})
	reservationRepo := database.NewReservationRepository(db)
	paymentRepo := database.NewPaymentRepository(db)
	reconciliation := services.NewReconciliationService(reservationRepo, paymentRepo, notify.NewLogNotifier())
	handler := NewPaymentHandler(gateway, reconciliation, paymentRepo, reservationRepo)

	router := gin.New()
	router.GET("/api/v1/payments/callback", handler.HandleCallback)
	return router
}

func signCallbackParams(params url.Values) string {
	mac := hmac.New(sha512.New, []byte(callbackTestSecret))
	mac.Write([]byte(params.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

func callbackParams(orderID string) url.Values {
	params := url.Values{}
	params.Set("orderId", orderID)
	params.Set("responseCode", "00")
	params.Set("transactionNo", "GW-1001")
	params.Set("bankCode", "SAMPATH")
	params.Set("payDate", "20250601103000")
	params.Set("amount", "20000000")
	return params
}

func TestHandleCallback_BadSignature(t *testing.T) {
	db, mock := setupCallbackTestDB(t)
	router := setupCallbackRouter(db)

	params := callbackParams("ORD123")
	params.Set("secureHash", "deadbeef")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/callback?"+params.Encode(), nil)
	router.ServeHTTP(w, req)

	// A forged callback is acknowledged but ignored: nothing touches the
	// database and the response never reveals why it was discarded.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "signature")

	var body struct {
		OK   bool `json:"ok"`
		Data struct {
			Known   bool `json:"known"`
			Applied bool `json:"applied"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.False(t, body.Data.Known)
	assert.False(t, body.Data.Applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleCallback_MissingSignature(t *testing.T) {
	db, mock := setupCallbackTestDB(t)
	router := setupCallbackRouter(db)

	params := callbackParams("ORD123")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/callback?"+params.Encode(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "signature")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleCallback_UnknownOrderAcknowledged(t *testing.T) {
	db, mock := setupCallbackTestDB(t)
	router := setupCallbackRouter(db)

	params := callbackParams("ORDUNKNOWN")
	params.Set("secureHash", signCallbackParams(params))

	mock.ExpectQuery(`FROM payments WHERE order_id = \$1`).
		WithArgs("ORDUNKNOWN").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "reservation_id", "order_id", "amount", "discount_amount",
			"payment_method", "payment_status", "transaction_id", "paid_at",
			"created_at", "updated_at",
		}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/payments/callback?"+params.Encode(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OK   bool `json:"ok"`
		Data struct {
			Known   bool `json:"known"`
			Applied bool `json:"applied"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.False(t, body.Data.Known)
	assert.False(t, body.Data.Applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
