package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/database"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/middleware"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/services"
)

// PaymentHandler handles payment redirect, gateway callback and refund operations
type PaymentHandler struct {
	gateway         *services.GatewayService
	reconciliation  *services.ReconciliationService
	paymentRepo     *database.PaymentRepository
	reservationRepo *database.ReservationRepository
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	gateway *services.GatewayService,
	reconciliation *services.ReconciliationService,
	paymentRepo *database.PaymentRepository,
	reservationRepo *database.ReservationRepository,
) *PaymentHandler {
	return &PaymentHandler{
		gateway:         gateway,
		reconciliation:  reconciliation,
		paymentRepo:     paymentRepo,
		reservationRepo: reservationRepo,
	}
}

// BuildRedirect builds the signed gateway URL for a pending payment
// @Summary Get the payment redirect URL
// @Description Returns the signed external processor URL for a pending payment
// @Tags Payments
// @Produce json
// @Param orderId path string true "Payment order ID"
// @Security BearerAuth
// @Router /api/v1/payments/{orderId}/redirect [get]
func (h *PaymentHandler) BuildRedirect(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)
	orderID := c.Param("orderId")

	payment, err := h.paymentRepo.GetByOrderID(orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	if payment == nil {
		respondError(c, &models.NotFoundError{Resource: "payment", ID: orderID})
		return
	}

	reservation, err := h.reservationRepo.GetByID(payment.ReservationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if reservation == nil || (!userCtx.IsStaff() && reservation.UserID != userCtx.UserID.String()) {
		respondError(c, &models.NotFoundError{Resource: "payment", ID: orderID})
		return
	}

	redirectURL, err := h.gateway.BuildRedirect(payment, "Bus ticket reservation "+reservation.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"redirect_url": redirectURL,
		"order_id":     orderID,
		"amount":       payment.Amount,
	})
}

// HandleCallback processes the gateway's payment result callback. The
// callback is always acknowledged with 200 once the signature and
// idempotency checks have run, even when it is discarded: signature
// failures and unknown orders both get the same generic ignored ack.
// @Summary Gateway payment callback
// @Tags Payments
// @Produce json
// @Router /api/v1/payments/callback [get]
func (h *PaymentHandler) HandleCallback(c *gin.Context) {
	result, err := h.gateway.VerifyCallback(c.Request.URL.Query())
	if err != nil {
		// The rejection reason stays in the logs; the caller only gets a
		// generic acknowledgment so a forger learns nothing and the
		// processor stops retrying.
		logrus.WithFields(logrus.Fields{
			"ip": c.ClientIP(),
		}).WithError(err).Warn("Rejected gateway callback")
		respondOK(c, http.StatusOK, &models.CallbackOutcome{Known: false})
		return
	}

	outcome, err := h.reconciliation.ApplyCallback(result)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, outcome)
}

// QueryTransaction asks the gateway for the current state of an order (staff)
// @Summary Query the gateway for an order's state
// @Tags Payments
// @Produce json
// @Param orderId path string true "Payment order ID"
// @Security BearerAuth
// @Router /api/v1/payments/{orderId}/query [post]
func (h *PaymentHandler) QueryTransaction(c *gin.Context) {
	orderID := c.Param("orderId")

	result, err := h.gateway.QueryTransaction(orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	outcome, err := h.reconciliation.ApplyCallback(result)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"result":  result,
		"outcome": outcome,
	})
}

// RequestRefund queues a paid reservation for refund (staff)
// @Summary Request a refund for a paid reservation
// @Tags Payments
// @Produce json
// @Param id path string true "Reservation ID"
// @Security BearerAuth
// @Router /api/v1/reservations/{id}/refund [post]
func (h *PaymentHandler) RequestRefund(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	if err := h.reconciliation.MarkRefundPending(c.Param("id"), userCtx.UserID.String()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"status": models.ReservationPaymentRefundPending})
}

// CompleteRefundRequest is the request body for completing a refund
type CompleteRefundRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

// CompleteRefund records that a queued refund has settled (staff)
// @Summary Complete a queued refund
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param request body CompleteRefundRequest true "Payment to refund"
// @Security BearerAuth
// @Router /api/v1/reservations/{id}/complete-refund [post]
func (h *PaymentHandler) CompleteRefund(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req CompleteRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.NewValidationError("invalid request body: %s", err.Error()))
		return
	}

	if err := h.reconciliation.CompleteRefund(c.Param("id"), req.PaymentID, userCtx.UserID.String()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"status": models.ReservationPaymentRefunded})
}
