package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/middleware"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/services"
)

// ReservationHandler handles reservation booking and cancellation operations
type ReservationHandler struct {
	reservations *services.ReservationService
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservations *services.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// CreateReservation creates a new reservation with a pending payment
// @Summary Create a new reservation
// @Description Book seats on a trip, optionally applying a voucher code
// @Tags Reservations
// @Accept json
// @Produce json
// @Param request body models.CreateReservationRequest true "Reservation request"
// @Success 201 {object} models.ReservationResponse "Reservation created"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Failure 409 {object} map[string]interface{} "Seats not available"
// @Security BearerAuth
// @Router /api/v1/reservations [post]
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.NewValidationError("invalid request body: %s", err.Error()))
		return
	}

	resp, err := h.reservations.CreateReservation(userCtx.UserID.String(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, resp)
}

// GetReservation returns one reservation with its payment attempts
// @Summary Get a reservation
// @Tags Reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Security BearerAuth
// @Router /api/v1/reservations/{id} [get]
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	reservation, payments, err := h.reservations.GetReservation(c.Param("id"), userCtx.UserID.String(), userCtx.IsStaff())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"reservation": reservation,
		"payments":    payments,
	})
}

// ListMyReservations lists the caller's reservations, newest first
// @Summary List my reservations
// @Tags Reservations
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Security BearerAuth
// @Router /api/v1/reservations [get]
func (h *ReservationHandler) ListMyReservations(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	reservations, err := h.reservations.GetUserReservations(userCtx.UserID.String(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, reservations)
}

// RequestCancellation asks for a reservation to be cancelled
// @Summary Request cancellation of a reservation
// @Tags Reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param request body models.CancelReservationRequest false "Cancellation reason"
// @Security BearerAuth
// @Router /api/v1/reservations/{id}/cancel [post]
func (h *ReservationHandler) RequestCancellation(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CancelReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, models.NewValidationError("invalid request body: %s", err.Error()))
		return
	}

	reservation, err := h.reservations.RequestCancellation(c.Param("id"), userCtx.UserID.String(), userCtx.IsStaff(), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, reservation)
}

// ApproveCancellation completes a pending cancellation (staff only)
// @Summary Approve a cancellation request
// @Tags Reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Security BearerAuth
// @Router /api/v1/reservations/{id}/approve-cancellation [post]
func (h *ReservationHandler) ApproveCancellation(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.CancelReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		respondError(c, models.NewValidationError("invalid request body: %s", err.Error()))
		return
	}

	reservation, err := h.reservations.ApproveCancellation(c.Param("id"), userCtx.UserID.String(), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, reservation)
}

// RetryPaymentRequest is the request body for a payment retry
type RetryPaymentRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

// RetryPayment opens a fresh payment attempt after a failed one
// @Summary Retry payment for a reservation
// @Tags Reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param request body RetryPaymentRequest true "Payment method"
// @Security BearerAuth
// @Router /api/v1/reservations/{id}/retry-payment [post]
func (h *ReservationHandler) RetryPayment(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req RetryPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.NewValidationError("invalid request body: %s", err.Error()))
		return
	}

	payment, err := h.reservations.RetryPayment(c.Param("id"), userCtx.UserID.String(), userCtx.IsStaff(), req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, payment)
}
