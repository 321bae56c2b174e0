package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/middleware"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/services"
)

// TripStatusHandler handles trip lifecycle operations
type TripStatusHandler struct {
	lifecycle *services.TripLifecycleService
}

// NewTripStatusHandler creates a new TripStatusHandler
func NewTripStatusHandler(lifecycle *services.TripLifecycleService) *TripStatusHandler {
	return &TripStatusHandler{lifecycle: lifecycle}
}

// UpdateTripStatusRequest is the request body for a trip status transition
type UpdateTripStatusRequest struct {
	Status models.TripStatus `json:"status" binding:"required"`
	Note   *string           `json:"note,omitempty"`
}

// UpdateStatus moves a trip through its lifecycle (staff)
// @Summary Update trip status
// @Description Transition a trip through scheduled, in_progress, completed, cancelled
// @Tags Trips
// @Accept json
// @Produce json
// @Param id path string true "Trip ID"
// @Param request body UpdateTripStatusRequest true "Target status"
// @Security BearerAuth
// @Router /api/v1/trips/{id}/status [patch]
func (h *TripStatusHandler) UpdateStatus(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req UpdateTripStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.NewValidationError("invalid request body: %s", err.Error()))
		return
	}

	trip, err := h.lifecycle.UpdateStatus(c.Param("id"), req.Status, userCtx.UserID.String(), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, trip)
}

// ReportIssueRequest is the request body for a trip issue report
type ReportIssueRequest struct {
	Note string `json:"note" binding:"required"`
}

// ReportIssue records an operational issue against a trip (staff)
// @Summary Report a trip issue
// @Tags Trips
// @Accept json
// @Produce json
// @Param id path string true "Trip ID"
// @Param request body ReportIssueRequest true "Issue description"
// @Security BearerAuth
// @Router /api/v1/trips/{id}/issues [post]
func (h *TripStatusHandler) ReportIssue(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req ReportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.NewValidationError("invalid request body: %s", err.Error()))
		return
	}

	entry, err := h.lifecycle.ReportIssue(c.Param("id"), userCtx.UserID.String(), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, entry)
}

// GetStatusLog returns a trip's status audit trail (staff)
// @Summary Get trip status history
// @Tags Trips
// @Produce json
// @Param id path string true "Trip ID"
// @Security BearerAuth
// @Router /api/v1/trips/{id}/status-log [get]
func (h *TripStatusHandler) GetStatusLog(c *gin.Context) {
	log, err := h.lifecycle.GetStatusLog(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, log)
}
