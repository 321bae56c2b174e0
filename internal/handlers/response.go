package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
)

// respondOK writes the success envelope
func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"ok": true, "data": data})
}

// respondError maps the error taxonomy to an HTTP status and writes the
// failure envelope. Internal errors are reported generically so storage
// details never leak to clients.
func respondError(c *gin.Context, err error) {
	kind := models.KindOf(err)
	detail := err.Error()

	var status int
	switch kind {
	case models.ErrKindValidation:
		status = http.StatusBadRequest
	case models.ErrKindConflict:
		status = http.StatusConflict
	case models.ErrKindNotFound:
		status = http.StatusNotFound
	case models.ErrKindForbiddenTransition:
		status = http.StatusConflict
	case models.ErrKindSignature:
		status = http.StatusBadRequest
	case models.ErrKindExternalUnavailable:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
		detail = "internal server error"
		logrus.WithFields(logrus.Fields{
			"path": c.Request.URL.Path,
		}).WithError(err).Error("Request failed")
	}

	c.JSON(status, gin.H{
		"ok":        false,
		"errorKind": string(kind),
		"detail":    detail,
	})
}
