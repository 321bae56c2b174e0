package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/database"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
)

// allowedTripTransitions is the complete trip state machine. Completed and
// cancelled are terminal.
var allowedTripTransitions = map[models.TripStatus][]models.TripStatus{
	models.TripStatusScheduled:  {models.TripStatusInProgress, models.TripStatusCancelled},
	models.TripStatusInProgress: {models.TripStatusCompleted, models.TripStatusCancelled},
}

func tripTransitionAllowed(from, to models.TripStatus) bool {
	for _, allowed := range allowedTripTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TripLifecycleService owns trip status transitions and their audit trail.
// Booking only reads trip status; nothing else writes it.
type TripLifecycleService struct {
	tripRepo *database.TripRepository
}

// NewTripLifecycleService creates a new TripLifecycleService
func NewTripLifecycleService(tripRepo *database.TripRepository) *TripLifecycleService {
	return &TripLifecycleService{tripRepo: tripRepo}
}

// UpdateStatus moves a trip to a new status if the transition table allows
// it, appending the audit log entry in the same transaction. The status
// update is guarded on the current status, so two concurrent transitions
// from the same state cannot both apply.
func (s *TripLifecycleService) UpdateStatus(tripID string, target models.TripStatus, actorID string, note *string) (*models.Trip, error) {
	if !target.Valid() {
		return nil, models.NewValidationError("unknown trip status: %s", target)
	}

	tx, err := s.tripRepo.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	trip, err := s.tripRepo.GetForUpdateTx(tx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock trip: %w", err)
	}
	if trip == nil {
		return nil, &models.NotFoundError{Resource: "trip", ID: tripID}
	}
	if !tripTransitionAllowed(trip.Status, target) {
		return nil, &models.ForbiddenTransitionError{
			Entity: "trip",
			From:   string(trip.Status),
			To:     string(target),
		}
	}

	updated, err := s.tripRepo.UpdateStatusGuardedTx(tx, tripID, trip.Status, target)
	if err != nil {
		return nil, fmt.Errorf("failed to update trip status: %w", err)
	}
	if !updated {
		return nil, &models.ConflictError{Detail: "trip status changed concurrently, retry"}
	}

	entry := &models.TripStatusLogEntry{
		TripID:     tripID,
		FromStatus: trip.Status,
		ToStatus:   target,
		ActorID:    actorID,
		Note:       note,
	}
	if err := s.tripRepo.InsertStatusLogTx(tx, entry); err != nil {
		return nil, fmt.Errorf("failed to append status log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trip transition: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"trip_id":  tripID,
		"from":     trip.Status,
		"to":       target,
		"actor_id": actorID,
	}).Info("Trip status updated")

	trip.Status = target
	return trip, nil
}

// ReportIssue appends an operational note to the trip's audit trail without
// changing its status.
func (s *TripLifecycleService) ReportIssue(tripID string, actorID string, note string) (*models.TripStatusLogEntry, error) {
	if note == "" {
		return nil, models.NewValidationError("issue description is required")
	}

	tx, err := s.tripRepo.BeginTx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	trip, err := s.tripRepo.GetForUpdateTx(tx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock trip: %w", err)
	}
	if trip == nil {
		return nil, &models.NotFoundError{Resource: "trip", ID: tripID}
	}

	entry := &models.TripStatusLogEntry{
		TripID:     tripID,
		FromStatus: trip.Status,
		ToStatus:   trip.Status,
		ActorID:    actorID,
		Note:       &note,
	}
	if err := s.tripRepo.InsertStatusLogTx(tx, entry); err != nil {
		return nil, fmt.Errorf("failed to append issue report: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit issue report: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"trip_id":  tripID,
		"actor_id": actorID,
	}).Info("Trip issue reported")
	return entry, nil
}

// GetStatusLog returns a trip's full audit trail, oldest first
func (s *TripLifecycleService) GetStatusLog(tripID string) ([]models.TripStatusLogEntry, error) {
	trip, err := s.tripRepo.GetByID(tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	if trip == nil {
		return nil, &models.NotFoundError{Resource: "trip", ID: tripID}
	}
	return s.tripRepo.GetStatusLog(tripID)
}
