package services

import (
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/database"
	"github.com/son28bmt/Bus-Ticketing-sub002/internal/models"
)

// InventoryService derives seat availability for a trip from the reservation
// ledger. It never maintains a counter: the occupied set is always recomputed
// from confirmed/completed reservations, so it cannot drift.
type InventoryService struct {
	tripRepo        *database.TripRepository
	reservationRepo *database.ReservationRepository
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(tripRepo *database.TripRepository, reservationRepo *database.ReservationRepository) *InventoryService {
	return &InventoryService{
		tripRepo:        tripRepo,
		reservationRepo: reservationRepo,
	}
}

// NormalizeSeatID canonicalizes a seat identifier so that differently
// formatted labels compare equal: whitespace trimmed, letters uppercased,
// and leading zeros stripped from the trailing digit run ("a01" and "A1"
// are the same seat, as are "01" and "1").
func NormalizeSeatID(seatID string) string {
	s := strings.ToUpper(strings.TrimSpace(seatID))

	// Find the trailing digit run
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return s
	}

	prefix, digits := s[:i], s[i:]
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	return prefix + digits
}

// NormalizeSeatIDs normalizes and deduplicates a seat set, sorted for
// stable storage and error messages
func NormalizeSeatIDs(seatIDs []string) []string {
	seen := make(map[string]struct{}, len(seatIDs))
	normalized := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		n := NormalizeSeatID(id)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	sort.Strings(normalized)
	return normalized
}

// CheckAvailabilityTx verifies that every requested seat exists on the
// trip's seat map and is not held by a confirmed or completed reservation.
// Callers must hold the trip row lock; the result is only trustworthy for
// the duration of that lock. Seat identifiers must already be normalized.
// Returns a ConflictError listing the contested seats, a ValidationError
// for unknown seats, or nil.
func (s *InventoryService) CheckAvailabilityTx(tx *sqlx.Tx, tripID string, seatIDs []string) error {
	seats, err := s.tripRepo.GetSeatsByTripTx(tx, tripID)
	if err != nil {
		return err
	}

	seatMap := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		seatMap[NormalizeSeatID(seat.SeatNumber)] = struct{}{}
	}

	var unknown []string
	for _, id := range seatIDs {
		if _, ok := seatMap[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return models.NewValidationError("unknown seats for trip: %s", strings.Join(unknown, ", "))
	}

	held, err := s.reservationRepo.GetHeldSeatIDsTx(tx, tripID)
	if err != nil {
		return err
	}

	heldSet := make(map[string]struct{}, len(held))
	for _, id := range held {
		heldSet[NormalizeSeatID(id)] = struct{}{}
	}

	var contested []string
	for _, id := range seatIDs {
		if _, taken := heldSet[id]; taken {
			contested = append(contested, id)
		}
	}
	if len(contested) > 0 {
		return &models.ConflictError{Detail: "seats already reserved", Seats: contested}
	}
	return nil
}

// PriceSeatsTx computes the gross price of a seat selection: the sum of each
// seat's multiplier applied to the trip base price. Seat identifiers must
// already be normalized and known to exist (CheckAvailabilityTx runs first).
func (s *InventoryService) PriceSeatsTx(tx *sqlx.Tx, trip *models.Trip, seatIDs []string) (float64, error) {
	seats, err := s.tripRepo.GetSeatsByTripTx(tx, trip.ID)
	if err != nil {
		return 0, err
	}

	multipliers := make(map[string]float64, len(seats))
	for _, seat := range seats {
		multipliers[NormalizeSeatID(seat.SeatNumber)] = seat.PriceMultiplier
	}

	var total float64
	for _, id := range seatIDs {
		multiplier, ok := multipliers[id]
		if !ok {
			return 0, models.NewValidationError("unknown seat for trip: %s", id)
		}
		total += trip.BasePrice * multiplier
	}
	return total, nil
}
