package seatmap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/repository"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type SeatMapUseCase interface {
	GetLayout(ctx context.Context, flightID int64) (*domain.SeatMap, error)
	BookSeats(ctx context.Context, flightID int64, seatIDs []string, ticketRef string) error
	ReleaseSeats(ctx context.Context, flightID int64, seatIDs []string) error
}

type SeatMapService struct {
	repo    repository.SeatMapRepository
	flights repository.FlightRepository
}

func NewSeatMapService(repo repository.SeatMapRepository, flights repository.FlightRepository) *SeatMapService {
	return &SeatMapService{repo: repo, flights: flights}
}

// GetLayout returns the flight's seat map, generating and persisting one
// on first request. Concurrent first requests are resolved at the storage
// layer (create-if-absent), so every caller sees the same layout.
func (s *SeatMapService) GetLayout(ctx context.Context, flightID int64) (*domain.SeatMap, error) {
	m, err := s.repo.Get(ctx, flightID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, domain.ErrSeatMapNotFound) {
		return nil, err
	}

	flight, err := s.flights.GetByID(ctx, flightID)
	if err != nil {
		return nil, err
	}

	generated := &domain.SeatMap{
		FlightID: flightID,
		Layout:   GenerateLayout(flight.TotalSeats),
	}
	if err := s.repo.CreateIfAbsent(ctx, generated); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"flight_id": flightID, "total_seats": flight.TotalSeats}).Info("generated seat map")
	return s.repo.Get(ctx, flightID)
}

// BookSeats marks every requested seat as booked by ticketRef. The check
// phase runs over all seats before any mutation, so a single unavailable
// seat fails the whole request and leaves the layout untouched.
func (s *SeatMapService) BookSeats(ctx context.Context, flightID int64, seatIDs []string, ticketRef string) error {
	if len(seatIDs) == 0 {
		return errors.New("no seats requested")
	}
	if len(lo.Uniq(seatIDs)) != len(seatIDs) {
		return fmt.Errorf("%w: duplicate seats in request", domain.ErrSeatConflict)
	}

	m, err := s.GetLayout(ctx, flightID)
	if err != nil {
		return err
	}

	var taken []string
	for _, id := range seatIDs {
		seat := m.Seat(id)
		if seat == nil {
			return fmt.Errorf("%w: %s", domain.ErrSeatNotFound, id)
		}
		if seat.Status != domain.SeatStatusAvailable {
			taken = append(taken, id)
		}
	}
	if len(taken) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrSeatConflict, strings.Join(taken, ", "))
	}

	for _, id := range seatIDs {
		seat := m.Seat(id)
		seat.Status = domain.SeatStatusBooked
		seat.TicketRef = ticketRef
	}

	return s.repo.UpdateLayout(ctx, m)
}

// ReleaseSeats resets booked seats back to available. Seats already
// available are skipped, which makes the call idempotent.
func (s *SeatMapService) ReleaseSeats(ctx context.Context, flightID int64, seatIDs []string) error {
	m, err := s.repo.Get(ctx, flightID)
	if err != nil {
		if errors.Is(err, domain.ErrSeatMapNotFound) {
			return nil
		}
		return err
	}

	changed := false
	for _, id := range seatIDs {
		seat := m.Seat(id)
		if seat == nil || seat.Status != domain.SeatStatusBooked {
			continue
		}
		seat.Status = domain.SeatStatusAvailable
		seat.TicketRef = ""
		changed = true
	}
	if !changed {
		return nil
	}

	return s.repo.UpdateLayout(ctx, m)
}

var _ SeatMapUseCase = (*SeatMapService)(nil)
