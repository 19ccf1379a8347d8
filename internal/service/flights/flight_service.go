package flights

import (
	"context"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/repository"
	"github.com/sirupsen/logrus"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetByCode(ctx context.Context, code string) (*domain.Flight, error)
	Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error)
	Update(ctx context.Context, id int64, input UpdateFlightInput) (*domain.Flight, error)
}

type Cache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type FlightService struct {
	repo               repository.FlightRepository
	cache              Cache
	producer           Producer
	notificationsTopic string
}

type CreateFlightInput struct {
	Code          string    `json:"code"`
	FromAirport   string    `json:"from_airport"`
	ToAirport     string    `json:"to_airport"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	TotalSeats    int       `json:"total_seats"`
	PriceCents    int64     `json:"price_cents"`
}

type UpdateFlightInput struct {
	FromAirport   *string    `json:"from_airport"`
	ToAirport     *string    `json:"to_airport"`
	DepartureTime *time.Time `json:"departure_time"`
	ArrivalTime   *time.Time `json:"arrival_time"`
	PriceCents    *int64     `json:"price_cents"`
}

// ScheduleChange is published when a flight's departure or arrival time
// moves, for the downstream notification pipeline.
type ScheduleChange struct {
	Type             string    `json:"type"`
	FlightID         int64     `json:"flight_id"`
	FlightCode       string    `json:"flight_code"`
	OldDepartureTime time.Time `json:"old_departure_time"`
	NewDepartureTime time.Time `json:"new_departure_time"`
	OldArrivalTime   time.Time `json:"old_arrival_time"`
	NewArrivalTime   time.Time `json:"new_arrival_time"`
}

type FlightServiceOption func(*FlightService)

func WithScheduleChangeTopic(topic string) FlightServiceOption {
	return func(s *FlightService) {
		s.notificationsTopic = topic
	}
}

func NewFlightService(repo repository.FlightRepository, cache Cache, producer Producer, opts ...FlightServiceOption) *FlightService {
	service := &FlightService{repo: repo, cache: cache, producer: producer}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetFlights(ctx, flights)
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *FlightService) GetByCode(ctx context.Context, code string) (*domain.Flight, error) {
	return s.repo.GetByCode(ctx, code)
}

// Create registers a flight with a full seat inventory
// (available_seats = total_seats). The seat map itself is generated
// lazily on first layout request.
func (s *FlightService) Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error) {
	flight := &domain.Flight{
		Code:          input.Code,
		FromAirport:   input.FromAirport,
		ToAirport:     input.ToAirport,
		DepartureTime: input.DepartureTime,
		ArrivalTime:   input.ArrivalTime,
		TotalSeats:    input.TotalSeats,
		PriceCents:    input.PriceCents,
	}
	if err := s.repo.Create(ctx, flight); err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateFlights(ctx)
	}
	return flight, nil
}

// Update applies field changes. A moved departure or arrival time raises
// a schedule-change event; building and delivering the passenger-facing
// message is the notification pipeline's job.
func (s *FlightService) Update(ctx context.Context, id int64, input UpdateFlightInput) (*domain.Flight, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *current
	if input.FromAirport != nil {
		next.FromAirport = *input.FromAirport
	}
	if input.ToAirport != nil {
		next.ToAirport = *input.ToAirport
	}
	if input.DepartureTime != nil {
		next.DepartureTime = *input.DepartureTime
	}
	if input.ArrivalTime != nil {
		next.ArrivalTime = *input.ArrivalTime
	}
	if input.PriceCents != nil {
		next.PriceCents = *input.PriceCents
	}

	updated, err := s.repo.Update(ctx, &next)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateFlights(ctx)
	}

	scheduleChanged := !updated.DepartureTime.Equal(current.DepartureTime) || !updated.ArrivalTime.Equal(current.ArrivalTime)
	if scheduleChanged && s.producer != nil && s.notificationsTopic != "" {
		change := ScheduleChange{
			Type:             "flight_schedule_changed",
			FlightID:         updated.ID,
			FlightCode:       updated.Code,
			OldDepartureTime: current.DepartureTime,
			NewDepartureTime: updated.DepartureTime,
			OldArrivalTime:   current.ArrivalTime,
			NewArrivalTime:   updated.ArrivalTime,
		}
		if err := s.producer.Publish(ctx, s.notificationsTopic, updated.Code, change); err != nil {
			logrus.WithError(err).WithField("flight_code", updated.Code).Warn("failed to publish schedule change")
		}
	}

	return updated, nil
}

var _ FlightUseCase = (*FlightService)(nil)
