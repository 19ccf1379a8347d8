package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/kafka"
	"github.com/Domenick1991/airticketing/internal/metrics"
	"github.com/Domenick1991/airticketing/internal/repository"
	"github.com/Domenick1991/airticketing/internal/service/seatmap"
	"github.com/lithammer/shortuuid/v3"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type TicketUseCase interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error)
	ConfirmPayment(ctx context.Context, ticketID int64) (*domain.Ticket, error)
	CancelTicket(ctx context.Context, ticketID int64, reason string, cause domain.CancelCause) (*domain.Ticket, error)
	Checkin(ctx context.Context, ticketID int64) (*domain.BoardingPass, error)
	GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error)
	GetTicketByCode(ctx context.Context, code string) (*domain.Ticket, error)
	ListExpiredPending(ctx context.Context) ([]domain.Ticket, error)
}

type Cache interface {
	AcquireFlightLock(ctx context.Context, flightID int64, ttl time.Duration) (bool, error)
	ReleaseFlightLock(ctx context.Context, flightID int64) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type TicketService struct {
	tickets            repository.TicketRepository
	flights            repository.FlightRepository
	seats              seatmap.SeatMapUseCase
	cache              Cache
	producer           Producer
	eventsTopic        string
	notificationsTopic string
	paymentWindow      time.Duration
	lockTTL            time.Duration
	now                func() time.Time
}

type CreateTicketInput struct {
	FlightCode    string   `json:"flight_code"`
	PassengerName string   `json:"passenger_name"`
	Email         string   `json:"email"`
	SeatIDs       []string `json:"seat_ids"`
	PriceCents    int64    `json:"price_cents"`
	PaymentIntent string   `json:"payment_intent"`
}

type TicketServiceOption func(*TicketService)

func WithNotificationsTopic(topic string) TicketServiceOption {
	return func(s *TicketService) {
		s.notificationsTopic = topic
	}
}

// WithClock overrides the time source, used by tests to control deadlines.
func WithClock(now func() time.Time) TicketServiceOption {
	return func(s *TicketService) {
		s.now = now
	}
}

func NewTicketService(
	tickets repository.TicketRepository,
	flights repository.FlightRepository,
	seats seatmap.SeatMapUseCase,
	cache Cache,
	producer Producer,
	eventsTopic string,
	paymentWindow, lockTTL time.Duration,
	opts ...TicketServiceOption,
) *TicketService {
	service := &TicketService{
		tickets:       tickets,
		flights:       flights,
		seats:         seats,
		cache:         cache,
		producer:      producer,
		eventsTopic:   eventsTopic,
		paymentWindow: paymentWindow,
		lockTTL:       lockTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

const (
	codeRetries  = 3
	lockAttempts = 5
	lockBackoff  = 100 * time.Millisecond
)

// CreateTicket reserves the requested seats, decrements the flight
// counter and persists the pending ticket. Seat booking runs under the
// per-flight lock; if the counter+record transaction fails afterwards the
// seats are released again before the error is returned, so no caller
// ever observes a half-committed booking.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	flight, err := s.flights.GetByCode(ctx, input.FlightCode)
	if err != nil {
		return nil, err
	}

	passengerCount := len(input.SeatIDs)
	if flight.AvailableSeats < passengerCount {
		return nil, fmt.Errorf("%w: %d requested, %d available", domain.ErrInsufficientSeats, passengerCount, flight.AvailableSeats)
	}

	unlock, err := s.lockFlight(ctx, flight.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	layout, err := s.seats.GetLayout(ctx, flight.ID)
	if err != nil {
		return nil, err
	}
	classes, err := seatClasses(layout, input.SeatIDs)
	if err != nil {
		return nil, err
	}

	bookingDate := s.now()
	var ticket *domain.Ticket
	for attempt := 0; attempt < codeRetries; attempt++ {
		candidate := &domain.Ticket{
			Code:            newTicketCode(),
			FlightID:        flight.ID,
			SeatIDs:         input.SeatIDs,
			SeatClasses:     classes,
			PassengerName:   input.PassengerName,
			Email:           input.Email,
			PassengerCount:  passengerCount,
			PriceCents:      input.PriceCents,
			Status:          domain.TicketStatusBooked,
			PaymentStatus:   domain.PaymentStatusPending,
			PaymentIntent:   input.PaymentIntent,
			BookingDate:     bookingDate,
			PaymentDeadline: bookingDate.Add(s.paymentWindow),
		}

		if err := s.seats.BookSeats(ctx, flight.ID, input.SeatIDs, candidate.Code); err != nil {
			if errors.Is(err, domain.ErrSeatConflict) {
				metrics.SeatConflicts.Inc()
			}
			return nil, err
		}

		err = s.tickets.Create(ctx, candidate)
		if err == nil {
			ticket = candidate
			break
		}

		// Undo the provisional seat reservation before retrying or
		// surfacing the error.
		if releaseErr := s.seats.ReleaseSeats(ctx, flight.ID, input.SeatIDs); releaseErr != nil {
			logrus.WithError(releaseErr).WithField("flight_id", flight.ID).Error("failed to roll back seat reservation")
		}
		if errors.Is(err, domain.ErrDuplicateTicketCode) {
			continue
		}
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrDuplicateTicketCode
	}

	metrics.TicketsBooked.Inc()
	s.publish(ctx, "ticket_created", ticket, flight.Code)
	return ticket, nil
}

// ConfirmPayment flips the ticket from pending to paid. Seats and the
// flight counter were already committed at creation and are not touched.
func (s *TicketService) ConfirmPayment(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	switch {
	case current.Status == domain.TicketStatusCancelled:
		return nil, fmt.Errorf("%w: ticket cancelled", domain.ErrInvalidState)
	case current.PaymentStatus == domain.PaymentStatusPaid:
		return nil, fmt.Errorf("%w: already paid", domain.ErrInvalidState)
	}

	updated, err := s.tickets.MarkPaid(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "payment_confirmed", updated, "")
	return updated, nil
}

// CancelTicket marks the ticket cancelled. The status flip, the counter
// restore and the seat release commit in one storage transaction, so a
// failed cancellation leaves the ticket fully booked and is safe to
// retry. Cancelling an already-cancelled ticket is a successful no-op.
// With cause EXPIRED only pending tickets match, so the expiration sweep
// can never cancel under a racing payment.
func (s *TicketService) CancelTicket(ctx context.Context, ticketID int64, reason string, cause domain.CancelCause) (*domain.Ticket, error) {
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.TicketStatusCancelled {
		return current, nil
	}
	if cause == domain.CancelCauseExpired && current.PaymentStatus != domain.PaymentStatusPending {
		return nil, fmt.Errorf("%w: only pending tickets expire", domain.ErrInvalidState)
	}

	updated, err := s.tickets.Cancel(ctx, ticketID, reason, cause.PaymentStatus(), cause == domain.CancelCauseExpired)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			// Lost the race: either someone else cancelled first
			// (idempotent success) or the ticket got paid under us.
			latest, getErr := s.tickets.GetByID(ctx, ticketID)
			if getErr == nil && latest.Status == domain.TicketStatusCancelled {
				return latest, nil
			}
		}
		return nil, err
	}

	metrics.TicketsCancelled.WithLabelValues(string(cause)).Inc()
	s.publish(ctx, "ticket_cancelled", updated, "")
	return updated, nil
}

// Checkin issues the boarding pass for a paid ticket. The payload content
// is deterministic apart from the issue timestamp.
func (s *TicketService) Checkin(ctx context.Context, ticketID int64) (*domain.BoardingPass, error) {
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	switch {
	case current.Status == domain.TicketStatusCancelled:
		return nil, fmt.Errorf("%w: ticket cancelled", domain.ErrInvalidState)
	case current.Status == domain.TicketStatusCheckedIn:
		return nil, fmt.Errorf("%w: already checked-in", domain.ErrInvalidState)
	case current.PaymentStatus != domain.PaymentStatusPaid:
		return nil, fmt.Errorf("%w: payment not completed", domain.ErrInvalidState)
	}

	flight, err := s.flights.GetByID(ctx, current.FlightID)
	if err != nil {
		return nil, err
	}

	pass := &domain.BoardingPass{
		TicketCode:    current.Code,
		PassengerName: current.PassengerName,
		FlightCode:    flight.Code,
		SeatIDs:       current.SeatIDs,
		DepartureTime: flight.DepartureTime,
		IssuedAt:      s.now(),
	}

	updated, err := s.tickets.MarkCheckedIn(ctx, ticketID, pass)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "ticket_checked_in", updated, flight.Code)
	return updated.BoardingPass, nil
}

func (s *TicketService) GetTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, ticketID)
}

func (s *TicketService) GetTicketByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	return s.tickets.GetByCode(ctx, code)
}

// ListExpiredPending returns pending tickets whose payment deadline has
// passed, for the expiration sweep.
func (s *TicketService) ListExpiredPending(ctx context.Context) ([]domain.Ticket, error) {
	return s.tickets.ListPendingExpiredBefore(ctx, s.now())
}

func (input CreateTicketInput) validate() error {
	if input.FlightCode == "" {
		return errors.New("flight code is required")
	}
	if input.PassengerName == "" {
		return errors.New("passenger name is required")
	}
	if input.Email == "" {
		return errors.New("email is required")
	}
	if len(input.SeatIDs) == 0 {
		return errors.New("at least one seat is required")
	}
	if lo.SomeBy(input.SeatIDs, func(id string) bool { return strings.TrimSpace(id) == "" }) {
		return errors.New("seat ids must not be empty")
	}
	return nil
}

func (s *TicketService) lockFlight(ctx context.Context, flightID int64) (func(), error) {
	if s.cache == nil {
		return func() {}, nil
	}
	for attempt := 0; attempt < lockAttempts; attempt++ {
		ok, err := s.cache.AcquireFlightLock(ctx, flightID, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrTransient, err)
		}
		if ok {
			return func() {
				if err := s.cache.ReleaseFlightLock(ctx, flightID); err != nil {
					logrus.WithError(err).WithField("flight_id", flightID).Warn("failed to release flight lock")
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return nil, fmt.Errorf("%w: flight %d is busy", domain.ErrSeatConflict, flightID)
}

func seatClasses(layout *domain.SeatMap, seatIDs []string) ([]domain.SeatClass, error) {
	classes := make([]domain.SeatClass, 0, len(seatIDs))
	for _, id := range seatIDs {
		seat := layout.Seat(id)
		if seat == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrSeatNotFound, id)
		}
		classes = append(classes, seat.SeatClass)
	}
	return classes, nil
}

func newTicketCode() string {
	return "TKT-" + strings.ToUpper(shortuuid.New()[:10])
}

func (s *TicketService) publish(ctx context.Context, eventType string, ticket *domain.Ticket, flightCode string) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.TicketEvent{
		Type:            eventType,
		TicketCode:      ticket.Code,
		FlightID:        ticket.FlightID,
		FlightCode:      flightCode,
		SeatIDs:         ticket.SeatIDs,
		Email:           ticket.Email,
		Status:          string(ticket.Status),
		PaymentStatus:   string(ticket.PaymentStatus),
		PaymentDeadline: ticket.PaymentDeadline,
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, ticket.Code, event); err != nil {
		logrus.WithError(err).WithField("ticket_code", ticket.Code).Warnf("failed to publish %s event", eventType)
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, ticket.Code, event); err != nil {
			logrus.WithError(err).WithField("ticket_code", ticket.Code).Warnf("failed to publish %s notification", eventType)
		}
	}
}

var _ TicketUseCase = (*TicketService)(nil)
