package ticket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/service/seatmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) MarkPaid(ctx context.Context, id int64) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) Cancel(ctx context.Context, id int64, reason string, paymentStatus domain.PaymentStatus, onlyPending bool) (*domain.Ticket, error) {
	args := m.Called(ctx, id, reason, paymentStatus, onlyPending)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) MarkCheckedIn(ctx context.Context, id int64, pass *domain.BoardingPass) (*domain.Ticket, error) {
	args := m.Called(ctx, id, pass)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ListPendingExpiredBefore(ctx context.Context, deadline time.Time) ([]domain.Ticket, error) {
	args := m.Called(ctx, deadline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByCode(ctx context.Context, code string) (*domain.Flight, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	args := m.Called(ctx, flight)
	return args.Error(0)
}

func (m *MockFlightRepository) Update(ctx context.Context, flight *domain.Flight) (*domain.Flight, error) {
	args := m.Called(ctx, flight)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

type MockSeatMaps struct {
	mock.Mock
}

func (m *MockSeatMaps) GetLayout(ctx context.Context, flightID int64) (*domain.SeatMap, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatMap), args.Error(1)
}

func (m *MockSeatMaps) BookSeats(ctx context.Context, flightID int64, seatIDs []string, ticketRef string) error {
	args := m.Called(ctx, flightID, seatIDs, ticketRef)
	return args.Error(0)
}

func (m *MockSeatMaps) ReleaseSeats(ctx context.Context, flightID int64, seatIDs []string) error {
	args := m.Called(ctx, flightID, seatIDs)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) AcquireFlightLock(ctx context.Context, flightID int64, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, flightID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) ReleaseFlightLock(ctx context.Context, flightID int64) error {
	args := m.Called(ctx, flightID)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(tickets *MockTicketRepository, flights *MockFlightRepository, seats *MockSeatMaps, cache *MockCache, producer *MockProducer) *TicketService {
	return NewTicketService(
		tickets, flights, seats, cache, producer,
		"ticket_events",
		time.Hour,
		10*time.Second,
		WithClock(func() time.Time { return fixedNow }),
	)
}

func testFlight() *domain.Flight {
	return &domain.Flight{
		ID:             7,
		Code:           "SU100",
		TotalSeats:     12,
		AvailableSeats: 12,
		DepartureTime:  fixedNow.Add(48 * time.Hour),
	}
}

func testLayout() *domain.SeatMap {
	return &domain.SeatMap{FlightID: 7, Layout: seatmap.GenerateLayout(12), Version: 1}
}

func TestTicketService_CreateTicket_Success(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	mockFlights := &MockFlightRepository{}
	mockSeats := &MockSeatMaps{}
	mockCache := &MockCache{}
	mockProducer := &MockProducer{}
	service := newTestService(mockTickets, mockFlights, mockSeats, mockCache, mockProducer)

	ctx := context.Background()
	input := CreateTicketInput{
		FlightCode:    "SU100",
		PassengerName: "Ivan Petrov",
		Email:         "ivan@example.com",
		SeatIDs:       []string{"1A", "1B"},
		PriceCents:    25000,
	}

	mockFlights.On("GetByCode", ctx, "SU100").Return(testFlight(), nil).Once()
	mockCache.On("AcquireFlightLock", ctx, int64(7), 10*time.Second).Return(true, nil).Once()
	mockCache.On("ReleaseFlightLock", ctx, int64(7)).Return(nil).Once()
	mockSeats.On("GetLayout", ctx, int64(7)).Return(testLayout(), nil).Once()
	mockSeats.On("BookSeats", ctx, int64(7), []string{"1A", "1B"}, mock.AnythingOfType("string")).Return(nil).Once()
	mockTickets.On("Create", ctx, mock.AnythingOfType("*domain.Ticket")).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Ticket).ID = 42
	}).Return(nil).Once()
	mockProducer.On("Publish", ctx, "ticket_events", mock.Anything, mock.Anything).Return(nil).Once()

	created, err := service.CreateTicket(ctx, input)

	assert.NoError(t, err)
	assert.NotNil(t, created)
	assert.Equal(t, int64(42), created.ID)
	assert.NotEmpty(t, created.Code)
	assert.Equal(t, domain.TicketStatusBooked, created.Status)
	assert.Equal(t, domain.PaymentStatusPending, created.PaymentStatus)
	assert.Equal(t, 2, created.PassengerCount)
	assert.Equal(t, fixedNow, created.BookingDate)
	assert.Equal(t, fixedNow.Add(time.Hour), created.PaymentDeadline)
	// GenerateLayout(12) yields one first-class seat, so 1B is business.
	assert.Equal(t, []domain.SeatClass{domain.SeatClassFirst, domain.SeatClassBusiness}, created.SeatClasses)

	mockFlights.AssertExpectations(t)
	mockCache.AssertExpectations(t)
	mockSeats.AssertExpectations(t)
	mockTickets.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestTicketService_CreateTicket_ValidationErrors(t *testing.T) {
	service := newTestService(&MockTicketRepository{}, &MockFlightRepository{}, &MockSeatMaps{}, &MockCache{}, &MockProducer{})
	ctx := context.Background()

	testCases := []struct {
		name        string
		input       CreateTicketInput
		expectedErr string
	}{
		{
			name:        "missing flight code",
			input:       CreateTicketInput{PassengerName: "A", Email: "a@b.c", SeatIDs: []string{"1A"}},
			expectedErr: "flight code is required",
		},
		{
			name:        "missing passenger name",
			input:       CreateTicketInput{FlightCode: "SU100", Email: "a@b.c", SeatIDs: []string{"1A"}},
			expectedErr: "passenger name is required",
		},
		{
			name:        "missing email",
			input:       CreateTicketInput{FlightCode: "SU100", PassengerName: "A", SeatIDs: []string{"1A"}},
			expectedErr: "email is required",
		},
		{
			name:        "no seats",
			input:       CreateTicketInput{FlightCode: "SU100", PassengerName: "A", Email: "a@b.c"},
			expectedErr: "at least one seat is required",
		},
		{
			name:        "blank seat id",
			input:       CreateTicketInput{FlightCode: "SU100", PassengerName: "A", Email: "a@b.c", SeatIDs: []string{" "}},
			expectedErr: "seat ids must not be empty",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			created, err := service.CreateTicket(ctx, tc.input)
			assert.Error(t, err)
			assert.Nil(t, created)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}
}

func TestTicketService_CreateTicket_FlightNotFound(t *testing.T) {
	mockFlights := &MockFlightRepository{}
	service := newTestService(&MockTicketRepository{}, mockFlights, &MockSeatMaps{}, &MockCache{}, &MockProducer{})

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "XX999").Return(nil, domain.ErrFlightNotFound).Once()

	created, err := service.CreateTicket(ctx, CreateTicketInput{
		FlightCode: "XX999", PassengerName: "A", Email: "a@b.c", SeatIDs: []string{"1A"},
	})

	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
	assert.Nil(t, created)
}

func TestTicketService_CreateTicket_InsufficientSeats(t *testing.T) {
	mockFlights := &MockFlightRepository{}
	mockSeats := &MockSeatMaps{}
	service := newTestService(&MockTicketRepository{}, mockFlights, mockSeats, &MockCache{}, &MockProducer{})

	flight := testFlight()
	flight.AvailableSeats = 1

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "SU100").Return(flight, nil).Once()

	created, err := service.CreateTicket(ctx, CreateTicketInput{
		FlightCode: "SU100", PassengerName: "A", Email: "a@b.c", SeatIDs: []string{"1A", "1B"},
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientSeats)
	assert.Nil(t, created)
	mockSeats.AssertNotCalled(t, "BookSeats")
}

func TestTicketService_CreateTicket_SeatConflict(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	mockFlights := &MockFlightRepository{}
	mockSeats := &MockSeatMaps{}
	mockCache := &MockCache{}
	service := newTestService(mockTickets, mockFlights, mockSeats, mockCache, &MockProducer{})

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "SU100").Return(testFlight(), nil).Once()
	mockCache.On("AcquireFlightLock", ctx, int64(7), 10*time.Second).Return(true, nil).Once()
	mockCache.On("ReleaseFlightLock", ctx, int64(7)).Return(nil).Once()
	mockSeats.On("GetLayout", ctx, int64(7)).Return(testLayout(), nil).Once()
	mockSeats.On("BookSeats", ctx, int64(7), []string{"1A"}, mock.AnythingOfType("string")).
		Return(domain.ErrSeatConflict).Once()

	created, err := service.CreateTicket(ctx, CreateTicketInput{
		FlightCode: "SU100", PassengerName: "A", Email: "a@b.c", SeatIDs: []string{"1A"},
	})

	assert.ErrorIs(t, err, domain.ErrSeatConflict)
	assert.Nil(t, created)
	mockTickets.AssertNotCalled(t, "Create")
}

func TestTicketService_CreateTicket_RollsBackSeatsOnCreateFailure(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	mockFlights := &MockFlightRepository{}
	mockSeats := &MockSeatMaps{}
	mockCache := &MockCache{}
	service := newTestService(mockTickets, mockFlights, mockSeats, mockCache, &MockProducer{})

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "SU100").Return(testFlight(), nil).Once()
	mockCache.On("AcquireFlightLock", ctx, int64(7), 10*time.Second).Return(true, nil).Once()
	mockCache.On("ReleaseFlightLock", ctx, int64(7)).Return(nil).Once()
	mockSeats.On("GetLayout", ctx, int64(7)).Return(testLayout(), nil).Once()
	mockSeats.On("BookSeats", ctx, int64(7), []string{"1A"}, mock.AnythingOfType("string")).Return(nil).Once()

	expectedErr := errors.New("database error")
	mockTickets.On("Create", ctx, mock.AnythingOfType("*domain.Ticket")).Return(expectedErr).Once()
	mockSeats.On("ReleaseSeats", ctx, int64(7), []string{"1A"}).Return(nil).Once()

	created, err := service.CreateTicket(ctx, CreateTicketInput{
		FlightCode: "SU100", PassengerName: "A", Email: "a@b.c", SeatIDs: []string{"1A"},
	})

	assert.ErrorIs(t, err, expectedErr)
	assert.Nil(t, created)
	mockSeats.AssertExpectations(t)
}

func TestTicketService_CreateTicket_RetriesOnDuplicateCode(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	mockFlights := &MockFlightRepository{}
	mockSeats := &MockSeatMaps{}
	mockCache := &MockCache{}
	mockProducer := &MockProducer{}
	service := newTestService(mockTickets, mockFlights, mockSeats, mockCache, mockProducer)

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "SU100").Return(testFlight(), nil).Once()
	mockCache.On("AcquireFlightLock", ctx, int64(7), 10*time.Second).Return(true, nil).Once()
	mockCache.On("ReleaseFlightLock", ctx, int64(7)).Return(nil).Once()
	mockSeats.On("GetLayout", ctx, int64(7)).Return(testLayout(), nil).Once()
	mockSeats.On("BookSeats", ctx, int64(7), []string{"1A"}, mock.AnythingOfType("string")).Return(nil).Twice()
	mockSeats.On("ReleaseSeats", ctx, int64(7), []string{"1A"}).Return(nil).Once()
	mockTickets.On("Create", ctx, mock.AnythingOfType("*domain.Ticket")).Return(domain.ErrDuplicateTicketCode).Once()
	mockTickets.On("Create", ctx, mock.AnythingOfType("*domain.Ticket")).Return(nil).Once()
	mockProducer.On("Publish", ctx, "ticket_events", mock.Anything, mock.Anything).Return(nil).Once()

	created, err := service.CreateTicket(ctx, CreateTicketInput{
		FlightCode: "SU100", PassengerName: "A", Email: "a@b.c", SeatIDs: []string{"1A"},
	})

	assert.NoError(t, err)
	assert.NotNil(t, created)
	mockTickets.AssertExpectations(t)
	mockSeats.AssertExpectations(t)
}

func TestTicketService_ConfirmPayment_Success(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	mockProducer := &MockProducer{}
	service := newTestService(mockTickets, &MockFlightRepository{}, &MockSeatMaps{}, &MockCache{}, mockProducer)

	ctx := context.Background()
	pending := &domain.Ticket{ID: 42, Code: "TKT-1", Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPending}
	paid := &domain.Ticket{ID: 42, Code: "TKT-1", Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPaid}

	mockTickets.On("GetByID", ctx, int64(42)).Return(pending, nil).Once()
	mockTickets.On("MarkPaid", ctx, int64(42)).Return(paid, nil).Once()
	mockProducer.On("Publish", ctx, "ticket_events", mock.Anything, mock.Anything).Return(nil).Once()

	updated, err := service.ConfirmPayment(ctx, 42)

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	mockTickets.AssertExpectations(t)
}

func TestTicketService_ConfirmPayment_InvalidStates(t *testing.T) {
	testCases := []struct {
		name   string
		ticket *domain.Ticket
	}{
		{
			name:   "cancelled ticket",
			ticket: &domain.Ticket{ID: 42, Status: domain.TicketStatusCancelled, PaymentStatus: domain.PaymentStatusFailed},
		},
		{
			name:   "already paid",
			ticket: &domain.Ticket{ID: 42, Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPaid},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockTickets := &MockTicketRepository{}
			service := newTestService(mockTickets, &MockFlightRepository{}, &MockSeatMaps{}, &MockCache{}, &MockProducer{})

			ctx := context.Background()
			mockTickets.On("GetByID", ctx, int64(42)).Return(tc.ticket, nil).Once()

			updated, err := service.ConfirmPayment(ctx, 42)

			assert.ErrorIs(t, err, domain.ErrInvalidState)
			assert.Nil(t, updated)
			mockTickets.AssertNotCalled(t, "MarkPaid")
		})
	}
}

func TestTicketService_ConfirmPayment_LosesRaceToCancellation(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	service := newTestService(mockTickets, &MockFlightRepository{}, &MockSeatMaps{}, &MockCache{}, &MockProducer{})

	ctx := context.Background()
	pending := &domain.Ticket{ID: 42, Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPending}

	mockTickets.On("GetByID", ctx, int64(42)).Return(pending, nil).Once()
	mockTickets.On("MarkPaid", ctx, int64(42)).Return(nil, domain.ErrInvalidState).Once()

	updated, err := service.ConfirmPayment(ctx, 42)

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Nil(t, updated)
}

func TestTicketService_CancelTicket_Idempotent(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	service := newTestService(mockTickets, &MockFlightRepository{}, &MockSeatMaps{}, &MockCache{}, &MockProducer{})

	ctx := context.Background()
	cancelled := &domain.Ticket{ID: 42, Status: domain.TicketStatusCancelled, PaymentStatus: domain.PaymentStatusFailed}

	mockTickets.On("GetByID", ctx, int64(42)).Return(cancelled, nil).Once()

	result, err := service.CancelTicket(ctx, 42, "again", domain.CancelCauseExpired)

	assert.NoError(t, err)
	assert.Equal(t, cancelled, result)
	mockTickets.AssertNotCalled(t, "Cancel")
}

func TestTicketService_CancelTicket_SingleRepositoryCallAndPublish(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	mockSeats := &MockSeatMaps{}
	mockProducer := &MockProducer{}
	service := newTestService(mockTickets, &MockFlightRepository{}, mockSeats, &MockCache{}, mockProducer)

	ctx := context.Background()
	pending := &domain.Ticket{ID: 42, FlightID: 7, Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPending, SeatIDs: []string{"1A"}, PassengerCount: 1}
	cancelled := &domain.Ticket{ID: 42, FlightID: 7, Status: domain.TicketStatusCancelled, PaymentStatus: domain.PaymentStatusFailed, SeatIDs: []string{"1A"}, PassengerCount: 1}

	mockTickets.On("GetByID", ctx, int64(42)).Return(pending, nil).Once()
	mockTickets.On("Cancel", ctx, int64(42), "payment deadline exceeded", domain.PaymentStatusFailed, true).Return(cancelled, nil).Once()
	mockProducer.On("Publish", ctx, "ticket_events", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.CancelTicket(ctx, 42, "payment deadline exceeded", domain.CancelCauseExpired)

	assert.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCancelled, result.Status)
	assert.Equal(t, domain.PaymentStatusFailed, result.PaymentStatus)
	// Seat release is part of the repository cancel transaction; the
	// service must not issue a second, separately-failing release.
	mockSeats.AssertNotCalled(t, "ReleaseSeats")
	mockTickets.AssertExpectations(t)
}

func TestTicketService_CancelTicket_TransientFailureIsRetryable(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	mockSeats := &MockSeatMaps{}
	mockProducer := &MockProducer{}
	service := newTestService(mockTickets, &MockFlightRepository{}, mockSeats, &MockCache{}, mockProducer)

	ctx := context.Background()
	pending := &domain.Ticket{ID: 42, FlightID: 7, Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPending, SeatIDs: []string{"1A"}, PassengerCount: 1}
	cancelled := &domain.Ticket{ID: 42, FlightID: 7, Status: domain.TicketStatusCancelled, PaymentStatus: domain.PaymentStatusFailed, SeatIDs: []string{"1A"}, PassengerCount: 1}

	// First attempt fails before anything commits: the ticket stays
	// booked and the retry performs the full cancellation.
	mockTickets.On("GetByID", ctx, int64(42)).Return(pending, nil).Twice()
	mockTickets.On("Cancel", ctx, int64(42), "reason", domain.PaymentStatusFailed, true).Return(nil, domain.ErrTransient).Once()
	mockTickets.On("Cancel", ctx, int64(42), "reason", domain.PaymentStatusFailed, true).Return(cancelled, nil).Once()
	mockProducer.On("Publish", ctx, "ticket_events", mock.Anything, mock.Anything).Return(nil).Once()

	first, err := service.CancelTicket(ctx, 42, "reason", domain.CancelCauseExpired)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Nil(t, first)

	second, err := service.CancelTicket(ctx, 42, "reason", domain.CancelCauseExpired)
	assert.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCancelled, second.Status)
	mockTickets.AssertExpectations(t)
}

func TestTicketService_CancelTicket_RefundCause(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	mockProducer := &MockProducer{}
	service := newTestService(mockTickets, &MockFlightRepository{}, &MockSeatMaps{}, &MockCache{}, mockProducer)

	ctx := context.Background()
	paid := &domain.Ticket{ID: 42, FlightID: 7, Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPaid, SeatIDs: []string{"2C"}, PassengerCount: 1}
	refunded := &domain.Ticket{ID: 42, FlightID: 7, Status: domain.TicketStatusCancelled, PaymentStatus: domain.PaymentStatusRefunded, SeatIDs: []string{"2C"}, PassengerCount: 1}

	mockTickets.On("GetByID", ctx, int64(42)).Return(paid, nil).Once()
	mockTickets.On("Cancel", ctx, int64(42), "passenger refund", domain.PaymentStatusRefunded, false).Return(refunded, nil).Once()
	mockProducer.On("Publish", ctx, "ticket_events", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.CancelTicket(ctx, 42, "passenger refund", domain.CancelCauseRefund)

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, result.PaymentStatus)
}

func TestTicketService_CancelTicket_ExpirationRejectsPaidTicket(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	service := newTestService(mockTickets, &MockFlightRepository{}, &MockSeatMaps{}, &MockCache{}, &MockProducer{})

	ctx := context.Background()
	paid := &domain.Ticket{ID: 42, Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPaid}

	mockTickets.On("GetByID", ctx, int64(42)).Return(paid, nil).Once()

	result, err := service.CancelTicket(ctx, 42, "payment deadline exceeded", domain.CancelCauseExpired)

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Nil(t, result)
	mockTickets.AssertNotCalled(t, "Cancel")
}

func TestTicketService_CancelTicket_RaceResolvedAsIdempotentSuccess(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	service := newTestService(mockTickets, &MockFlightRepository{}, &MockSeatMaps{}, &MockCache{}, &MockProducer{})

	ctx := context.Background()
	pending := &domain.Ticket{ID: 42, FlightID: 7, Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPending, SeatIDs: []string{"1A"}}
	cancelled := &domain.Ticket{ID: 42, FlightID: 7, Status: domain.TicketStatusCancelled, PaymentStatus: domain.PaymentStatusFailed, SeatIDs: []string{"1A"}}

	mockTickets.On("GetByID", ctx, int64(42)).Return(pending, nil).Once()
	mockTickets.On("Cancel", ctx, int64(42), "reason", domain.PaymentStatusFailed, true).Return(nil, domain.ErrInvalidState).Once()
	mockTickets.On("GetByID", ctx, int64(42)).Return(cancelled, nil).Once()

	result, err := service.CancelTicket(ctx, 42, "reason", domain.CancelCauseExpired)

	assert.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCancelled, result.Status)
}

func TestTicketService_Checkin_StateErrors(t *testing.T) {
	testCases := []struct {
		name        string
		ticket      *domain.Ticket
		expectedMsg string
	}{
		{
			name:        "payment not completed",
			ticket:      &domain.Ticket{ID: 42, Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPending},
			expectedMsg: "payment not completed",
		},
		{
			name:        "already checked-in",
			ticket:      &domain.Ticket{ID: 42, Status: domain.TicketStatusCheckedIn, PaymentStatus: domain.PaymentStatusPaid},
			expectedMsg: "already checked-in",
		},
		{
			name:        "cancelled",
			ticket:      &domain.Ticket{ID: 42, Status: domain.TicketStatusCancelled, PaymentStatus: domain.PaymentStatusRefunded},
			expectedMsg: "ticket cancelled",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockTickets := &MockTicketRepository{}
			service := newTestService(mockTickets, &MockFlightRepository{}, &MockSeatMaps{}, &MockCache{}, &MockProducer{})

			ctx := context.Background()
			mockTickets.On("GetByID", ctx, int64(42)).Return(tc.ticket, nil).Once()

			pass, err := service.Checkin(ctx, 42)

			assert.ErrorIs(t, err, domain.ErrInvalidState)
			assert.Contains(t, err.Error(), tc.expectedMsg)
			assert.Nil(t, pass)
			mockTickets.AssertNotCalled(t, "MarkCheckedIn")
		})
	}
}

func TestTicketService_Checkin_Success(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	mockFlights := &MockFlightRepository{}
	mockProducer := &MockProducer{}
	service := newTestService(mockTickets, mockFlights, &MockSeatMaps{}, &MockCache{}, mockProducer)

	ctx := context.Background()
	paid := &domain.Ticket{
		ID: 42, Code: "TKT-1", FlightID: 7, PassengerName: "Ivan Petrov",
		Status: domain.TicketStatusBooked, PaymentStatus: domain.PaymentStatusPaid,
		SeatIDs: []string{"1A"},
	}
	flight := testFlight()

	mockTickets.On("GetByID", ctx, int64(42)).Return(paid, nil).Once()
	mockFlights.On("GetByID", ctx, int64(7)).Return(flight, nil).Once()
	mockTickets.On("MarkCheckedIn", ctx, int64(42), mock.AnythingOfType("*domain.BoardingPass")).
		Run(func(args mock.Arguments) {
			pass := args.Get(2).(*domain.BoardingPass)
			assert.Equal(t, "TKT-1", pass.TicketCode)
			assert.Equal(t, "SU100", pass.FlightCode)
			assert.Equal(t, []string{"1A"}, pass.SeatIDs)
			assert.Equal(t, fixedNow, pass.IssuedAt)
		}).
		Return(&domain.Ticket{
			ID: 42, Code: "TKT-1", Status: domain.TicketStatusCheckedIn, PaymentStatus: domain.PaymentStatusPaid,
			BoardingPass: &domain.BoardingPass{TicketCode: "TKT-1", FlightCode: "SU100", SeatIDs: []string{"1A"}},
		}, nil).Once()
	mockProducer.On("Publish", ctx, "ticket_events", mock.Anything, mock.Anything).Return(nil).Once()

	pass, err := service.Checkin(ctx, 42)

	assert.NoError(t, err)
	assert.NotNil(t, pass)
	assert.Equal(t, "TKT-1", pass.TicketCode)
	mockTickets.AssertExpectations(t)
}

func TestTicketService_ListExpiredPending_UsesClock(t *testing.T) {
	mockTickets := &MockTicketRepository{}
	service := newTestService(mockTickets, &MockFlightRepository{}, &MockSeatMaps{}, &MockCache{}, &MockProducer{})

	ctx := context.Background()
	overdue := []domain.Ticket{{ID: 1}, {ID: 2}}
	mockTickets.On("ListPendingExpiredBefore", ctx, fixedNow).Return(overdue, nil).Once()

	tickets, err := service.ListExpiredPending(ctx)

	assert.NoError(t, err)
	assert.Len(t, tickets, 2)
	mockTickets.AssertExpectations(t)
}

func TestTicketService_CreateTicket_FlightBusy(t *testing.T) {
	mockFlights := &MockFlightRepository{}
	mockCache := &MockCache{}
	service := newTestService(&MockTicketRepository{}, mockFlights, &MockSeatMaps{}, mockCache, &MockProducer{})

	ctx := context.Background()
	mockFlights.On("GetByCode", ctx, "SU100").Return(testFlight(), nil).Once()
	mockCache.On("AcquireFlightLock", ctx, int64(7), 10*time.Second).Return(false, nil).Times(lockAttempts)

	created, err := service.CreateTicket(ctx, CreateTicketInput{
		FlightCode: "SU100", PassengerName: "A", Email: "a@b.c", SeatIDs: []string{"1A"},
	})

	assert.ErrorIs(t, err, domain.ErrSeatConflict)
	assert.Nil(t, created)
}
