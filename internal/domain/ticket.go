package domain

import "time"

type TicketStatus string

const (
	TicketStatusBooked    TicketStatus = "BOOKED"
	TicketStatusCheckedIn TicketStatus = "CHECKED_IN"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
)

// CancelCause selects the payment status a cancellation leaves behind:
// an expired reservation goes to FAILED, an explicit refund to REFUNDED.
type CancelCause string

const (
	CancelCauseExpired CancelCause = "EXPIRED"
	CancelCauseRefund  CancelCause = "REFUND"
)

func (c CancelCause) PaymentStatus() PaymentStatus {
	if c == CancelCauseRefund {
		return PaymentStatusRefunded
	}
	return PaymentStatusFailed
}

type Ticket struct {
	ID              int64
	Code            string
	FlightID        int64
	SeatIDs         []string
	SeatClasses     []SeatClass
	PassengerName   string
	Email           string
	PassengerCount  int
	PriceCents      int64
	Status          TicketStatus
	PaymentStatus   PaymentStatus
	PaymentIntent   string
	BookingDate     time.Time
	PaymentDeadline time.Time
	CancelledAt     *time.Time
	CancelReason    string
	BoardingPass    *BoardingPass
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BoardingPass is the check-in credential payload. Its content is
// deterministic for a given ticket so re-issuing yields the same pass.
type BoardingPass struct {
	TicketCode    string    `json:"ticketCode"`
	PassengerName string    `json:"passengerName"`
	FlightCode    string    `json:"flightCode"`
	SeatIDs       []string  `json:"seatIds"`
	DepartureTime time.Time `json:"departureTime"`
	IssuedAt      time.Time `json:"issuedAt"`
}
