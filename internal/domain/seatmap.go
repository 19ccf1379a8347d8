package domain

import "time"

type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "AVAILABLE"
	SeatStatusBooked    SeatStatus = "BOOKED"
	SeatStatusBlocked   SeatStatus = "BLOCKED"
)

type SeatClass string

const (
	SeatClassFirst    SeatClass = "FIRST"
	SeatClassBusiness SeatClass = "BUSINESS"
	SeatClassEconomy  SeatClass = "ECONOMY"
)

// Seat is a single addressable seat inside a flight's layout.
// TicketRef holds the code of the non-cancelled ticket occupying the
// seat and is empty whenever the seat is AVAILABLE.
type Seat struct {
	SeatID    string     `json:"seatId"`
	SeatClass SeatClass  `json:"seatClass"`
	Status    SeatStatus `json:"status"`
	TicketRef string     `json:"ticketRef,omitempty"`
}

type SeatRow struct {
	Row   int    `json:"row"`
	Seats []Seat `json:"seats"`
}

// SeatMap is the full seat grid for one flight. Version is bumped on
// every layout write and checked optimistically by the repository.
type SeatMap struct {
	FlightID  int64
	Layout    []SeatRow
	Version   int
	UpdatedAt time.Time
}

// Seat returns the entry for seatID, or nil if the layout has no such seat.
func (m *SeatMap) Seat(seatID string) *Seat {
	for ri := range m.Layout {
		for si := range m.Layout[ri].Seats {
			if m.Layout[ri].Seats[si].SeatID == seatID {
				return &m.Layout[ri].Seats[si]
			}
		}
	}
	return nil
}
