package seatmap

import (
	"fmt"

	"github.com/Domenick1991/airticketing/internal/domain"
)

const seatsPerRow = 6

var rowLetters = []string{"A", "B", "C", "D", "E", "F"}

// Class distribution applied front to back: first 10%, business 20%,
// economy the rest.
const (
	firstPercent    = 10
	businessPercent = 20
)

// GenerateLayout builds the seat grid for a flight. Pure and
// deterministic: the same seat count always yields the same layout.
func GenerateLayout(totalSeats int) []domain.SeatRow {
	firstSeats := totalSeats * firstPercent / 100
	businessSeats := totalSeats * businessPercent / 100

	var rows []domain.SeatRow
	for i := 0; i < totalSeats; i++ {
		rowNum := i/seatsPerRow + 1
		if i%seatsPerRow == 0 {
			rows = append(rows, domain.SeatRow{Row: rowNum, Seats: make([]domain.Seat, 0, seatsPerRow)})
		}

		class := domain.SeatClassEconomy
		switch {
		case i < firstSeats:
			class = domain.SeatClassFirst
		case i < firstSeats+businessSeats:
			class = domain.SeatClassBusiness
		}

		rows[len(rows)-1].Seats = append(rows[len(rows)-1].Seats, domain.Seat{
			SeatID:    fmt.Sprintf("%d%s", rowNum, rowLetters[i%seatsPerRow]),
			SeatClass: class,
			Status:    domain.SeatStatusAvailable,
		})
	}
	return rows
}
