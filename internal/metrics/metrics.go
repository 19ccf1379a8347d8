package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicketsBooked total number of tickets created (counter)
	TicketsBooked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "airticketing",
		Name:      "tickets_booked_total",
		Help:      "The total number of tickets created",
	})

	// TicketsCancelled total cancellations by cause (counter)
	TicketsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airticketing",
		Name:      "tickets_cancelled_total",
		Help:      "The total number of cancelled tickets",
	}, []string{"cause"})

	// SeatConflicts bookings rejected because a requested seat was taken (counter)
	SeatConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "airticketing",
		Name:      "seat_conflicts_total",
		Help:      "The total number of bookings rejected on seat conflict",
	})

	// SweepOutcomes expiration sweep results (counter)
	SweepOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "airticketing",
		Name:      "expiration_sweep_total",
		Help:      "Expiration sweep outcomes per ticket",
	}, []string{"outcome"})
)
