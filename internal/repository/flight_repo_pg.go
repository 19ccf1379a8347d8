package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	GetByCode(ctx context.Context, code string) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	Update(ctx context.Context, flight *domain.Flight) (*domain.Flight, error)
}

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `id, code, from_airport, to_airport, departure_time, arrival_time, total_seats, available_seats, price_cents, created_at, updated_at`

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	err := row.Scan(&f.ID, &f.Code, &f.FromAirport, &f.ToAirport, &f.DepartureTime, &f.ArrivalTime, &f.TotalSeats, &f.AvailableSeats, &f.PriceCents, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFlightNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		var f domain.Flight
		if err := rows.Scan(&f.ID, &f.Code, &f.FromAirport, &f.ToAirport, &f.DepartureTime, &f.ArrivalTime, &f.TotalSeats, &f.AvailableSeats, &f.PriceCents, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
}

func (r *PGFlightRepository) GetByCode(ctx context.Context, code string) (*domain.Flight, error) {
	return scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE code=$1`, code))
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	return r.db.QueryRow(ctx, `INSERT INTO flights (code, from_airport, to_airport, departure_time, arrival_time, total_seats, available_seats, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		RETURNING id, available_seats, created_at, updated_at`,
		flight.Code, flight.FromAirport, flight.ToAirport, flight.DepartureTime, flight.ArrivalTime, flight.TotalSeats, flight.PriceCents).
		Scan(&flight.ID, &flight.AvailableSeats, &flight.CreatedAt, &flight.UpdatedAt)
}

func (r *PGFlightRepository) Update(ctx context.Context, flight *domain.Flight) (*domain.Flight, error) {
	row := r.db.QueryRow(ctx, `UPDATE flights SET from_airport=$1, to_airport=$2, departure_time=$3, arrival_time=$4, price_cents=$5, updated_at=now()
		WHERE id=$6
		RETURNING `+flightColumns,
		flight.FromAirport, flight.ToAirport, flight.DepartureTime, flight.ArrivalTime, flight.PriceCents, flight.ID)
	return scanFlight(row)
}

var _ FlightRepository = (*PGFlightRepository)(nil)
