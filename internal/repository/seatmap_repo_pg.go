package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeatMapRepository interface {
	Get(ctx context.Context, flightID int64) (*domain.SeatMap, error)
	CreateIfAbsent(ctx context.Context, seatMap *domain.SeatMap) error
	UpdateLayout(ctx context.Context, seatMap *domain.SeatMap) error
}

type PGSeatMapRepository struct {
	db *pgxpool.Pool
}

func NewSeatMapRepository(db *pgxpool.Pool) SeatMapRepository {
	return &PGSeatMapRepository{db: db}
}

func (r *PGSeatMapRepository) Get(ctx context.Context, flightID int64) (*domain.SeatMap, error) {
	row := r.db.QueryRow(ctx, `SELECT flight_id, layout, version, updated_at FROM seat_maps WHERE flight_id=$1`, flightID)

	var m domain.SeatMap
	var layout []byte
	if err := row.Scan(&m.FlightID, &layout, &m.Version, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSeatMapNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(layout, &m.Layout); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateIfAbsent persists a freshly generated layout. Concurrent callers
// racing on the same flight are resolved by ON CONFLICT DO NOTHING; the
// caller re-reads afterwards either way.
func (r *PGSeatMapRepository) CreateIfAbsent(ctx context.Context, seatMap *domain.SeatMap) error {
	layout, err := json.Marshal(seatMap.Layout)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO seat_maps (flight_id, layout) VALUES ($1, $2) ON CONFLICT (flight_id) DO NOTHING`, seatMap.FlightID, layout)
	return err
}

// UpdateLayout writes the layout with an optimistic version check. A lost
// race surfaces as ErrSeatConflict so the caller can retry or give up.
func (r *PGSeatMapRepository) UpdateLayout(ctx context.Context, seatMap *domain.SeatMap) error {
	layout, err := json.Marshal(seatMap.Layout)
	if err != nil {
		return err
	}
	res, err := r.db.Exec(ctx, `UPDATE seat_maps SET layout=$1, version=version+1, updated_at=now() WHERE flight_id=$2 AND version=$3`,
		layout, seatMap.FlightID, seatMap.Version)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrSeatConflict
	}
	seatMap.Version++
	return nil
}

var _ SeatMapRepository = (*PGSeatMapRepository)(nil)
