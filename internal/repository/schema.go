package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitSchema creates the tables the engine needs. Safe to run on every
// startup.
func InitSchema(ctx context.Context, db *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS flights (
			id BIGSERIAL PRIMARY KEY,
			code VARCHAR(16) NOT NULL UNIQUE,
			from_airport VARCHAR(8) NOT NULL,
			to_airport VARCHAR(8) NOT NULL,
			departure_time TIMESTAMPTZ NOT NULL,
			arrival_time TIMESTAMPTZ NOT NULL,
			total_seats INTEGER NOT NULL,
			available_seats INTEGER NOT NULL,
			price_cents BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS seat_maps (
			flight_id BIGINT PRIMARY KEY REFERENCES flights(id),
			layout JSONB NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id BIGSERIAL PRIMARY KEY,
			code VARCHAR(32) NOT NULL UNIQUE,
			flight_id BIGINT NOT NULL REFERENCES flights(id),
			seat_ids TEXT[] NOT NULL,
			seat_classes TEXT[] NOT NULL,
			passenger_name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			passenger_count INTEGER NOT NULL,
			price_cents BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			payment_status VARCHAR(16) NOT NULL,
			payment_intent VARCHAR(64) NOT NULL DEFAULT '',
			booking_date TIMESTAMPTZ NOT NULL,
			payment_deadline TIMESTAMPTZ NOT NULL,
			cancelled_at TIMESTAMPTZ,
			cancel_reason TEXT NOT NULL DEFAULT '',
			checkin_payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS tickets_pending_deadline_idx
			ON tickets (payment_deadline) WHERE payment_status = 'PENDING'`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
