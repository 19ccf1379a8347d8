package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	MarkPaid(ctx context.Context, id int64) (*domain.Ticket, error)
	Cancel(ctx context.Context, id int64, reason string, paymentStatus domain.PaymentStatus, onlyPending bool) (*domain.Ticket, error)
	MarkCheckedIn(ctx context.Context, id int64, pass *domain.BoardingPass) (*domain.Ticket, error)
	ListPendingExpiredBefore(ctx context.Context, deadline time.Time) ([]domain.Ticket, error)
}

type PGTicketRepository struct {
	db *pgxpool.Pool
}

func NewTicketRepository(db *pgxpool.Pool) TicketRepository {
	return &PGTicketRepository{db: db}
}

const ticketColumns = `id, code, flight_id, seat_ids, seat_classes, passenger_name, email, passenger_count, price_cents, status, payment_status, payment_intent, booking_date, payment_deadline, cancelled_at, cancel_reason, checkin_payload, created_at, updated_at`

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	var classes []string
	var payload []byte
	err := row.Scan(&t.ID, &t.Code, &t.FlightID, &t.SeatIDs, &classes, &t.PassengerName, &t.Email, &t.PassengerCount, &t.PriceCents,
		&t.Status, &t.PaymentStatus, &t.PaymentIntent, &t.BookingDate, &t.PaymentDeadline, &t.CancelledAt, &t.CancelReason, &payload, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	t.SeatClasses = make([]domain.SeatClass, len(classes))
	for i, c := range classes {
		t.SeatClasses[i] = domain.SeatClass(c)
	}
	if payload != nil {
		var pass domain.BoardingPass
		if err := json.Unmarshal(payload, &pass); err != nil {
			return nil, err
		}
		t.BoardingPass = &pass
	}
	return &t, nil
}

func classStrings(classes []domain.SeatClass) []string {
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = string(c)
	}
	return out
}

// Create inserts the ticket and decrements the flight counter in one
// transaction. The counter update is conditional so two racing bookings
// can never drive available_seats negative.
func (r *PGTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx, `UPDATE flights SET available_seats = available_seats - $1, updated_at = now() WHERE id=$2 AND available_seats >= $1`,
		ticket.PassengerCount, ticket.FlightID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrInsufficientSeats
	}

	err = tx.QueryRow(ctx, `INSERT INTO tickets (code, flight_id, seat_ids, seat_classes, passenger_name, email, passenger_count, price_cents, status, payment_status, payment_intent, booking_date, payment_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		ticket.Code, ticket.FlightID, ticket.SeatIDs, classStrings(ticket.SeatClasses), ticket.PassengerName, ticket.Email,
		ticket.PassengerCount, ticket.PriceCents, ticket.Status, ticket.PaymentStatus, ticket.PaymentIntent, ticket.BookingDate, ticket.PaymentDeadline).
		Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateTicketCode
		}
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id))
}

func (r *PGTicketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	return scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE code=$1`, code))
}

// MarkPaid flips payment_status PENDING -> PAID. The WHERE clause is the
// mutual-exclusion point against a racing cancellation: whichever commits
// first wins and the loser sees ErrInvalidState.
func (r *PGTicketRepository) MarkPaid(ctx context.Context, id int64) (*domain.Ticket, error) {
	row := r.db.QueryRow(ctx, `UPDATE tickets SET payment_status=$1, updated_at=now()
		WHERE id=$2 AND payment_status=$3 AND status=$4
		RETURNING `+ticketColumns,
		domain.PaymentStatusPaid, id, domain.PaymentStatusPending, domain.TicketStatusBooked)
	ticket, err := scanTicket(row)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return nil, domain.ErrInvalidState
	}
	return ticket, err
}

// Cancel flips the ticket to CANCELLED, restores the flight counter and
// releases the ticket's seats in one transaction, so no caller can observe
// a cancelled ticket whose seats are still held. With onlyPending the
// update refuses paid tickets, which is how the expiration sweep avoids
// cancelling under a racing payment.
func (r *PGTicketRepository) Cancel(ctx context.Context, id int64, reason string, paymentStatus domain.PaymentStatus, onlyPending bool) (*domain.Ticket, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `UPDATE tickets SET status=$1, payment_status=$2, cancelled_at=now(), cancel_reason=$3, updated_at=now()
		WHERE id=$4 AND status <> $1`
	args := []any{domain.TicketStatusCancelled, paymentStatus, reason, id}
	if onlyPending {
		query += ` AND payment_status=$5`
		args = append(args, domain.PaymentStatusPending)
	}
	query += ` RETURNING ` + ticketColumns

	ticket, err := scanTicket(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			return nil, domain.ErrInvalidState
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `UPDATE flights SET available_seats = LEAST(total_seats, available_seats + $1), updated_at = now() WHERE id=$2`,
		ticket.PassengerCount, ticket.FlightID)
	if err != nil {
		return nil, err
	}

	if err := releaseTicketSeats(ctx, tx, ticket); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

// releaseTicketSeats frees every seat still referencing the cancelled
// ticket. The row lock replaces the optimistic version check: nobody can
// rewrite the layout while the cancellation is in flight.
func releaseTicketSeats(ctx context.Context, tx pgx.Tx, ticket *domain.Ticket) error {
	var payload []byte
	err := tx.QueryRow(ctx, `SELECT layout FROM seat_maps WHERE flight_id=$1 FOR UPDATE`, ticket.FlightID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	var layout []domain.SeatRow
	if err := json.Unmarshal(payload, &layout); err != nil {
		return err
	}

	changed := false
	for ri := range layout {
		for si := range layout[ri].Seats {
			seat := &layout[ri].Seats[si]
			if seat.Status == domain.SeatStatusBooked && seat.TicketRef == ticket.Code {
				seat.Status = domain.SeatStatusAvailable
				seat.TicketRef = ""
				changed = true
			}
		}
	}
	if !changed {
		return nil
	}

	updated, err := json.Marshal(layout)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE seat_maps SET layout=$1, version=version+1, updated_at=now() WHERE flight_id=$2`, updated, ticket.FlightID)
	return err
}

func (r *PGTicketRepository) MarkCheckedIn(ctx context.Context, id int64, pass *domain.BoardingPass) (*domain.Ticket, error) {
	payload, err := json.Marshal(pass)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `UPDATE tickets SET status=$1, checkin_payload=$2, updated_at=now()
		WHERE id=$3 AND status=$4 AND payment_status=$5
		RETURNING `+ticketColumns,
		domain.TicketStatusCheckedIn, payload, id, domain.TicketStatusBooked, domain.PaymentStatusPaid)
	ticket, err := scanTicket(row)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return nil, domain.ErrInvalidState
	}
	return ticket, err
}

func (r *PGTicketRepository) ListPendingExpiredBefore(ctx context.Context, deadline time.Time) ([]domain.Ticket, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE payment_status=$1 AND payment_deadline < $2 ORDER BY payment_deadline`,
		domain.PaymentStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

var _ TicketRepository = (*PGTicketRepository)(nil)
