package worker

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/airticketing/internal/domain"
	"github.com/Domenick1991/airticketing/internal/metrics"
	"github.com/sirupsen/logrus"
)

type Ledger interface {
	ListExpiredPending(ctx context.Context) ([]domain.Ticket, error)
	CancelTicket(ctx context.Context, ticketID int64, reason string, cause domain.CancelCause) (*domain.Ticket, error)
}

type Notifier interface {
	Send(ctx context.Context, recipient, kind string, data map[string]interface{}) bool
}

// Deduper remembers which (entity, kind) notifications already went out
// so a re-swept ticket is not notified twice.
type Deduper interface {
	MarkNotified(ctx context.Context, entityID int64, kind string, ttl time.Duration) (bool, error)
}

const expiredReason = "payment deadline exceeded"

type SweepResult struct {
	Cancelled    int
	Skipped      int
	Errored      int
	Notified     int
	NotifyFailed int
}

// ExpirationSweeper periodically cancels pending tickets whose payment
// deadline has passed, through the same path as an explicit cancellation.
type ExpirationSweeper struct {
	ledger   Ledger
	notifier Notifier
	dedup    Deduper
	interval time.Duration
	dedupTTL time.Duration
	now      func() time.Time
}

type SweeperOption func(*ExpirationSweeper)

// WithSweeperClock overrides the time source for tests.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *ExpirationSweeper) {
		s.now = now
	}
}

func NewExpirationSweeper(ledger Ledger, notifier Notifier, dedup Deduper, interval, dedupTTL time.Duration, opts ...SweeperOption) *ExpirationSweeper {
	sweeper := &ExpirationSweeper{
		ledger:   ledger,
		notifier: notifier,
		dedup:    dedup,
		interval: interval,
		dedupTTL: dedupTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(sweeper)
	}
	return sweeper
}

// Run executes a sweep every interval until the context is cancelled.
func (s *ExpirationSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep cancels every overdue pending ticket it can. Per-ticket failures
// are logged and counted; they never abort the rest of the sweep.
func (s *ExpirationSweeper) Sweep(ctx context.Context) SweepResult {
	var result SweepResult
	started := s.now()

	expired, err := s.ledger.ListExpiredPending(ctx)
	if err != nil {
		logrus.WithError(err).Error("expiration sweep: failed to list overdue tickets")
		return result
	}

	for _, ticket := range expired {
		cancelled, err := s.ledger.CancelTicket(ctx, ticket.ID, expiredReason, domain.CancelCauseExpired)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidState) {
				// A payment or another cancellation committed first.
				result.Skipped++
				continue
			}
			result.Errored++
			metrics.SweepOutcomes.WithLabelValues("error").Inc()
			logrus.WithError(err).WithField("ticket_id", ticket.ID).Warn("expiration sweep: cancel failed")
			continue
		}

		result.Cancelled++
		metrics.SweepOutcomes.WithLabelValues("cancelled").Inc()
		s.notify(ctx, cancelled, &result)
	}

	logrus.WithFields(logrus.Fields{
		"cancelled":     result.Cancelled,
		"skipped":       result.Skipped,
		"errored":       result.Errored,
		"notified":      result.Notified,
		"notify_failed": result.NotifyFailed,
		"elapsed":       s.now().Sub(started).String(),
	}).Info("expiration sweep complete")
	return result
}

// notify is best-effort and runs strictly after the cancellation is
// committed, so it can never corrupt or block ledger state.
func (s *ExpirationSweeper) notify(ctx context.Context, ticket *domain.Ticket, result *SweepResult) {
	if s.notifier == nil {
		return
	}
	if s.dedup != nil {
		first, err := s.dedup.MarkNotified(ctx, ticket.ID, "ticket_expired", s.dedupTTL)
		if err != nil {
			logrus.WithError(err).WithField("ticket_id", ticket.ID).Warn("expiration sweep: dedup check failed")
		} else if !first {
			return
		}
	}

	delivered := s.notifier.Send(ctx, ticket.Email, "ticket_expired", map[string]interface{}{
		"ticket_code": ticket.Code,
		"flight_id":   ticket.FlightID,
		"seat_ids":    ticket.SeatIDs,
		"reason":      expiredReason,
	})
	if delivered {
		result.Notified++
		metrics.SweepOutcomes.WithLabelValues("notified").Inc()
	} else {
		result.NotifyFailed++
		metrics.SweepOutcomes.WithLabelValues("notify_failed").Inc()
	}
}
