package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Gateway is the payment collaborator contract. The ledger's
// ConfirmPayment is invoked only after Confirm reports success.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, ticketRef string) (string, error)
	Confirm(ctx context.Context, intentID string) error
	Refund(ctx context.Context, intentID string, amountCents int64) (string, error)
}

// StubGateway approves everything. Stands in for the real provider in
// local and test environments.
type StubGateway struct{}

func NewStubGateway() *StubGateway {
	return &StubGateway{}
}

func (g *StubGateway) CreateIntent(ctx context.Context, amountCents int64, ticketRef string) (string, error) {
	intentID := "pi_" + uuid.NewString()
	logrus.WithFields(logrus.Fields{"intent_id": intentID, "amount_cents": amountCents, "ticket_ref": ticketRef}).Info("payment intent created")
	return intentID, nil
}

func (g *StubGateway) Confirm(ctx context.Context, intentID string) error {
	logrus.WithField("intent_id", intentID).Info("payment confirmed")
	return nil
}

func (g *StubGateway) Refund(ctx context.Context, intentID string, amountCents int64) (string, error) {
	refundID := "re_" + uuid.NewString()
	logrus.WithFields(logrus.Fields{"intent_id": intentID, "refund_id": refundID, "amount_cents": amountCents}).Info("payment refunded")
	return refundID, nil
}

var _ Gateway = (*StubGateway)(nil)
