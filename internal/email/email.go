package email

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Sender is the notification collaborator. Delivery is best-effort: the
// caller only learns whether the message went out.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, recipient, kind string, data map[string]interface{}) bool {
	logrus.WithFields(logrus.Fields{"recipient": recipient, "kind": kind, "data": data}).Info("send email")
	return true
}
