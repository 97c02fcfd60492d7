package mail

import (
	"context"

	"github.com/sabordecasa/api/internal/database"
	"github.com/sirupsen/logrus"
)

// LogMailer records outgoing mail in the application log instead of sending
// it. Stands in until an SMTP provider is configured.
type LogMailer struct {
	log logrus.FieldLogger
}

func NewLogMailer(log logrus.FieldLogger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendOrderConfirmation(ctx context.Context, email string, order database.Order) error {
	m.log.WithFields(logrus.Fields{
		"email":             email,
		"order_id":          order.ID,
		"confirmation_code": order.ConfirmationCode,
	}).Info("order confirmation mail")
	return nil
}
