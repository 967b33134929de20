package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer stands in for SMTP in development. It logs the activation link
// instead of sending it.
type LogMailer struct {
	activationURL string
	logger        *zap.Logger
}

// NewLogMailer builds a logging mailer.
func NewLogMailer(activationURL string, logger *zap.Logger) *LogMailer {
	return &LogMailer{activationURL: activationURL, logger: logger}
}

func (m *LogMailer) SendAccountActivation(ctx context.Context, email, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("activation email (not sent, no SMTP host configured)",
		zap.String("to", email),
		zap.String("link", ActivationLink(m.activationURL, token)))
	return nil
}
