package mail

import (
	"context"
	"fmt"
	"strings"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/spec-kit/registration-service/internal/config"
)

// SMTPMailer sends activation emails through an SMTP relay.
type SMTPMailer struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

// NewSMTPMailer constructs the mailer. Connections are opened per send.
func NewSMTPMailer(cfg config.MailConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// SendAccountActivation delivers token to email. The caller bounds ctx.
func (m *SMTPMailer) SendAccountActivation(ctx context.Context, email, token string) error {
	msg, err := m.buildMessage(email, token)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	m.logger.Debug("activation email sent", zap.String("host", m.cfg.Host))
	return nil
}

func (m *SMTPMailer) buildMessage(email, token string) (*gomail.Msg, error) {
	body, err := renderActivationBody(ActivationLink(m.cfg.ActivationURL, token))
	if err != nil {
		return nil, fmt.Errorf("render activation body: %w", err)
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(email); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(activationSubject)
	msg.SetBodyString(gomail.TypeTextHTML, body)
	return msg, nil
}

func (m *SMTPMailer) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTLSPolicy(tlsPolicy(m.cfg.TLSPolicy)),
	}
	if m.cfg.SendTimeoutSeconds > 0 {
		opts = append(opts, gomail.WithTimeout(m.cfg.SendTimeout()))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

func tlsPolicy(name string) gomail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "notls", "off":
		return gomail.NoTLS
	case "mandatory", "required":
		return gomail.TLSMandatory
	default:
		return gomail.TLSOpportunistic
	}
}
