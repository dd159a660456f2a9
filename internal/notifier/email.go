package notifier

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/time/rate"

	"github.com/nadmax/taskplan/internal/config"
)

type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type EmailNotifier struct {
	client  mailSender
	limiter *rate.Limiter
	from    *mail.Email
	to      *mail.Email
	logger  zerolog.Logger
}

func NewEmailNotifier(cfg config.EmailConfig, logger zerolog.Logger) *EmailNotifier {
	perSec := max(cfg.RatePerSec, 1)
	return &EmailNotifier{
		client:  sendgrid.NewSendClient(cfg.APIKey),
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
		from:    mail.NewEmail(cfg.FromName, cfg.FromAddress),
		to:      mail.NewEmail("", cfg.To),
		logger:  logger,
	}
}

func (e *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	body := fmt.Sprintf("%s\n\n%s", n.Message, n.Task.String())
	email := mail.NewSingleEmail(e.from, n.Message, e.to, body, body)

	response, err := e.client.Send(email)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	e.logger.Info().
		Str("to", e.to.Address).
		Int("status", response.StatusCode).
		Msg("reminder email sent")
	return nil
}
