package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/curatedly/curatedly-backend/pkg/config"
	"github.com/curatedly/curatedly-backend/pkg/logger"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendgridDispatcher delivers messages through the SendGrid v3 mail API.
type SendgridDispatcher struct {
	client   sendClient
	from     string
	fromName string
}

func NewSendgridDispatcher(cfg config.SendgridConfig) (*SendgridDispatcher, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid api key required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, errors.New("sendgrid from address required")
	}
	return newSendgridDispatcher(sendgrid.NewSendClient(cfg.APIKey), cfg.DefaultFrom, cfg.FromName), nil
}

func newSendgridDispatcher(client sendClient, from, fromName string) *SendgridDispatcher {
	return &SendgridDispatcher{client: client, from: from, fromName: fromName}
}

func (d *SendgridDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient required")
	}
	email := mail.NewSingleEmail(
		mail.NewEmail(d.fromName, d.from),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)
	resp, err := d.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	return nil
}

// LogDispatcher writes messages to the log instead of sending them. Local
// environments use it when no SendGrid key is configured.
type LogDispatcher struct {
	logg *logger.Logger
}

func NewLogDispatcher(logg *logger.Logger) *LogDispatcher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogDispatcher{logg: logg}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, msg Message) error {
	d.logg.Info(d.logg.WithFields(ctx, map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
	}), "email suppressed")
	return nil
}
