// Package emailsvc implements core.EmailService on top of a console, SendGrid or relay sender.
package emailsvc

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

// sender delivers rendered messages through one provider.
type sender interface {
	// send delivers msg as addressed.
	send(ctx context.Context, msg *core.EmailMessage) error
	// sendEach delivers one copy of msg per recipient, in a single provider call.
	sendEach(ctx context.Context, msg *core.EmailMessage, recipients []mail.Address) error
}

type mailer struct {
	provider  string
	batchSize int
	sender    sender
	sync      bool // SendMessages waits for each message
	logs      core.EmailLogRepository
	logger    core.Logger
	nowFunc   func() time.Time // mockable
}

var _ core.EmailService = (*mailer)(nil) // interface compliance check

// New builds the email service of conf.Email.Backend.
func New(conf *core.Config, logs core.EmailLogRepository, logger core.Logger) (core.EmailService, error) {
	switch conf.Email.Backend {
	case "", "console":
		return newMailer("console", defaultBatchSize, newConsoleSender(conf, false), logs, logger), nil
	case "sendgrid":
		if conf.SendgridApiKey == "" {
			return nil, errors.New("email: sendgridApiKey is required by the sendgrid backend")
		}
		return newMailer("sendgrid", sendgridBatchSize, newSendgridSender(conf), logs, logger), nil
	case "relay":
		if conf.Email.RelayURL == "" {
			return nil, errors.New("email: email.relayURL is required by the relay backend")
		}
		size := conf.Email.RelayBatchSize
		if size <= 0 {
			size = defaultBatchSize
		}
		return newMailer("relay", size, newRelaySender(conf), logs, logger), nil
	}
	return nil, errors.Errorf("email: unknown backend %q", conf.Email.Backend)
}

const defaultBatchSize = 100

func newMailer(provider string, batchSize int, s sender, logs core.EmailLogRepository, logger core.Logger) *mailer {
	return &mailer{
		provider:  provider,
		batchSize: batchSize,
		sender:    s,
		logs:      logs,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

func (m *mailer) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if m.sync {
			m.sendMessage(context.Background(), msg)
			continue
		}
		go m.sendMessage(context.Background(), msg)
	}
}

func (m *mailer) sendMessage(ctx context.Context, msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		m.logger.Error(fmt.Sprintf("emailsvc.render(%s): %v", msg.TemplateName, err), err)
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}
	err := m.sender.send(ctx, msg)
	if err != nil {
		m.logger.Error(fmt.Sprintf("emailsvc.send(%s): %v", m.provider, err), err)
	}
	m.logDeliveries(ctx, msg, msg.Recipients(), err)
}

// SendBulk renders msg once and sends one copy per recipient, batchSize recipients per provider call.
// a failed batch does not stop the next ones: the first error is returned along with the number sent.
func (m *mailer) SendBulk(ctx context.Context, msg *core.EmailMessage, recipients []mail.Address) (int, error) {
	if err := msg.Render(); err != nil {
		return 0, errors.Wrap(err, "rendering email")
	}
	if !msg.HasContent() {
		return 0, errors.New("email has no content")
	}

	var (
		sent     int
		firstErr error
	)
	for start := 0; start < len(recipients); start += m.batchSize {
		if err := ctx.Err(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		end := start + m.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		batch := recipients[start:end]

		err := m.sender.sendEach(ctx, msg, batch)
		m.logDeliveries(ctx, msg, batch, err)
		if err != nil {
			m.logger.Error(fmt.Sprintf("emailsvc.SendBulk(%s): batch %d-%d: %v", m.provider, start, end, err), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent += len(batch)
	}
	return sent, firstErr
}

// logDeliveries records one email log per recipient. failures are only reported to the logger.
func (m *mailer) logDeliveries(ctx context.Context, msg *core.EmailMessage, recipients []mail.Address, sendErr error) {
	if m.logs == nil || len(recipients) == 0 {
		return
	}
	status, errMsg := core.EmailStatusSent, ""
	if sendErr != nil {
		status, errMsg = core.EmailStatusFailed, sendErr.Error()
	}

	now := m.nowFunc().UTC()
	logs := make([]core.EmailLog, 0, len(recipients))
	for _, r := range recipients {
		logs = append(logs, core.EmailLog{
			ID:        uuid.New().String(),
			Recipient: r.Address,
			Subject:   msg.Subject,
			Template:  msg.TemplateName,
			Provider:  m.provider,
			Status:    status,
			Error:     errMsg,
			CreatedAt: now,
		})
	}
	if err := m.logs.CreateEmailLogs(context.WithoutCancel(ctx), logs...); err != nil {
		m.logger.Warn(fmt.Sprintf("emailsvc.logDeliveries: %v", err), err)
	}
}
