package emailsvc

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

type consoleSender struct {
	from          mail.Address
	subjPrefix    string
	disableOutput bool

	mu   sync.Mutex
	sent []core.EmailMessage // recorded when disableOutput
}

func newConsoleSender(conf *core.Config, disableOutput bool) *consoleSender {
	return &consoleSender{
		from:          conf.DefaultFromEmail(),
		subjPrefix:    "[" + conf.AppName + "] ",
		disableOutput: disableOutput,
	}
}

func (s *consoleSender) send(_ context.Context, msg *core.EmailMessage) error {
	body, err := s.format(msg)
	if err != nil {
		return err
	}
	if s.disableOutput {
		s.mu.Lock()
		s.sent = append(s.sent, *msg)
		s.mu.Unlock()
		return nil
	}
	log.Println(body)
	return nil
}

func (s *consoleSender) sendEach(ctx context.Context, msg *core.EmailMessage, recipients []mail.Address) error {
	for _, r := range recipients {
		if err := s.send(ctx, msg.Copy(r)); err != nil {
			return err
		}
	}
	return nil
}

// format writes msg the way an SMTP server would receive it.
func (s *consoleSender) format(msg *core.EmailMessage) (string, error) {
	body := new(strings.Builder)

	_, _ = fmt.Fprintf(body, "From: %s\r\n", s.from.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", s.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		_, _ = fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
	}

	altW := multipart.NewWriter(body)
	_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())

	w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return "", errors.Wrap(err, "creating text/plain part")
	}
	_, _ = fmt.Fprintf(w, "%s\r\n", msg.TextContent)

	if msg.HTMLContent != "" {
		w, err = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
		if err != nil {
			return "", errors.Wrap(err, "creating text/html part")
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
	}
	if err = altW.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart writer")
	}
	return body.String(), nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

// ConsoleMock sends synchronously, prints nothing & records every message sent.
type ConsoleMock struct {
	*mailer
	console *consoleSender
}

func NewConsoleMock(conf *core.Config, logs core.EmailLogRepository, logger core.Logger) *ConsoleMock {
	console := newConsoleSender(conf, true)
	m := newMailer("console", defaultBatchSize, console, logs, logger)
	m.sync = true
	return &ConsoleMock{mailer: m, console: console}
}

// SentMessages returns a copy of the messages sent so far, one per SendBulk recipient.
func (m *ConsoleMock) SentMessages() []core.EmailMessage {
	m.console.mu.Lock()
	defer m.console.mu.Unlock()
	return append([]core.EmailMessage(nil), m.console.sent...)
}

func (m *ConsoleMock) Reset() {
	m.console.mu.Lock()
	m.console.sent = nil
	m.console.mu.Unlock()
}
