package emailsvc

import (
	"context"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/campus/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"

	// sendgridBatchSize is the max number of personalizations per request.
	sendgridBatchSize = 1000
)

type sendgridSender struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

func newSendgridSender(conf *core.Config) *sendgridSender {
	from := conf.DefaultFromEmail()
	return &sendgridSender{
		key:        conf.SendgridApiKey,
		host:       sendgridHost,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func sgEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func (s *sendgridSender) newMail(msg *core.EmailMessage) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = s.subjPrefix + msg.Subject
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func (s *sendgridSender) send(ctx context.Context, msg *core.EmailMessage) error {
	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(sgEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(sgEmail(bcc))
	}

	m := s.newMail(msg)
	m.AddPersonalizations(p)
	return s.post(ctx, m)
}

// sendEach uses one personalization per recipient: recipients do not see each other.
func (s *sendgridSender) sendEach(ctx context.Context, msg *core.EmailMessage, recipients []mail.Address) error {
	m := s.newMail(msg)
	for _, r := range recipients {
		p := sgmail.NewPersonalization()
		p.AddTos(sgEmail(r))
		m.AddPersonalizations(p)
	}
	return s.post(ctx, m)
}

func (s *sendgridSender) post(ctx context.Context, m *sgmail.SGMailV3) error {
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "sending email through sendgrid")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
