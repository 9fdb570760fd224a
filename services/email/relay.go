package emailsvc

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

// relaySender posts messages to a serverless email function.
type relaySender struct {
	client     *resty.Client
	url        string
	from       string
	subjPrefix string
}

type (
	relayMessage struct {
		From    string   `json:"from"`
		To      []string `json:"to"`
		Cc      []string `json:"cc,omitempty"`
		Bcc     []string `json:"bcc,omitempty"`
		Subject string   `json:"subject"`
		Text    string   `json:"text"`
		HTML    string   `json:"html,omitempty"`
	}

	relayRequest struct {
		Messages []relayMessage `json:"messages"`
	}
)

func newRelaySender(conf *core.Config) *relaySender {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	if conf.Email.RelayKey != "" {
		client.SetAuthToken(conf.Email.RelayKey)
	}
	from := conf.DefaultFromEmail()
	return &relaySender{
		client:     client,
		url:        conf.Email.RelayURL,
		from:       from.String(),
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func addresses(addrs []mail.Address) []string {
	list := make([]string, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, a.String())
	}
	return list
}

func (s *relaySender) message(msg *core.EmailMessage, to []mail.Address) relayMessage {
	return relayMessage{
		From:    s.from,
		To:      addresses(to),
		Subject: s.subjPrefix + msg.Subject,
		Text:    msg.TextContent,
		HTML:    msg.HTMLContent,
	}
}

func (s *relaySender) send(ctx context.Context, msg *core.EmailMessage) error {
	rm := s.message(msg, msg.To)
	rm.Cc = addresses(msg.Cc)
	rm.Bcc = addresses(msg.Bcc)
	return s.post(ctx, relayRequest{Messages: []relayMessage{rm}})
}

func (s *relaySender) sendEach(ctx context.Context, msg *core.EmailMessage, recipients []mail.Address) error {
	req := relayRequest{Messages: make([]relayMessage, 0, len(recipients))}
	for _, r := range recipients {
		req.Messages = append(req.Messages, s.message(msg, []mail.Address{r}))
	}
	return s.post(ctx, req)
}

func (s *relaySender) post(ctx context.Context, body relayRequest) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(s.url)
	if err != nil {
		return errors.Wrap(err, "posting to the email relay")
	}
	if resp.IsError() {
		return errors.Errorf("email relay: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
