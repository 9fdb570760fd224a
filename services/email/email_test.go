package emailsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
	inmemdb "github.com/trezcool/campus/storage/database/inmem"
	testutil "github.com/trezcool/campus/tests"
)

func recipients(n int) []mail.Address {
	addrs := make([]mail.Address, 0, n)
	for i := 0; i < n; i++ {
		addrs = append(addrs, mail.Address{Name: "Lead " + strconv.Itoa(i), Address: "lead" + strconv.Itoa(i) + "@example.com"})
	}
	return addrs
}

// flakySender fails the batches whose index is in failing.
type flakySender struct {
	mu      sync.Mutex
	batches [][]mail.Address
	failing map[int]bool
}

func (s *flakySender) send(context.Context, *core.EmailMessage) error { return nil }

func (s *flakySender) sendEach(_ context.Context, _ *core.EmailMessage, rcpts []mail.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.batches)
	s.batches = append(s.batches, rcpts)
	if s.failing[idx] {
		return errors.New("provider unavailable")
	}
	return nil
}

func TestSendBulk_Batches(t *testing.T) {
	ctx := context.Background()
	logs := inmemdb.NewEmailLogRepository(inmemdb.Open())
	snd := &flakySender{failing: map[int]bool{1: true}}
	m := newMailer("fake", 2, snd, logs, &testutil.Logger{})

	sent, err := m.SendBulk(ctx, &core.EmailMessage{Subject: "Hello", BodyStr: "Hi!"}, recipients(5))

	assert.Error(t, err)
	assert.Equal(t, 3, sent, "the failed batch of 2 is not counted")
	require.Len(t, snd.batches, 3)
	assert.Len(t, snd.batches[0], 2)
	assert.Len(t, snd.batches[1], 2)
	assert.Len(t, snd.batches[2], 1)

	all, err := logs.QueryEmailLogs(ctx, core.EmailLogFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
	failed, _ := logs.QueryEmailLogs(ctx, core.EmailLogFilter{Status: core.EmailStatusFailed})
	assert.Len(t, failed, 2)
	for _, l := range failed {
		assert.Equal(t, "fake", l.Provider)
		assert.Equal(t, "provider unavailable", l.Error)
	}
}

func TestSendBulk_NoContent(t *testing.T) {
	m := newMailer("fake", 2, &flakySender{}, nil, &testutil.Logger{})
	sent, err := m.SendBulk(context.Background(), &core.EmailMessage{Subject: "Empty"}, recipients(1))
	assert.Error(t, err)
	assert.Zero(t, sent)
}

func TestConsoleMock(t *testing.T) {
	conf := testutil.NewConfig()
	mock := NewConsoleMock(conf, nil, &testutil.Logger{})

	mock.SendMessages(
		&core.EmailMessage{To: recipients(1), Subject: "One", BodyStr: "1"},
		&core.EmailMessage{Subject: "No recipient", BodyStr: "2"},
	)
	sent := mock.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "One", sent[0].Subject)
	assert.Equal(t, "1", sent[0].TextContent)

	mock.Reset()
	n, err := mock.SendBulk(context.Background(), &core.EmailMessage{Subject: "Bulk", BodyStr: "b"}, recipients(3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	sent = mock.SentMessages()
	require.Len(t, sent, 3)
	for i, msg := range sent {
		assert.Equal(t, recipients(3)[i:i+1], msg.To, "one copy per recipient")
	}
}

func TestRelaySender(t *testing.T) {
	var (
		got  relayRequest
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(got.Messages) > 2 {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	conf := testutil.NewConfig()
	conf.Email.Backend = "relay"
	conf.Email.RelayURL = srv.URL
	conf.Email.RelayKey = "s3cr3t"
	conf.Email.RelayBatchSize = 2

	svc, err := New(conf, nil, &testutil.Logger{})
	require.NoError(t, err)

	sent, err := svc.SendBulk(context.Background(), &core.EmailMessage{Subject: "News", BodyStr: "Hello"}, recipients(3))
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, "Bearer s3cr3t", auth)
	require.Len(t, got.Messages, 1, "last batch")
	assert.Equal(t, []string{recipients(3)[2].String()}, got.Messages[0].To)
	assert.Equal(t, "["+conf.AppName+"] News", got.Messages[0].Subject)
	assert.Equal(t, "Hello", got.Messages[0].Text)
	from := conf.DefaultFromEmail()
	assert.Equal(t, from.String(), got.Messages[0].From)
}

func TestNew(t *testing.T) {
	conf := testutil.NewConfig()

	conf.Email.Backend = "relay"
	conf.Email.RelayURL = ""
	_, err := New(conf, nil, &testutil.Logger{})
	assert.Error(t, err)

	conf.Email.Backend = "sendgrid"
	conf.SendgridApiKey = ""
	_, err = New(conf, nil, &testutil.Logger{})
	assert.Error(t, err)

	conf.Email.Backend = "pigeon"
	_, err = New(conf, nil, &testutil.Logger{})
	assert.Error(t, err)

	conf.Email.Backend = "console"
	_, err = New(conf, nil, &testutil.Logger{})
	assert.NoError(t, err)
}
