package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type fakeMailSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeMailSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	f.sent = append(f.sent, messages...)
	return f.err
}

func newTestSMTPNotifier(cfg SMTPConfig, sender *fakeMailSender) (*SMTPNotifier, *int) {
	n := NewSMTPNotifier(cfg)
	dials := 0
	n.dial = func(SMTPConfig) (mailSender, error) {
		dials++
		return sender, nil
	}
	return n, &dials
}

func TestSMTPNotifier_MissingConfigDoesNotDial(t *testing.T) {
	tests := []SMTPConfig{
		{},
		{From: "bot@example.com", Password: "secret"},
		{From: "bot@example.com", To: "ops@example.com"},
		{Password: "secret", To: "ops@example.com"},
	}

	for _, cfg := range tests {
		n, dials := newTestSMTPNotifier(cfg, &fakeMailSender{})
		err := n.Send(context.Background(), Subject, "body")
		require.ErrorIs(t, err, ErrMissingMailConfig)
		require.Zero(t, *dials)
	}
}

func TestSMTPNotifier_BuildsMessage(t *testing.T) {
	sender := &fakeMailSender{}
	n, dials := newTestSMTPNotifier(SMTPConfig{
		From:     "bot@example.com",
		Password: "secret",
		To:       "ops@example.com",
	}, sender)

	subject, body := Message("Main St", 0.87)
	require.NoError(t, n.Send(context.Background(), subject, body))
	require.Equal(t, 1, *dials)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	require.Equal(t, []string{"Garbage Detected!"}, msg.GetGenHeader(mail.HeaderSubject))
	to := msg.GetToString()
	require.Len(t, to, 1)
	require.Contains(t, to[0], "ops@example.com")
}

func TestSMTPNotifier_Defaults(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{})
	require.Equal(t, "smtp.gmail.com", n.cfg.Host)
	require.Equal(t, 587, n.cfg.Port)
}

func TestSMTPNotifier_SendError(t *testing.T) {
	n, _ := newTestSMTPNotifier(SMTPConfig{
		From:     "bot@example.com",
		Password: "secret",
		To:       "ops@example.com",
	}, &fakeMailSender{err: errors.New("535 authentication failed")})

	err := n.Send(context.Background(), Subject, "body")
	require.Error(t, err)
	require.Contains(t, err.Error(), "535 authentication failed")
}

func TestSMTPNotifier_InvalidAddress(t *testing.T) {
	n, dials := newTestSMTPNotifier(SMTPConfig{
		From:     "not an address",
		Password: "secret",
		To:       "ops@example.com",
	}, &fakeMailSender{})

	require.Error(t, n.Send(context.Background(), Subject, "body"))
	require.Zero(t, *dials)
}
