package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/mail.v2"

	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

type captureSender struct {
	sent []*mail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*mail.Message) error {
	c.sent = append(c.sent, m...)
	return c.err
}

func TestNotify(t *testing.T) {
	s := &captureSender{}
	n := NewNotifierWithSender(s, "imports@linkgraph.dev")

	err := n.Notify(context.Background(), "ada@example.com", "Your LinkedIn import is ready", "Connections: 2")
	require.NoError(t, err)
	require.Len(t, s.sent, 1)

	m := s.sent[0]
	assert.Equal(t, []string{"imports@linkgraph.dev"}, m.GetHeader("From"))
	assert.Equal(t, []string{"ada@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Your LinkedIn import is ready"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Connections: 2")
}

func TestNotifySendFailure(t *testing.T) {
	s := &captureSender{err: errors.New("connection refused")}
	n := NewNotifierWithSender(s, "imports@linkgraph.dev")

	err := n.Notify(context.Background(), "ada@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNotifyCancelled(t *testing.T) {
	s := &captureSender{}
	n := NewNotifierWithSender(s, "imports@linkgraph.dev")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, n.Notify(ctx, "ada@example.com", "s", "b"), context.Canceled)
	assert.Empty(t, s.sent)
}

func TestNewSMTPNotifierDisabled(t *testing.T) {
	assert.Nil(t, NewSMTPNotifier(config.Config{}, logger.NewNop()))
}
