package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name string
	err  error
	sent []string
}

func (s *fakeSender) Send(_ context.Context, title, _ string) error {
	s.sent = append(s.sent, title)
	return s.err
}

func (s *fakeSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersByEvent(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{"trade_executed"}, testLogger())

	require.NoError(t, n.Notify(context.Background(), "trade_executed", "Trade", "msg"))
	require.NoError(t, n.Notify(context.Background(), "loop_error", "Error", "msg"))

	assert.Equal(t, []string{"Trade"}, s.sent)
}

func TestNotifyEmptyEventListAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), "anything", "Title", "msg"))
	assert.Len(t, s.sent, 1)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "Title", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")

	// The failing sender does not block delivery to the healthy one.
	assert.Len(t, good.sent, 1)
}

func TestNotifyWithoutSenders(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	assert.NoError(t, n.Notify(context.Background(), "trade_executed", "Title", "msg"))
}
