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
	name  string
	err   error
	calls int
	title string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.calls++
	f.title = title
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func TestNotifyFiltersByEvent(t *testing.T) {
	s := &fakeSender{name: "tg"}
	n := New([]Sender{s}, []string{EventFatalError}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, n.Notify(context.Background(), EventOpportunityDetected, "opp", "x"))
	assert.Equal(t, 0, s.calls)

	require.NoError(t, n.Notify(context.Background(), EventFatalError, "down", "x"))
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, "down", s.title)
}

func TestNotifyEmptyFilterDeliversEverything(t *testing.T) {
	s := &fakeSender{name: "tg"}
	n := New([]Sender{s}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, n.Notify(context.Background(), EventOrderFilled, "fill", "x"))
	require.NoError(t, n.Notify(context.Background(), EventLegsSubmitted, "legs", "x"))
	assert.Equal(t, 2, s.calls)
}

func TestNotifyJoinsSenderErrors(t *testing.T) {
	bad := &fakeSender{name: "discord", err: errors.New("webhook gone")}
	good := &fakeSender{name: "tg"}
	n := New([]Sender{bad, good}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := n.Notify(context.Background(), EventFatalError, "down", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord")
	assert.Contains(t, err.Error(), "webhook gone")

	// The healthy sender was still invoked.
	assert.Equal(t, 1, good.calls)
}

func TestNotifyNoSenders(t *testing.T) {
	n := New(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, n.Notify(context.Background(), EventFatalError, "down", "x"))
}
