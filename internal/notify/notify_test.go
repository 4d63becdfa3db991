package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
)

type fakeConn struct {
	subject  string
	data     []byte
	pubErr   error
	flushErr error
	closed   bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.pubErr
}

func (f *fakeConn) FlushWithContext(context.Context) error { return f.flushErr }
func (f *fakeConn) Close()                                 { f.closed = true }

func sampleEvent() RunEvent {
	started := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	return RunEvent{
		RunID:      "8f14e45f-ceea-467a-9af0-2b7c0f2c0a11",
		Outcome:    "updated",
		Tag:        "2024-03-05",
		Stamp:      "2024-03-05T10:00:00",
		Repository: "/srv/sorrydb-data",
		StartedAt:  started,
		FinishedAt: started.Add(4 * time.Minute),
	}
}

func TestNATSNotifier_PublishesJSON(t *testing.T) {
	conn := &fakeConn{}
	n := &NATSNotifier{conn: conn, subject: "sorrydb.updates"}

	require.NoError(t, n.Notify(context.Background(), sampleEvent()))
	require.Equal(t, "sorrydb.updates", conn.subject)

	var got map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &got))
	require.Equal(t, "updated", got["outcome"])
	require.Equal(t, "2024-03-05", got["tag"])
	require.NotContains(t, got, "error")

	require.NoError(t, n.Close())
	require.True(t, conn.closed)
}

func TestNATSNotifier_Errors(t *testing.T) {
	n := &NATSNotifier{conn: &fakeConn{pubErr: errors.New("nats: connection closed")}, subject: "s"}
	err := n.Notify(context.Background(), sampleEvent())
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))

	n = &NATSNotifier{conn: &fakeConn{flushErr: context.DeadlineExceeded}, subject: "s"}
	err = n.Notify(context.Background(), sampleEvent())
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))
}

func unusedAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestNewNATSNotifier_Unreachable(t *testing.T) {
	_, err := NewNATSNotifier(config.NotifyConfig{NATSURL: "nats://" + unusedAddr(t), Subject: "s"})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))
}

func TestNew_DegradesToNoop(t *testing.T) {
	require.IsType(t, Noop{}, New(config.NotifyConfig{}))
	require.IsType(t, Noop{}, New(config.NotifyConfig{NATSURL: "nats://" + unusedAddr(t), Subject: "s"}))
}
