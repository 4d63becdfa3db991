package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// publisher is the part of *nats.Conn the notifier needs.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSNotifier publishes RunEvents on a NATS subject.
type NATSNotifier struct {
	conn    publisher
	subject string
}

// NewNATSNotifier connects to cfg.NATSURL.
func NewNATSNotifier(cfg config.NotifyConfig) (*NATSNotifier, error) {
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("sorrydb-sync"),
		nats.Timeout(connectTimeout),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to connect to NATS").
			Later().
			WithContext("url", cfg.NATSURL).
			Build()
	}

	slog.Info("NATS notifier connected", slog.String("url", cfg.NATSURL), slog.String("subject", cfg.Subject))
	return &NATSNotifier{conn: conn, subject: cfg.Subject}, nil
}

// Notify publishes event and waits for the server to acknowledge the flush.
func (n *NATSNotifier) Notify(ctx context.Context, event RunEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal run event").Build()
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		return n.publishErr(err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return n.publishErr(err)
	}

	slog.Debug("Published run event",
		logfields.RunID(event.RunID),
		logfields.Outcome(event.Outcome),
		slog.String("subject", n.subject))
	return nil
}

func (n *NATSNotifier) publishErr(err error) error {
	return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to publish run event").
		Later().
		WithContext("subject", n.subject).
		Build()
}

// Close drops the connection.
func (n *NATSNotifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}

// New returns a NATS notifier when cfg enables one and Noop otherwise.
// A connection failure is logged and degrades to Noop: notifications never fail a run.
func New(cfg config.NotifyConfig) Notifier {
	if !cfg.Enabled() {
		return Noop{}
	}
	n, err := NewNATSNotifier(cfg)
	if err != nil {
		slog.Warn("Run notifications disabled", logfields.Error(err))
		return Noop{}
	}
	return n
}
