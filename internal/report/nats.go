package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/issuevec/internal/config"
)

// flushTimeout bounds how long Report waits for the server to confirm.
const flushTimeout = 5 * time.Second

// NATSReporter publishes JSON run reports to a NATS subject.
type NATSReporter struct {
	conn    *nats.Conn
	subject string
}

// NewNATSReporter connects to url. An empty subject uses "issuevec.runs".
func NewNATSReporter(url, subject string) (*NATSReporter, error) {
	if subject == "" {
		subject = config.DefaultNATSSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("issuevec"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return &NATSReporter{conn: nc, subject: subject}, nil
}

// Report implements Reporter. It returns once the server has the message.
func (n *NATSReporter) Report(ctx context.Context, r *RunReport) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish run report: %w", err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := n.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("flush run report: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (n *NATSReporter) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
