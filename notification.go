package fhir_etl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Notifier announces a completed run.
type Notifier interface {
	Notify(ctx context.Context, m *Manifest) error
}

func NotifyViaSlack(ctx context.Context, body, slackURL string) error {

	slackCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(slackCtx, http.MethodPost, slackURL, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

type SlackNotifier struct {
	url string
}

func NewSlackNotifier(url string) *SlackNotifier {
	return &SlackNotifier{url: url}
}

func (s *SlackNotifier) Notify(ctx context.Context, m *Manifest) error {
	body, err := json.Marshal(map[string]string{"text": m.Summary()})
	if err != nil {
		return fmt.Errorf("Failed to marshal slack message: %w", err)
	}
	return NotifyViaSlack(ctx, string(body), s.url)
}

type natsConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSNotifier publishes the run manifest on a subject.
type NATSNotifier struct {
	conn    natsConn
	subject string
}

func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	nc, err := nats.Connect(url, nats.Name("fhir-etl"), nats.Timeout(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to nats at %s: %w", url, err)
	}
	return &NATSNotifier{conn: nc, subject: subject}, nil
}

func (n *NATSNotifier) Notify(ctx context.Context, m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("Failed to marshal manifest: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("Failed to publish to %s: %w", n.subject, err)
	}
	// nats requires a deadline on flush contexts
	flushCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := n.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("Failed to flush nats connection: %w", err)
	}
	return nil
}

func (n *NATSNotifier) Close() {
	n.conn.Close()
}
