package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/models"
)

const (
	subjectSignalsIngested = "signals.ingested"
	subjectAlertsFired     = "alerts.fired"
	subjectContentReady    = "content.published"
)

// NATSPublisher announces pipeline events on the message bus. It doubles
// as an alert handler so breaches reach downstream consumers.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("signal-pipeline"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logrus.Infof("Connected to NATS at %s", conn.ConnectedUrl())
	return &NATSPublisher{conn: conn}, nil
}

// signalsEvent is the ingest announcement payload.
type signalsEvent struct {
	Count     int       `json:"count"`
	Sources   []string  `json:"sources"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishSignals announces a freshly ingested batch.
func (p *NATSPublisher) PublishSignals(ctx context.Context, signals []models.ScrapeResult) error {
	seen := make(map[string]bool)
	var sources []string
	for _, s := range signals {
		if !seen[s.Source] {
			seen[s.Source] = true
			sources = append(sources, s.Source)
		}
	}

	event := signalsEvent{
		Count:     len(signals),
		Sources:   sources,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal signals event: %w", err)
	}

	if err := p.conn.Publish(subjectSignalsIngested, data); err != nil {
		return fmt.Errorf("failed to publish signals event: %w", err)
	}

	return nil
}

// PublishAlert announces a fired quality alert.
func (p *NATSPublisher) PublishAlert(alert models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	if err := p.conn.Publish(subjectAlertsFired, data); err != nil {
		return fmt.Errorf("failed to publish alert event: %w", err)
	}

	return nil
}

// PublishContent announces one approved content item to subscribers.
func (p *NATSPublisher) PublishContent(ctx context.Context, item models.ContentItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal content event: %w", err)
	}

	if err := p.conn.Publish(subjectContentReady, data); err != nil {
		return fmt.Errorf("failed to publish content event: %w", err)
	}

	return nil
}

// Name identifies the publisher when registered as an alert handler.
func (p *NATSPublisher) Name() string { return "nats" }

// Handle publishes the alert, satisfying the alert handler contract.
func (p *NATSPublisher) Handle(alert models.Alert) error {
	return p.PublishAlert(alert)
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			logrus.Errorf("Failed to drain NATS connection: %v", err)
		}
	}
}
