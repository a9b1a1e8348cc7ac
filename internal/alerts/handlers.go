package alerts

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/startinsight/signal-pipeline/internal/models"
)

// LogHandler writes every alert to the structured log at a level matching
// its severity. Always registered.
type LogHandler struct{}

func (LogHandler) Name() string { return "log" }

func (LogHandler) Handle(alert models.Alert) error {
	entry := logrus.WithFields(logrus.Fields{
		"metric":    alert.MetricName,
		"threshold": alert.Threshold,
		"actual":    alert.ActualValue,
		"severity":  alert.Severity.String(),
		"alert_id":  alert.ID,
	})

	switch alert.Severity {
	case models.SeverityInfo:
		entry.Info(alert.Message)
	case models.SeverityWarning:
		entry.Warn(alert.Message)
	default:
		entry.Error(alert.Message)
	}

	return nil
}

// webhookMessage is the structured chat payload: title line plus severity,
// metric, threshold, actual value, message, and timestamp facts.
type webhookMessage struct {
	Type     string           `json:"@type"`
	Context  string           `json:"@context"`
	Title    string           `json:"title"`
	Text     string           `json:"text"`
	Sections []webhookSection `json:"sections,omitempty"`
}

type webhookSection struct {
	Facts    []webhookFact `json:"facts,omitempty"`
	Markdown bool          `json:"markdown,omitempty"`
}

type webhookFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// WebhookHandler posts error and critical alerts to a chat webhook. The
// post runs on its own goroutine so callers never block on the network.
type WebhookHandler struct {
	url    string
	client *resty.Client
}

// NewWebhookHandler creates a webhook handler for the given URL.
func NewWebhookHandler(url string, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		url:    url,
		client: resty.New().SetTimeout(timeout),
	}
}

func (h *WebhookHandler) Name() string { return "webhook" }

func (h *WebhookHandler) Handle(alert models.Alert) error {
	if alert.Severity < models.SeverityError {
		return nil
	}

	message := &webhookMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   fmt.Sprintf("Quality alert: %s", alert.MetricName),
		Text:    alert.Message,
		Sections: []webhookSection{{
			Markdown: true,
			Facts: []webhookFact{
				{Name: "Severity", Value: alert.Severity.String()},
				{Name: "Metric", Value: alert.MetricName},
				{Name: "Threshold", Value: fmt.Sprintf("%g", alert.Threshold)},
				{Name: "Actual", Value: fmt.Sprintf("%g", alert.ActualValue)},
				{Name: "Time", Value: alert.Timestamp.UTC().Format(time.RFC3339)},
			},
		}},
	}

	go func() {
		resp, err := h.client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(message).
			Post(h.url)

		if err != nil {
			logrus.Errorf("Failed to post alert webhook: %v", err)
			return
		}
		if resp.StatusCode() >= 300 {
			logrus.Errorf("Alert webhook returned status %d: %s", resp.StatusCode(), resp.Body())
		}
	}()

	return nil
}

// EmailConfig carries the SMTP settings for the email handler.
type EmailConfig struct {
	To       string
	Host     string
	Port     int
	Username string
	Password string
}

// EmailHandler emails error and critical alerts.
type EmailHandler struct {
	cfg EmailConfig
}

// NewEmailHandler creates an email handler.
func NewEmailHandler(cfg EmailConfig) *EmailHandler {
	return &EmailHandler{cfg: cfg}
}

func (h *EmailHandler) Name() string { return "email" }

func (h *EmailHandler) Handle(alert models.Alert) error {
	if alert.Severity < models.SeverityError {
		return nil
	}

	subject := fmt.Sprintf("[%s] Quality alert: %s", alert.Severity, alert.MetricName)
	body := fmt.Sprintf(
		"Severity: %s\nMetric: %s\nThreshold: %g\nActual: %g\n\n%s\n\nFired at %s\n",
		alert.Severity, alert.MetricName, alert.Threshold, alert.ActualValue,
		alert.Message, alert.Timestamp.UTC().Format(time.RFC3339))

	m := gomail.NewMessage()
	m.SetHeader("From", h.cfg.Username)
	m.SetHeader("To", h.cfg.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(h.cfg.Host, h.cfg.Port, h.cfg.Username, h.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	return nil
}
