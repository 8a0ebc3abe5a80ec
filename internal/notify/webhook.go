// Package notify delivers booking events to an external automation webhook
// (an n8n-style endpoint). Delivery is strictly best-effort: the caller logs
// a returned error and moves on, a booking never depends on it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	EventAppointmentConfirmed = "appointment_confirmed"
	EventAppointmentReminder  = "appointment_reminder"
)

type DoctorInfo struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	CalendarID *string `json:"calendarId,omitempty"`
	Timezone   string  `json:"timezone"`
}

type PatientInfo struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

// AppointmentEvent describes a confirmed appointment with absolute instants;
// the consumer applies its own presentation.
type AppointmentEvent struct {
	ID      string      `json:"id"`
	Doctor  DoctorInfo  `json:"doctor"`
	Patient PatientInfo `json:"patient"`
	Start   string      `json:"start"` // UTC RFC 3339
	End     string      `json:"end"`   // UTC RFC 3339
}

type envelope struct {
	Event       string           `json:"event"`
	Appointment AppointmentEvent `json:"appointment"`
}

type Notifier interface {
	AppointmentConfirmed(ctx context.Context, ev AppointmentEvent) error
	AppointmentReminder(ctx context.Context, ev AppointmentEvent) error
}

type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier builds a notifier bounded by timeout per delivery.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (n *WebhookNotifier) AppointmentConfirmed(ctx context.Context, ev AppointmentEvent) error {
	return n.post(ctx, envelope{Event: EventAppointmentConfirmed, Appointment: ev})
}

func (n *WebhookNotifier) AppointmentReminder(ctx context.Context, ev AppointmentEvent) error {
	return n.post(ctx, envelope{Event: EventAppointmentReminder, Appointment: ev})
}

func (n *WebhookNotifier) post(ctx context.Context, body envelope) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s webhook: %w", body.Event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s returned status %d", body.Event, resp.StatusCode)
	}
	return nil
}

// NoopNotifier is used when no webhook URL is configured.
type NoopNotifier struct{}

func (NoopNotifier) AppointmentConfirmed(context.Context, AppointmentEvent) error { return nil }
func (NoopNotifier) AppointmentReminder(context.Context, AppointmentEvent) error  { return nil }
