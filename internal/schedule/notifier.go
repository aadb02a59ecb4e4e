package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Notifier dispatches the reservation webhook to the external flow tool.
// Implementations must be safe to call with a short-lived context; the
// service treats failures as log-only.
type Notifier interface {
	NotifyReservation(ctx context.Context, patientName, patientPhone string, slotID uuid.UUID) error
}

// WebhookNotifier posts reservation events to a configured URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type reservationPayload struct {
	PatientName  string `json:"patientName"`
	PatientPhone string `json:"patientPhone"`
	SlotID       string `json:"slotId"`
}

func (n *WebhookNotifier) NotifyReservation(ctx context.Context, patientName, patientPhone string, slotID uuid.UUID) error {
	body, err := json.Marshal(reservationPayload{
		PatientName:  patientName,
		PatientPhone: patientPhone,
		SlotID:       slotID.String(),
	})
	if err != nil {
		return fmt.Errorf("marshal reservation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier is used when no webhook URL is configured.
type NopNotifier struct{}

func (NopNotifier) NotifyReservation(context.Context, string, string, uuid.UUID) error {
	return nil
}
