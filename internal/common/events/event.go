// Package events defines the donation lifecycle events the portal publishes
// for downstream consumers (receipt rendering, donor email, admin dashboards).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event represents a domain event envelope
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	DonationID    string          `json:"donation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event
func NewEvent(eventType, donationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		Version:    1,
		OccurredAt: time.Now().UTC(),
		DonationID: donationID,
		Data:       dataBytes,
	}, nil
}

// WithCorrelation adds a correlation ID
func (e *Event) WithCorrelation(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// DecodeData decodes the event data into a struct
func (e *Event) DecodeData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Publisher publishes events to a message broker
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Event types
const (
	EventPaymentInitiated    = "payment.initiated"
	EventPaymentPaid         = "payment.paid"
	EventPaymentFailed       = "payment.failed"
	EventPaymentCancelled    = "payment.cancelled"
	EventPaymentPending      = "payment.pending"
	EventPaymentUnreconciled = "payment.unreconciled"
)

// PaymentInitiatedData is the data for payment.initiated events
type PaymentInitiatedData struct {
	TransactionID string  `json:"transaction_id"`
	CategoryID    string  `json:"category_id"`
	Amount        float64 `json:"amount"`
	DonorEmail    string  `json:"donor_email"`
}

// PaymentOutcomeData is the data for payment outcome events
type PaymentOutcomeData struct {
	TransactionID string `json:"transaction_id"`
	PaymentStatus string `json:"payment_status"`
	GatewayStatus string `json:"gateway_status,omitempty"`
	Channel       string `json:"channel"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// PaymentUnreconciledData is the data for payment.unreconciled events
type PaymentUnreconciledData struct {
	Channel       string `json:"channel"`
	TransactionID string `json:"transaction_id,omitempty"`
	GatewayStatus string `json:"gateway_status,omitempty"`
	Reason        string `json:"reason"`
}
