package recon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"donorgate/internal/common/database"
	"donorgate/internal/common/events"
	"donorgate/internal/donation"
	"donorgate/internal/gateway"
)

// DonationStore is what the engine needs from the donation store.
type DonationStore interface {
	GetByID(ctx context.Context, id string) (*donation.Donation, error)
	ApplyOutcome(ctx context.Context, id string, upd donation.OutcomeUpdate) error
}

// Kind classifies the result of reconciling one callback.
type Kind string

const (
	// KindApplied means the donation record was mutated.
	KindApplied Kind = "applied"
	// KindInvalidHash means the digest did not verify; no mutation.
	KindInvalidHash Kind = "invalid_hash"
	// KindNotFound means no donation record matches the supplied id.
	KindNotFound Kind = "not_found"
	// KindUnreconciled means the callback carried no usable donation id.
	KindUnreconciled Kind = "unreconciled"
)

// Outcome is the explicit result of reconciling one callback. Forged, unknown
// and malformed events are outcome kinds, not errors; the error return is
// reserved for infrastructure failures.
type Outcome struct {
	Kind          Kind
	Donation      *donation.Donation
	PaymentStatus donation.PaymentStatus
	FailureReason string
}

// Engine is the payment reconciliation state machine. Given a normalized
// callback event it decides whether and how to mutate a donation record.
type Engine struct {
	store     DonationStore
	verifier  *gateway.Verifier
	publisher events.Publisher
	logger    *slog.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(store DonationStore, verifier *gateway.Verifier, publisher events.Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		store:     store,
		verifier:  verifier,
		publisher: publisher,
		logger:    logger,
	}
}

// ApplyRedirectSuccess reconciles a redirect-success callback. The digest must
// verify before any mutation.
func (e *Engine) ApplyRedirectSuccess(ctx context.Context, ev Event) (Outcome, error) {
	if ev.DonationID == "" {
		return e.unreconciled(ctx, ChannelRedirectSuccess, ev), nil
	}

	if !e.verifier.Verify(ev.Echoed()) {
		e.logger.Warn("hash verification failed on redirect-success",
			"transaction_id", ev.TxnID,
			"donation_id", ev.DonationID,
		)
		return Outcome{Kind: KindInvalidHash}, nil
	}

	d, err := e.store.GetByID(ctx, ev.DonationID)
	if err != nil {
		if database.IsNotFound(err) {
			e.logger.Warn("no donation for redirect-success",
				"donation_id", ev.DonationID,
				"transaction_id", ev.TxnID,
			)
			return Outcome{Kind: KindNotFound}, nil
		}
		return Outcome{}, fmt.Errorf("load donation: %w", err)
	}

	upd := donation.OutcomeUpdate{
		Status:        donation.StatusApproved,
		PaymentStatus: donation.PaymentPaid,
		TransactionID: ev.TxnID,
		Details:       e.details(ev),
	}
	if err := e.apply(ctx, d, upd, ChannelRedirectSuccess, ev); err != nil {
		return Outcome{}, err
	}

	return Outcome{Kind: KindApplied, Donation: d, PaymentStatus: donation.PaymentPaid}, nil
}

// ApplyRedirectFailure reconciles a redirect-failure or redirect-cancel
// callback. These channels carry no integrity digest worth checking; they can
// only move a record to Failed or Cancelled.
func (e *Engine) ApplyRedirectFailure(ctx context.Context, ev Event, cancelled bool) (Outcome, error) {
	channel := ChannelRedirectFailure
	if cancelled {
		channel = ChannelRedirectCancel
	}

	if ev.DonationID == "" {
		return e.unreconciled(ctx, channel, ev), nil
	}

	d, err := e.store.GetByID(ctx, ev.DonationID)
	if err != nil {
		if database.IsNotFound(err) {
			e.logger.Warn("no donation for failure callback",
				"donation_id", ev.DonationID,
				"transaction_id", ev.TxnID,
				"channel", channel,
			)
			return Outcome{Kind: KindNotFound}, nil
		}
		return Outcome{}, fmt.Errorf("load donation: %w", err)
	}

	reason := ev.ErrorText
	if reason == "" {
		if cancelled {
			reason = "Payment cancelled by user"
		} else {
			reason = "Payment failed"
		}
	}

	upd := donation.OutcomeUpdate{
		TransactionID: ev.TxnID,
		FailureReason: &reason,
		ErrorMessage:  &ev.ErrorText,
		Details:       e.details(ev),
	}
	if cancelled {
		upd.Status = donation.StatusPending
		upd.PaymentStatus = donation.PaymentCancelled
	} else {
		upd.Status = donation.StatusRejected
		upd.PaymentStatus = donation.PaymentFailed
	}

	if err := e.apply(ctx, d, upd, channel, ev); err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Kind:          KindApplied,
		Donation:      d,
		PaymentStatus: upd.PaymentStatus,
		FailureReason: reason,
	}, nil
}

// ApplyWebhook reconciles a server-to-server webhook. The digest must verify;
// the gateway's free-text status vocabulary is mapped onto the payment
// lifecycle. The gateway retries webhooks on non-200 responses, so this path
// must stay safe under re-delivery.
func (e *Engine) ApplyWebhook(ctx context.Context, ev Event) (Outcome, error) {
	if ev.DonationID == "" {
		return e.unreconciled(ctx, ChannelWebhook, ev), nil
	}

	if !e.verifier.Verify(ev.Echoed()) {
		e.logger.Warn("hash verification failed on webhook",
			"transaction_id", ev.TxnID,
			"donation_id", ev.DonationID,
		)
		return Outcome{Kind: KindInvalidHash}, nil
	}

	d, err := e.store.GetByID(ctx, ev.DonationID)
	if err != nil {
		if database.IsNotFound(err) {
			e.logger.Warn("no donation for webhook",
				"donation_id", ev.DonationID,
				"transaction_id", ev.TxnID,
			)
			return Outcome{Kind: KindNotFound}, nil
		}
		return Outcome{}, fmt.Errorf("load donation: %w", err)
	}

	status, paymentStatus := mapGatewayStatus(ev.Status)

	upd := donation.OutcomeUpdate{
		Status:        status,
		PaymentStatus: paymentStatus,
		TransactionID: ev.TxnID,
		Details:       e.details(ev),
	}
	if paymentStatus == donation.PaymentFailed || paymentStatus == donation.PaymentCancelled {
		reason := ev.ErrorText
		if reason == "" {
			reason = ev.Status
		}
		upd.FailureReason = &reason
		upd.ErrorMessage = &ev.ErrorText
	}

	if err := e.apply(ctx, d, upd, ChannelWebhook, ev); err != nil {
		return Outcome{}, err
	}

	return Outcome{Kind: KindApplied, Donation: d, PaymentStatus: paymentStatus}, nil
}

// mapGatewayStatus maps the gateway's status vocabulary onto the donation
// lifecycle. Anything unrecognized stays Pending.
func mapGatewayStatus(gatewayStatus string) (donation.Status, donation.PaymentStatus) {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case "success":
		return donation.StatusApproved, donation.PaymentPaid
	case "failure":
		return donation.StatusRejected, donation.PaymentFailed
	case "cancelled", "cancel":
		return donation.StatusPending, donation.PaymentCancelled
	case "pending", "in progress":
		return donation.StatusPending, donation.PaymentPending
	default:
		return donation.StatusPending, donation.PaymentPending
	}
}

// apply performs the single update-by-id write and mirrors it onto the loaded
// record. Overwriting a terminal payment status is allowed (the write is
// last-writer-wins, matching the gateway's re-delivery contract) but logged so
// contradictory callbacks are visible.
func (e *Engine) apply(ctx context.Context, d *donation.Donation, upd donation.OutcomeUpdate, channel Channel, ev Event) error {
	if d.PaymentStatus.IsTerminal() && d.PaymentStatus != upd.PaymentStatus {
		e.logger.Warn("overwriting terminal payment status",
			"donation_id", d.ID,
			"previous", d.PaymentStatus,
			"next", upd.PaymentStatus,
			"channel", channel,
		)
	}

	if err := e.store.ApplyOutcome(ctx, d.ID, upd); err != nil {
		return fmt.Errorf("apply outcome: %w", err)
	}
	d.Apply(upd)

	e.logger.Info("payment reconciled",
		"donation_id", d.ID,
		"transaction_id", d.TransactionID,
		"payment_status", d.PaymentStatus,
		"status", d.Status,
		"channel", channel,
	)

	e.publishOutcome(ctx, d, channel, ev)
	return nil
}

func (e *Engine) details(ev Event) *donation.PaymentDetails {
	return &donation.PaymentDetails{
		GatewayPaymentID: ev.GatewayPaymentID,
		Mode:             ev.Mode,
		BankRefNum:       ev.BankRefNum,
		GatewayStatus:    ev.Status,
		Timestamp:        time.Now().UTC(),
		Error:            ev.ErrorText,
	}
}

func (e *Engine) unreconciled(ctx context.Context, channel Channel, ev Event) Outcome {
	e.logger.Warn("callback without donation reference",
		"channel", channel,
		"transaction_id", ev.TxnID,
		"gateway_status", ev.Status,
	)

	if e.publisher != nil {
		data := events.PaymentUnreconciledData{
			Channel:       string(channel),
			TransactionID: ev.TxnID,
			GatewayStatus: ev.Status,
			Reason:        "missing donation reference",
		}
		if event, err := events.NewEvent(events.EventPaymentUnreconciled, "", data); err == nil {
			if err := e.publisher.Publish(ctx, event); err != nil {
				e.logger.Error("failed to publish unreconciled event", "error", err)
			}
		}
	}

	return Outcome{Kind: KindUnreconciled}
}

func (e *Engine) publishOutcome(ctx context.Context, d *donation.Donation, channel Channel, ev Event) {
	if e.publisher == nil {
		return
	}

	eventType := events.EventPaymentPending
	switch d.PaymentStatus {
	case donation.PaymentPaid:
		eventType = events.EventPaymentPaid
	case donation.PaymentFailed:
		eventType = events.EventPaymentFailed
	case donation.PaymentCancelled:
		eventType = events.EventPaymentCancelled
	}

	data := events.PaymentOutcomeData{
		TransactionID: d.TransactionID,
		PaymentStatus: string(d.PaymentStatus),
		GatewayStatus: ev.Status,
		Channel:       string(channel),
		FailureReason: d.FailureReason,
	}
	event, err := events.NewEvent(eventType, d.ID, data)
	if err != nil {
		e.logger.Error("failed to create outcome event", "error", err)
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Error("failed to publish outcome event", "error", err, "donation_id", d.ID)
	}
}
