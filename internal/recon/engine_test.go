package recon

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
	"testing"

	"donorgate/internal/common/database"
	"donorgate/internal/common/events"
	"donorgate/internal/donation"
	"donorgate/internal/gateway"
)

var engineCfg = gateway.Config{
	Key:  "merchant-key",
	Salt: "merchant-salt",
}

type memStore struct {
	donations map[string]*donation.Donation
	applied   int
}

func newMemStore(ds ...*donation.Donation) *memStore {
	s := &memStore{donations: make(map[string]*donation.Donation)}
	for _, d := range ds {
		s.donations[d.ID] = d
	}
	return s
}

func (s *memStore) GetByID(ctx context.Context, id string) (*donation.Donation, error) {
	d, ok := s.donations[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	dup := *d
	return &dup, nil
}

func (s *memStore) ApplyOutcome(ctx context.Context, id string, upd donation.OutcomeUpdate) error {
	d, ok := s.donations[id]
	if !ok {
		return database.ErrNotFound
	}
	d.Apply(upd)
	s.applied++
	return nil
}

type capturePublisher struct {
	events []*events.Event
}

func (p *capturePublisher) Publish(ctx context.Context, event *events.Event) error {
	p.events = append(p.events, event)
	return nil
}

// signEvent computes the callback digest the way the gateway does, over the
// reversed field order.
func signEvent(ev *Event) {
	parts := []string{engineCfg.Salt, ev.Status, "", "", "", "", "", ""}
	parts = append(parts, ev.UDF[4], ev.UDF[3], ev.UDF[2], ev.UDF[1], ev.UDF[0])
	parts = append(parts, ev.Email, ev.Firstname, ev.ProductInfo, ev.Amount, ev.TxnID, engineCfg.Key)
	sum := sha512.Sum512([]byte(strings.Join(parts, "|")))
	ev.Hash = hex.EncodeToString(sum[:])
}

func pendingDonation(id, txnID string) *donation.Donation {
	d, _ := donation.New(id, txnID, "cat-1", "user-7")
	d.DonorName = "Asha"
	d.DonorEmail = "asha@example.com"
	d.Amount = 500
	return d
}

func newTestEngine(store *memStore) (*Engine, *capturePublisher) {
	publisher := &capturePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(store, gateway.NewVerifier(engineCfg), publisher, logger), publisher
}

func successEvent(donationID, txnID string) Event {
	ev := Event{
		DonationID:       donationID,
		TxnID:            txnID,
		Amount:           "500.00",
		Status:           "success",
		Email:            "asha@example.com",
		Firstname:        "Asha",
		ProductInfo:      "Books",
		UDF:              [5]string{"cat-1", "Books", "1", donationID, "user-7"},
		GatewayPaymentID: "403993715531",
		Mode:             "UPI",
		BankRefNum:       "BR-77",
	}
	signEvent(&ev)
	return ev
}

func TestApplyRedirectSuccess(t *testing.T) {
	t.Run("verified callback marks donation paid", func(t *testing.T) {
		store := newMemStore(pendingDonation("don-1", "TXN-1"))
		engine, publisher := newTestEngine(store)

		outcome, err := engine.ApplyRedirectSuccess(context.Background(), successEvent("don-1", "TXN-1"))
		if err != nil {
			t.Fatalf("ApplyRedirectSuccess: %v", err)
		}
		if outcome.Kind != KindApplied {
			t.Fatalf("kind = %s, want applied", outcome.Kind)
		}

		d := store.donations["don-1"]
		if d.PaymentStatus != donation.PaymentPaid || d.Status != donation.StatusApproved {
			t.Errorf("donation = %s/%s, want Approved/Paid", d.Status, d.PaymentStatus)
		}
		if d.PaymentDetails == nil || d.PaymentDetails.BankRefNum != "BR-77" {
			t.Errorf("payment details not captured: %+v", d.PaymentDetails)
		}

		if len(publisher.events) != 1 || publisher.events[0].Type != events.EventPaymentPaid {
			t.Errorf("expected one payment.paid event, got %+v", publisher.events)
		}
	})

	t.Run("forged hash leaves record untouched", func(t *testing.T) {
		store := newMemStore(pendingDonation("don-1", "TXN-1"))
		engine, _ := newTestEngine(store)

		ev := successEvent("don-1", "TXN-1")
		ev.Amount = "9999.00"

		outcome, err := engine.ApplyRedirectSuccess(context.Background(), ev)
		if err != nil {
			t.Fatalf("ApplyRedirectSuccess: %v", err)
		}
		if outcome.Kind != KindInvalidHash {
			t.Fatalf("kind = %s, want invalid_hash", outcome.Kind)
		}
		if store.applied != 0 {
			t.Error("forged callback must not mutate the record")
		}
		if store.donations["don-1"].PaymentStatus != donation.PaymentPending {
			t.Error("donation left Pending on forged callback")
		}
	})

	t.Run("unknown donation id", func(t *testing.T) {
		store := newMemStore()
		engine, _ := newTestEngine(store)

		outcome, err := engine.ApplyRedirectSuccess(context.Background(), successEvent("don-missing", "TXN-1"))
		if err != nil {
			t.Fatalf("ApplyRedirectSuccess: %v", err)
		}
		if outcome.Kind != KindNotFound {
			t.Errorf("kind = %s, want not_found", outcome.Kind)
		}
	})

	t.Run("missing donation reference", func(t *testing.T) {
		store := newMemStore()
		engine, publisher := newTestEngine(store)

		outcome, err := engine.ApplyRedirectSuccess(context.Background(), Event{TxnID: "TXN-1", Status: "success"})
		if err != nil {
			t.Fatalf("ApplyRedirectSuccess: %v", err)
		}
		if outcome.Kind != KindUnreconciled {
			t.Errorf("kind = %s, want unreconciled", outcome.Kind)
		}
		if len(publisher.events) != 1 || publisher.events[0].Type != events.EventPaymentUnreconciled {
			t.Errorf("expected payment.unreconciled event, got %+v", publisher.events)
		}
	})
}

func TestApplyRedirectFailure(t *testing.T) {
	t.Run("failure with gateway error text", func(t *testing.T) {
		store := newMemStore(pendingDonation("don-1", "TXN-1"))
		engine, publisher := newTestEngine(store)

		ev := Event{DonationID: "don-1", TxnID: "TXN-1", Status: "failure", ErrorText: "Insufficient funds"}
		outcome, err := engine.ApplyRedirectFailure(context.Background(), ev, false)
		if err != nil {
			t.Fatalf("ApplyRedirectFailure: %v", err)
		}
		if outcome.Kind != KindApplied {
			t.Fatalf("kind = %s, want applied", outcome.Kind)
		}
		if outcome.FailureReason != "Insufficient funds" {
			t.Errorf("failure reason = %q", outcome.FailureReason)
		}

		d := store.donations["don-1"]
		if d.PaymentStatus != donation.PaymentFailed || d.Status != donation.StatusRejected {
			t.Errorf("donation = %s/%s, want Rejected/Failed", d.Status, d.PaymentStatus)
		}
		if d.FailureReason != "Insufficient funds" {
			t.Errorf("stored failure reason = %q", d.FailureReason)
		}

		if len(publisher.events) != 1 || publisher.events[0].Type != events.EventPaymentFailed {
			t.Errorf("expected payment.failed event, got %+v", publisher.events)
		}
	})

	t.Run("failure without error text uses default reason", func(t *testing.T) {
		store := newMemStore(pendingDonation("don-1", "TXN-1"))
		engine, _ := newTestEngine(store)

		ev := Event{DonationID: "don-1", TxnID: "TXN-1", Status: "failure"}
		outcome, err := engine.ApplyRedirectFailure(context.Background(), ev, false)
		if err != nil {
			t.Fatalf("ApplyRedirectFailure: %v", err)
		}
		if outcome.FailureReason != "Payment failed" {
			t.Errorf("failure reason = %q, want Payment failed", outcome.FailureReason)
		}
	})

	t.Run("cancel keeps status pending", func(t *testing.T) {
		store := newMemStore(pendingDonation("don-1", "TXN-1"))
		engine, publisher := newTestEngine(store)

		ev := Event{DonationID: "don-1", TxnID: "TXN-1", Status: "cancelled"}
		outcome, err := engine.ApplyRedirectFailure(context.Background(), ev, true)
		if err != nil {
			t.Fatalf("ApplyRedirectFailure: %v", err)
		}
		if outcome.FailureReason != "Payment cancelled by user" {
			t.Errorf("failure reason = %q", outcome.FailureReason)
		}

		d := store.donations["don-1"]
		if d.PaymentStatus != donation.PaymentCancelled || d.Status != donation.StatusPending {
			t.Errorf("donation = %s/%s, want Pending/Cancelled", d.Status, d.PaymentStatus)
		}

		if len(publisher.events) != 1 || publisher.events[0].Type != events.EventPaymentCancelled {
			t.Errorf("expected payment.cancelled event, got %+v", publisher.events)
		}
	})

	t.Run("no hash required", func(t *testing.T) {
		store := newMemStore(pendingDonation("don-1", "TXN-1"))
		engine, _ := newTestEngine(store)

		ev := Event{DonationID: "don-1", TxnID: "TXN-1", Status: "failure", Hash: "garbage"}
		outcome, err := engine.ApplyRedirectFailure(context.Background(), ev, false)
		if err != nil {
			t.Fatalf("ApplyRedirectFailure: %v", err)
		}
		if outcome.Kind != KindApplied {
			t.Errorf("kind = %s, want applied despite bogus hash", outcome.Kind)
		}
	})
}

func TestApplyWebhook(t *testing.T) {
	t.Run("success status", func(t *testing.T) {
		store := newMemStore(pendingDonation("don-1", "TXN-1"))
		engine, _ := newTestEngine(store)

		outcome, err := engine.ApplyWebhook(context.Background(), successEvent("don-1", "TXN-1"))
		if err != nil {
			t.Fatalf("ApplyWebhook: %v", err)
		}
		if outcome.Kind != KindApplied || outcome.PaymentStatus != donation.PaymentPaid {
			t.Fatalf("outcome = %+v, want applied/Paid", outcome)
		}

		d := store.donations["don-1"]
		if d.Status != donation.StatusApproved {
			t.Errorf("status = %s, want Approved", d.Status)
		}
	})

	t.Run("forged hash rejected before lookup", func(t *testing.T) {
		store := newMemStore(pendingDonation("don-1", "TXN-1"))
		engine, _ := newTestEngine(store)

		ev := successEvent("don-1", "TXN-1")
		ev.Hash = strings.Repeat("0", 128)

		outcome, err := engine.ApplyWebhook(context.Background(), ev)
		if err != nil {
			t.Fatalf("ApplyWebhook: %v", err)
		}
		if outcome.Kind != KindInvalidHash {
			t.Errorf("kind = %s, want invalid_hash", outcome.Kind)
		}
		if store.applied != 0 {
			t.Error("forged webhook must not mutate the record")
		}
	})

	t.Run("re-delivery is safe", func(t *testing.T) {
		store := newMemStore(pendingDonation("don-1", "TXN-1"))
		engine, _ := newTestEngine(store)

		ev := successEvent("don-1", "TXN-1")
		for i := 0; i < 2; i++ {
			outcome, err := engine.ApplyWebhook(context.Background(), ev)
			if err != nil {
				t.Fatalf("delivery %d: %v", i+1, err)
			}
			if outcome.Kind != KindApplied {
				t.Fatalf("delivery %d kind = %s", i+1, outcome.Kind)
			}
		}
		if store.donations["don-1"].PaymentStatus != donation.PaymentPaid {
			t.Error("donation not Paid after re-delivery")
		}
	})

	t.Run("late failure overwrites paid", func(t *testing.T) {
		d := pendingDonation("don-1", "TXN-1")
		d.Status = donation.StatusApproved
		d.PaymentStatus = donation.PaymentPaid
		store := newMemStore(d)
		engine, _ := newTestEngine(store)

		ev := Event{
			DonationID: "don-1",
			TxnID:      "TXN-1",
			Status:     "failure",
			ErrorText:  "Chargeback",
			UDF:        [5]string{"", "", "", "don-1", ""},
		}
		signEvent(&ev)

		outcome, err := engine.ApplyWebhook(context.Background(), ev)
		if err != nil {
			t.Fatalf("ApplyWebhook: %v", err)
		}
		if outcome.Kind != KindApplied {
			t.Fatalf("kind = %s", outcome.Kind)
		}
		got := store.donations["don-1"]
		if got.PaymentStatus != donation.PaymentFailed || got.Status != donation.StatusRejected {
			t.Errorf("donation = %s/%s, want Rejected/Failed", got.Status, got.PaymentStatus)
		}
		if got.FailureReason != "Chargeback" {
			t.Errorf("failure reason = %q", got.FailureReason)
		}
	})
}

func TestMapGatewayStatus(t *testing.T) {
	tests := []struct {
		gatewayStatus string
		status        donation.Status
		paymentStatus donation.PaymentStatus
	}{
		{"success", donation.StatusApproved, donation.PaymentPaid},
		{"SUCCESS", donation.StatusApproved, donation.PaymentPaid},
		{" Success ", donation.StatusApproved, donation.PaymentPaid},
		{"failure", donation.StatusRejected, donation.PaymentFailed},
		{"cancelled", donation.StatusPending, donation.PaymentCancelled},
		{"cancel", donation.StatusPending, donation.PaymentCancelled},
		{"pending", donation.StatusPending, donation.PaymentPending},
		{"in progress", donation.StatusPending, donation.PaymentPending},
		{"something else", donation.StatusPending, donation.PaymentPending},
		{"", donation.StatusPending, donation.PaymentPending},
	}

	for _, tt := range tests {
		t.Run(tt.gatewayStatus, func(t *testing.T) {
			status, paymentStatus := mapGatewayStatus(tt.gatewayStatus)
			if status != tt.status || paymentStatus != tt.paymentStatus {
				t.Errorf("mapGatewayStatus(%q) = %s/%s, want %s/%s",
					tt.gatewayStatus, status, paymentStatus, tt.status, tt.paymentStatus)
			}
		})
	}
}
