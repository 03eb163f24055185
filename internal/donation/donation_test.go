package donation

import "testing"

func TestNew(t *testing.T) {
	d, err := New("don-1", "TXN-1", "cat-1", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Status != StatusPending || d.PaymentStatus != PaymentPending {
		t.Errorf("new donation = %s/%s, want Pending/Pending", d.Status, d.PaymentStatus)
	}
	if d.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", d.Quantity)
	}

	for _, tt := range []struct {
		name               string
		id, txn, cat, user string
	}{
		{"missing id", "", "TXN-1", "cat-1", ""},
		{"missing transaction id", "don-1", "", "cat-1", ""},
		{"missing category", "don-1", "TXN-1", "", ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.id, tt.txn, tt.cat, tt.user); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	if PaymentPending.IsTerminal() {
		t.Error("Pending must not be terminal")
	}
	for _, p := range []PaymentStatus{PaymentPaid, PaymentFailed, PaymentCancelled} {
		if !p.IsTerminal() {
			t.Errorf("%s must be terminal", p)
		}
	}
}

func TestApply(t *testing.T) {
	d, _ := New("don-1", "TXN-1", "cat-1", "user-7")
	reason := "Insufficient funds"
	errText := "E101"

	d.Apply(OutcomeUpdate{
		Status:        StatusRejected,
		PaymentStatus: PaymentFailed,
		FailureReason: &reason,
		ErrorMessage:  &errText,
	})

	if d.Status != StatusRejected || d.PaymentStatus != PaymentFailed {
		t.Errorf("donation = %s/%s, want Rejected/Failed", d.Status, d.PaymentStatus)
	}
	if d.FailureReason != reason || d.ErrorMessage != errText {
		t.Errorf("failure fields = %q / %q", d.FailureReason, d.ErrorMessage)
	}
	if d.TransactionID != "TXN-1" {
		t.Errorf("empty update transaction id must not clear %q", d.TransactionID)
	}

	// A later update without failure fields keeps the earlier ones.
	d.Apply(OutcomeUpdate{
		Status:        StatusApproved,
		PaymentStatus: PaymentPaid,
		TransactionID: "TXN-2",
	})
	if d.FailureReason != reason {
		t.Errorf("failure reason cleared: %q", d.FailureReason)
	}
	if d.TransactionID != "TXN-2" {
		t.Errorf("transaction id = %q, want TXN-2", d.TransactionID)
	}
}
