// Package donation defines the donation record, the single entity the payment
// reconciliation core mutates.
package donation

import (
	"errors"
	"time"

	"donorgate/internal/common/money"
)

// Status is the business-review axis of a donation. It may later be
// overridden by an admin review step outside this service; the reconciliation
// core only writes it as a side effect of payment transitions.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// PaymentStatus is the payment-gateway axis of a donation.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "Pending"
	PaymentPaid      PaymentStatus = "Paid"
	PaymentFailed    PaymentStatus = "Failed"
	PaymentCancelled PaymentStatus = "Cancelled"
)

// IsTerminal reports whether no further transition is expected after this
// payment status.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentPaid || p == PaymentFailed || p == PaymentCancelled
}

// PaymentDetails captures what the gateway reported about the outcome.
type PaymentDetails struct {
	GatewayPaymentID string    `json:"gatewayPaymentId,omitempty"`
	Mode             string    `json:"mode,omitempty"`
	BankRefNum       string    `json:"bankRefNum,omitempty"`
	GatewayStatus    string    `json:"gatewayStatus,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Error            string    `json:"error,omitempty"`
}

// Donation tracks one donation/payment attempt end-to-end. Exactly one record
// exists per initiated payment; it is created before the donor ever reaches
// the external gateway.
type Donation struct {
	ID            string `json:"id"`
	TransactionID string `json:"transactionId"`

	CategoryID string `json:"categoryId"`
	UserID     string `json:"userId,omitempty"`

	DonorName  string `json:"donorName"`
	DonorEmail string `json:"donorEmail"`
	DonorPhone string `json:"donorPhone,omitempty"`

	Items    string `json:"items,omitempty"`
	Quantity int    `json:"quantity"`

	BaseAmount  money.Amount `json:"baseAmount"`
	ExtraAmount money.Amount `json:"extraAmount"`
	// Amount is base+extra captured at initiation; callbacks never recompute it.
	Amount money.Amount `json:"amount"`

	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`

	FailureReason  string          `json:"failureReason,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	PaymentDetails *PaymentDetails `json:"paymentDetails,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a donation record in the Pending/Pending state.
func New(id, transactionID, categoryID, userID string) (*Donation, error) {
	if id == "" {
		return nil, errors.New("id is required")
	}
	if transactionID == "" {
		return nil, errors.New("transaction id is required")
	}
	if categoryID == "" {
		return nil, errors.New("category id is required")
	}

	now := time.Now().UTC()
	return &Donation{
		ID:            id,
		TransactionID: transactionID,
		CategoryID:    categoryID,
		UserID:        userID,
		Quantity:      1,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// OutcomeUpdate is the single conditional write the reconciliation engine
// applies to a donation record. FailureReason and ErrorMessage are overwritten
// only when set (failure/cancel paths).
type OutcomeUpdate struct {
	Status        Status
	PaymentStatus PaymentStatus
	TransactionID string
	FailureReason *string
	ErrorMessage  *string
	Details       *PaymentDetails
}

// Apply mirrors the store's update onto an in-memory record.
func (d *Donation) Apply(upd OutcomeUpdate) {
	d.Status = upd.Status
	d.PaymentStatus = upd.PaymentStatus
	if upd.TransactionID != "" {
		d.TransactionID = upd.TransactionID
	}
	if upd.FailureReason != nil {
		d.FailureReason = *upd.FailureReason
	}
	if upd.ErrorMessage != nil {
		d.ErrorMessage = *upd.ErrorMessage
	}
	d.PaymentDetails = upd.Details
	d.UpdatedAt = time.Now().UTC()
}

// StatusView is a donation joined with its category and donor user for the
// status query surface.
type StatusView struct {
	Donation
	CategoryName string `json:"categoryName,omitempty"`
	UserName     string `json:"userName,omitempty"`
}
