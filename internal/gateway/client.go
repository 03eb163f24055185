package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"donorgate/internal/common/api"
	"donorgate/internal/common/events"
	"donorgate/internal/common/money"
	"donorgate/internal/donation"
)

// ErrInvalidIntent marks initiation requests rejected before any persistence
// or hashing.
var ErrInvalidIntent = errors.New("invalid donation intent")

// DonationStore is what the client needs from the donation store.
type DonationStore interface {
	Create(ctx context.Context, d *donation.Donation) error
}

// Client turns a donation intent into a persisted Pending record and a signed
// payload the donor's browser posts to the gateway.
type Client struct {
	cfg       Config
	store     DonationStore
	publisher events.Publisher
	logger    *slog.Logger
}

// NewClient creates a gateway client.
func NewClient(cfg Config, store DonationStore, publisher events.Publisher, logger *slog.Logger) *Client {
	return &Client{
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// InitiateRequest is a donation intent from the portal frontend. Amount and
// quantity arrive as numbers or numeric strings interchangeably.
type InitiateRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone"`
	CategoryID  string `json:"categoryId" validate:"required"`
	UserID      string `json:"userId"`
	Items       string `json:"items"`
	Quantity    any    `json:"quantity"`
	Amount      any    `json:"amount" validate:"required"`
	ExtraAmount any    `json:"extraAmount"`
}

// InitiationResult is everything the frontend needs to forward the donor to
// the gateway.
type InitiationResult struct {
	DonationID string            `json:"donationId"`
	PaymentURL string            `json:"paymentUrl"`
	Params     map[string]string `json:"params"`
}

// Initiate validates the intent, persists a Pending/Pending donation record,
// and assembles the signed gateway field set. The record exists before any
// network call so every later callback has a record to update.
func (c *Client) Initiate(ctx context.Context, req *InitiateRequest) (*InitiationResult, error) {
	if err := api.Validate.Struct(req); err != nil {
		return nil, err
	}

	baseAmount, ok := money.Coerce(req.Amount)
	if !ok || !baseAmount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be a positive number", ErrInvalidIntent)
	}
	extraAmount, _ := money.Coerce(req.ExtraAmount)
	amount := baseAmount.Add(extraAmount)
	quantity := money.CoerceQuantity(req.Quantity)

	txnID := fmt.Sprintf("TXN-%s", ulid.Make().String())

	d, err := donation.New(ulid.Make().String(), txnID, req.CategoryID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIntent, err)
	}
	d.DonorName = req.Name
	d.DonorEmail = req.Email
	d.DonorPhone = req.Phone
	d.Items = req.Items
	d.Quantity = quantity
	d.BaseAmount = baseAmount
	d.ExtraAmount = extraAmount
	d.Amount = amount

	if err := c.store.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("store donation: %w", err)
	}

	productInfo := req.Items
	if productInfo == "" {
		productInfo = "Donation"
	}

	// Custom-data fields the gateway echoes back unmodified. udf4 carries the
	// donation record id every callback is reconciled against.
	udf := [5]string{
		req.CategoryID,
		req.Items,
		fmt.Sprintf("%d", quantity),
		d.ID,
		req.UserID,
	}

	amountStr := amount.Gateway()
	params := map[string]string{
		"key":         c.cfg.Key,
		"txnid":       txnID,
		"amount":      amountStr,
		"productinfo": productInfo,
		"firstname":   req.Name,
		"email":       req.Email,
		"phone":       req.Phone,
		"surl":        c.cfg.CallbackBaseURL + "/payment/success",
		"furl":        c.cfg.CallbackBaseURL + "/payment/failure",
		"curl":        c.cfg.CallbackBaseURL + "/payment/cancel",
		"notify_url":  c.cfg.CallbackBaseURL + "/payment/webhook",
		"udf1":        udf[0],
		"udf2":        udf[1],
		"udf3":        udf[2],
		"udf4":        udf[3],
		"udf5":        udf[4],
	}
	params["hash"] = requestHash(c.cfg, txnID, amountStr, productInfo, req.Name, req.Email, udf)

	c.publishInitiated(ctx, d)

	c.logger.Info("payment initiated",
		"donation_id", d.ID,
		"transaction_id", txnID,
		"amount", amountStr,
		"category_id", req.CategoryID,
	)

	return &InitiationResult{
		DonationID: d.ID,
		PaymentURL: c.cfg.PaymentURL,
		Params:     params,
	}, nil
}

func (c *Client) publishInitiated(ctx context.Context, d *donation.Donation) {
	if c.publisher == nil {
		return
	}

	data := events.PaymentInitiatedData{
		TransactionID: d.TransactionID,
		CategoryID:    d.CategoryID,
		Amount:        float64(d.Amount),
		DonorEmail:    d.DonorEmail,
	}
	event, err := events.NewEvent(events.EventPaymentInitiated, d.ID, data)
	if err != nil {
		c.logger.Error("failed to create initiated event", "error", err)
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish initiated event", "error", err, "donation_id", d.ID)
	}
}
