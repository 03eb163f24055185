// Package api exposes the gateway callback channels and the donation status
// query over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"donorgate/internal/common/api"
	"donorgate/internal/common/database"
	"donorgate/internal/donation"
	"donorgate/internal/gateway"
	"donorgate/internal/recon"
)

// StatusStore is what the status query needs from the donation store.
type StatusStore interface {
	GetStatusView(ctx context.Context, txnID string) (*donation.StatusView, error)
}

// Handler handles payment HTTP requests.
type Handler struct {
	client *gateway.Client
	engine *recon.Engine
	store  StatusStore
	cfg    gateway.Config
	logger *slog.Logger
}

// NewHandler creates a payment handler.
func NewHandler(client *gateway.Client, engine *recon.Engine, store StatusStore, cfg gateway.Config, logger *slog.Logger) *Handler {
	return &Handler{
		client: client,
		engine: engine,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Routes returns the payment routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/donate", h.Initiate)
	r.Post("/payment/success", h.RedirectSuccess)
	r.Post("/payment/failure", h.RedirectFailure)
	r.Post("/payment/cancel", h.RedirectCancel)
	r.Post("/payment/webhook", h.Webhook)
	r.Get("/status/{txnid}", h.Status)

	return r
}

// Initiate handles POST /donate.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req gateway.InitiateRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	result, err := h.client.Initiate(r.Context(), &req)
	if err != nil {
		if api.IsValidationError(err) {
			api.ValidationError(w, err)
			return
		}
		if errors.Is(err, gateway.ErrInvalidIntent) {
			api.BadRequest(w, err.Error())
			return
		}
		h.logger.Error("initiation failed", "error", err)
		api.InternalError(w, "Failed to initiate payment", "")
		return
	}

	api.WriteJSON(w, http.StatusCreated, result)
}

// RedirectSuccess handles the gateway's browser redirect after a successful
// payment. The donor always ends up on a frontend page, never raw JSON.
func (h *Handler) RedirectSuccess(w http.ResponseWriter, r *http.Request) {
	ev, ok := h.parseCallback(w, r)
	if !ok {
		return
	}

	outcome, err := h.engine.ApplyRedirectSuccess(r.Context(), ev)
	if err != nil {
		h.logger.Error("redirect-success reconciliation failed", "error", err, "transaction_id", ev.TxnID)
		h.redirectFailure(w, r, ev.TxnID, "processing_error")
		return
	}

	switch outcome.Kind {
	case recon.KindApplied:
		q := url.Values{}
		q.Set("txnid", outcome.Donation.TransactionID)
		q.Set("amount", outcome.Donation.Amount.Gateway())
		q.Set("status", "success")
		http.Redirect(w, r, h.cfg.FrontendSuccessURL+"?"+q.Encode(), http.StatusFound)
	case recon.KindInvalidHash:
		h.redirectFailure(w, r, ev.TxnID, "invalid_hash")
	case recon.KindNotFound:
		h.redirectFailure(w, r, ev.TxnID, "donation_not_found")
	default:
		h.redirectFailure(w, r, ev.TxnID, "invalid_request")
	}
}

// RedirectFailure handles the gateway's browser redirect after a failed
// payment.
func (h *Handler) RedirectFailure(w http.ResponseWriter, r *http.Request) {
	h.redirectOutcome(w, r, false)
}

// RedirectCancel handles the gateway's browser redirect after the donor
// cancelled at the gateway.
func (h *Handler) RedirectCancel(w http.ResponseWriter, r *http.Request) {
	h.redirectOutcome(w, r, true)
}

func (h *Handler) redirectOutcome(w http.ResponseWriter, r *http.Request, cancelled bool) {
	ev, ok := h.parseCallback(w, r)
	if !ok {
		return
	}

	outcome, err := h.engine.ApplyRedirectFailure(r.Context(), ev, cancelled)
	if err != nil {
		h.logger.Error("failure reconciliation failed", "error", err, "transaction_id", ev.TxnID)
		h.redirectFailure(w, r, ev.TxnID, "processing_error")
		return
	}

	reason := outcome.FailureReason
	if reason == "" {
		reason = ev.ErrorText
	}
	if reason == "" {
		reason = "Payment failed"
	}
	h.redirectFailure(w, r, ev.TxnID, reason)
}

// Webhook handles the gateway's server-to-server notification. The caller is
// a machine, so the response is a JSON acknowledgement, and the gateway
// retries on anything but 200.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		api.BadRequest(w, "Invalid form payload")
		return
	}
	ev := recon.ParseEvent(r.Form)

	outcome, err := h.engine.ApplyWebhook(r.Context(), ev)
	if err != nil {
		h.logger.Error("webhook reconciliation failed", "error", err, "transaction_id", ev.TxnID)
		api.InternalError(w, "Failed to process webhook", err.Error())
		return
	}

	switch outcome.Kind {
	case recon.KindApplied:
		api.WriteJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"message":       "Payment status updated",
			"donationId":    outcome.Donation.ID,
			"paymentStatus": string(outcome.PaymentStatus),
		})
	case recon.KindInvalidHash:
		api.BadRequest(w, "Invalid hash")
	case recon.KindNotFound:
		api.NotFound(w, "Donation not found")
	default:
		api.BadRequest(w, "Missing donation reference")
	}
}

// Status handles GET /status/{txnid}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	txnID := chi.URLParam(r, "txnid")
	if txnID == "" {
		api.BadRequest(w, "Transaction id required")
		return
	}

	view, err := h.store.GetStatusView(r.Context(), txnID)
	if err != nil {
		if database.IsNotFound(err) {
			api.NotFound(w, "Donation not found")
			return
		}
		h.logger.Error("status query failed", "error", err, "transaction_id", txnID)
		api.InternalError(w, "Failed to fetch donation", "")
		return
	}

	api.WriteJSON(w, http.StatusOK, view)
}

// parseCallback parses a browser-channel form post. On a malformed body the
// donor is still redirected to the failure page rather than shown an error.
func (h *Handler) parseCallback(w http.ResponseWriter, r *http.Request) (recon.Event, bool) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("malformed callback form", "error", err, "path", r.URL.Path)
		h.redirectFailure(w, r, "", "invalid_request")
		return recon.Event{}, false
	}
	return recon.ParseEvent(r.Form), true
}

func (h *Handler) redirectFailure(w http.ResponseWriter, r *http.Request, txnID, errMsg string) {
	q := url.Values{}
	if txnID != "" {
		q.Set("txnid", txnID)
	}
	q.Set("error", errMsg)
	http.Redirect(w, r, h.cfg.FrontendFailureURL+"?"+q.Encode(), http.StatusFound)
}
