// Package recon reconciles gateway callbacks against donation records.
package recon

import (
	"net/url"

	"donorgate/internal/gateway"
)

// Channel identifies the inbound surface a callback arrived on.
type Channel string

const (
	ChannelRedirectSuccess Channel = "redirect_success"
	ChannelRedirectFailure Channel = "redirect_failure"
	ChannelRedirectCancel  Channel = "redirect_cancel"
	ChannelWebhook         Channel = "webhook"
)

// Event is a gateway callback normalized from a form post, whichever casing
// variant the gateway used for each field.
type Event struct {
	// DonationID is the record id carried through the gateway in udf4. Empty
	// when the gateway dropped or mangled the field.
	DonationID string

	TxnID       string
	Amount      string
	Status      string
	Email       string
	Firstname   string
	ProductInfo string
	UDF         [5]string
	Hash        string

	GatewayPaymentID string
	Mode             string
	BankRefNum       string
	ErrorText        string
	Field9           string
}

// Echoed returns the fields the integrity verifier recomputes the digest over.
func (e Event) Echoed() gateway.EchoedFields {
	return gateway.EchoedFields{
		Status:      e.Status,
		Email:       e.Email,
		Firstname:   e.Firstname,
		ProductInfo: e.ProductInfo,
		Amount:      e.Amount,
		TxnID:       e.TxnID,
		UDF:         e.UDF,
		Hash:        e.Hash,
	}
}

// fieldCandidates maps each logical field to the ordered list of form keys the
// gateway has been seen using for it. Extraction takes the first present key;
// order encodes preference (the documented lowercase name first, then the
// casing and bracket variants observed in production).
var fieldCandidates = map[string][]string{
	"txnid":            {"txnid", "txnId", "TxnID", "TXNID"},
	"amount":           {"amount", "Amount", "AMOUNT"},
	"status":           {"status", "Status", "STATUS"},
	"email":            {"email", "Email", "EMAIL"},
	"firstname":        {"firstname", "firstName", "Firstname", "FIRSTNAME"},
	"productinfo":      {"productinfo", "productInfo", "Productinfo", "PRODUCTINFO"},
	"hash":             {"hash", "Hash", "HASH"},
	"udf1":             {"udf1", "udf[1]", "UDF1", "Udf1"},
	"udf2":             {"udf2", "udf[2]", "UDF2", "Udf2"},
	"udf3":             {"udf3", "udf[3]", "UDF3", "Udf3"},
	"udf4":             {"udf4", "udf[4]", "UDF4", "Udf4"},
	"udf5":             {"udf5", "udf[5]", "UDF5", "Udf5"},
	"gateway_payment":  {"mihpayid", "mihPayId", "MIHPAYID"},
	"mode":             {"mode", "Mode", "MODE"},
	"bank_ref":         {"bank_ref_num", "bankRefNum", "BANK_REF_NUM", "bank_ref_no"},
	"error":            {"error_Message", "error", "Error_Message", "ERROR_MESSAGE"},
	"field9":           {"field9", "Field9", "FIELD9"},
}

// firstPresent resolves a logical field to the first candidate key present in
// the form.
func firstPresent(form url.Values, logical string) string {
	for _, key := range fieldCandidates[logical] {
		if vs, ok := form[key]; ok && len(vs) > 0 && vs[0] != "" {
			return vs[0]
		}
	}
	return ""
}

// ParseEvent normalizes a gateway callback form into an Event.
func ParseEvent(form url.Values) Event {
	e := Event{
		TxnID:            firstPresent(form, "txnid"),
		Amount:           firstPresent(form, "amount"),
		Status:           firstPresent(form, "status"),
		Email:            firstPresent(form, "email"),
		Firstname:        firstPresent(form, "firstname"),
		ProductInfo:      firstPresent(form, "productinfo"),
		Hash:             firstPresent(form, "hash"),
		GatewayPaymentID: firstPresent(form, "gateway_payment"),
		Mode:             firstPresent(form, "mode"),
		BankRefNum:       firstPresent(form, "bank_ref"),
		ErrorText:        firstPresent(form, "error"),
		Field9:           firstPresent(form, "field9"),
	}
	e.UDF = [5]string{
		firstPresent(form, "udf1"),
		firstPresent(form, "udf2"),
		firstPresent(form, "udf3"),
		firstPresent(form, "udf4"),
		firstPresent(form, "udf5"),
	}
	e.DonationID = e.UDF[3]
	return e
}
