package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// The gateway signs both directions of the exchange with a SHA-512 digest
// over a pipe-delimited concatenation. Field order and the six empty
// placeholder slots are a hard wire-format contract; any deviation breaks
// verification on both sides.

// requestHash computes the digest for an outbound initiation payload:
// key|txnid|amount|productinfo|firstname|email|udf1..udf5|<6 empty>|salt
func requestHash(cfg Config, txnid, amount, productinfo, firstname, email string, udf [5]string) string {
	parts := make([]string, 0, 17)
	parts = append(parts, cfg.Key, txnid, amount, productinfo, firstname, email)
	parts = append(parts, udf[:]...)
	parts = append(parts, "", "", "", "", "", "")
	parts = append(parts, cfg.Salt)
	return hexSHA512(strings.Join(parts, "|"))
}

// responseHash computes the digest the gateway supplies on callbacks, which
// runs the fields in reverse:
// salt|status|<6 empty>|udf5..udf1|email|firstname|productinfo|amount|txnid|key
func responseHash(cfg Config, status, email, firstname, productinfo, amount, txnid string, udf [5]string) string {
	parts := make([]string, 0, 17)
	parts = append(parts, cfg.Salt, status)
	parts = append(parts, "", "", "", "", "", "")
	parts = append(parts, udf[4], udf[3], udf[2], udf[1], udf[0])
	parts = append(parts, email, firstname, productinfo, amount, txnid, cfg.Key)
	return hexSHA512(strings.Join(parts, "|"))
}

func hexSHA512(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

// EchoedFields are the fields the gateway echoes back on a callback, as
// extracted by a channel adapter.
type EchoedFields struct {
	Status      string
	Email       string
	Firstname   string
	ProductInfo string
	Amount      string
	TxnID       string
	UDF         [5]string
	Hash        string
}

// Verifier authenticates inbound messages claiming to originate from the
// gateway.
type Verifier struct {
	cfg Config
}

// NewVerifier creates a verifier bound to the merchant credentials.
func NewVerifier(cfg Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify recomputes the response digest and compares it to the supplied one.
// This is the sole gate against forged success claims on the redirect-success
// and webhook channels.
func (v *Verifier) Verify(f EchoedFields) bool {
	if f.Hash == "" {
		return false
	}
	expected := responseHash(v.cfg, f.Status, f.Email, f.Firstname, f.ProductInfo, f.Amount, f.TxnID, f.UDF)
	supplied := strings.ToLower(strings.TrimSpace(f.Hash))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}
