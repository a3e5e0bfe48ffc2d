package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dukerupert/skald/internal/domain"
)

// Verifier checks gateway callback signatures. The gateway signs the string
// "<gateway order ID>|<gateway payment ID>" with HMAC-SHA256 using the shared
// key secret and sends the hex digest alongside the callback.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a signature verifier for the given gateway key secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("gateway key secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify validates the signature for a gateway order/payment pair.
// Missing fields are a validation error; a present but wrong signature is a
// payment error, so callers can distinguish client bugs from forged or stale
// callbacks.
func (v *Verifier) Verify(gatewayOrderID, gatewayPaymentID, signature string) error {
	if gatewayOrderID == "" {
		return domain.Invalid("payment.verify", "gateway order ID is required")
	}
	if gatewayPaymentID == "" {
		return domain.Invalid("payment.verify", "gateway payment ID is required")
	}
	if signature == "" {
		return domain.Invalid("payment.verify", "signature is required")
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// Sign computes the signature for a gateway order/payment pair. Exposed for
// tests and for generating fixtures against sandbox gateways.
func (v *Verifier) Sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
