package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signWith(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	const secret = "test_key_secret"
	v, err := NewVerifier(secret)
	require.NoError(t, err)

	t.Run("valid signature", func(t *testing.T) {
		sig := signWith(secret, "order_abc", "pay_123")
		assert.NoError(t, v.Verify("order_abc", "pay_123", sig))
	})

	t.Run("tampered payment ID", func(t *testing.T) {
		sig := signWith(secret, "order_abc", "pay_123")
		err := v.Verify("order_abc", "pay_999", sig)
		assert.ErrorIs(t, err, domain.ErrInvalidSignature)
		assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		sig := signWith("other_secret", "order_abc", "pay_123")
		assert.ErrorIs(t, v.Verify("order_abc", "pay_123", sig), domain.ErrInvalidSignature)
	})

	t.Run("missing fields are validation errors", func(t *testing.T) {
		sig := signWith(secret, "order_abc", "pay_123")

		err := v.Verify("", "pay_123", sig)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

		err = v.Verify("order_abc", "", sig)
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

		err = v.Verify("order_abc", "pay_123", "")
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})

	t.Run("separator is part of the signed payload", func(t *testing.T) {
		// "a|bc" and "ab|c" concatenate to the same bytes without the
		// separator; the signature must tell them apart.
		sig := signWith(secret, "a", "bc")
		assert.ErrorIs(t, v.Verify("ab", "c", sig), domain.ErrInvalidSignature)
	})
}

func TestSignRoundTrip(t *testing.T) {
	v, err := NewVerifier("roundtrip_secret")
	require.NoError(t, err)

	sig := v.Sign("order_x", "pay_y")
	assert.NoError(t, v.Verify("order_x", "pay_y", sig))
}
