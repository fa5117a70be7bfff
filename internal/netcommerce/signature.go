package netcommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// digest hashes the concatenation of parts with SHA-256 and returns lowercase hex.
func digest(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RequestSignature computes the outbound signature. The field order is fixed by
// NetCommerce and differs from CallbackSignature.
func RequestSignature(amount, currencyCode, reference, merchantNumber, callbackURL, secret string) string {
	return digest(amount, currencyCode, reference, merchantNumber, callbackURL, secret)
}

// CallbackSignature computes the signature NetCommerce attaches to its callback.
func CallbackSignature(merchantNumber, reference, amount, currencyCode, authNumber, result, message, secret string) string {
	return digest(merchantNumber, reference, amount, currencyCode, authNumber, result, message, secret)
}

func signaturesEqual(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(provided))
}
