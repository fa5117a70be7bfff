package order

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

const nonceLength = 20

// CancelNonces issues and checks the nonce carried by cancel-order links. A
// nonce is bound to the order id and the cart session it was placed from, so a
// link cannot be forged for another buyer's order.
type CancelNonces struct {
	Secret string
}

// Nonce returns the cancel nonce for o. It is empty without a secret.
func (n CancelNonces) Nonce(o Order) string {
	if n.Secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(n.Secret))
	mac.Write([]byte("cancel_order|"))
	mac.Write([]byte(strconv.FormatInt(o.ID, 10)))
	mac.Write([]byte("|"))
	mac.Write([]byte(o.SessionID))
	return hex.EncodeToString(mac.Sum(nil))[:nonceLength]
}

// Valid reports whether nonce was issued for o.
func (n CancelNonces) Valid(o Order, nonce string) bool {
	if n.Secret == "" || len(nonce) != nonceLength {
		return false
	}
	return hmac.Equal([]byte(n.Nonce(o)), []byte(nonce))
}
