package netcommerce

import (
	"fmt"
	"net/url"
)

// Inbound callback field names.
const (
	FieldAuthNumber    = "txtNumAut"
	FieldResultValue   = "RespVal"
	FieldResultMessage = "RespMsg"
)

// CallbackFields lists every field NetCommerce must send back.
var CallbackFields = []string{
	FieldMerchantNum,
	FieldIndex,
	FieldAmount,
	FieldCurrency,
	FieldAuthNumber,
	FieldResultValue,
	FieldResultMessage,
	FieldSignature,
}

// Result classifies the RespVal sent by NetCommerce.
type Result string

const (
	ResultApproved Result = "approved"
	ResultDeclined Result = "declined"
	ResultUnmapped Result = "unmapped"
)

// ClassifyResult maps a raw RespVal onto a Result. Only exact matches count.
func ClassifyResult(raw string) Result {
	switch raw {
	case "1":
		return ResultApproved
	case "0":
		return ResultDeclined
	default:
		return ResultUnmapped
	}
}

// Callback is the raw callback payload.
type Callback struct {
	MerchantNumber      string
	Reference           string
	Amount              string
	Currency            string
	AuthorizationNumber string
	ResultValue         string
	ResultMessage       string
	Signature           string
}

// ParseCallback extracts the eight callback fields from form values. A field
// counts as present when its key was sent, even with an empty value.
func ParseCallback(values url.Values) (Callback, error) {
	for _, name := range CallbackFields {
		if _, ok := values[name]; !ok {
			return Callback{}, fmt.Errorf("%w: %s", ErrMissingCallbackField, name)
		}
	}
	return Callback{
		MerchantNumber:      values.Get(FieldMerchantNum),
		Reference:           values.Get(FieldIndex),
		Amount:              values.Get(FieldAmount),
		Currency:            values.Get(FieldCurrency),
		AuthorizationNumber: values.Get(FieldAuthNumber),
		ResultValue:         values.Get(FieldResultValue),
		ResultMessage:       values.Get(FieldResultMessage),
		Signature:           values.Get(FieldSignature),
	}, nil
}

// ExpectedSignature recomputes the signature of c under secret.
func (c Callback) ExpectedSignature(secret string) string {
	return CallbackSignature(c.MerchantNumber, c.Reference, c.Amount, c.Currency, c.AuthorizationNumber, c.ResultValue, c.ResultMessage, secret)
}

// Verified is an authenticated callback.
type Verified struct {
	OrderID             int64
	Result              Result
	Callback            Callback
	AuthorizationNumber string
}

// Verifier authenticates NetCommerce callbacks.
type Verifier struct {
	Merchant Merchant
}

// Verify checks presence and signature of the callback in values and resolves
// the order id. Any error means the callback must not touch order state.
func (v Verifier) Verify(values url.Values) (Verified, error) {
	cb, err := ParseCallback(values)
	if err != nil {
		return Verified{}, err
	}
	return v.VerifyCallback(cb)
}

// VerifyCallback is Verify for an already parsed payload.
func (v Verifier) VerifyCallback(cb Callback) (Verified, error) {
	if v.Merchant.Secret == "" {
		return Verified{}, fmt.Errorf("%w: merchant secret not configured", ErrSignatureMismatch)
	}
	if !signaturesEqual(cb.ExpectedSignature(v.Merchant.Secret), cb.Signature) {
		return Verified{}, ErrSignatureMismatch
	}
	orderID, err := OrderIDFromReference(cb.Reference)
	if err != nil {
		return Verified{}, err
	}
	return Verified{
		OrderID:             orderID,
		Result:              ClassifyResult(cb.ResultValue),
		Callback:            cb,
		AuthorizationNumber: cb.AuthorizationNumber,
	}, nil
}
