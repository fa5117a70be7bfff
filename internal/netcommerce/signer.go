package netcommerce

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Outbound form field names.
const (
	FieldAddressLine1 = "address_line1"
	FieldAddressLine2 = "address_line2"
	FieldCity         = "city"
	FieldCountry      = "country"
	FieldCustomerID   = "customer_id"
	FieldEmail        = "email"
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldLanguage     = "Lng"
	FieldMobile       = "mobile"
	FieldPaymentMode  = "payment_mode"
	FieldPostalCode   = "postal_code"
	FieldSignature    = "signature"
	FieldState        = "state"
	FieldAmount       = "txtAmount"
	FieldCurrency     = "txtCurrency"
	FieldCallbackURL  = "txthttp"
	FieldIndex        = "txtIndex"
	FieldMerchantNum  = "txtMerchNum"
)

// Merchant is the immutable merchant configuration shared by signer and verifier.
type Merchant struct {
	Number      string
	Secret      string
	CallbackURL string
	Language    string
	TestMode    bool
}

// Billing holds informational buyer fields. None of them are signed.
type Billing struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Address1   string
	Address2   string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Order carries the transaction fields needed to sign a payment request.
type Order struct {
	ID         int64
	Total      decimal.Decimal
	Currency   string
	CustomerID int64
	Billing    Billing
}

// Param is a single outbound form field.
type Param struct {
	Name  string
	Value string
}

// Request is a signed payment request ready to be posted to NetCommerce.
type Request struct {
	Reference string
	Amount    string
	Currency  string
	Signature string
	// Params holds every non-empty field in a fixed order.
	Params []Param
}

// Values returns the request parameters as form values.
func (r Request) Values() url.Values {
	v := make(url.Values, len(r.Params))
	for _, p := range r.Params {
		v.Set(p.Name, p.Value)
	}
	return v
}

// Signer builds signed payment requests.
type Signer struct {
	Merchant Merchant
	Now      func() time.Time
}

// Sign prepares the outbound parameter set for o. A fresh order reference is
// generated on every call.
func (s Signer) Sign(o Order) (Request, error) {
	if strings.TrimSpace(s.Merchant.Secret) == "" {
		return Request{}, errors.New("netcommerce: merchant secret not configured")
	}
	if o.ID < 0 {
		return Request{}, errors.New("netcommerce: invalid order id")
	}
	code, err := CurrencyCode(o.Currency)
	if err != nil {
		return Request{}, err
	}
	amount, err := FormatAmount(o.Total, o.Currency)
	if err != nil {
		return Request{}, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	reference := NewOrderReference(o.ID, now())
	signature := RequestSignature(amount, code, reference, s.Merchant.Number, s.Merchant.CallbackURL, s.Merchant.Secret)

	mode := "real"
	if s.Merchant.TestMode {
		mode = "test"
	}
	customerID := ""
	if o.CustomerID > 0 {
		customerID = strconv.FormatInt(o.CustomerID, 10)
	}
	b := o.Billing
	all := []Param{
		{FieldAddressLine1, b.Address1},
		{FieldAddressLine2, b.Address2},
		{FieldCity, b.City},
		{FieldCountry, b.Country},
		{FieldCustomerID, customerID},
		{FieldEmail, b.Email},
		{FieldFirstName, b.FirstName},
		{FieldLastName, b.LastName},
		{FieldLanguage, s.Merchant.Language},
		{FieldMobile, digitsOnly(b.Phone)},
		{FieldPaymentMode, mode},
		{FieldPostalCode, b.PostalCode},
		{FieldSignature, signature},
		{FieldState, b.State},
		{FieldAmount, amount},
		{FieldCurrency, code},
		{FieldCallbackURL, s.Merchant.CallbackURL},
		{FieldIndex, reference},
		{FieldMerchantNum, s.Merchant.Number},
	}
	params := make([]Param, 0, len(all))
	for _, p := range all {
		if p.Value == "" {
			continue
		}
		params = append(params, p)
	}
	return Request{
		Reference: reference,
		Amount:    amount,
		Currency:  code,
		Signature: signature,
		Params:    params,
	}, nil
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
