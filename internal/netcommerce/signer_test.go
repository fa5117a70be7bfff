package netcommerce_test

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/netcommerce-gateway/internal/netcommerce"
)

var testMerchant = netcommerce.Merchant{
	Number:      "M1",
	Secret:      "s3cr3t",
	CallbackURL: "https://shop/callback",
	Language:    "EN",
	TestMode:    true,
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestSignUSDOrder(t *testing.T) {
	signer := netcommerce.Signer{Merchant: testMerchant, Now: fixedClock()}
	req, err := signer.Sign(netcommerce.Order{ID: 42, Total: decimal.RequireFromString("19.99"), Currency: "USD"})
	require.NoError(t, err)

	require.Equal(t, "19.99", req.Amount)
	require.Equal(t, "840", req.Currency)
	require.True(t, strings.HasPrefix(req.Reference, "42_"), req.Reference)

	want := sha256Hex("19.99" + "840" + req.Reference + "M1" + "https://shop/callback" + "s3cr3t")
	require.Equal(t, want, req.Signature)
	require.Equal(t, want, netcommerce.RequestSignature("19.99", "840", req.Reference, "M1", "https://shop/callback", "s3cr3t"))
	require.Equal(t, strings.ToLower(req.Signature), req.Signature)

	values := req.Values()
	require.Equal(t, "19.99", values.Get(netcommerce.FieldAmount))
	require.Equal(t, "840", values.Get(netcommerce.FieldCurrency))
	require.Equal(t, req.Reference, values.Get(netcommerce.FieldIndex))
	require.Equal(t, "M1", values.Get(netcommerce.FieldMerchantNum))
	require.Equal(t, "https://shop/callback", values.Get(netcommerce.FieldCallbackURL))
	require.Equal(t, req.Signature, values.Get(netcommerce.FieldSignature))
	require.Equal(t, "test", values.Get(netcommerce.FieldPaymentMode))
	require.Equal(t, "EN", values.Get(netcommerce.FieldLanguage))
}

func TestRequestSignatureGolden(t *testing.T) {
	got := netcommerce.RequestSignature("19.99", "840", "42_1714564800000000000", "M1", "https://shop/callback", "s3cr3t")
	require.Equal(t, "b61f867a74e97780dda14fbb8ff43a35a2a092bd520ec8b57f9522df2912bdfa", got)
}

func TestSignLBPOrder(t *testing.T) {
	signer := netcommerce.Signer{Merchant: testMerchant}
	req, err := signer.Sign(netcommerce.Order{ID: 7, Total: decimal.NewFromInt(150000), Currency: "LBP"})
	require.NoError(t, err)
	require.Equal(t, "150000", req.Amount)
	require.Equal(t, "422", req.Currency)
}

func TestFormatAmountRounding(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"19.99", "USD", "19.99"},
		{"10", "USD", "10.00"},
		{"10.005", "USD", "10.01"},
		{"1234567.5", "USD", "1234567.50"},
		{"150000", "LBP", "150000"},
		{"1500.5", "LBP", "1501"},
		{"2500000.25", "lbp", "2500000"},
	}
	for _, tc := range cases {
		got, err := netcommerce.FormatAmount(decimal.RequireFromString(tc.amount), tc.currency)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "%s %s", tc.amount, tc.currency)
	}
}

func TestSignUnsupportedCurrency(t *testing.T) {
	signer := netcommerce.Signer{Merchant: testMerchant}
	_, err := signer.Sign(netcommerce.Order{ID: 1, Total: decimal.NewFromInt(10), Currency: "EUR"})
	require.ErrorIs(t, err, netcommerce.ErrUnsupportedCurrency)
	require.Equal(t, "unsupported_currency", netcommerce.Reason(err))
}

func TestSignRequiresSecret(t *testing.T) {
	signer := netcommerce.Signer{Merchant: netcommerce.Merchant{Number: "M1"}}
	_, err := signer.Sign(netcommerce.Order{ID: 1, Total: decimal.NewFromInt(10), Currency: "USD"})
	require.Error(t, err)
}

func TestSignOmitsEmptyParams(t *testing.T) {
	merchant := testMerchant
	merchant.Language = ""
	merchant.TestMode = false
	signer := netcommerce.Signer{Merchant: merchant}
	req, err := signer.Sign(netcommerce.Order{
		ID:       9,
		Total:    decimal.RequireFromString("5"),
		Currency: "USD",
		Billing: netcommerce.Billing{
			FirstName: "Rami",
			Email:     "rami@example.com",
			Phone:     "+961 3-123 456",
			Address1:  "Hamra St",
			City:      "Beirut",
			Country:   "LB",
		},
	})
	require.NoError(t, err)

	values := req.Values()
	for _, name := range []string{
		netcommerce.FieldAddressLine2,
		netcommerce.FieldCustomerID,
		netcommerce.FieldLastName,
		netcommerce.FieldLanguage,
		netcommerce.FieldPostalCode,
		netcommerce.FieldState,
	} {
		_, ok := values[name]
		require.False(t, ok, "expected %s to be omitted", name)
	}
	for _, p := range req.Params {
		require.NotEmpty(t, p.Value, p.Name)
	}
	require.Equal(t, "9613123456", values.Get(netcommerce.FieldMobile))
	require.Equal(t, "real", values.Get(netcommerce.FieldPaymentMode))
	require.Equal(t, "Hamra St", values.Get(netcommerce.FieldAddressLine1))
}

func TestSignIncludesCustomerID(t *testing.T) {
	signer := netcommerce.Signer{Merchant: testMerchant}
	req, err := signer.Sign(netcommerce.Order{ID: 3, Total: decimal.NewFromInt(1), Currency: "USD", CustomerID: 55})
	require.NoError(t, err)
	require.Equal(t, "55", req.Values().Get(netcommerce.FieldCustomerID))
}

func TestSignRegeneratesReference(t *testing.T) {
	signer := netcommerce.Signer{Merchant: testMerchant, Now: fixedClock()}
	order := netcommerce.Order{ID: 42, Total: decimal.RequireFromString("19.99"), Currency: "USD"}

	first, err := signer.Sign(order)
	require.NoError(t, err)
	second, err := signer.Sign(order)
	require.NoError(t, err)

	require.NotEqual(t, first.Reference, second.Reference)
	require.NotEqual(t, first.Signature, second.Signature)
	require.Equal(t, first.Amount, second.Amount)
}

func TestNewOrderReferenceUnique(t *testing.T) {
	at := time.Now()
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		ref := netcommerce.NewOrderReference(5, at)
		_, dup := seen[ref]
		require.False(t, dup, "duplicate reference %s", ref)
		seen[ref] = struct{}{}
		id, err := netcommerce.OrderIDFromReference(ref)
		require.NoError(t, err)
		require.EqualValues(t, 5, id)
	}
}

func TestOrderIDFromReference(t *testing.T) {
	cases := []struct {
		ref     string
		want    int64
		wantErr bool
	}{
		{"42_1714564800", 42, false},
		{"42", 42, false},
		{"0_1", 0, false},
		{"42_a_b", 42, false},
		{"abc_123", 0, true},
		{"-5_1", 0, true},
		{"_123", 0, true},
		{"", 0, true},
		{"99999999999999999999_1", 0, true},
	}
	for _, tc := range cases {
		got, err := netcommerce.OrderIDFromReference(tc.ref)
		if tc.wantErr {
			require.ErrorIs(t, err, netcommerce.ErrMalformedOrderReference, tc.ref)
			continue
		}
		require.NoError(t, err, tc.ref)
		require.Equal(t, tc.want, got, tc.ref)
	}
}
