package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/netcommerce-gateway/internal/config"
	"github.com/noah-isme/netcommerce-gateway/internal/lock"
	"github.com/noah-isme/netcommerce-gateway/internal/netcommerce"
	"github.com/noah-isme/netcommerce-gateway/internal/obs"
	"github.com/noah-isme/netcommerce-gateway/internal/order"
)

// Order notes and reasons recorded on settlement.
const (
	approvedNoteFormat = "NetCommerce payment approved (Order ID: %d, NetCommerce Authorization Number: %s)"
	declinedReason     = "Payment was declined by NetCommerce."
	onHoldFormat       = "NetCommerce returned unrecognised result %q: %s"
)

var (
	// ErrGatewayDisabled is returned when the NetCommerce gateway is switched off.
	ErrGatewayDisabled = errors.New("payment: netcommerce gateway disabled")
	// ErrOrderNotPayable is returned when the order is not awaiting payment.
	ErrOrderNotPayable = errors.New("payment: order does not need payment")
	// ErrUnmappedResult is returned for unknown result codes under the reject policy.
	ErrUnmappedResult = errors.New("payment: unmapped netcommerce result")
)

// CartClearer empties a buyer's pending cart.
type CartClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

// OrderLocker serialises settlement of a single order.
type OrderLocker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Service signs outbound NetCommerce requests and settles verified callbacks
// against the order store.
type Service struct {
	Enabled  bool
	Merchant netcommerce.Merchant
	Orders   order.Store
	Carts    CartClearer
	Locker   OrderLocker
	// UnmappedPolicy is one of the config.Unmapped* values. Empty means ignore.
	UnmappedPolicy string
	Now            func() time.Time
}

// Settlement describes what a verified callback did.
type Settlement struct {
	OrderID             int64
	Result              netcommerce.Result
	AuthorizationNumber string
	// Applied is false when the order was already past the transition, e.g. a
	// retried callback for a paid order.
	Applied bool
}

// Prepare loads orderID and signs a fresh payment request for it. No order
// state is changed.
func (s *Service) Prepare(ctx context.Context, orderID int64) (netcommerce.Request, order.Order, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Prepare")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID))

	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("netcommerce.sign.result", result))
		if obs.NetCommerceSignTotal != nil {
			obs.NetCommerceSignTotal.WithLabelValues(result).Inc()
		}
	}()

	if s == nil || s.Orders == nil {
		return netcommerce.Request{}, order.Order{}, errors.New("payment service not configured")
	}
	if !s.Enabled {
		result = "disabled"
		return netcommerce.Request{}, order.Order{}, ErrGatewayDisabled
	}
	ord, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			result = "order_not_found"
		}
		return netcommerce.Request{}, order.Order{}, err
	}
	if !ord.NeedsPayment() {
		result = "not_payable"
		return netcommerce.Request{}, ord, fmt.Errorf("%w: status %s", ErrOrderNotPayable, ord.Status)
	}
	signer := netcommerce.Signer{Merchant: s.Merchant, Now: s.Now}
	req, err := signer.Sign(toSignable(ord))
	if err != nil {
		result = netcommerce.Reason(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "sign failed")
		return netcommerce.Request{}, ord, err
	}
	result = "signed"
	span.SetAttributes(attribute.String("netcommerce.reference", req.Reference))
	return req, ord, nil
}

// Settle authenticates the callback in values and applies the resulting order
// transition. Any returned error from verification means nothing was changed.
func (s *Service) Settle(ctx context.Context, values url.Values) (Settlement, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Settle")
	defer span.End()

	start := time.Now()
	outcome := "error"
	defer func() {
		span.SetAttributes(attribute.String("netcommerce.callback.result", outcome))
		if obs.NetCommerceCallbackTotal != nil {
			obs.NetCommerceCallbackTotal.WithLabelValues(outcome).Inc()
		}
		if obs.NetCommerceSettleDuration != nil {
			obs.NetCommerceSettleDuration.Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	if s == nil || s.Orders == nil {
		return Settlement{}, errors.New("payment service not configured")
	}
	verifier := netcommerce.Verifier{Merchant: s.Merchant}
	verified, err := verifier.Verify(values)
	if err != nil {
		outcome = netcommerce.Reason(err)
		span.RecordError(err)
		return Settlement{}, err
	}
	span.SetAttributes(
		attribute.Int64("order.id", verified.OrderID),
		attribute.String("netcommerce.result", string(verified.Result)),
	)
	settlement := Settlement{
		OrderID:             verified.OrderID,
		Result:              verified.Result,
		AuthorizationNumber: verified.AuthorizationNumber,
	}
	if verified.Result == netcommerce.ResultUnmapped && s.UnmappedPolicy == config.UnmappedReject {
		outcome = "unmapped_rejected"
		return settlement, fmt.Errorf("%w: %q", ErrUnmappedResult, verified.Callback.ResultValue)
	}

	err = s.withOrderLock(ctx, verified.OrderID, func(ctx context.Context) error {
		applied, err := s.apply(ctx, verified)
		settlement.Applied = applied
		return err
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			outcome = "order_not_found"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "settle failed")
		return settlement, err
	}
	outcome = string(verified.Result)
	if !settlement.Applied && verified.Result != netcommerce.ResultUnmapped {
		outcome = "duplicate"
	}
	return settlement, nil
}

func (s *Service) withOrderLock(ctx context.Context, orderID int64, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	return s.Locker.WithLock(ctx, lock.OrderKey(orderID), fn)
}

func (s *Service) apply(ctx context.Context, v netcommerce.Verified) (bool, error) {
	ord, err := s.Orders.Get(ctx, v.OrderID)
	if err != nil {
		return false, err
	}
	switch v.Result {
	case netcommerce.ResultApproved:
		note := fmt.Sprintf(approvedNoteFormat, v.OrderID, v.AuthorizationNumber)
		changed, err := s.Orders.Transition(ctx, v.OrderID, order.PaymentComplete(v.AuthorizationNumber, note))
		if err != nil || !changed {
			return changed, err
		}
		if s.Carts != nil && ord.SessionID != "" {
			if err := s.Carts.Clear(ctx, ord.SessionID); err != nil {
				obs.Logger(ctx).Warn().Err(err).Int64("order_id", v.OrderID).Msg("clear cart after payment")
			}
		}
		return true, nil
	case netcommerce.ResultDeclined:
		return s.Orders.Transition(ctx, v.OrderID, order.PaymentFailed(declinedReason))
	default:
		if s.UnmappedPolicy == config.UnmappedHold {
			reason := fmt.Sprintf(onHoldFormat, v.Callback.ResultValue, v.Callback.ResultMessage)
			return s.Orders.Transition(ctx, v.OrderID, order.PaymentOnHold(reason))
		}
		return false, nil
	}
}

func toSignable(o order.Order) netcommerce.Order {
	b := o.Billing
	return netcommerce.Order{
		ID:         o.ID,
		Total:      o.Total,
		Currency:   o.Currency,
		CustomerID: o.CustomerID,
		Billing: netcommerce.Billing{
			FirstName:  b.FirstName,
			LastName:   b.LastName,
			Email:      b.Email,
			Phone:      b.Phone,
			Address1:   b.Address1,
			Address2:   b.Address2,
			City:       b.City,
			State:      b.State,
			PostalCode: b.PostalCode,
			Country:    b.Country,
		},
	}
}

// RejectReason labels a Settle error for logs.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnmappedResult):
		return "unmapped_result"
	case errors.Is(err, order.ErrNotFound):
		return "order_not_found"
	default:
		return netcommerce.Reason(err)
	}
}
