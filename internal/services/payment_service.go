package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"shopforge/internal/domain"
	"shopforge/internal/events"
	applog "shopforge/internal/log"
	"shopforge/internal/metrics"
	"shopforge/internal/payment"
	"shopforge/internal/repos"
	"shopforge/internal/validate"
)

const defaultCurrency = "INR"

var (
	reCurrency = regexp.MustCompile(`^[A-Z]{3}$`)
	tracer     = otel.Tracer("shopforge/services")
)

type PaymentService struct {
	DB        *sqlx.DB
	Orders    *repos.OrderRepo
	Gateway   payment.Gateway
	KeySecret string
	Events    events.Publisher
	Now       func() time.Time
}

func NewPaymentService(db *sqlx.DB, orders *repos.OrderRepo, gw payment.Gateway, keySecret string, pub events.Publisher) *PaymentService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &PaymentService{DB: db, Orders: orders, Gateway: gw, KeySecret: keySecret, Events: pub, Now: time.Now}
}

type PaymentInput struct {
	Amount   *decimal.Decimal  `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

// VerifyInput uses the gateway's callback field names.
type VerifyInput struct {
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
	OrderID          string `json:"orderId"`
	StoreID          string `json:"storeId"`
}

// InitiatePayment opens a gateway order for amount. No local state changes.
func (s *PaymentService) InitiatePayment(ctx context.Context, in PaymentInput) (payment.RemoteOrder, error) {
	if in.Amount == nil || !in.Amount.IsPositive() {
		return nil, invalid("amount must be greater than zero")
	}
	if !domain.WithinMax(*in.Amount) {
		return nil, invalid("amount must not exceed %s", domain.MaxAmount.String())
	}
	receipt := strings.TrimSpace(in.Receipt)
	if receipt == "" {
		return nil, invalid("receipt is required")
	}
	if len(receipt) > 40 {
		return nil, invalid("receipt must be at most 40 characters")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if !reCurrency.MatchString(currency) {
		return nil, invalid("invalid currency")
	}
	if s.Gateway == nil {
		return nil, &Error{Kind: ErrExternalService, Msg: "payment gateway is not configured"}
	}

	ctx, span := tracer.Start(ctx, "payment.initiate")
	defer span.End()
	span.SetAttributes(attribute.String("payment.currency", currency), attribute.String("payment.receipt", receipt))

	order, err := s.Gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   *in.Amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    in.Notes,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var gwErr *payment.Error
		if errors.As(err, &gwErr) {
			return nil, &Error{Kind: ErrExternalService, Msg: gwErr.Description}
		}
		return nil, &Error{Kind: ErrExternalService, Msg: "payment gateway request failed"}
	}
	return order, nil
}

// VerifyPayment checks the callback signature and marks the order paid. A repeated
// callback for the same payment returns the order unchanged; a different payment
// for an already paid order is a conflict.
func (s *PaymentService) VerifyPayment(ctx context.Context, in VerifyInput) (domain.Order, error) {
	sig := strings.TrimSpace(in.Signature)
	if strings.TrimSpace(in.GatewayOrderID) == "" || strings.TrimSpace(in.GatewayPaymentID) == "" || sig == "" {
		return domain.Order{}, invalid("missing payment verification fields")
	}
	gwOrder, ok1 := validate.ID(in.GatewayOrderID)
	gwPayment, ok2 := validate.ID(in.GatewayPaymentID)
	if !ok1 || !ok2 {
		return domain.Order{}, invalid("invalid payment identifiers")
	}
	if strings.TrimSpace(in.OrderID) == "" || strings.TrimSpace(in.StoreID) == "" {
		return domain.Order{}, invalid("orderId and storeId are required")
	}
	orderID, ok1 := validate.ID(in.OrderID)
	storeID, ok2 := validate.ID(in.StoreID)
	if !ok1 || !ok2 {
		return domain.Order{}, invalid("invalid orderId or storeId")
	}
	if s.KeySecret == "" {
		return domain.Order{}, &Error{Kind: ErrExternalService, Msg: "payment gateway is not configured"}
	}

	ctx, span := tracer.Start(ctx, "payment.verify")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("store.id", storeID))

	if !payment.VerifySignature(s.KeySecret, gwOrder, gwPayment, sig) {
		metrics.PaymentVerifications.WithLabelValues("bad_signature").Inc()
		span.SetStatus(codes.Error, "invalid payment signature")
		return domain.Order{}, &Error{Kind: ErrSecurity, Msg: "invalid payment signature"}
	}

	var (
		order  domain.Order
		replay bool
	)
	now := s.Now().UTC()
	err := repos.InTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		orders := s.Orders.WithTx(tx)
		cur, err := orders.Get(ctx, storeID, orderID)
		if err != nil {
			if repos.IsNoRows(err) {
				return notFound("order")
			}
			return err
		}
		if cur.PaymentStatus == domain.PaymentStatusCompleted {
			if cur.RazorpayPaymentID == gwPayment {
				order, replay = cur, true
				return nil
			}
			return conflict("order has already been paid")
		}

		if _, err := orders.MarkPaid(ctx, storeID, orderID, gwOrder, gwPayment, now); err != nil {
			return err
		}
		order, err = orders.Get(ctx, storeID, orderID)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			metrics.PaymentVerifications.WithLabelValues("not_found").Inc()
		case errors.Is(err, ErrConflict):
			metrics.PaymentVerifications.WithLabelValues("conflict").Inc()
		}
		span.RecordError(err)
		return domain.Order{}, err
	}
	if replay {
		metrics.PaymentVerifications.WithLabelValues("replay").Inc()
		return order, nil
	}

	metrics.PaymentVerifications.WithLabelValues("paid").Inc()
	if err := s.Events.Publish(ctx, domain.TopicOrderPaid, order.ID, domain.OrderPaidEvent{
		OrderID:           order.ID,
		StoreID:           order.StoreID,
		Total:             order.Total,
		RazorpayOrderID:   gwOrder,
		RazorpayPaymentID: gwPayment,
		Timestamp:         now,
	}); err != nil {
		applog.L().WithField("topic", domain.TopicOrderPaid).WithField("key", order.ID).WithError(err).Warn("events.publish.failed")
	}
	return order, nil
}
