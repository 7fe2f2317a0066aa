package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopforge/internal/domain"
	"shopforge/internal/payment"
	"shopforge/internal/services"
)

type fakeGateway struct {
	got payment.OrderRequest
	err error
}

func (g *fakeGateway) CreateOrder(_ context.Context, req payment.OrderRequest) (payment.RemoteOrder, error) {
	g.got = req
	if g.err != nil {
		return nil, g.err
	}
	return payment.RemoteOrder{
		"id":       "order_GW1",
		"amount":   payment.MinorUnits(req.Amount),
		"currency": req.Currency,
	}, nil
}

func pendingOrder(t *testing.T, f *fixture) domain.Order {
	t.Helper()
	st := f.store(t, "Acme")
	w := f.product(t, st.ID, "Widget", "9.99", 3)
	o, _, err := f.orders.CreateOrder(context.Background(), st.ID, services.OrderInput{
		Items:        []services.ItemInput{{ProductID: w.ID, Quantity: 2}},
		CustomerInfo: customer(),
	})
	require.NoError(t, err)
	return o
}

func verifyInput(o domain.Order, gwOrder, gwPayment, sig string) services.VerifyInput {
	return services.VerifyInput{
		GatewayOrderID:   gwOrder,
		GatewayPaymentID: gwPayment,
		Signature:        sig,
		OrderID:          o.ID,
		StoreID:          o.StoreID,
	}
}

func TestVerifyPayment_MarksPaid(t *testing.T) {
	f := newFixture(t)
	o := pendingOrder(t, f)
	sig := payment.Sign(testSecret, "order_GW1", "pay_1")

	got, err := f.payments.VerifyPayment(context.Background(), verifyInput(o, "order_GW1", "pay_1", sig))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, got.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, got.PaymentStatus)
	assert.Equal(t, "order_GW1", got.RazorpayOrderID)
	assert.Equal(t, "pay_1", got.RazorpayPaymentID)
	require.NotNil(t, got.PaymentCompletedAt)
	assert.Contains(t, f.events.topics(), domain.TopicOrderPaid)
}

func TestVerifyPayment_MutatedSignatureLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := pendingOrder(t, f)
	sig := payment.Sign(testSecret, "order_GW1", "pay_1")

	for i := range sig {
		b := []byte(sig)
		if b[i] == 'a' {
			b[i] = 'b'
		} else {
			b[i] = 'a'
		}
		_, err := f.payments.VerifyPayment(ctx, verifyInput(o, "order_GW1", "pay_1", string(b)))
		require.True(t, errors.Is(err, services.ErrSecurity), "position %d", i)
		assert.Equal(t, "invalid payment signature", err.Error())
	}

	got, err := f.orders.GetOrder(ctx, o.StoreID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	assert.Empty(t, got.PaymentStatus)
	assert.Nil(t, got.PaymentCompletedAt)
}

func TestVerifyPayment_ReplayAndConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := pendingOrder(t, f)
	sig := payment.Sign(testSecret, "order_GW1", "pay_1")

	first, err := f.payments.VerifyPayment(ctx, verifyInput(o, "order_GW1", "pay_1", sig))
	require.NoError(t, err)

	again, err := f.payments.VerifyPayment(ctx, verifyInput(o, "order_GW1", "pay_1", sig))
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, again.UpdatedAt, "replay must not write")

	paid := 0
	for _, topic := range f.events.topics() {
		if topic == domain.TopicOrderPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)

	other := payment.Sign(testSecret, "order_GW1", "pay_2")
	_, err = f.payments.VerifyPayment(ctx, verifyInput(o, "order_GW1", "pay_2", other))
	assert.True(t, errors.Is(err, services.ErrConflict))
}

func TestVerifyPayment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := pendingOrder(t, f)
	sig := payment.Sign(testSecret, "order_GW1", "pay_1")

	_, err := f.payments.VerifyPayment(ctx, verifyInput(o, "", "pay_1", sig))
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))
	_, err = f.payments.VerifyPayment(ctx, verifyInput(o, "order_GW1", "pay_1", ""))
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))

	odd := payment.Sign(testSecret, "order GW1;--", "pay_1")
	_, err = f.payments.VerifyPayment(ctx, verifyInput(o, "order GW1;--", "pay_1", odd))
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))

	in := verifyInput(o, "order_GW1", "pay_1", sig)
	in.OrderID = "../etc"
	_, err = f.payments.VerifyPayment(ctx, in)
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))

	in = verifyInput(o, "order_GW1", "pay_1", sig)
	in.OrderID = "missing"
	_, err = f.payments.VerifyPayment(ctx, in)
	assert.True(t, errors.Is(err, services.ErrNotFound))

	in = verifyInput(o, "order_GW1", "pay_1", sig)
	in.StoreID = "other"
	_, err = f.payments.VerifyPayment(ctx, in)
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestInitiatePayment(t *testing.T) {
	f := newFixture(t)
	gw := &fakeGateway{}
	f.payments.Gateway = gw
	ctx := context.Background()
	amount := decimal.RequireFromString("19.98")

	order, err := f.payments.InitiatePayment(ctx, services.PaymentInput{Amount: &amount, Receipt: "rcpt-1"})
	require.NoError(t, err)
	assert.Equal(t, "order_GW1", order["id"])
	assert.Equal(t, int64(1998), order["amount"])
	assert.Equal(t, "INR", gw.got.Currency)

	zero := decimal.Zero
	_, err = f.payments.InitiatePayment(ctx, services.PaymentInput{Amount: &zero, Receipt: "r"})
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))
	_, err = f.payments.InitiatePayment(ctx, services.PaymentInput{Amount: &amount})
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))
	huge := decimal.RequireFromString("92233720368547758.08")
	gw.got = payment.OrderRequest{}
	_, err = f.payments.InitiatePayment(ctx, services.PaymentInput{Amount: &huge, Receipt: "r"})
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))
	assert.Empty(t, gw.got.Receipt)

	gw.err = &payment.Error{Status: 400, Description: "Authentication failed"}
	_, err = f.payments.InitiatePayment(ctx, services.PaymentInput{Amount: &amount, Receipt: "r"})
	require.True(t, errors.Is(err, services.ErrExternalService))
	assert.Equal(t, "Authentication failed", err.Error())
}
