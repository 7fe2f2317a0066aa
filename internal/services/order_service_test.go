package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopforge/internal/domain"
	"shopforge/internal/services"
)

func TestOrderFlow_AcmeWidget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st := f.store(t, "Acme")
	require.Equal(t, "acme", st.Slug)
	widget := f.product(t, st.ID, "Widget", "9.99", 3)

	order, calculated, err := f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
		Items:        []services.ItemInput{{ProductID: widget.ID, Quantity: 2}},
		CustomerInfo: customer(),
	})
	require.NoError(t, err)
	assert.Equal(t, "19.98", order.Total.String())
	assert.True(t, calculated.Equal(order.Total))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Widget", order.Items[0].ProductName)
	assert.Equal(t, "19.98", order.Items[0].Total.String())

	paid, err := f.orders.UpdateOrderStatus(ctx, st.ID, order.ID, "paid")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, paid.Status)

	// no inventory deduction by default
	p, err := f.catalog.GetProduct(ctx, st.ID, widget.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Inventory)

	assert.Equal(t, []string{domain.TopicOrderCreated, domain.TopicOrderStatusChanged}, f.events.topics())
}

func TestCreateOrder_TotalIsSumOfItems(t *testing.T) {
	f := newFixture(t)
	st := f.store(t, "Acme")
	a := f.product(t, st.ID, "A", "0.10", 0)
	b := f.product(t, st.ID, "B", "3.33", 0)
	c := f.product(t, st.ID, "C", "100", 0)

	order, _, err := f.orders.CreateOrder(context.Background(), st.ID, services.OrderInput{
		Items: []services.ItemInput{
			{ProductID: a.ID, Quantity: 3},
			{ProductID: b.ID, Quantity: 7},
			{ProductID: c.ID, Quantity: 1},
			{ProductID: a.ID, Quantity: 1},
		},
		CustomerInfo: customer(),
	})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, it := range order.Items {
		assert.True(t, it.Total.Equal(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))))
		sum = sum.Add(it.Total)
	}
	assert.True(t, order.Total.Equal(sum))
	assert.Equal(t, "123.71", order.Total.StringFixed(2))

	got, err := f.orders.GetOrder(context.Background(), st.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "123.71", got.Total.StringFixed(2))
	require.Len(t, got.Items, 4)
	assert.Equal(t, a.ID, got.Items[3].ProductID)
}

func TestCreateOrder_SnapshotSurvivesPriceChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.store(t, "Acme")
	w := f.product(t, st.ID, "Widget", "9.99", 0)

	order, _, err := f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
		Items:        []services.ItemInput{{ProductID: w.ID, Quantity: 1}},
		CustomerInfo: customer(),
	})
	require.NoError(t, err)

	name := "Gadget"
	_, err = f.catalog.UpdateProduct(ctx, st.ID, w.ID, services.ProductPatch{Name: &name, Price: price("50")})
	require.NoError(t, err)

	got, err := f.orders.GetOrder(ctx, st.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Items[0].ProductName)
	assert.Equal(t, "9.99", got.Items[0].Price.String())
}

func TestCreateOrder_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.store(t, "Acme")
	other := f.store(t, "Globex")
	w := f.product(t, st.ID, "Widget", "9.99", 3)
	foreign := f.product(t, other.ID, "Foreign", "1", 3)
	gone := f.product(t, st.ID, "Gone", "1", 3)
	require.NoError(t, f.catalog.DeleteProduct(ctx, st.ID, gone.ID))

	for name, missing := range map[string]string{
		"unknown":     "does-not-exist",
		"other store": foreign.ID,
		"inactive":    gone.ID,
	} {
		_, _, err := f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
			Items: []services.ItemInput{
				{ProductID: w.ID, Quantity: 1},
				{ProductID: missing, Quantity: 1},
			},
			CustomerInfo: customer(),
		})
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, services.ErrInvalidArgument), name)
		assert.Equal(t, "one or more products not found", err.Error())
	}
	assert.Equal(t, 0, f.countOrders(t))
	assert.Empty(t, f.events.topics())
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.store(t, "Acme")
	w := f.product(t, st.ID, "Widget", "9.99", 3)

	cases := map[string]services.OrderInput{
		"no items":      {CustomerInfo: customer()},
		"zero quantity": {Items: []services.ItemInput{{ProductID: w.ID, Quantity: 0}}, CustomerInfo: customer()},
		"no customer":   {Items: []services.ItemInput{{ProductID: w.ID, Quantity: 1}}},
		"bad email": {
			Items:        []services.ItemInput{{ProductID: w.ID, Quantity: 1}},
			CustomerInfo: domain.CustomerInfo{Name: "Jane", Email: "not-an-email"},
		},
	}
	for name, in := range cases {
		_, _, err := f.orders.CreateOrder(ctx, st.ID, in)
		assert.True(t, errors.Is(err, services.ErrInvalidArgument), name)
	}

	_, _, err := f.orders.CreateOrder(ctx, "missing", services.OrderInput{
		Items:        []services.ItemInput{{ProductID: w.ID, Quantity: 1}},
		CustomerInfo: customer(),
	})
	assert.True(t, errors.Is(err, services.ErrNotFound))
	assert.Equal(t, 0, f.countOrders(t))
}

func TestCreateOrder_TotalOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.store(t, "Acme")
	w := f.product(t, st.ID, "Widget", "9.99", 3)
	in := services.OrderInput{
		Items:        []services.ItemInput{{ProductID: w.ID, Quantity: 2}},
		CustomerInfo: customer(),
		Total:        price("1.00"),
	}

	order, calculated, err := f.orders.CreateOrder(ctx, st.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "1", order.Total.String())
	assert.Equal(t, "19.98", calculated.String())

	f.orders.AllowTotalOverride = false
	order, _, err = f.orders.CreateOrder(ctx, st.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "19.98", order.Total.String())
}

func TestCreateOrder_RejectsAmountsBeyondMaximum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.store(t, "Acme")
	w := f.product(t, st.ID, "Widget", "9.99", 3)
	big := f.product(t, st.ID, "Yacht", "1000000000000", 1)

	_, _, err := f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
		Items:        []services.ItemInput{{ProductID: w.ID, Quantity: 1}},
		CustomerInfo: customer(),
		Total:        price("92233720368547758.08"),
	})
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))

	_, _, err = f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
		Items:        []services.ItemInput{{ProductID: big.ID, Quantity: 2}},
		CustomerInfo: customer(),
	})
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))
	assert.Equal(t, 0, f.countOrders(t))

	order, _, err := f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
		Items:        []services.ItemInput{{ProductID: big.ID, Quantity: 1}},
		CustomerInfo: customer(),
	})
	require.NoError(t, err)
	got, err := f.orders.GetOrder(ctx, st.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000", got.Total.String())
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(ctx context.Context, _, _ string, _ any) error {
	return errors.New("broker unreachable")
}
func (brokenPublisher) Close() error { return nil }

func TestCreateOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	f.orders.Events = brokenPublisher{}
	ctx := context.Background()
	st := f.store(t, "Acme")
	w := f.product(t, st.ID, "Widget", "9.99", 3)

	order, _, err := f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
		Items:        []services.ItemInput{{ProductID: w.ID, Quantity: 1}},
		CustomerInfo: customer(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.countOrders(t))

	_, err = f.orders.UpdateOrderStatus(ctx, st.ID, order.ID, "shipped")
	require.NoError(t, err)
}

func TestCreateOrder_DeductInventory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.orders.DeductInventory = true
	st := f.store(t, "Acme")
	w := f.product(t, st.ID, "Widget", "9.99", 3)

	_, _, err := f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
		Items:        []services.ItemInput{{ProductID: w.ID, Quantity: 2}},
		CustomerInfo: customer(),
	})
	require.NoError(t, err)

	p, err := f.catalog.GetProduct(ctx, st.ID, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Inventory)

	_, _, err = f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
		Items:        []services.ItemInput{{ProductID: w.ID, Quantity: 1}, {ProductID: w.ID, Quantity: 1}},
		CustomerInfo: customer(),
	})
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))
	assert.Equal(t, 1, f.countOrders(t))

	p, err = f.catalog.GetProduct(ctx, st.ID, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Inventory, "failed order must not consume stock")
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.store(t, "Acme")
	other := f.store(t, "Globex")
	w := f.product(t, st.ID, "Widget", "9.99", 3)
	order, _, err := f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
		Items:        []services.ItemInput{{ProductID: w.ID, Quantity: 1}},
		CustomerInfo: customer(),
	})
	require.NoError(t, err)

	// any status may follow any status
	for _, s := range []string{"shipped", "pending", "cancelled", "completed"} {
		got, err := f.orders.UpdateOrderStatus(ctx, st.ID, order.ID, s)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatus(s), got.Status)
	}

	_, err = f.orders.UpdateOrderStatus(ctx, st.ID, order.ID, "")
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))
	_, err = f.orders.UpdateOrderStatus(ctx, st.ID, order.ID, "refunded")
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))
	_, err = f.orders.UpdateOrderStatus(ctx, st.ID, "missing", "paid")
	assert.True(t, errors.Is(err, services.ErrNotFound))
	_, err = f.orders.UpdateOrderStatus(ctx, other.ID, order.ID, "paid")
	assert.True(t, errors.Is(err, services.ErrNotFound))
	_, err = f.orders.UpdateOrderStatus(ctx, "missing", order.ID, "paid")
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.store(t, "Acme")
	w := f.product(t, st.ID, "Widget", "9.99", 3)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		f.orders.Now = fixedClock(base.Add(time.Duration(i) * time.Minute))
		o, _, err := f.orders.CreateOrder(ctx, st.ID, services.OrderInput{
			Items:        []services.ItemInput{{ProductID: w.ID, Quantity: i + 1}},
			CustomerInfo: customer(),
		})
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	_, err := f.orders.UpdateOrderStatus(ctx, st.ID, ids[0], "completed")
	require.NoError(t, err)

	list, err := f.orders.ListOrders(ctx, st.ID, "", 1, 2)
	require.NoError(t, err)
	require.Len(t, list.Orders, 2)
	assert.Equal(t, ids[2], list.Orders[0].ID, "newest first")
	assert.Equal(t, 3, list.Meta.Total)
	assert.Equal(t, 2, list.Meta.TotalPages)
	assert.Len(t, list.Orders[0].Items, 1)

	pending, err := f.orders.ListOrders(ctx, st.ID, "pending", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, pending.Meta.Total)

	_, err = f.orders.ListOrders(ctx, st.ID, "bogus", 1, 10)
	assert.True(t, errors.Is(err, services.ErrInvalidArgument))
}
