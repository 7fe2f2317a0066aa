package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"shopforge/internal/domain"
	"shopforge/internal/events"
	applog "shopforge/internal/log"
	"shopforge/internal/metrics"
	"shopforge/internal/repos"
	"shopforge/internal/validate"
)

const (
	maxOrderLines = 100
	maxLineQty    = 10000
)

type OrderService struct {
	DB     *sqlx.DB
	Stores *repos.StoreRepo
	Prods  *repos.ProductRepo
	Orders *repos.OrderRepo
	Events events.Publisher

	// AllowTotalOverride lets a caller-supplied total replace the item sum.
	AllowTotalOverride bool
	// DeductInventory decrements stock inside the order transaction.
	DeductInventory bool

	Now func() time.Time
}

func NewOrderService(db *sqlx.DB, stores *repos.StoreRepo, prods *repos.ProductRepo, orders *repos.OrderRepo, pub events.Publisher) *OrderService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &OrderService{
		DB:                 db,
		Stores:             stores,
		Prods:              prods,
		Orders:             orders,
		Events:             pub,
		AllowTotalOverride: true,
		Now:                time.Now,
	}
}

type ItemInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type OrderInput struct {
	Items        []ItemInput         `json:"items"`
	CustomerInfo domain.CustomerInfo `json:"customerInfo"`
	Total        *decimal.Decimal    `json:"total"`
}

type OrderList struct {
	Orders []domain.Order `json:"orders"`
	Meta   domain.Page    `json:"meta"`
}

// CreateOrder validates the cart against the store's active products, snapshots
// names and prices, and persists a pending order. Nothing is written unless every
// product resolves. The calculated item sum is returned next to the order so the
// caller can audit a differing supplied total.
func (s *OrderService) CreateOrder(ctx context.Context, storeID string, in OrderInput) (domain.Order, decimal.Decimal, error) {
	var (
		order      domain.Order
		calculated decimal.Decimal
	)
	err := repos.InTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		stores, prods, orders := s.Stores.WithTx(tx), s.Prods.WithTx(tx), s.Orders.WithTx(tx)

		if _, err := stores.GetActive(ctx, storeID); err != nil {
			if repos.IsNoRows(err) {
				return notFound("store")
			}
			return err
		}

		customer, ids, err := checkOrderInput(in)
		if err != nil {
			return err
		}

		found, err := prods.ActiveByIDs(ctx, storeID, ids, s.DeductInventory)
		if err != nil {
			return err
		}
		if len(found) != len(ids) {
			return invalid("one or more products not found")
		}

		items := make([]domain.OrderItem, 0, len(in.Items))
		calculated = decimal.Zero
		for _, line := range in.Items {
			p := found[strings.TrimSpace(line.ProductID)]
			lineTotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, domain.OrderItem{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    line.Quantity,
				Price:       p.Price,
				Total:       lineTotal,
			})
			calculated = calculated.Add(lineTotal)
		}
		if !domain.WithinMax(calculated) {
			return invalid("order total must not exceed %s", domain.MaxAmount.String())
		}

		total := calculated
		if in.Total != nil && s.AllowTotalOverride {
			total = in.Total.Round(2)
		}

		now := s.Now().UTC()
		if s.DeductInventory {
			if err := deductStock(ctx, prods, storeID, items, now); err != nil {
				return err
			}
		}

		order = domain.Order{
			ID:           uuid.NewString(),
			OrderNumber:  orderNumber(now),
			StoreID:      storeID,
			Items:        items,
			Total:        total,
			Status:       domain.OrderStatusPending,
			CustomerInfo: customer,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return orders.Create(ctx, &order)
	})
	if err != nil {
		return domain.Order{}, decimal.Zero, err
	}

	metrics.OrdersCreated.Inc()
	if in.Total != nil && !in.Total.Equal(calculated) {
		metrics.OrderTotalOverrides.Inc()
	}
	s.publish(ctx, domain.TopicOrderCreated, order.ID, domain.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		StoreID:     order.StoreID,
		Items:       order.Items,
		Total:       order.Total,
		Timestamp:   order.CreatedAt,
	})
	return order, calculated, nil
}

// checkOrderInput returns the cleaned customer block and the distinct product ids.
func checkOrderInput(in OrderInput) (domain.CustomerInfo, []string, error) {
	if len(in.Items) == 0 {
		return domain.CustomerInfo{}, nil, invalid("order must contain at least one item")
	}
	if len(in.Items) > maxOrderLines {
		return domain.CustomerInfo{}, nil, invalid("order has too many items")
	}
	seen := make(map[string]bool, len(in.Items))
	ids := make([]string, 0, len(in.Items))
	for _, line := range in.Items {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return domain.CustomerInfo{}, nil, invalid("productId is required for every item")
		}
		if line.Quantity <= 0 || line.Quantity > maxLineQty {
			return domain.CustomerInfo{}, nil, invalid("quantity must be a positive integer")
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if in.Total != nil {
		if in.Total.IsNegative() {
			return domain.CustomerInfo{}, nil, invalid("total must not be negative")
		}
		if !domain.WithinMax(*in.Total) {
			return domain.CustomerInfo{}, nil, invalid("total must not exceed %s", domain.MaxAmount.String())
		}
	}

	c := in.CustomerInfo
	name, ok := validate.Name(c.Name)
	if !ok {
		return domain.CustomerInfo{}, nil, invalid("customer name is required")
	}
	out := domain.CustomerInfo{Name: name}
	if strings.TrimSpace(c.Email) != "" {
		email, ok := validate.Email(c.Email)
		if !ok {
			return domain.CustomerInfo{}, nil, invalid("invalid customer email")
		}
		out.Email = email
	}
	if strings.TrimSpace(c.Phone) != "" {
		phone, ok := validate.Phone(c.Phone)
		if !ok {
			return domain.CustomerInfo{}, nil, invalid("invalid customer phone")
		}
		out.Phone = phone
	}
	addr, ok := validate.Text(c.Address, 500)
	if !ok {
		return domain.CustomerInfo{}, nil, invalid("customer address is too long")
	}
	out.Address = addr
	return out, ids, nil
}

func deductStock(ctx context.Context, prods *repos.ProductRepo, storeID string, items []domain.OrderItem, at time.Time) error {
	need := make(map[string]int, len(items))
	names := make(map[string]string, len(items))
	var order []string
	for _, it := range items {
		if _, ok := need[it.ProductID]; !ok {
			order = append(order, it.ProductID)
		}
		need[it.ProductID] += it.Quantity
		names[it.ProductID] = it.ProductName
	}
	for _, id := range order {
		ok, err := prods.DecrementInventory(ctx, storeID, id, need[id], at)
		if err != nil {
			return err
		}
		if !ok {
			return invalid("insufficient inventory for %s", names[id])
		}
	}
	return nil
}

// orderNumber is "ORD-" plus the creation time in base36 milliseconds.
func orderNumber(t time.Time) string {
	return "ORD-" + strings.ToUpper(strconv.FormatInt(t.UnixMilli(), 36))
}

// UpdateOrderStatus sets any valid status; there is no transition table.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, storeID, orderID, status string) (domain.Order, error) {
	if _, err := s.Stores.GetActive(ctx, storeID); err != nil {
		if repos.IsNoRows(err) {
			return domain.Order{}, notFound("store")
		}
		return domain.Order{}, err
	}
	st := domain.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if st == "" {
		return domain.Order{}, invalid("status is required")
	}
	if !st.Valid() {
		return domain.Order{}, invalid("invalid status %q", status)
	}

	now := s.Now().UTC()
	found, err := s.Orders.UpdateStatus(ctx, storeID, orderID, st, now)
	if err != nil {
		return domain.Order{}, err
	}
	if !found {
		return domain.Order{}, notFound("order")
	}
	order, err := s.Orders.Get(ctx, storeID, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	metrics.OrderStatusChanges.WithLabelValues(string(st)).Inc()
	s.publish(ctx, domain.TopicOrderStatusChanged, order.ID, domain.OrderStatusChangedEvent{
		OrderID:   order.ID,
		StoreID:   order.StoreID,
		Status:    st,
		Timestamp: now,
	})
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, storeID, orderID string) (domain.Order, error) {
	o, err := s.Orders.Get(ctx, storeID, orderID)
	if repos.IsNoRows(err) {
		return domain.Order{}, notFound("order")
	}
	return o, err
}

// ListOrders pages through a store's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, storeID, status string, page, limit int) (OrderList, error) {
	if _, err := s.Stores.GetActive(ctx, storeID); err != nil {
		if repos.IsNoRows(err) {
			return OrderList{}, notFound("store")
		}
		return OrderList{}, err
	}
	st := domain.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return OrderList{}, invalid("invalid status %q", status)
	}

	var (
		list  []domain.Order
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		list, err = s.Orders.List(gctx, storeID, st, limit, (page-1)*limit)
		return err
	})
	g.Go(func() (err error) {
		total, err = s.Orders.Count(gctx, storeID, st)
		return err
	})
	if err := g.Wait(); err != nil {
		return OrderList{}, err
	}
	return OrderList{Orders: list, Meta: domain.NewPage(total, page, limit)}, nil
}

// publish never fails the caller; the order is already committed.
func (s *OrderService) publish(ctx context.Context, topic, key string, event any) {
	if err := s.Events.Publish(ctx, topic, key, event); err != nil {
		applog.L().WithField("topic", topic).WithField("key", key).WithError(err).Warn("events.publish.failed")
	}
}
