package repos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"shopforge/internal/domain"
)

type OrderRepo struct{ db queryer }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) WithTx(tx *sqlx.Tx) *OrderRepo { return &OrderRepo{db: tx} }

// ---------- rows ----------

type orderRow struct {
	ID                 string       `db:"id"`
	OrderNumber        string       `db:"order_number"`
	StoreID            string       `db:"store_id"`
	TotalCents         int64        `db:"total_cents"`
	Status             string       `db:"status"`
	CustomerName       string       `db:"customer_name"`
	CustomerEmail      string       `db:"customer_email"`
	CustomerPhone      string       `db:"customer_phone"`
	CustomerAddress    string       `db:"customer_address"`
	PaymentStatus      string       `db:"payment_status"`
	RazorpayOrderID    string       `db:"razorpay_order_id"`
	RazorpayPaymentID  string       `db:"razorpay_payment_id"`
	PaymentCompletedAt sql.NullTime `db:"payment_completed_at"`
	CreatedAt          time.Time    `db:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at"`
}

func (row orderRow) order(items []domain.OrderItem) domain.Order {
	if items == nil {
		items = []domain.OrderItem{}
	}
	o := domain.Order{
		ID:          row.ID,
		OrderNumber: row.OrderNumber,
		StoreID:     row.StoreID,
		Items:       items,
		Total:       domain.FromCents(row.TotalCents),
		Status:      domain.OrderStatus(row.Status),
		CustomerInfo: domain.CustomerInfo{
			Name:    row.CustomerName,
			Email:   row.CustomerEmail,
			Phone:   row.CustomerPhone,
			Address: row.CustomerAddress,
		},
		PaymentStatus:     row.PaymentStatus,
		RazorpayOrderID:   row.RazorpayOrderID,
		RazorpayPaymentID: row.RazorpayPaymentID,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if row.PaymentCompletedAt.Valid {
		t := row.PaymentCompletedAt.Time
		o.PaymentCompletedAt = &t
	}
	return o
}

type orderItemRow struct {
	OrderID     string `db:"order_id"`
	Position    int    `db:"position"`
	ProductID   string `db:"product_id"`
	ProductName string `db:"product_name"`
	Quantity    int    `db:"quantity"`
	PriceCents  int64  `db:"price_cents"`
	TotalCents  int64  `db:"total_cents"`
}

const orderColumns = `id, order_number, store_id, total_cents, status, customer_name, customer_email,
	customer_phone, customer_address, payment_status, razorpay_order_id, razorpay_payment_id,
	payment_completed_at, created_at, updated_at`

// ---------- writes ----------

// Create inserts the header and its item snapshot. Run it inside a transaction.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  INSERT INTO orders
	    (id, order_number, store_id, total_cents, status, customer_name, customer_email,
	     customer_phone, customer_address, created_at, updated_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), o.ID, o.OrderNumber, o.StoreID, domain.Cents(o.Total), string(o.Status),
		o.CustomerInfo.Name, o.CustomerInfo.Email, o.CustomerInfo.Phone, o.CustomerInfo.Address,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	insertItem := r.db.Rebind(`
	  INSERT INTO order_items(order_id, position, product_id, product_name, quantity, price_cents, total_cents)
	  VALUES(?, ?, ?, ?, ?, ?, ?)
	`)
	for i, it := range o.Items {
		if _, err := r.db.ExecContext(ctx, insertItem, o.ID, i, it.ProductID, it.ProductName, it.Quantity,
			domain.Cents(it.Price), domain.Cents(it.Total)); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, storeID, id string, status domain.OrderStatus, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND store_id = ?
	`), string(status), at, id, storeID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkPaid records a verified gateway payment.
func (r *OrderRepo) MarkPaid(ctx context.Context, storeID, id, gatewayOrderID, gatewayPaymentID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  UPDATE orders
	  SET status = ?, payment_status = ?, razorpay_order_id = ?, razorpay_payment_id = ?,
	      payment_completed_at = ?, updated_at = ?
	  WHERE id = ? AND store_id = ?
	`), string(domain.OrderStatusPaid), domain.PaymentStatusCompleted, gatewayOrderID, gatewayPaymentID,
		at, at, id, storeID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ---------- reads ----------

func (r *OrderRepo) Get(ctx context.Context, storeID, id string) (domain.Order, error) {
	var row orderRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(`
	  SELECT `+orderColumns+` FROM orders WHERE id = ? AND store_id = ?
	`), id, storeID); err != nil {
		return domain.Order{}, err
	}
	items, err := r.itemsFor(ctx, []string{row.ID})
	if err != nil {
		return domain.Order{}, err
	}
	return row.order(items[row.ID]), nil
}

func listWhere(storeID string, status domain.OrderStatus) (string, []any) {
	where := `store_id = ?`
	args := []any{storeID}
	if status != "" {
		where += ` AND status = ?`
		args = append(args, string(status))
	}
	return where, args
}

// List returns a page of a store's orders, newest first, optionally filtered by status.
func (r *OrderRepo) List(ctx context.Context, storeID string, status domain.OrderStatus, limit, offset int) ([]domain.Order, error) {
	where, args := listWhere(storeID, status)
	args = append(args, limit, offset)
	return r.selectOrders(ctx, `
	  SELECT `+orderColumns+`
	  FROM orders
	  WHERE `+where+`
	  ORDER BY created_at DESC, id
	  LIMIT ? OFFSET ?`, args...)
}

func (r *OrderRepo) Count(ctx context.Context, storeID string, status domain.OrderStatus) (int, error) {
	where, args := listWhere(storeID, status)
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM orders WHERE `+where), args...)
	return n, err
}

// Recent returns the newest orders of a store regardless of age.
func (r *OrderRepo) Recent(ctx context.Context, storeID string, limit int) ([]domain.Order, error) {
	return r.selectOrders(ctx, `
	  SELECT `+orderColumns+`
	  FROM orders
	  WHERE store_id = ?
	  ORDER BY created_at DESC, id
	  LIMIT ?`, storeID, limit)
}

func (r *OrderRepo) selectOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.order(items[row.ID]))
	}
	return out, nil
}

// itemsFor loads the item snapshots of many orders in one query.
func (r *OrderRepo) itemsFor(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	out := make(map[string][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`
	  SELECT order_id, position, product_id, product_name, quantity, price_cents, total_cents
	  FROM order_items
	  WHERE order_id IN (?)
	  ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	var rows []orderItemRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, it := range rows {
		out[it.OrderID] = append(out[it.OrderID], domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       domain.FromCents(it.PriceCents),
			Total:       domain.FromCents(it.TotalCents),
		})
	}
	return out, nil
}

// ---------- analytics ----------
// Sums are cast to BIGINT because Postgres widens SUM(bigint) to numeric.

type WindowCounts struct {
	Total     int `db:"total"`
	Completed int `db:"completed"`
	Pending   int `db:"pending"`
}

// CountsSince counts a store's orders created at or after since.
func (r *OrderRepo) CountsSince(ctx context.Context, storeID string, since time.Time) (WindowCounts, error) {
	var c WindowCounts
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`
	  SELECT COUNT(*) AS total,
	         CAST(COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS BIGINT) AS completed,
	         CAST(COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS BIGINT) AS pending
	  FROM orders
	  WHERE store_id = ? AND created_at >= ?
	`), string(domain.OrderStatusCompleted), string(domain.OrderStatusPending), storeID, since)
	return c, err
}

// RevenueSince sums paid and completed order totals, in cents.
func (r *OrderRepo) RevenueSince(ctx context.Context, storeID string, since time.Time) (int64, error) {
	var cents int64
	err := r.db.GetContext(ctx, &cents, r.db.Rebind(`
	  SELECT CAST(COALESCE(SUM(total_cents), 0) AS BIGINT)
	  FROM orders
	  WHERE store_id = ? AND created_at >= ? AND status IN (?, ?)
	`), storeID, since, string(domain.OrderStatusPaid), string(domain.OrderStatusCompleted))
	return cents, err
}

type topProductRow struct {
	ProductID    string `db:"product_id"`
	Name         string `db:"name"`
	Quantity     int    `db:"quantity"`
	RevenueCents int64  `db:"revenue_cents"`
}

// TopProductsSince ranks products by units sold in paid and completed orders.
func (r *OrderRepo) TopProductsSince(ctx context.Context, storeID string, since time.Time, limit int) ([]domain.TopProduct, error) {
	var rows []topProductRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
	  SELECT oi.product_id AS product_id,
	         MAX(oi.product_name) AS name,
	         CAST(SUM(oi.quantity) AS BIGINT) AS quantity,
	         CAST(SUM(oi.total_cents) AS BIGINT) AS revenue_cents
	  FROM order_items oi
	  JOIN orders o ON o.id = oi.order_id
	  WHERE o.store_id = ? AND o.created_at >= ? AND o.status IN (?, ?)
	  GROUP BY oi.product_id
	  ORDER BY quantity DESC, product_id
	  LIMIT ?
	`), storeID, since, string(domain.OrderStatusPaid), string(domain.OrderStatusCompleted), limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TopProduct, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.TopProduct{
			ProductID: row.ProductID,
			Name:      row.Name,
			Quantity:  row.Quantity,
			Revenue:   domain.FromCents(row.RevenueCents),
		})
	}
	return out, nil
}

type SaleRow struct {
	CreatedAt  time.Time `db:"created_at"`
	TotalCents int64     `db:"total_cents"`
}

// SalesSince lists paid and completed orders for day bucketing.
func (r *OrderRepo) SalesSince(ctx context.Context, storeID string, since time.Time) ([]SaleRow, error) {
	out := []SaleRow{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
	  SELECT created_at, total_cents
	  FROM orders
	  WHERE store_id = ? AND created_at >= ? AND status IN (?, ?)
	  ORDER BY created_at
	`), storeID, since, string(domain.OrderStatusPaid), string(domain.OrderStatusCompleted))
	return out, err
}
