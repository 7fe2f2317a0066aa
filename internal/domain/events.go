package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicOrderPaid          = "order.paid"
)

type OrderCreatedEvent struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	StoreID     string          `json:"store_id"`
	Items       []OrderItem     `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Timestamp   time.Time       `json:"timestamp"`
}

type OrderStatusChangedEvent struct {
	OrderID   string      `json:"order_id"`
	StoreID   string      `json:"store_id"`
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

type OrderPaidEvent struct {
	OrderID           string          `json:"order_id"`
	StoreID           string          `json:"store_id"`
	Total             decimal.Decimal `json:"total"`
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	RazorpayPaymentID string          `json:"razorpay_payment_id"`
	Timestamp         time.Time       `json:"timestamp"`
}
