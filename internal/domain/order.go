package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = map[OrderStatus]bool{
	OrderStatusPending:    true,
	OrderStatusPaid:       true,
	OrderStatusProcessing: true,
	OrderStatusShipped:    true,
	OrderStatusDelivered:  true,
	OrderStatusCompleted:  true,
	OrderStatusCancelled:  true,
}

func (s OrderStatus) Valid() bool { return orderStatuses[s] }

// Revenue reports whether orders in this status count towards sales.
func (s OrderStatus) Revenue() bool {
	return s == OrderStatusPaid || s == OrderStatusCompleted
}

const PaymentStatusCompleted = "completed"

type CustomerInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// OrderItem is a snapshot of the product taken when the order was placed.
type OrderItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
}

type Order struct {
	ID                 string          `json:"id"`
	OrderNumber        string          `json:"orderNumber"`
	StoreID            string          `json:"storeId"`
	Items              []OrderItem     `json:"items"`
	Total              decimal.Decimal `json:"total"`
	Status             OrderStatus     `json:"status"`
	CustomerInfo       CustomerInfo    `json:"customerInfo"`
	PaymentStatus      string          `json:"paymentStatus,omitempty"`
	RazorpayOrderID    string          `json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID  string          `json:"razorpayPaymentId,omitempty"`
	PaymentCompletedAt *time.Time      `json:"paymentCompletedAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}
