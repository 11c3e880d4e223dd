package order

import (
	"time"
)

// Domain events for the order aggregate. Events carry the recomputed
// totals so the reducer applies them without re-deriving money amounts,
// keeping replay a pure assignment.

// OrderCreated is the first event on every order stream.
type OrderCreated struct {
	OrderID         string       `json:"orderId"`
	CustomerID      string       `json:"customerId"`
	OrderNumber     string       `json:"orderNumber"`
	Items           []OrderItem  `json:"items"`
	ShippingAddress Address      `json:"shippingAddress"`
	BillingAddress  *Address     `json:"billingAddress,omitempty"`
	PaymentInfo     PaymentInfo  `json:"paymentInfo"`
	ShippingInfo    ShippingInfo `json:"shippingInfo"`
	Subtotal        Money        `json:"subtotal"`
	Tax             Money        `json:"tax"`
	Total           Money        `json:"total"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// OrderStatusChanged records a transition in the order state machine.
type OrderStatusChanged struct {
	OrderID   string    `json:"orderId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	ChangedBy string    `json:"changedBy,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

// OrderItemAdded records a new or merged line item. Item holds the
// resulting line: when Merged is true the quantity is the post-merge total.
type OrderItemAdded struct {
	OrderID  string    `json:"orderId"`
	Item     OrderItem `json:"item"`
	Merged   bool      `json:"merged,omitempty"`
	Subtotal Money     `json:"subtotal"`
	Tax      Money     `json:"tax"`
	Total    Money     `json:"total"`
}

// OrderItemRemoved records the removal of a line item.
type OrderItemRemoved struct {
	OrderID  string `json:"orderId"`
	ItemID   string `json:"itemId"`
	Subtotal Money  `json:"subtotal"`
	Tax      Money  `json:"tax"`
	Total    Money  `json:"total"`
}

// OrderItemQuantityChanged records a quantity update on an existing line.
type OrderItemQuantityChanged struct {
	OrderID     string `json:"orderId"`
	ItemID      string `json:"itemId"`
	OldQuantity int    `json:"oldQuantity"`
	NewQuantity int    `json:"newQuantity"`
	LineTotal   Money  `json:"lineTotal"`
	Subtotal    Money  `json:"subtotal"`
	Tax         Money  `json:"tax"`
	Total       Money  `json:"total"`
}

// OrderPaymentUpdated records a change to the order's payment info.
type OrderPaymentUpdated struct {
	OrderID     string      `json:"orderId"`
	PaymentInfo PaymentInfo `json:"paymentInfo"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// OrderShippingUpdated records a change to the order's shipping info.
// Total reflects the recomputed amount when the shipping cost changed.
type OrderShippingUpdated struct {
	OrderID      string       `json:"orderId"`
	ShippingInfo ShippingInfo `json:"shippingInfo"`
	Total        Money        `json:"total"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// OrderCancelled records the cancellation of an order.
// RefundAmount is set only when payment had been captured.
type OrderCancelled struct {
	OrderID      string    `json:"orderId"`
	Reason       string    `json:"reason"`
	CancelledBy  string    `json:"cancelledBy,omitempty"`
	RefundAmount *Money    `json:"refundAmount,omitempty"`
	CancelledAt  time.Time `json:"cancelledAt"`
}

// OrderRefunded records a refund issued against the order.
type OrderRefunded struct {
	OrderID       string    `json:"orderId"`
	Amount        Money     `json:"amount"`
	Reason        string    `json:"reason"`
	RefundedBy    string    `json:"refundedBy,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	RefundedAt    time.Time `json:"refundedAt"`
}

// Events returns an instance of every order event type for registration
// with the event serializer.
func Events() []interface{} {
	return []interface{}{
		OrderCreated{},
		OrderStatusChanged{},
		OrderItemAdded{},
		OrderItemRemoved{},
		OrderItemQuantityChanged{},
		OrderPaymentUpdated{},
		OrderShippingUpdated{},
		OrderCancelled{},
		OrderRefunded{},
	}
}
