package order

import (
	"fmt"

	orderflow "github.com/orderflow-io/orderflow"
)

// Command type identifiers.
const (
	CmdCreateOrder        = "CreateOrder"
	CmdUpdateOrderStatus  = "UpdateOrderStatus"
	CmdAddOrderItem       = "AddOrderItem"
	CmdRemoveOrderItem    = "RemoveOrderItem"
	CmdUpdateItemQuantity = "UpdateItemQuantity"
	CmdUpdatePaymentInfo  = "UpdatePaymentInfo"
	CmdUpdateShippingInfo = "UpdateShippingInfo"
	CmdCancelOrder        = "CancelOrder"
	CmdRefundOrder        = "RefundOrder"
)

// CreateOrder creates a new order aggregate.
// OrderID may be empty; the handler assigns a new ID.
type CreateOrder struct {
	orderflow.CommandBase

	OrderID         string       `json:"orderId,omitempty"`
	CustomerID      string       `json:"customerId"`
	Items           []ItemInput  `json:"items"`
	ShippingAddress Address      `json:"shippingAddress"`
	BillingAddress  *Address     `json:"billingAddress,omitempty"`
	PaymentInfo     PaymentInfo  `json:"paymentInfo"`
	ShippingInfo    ShippingInfo `json:"shippingInfo"`
}

// CommandType returns the command type identifier.
func (c CreateOrder) CommandType() string { return CmdCreateOrder }

// AggregateID returns the target aggregate ID.
func (c CreateOrder) AggregateID() string { return c.OrderID }

// Validate checks the command's shape. Domain rules (item limits, total
// bounds) are enforced by the aggregate.
func (c CreateOrder) Validate() error {
	errs := orderflow.NewMultiValidationError(CmdCreateOrder)
	if c.CustomerID == "" {
		errs.AddField("customerId", "customer ID is required")
	}
	if len(c.Items) == 0 {
		errs.AddField("items", "at least one item is required")
	}
	for i, item := range c.Items {
		if item.ProductID == "" {
			errs.AddField(fmt.Sprintf("items[%d].productId", i), "product ID is required")
		}
		if item.Quantity < 1 {
			errs.AddField(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive")
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// UpdateOrderStatus transitions an order to a new status.
// The fulfillment saga issues this command to drive the order forward.
type UpdateOrderStatus struct {
	orderflow.CommandBase

	OrderID   string `json:"orderId"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
	ChangedBy string `json:"changedBy,omitempty"`
}

// CommandType returns the command type identifier.
func (c UpdateOrderStatus) CommandType() string { return CmdUpdateOrderStatus }

// AggregateID returns the target aggregate ID.
func (c UpdateOrderStatus) AggregateID() string { return c.OrderID }

// Validate checks the command's shape.
func (c UpdateOrderStatus) Validate() error {
	if c.OrderID == "" {
		return orderflow.NewValidationError(CmdUpdateOrderStatus, "orderId", "order ID is required")
	}
	if !c.Status.IsValid() {
		return orderflow.NewValidationError(CmdUpdateOrderStatus, "status", fmt.Sprintf("unknown status %q", c.Status))
	}
	return nil
}

// AddOrderItem adds a line item to an order.
type AddOrderItem struct {
	orderflow.CommandBase

	OrderID string    `json:"orderId"`
	Item    ItemInput `json:"item"`
}

// CommandType returns the command type identifier.
func (c AddOrderItem) CommandType() string { return CmdAddOrderItem }

// AggregateID returns the target aggregate ID.
func (c AddOrderItem) AggregateID() string { return c.OrderID }

// Validate checks the command's shape.
func (c AddOrderItem) Validate() error {
	if c.OrderID == "" {
		return orderflow.NewValidationError(CmdAddOrderItem, "orderId", "order ID is required")
	}
	if c.Item.ProductID == "" {
		return orderflow.NewValidationError(CmdAddOrderItem, "item.productId", "product ID is required")
	}
	if c.Item.Quantity < 1 {
		return orderflow.NewValidationError(CmdAddOrderItem, "item.quantity", "quantity must be positive")
	}
	return nil
}

// RemoveOrderItem removes a line item from an order.
type RemoveOrderItem struct {
	orderflow.CommandBase

	OrderID string `json:"orderId"`
	ItemID  string `json:"itemId"`
}

// CommandType returns the command type identifier.
func (c RemoveOrderItem) CommandType() string { return CmdRemoveOrderItem }

// AggregateID returns the target aggregate ID.
func (c RemoveOrderItem) AggregateID() string { return c.OrderID }

// Validate checks the command's shape.
func (c RemoveOrderItem) Validate() error {
	if c.OrderID == "" {
		return orderflow.NewValidationError(CmdRemoveOrderItem, "orderId", "order ID is required")
	}
	if c.ItemID == "" {
		return orderflow.NewValidationError(CmdRemoveOrderItem, "itemId", "item ID is required")
	}
	return nil
}

// UpdateItemQuantity changes the quantity on an existing line item.
// A quantity of zero or less removes the item.
type UpdateItemQuantity struct {
	orderflow.CommandBase

	OrderID  string `json:"orderId"`
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// CommandType returns the command type identifier.
func (c UpdateItemQuantity) CommandType() string { return CmdUpdateItemQuantity }

// AggregateID returns the target aggregate ID.
func (c UpdateItemQuantity) AggregateID() string { return c.OrderID }

// Validate checks the command's shape.
func (c UpdateItemQuantity) Validate() error {
	if c.OrderID == "" {
		return orderflow.NewValidationError(CmdUpdateItemQuantity, "orderId", "order ID is required")
	}
	if c.ItemID == "" {
		return orderflow.NewValidationError(CmdUpdateItemQuantity, "itemId", "item ID is required")
	}
	return nil
}

// UpdatePaymentInfo records new payment details on an order.
type UpdatePaymentInfo struct {
	orderflow.CommandBase

	OrderID     string      `json:"orderId"`
	PaymentInfo PaymentInfo `json:"paymentInfo"`
}

// CommandType returns the command type identifier.
func (c UpdatePaymentInfo) CommandType() string { return CmdUpdatePaymentInfo }

// AggregateID returns the target aggregate ID.
func (c UpdatePaymentInfo) AggregateID() string { return c.OrderID }

// Validate checks the command's shape.
func (c UpdatePaymentInfo) Validate() error {
	if c.OrderID == "" {
		return orderflow.NewValidationError(CmdUpdatePaymentInfo, "orderId", "order ID is required")
	}
	if err := c.PaymentInfo.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateShippingInfo records new shipping details on an order.
type UpdateShippingInfo struct {
	orderflow.CommandBase

	OrderID      string       `json:"orderId"`
	ShippingInfo ShippingInfo `json:"shippingInfo"`
}

// CommandType returns the command type identifier.
func (c UpdateShippingInfo) CommandType() string { return CmdUpdateShippingInfo }

// AggregateID returns the target aggregate ID.
func (c UpdateShippingInfo) AggregateID() string { return c.OrderID }

// Validate checks the command's shape.
func (c UpdateShippingInfo) Validate() error {
	if c.OrderID == "" {
		return orderflow.NewValidationError(CmdUpdateShippingInfo, "orderId", "order ID is required")
	}
	return nil
}

// CancelOrder cancels an order. The fulfillment saga issues this command
// when orchestration fails.
type CancelOrder struct {
	orderflow.CommandBase

	OrderID     string `json:"orderId"`
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelledBy,omitempty"`
}

// CommandType returns the command type identifier.
func (c CancelOrder) CommandType() string { return CmdCancelOrder }

// AggregateID returns the target aggregate ID.
func (c CancelOrder) AggregateID() string { return c.OrderID }

// Validate checks the command's shape.
func (c CancelOrder) Validate() error {
	if c.OrderID == "" {
		return orderflow.NewValidationError(CmdCancelOrder, "orderId", "order ID is required")
	}
	if c.Reason == "" {
		return orderflow.NewValidationError(CmdCancelOrder, "reason", "cancellation reason is required")
	}
	return nil
}

// RefundOrder issues a refund against a delivered or cancelled order.
type RefundOrder struct {
	orderflow.CommandBase

	OrderID       string `json:"orderId"`
	Amount        Money  `json:"amount"`
	Reason        string `json:"reason"`
	RefundedBy    string `json:"refundedBy,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

// CommandType returns the command type identifier.
func (c RefundOrder) CommandType() string { return CmdRefundOrder }

// AggregateID returns the target aggregate ID.
func (c RefundOrder) AggregateID() string { return c.OrderID }

// Validate checks the command's shape.
func (c RefundOrder) Validate() error {
	if c.OrderID == "" {
		return orderflow.NewValidationError(CmdRefundOrder, "orderId", "order ID is required")
	}
	if c.Reason == "" {
		return orderflow.NewValidationError(CmdRefundOrder, "reason", "refund reason is required")
	}
	return nil
}
