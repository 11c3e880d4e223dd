// Package order implements the event-sourced order aggregate: its value
// objects, domain events, command types, and the state machine that
// enforces the order's invariants.
package order

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	orderflow "github.com/orderflow-io/orderflow"
)

// AggregateType is the stream category for order aggregates.
const AggregateType = "Order"

// Domain limits.
const (
	MinItems        = 1
	MaxItems        = 50
	MaxItemQuantity = 1000

	// MinTotalCents and MaxTotalCents bound the order total: [$1.00, $50,000.00].
	MinTotalCents int64 = 100
	MaxTotalCents int64 = 5_000_000

	// TaxRateBasisPoints is the flat tax rate applied to the subtotal (8.5%).
	TaxRateBasisPoints int64 = 850
)

// ItemInput describes a line item in a create or add-item command.
type ItemInput struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unitPrice"`
}

// Order is the event-sourced order aggregate. Command methods validate
// preconditions against current state and record events; state itself only
// changes in ApplyEvent, so replaying the stream rebuilds the aggregate
// deterministically.
type Order struct {
	orderflow.AggregateBase

	customerID      string
	orderNumber     string
	status          Status
	items           map[string]OrderItem
	subtotal        Money
	tax             Money
	total           Money
	shippingAddress Address
	billingAddress  *Address
	paymentInfo     PaymentInfo
	shippingInfo    ShippingInfo
	createdAt       time.Time
	updatedAt       time.Time
	cancelledAt     *time.Time
}

var _ orderflow.Aggregate = (*Order)(nil)
var _ orderflow.Snapshotter = (*Order)(nil)

// NewOrder creates an empty order aggregate with the given ID.
func NewOrder(id string) *Order {
	return &Order{
		AggregateBase: orderflow.NewAggregateBase(id, AggregateType),
		items:         make(map[string]OrderItem),
	}
}

// CustomerID returns the customer who placed the order.
func (o *Order) CustomerID() string { return o.customerID }

// OrderNumber returns the human-readable order number.
func (o *Order) OrderNumber() string { return o.orderNumber }

// Status returns the current order status.
func (o *Order) Status() Status { return o.status }

// Subtotal returns the sum of all line totals.
func (o *Order) Subtotal() Money { return o.subtotal }

// Tax returns the tax amount.
func (o *Order) Tax() Money { return o.tax }

// Total returns the order total (subtotal + tax + shipping).
func (o *Order) Total() Money { return o.total }

// PaymentInfo returns the current payment info.
func (o *Order) PaymentInfo() PaymentInfo { return o.paymentInfo }

// ShippingInfo returns the current shipping info.
func (o *Order) ShippingInfo() ShippingInfo { return o.shippingInfo }

// ShippingAddress returns the shipping address.
func (o *Order) ShippingAddress() Address { return o.shippingAddress }

// BillingAddress returns the billing address, or nil if none was given.
func (o *Order) BillingAddress() *Address { return o.billingAddress }

// CreatedAt returns when the order was created.
func (o *Order) CreatedAt() time.Time { return o.createdAt }

// CancelledAt returns when the order was cancelled, or nil.
func (o *Order) CancelledAt() *time.Time { return o.cancelledAt }

// Items returns the order's line items sorted by item ID.
func (o *Order) Items() []OrderItem {
	items := make([]OrderItem, 0, len(o.items))
	for _, it := range o.items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items
}

// ItemCount returns the number of line items.
func (o *Order) ItemCount() int { return len(o.items) }

// exists reports whether the creation event has been applied.
func (o *Order) exists() bool { return o.status != "" }

// Create initializes the order. It validates the customer, items,
// addresses, and payment details, computes the totals, and emits
// OrderCreated. The first event on every order stream is OrderCreated.
func (o *Order) Create(customerID string, items []ItemInput, shippingAddress Address, billingAddress *Address, payment PaymentInfo, shipping ShippingInfo) error {
	if o.exists() {
		return NewBusinessRuleError("order-exists", "order has already been created")
	}
	if customerID == "" {
		return NewValidationError("customerId", "customer ID is required")
	}
	if len(items) < MinItems {
		return NewBusinessRuleError("min-items", "order must contain at least one item")
	}
	if len(items) > MaxItems {
		return NewBusinessRuleError("max-items", fmt.Sprintf("order cannot contain more than %d items", MaxItems))
	}
	if err := shippingAddress.Validate(); err != nil {
		return err
	}
	if billingAddress != nil {
		if err := billingAddress.Validate(); err != nil {
			return err
		}
	}
	if err := payment.Validate(); err != nil {
		return err
	}

	currency := items[0].UnitPrice.Currency
	lines := make([]OrderItem, 0, len(items))
	for _, in := range items {
		if err := validateItemInput(in, currency); err != nil {
			return err
		}
		lines = append(lines, OrderItem{
			ItemID:    uuid.NewString(),
			ProductID: in.ProductID,
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			LineTotal: in.UnitPrice.MultiplyInt(int64(in.Quantity)),
		})
	}

	shippingCost := shipping.Cost
	if shippingCost.IsZero() {
		shippingCost = Money{Amount: 0, Currency: currency}
		shipping.Cost = shippingCost
	}
	if shippingCost.Currency != currency {
		return NewCurrencyMismatchError(currency, shippingCost.Currency)
	}

	subtotal, tax, total, err := computeTotals(lines, shippingCost)
	if err != nil {
		return err
	}
	if err := checkTotalBounds(total); err != nil {
		return err
	}

	now := time.Now().UTC()
	o.raise(OrderCreated{
		OrderID:         o.AggregateID(),
		CustomerID:      customerID,
		OrderNumber:     NewOrderNumber(now),
		Items:           lines,
		ShippingAddress: shippingAddress,
		BillingAddress:  billingAddress,
		PaymentInfo:     payment,
		ShippingInfo:    shipping,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           total,
		CreatedAt:       now,
	})
	return nil
}

// ChangeStatus transitions the order to a new status. Setting the current
// status again is a no-op. Transitions not in the status table are rejected.
func (o *Order) ChangeStatus(to Status, reason, changedBy string) error {
	if !o.exists() {
		return ErrOrderNotFound
	}
	if to == o.status {
		return nil
	}
	if !to.IsValid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}
	if !o.status.CanTransitionTo(to) {
		return NewInvalidStatusTransitionError(o.status, to)
	}

	o.raise(OrderStatusChanged{
		OrderID:   o.AggregateID(),
		From:      o.status,
		To:        to,
		Reason:    reason,
		ChangedBy: changedBy,
		ChangedAt: time.Now().UTC(),
	})
	return nil
}

// AddItem adds a line item. If the product is already on the order the
// quantities are merged into the existing line instead of duplicating it.
func (o *Order) AddItem(in ItemInput) error {
	if !o.exists() {
		return ErrOrderNotFound
	}
	if !o.isModifiable() {
		return NewBusinessRuleError("not-modifiable", fmt.Sprintf("cannot add items to an order in status %s", o.status))
	}
	if err := validateItemInput(in, o.currency()); err != nil {
		return err
	}

	var line OrderItem
	merged := false
	if existing, ok := o.findByProduct(in.ProductID); ok {
		newQty := existing.Quantity + in.Quantity
		if newQty > MaxItemQuantity {
			return NewBusinessRuleError("max-quantity", fmt.Sprintf("quantity cannot exceed %d", MaxItemQuantity))
		}
		line = existing
		line.Quantity = newQty
		line.LineTotal = line.UnitPrice.MultiplyInt(int64(newQty))
		merged = true
	} else {
		if len(o.items)+1 > MaxItems {
			return NewBusinessRuleError("max-items", fmt.Sprintf("order cannot contain more than %d items", MaxItems))
		}
		line = OrderItem{
			ItemID:    uuid.NewString(),
			ProductID: in.ProductID,
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			LineTotal: in.UnitPrice.MultiplyInt(int64(in.Quantity)),
		}
	}

	subtotal, tax, total, err := o.totalsWith(line, "")
	if err != nil {
		return err
	}
	if err := checkTotalBounds(total); err != nil {
		return err
	}

	o.raise(OrderItemAdded{
		OrderID:  o.AggregateID(),
		Item:     line,
		Merged:   merged,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    total,
	})
	return nil
}

// RemoveItem removes a line item. The last remaining item cannot be
// removed; cancel the order instead.
func (o *Order) RemoveItem(itemID string) error {
	if !o.exists() {
		return ErrOrderNotFound
	}
	if !o.isModifiable() {
		return NewBusinessRuleError("not-modifiable", fmt.Sprintf("cannot remove items from an order in status %s", o.status))
	}
	if _, ok := o.items[itemID]; !ok {
		return NewValidationError("itemId", fmt.Sprintf("item %q not found", itemID))
	}
	if len(o.items) == 1 {
		return NewBusinessRuleError("min-items", "cannot remove the last item; cancel the order instead")
	}

	subtotal, tax, total, err := o.totalsWith(OrderItem{}, itemID)
	if err != nil {
		return err
	}
	if err := checkTotalBounds(total); err != nil {
		return err
	}

	o.raise(OrderItemRemoved{
		OrderID:  o.AggregateID(),
		ItemID:   itemID,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    total,
	})
	return nil
}

// UpdateItemQuantity changes the quantity on an existing line.
// A quantity of zero or less removes the item.
func (o *Order) UpdateItemQuantity(itemID string, newQty int) error {
	if newQty <= 0 {
		return o.RemoveItem(itemID)
	}
	if !o.exists() {
		return ErrOrderNotFound
	}
	if !o.isModifiable() {
		return NewBusinessRuleError("not-modifiable", fmt.Sprintf("cannot update items on an order in status %s", o.status))
	}
	item, ok := o.items[itemID]
	if !ok {
		return NewValidationError("itemId", fmt.Sprintf("item %q not found", itemID))
	}
	if newQty > MaxItemQuantity {
		return NewBusinessRuleError("max-quantity", fmt.Sprintf("quantity cannot exceed %d", MaxItemQuantity))
	}
	if newQty == item.Quantity {
		return nil
	}

	updated := item
	updated.Quantity = newQty
	updated.LineTotal = updated.UnitPrice.MultiplyInt(int64(newQty))

	subtotal, tax, total, err := o.totalsWith(updated, "")
	if err != nil {
		return err
	}
	if err := checkTotalBounds(total); err != nil {
		return err
	}

	o.raise(OrderItemQuantityChanged{
		OrderID:     o.AggregateID(),
		ItemID:      itemID,
		OldQuantity: item.Quantity,
		NewQuantity: newQty,
		LineTotal:   updated.LineTotal,
		Subtotal:    subtotal,
		Tax:         tax,
		Total:       total,
	})
	return nil
}

// UpdatePaymentInfo records new payment details. A captured payment on a
// pending order confirms it; a failed payment on a pending order cancels it.
func (o *Order) UpdatePaymentInfo(info PaymentInfo) error {
	if !o.exists() {
		return ErrOrderNotFound
	}
	if o.isClosed() {
		return NewBusinessRuleError("order-closed", fmt.Sprintf("cannot update payment on an order in status %s", o.status))
	}
	if err := info.Validate(); err != nil {
		return err
	}

	o.raise(OrderPaymentUpdated{
		OrderID:     o.AggregateID(),
		PaymentInfo: info,
		UpdatedAt:   time.Now().UTC(),
	})

	switch {
	case info.Status == PaymentStatusCaptured && o.status == StatusPending:
		return o.ChangeStatus(StatusConfirmed, "payment captured", "system")
	case info.Status == PaymentStatusFailed && o.status == StatusPending:
		return o.Cancel("payment failed", "system")
	}
	return nil
}

// UpdateShippingInfo records new shipping details and recomputes the total
// when the shipping cost changes. A tracking number appearing while the
// order is processing marks it shipped.
func (o *Order) UpdateShippingInfo(info ShippingInfo) error {
	if !o.exists() {
		return ErrOrderNotFound
	}
	if o.isClosed() {
		return NewBusinessRuleError("order-closed", fmt.Sprintf("cannot update shipping on an order in status %s", o.status))
	}

	cost := info.Cost
	if cost.IsZero() {
		cost = Money{Amount: 0, Currency: o.currency()}
		info.Cost = cost
	}
	if cost.Currency != o.currency() {
		return NewCurrencyMismatchError(o.currency(), cost.Currency)
	}

	total, err := o.subtotal.Add(o.tax)
	if err != nil {
		return err
	}
	total, err = total.Add(cost)
	if err != nil {
		return err
	}
	if err := checkTotalBounds(total); err != nil {
		return err
	}

	o.raise(OrderShippingUpdated{
		OrderID:      o.AggregateID(),
		ShippingInfo: info,
		Total:        total,
		UpdatedAt:    time.Now().UTC(),
	})

	if info.TrackingNumber != "" && o.status == StatusProcessing {
		return o.ChangeStatus(StatusShipped, "tracking number assigned", "system")
	}
	return nil
}

// Cancel cancels the order. A refund amount equal to the full total is
// recorded only when payment had been captured.
func (o *Order) Cancel(reason, cancelledBy string) error {
	if !o.exists() {
		return ErrOrderNotFound
	}
	if o.isClosed() {
		return NewBusinessRuleError("order-closed", fmt.Sprintf("cannot cancel an order in status %s", o.status))
	}
	if reason == "" {
		return NewValidationError("reason", "cancellation reason is required")
	}

	var refund *Money
	if o.paymentInfo.Status == PaymentStatusCaptured {
		amount := o.total
		refund = &amount
	}

	o.raise(OrderCancelled{
		OrderID:      o.AggregateID(),
		Reason:       reason,
		CancelledBy:  cancelledBy,
		RefundAmount: refund,
		CancelledAt:  time.Now().UTC(),
	})
	return nil
}

// Refund issues a refund against a delivered or cancelled order.
// The amount must share the order's currency and not exceed the total.
func (o *Order) Refund(amount Money, reason, refundedBy, transactionID string) error {
	if !o.exists() {
		return ErrOrderNotFound
	}
	if o.status != StatusDelivered && o.status != StatusCancelled {
		return NewBusinessRuleError("not-refundable", fmt.Sprintf("cannot refund an order in status %s", o.status))
	}
	if !amount.SameCurrency(o.total) {
		return NewCurrencyMismatchError(o.total.Currency, amount.Currency)
	}
	if !amount.IsPositive() {
		return NewValidationError("amount", "refund amount must be positive")
	}
	if amount.GreaterThan(o.total) {
		return NewBusinessRuleError("refund-exceeds-total", "refund amount cannot exceed the order total")
	}
	if reason == "" {
		return NewValidationError("reason", "refund reason is required")
	}

	o.raise(OrderRefunded{
		OrderID:       o.AggregateID(),
		Amount:        amount,
		Reason:        reason,
		RefundedBy:    refundedBy,
		TransactionID: transactionID,
		RefundedAt:    time.Now().UTC(),
	})
	return nil
}

// raise records the event and runs it through the reducer.
func (o *Order) raise(event interface{}) {
	o.Record(event)
	if err := o.ApplyEvent(event); err != nil {
		panic(fmt.Sprintf("order: raised event failed to apply: %v", err))
	}
}

// ApplyEvent is the pure reducer: it folds one event into the aggregate
// state and advances the version. The switch is exhaustive over the order
// event family; unknown events are an error rather than a silent no-op.
func (o *Order) ApplyEvent(event interface{}) error {
	switch e := event.(type) {
	case OrderCreated:
		o.customerID = e.CustomerID
		o.orderNumber = e.OrderNumber
		o.status = StatusPending
		o.items = make(map[string]OrderItem, len(e.Items))
		for _, it := range e.Items {
			o.items[it.ItemID] = it
		}
		o.shippingAddress = e.ShippingAddress
		o.billingAddress = e.BillingAddress
		o.paymentInfo = e.PaymentInfo
		o.shippingInfo = e.ShippingInfo
		o.subtotal = e.Subtotal
		o.tax = e.Tax
		o.total = e.Total
		o.createdAt = e.CreatedAt
		o.updatedAt = e.CreatedAt

	case OrderStatusChanged:
		o.status = e.To
		o.updatedAt = e.ChangedAt

	case OrderItemAdded:
		o.items[e.Item.ItemID] = e.Item
		o.subtotal = e.Subtotal
		o.tax = e.Tax
		o.total = e.Total

	case OrderItemRemoved:
		delete(o.items, e.ItemID)
		o.subtotal = e.Subtotal
		o.tax = e.Tax
		o.total = e.Total

	case OrderItemQuantityChanged:
		item := o.items[e.ItemID]
		item.Quantity = e.NewQuantity
		item.LineTotal = e.LineTotal
		o.items[e.ItemID] = item
		o.subtotal = e.Subtotal
		o.tax = e.Tax
		o.total = e.Total

	case OrderPaymentUpdated:
		o.paymentInfo = e.PaymentInfo
		o.updatedAt = e.UpdatedAt

	case OrderShippingUpdated:
		o.shippingInfo = e.ShippingInfo
		o.total = e.Total
		o.updatedAt = e.UpdatedAt

	case OrderCancelled:
		o.status = StatusCancelled
		cancelledAt := e.CancelledAt
		o.cancelledAt = &cancelledAt
		o.updatedAt = e.CancelledAt

	case OrderRefunded:
		o.status = StatusRefunded
		o.paymentInfo.Status = PaymentStatusRefunded
		if e.TransactionID != "" {
			o.paymentInfo.TransactionID = e.TransactionID
		}
		o.updatedAt = e.RefundedAt

	default:
		return fmt.Errorf("order: unknown event type %T", event)
	}

	o.IncrementVersion()
	return nil
}

// Replay rebuilds an order from its ordered event stream.
func Replay(id string, events []interface{}) (*Order, error) {
	o := NewOrder(id)
	for i, event := range events {
		if err := o.ApplyEvent(event); err != nil {
			return nil, fmt.Errorf("order: replay failed at event %d: %w", i, err)
		}
	}
	o.ClearUncommittedEvents()
	return o, nil
}

func (o *Order) isModifiable() bool {
	return o.status == StatusPending || o.status == StatusConfirmed
}

func (o *Order) isClosed() bool {
	switch o.status {
	case StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

func (o *Order) currency() string {
	return o.total.Currency
}

func (o *Order) findByProduct(productID string) (OrderItem, bool) {
	for _, it := range o.items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return OrderItem{}, false
}

// totalsWith computes the order totals with one line replaced or removed.
// Pass a line with a non-empty ItemID to upsert it, or removeID to drop one.
func (o *Order) totalsWith(line OrderItem, removeID string) (subtotal, tax, total Money, err error) {
	items := make([]OrderItem, 0, len(o.items)+1)
	for id, it := range o.items {
		if id == removeID || (line.ItemID != "" && id == line.ItemID) {
			continue
		}
		items = append(items, it)
	}
	if line.ItemID != "" {
		items = append(items, line)
	}
	return computeTotals(items, o.shippingInfo.Cost)
}

func computeTotals(items []OrderItem, shippingCost Money) (subtotal, tax, total Money, err error) {
	if len(items) == 0 {
		return Money{}, Money{}, Money{}, NewBusinessRuleError("min-items", "order must contain at least one item")
	}
	subtotal = Money{Amount: 0, Currency: items[0].UnitPrice.Currency}
	for _, it := range items {
		subtotal, err = subtotal.Add(it.LineTotal)
		if err != nil {
			return Money{}, Money{}, Money{}, err
		}
	}
	tax = subtotal.Percent(TaxRateBasisPoints)
	total, err = subtotal.Add(tax)
	if err != nil {
		return Money{}, Money{}, Money{}, err
	}
	if !shippingCost.IsZero() {
		total, err = total.Add(shippingCost)
		if err != nil {
			return Money{}, Money{}, Money{}, err
		}
	}
	return subtotal, tax, total, nil
}

func checkTotalBounds(total Money) error {
	if total.Amount < MinTotalCents {
		return NewBusinessRuleError("min-total", fmt.Sprintf("order total %s is below the $1.00 minimum", total))
	}
	if total.Amount > MaxTotalCents {
		return NewBusinessRuleError("max-total", fmt.Sprintf("order total %s exceeds the $50,000.00 maximum", total))
	}
	return nil
}

func validateItemInput(in ItemInput, currency string) error {
	if in.ProductID == "" {
		return NewValidationError("productId", "product ID is required")
	}
	if in.Quantity < 1 || in.Quantity > MaxItemQuantity {
		return NewValidationError("quantity", fmt.Sprintf("quantity must be between 1 and %d", MaxItemQuantity))
	}
	if !in.UnitPrice.IsPositive() {
		return NewValidationError("unitPrice", "unit price must be positive")
	}
	if in.UnitPrice.Currency != currency {
		return NewCurrencyMismatchError(currency, in.UnitPrice.Currency)
	}
	return nil
}

// orderSnapshot is the serialized snapshot form of the aggregate.
type orderSnapshot struct {
	CustomerID      string               `json:"customerId"`
	OrderNumber     string               `json:"orderNumber"`
	Status          Status               `json:"status"`
	Items           map[string]OrderItem `json:"items"`
	Subtotal        Money                `json:"subtotal"`
	Tax             Money                `json:"tax"`
	Total           Money                `json:"total"`
	ShippingAddress Address              `json:"shippingAddress"`
	BillingAddress  *Address             `json:"billingAddress,omitempty"`
	PaymentInfo     PaymentInfo          `json:"paymentInfo"`
	ShippingInfo    ShippingInfo         `json:"shippingInfo"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	CancelledAt     *time.Time           `json:"cancelledAt,omitempty"`
}

// Snapshot serializes the aggregate state at its current version.
// Restoring the snapshot and replaying the event tail must produce state
// identical to a full replay from the first event.
func (o *Order) Snapshot() ([]byte, int64, error) {
	snap := orderSnapshot{
		CustomerID:      o.customerID,
		OrderNumber:     o.orderNumber,
		Status:          o.status,
		Items:           o.items,
		Subtotal:        o.subtotal,
		Tax:             o.tax,
		Total:           o.total,
		ShippingAddress: o.shippingAddress,
		BillingAddress:  o.billingAddress,
		PaymentInfo:     o.paymentInfo,
		ShippingInfo:    o.shippingInfo,
		CreatedAt:       o.createdAt,
		UpdatedAt:       o.updatedAt,
		CancelledAt:     o.cancelledAt,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, 0, err
	}
	return data, o.Version(), nil
}

// RestoreSnapshot restores aggregate state from a snapshot taken at version.
func (o *Order) RestoreSnapshot(data []byte, version int64) error {
	var snap orderSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	o.customerID = snap.CustomerID
	o.orderNumber = snap.OrderNumber
	o.status = snap.Status
	o.items = snap.Items
	if o.items == nil {
		o.items = make(map[string]OrderItem)
	}
	o.subtotal = snap.Subtotal
	o.tax = snap.Tax
	o.total = snap.Total
	o.shippingAddress = snap.ShippingAddress
	o.billingAddress = snap.BillingAddress
	o.paymentInfo = snap.PaymentInfo
	o.shippingInfo = snap.ShippingInfo
	o.createdAt = snap.CreatedAt
	o.updatedAt = snap.UpdatedAt
	o.cancelledAt = snap.CancelledAt
	o.SetVersion(version)
	return nil
}
