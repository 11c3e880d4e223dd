package order

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItems() []ItemInput {
	return []ItemInput{
		{ProductID: "prod-widget", Name: "Widget", Quantity: 2, UnitPrice: MustMoney(1500, "USD")},
		{ProductID: "prod-gadget", Name: "Gadget", Quantity: 1, UnitPrice: MustMoney(2500, "USD")},
	}
}

func testAddress() Address {
	return Address{
		Street:     "1 Main St",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62701",
		Country:    "US",
	}
}

func testPayment() PaymentInfo {
	return PaymentInfo{Method: PaymentMethodCard, Status: PaymentStatusPending}
}

func newCreatedOrder(t *testing.T) *Order {
	t.Helper()
	o := NewOrder("order-1")
	require.NoError(t, o.Create("cust-1", testItems(), testAddress(), nil, testPayment(), ShippingInfo{}))
	o.ClearUncommittedEvents()
	return o
}

func TestOrderCreate(t *testing.T) {
	t.Run("creates a pending order with computed totals", func(t *testing.T) {
		o := NewOrder("order-1")
		err := o.Create("cust-1", testItems(), testAddress(), nil, testPayment(), ShippingInfo{})
		require.NoError(t, err)

		assert.Equal(t, StatusPending, o.Status())
		assert.Equal(t, "cust-1", o.CustomerID())
		assert.True(t, strings.HasPrefix(o.OrderNumber(), "ORD-"))
		assert.Equal(t, 2, o.ItemCount())

		// 2 x 15.00 + 1 x 25.00 = 55.00, tax 8.5% = 4.68
		assert.Equal(t, MustMoney(5500, "USD"), o.Subtotal())
		assert.Equal(t, MustMoney(468, "USD"), o.Tax())
		assert.Equal(t, MustMoney(5968, "USD"), o.Total())

		assert.Equal(t, int64(1), o.Version())
		events := o.UncommittedEvents()
		require.Len(t, events, 1)
		created, ok := events[0].(OrderCreated)
		require.True(t, ok)
		assert.Equal(t, "order-1", created.OrderID)
		assert.Len(t, created.Items, 2)
		for _, it := range created.Items {
			assert.NotEmpty(t, it.ItemID)
			assert.Equal(t, it.UnitPrice.MultiplyInt(int64(it.Quantity)), it.LineTotal)
		}
	})

	t.Run("single 15 dollar item yields 1.28 tax", func(t *testing.T) {
		o := NewOrder("order-1")
		items := []ItemInput{{ProductID: "p1", Quantity: 1, UnitPrice: MustMoney(1500, "USD")}}
		require.NoError(t, o.Create("cust-1", items, testAddress(), nil, testPayment(), ShippingInfo{}))

		assert.Equal(t, MustMoney(128, "USD"), o.Tax())
		assert.Equal(t, MustMoney(1628, "USD"), o.Total())
	})

	t.Run("shipping cost is added to the total", func(t *testing.T) {
		o := NewOrder("order-1")
		shipping := ShippingInfo{Carrier: "UPS", Cost: MustMoney(500, "USD")}
		require.NoError(t, o.Create("cust-1", testItems(), testAddress(), nil, testPayment(), shipping))

		assert.Equal(t, MustMoney(6468, "USD"), o.Total())
		assert.Equal(t, MustMoney(500, "USD"), o.ShippingInfo().Cost)
	})

	t.Run("zero shipping cost defaults to the order currency", func(t *testing.T) {
		o := newCreatedOrder(t)
		assert.Equal(t, MustMoney(0, "USD"), o.ShippingInfo().Cost)
	})

	t.Run("rejects a second create", func(t *testing.T) {
		o := newCreatedOrder(t)
		err := o.Create("cust-1", testItems(), testAddress(), nil, testPayment(), ShippingInfo{})
		assert.ErrorIs(t, err, ErrBusinessRule)
	})

	t.Run("requires a customer", func(t *testing.T) {
		o := NewOrder("order-1")
		err := o.Create("", testItems(), testAddress(), nil, testPayment(), ShippingInfo{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("requires at least one item", func(t *testing.T) {
		o := NewOrder("order-1")
		err := o.Create("cust-1", nil, testAddress(), nil, testPayment(), ShippingInfo{})
		assert.ErrorIs(t, err, ErrBusinessRule)
	})

	t.Run("rejects more than 50 items", func(t *testing.T) {
		items := make([]ItemInput, MaxItems+1)
		for i := range items {
			items[i] = ItemInput{ProductID: "p", Quantity: 1, UnitPrice: MustMoney(100, "USD")}
		}
		o := NewOrder("order-1")
		err := o.Create("cust-1", items, testAddress(), nil, testPayment(), ShippingInfo{})
		assert.ErrorIs(t, err, ErrBusinessRule)
	})

	t.Run("rejects invalid item quantity", func(t *testing.T) {
		for _, qty := range []int{0, -1, MaxItemQuantity + 1} {
			o := NewOrder("order-1")
			items := []ItemInput{{ProductID: "p1", Quantity: qty, UnitPrice: MustMoney(1500, "USD")}}
			err := o.Create("cust-1", items, testAddress(), nil, testPayment(), ShippingInfo{})
			assert.ErrorIs(t, err, ErrValidation, "quantity %d", qty)
		}
	})

	t.Run("rejects mixed currencies across lines", func(t *testing.T) {
		o := NewOrder("order-1")
		items := []ItemInput{
			{ProductID: "p1", Quantity: 1, UnitPrice: MustMoney(1500, "USD")},
			{ProductID: "p2", Quantity: 1, UnitPrice: MustMoney(1500, "EUR")},
		}
		err := o.Create("cust-1", items, testAddress(), nil, testPayment(), ShippingInfo{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects shipping cost in another currency", func(t *testing.T) {
		o := NewOrder("order-1")
		shipping := ShippingInfo{Cost: MustMoney(500, "EUR")}
		err := o.Create("cust-1", testItems(), testAddress(), nil, testPayment(), shipping)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects totals below the minimum", func(t *testing.T) {
		o := NewOrder("order-1")
		items := []ItemInput{{ProductID: "p1", Quantity: 1, UnitPrice: MustMoney(50, "USD")}}
		err := o.Create("cust-1", items, testAddress(), nil, testPayment(), ShippingInfo{})
		assert.ErrorIs(t, err, ErrBusinessRule)
	})

	t.Run("rejects totals above the maximum", func(t *testing.T) {
		o := NewOrder("order-1")
		items := []ItemInput{{ProductID: "p1", Quantity: 10, UnitPrice: MustMoney(1_000_000, "USD")}}
		err := o.Create("cust-1", items, testAddress(), nil, testPayment(), ShippingInfo{})
		assert.ErrorIs(t, err, ErrBusinessRule)
	})

	t.Run("rejects incomplete addresses", func(t *testing.T) {
		addr := testAddress()
		addr.City = "  "
		o := NewOrder("order-1")
		err := o.Create("cust-1", testItems(), addr, nil, testPayment(), ShippingInfo{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("validates the billing address when present", func(t *testing.T) {
		billing := Address{Street: "2 Side St"}
		o := NewOrder("order-1")
		err := o.Create("cust-1", testItems(), testAddress(), &billing, testPayment(), ShippingInfo{})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects unknown payment methods", func(t *testing.T) {
		o := NewOrder("order-1")
		payment := PaymentInfo{Method: "bitcoin", Status: PaymentStatusPending}
		err := o.Create("cust-1", testItems(), testAddress(), nil, payment, ShippingInfo{})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestOrderChangeStatus(t *testing.T) {
	t.Run("walks the happy path", func(t *testing.T) {
		o := newCreatedOrder(t)
		for _, to := range []Status{StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered} {
			require.NoError(t, o.ChangeStatus(to, "test", "tester"))
			assert.Equal(t, to, o.Status())
		}
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		o := newCreatedOrder(t)
		require.NoError(t, o.ChangeStatus(StatusPending, "", ""))
		assert.Empty(t, o.UncommittedEvents())
		assert.Equal(t, int64(1), o.Version())
	})

	t.Run("rejects transitions outside the table", func(t *testing.T) {
		o := newCreatedOrder(t)
		err := o.ChangeStatus(StatusShipped, "", "")
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)

		var transition *InvalidStatusTransitionError
		require.ErrorAs(t, err, &transition)
		assert.Equal(t, StatusPending, transition.From)
		assert.Equal(t, StatusShipped, transition.To)
	})

	t.Run("rejects unknown statuses", func(t *testing.T) {
		o := newCreatedOrder(t)
		assert.ErrorIs(t, o.ChangeStatus("archived", "", ""), ErrValidation)
	})

	t.Run("rejects leaving a terminal status", func(t *testing.T) {
		o := newCreatedOrder(t)
		require.NoError(t, o.Cancel("changed my mind", "cust-1"))
		assert.ErrorIs(t, o.ChangeStatus(StatusConfirmed, "", ""), ErrInvalidStatusTransition)
	})

	t.Run("requires an existing order", func(t *testing.T) {
		o := NewOrder("order-1")
		assert.ErrorIs(t, o.ChangeStatus(StatusConfirmed, "", ""), ErrOrderNotFound)
	})
}

func TestOrderAddItem(t *testing.T) {
	t.Run("adds a new line", func(t *testing.T) {
		o := newCreatedOrder(t)
		err := o.AddItem(ItemInput{ProductID: "prod-doohickey", Quantity: 3, UnitPrice: MustMoney(200, "USD")})
		require.NoError(t, err)

		assert.Equal(t, 3, o.ItemCount())
		// 55.00 + 6.00 = 61.00, tax 5.19
		assert.Equal(t, MustMoney(6100, "USD"), o.Subtotal())
		assert.Equal(t, MustMoney(519, "USD"), o.Tax())

		events := o.UncommittedEvents()
		require.Len(t, events, 1)
		added := events[0].(OrderItemAdded)
		assert.False(t, added.Merged)
		assert.Equal(t, MustMoney(600, "USD"), added.Item.LineTotal)
	})

	t.Run("merges quantities for an existing product", func(t *testing.T) {
		o := newCreatedOrder(t)
		err := o.AddItem(ItemInput{ProductID: "prod-widget", Quantity: 3, UnitPrice: MustMoney(1500, "USD")})
		require.NoError(t, err)

		assert.Equal(t, 2, o.ItemCount())
		events := o.UncommittedEvents()
		require.Len(t, events, 1)
		added := events[0].(OrderItemAdded)
		assert.True(t, added.Merged)
		assert.Equal(t, 5, added.Item.Quantity)
		assert.Equal(t, MustMoney(7500, "USD"), added.Item.LineTotal)
	})

	t.Run("merge cannot exceed the quantity cap", func(t *testing.T) {
		o := newCreatedOrder(t)
		err := o.AddItem(ItemInput{ProductID: "prod-widget", Quantity: MaxItemQuantity, UnitPrice: MustMoney(1500, "USD")})
		assert.ErrorIs(t, err, ErrBusinessRule)
	})

	t.Run("rejects a currency mismatch", func(t *testing.T) {
		o := newCreatedOrder(t)
		err := o.AddItem(ItemInput{ProductID: "prod-euro", Quantity: 1, UnitPrice: MustMoney(1500, "EUR")})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects additions once processing", func(t *testing.T) {
		o := newCreatedOrder(t)
		require.NoError(t, o.ChangeStatus(StatusConfirmed, "", ""))
		require.NoError(t, o.ChangeStatus(StatusProcessing, "", ""))

		err := o.AddItem(ItemInput{ProductID: "prod-late", Quantity: 1, UnitPrice: MustMoney(500, "USD")})
		assert.ErrorIs(t, err, ErrBusinessRule)
	})
}

func TestOrderRemoveItem(t *testing.T) {
	t.Run("removes a line and recomputes totals", func(t *testing.T) {
		o := newCreatedOrder(t)
		items := o.Items()
		var gadgetID string
		for _, it := range items {
			if it.ProductID == "prod-gadget" {
				gadgetID = it.ItemID
			}
		}
		require.NotEmpty(t, gadgetID)

		require.NoError(t, o.RemoveItem(gadgetID))
		assert.Equal(t, 1, o.ItemCount())
		assert.Equal(t, MustMoney(3000, "USD"), o.Subtotal())
		assert.Equal(t, MustMoney(255, "USD"), o.Tax())
		assert.Equal(t, MustMoney(3255, "USD"), o.Total())
	})

	t.Run("refuses to remove the last item", func(t *testing.T) {
		o := NewOrder("order-1")
		items := []ItemInput{{ProductID: "p1", Quantity: 1, UnitPrice: MustMoney(1500, "USD")}}
		require.NoError(t, o.Create("cust-1", items, testAddress(), nil, testPayment(), ShippingInfo{}))

		err := o.RemoveItem(o.Items()[0].ItemID)
		assert.ErrorIs(t, err, ErrBusinessRule)
		assert.Equal(t, 1, o.ItemCount())
	})

	t.Run("unknown item", func(t *testing.T) {
		o := newCreatedOrder(t)
		assert.ErrorIs(t, o.RemoveItem("nope"), ErrValidation)
	})
}

func TestOrderUpdateItemQuantity(t *testing.T) {
	t.Run("updates the quantity and totals", func(t *testing.T) {
		o := newCreatedOrder(t)
		widgetID := o.Items()[0].ItemID
		if o.Items()[0].ProductID != "prod-widget" {
			widgetID = o.Items()[1].ItemID
		}

		require.NoError(t, o.UpdateItemQuantity(widgetID, 4))
		// 4 x 15.00 + 25.00 = 85.00
		assert.Equal(t, MustMoney(8500, "USD"), o.Subtotal())

		events := o.UncommittedEvents()
		require.Len(t, events, 1)
		changed := events[0].(OrderItemQuantityChanged)
		assert.Equal(t, 2, changed.OldQuantity)
		assert.Equal(t, 4, changed.NewQuantity)
	})

	t.Run("same quantity is a no-op", func(t *testing.T) {
		o := newCreatedOrder(t)
		var widget OrderItem
		for _, it := range o.Items() {
			if it.ProductID == "prod-widget" {
				widget = it
			}
		}
		require.NoError(t, o.UpdateItemQuantity(widget.ItemID, widget.Quantity))
		assert.Empty(t, o.UncommittedEvents())
	})

	t.Run("zero quantity removes the item", func(t *testing.T) {
		o := newCreatedOrder(t)
		itemID := o.Items()[0].ItemID

		require.NoError(t, o.UpdateItemQuantity(itemID, 0))
		assert.Equal(t, 1, o.ItemCount())
		events := o.UncommittedEvents()
		require.Len(t, events, 1)
		assert.IsType(t, OrderItemRemoved{}, events[0])
	})

	t.Run("rejects quantities above the cap", func(t *testing.T) {
		o := newCreatedOrder(t)
		err := o.UpdateItemQuantity(o.Items()[0].ItemID, MaxItemQuantity+1)
		assert.ErrorIs(t, err, ErrBusinessRule)
	})
}

func TestOrderPayment(t *testing.T) {
	t.Run("captured payment confirms a pending order", func(t *testing.T) {
		o := newCreatedOrder(t)
		info := PaymentInfo{Method: PaymentMethodCard, Status: PaymentStatusCaptured, TransactionID: "txn-1"}
		require.NoError(t, o.UpdatePaymentInfo(info))

		assert.Equal(t, StatusConfirmed, o.Status())
		assert.Equal(t, info, o.PaymentInfo())

		events := o.UncommittedEvents()
		require.Len(t, events, 2)
		assert.IsType(t, OrderPaymentUpdated{}, events[0])
		statusChanged := events[1].(OrderStatusChanged)
		assert.Equal(t, StatusPending, statusChanged.From)
		assert.Equal(t, StatusConfirmed, statusChanged.To)
		assert.Equal(t, "system", statusChanged.ChangedBy)
	})

	t.Run("failed payment cancels a pending order without a refund", func(t *testing.T) {
		o := newCreatedOrder(t)
		info := PaymentInfo{Method: PaymentMethodCard, Status: PaymentStatusFailed}
		require.NoError(t, o.UpdatePaymentInfo(info))

		assert.Equal(t, StatusCancelled, o.Status())
		require.NotNil(t, o.CancelledAt())

		events := o.UncommittedEvents()
		require.Len(t, events, 2)
		cancelled := events[1].(OrderCancelled)
		assert.Nil(t, cancelled.RefundAmount)
	})

	t.Run("captured payment on a confirmed order does not cascade", func(t *testing.T) {
		o := newCreatedOrder(t)
		require.NoError(t, o.ChangeStatus(StatusConfirmed, "", ""))
		o.ClearUncommittedEvents()

		info := PaymentInfo{Method: PaymentMethodCard, Status: PaymentStatusCaptured}
		require.NoError(t, o.UpdatePaymentInfo(info))
		assert.Equal(t, StatusConfirmed, o.Status())
		assert.Len(t, o.UncommittedEvents(), 1)
	})

	t.Run("rejects updates on a closed order", func(t *testing.T) {
		o := newCreatedOrder(t)
		require.NoError(t, o.Cancel("no longer needed", "cust-1"))

		err := o.UpdatePaymentInfo(testPayment())
		assert.ErrorIs(t, err, ErrBusinessRule)
	})
}

func TestOrderShipping(t *testing.T) {
	t.Run("tracking number ships a processing order", func(t *testing.T) {
		o := newCreatedOrder(t)
		require.NoError(t, o.ChangeStatus(StatusConfirmed, "", ""))
		require.NoError(t, o.ChangeStatus(StatusProcessing, "", ""))
		o.ClearUncommittedEvents()

		info := ShippingInfo{Carrier: "UPS", TrackingNumber: "1Z999", Cost: MustMoney(500, "USD")}
		require.NoError(t, o.UpdateShippingInfo(info))

		assert.Equal(t, StatusShipped, o.Status())
		assert.Equal(t, "1Z999", o.ShippingInfo().TrackingNumber)
		assert.Equal(t, MustMoney(6468, "USD"), o.Total())

		events := o.UncommittedEvents()
		require.Len(t, events, 2)
		assert.IsType(t, OrderShippingUpdated{}, events[0])
		assert.IsType(t, OrderStatusChanged{}, events[1])
	})

	t.Run("tracking number before processing does not cascade", func(t *testing.T) {
		o := newCreatedOrder(t)
		info := ShippingInfo{Carrier: "UPS", TrackingNumber: "1Z999", Cost: MustMoney(500, "USD")}
		require.NoError(t, o.UpdateShippingInfo(info))
		assert.Equal(t, StatusPending, o.Status())
	})

	t.Run("rejects shipping cost in another currency", func(t *testing.T) {
		o := newCreatedOrder(t)
		err := o.UpdateShippingInfo(ShippingInfo{Cost: MustMoney(500, "EUR")})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestOrderCancel(t *testing.T) {
	t.Run("requires a reason", func(t *testing.T) {
		o := newCreatedOrder(t)
		assert.ErrorIs(t, o.Cancel("", "cust-1"), ErrValidation)
	})

	t.Run("records the refund amount when payment was captured", func(t *testing.T) {
		o := newCreatedOrder(t)
		info := PaymentInfo{Method: PaymentMethodCard, Status: PaymentStatusCaptured, TransactionID: "txn-1"}
		require.NoError(t, o.UpdatePaymentInfo(info))
		o.ClearUncommittedEvents()

		require.NoError(t, o.Cancel("damaged in warehouse", "support"))
		events := o.UncommittedEvents()
		require.Len(t, events, 1)
		cancelled := events[0].(OrderCancelled)
		require.NotNil(t, cancelled.RefundAmount)
		assert.Equal(t, o.Total(), *cancelled.RefundAmount)
	})

	t.Run("cannot cancel twice", func(t *testing.T) {
		o := newCreatedOrder(t)
		require.NoError(t, o.Cancel("first", "cust-1"))
		assert.ErrorIs(t, o.Cancel("second", "cust-1"), ErrBusinessRule)
	})
}

func TestOrderRefund(t *testing.T) {
	deliveredOrder := func(t *testing.T) *Order {
		t.Helper()
		o := newCreatedOrder(t)
		info := PaymentInfo{Method: PaymentMethodCard, Status: PaymentStatusCaptured, TransactionID: "txn-1"}
		require.NoError(t, o.UpdatePaymentInfo(info))
		require.NoError(t, o.ChangeStatus(StatusProcessing, "", ""))
		require.NoError(t, o.ChangeStatus(StatusShipped, "", ""))
		require.NoError(t, o.ChangeStatus(StatusDelivered, "", ""))
		o.ClearUncommittedEvents()
		return o
	}

	t.Run("refunds a delivered order in full", func(t *testing.T) {
		o := deliveredOrder(t)
		require.NoError(t, o.Refund(o.Total(), "defective", "support", "ref-1"))

		assert.Equal(t, StatusRefunded, o.Status())
		assert.Equal(t, PaymentStatusRefunded, o.PaymentInfo().Status)
		assert.Equal(t, "ref-1", o.PaymentInfo().TransactionID)
	})

	t.Run("allows a partial refund", func(t *testing.T) {
		o := deliveredOrder(t)
		require.NoError(t, o.Refund(MustMoney(1000, "USD"), "late delivery", "support", ""))
		assert.Equal(t, StatusRefunded, o.Status())
	})

	t.Run("only delivered or cancelled orders are refundable", func(t *testing.T) {
		o := newCreatedOrder(t)
		err := o.Refund(MustMoney(1000, "USD"), "reason", "support", "")
		assert.ErrorIs(t, err, ErrBusinessRule)
	})

	t.Run("rejects amounts above the total", func(t *testing.T) {
		o := deliveredOrder(t)
		over, err := o.Total().Add(MustMoney(1, "USD"))
		require.NoError(t, err)
		assert.ErrorIs(t, o.Refund(over, "reason", "support", ""), ErrBusinessRule)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		o := deliveredOrder(t)
		assert.ErrorIs(t, o.Refund(MustMoney(0, "USD"), "reason", "support", ""), ErrValidation)
	})

	t.Run("rejects a currency mismatch", func(t *testing.T) {
		o := deliveredOrder(t)
		assert.ErrorIs(t, o.Refund(MustMoney(100, "EUR"), "reason", "support", ""), ErrValidation)
	})

	t.Run("requires a reason", func(t *testing.T) {
		o := deliveredOrder(t)
		assert.ErrorIs(t, o.Refund(MustMoney(100, "USD"), "", "support", ""), ErrValidation)
	})
}

func TestOrderReplay(t *testing.T) {
	buildHistory := func(t *testing.T) (*Order, []interface{}) {
		t.Helper()
		o := NewOrder("order-1")
		require.NoError(t, o.Create("cust-1", testItems(), testAddress(), nil, testPayment(), ShippingInfo{}))
		require.NoError(t, o.AddItem(ItemInput{ProductID: "prod-doohickey", Quantity: 3, UnitPrice: MustMoney(200, "USD")}))
		info := PaymentInfo{Method: PaymentMethodCard, Status: PaymentStatusCaptured, TransactionID: "txn-1"}
		require.NoError(t, o.UpdatePaymentInfo(info))
		require.NoError(t, o.ChangeStatus(StatusProcessing, "picking", "warehouse"))
		require.NoError(t, o.UpdateShippingInfo(ShippingInfo{Carrier: "UPS", TrackingNumber: "1Z999", Cost: MustMoney(500, "USD")}))
		return o, o.UncommittedEvents()
	}

	assertSameState := func(t *testing.T, want, got *Order) {
		t.Helper()
		assert.Equal(t, want.Version(), got.Version())
		assert.Equal(t, want.Status(), got.Status())
		assert.Equal(t, want.CustomerID(), got.CustomerID())
		assert.Equal(t, want.OrderNumber(), got.OrderNumber())
		assert.Equal(t, want.Items(), got.Items())
		assert.Equal(t, want.Subtotal(), got.Subtotal())
		assert.Equal(t, want.Tax(), got.Tax())
		assert.Equal(t, want.Total(), got.Total())
		assert.Equal(t, want.PaymentInfo(), got.PaymentInfo())
		assert.Equal(t, want.ShippingInfo(), got.ShippingInfo())
	}

	t.Run("replay rebuilds identical state", func(t *testing.T) {
		original, events := buildHistory(t)

		replayed, err := Replay("order-1", events)
		require.NoError(t, err)
		assert.Empty(t, replayed.UncommittedEvents())
		assertSameState(t, original, replayed)
		assert.Equal(t, StatusShipped, replayed.Status())
	})

	t.Run("replay is deterministic across runs", func(t *testing.T) {
		_, events := buildHistory(t)

		first, err := Replay("order-1", events)
		require.NoError(t, err)
		second, err := Replay("order-1", events)
		require.NoError(t, err)
		assertSameState(t, first, second)
	})

	t.Run("snapshot plus tail equals full replay", func(t *testing.T) {
		_, events := buildHistory(t)
		require.Greater(t, len(events), 3)

		full, err := Replay("order-1", events)
		require.NoError(t, err)

		mid, err := Replay("order-1", events[:3])
		require.NoError(t, err)
		data, version, err := mid.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, int64(3), version)

		restored := NewOrder("order-1")
		require.NoError(t, restored.RestoreSnapshot(data, version))
		assert.Equal(t, int64(3), restored.Version())
		for _, event := range events[3:] {
			require.NoError(t, restored.ApplyEvent(event))
		}
		assertSameState(t, full, restored)
	})

	t.Run("replay fails on an unknown event", func(t *testing.T) {
		_, err := Replay("order-1", []interface{}{struct{ X int }{1}})
		assert.Error(t, err)
	})

	t.Run("each event advances the version by one", func(t *testing.T) {
		original, events := buildHistory(t)
		assert.Equal(t, int64(len(events)), original.Version())
	})
}
