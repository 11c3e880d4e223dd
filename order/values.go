package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address is a postal address attached to an order.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Validate checks that the required address fields are present.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Street) == "" {
		return NewValidationError("street", "street is required")
	}
	if strings.TrimSpace(a.City) == "" {
		return NewValidationError("city", "city is required")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return NewValidationError("postalCode", "postal code is required")
	}
	if strings.TrimSpace(a.Country) == "" {
		return NewValidationError("country", "country is required")
	}
	return nil
}

// IsZero returns true if no field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

// Supported payment methods.
const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// IsValid returns true for a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodPayPal, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// PaymentStatus tracks the payment lifecycle for an order.
type PaymentStatus string

// Payment statuses.
const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusCaptured PaymentStatus = "captured"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsValid returns true for a known payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCaptured, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentInfo describes the payment attached to an order.
type PaymentInfo struct {
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
}

// Validate checks the payment method and status.
func (p PaymentInfo) Validate() error {
	if !p.Method.IsValid() {
		return NewValidationError("paymentInfo.method", fmt.Sprintf("unknown payment method %q", p.Method))
	}
	if !p.Status.IsValid() {
		return NewValidationError("paymentInfo.status", fmt.Sprintf("unknown payment status %q", p.Status))
	}
	return nil
}

// ShippingInfo describes the shipment attached to an order.
type ShippingInfo struct {
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Cost           Money  `json:"cost"`
}

// OrderItem is a single line on an order.
type OrderItem struct {
	ItemID    string `json:"itemId"`
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unitPrice"`
	LineTotal Money  `json:"lineTotal"`
}

// NewOrderNumber generates a human-readable order number,
// e.g. "ORD-20260831-1A2B3C4D".
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}
