// Package schema defines the order and catalog snapshots exchanged with the backend.
package schema

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Order is a read snapshot of a customer purchase. The backend owns it; the client only
// replaces its local copy.
type Order struct {
	ID              string              `json:"_id"`
	OrderNumber     FlexString          `json:"orderNumber,omitempty"`
	OrderID         *int64              `json:"orderId,omitempty"`
	CustomerName    string              `json:"customerName,omitempty"`
	CustomerAddress string              `json:"customerAddress,omitempty"`
	CustomerPhone   string              `json:"customerPhone,omitempty"`
	CustomerNote    string              `json:"customerNote,omitempty"`
	Status          OrderStatus         `json:"status,omitempty"`
	LegacyTotal     decimal.NullDecimal `json:"total"`
	Items           []LineItem          `json:"items,omitempty"`
	Totals          *Totals             `json:"totals,omitempty"`
	CreatedAt       Timestamp           `json:"createdAt"`
	UpdatedAt       Timestamp           `json:"updatedAt"`
	DeliveredBy     string              `json:"deliveredBy,omitempty"`
	DeliveredAt     Timestamp           `json:"deliveredAt"`
}

// LineItem is one product line inside an order.
type LineItem struct {
	RefID     FlexString      `json:"refid,omitempty"`
	Title     string          `json:"title"`
	Brand     string          `json:"brand,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Totals summarises the order amounts computed by the backend.
type Totals struct {
	ItemsCount int             `json:"itemsCount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Total      decimal.Decimal `json:"total"`
}

// Total returns the amount shown for the order: totals.total, then the legacy flat
// total, then zero.
func (o Order) Total() decimal.Decimal {
	if o.Totals != nil {
		return o.Totals.Total
	}
	if o.LegacyTotal.Valid {
		return o.LegacyTotal.Decimal
	}
	return decimal.Zero
}

// Revenue is the amount the order contributes to aggregates: totals.total or zero.
// The legacy flat total is display-only.
func (o Order) Revenue() decimal.Decimal {
	if o.Totals != nil {
		return o.Totals.Total
	}
	return decimal.Zero
}

// EffectiveStatus applies the default-status rule.
func (o Order) EffectiveStatus() OrderStatus {
	return o.Status.OrDefault()
}

// CanTransition reports whether status-update controls stay enabled for the order.
func (o Order) CanTransition() bool {
	return !o.EffectiveStatus().Terminal()
}

// DisplayNumber is the human-facing order number, falling back to the last six
// characters of the persistent id.
func (o Order) DisplayNumber() string {
	if o.OrderID != nil {
		return strconv.FormatInt(*o.OrderID, 10)
	}
	if o.OrderNumber != "" {
		return o.OrderNumber.String()
	}
	if len(o.ID) <= 6 {
		return o.ID
	}
	return o.ID[len(o.ID)-6:]
}

// Clone returns a deep copy so callers can patch without aliasing held lists.
func (o Order) Clone() Order {
	clone := o
	if o.OrderID != nil {
		id := *o.OrderID
		clone.OrderID = &id
	}
	if o.Items != nil {
		clone.Items = append([]LineItem(nil), o.Items...)
	}
	if o.Totals != nil {
		totals := *o.Totals
		clone.Totals = &totals
	}
	return clone
}

// CustomerField returns value or the placeholder when the backend omitted it.
func CustomerField(value, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}
