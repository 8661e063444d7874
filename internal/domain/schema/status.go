package schema

import "strings"

// OrderStatus enumerates the lifecycle states reported by the backend.
type OrderStatus string

const (
	// StatusPending marks a received order that has not been prepared yet.
	StatusPending OrderStatus = "pending"
	// StatusReady marks a prepared order awaiting shipment.
	StatusReady OrderStatus = "ready"
	// StatusShipped marks an order on its way to the customer.
	StatusShipped OrderStatus = "shipped"
	// StatusDelivered marks an order handed to the customer.
	StatusDelivered OrderStatus = "delivered"
	// StatusCancelled marks a cancelled order. Terminal.
	StatusCancelled OrderStatus = "cancelled"
)

// AllStatuses lists every status in canonical display order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusReady,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// ParseStatus normalises raw input into a known status.
func ParseStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", false
	}
	return status, true
}

// Valid reports whether the status belongs to the closed enumeration.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// OrDefault applies the default-status rule: absent or unknown statuses count as pending.
func (s OrderStatus) OrDefault() OrderStatus {
	if !s.Valid() {
		return StatusPending
	}
	return s
}

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == StatusCancelled
}

// Style returns the shared display attributes for the status.
func (s OrderStatus) Style() StatusStyle {
	return StatusStyleOf(s)
}

// StatusStyle carries the label, colors and icon glyph used by every view.
type StatusStyle struct {
	Label           string
	Color           string
	BackgroundColor string
	Icon            string
}

var statusStyles = map[OrderStatus]StatusStyle{
	StatusPending: {
		Label:           "Pedido Recibido",
		Color:           "#1D4ED8",
		BackgroundColor: "#DBEAFE",
		Icon:            "schedule",
	},
	StatusReady: {
		Label:           "Preparado",
		Color:           "#D97706",
		BackgroundColor: "#FEF3C7",
		Icon:            "inventory-2",
	},
	StatusShipped: {
		Label:           "En Camino",
		Color:           "#7C3AED",
		BackgroundColor: "#EDE9FE",
		Icon:            "local-shipping",
	},
	StatusDelivered: {
		Label:           "Entregado",
		Color:           "#047857",
		BackgroundColor: "#D1FAE5",
		Icon:            "check-circle",
	},
	StatusCancelled: {
		Label:           "Cancelado",
		Color:           "#B91C1C",
		BackgroundColor: "#FEE2E2",
		Icon:            "cancel",
	},
}

// StatusStyleOf looks up the display attributes, falling back to pending.
func StatusStyleOf(s OrderStatus) StatusStyle {
	return statusStyles[s.OrDefault()]
}
