package schema

// EventOrderUpdated is the socket event emitted after an order status change.
const EventOrderUpdated = "order:updated"

// OrderUpdated is pushed by the backend whenever an order changes status. Order carries
// the full snapshot when the backend includes it.
type OrderUpdated struct {
	OrderID string      `json:"orderId"`
	Status  OrderStatus `json:"status"`
	Order   *Order      `json:"order,omitempty"`
}

// Clone returns a copy that does not share the embedded order snapshot.
func (e OrderUpdated) Clone() OrderUpdated {
	clone := e
	if e.Order != nil {
		order := e.Order.Clone()
		clone.Order = &order
	}
	return clone
}
