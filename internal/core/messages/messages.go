// Package messages defines every message exchanged on the bus: the calls and
// replies between order tasks and the exchange and lightning adapters, the
// notifications coming from the lightning node and the user commands.
package messages

import "github.com/tdex-network/fiatln-daemon/internal/core/bus"

// OrderRef is embedded by every message that belongs to an order task.
type OrderRef struct {
	OrderID int64 `json:"order_id"`
}

func (r OrderRef) LocalOrderID() int64 {
	return r.OrderID
}

// Request is a call made by an order task.
type Request interface {
	bus.Message
	LocalOrderID() int64
}

// Reply is the outcome of a Request, routed back to the calling task.
type Reply interface {
	bus.Message
	LocalOrderID() int64
}
