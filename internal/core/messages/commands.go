package messages

import (
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

const (
	KindPlaceBuyOrder  bus.Kind = "command.place_buy_order"
	KindPlaceSellOrder bus.Kind = "command.place_sell_order"
	KindListOrders     bus.Kind = "command.list_orders"
	KindCancelOrder    bus.Kind = "command.cancel_order"
	KindSetConfig      bus.Kind = "command.set_config"
	KindGetConfig      bus.Kind = "command.get_config"
	KindCommandResult  bus.Kind = "command.result"
	KindCommandError   bus.Kind = "command.error"
	KindConfigChanged  bus.Kind = "config.changed"
)

// ErrorCode classifies a failed command.
type ErrorCode int

const (
	ErrorCodeInvalidParams ErrorCode = iota + 1
	ErrorCodeNoSuchOrder
	ErrorCodeNoConnection
	ErrorCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeInvalidParams:
		return "invalid_params"
	case ErrorCodeNoSuchOrder:
		return "no_such_order"
	case ErrorCodeNoConnection:
		return "no_connection"
	case ErrorCodeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Command is a user request, answered by a CommandResult or a CommandError
// with the same CommandID.
type Command interface {
	bus.Message
	ID() string
}

type CommandRef struct {
	CommandID string
}

func (r CommandRef) ID() string {
	return r.CommandID
}

type PlaceOrder struct {
	CommandRef
	LimitRate         uint64
	LimitRateInverted bool
	Amount            int64
	PerTxMaxAmount    int64
}

type PlaceBuyOrder struct {
	PlaceOrder
}

func (PlaceBuyOrder) Kind() bus.Kind { return KindPlaceBuyOrder }

type PlaceSellOrder struct {
	PlaceOrder
}

func (PlaceSellOrder) Kind() bus.Kind { return KindPlaceSellOrder }

type ListOrders struct {
	CommandRef
}

func (ListOrders) Kind() bus.Kind { return KindListOrders }

type CancelOrder struct {
	CommandRef
	OrderID int64
}

func (CancelOrder) Kind() bus.Kind { return KindCancelOrder }

type SetConfig struct {
	CommandRef
	Values map[string]string
}

func (SetConfig) Kind() bus.Kind { return KindSetConfig }

type GetConfig struct {
	CommandRef
}

func (GetConfig) Kind() bus.Kind { return KindGetConfig }

// CommandResult carries the outcome of a successful command. Payload is one
// of PlaceOrderResult, []OrderInfo, map[string]string or nil.
type CommandResult struct {
	CommandRef
	Payload interface{}
}

func (CommandResult) Kind() bus.Kind { return KindCommandResult }

type CommandError struct {
	CommandRef
	Code    ErrorCode
	Message string
}

func (CommandError) Kind() bus.Kind { return KindCommandError }

func (e CommandError) Error() string {
	return e.Code.String() + ": " + e.Message
}

// ConfigChanged is published with the whole configuration whenever it
// changes and once at startup.
type ConfigChanged struct {
	Values map[string]string
}

func (ConfigChanged) Kind() bus.Kind { return KindConfigChanged }

type PlaceOrderResult struct {
	OrderID int64 `json:"order_id"`
}

// OrderInfo is an order together with its transactions.
type OrderInfo struct {
	Order            domain.Order             `json:"order"`
	BuyTransactions  []domain.BuyTransaction  `json:"buy_transactions,omitempty"`
	SellTransactions []domain.SellTransaction `json:"sell_transactions,omitempty"`
}
