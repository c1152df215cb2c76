package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type PaymentStatus string

const StatusPaid PaymentStatus = "PAID"

const StatusOrderAccepted = "ORDER_ACCEPTED"

var (
	ErrMissingOrderID = errors.New("order_id is required")
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// OrderRequest travels unchanged over HTTP and as the order.created payload.
type OrderRequest struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

func (r OrderRequest) Validate() error {
	if r.OrderID == "" {
		return ErrMissingOrderID
	}
	if r.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	return nil
}

// PaymentResult is produced once per executed payment and is the
// payment.completed payload.
type PaymentResult struct {
	Status  PaymentStatus `json:"status"`
	OrderID string        `json:"order_id"`
}

// AcceptanceAck only says the order was handed to the broker.
type AcceptanceAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ServiceInfo struct {
	Service string `json:"service"`
	Mode    string `json:"mode"`
}
