// Package payment talks to the hosted payment gateway and checks its callback signatures.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderRequest asks the gateway to open a payment order. Amount is in major units.
type OrderRequest struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
	Notes    map[string]string
}

// RemoteOrder is the gateway's order handle, passed through to clients untouched.
type RemoteOrder map[string]any

type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (RemoteOrder, error)
}

// Error is a failure reported by the gateway or on the way to it.
type Error struct {
	Status      int // HTTP status; 0 when the gateway was not reached
	Description string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Description
	}
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Description)
}

// MinorUnits converts a major-unit amount to the gateway's integer representation,
// rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
