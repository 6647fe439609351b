package station

import (
	"errors"
	"fmt"

	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
)

// Rejections. These are expected outcomes of a purchase, recorded in the ledger.
var (
	ErrNotEnoughStock = errors.New("not enough stock")
	ErrPriceTooHigh   = errors.New("price too high")
)

// Precondition violations. They are never recorded in the ledger.
var (
	ErrUnknownGrade   = errors.New("no pump for fuel grade")
	ErrPriceNotSet    = errors.New("price not set for fuel grade")
	ErrInvalidRequest = errors.New("invalid purchase request")
	ErrPumpExists     = errors.New("pump already exists")
	ErrInvalidPrice   = errors.New("price must be finite and > 0")
	ErrInvalidStock   = errors.New("stock must be finite and >= 0")
)

// NotEnoughStockError rejects a purchase the pump cannot cover.
type NotEnoughStockError struct {
	Grade     model.FuelGrade
	Available float64
	Requested float64
}

func (e *NotEnoughStockError) Error() string {
	return fmt.Sprintf("%s: %s (available %.2f, requested %.2f)", e.Grade, ErrNotEnoughStock, e.Available, e.Requested)
}

func (e *NotEnoughStockError) Is(target error) bool { return target == ErrNotEnoughStock }

// PriceTooHighError rejects a purchase whose unit price exceeds the customer's ceiling.
type PriceTooHighError struct {
	Grade        model.FuelGrade
	CurrentPrice float64
	MaxPrice     float64
}

func (e *PriceTooHighError) Error() string {
	return fmt.Sprintf("%s: %s (current %.2f, max %.2f)", e.Grade, ErrPriceTooHigh, e.CurrentPrice, e.MaxPrice)
}

func (e *PriceTooHighError) Is(target error) bool { return target == ErrPriceTooHigh }

// IsRejection reports whether err is one of the two purchase rejections.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotEnoughStock) || errors.Is(err, ErrPriceTooHigh)
}
