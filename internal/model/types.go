// Package model defines domain types used by the station.
package model

import "fmt"

// FuelGrade identifies a fuel type. It is the partition key for pumps and prices.
type FuelGrade int

const (
	Diesel FuelGrade = iota + 1
	Regular
	Super
)

var gradeNames = map[FuelGrade]string{
	Diesel:  "DIESEL",
	Regular: "REGULAR",
	Super:   "SUPER",
}

// Grades returns every fuel grade in station order.
func Grades() []FuelGrade { return []FuelGrade{Diesel, Regular, Super} }

func (g FuelGrade) String() string {
	if n, ok := gradeNames[g]; ok {
		return n
	}
	return fmt.Sprintf("FuelGrade(%d)", int(g))
}

// Valid reports whether g is one of the known grades.
func (g FuelGrade) Valid() bool {
	_, ok := gradeNames[g]
	return ok
}

// PurchaseRequest is one customer's attempt to buy fuel.
type PurchaseRequest struct {
	ID           string
	Customer     uint64
	Grade        FuelGrade
	Amount       float64
	MaxUnitPrice float64
}

// Receipt describes a committed purchase. UnitPrice is the price read at commit.
type Receipt struct {
	Grade     FuelGrade
	Amount    float64
	UnitPrice float64
	Paid      float64
}

// Outcome is the resolved result of a PurchaseRequest. Err is nil on commit.
type Outcome struct {
	Request PurchaseRequest
	Receipt Receipt
	Err     error
}

// PriceUpdate replaces the price of one grade. Sequence orders concurrent updates.
type PriceUpdate struct {
	Grade    FuelGrade
	Price    float64
	Sequence uint64
}
