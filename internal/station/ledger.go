package station

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Ledger accumulates station-wide outcomes. Each field is updated
// independently; there is no lock spanning fields.
type Ledger struct {
	revenueMu sync.Mutex
	revenue   decimal.Decimal

	sales            atomic.Uint64
	cancelledNoStock atomic.Uint64
	cancelledPrice   atomic.Uint64
}

// LedgerSnapshot is a best-effort copy of the ledger. Fields are read one
// at a time and may disagree by an in-flight purchase.
type LedgerSnapshot struct {
	Revenue          decimal.Decimal
	Sales            uint64
	CancelledNoStock uint64
	CancelledPrice   uint64
}

// Resolved returns the number of purchase attempts the snapshot accounts for.
func (s LedgerSnapshot) Resolved() uint64 {
	return s.Sales + s.CancelledNoStock + s.CancelledPrice
}

// RecordSale counts a committed purchase and adds paid to revenue.
func (l *Ledger) RecordSale(paid decimal.Decimal) {
	l.revenueMu.Lock()
	l.revenue = l.revenue.Add(paid)
	l.revenueMu.Unlock()
	l.sales.Add(1)
}

func (l *Ledger) RecordCancelNoStock() { l.cancelledNoStock.Add(1) }

func (l *Ledger) RecordCancelPrice() { l.cancelledPrice.Add(1) }

// RevenueDecimal returns the exact revenue.
func (l *Ledger) RevenueDecimal() decimal.Decimal {
	l.revenueMu.Lock()
	defer l.revenueMu.Unlock()
	return l.revenue
}

// Revenue returns the revenue as a float64 for display.
func (l *Ledger) Revenue() float64 { return l.RevenueDecimal().InexactFloat64() }

func (l *Ledger) SalesCount() uint64 { return l.sales.Load() }

func (l *Ledger) CancellationsNoStock() uint64 { return l.cancelledNoStock.Load() }

func (l *Ledger) CancellationsPrice() uint64 { return l.cancelledPrice.Load() }

func (l *Ledger) Snapshot() LedgerSnapshot {
	return LedgerSnapshot{
		Revenue:          l.RevenueDecimal(),
		Sales:            l.SalesCount(),
		CancelledNoStock: l.CancellationsNoStock(),
		CancelledPrice:   l.CancellationsPrice(),
	}
}
