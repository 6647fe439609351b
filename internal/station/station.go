// Package station implements the fuel station's transaction engine: pumps
// with per-pump FIFO admission, the price board it reads, and the ledger
// it settles into.
//
// A purchase on one pump runs its stock check, price check and commit as
// one critical section behind that pump's Gate. Purchases on different
// pumps never contend with each other.
package station

import (
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
	"github.com/fairyhunter13/fuel-station-simulator/internal/obs"
	"github.com/fairyhunter13/fuel-station-simulator/internal/pricing"
)

type lane struct {
	pump *Pump
	gate Gate
}

// Station is the shared state of one fuel station plus the purchase protocol.
type Station struct {
	mu     sync.RWMutex
	lanes  map[model.FuelGrade]*lane
	order  []model.FuelGrade
	prices *pricing.Board
	ledger Ledger
}

// New returns an empty station reading prices from board. A nil board
// gets a fresh one.
func New(board *pricing.Board) *Station {
	if board == nil {
		board = pricing.New()
	}
	return &Station{lanes: make(map[model.FuelGrade]*lane), prices: board}
}

// AddPump installs the pump for g with the given initial stock.
func (s *Station) AddPump(g model.FuelGrade, stock float64) error {
	if !g.Valid() {
		return fmt.Errorf("add pump %s: %w", g, ErrUnknownGrade)
	}
	if !(stock >= 0) || math.IsInf(stock, 0) {
		return fmt.Errorf("add pump %s: %w", g, ErrInvalidStock)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lanes[g]; ok {
		return fmt.Errorf("add pump %s: %w", g, ErrPumpExists)
	}
	s.lanes[g] = &lane{pump: NewPump(g, stock)}
	s.order = append(s.order, g)
	obs.Logger.Info("station_pump_added", "grade", g.String(), "stock", stock)
	return nil
}

// SetPrice replaces the unit price of g.
func (s *Station) SetPrice(g model.FuelGrade, price float64) error {
	if !g.Valid() {
		return fmt.Errorf("set price %s: %w", g, ErrUnknownGrade)
	}
	if !positiveFinite(price) {
		return fmt.Errorf("set price %s: %w", g, ErrInvalidPrice)
	}
	s.prices.Set(g, price)
	return nil
}

// ApplyPriceUpdate applies a sequenced price update. Stale updates are
// ignored and reported as false.
func (s *Station) ApplyPriceUpdate(u model.PriceUpdate) (bool, error) {
	if !u.Grade.Valid() {
		return false, fmt.Errorf("apply price %s: %w", u.Grade, ErrUnknownGrade)
	}
	if !positiveFinite(u.Price) {
		return false, fmt.Errorf("apply price %s: %w", u.Grade, ErrInvalidPrice)
	}
	return s.prices.Apply(u), nil
}

// Buy settles one purchase and returns the amount paid.
func (s *Station) Buy(g model.FuelGrade, amount, maxUnitPrice float64) (float64, error) {
	r, err := s.Settle(model.PurchaseRequest{Grade: g, Amount: amount, MaxUnitPrice: maxUnitPrice})
	if err != nil {
		return 0, err
	}
	return r.Paid, nil
}

// Settle runs the admission and settlement protocol for req. Rejections
// are returned as *NotEnoughStockError or *PriceTooHighError and counted in
// the ledger; precondition errors are not counted.
func (s *Station) Settle(req model.PurchaseRequest) (model.Receipt, error) {
	if !positiveFinite(req.Amount) || !positiveFinite(req.MaxUnitPrice) {
		return model.Receipt{}, fmt.Errorf("buy %s amount=%v max_price=%v: %w", req.Grade, req.Amount, req.MaxUnitPrice, ErrInvalidRequest)
	}
	l, err := s.lane(req.Grade)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("buy %s: %w", req.Grade, err)
	}

	l.gate.Enter()
	defer l.gate.Leave()

	w, err := l.pump.reserve(req.Amount)
	if err != nil {
		s.ledger.RecordCancelNoStock()
		return model.Receipt{}, &NotEnoughStockError{
			Grade:     req.Grade,
			Available: math.Float64frombits(w.before),
			Requested: req.Amount,
		}
	}

	price, ok := s.prices.Price(req.Grade)
	if !ok {
		w.undo()
		return model.Receipt{}, fmt.Errorf("buy %s: %w", req.Grade, ErrPriceNotSet)
	}
	if !positiveFinite(price) {
		w.undo()
		return model.Receipt{}, fmt.Errorf("buy %s price=%v: %w", req.Grade, price, ErrInvalidPrice)
	}
	if price > req.MaxUnitPrice {
		w.undo()
		s.ledger.RecordCancelPrice()
		return model.Receipt{}, &PriceTooHighError{
			Grade:        req.Grade,
			CurrentPrice: price,
			MaxPrice:     req.MaxUnitPrice,
		}
	}

	paid := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(req.Amount))
	s.ledger.RecordSale(paid)
	return model.Receipt{
		Grade:     req.Grade,
		Amount:    req.Amount,
		UnitPrice: price,
		Paid:      paid.InexactFloat64(),
	}, nil
}

// positiveFinite rejects zero, negatives, NaN and both infinities.
func positiveFinite(v float64) bool { return v > 0 && !math.IsInf(v, 1) }

func (s *Station) lane(g model.FuelGrade) (*lane, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lanes[g]
	if !ok {
		return nil, ErrUnknownGrade
	}
	return l, nil
}

// Price returns the current unit price of g.
func (s *Station) Price(g model.FuelGrade) (float64, error) {
	p, ok := s.prices.Price(g)
	if !ok {
		return 0, fmt.Errorf("price %s: %w", g, ErrPriceNotSet)
	}
	return p, nil
}

// Prices returns a copy of the current price list.
func (s *Station) Prices() map[model.FuelGrade]float64 { return s.prices.Snapshot() }

// Remaining returns a display snapshot of the stock left in g's pump.
func (s *Station) Remaining(g model.FuelGrade) (float64, error) {
	l, err := s.lane(g)
	if err != nil {
		return 0, fmt.Errorf("remaining %s: %w", g, err)
	}
	return l.pump.Remaining(), nil
}

// Pumps returns the pumps in the order they were added.
func (s *Station) Pumps() []*Pump {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Pump, 0, len(s.order))
	for _, g := range s.order {
		out = append(out, s.lanes[g].pump)
	}
	return out
}

func (s *Station) Ledger() *Ledger { return &s.ledger }

func (s *Station) Revenue() float64 { return s.ledger.Revenue() }

func (s *Station) SalesCount() uint64 { return s.ledger.SalesCount() }

func (s *Station) CancellationsNoStock() uint64 { return s.ledger.CancellationsNoStock() }

func (s *Station) CancellationsPrice() uint64 { return s.ledger.CancellationsPrice() }
