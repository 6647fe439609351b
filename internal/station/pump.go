package station

import (
	"math"
	"sync/atomic"

	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
)

// ErrInsufficientStock is returned by Pump.TryWithdraw.
var ErrInsufficientStock = ErrNotEnoughStock

// Pump owns the remaining stock of one fuel grade. Stock is stored as the
// bits of a float64 so that reads for display never block a withdrawal.
type Pump struct {
	grade     model.FuelGrade
	initial   float64
	remaining atomic.Uint64
}

// NewPump returns a pump holding stock units of g.
func NewPump(g model.FuelGrade, stock float64) *Pump {
	p := &Pump{grade: g, initial: stock}
	p.remaining.Store(math.Float64bits(stock))
	return p
}

func (p *Pump) Grade() model.FuelGrade { return p.grade }

// Initial returns the stock the pump was created with.
func (p *Pump) Initial() float64 { return p.initial }

// Remaining is a snapshot for reporting. Never use it to decide a commit.
func (p *Pump) Remaining() float64 {
	return math.Float64frombits(p.remaining.Load())
}

// TryWithdraw removes amount iff remaining >= amount, atomically with
// respect to every other withdrawal and refund. It returns the remaining
// stock observed by the decision: after the withdrawal on success,
// untouched on failure.
func (p *Pump) TryWithdraw(amount float64) (float64, error) {
	w, err := p.reserve(amount)
	if err != nil {
		return math.Float64frombits(w.before), err
	}
	return math.Float64frombits(w.after), nil
}

// Refund puts back amount units.
func (p *Pump) Refund(amount float64) {
	for {
		old := p.remaining.Load()
		next := math.Float64frombits(old) + amount
		if p.remaining.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

// withdrawal is a provisional decrement that can be undone.
type withdrawal struct {
	pump   *Pump
	amount float64
	before uint64
	after  uint64
}

func (p *Pump) reserve(amount float64) (withdrawal, error) {
	for {
		old := p.remaining.Load()
		cur := math.Float64frombits(old)
		if cur < amount {
			return withdrawal{pump: p, before: old, after: old}, ErrInsufficientStock
		}
		next := math.Float64bits(cur - amount)
		if p.remaining.CompareAndSwap(old, next) {
			return withdrawal{pump: p, amount: amount, before: old, after: next}, nil
		}
	}
}

// undo restores the stock seen before the withdrawal. If the pump changed
// in between, the amount is added back instead.
func (w withdrawal) undo() {
	if w.pump.remaining.CompareAndSwap(w.after, w.before) {
		return
	}
	w.pump.Refund(w.amount)
}
