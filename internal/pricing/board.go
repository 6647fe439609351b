// Package pricing holds the station's price board.
package pricing

import (
	"sync"

	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
)

type priceState struct {
	price        float64
	lastSequence uint64
}

// Board maps each fuel grade to its current unit price. Readers always
// observe a whole price, either the previous or the replacing one.
type Board struct {
	mu sync.RWMutex
	m  map[model.FuelGrade]priceState
}

func New() *Board {
	return &Board{m: make(map[model.FuelGrade]priceState)}
}

// Price returns the current unit price for g and whether one is set.
func (b *Board) Price(g model.FuelGrade) (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.m[g]
	if !ok {
		return 0, false
	}
	return st.price, true
}

// Set replaces the price for g unconditionally.
func (b *Board) Set(g model.FuelGrade, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.m[g]
	st.price = price
	b.m[g] = st
}

// Apply replaces the price carried by u unless a newer or equal sequence
// was already applied for that grade. It reports whether the board changed.
func (b *Board) Apply(u model.PriceUpdate) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.m[u.Grade]
	if ok && u.Sequence <= st.lastSequence && st.lastSequence != 0 {
		return false
	}
	b.m[u.Grade] = priceState{price: u.Price, lastSequence: u.Sequence}
	return true
}

// Snapshot copies the current price list.
func (b *Board) Snapshot() map[model.FuelGrade]float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[model.FuelGrade]float64, len(b.m))
	for g, st := range b.m {
		out[g] = st.price
	}
	return out
}
