// Package report prints human-readable station status and purchase
// outcomes for the console.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
	"github.com/fairyhunter13/fuel-station-simulator/internal/obs"
	"github.com/fairyhunter13/fuel-station-simulator/internal/station"
)

// Tank is a pump as seen by the tank status report.
type Tank interface {
	Grade() model.FuelGrade
	Remaining() float64
}

// WriteOperationsStatus prints revenue, sales and cancellations.
func WriteOperationsStatus(w io.Writer, s station.LedgerSnapshot) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Station operations status:")
	fmt.Fprintf(w, "Revenue: %s EUR.\n", s.Revenue.StringFixed(2))
	fmt.Fprintf(w, "Number of sales: %d successful.\n", s.Sales)
	fmt.Fprintf(w, "Number of cancelled sales due to fuel unavailability: %d cancellation(s).\n", s.CancelledNoStock)
	fmt.Fprintf(w, "Number of cancelled sales due to expensive fuel price: %d cancellation(s).\n", s.CancelledPrice)
}

// WriteTankStatus prints the remaining stock of every tank on one line.
func WriteTankStatus(w io.Writer, tanks []Tank) {
	parts := make([]string, 0, len(tanks))
	for _, t := range tanks {
		parts = append(parts, fmt.Sprintf("%s: %.2f L", t.Grade(), t.Remaining()))
	}
	fmt.Fprintln(w, joinList(parts)+".")
}

// WritePriceList prints the price of every grade, in station order.
func WritePriceList(w io.Writer, prices map[model.FuelGrade]float64) {
	parts := make([]string, 0, len(prices))
	for _, g := range model.Grades() {
		p, ok := prices[g]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %.2f EUR/L", g, p))
	}
	fmt.Fprintln(w, joinList(parts)+".")
}

// WriteOutcome prints what happened to one customer.
func WriteOutcome(w io.Writer, o model.Outcome) {
	req := o.Request
	var (
		nes *station.NotEnoughStockError
		pth *station.PriceTooHighError
	)
	switch {
	case o.Err == nil:
		fmt.Fprintf(w, "%s pump: customer %d is served: %.2f L at %.2f EUR/L, paid %.2f EUR.\n",
			req.Grade, req.Customer, o.Receipt.Amount, o.Receipt.UnitPrice, o.Receipt.Paid)
	case errors.As(o.Err, &nes):
		fmt.Fprintf(w, "%s pump: customer %d left without being served, not enough fuel (available: %.2f L, expected: %.2f L).\n",
			req.Grade, req.Customer, nes.Available, nes.Requested)
	case errors.As(o.Err, &pth):
		fmt.Fprintf(w, "%s pump: customer %d left without being served, price too high (current: %.2f EUR/L, expected: %.2f EUR/L).\n",
			req.Grade, req.Customer, pth.CurrentPrice, pth.MaxPrice)
	default:
		fmt.Fprintf(w, "%s pump: customer %d could not be served: %v.\n", req.Grade, req.Customer, o.Err)
	}
}

// joinList renders "a, b and c".
func joinList(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

// Console reports purchase outcomes to a writer and to the structured log.
// It implements queue.Reporter.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Report prints o and logs it.
func (c *Console) Report(o model.Outcome) {
	c.mu.Lock()
	WriteOutcome(c.w, o)
	c.mu.Unlock()

	req := o.Request
	if o.Err == nil {
		obs.Logger.Info("purchase_committed",
			"request_id", req.ID,
			"grade", req.Grade.String(),
			"customer", req.Customer,
			"amount", o.Receipt.Amount,
			"unit_price", o.Receipt.UnitPrice,
			"paid", o.Receipt.Paid,
		)
		return
	}
	level := obs.Logger.Info
	if !station.IsRejection(o.Err) {
		level = obs.Logger.Warn
	}
	level("purchase_rejected",
		"request_id", req.ID,
		"grade", req.Grade.String(),
		"customer", req.Customer,
		"amount", req.Amount,
		"max_unit_price", req.MaxUnitPrice,
		"error", o.Err,
	)
}

// Printf writes a free-form console line while holding the output lock.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// Do runs fn with exclusive access to the console writer.
func (c *Console) Do(fn func(w io.Writer)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.w)
}
