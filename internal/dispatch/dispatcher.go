// Package dispatch drives the simulation: one customer arrival stream per
// pump, one price update stream, and the start/end lifecycle around them.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/fuel-station-simulator/internal/config"
	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
	"github.com/fairyhunter13/fuel-station-simulator/internal/obs"
	"github.com/fairyhunter13/fuel-station-simulator/internal/queue"
	"github.com/fairyhunter13/fuel-station-simulator/internal/random"
)

var (
	ErrAlreadyStarted = errors.New("dispatcher already started")
	ErrNotStarted     = errors.New("dispatcher not started")
	ErrDrainTimeout   = errors.New("purchases still in flight at shutdown deadline")
)

// PriceSetter receives the price update stream.
type PriceSetter interface {
	ApplyPriceUpdate(u model.PriceUpdate) (bool, error)
}

// Dispatcher owns the producer streams. Purchases are handed to a
// queue.Manager whose workers settle them.
type Dispatcher struct {
	cfg    config.Config
	prices PriceSetter
	mgr    *queue.Manager
	rnd    random.Source

	// OnPrices, when set, is called after every round of price updates.
	OnPrices func(updates []model.PriceUpdate)

	started  atomic.Bool
	ended    atomic.Bool
	done     chan struct{}
	endOnce  sync.Once
	g        *errgroup.Group
	cancel   context.CancelFunc
	priceSeq queue.Sequencer
}

// New returns a Dispatcher. Nothing runs until Start.
func New(cfg config.Config, prices PriceSetter, mgr *queue.Manager, rnd random.Source) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		prices: prices,
		mgr:    mgr,
		rnd:    rnd,
		done:   make(chan struct{}),
	}
}

// Start launches the settlement workers and every producer stream.
func (d *Dispatcher) Start(parent context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.mgr.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	d.g = g
	for _, grade := range model.Grades() {
		g.Go(func() error { return d.arrivals(gctx, grade) })
	}
	g.Go(func() error { return d.priceUpdates(gctx) })
	obs.Logger.Info("service_started", "pumps", len(model.Grades()), "worker_count", d.mgr.WorkerCount())
	return nil
}

// Started reports whether Start has been called.
func (d *Dispatcher) Started() bool { return d.started.Load() }

// End sets the service-ended flag. Streams observe it between iterations;
// nothing in flight is interrupted. End is idempotent.
func (d *Dispatcher) End() {
	d.endOnce.Do(func() {
		d.ended.Store(true)
		close(d.done)
		obs.Logger.Info("service_end_requested")
	})
}

// Ended reports whether End has been called.
func (d *Dispatcher) Ended() bool { return d.ended.Load() }

// Wait blocks until every stream has stopped, then closes intake and
// waits for queued purchases to settle before stopping the workers. The
// drain is bounded by ctx.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if !d.Started() {
		return ErrNotStarted
	}
	defer d.cancel()
	streamErr := d.g.Wait()

	d.mgr.CloseIntake()
	obs.Logger.Info("shutdown_drain_begin", "backlog_size", d.mgr.BacklogSize(), "worker_count", d.mgr.WorkerCount())
	drained := d.mgr.DrainUntil(ctx)
	d.mgr.Stop()
	if !drained {
		obs.Logger.Warn("shutdown_drain_timeout", "queue_depth", d.mgr.QueueDepth())
		return errors.Join(streamErr, ErrDrainTimeout)
	}
	obs.Logger.Info("shutdown_drain_complete")
	return streamErr
}

// Shutdown ends the service and waits for it.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.End()
	return d.Wait(ctx)
}

// pause sleeps for delay. It returns false if the service ended or ctx
// was cancelled first.
func (d *Dispatcher) pause(ctx context.Context, delay time.Duration) bool {
	if d.Ended() {
		return false
	}
	if delay <= 0 {
		return true
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return !d.Ended()
	case <-d.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// arrivals generates customers for one pump until the service ends.
func (d *Dispatcher) arrivals(ctx context.Context, g model.FuelGrade) error {
	s := d.cfg.Station
	if !d.pause(ctx, s.StartupDelay) {
		return nil
	}
	obs.Logger.Info("stream_started", "stream", "arrivals", "grade", g.String())
	var customers queue.Sequencer
	for !d.Ended() {
		req := model.PurchaseRequest{
			ID:           uuid.NewString(),
			Customer:     customers.Next(),
			Grade:        g,
			Amount:       d.rnd.Range(s.AmountMin, s.AmountMax),
			MaxUnitPrice: d.rnd.AroundAverage(s.AveragePrice(g), s.PriceDeviation),
		}
		if !d.mgr.Enqueue(req) {
			break
		}
		obs.Logger.Debug("customer_arrived",
			"request_id", req.ID,
			"grade", g.String(),
			"customer", req.Customer,
			"amount", req.Amount,
			"max_unit_price", req.MaxUnitPrice,
		)
		if !d.pause(ctx, d.rnd.Duration(s.ArrivalMin, s.ArrivalMax)) {
			break
		}
	}
	obs.Logger.Info("stream_stopped", "stream", "arrivals", "grade", g.String(), "customers", customers.Last())
	return nil
}

// priceUpdates replaces every grade's price around its average on a
// random period until the service ends.
func (d *Dispatcher) priceUpdates(ctx context.Context) error {
	s := d.cfg.Station
	obs.Logger.Info("stream_started", "stream", "prices")
	defer obs.Logger.Info("stream_stopped", "stream", "prices")
	for d.pause(ctx, d.rnd.Duration(s.PriceUpdateMin, s.PriceUpdateMax)) {
		grades := model.Grades()
		updates := make([]model.PriceUpdate, 0, len(grades))
		for _, g := range grades {
			u := model.PriceUpdate{
				Grade:    g,
				Price:    d.rnd.AroundAverage(s.AveragePrice(g), s.PriceDeviation),
				Sequence: d.priceSeq.Next(),
			}
			if _, err := d.prices.ApplyPriceUpdate(u); err != nil {
				// a bad price must not take the customer streams down with it
				obs.Logger.Warn("price_update_rejected", "grade", g.String(), "price", u.Price, "sequence", u.Sequence, "error", err)
				continue
			}
			updates = append(updates, u)
			obs.Logger.Info("price_updated", "grade", g.String(), "price", u.Price, "sequence", u.Sequence)
		}
		if d.OnPrices != nil {
			d.OnPrices(updates)
		}
	}
	return nil
}
