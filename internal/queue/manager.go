// Package queue implements the in-memory purchase queue and the pool of
// settlement workers that drains it.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/fairyhunter13/fuel-station-simulator/internal/config"
	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
	"github.com/fairyhunter13/fuel-station-simulator/internal/obs"
)

// Settler resolves one purchase request.
type Settler interface {
	Settle(req model.PurchaseRequest) (model.Receipt, error)
}

// Reporter receives every resolved purchase. It is called from worker
// goroutines and must be safe for concurrent use.
type Reporter interface {
	Report(o model.Outcome)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(o model.Outcome)

func (f ReporterFunc) Report(o model.Outcome) { f(o) }

// Manager coordinates settlement workers and scales them with the backlog.
type Manager struct {
	cfg      config.Config
	q        *Queue
	settler  Settler
	reporter Reporter
	ctx      context.Context
	cancel   context.CancelFunc

	mu            sync.Mutex
	workerCancels []context.CancelFunc
	wg            sync.WaitGroup
}

// NewManager constructs a Manager settling requests from q with s. A nil
// reporter discards outcomes.
func NewManager(cfg config.Config, q *Queue, s Settler, r Reporter) *Manager {
	if r == nil {
		r = ReporterFunc(func(model.Outcome) {})
	}
	return &Manager{cfg: cfg, q: q, settler: s, reporter: r}
}

// Start begins processing and autoscaling in the background.
func (m *Manager) Start(parent context.Context) {
	m.ctx, m.cancel = context.WithCancel(parent)
	m.q.Start(m.ctx, m.cfg.QueueHighWatermark)
	m.addWorkers(m.cfg.InitialWorkerCount)
	go m.scaler()
}

// Stop cancels background routines and waits for workers to return. A
// worker in the middle of a settlement finishes it first.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	for _, c := range m.workerCancels {
		c()
	}
	m.workerCancels = nil
	m.mu.Unlock()
	m.wg.Wait()
}

// scaler adjusts worker count based on backlog and configuration.
func (m *Manager) scaler() {
	t := time.NewTicker(m.cfg.ScaleInterval)
	defer t.Stop()
	idleTicks := 0
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			backlog := m.q.BacklogSize()
			wc := m.WorkerCount()
			if backlog > wc*m.cfg.ScaleUpBacklogPerWorker && wc < m.cfg.WorkerMax {
				m.addWorkers(1)
				idleTicks = 0
				continue
			}
			if backlog == 0 {
				idleTicks++
				if idleTicks >= m.cfg.ScaleDownIdleTicks && wc > m.cfg.WorkerMin {
					m.removeWorkers(1)
					idleTicks = 0
				}
			} else {
				idleTicks = 0
			}
		}
	}
}

// addWorkers spawns n workers.
func (m *Manager) addWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		wctx, cancel := context.WithCancel(m.ctx)
		m.workerCancels = append(m.workerCancels, cancel)
		m.wg.Add(1)
		go m.worker(wctx)
	}
	obs.Logger.Info("workers scaled", "worker_count", len(m.workerCancels))
}

// removeWorkers stops up to n workers.
func (m *Manager) removeWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.workerCancels) {
		n = len(m.workerCancels)
	}
	for i := 0; i < n; i++ {
		c := m.workerCancels[len(m.workerCancels)-1]
		m.workerCancels = m.workerCancels[:len(m.workerCancels)-1]
		c()
	}
	obs.Logger.Info("workers scaled", "worker_count", len(m.workerCancels))
}

// worker settles requests from the queue and reports each outcome.
func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-m.q.Out():
			r, err := m.settler.Settle(req)
			m.reporter.Report(model.Outcome{Request: req, Receipt: r, Err: err})
			m.q.MarkProcessed()
		}
	}
}

// Enqueue proxies to the underlying queue.
func (m *Manager) Enqueue(req model.PurchaseRequest) bool { return m.q.Enqueue(req) }

// BacklogSize returns pending items in the queue.
func (m *Manager) BacklogSize() int { return m.q.BacklogSize() }

// QueueDepth returns backlog plus buffered output items.
func (m *Manager) QueueDepth() int { return m.q.QueueDepth() }

// WorkerCount returns the current number of workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workerCancels)
}

// IsShuttingDown reports whether new enqueues are rejected.
func (m *Manager) IsShuttingDown() bool { return m.q.IsShuttingDown() }

// CloseIntake disallows future enqueues.
func (m *Manager) CloseIntake() { m.q.CloseIntake() }

// QueueMetrics exposes the underlying queue metrics.
func (m *Manager) QueueMetrics() (enq, proc uint64, backlog, depth int) {
	return m.q.Metrics()
}

// DrainUntil blocks until every enqueued request is settled or ctx is done.
func (m *Manager) DrainUntil(ctx context.Context) bool {
	for {
		enq, proc, backlog, depth := m.q.Metrics()
		if backlog == 0 && depth == 0 && enq == proc {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
