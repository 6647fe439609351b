package queue

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/fuel-station-simulator/internal/model"
	"github.com/fairyhunter13/fuel-station-simulator/internal/obs"
)

// Queue buffers purchase requests in an unbounded backlog and feeds them,
// in arrival order, to a bounded output channel read by settlement workers.
// The backlog is also counted per pump so a stalled grade shows up in logs.
type Queue struct {
	mu           sync.Mutex
	backlog      []model.PurchaseRequest
	waiting      map[model.FuelGrade]int
	notify       chan struct{}
	out          chan model.PurchaseRequest
	shuttingDown atomic.Bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
}

// New creates a Queue with a buffered output channel.
func New(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		waiting: make(map[model.FuelGrade]int),
		notify:  make(chan struct{}, 1),
		out:    make(chan model.PurchaseRequest, outBuffer),
	}
}

// Start runs the broker loop.
func (q *Queue) Start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

// broker moves backlog items to the output channel.
func (q *Queue) broker(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.flushOnce()
		q.checkWatermark(highWatermark)
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// flushOnce drains backlog into the output buffer.
func (q *Queue) flushOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.backlog) > 0 && len(q.out) < cap(q.out) {
		req := q.backlog[0]
		q.backlog[0] = model.PurchaseRequest{}
		q.backlog = q.backlog[1:]
		q.waiting[req.Grade]--
		q.out <- req
	}
}

// checkWatermark warns when the backlog grows past limit, naming how many
// customers wait at each pump. A limit of zero disables the check.
func (q *Queue) checkWatermark(limit int) {
	if limit <= 0 {
		return
	}
	byGrade := q.BacklogByGrade()
	total := 0
	attrs := make([]any, 0, 2*len(byGrade)+4)
	for _, g := range model.Grades() {
		n := byGrade[g]
		total += n
		attrs = append(attrs, "waiting_"+strings.ToLower(g.String()), n)
	}
	if total <= limit {
		return
	}
	attrs = append(attrs, "backlog_size", total, "high_watermark", limit)
	obs.Logger.Warn("purchase backlog exceeds high watermark", attrs...)
}

// Enqueue appends a request to the backlog and notifies the broker. It
// returns false once intake is closed.
func (q *Queue) Enqueue(req model.PurchaseRequest) bool {
	if q.shuttingDown.Load() {
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	q.backlog = append(q.backlog, req)
	q.waiting[req.Grade]++
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Out exposes the output channel of requests.
func (q *Queue) Out() <-chan model.PurchaseRequest { return q.out }

// BacklogSize returns the number of enqueued-but-not-yet-output requests.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// BacklogByGrade returns how many requests per grade have not yet been
// handed to a worker. Grades with nothing waiting are omitted.
func (q *Queue) BacklogByGrade() map[model.FuelGrade]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[model.FuelGrade]int, len(q.waiting))
	for g, n := range q.waiting {
		if n > 0 {
			out[g] = n
		}
	}
	return out
}

// QueueDepth returns backlog plus buffered output items.
func (q *Queue) QueueDepth() int {
	q.mu.Lock()
	bl := len(q.backlog)
	q.mu.Unlock()
	return bl + len(q.out)
}

// MarkProcessed counts a settled request.
func (q *Queue) MarkProcessed() { q.processed.Add(1) }

// Metrics returns counters and sizes for observability.
func (q *Queue) Metrics() (enq, proc uint64, backlog, depth int) {
	enq = q.enqueued.Load()
	proc = q.processed.Load()
	backlog = q.BacklogSize()
	depth = q.QueueDepth()
	return enq, proc, backlog, depth
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.shuttingDown.Store(true) }

// IsShuttingDown reports if intake has been closed.
func (q *Queue) IsShuttingDown() bool { return q.shuttingDown.Load() }
