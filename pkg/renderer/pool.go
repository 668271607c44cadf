package renderer

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconcileResult describes what one reconciliation changed
type ReconcileResult struct {
	Target  int   // Clamped target
	Spawned []int // IDs of new workers
	Retired []int // IDs of closed workers, highest index first
	Live    int   // Workers alive afterwards
}

// ClampTarget converts a requested worker count into a usable one:
// max(floor(target), 1)
func ClampTarget(target float64) int {
	if math.IsNaN(target) {
		return 1
	}
	return int(math.Max(math.Floor(target), 1))
}

// Pool keeps the number of live workers at a target, spawning and retiring
// workers on each reconciliation.
type Pool struct {
	results  chan TileResult
	interval time.Duration
	log      *zap.Logger

	reconcileMu sync.Mutex // serializes Reconcile

	mu       sync.Mutex // guards the fields below
	workers  []*Worker
	target   int
	nextID   int
	onRetire func(*Worker)
}

// DefaultReconcileInterval is the period of the reconciliation tick
const DefaultReconcileInterval = time.Second

// NewPool creates a pool with the given target. No worker is spawned until
// the first reconciliation.
func NewPool(target int, interval time.Duration, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &Pool{
		results:  make(chan TileResult, 256),
		interval: interval,
		log:      log,
		target:   ClampTarget(float64(target)),
	}
}

// Results returns the channel all workers report tiles on
func (p *Pool) Results() <-chan TileResult {
	return p.results
}

// SetTarget changes the worker count applied at the next reconciliation and
// returns the clamped value.
func (p *Pool) SetTarget(target int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.target = ClampTarget(float64(target))
	return p.target
}

// Target returns the current clamped target
func (p *Pool) Target() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// OnRetire registers fn to be called for every worker the pool closes,
// after the worker has been removed from the live set. It replaces any
// earlier registration.
func (p *Pool) OnRetire(fn func(*Worker)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRetire = fn
}

// Workers returns the live workers in index order
func (p *Pool) Workers() []*Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Worker(nil), p.workers...)
}

// Size returns the number of live workers
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Ensure reconciles against the current target
func (p *Pool) Ensure() ReconcileResult {
	return p.Reconcile(p.Target())
}

// Reconcile spawns workers up to target, or closes the workers at index
// target and above, highest first. Target is clamped to at least one.
func (p *Pool) Reconcile(target int) ReconcileResult {
	p.reconcileMu.Lock()
	defer p.reconcileMu.Unlock()

	target = ClampTarget(float64(target))
	result := ReconcileResult{Target: target}

	var retired []*Worker
	p.mu.Lock()
	for len(p.workers) < target {
		w := newWorker(p.nextID, p.results, p.log)
		p.nextID++
		p.workers = append(p.workers, w)
		result.Spawned = append(result.Spawned, w.ID)
	}
	for i := len(p.workers) - 1; i >= target; i-- {
		p.workers[i].Close()
		retired = append(retired, p.workers[i])
		result.Retired = append(result.Retired, p.workers[i].ID)
	}
	p.workers = p.workers[:min(target, len(p.workers))]
	result.Live = len(p.workers)
	onRetire := p.onRetire
	p.mu.Unlock()

	notifyRetired(onRetire, retired)

	if len(result.Spawned) > 0 {
		p.log.Info("workers spawned", zap.Ints("ids", result.Spawned), zap.Int("live", result.Live))
	}
	if len(result.Retired) > 0 {
		p.log.Info("workers retired", zap.Ints("ids", result.Retired), zap.Int("live", result.Live))
	}
	return result
}

// Run reconciles on every tick until ctx is done, then closes all workers
func (p *Pool) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.Close()

	p.Ensure()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Ensure()
		}
	}
}

// Close closes every worker and empties the pool
func (p *Pool) Close() {
	p.reconcileMu.Lock()
	defer p.reconcileMu.Unlock()

	p.mu.Lock()
	retired := make([]*Worker, 0, len(p.workers))
	for i := len(p.workers) - 1; i >= 0; i-- {
		p.workers[i].Close()
		retired = append(retired, p.workers[i])
	}
	p.workers = nil
	onRetire := p.onRetire
	p.mu.Unlock()

	notifyRetired(onRetire, retired)
}

func notifyRetired(fn func(*Worker), retired []*Worker) {
	if fn == nil {
		return
	}
	for _, w := range retired {
		fn(w)
	}
}
