package renderer

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// RenderTiles renders every tile assigned to the worker named in
// req.Config, handing each result to report in index order. It stops early
// when report returns false. It touches no state besides the buffers it
// creates, so the same request always yields the same pixels.
func RenderTiles(req RenderRequest, report func(TileResult) bool) error {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.validateWorker(); err != nil {
		return err
	}

	grid := cfg.Grid()
	tr := NewTileRenderer(req.Scene, cfg)

	for i := cfg.WorkerIndex; i < grid.Total(); i += cfg.WorkerCount {
		job := grid.Job(i)
		buf, stats, err := tr.RenderTile(job)
		if !report(TileResult{SessionID: req.SessionID, Job: job, Buffer: buf, Stats: stats, Err: err}) {
			return nil
		}
	}
	return nil
}

// Worker is a render worker with its own goroutine. It receives render
// requests through a mailbox and reports tiles on the pool's result channel.
type Worker struct {
	ID int

	results chan<- TileResult
	log     *zap.Logger

	mu      sync.Mutex
	pending []RenderRequest
	closed  bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func newWorker(id int, results chan<- TileResult, log *zap.Logger) *Worker {
	w := &Worker{
		ID:      id,
		results: results,
		log:     log.With(zap.Int("worker", id)),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Post queues a render request. It never blocks.
func (w *Worker) Post(req RenderRequest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.Wrapf(core.ErrWorkerClosed, "worker %d", w.ID)
	}
	w.pending = append(w.pending, req)

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close tells the worker to terminate. A tile being traced is finished but
// not reported, and queued requests are dropped.
func (w *Worker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.pending = nil
	close(w.quit)
}

// Done is closed once the worker goroutine has exited
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) next() (RenderRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return RenderRequest{}, false
	}
	req := w.pending[0]
	w.pending = w.pending[1:]
	return req, true
}

// run is the main worker loop
func (w *Worker) run() {
	defer close(w.done)

	for {
		select {
		case <-w.quit:
			return
		case <-w.wake:
		}

		for {
			req, ok := w.next()
			if !ok {
				break
			}
			w.render(req)
		}
	}
}

func (w *Worker) render(req RenderRequest) {
	log := w.log.With(zap.String("session", req.SessionID.String()))
	log.Debug("rendering tiles", zap.Int("index", req.Config.WorkerIndex), zap.Int("count", req.Config.WorkerCount))

	tiles := 0
	err := RenderTiles(req, func(res TileResult) bool {
		res.WorkerID = w.ID
		select {
		case <-w.quit:
			return false
		default:
		}
		select {
		case w.results <- res:
			tiles++
			return true
		case <-w.quit:
			return false
		}
	})
	if err != nil {
		log.Error("render request rejected", zap.Error(err))
		return
	}
	log.Debug("tiles reported", zap.Int("tiles", tiles))
}
