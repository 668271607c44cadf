package renderer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/scene"
	"github.com/df07/go-tiled-raytracer/pkg/shading"
)

// DefaultLogger implements core.Logger by writing to stdout
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() core.Logger {
	return &DefaultLogger{}
}

// CoordinatorOptions configures a coordinator
type CoordinatorOptions struct {
	Log          *zap.Logger   // Structured events; nil disables
	Progress     core.Logger   // Human readable progress lines; nil disables
	StallTimeout time.Duration // Finish a session with no tile for this long; 0 waits forever
}

// Coordinator splits renders into tiles, dispatches them to the pool's
// workers and composites the tiles they report.
type Coordinator struct {
	pool         *Pool
	log          *zap.Logger
	progress     core.Logger
	stallTimeout time.Duration

	startMu sync.Mutex // serializes StartRender

	mu      sync.Mutex // guards session
	session *Session
}

// NewCoordinator creates a coordinator that dispatches to pool. Workers the
// pool retires while a render is running have their unreported tiles failed
// with ErrWorkerClosed.
func NewCoordinator(pool *Pool, opts CoordinatorOptions) *Coordinator {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	c := &Coordinator{
		pool:         pool,
		log:          opts.Log,
		progress:     opts.Progress,
		stallTimeout: opts.StallTimeout,
	}
	pool.OnRetire(c.workerRetired)
	return c
}

// Current returns the active or most recent session, or nil
func (c *Coordinator) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// StartRender validates the request, starts a session and sends the render
// configuration to every live worker. It does not wait for any tile: use the
// session to observe progress. Only one session may be active at a time.
func (c *Coordinator) StartRender(cfg RenderConfig, s *scene.Scene) (*Session, error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if current := c.Current(); current != nil && current.Rendering() {
		return nil, errors.Wrapf(core.ErrRenderInProgress, "session %s", current.ID)
	}
	if s == nil || s.Camera == nil {
		return nil, errors.Wrap(core.ErrInvalidConfig, "scene with a camera is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := shading.ValidateLights(len(s.Lights), cfg.ShadingOptions()); err != nil {
		return nil, err
	}
	if cfg.SupersamplingRate >= 1 {
		c.log.Warn("supersampling is not implemented, tracing one ray per pixel", zap.Int("rate", cfg.SupersamplingRate))
	}
	if cfg.UseMirrors || cfg.MaxRecursionDepth > 0 {
		c.log.Warn("mirror reflection is not implemented, no reflection rays are traced",
			zap.Bool("useMirrors", cfg.UseMirrors), zap.Int("maxRecursionDepth", cfg.MaxRecursionDepth))
	}

	c.pool.Ensure()
	workers := c.pool.Workers()
	ids := make([]int, len(workers))
	for k, w := range workers {
		ids[k] = w.ID
	}

	session := newSession(cfg, ids)
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.log.Info("render started",
		zap.String("session", session.ID.String()),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("tiles", session.Total()),
		zap.Int("workers", len(workers)))
	c.printf("Rendering %dx%d in %d tiles on %d workers...\n", cfg.Width, cfg.Height, session.Total(), len(workers))

	for k, w := range workers {
		req := RenderRequest{SessionID: session.ID, Config: cfg.ForWorker(k, len(workers)), Scene: s}
		if err := w.Post(req); err != nil {
			c.abandon(session, w.ID, err)
		}
	}

	return session, nil
}

// Run drains tile results until ctx is done, compositing them into the
// current session and watching it for stalls.
func (c *Coordinator) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if c.stallTimeout > 0 {
		ticker := time.NewTicker(max(c.stallTimeout/4, 10*time.Millisecond))
		defer ticker.Stop()
		tick = ticker.C
	}

	results := c.pool.Results()
	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-results:
			c.handle(res)
		case now := <-tick:
			c.checkStall(now)
		}
	}
}

// handle composites one tile result
func (c *Coordinator) handle(res TileResult) {
	session := c.Current()
	if session == nil || session.ID != res.SessionID {
		c.log.Debug("dropping tile from another session",
			zap.String("session", res.SessionID.String()), zap.Int("tile", res.Job.Index))
		return
	}

	if !session.complete(res) {
		c.log.Debug("dropping tile", zap.Int("tile", res.Job.Index), zap.Int("worker", res.WorkerID))
		return
	}

	if res.Err != nil {
		c.log.Error("tile failed",
			zap.String("session", session.ID.String()),
			zap.Int("tile", res.Job.Index),
			zap.Int("worker", res.WorkerID),
			zap.Error(res.Err))
	}

	c.finishIfDone(session)
}

// workerRetired fails the tiles a closed worker still owed the current session
func (c *Coordinator) workerRetired(w *Worker) {
	if session := c.Current(); session != nil {
		c.abandon(session, w.ID, errors.Wrapf(core.ErrWorkerClosed, "worker %d retired", w.ID))
	}
}

func (c *Coordinator) abandon(session *Session, workerID int, cause error) {
	failed := session.abandon(workerID, cause)
	if len(failed) == 0 {
		return
	}
	c.log.Warn("worker gone, failing its tiles",
		zap.String("session", session.ID.String()),
		zap.Int("worker", workerID),
		zap.Ints("tiles", failed),
		zap.Error(cause))
	c.finishIfDone(session)
}

func (c *Coordinator) finishIfDone(session *Session) {
	select {
	case <-session.Done():
		session.reported.Do(func() { c.finished(session) })
	default:
	}
}

func (c *Coordinator) checkStall(now time.Time) {
	session := c.Current()
	if session == nil || !session.stalledSince(now, c.stallTimeout) {
		return
	}
	if err := session.stall(); err != nil {
		c.log.Error("render stalled",
			zap.String("session", session.ID.String()),
			zap.Duration("timeout", c.stallTimeout),
			zap.Ints("missing", err.Missing))
		c.finishIfDone(session)
	}
}

func (c *Coordinator) finished(session *Session) {
	r := session.Report()
	fields := []zap.Field{
		zap.String("session", r.SessionID.String()),
		zap.Duration("elapsed", r.Elapsed),
		zap.Int("width", r.Width),
		zap.Int("height", r.Height),
		zap.Int("tiles", r.Completed),
	}
	if dropped := session.DroppedEvents(); dropped > 0 {
		fields = append(fields, zap.Int("droppedEvents", dropped))
	}
	if r.Err != nil {
		c.log.Error("render failed", append(fields, zap.Error(r.Err))...)
		c.printf("Render failed after %v: %v\n", r.Elapsed, r.Err)
		return
	}
	c.log.Info("render finished", fields...)
	c.printf("Render of %dx%d finished in %v\n", r.Width, r.Height, r.Elapsed)
}

func (c *Coordinator) printf(format string, args ...interface{}) {
	if c.progress != nil {
		c.progress.Printf(format, args...)
	}
}
