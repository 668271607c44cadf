package renderer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/df07/go-tiled-raytracer/pkg/framebuffer"
)

// MaxBufferedEvents caps the tile events a session holds for a slow or
// absent reader. Events beyond it are dropped; the composited image still
// receives every tile.
const MaxBufferedEvents = 1024

// TileEvent is published for every tile composited into the image
type TileEvent struct {
	Job       TileJob
	Buffer    *framebuffer.ColorBuffer // Nil for failed tiles
	Err       error
	Completed int
	Total     int
}

// Report summarizes a session
type Report struct {
	SessionID uuid.UUID     `json:"sessionId"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	Workers   int           `json:"workers"`
	Rendering bool          `json:"rendering"`
	Elapsed   time.Duration `json:"elapsed"`
	Stats     RenderStats   `json:"stats"`
	Err       error         `json:"-"`
}

// Session is one render pass from dispatch until every tile has been
// reported. All state is guarded by the session mutex.
type Session struct {
	ID      uuid.UUID
	Config  RenderConfig
	Grid    TileGrid
	Workers int

	mu            sync.Mutex
	image         *framebuffer.ColorBuffer
	assigned      map[int]int // worker ID to worker index
	received      []bool
	completed     int
	failures      []*TileError
	stats         RenderStats
	rendering     bool
	started       time.Time
	finished      time.Time
	lastProgress  time.Time
	droppedEvents int
	err           error

	done     chan struct{}
	events   chan TileEvent
	reported sync.Once
}

// newSession creates a session whose tiles are split across the workers
// with the given IDs, in index order.
func newSession(cfg RenderConfig, workerIDs []int) *Session {
	grid := cfg.Grid()
	now := time.Now()
	assigned := make(map[int]int, len(workerIDs))
	for k, id := range workerIDs {
		assigned[id] = k
	}
	return &Session{
		ID:           uuid.New(),
		Config:       cfg,
		Grid:         grid,
		Workers:      len(workerIDs),
		image:        framebuffer.New(cfg.Width, cfg.Height),
		assigned:     assigned,
		received:     make([]bool, grid.Total()),
		rendering:    true,
		started:      now,
		lastProgress: now,
		done:         make(chan struct{}),
		events:       make(chan TileEvent, min(grid.Total(), MaxBufferedEvents)),
	}
}

// Total returns the number of tiles in the session
func (s *Session) Total() int {
	return s.Grid.Total()
}

// Completed returns the number of tiles reported so far
func (s *Session) Completed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Rendering reports whether the session is still waiting for tiles
func (s *Session) Rendering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendering
}

// Elapsed returns the time since the session started, or its total
// duration once finished.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() time.Duration {
	if s.rendering {
		return time.Since(s.started)
	}
	return s.finished.Sub(s.started)
}

// Done is closed when the session finishes
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Events delivers one event per reported tile and is closed when the
// session finishes. Sends never block the coordinator: once
// MaxBufferedEvents are waiting, further events are dropped.
func (s *Session) Events() <-chan TileEvent {
	return s.events
}

// DroppedEvents returns the number of tile events no reader had room for
func (s *Session) DroppedEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedEvents
}

// Err returns the session outcome once finished
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Image returns a copy of the composited image
func (s *Session) Image() *framebuffer.ColorBuffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image.Clone()
}

// Report returns a summary of the session's current state
func (s *Session) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Report{
		SessionID: s.ID,
		Width:     s.Config.Width,
		Height:    s.Config.Height,
		Total:     s.Grid.Total(),
		Completed: s.completed,
		Workers:   s.Workers,
		Rendering: s.rendering,
		Elapsed:   s.elapsedLocked(),
		Stats:     s.stats,
		Err:       s.err,
	}
}

// Wait blocks until the session finishes or ctx is done
func (s *Session) Wait(ctx context.Context) (Report, error) {
	select {
	case <-s.done:
		r := s.Report()
		return r, r.Err
	case <-ctx.Done():
		return s.Report(), ctx.Err()
	}
}

// complete records a tile result. It reports false for results that do not
// belong to this session or repeat a tile already counted.
func (s *Session) complete(res TileResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := res.Job.Index
	if !s.rendering || res.SessionID != s.ID || idx < 0 || idx >= len(s.received) || s.received[idx] {
		return false
	}
	s.recordLocked(res)
	return true
}

// abandon fails every tile assigned to the worker that has not been
// reported yet and returns their indices. It is a no-op for workers outside
// the session or once the session has finished.
func (s *Session) abandon(workerID int, cause error) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.assigned[workerID]
	if !s.rendering || !ok {
		return nil
	}
	delete(s.assigned, workerID)

	var failed []int
	for _, i := range s.Grid.Indices(k, s.Workers) {
		if s.received[i] {
			continue
		}
		failed = append(failed, i)
		s.recordLocked(TileResult{SessionID: s.ID, WorkerID: workerID, Job: s.Grid.Job(i), Err: cause})
		if !s.rendering {
			break
		}
	}
	return failed
}

// recordLocked counts a tile that has not been seen before, composites or
// records its failure, publishes an event and finishes the session after
// the last tile.
func (s *Session) recordLocked(res TileResult) {
	idx := res.Job.Index
	s.received[idx] = true
	s.completed++
	s.lastProgress = time.Now()

	if res.Err != nil {
		s.failures = append(s.failures, &TileError{Index: idx, X: res.Job.X, Y: res.Job.Y, WorkerID: res.WorkerID, Err: res.Err})
	} else {
		s.image.Blit(res.Buffer, res.Job.X, res.Job.Y)
		s.stats.Add(res.Stats)
	}

	select {
	case s.events <- TileEvent{Job: res.Job, Buffer: res.Buffer, Err: res.Err, Completed: s.completed, Total: len(s.received)}:
	default:
		s.droppedEvents++
	}

	if s.completed == len(s.received) {
		var err error
		if len(s.failures) > 0 {
			err = &RenderError{SessionID: s.ID, Failures: s.failures}
		}
		s.finishLocked(err)
	}
}

// stalledSince reports whether the session has gone without a tile for at
// least timeout as of now.
func (s *Session) stalledSince(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendering && now.Sub(s.lastProgress) >= timeout
}

// stall finishes the session with the tiles still missing
func (s *Session) stall() *RenderError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rendering {
		return nil
	}

	var missing []int
	for i, ok := range s.received {
		if !ok {
			missing = append(missing, i)
		}
	}
	err := &RenderError{SessionID: s.ID, Failures: s.failures, Stalled: true, Missing: missing}
	s.finishLocked(err)
	return err
}

// finishLocked runs exactly once per session
func (s *Session) finishLocked(err error) {
	s.rendering = false
	s.finished = time.Now()
	s.err = err
	close(s.events)
	close(s.done)
}
