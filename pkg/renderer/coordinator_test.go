package renderer

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/geometry"
	"github.com/df07/go-tiled-raytracer/pkg/scene"
)

// startCoordinator runs a coordinator over a pool of n workers until the
// test ends
func startCoordinator(t *testing.T, n int, opts CoordinatorOptions) *Coordinator {
	t.Helper()
	pool := NewPool(n, time.Hour, zap.NewNop())
	c := NewCoordinator(pool, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		pool.Close()
	})
	return c
}

func waitSession(t *testing.T, s *Session) (Report, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	r, err := s.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("Timed out waiting for render")
	}
	return r, err
}

func TestCoordinator_RenderMatchesSinglePass(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		width   int
		height  int
	}{
		{"single worker", 1, 40, 30},
		{"more workers than rows", 5, 40, 30},
		{"ragged edges", 3, 37, 23},
		{"more workers than tiles", 8, 16, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, logs := observer.New(zap.InfoLevel)
			c := startCoordinator(t, tt.workers, CoordinatorOptions{Log: zap.New(obs)})

			cfg := testConfig(tt.width, tt.height)
			cfg.CalcDiffuse = true
			cfg.CalcPhong = true
			cfg.AllLights = true
			s := scene.NewDefaultScene()

			session, err := c.StartRender(cfg, s)
			if err != nil {
				t.Fatal(err)
			}
			r, err := waitSession(t, session)
			if err != nil {
				t.Fatal(err)
			}

			if r.Completed != r.Total || r.Workers != tt.workers {
				t.Errorf("Unexpected report %+v", r)
			}
			if r.Stats.TotalPixels != tt.width*tt.height {
				t.Errorf("Expected %d pixels traced, got %d", tt.width*tt.height, r.Stats.TotalPixels)
			}

			expected, _, err := NewTileRenderer(s, cfg).RenderTile(fullImageJob(cfg))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(expected.Pix, session.Image().Pix); diff != "" {
				t.Error("Composited image differs from a single pass render")
			}

			deadline := time.After(5 * time.Second)
			for logs.FilterMessage("render finished").Len() != 1 {
				select {
				case <-deadline:
					t.Fatal("Expected a render finished log entry")
				case <-time.After(5 * time.Millisecond):
				}
			}
		})
	}
}

func TestCoordinator_EventsCoverEveryTile(t *testing.T) {
	c := startCoordinator(t, 3, CoordinatorOptions{})

	session, err := c.StartRender(testConfig(40, 24), createTestScene())
	if err != nil {
		t.Fatal(err)
	}

	seen := map[int]bool{}
	last := 0
	timeout := time.After(30 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				done = true
				break
			}
			if seen[ev.Job.Index] {
				t.Errorf("Tile %d reported twice", ev.Job.Index)
			}
			seen[ev.Job.Index] = true
			if ev.Completed != last+1 || ev.Total != session.Total() {
				t.Errorf("Unexpected progress %d/%d", ev.Completed, ev.Total)
			}
			last = ev.Completed
		case <-timeout:
			t.Fatal("Timed out waiting for events")
		}
	}

	if len(seen) != session.Total() {
		t.Errorf("Expected %d tiles, saw %d", session.Total(), len(seen))
	}
}

func TestCoordinator_RejectsConcurrentRender(t *testing.T) {
	// Without Run nothing drains the results, so the first session stays open
	pool := NewPool(1, time.Hour, zap.NewNop())
	defer pool.Close()
	c := NewCoordinator(pool, CoordinatorOptions{})

	cfg := testConfig(16, 16)
	first, err := c.StartRender(cfg, createTestScene())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.StartRender(cfg, createTestScene()); !errors.Is(err, core.ErrRenderInProgress) {
		t.Errorf("Expected ErrRenderInProgress, got %v", err)
	}
	if c.Current() != first {
		t.Error("Expected the first session to remain current")
	}
}

func TestCoordinator_ValidatesBeforeDispatch(t *testing.T) {
	twoLights := createTestScene()
	twoLights.Lights = twoLights.Lights[:2]

	noCamera := createTestScene()
	noCamera.Camera = nil

	lit := testConfig(16, 16)
	lit.CalcDiffuse = true

	badSize := testConfig(0, 16)

	tests := []struct {
		name     string
		cfg      RenderConfig
		scene    *scene.Scene
		expected error
	}{
		{"too few lights", lit, twoLights, core.ErrInsufficientLights},
		{"no camera", lit, noCamera, core.ErrInvalidConfig},
		{"nil scene", lit, nil, core.ErrInvalidConfig},
		{"invalid size", badSize, createTestScene(), core.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool(1, time.Hour, zap.NewNop())
			defer pool.Close()
			c := NewCoordinator(pool, CoordinatorOptions{})

			if _, err := c.StartRender(tt.cfg, tt.scene); !errors.Is(err, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, err)
			}
			if c.Current() != nil {
				t.Error("Expected no session to start")
			}
			if pool.Size() != 0 {
				t.Error("Expected no workers to be spawned")
			}
		})
	}
}

func TestCoordinator_FlatRenderNeedsNoLights(t *testing.T) {
	c := startCoordinator(t, 2, CoordinatorOptions{})
	s := createTestScene()
	s.Lights = nil

	session, err := c.StartRender(testConfig(16, 16), s)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := waitSession(t, session); err != nil {
		t.Fatal(err)
	}
}

func TestCoordinator_FailedTilesNamed(t *testing.T) {
	c := startCoordinator(t, 2, CoordinatorOptions{})

	s := createTestScene()
	s.Primitives = []geometry.Primitive{unsupportedPrimitive{geometry.NewSphere(100, geometry.IdentityTransform(), geometry.Material{})}}
	cfg := testConfig(40, 40)
	cfg.CalcDiffuse = true

	session, err := c.StartRender(cfg, s)
	if err != nil {
		t.Fatal(err)
	}
	r, err := waitSession(t, session)

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("Expected RenderError, got %v", err)
	}
	if len(renderErr.Failures) == 0 || len(renderErr.Failures) == session.Total() {
		t.Errorf("Expected only the tiles covering the sphere to fail, got %d of %d", len(renderErr.Failures), session.Total())
	}
	if !errors.Is(err, core.ErrUnsupportedGeometry) {
		t.Errorf("Expected ErrUnsupportedGeometry cause, got %v", err)
	}
	if r.Completed != r.Total {
		t.Errorf("Expected failed tiles to count as reported, got %d of %d", r.Completed, r.Total)
	}
}

func TestCoordinator_StallWatchdog(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	pool := NewPool(1, time.Hour, zap.NewNop())
	defer pool.Close()
	c := NewCoordinator(pool, CoordinatorOptions{Log: zap.New(obs), StallTimeout: time.Minute})

	// Without Run nothing drains the results, so no tile ever arrives
	session, err := c.StartRender(testConfig(16, 16), createTestScene())
	if err != nil {
		t.Fatal(err)
	}

	c.checkStall(time.Now())
	if !session.Rendering() {
		t.Fatal("Expected no stall within the timeout")
	}

	c.checkStall(time.Now().Add(2 * time.Minute))
	_, err = waitSession(t, session)
	if !errors.Is(err, core.ErrSessionStalled) {
		t.Fatalf("Expected ErrSessionStalled, got %v", err)
	}

	var renderErr *RenderError
	if errors.As(err, &renderErr) && len(renderErr.Missing) != 4 {
		t.Errorf("Expected all 4 tiles missing, got %v", renderErr.Missing)
	}
	if logs.FilterMessage("render stalled").Len() != 1 || logs.FilterMessage("render failed").Len() != 1 {
		t.Error("Expected one render stalled and one render failed log entry")
	}

	// The stalled session no longer blocks a new render
	if _, err := c.StartRender(testConfig(16, 16), createTestScene()); errors.Is(err, core.ErrRenderInProgress) {
		t.Error("Expected a new render to be accepted after a stall")
	}
}

func TestCoordinator_ClosedWorkerFailsAtDispatch(t *testing.T) {
	pool := NewPool(2, time.Hour, zap.NewNop())
	defer pool.Close()
	c := NewCoordinator(pool, CoordinatorOptions{})

	// A worker that has been closed accepts no requests
	pool.Ensure()
	closed := pool.Workers()[1]
	closed.Close()

	session, err := c.StartRender(testConfig(16, 16), createTestScene())
	if err != nil {
		t.Fatal(err)
	}

	r := session.Report()
	if r.Completed != 2 {
		t.Errorf("Expected the closed worker's 2 tiles to fail at dispatch, got %d", r.Completed)
	}

	var failed []int
	for ev := range drainEvents(session, 2) {
		if !errors.Is(ev.Err, core.ErrWorkerClosed) || ev.Buffer != nil {
			t.Errorf("Expected tile %d to fail with ErrWorkerClosed, got %v", ev.Job.Index, ev.Err)
		}
		failed = append(failed, ev.Job.Index)
	}
	if diff := cmp.Diff([]int{1, 3}, failed); diff != "" {
		t.Errorf("Failed tiles mismatch (-want +got):\n%s", diff)
	}
}

func TestCoordinator_LoweringTargetMidRenderEndsSession(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	pool := NewPool(4, time.Hour, zap.NewNop())
	c := NewCoordinator(pool, CoordinatorOptions{Log: zap.New(obs)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
		pool.Close()
	}()

	cfg := testConfig(256, 256) // 1024 tiles
	cfg.CalcDiffuse = true
	cfg.CalcPhong = true
	cfg.AllLights = true

	session, err := c.StartRender(cfg, scene.NewDefaultScene())
	if err != nil {
		t.Fatal(err)
	}
	pool.SetTarget(1)
	if res := pool.Ensure(); len(res.Retired) != 3 {
		t.Fatalf("Expected 3 workers retired, got %v", res.Retired)
	}

	r, err := waitSession(t, session)
	if err != nil && !errors.Is(err, core.ErrWorkerClosed) {
		t.Fatalf("Expected success or ErrWorkerClosed, got %v", err)
	}
	if r.Rendering || r.Completed != r.Total {
		t.Errorf("Expected every tile accounted for, got %d of %d", r.Completed, r.Total)
	}

	next, err := c.StartRender(testConfig(16, 16), createTestScene())
	if err != nil {
		t.Fatalf("Expected a new render to be accepted, got %v", err)
	}
	if r, err := waitSession(t, next); err != nil || r.Workers != 1 {
		t.Errorf("Expected a clean render on 1 worker, got %+v, %v", r, err)
	}

	deadline := time.After(5 * time.Second)
	for logs.FilterMessage("render finished").Len()+logs.FilterMessage("render failed").Len() != 2 {
		select {
		case <-deadline:
			t.Fatal("Expected each session to be reported once")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// drainEvents returns a channel with the first n buffered events of session
func drainEvents(session *Session, n int) <-chan TileEvent {
	out := make(chan TileEvent, n)
	for i := 0; i < n; i++ {
		select {
		case ev := <-session.Events():
			out <- ev
		default:
		}
	}
	close(out)
	return out
}

func TestCoordinator_DropsStaleResults(t *testing.T) {
	pool := NewPool(1, time.Hour, zap.NewNop())
	defer pool.Close()
	c := NewCoordinator(pool, CoordinatorOptions{})

	// No session yet
	c.handle(TileResult{SessionID: uuid.New()})

	session, err := c.StartRender(testConfig(16, 16), createTestScene())
	if err != nil {
		t.Fatal(err)
	}
	stale := tileResult(session, 0)
	stale.SessionID = uuid.New()
	c.handle(stale)

	if session.Completed() != 0 {
		t.Errorf("Expected stale result to be dropped, completed %d", session.Completed())
	}

	c.handle(tileResult(session, 0))
	if session.Completed() != 1 {
		t.Errorf("Expected current result to count, completed %d", session.Completed())
	}
}
