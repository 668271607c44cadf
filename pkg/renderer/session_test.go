package renderer

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/framebuffer"
)

func tileResult(s *Session, index int) TileResult {
	job := s.Grid.Job(index)
	buf := framebuffer.New(job.Width, job.Height)
	for y := 0; y < job.Height; y++ {
		for x := 0; x < job.Width; x++ {
			buf.SetColor(x, y, core.NewColor(1, 1, 1), framebuffer.Opaque)
		}
	}
	return TileResult{SessionID: s.ID, Job: job, Buffer: buf, Stats: RenderStats{TotalPixels: job.Width * job.Height}}
}

func TestSession_CompleteRejects(t *testing.T) {
	s := newSession(testConfig(16, 16), []int{0}) // 4 tiles

	stale := tileResult(s, 0)
	stale.SessionID = uuid.New()

	outOfRange := tileResult(s, 0)
	outOfRange.Job.Index = 4

	tests := []struct {
		name     string
		result   TileResult
		accepted bool
	}{
		{"first report", tileResult(s, 0), true},
		{"duplicate tile", tileResult(s, 0), false},
		{"other session", stale, false},
		{"index past grid", outOfRange, false},
		{"negative index", TileResult{SessionID: s.ID, Job: TileJob{Index: -1}}, false},
		{"next tile", tileResult(s, 1), true},
	}

	for _, tt := range tests {
		if got := s.complete(tt.result); got != tt.accepted {
			t.Errorf("%s: complete = %t, want %t", tt.name, got, tt.accepted)
		}
	}

	if s.Completed() != 2 {
		t.Errorf("Expected 2 completed tiles, got %d", s.Completed())
	}
	if !s.Rendering() {
		t.Error("Expected session to still be rendering")
	}
}

func TestSession_FinishesAfterLastTile(t *testing.T) {
	s := newSession(testConfig(16, 8), []int{0, 1}) // 2 tiles

	s.complete(tileResult(s, 1))
	s.complete(tileResult(s, 0))

	select {
	case <-s.Done():
	default:
		t.Fatal("Expected session to be done")
	}

	var events []TileEvent
	for ev := range s.Events() {
		events = append(events, ev)
	}
	if len(events) != 2 || events[1].Completed != 2 || events[1].Total != 2 {
		t.Errorf("Unexpected events %+v", events)
	}

	r, err := s.Wait(context.Background())
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if r.Stats.TotalPixels != 128 || r.Rendering {
		t.Errorf("Unexpected report %+v", r)
	}

	img := s.Image()
	if c, _, _ := img.Color(15, 7); c != core.NewColor(1, 1, 1) {
		t.Errorf("Expected composited white pixel, got %v", c)
	}

	// Results after completion are ignored
	if s.complete(tileResult(s, 0)) {
		t.Error("Expected result after finish to be rejected")
	}
}

func TestSession_FailedTileCountsAsReported(t *testing.T) {
	s := newSession(testConfig(16, 8), []int{0})
	cause := errors.Wrap(core.ErrUnsupportedGeometry, "pixel (3,4)")

	failed := TileResult{SessionID: s.ID, WorkerID: 2, Job: s.Grid.Job(0), Err: cause}
	if !s.complete(failed) {
		t.Fatal("Expected failed tile to be accepted")
	}
	s.complete(tileResult(s, 1))

	_, err := s.Wait(context.Background())
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("Expected RenderError, got %v", err)
	}
	if len(renderErr.Failures) != 1 || renderErr.Failures[0].Index != 0 || renderErr.Failures[0].WorkerID != 2 {
		t.Errorf("Unexpected failures %+v", renderErr.Failures)
	}
	if !errors.Is(err, core.ErrUnsupportedGeometry) {
		t.Error("Expected the tile cause to be reachable")
	}
	if errors.Is(err, core.ErrSessionStalled) {
		t.Error("Expected completed session not to be stalled")
	}
}

func TestSession_Stall(t *testing.T) {
	s := newSession(testConfig(16, 16), []int{0})
	s.complete(tileResult(s, 2))

	now := time.Now()
	if s.stalledSince(now, time.Hour) {
		t.Error("Expected no stall within the timeout")
	}
	if !s.stalledSince(now.Add(time.Hour), time.Hour) {
		t.Error("Expected stall after the timeout")
	}

	err := s.stall()
	if err == nil || !err.Stalled {
		t.Fatalf("Expected stalled error, got %v", err)
	}
	if len(err.Missing) != 3 || err.Missing[0] != 0 || err.Missing[2] != 3 {
		t.Errorf("Expected tiles 0, 1 and 3 missing, got %v", err.Missing)
	}
	if !errors.Is(s.Err(), core.ErrSessionStalled) {
		t.Errorf("Expected ErrSessionStalled, got %v", s.Err())
	}
	if s.stall() != nil {
		t.Error("Expected second stall to be a no-op")
	}
}

func TestSession_WaitHonorsContext(t *testing.T) {
	s := newSession(testConfig(16, 16), []int{0})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	r, err := s.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if !r.Rendering {
		t.Error("Expected report of a running session")
	}
}

func TestSession_AbandonFailsUnreportedTiles(t *testing.T) {
	s := newSession(testConfig(32, 16), []int{7, 9}) // 8 tiles, worker 9 owns 1, 3, 5 and 7
	s.complete(tileResult(s, 3))

	cause := errors.Wrap(core.ErrWorkerClosed, "worker 9")
	failed := s.abandon(9, cause)
	if diff := cmp.Diff([]int{1, 5, 7}, failed); diff != "" {
		t.Errorf("Failed tiles mismatch (-want +got):\n%s", diff)
	}
	if s.Completed() != 4 || !s.Rendering() {
		t.Errorf("Expected 4 of 8 tiles counted and still rendering, got %d", s.Completed())
	}
	if s.abandon(9, cause) != nil {
		t.Error("Expected a second abandon to be a no-op")
	}
	if s.abandon(3, cause) != nil {
		t.Error("Expected a worker outside the session to be ignored")
	}

	// The remaining worker goes too, which ends the session
	s.complete(tileResult(s, 0))
	s.abandon(7, cause)

	_, err := s.Wait(context.Background())
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("Expected RenderError, got %v", err)
	}
	if len(renderErr.Failures) != 6 || renderErr.Stalled {
		t.Errorf("Expected 6 failed tiles and no stall, got %+v", renderErr)
	}
	if !errors.Is(err, core.ErrWorkerClosed) {
		t.Errorf("Expected ErrWorkerClosed cause, got %v", err)
	}
}

func TestSession_DropsEventsPastBuffer(t *testing.T) {
	cfg := testConfig(8*(MaxBufferedEvents+10), 8) // one row of tiles
	s := newSession(cfg, []int{0})
	if s.Total() != MaxBufferedEvents+10 {
		t.Fatalf("Expected %d tiles, got %d", MaxBufferedEvents+10, s.Total())
	}

	// Nobody reads the events; completing must not block
	for i := 0; i < s.Total(); i++ {
		if !s.complete(tileResult(s, i)) {
			t.Fatalf("Expected tile %d to be accepted", i)
		}
	}

	if s.Rendering() {
		t.Error("Expected session to finish")
	}
	if s.DroppedEvents() != 10 {
		t.Errorf("Expected 10 dropped events, got %d", s.DroppedEvents())
	}
	n := 0
	for range s.Events() {
		n++
	}
	if n != MaxBufferedEvents {
		t.Errorf("Expected %d buffered events, got %d", MaxBufferedEvents, n)
	}
}
