package renderer

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRenderStats_Add(t *testing.T) {
	total := RenderStats{}
	total.Add(RenderStats{TotalPixels: 4, PrimaryHits: 3, Misses: 1, Unlit: 1, Duration: time.Millisecond})
	total.Add(RenderStats{TotalPixels: 6, PrimaryHits: 2, Misses: 4, Duration: 2 * time.Millisecond})

	expected := RenderStats{TotalPixels: 10, PrimaryHits: 5, Misses: 5, Unlit: 1, Duration: 3 * time.Millisecond}
	if diff := cmp.Diff(expected, total); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderStats_HitRatio(t *testing.T) {
	if got := (RenderStats{}).HitRatio(); got != 0 {
		t.Errorf("Expected 0 for empty stats, got %f", got)
	}
	if got := (RenderStats{TotalPixels: 4, PrimaryHits: 1}).HitRatio(); got != 0.25 {
		t.Errorf("Expected 0.25, got %f", got)
	}
}
