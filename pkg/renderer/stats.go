package renderer

import "time"

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	TotalPixels int           `json:"totalPixels"` // Pixels written
	PrimaryHits int           `json:"primaryHits"` // Primary rays that hit a primitive
	Misses      int           `json:"misses"`      // Primary rays that took the background color
	Unlit       int           `json:"unlit"`       // Hits that no light in use reached
	Duration    time.Duration `json:"duration"`    // Wall time spent tracing
}

// Add accumulates other into s
func (s *RenderStats) Add(other RenderStats) {
	s.TotalPixels += other.TotalPixels
	s.PrimaryHits += other.PrimaryHits
	s.Misses += other.Misses
	s.Unlit += other.Unlit
	s.Duration += other.Duration
}

// HitRatio returns the fraction of pixels whose primary ray hit a primitive
func (s RenderStats) HitRatio() float64 {
	if s.TotalPixels == 0 {
		return 0
	}
	return float64(s.PrimaryHits) / float64(s.TotalPixels)
}
