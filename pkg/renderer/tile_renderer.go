package renderer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/framebuffer"
	"github.com/df07/go-tiled-raytracer/pkg/geometry"
	"github.com/df07/go-tiled-raytracer/pkg/scene"
	"github.com/df07/go-tiled-raytracer/pkg/shading"
)

// TileRenderer traces the pixels of tiles for one render configuration. It
// only reads the scene, so one renderer may be used from several goroutines.
type TileRenderer struct {
	scene       *scene.Scene
	intersector *geometry.Intersector
	rays        scene.RayGenerator
	opts        shading.Options
	width       int
	height      int
}

// NewTileRenderer creates a tile renderer for the given scene and configuration
func NewTileRenderer(s *scene.Scene, cfg RenderConfig) *TileRenderer {
	return &TileRenderer{
		scene:       s,
		intersector: s.Intersector(),
		rays:        s.Camera.Rays(float64(cfg.Width) / float64(cfg.Height)),
		opts:        cfg.ShadingOptions(),
		width:       cfg.Width,
		height:      cfg.Height,
	}
}

// NDC maps pixel (x, y) of a width x height image to normalized device
// coordinates with +Y up.
func NDC(x, y, width, height int) (float64, float64) {
	return float64(x)/float64(width)*2 - 1, -(float64(y)/float64(height)*2 - 1)
}

// RenderTile renders the pixels of one tile into a new buffer sized to the
// tile. The first pixel that fails to shade aborts the tile.
func (tr *TileRenderer) RenderTile(job TileJob) (*framebuffer.ColorBuffer, RenderStats, error) {
	start := time.Now()
	buf := framebuffer.New(job.Width, job.Height)
	stats := RenderStats{}

	for j := 0; j < job.Height; j++ {
		for i := 0; i < job.Width; i++ {
			trace, err := tr.TracePixel(job.X+i, job.Y+j)
			if err != nil {
				return nil, stats, errors.Wrapf(err, "pixel (%d,%d)", job.X+i, job.Y+j)
			}
			if err := buf.SetColor(i, j, trace.Color, framebuffer.Opaque); err != nil {
				return nil, stats, err
			}
			tr.updateStats(&stats, trace)
		}
	}

	stats.Duration = time.Since(start)
	return buf, stats, nil
}

// PixelTrace describes how one pixel got its color
type PixelTrace struct {
	X, Y      int
	Ray       core.Ray
	Hit       *geometry.Hit // Nil when the ray missed
	Shading   shading.Breakdown
	Color     core.Color
	HitLights bool // False when the ray missed or no light reached the hit
}

// TracePixel traces the primary ray through pixel (x, y) of the full image
func (tr *TileRenderer) TracePixel(x, y int) (PixelTrace, error) {
	ndcX, ndcY := NDC(x, y, tr.width, tr.height)
	ray := tr.rays.Ray(ndcX, ndcY)
	trace := PixelTrace{X: x, Y: y, Ray: ray, Color: tr.scene.Background}

	hit, isHit := tr.intersector.Intersect(ray)
	if !isHit {
		return trace, nil
	}
	trace.Hit = hit

	viewDir := tr.scene.Camera.Position().Subtract(hit.Point).Normalize()
	b, err := shading.Evaluate(hit, viewDir, tr.scene.Lights, tr.intersector, tr.opts, tr.scene.Background)
	if err != nil {
		return trace, err
	}
	trace.Shading = b
	trace.Color = b.Color
	trace.HitLights = b.Lit
	return trace, nil
}

// updateStats updates the render statistics with data from a single pixel
func (tr *TileRenderer) updateStats(stats *RenderStats, trace PixelTrace) {
	stats.TotalPixels++
	switch {
	case trace.Hit == nil:
		stats.Misses++
	case !trace.HitLights:
		stats.PrimaryHits++
		stats.Unlit++
	default:
		stats.PrimaryHits++
	}
}
