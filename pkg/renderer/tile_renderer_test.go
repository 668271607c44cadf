package renderer

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/framebuffer"
	"github.com/df07/go-tiled-raytracer/pkg/geometry"
	"github.com/df07/go-tiled-raytracer/pkg/scene"
)

// createTestScene creates a red sphere in front of the default camera with
// three lights behind the camera
func createTestScene() *scene.Scene {
	s := &scene.Scene{
		Camera:     scene.NewCamera(scene.DefaultCameraConfig()),
		Background: core.NewColor(0, 0, 1),
	}
	s.Add(geometry.NewSphere(100, geometry.IdentityTransform(), geometry.NewMaterial(core.NewColor(1, 0, 0))))
	s.AddLight(
		scene.NewPointLight("a", core.NewVec3(0, 0, 800), core.NewColor(1, 1, 1), 1),
		scene.NewPointLight("b", core.NewVec3(-200, 0, 800), core.NewColor(1, 1, 1), 1),
		scene.NewPointLight("c", core.NewVec3(200, 0, 800), core.NewColor(1, 1, 1), 1),
	)
	return s
}

func testConfig(width, height int) RenderConfig {
	cfg := DefaultRenderConfig()
	cfg.Width = width
	cfg.Height = height
	cfg.TileSize = TileSize{X: 8, Y: 8}
	return cfg
}

func fullImageJob(cfg RenderConfig) TileJob {
	return TileJob{Width: cfg.Width, Height: cfg.Height, FullWidth: cfg.Width, FullHeight: cfg.Height}
}

func TestNDC(t *testing.T) {
	tests := []struct {
		x, y       int
		ndcX, ndcY float64
	}{
		{0, 0, -1, 1},
		{50, 25, 0, 0},
		{100, 50, 1, -1},
		{25, 0, -0.5, 1},
	}
	for _, tt := range tests {
		x, y := NDC(tt.x, tt.y, 100, 50)
		if x != tt.ndcX || y != tt.ndcY {
			t.Errorf("NDC(%d,%d) = (%f,%f), want (%f,%f)", tt.x, tt.y, x, y, tt.ndcX, tt.ndcY)
		}
	}
}

func TestTileRenderer_FlatColorAndBackground(t *testing.T) {
	cfg := testConfig(40, 40)
	tr := NewTileRenderer(createTestScene(), cfg)

	buf, stats, err := tr.RenderTile(fullImageJob(cfg))
	if err != nil {
		t.Fatal(err)
	}

	center, _, _ := buf.Color(20, 20)
	if center != core.NewColor(1, 0, 0) {
		t.Errorf("Expected flat red at center, got %v", center)
	}
	corner, _, _ := buf.Color(0, 0)
	if corner != core.NewColor(0, 0, 1) {
		t.Errorf("Expected background at corner, got %v", corner)
	}

	if stats.TotalPixels != 1600 || stats.PrimaryHits+stats.Misses != 1600 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.PrimaryHits == 0 || stats.Misses == 0 {
		t.Errorf("Expected both hits and misses, got %+v", stats)
	}
}

func TestTileRenderer_TilesMatchFullImage(t *testing.T) {
	cfg := testConfig(37, 23)
	cfg.CalcDiffuse = true
	cfg.CalcPhong = true
	cfg.AllLights = true
	tr := NewTileRenderer(scene.NewDefaultScene(), cfg)

	full, _, err := tr.RenderTile(fullImageJob(cfg))
	if err != nil {
		t.Fatal(err)
	}

	composite := framebuffer.New(cfg.Width, cfg.Height)
	grid := cfg.Grid()
	for i := 0; i < grid.Total(); i++ {
		job := grid.Job(i)
		buf, _, err := tr.RenderTile(job)
		if err != nil {
			t.Fatal(err)
		}
		if buf.Width != job.Width || buf.Height != job.Height {
			t.Fatalf("Tile %d buffer %dx%d, want %dx%d", i, buf.Width, buf.Height, job.Width, job.Height)
		}
		composite.Blit(buf, job.X, job.Y)
	}

	if diff := cmp.Diff(full.Pix, composite.Pix); diff != "" {
		t.Error("Composited tiles differ from the full image render")
	}
}

func TestTileRenderer_Deterministic(t *testing.T) {
	cfg := testConfig(32, 24)
	cfg.CalcDiffuse = true
	cfg.AllLights = true

	a, _, errA := NewTileRenderer(scene.NewDefaultScene(), cfg).RenderTile(fullImageJob(cfg))
	b, _, errB := NewTileRenderer(scene.NewDefaultScene(), cfg).RenderTile(fullImageJob(cfg))
	if errA != nil || errB != nil {
		t.Fatal(errA, errB)
	}
	if diff := cmp.Diff(a.Pix, b.Pix); diff != "" {
		t.Error("Expected identical output for identical input")
	}
}

func TestTileRenderer_TracePixel(t *testing.T) {
	cfg := testConfig(40, 40)
	cfg.CalcDiffuse = true
	tr := NewTileRenderer(createTestScene(), cfg)

	trace, err := tr.TracePixel(20, 20)
	if err != nil {
		t.Fatal(err)
	}
	if trace.Hit == nil {
		t.Fatal("Expected center pixel to hit the sphere")
	}
	if math.Abs(trace.Hit.Point.Z-100) > 1e-6 {
		t.Errorf("Expected hit on sphere front at z=100, got %v", trace.Hit.Point)
	}
	if !trace.HitLights || len(trace.Shading.Lights) != 1 {
		t.Errorf("Expected lit single light breakdown, got %+v", trace.Shading)
	}

	miss, err := tr.TracePixel(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if miss.Hit != nil || miss.Color != core.NewColor(0, 0, 1) {
		t.Errorf("Expected background miss, got %+v", miss)
	}
}

// unsupportedPrimitive intersects like a sphere but is no shape the shader
// knows how to light
type unsupportedPrimitive struct{ *geometry.Sphere }

func (u unsupportedPrimitive) Hit(ray core.Ray, tMin, tMax float64) (*geometry.Hit, bool) {
	hit, ok := u.Sphere.Hit(ray, tMin, tMax)
	if ok {
		hit.Primitive = u
	}
	return hit, ok
}

func TestTileRenderer_UnsupportedGeometryFailsTile(t *testing.T) {
	s := createTestScene()
	s.Primitives = []geometry.Primitive{unsupportedPrimitive{geometry.NewSphere(100, geometry.IdentityTransform(), geometry.Material{})}}

	cfg := testConfig(16, 16)
	cfg.CalcDiffuse = true
	tr := NewTileRenderer(s, cfg)

	buf, _, err := tr.RenderTile(fullImageJob(cfg))
	if !errors.Is(err, core.ErrUnsupportedGeometry) {
		t.Errorf("Expected ErrUnsupportedGeometry, got %v", err)
	}
	if buf != nil {
		t.Error("Expected no buffer for failed tile")
	}
}

func TestTileRenderer_EmptyTile(t *testing.T) {
	cfg := testConfig(16, 16)
	buf, stats, err := NewTileRenderer(createTestScene(), cfg).RenderTile(TileJob{X: 0, Y: 32, FullWidth: 16, FullHeight: 16})
	if err != nil {
		t.Fatal(err)
	}
	if len(buf.Pix) != 0 || stats.TotalPixels != 0 {
		t.Errorf("Expected empty buffer, got %d bytes", len(buf.Pix))
	}
}
