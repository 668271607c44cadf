package geometry

import (
	"math"
	"testing"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

func TestBox_Hit_FaceNormals(t *testing.T) {
	box := NewBox(core.NewVec3(2, 2, 2), IdentityTransform(), NewMaterial(core.NewColor(0, 1, 0)))

	tests := []struct {
		name           string
		origin         core.Vec3
		direction      core.Vec3
		expectedT      float64
		expectedNormal core.Vec3
	}{
		{"front face", core.NewVec3(0, 0, 5), core.NewVec3(0, 0, -1), 4, core.NewVec3(0, 0, 1)},
		{"back face", core.NewVec3(0, 0, -5), core.NewVec3(0, 0, 1), 4, core.NewVec3(0, 0, -1)},
		{"right face", core.NewVec3(5, 0, 0), core.NewVec3(-1, 0, 0), 4, core.NewVec3(1, 0, 0)},
		{"left face", core.NewVec3(-5, 0, 0), core.NewVec3(1, 0, 0), 4, core.NewVec3(-1, 0, 0)},
		{"top face", core.NewVec3(0, 5, 0), core.NewVec3(0, -1, 0), 4, core.NewVec3(0, 1, 0)},
		{"bottom face", core.NewVec3(0, -5, 0), core.NewVec3(0, 1, 0), 4, core.NewVec3(0, -1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, isHit := box.Hit(core.NewRay(tt.origin, tt.direction), RayEpsilon, math.Inf(1))
			if !isHit {
				t.Fatal("Expected hit, got miss")
			}
			if math.Abs(hit.T-tt.expectedT) > 1e-9 {
				t.Errorf("Expected t=%f, got %f", tt.expectedT, hit.T)
			}
			if hit.FaceNormal != tt.expectedNormal {
				t.Errorf("Expected face normal %v, got %v", tt.expectedNormal, hit.FaceNormal)
			}
		})
	}
}

func TestBox_Hit_Misses(t *testing.T) {
	box := NewBox(core.NewVec3(2, 2, 2), IdentityTransform(), NewMaterial(core.NewColor(0, 1, 0)))

	tests := []struct {
		name      string
		origin    core.Vec3
		direction core.Vec3
	}{
		{"parallel outside slab", core.NewVec3(0, 3, 5), core.NewVec3(0, 0, -1)},
		{"pointing away", core.NewVec3(0, 0, 5), core.NewVec3(0, 0, 1)},
		{"starting inside", core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1)},
		{"diagonal miss", core.NewVec3(5, 5, 5), core.NewVec3(1, 0, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hit, isHit := box.Hit(core.NewRay(tt.origin, tt.direction), RayEpsilon, math.Inf(1)); isHit {
				t.Errorf("Expected miss, got hit at t=%f", hit.T)
			}
		})
	}
}

func TestBox_Hit_RotatedNormalToWorld(t *testing.T) {
	// Rotate a cube a quarter turn about Y: its local +Z face now faces world +X
	transform := NewTransform(core.NewVec3(0, 0, 0), core.NewVec3(0, math.Pi/2, 0), core.NewVec3(1, 1, 1))
	box := NewBox(core.NewVec3(2, 2, 2), transform, NewMaterial(core.NewColor(1, 1, 1)))

	hit, isHit := box.Hit(core.NewRay(core.NewVec3(5, 0, 0), core.NewVec3(-1, 0, 0)), RayEpsilon, math.Inf(1))
	if !isHit {
		t.Fatal("Expected hit on rotated box")
	}
	if math.Abs(hit.T-4) > 1e-9 {
		t.Errorf("Expected t=4, got %f", hit.T)
	}

	world := transform.NormalToWorld(hit.FaceNormal)
	expected := core.NewVec3(1, 0, 0)
	if world.Subtract(expected).Length() > 1e-9 {
		t.Errorf("Expected world normal %v, got %v", expected, world)
	}
}

func TestBox_Hit_ScaledSlab(t *testing.T) {
	// A 600x5x600 slab like the floor of the default room
	box := NewBox(core.NewVec3(600, 5, 600), Translation(core.NewVec3(0, -297.5, -300)), NewMaterial(core.NewColor(0.4, 0.4, 0.4)))

	hit, isHit := box.Hit(core.NewRay(core.NewVec3(0, 0, -300), core.NewVec3(0, -1, 0)), RayEpsilon, math.Inf(1))
	if !isHit {
		t.Fatal("Expected to hit the floor slab")
	}
	if math.Abs(hit.Point.Y-(-295)) > 1e-9 {
		t.Errorf("Expected hit at y=-295, got %f", hit.Point.Y)
	}
	if hit.FaceNormal != core.NewVec3(0, 1, 0) {
		t.Errorf("Expected up-facing face normal, got %v", hit.FaceNormal)
	}
}

func TestKindOf(t *testing.T) {
	sphere := NewSphere(1, IdentityTransform(), Material{})
	box := NewBox(core.NewVec3(1, 1, 1), IdentityTransform(), Material{})

	if kind, err := KindOf(sphere); err != nil || kind != KindSphere {
		t.Errorf("Expected sphere kind, got %v (err %v)", kind, err)
	}
	if kind, err := KindOf(box); err != nil || kind != KindBox {
		t.Errorf("Expected box kind, got %v (err %v)", kind, err)
	}
}
