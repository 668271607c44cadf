package geometry

import (
	"math"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// Box represents a rectangular box centered at the origin of its transform
type Box struct {
	Size      core.Vec3 // Full extents along each local axis (width, height, depth)
	transform Transform
	material  Material
}

// NewBox creates a new box with the given extents, transform, and material
func NewBox(size core.Vec3, transform Transform, material Material) *Box {
	return &Box{
		Size:      size,
		transform: transform,
		material:  material,
	}
}

// Material returns the box's material
func (b *Box) Material() Material {
	return b.material
}

// Transform returns the box's world transform
func (b *Box) Transform() Transform {
	return b.transform
}

// Hit tests if a ray enters the box using the slab method in object space.
// Like spheres, boxes are one-sided, so rays leaving the box do not hit it.
func (b *Box) Hit(ray core.Ray, tMin, tMax float64) (*Hit, bool) {
	origin, direction := b.transform.rayToLocal(ray)

	o := [3]float64{origin.X, origin.Y, origin.Z}
	d := [3]float64{direction.X, direction.Y, direction.Z}
	half := [3]float64{b.Size.X / 2, b.Size.Y / 2, b.Size.Z / 2}

	tNear := math.Inf(-1)
	tFar := math.Inf(1)
	entryAxis := -1

	for axis := 0; axis < 3; axis++ {
		if math.Abs(d[axis]) < 1e-12 {
			// Parallel to this slab: must already be between its planes
			if o[axis] < -half[axis] || o[axis] > half[axis] {
				return nil, false
			}
			continue
		}

		invD := 1.0 / d[axis]
		t0 := (-half[axis] - o[axis]) * invD
		t1 := (half[axis] - o[axis]) * invD
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
			entryAxis = axis
		}
		if t1 < tFar {
			tFar = t1
		}
		if tNear > tFar {
			return nil, false
		}
	}

	if entryAxis < 0 || tNear < tMin || tNear > tMax {
		return nil, false
	}

	// The entry face faces against the ray on its axis
	var normal [3]float64
	normal[entryAxis] = -math.Copysign(1, d[entryAxis])

	return &Hit{
		T:          tNear,
		Point:      ray.At(tNear),
		Primitive:  b,
		FaceNormal: core.NewVec3(normal[0], normal[1], normal[2]),
	}, true
}
