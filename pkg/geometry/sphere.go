package geometry

import (
	"math"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// Sphere represents a sphere of the given radius centered at the origin of
// its transform
type Sphere struct {
	Radius    float64
	transform Transform
	material  Material
}

// NewSphere creates a new sphere
func NewSphere(radius float64, transform Transform, material Material) *Sphere {
	return &Sphere{
		Radius:    radius,
		transform: transform,
		material:  material,
	}
}

// Center returns the world-space center of the sphere
func (s *Sphere) Center() core.Vec3 {
	return s.transform.Position()
}

// Material returns the sphere's material
func (s *Sphere) Material() Material {
	return s.material
}

// Transform returns the sphere's world transform
func (s *Sphere) Transform() Transform {
	return s.transform
}

// Hit tests if a ray enters the sphere. Surfaces are one-sided: a ray that
// starts inside the sphere does not hit it on the way out.
func (s *Sphere) Hit(ray core.Ray, tMin, tMax float64) (*Hit, bool) {
	origin, direction := s.transform.rayToLocal(ray)

	// Quadratic equation coefficients: at² + 2bt + c = 0
	a := direction.Dot(direction)
	halfB := origin.Dot(direction)
	c := origin.Dot(origin) - s.Radius*s.Radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return nil, false
	}

	// The nearer root is where the ray enters the surface
	root := (-halfB - math.Sqrt(discriminant)) / a
	if root < tMin || root > tMax {
		return nil, false
	}

	return &Hit{
		T:         root,
		Point:     ray.At(root),
		Primitive: s,
	}, true
}
