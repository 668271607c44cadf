package geometry

import (
	"github.com/pkg/errors"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// Material describes the surface of a primitive
type Material struct {
	Color core.Color

	// Mirror and Reflectivity are carried for mirror reflection, which the
	// renderer accepts as configuration but does not trace.
	Mirror       bool
	Reflectivity float64
}

// NewMaterial creates a plain colored material
func NewMaterial(color core.Color) Material {
	return Material{Color: color}
}

// Hit contains information about a ray-primitive intersection
type Hit struct {
	T         float64   // Distance along the ray
	Point     core.Vec3 // World-space intersection point
	Primitive Primitive // The primitive that was hit

	// FaceNormal is the object-space normal of the intersected face. Only
	// boxes report it; shading carries it to world space with the
	// primitive's normal matrix.
	FaceNormal core.Vec3
}

// Primitive is a renderable object with a world transform and a material
type Primitive interface {
	Hit(ray core.Ray, tMin, tMax float64) (*Hit, bool)
	Material() Material
	Transform() Transform
}

// Kind enumerates the supported geometry variants
type Kind int

const (
	KindSphere Kind = iota
	KindBox
)

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindBox:
		return "box"
	default:
		return "unknown"
	}
}

// KindOf reports which variant a primitive belongs to
func KindOf(p Primitive) (Kind, error) {
	switch p.(type) {
	case *Sphere:
		return KindSphere, nil
	case *Box:
		return KindBox, nil
	default:
		return 0, errors.Wrapf(core.ErrUnsupportedGeometry, "primitive type %T", p)
	}
}
