package geometry

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// Transform is an object-to-world affine transform with its inverse cached.
type Transform struct {
	matrix  mgl64.Mat4
	inverse mgl64.Mat4
}

// IdentityTransform returns a transform that leaves points unchanged
func IdentityTransform() Transform {
	return Transform{matrix: mgl64.Ident4(), inverse: mgl64.Ident4()}
}

// NewTransform composes translation * rotation * scale. Rotation holds Euler
// angles in radians applied in X, Y, Z order (R = Rx * Ry * Rz).
func NewTransform(position, rotation, scale core.Vec3) Transform {
	rot := mgl64.HomogRotate3DX(rotation.X).
		Mul4(mgl64.HomogRotate3DY(rotation.Y)).
		Mul4(mgl64.HomogRotate3DZ(rotation.Z))
	m := mgl64.Translate3D(position.X, position.Y, position.Z).
		Mul4(rot).
		Mul4(mgl64.Scale3D(scale.X, scale.Y, scale.Z))
	return TransformFromMatrix(m)
}

// Translation returns a pure translation transform
func Translation(position core.Vec3) Transform {
	return NewTransform(position, core.Vec3{}, core.NewVec3(1, 1, 1))
}

// TransformFromMatrix wraps an existing world matrix
func TransformFromMatrix(m mgl64.Mat4) Transform {
	return Transform{matrix: m, inverse: m.Inv()}
}

// Matrix returns the object-to-world matrix
func (t Transform) Matrix() mgl64.Mat4 {
	return t.matrix
}

// Position returns the world-space origin of the object
func (t Transform) Position() core.Vec3 {
	return core.Vec3FromMgl(t.matrix.Col(3).Vec3())
}

// NormalMatrix returns the inverse transpose of the upper 3x3 of the world
// matrix, used to carry object-space normals into world space.
func (t Transform) NormalMatrix() mgl64.Mat3 {
	return t.matrix.Mat3().Inv().Transpose()
}

// NormalToWorld transforms an object-space normal and renormalizes it
func (t Transform) NormalToWorld(n core.Vec3) core.Vec3 {
	return core.Vec3FromMgl(t.NormalMatrix().Mul3x1(n.Mgl())).Normalize()
}

// rayToLocal expresses a world ray in object space. The local direction is
// not renormalized so the ray parameter t stays a world-space distance.
func (t Transform) rayToLocal(ray core.Ray) (origin, direction core.Vec3) {
	origin = core.Vec3FromMgl(mgl64.TransformCoordinate(ray.Origin.Mgl(), t.inverse))
	direction = core.Vec3FromMgl(mgl64.TransformNormal(ray.Direction.Mgl(), t.inverse))
	return origin, direction
}
