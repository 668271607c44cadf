package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// CameraConfig contains all camera configuration parameters
type CameraConfig struct {
	Position core.Vec3 // Camera position in world space
	LookAt   core.Vec3 // Point the camera looks at
	Up       core.Vec3 // Up direction (usually (0,1,0))
	VFov     float64   // Vertical field of view in degrees
	Near     float64   // Near clip distance
	Far      float64   // Far clip distance
}

// DefaultCameraConfig returns a 60 degree camera at (0,0,600) looking down -Z
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Position: core.NewVec3(0, 0, 600),
		LookAt:   core.NewVec3(0, 0, 0),
		Up:       core.NewVec3(0, 1, 0),
		VFov:     60,
		Near:     1,
		Far:      1000,
	}
}

// Camera is a perspective camera. The aspect ratio is not part of the camera;
// it is supplied per render so one camera serves any image size.
type Camera struct {
	config CameraConfig
	world  mgl64.Mat4 // camera-to-world
}

// NewCamera creates a camera from the given configuration
func NewCamera(config CameraConfig) *Camera {
	view := mgl64.LookAtV(config.Position.Mgl(), config.LookAt.Mgl(), config.Up.Mgl())
	return &Camera{config: config, world: view.Inv()}
}

// Config returns the camera configuration
func (c *Camera) Config() CameraConfig {
	return c.config
}

// Position returns the camera's world-space position
func (c *Camera) Position() core.Vec3 {
	return c.config.Position
}

// RayGenerator builds primary rays for one aspect ratio
type RayGenerator struct {
	origin    core.Vec3
	unproject mgl64.Mat4 // NDC to world
}

// Rays returns a ray generator for images with the given aspect ratio
// (width / height).
func (c *Camera) Rays(aspect float64) RayGenerator {
	projection := mgl64.Perspective(mgl64.DegToRad(c.config.VFov), aspect, c.config.Near, c.config.Far)
	return RayGenerator{
		origin:    c.config.Position,
		unproject: c.world.Mul4(projection.Inv()),
	}
}

// Ray returns the ray from the camera through normalized device coordinates
// (ndcX, ndcY), both in [-1,1] with +Y up.
func (g RayGenerator) Ray(ndcX, ndcY float64) core.Ray {
	target := core.Vec3FromMgl(mgl64.TransformCoordinate(mgl64.Vec3{ndcX, ndcY, 0.5}, g.unproject))
	return core.NewRay(g.origin, target.Subtract(g.origin))
}
