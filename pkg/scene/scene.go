// Package scene describes what gets rendered: a camera, spheres and boxes
// with materials, and point lights.
package scene

import (
	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/geometry"
)

// Scene contains all the elements needed for rendering. A scene is not
// modified once a render starts, so workers may share it.
type Scene struct {
	Name       string
	Camera     *Camera
	Primitives []geometry.Primitive // Objects in the scene, in insertion order
	Lights     []Light              // Point lights, in role order
	Background core.Color           // Color of pixels whose ray hits nothing
}

// Light is a point light
type Light struct {
	Name      string
	Transform geometry.Transform
	Color     core.Color
	Intensity float64
}

// NewPointLight creates a light at the given world position
func NewPointLight(name string, position core.Vec3, color core.Color, intensity float64) Light {
	return Light{
		Name:      name,
		Transform: geometry.Translation(position),
		Color:     color,
		Intensity: intensity,
	}
}

// WorldPosition returns the light position derived from its world transform
func (l Light) WorldPosition() core.Vec3 {
	return l.Transform.Position()
}

// Add appends primitives to the scene
func (s *Scene) Add(primitives ...geometry.Primitive) {
	s.Primitives = append(s.Primitives, primitives...)
}

// AddLight appends a light to the scene
func (s *Scene) AddLight(lights ...Light) {
	s.Lights = append(s.Lights, lights...)
}

// Intersector returns an intersection service over the scene's primitives
func (s *Scene) Intersector() *geometry.Intersector {
	return geometry.NewIntersector(s.Primitives)
}

// GetPrimitiveCount returns the number of primitives in the scene
func (s *Scene) GetPrimitiveCount() int {
	return len(s.Primitives)
}
