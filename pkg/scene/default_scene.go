package scene

import (
	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/geometry"
)

// NewDefaultScene creates the room scene: two spheres and two boxes standing
// on the floor of an open box of five slabs, lit by three point lights.
func NewDefaultScene(cameraOverrides ...CameraConfig) *Scene {
	cameraConfig := DefaultCameraConfig()
	if len(cameraOverrides) > 0 {
		cameraConfig = cameraOverrides[0]
	}

	s := &Scene{
		Name:       "default",
		Camera:     NewCamera(cameraConfig),
		Background: core.NewColor(0, 0, 0),
	}

	// Create materials
	white := geometry.NewMaterial(core.ColorFromHex(0xffffff))
	red := geometry.NewMaterial(core.ColorFromHex(0xff0000))
	green := geometry.NewMaterial(core.ColorFromHex(0x00ff00))
	blue := geometry.NewMaterial(core.ColorFromHex(0x0000ff))
	yellow := geometry.NewMaterial(core.ColorFromHex(0xffff00))
	floor := geometry.NewMaterial(core.ColorFromHex(0x666666))
	mirror := geometry.Material{Color: core.ColorFromHex(0xffaa00), Mirror: true, Reflectivity: 0.3}

	half := core.NewVec3(0.5, 0.5, 0.5)
	unit := core.NewVec3(1, 1, 1)
	cube := core.NewVec3(100, 100, 100)
	slab := core.NewVec3(600, 5, 600)

	s.Add(
		geometry.NewSphere(100, geometry.NewTransform(core.NewVec3(-50, -245, -50), core.Vec3{}, half), yellow),
		geometry.NewSphere(100, geometry.NewTransform(core.NewVec3(175, -245, -150), core.Vec3{}, half), blue),
		geometry.NewBox(cube, geometry.NewTransform(core.NewVec3(-175, -247.5, -150), core.NewVec3(0, 0.5, 0), unit), mirror),
		geometry.NewBox(cube, geometry.NewTransform(core.NewVec3(75, -245, -75), core.NewVec3(0, 0.5, 0), core.NewVec3(0.75, 0.75, 0.75)), green),

		// Room: floor, ceiling, back, left and right walls
		geometry.NewBox(slab, geometry.Translation(core.NewVec3(0, -297.5, -300)), floor),
		geometry.NewBox(slab, geometry.Translation(core.NewVec3(0, 297.5, -300)), white),
		geometry.NewBox(slab, geometry.NewTransform(core.NewVec3(0, 0, -300), core.NewVec3(1.57, 0, 0), unit), mirror),
		geometry.NewBox(slab, geometry.NewTransform(core.NewVec3(-300, 0, -300), core.NewVec3(0, 0, 1.57), unit), blue),
		geometry.NewBox(slab, geometry.NewTransform(core.NewVec3(300, 0, -300), core.NewVec3(0, 0, 1.57), unit), red),
	)

	s.AddLight(
		NewPointLight("key", core.NewVec3(0, -250, 300), core.ColorFromHex(0xffffff), 140000),
		NewPointLight("warm", core.NewVec3(-280, 100, 100), core.ColorFromHex(0xffaa55), 70000),
		NewPointLight("cool", core.NewVec3(280, 100, 100), core.ColorFromHex(0x55aaff), 70000),
	)

	return s
}
