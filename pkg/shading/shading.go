// Package shading computes the color of a surface point from the scene's
// point lights using a remapped diffuse term, a squared Phong highlight and
// unbounded shadow rays.
package shading

import (
	"math"

	"github.com/pkg/errors"

	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/geometry"
	"github.com/df07/go-tiled-raytracer/pkg/scene"
)

// RequiredLights is the number of light roles the shading model combines.
// Lights past this count are ignored.
const RequiredLights = 3

// Options selects which lighting terms are computed
type Options struct {
	AllLights     bool    // Combine all three lights instead of only the first
	CalcDiffuse   bool    // Enables lighting; with CalcPhong unset the flat color is used
	CalcPhong     bool    // Enables lighting; with CalcDiffuse unset the flat color is used
	PhongExponent float64 // Specular exponent

	// Reserved: mirror reflection is accepted but never traced
	UseMirrors        bool
	MaxRecursionDepth int
}

// Lit reports whether any light dependent term is requested
func (o Options) Lit() bool {
	return o.CalcDiffuse || o.CalcPhong
}

// singleLightTint weights the first light's highlight when it is the only
// light in use.
var singleLightTint = core.NewColor(1.0, 0.9, 0.1)

// roleWeights weights each light's highlight per channel when all lights
// are combined, indexed by light role.
var roleWeights = [RequiredLights]core.Color{
	core.NewColor(1.0, 1.0, 1.0),
	core.NewColor(1.0, 0.9, 0.1),
	core.NewColor(1.0, 0.9, 0.1),
}

// ValidateLights reports ErrInsufficientLights when lighting is requested
// for fewer than RequiredLights lights.
func ValidateLights(count int, opts Options) error {
	if opts.Lit() && count < RequiredLights {
		return errors.Wrapf(core.ErrInsufficientLights, "have %d lights, need %d", count, RequiredLights)
	}
	return nil
}

// LightTerm is one light's contribution at a surface point
type LightTerm struct {
	Direction core.Vec3 // Unit vector from the point to the light
	Shadowed  bool
	Diffuse   float64 // Zero when shadowed
	Phong     float64 // Zero when shadowed
}

// Breakdown is the full result of shading a point, kept for inspection
type Breakdown struct {
	Color   core.Color
	Lit     bool // False when every light in use is shadowed
	Flat    bool // True when lighting was disabled and the flat color returned
	Normal  core.Vec3
	Reflect core.Vec3
	Lights  []LightTerm
}

// Shade returns the color of the surface at hit as seen along viewDir (a
// unit vector from the point towards the viewer). The boolean is false when
// no light reaches the point, in which case the color is background.
func Shade(hit *geometry.Hit, viewDir core.Vec3, lights []scene.Light, occluder core.Occluder, opts Options, background core.Color) (core.Color, bool, error) {
	b, err := Evaluate(hit, viewDir, lights, occluder, opts, background)
	if err != nil {
		return core.Color{}, false, err
	}
	return b.Color, b.Lit, nil
}

// Evaluate shades a point like Shade and also returns the intermediate terms
func Evaluate(hit *geometry.Hit, viewDir core.Vec3, lights []scene.Light, occluder core.Occluder, opts Options, background core.Color) (Breakdown, error) {
	material := hit.Primitive.Material()
	if !opts.Lit() {
		return Breakdown{Color: material.Color, Lit: true, Flat: true}, nil
	}

	if err := ValidateLights(len(lights), opts); err != nil {
		return Breakdown{}, err
	}

	normal, err := Normal(hit)
	if err != nil {
		return Breakdown{}, err
	}
	reflect := ReflectSeed(normal, viewDir)

	used := RequiredLights
	if !opts.AllLights {
		used = 1
	}

	b := Breakdown{Normal: normal, Reflect: reflect, Lights: make([]LightTerm, used)}
	for i := range b.Lights {
		b.Lights[i] = lightTerm(hit.Point, normal, reflect, lights[i], occluder, opts.PhongExponent)
	}

	if !opts.AllLights {
		l := b.Lights[0]
		if l.Shadowed {
			b.Color = background
			return b, nil
		}
		b.Color = material.Color.Scale(l.Diffuse).Add(singleLightTint.Scale(l.Phong))
		b.Lit = true
		return b, nil
	}

	var diffuse float64
	var specular core.Color
	shadowed := 0
	for i, l := range b.Lights {
		if l.Shadowed {
			shadowed++
		}
		diffuse += l.Diffuse
		specular = specular.Add(roleWeights[i].Scale(l.Phong))
	}

	if shadowed == RequiredLights {
		b.Color = background
		return b, nil
	}

	// Shadowed lights count in the denominator and pull the average down
	diffuse /= RequiredLights
	b.Color = material.Color.Scale(diffuse).Add(specular).ClampMax(1.0)
	b.Lit = true
	return b, nil
}

func lightTerm(point, normal, reflect core.Vec3, light scene.Light, occluder core.Occluder, exponent float64) LightTerm {
	dir := light.WorldPosition().Subtract(point).Normalize()
	term := LightTerm{Direction: dir}

	// No distance bound: anything along the ray, even past the light, blocks it
	if occluder.Occluded(core.NewRay(point, dir)) {
		term.Shadowed = true
		return term
	}

	term.Diffuse = Diffuse(normal, dir)
	term.Phong = Phong(reflect, dir, exponent)
	return term
}

// Normal returns the world-space surface normal at a hit
func Normal(hit *geometry.Hit) (core.Vec3, error) {
	switch p := hit.Primitive.(type) {
	case *geometry.Sphere:
		return hit.Point.Subtract(p.Center()).Normalize(), nil
	case *geometry.Box:
		return p.Transform().NormalToWorld(hit.FaceNormal), nil
	default:
		_, err := geometry.KindOf(hit.Primitive)
		return core.Vec3{}, errors.Wrap(err, "computing surface normal")
	}
}

// ReflectSeed mirrors the view direction about the normal:
// normalize(2(n.v)n - v)
func ReflectSeed(normal, viewDir core.Vec3) core.Vec3 {
	return normal.Multiply(2 * normal.Dot(viewDir)).Subtract(viewDir).Normalize()
}

// Diffuse remaps n.l from [-1,1] to [0,1]
func Diffuse(normal, lightDir core.Vec3) float64 {
	return (normal.Dot(lightDir) + 1) / 2
}

// Phong returns 0.5 * s * s where s = (r.l)^exponent, or zero when s is not
// positive.
func Phong(reflect, lightDir core.Vec3, exponent float64) float64 {
	s := math.Pow(reflect.Dot(lightDir), exponent)
	if s > 0 {
		return 0.5 * s * s
	}
	return 0
}
