package scene

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/geometry"
)

// File is the YAML representation of a scene
type File struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Group       string          `yaml:"group"`
	Background  uint32          `yaml:"background"`
	Camera      *CameraFile     `yaml:"camera"`
	Primitives  []PrimitiveFile `yaml:"primitives"`
	Lights      []LightFile     `yaml:"lights"`
}

// CameraFile is the YAML representation of a camera. Omitted fields take
// the default camera's values.
type CameraFile struct {
	Position *[3]float64 `yaml:"position"`
	LookAt   *[3]float64 `yaml:"lookAt"`
	Up       *[3]float64 `yaml:"up"`
	Fov      float64     `yaml:"fov"`
}

// PrimitiveFile is the YAML representation of a sphere or box
type PrimitiveFile struct {
	Kind         string      `yaml:"kind"`
	Radius       float64     `yaml:"radius"` // sphere
	Size         [3]float64  `yaml:"size"`   // box
	Position     [3]float64  `yaml:"position"`
	Rotation     [3]float64  `yaml:"rotation"` // Euler radians, XYZ order
	Scale        *[3]float64 `yaml:"scale"`
	Color        uint32      `yaml:"color"`
	Mirror       bool        `yaml:"mirror"`
	Reflectivity float64     `yaml:"reflectivity"`
}

// LightFile is the YAML representation of a point light
type LightFile struct {
	Name      string     `yaml:"name"`
	Position  [3]float64 `yaml:"position"`
	Color     uint32     `yaml:"color"`
	Intensity float64    `yaml:"intensity"`
}

func vec(a [3]float64) core.Vec3 {
	return core.NewVec3(a[0], a[1], a[2])
}

// LoadFile reads a YAML scene from disk
func LoadFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening scene %s", path)
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading scene %s", path)
	}
	return s, nil
}

// Load decodes a YAML scene
func Load(r io.Reader) (*Scene, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decoding scene yaml")
	}
	return file.Build()
}

// Build converts the file representation into a scene
func (f *File) Build() (*Scene, error) {
	cameraConfig := DefaultCameraConfig()
	if f.Camera != nil {
		if f.Camera.Position != nil {
			cameraConfig.Position = vec(*f.Camera.Position)
		}
		if f.Camera.LookAt != nil {
			cameraConfig.LookAt = vec(*f.Camera.LookAt)
		}
		if f.Camera.Up != nil {
			cameraConfig.Up = vec(*f.Camera.Up)
		}
		if f.Camera.Fov > 0 {
			cameraConfig.VFov = f.Camera.Fov
		}
	}

	s := &Scene{
		Name:       f.Name,
		Camera:     NewCamera(cameraConfig),
		Background: core.ColorFromHex(f.Background),
	}

	for i, p := range f.Primitives {
		scale := [3]float64{1, 1, 1}
		if p.Scale != nil {
			scale = *p.Scale
		}
		transform := geometry.NewTransform(vec(p.Position), vec(p.Rotation), vec(scale))
		material := geometry.Material{
			Color:        core.ColorFromHex(p.Color),
			Mirror:       p.Mirror,
			Reflectivity: p.Reflectivity,
		}

		switch strings.ToLower(p.Kind) {
		case geometry.KindSphere.String():
			if p.Radius <= 0 {
				return nil, errors.Errorf("primitive %d: sphere radius must be positive", i)
			}
			s.Add(geometry.NewSphere(p.Radius, transform, material))
		case geometry.KindBox.String():
			if p.Size[0] <= 0 || p.Size[1] <= 0 || p.Size[2] <= 0 {
				return nil, errors.Errorf("primitive %d: box size must be positive", i)
			}
			s.Add(geometry.NewBox(vec(p.Size), transform, material))
		default:
			return nil, errors.Wrapf(core.ErrUnsupportedGeometry, "primitive %d: kind %q", i, p.Kind)
		}
	}

	for _, l := range f.Lights {
		s.AddLight(NewPointLight(l.Name, vec(l.Position), core.ColorFromHex(l.Color), l.Intensity))
	}

	return s, nil
}
