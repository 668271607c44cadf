package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/geometry"
	"github.com/df07/go-tiled-raytracer/pkg/renderer"
	"github.com/df07/go-tiled-raytracer/pkg/scene"
)

// InspectResponse represents the JSON response for pixel inspection
type InspectResponse struct {
	Hit          bool           `json:"hit"`
	GeometryType string         `json:"geometryType,omitempty"`
	Point        core.Vec3      `json:"point"`
	Normal       core.Vec3      `json:"normal"`
	Reflect      core.Vec3      `json:"reflect"`
	Distance     float64        `json:"distance"`
	Color        core.Color     `json:"color"`
	Lit          bool           `json:"lit"`
	Flat         bool           `json:"flat"`
	Lights       []LightInspect `json:"lights,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// LightInspect is one light's contribution at the inspected point
type LightInspect struct {
	Name      string    `json:"name"`
	Position  core.Vec3 `json:"position"`
	Direction core.Vec3 `json:"direction"`
	Shadowed  bool      `json:"shadowed"`
	Diffuse   float64   `json:"diffuse"`
	Phong     float64   `json:"phong"`
}

// extractMaterialInfo describes a material
func extractMaterialInfo(mat geometry.Material) map[string]any {
	return map[string]any{
		"color":        mat.Color,
		"mirror":       mat.Mirror,
		"reflectivity": mat.Reflectivity,
	}
}

// extractGeometryInfo describes a primitive
func extractGeometryInfo(p geometry.Primitive) (string, map[string]any) {
	properties := map[string]any{
		"position": p.Transform().Position(),
	}

	switch geom := p.(type) {
	case *geometry.Sphere:
		properties["radius"] = geom.Radius
		return geometry.KindSphere.String(), properties

	case *geometry.Box:
		properties["size"] = geom.Size
		return geometry.KindBox.String(), properties

	default:
		return "unknown", properties
	}
}

// inspectPixel traces one pixel of a render of sceneObj and describes how it
// was shaded
func inspectPixel(sceneObj *scene.Scene, cfg renderer.RenderConfig, x, y int) (InspectResponse, error) {
	trace, err := renderer.NewTileRenderer(sceneObj, cfg).TracePixel(x, y)
	if err != nil {
		return InspectResponse{}, err
	}
	if trace.Hit == nil {
		return InspectResponse{Hit: false, Color: trace.Color}, nil
	}

	geometryType, geometryProps := extractGeometryInfo(trace.Hit.Primitive)
	response := InspectResponse{
		Hit:          true,
		GeometryType: geometryType,
		Point:        trace.Hit.Point,
		Normal:       trace.Shading.Normal,
		Reflect:      trace.Shading.Reflect,
		Distance:     trace.Hit.T,
		Color:        trace.Color,
		Lit:          trace.HitLights,
		Flat:         trace.Shading.Flat,
		Properties: map[string]any{
			"geometry": geometryProps,
			"material": extractMaterialInfo(trace.Hit.Primitive.Material()),
		},
	}

	for i, term := range trace.Shading.Lights {
		light := sceneObj.Lights[i]
		response.Lights = append(response.Lights, LightInspect{
			Name:      light.Name,
			Position:  light.WorldPosition(),
			Direction: term.Direction,
			Shadowed:  term.Shadowed,
			Diffuse:   term.Diffuse,
			Phong:     term.Phong,
		})
	}
	return response, nil
}

// handleInspect traces a single pixel with the same parameters as a render
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	cfg, sceneID, err := s.parseRenderParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid scene parameters: "+err.Error())
		return
	}

	pixelX, err := strconv.Atoi(r.URL.Query().Get("x"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid x coordinate")
		return
	}
	pixelY, err := strconv.Atoi(r.URL.Query().Get("y"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid y coordinate")
		return
	}
	if pixelX < 0 || pixelX >= cfg.Width || pixelY < 0 || pixelY >= cfg.Height {
		s.writeError(w, http.StatusBadRequest, "Pixel coordinates out of bounds")
		return
	}

	sceneObj, err := scene.Resolve(sceneID, s.cfg.Scene.Dir)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, err := inspectPixel(sceneObj, cfg, pixelX, pixelY)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("shading pixel (%d,%d): %v", pixelX, pixelY, err))
		return
	}
	s.writeJSON(w, http.StatusOK, response)
}
