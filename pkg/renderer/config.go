package renderer

import (
	"github.com/pkg/errors"

	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/shading"
)

// TileSize is the edge length of a tile in pixels along each axis
type TileSize struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TileSizeFromExponent returns square tiles with an edge of 2^exponent
func TileSizeFromExponent(exponent int) TileSize {
	edge := 1 << max(exponent, 0)
	return TileSize{X: edge, Y: edge}
}

// RenderConfig is the render configuration message sent to every worker. It
// does not change for the duration of a session.
type RenderConfig struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	TileSize TileSize `json:"tileSize"`

	// Reserved: a rate of 1 or more is accepted but still traces one ray
	// per pixel.
	SupersamplingRate int `json:"supersamplingRate"`
	// Reserved: no reflection rays are spawned.
	MaxRecursionDepth int `json:"maxRecursionDepth"`

	PhongExponent float64 `json:"phongExponent"`
	AllLights     bool    `json:"allLights"`
	CalcDiffuse   bool    `json:"calcDiffuse"`
	CalcPhong     bool    `json:"calcPhong"`
	UseMirrors    bool    `json:"useMirrors"`

	// WidthBasedRows sizes the tile rows from the image width instead of
	// its height, reproducing the reference tile grid.
	WidthBasedRows bool `json:"widthBasedRows"`

	// Set per worker at dispatch
	WorkerIndex int `json:"workerIndex"`
	WorkerCount int `json:"workerCount"`
}

// DefaultRenderConfig returns a 960x720 render with 64x64 tiles and lighting off
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Width:         960,
		Height:        720,
		TileSize:      TileSizeFromExponent(6),
		PhongExponent: 10,
		WorkerCount:   1,
	}
}

// Validate checks the parts of the configuration a render depends on
func (c RenderConfig) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return errors.Wrapf(core.ErrInvalidConfig, "image size %dx%d", c.Width, c.Height)
	case c.TileSize.X <= 0 || c.TileSize.Y <= 0:
		return errors.Wrapf(core.ErrInvalidConfig, "tile size %dx%d", c.TileSize.X, c.TileSize.Y)
	case c.SupersamplingRate < 0:
		return errors.Wrapf(core.ErrInvalidConfig, "supersampling rate %d", c.SupersamplingRate)
	case c.MaxRecursionDepth < 0:
		return errors.Wrapf(core.ErrInvalidConfig, "max recursion depth %d", c.MaxRecursionDepth)
	case c.PhongExponent < 0:
		return errors.Wrapf(core.ErrInvalidConfig, "phong exponent %g", c.PhongExponent)
	}
	return nil
}

// validateWorker checks the per-worker fields filled in at dispatch
func (c RenderConfig) validateWorker() error {
	if c.WorkerCount < 1 || c.WorkerIndex < 0 || c.WorkerIndex >= c.WorkerCount {
		return errors.Wrapf(core.ErrInvalidConfig, "worker %d of %d", c.WorkerIndex, c.WorkerCount)
	}
	return nil
}

// ShadingOptions returns the shading engine options for this configuration
func (c RenderConfig) ShadingOptions() shading.Options {
	return shading.Options{
		AllLights:         c.AllLights,
		CalcDiffuse:       c.CalcDiffuse,
		CalcPhong:         c.CalcPhong,
		PhongExponent:     c.PhongExponent,
		UseMirrors:        c.UseMirrors,
		MaxRecursionDepth: c.MaxRecursionDepth,
	}
}

// Grid returns the tile grid for this configuration
func (c RenderConfig) Grid() TileGrid {
	return NewTileGrid(c.Width, c.Height, c.TileSize, c.WidthBasedRows)
}

// ForWorker returns a copy of the configuration addressed to one worker
func (c RenderConfig) ForWorker(index, count int) RenderConfig {
	c.WorkerIndex = index
	c.WorkerCount = count
	return c
}
