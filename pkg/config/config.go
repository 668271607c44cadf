// Package config loads the application configuration: render settings, the
// worker pool, the scene to render, where to save the image, and logging.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/logger"
	"github.com/df07/go-tiled-raytracer/pkg/renderer"
)

// Bounds offered for each setting
const (
	MinTileExponent = 1
	MaxTileExponent = 8
	MinWorkers      = 1
	MaxWorkers      = 32
	MinPhong        = 1
	MaxPhong        = 100
	MaxSupersample  = 3
	MaxRecursion    = 5
)

// Config is the top level application configuration
type Config struct {
	Render RenderSection `yaml:"render"`
	Pool   PoolSection   `yaml:"pool"`
	Scene  SceneSection  `yaml:"scene"`
	Output OutputSection `yaml:"output"`
	Log    logger.Config `yaml:"log"`
}

// RenderSection holds the per-render settings
type RenderSection struct {
	Width             int     `yaml:"width"`
	Height            int     `yaml:"height"`
	TileExponent      int     `yaml:"tileExponent"` // Tiles are 2^n pixels square
	SupersamplingRate int     `yaml:"supersamplingRate"`
	MaxRecursionDepth int     `yaml:"maxRecursionDepth"`
	PhongExponent     float64 `yaml:"phongExponent"`
	AllLights         bool    `yaml:"allLights"`
	CalcDiffuse       bool    `yaml:"calcDiffuse"`
	CalcPhong         bool    `yaml:"calcPhong"`
	UseMirrors        bool    `yaml:"useMirrors"`
	WidthBasedRows    bool    `yaml:"widthBasedRows"`
}

// PoolSection configures the worker pool and the coordinator watchdog
type PoolSection struct {
	Workers           float64       `yaml:"workers"`
	ReconcileInterval time.Duration `yaml:"reconcileInterval"`
	StallTimeout      time.Duration `yaml:"stallTimeout"` // 0 disables the watchdog
}

// SceneSection selects the scene: "default" or "file:<name>" from Dir
type SceneSection struct {
	ID  string `yaml:"id"`
	Dir string `yaml:"dir"`
}

// OutputSection names the bucket and key the finished image is written to
type OutputSection struct {
	URL string `yaml:"url"` // Empty writes to the local output directory
	Key string `yaml:"key"`
}

// DefaultStallTimeout ends a session that has gone this long without a tile
const DefaultStallTimeout = time.Minute

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Render: RenderSection{
			Width:         960,
			Height:        720,
			TileExponent:  6,
			PhongExponent: 10,
		},
		Pool: PoolSection{
			Workers:           15,
			ReconcileInterval: renderer.DefaultReconcileInterval,
			StallTimeout:      DefaultStallTimeout,
		},
		Scene: SceneSection{
			ID:  "default",
			Dir: "scenes",
		},
		Output: OutputSection{
			Key: "img.png",
		},
		Log: logger.Config{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. Settings missing from the file
// keep their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrapf(core.ErrInvalidConfig, "decoding yaml: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate bounds-checks every setting
func (c Config) Validate() error {
	r := c.Render
	switch {
	case r.Width <= 0 || r.Height <= 0:
		return errors.Wrapf(core.ErrInvalidConfig, "image size %dx%d", r.Width, r.Height)
	case r.TileExponent < MinTileExponent || r.TileExponent > MaxTileExponent:
		return errors.Wrapf(core.ErrInvalidConfig, "tile exponent %d not in [%d, %d]", r.TileExponent, MinTileExponent, MaxTileExponent)
	case r.PhongExponent < MinPhong || r.PhongExponent > MaxPhong:
		return errors.Wrapf(core.ErrInvalidConfig, "phong exponent %g not in [%d, %d]", r.PhongExponent, MinPhong, MaxPhong)
	case r.SupersamplingRate < 0 || r.SupersamplingRate > MaxSupersample:
		return errors.Wrapf(core.ErrInvalidConfig, "supersampling rate %d not in [0, %d]", r.SupersamplingRate, MaxSupersample)
	case r.MaxRecursionDepth < 0 || r.MaxRecursionDepth > MaxRecursion:
		return errors.Wrapf(core.ErrInvalidConfig, "max recursion depth %d not in [0, %d]", r.MaxRecursionDepth, MaxRecursion)
	}

	if w := c.Workers(); w > MaxWorkers {
		return errors.Wrapf(core.ErrInvalidConfig, "workers %d not in [%d, %d]", w, MinWorkers, MaxWorkers)
	}
	if c.Pool.ReconcileInterval <= 0 {
		return errors.Wrapf(core.ErrInvalidConfig, "reconcile interval %v", c.Pool.ReconcileInterval)
	}
	if c.Pool.StallTimeout < 0 {
		return errors.Wrapf(core.ErrInvalidConfig, "stall timeout %v", c.Pool.StallTimeout)
	}
	if c.Output.Key == "" {
		return errors.Wrap(core.ErrInvalidConfig, "output key is empty")
	}
	return nil
}

// Workers returns the clamped worker target
func (c Config) Workers() int {
	return renderer.ClampTarget(c.Pool.Workers)
}

// RenderConfig converts the render section into a render configuration
func (c Config) RenderConfig() renderer.RenderConfig {
	r := c.Render
	return renderer.RenderConfig{
		Width:             r.Width,
		Height:            r.Height,
		TileSize:          renderer.TileSizeFromExponent(r.TileExponent),
		SupersamplingRate: r.SupersamplingRate,
		MaxRecursionDepth: r.MaxRecursionDepth,
		PhongExponent:     r.PhongExponent,
		AllLights:         r.AllLights,
		CalcDiffuse:       r.CalcDiffuse,
		CalcPhong:         r.CalcPhong,
		UseMirrors:        r.UseMirrors,
		WidthBasedRows:    r.WidthBasedRows,
		WorkerCount:       1,
	}
}
