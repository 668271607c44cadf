package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/df07/go-tiled-raytracer/pkg/config"
	"github.com/df07/go-tiled-raytracer/pkg/core"
	"github.com/df07/go-tiled-raytracer/pkg/logger"
	"github.com/df07/go-tiled-raytracer/pkg/output"
	"github.com/df07/go-tiled-raytracer/pkg/renderer"
	"github.com/df07/go-tiled-raytracer/pkg/scene"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "YAML configuration file")
	sceneID := flag.String("scene", "", "Scene: 'default' or 'file:<name>' from the scene directory")
	width := flag.Int("width", 0, "Image width (overrides config)")
	height := flag.Int("height", 0, "Image height (overrides config)")
	tileExponent := flag.Int("tile", 0, "Tile size exponent, tiles are 2^n pixels (overrides config)")
	workers := flag.Float64("workers", 0, "Number of render workers (overrides config)")
	diffuse := flag.Bool("diffuse", false, "Calculate diffuse lighting")
	phong := flag.Bool("phong", false, "Calculate Phong highlights")
	allLights := flag.Bool("all-lights", false, "Shade with all three lights")
	outURL := flag.String("out", "", "Bucket URL for the image, e.g. file:///tmp/renders or gs://bucket")
	outKey := flag.String("key", "", "Key of the image in the bucket (overrides config)")
	help := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *help {
		fmt.Println("Tiled Raytracer")
		fmt.Println("Usage: raytracer [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Without -out the image is saved to output/<key>")
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Only flags given on the command line override the config
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scene":
			cfg.Scene.ID = *sceneID
		case "width":
			cfg.Render.Width = *width
		case "height":
			cfg.Render.Height = *height
		case "tile":
			cfg.Render.TileExponent = *tileExponent
		case "workers":
			cfg.Pool.Workers = *workers
		case "diffuse":
			cfg.Render.CalcDiffuse = *diffuse
		case "phong":
			cfg.Render.CalcPhong = *phong
		case "all-lights":
			cfg.Render.AllLights = *allLights
		case "out":
			cfg.Output.URL = *outURL
		case "key":
			cfg.Output.Key = *outKey
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Log.Sync()

	selectedScene, err := scene.Resolve(cfg.Scene.ID, cfg.Scene.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading scene: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Using scene %s...\n", sceneName(cfg.Scene.ID))

	if cfg.Output.URL == "" {
		if cfg.Output.URL, err = localOutputURL("output"); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	location, err := render(ctx, cfg, selectedScene, renderer.NewDefaultLogger())
	if location != "" {
		fmt.Printf("Render saved as %s/%s\n", cfg.Output.URL, location)
	}
	if err != nil {
		logger.Log.Error("render failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Render failed: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, or returns the defaults without one
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// sceneName returns a printable name for a scene ID
func sceneName(id string) string {
	if id == "" {
		return "default"
	}
	return id
}

// localOutputURL creates dir and returns a file bucket URL for it
func localOutputURL(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// render runs the worker pool and the coordinator for a single render pass,
// then saves the image. A render with failed tiles is still saved.
func render(ctx context.Context, cfg config.Config, s *scene.Scene, progress core.Logger) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := renderer.NewPool(cfg.Workers(), cfg.Pool.ReconcileInterval, logger.Log)
	coord := renderer.NewCoordinator(pool, renderer.CoordinatorOptions{
		Log:          logger.Log,
		Progress:     progress,
		StallTimeout: cfg.Pool.StallTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return coord.Run(gctx) })

	var location string
	g.Go(func() error {
		// Stop the pool and coordinator once the image is saved
		defer cancel()

		session, err := coord.StartRender(cfg.RenderConfig(), s)
		if err != nil {
			return err
		}
		report, renderErr := session.Wait(gctx)
		if errors.Is(renderErr, context.Canceled) {
			return renderErr
		}

		location, err = output.Save(gctx, cfg.Output.URL, cfg.Output.Key, session.Image())
		if err != nil {
			return err
		}
		logger.Log.Info("image saved",
			zap.String("bucket", cfg.Output.URL),
			zap.String("key", location),
			zap.Int("tiles", report.Completed),
			zap.Float64("hitRatio", report.Stats.HitRatio()))
		return renderErr
	})

	return location, g.Wait()
}
