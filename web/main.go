package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/df07/go-tiled-raytracer/pkg/config"
	"github.com/df07/go-tiled-raytracer/pkg/logger"
	"github.com/df07/go-tiled-raytracer/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to serve on")
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Create and start web server
	webServer := server.NewServer(*port, cfg, logger.Log)

	logger.Log.Info("tiled raytracer web server", zap.Int("port", *port), zap.Int("workers", cfg.Workers()))
	fmt.Printf("Visit http://localhost:%d to start rendering\n", *port)

	if err := webServer.Run(ctx); err != nil {
		logger.Log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
