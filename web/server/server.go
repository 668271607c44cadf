// Package server exposes the tiled renderer over HTTP: renders stream their
// tiles as server-sent events, and the worker pool, scenes and finished
// image are available as JSON endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
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

// Image size limits accepted from requests
const (
	MinImageSize = 16
	MaxImageSize = 4096
)

// Server handles web requests for the tiled raytracer
type Server struct {
	port  int
	cfg   config.Config
	log   *zap.Logger
	pool  *renderer.Pool
	coord *renderer.Coordinator
	relay *consoleRelay
	mux   *http.ServeMux
}

// NewServer creates a web server with its own worker pool and coordinator.
// Nothing runs until Run is called.
func NewServer(port int, cfg config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	relay := &consoleRelay{fallback: logger.Printf(log)}
	pool := renderer.NewPool(cfg.Workers(), cfg.Pool.ReconcileInterval, log)
	s := &Server{
		port: port,
		cfg:  cfg,
		log:  log,
		pool: pool,
		coord: renderer.NewCoordinator(pool, renderer.CoordinatorOptions{
			Log:          log,
			Progress:     relay,
			StallTimeout: cfg.Pool.StallTimeout,
		}),
		relay: relay,
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Serve static files
	s.mux.Handle("/", http.FileServer(http.Dir("static/")))

	// API endpoints
	s.mux.HandleFunc("GET /api/render", s.handleRender)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/workers", s.handleWorkers)
	s.mux.HandleFunc("POST /api/workers", s.handleSetWorkers)
	s.mux.HandleFunc("GET /api/scenes", s.handleScenes)
	s.mux.HandleFunc("GET /api/inspect", s.handleInspect)
	s.mux.HandleFunc("GET /api/image", s.handleImage)
	s.mux.HandleFunc("POST /api/save", s.handleSave)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
}

// Handler returns the server's request router
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Pool returns the server's worker pool
func (s *Server) Pool() *renderer.Pool {
	return s.pool
}

// Coordinator returns the server's render coordinator
func (s *Server) Coordinator() *renderer.Coordinator {
	return s.coord
}

// Run serves HTTP and runs the worker pool and coordinator until ctx is done
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.mux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.pool.Run(gctx) })
	g.Go(func() error { return s.coord.Run(gctx) })
	g.Go(func() error {
		s.log.Info("starting web server", zap.String("addr", "http://localhost"+httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// StatusResponse describes the current render session
type StatusResponse struct {
	Active    bool   `json:"active"`
	SessionID string `json:"sessionId,omitempty"`
	Rendering bool   `json:"rendering"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Workers   int    `json:"workers"`
	ElapsedMs int64  `json:"elapsedMs"`
	Stats     Stats  `json:"stats"`
	Error     string `json:"error,omitempty"`
}

// Stats represents render statistics
type Stats struct {
	TotalPixels int     `json:"totalPixels"`
	PrimaryHits int     `json:"primaryHits"`
	Misses      int     `json:"misses"`
	Unlit       int     `json:"unlit"`
	HitRatio    float64 `json:"hitRatio"`
	TraceMs     int64   `json:"traceMs"` // Summed over workers
}

func statusFromReport(r renderer.Report) StatusResponse {
	status := StatusResponse{
		Active:    true,
		SessionID: r.SessionID.String(),
		Rendering: r.Rendering,
		Width:     r.Width,
		Height:    r.Height,
		Completed: r.Completed,
		Total:     r.Total,
		Workers:   r.Workers,
		ElapsedMs: r.Elapsed.Milliseconds(),
		Stats: Stats{
			TotalPixels: r.Stats.TotalPixels,
			PrimaryHits: r.Stats.PrimaryHits,
			Misses:      r.Stats.Misses,
			Unlit:       r.Stats.Unlit,
			HitRatio:    r.Stats.HitRatio(),
			TraceMs:     r.Stats.Duration.Milliseconds(),
		},
	}
	if r.Err != nil {
		status.Error = r.Err.Error()
	}
	return status
}

// handleStatus reports progress of the current or most recent render
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	session := s.coord.Current()
	if session == nil {
		s.writeJSON(w, http.StatusOK, StatusResponse{})
		return
	}
	s.writeJSON(w, http.StatusOK, statusFromReport(session.Report()))
}

// WorkersResponse describes the worker pool
type WorkersResponse struct {
	Target int `json:"target"`
	Live   int `json:"live"`
}

// handleWorkers reports the pool target and size
func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, WorkersResponse{Target: s.pool.Target(), Live: s.pool.Size()})
}

// handleSetWorkers changes the pool target to count. The new target is
// applied at the next reconciliation tick.
func (s *Server) handleSetWorkers(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("count")
	if v == "" {
		s.writeError(w, http.StatusBadRequest, "count is required")
		return
	}
	count, err := strconv.ParseFloat(v, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid count: %s", v))
		return
	}
	if count > config.MaxWorkers {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("count must be at most %d", config.MaxWorkers))
		return
	}
	target := s.pool.SetTarget(renderer.ClampTarget(count))
	s.log.Info("worker target changed", zap.Int("target", target))
	s.handleWorkers(w, r)
}

// handleScenes lists the built-in scene and the scene files
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := scene.ListAllScenes(s.cfg.Scene.Dir)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, scenes)
}

// handleImage returns the current composited image as PNG
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	session := s.coord.Current()
	if session == nil {
		s.writeError(w, http.StatusNotFound, "no render yet")
		return
	}
	data, err := output.Encode(session.Image())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", output.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// SaveResponse names where an image was written
type SaveResponse struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// handleSave writes the current image to the configured bucket
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	session := s.coord.Current()
	if session == nil {
		s.writeError(w, http.StatusNotFound, "no render yet")
		return
	}
	if session.Rendering() {
		s.writeError(w, http.StatusConflict, core.ErrRenderInProgress.Error())
		return
	}
	if s.cfg.Output.URL == "" {
		s.writeError(w, http.StatusServiceUnavailable, "no output bucket configured")
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		key = s.cfg.Output.Key
	}
	location, err := output.Save(r.Context(), s.cfg.Output.URL, key, session.Image())
	if err != nil {
		s.log.Error("saving image failed", zap.String("key", key), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("image saved", zap.String("bucket", s.cfg.Output.URL), zap.String("key", location))
	s.writeJSON(w, http.StatusOK, SaveResponse{Bucket: s.cfg.Output.URL, Key: location})
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "workers": s.pool.Size()})
}

// apiOptions encodes vectors as [x,y,z] arrays and colors as "#rrggbb"
func apiOptions() json.Options {
	return json.WithMarshalers(json.NewMarshalers(
		json.MarshalFuncV2(func(enc *jsontext.Encoder, v core.Vec3, opts json.Options) error {
			return json.MarshalEncode(enc, [3]float64{v.X, v.Y, v.Z}, opts)
		}),
		json.MarshalFuncV2(func(enc *jsontext.Encoder, c core.Color, opts json.Options) error {
			return enc.WriteToken(jsontext.String(fmt.Sprintf("#%06x", c.Hex())))
		}),
	))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, v, apiOptions()); err != nil {
		s.log.Warn("writing response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseRenderParams builds a render configuration from the server defaults
// and the request's query parameters, and returns the requested scene ID.
func (s *Server) parseRenderParams(r *http.Request) (renderer.RenderConfig, string, error) {
	q := r.URL.Query()
	base := s.cfg.Render
	cfg := s.cfg.RenderConfig()

	sceneID := q.Get("scene")
	if sceneID == "" {
		sceneID = s.cfg.Scene.ID
	}

	var err error
	if cfg.Width, err = parseIntParam(q, "width", base.Width, MinImageSize, MaxImageSize); err != nil {
		return cfg, "", err
	}
	if cfg.Height, err = parseIntParam(q, "height", base.Height, MinImageSize, MaxImageSize); err != nil {
		return cfg, "", err
	}
	exponent, err := parseIntParam(q, "tile", base.TileExponent, config.MinTileExponent, config.MaxTileExponent)
	if err != nil {
		return cfg, "", err
	}
	cfg.TileSize = renderer.TileSizeFromExponent(exponent)
	if cfg.PhongExponent, err = parseFloatParam(q, "phongExponent", base.PhongExponent, config.MinPhong, config.MaxPhong); err != nil {
		return cfg, "", err
	}
	if cfg.SupersamplingRate, err = parseIntParam(q, "supersampling", base.SupersamplingRate, 0, config.MaxSupersample); err != nil {
		return cfg, "", err
	}
	if cfg.MaxRecursionDepth, err = parseIntParam(q, "maxRecursionDepth", base.MaxRecursionDepth, 0, config.MaxRecursion); err != nil {
		return cfg, "", err
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{"allLights", &cfg.AllLights},
		{"calcDiffuse", &cfg.CalcDiffuse},
		{"calcPhong", &cfg.CalcPhong},
		{"useMirrors", &cfg.UseMirrors},
		{"widthBasedRows", &cfg.WidthBasedRows},
	}
	for _, f := range flags {
		if *f.dst, err = parseBoolParam(q, f.key, *f.dst); err != nil {
			return cfg, "", err
		}
	}
	return cfg, sceneID, nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, errors.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, errors.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, errors.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, errors.Errorf("%s must be between %g and %g, got: %g", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseBoolParam parses a boolean parameter from URL query
func parseBoolParam(values url.Values, key string, defaultValue bool) (bool, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return false, errors.Errorf("invalid %s: %s", key, value)
		}
		return parsed, nil
	}
	return defaultValue, nil
}
