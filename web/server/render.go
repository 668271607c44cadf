package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/go-json-experiment/json"
	"go.uber.org/zap"

	"github.com/df07/go-tiled-raytracer/pkg/output"
	"github.com/df07/go-tiled-raytracer/pkg/renderer"
	"github.com/df07/go-tiled-raytracer/pkg/scene"
)

// TileUpdate represents a single tile update sent via SSE
type TileUpdate struct {
	Index     int    `json:"index"`
	TileX     int    `json:"tileX"`
	TileY     int    `json:"tileY"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	ImageData string `json:"imageData,omitempty"` // Base64 encoded PNG of just this tile
	Error     string `json:"error,omitempty"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "start", "tile", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// handleRender starts a render and streams its tiles via SSE as they are
// composited. The render keeps going if the client disconnects.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	// Set SSE headers
	s.setSSEHeaders(w)

	ctx := r.Context()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(w, ctx, sseEventChan)
	}()
	defer func() {
		close(sseEventChan)
		<-writerDone
	}()

	cfg, sceneID, err := s.parseRenderParams(r)
	if err != nil {
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	sceneObj, err := scene.Resolve(sceneID, s.cfg.Scene.Dir)
	if err != nil {
		s.handleError(ctx, sseEventChan, err.Error())
		return
	}

	// Setup console logging and streaming
	consoleChan := make(chan ConsoleMessage, 50)
	webLogger := NewWebLogger(sceneID, s.log, consoleChan)
	s.relay.attach(webLogger)
	defer s.relay.detach(webLogger)

	consoleCtx, stopConsole := context.WithCancel(ctx)
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.streamConsoleMessages(consoleCtx, consoleChan, sseEventChan)
	}()
	defer func() {
		stopConsole()
		<-consoleDone
	}()

	session, err := s.coord.StartRender(cfg, sceneObj)
	if err != nil {
		// The console belongs to whichever render is running
		s.relay.detach(webLogger)
		s.handleError(ctx, sseEventChan, fmt.Sprintf("Render rejected: %v", err))
		return
	}
	s.sendJSONEvent(ctx, sseEventChan, "start", statusFromReport(session.Report()))

	s.handleRenderingEvents(ctx, sseEventChan, session)
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents handles writing all SSE events in a single goroutine (thread-safe)
func (s *Server) writeSSEEvents(w http.ResponseWriter, ctx context.Context, sseEventChan <-chan SSEEvent) {
	for {
		select {
		case event, ok := <-sseEventChan:
			if !ok {
				return
			}

			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
				// Client disconnected during write
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// streamConsoleMessages forwards console messages as SSE events. Messages
// still queued when ctx is done are flushed before it returns.
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan <-chan ConsoleMessage, sseEventChan chan<- SSEEvent) {
	for {
		select {
		case consoleMsg := <-consoleChan:
			s.sendConsoleMessage(sseEventChan, consoleMsg)

		case <-ctx.Done():
			for {
				select {
				case consoleMsg := <-consoleChan:
					s.sendConsoleMessage(sseEventChan, consoleMsg)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) sendConsoleMessage(sseEventChan chan<- SSEEvent, msg ConsoleMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn("marshaling console message failed", zap.Error(err))
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
	default:
		// Channel full, skip message to avoid blocking
	}
}

// handleRenderingEvents forwards the session's tile events until it finishes
func (s *Server) handleRenderingEvents(ctx context.Context, sseEventChan chan<- SSEEvent, session *renderer.Session) {
	events := session.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				report := session.Report()
				if report.Err != nil {
					s.handleError(ctx, sseEventChan, fmt.Sprintf("Rendering failed: %v", report.Err))
				}
				s.sendJSONEvent(ctx, sseEventChan, "complete", statusFromReport(report))
				return
			}
			s.handleTileUpdate(ctx, sseEventChan, ev)

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}
}

// handleTileUpdate encodes one tile event and queues it
func (s *Server) handleTileUpdate(ctx context.Context, sseEventChan chan<- SSEEvent, ev renderer.TileEvent) {
	update := TileUpdate{
		Index:     ev.Job.Index,
		TileX:     ev.Job.X,
		TileY:     ev.Job.Y,
		Width:     ev.Job.Width,
		Height:    ev.Job.Height,
		Completed: ev.Completed,
		Total:     ev.Total,
	}

	switch {
	case ev.Err != nil:
		update.Error = ev.Err.Error()
	case ev.Buffer != nil && len(ev.Buffer.Pix) > 0:
		data, err := output.Encode(ev.Buffer)
		if err != nil {
			s.log.Warn("encoding tile failed", zap.Int("tile", ev.Job.Index), zap.Error(err))
			return
		}
		update.ImageData = base64.StdEncoding.EncodeToString(data)
	}

	s.sendJSONEvent(ctx, sseEventChan, "tile", update)
}

func (s *Server) sendJSONEvent(ctx context.Context, sseEventChan chan<- SSEEvent, eventType string, v any) {
	data, err := json.Marshal(v, apiOptions())
	if err != nil {
		s.log.Warn("marshaling event failed", zap.String("event", eventType), zap.Error(err))
		return
	}
	select {
	case sseEventChan <- SSEEvent{Type: eventType, Data: string(data)}:
	case <-ctx.Done():
	}
}

// handleError sends an error event to the SSE channel
func (s *Server) handleError(ctx context.Context, sseEventChan chan<- SSEEvent, message string) {
	select {
	case sseEventChan <- SSEEvent{Type: "error", Data: message}:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}
