package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "info", "warning", "error"
}

// WebLogger implements core.Logger by sending messages to a console channel
type WebLogger struct {
	renderID    string
	log         *zap.Logger
	consoleChan chan<- ConsoleMessage
}

// NewWebLogger creates a new web logger for a specific render
func NewWebLogger(renderID string, log *zap.Logger, consoleChan chan<- ConsoleMessage) core.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebLogger{
		renderID:    renderID,
		log:         log,
		consoleChan: consoleChan,
	}
}

// Printf implements core.Logger interface
func (wl *WebLogger) Printf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	// Also write to the server log
	wl.log.Info(strings.TrimRight(message, "\n"), zap.String("render", wl.renderID))

	// Send to web console if channel is available (non-blocking)
	if wl.consoleChan != nil {
		select {
		case wl.consoleChan <- ConsoleMessage{
			Message:   message,
			Timestamp: time.Now(),
			Level:     "info",
		}:
		default:
			// Channel full, skip (don't block)
		}
	}
}

// consoleRelay is the coordinator's progress logger. It forwards lines to
// the most recently attached console, or to fallback when none is attached.
type consoleRelay struct {
	fallback core.Logger

	mu      sync.Mutex
	targets []core.Logger
}

func (r *consoleRelay) attach(l core.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, l)
}

// detach removes l, handing its lines back to whichever console was attached
// before it
func (r *consoleRelay) detach(l core.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.targets) - 1; i >= 0; i-- {
		if r.targets[i] == l {
			r.targets = append(r.targets[:i], r.targets[i+1:]...)
			return
		}
	}
}

func (r *consoleRelay) current() core.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.targets); n > 0 {
		return r.targets[n-1]
	}
	return r.fallback
}

func (r *consoleRelay) Printf(format string, args ...interface{}) {
	if target := r.current(); target != nil {
		target.Printf(format, args...)
	}
}
