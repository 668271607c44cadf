package renderer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// TileError records a tile that failed to render
type TileError struct {
	Index    int   `json:"index"`
	X        int   `json:"x"`
	Y        int   `json:"y"`
	WorkerID int   `json:"workerId"`
	Err      error `json:"-"`
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %d at (%d,%d) on worker %d: %v", e.Index, e.X, e.Y, e.WorkerID, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

// RenderError is the outcome of a session that finished with failed or
// missing tiles.
type RenderError struct {
	SessionID uuid.UUID
	Failures  []*TileError
	Stalled   bool
	Missing   []int // Tiles never reported when the session stalled
}

func (e *RenderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "render %s failed", e.SessionID)
	if e.Stalled {
		fmt.Fprintf(&b, ": %v with %d tiles missing %v", core.ErrSessionStalled, len(e.Missing), e.Missing)
	}
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %v", f)
	}
	return b.String()
}

// Unwrap exposes ErrSessionStalled and each tile's cause to errors.Is
func (e *RenderError) Unwrap() []error {
	var errs []error
	if e.Stalled {
		errs = append(errs, core.ErrSessionStalled)
	}
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
