package core

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig is returned when a render configuration fails validation.
	ErrInvalidConfig = errors.New("invalid render configuration")

	// ErrInsufficientLights is returned when light dependent shading is
	// requested for a scene with fewer lights than the shading model needs.
	ErrInsufficientLights = errors.New("insufficient lights for shading")

	// ErrUnsupportedGeometry is returned when a primitive that is neither a
	// sphere nor a box reaches a step that needs its concrete kind.
	ErrUnsupportedGeometry = errors.New("unsupported geometry")

	// ErrRenderInProgress is returned when a render is requested while
	// another session is still active.
	ErrRenderInProgress = errors.New("render already in progress")

	// ErrSessionStalled is returned when no tile arrives within the
	// configured stall timeout.
	ErrSessionStalled = errors.New("render session stalled")

	// ErrWorkerClosed is returned when a message is posted to a worker that
	// has been retired.
	ErrWorkerClosed = errors.New("worker closed")
)
