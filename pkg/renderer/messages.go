package renderer

import (
	"github.com/google/uuid"

	"github.com/df07/go-tiled-raytracer/pkg/framebuffer"
	"github.com/df07/go-tiled-raytracer/pkg/scene"
)

// RenderRequest is sent from the coordinator to each worker to start a
// session. Config carries the receiving worker's index and the worker count.
type RenderRequest struct {
	SessionID uuid.UUID
	Config    RenderConfig
	Scene     *scene.Scene
}

// TileResult is sent from a worker to the coordinator for every tile it
// renders. Buffer is nil when Err is set.
type TileResult struct {
	SessionID uuid.UUID
	WorkerID  int
	Job       TileJob
	Buffer    *framebuffer.ColorBuffer
	Stats     RenderStats
	Err       error
}
