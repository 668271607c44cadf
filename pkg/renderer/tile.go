package renderer

// TileJob is one rectangular region of the image. Width and Height are
// clipped to the image, so edge tiles may be smaller than the tile size and
// tiles lying outside the image are empty.
type TileJob struct {
	Index      int `json:"index"`
	X          int `json:"x"`
	Y          int `json:"y"`
	Width      int `json:"width"`
	Height     int `json:"height"`
	FullWidth  int `json:"fullWidth"`
	FullHeight int `json:"fullHeight"`
}

// Empty reports whether the tile covers no pixels
func (j TileJob) Empty() bool {
	return j.Width == 0 || j.Height == 0
}

// TileGrid divides an image into tiles numbered row-major from the top left
type TileGrid struct {
	Width    int
	Height   int
	TileSize TileSize
	TilesX   int
	TilesY   int
}

// NewTileGrid creates a grid of tiles covering the entire image. With
// widthBasedRows the row count is derived from the width, which covers the
// image only when it is at least as wide as it is tall.
func NewTileGrid(width, height int, size TileSize, widthBasedRows bool) TileGrid {
	rowsFrom := height
	if widthBasedRows {
		rowsFrom = width
	}
	return TileGrid{
		Width:    width,
		Height:   height,
		TileSize: size,
		TilesX:   (width + size.X - 1) / size.X, // Ceiling division
		TilesY:   (rowsFrom + size.Y - 1) / size.Y,
	}
}

// Total returns the number of tiles in the grid
func (g TileGrid) Total() int {
	return g.TilesX * g.TilesY
}

// Job returns the tile with the given index
func (g TileGrid) Job(i int) TileJob {
	x := (i % g.TilesX) * g.TileSize.X
	y := (i / g.TilesX) * g.TileSize.Y
	return TileJob{
		Index:      i,
		X:          x,
		Y:          y,
		Width:      max(0, min(g.TileSize.X, g.Width-x)),
		Height:     max(0, min(g.TileSize.Y, g.Height-y)),
		FullWidth:  g.Width,
		FullHeight: g.Height,
	}
}

// Indices returns the tiles assigned to one worker: workerIndex,
// workerIndex+workerCount, workerIndex+2*workerCount, ...
func (g TileGrid) Indices(workerIndex, workerCount int) []int {
	if workerCount < 1 || workerIndex < 0 {
		return nil
	}
	var indices []int
	for i := workerIndex; i < g.Total(); i += workerCount {
		indices = append(indices, i)
	}
	return indices
}
