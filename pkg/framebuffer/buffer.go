// Package framebuffer provides the byte-packed RGBA pixel grid that tiles
// are rendered into and composited onto.
package framebuffer

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// BytesPerPixel is the size of one RGBA pixel in the backing store
const BytesPerPixel = 4

// Opaque is the default alpha value
const Opaque = 255

// ErrOutOfBounds is returned for pixel coordinates outside the buffer
var ErrOutOfBounds = errors.New("pixel out of bounds")

// ColorBuffer is a width x height grid of RGBA pixels stored row-major in a
// flat byte slice with a stride of Width*4.
type ColorBuffer struct {
	Width  int
	Height int
	Pix    []byte
}

// New creates a buffer with every pixel black and fully opaque
func New(width, height int) *ColorBuffer {
	width = max(width, 0)
	height = max(height, 0)
	pix := make([]byte, width*height*BytesPerPixel)
	for i := 3; i < len(pix); i += BytesPerPixel {
		pix[i] = Opaque
	}
	return &ColorBuffer{Width: width, Height: height, Pix: pix}
}

// Index returns the offset of pixel (x, y) in Pix
func (b *ColorBuffer) Index(x, y int) (int, error) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return 0, errors.Wrapf(ErrOutOfBounds, "(%d,%d) in %dx%d", x, y, b.Width, b.Height)
	}
	return (x + y*b.Width) * BytesPerPixel, nil
}

// SetColor stores a color with the given alpha. Channels are clamped to
// [0,1] and rounded to the nearest byte.
func (b *ColorBuffer) SetColor(x, y int, c core.Color, alpha uint8) error {
	i, err := b.Index(x, y)
	if err != nil {
		return err
	}
	b.Pix[i] = toByte(c.R)
	b.Pix[i+1] = toByte(c.G)
	b.Pix[i+2] = toByte(c.B)
	b.Pix[i+3] = alpha
	return nil
}

// Color returns the normalized color and raw alpha of pixel (x, y)
func (b *ColorBuffer) Color(x, y int) (core.Color, uint8, error) {
	i, err := b.Index(x, y)
	if err != nil {
		return core.Color{}, 0, err
	}
	return core.Color{
		R: float64(b.Pix[i]) / 255,
		G: float64(b.Pix[i+1]) / 255,
		B: float64(b.Pix[i+2]) / 255,
	}, b.Pix[i+3], nil
}

// Blit copies src into b with its top-left corner at (x, y). Rows and
// columns falling outside b are dropped.
func (b *ColorBuffer) Blit(src *ColorBuffer, x, y int) {
	dst := image.Rect(0, 0, b.Width, b.Height)
	area := image.Rect(x, y, x+src.Width, y+src.Height).Intersect(dst)
	if area.Empty() {
		return
	}

	rowBytes := area.Dx() * BytesPerPixel
	for py := area.Min.Y; py < area.Max.Y; py++ {
		from := ((area.Min.X - x) + (py-y)*src.Width) * BytesPerPixel
		to := (area.Min.X + py*b.Width) * BytesPerPixel
		copy(b.Pix[to:to+rowBytes], src.Pix[from:from+rowBytes])
	}
}

// Clone returns a deep copy of the buffer
func (b *ColorBuffer) Clone() *ColorBuffer {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return &ColorBuffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// RGBA returns an image sharing the buffer's pixels. The layouts are
// identical so no copy is made.
func (b *ColorBuffer) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pix,
		Stride: b.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// AverageLuminance returns the mean perceived brightness over all pixels
func (b *ColorBuffer) AverageLuminance() float64 {
	n := b.Width * b.Height
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(b.Pix); i += BytesPerPixel {
		sum += core.Color{
			R: float64(b.Pix[i]) / 255,
			G: float64(b.Pix[i+1]) / 255,
			B: float64(b.Pix[i+2]) / 255,
		}.Luminance()
	}
	return sum / float64(n)
}

func toByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.RoundToEven(v * 255))
}
