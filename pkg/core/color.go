package core

import "math"

// Color is a linear RGB color. Channels are nominally in [0,1] but the
// shading math may push them outside that range; only the final
// combination step clamps, and only from above.
type Color struct {
	R, G, B float64
}

// NewColor creates a new Color
func NewColor(r, g, b float64) Color {
	return Color{R: r, G: g, B: b}
}

// ColorFromHex converts a 0xRRGGBB value into a Color
func ColorFromHex(hex uint32) Color {
	return Color{
		R: float64((hex>>16)&0xff) / 255.0,
		G: float64((hex>>8)&0xff) / 255.0,
		B: float64(hex&0xff) / 255.0,
	}
}

// Hex returns the color as 0xRRGGBB, clamping each channel to [0,1]
func (c Color) Hex() uint32 {
	channel := func(v float64) uint32 {
		return uint32(math.Round(math.Max(0, math.Min(1, v)) * 255))
	}
	return channel(c.R)<<16 | channel(c.G)<<8 | channel(c.B)
}

// Scale multiplies every channel by s
func (c Color) Scale(s float64) Color {
	return Color{c.R * s, c.G * s, c.B * s}
}

// Add returns the channel-wise sum of two colors
func (c Color) Add(other Color) Color {
	return Color{c.R + other.R, c.G + other.G, c.B + other.B}
}

// ClampMax clamps each channel to at most maxVal. Lower values, including
// negative ones, are left untouched.
func (c Color) ClampMax(maxVal float64) Color {
	return Color{
		R: math.Min(c.R, maxVal),
		G: math.Min(c.G, maxVal),
		B: math.Min(c.B, maxVal),
	}
}

// Luminance returns the perceptual luminance of the color
// Uses standard luminance weights: 0.299*R + 0.587*G + 0.114*B
func (c Color) Luminance() float64 {
	return 0.299*c.R + 0.587*c.G + 0.114*c.B
}
