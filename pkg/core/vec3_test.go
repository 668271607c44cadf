package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestVec3_BasicOperations(t *testing.T) {
	a := NewVec3(1, 2, 3)
	b := NewVec3(4, -5, 6)

	tests := []struct {
		name     string
		got      Vec3
		expected Vec3
	}{
		{"Add", a.Add(b), NewVec3(5, -3, 9)},
		{"Subtract", a.Subtract(b), NewVec3(-3, 7, -3)},
		{"Multiply", a.Multiply(2), NewVec3(2, 4, 6)},
		{"MultiplyVec", a.MultiplyVec(b), NewVec3(4, -10, 18)},
		{"Cross", NewVec3(1, 0, 0).Cross(NewVec3(0, 1, 0)), NewVec3(0, 0, 1)},
		{"Negate", a.Negate(), NewVec3(-1, -2, -3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.got)
			}
		})
	}

	if dot := a.Dot(b); dot != 12 {
		t.Errorf("Expected dot 12, got %f", dot)
	}
}

func TestVec3_Normalize(t *testing.T) {
	v := NewVec3(3, 4, 0).Normalize()
	if math.Abs(v.Length()-1.0) > 1e-12 {
		t.Errorf("Expected unit length, got %f", v.Length())
	}

	zero := NewVec3(0, 0, 0).Normalize()
	if zero != (Vec3{}) {
		t.Errorf("Expected zero vector to stay zero, got %v", zero)
	}
}

func TestVec3_MglRoundTrip(t *testing.T) {
	v := NewVec3(1.5, -2.25, 8)
	if got := Vec3FromMgl(v.Mgl()); got != v {
		t.Errorf("Expected %v, got %v", v, got)
	}
	if got := NewVec3(1, 2, 3).Mgl(); got != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("Expected mgl vector {1,2,3}, got %v", got)
	}
}

func TestRay_At(t *testing.T) {
	ray := NewRay(NewVec3(0, 0, 0), NewVec3(0, 0, -10))

	if math.Abs(ray.Direction.Length()-1.0) > 1e-12 {
		t.Fatalf("Expected normalized direction, got %v", ray.Direction)
	}

	point := ray.At(5)
	expected := NewVec3(0, 0, -5)
	if point.Subtract(expected).Length() > 1e-12 {
		t.Errorf("Expected %v, got %v", expected, point)
	}
}

func TestColor_ClampMaxLeavesNegatives(t *testing.T) {
	c := NewColor(1.7, -0.25, 0.5).ClampMax(1.0)
	expected := NewColor(1.0, -0.25, 0.5)
	if c != expected {
		t.Errorf("Expected %v, got %v", expected, c)
	}
}

func TestColor_Hex(t *testing.T) {
	tests := []struct {
		hex uint32
	}{
		{0xffaa55},
		{0x55aaff},
		{0x000000},
		{0xffffff},
		{0x666666},
	}

	for _, tt := range tests {
		c := ColorFromHex(tt.hex)
		if got := c.Hex(); got != tt.hex {
			t.Errorf("Expected %06x, got %06x", tt.hex, got)
		}
	}
}
