package geometry

import (
	"math"

	"github.com/df07/go-tiled-raytracer/pkg/core"
)

// RayEpsilon is the minimum hit distance, keeping rays that start on a
// surface from hitting that surface again.
const RayEpsilon = 1e-3

// Intersector answers nearest-hit and occlusion queries against a fixed
// list of primitives. It holds no mutable state and is safe for
// concurrent use.
type Intersector struct {
	primitives []Primitive
}

// NewIntersector creates an intersector over the given primitives. The
// slice order is the insertion order used to break exact distance ties.
func NewIntersector(primitives []Primitive) *Intersector {
	return &Intersector{primitives: primitives}
}

// Intersect returns the nearest hit along the ray. When two primitives are
// hit at exactly the same distance the one inserted first wins.
func (in *Intersector) Intersect(ray core.Ray) (*Hit, bool) {
	var closestHit *Hit
	closestSoFar := math.Inf(1)

	for _, p := range in.primitives {
		if hit, isHit := p.Hit(ray, RayEpsilon, closestSoFar); isHit && hit.T < closestSoFar {
			closestSoFar = hit.T
			closestHit = hit
		}
	}

	return closestHit, closestHit != nil
}

// Occluded reports whether the ray hits any primitive at all. There is no
// upper distance bound: objects beyond a light still occlude it.
func (in *Intersector) Occluded(ray core.Ray) bool {
	for _, p := range in.primitives {
		if _, isHit := p.Hit(ray, RayEpsilon, math.Inf(1)); isHit {
			return true
		}
	}
	return false
}
