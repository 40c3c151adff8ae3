package main

import (
	"math"
	"math/rand"
)

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Distance returns the distance between two points
func Distance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}

// randRange returns a random float64 in [lo, hi)
func randRange(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}

// clampToWorld keeps a circle of radius r inside the padded world bounds
func clampToWorld(x, y, r float64, cfg Config) (float64, float64) {
	return Clamp(x, cfg.EdgePadding+r, cfg.WorldWidth-cfg.EdgePadding-r),
		Clamp(y, cfg.EdgePadding+r, cfg.WorldHeight-cfg.EdgePadding-r)
}

// Color is an RGB triple, serialized as a JSON array
type Color [3]uint8

// randColor returns a bright-ish random color
func randColor() Color {
	return Color{
		uint8(50 + rand.Intn(206)),
		uint8(50 + rand.Intn(206)),
		uint8(50 + rand.Intn(206)),
	}
}
