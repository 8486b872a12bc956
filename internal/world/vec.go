// Package world provides the 2D plane the swarm moves on: vectors, hazards,
// delivery sites and their initial placement.
package world

import (
	"math"

	"github.com/paulmach/orb"
)

// Vec is a real-valued 2D vector used for positions and headings.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// V is shorthand for Vec{x, y}.
func V(x, y float64) Vec {
	return Vec{X: x, Y: y}
}

func (v Vec) Add(o Vec) Vec {
	return Vec{v.X + o.X, v.Y + o.Y}
}

func (v Vec) Sub(o Vec) Vec {
	return Vec{v.X - o.X, v.Y - o.Y}
}

func (v Vec) Scale(f float64) Vec {
	return Vec{v.X * f, v.Y * f}
}

func (v Vec) Neg() Vec {
	return Vec{-v.X, -v.Y}
}

// Len returns the Euclidean magnitude.
func (v Vec) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// IsZero reports whether both components are exactly zero.
func (v Vec) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Unit returns v scaled to length 1. A zero vector stays zero.
func (v Vec) Unit() Vec {
	mag := v.Len()
	if mag == 0 {
		return Vec{}
	}
	return Vec{v.X / mag, v.Y / mag}
}

// WithinBox reports whether o lies strictly inside the axis-aligned square of
// half-width half centred on v. This is the proximity test used throughout the
// simulation (hazard detection, comm range, delivery and pickup); it is not a
// Euclidean distance check.
func (v Vec) WithinBox(o Vec, half float64) bool {
	return math.Abs(o.X-v.X) < half && math.Abs(o.Y-v.Y) < half
}

// Point converts to an orb.Point for geometry and GeoJSON output.
func (v Vec) Point() orb.Point {
	return orb.Point{v.X, v.Y}
}
