// Package geometry holds the dial math shared by the resolver and the overlay.
//
// Angles are measured in image coordinates (Y grows downward), so a positive
// sweep from the reference direction is clockwise on screen.
package geometry

import (
	"math"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// BoxCenter returns the centroid of a box
func BoxCenter(b types.Box) types.Point {
	return types.Point{
		X: (b.XMin + b.XMax) / 2,
		Y: (b.YMin + b.YMax) / 2,
	}
}

// AngleRelativeTo returns how far point has swept clockwise from reference
// around center, in degrees within [0, 360). ok is false when either vector
// has zero length and the angle is undefined.
func AngleRelativeTo(center, point, reference types.Point) (float64, bool) {
	if samePoint(point, center) || samePoint(reference, center) {
		return 0, false
	}

	pointAngle := math.Atan2(point.Y-center.Y, point.X-center.X)
	refAngle := math.Atan2(reference.Y-center.Y, reference.X-center.X)

	return Normalize((pointAngle - refAngle) * 180 / math.Pi), true
}

// Normalize wraps an angle in degrees into [0, 360)
func Normalize(deg float64) float64 {
	a := math.Mod(math.Mod(deg, 360)+360, 360)
	if a >= 360 {
		a = 0
	}
	return a
}

// PointAt returns the point at radius r from center, swept deg degrees
// clockwise from the direction of reference
func PointAt(center, reference types.Point, deg, r float64) types.Point {
	base := math.Atan2(reference.Y-center.Y, reference.X-center.X)
	a := base + deg*math.Pi/180
	return types.Point{
		X: center.X + r*math.Cos(a),
		Y: center.Y + r*math.Sin(a),
	}
}

// Distance returns the euclidean distance between two points
func Distance(a, b types.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func samePoint(a, b types.Point) bool {
	return a.X == b.X && a.Y == b.Y
}
