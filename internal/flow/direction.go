// Package flow turns per-frame point correspondences into a single motion
// centroid (COG) with temporal hysteresis.
package flow

import (
	"image"
	"math"
)

// Direction is the motion vector between a feature's position in the
// previous frame and its position in the current frame.
type Direction struct {
	Start  image.Point
	End    image.Point
	Length float64
	Angle  float64 // degrees, (-180, 180]
}

// NewDirection builds the Direction from p0 to p1.
// p0 == p1 yields a zero-length direction with angle 0.
func NewDirection(p0, p1 image.Point) Direction {
	dx := float64(p1.X - p0.X)
	dy := float64(p1.Y - p0.Y)

	return Direction{
		Start:  p0,
		End:    p1,
		Length: math.Sqrt(dx*dx + dy*dy),
		Angle:  math.Atan2(dy, dx) * 180 / math.Pi,
	}
}

// Heading returns the angle rounded to whole degrees, in [-180, 180].
func (d Direction) Heading() int {
	return roundHalfUp(d.Angle)
}

// Mid returns the integer midpoint of the direction.
func (d Direction) Mid() image.Point {
	return image.Pt((d.Start.X+d.End.X)/2, (d.Start.Y+d.End.Y)/2)
}

// ArrowHead returns the outer ends of the two arrow-head barbs drawn at End.
// Each barb is a quarter of the direction's length, 45 degrees either side
// of the reversed direction.
func (d Direction) ArrowHead() (image.Point, image.Point) {
	barb := float64(roundHalfUp(d.Length / 4))
	rad := d.Angle * math.Pi / 180

	left := image.Pt(
		roundHalfUp(float64(d.End.X)-barb*math.Cos(rad+math.Pi/4)),
		roundHalfUp(float64(d.End.Y)-barb*math.Sin(rad+math.Pi/4)),
	)
	right := image.Pt(
		roundHalfUp(float64(d.End.X)-barb*math.Cos(rad-math.Pi/4)),
		roundHalfUp(float64(d.End.Y)-barb*math.Sin(rad-math.Pi/4)),
	)
	return left, right
}

// roundHalfUp rounds x to the nearest integer, with halves going up
// (so -0.5 becomes 0 and 179.5 becomes 180).
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
