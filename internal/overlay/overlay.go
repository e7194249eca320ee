// Package overlay draws tracker output onto BGR frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/flowcog/internal/flow"
)

// Drawing style
const (
	ArrowThickness = 2
	CentroidRadius = 10
	TextScale      = 0.6
)

var (
	ArrowColor    = color.RGBA{0, 0, 255, 0}
	CentroidColor = color.RGBA{255, 0, 0, 0}
	TextColor     = color.RGBA{255, 255, 0, 0}
)

// DrawDirections draws every direction as an arrow from its start to its end.
func DrawDirections(img *gocv.Mat, dirs []flow.Direction) {
	for _, d := range dirs {
		gocv.Line(img, d.Start, d.End, ArrowColor, ArrowThickness)

		left, right := d.ArrowHead()
		gocv.Line(img, d.End, left, ArrowColor, ArrowThickness)
		gocv.Line(img, d.End, right, ArrowColor, ArrowThickness)
	}
}

// DrawCentroid marks p with a filled circle.
func DrawCentroid(img *gocv.Mat, p image.Point) {
	gocv.Circle(img, p, CentroidRadius, CentroidColor, -1)
}

// DrawStats writes the average processing time per frame in the
// bottom-left corner.
func DrawStats(img *gocv.Mat, avg time.Duration) {
	msg := fmt.Sprintf("Snap Avg. Time: %.1f ms", float64(avg.Microseconds())/1000)
	gocv.PutText(img, msg, image.Pt(5, img.Rows()-10), gocv.FontHersheySimplex, TextScale, TextColor, 1)
}

// Annotate draws a tracker result: the qualifying directions, the
// centroid when one is active, and the timing line.
func Annotate(img *gocv.Mat, res flow.Result, avg time.Duration) {
	DrawDirections(img, res.Directions)
	if res.Active {
		DrawCentroid(img, res.Point)
	}
	DrawStats(img, avg)
}
