// Package detector finds trackable corner features in grayscale frames.
package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when Detect is given a nil or empty frame.
var ErrEmptyFrame = errors.New("empty frame")

// Detector defines the interface for corner detection implementations.
type Detector interface {
	// Detect returns at most maxCorners strong corners in a single-channel
	// frame. Returns an empty slice if no corners are found.
	Detect(gray *gocv.Mat, maxCorners int) ([]gocv.Point2f, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Default detection settings.
const (
	DefaultQualityLevel = 0.01
	DefaultMinDistance  = 5
	DefaultSubPixWindow = 10
)

// Config holds configuration options for corner detection.
type Config struct {
	// QualityLevel is the minimal accepted corner quality relative to the
	// best corner in the frame (0.0-1.0).
	QualityLevel float64

	// MinDistance is the minimum Euclidean distance in pixels between corners.
	MinDistance float64

	// SubPixel enables sub-pixel refinement of the detected corners.
	SubPixel bool

	// SubPixWindow is the half side length of the refinement search window.
	SubPixWindow int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		QualityLevel: DefaultQualityLevel,
		MinDistance:  DefaultMinDistance,
		SubPixel:     false,
		SubPixWindow: DefaultSubPixWindow,
	}
}

// withDefaults replaces out-of-range values with the defaults.
func (c Config) withDefaults() Config {
	if c.QualityLevel <= 0 || c.QualityLevel > 1 {
		c.QualityLevel = DefaultQualityLevel
	}
	if c.MinDistance <= 0 {
		c.MinDistance = DefaultMinDistance
	}
	if c.SubPixWindow <= 0 {
		c.SubPixWindow = DefaultSubPixWindow
	}
	return c
}
