package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu      sync.Mutex
	corners []gocv.Point2f
	err     error
	calls   int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetCorners sets the corners that will be returned by Detect.
func (m *MockDetector) SetCorners(corners []gocv.Point2f) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corners = corners
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured corners, truncated to maxCorners, or the
// configured error.
func (m *MockDetector) Detect(gray *gocv.Mat, maxCorners int) ([]gocv.Point2f, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if maxCorners < len(m.corners) {
		return m.corners[:max(maxCorners, 0)], nil
	}
	return m.corners, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// GridCorners returns corners on a regular grid inside the rectangle
// (x0, y0)-(x1, y1) with the given step. Handy for feeding the estimator
// a predictable feature set.
func GridCorners(x0, y0, x1, y1, step int) []gocv.Point2f {
	var pts []gocv.Point2f
	for y := y0; y <= y1; y += step {
		for x := x0; x <= x1; x += step {
			pts = append(pts, gocv.Point2f{X: float32(x), Y: float32(y)})
		}
	}
	return pts
}
