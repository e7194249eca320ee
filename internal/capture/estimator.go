package capture

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/flowcog/internal/detector"
	"github.com/ayusman/flowcog/internal/flow"
)

// Optical-flow defaults
const (
	// DefaultWinSize is the side of the Lucas-Kanade search window.
	DefaultWinSize = 10
	// DefaultMaxLevel is the deepest pyramid level used.
	DefaultMaxLevel = 5
	DefaultMaxIter  = 20
	DefaultEpsilon  = 0.3
	// PrepareBlurSize is the box blur kernel applied before tracking.
	PrepareBlurSize = 3
)

// EstimatorConfig holds the pyramidal Lucas-Kanade settings.
type EstimatorConfig struct {
	WinSize  int
	MaxLevel int
	MaxIter  int
	Epsilon  float64
}

// DefaultEstimatorConfig returns the optical-flow settings used by the tracker.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		WinSize:  DefaultWinSize,
		MaxLevel: DefaultMaxLevel,
		MaxIter:  DefaultMaxIter,
		Epsilon:  DefaultEpsilon,
	}
}

func (c EstimatorConfig) withDefaults() EstimatorConfig {
	def := DefaultEstimatorConfig()
	if c.WinSize <= 0 {
		c.WinSize = def.WinSize
	}
	if c.MaxLevel < 0 {
		c.MaxLevel = def.MaxLevel
	}
	if c.MaxIter <= 0 {
		c.MaxIter = def.MaxIter
	}
	if c.Epsilon <= 0 {
		c.Epsilon = def.Epsilon
	}
	return c
}

// FlowEstimator produces point correspondences between consecutive frames
// using corner detection and pyramidal Lucas-Kanade optical flow.
//
// The first frame (and the first frame after Reset or a size change) only
// becomes the baseline and yields no correspondences.
type FlowEstimator struct {
	det detector.Detector
	cfg EstimatorConfig

	mu          sync.Mutex
	prevGray    gocv.Mat
	initialized bool
	reuse       []gocv.Point2f
	detections  int
}

// NewFlowEstimator creates a FlowEstimator that uses det when corners have
// to be re-detected.
func NewFlowEstimator(det detector.Detector, cfg EstimatorConfig) *FlowEstimator {
	return &FlowEstimator{
		det:      det,
		cfg:      cfg.withDefaults(),
		prevGray: gocv.NewMat(),
	}
}

// Prepare converts a BGR frame into the blurred, equalised grayscale image
// the optical-flow stage works on.
func Prepare(frame gocv.Mat, gray *gocv.Mat) {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.Blur(frame, &blurred, image.Pt(PrepareBlurSize, PrepareBlurSize))

	if blurred.Channels() > 1 {
		single := gocv.NewMat()
		defer single.Close()
		gocv.CvtColor(blurred, &single, gocv.ColorBGRToGray)
		gocv.EqualizeHist(single, gray)
		return
	}
	gocv.EqualizeHist(blurred, gray)
}

// Estimate returns the correspondences between the previous frame and
// frame. With flow.HintReuse the previous call's found end points are
// tracked again; otherwise, or when none are left, corners are re-detected
// in the previous frame with a budget of maxCorners.
func (e *FlowEstimator) Estimate(frame *gocv.Mat, hint flow.Hint, maxCorners int) ([]flow.Correspondence, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrNoFrame
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	gray := gocv.NewMat()
	defer gray.Close()
	Prepare(*frame, &gray)

	if !e.initialized || gray.Cols() != e.prevGray.Cols() || gray.Rows() != e.prevGray.Rows() {
		gray.CopyTo(&e.prevGray)
		e.initialized = true
		e.reuse = nil
		return nil, nil
	}
	defer gray.CopyTo(&e.prevGray)

	starts := e.reuse
	e.reuse = nil
	if hint != flow.HintReuse || len(starts) == 0 {
		var err error
		starts, err = e.det.Detect(&e.prevGray, maxCorners)
		e.detections++
		if err != nil {
			return nil, fmt.Errorf("detect corners: %w", err)
		}
	}
	if len(starts) == 0 {
		return []flow.Correspondence{}, nil
	}

	ends, found, err := e.track(gray, starts)
	if err != nil {
		return nil, err
	}

	pairs := make([]flow.Correspondence, len(starts))
	for i := range starts {
		pairs[i] = flow.Correspondence{
			Start: roundPoint(starts[i]),
			End:   roundPoint(ends[i]),
			Found: found[i],
		}
		if found[i] {
			e.reuse = append(e.reuse, ends[i])
		}
	}

	return pairs, nil
}

var errTrackMismatch = errors.New("optical flow returned a different number of points")

// track runs Lucas-Kanade from the previous gray frame to gray.
func (e *FlowEstimator) track(gray gocv.Mat, starts []gocv.Point2f) ([]gocv.Point2f, []bool, error) {
	prevPts := detector.MatFromPoints(starts)
	defer prevPts.Close()
	nextPts := gocv.NewMat()
	defer nextPts.Close()
	status := gocv.NewMat()
	defer status.Close()
	errMat := gocv.NewMat()
	defer errMat.Close()

	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, e.cfg.MaxIter, e.cfg.Epsilon)
	gocv.CalcOpticalFlowPyrLKWithParams(e.prevGray, gray, prevPts, nextPts, &status, &errMat,
		image.Pt(e.cfg.WinSize, e.cfg.WinSize), e.cfg.MaxLevel, criteria, 0, 1e-4)

	ends := detector.PointsFromMat(nextPts)
	if len(ends) != len(starts) || status.Rows() != len(starts) {
		return nil, nil, fmt.Errorf("%w: %d in, %d out", errTrackMismatch, len(starts), len(ends))
	}

	found := make([]bool, len(starts))
	for i := range found {
		found[i] = status.GetUCharAt(i, 0) == 1
	}
	return ends, found, nil
}

// Detections returns how many times corners have been re-detected.
func (e *FlowEstimator) Detections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detections
}

// Reset drops the baseline frame and any reusable points.
func (e *FlowEstimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prevGray.Close()
	e.prevGray = gocv.NewMat()
	e.initialized = false
	e.reuse = nil
}

// Close releases resources used by the estimator.
func (e *FlowEstimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prevGray.Close()
	e.prevGray = gocv.NewMat()
	e.initialized = false
	e.reuse = nil
	return e.det.Close()
}

func roundPoint(p gocv.Point2f) image.Point {
	return image.Pt(
		int(math.Floor(float64(p.X)+0.5)),
		int(math.Floor(float64(p.Y)+0.5)),
	)
}
