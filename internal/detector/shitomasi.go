package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// ShiTomasi implements Detector with OpenCV's good-features-to-track corner
// detector and optional sub-pixel refinement.
type ShiTomasi struct {
	config Config
	mu     sync.Mutex
}

// NewShiTomasi creates a ShiTomasi detector. Out-of-range config values
// fall back to the defaults.
func NewShiTomasi(config Config) *ShiTomasi {
	return &ShiTomasi{config: config.withDefaults()}
}

// Config returns the effective detection settings.
func (d *ShiTomasi) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.config
}

// Detect runs corner detection on gray.
func (d *ShiTomasi) Detect(gray *gocv.Mat, maxCorners int) ([]gocv.Point2f, error) {
	if gray == nil || gray.Empty() {
		return nil, ErrEmptyFrame
	}
	if maxCorners <= 0 {
		return nil, nil
	}

	d.mu.Lock()
	cfg := d.config
	d.mu.Unlock()

	corners := gocv.NewMat()
	defer corners.Close()

	gocv.GoodFeaturesToTrack(*gray, &corners, maxCorners, cfg.QualityLevel, cfg.MinDistance)
	if corners.Empty() {
		return nil, nil
	}

	if cfg.SubPixel {
		criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, 20, 0.03)
		gocv.CornerSubPix(*gray, &corners,
			image.Pt(cfg.SubPixWindow, cfg.SubPixWindow), image.Pt(-1, -1), criteria)
	}

	return PointsFromMat(corners), nil
}

// Close is a no-op; ShiTomasi holds no native resources between calls.
func (d *ShiTomasi) Close() error {
	return nil
}

// PointsFromMat reads a point list Mat as produced by OpenCV's feature and
// optical-flow functions. Both Nx1 two-channel and Nx2 single-channel
// float layouts are accepted.
func PointsFromMat(m gocv.Mat) []gocv.Point2f {
	pts := make([]gocv.Point2f, m.Rows())
	for i := range pts {
		if m.Channels() == 2 {
			v := m.GetVecfAt(i, 0)
			pts[i] = gocv.Point2f{X: v[0], Y: v[1]}
		} else {
			pts[i] = gocv.Point2f{X: m.GetFloatAt(i, 0), Y: m.GetFloatAt(i, 1)}
		}
	}
	return pts
}

// MatFromPoints builds an Nx2 single-channel float Mat from pts.
// The caller is responsible for closing the returned Mat.
func MatFromPoints(pts []gocv.Point2f) gocv.Mat {
	m := gocv.NewMatWithSize(len(pts), 2, gocv.MatTypeCV32F)
	for i, p := range pts {
		m.SetFloatAt(i, 0, p.X)
		m.SetFloatAt(i, 1, p.Y)
	}
	return m
}
