package flow

import (
	"fmt"
	"image"
	"math"
)

// Correspondence is one feature's position in the previous frame (Start)
// and its estimated position in the current frame (End). Found is false when
// the optical-flow stage lost the feature.
type Correspondence struct {
	Start image.Point
	End   image.Point
	Found bool
}

// Pair zips the parallel slices an optical-flow stage produces.
// It panics if the slices differ in length.
func Pair(starts, ends []image.Point, found []bool) []Correspondence {
	if len(starts) != len(ends) || len(starts) != len(found) {
		panic(fmt.Sprintf("flow: mismatched correspondence slices: %d starts, %d ends, %d flags",
			len(starts), len(ends), len(found)))
	}

	pairs := make([]Correspondence, len(starts))
	for i := range starts {
		pairs[i] = Correspondence{Start: starts[i], End: ends[i], Found: found[i]}
	}
	return pairs
}

// Hint tells the correspondence estimator how to prepare the next frame.
type Hint int

const (
	// HintRedetect asks for fresh corner detection with the full corner budget.
	HintRedetect Hint = iota
	// HintReuse allows this frame's end points to be the next frame's start points.
	HintReuse
)

func (h Hint) String() string {
	if h == HintReuse {
		return "reuse"
	}
	return "redetect"
}

// Event describes how the tracked centroid changed on a frame.
type Event string

const (
	EventNone   Event = ""
	EventAppear Event = "appear"
	EventMove   Event = "move"
	EventLost   Event = "lost"
)

// Move is the displacement of the centroid between two active frames, with
// the y axis pointing up the screen. Angle is in whole degrees.
type Move struct {
	Distance int
	Angle    int
}

// State is the part of the tracker that persists between frames.
type State struct {
	Centroid          image.Point
	Active            bool
	FramesSinceMotion int
	Reuse             bool
}

// Result is the outcome of one Update.
type Result struct {
	Active bool
	Point  image.Point // valid only when Active
	Hint   Hint

	NumDirs      int
	Dominant     int // bucket index of the accepted cluster, -1 if none
	DominantSize int

	Event Event
	Move  *Move // set on EventMove when the COG moved more than MinMoveReport

	Stats      FrameStats
	Directions []Direction // qualifying directions, in input order
}

// ReuseNextFrame reports whether the next frame may skip corner detection.
func (r Result) ReuseNextFrame() bool {
	return r.Hint == HintReuse
}

// Tracker computes the motion centroid frame by frame.
//
// A Tracker is not safe for concurrent use: Update must be called from a
// single goroutine, once per frame, in frame order.
type Tracker struct {
	cfg     Config
	buckets *Buckets
	state   State
}

// NewTracker creates a tracker in the initial state: no centroid, zero
// dropout counter, corner re-detection required.
func NewTracker(cfg Config) (*Tracker, error) {
	return NewTrackerWithState(cfg, State{})
}

// NewTrackerWithState creates a tracker that resumes from st.
func NewTrackerWithState(cfg Config, st State) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if st.FramesSinceMotion < 0 {
		return nil, fmt.Errorf("%w: frames since motion %d is negative", ErrInvalidConfig, st.FramesSinceMotion)
	}
	if st.Active && st.FramesSinceMotion > cfg.MaxWithoutDirs {
		return nil, fmt.Errorf("%w: frames since motion %d exceeds max_without_dirs %d",
			ErrInvalidConfig, st.FramesSinceMotion, cfg.MaxWithoutDirs)
	}
	if !st.Active {
		st.Centroid = image.Point{}
	}

	return &Tracker{
		cfg:     cfg,
		buckets: NewBuckets(cfg.AngleRange),
		state:   st,
	}, nil
}

// Config returns the tracker's tuning.
func (t *Tracker) Config() Config {
	return t.cfg
}

// State returns a copy of the persistent state.
func (t *Tracker) State() State {
	return t.state
}

// Reconfigure swaps the tuning between frames. The centroid and dropout
// counter are kept.
func (t *Tracker) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.AngleRange != t.cfg.AngleRange {
		t.buckets = NewBuckets(cfg.AngleRange)
	}
	t.cfg = cfg
	return nil
}

// Reset returns the tracker to its initial state.
func (t *Tracker) Reset() {
	t.state = State{}
	t.buckets.Reset()
}

// Update consumes one frame's correspondences and returns the centroid to
// report. frameWidth bounds the longest plausible direction (frameWidth/8).
// It panics if frameWidth is negative.
func (t *Tracker) Update(pairs []Correspondence, frameWidth int) Result {
	if frameWidth < 0 {
		panic(fmt.Sprintf("flow: negative frame width %d", frameWidth))
	}

	dirs, stats := t.filter(pairs, frameWidth)

	res := Result{
		NumDirs:    len(dirs),
		Dominant:   -1,
		Stats:      stats,
		Directions: dirs,
	}

	var candidate *image.Point
	if idx, size := t.buckets.Dominant(); idx >= 0 && size > t.cfg.MinDirsInList {
		c := meanMid(t.buckets.Bucket(idx))
		candidate = &c
		res.Dominant = idx
		res.DominantSize = size
	}

	prev := t.state
	t.advance(candidate, res.NumDirs)

	if res.NumDirs > 0 {
		res.Hint = HintReuse
	} else {
		res.Hint = HintRedetect
	}
	t.state.Reuse = res.Hint == HintReuse

	res.Active = t.state.Active
	if res.Active {
		res.Point = t.state.Centroid
	}
	res.Event, res.Move = t.event(prev, t.state)

	return res
}

// filter keeps found correspondences whose length lies in
// [MinDirLength, frameWidth/8] and sorts them into the angle buckets.
func (t *Tracker) filter(pairs []Correspondence, frameWidth int) ([]Direction, FrameStats) {
	t.buckets.Reset()

	maxLen := float64(frameWidth / 8)
	stats := FrameStats{Total: len(pairs)}

	var dirs []Direction
	for _, c := range pairs {
		if !c.Found {
			stats.Lost++
			continue
		}

		d := NewDirection(c.Start, c.End)
		switch {
		case d.Length > maxLen:
			stats.TooLong++
		case d.Length < t.cfg.MinDirLength:
			stats.TooShort++
		default:
			t.buckets.Add(d)
			dirs = append(dirs, d)
		}
	}

	stats.Qualifying = len(dirs)
	stats.MeanLength, stats.StdDevLength = lengthStats(dirs)

	return dirs, stats
}

// advance applies the hysteresis rules: a candidate always becomes the
// active centroid. A frame without qualifying directions counts towards
// the dropout; the centroid is held until more than MaxWithoutDirs such
// frames have passed. A sparse frame changes nothing.
func (t *Tracker) advance(candidate *image.Point, numDirs int) {
	if candidate != nil {
		t.state.Centroid = *candidate
		t.state.Active = true
		t.state.FramesSinceMotion = 0
		return
	}
	if numDirs > 0 {
		return
	}

	t.state.FramesSinceMotion++
	if t.state.FramesSinceMotion > t.cfg.MaxWithoutDirs {
		t.state.Active = false
		t.state.Centroid = image.Point{}
		t.state.FramesSinceMotion = 0
	}
}

func (t *Tracker) event(prev, cur State) (Event, *Move) {
	switch {
	case !prev.Active && cur.Active:
		return EventAppear, nil
	case prev.Active && !cur.Active:
		return EventLost, nil
	case prev.Active && cur.Active && prev.Centroid != cur.Centroid:
		return EventMove, t.move(prev.Centroid, cur.Centroid)
	}
	return EventNone, nil
}

func (t *Tracker) move(from, to image.Point) *Move {
	xStep := float64(to.X - from.X)
	yStep := -float64(to.Y - from.Y)

	dist := roundHalfUp(math.Sqrt(xStep*xStep + yStep*yStep))
	if dist <= t.cfg.MinMoveReport {
		return nil
	}
	return &Move{
		Distance: dist,
		Angle:    roundHalfUp(math.Atan2(yStep, xStep) * 180 / math.Pi),
	}
}
