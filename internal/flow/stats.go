package flow

import "gonum.org/v1/gonum/stat"

// FrameStats counts what happened to one frame's correspondences.
type FrameStats struct {
	Total        int
	Lost         int // not found by the optical-flow stage
	TooShort     int
	TooLong      int
	Qualifying   int
	MeanLength   float64
	StdDevLength float64
}

// lengthStats returns the mean and sample standard deviation of the
// direction lengths. Fewer than two directions have no spread.
func lengthStats(dirs []Direction) (float64, float64) {
	switch len(dirs) {
	case 0:
		return 0, 0
	case 1:
		return dirs[0].Length, 0
	}

	lengths := make([]float64, len(dirs))
	for i, d := range dirs {
		lengths[i] = d.Length
	}
	return stat.MeanStdDev(lengths, nil)
}
