package flow

import (
	"errors"
	"fmt"
)

// Default tracker tuning.
const (
	// DefaultMinDirLength is the shortest direction (in pixels) kept; shorter ones are jitter.
	DefaultMinDirLength = 15
	// DefaultAngleRange is the width in degrees of each angle bucket.
	DefaultAngleRange = 20
	// DefaultMinDirsInList is the bucket size a dominant cluster must exceed.
	DefaultMinDirsInList = 5
	// DefaultMaxWithoutDirs is how many motionless frames keep the COG alive.
	DefaultMaxWithoutDirs = 30
	// DefaultMinMoveReport is the COG displacement (in pixels) that must be
	// exceeded before a move is reported.
	DefaultMinMoveReport = 3
	// DefaultMaxCorners is the corner budget used when features are re-detected.
	DefaultMaxCorners = 300
)

// ErrInvalidConfig is returned when tracker tuning is out of range.
var ErrInvalidConfig = errors.New("invalid tracker config")

// Config holds the tracker tuning.
type Config struct {
	MinDirLength   float64 `json:"min_dir_length"`
	AngleRange     int     `json:"angle_range"`
	MinDirsInList  int     `json:"min_dirs_in_list"`
	MaxWithoutDirs int     `json:"max_without_dirs"`
	MinMoveReport  int     `json:"min_move_report"`
	MaxCorners     int     `json:"max_corners"`
}

// DefaultConfig returns the default tracker tuning.
func DefaultConfig() Config {
	return Config{
		MinDirLength:   DefaultMinDirLength,
		AngleRange:     DefaultAngleRange,
		MinDirsInList:  DefaultMinDirsInList,
		MaxWithoutDirs: DefaultMaxWithoutDirs,
		MinMoveReport:  DefaultMinMoveReport,
		MaxCorners:     DefaultMaxCorners,
	}
}

// Validate reports whether the config can drive a tracker.
func (c Config) Validate() error {
	switch {
	case c.AngleRange <= 0 || c.AngleRange > 360:
		return fmt.Errorf("%w: angle_range %d must be in (0, 360]", ErrInvalidConfig, c.AngleRange)
	case 360%c.AngleRange != 0:
		return fmt.Errorf("%w: angle_range %d must divide 360", ErrInvalidConfig, c.AngleRange)
	case c.MinDirLength < 0:
		return fmt.Errorf("%w: min_dir_length %g is negative", ErrInvalidConfig, c.MinDirLength)
	case c.MinDirsInList < 0:
		return fmt.Errorf("%w: min_dirs_in_list %d is negative", ErrInvalidConfig, c.MinDirsInList)
	case c.MaxWithoutDirs < 0:
		return fmt.Errorf("%w: max_without_dirs %d is negative", ErrInvalidConfig, c.MaxWithoutDirs)
	case c.MinMoveReport < 0:
		return fmt.Errorf("%w: min_move_report %d is negative", ErrInvalidConfig, c.MinMoveReport)
	case c.MaxCorners <= 0:
		return fmt.Errorf("%w: max_corners %d must be positive", ErrInvalidConfig, c.MaxCorners)
	}
	return nil
}

// NumBuckets returns how many angle buckets partition the circle.
func (c Config) NumBuckets() int {
	return 360 / c.AngleRange
}
