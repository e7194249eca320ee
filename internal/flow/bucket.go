package flow

import "image"

// Buckets partitions one frame's directions into equal-width angle sectors
// covering -180..180 degrees. Nothing carries over between frames: Reset
// drops every list.
type Buckets struct {
	angleRange int
	lists      [][]Direction
}

// NewBuckets creates 360/angleRange empty buckets.
// angleRange must be positive and divide 360.
func NewBuckets(angleRange int) *Buckets {
	if angleRange <= 0 || 360%angleRange != 0 {
		panic("flow: angle range must be a positive divisor of 360")
	}
	return &Buckets{
		angleRange: angleRange,
		lists:      make([][]Direction, 360/angleRange),
	}
}

// Len returns the number of buckets.
func (b *Buckets) Len() int {
	return len(b.lists)
}

// Index returns the bucket for a heading in whole degrees.
// A heading of exactly 180 wraps around to bucket 0.
func (b *Buckets) Index(heading int) int {
	idx := (heading + 180) / b.angleRange
	if idx == len(b.lists) {
		idx = 0
	}
	return idx
}

// Add appends d to its bucket and returns the bucket index.
func (b *Buckets) Add(d Direction) int {
	idx := b.Index(d.Heading())
	b.lists[idx] = append(b.lists[idx], d)
	return idx
}

// Bucket returns the directions in bucket i, in insertion order.
func (b *Buckets) Bucket(i int) []Direction {
	return b.lists[i]
}

// Reset empties every bucket.
func (b *Buckets) Reset() {
	for i := range b.lists {
		b.lists[i] = nil
	}
}

// Dominant returns the index and size of the most populated bucket.
// Buckets are scanned in index order and only a strictly larger count
// replaces the leader, so ties go to the lowest index. It returns -1, 0
// when every bucket is empty.
func (b *Buckets) Dominant() (int, int) {
	best, size := -1, 0
	for i, dirs := range b.lists {
		if len(dirs) > size {
			best, size = i, len(dirs)
		}
	}
	return best, size
}

// meanMid returns the truncated mean of the midpoints of dirs.
// dirs must not be empty.
func meanMid(dirs []Direction) image.Point {
	var xTot, yTot int
	for _, d := range dirs {
		mid := d.Mid()
		xTot += mid.X
		yTot += mid.Y
	}
	return image.Pt(xTot/len(dirs), yTot/len(dirs))
}
