package capture

import (
	"image"
	"math/rand/v2"
	"sync"

	"gocv.io/x/gocv"
)

// Default synthetic scene settings.
const (
	DefaultBlockSize = 96
	DefaultCellSize  = 8
)

// SyntheticConfig describes the scene a SyntheticCamera renders.
type SyntheticConfig struct {
	Width, Height int
	// BlockSize is the side of the moving textured square.
	BlockSize int
	// CellSize is the side of one texture cell.
	CellSize int
	// Start is the top-left corner of the block in the first frame.
	Start image.Point
	// Velocity is the block displacement per frame. The block bounces off
	// the frame edges.
	Velocity image.Point
	// Seed makes the textures reproducible.
	Seed uint64
}

// DefaultSyntheticConfig returns a 640x480 scene with a block moving
// diagonally about 23 pixels per frame.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		BlockSize: DefaultBlockSize,
		CellSize:  DefaultCellSize,
		Start:     image.Pt(40, 60),
		Velocity:  image.Pt(20, 12),
		Seed:      1,
	}
}

// SyntheticCamera renders a high-contrast textured block moving over a
// dim textured background. It needs no device and produces the same frames
// for the same config.
type SyntheticCamera struct {
	cfg        SyntheticConfig
	background []byte
	block      []byte

	mu      sync.Mutex
	running bool
	frame   int
	fps     int
}

// NewSyntheticCamera creates a SyntheticCamera. Non-positive sizes fall
// back to the defaults.
func NewSyntheticCamera(cfg SyntheticConfig) *SyntheticCamera {
	def := DefaultSyntheticConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = def.BlockSize
	}
	cfg.BlockSize = min(cfg.BlockSize, cfg.Width, cfg.Height)
	if cfg.CellSize <= 0 {
		cfg.CellSize = def.CellSize
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	return &SyntheticCamera{
		cfg:        cfg,
		background: texture(rng, cfg.Width, cfg.Height, cfg.CellSize*4, 40, 80),
		block:      texture(rng, cfg.BlockSize, cfg.BlockSize, cfg.CellSize, 0, 255),
		fps:        DefaultFPS,
	}
}

// texture returns a BGR image of w x h pixels made of square cells of
// random gray levels in [lo, hi].
func texture(rng *rand.Rand, w, h, cell, lo, hi int) []byte {
	cols := (w + cell - 1) / cell
	rows := (h + cell - 1) / cell
	levels := make([]byte, cols*rows)
	for i := range levels {
		levels[i] = byte(lo + rng.IntN(hi-lo+1))
	}

	buf := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := levels[(y/cell)*cols+x/cell]
			i := (y*w + x) * 3
			buf[i], buf[i+1], buf[i+2] = v, v, v
		}
	}
	return buf
}

func (c *SyntheticCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.frame = 0
	return nil
}

func (c *SyntheticCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame renders the next frame.
func (c *SyntheticCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil, ErrCameraNotOpen
	}
	n := c.frame
	c.frame++
	c.mu.Unlock()

	mat, err := gocv.NewMatFromBytes(c.cfg.Height, c.cfg.Width, gocv.MatTypeCV8UC3, c.render(n))
	if err != nil {
		return nil, err
	}
	return &mat, nil
}

// render composes frame n.
func (c *SyntheticCamera) render(n int) []byte {
	w, bs := c.cfg.Width, c.cfg.BlockSize
	buf := make([]byte, len(c.background))
	copy(buf, c.background)

	at := c.BlockAt(n)
	for y := 0; y < bs; y++ {
		dst := ((at.Y+y)*w + at.X) * 3
		src := y * bs * 3
		copy(buf[dst:dst+bs*3], c.block[src:src+bs*3])
	}
	return buf
}

// BlockAt returns the top-left corner of the block in frame n.
func (c *SyntheticCamera) BlockAt(n int) image.Point {
	return image.Pt(
		bounce(c.cfg.Start.X, c.cfg.Velocity.X, c.cfg.Width-c.cfg.BlockSize, n),
		bounce(c.cfg.Start.Y, c.cfg.Velocity.Y, c.cfg.Height-c.cfg.BlockSize, n),
	)
}

// BlockCenter returns the center of the block in frame n.
func (c *SyntheticCamera) BlockCenter(n int) image.Point {
	half := c.cfg.BlockSize / 2
	return c.BlockAt(n).Add(image.Pt(half, half))
}

// bounce returns the position after n steps of size v starting at p,
// reflecting off 0 and span.
func bounce(p, v, span, n int) int {
	if span <= 0 {
		return 0
	}
	period := 2 * span
	pos := (p + v*n) % period
	if pos < 0 {
		pos += period
	}
	if pos > span {
		pos = period - pos
	}
	return pos
}

func (c *SyntheticCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *SyntheticCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *SyntheticCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *SyntheticCamera) Size() image.Point {
	return image.Pt(c.cfg.Width, c.cfg.Height)
}

// Config returns the effective scene settings.
func (c *SyntheticCamera) Config() SyntheticConfig {
	return c.cfg
}
