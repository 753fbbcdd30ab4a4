package input

import "sync"

// Cursor accumulates pointer motion for mouse-look. Motion only counts while
// captured, and the first position after a capture change starts a new
// origin. It is safe for concurrent use: window callbacks call Move while the
// render thread reads Delta.
type Cursor struct {
	mu           sync.Mutex
	captured     bool
	have         bool
	lastX, lastY float64
	dx, dy       float64
}

// Move records an absolute pointer position.
func (c *Cursor) Move(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.have {
		c.dx += x - c.lastX
		c.dy += y - c.lastY
	}
	c.lastX, c.lastY = x, y
	c.have = true
}

// SetCaptured switches mouse-look on or off and drops pending motion.
func (c *Cursor) SetCaptured(captured bool) {
	c.mu.Lock()
	c.captured = captured
	c.have = false
	c.dx, c.dy = 0, 0
	c.mu.Unlock()
}

func (c *Cursor) Captured() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captured
}

// Delta returns and clears the motion since the last call. It is zero while
// the cursor is released.
func (c *Cursor) Delta() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dx, dy := c.dx, c.dy
	c.dx, c.dy = 0, 0
	if !c.captured {
		return 0, 0
	}
	return dx, dy
}
