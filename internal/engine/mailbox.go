package engine

import "sync"

// Mailbox carries controller mutations from other goroutines (a widget
// toolkit running its own loop) to the render thread. Posted functions run
// in order during Drain.
type Mailbox struct {
	mu    sync.Mutex
	queue []func(*Controller)
}

// Post queues fn for the next Drain. Safe for concurrent use.
func (m *Mailbox) Post(fn func(*Controller)) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// Drain runs every queued function against c and reports how many ran.
// Call it from the render thread only.
func (m *Mailbox) Drain(c *Controller) int {
	m.mu.Lock()
	q := m.queue
	m.queue = nil
	m.mu.Unlock()
	for _, fn := range q {
		fn(c)
	}
	return len(q)
}
