// Package fps measures how fast a loop runs.
package fps

import (
	"sync"
	"time"
)

// DefaultRefreshCount is the number of frames averaged before the
// reported rate is refreshed.
const DefaultRefreshCount = 100

// Counter computes frames per second from the time spent between
// BeginFrame and EndFrame. The rate is refreshed every refreshCount frames
// so a single slow frame does not make the reading jump.
// It is safe for concurrent use.
type Counter struct {
	mu           sync.Mutex
	nowFunc      func() time.Time // injectable clock for testing
	refreshCount int

	frameStart time.Time
	inFrame    bool
	frames     int
	busy       time.Duration
	rate       float64
}

// New creates a Counter that refreshes its rate every refreshCount frames.
// A refreshCount <= 0 selects DefaultRefreshCount.
func New(refreshCount int) *Counter {
	if refreshCount <= 0 {
		refreshCount = DefaultRefreshCount
	}
	return &Counter{
		nowFunc:      time.Now,
		refreshCount: refreshCount,
	}
}

// BeginFrame marks the start of a frame.
func (c *Counter) BeginFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameStart = c.nowFunc()
	c.inFrame = true
}

// EndFrame marks the end of the frame started by BeginFrame. Calls without
// a matching BeginFrame are ignored.
func (c *Counter) EndFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inFrame {
		return
	}
	c.inFrame = false

	d := c.nowFunc().Sub(c.frameStart)
	if d < 0 {
		// the wall clock stepped backwards
		d = 0
	}
	c.busy += d
	c.frames++

	if c.frames < c.refreshCount {
		return
	}
	if c.busy > 0 {
		c.rate = float64(c.frames) / c.busy.Seconds()
	}
	c.frames = 0
	c.busy = 0
}

// FramesPerSecond returns the last computed rate, or 0 before the first
// refresh. It never returns a negative value.
func (c *Counter) FramesPerSecond() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Reset forgets every measurement.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFrame = false
	c.frames = 0
	c.busy = 0
	c.rate = 0
}
