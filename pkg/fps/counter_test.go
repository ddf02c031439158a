package fps

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances only when told to.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCounter(refresh int) (*Counter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New(refresh)
	c.nowFunc = clock.Now
	return c, clock
}

func TestCounter_RefreshesAfterCount(t *testing.T) {
	c, clock := newTestCounter(4)

	for i := 0; i < 3; i++ {
		c.BeginFrame()
		clock.Advance(10 * time.Millisecond)
		c.EndFrame()
	}
	assert.Zero(t, c.FramesPerSecond(), "rate must not be published before the refresh count")

	c.BeginFrame()
	clock.Advance(10 * time.Millisecond)
	c.EndFrame()

	assert.InDelta(t, 100.0, c.FramesPerSecond(), 1e-9)
}

func TestCounter_OnlyBusyTimeCounts(t *testing.T) {
	c, clock := newTestCounter(2)

	for i := 0; i < 2; i++ {
		c.BeginFrame()
		clock.Advance(5 * time.Millisecond)
		c.EndFrame()
		clock.Advance(time.Second) // idle between frames
	}

	assert.InDelta(t, 200.0, c.FramesPerSecond(), 1e-9)
}

func TestCounter_ZeroDurationFrames(t *testing.T) {
	c, _ := newTestCounter(3)

	for i := 0; i < 9; i++ {
		c.BeginFrame()
		c.EndFrame()
	}

	rate := c.FramesPerSecond()
	assert.False(t, math.IsNaN(rate) || math.IsInf(rate, 0), "rate = %v", rate)
	assert.Zero(t, rate)
}

func TestCounter_ClockGoingBackwards(t *testing.T) {
	c, clock := newTestCounter(1)

	c.BeginFrame()
	clock.Advance(-time.Second)
	c.EndFrame()

	assert.GreaterOrEqual(t, c.FramesPerSecond(), 0.0)
}

func TestCounter_UnmatchedEndFrame(t *testing.T) {
	c, clock := newTestCounter(1)

	clock.Advance(time.Second)
	c.EndFrame()

	assert.Zero(t, c.FramesPerSecond())
}

func TestCounter_Reset(t *testing.T) {
	c, clock := newTestCounter(1)
	c.BeginFrame()
	clock.Advance(time.Millisecond)
	c.EndFrame()
	assert.NotZero(t, c.FramesPerSecond())

	c.Reset()

	assert.Zero(t, c.FramesPerSecond())
}

func TestNew_DefaultRefresh(t *testing.T) {
	assert.Equal(t, DefaultRefreshCount, New(0).refreshCount)
	assert.Equal(t, DefaultRefreshCount, New(-3).refreshCount)
}
