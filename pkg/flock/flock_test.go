package flock

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/pixbuf"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/simstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	pollDt  = 5 * time.Millisecond
)

var bounds = geometry.NewSize(200, 100)

func newTestFlock(t *testing.T, opts ...Option) *Flock {
	t.Helper()
	f := New(bounds, append([]Option{WithSeed(7)}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		assert.NoError(t, f.Close(ctx))
	})
	return f
}

func TestResetFlock(t *testing.T) {
	f := newTestFlock(t)
	at := geometry.NewVector(50, 25)

	require.NoError(t, f.ResetFlock(30, at))

	geese := f.Geese()
	require.Len(t, geese, 30)
	assert.Equal(t, 30, f.Size())
	for _, g := range geese {
		assert.Equal(t, at, g.Location)
		assert.LessOrEqual(t, g.Velocity.X, 1.0)
		assert.GreaterOrEqual(t, g.Velocity.X, -1.0)
		assert.LessOrEqual(t, g.Velocity.Y, 1.0)
		assert.GreaterOrEqual(t, g.Velocity.Y, -1.0)
	}

	require.NoError(t, f.ResetFlock(0, at))
	assert.Zero(t, f.Size())

	assert.ErrorIs(t, f.ResetFlock(-1, at), ErrInvalidFlockSize)
	assert.Zero(t, f.Size(), "a rejected reset leaves the flock untouched")
}

func TestSimulationTick_Deterministic(t *testing.T) {
	run := func() []geometry.Vector2D {
		f := newTestFlock(t)
		require.NoError(t, f.ResetFlock(25, bounds.Center()))
		f.SetAttractorAtIndex(geometry.NewVector(10, 10), 0)
		for range 50 {
			f.SimulationTick()
		}
		var locations []geometry.Vector2D
		for _, g := range f.Geese() {
			locations = append(locations, g.Location)
		}
		return locations
	}

	assert.Equal(t, run(), run())
}

func TestSimulationTick_KeepsGeeseInBounds(t *testing.T) {
	f := newTestFlock(t)
	require.NoError(t, f.ResetFlock(40, geometry.NewVector(199, 99)))

	for range 200 {
		f.SimulationTick()
	}
	for _, g := range f.Geese() {
		assert.True(t, bounds.Contains(g.Location), "goose escaped to %s", g.Location)
	}
}

func TestSimulationTick_CountsTicks(t *testing.T) {
	f := newTestFlock(t)
	assert.Equal(t, int32(1), f.SimulationTick())
	assert.Equal(t, int32(2), f.SimulationTick())
	assert.Equal(t, int32(2), f.TickCounter())

	f.SetTickCounter(0)
	assert.Equal(t, int32(1), f.IncrementTickCounter())
}

func TestGeese_ReturnsCopy(t *testing.T) {
	f := newTestFlock(t)
	require.NoError(t, f.ResetFlock(1, geometry.NewVector(1, 1)))

	geese := f.Geese()
	geese[0].Location = geometry.NewVector(99, 99)

	assert.Equal(t, geometry.NewVector(1, 1), f.Geese()[0].Location)
}

func TestSetAttractorAtIndex_GrowsList(t *testing.T) {
	f := newTestFlock(t)
	p := geometry.NewVector(3, 4)

	f.SetAttractorAtIndex(p, 5)

	attractors := f.Attractors()
	require.Len(t, attractors, 6)
	for i := range 5 {
		assert.Equal(t, geometry.Vector2D{}, attractors[i])
	}
	assert.Equal(t, p, attractors[5])

	f.SetAttractorAtIndex(geometry.NewVector(1, 1), 2)
	assert.Len(t, f.Attractors(), 6)
	assert.Equal(t, geometry.NewVector(1, 1), f.Attractors()[2])

	f.SetAttractorAtIndex(p, -1)
	assert.Len(t, f.Attractors(), 6)
}

func TestSetAttractorAtIndex_IgnoresNonFinite(t *testing.T) {
	f := newTestFlock(t)
	require.NoError(t, f.ResetFlock(10, geometry.NewVector(50, 50)))
	f.SetAttractorAtIndex(geometry.NewVector(10, 10), 0)

	f.SetAttractorAtIndex(geometry.NewVector(math.NaN(), 10), 0)
	f.SetAttractorAtIndex(geometry.NewVector(10, math.Inf(1)), 3)

	assert.Equal(t, []geometry.Vector2D{geometry.NewVector(10, 10)}, f.Attractors())
	for range 20 {
		f.SimulationTick()
	}
	for _, g := range f.Geese() {
		require.True(t, g.Location.IsFinite() && g.Velocity.IsFinite(), "goose %+v", g)
	}
}

func TestResize(t *testing.T) {
	f := newTestFlock(t)
	f.Resize(geometry.NewSize(20, 10))
	assert.Equal(t, geometry.NewSize(20, 10), f.Bounds())

	require.NoError(t, f.ResetFlock(10, geometry.NewVector(150, 80)))
	f.SimulationTick()
	for _, g := range f.Geese() {
		assert.True(t, f.Bounds().Contains(g.Location))
	}
}

func TestStartSimulation_StartsPaused(t *testing.T) {
	f := newTestFlock(t, WithThrottleThreshold(0))
	require.NoError(t, f.ResetFlock(5, bounds.Center()))

	f.StartSimulation()
	f.StartSimulation() // idempotent

	assert.True(t, f.IsSimulationRunning())
	assert.Equal(t, simstate.Paused, f.SimulationMode())
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.TickCounter(), "a paused simulation must not tick")
}

func TestPause_StopsTicking(t *testing.T) {
	f := newTestFlock(t, WithThrottleThreshold(0))
	require.NoError(t, f.ResetFlock(5, bounds.Center()))
	f.StartSimulation()

	f.SetSimulationMode(simstate.Running)
	require.Eventually(t, func() bool { return f.TickCounter() > 10 }, waitFor, pollDt)

	f.SetSimulationMode(simstate.Paused)
	time.Sleep(20 * time.Millisecond) // let an in-flight tick finish
	paused := f.TickCounter()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, paused, f.TickCounter())

	f.SetSimulationMode(simstate.Running)
	assert.Eventually(t, func() bool { return f.TickCounter() > paused }, waitFor, pollDt)
}

func TestRenderThrottle(t *testing.T) {
	f := newTestFlock(t, WithThrottleThreshold(3))
	require.NoError(t, f.ResetFlock(5, bounds.Center()))
	f.StartSimulation()
	f.SetSimulationMode(simstate.Running)

	require.Eventually(t, func() bool {
		return f.SimulationMode() == simstate.RenderThrottle
	}, waitFor, pollDt)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(4), f.TickCounter(), "the simulation must wait for a render")

	// no buffer attached, the render still releases the throttle
	assert.ErrorIs(t, f.Render(), ErrNoPixelBuffer)

	require.Eventually(t, func() bool {
		return f.SimulationMode() == simstate.RenderThrottle && f.TickCounter() == 4
	}, waitFor, pollDt)
}

func TestRender_DoesNotResumePausedSimulation(t *testing.T) {
	f := newTestFlock(t)
	f.StartSimulation()

	f.SetTickCounter(3)
	_ = f.Render()

	assert.Equal(t, simstate.Paused, f.SimulationMode())
	assert.Zero(t, f.TickCounter())
}

func TestStopSimulation_ReleasesBlockedWorker(t *testing.T) {
	f := newTestFlock(t)
	f.StartSimulation()
	require.True(t, f.IsSimulationRunning())
	require.Eventually(t, func() bool { return f.state.Waiting() == 1 }, waitFor, pollDt,
		"the worker parks in WaitForRunMode while paused")

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, f.StopSimulation(ctx))
	assert.False(t, f.IsSimulationRunning())

	// and it can be started again
	f.StartSimulation()
	assert.True(t, f.IsSimulationRunning())
	assert.Equal(t, simstate.Paused, f.SimulationMode())
}

func TestStopSimulation_WithoutStart(t *testing.T) {
	f := newTestFlock(t)
	assert.NoError(t, f.StopSimulation(context.Background()))
}

func TestSimulation_CrashClearsRunFlag(t *testing.T) {
	f := newTestFlock(t, WithThrottleThreshold(0))
	f.beforeTick = func() { panic("boom") }
	f.StartSimulation()

	f.SetSimulationMode(simstate.Running)

	assert.Eventually(t, func() bool { return !f.IsSimulationRunning() }, waitFor, pollDt)
}

func TestRender_Pixels(t *testing.T) {
	background := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	ink := color.RGBA{B: 255, A: 255}
	f := newTestFlock(t, WithColors(background, ink))
	f.Resize(geometry.NewSize(100, 50))
	require.NoError(t, f.ResetFlock(1, geometry.NewVector(50, 25)))

	buf := pixbuf.New(10, 5)
	require.NoError(t, f.SetPixelBuffer(buf))
	assert.Equal(t, 2, buf.Refs())

	require.NoError(t, f.Render())

	require.NoError(t, buf.WithPixels(func(img *image.RGBA) error {
		assert.Equal(t, ink, img.RGBAAt(5, 2), "location is scaled to the buffer")
		assert.Equal(t, background, img.RGBAAt(0, 0))
		return nil
	}))
	buf.Release()
}

func TestRender_Sprite(t *testing.T) {
	f := newTestFlock(t)
	require.NoError(t, f.ResetFlock(1, bounds.Center()))
	buf := pixbuf.New(int(bounds.Width), int(bounds.Height))
	require.NoError(t, f.SetPixelBuffer(buf))
	buf.Release()

	assert.False(t, f.HasGooseSprite())
	f.SetGooseSprite(GooseSprite())
	assert.True(t, f.HasGooseSprite())
	require.NoError(t, f.Render())

	drawn := 0
	require.NoError(t, buf.WithPixels(func(img *image.RGBA) error {
		for y := 40; y < 60; y++ {
			for x := 90; x < 110; x++ {
				if img.RGBAAt(x, y) != f.background {
					drawn++
				}
			}
		}
		return nil
	}))
	assert.Greater(t, drawn, 1, "the sprite covers more than one pixel")
}

func TestSetPixelBuffer_ReleasesPrevious(t *testing.T) {
	f := newTestFlock(t)
	first := pixbuf.New(2, 2)
	second := pixbuf.New(2, 2)

	require.NoError(t, f.SetPixelBuffer(first))
	require.NoError(t, f.SetPixelBuffer(second))
	assert.Equal(t, 1, first.Refs())
	assert.Equal(t, 2, second.Refs())

	first.Release()
	assert.ErrorIs(t, f.SetPixelBuffer(first), pixbuf.ErrReleased)

	require.NoError(t, f.SetPixelBuffer(nil))
	assert.Equal(t, 1, second.Refs())
	second.Release()
}

func TestClose_ReleasesBuffer(t *testing.T) {
	f := New(bounds)
	buf := pixbuf.New(2, 2)
	require.NoError(t, f.SetPixelBuffer(buf))
	f.StartSimulation()

	require.NoError(t, f.Close(context.Background()))
	assert.Equal(t, 1, buf.Refs())
	assert.False(t, f.IsSimulationRunning())
}

func TestRender_ConcurrentWithSimulation(t *testing.T) {
	f := newTestFlock(t, WithThrottleThreshold(0))
	require.NoError(t, f.ResetFlock(50, bounds.Center()))
	buf := pixbuf.New(int(bounds.Width), int(bounds.Height))
	require.NoError(t, f.SetPixelBuffer(buf))
	buf.Release()
	f.StartSimulation()
	f.SetSimulationMode(simstate.Running)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				assert.NoError(t, f.Render())
				f.SetAttractorAtIndex(geometry.NewVector(float64(i), 10), i%3)
				for _, g := range f.Geese() {
					assert.True(t, bounds.Contains(g.Location))
				}
			}
		}()
	}
	wg.Wait()

	assert.True(t, f.IsSimulationRunning())
	assert.Equal(t, 50, f.Size())
}

func TestRates(t *testing.T) {
	f := newTestFlock(t)
	require.NoError(t, f.ResetFlock(10, bounds.Center()))
	for range 200 {
		f.SimulationTick()
	}
	assert.Greater(t, f.FrameRate(), 0.0)
	assert.Zero(t, f.RenderRate())
}
