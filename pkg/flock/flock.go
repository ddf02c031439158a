// Package flock runs a flock of geese on a dedicated simulation goroutine
// and renders the latest positions into a shared pixel buffer on demand.
//
// The simulation goroutine and the renderer run at independent rates. They
// meet in three places only:
//   - the published flock snapshot, swapped atomically after each tick and
//     never mutated afterwards, so a render always sees whole ticks;
//   - the simstate.Machine, which pauses the simulation and throttles it
//     when it runs too far ahead of the renderer;
//   - the pixel lock of the shared pixbuf.Buffer.
package flock

import (
	"context"
	"errors"
	"image/color"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/fps"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/goose"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/pixbuf"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/simstate"
	golog "github.com/tochemey/goakt/v3/log"
)

// DefaultThrottleThreshold is the number of unrendered ticks after which
// the simulation waits for a render.
const DefaultThrottleThreshold = 4

var (
	// ErrInvalidFlockSize is returned by ResetFlock for a negative size.
	ErrInvalidFlockSize = errors.New("flock: size must not be negative")
	// ErrNoPixelBuffer is returned by Render when no buffer is attached.
	ErrNoPixelBuffer = errors.New("flock: no pixel buffer attached")
)

// Flock owns the geese, the attractors and the simulation goroutine.
type Flock struct {
	logger            golog.Logger
	throttleThreshold int32
	background        color.RGBA
	ink               color.RGBA

	state *simstate.Machine

	lifeMu sync.Mutex
	done   chan struct{} // closed when the current simulation goroutine exits

	// simMu serializes ticks with resets and parameter changes.
	simMu  sync.Mutex
	geese  atomic.Pointer[[]goose.Goose]
	params goose.Params
	rng    *rand.Rand

	// worldMu guards bounds and attractors. The attractor slice is
	// replaced on every change, so a tick can keep reading its copy.
	worldMu    sync.Mutex
	bounds     geometry.Size
	attractors []geometry.Vector2D

	ticks  *fps.Counter
	frames *fps.Counter

	// pixMu guards the buffer and sprite handles, not the pixels.
	pixMu       sync.Mutex
	pixelBuffer *pixbuf.Buffer
	sprite      *pixbuf.Sprite

	beforeTick func() // test hook
}

// Option configures a Flock.
type Option func(*Flock)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger golog.Logger) Option {
	return func(f *Flock) { f.logger = logger }
}

// WithSeed makes the random initial velocities reproducible.
func WithSeed(seed uint64) Option {
	return func(f *Flock) { f.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithParams sets the steering rules.
func WithParams(p goose.Params) Option {
	return func(f *Flock) { f.params = p }
}

// WithThrottleThreshold sets how many ticks may run between two renders.
// A threshold <= 0 never throttles.
func WithThrottleThreshold(n int) Option {
	return func(f *Flock) { f.throttleThreshold = int32(n) }
}

// WithColors sets the background and the colour of geese drawn without a sprite.
func WithColors(background, ink color.RGBA) Option {
	return func(f *Flock) {
		f.background = background
		f.ink = ink
	}
}

// New creates an empty flock. The simulation goroutine is not started.
func New(bounds geometry.Size, opts ...Option) *Flock {
	f := &Flock{
		logger:            golog.DiscardLogger,
		throttleThreshold: DefaultThrottleThreshold,
		background:        color.RGBA{R: 255, G: 255, B: 255, A: 255},
		ink:               color.RGBA{A: 255},
		state:             simstate.New(),
		params:            goose.DefaultParams(),
		bounds:            bounds,
		ticks:             fps.New(fps.DefaultRefreshCount),
		frames:            fps.New(fps.DefaultRefreshCount / 10),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		WithSeed(rand.Uint64())(f)
	}
	empty := []goose.Goose{}
	f.geese.Store(&empty)
	return f
}

// ============================================================================
// Lifecycle
// ============================================================================

// StartSimulation starts the simulation goroutine in Paused mode. Calling it
// while the goroutine is running has no effect.
func (f *Flock) StartSimulation() {
	f.lifeMu.Lock()
	defer f.lifeMu.Unlock()

	if f.done != nil {
		select {
		case <-f.done:
		default:
			if f.state.IsRunning() {
				return
			}
			// a stop is in progress, let the old goroutine finish
			<-f.done
		}
	}

	f.state.SetMode(simstate.Paused)
	f.state.SetRunning(true)
	done := make(chan struct{})
	f.done = done
	go f.simulate(done)
}

// StopSimulation clears the run flag, which wakes a waiting simulation
// goroutine, and waits for the goroutine to exit or ctx to end.
func (f *Flock) StopSimulation(ctx context.Context) error {
	f.lifeMu.Lock()
	done := f.done
	f.lifeMu.Unlock()

	f.state.SetRunning(false)
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the simulation and releases the pixel buffer and the sprite.
func (f *Flock) Close(ctx context.Context) error {
	err := f.StopSimulation(ctx)

	f.pixMu.Lock()
	defer f.pixMu.Unlock()
	if f.pixelBuffer != nil {
		f.pixelBuffer.Release()
		f.pixelBuffer = nil
	}
	f.sprite.Release()
	f.sprite = nil
	return err
}

// simulate is the body of the simulation goroutine.
func (f *Flock) simulate(done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			f.logger.Errorf("flock simulation crashed: %v", r)
		}
		f.state.SetRunning(false)
	}()

	f.logger.Info("flock simulation started")
	for f.state.IsRunning() {
		mode := f.WaitForRunMode()
		if !f.state.IsRunning() {
			break
		}
		if mode == simstate.RenderThrottle {
			// no work until the consumer renders
			f.state.WaitWhileThrottled()
			continue
		}

		ticks := f.SimulationTick()
		if f.throttleThreshold > 0 && ticks > f.throttleThreshold {
			// never overrides a pause requested meanwhile
			f.state.CompareAndSetMode(simstate.Running, simstate.RenderThrottle)
		}
	}
	f.logger.Info("flock simulation stopped")
}

// ============================================================================
// Simulation
// ============================================================================

// Resize sets the bounds the geese wrap around. The new bounds are used
// from the next tick on.
func (f *Flock) Resize(bounds geometry.Size) {
	f.worldMu.Lock()
	f.bounds = bounds
	f.worldMu.Unlock()
	f.logger.Debugf("flock resized to %s", bounds)
}

// Bounds returns the current bounds.
func (f *Flock) Bounds() geometry.Size {
	f.worldMu.Lock()
	defer f.worldMu.Unlock()
	return f.bounds
}

// ResetFlock replaces every goose with count new geese standing at
// location with random velocities in [-1, 1] on each axis.
func (f *Flock) ResetFlock(count int, location geometry.Vector2D) error {
	if count < 0 {
		return ErrInvalidFlockSize
	}

	f.simMu.Lock()
	geese := make([]goose.Goose, count)
	for i := range geese {
		velocity := geometry.Vector2D{
			X: f.rng.Float64()*2 - 1,
			Y: f.rng.Float64()*2 - 1,
		}
		geese[i] = goose.New(location, velocity)
	}
	f.geese.Store(&geese)
	f.simMu.Unlock()

	f.logger.Debugf("flock reset: %d geese at %s", count, location)
	return nil
}

// SimulationTick advances every goose by one step and returns the number
// of ticks since the last render. It is called by the simulation goroutine.
func (f *Flock) SimulationTick() int32 {
	f.ticks.BeginFrame()
	f.step()
	f.ticks.EndFrame()
	return f.state.IncrementTickCounter()
}

// step computes the next generation from the published one, so every
// goose of a tick sees the same neighbours whatever the iteration order.
func (f *Flock) step() {
	f.simMu.Lock()
	defer f.simMu.Unlock()
	if f.beforeTick != nil {
		f.beforeTick()
	}

	bounds, attractors := f.world()
	current := *f.geese.Load()
	next := make([]goose.Goose, len(current))
	for i, g := range current {
		next[i] = g.Update(current, i, attractors, bounds, f.params)
	}
	f.geese.Store(&next)
}

func (f *Flock) world() (geometry.Size, []geometry.Vector2D) {
	f.worldMu.Lock()
	defer f.worldMu.Unlock()
	return f.bounds, f.attractors
}

// SetParams replaces the steering rules from the next tick on.
func (f *Flock) SetParams(p goose.Params) {
	f.simMu.Lock()
	f.params = p
	f.simMu.Unlock()
}

// Params returns the steering rules.
func (f *Flock) Params() goose.Params {
	f.simMu.Lock()
	defer f.simMu.Unlock()
	return f.params
}

// Geese returns a copy of the geese as of the last completed tick.
func (f *Flock) Geese() []goose.Goose {
	current := *f.geese.Load()
	out := make([]goose.Goose, len(current))
	copy(out, current)
	return out
}

// Size returns the number of geese.
func (f *Flock) Size() int {
	return len(*f.geese.Load())
}

// SetAttractorAtIndex stores location at index, growing the attractor list
// with zero vectors when needed. Negative indexes and non-finite locations
// are ignored.
func (f *Flock) SetAttractorAtIndex(location geometry.Vector2D, index int) {
	if index < 0 {
		f.logger.Warnf("ignoring attractor at negative index %d", index)
		return
	}
	if !location.IsFinite() {
		f.logger.Warnf("ignoring attractor %d at %s", index, location)
		return
	}
	f.worldMu.Lock()
	defer f.worldMu.Unlock()

	if index < len(f.attractors) && f.attractors[index].Eq(location) {
		return
	}

	next := make([]geometry.Vector2D, max(len(f.attractors), index+1))
	copy(next, f.attractors)
	next[index] = location
	f.attractors = next
}

// Attractors returns a copy of the attractor list.
func (f *Flock) Attractors() []geometry.Vector2D {
	f.worldMu.Lock()
	defer f.worldMu.Unlock()
	out := make([]geometry.Vector2D, len(f.attractors))
	copy(out, f.attractors)
	return out
}

// ============================================================================
// Mode, run flag and counters
// ============================================================================

// WaitForRunMode blocks while the simulation is paused and returns the
// mode that ended the wait.
func (f *Flock) WaitForRunMode() simstate.Mode {
	return f.state.WaitWhilePaused()
}

// SimulationMode returns the current mode.
func (f *Flock) SimulationMode() simstate.Mode {
	return f.state.Mode()
}

// SetSimulationMode switches the mode and wakes the simulation goroutine.
func (f *Flock) SetSimulationMode(mode simstate.Mode) {
	f.state.SetMode(mode)
}

// IsSimulationRunning reports whether the simulation goroutine is alive
// and looping. It turns false after a stop or a crash.
func (f *Flock) IsSimulationRunning() bool {
	return f.state.IsRunning()
}

// SetIsSimulationRunning sets the run flag. Clearing it makes the
// simulation goroutine exit within one wait or tick.
func (f *Flock) SetIsSimulationRunning(running bool) {
	f.state.SetRunning(running)
}

// TickCounter returns the number of ticks since the last render.
func (f *Flock) TickCounter() int32 {
	return f.state.TickCounter()
}

// SetTickCounter overwrites the tick counter.
func (f *Flock) SetTickCounter(count int32) {
	f.state.SetTickCounter(count)
}

// IncrementTickCounter adds one to the tick counter and returns it.
func (f *Flock) IncrementTickCounter() int32 {
	return f.state.IncrementTickCounter()
}

// FrameRate returns the simulation rate in ticks per second.
func (f *Flock) FrameRate() float64 {
	return f.ticks.FramesPerSecond()
}

// RenderRate returns the render rate in frames per second.
func (f *Flock) RenderRate() float64 {
	return f.frames.FramesPerSecond()
}
