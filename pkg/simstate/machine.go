// Package simstate holds the mode and run flag shared by the simulation
// goroutine and its driver, together with the blocking waits the
// simulation goroutine uses instead of polling.
package simstate

import (
	"sync"
	"sync/atomic"
)

// Mode is the simulation mode. Exactly one mode is active at a time.
type Mode int32

const (
	// Running means the simulation goroutine runs ticks.
	Running Mode = iota
	// RenderThrottle means the simulation waits for the consumer to render.
	RenderThrottle
	// Paused means the simulation does no work at all.
	Paused
)

func (m Mode) String() string {
	switch m {
	case Running:
		return "running"
	case RenderThrottle:
		return "render-throttle"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Modes lists every mode, in declaration order.
func Modes() []Mode {
	return []Mode{Running, RenderThrottle, Paused}
}

// Machine stores the mode, the run flag and the tick counter behind one
// mutex. The condition variable attached to that mutex is signalled on
// every change, and waiters re-check their predicate after each wake.
type Machine struct {
	mu   sync.Mutex
	cond *sync.Cond

	// mode and running are written with mu held; the atomics let the
	// accessors read them without blocking.
	mode    atomic.Int32
	running atomic.Bool

	ticks   int32 // guarded by mu
	waiting int   // goroutines parked in a wait, guarded by mu
}

// New returns a stopped Machine in Paused mode.
func New() *Machine {
	m := &Machine{}
	m.cond = sync.NewCond(&m.mu)
	m.mode.Store(int32(Paused))
	return m
}

// Mode returns the last mode set. It never blocks.
func (m *Machine) Mode() Mode {
	return Mode(m.mode.Load())
}

// SetMode stores mode and wakes the blocked simulation goroutine.
func (m *Machine) SetMode(mode Mode) {
	m.mu.Lock()
	m.mode.Store(int32(mode))
	m.mu.Unlock()
	m.cond.Signal()
}

// CompareAndSetMode switches to next only if the current mode is old.
// It reports whether the switch happened.
func (m *Machine) CompareAndSetMode(old, next Mode) bool {
	m.mu.Lock()
	if Mode(m.mode.Load()) != old {
		m.mu.Unlock()
		return false
	}
	m.mode.Store(int32(next))
	m.mu.Unlock()
	m.cond.Signal()
	return true
}

// WaitWhilePaused blocks until the mode is not Paused or the run flag is
// cleared, then returns the current mode.
func (m *Machine) WaitWhilePaused() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	for Mode(m.mode.Load()) == Paused && m.running.Load() {
		m.park()
	}
	return Mode(m.mode.Load())
}

// WaitWhileThrottled blocks until the mode is not RenderThrottle or the
// run flag is cleared, then returns the current mode.
func (m *Machine) WaitWhileThrottled() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	for Mode(m.mode.Load()) == RenderThrottle && m.running.Load() {
		m.park()
	}
	return Mode(m.mode.Load())
}

// park waits on the condition variable. mu must be held.
func (m *Machine) park() {
	m.waiting++
	m.cond.Wait()
	m.waiting--
}

// Waiting returns the number of goroutines blocked in WaitWhilePaused or
// WaitWhileThrottled.
func (m *Machine) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

// IsRunning reports whether the simulation goroutine should keep looping.
func (m *Machine) IsRunning() bool {
	return m.running.Load()
}

// SetRunning sets the run flag and wakes every waiter, so clearing it
// releases a goroutine blocked in WaitWhilePaused or WaitWhileThrottled.
func (m *Machine) SetRunning(running bool) {
	m.mu.Lock()
	m.running.Store(running)
	m.mu.Unlock()
	m.cond.Broadcast()
}

// TickCounter returns the number of ticks since the last render.
func (m *Machine) TickCounter() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks
}

// SetTickCounter overwrites the tick counter.
func (m *Machine) SetTickCounter(count int32) {
	m.mu.Lock()
	m.ticks = count
	m.mu.Unlock()
}

// IncrementTickCounter adds one tick and returns the new count.
func (m *Machine) IncrementTickCounter() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
	return m.ticks
}

// ConsumeTicks is called by the consumer after a render: it resets the
// tick counter and, if the simulation was throttled, lets it run again.
// It returns the number of ticks the render consumed.
func (m *Machine) ConsumeTicks() int32 {
	m.mu.Lock()
	consumed := m.ticks
	m.ticks = 0
	released := false
	if Mode(m.mode.Load()) == RenderThrottle {
		m.mode.Store(int32(Running))
		released = true
	}
	m.mu.Unlock()
	if released {
		m.cond.Signal()
	}
	return consumed
}
