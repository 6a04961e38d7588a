// Package engine provides the fixed-step simulation loop and the farm
// aggregate it drives.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TickSchedule defines when each layer runs relative to the tick counter.
const (
	TicksPerSecond    = 10
	TickDelta         = 1.0 / TicksPerSecond // sim seconds per tick
	TicksPerSimMinute = 60 * TicksPerSecond
	TicksPerSimDay    = 10 * TicksPerSimMinute // a farm day is ten sim-minutes
)

// Engine drives the simulation forward. All callbacks, and every function
// passed to Do, run under one lock: the farm only ever sees one goroutine.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Base tick interval at speed 1.0

	// Callbacks for each tick layer, populated during setup.
	OnTick   func(tick uint64, dt float64) // Every tick
	OnMinute func(tick uint64)             // Every 600 ticks
	OnDay    func(tick uint64)             // Every 6000 ticks

	mu       sync.Mutex
	speed    atomic.Uint64 // math.Float64bits
	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	e := &Engine{
		Interval: time.Second / TicksPerSecond,
		stop:     make(chan struct{}),
	}
	e.SetSpeed(1.0)
	return e
}

// Speed returns the multiplier: 1.0 = real-time, 0 = paused.
func (e *Engine) Speed() float64 { return math.Float64frombits(e.speed.Load()) }

// SetSpeed changes the multiplier. Negative values pause.
func (e *Engine) SetSpeed(v float64) {
	if v < 0 {
		v = 0
	}
	e.speed.Store(math.Float64bits(v))
}

// Running reports whether Run is active.
func (e *Engine) Running() bool { return e.running.Load() }

// CurrentTick returns the tick counter. Not for use inside Do or callbacks.
func (e *Engine) CurrentTick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Tick
}

// Do runs fn serialized with ticks.
func (e *Engine) Do(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// Run starts the simulation loop. Blocks until Stop() is called.
func (e *Engine) Run() {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.CurrentTick(), "speed", e.Speed())

	for {
		select {
		case <-e.stop:
			slog.Info("simulation engine stopped", "tick", e.CurrentTick())
			return
		default:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused, sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}
}

// Stop halts the simulation loop. It may be called more than once, from
// any goroutine.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick, TickDelta)
	}
	if e.Tick%TicksPerSimMinute == 0 && e.OnMinute != nil {
		e.OnMinute(e.Tick)
	}
	if e.Tick%TicksPerSimDay == 0 && e.OnDay != nil {
		e.OnDay(e.Tick)
	}
}

// SimTime returns a human-readable simulation time string from a tick number.
func SimTime(tick uint64) string {
	totalSeconds := tick / TicksPerSecond
	seconds := totalSeconds % 60
	minutes := (tick % TicksPerSimDay) / TicksPerSimMinute
	day := tick/TicksPerSimDay + 1
	return fmt.Sprintf("Day %d, %02d:%02d", day, minutes, seconds)
}

// SimDay returns the 1-based farm day of a tick.
func SimDay(tick uint64) uint64 { return tick/TicksPerSimDay + 1 }
