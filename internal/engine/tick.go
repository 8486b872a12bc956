// Package engine provides the swarm simulation and the wall-clock loop that
// drives it.
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Default cadences for the slower callbacks, in ticks.
const (
	DefaultReportEvery = 100
	DefaultSaveEvery   = 1000
)

// Engine calls the simulation at a fixed wall-clock cadence. The simulation
// itself has no timer; the engine is the only caller of Step in a running
// process.
type Engine struct {
	Tick        uint64        // Ticks issued so far (monotonic)
	Interval    time.Duration // Base tick interval at speed 1
	MaxTicks    uint64        // Stop after this many ticks; 0 = run until Stop
	ReportEvery uint64        // Cadence of OnReport; 0 disables it
	SaveEvery   uint64        // Cadence of OnSave; 0 disables it

	// Callbacks for each cadence, populated during setup.
	OnTick   func(tick uint64) // Every tick
	OnReport func(tick uint64) // Every ReportEvery ticks
	OnSave   func(tick uint64) // Every SaveEvery ticks

	mu       sync.Mutex
	speed    float64 // Multiplier: 1.0 = nominal, 0 = paused
	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval:    50 * time.Millisecond,
		ReportEvery: DefaultReportEvery,
		SaveEvery:   DefaultSaveEvery,
		speed:       1.0,
		done:        make(chan struct{}),
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier; 0 pauses the loop.
func (e *Engine) SetSpeed(speed float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if speed < 0 {
		speed = 0
	}
	e.speed = speed
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run starts the loop. Blocks until Stop is called or MaxTicks is reached.
func (e *Engine) Run() {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed(), "max_ticks", e.MaxTicks)

	for !e.stopped() {
		if e.MaxTicks > 0 && e.Tick >= e.MaxTicks {
			break
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused; check again shortly.
			if e.sleep(100 * time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()

		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			if e.sleep(target - elapsed) {
				break
			}
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
}

// Stop halts the loop. Safe to call more than once, and before Run.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

func (e *Engine) stopped() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// sleep waits for d or until Stop; reports whether Stop interrupted it.
func (e *Engine) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-e.done:
		return true
	}
}

// step advances by one tick and fires whichever callbacks are due.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.ReportEvery > 0 && e.Tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(e.Tick)
	}
	if e.SaveEvery > 0 && e.Tick%e.SaveEvery == 0 && e.OnSave != nil {
		e.OnSave(e.Tick)
	}
}
