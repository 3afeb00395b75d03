// Package watcher polls the wallet UI for wallet-initiated prompts and turns
// them into glue events.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/glue"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/lock"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/logger"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/session"
)

// DefaultInterval is the delay between polling cycles.
const DefaultInterval = 500 * time.Millisecond

// Pending is an emitted event still awaiting its resolving action.
type Pending struct {
	ID    glue.CorrelationID
	Event glue.Event
}

// Gate holds at most one pending event. It is safe for concurrent use: the
// watcher reads it outside the session lock.
type Gate struct {
	p atomic.Pointer[Pending]
}

// Outstanding reports whether an event is awaiting resolution.
func (g *Gate) Outstanding() bool {
	return g.p.Load() != nil
}

// Current returns the pending event, if any.
func (g *Gate) Current() (Pending, bool) {
	p := g.p.Load()
	if p == nil {
		return Pending{}, false
	}
	return *p, true
}

// Set records p as the pending event.
func (g *Gate) Set(p Pending) {
	g.p.Store(&p)
}

// Resolve clears the pending event if its identifier is id.
func (g *Gate) Resolve(id glue.CorrelationID) bool {
	for {
		cur := g.p.Load()
		if cur == nil || cur.ID != id {
			return false
		}
		if g.p.CompareAndSwap(cur, nil) {
			return true
		}
	}
}

// NextID hands out the correlation id for the event of the current cycle.
// Repeated calls within a cycle return the same id.
type NextID func() glue.CorrelationID

// Detector recognises one kind of wallet prompt. Detect returns nil when the
// prompt is not on screen; otherwise the event to emit, tagged with next().
type Detector struct {
	Name   string
	Detect func(ctx context.Context, s *session.Session, next NextID) (glue.Event, error)
}

// Config wires a Watcher.
type Config struct {
	Interval time.Duration
	Lock     *lock.Lock[*session.Session]
	Gate     *Gate
	// Probe runs without the lock and reports whether the wallet is in the
	// foreground. Errors skip the cycle.
	Probe func(s *session.Session) (bool, error)
	// Prelude runs under the lock before detection.
	Prelude   func(ctx context.Context, s *session.Session) error
	Detectors []Detector
	Emitter   glue.Emitter
	// NewID generates correlation ids. Defaults to glue.NewCorrelationID.
	NewID func() glue.CorrelationID
}

// Watcher is the background polling loop.
type Watcher struct {
	cfg     Config
	running atomic.Bool
	stop    chan struct{}
	once    sync.Once
	done    chan struct{}
}

// New creates a watcher in the running state. Call Run to start polling.
func New(cfg Config) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Gate == nil {
		cfg.Gate = &Gate{}
	}
	if cfg.NewID == nil {
		cfg.NewID = glue.NewCorrelationID
	}
	w := &Watcher{
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	w.running.Store(true)
	return w
}

// Gate returns the pending-event slot shared with action handlers.
func (w *Watcher) Gate() *Gate {
	return w.cfg.Gate
}

// Running reports whether Stop has not been called yet.
func (w *Watcher) Running() bool {
	return w.running.Load()
}

// Stop ends the loop after the current cycle.
func (w *Watcher) Stop() {
	w.running.Store(false)
	w.once.Do(func() { close(w.stop) })
}

// Done is closed when Run returns.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Run polls until Stop is called or ctx is cancelled. Cycle errors are
// logged and never end the loop.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	logger.Debug("Watcher started (interval %s)", w.cfg.Interval)

	timer := time.NewTimer(w.cfg.Interval)
	defer timer.Stop()

	for w.running.Load() {
		select {
		case <-ctx.Done():
			logger.Debug("Watcher cancelled: %v", ctx.Err())
			return
		case <-w.stop:
		case <-timer.C:
		}
		if !w.running.Load() {
			break
		}
		if err := w.cycle(ctx); err != nil {
			logger.Warn("Watcher cycle failed: %v", err)
		}
		timer.Reset(w.cfg.Interval)
	}
	logger.Debug("Watcher stopped")
}

func (w *Watcher) cycle(ctx context.Context) error {
	if p, ok := w.cfg.Gate.Current(); ok {
		logger.Debug("Event %s still pending, skipping", p.ID)
		return nil
	}

	if w.cfg.Probe != nil {
		foreground, err := w.cfg.Probe(w.cfg.Lock.Unsafe())
		if err != nil {
			logger.Debug("Foreground probe failed: %v", err)
			return nil
		}
		if !foreground {
			return nil
		}
	}

	return w.cfg.Lock.Run(ctx, func(s *session.Session) error {
		if !w.running.Load() || s.Closed() {
			return nil
		}
		if w.cfg.Prelude != nil {
			if err := w.cfg.Prelude(ctx, s); err != nil {
				return fmt.Errorf("prelude: %w", err)
			}
		}

		var drawn glue.CorrelationID
		next := func() glue.CorrelationID {
			if drawn == "" {
				drawn = w.cfg.NewID()
			}
			return drawn
		}
		for _, d := range w.cfg.Detectors {
			ev, err := d.Detect(ctx, s, next)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, err)
			}
			if ev == nil {
				continue
			}
			id := ev.Correlation()
			logger.Info("Detected %s, emitting %s", d.Name, id)
			w.cfg.Gate.Set(Pending{ID: id, Event: ev})
			if err := w.cfg.Emitter.Emit(ev); err != nil {
				w.cfg.Gate.Resolve(id)
				return fmt.Errorf("emit %s: %w", ev.Name(), err)
			}
			return nil
		}
		return nil
	})
}
