package calc

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source returns the snapshot a recompute runs against. It is called when the
// debounce timer fires, not when the trigger happens.
type Source func() Input

// Engine recomputes results reactively. Every Trigger moves the status to
// fetching and (re)schedules a recompute; only the latest scheduled run may
// publish its result.
type Engine struct {
	delay  time.Duration
	source Source

	mu        sync.Mutex
	timer     *time.Timer
	seq       uint64
	result    Result
	listeners []func(Result)
	stopped   bool
}

// NewEngine creates an engine with the given debounce delay.
func NewEngine(delay time.Duration, source Source) *Engine {
	return &Engine{
		delay:  delay,
		source: source,
		result: Result{Status: StatusNone},
	}
}

// OnResult registers fn to receive every published result, including the
// fetching placeholder.
func (e *Engine) OnResult(fn func(Result)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// Result returns the latest result.
func (e *Engine) Result() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Trigger schedules a recompute after the debounce delay.
func (e *Engine) Trigger() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.seq++
	seq := e.seq
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.delay, func() { e.run(seq) })
	placeholder := Result{Status: StatusFetching}
	changed := e.result.Status != StatusFetching
	e.result = placeholder
	listeners := e.listeners
	e.mu.Unlock()

	if changed {
		notify(listeners, placeholder)
	}
}

// Flush cancels any pending run and recomputes immediately.
func (e *Engine) Flush() Result {
	e.mu.Lock()
	e.seq++
	seq := e.seq
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()

	e.run(seq)
	return e.Result()
}

// Stop cancels any pending run. Later triggers are ignored.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	e.seq++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) run(seq uint64) {
	r := Calculate(e.source())

	e.mu.Lock()
	if seq != e.seq {
		e.mu.Unlock()
		zap.L().Debug("calc: discarding superseded result", zap.Uint64("seq", seq))
		return
	}
	e.result = r
	listeners := e.listeners
	e.mu.Unlock()

	if r.Status == StatusFailure {
		zap.L().Warn("calc: calculation failed",
			zap.String("scenario", r.ScenarioID),
			zap.String("error", r.Error),
		)
	}
	notify(listeners, r)
}

func notify(listeners []func(Result), r Result) {
	for _, fn := range listeners {
		fn(r)
	}
}
