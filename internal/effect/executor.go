// Package effect turns effect codes into canvas mutations, running timed
// effects on a dedicated goroutine.
package effect

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/crowd-canvas/internal/canvas"
	xglog "github.com/omochice/crowd-canvas/internal/log"
	"github.com/omochice/crowd-canvas/internal/metrics"
)

var (
	// ErrUnknownEffect is returned for codes missing from the catalog.
	ErrUnknownEffect = errors.New("unknown effect code")
	// ErrBusy is returned when a timed effect is requested while another is active.
	ErrBusy = errors.New("a timed effect is already running")
)

// Handle refers to a started timed effect.
type Handle struct {
	Code   string
	runner *Runner
}

// Done is closed when the effect completes or is cancelled.
func (h *Handle) Done() <-chan struct{} {
	return h.runner.Done()
}

// Result is valid once Done is closed.
func (h *Handle) Result() Result {
	return h.runner.Result()
}

// Stop requests cooperative cancellation.
func (h *Handle) Stop() {
	h.runner.Stop()
}

// Executor owns the canvas and the single timed-effect slot.
// All canvas access, from the read path and from ticks alike, goes through mu.
type Executor struct {
	catalog *Catalog
	canvas  canvas.Canvas
	logger  zerolog.Logger

	mu     sync.Mutex // guards canvas
	slotMu sync.Mutex // guards active
	active *Handle
}

// NewExecutor binds a catalog to a canvas.
func NewExecutor(catalog *Catalog, c canvas.Canvas) *Executor {
	return &Executor{
		catalog: catalog,
		canvas:  c,
		logger:  xglog.WithComponent("effect"),
	}
}

// Catalog returns the effect definitions served by this executor.
func (e *Executor) Catalog() *Catalog {
	return e.catalog
}

// Trigger runs the effect registered for code. Instant effects are applied before
// Trigger returns and yield a nil handle. Timed effects start a Runner and return
// its handle, or ErrBusy while another timed effect is active.
func (e *Executor) Trigger(ctx context.Context, code string) (*Handle, error) {
	def, ok := e.catalog.Lookup(code)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, code)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !def.Timed() {
		if err := e.apply(def); err != nil {
			return nil, err
		}
		e.logger.Debug().Str(xglog.FieldEffectCode, code).Msg("instant effect applied")
		return nil, nil
	}

	return e.startTimed(def)
}

func (e *Executor) startTimed(def Definition) (*Handle, error) {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()

	if e.active != nil {
		select {
		case <-e.active.Done():
		default:
			return nil, fmt.Errorf("%w: %q", ErrBusy, e.active.Code)
		}
	}

	code := def.Code
	r := NewRunner(def.Ticks, def.Interval, func(int) {
		if err := e.apply(def); err != nil {
			e.logger.Warn().Err(err).Str(xglog.FieldEffectCode, code).Msg("tick failed")
			return
		}
		metrics.IncTimedEffectTick(code)
	})
	h := &Handle{Code: code, runner: r}
	if err := r.Start(); err != nil {
		return nil, err
	}
	e.active = h

	go e.release(h)

	e.logger.Info().
		Str(xglog.FieldEvent, "effect.timed_started").
		Str(xglog.FieldEffectCode, code).
		Int("ticks", def.Ticks).
		Dur("interval", def.Interval).
		Msg("timed effect started")
	return h, nil
}

// release clears the slot once h has finished.
func (e *Executor) release(h *Handle) {
	<-h.Done()
	res := h.Result()

	e.slotMu.Lock()
	if e.active == h {
		e.active = nil
	}
	e.slotMu.Unlock()

	e.logger.Info().
		Str(xglog.FieldEvent, "effect.timed_finished").
		Str(xglog.FieldEffectCode, h.Code).
		Int("ticks", res.Ticks).
		Bool("cancelled", res.Cancelled).
		Msg("timed effect finished")
}

// Active returns the code of the running timed effect, if any.
func (e *Executor) Active() (string, bool) {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()
	if e.active == nil {
		return "", false
	}
	select {
	case <-e.active.Done():
		return "", false
	default:
		return e.active.Code, true
	}
}

// Stop cancels the active timed effect and waits until its loop has exited,
// so no tick touches the canvas after Stop returns.
func (e *Executor) Stop(ctx context.Context) error {
	e.slotMu.Lock()
	h := e.active
	e.slotMu.Unlock()

	if h == nil {
		return nil
	}
	h.Stop()
	if _, err := h.runner.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for %q to stop: %w", h.Code, err)
	}
	return nil
}

func (e *Executor) apply(def Definition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch def.Action {
	case ActionRotate:
		e.canvas.SetRotation(e.canvas.Rotation() + def.Degrees)
	case ActionMirror:
		e.canvas.SetMirror(!e.canvas.Mirror())
	case ActionPreset:
		if err := e.canvas.SelectBrushPreset(def.Preset); err != nil {
			return fmt.Errorf("effect %q: %w", def.Code, err)
		}
	default:
		return fmt.Errorf("effect %q: unknown action %q", def.Code, def.Action)
	}
	return nil
}
