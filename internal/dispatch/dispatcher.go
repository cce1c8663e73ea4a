// Package dispatch maps decoded controller requests to effect executions and replies.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/crowd-canvas/internal/effect"
	xglog "github.com/omochice/crowd-canvas/internal/log"
	"github.com/omochice/crowd-canvas/internal/metrics"
	"github.com/omochice/crowd-canvas/pkg/protocol"
)

// Executor runs effects by code. *effect.Executor satisfies it.
type Executor interface {
	Trigger(ctx context.Context, code string) (*effect.Handle, error)
	Stop(ctx context.Context) error
}

// SendFunc writes an unsolicited response to the controller.
type SendFunc func(protocol.Response) error

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFinishedReports sends EffectStatus/Finished for the originating request
// when a timed effect runs to completion. Cancelled effects are not reported.
func WithFinishedReports(send SendFunc) Option {
	return func(d *Dispatcher) {
		d.send = send
	}
}

// WithStopTimeout bounds how long Close waits for a timed effect to exit.
func WithStopTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.stopTimeout = timeout
	}
}

// Dispatcher turns requests into at most one immediate response.
type Dispatcher struct {
	exec        Executor
	send        SendFunc
	stopTimeout time.Duration
	logger      zerolog.Logger

	mu       sync.RWMutex // held for reading while an effect is started
	closed   atomic.Bool
	watchers sync.WaitGroup
}

// New creates a Dispatcher backed by exec.
func New(exec Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		exec:        exec,
		stopTimeout: 5 * time.Second,
		logger:      xglog.WithComponent("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle returns the immediate reply for req, or nil when the request needs none.
// It never blocks on a running timed effect.
func (d *Dispatcher) Handle(ctx context.Context, req protocol.Request) *protocol.Response {
	logger := d.logger.With().
		Int64(xglog.FieldRequestID, req.ID).
		Str(xglog.FieldRequestType, req.Type.String()).
		Logger()

	switch req.Type {
	case protocol.RequestTypeEffectStart:
		resp := d.startEffect(ctx, logger, req)
		return &resp

	case protocol.RequestTypeGameUpdate:
		resp := protocol.NewGameUpdate(req.ID, protocol.GameStateReady)
		return &resp

	case protocol.RequestTypeEffectStop,
		protocol.RequestTypeEffectTest,
		protocol.RequestTypeGenericEvent,
		protocol.RequestTypeDataRequest,
		protocol.RequestTypeRpcResponse,
		protocol.RequestTypePlayerInfo,
		protocol.RequestTypeLogin,
		protocol.RequestTypeKeepAlive:
		logger.Debug().Str(xglog.FieldEffectCode, req.Code).Msg("request observed, no reply")
		return nil

	default:
		logger.Debug().Msg("ignoring unknown request type")
		return nil
	}
}

func (d *Dispatcher) startEffect(ctx context.Context, logger zerolog.Logger, req protocol.Request) protocol.Response {
	d.mu.RLock()
	defer d.mu.RUnlock()

	logger = logger.With().
		Str(xglog.FieldEffectCode, req.Code).
		Str(xglog.FieldViewer, viewer(req)).
		Logger()

	status := protocol.StatusSuccess
	var handle *effect.Handle

	if d.closed.Load() {
		status = protocol.StatusRetry
	} else {
		var err error
		handle, err = d.exec.Trigger(ctx, req.Code)
		status = statusFor(err)
		if err != nil {
			logger.Info().
				Err(err).
				Str(xglog.FieldStatus, status.String()).
				Msg("effect not started")
		} else {
			logger.Debug().Msg("effect started")
		}
	}

	metrics.IncEffect(req.Code, status.String())

	resp := protocol.NewEffectResponse(req.ID, status)
	if req.HasDuration() {
		resp = resp.WithDuration(*req.Duration)
	}

	if handle != nil && d.send != nil {
		d.watchers.Add(1)
		go d.reportFinished(req.ID, handle)
	}
	return resp
}

// viewer returns the name of the viewer who paid for the effect, if the
// controller sent one.
func viewer(req protocol.Request) string {
	v, ok := req.Field("viewer")
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// reportFinished runs off the read path and waits for the effect to end.
func (d *Dispatcher) reportFinished(id int64, h *effect.Handle) {
	defer d.watchers.Done()
	<-h.Done()
	if h.Result().Cancelled || d.closed.Load() {
		return
	}
	if err := d.send(protocol.NewEffectStatus(id, protocol.StatusFinished)); err != nil {
		d.logger.Warn().
			Err(err).
			Int64(xglog.FieldRequestID, id).
			Str(xglog.FieldEffectCode, h.Code).
			Msg("failed to report finished effect")
	}
}

// Close cancels any running timed effect and waits for it and every pending
// finished report to exit. Effect requests arriving afterwards get Retry.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed.Store(true)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.stopTimeout)
	defer cancel()
	err := d.exec.Stop(ctx)
	d.watchers.Wait()
	return err
}

func statusFor(err error) protocol.EffectStatus {
	switch {
	case err == nil:
		return protocol.StatusSuccess
	case errors.Is(err, effect.ErrBusy):
		return protocol.StatusRetry
	default:
		return protocol.StatusFailure
	}
}
