// Package session owns the controller connection: it dials, runs the read
// loop, hands decoded requests to a Handler and writes the replies back.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xglog "github.com/omochice/crowd-canvas/internal/log"
	"github.com/omochice/crowd-canvas/internal/metrics"
	"github.com/omochice/crowd-canvas/internal/transport"
	"github.com/omochice/crowd-canvas/pkg/protocol"
)

// DefaultChunkSize is the read buffer size of the read loop.
const DefaultChunkSize = 4096

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
)

var allStates = []string{"disconnected", "connecting", "connected", "closing"}

func (s State) String() string {
	if s >= 0 && int(s) < len(allStates) {
		return allStates[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Handler processes decoded requests. A nil response means no reply.
type Handler interface {
	Handle(ctx context.Context, req protocol.Request) *protocol.Response
	// Close cancels outstanding work and waits for it.
	Close() error
}

// Option configures a Session.
type Option func(*Session)

// WithChunkSize sets the read buffer size.
func WithChunkSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// Session is a single connection to the controller. It connects at most once.
type Session struct {
	id        string
	dialer    transport.Dialer
	handler   Handler
	chunkSize int
	logger    zerolog.Logger

	mu      sync.Mutex // guards state, conn, used, serving, aborted, cause
	state   State
	conn    transport.Conn
	used    bool
	serving bool
	aborted bool  // the connection was closed from this side
	cause   error // why it was closed; nil for Close and ctx cancellation
	done    chan struct{}

	writeMu sync.Mutex

	finishOnce sync.Once
	finishErr  error
}

// New creates a disconnected session.
func New(dialer transport.Dialer, handler Handler, opts ...Option) *Session {
	id := uuid.NewString()
	s := &Session{
		id:        id,
		dialer:    dialer,
		handler:   handler,
		chunkSize: DefaultChunkSize,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = xglog.WithComponent("session").With().Str(xglog.FieldSessionID, id).Logger()
	metrics.SetSessionState(Disconnected.String(), allStates)
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once teardown has finished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// caller holds s.mu
func (s *Session) setState(next State) {
	if s.state == next {
		return
	}
	s.logger.Debug().
		Str(xglog.FieldOldState, s.state.String()).
		Str(xglog.FieldNewState, next.String()).
		Msg("session state changed")
	s.state = next
	metrics.SetSessionState(next.String(), allStates)
}

// Connect dials the controller. Failure leaves the session Disconnected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.used {
		s.mu.Unlock()
		return &ConnectError{Target: s.dialer.Target(), Err: ErrAlreadyUsed}
	}
	s.used = true
	s.setState(Connecting)
	s.mu.Unlock()

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.setState(Disconnected)
		s.mu.Unlock()
		s.finish()
		return &ConnectError{Target: s.dialer.Target(), Err: err}
	}

	s.mu.Lock()
	if s.state != Connecting {
		// closed while dialing
		s.mu.Unlock()
		conn.Close()
		return &ConnectError{Target: s.dialer.Target(), Err: ErrNotConnected}
	}
	s.conn = conn
	s.setState(Connected)
	s.mu.Unlock()

	s.logger.Info().
		Str(xglog.FieldRemoteAddr, conn.RemoteAddr().String()).
		Msg("connected to controller")
	return nil
}

// Send encodes resp and writes it. A write failure tears the session down.
func (s *Session) Send(resp protocol.Response) error {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return &SendError{Err: ErrNotConnected}
	}
	conn := s.conn
	s.mu.Unlock()

	data, err := protocol.Encode(resp)
	if err != nil {
		return &SendError{Err: err}
	}

	s.writeMu.Lock()
	_, err = conn.Write(data)
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Int64(xglog.FieldRequestID, resp.ID).Msg("write failed")
		serr := &SendError{Err: err}
		s.abortWith(serr)
		return serr
	}

	metrics.IncResponseSent(resp.Type.String())
	s.logger.Debug().
		Int64(xglog.FieldRequestID, resp.ID).
		Str(xglog.FieldResponseType, resp.Type.String()).
		Msg("response sent")
	return nil
}

// Serve runs the read loop until the peer disconnects, a read fails, ctx is
// cancelled or Close is called, then tears the session down. It returns nil
// for a clean disconnect, a *protocol.FramingError when the stream ended
// inside a message and a *SendError when a reply could not be written.
func (s *Session) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Connected || s.serving {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.serving = true
	conn := s.conn
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, s.abort)
	defer stop()

	err := s.readLoop(ctx, conn)
	if ferr := s.finish(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

func (s *Session) readLoop(ctx context.Context, conn transport.Conn) error {
	var framer protocol.Framer
	buf := make([]byte, s.chunkSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			_, _ = framer.Write(buf[:n])
			for {
				payload, ok := framer.Next()
				if !ok {
					break
				}
				s.handlePayload(ctx, payload)
			}
		}

		if err == nil && n > 0 {
			continue
		}

		if aborted, cause := s.abortState(); aborted {
			return cause
		}
		if err == nil || errors.Is(err, io.EOF) {
			if ferr := framer.Close(); ferr != nil {
				s.logger.Warn().Err(ferr).Msg("controller closed mid-message")
				return ferr
			}
			s.logger.Info().Msg("controller disconnected")
			return nil
		}
		s.logger.Error().Err(err).Msg("read failed")
		return fmt.Errorf("read: %w", err)
	}
}

func (s *Session) handlePayload(ctx context.Context, payload []byte) {
	req, err := protocol.Decode(payload)
	if err != nil {
		metrics.IncDecodeError()
		s.logger.Warn().Err(err).Int("bytes", len(payload)).Msg("dropping undecodable message")
		return
	}
	metrics.IncMessageReceived(req.Type.String())
	s.logger.Debug().
		Int64(xglog.FieldRequestID, req.ID).
		Str(xglog.FieldRequestType, req.Type.String()).
		Msg("request received")

	resp := s.handler.Handle(ctx, req)
	if resp == nil {
		return
	}
	if err := s.Send(*resp); err != nil {
		s.logger.Warn().Err(err).Int64(xglog.FieldRequestID, req.ID).Msg("reply not delivered")
	}
}

// abortState reports whether this side closed the connection, and why.
func (s *Session) abortState() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted, s.cause
}

// abort moves a connected session to Closing and closes the connection,
// which unblocks the read loop. It does not wait.
func (s *Session) abort() {
	s.abortWith(nil)
}

func (s *Session) abortWith(cause error) {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.cause = cause
	s.setState(Closing)
	conn := s.conn
	s.mu.Unlock()

	if err := conn.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("close connection")
	}
}

// finish stops the handler and marks the session Disconnected. Runs once.
func (s *Session) finish() error {
	s.finishOnce.Do(func() {
		s.abort()
		if err := s.handler.Close(); err != nil {
			s.finishErr = fmt.Errorf("close handler: %w", err)
			s.logger.Error().Err(err).Msg("handler did not stop cleanly")
		}
		s.mu.Lock()
		s.conn = nil
		s.setState(Disconnected)
		s.mu.Unlock()
		close(s.done)
		s.logger.Info().Msg("session closed")
	})
	return s.finishErr
}

// Close tears the session down and waits for the active effect to stop. It is
// idempotent and safe from any goroutine except a Handler callback.
func (s *Session) Close() error {
	s.mu.Lock()
	serving := s.serving
	s.mu.Unlock()

	if !serving {
		return s.finish()
	}
	s.abort()
	<-s.done
	return s.finishErr
}
