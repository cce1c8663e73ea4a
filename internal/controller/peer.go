package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	xglog "github.com/omochice/crowd-canvas/internal/log"
	"github.com/omochice/crowd-canvas/internal/transport"
	"github.com/omochice/crowd-canvas/pkg/protocol"
)

// ErrDisconnected is returned when the client has gone away.
var ErrDisconnected = errors.New("client disconnected")

const responseBuffer = 64

// Peer is one connected client.
type Peer struct {
	conn   transport.Conn
	logger zerolog.Logger

	writeMu sync.Mutex
	nextID  atomic.Int64

	responses chan protocol.Response
	done      chan struct{}
	closeOnce sync.Once
}

func newPeer(conn transport.Conn, logger zerolog.Logger) *Peer {
	return &Peer{
		conn:      conn,
		logger:    logger,
		responses: make(chan protocol.Response, responseBuffer),
		done:      make(chan struct{}),
	}
}

// NextID returns a fresh request id.
func (p *Peer) NextID() int64 {
	return p.nextID.Add(1)
}

// Send encodes req and writes it to the client.
func (p *Peer) Send(req protocol.Request) error {
	data, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}
	if err := p.SendRaw(data); err != nil {
		return err
	}
	p.logger.Debug().
		Int64(xglog.FieldRequestID, req.ID).
		Str(xglog.FieldRequestType, req.Type.String()).
		Str(xglog.FieldEffectCode, req.Code).
		Msg("request sent")
	return nil
}

// SendRaw writes bytes unchanged. Framing is the caller's job.
func (p *Peer) SendRaw(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.conn.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Responses delivers decoded replies. It is closed when the client disconnects.
func (p *Peer) Responses() <-chan protocol.Response {
	return p.responses
}

// Done is closed when the connection has ended.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Next waits for the next reply.
func (p *Peer) Next(ctx context.Context) (protocol.Response, error) {
	select {
	case resp, ok := <-p.responses:
		if !ok {
			return protocol.Response{}, ErrDisconnected
		}
		return resp, nil
	case <-ctx.Done():
		return protocol.Response{}, ctx.Err()
	}
}

// Request sends req and waits for the reply carrying the same id. Replies
// for other ids are discarded.
func (p *Peer) Request(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	if err := p.Send(req); err != nil {
		return protocol.Response{}, err
	}
	for {
		resp, err := p.Next(ctx)
		if err != nil {
			return protocol.Response{}, err
		}
		if resp.ID == req.ID {
			return resp, nil
		}
		p.logger.Debug().Int64(xglog.FieldRequestID, resp.ID).Msg("skipping unrelated reply")
	}
}

// Close disconnects the client.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.conn.Close()
	})
	return err
}

func (p *Peer) readLoop() {
	defer close(p.responses)
	defer p.Close()

	var framer protocol.Framer
	buf := make([]byte, 4096)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			_, _ = framer.Write(buf[:n])
			for {
				payload, ok := framer.Next()
				if !ok {
					break
				}
				resp, derr := protocol.DecodeResponse(payload)
				if derr != nil {
					p.logger.Warn().Err(derr).Msg("undecodable reply")
					continue
				}
				p.logger.Debug().
					Int64(xglog.FieldRequestID, resp.ID).
					Str(xglog.FieldResponseType, resp.Type.String()).
					Msg("reply received")
				select {
				case p.responses <- resp:
				case <-p.done:
					return
				}
			}
		}
		if err != nil {
			select {
			case <-p.done:
			default:
				p.logger.Info().Err(err).Msg("client disconnected")
			}
			return
		}
	}
}
