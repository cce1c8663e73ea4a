// Package controller is a minimal stand-in for the Crowd Control controller.
// It listens for the client, sends requests and collects the framed replies.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/omochice/crowd-canvas/internal/config"
	xglog "github.com/omochice/crowd-canvas/internal/log"
	"github.com/omochice/crowd-canvas/internal/transport"
)

// ErrClosed is returned by Accept after Close.
var ErrClosed = errors.New("controller closed")

// Controller accepts client connections on one transport.
type Controller struct {
	transport string
	listener  net.Listener
	logger    zerolog.Logger

	mu     sync.Mutex
	peers  map[*Peer]struct{}
	closed bool
	wg     sync.WaitGroup
}

// Listen starts listening on address. mode is config.TransportTCP or
// config.TransportWS; in ws mode each accepted connection is upgraded.
func Listen(address, mode string) (*Controller, error) {
	switch mode {
	case config.TransportTCP, config.TransportWS:
	default:
		return nil, fmt.Errorf("unsupported transport %q", mode)
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to start controller: %w", err)
	}

	c := &Controller{
		transport: mode,
		listener:  listener,
		peers:     make(map[*Peer]struct{}),
		logger: xglog.WithComponent("controller").With().
			Str(xglog.FieldTransport, mode).Logger(),
	}
	c.logger.Info().Str("addr", listener.Addr().String()).Msg("controller listening")
	return c, nil
}

// Addr returns the listening address.
func (c *Controller) Addr() string {
	return c.listener.Addr().String()
}

// URL returns the address clients should dial for this transport.
func (c *Controller) URL() string {
	if c.transport == config.TransportWS {
		return "ws://" + c.Addr() + "/"
	}
	return c.Addr()
}

// Accept waits for one client. Cancelling ctx aborts the wait.
func (c *Controller) Accept(ctx context.Context) (*Peer, error) {
	if tl, ok := c.listener.(*net.TCPListener); ok {
		stop := context.AfterFunc(ctx, func() {
			_ = tl.SetDeadline(time.Unix(1, 0))
		})
		defer func() {
			if !stop() {
				_ = tl.SetDeadline(time.Time{})
			}
		}()
	}

	conn, err := c.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.isClosed() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("accept: %w", err)
	}

	var stream transport.Conn = conn
	if c.transport == config.TransportWS {
		if _, err := ws.Upgrade(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("websocket upgrade: %w", err)
		}
		stream = transport.NewServerWebSocketConnection(conn)
	}

	p := newPeer(stream, c.logger.With().Str(xglog.FieldRemoteAddr, conn.RemoteAddr().String()).Logger())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		stream.Close()
		return nil, ErrClosed
	}
	c.peers[p] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		p.readLoop()
		c.mu.Lock()
		delete(c.peers, p)
		c.mu.Unlock()
	}()

	c.logger.Info().Str(xglog.FieldRemoteAddr, conn.RemoteAddr().String()).Msg("client connected")
	return p, nil
}

// PeerCount returns the number of connected clients.
func (c *Controller) PeerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.peers)
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops listening, disconnects every client and waits for their read loops.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	peers := make([]*Peer, 0, len(c.peers))
	for p := range c.peers {
		peers = append(peers, p)
	}
	c.mu.Unlock()

	err := c.listener.Close()
	for _, p := range peers {
		p.Close()
	}
	c.wg.Wait()
	return err
}
