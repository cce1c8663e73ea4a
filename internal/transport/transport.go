// Package transport dials the controller over raw TCP or a WebSocket tunnel.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gobwas/ws"
)

// Conn is a connection to the controller carrying the NUL-framed byte stream.
type Conn interface {
	// Read receives stream bytes. Message boundaries are not preserved.
	Read(buf []byte) (int, error)

	// Write sends stream bytes.
	Write(data []byte) (int, error)

	// Close closes the connection
	Close() error

	// RemoteAddr returns the controller address
	RemoteAddr() net.Addr
}

// Dialer opens a Conn.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	// Target describes the dial destination for logs and errors.
	Target() string
}

// TCPDialer connects with TCP keepalive enabled.
type TCPDialer struct {
	Address   string
	Timeout   time.Duration
	KeepAlive time.Duration // zero selects the system default period
}

func (d TCPDialer) Target() string {
	return d.Address
}

func (d TCPDialer) Dial(ctx context.Context) (Conn, error) {
	nd := net.Dialer{
		Timeout:   d.Timeout,
		KeepAlive: d.KeepAlive,
	}
	conn, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to controller: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetKeepAlive(true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to enable keepalive: %w", err)
		}
	}
	return conn, nil
}

// WebSocketDialer tunnels the stream through WebSocket frames.
type WebSocketDialer struct {
	URL     string
	Timeout time.Duration
}

func (d WebSocketDialer) Target() string {
	return d.URL
}

func (d WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := ws.Dialer{Timeout: d.Timeout}
	conn, br, _, err := dialer.Dial(ctx, d.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to controller: %w", err)
	}
	return NewWebSocketConnection(conn, br), nil
}
