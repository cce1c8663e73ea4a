package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WebSocketConnection presents WebSocket frames as a byte stream.
type WebSocketConnection struct {
	conn   net.Conn
	src    io.Reader
	writer *lockedWriter
	server bool

	readMu        sync.Mutex
	readBuffer    []byte
	readBufferPos int
}

// NewWebSocketConnection wraps a dialed connection. br holds bytes the server
// sent right after the handshake and may be nil.
func NewWebSocketConnection(conn net.Conn, br *bufio.Reader) *WebSocketConnection {
	var src io.Reader = conn
	if br != nil && br.Buffered() > 0 {
		src = io.MultiReader(io.LimitReader(br, int64(br.Buffered())), conn)
	}
	return &WebSocketConnection{
		conn:   conn,
		src:    src,
		writer: &lockedWriter{w: conn},
	}
}

// NewServerWebSocketConnection wraps a connection already upgraded by ws.Upgrade.
func NewServerWebSocketConnection(conn net.Conn) *WebSocketConnection {
	return &WebSocketConnection{
		conn:   conn,
		src:    conn,
		writer: &lockedWriter{w: conn},
		server: true,
	}
}

func (wc *WebSocketConnection) Read(buf []byte) (int, error) {
	wc.readMu.Lock()
	defer wc.readMu.Unlock()

	if wc.readBufferPos < len(wc.readBuffer) {
		n := copy(buf, wc.readBuffer[wc.readBufferPos:])
		wc.readBufferPos += n
		if wc.readBufferPos >= len(wc.readBuffer) {
			wc.readBuffer = nil
			wc.readBufferPos = 0
		}
		return n, nil
	}

	data, err := wc.readData()
	if err != nil {
		return 0, err
	}

	n := copy(buf, data)
	if n < len(data) {
		wc.readBuffer = data[n:]
		wc.readBufferPos = 0
	}
	return n, nil
}

// readData returns the payload of the next non-empty data frame. Empty frames
// are skipped so that Read never reports (0, nil).
func (wc *WebSocketConnection) readData() ([]byte, error) {
	// Control frames (ping, close) are answered through the locked writer.
	rw := struct {
		io.Reader
		io.Writer
	}{wc.src, wc.writer}

	for {
		var (
			data []byte
			err  error
		)
		if wc.server {
			data, _, err = wsutil.ReadClientData(rw)
		} else {
			data, _, err = wsutil.ReadServerData(rw)
		}
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) {
				return nil, io.EOF
			}
			return nil, err
		}
		if len(data) > 0 {
			return data, nil
		}
	}
}

func (wc *WebSocketConnection) Write(data []byte) (int, error) {
	if err := wc.writeFrame(ws.OpText, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Close sends a close frame and closes the connection.
func (wc *WebSocketConnection) Close() error {
	_ = wc.writeFrame(ws.OpClose, nil)
	return wc.conn.Close()
}

func (wc *WebSocketConnection) writeFrame(op ws.OpCode, data []byte) error {
	wc.writer.mu.Lock()
	defer wc.writer.mu.Unlock()
	if wc.server {
		return wsutil.WriteServerMessage(wc.writer.w, op, data)
	}
	return wsutil.WriteClientMessage(wc.writer.w, op, data)
}

func (wc *WebSocketConnection) RemoteAddr() net.Addr {
	return wc.conn.RemoteAddr()
}

// lockedWriter serializes control-frame replies with data frames.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
