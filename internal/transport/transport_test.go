package transport_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/crowd-canvas/internal/config"
	"github.com/omochice/crowd-canvas/internal/controller"
	"github.com/omochice/crowd-canvas/internal/transport"
	"github.com/omochice/crowd-canvas/pkg/protocol"
)

func readAll(t *testing.T, conn transport.Conn, want int) []byte {
	t.Helper()
	var got []byte
	buf := make([]byte, 8)
	for len(got) < want {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	return got
}

func TestTCPDialer_Dial(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err == nil {
			accepted <- conn
		}
		close(accepted)
	}()

	d := transport.TCPDialer{Address: listener.Addr().String(), Timeout: time.Second, KeepAlive: 15 * time.Second}
	assert.Equal(t, listener.Addr().String(), d.Target())

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	server := <-accepted
	require.NotNil(t, server)
	defer server.Close()

	_, err = server.Write([]byte("ping\x00"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ping\x00"), readAll(t, conn, 5))
}

func TestTCPDialer_Refused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	d := transport.TCPDialer{Address: addr, Timeout: time.Second}
	_, err = d.Dial(context.Background())
	assert.Error(t, err)
}

func TestWebSocketDialer_StreamOverFrames(t *testing.T) {
	ctrl, err := controller.Listen("127.0.0.1:0", config.TransportWS)
	require.NoError(t, err)
	defer ctrl.Close()

	d := transport.WebSocketDialer{URL: ctrl.URL(), Timeout: time.Second}
	assert.Equal(t, ctrl.URL(), d.Target())

	type dialResult struct {
		conn transport.Conn
		err  error
	}
	dialed := make(chan dialResult, 1)
	go func() {
		conn, err := d.Dial(context.Background())
		dialed <- dialResult{conn, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peer, err := ctrl.Accept(ctx)
	require.NoError(t, err)

	res := <-dialed
	require.NoError(t, res.err)
	conn := res.conn

	msg := []byte("{\"id\":1,\"type\":253}\x00")
	// an empty frame carries no stream bytes and must not look like EOF
	require.NoError(t, peer.SendRaw([]byte{}))
	require.NoError(t, peer.SendRaw(msg))
	// the read buffer is smaller than the frame, so the rest is carried over
	assert.Equal(t, msg, readAll(t, conn, len(msg)))

	data, err := protocol.Encode(protocol.NewGameUpdate(1, protocol.GameStateReady))
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)

	resp, err := peer.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, protocol.ResponseTypeGameUpdate, resp.Type)

	require.NoError(t, peer.Close())
	buf := make([]byte, 64)
	_, err = conn.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, conn.Close())
}
