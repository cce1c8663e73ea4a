package controller_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/crowd-canvas/internal/config"
	"github.com/omochice/crowd-canvas/internal/controller"
	"github.com/omochice/crowd-canvas/pkg/protocol"
)

func acceptTCP(t *testing.T) (*controller.Controller, *controller.Peer, net.Conn) {
	t.Helper()
	ctrl, err := controller.Listen("127.0.0.1:0", config.TransportTCP)
	require.NoError(t, err)
	t.Cleanup(func() { ctrl.Close() })

	client, err := net.Dial("tcp", ctrl.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peer, err := ctrl.Accept(ctx)
	require.NoError(t, err)
	return ctrl, peer, client
}

func TestListen_RejectsUnknownTransport(t *testing.T) {
	_, err := controller.Listen("127.0.0.1:0", "udp")
	assert.Error(t, err)
}

func TestController_URL(t *testing.T) {
	tcp, err := controller.Listen("127.0.0.1:0", config.TransportTCP)
	require.NoError(t, err)
	defer tcp.Close()
	assert.Equal(t, tcp.Addr(), tcp.URL())

	ws, err := controller.Listen("127.0.0.1:0", config.TransportWS)
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, "ws://"+ws.Addr()+"/", ws.URL())
}

func TestPeer_SendWritesFramedRequest(t *testing.T) {
	_, peer, client := acceptTCP(t)

	dur := 5.0
	require.NoError(t, peer.Send(protocol.Request{
		ID:       peer.NextID(),
		Type:     protocol.RequestTypeEffectStart,
		Code:     "spin_canvas",
		Duration: &dur,
	}))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	var framer protocol.Framer
	var payload []byte
	for payload == nil {
		n, err := client.Read(buf)
		require.NoError(t, err)
		_, _ = framer.Write(buf[:n])
		payload, _ = framer.Next()
	}

	req, err := protocol.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(1), req.ID)
	assert.Equal(t, protocol.RequestTypeEffectStart, req.Type)
	assert.Equal(t, "spin_canvas", req.Code)
	require.NotNil(t, req.Duration)
	assert.InDelta(t, 5, *req.Duration, 0)
}

func TestPeer_RequestMatchesReplyID(t *testing.T) {
	_, peer, client := acceptTCP(t)

	go func() {
		buf := make([]byte, 256)
		if _, err := client.Read(buf); err != nil {
			return
		}
		// an unrelated reply first, then the matching one, in a single write
		_, _ = client.Write([]byte("{\"id\":99,\"type\":253,\"state\":1}\x00{\"id\":1,\"type\":253,\"state\":1}\x00"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := peer.Request(ctx, protocol.Request{ID: 1, Type: protocol.RequestTypeGameUpdate})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ID)
	require.NotNil(t, resp.State)
	assert.Equal(t, protocol.GameStateReady, *resp.State)
}

func TestPeer_NextAfterDisconnect(t *testing.T) {
	_, peer, client := acceptTCP(t)
	require.NoError(t, client.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := peer.Next(ctx)
	assert.ErrorIs(t, err, controller.ErrDisconnected)

	select {
	case <-peer.Done():
	case <-ctx.Done():
		t.Fatal("peer not done after client disconnect")
	}
}

func TestPeer_NextHonoursContext(t *testing.T) {
	_, peer, _ := acceptTCP(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := peer.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestController_AcceptHonoursContext(t *testing.T) {
	ctrl, err := controller.Listen("127.0.0.1:0", config.TransportTCP)
	require.NoError(t, err)
	defer ctrl.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ctrl.Accept(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestController_AcceptAfterClose(t *testing.T) {
	ctrl, err := controller.Listen("127.0.0.1:0", config.TransportTCP)
	require.NoError(t, err)
	require.NoError(t, ctrl.Close())

	_, err = ctrl.Accept(context.Background())
	assert.ErrorIs(t, err, controller.ErrClosed)
	assert.NoError(t, ctrl.Close())
}

func TestController_CloseDisconnectsPeers(t *testing.T) {
	ctrl, peer, client := acceptTCP(t)
	assert.Equal(t, 1, ctrl.PeerCount())

	require.NoError(t, ctrl.Close())
	assert.Equal(t, 0, ctrl.PeerCount())

	select {
	case <-peer.Done():
	default:
		t.Fatal("peer still open after Close")
	}

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := client.Read(make([]byte, 1))
	assert.Error(t, err)
}
