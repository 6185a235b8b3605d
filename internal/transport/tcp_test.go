package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/wire"
)

func TestTCPListenDialWriteFrame_RoundTrips(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverConnCh := make(chan Conn, 1)
	go func() {
		c, err := ln.Accept(ctx)
		require.NoError(t, err)
		serverConnCh <- c
	}()

	client, err := DialKind(ctx, KindTCP, ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-serverConnCh
	defer server.Close()

	frame, err := wire.EncodeFrame(wire.MsgPing, wire.Ping{Nonce: 42}, 7, wire.FlagNone)
	require.NoError(t, err)

	require.NoError(t, client.WriteFrame(ctx, frame))

	got, err := server.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame.StreamID, got.StreamID)
	assert.Equal(t, frame.Payload, got.Payload)
}

func TestListenKind_RejectsUnknownKind(t *testing.T) {
	_, err := ListenKind(context.Background(), Kind("quic"), "127.0.0.1:0")
	assert.Error(t, err)
}

func TestDialKind_RejectsUnregisteredKind(t *testing.T) {
	_, err := DialKind(context.Background(), Kind("quic"), "127.0.0.1:0")
	assert.Error(t, err)
}
