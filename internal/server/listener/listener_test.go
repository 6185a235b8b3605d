package listener

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/gpu"
	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/transport"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

func startTestServer(t *testing.T) (addr string, cfg *config.ServerConfig) {
	t.Helper()
	cfg = &config.ServerConfig{
		Transport:      "tcp",
		ServerID:       5,
		MaxClients:     8,
		AcceptedTokens: []string{"good-token"},
	}
	config.ApplyServerDefaults(cfg)
	cfg.AdminListenAddr = ""

	srv := New(cfg, gpu.NewSimulatedCudaDriver(gpu.Discover(nil)), gpu.NewSimulatedVulkanDriver(gpu.Discover(nil)))

	ln, err := transport.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	addr = ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.Run(ctx, ln) }()
	return addr, cfg
}

// dialAndHandshake connects to addr, completes the Hello/Authenticate
// exchange with token, and returns the live conn plus the session/server
// ids the server handed back.
func dialAndHandshake(t *testing.T, addr, token string) (transport.Conn, uint32, uint16) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := transport.DialKind(ctx, transport.KindTCP, addr)
	require.NoError(t, err)

	helloFrame, err := conn.ReadFrame(ctx)
	require.NoError(t, err)
	msgType, body, err := wire.Decode(helloFrame.Payload)
	require.NoError(t, err)
	require.Equal(t, wire.MsgHello, msgType)
	var hello wire.Hello
	require.NoError(t, wire.DecodeBody(body, &hello))

	resp, err := transport.ComputeResponse(token, hello.Challenge)
	require.NoError(t, err)
	authFrame, err := wire.EncodeFrame(wire.MsgAuthenticate, wire.Authenticate{Token: token, ChallengeResponse: resp}, 0, 0)
	require.NoError(t, err)
	require.NoError(t, conn.WriteFrame(ctx, authFrame))

	resultFrame, err := conn.ReadFrame(ctx)
	require.NoError(t, err)
	msgType, body, err = wire.Decode(resultFrame.Payload)
	require.NoError(t, err)
	require.Equal(t, wire.MsgAuthResult, msgType)
	var result wire.AuthResult
	require.NoError(t, wire.DecodeBody(body, &result))
	require.True(t, result.Success)

	return conn, result.SessionID, result.ServerID
}

func TestListener_HandshakeSucceedsWithValidToken(t *testing.T) {
	addr, cfg := startTestServer(t)
	conn, sessID, serverID := dialAndHandshake(t, addr, "good-token")
	defer conn.Close()

	assert.NotZero(t, sessID)
	assert.Equal(t, cfg.ServerID, serverID)
}

func TestListener_HandshakeRejectsInvalidToken(t *testing.T) {
	addr, _ := startTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := transport.DialKind(ctx, transport.KindTCP, addr)
	require.NoError(t, err)
	defer conn.Close()

	helloFrame, err := conn.ReadFrame(ctx)
	require.NoError(t, err)
	_, body, err := wire.Decode(helloFrame.Payload)
	require.NoError(t, err)
	var hello wire.Hello
	require.NoError(t, wire.DecodeBody(body, &hello))

	authFrame, err := wire.EncodeFrame(wire.MsgAuthenticate, wire.Authenticate{Token: "wrong-token", ChallengeResponse: []byte("garbage")}, 0, 0)
	require.NoError(t, err)
	require.NoError(t, conn.WriteFrame(ctx, authFrame))

	resultFrame, err := conn.ReadFrame(ctx)
	require.NoError(t, err)
	msgType, body, err := wire.Decode(resultFrame.Payload)
	require.NoError(t, err)
	require.Equal(t, wire.MsgAuthResult, msgType)
	var result wire.AuthResult
	require.NoError(t, wire.DecodeBody(body, &result))
	assert.False(t, result.Success)
}

func TestListener_PingPong(t *testing.T) {
	addr, _ := startTestServer(t)
	conn, _, _ := dialAndHandshake(t, addr, "good-token")
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pingFrame, err := wire.EncodeFrame(wire.MsgPing, wire.Ping{Nonce: 99}, 0, 0)
	require.NoError(t, err)
	require.NoError(t, conn.WriteFrame(ctx, pingFrame))

	frame, err := conn.ReadFrame(ctx)
	require.NoError(t, err)
	msgType, body, err := wire.Decode(frame.Payload)
	require.NoError(t, err)
	require.Equal(t, wire.MsgPong, msgType)
	var pong wire.Pong
	require.NoError(t, wire.DecodeBody(body, &pong))
	assert.Equal(t, uint64(99), pong.Nonce)
}

func TestListener_QueryGpusReturnsAdvertisedList(t *testing.T) {
	addr, _ := startTestServer(t)
	conn, _, _ := dialAndHandshake(t, addr, "good-token")
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frame, err := wire.EncodeFrame(wire.MsgQueryGpus, wire.QueryGpus{}, 0, 0)
	require.NoError(t, err)
	require.NoError(t, conn.WriteFrame(ctx, frame))

	resp, err := conn.ReadFrame(ctx)
	require.NoError(t, err)
	msgType, body, err := wire.Decode(resp.Payload)
	require.NoError(t, err)
	require.Equal(t, wire.MsgGpuList, msgType)
	var list wire.GpuList
	require.NoError(t, wire.DecodeBody(body, &list))
	assert.Len(t, list.Gpus, 1)
}

func TestListener_CudaCommandRoundTrips(t *testing.T) {
	addr, _ := startTestServer(t)
	conn, _, _ := dialAndHandshake(t, addr, "good-token")
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := wire.CudaCommand{RequestID: 1, Opcode: cuda.OpDeviceGetCount}
	frame, err := wire.EncodeFrame(wire.MsgCudaCommand, cmd, 0, 0)
	require.NoError(t, err)
	require.NoError(t, conn.WriteFrame(ctx, frame))

	resp, err := conn.ReadFrame(ctx)
	require.NoError(t, err)
	msgType, body, err := wire.Decode(resp.Payload)
	require.NoError(t, err)
	require.Equal(t, wire.MsgCudaResponse, msgType)
	var cudaResp wire.CudaResponse
	require.NoError(t, wire.DecodeBody(body, &cudaResp))
	assert.Equal(t, uint64(1), cudaResp.RequestID)
	assert.Equal(t, wire.ResultScalar, cudaResp.Result.Kind)
	assert.EqualValues(t, 1, cudaResp.Result.Scalar)
}
