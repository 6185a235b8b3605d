package supervisor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/client/pool"
	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/transport"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// fakeBackend speaks just enough of the Hello/Authenticate/Pong handshake
// over a real TCP socket to drive Supervisor.connectOnce and ping without
// a full rgpu-serverd instance.
type fakeBackend struct {
	ln   net.Listener
	t    *testing.T
	gpus []wire.GpuInfo
}

func startFakeBackend(t *testing.T, gpus []wire.GpuInfo) *fakeBackend {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return &fakeBackend{ln: ln, t: t, gpus: gpus}
}

func (f *fakeBackend) addr() string { return f.ln.Addr().String() }

func (f *fakeBackend) serveOneHandshakeThenPongForever(token string) {
	go func() {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := wire.NewFrameReader(conn)

		challenge := []byte("fixed-test-challenge-32-bytes!!")
		helloFrame, err := wire.EncodeFrame(wire.MsgHello, wire.Hello{ProtocolVersion: wire.ProtocolVersion, Challenge: challenge}, 0, 0)
		if err != nil {
			return
		}
		if err := wire.WriteFrame(conn, helloFrame); err != nil {
			return
		}

		authFrame, err := wire.ReadFrame(r)
		if err != nil {
			return
		}
		_, authBody, err := wire.Decode(authFrame.Payload)
		if err != nil {
			return
		}
		var auth wire.Authenticate
		if err := wire.DecodeBody(authBody, &auth); err != nil {
			return
		}

		ok, _ := transport.VerifyResponse(token, challenge, auth.ChallengeResponse)
		resultFrame, err := wire.EncodeFrame(wire.MsgAuthResult, wire.AuthResult{
			Success: ok, SessionID: 77, ServerID: 3, Gpus: f.gpus,
		}, 0, 0)
		if err != nil {
			return
		}
		if err := wire.WriteFrame(conn, resultFrame); err != nil {
			return
		}
		if !ok {
			return
		}

		for {
			frame, err := wire.ReadFrame(r)
			if err != nil {
				return
			}
			msgType, _, err := wire.Decode(frame.Payload)
			if err != nil || msgType != wire.MsgPing {
				return
			}
			pongFrame, err := wire.EncodeFrame(wire.MsgPong, struct{}{}, 0, 0)
			if err != nil {
				return
			}
			if err := wire.WriteFrame(conn, pongFrame); err != nil {
				return
			}
		}
	}()
}

func testClientConfig() *config.ClientConfig {
	cfg := &config.ClientConfig{HeartbeatInterval: 20 * time.Millisecond, HeartbeatTimeout: time.Second,
		ReconnectInitialBackoff: 10 * time.Millisecond, ReconnectMaxBackoff: 50 * time.Millisecond}
	return cfg
}

func TestSupervisor_ConnectOnce_SucceedsAndPopulatesPool(t *testing.T) {
	gpus := []wire.GpuInfo{{LocalOrdinal: 0, DeviceName: "fake-0"}}
	backend := startFakeBackend(t, gpus)
	defer backend.ln.Close()
	backend.serveOneHandshakeThenPongForever("valid-token")

	p := pool.New(config.PoolOrderingConfigOrder)
	s := New(config.BackendConfig{Name: "b1", Address: backend.addr(), Transport: "tcp", Token: "valid-token"}, testClientConfig(), p)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.connectOnce(ctx))

	conn, serverID, ok := s.Conn()
	require.True(t, ok)
	defer conn.Close()
	assert.Equal(t, uint16(3), serverID)
	assert.Len(t, p.Virtual(), 1)
}

func TestSupervisor_ConnectOnce_RejectsWrongToken(t *testing.T) {
	backend := startFakeBackend(t, nil)
	defer backend.ln.Close()
	backend.serveOneHandshakeThenPongForever("expected-token")

	p := pool.New(config.PoolOrderingConfigOrder)
	s := New(config.BackendConfig{Name: "b1", Address: backend.addr(), Transport: "tcp", Token: "wrong-token"}, testClientConfig(), p)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, s.connectOnce(ctx))
}

func TestSupervisor_Ping_RoundTripsOverLiveConnection(t *testing.T) {
	backend := startFakeBackend(t, nil)
	defer backend.ln.Close()
	backend.serveOneHandshakeThenPongForever("tok")

	p := pool.New(config.PoolOrderingConfigOrder)
	s := New(config.BackendConfig{Name: "b1", Address: backend.addr(), Transport: "tcp", Token: "tok"}, testClientConfig(), p)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.connectOnce(ctx))

	assert.NoError(t, s.ping(ctx))
}

func TestSupervisor_StatusSnapshot_ReflectsSetStatus(t *testing.T) {
	p := pool.New(config.PoolOrderingConfigOrder)
	s := New(config.BackendConfig{Name: "b1", Address: "127.0.0.1:1", Transport: "tcp"}, testClientConfig(), p)

	initial := s.StatusSnapshot()
	assert.False(t, initial.Connected)

	s.setStatus(true, "")
	assert.True(t, s.StatusSnapshot().Connected)

	s.setStatus(false, "connection reset")
	snap := s.StatusSnapshot()
	assert.False(t, snap.Connected)
	assert.Equal(t, "connection reset", snap.Reason)
}

func TestSupervisor_BackoffResetsAfterSuccess(t *testing.T) {
	p := pool.New(config.PoolOrderingConfigOrder)
	s := New(config.BackendConfig{Name: "b1", Transport: "tcp"}, testClientConfig(), p)

	first := s.bo.NextBackOff()
	second := s.bo.NextBackOff()
	assert.Greater(t, second, first, "backoff doubles on successive calls")

	s.resetBackoff()
	assert.Equal(t, s.bo.InitialInterval, s.bo.NextBackOff())
}
