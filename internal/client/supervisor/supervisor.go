// Package supervisor owns one backend connection's lifecycle: dialing,
// the Hello/Authenticate handshake, heartbeating, and reconnection with
// exponential backoff. It is the Go shape of original_source daemon.rs's
// reconnection_loop, split out per-backend instead of driven from one
// shared loop so each backend's backoff state is independent (S6).
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Fill84/RGPU-sub000/internal/client/pool"
	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/logger"
	"github.com/Fill84/RGPU-sub000/internal/transport"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// Status mirrors original_source's ConnectionStatus: a backend is either
// reachable or disconnected with a reason.
type Status struct {
	Connected bool
	Reason    string
}

// Supervisor keeps one BackendConfig connected, reconnecting on failure
// and answering Pings so the pool always has a live Conn to route
// commands through.
type Supervisor struct {
	name    string
	backend config.BackendConfig

	mu       sync.RWMutex
	conn     transport.Conn
	sessID   uint32
	serverID uint16
	status   Status

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	bo                *backoff.ExponentialBackOff

	pool *pool.Pool
}

// newBackoff builds the doubling-to-ceiling schedule daemon.rs's
// reconnection_loop hand-rolls as "(backoff_secs[i] * 2).min(60)": no
// jitter, a clean 2x multiplier, and a hard ceiling rather than
// ExponentialBackOff's default randomized/capped-elapsed-time behavior.
func newBackoff(initial, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // never give up; the supervisor retries forever
	return b
}

// New creates a Supervisor for one configured backend.
func New(backend config.BackendConfig, cfg *config.ClientConfig, p *pool.Pool) *Supervisor {
	return &Supervisor{
		name:              backend.Name,
		backend:           backend,
		heartbeatInterval: cfg.HeartbeatInterval,
		heartbeatTimeout:  cfg.HeartbeatTimeout,
		bo:                newBackoff(cfg.ReconnectInitialBackoff, cfg.ReconnectMaxBackoff),
		pool:              p,
		status:            Status{Connected: false, Reason: "not yet connected"},
	}
}

// Run dials and maintains the connection until ctx is cancelled,
// reconnecting with exponential backoff (1s doubling to a 60s ceiling,
// reset to the floor on every successful reconnect, per S6/P7) whenever
// the connection drops or a heartbeat times out.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connectOnce(ctx); err != nil {
			logger.WarnCtx(ctx, "supervisor: connect failed", "backend", s.name, "error", err)
			s.setStatus(false, err.Error())
			if !s.sleepBackoff(ctx) {
				return
			}
			continue
		}
		s.setStatus(true, "")
		s.resetBackoff()

		s.heartbeatLoop(ctx)

		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.pool.RemoveBackend(s.serverID)
		s.mu.Unlock()
	}
}

func (s *Supervisor) connectOnce(ctx context.Context) error {
	kind, err := transport.ParseKind(s.backend.Transport)
	if err != nil {
		return err
	}
	conn, err := transport.DialKind(ctx, kind, s.backend.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.backend.Address, err)
	}

	sessID, serverID, gpus, err := s.handshake(ctx, conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake with %s: %w", s.backend.Address, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.sessID = sessID
	s.serverID = serverID
	s.mu.Unlock()

	s.pool.SetBackendGpus(serverID, gpus)
	logger.InfoCtx(ctx, "supervisor: connected", "backend", s.name, "server_id", serverID, "session_id", sessID)
	return nil
}

func (s *Supervisor) handshake(ctx context.Context, conn transport.Conn) (sessID uint32, serverID uint16, gpus []wire.GpuInfo, err error) {
	_, body, err := s.readFrame(ctx, conn)
	if err != nil {
		return 0, 0, nil, err
	}
	msgType, payload, err := wire.Decode(body)
	if err != nil {
		return 0, 0, nil, err
	}
	if msgType != wire.MsgHello {
		return 0, 0, nil, fmt.Errorf("expected Hello, got %v", msgType)
	}
	var hello wire.Hello
	if err := wire.DecodeBody(payload, &hello); err != nil {
		return 0, 0, nil, err
	}
	if hello.ProtocolVersion != wire.ProtocolVersion {
		return 0, 0, nil, fmt.Errorf("protocol version mismatch: backend=%d client=%d", hello.ProtocolVersion, wire.ProtocolVersion)
	}

	response, err := transport.ComputeResponse(s.backend.Token, hello.Challenge)
	if err != nil {
		return 0, 0, nil, err
	}
	if err := s.writeMessage(ctx, conn, wire.MsgAuthenticate, wire.Authenticate{
		Token:             s.backend.Token,
		ChallengeResponse: response,
	}); err != nil {
		return 0, 0, nil, err
	}

	_, body, err = s.readFrame(ctx, conn)
	if err != nil {
		return 0, 0, nil, err
	}
	msgType, payload, err = wire.Decode(body)
	if err != nil {
		return 0, 0, nil, err
	}
	if msgType != wire.MsgAuthResult {
		return 0, 0, nil, fmt.Errorf("expected AuthResult, got %v", msgType)
	}
	var result wire.AuthResult
	if err := wire.DecodeBody(payload, &result); err != nil {
		return 0, 0, nil, err
	}
	if !result.Success {
		return 0, 0, nil, fmt.Errorf("authentication rejected: %s", result.Error)
	}
	return result.SessionID, result.ServerID, result.Gpus, nil
}

// heartbeatLoop pings the backend on heartbeatInterval and returns as
// soon as one ping times out or errors, so Run can mark the backend
// disconnected and start reconnecting (mirrors daemon.rs's
// reconnection_loop Ping/Pong check, but driven by a per-backend ticker
// rather than one shared 5s sweep).
func (s *Supervisor) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ping(ctx); err != nil {
				logger.WarnCtx(ctx, "supervisor: heartbeat failed", "backend", s.name, "error", err)
				return
			}
		}
	}
}

func (s *Supervisor) ping(ctx context.Context) error {
	hbCtx, cancel := context.WithTimeout(ctx, s.heartbeatTimeout)
	defer cancel()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}

	if err := s.writeMessage(hbCtx, conn, wire.MsgPing, struct{}{}); err != nil {
		return err
	}
	_, body, err := s.readFrame(hbCtx, conn)
	if err != nil {
		return err
	}
	msgType, _, err := wire.Decode(body)
	if err != nil {
		return err
	}
	if msgType != wire.MsgPong {
		return fmt.Errorf("expected Pong, got %v", msgType)
	}
	return nil
}

func (s *Supervisor) writeMessage(ctx context.Context, conn transport.Conn, msgType wire.MessageType, body any) error {
	frame, err := wire.EncodeFrame(msgType, body, 0, 0)
	if err != nil {
		return err
	}
	return conn.WriteFrame(ctx, frame)
}

func (s *Supervisor) readFrame(ctx context.Context, conn transport.Conn) (wire.Frame, []byte, error) {
	frame, err := conn.ReadFrame(ctx)
	if err != nil {
		return wire.Frame{}, nil, err
	}
	return frame, frame.Payload, nil
}

func (s *Supervisor) sleepBackoff(ctx context.Context) bool {
	s.mu.Lock()
	wait := s.bo.NextBackOff()
	s.mu.Unlock()
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}

func (s *Supervisor) resetBackoff() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bo.Reset()
}

func (s *Supervisor) setStatus(connected bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{Connected: connected, Reason: reason}
}

// StatusSnapshot reports the current connection status for diagnostics
// (rgpu-verify/the admin endpoint).
func (s *Supervisor) StatusSnapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Conn returns the live connection, if any, for the executor layer to
// send commands over.
func (s *Supervisor) Conn() (transport.Conn, uint16, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil, 0, false
	}
	return s.conn, s.serverID, true
}
