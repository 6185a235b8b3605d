// Package listener runs a backend server's accept loop: one goroutine per
// accepted transport.Conn, handling the Hello/Authenticate handshake,
// dispatching CUDA/Vulkan commands to the executors, and cleaning up the
// session's handle tables when the connection drops. It is the Go
// counterpart of original_source's rgpu-server/src/server.rs.
package listener

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/gpu"
	"github.com/Fill84/RGPU-sub000/internal/logger"
	"github.com/Fill84/RGPU-sub000/internal/metrics"
	"github.com/Fill84/RGPU-sub000/internal/server/executor"
	"github.com/Fill84/RGPU-sub000/internal/transport"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// Server owns one backend's listening socket, its advertised GPU list, its
// executors, and every currently-connected session.
type Server struct {
	cfg     *config.ServerConfig
	gpus    []gpu.Info
	cuda    *executor.CudaExecutor
	vulkan  *executor.VulkanExecutor
	metrics *metrics.ServerMetrics

	nextSessionID atomic.Uint32

	mu       sync.Mutex
	sessions map[uint32]*clientConn
}

// New constructs a Server. cudaDriver/vulkanDriver may be nil, in which
// case the corresponding executor answers DriverUnavailable for every
// command except the handshake (§4.8).
func New(cfg *config.ServerConfig, cudaDriver gpu.CudaDriver, vulkanDriver gpu.VulkanDriver) *Server {
	return &Server{
		cfg:      cfg,
		gpus:     gpu.Discover(cfg.SimulatedGPUs),
		cuda:     executor.NewCudaExecutor(cudaDriver),
		vulkan:   executor.NewVulkanExecutor(vulkanDriver),
		metrics:  metrics.NewServerMetrics(cfg.BindAddr),
		sessions: make(map[uint32]*clientConn),
	}
}

// clientConn is one accepted connection's handshake state and session id.
type clientConn struct {
	conn      transport.Conn
	sessionID uint32
	lastSeen  atomic.Int64 // unix nanos, for the idle-timeout reaper
}

// Run accepts connections on ln until ctx is canceled, and serves the
// admin HTTP endpoints (/metrics, /healthz) on cfg.AdminListenAddr in the
// background.
func (s *Server) Run(ctx context.Context, ln transport.Listener) error {
	go s.serveAdmin(ctx)
	go s.reapIdleSessions(ctx)

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.ErrorCtx(ctx, "accept failed", "error", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) serveAdmin(ctx context.Context) {
	if s.cfg.AdminListenAddr == "" {
		return
	}
	mux := chi.NewRouter()
	if metrics.IsEnabled() {
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: s.cfg.AdminListenAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownDrain)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("admin http server exited", "error", err)
	}
}

// reapIdleSessions disconnects sessions that have sent nothing for longer
// than cfg.IdleTimeout (spec.md §4.3).
func (s *Server) reapIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.IdleTimeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.IdleTimeout).UnixNano()
			s.mu.Lock()
			for _, cc := range s.sessions {
				if cc.lastSeen.Load() < cutoff {
					_ = cc.conn.Close()
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) handleConn(ctx context.Context, conn transport.Conn) {
	cc := &clientConn{conn: conn}
	cc.lastSeen.Store(time.Now().UnixNano())

	sessionID, err := s.handshake(ctx, cc)
	if err != nil {
		logger.WarnCtx(ctx, "handshake failed", "peer", conn.RemoteAddr(), "error", err)
		_ = conn.Close()
		return
	}
	cc.sessionID = sessionID

	lctx := logger.WithContext(ctx, &logger.LogContext{SessionID: sessionID, ServerID: s.cfg.ServerID, PeerAddr: conn.RemoteAddr().String()})
	s.metrics.RecordConnect()
	s.mu.Lock()
	s.sessions[sessionID] = cc
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		s.cuda.CleanupSession(lctx, sessionID)
		s.vulkan.CleanupSession(lctx, sessionID)
		s.metrics.RecordDisconnect()
		_ = conn.Close()
		logger.InfoCtx(lctx, "session closed")
	}()

	logger.InfoCtx(lctx, "session established")
	s.serve(lctx, cc)
}

// handshake performs Hello (with challenge) / Authenticate / AuthResult and
// returns the new session id on success.
func (s *Server) handshake(ctx context.Context, cc *clientConn) (uint32, error) {
	challenge, err := transport.GenerateChallenge()
	if err != nil {
		return 0, err
	}
	hello := wire.Hello{ProtocolVersion: wire.ProtocolVersion, PeerName: "rgpu-serverd", Challenge: challenge}
	if err := s.send(ctx, cc, wire.MsgHello, hello); err != nil {
		return 0, fmt.Errorf("send hello: %w", err)
	}

	msgType, body, err := s.receive(ctx, cc)
	if err != nil {
		return 0, fmt.Errorf("await authenticate: %w", err)
	}
	if msgType != wire.MsgAuthenticate {
		return 0, fmt.Errorf("expected Authenticate, got %v", msgType)
	}
	var auth wire.Authenticate
	if err := wire.DecodeBody(body, &auth); err != nil {
		return 0, err
	}

	if !transport.TokenAccepted(auth.Token, s.cfg.AcceptedTokens) {
		_ = s.send(ctx, cc, wire.MsgAuthResult, wire.AuthResult{Success: false, Error: "invalid token"})
		return 0, fmt.Errorf("invalid token")
	}
	ok, err := transport.VerifyResponse(auth.Token, challenge, auth.ChallengeResponse)
	if err != nil || !ok {
		_ = s.send(ctx, cc, wire.MsgAuthResult, wire.AuthResult{Success: false, Error: "invalid challenge response"})
		return 0, fmt.Errorf("invalid challenge response")
	}

	sessionID := s.nextSessionID.Add(1)
	result := wire.AuthResult{
		Success:   true,
		SessionID: sessionID,
		ServerID:  s.cfg.ServerID,
		Gpus:      s.wireGpus(),
	}
	if err := s.send(ctx, cc, wire.MsgAuthResult, result); err != nil {
		return 0, err
	}
	return sessionID, nil
}

func (s *Server) wireGpus() []wire.GpuInfo {
	out := make([]wire.GpuInfo, len(s.gpus))
	for i, g := range s.gpus {
		out[i] = wire.GpuInfo{
			ServerID:               s.cfg.ServerID,
			LocalOrdinal:           g.LocalOrdinal,
			DeviceName:             g.DeviceName,
			VRAMBytes:              g.VRAMBytes,
			ComputeCapabilityMajor: g.ComputeCapabilityMajor,
			ComputeCapabilityMinor: g.ComputeCapabilityMinor,
			IsCudaCapable:          g.IsCudaCapable,
			IsVulkanCapable:        g.IsVulkanCapable,
			PCIBusID:               g.PCIBusID,
			UUID:                   g.UUID,
		}
	}
	return out
}

// serve processes messages until the connection closes or errors.
func (s *Server) serve(ctx context.Context, cc *clientConn) {
	for {
		msgType, body, err := s.receive(ctx, cc)
		if err != nil {
			return
		}
		cc.lastSeen.Store(time.Now().UnixNano())
		s.dispatch(ctx, cc, msgType, body)
	}
}

func (s *Server) dispatch(ctx context.Context, cc *clientConn, msgType wire.MessageType, body []byte) {
	switch msgType {
	case wire.MsgPing:
		var ping wire.Ping
		if err := wire.DecodeBody(body, &ping); err != nil {
			return
		}
		_ = s.send(ctx, cc, wire.MsgPong, wire.Pong{Nonce: ping.Nonce})

	case wire.MsgQueryGpus:
		_ = s.send(ctx, cc, wire.MsgGpuList, wire.GpuList{Gpus: s.wireGpus()})

	case wire.MsgQueryMetrics:
		snap := s.metrics.Snapshot()
		_ = s.send(ctx, cc, wire.MsgMetricsData, wire.MetricsData{
			ConnectionsTotal:  snap.ConnectionsTotal,
			ConnectionsActive: snap.ConnectionsActive,
			RequestsTotal:     snap.RequestsTotal,
			ErrorsTotal:       snap.ErrorsTotal,
			CudaCommands:      snap.CudaCommands,
			VulkanCommands:    snap.VulkanCommands,
			UptimeSeconds:     snap.UptimeSeconds,
		})

	case wire.MsgCudaCommand:
		var cmd wire.CudaCommand
		if err := wire.DecodeBody(body, &cmd); err != nil {
			return
		}
		result := s.cuda.Execute(ctx, cc.sessionID, s.cfg.ServerID, cmd)
		s.metrics.RecordCudaCommand()
		s.metrics.RecordRequest(result.Kind == wire.ResultError)
		_ = s.send(ctx, cc, wire.MsgCudaResponse, wire.CudaResponse{RequestID: cmd.RequestID, Result: result})

	case wire.MsgCudaBatch:
		var batch wire.CudaBatch
		if err := wire.DecodeBody(body, &batch); err != nil {
			return
		}
		resp := s.cuda.ExecuteBatch(ctx, cc.sessionID, s.cfg.ServerID, batch)
		s.metrics.RecordRequest(false)
		_ = s.send(ctx, cc, wire.MsgCudaBatchResponse, resp)

	case wire.MsgVulkanCommand:
		var cmd wire.VulkanCommand
		if err := wire.DecodeBody(body, &cmd); err != nil {
			return
		}
		result := s.vulkan.Execute(ctx, cc.sessionID, s.cfg.ServerID, cmd)
		s.metrics.RecordVulkanCommand()
		s.metrics.RecordRequest(result.Kind == wire.ResultError)
		_ = s.send(ctx, cc, wire.MsgVulkanResponse, wire.VulkanResponse{RequestID: cmd.RequestID, Result: result})

	case wire.MsgSubmitRecordedCommands:
		var msg wire.SubmitRecordedCommands
		if err := wire.DecodeBody(body, &msg); err != nil {
			return
		}
		result := s.vulkan.ReplayRecordedCommands(ctx, cc.sessionID, s.cfg.ServerID, msg)
		s.metrics.RecordRequest(result.Kind == wire.ResultError)
		_ = s.send(ctx, cc, wire.MsgVulkanResponse, wire.VulkanResponse{RequestID: msg.RequestID, Result: result})

	default:
		logger.WarnCtx(ctx, "unhandled message type", "type", msgType)
	}
}

func (s *Server) send(ctx context.Context, cc *clientConn, msgType wire.MessageType, body any) error {
	f, err := wire.EncodeFrame(msgType, body, 0, wire.FlagNone)
	if err != nil {
		return err
	}
	return cc.conn.WriteFrame(ctx, f)
}

func (s *Server) receive(ctx context.Context, cc *clientConn) (wire.MessageType, []byte, error) {
	f, err := cc.conn.ReadFrame(ctx)
	if err != nil {
		return 0, nil, err
	}
	return wire.Decode(f.Payload)
}
