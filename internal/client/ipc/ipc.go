// Package ipc runs the local endpoint the interpose shim talks to: a
// unix domain socket carrying the same length-delimited frame format as
// the client-backend wire protocol, but with no transport authentication
// — the socket's filesystem permissions are the only access control, the
// same trust boundary original_source's daemon.rs assumes for its local
// IPC listener.
package ipc

import (
	"context"
	"net"
	"os"

	"github.com/Fill84/RGPU-sub000/internal/client/daemon"
	"github.com/Fill84/RGPU-sub000/internal/logger"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// Server accepts local connections from the interpose shim and dispatches
// each frame to a Daemon.
type Server struct {
	socketPath string
	daemon     *daemon.Daemon
}

// New creates an IPC server bound to socketPath, not yet listening.
func New(socketPath string, d *daemon.Daemon) *Server {
	return &Server{socketPath: socketPath, daemon: d}
}

// Run listens on the configured unix socket until ctx is cancelled,
// spawning one goroutine per accepted connection.
func (s *Server) Run(ctx context.Context) error {
	_ = os.Remove(s.socketPath)
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.WarnCtx(ctx, "ipc: accept failed", "error", err)
			continue
		}
		go s.serve(ctx, conn)
	}
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	r := wire.NewFrameReader(conn)
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := wire.ReadFrame(r)
		if err != nil {
			return
		}
		msgType, payload, err := wire.Decode(frame.Payload)
		if err != nil {
			logger.WarnCtx(ctx, "ipc: decode failed", "error", err)
			return
		}

		respType, respBody, err := s.dispatch(ctx, msgType, payload)
		if err != nil {
			logger.WarnCtx(ctx, "ipc: dispatch failed", "msg_type", msgType, "error", err)
			return
		}
		replyFrame, err := wire.EncodeFrame(respType, respBody, frame.StreamID, 0)
		if err != nil {
			logger.WarnCtx(ctx, "ipc: encode reply failed", "error", err)
			return
		}
		if err := wire.WriteFrame(conn, replyFrame); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, msgType wire.MessageType, payload []byte) (wire.MessageType, any, error) {
	switch msgType {
	case wire.MsgPing:
		return wire.MsgPong, struct{}{}, nil

	case wire.MsgQueryGpus:
		return wire.MsgGpuList, wire.GpuList{Gpus: s.daemon.QueryGpus()}, nil

	case wire.MsgCudaCommand:
		var cmd wire.CudaCommand
		if err := wire.DecodeBody(payload, &cmd); err != nil {
			return 0, nil, err
		}
		result, err := s.daemon.DispatchCuda(ctx, cmd)
		if err != nil {
			result = errorResult(err)
		}
		return wire.MsgCudaResponse, wire.CudaResponse{RequestID: cmd.RequestID, Result: result}, nil

	case wire.MsgCudaBatch:
		var batch wire.CudaBatch
		if err := wire.DecodeBody(payload, &batch); err != nil {
			return 0, nil, err
		}
		resp, err := s.daemon.DispatchCudaBatch(ctx, batch)
		if err != nil {
			return 0, nil, err
		}
		return wire.MsgCudaBatchResponse, resp, nil

	case wire.MsgVulkanCommand:
		var cmd wire.VulkanCommand
		if err := wire.DecodeBody(payload, &cmd); err != nil {
			return 0, nil, err
		}
		result, err := s.daemon.DispatchVulkan(ctx, cmd)
		if err != nil {
			result = errorResult(err)
		}
		return wire.MsgVulkanResponse, wire.VulkanResponse{RequestID: cmd.RequestID, Result: result}, nil

	case wire.MsgSubmitRecordedCommands:
		var msg wire.SubmitRecordedCommands
		if err := wire.DecodeBody(payload, &msg); err != nil {
			return 0, nil, err
		}
		result, err := s.daemon.DispatchRecordedCommands(ctx, msg)
		if err != nil {
			result = errorResult(err)
		}
		return wire.MsgVulkanResponse, wire.VulkanResponse{RequestID: msg.RequestID, Result: result}, nil

	default:
		return wire.MsgError, struct{}{}, nil
	}
}

func errorResult(err error) wire.CommandResult {
	return wire.CommandResult{
		Kind:  wire.ResultError,
		Error: wire.CommandError{Message: err.Error()},
	}
}
