// Package daemon wires together the client-side pieces — pool, router,
// supervisors, handle store, recorder — into the single orchestrator the
// IPC server and (eventually) an in-process interpose shim call into.
// It is the Go shape of original_source daemon.rs's ClientDaemon.
package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/Fill84/RGPU-sub000/internal/client/pool"
	"github.com/Fill84/RGPU-sub000/internal/client/recorder"
	"github.com/Fill84/RGPU-sub000/internal/client/router"
	"github.com/Fill84/RGPU-sub000/internal/client/supervisor"
	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/logger"
	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/transport"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// Daemon is the client process's central coordinator: one Supervisor per
// configured backend feeding a shared Pool, plus the Recorder every
// command-buffer recording pass through.
type Daemon struct {
	cfg *config.ClientConfig

	pool        *pool.Pool
	recorder    *recorder.Recorder
	supervisors map[string]*supervisor.Supervisor

	mu       sync.Mutex
	reqCount uint64
}

// New builds a Daemon from cfg, creating one Supervisor per configured
// backend but not yet connecting any of them — call Run to start.
func New(cfg *config.ClientConfig) *Daemon {
	p := pool.New(cfg.PoolOrdering)
	d := &Daemon{
		cfg:         cfg,
		pool:        p,
		recorder:    recorder.New(),
		supervisors: make(map[string]*supervisor.Supervisor),
	}
	for _, b := range cfg.Backends {
		d.supervisors[b.Name] = supervisor.New(b, cfg, p)
	}
	return d
}

// Run starts every backend's Supervisor loop and blocks until ctx is
// cancelled.
func (d *Daemon) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for name, sup := range d.supervisors {
		wg.Add(1)
		go func(name string, sup *supervisor.Supervisor) {
			defer wg.Done()
			sup.Run(ctx)
		}(name, sup)
	}
	wg.Wait()
}

func (d *Daemon) nextRequestID() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqCount++
	return d.reqCount
}

// connFor picks the Supervisor whose backend owns serverID.
func (d *Daemon) connFor(serverID uint16) (transport.Conn, error) {
	for _, sup := range d.supervisors {
		if conn, sid, ok := sup.Conn(); ok && sid == serverID {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("daemon: no live connection to server %d", serverID)
}

// defaultConn picks the connection global/creation calls fall back to
// when they carry no routing handle (the pool's default backend).
func (d *Daemon) defaultConn() (transport.Conn, uint16, error) {
	serverID, err := d.pool.DefaultServerID()
	if err != nil {
		return nil, 0, err
	}
	conn, err := d.connFor(serverID)
	return conn, serverID, err
}

func (d *Daemon) sendRecv(ctx context.Context, conn transport.Conn, msgType wire.MessageType, body any, respType wire.MessageType, resp any) error {
	frame, err := wire.EncodeFrame(msgType, body, 0, 0)
	if err != nil {
		return err
	}
	if err := conn.WriteFrame(ctx, frame); err != nil {
		return err
	}
	reply, err := conn.ReadFrame(ctx)
	if err != nil {
		return err
	}
	gotType, payload, err := wire.Decode(reply.Payload)
	if err != nil {
		return err
	}
	if gotType != respType {
		return fmt.Errorf("daemon: expected %v, got %v", respType, gotType)
	}
	return wire.DecodeBody(payload, resp)
}

// DispatchCuda routes one CUDA command to the backend that owns it and
// returns its result, mirroring forward_cuda_command_pooled. cuDeviceGetCount
// and cuDeviceGet are intercepted before routing: the former answers from
// the merged pool view without contacting any backend, the latter remaps
// the caller's pool-wide ordinal to the owning backend's own local
// ordinal before forwarding (P2, S2). Both only ever see CUDA-capable
// GPUs (P5, §4.6) — a backend's Vulkan-only device is invisible to this
// path even though it still occupies a slot in the pool's merged view.
func (d *Daemon) DispatchCuda(ctx context.Context, cmd wire.CudaCommand) (wire.CommandResult, error) {
	cmd.RequestID = d.nextRequestID()

	if cmd.Opcode == cuda.OpDeviceGetCount {
		return wire.CommandResult{Kind: wire.ResultScalar, Scalar: uint64(len(d.pool.CudaVirtual()))}, nil
	}
	if cmd.Opcode == cuda.OpDeviceGet {
		var args cuda.DeviceGetArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return wire.CommandResult{}, err
		}
		serverID, localOrdinal, err := d.pool.ResolveCudaOrdinal(args.Ordinal)
		if err != nil {
			return wire.CommandResult{}, err
		}
		remapped, err := wire.EncodeBody(&cuda.DeviceGetArgs{Ordinal: localOrdinal})
		if err != nil {
			return wire.CommandResult{}, err
		}
		cmd.Args = remapped
		conn, err := d.connFor(serverID)
		if err != nil {
			return wire.CommandResult{}, err
		}
		var resp wire.CudaResponse
		if err := d.sendRecv(ctx, conn, wire.MsgCudaCommand, cmd, wire.MsgCudaResponse, &resp); err != nil {
			return wire.CommandResult{}, err
		}
		return resp.Result, nil
	}

	routing, err := router.FromCudaCommand(cmd)
	if err != nil {
		return wire.CommandResult{}, err
	}
	_, conn, err := d.resolveRoute(routing)
	if err != nil {
		return wire.CommandResult{}, err
	}
	cmd.RoutingHandle = routing.Handle

	var resp wire.CudaResponse
	if err := d.sendRecv(ctx, conn, wire.MsgCudaCommand, cmd, wire.MsgCudaResponse, &resp); err != nil {
		return wire.CommandResult{}, err
	}
	return resp.Result, nil
}

// DispatchCudaBatch forwards an entire CudaBatch to the backend owning
// its first command's routing handle, as original_source's CudaBatch
// handling does.
func (d *Daemon) DispatchCudaBatch(ctx context.Context, batch wire.CudaBatch) (wire.CudaBatchResponse, error) {
	batch.RequestID = d.nextRequestID()

	var conn transport.Conn
	var err error
	if len(batch.Commands) == 0 {
		conn, _, err = d.defaultConn()
	} else {
		routing, rerr := router.FromCudaCommand(batch.Commands[0])
		if rerr != nil {
			return wire.CudaBatchResponse{}, rerr
		}
		_, conn, err = d.resolveRoute(routing)
	}
	if err != nil {
		return wire.CudaBatchResponse{}, err
	}

	var resp wire.CudaBatchResponse
	if err := d.sendRecv(ctx, conn, wire.MsgCudaBatch, batch, wire.MsgCudaBatchResponse, &resp); err != nil {
		return wire.CudaBatchResponse{}, err
	}
	return resp, nil
}

// DispatchVulkan routes one Vulkan command, handling the broadcast
// opcodes (vkCreateInstance, vkEnumeratePhysicalDevices) by fanning out
// to every connected backend instead of a single one (S3).
func (d *Daemon) DispatchVulkan(ctx context.Context, cmd wire.VulkanCommand) (wire.CommandResult, error) {
	cmd.RequestID = d.nextRequestID()

	if cmd.Opcode.IsBroadcast() {
		return d.broadcastVulkan(ctx, cmd)
	}

	routing, err := router.FromVulkanCommand(cmd)
	if err != nil {
		return wire.CommandResult{}, err
	}
	_, conn, err := d.resolveRoute(routing)
	if err != nil {
		return wire.CommandResult{}, err
	}
	cmd.RoutingHandle = routing.Handle

	var resp wire.VulkanResponse
	if err := d.sendRecv(ctx, conn, wire.MsgVulkanCommand, cmd, wire.MsgVulkanResponse, &resp); err != nil {
		return wire.CommandResult{}, err
	}
	return resp.Result, nil
}

// broadcastVulkan sends cmd to every connected backend and merges the
// successful results. vkCreateInstance keeps only the first reply's
// handle encoding (each backend still gets its own Instance so recorded
// commands for it can be routed later); vkEnumeratePhysicalDevices
// concatenates every backend's physical device list, which is what makes
// the multi-server pool look like one fleet of GPUs to the caller (S3).
func (d *Daemon) broadcastVulkan(ctx context.Context, cmd wire.VulkanCommand) (wire.CommandResult, error) {
	backends := d.pool.Backends()
	if len(backends) == 0 {
		return wire.CommandResult{}, fmt.Errorf("daemon: no backends connected for broadcast opcode %s", cmd.Opcode)
	}

	var merged []handle.Network
	var first wire.CommandResult
	var gotFirst bool

	for _, serverID := range backends {
		conn, err := d.connFor(serverID)
		if err != nil {
			logger.WarnCtx(ctx, "daemon: broadcast skipping unreachable backend", "server_id", serverID, "error", err)
			continue
		}
		var resp wire.VulkanResponse
		if err := d.sendRecv(ctx, conn, wire.MsgVulkanCommand, cmd, wire.MsgVulkanResponse, &resp); err != nil {
			logger.WarnCtx(ctx, "daemon: broadcast call failed", "server_id", serverID, "error", err)
			continue
		}
		if resp.Result.Kind == wire.ResultError {
			logger.WarnCtx(ctx, "daemon: broadcast call returned an error", "server_id", serverID, "code", resp.Result.Error.Code)
			continue
		}
		if !gotFirst {
			first = resp.Result
			gotFirst = true
		}
		merged = append(merged, resp.Result.Handles...)
	}
	if !gotFirst {
		return wire.CommandResult{}, fmt.Errorf("daemon: broadcast opcode %s failed on every backend", cmd.Opcode)
	}
	if len(merged) > 0 {
		first.Handles = merged
	}
	return first, nil
}

// DispatchRecordedCommands sends a command buffer's buffered vkCmd* calls
// as a single SubmitRecordedCommands message, routed by the command
// buffer's own owning backend (S5).
func (d *Daemon) DispatchRecordedCommands(ctx context.Context, msg wire.SubmitRecordedCommands) (wire.CommandResult, error) {
	msg.RequestID = d.nextRequestID()

	serverID, ok := d.pool.ServerIndexForHandle(msg.CommandBuffer)
	if !ok {
		return wire.CommandResult{}, fmt.Errorf("daemon: command buffer %s has no known owning backend", msg.CommandBuffer)
	}
	conn, err := d.connFor(serverID)
	if err != nil {
		return wire.CommandResult{}, err
	}

	var resp wire.VulkanResponse
	if err := d.sendRecv(ctx, conn, wire.MsgSubmitRecordedCommands, msg, wire.MsgVulkanResponse, &resp); err != nil {
		return wire.CommandResult{}, err
	}
	return resp.Result, nil
}

// QueryGpus returns the merged, pool-ordinal view of every connected
// backend's GPUs.
func (d *Daemon) QueryGpus() []wire.GpuInfo {
	virtual := d.pool.Virtual()
	out := make([]wire.GpuInfo, len(virtual))
	for i, v := range virtual {
		info := v.Info
		info.LocalOrdinal = v.Ordinal
		out[i] = info
	}
	return out
}

// Recorder exposes the shared command-buffer recorder to the interpose
// layer.
func (d *Daemon) Recorder() *recorder.Recorder { return d.recorder }

// resolveRoute turns a router.Routing into a concrete (serverID, conn)
// pair, resolving the ByDevicePtr/ByHostPtr cases through the pool's
// secondary index and falling back to the default backend for None.
func (d *Daemon) resolveRoute(r router.Routing) (uint16, transport.Conn, error) {
	var serverID uint16
	switch r.Kind {
	case router.ByHandle:
		id, ok := d.pool.ServerIndexForHandle(r.Handle)
		if !ok {
			return 0, nil, fmt.Errorf("daemon: handle %s has no known owning backend", r.Handle)
		}
		serverID = id
	case router.ByDevicePtr:
		id, ok := d.pool.ServerForDevicePtr(r.DevicePtr)
		if !ok {
			return 0, nil, fmt.Errorf("daemon: device pointer %#x has no known owning backend", r.DevicePtr)
		}
		serverID = id
	case router.ByHostPtr:
		id, ok := d.pool.ServerForHostPtr(r.HostPtr)
		if !ok {
			return 0, nil, fmt.Errorf("daemon: host pointer %#x has no known owning backend", r.HostPtr)
		}
		serverID = id
	default:
		conn, id, err := d.defaultConn()
		return id, conn, err
	}
	conn, err := d.connFor(serverID)
	return serverID, conn, err
}
