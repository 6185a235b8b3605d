// Package interpose holds the logic shared by the CUDA and Vulkan
// interpose shims: dialing the client daemon's local IPC socket, sending
// one request and waiting for its reply, and the client-local handle
// table + dispatch-header plumbing every exported driver entry point
// needs. The actual //export'd C ABI functions live in cmd/rgpu-cuda-interpose
// and cmd/rgpu-vk-icd, which must be package main to support
// -buildmode=c-shared; this package is their shared, testable core.
package interpose

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Fill84/RGPU-sub000/internal/client/handlestore"
	"github.com/Fill84/RGPU-sub000/internal/client/recorder"
	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/protocol/vulkan"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// Marker is the value the exported zero-argument marker function
// (rgpuInterposeMarker) returns, so a tool that loads the library can tell
// this shim apart from a genuine driver library (spec.md §4/§10).
// rgpu-verify does not call it.
const Marker = 1

// RequestTimeout bounds how long a single intercepted call waits on the
// local daemon before giving up and surfacing a driver-style error.
const RequestTimeout = 30 * time.Second

// Client is a connection to the local client daemon's IPC socket, shared
// by every exported entry point in the process.
type Client struct {
	socketPath string

	reqMu sync.Mutex // held across one request's write and its reply read

	mu   sync.Mutex
	conn net.Conn

	Handles  *handlestore.Store
	Recorder *recorder.Recorder
}

// NewClient creates a Client bound to socketPath. The connection is
// established lazily on first use so loading the shim never blocks.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		Handles:    handlestore.New(),
		Recorder:   recorder.New(),
	}
}

func (c *Client) ensureConn() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := net.DialTimeout("unix", c.socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("interpose: dial daemon: %w", err)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) dropConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// sendRecv sends one frame and blocks for its reply. Every exported call
// goes through here so the shim never holds more than one request
// outstanding per connection, matching original_source ipc_client.rs's
// synchronous request/response model.
func (c *Client) sendRecv(msgType wire.MessageType, body any, respType wire.MessageType, resp any) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	conn, err := c.ensureConn()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()
	_ = ctx // the unix conn itself has no per-call deadline API beyond SetDeadline

	conn.SetDeadline(time.Now().Add(RequestTimeout))

	frame, err := wire.EncodeFrame(msgType, body, 0, 0)
	if err != nil {
		return err
	}
	if err := wire.WriteFrame(conn, frame); err != nil {
		c.dropConn()
		return err
	}
	reply, err := wire.ReadFrame(wire.NewFrameReader(conn))
	if err != nil {
		c.dropConn()
		return err
	}
	gotType, payload, err := wire.Decode(reply.Payload)
	if err != nil {
		return err
	}
	if gotType != respType {
		return fmt.Errorf("interpose: expected %v, got %v", respType, gotType)
	}
	return wire.DecodeBody(payload, resp)
}

// SendCuda issues one CUDA command and returns its result.
func (c *Client) SendCuda(op cuda.Opcode, args any) (wire.CommandResult, error) {
	body, err := wire.EncodeBody(args)
	if err != nil {
		return wire.CommandResult{}, err
	}
	var resp wire.CudaResponse
	err = c.sendRecv(wire.MsgCudaCommand, wire.CudaCommand{Opcode: op, Args: body}, wire.MsgCudaResponse, &resp)
	return resp.Result, err
}

// SendVulkan issues one Vulkan command and returns its result.
func (c *Client) SendVulkan(op vulkan.Opcode, args any) (wire.CommandResult, error) {
	body, err := wire.EncodeBody(args)
	if err != nil {
		return wire.CommandResult{}, err
	}
	var resp wire.VulkanResponse
	err = c.sendRecv(wire.MsgVulkanCommand, wire.VulkanCommand{Opcode: op, Args: body}, wire.MsgVulkanResponse, &resp)
	return resp.Result, err
}

// SubmitRecorded ships a command buffer's buffered vkCmd* calls, called
// from vkQueueSubmit after the real replay is represented by one message
// (S5).
func (c *Client) SubmitRecorded(cmdBuf handle.Network, cmds []wire.VulkanCommand) (wire.CommandResult, error) {
	var resp wire.VulkanResponse
	err := c.sendRecv(wire.MsgSubmitRecordedCommands, wire.SubmitRecordedCommands{
		CommandBuffer:    cmdBuf,
		RecordedCommands: cmds,
	}, wire.MsgVulkanResponse, &resp)
	return resp.Result, err
}

// QueryGpus asks the daemon for the merged GPU list (cuDeviceGetCount's
// count and every cuDeviceGet ordinal are answered from this view).
func (c *Client) QueryGpus() ([]wire.GpuInfo, error) {
	var resp wire.GpuList
	err := c.sendRecv(wire.MsgQueryGpus, wire.QueryGpus{}, wire.MsgGpuList, &resp)
	return resp.Gpus, err
}
