package interpose

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// startFakeDaemon answers exactly one request with the given response
// message/body, mirroring the IPC server's one-request-per-frame contract
// without pulling in the whole daemon.
func startFakeDaemon(t *testing.T, respType wire.MessageType, respBody any) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := wire.NewFrameReader(conn)
		for {
			frame, err := wire.ReadFrame(r)
			if err != nil {
				return
			}
			reply, err := wire.EncodeFrame(respType, respBody, frame.StreamID, 0)
			if err != nil {
				return
			}
			if err := wire.WriteFrame(conn, reply); err != nil {
				return
			}
		}
	}()
	return socketPath
}

func TestClient_SendCuda_RoundTripsResult(t *testing.T) {
	socketPath := startFakeDaemon(t, wire.MsgCudaResponse, wire.CudaResponse{
		RequestID: 1,
		Result:    wire.CommandResult{Kind: wire.ResultScalar, Scalar: 4},
	})
	c := NewClient(socketPath)

	result, err := c.SendCuda(cuda.OpDeviceGetCount, nil)
	require.NoError(t, err)
	assert.Equal(t, wire.ResultScalar, result.Kind)
	assert.EqualValues(t, 4, result.Scalar)
}

func TestClient_SendCuda_WrongResponseTypeErrors(t *testing.T) {
	socketPath := startFakeDaemon(t, wire.MsgError, struct{}{})
	c := NewClient(socketPath)

	_, err := c.SendCuda(cuda.OpDeviceGetCount, nil)
	assert.Error(t, err)
}

func TestClient_QueryGpus_ReturnsDecodedList(t *testing.T) {
	socketPath := startFakeDaemon(t, wire.MsgGpuList, wire.GpuList{
		Gpus: []wire.GpuInfo{{LocalOrdinal: 0, DeviceName: "sim-0"}},
	})
	c := NewClient(socketPath)

	gpus, err := c.QueryGpus()
	require.NoError(t, err)
	require.Len(t, gpus, 1)
	assert.Equal(t, "sim-0", gpus[0].DeviceName)
}

func TestClient_SubmitRecorded_SendsCommandBufferAndCommands(t *testing.T) {
	socketPath := startFakeDaemon(t, wire.MsgVulkanResponse, wire.VulkanResponse{
		Result: wire.CommandResult{Kind: wire.ResultScalar},
	})
	c := NewClient(socketPath)

	cmdBuf := handle.Network{ServerID: 1, SessionID: 2, ResourceID: 3, Type: handle.VkCommandBuffer}
	result, err := c.SubmitRecorded(cmdBuf, []wire.VulkanCommand{{Opcode: 0}})
	require.NoError(t, err)
	assert.Equal(t, wire.ResultScalar, result.Kind)
}

func TestClient_ReusesConnectionAcrossCalls(t *testing.T) {
	socketPath := startFakeDaemon(t, wire.MsgCudaResponse, wire.CudaResponse{
		Result: wire.CommandResult{Kind: wire.ResultScalar, Scalar: 1},
	})
	c := NewClient(socketPath)

	_, err := c.SendCuda(cuda.OpDeviceGetCount, nil)
	require.NoError(t, err)
	firstConn := c.conn

	_, err = c.SendCuda(cuda.OpDeviceGetCount, nil)
	require.NoError(t, err)
	assert.Same(t, firstConn, c.conn)
}
