package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/gpu"
	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

func testDriver() gpu.CudaDriver {
	return gpu.NewSimulatedCudaDriver([]gpu.Info{
		{LocalOrdinal: 0, DeviceName: "sim-0", VRAMBytes: 1 << 30},
	})
}

func encodeArgs(t *testing.T, v any) []byte {
	t.Helper()
	b, err := wire.EncodeBody(v)
	require.NoError(t, err)
	return b
}

func TestExecute_DeviceGetCount_NoDriverReturnsUnavailable(t *testing.T) {
	e := NewCudaExecutor(nil)
	res := e.Execute(context.Background(), 1, 7, wire.CudaCommand{Opcode: cuda.OpDeviceGetCount})
	assert.Equal(t, wire.ResultError, res.Kind)
	assert.Equal(t, wire.ErrorKindDriverUnavailable, res.Error.Kind)
}

func TestExecute_DeviceGetCount_ReturnsScalar(t *testing.T) {
	e := NewCudaExecutor(testDriver())
	res := e.Execute(context.Background(), 1, 7, wire.CudaCommand{Opcode: cuda.OpDeviceGetCount})
	require.Equal(t, wire.ResultScalar, res.Kind)
	assert.Equal(t, uint64(1), res.Scalar)
}

func TestExecute_DeviceGetName_UnknownHandleIsInvalidHandleError(t *testing.T) {
	e := NewCudaExecutor(testDriver())
	args := encodeArgs(t, cuda.DeviceGetNameArgs{Device: handle.Network{Type: handle.CuDevice, ResourceID: 999}})
	res := e.Execute(context.Background(), 1, 7, wire.CudaCommand{Opcode: cuda.OpDeviceGetName, Args: args})
	require.Equal(t, wire.ResultError, res.Kind)
	assert.Equal(t, wire.ErrorKindInvalidHandle, res.Error.Kind)
}

func TestExecute_CtxLifecycle_CreateThenDestroy(t *testing.T) {
	e := NewCudaExecutor(testDriver())
	ctx := context.Background()

	devArgs := encodeArgs(t, cuda.DeviceGetArgs{Ordinal: 0})
	devRes := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpDeviceGet, Args: devArgs})
	require.Equal(t, wire.ResultHandle, devRes.Kind)

	ctxArgs := encodeArgs(t, cuda.CtxCreateArgs{Device: devRes.Handle, Flags: 0})
	ctxRes := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpCtxCreate, Args: ctxArgs})
	require.Equal(t, wire.ResultHandle, ctxRes.Kind)
	assert.Equal(t, handle.CuContext, ctxRes.Handle.Type)

	destroyArgs := encodeArgs(t, cuda.CtxDestroyArgs{Context: ctxRes.Handle})
	destroyRes := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpCtxDestroy, Args: destroyArgs})
	assert.Equal(t, wire.ResultScalar, destroyRes.Kind)

	// the handle no longer resolves once destroyed.
	again := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpCtxDestroy, Args: destroyArgs})
	assert.Equal(t, wire.ResultError, again.Kind)
	assert.Equal(t, wire.ErrorKindInvalidHandle, again.Error.Kind)
}

func TestExecute_MemAllocFreeRoundTrip(t *testing.T) {
	e := NewCudaExecutor(testDriver())
	ctx := context.Background()

	devRes := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpDeviceGet, Args: encodeArgs(t, cuda.DeviceGetArgs{Ordinal: 0})})
	ctxRes := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpCtxCreate, Args: encodeArgs(t, cuda.CtxCreateArgs{Device: devRes.Handle})})

	allocRes := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpMemAlloc, Args: encodeArgs(t, cuda.MemAllocArgs{Context: ctxRes.Handle, Bytes: 4096})})
	require.Equal(t, wire.ResultHandle, allocRes.Kind)
	require.NotZero(t, allocRes.Scalar, "device pointer is reported back as Scalar")

	freeRes := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpMemFree, Args: encodeArgs(t, cuda.MemFreeArgs{DevicePtr: allocRes.Scalar})})
	assert.Equal(t, wire.ResultScalar, freeRes.Kind)

	// freeing an already-freed pointer is an invalid-handle error, not a crash.
	again := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpMemFree, Args: encodeArgs(t, cuda.MemFreeArgs{DevicePtr: allocRes.Scalar})})
	assert.Equal(t, wire.ResultError, again.Kind)
}

func TestExecute_MemcpyHtoDThenDtoH_RoundTripsData(t *testing.T) {
	e := NewCudaExecutor(testDriver())
	ctx := context.Background()

	devRes := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpDeviceGet, Args: encodeArgs(t, cuda.DeviceGetArgs{Ordinal: 0})})
	ctxRes := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpCtxCreate, Args: encodeArgs(t, cuda.CtxCreateArgs{Device: devRes.Handle})})
	allocRes := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpMemAlloc, Args: encodeArgs(t, cuda.MemAllocArgs{Context: ctxRes.Handle, Bytes: 4})})

	payload := []byte{1, 2, 3, 4}
	htod := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpMemcpyHtoD, Args: encodeArgs(t, cuda.MemcpyHtoDArgs{DevicePtr: allocRes.Scalar, HostData: payload})})
	require.Equal(t, wire.ResultScalar, htod.Kind)

	dtoh := e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpMemcpyDtoH, Args: encodeArgs(t, cuda.MemcpyDtoHArgs{DevicePtr: allocRes.Scalar, Bytes: 4})})
	require.Equal(t, wire.ResultBuffer, dtoh.Kind)
	assert.Equal(t, payload, dtoh.Buffer)
}

func TestExecuteBatch_ContinuesPastFailureAndReturnsEveryResponse(t *testing.T) {
	e := NewCudaExecutor(testDriver())
	ctx := context.Background()

	badDestroy := encodeArgs(t, cuda.CtxDestroyArgs{Context: handle.Network{Type: handle.CuContext, ResourceID: 404}})
	batch := wire.CudaBatch{
		RequestID: 1,
		Commands: []wire.CudaCommand{
			{Opcode: cuda.OpDeviceGetCount},
			{Opcode: cuda.OpCtxDestroy, Args: badDestroy},
			{Opcode: cuda.OpDeviceGetCount},
		},
	}

	resp := e.ExecuteBatch(ctx, 1, 7, batch)
	require.Len(t, resp.Responses, 3)
	assert.Equal(t, wire.ResultScalar, resp.Responses[0].Kind)
	assert.Equal(t, wire.ResultError, resp.Responses[1].Kind)
	assert.Equal(t, wire.ResultScalar, resp.Responses[2].Kind, "batch keeps executing after a failed command")
}

func TestCleanupSession_ForgetsSessionAndIsSafeToCallTwice(t *testing.T) {
	e := NewCudaExecutor(testDriver())
	ctx := context.Background()

	e.Execute(ctx, 1, 7, wire.CudaCommand{Opcode: cuda.OpDeviceGetCount})
	e.CleanupSession(ctx, 1)
	e.CleanupSession(ctx, 1)

	e.mu.Lock()
	_, tracked := e.sessions[1]
	e.mu.Unlock()
	assert.False(t, tracked)
}

func TestSessionFor_IsStableAcrossCalls(t *testing.T) {
	e := NewCudaExecutor(testDriver())
	a := e.sessionFor(1, 7)
	b := e.sessionFor(1, 7)
	assert.Same(t, a, b)
}
