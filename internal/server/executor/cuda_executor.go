// Package executor dispatches CUDA and Vulkan commands to a session's
// driver calls, tracking every created resource in the session's handle
// tables and translating driver errors into wire.CommandResult values —
// the Go counterpart of original_source's rgpu-server CudaExecutor /
// VulkanExecutor.
package executor

import (
	"context"
	"math"
	"sync"

	"github.com/Fill84/RGPU-sub000/internal/gpu"
	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/server/session"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// CudaExecutor owns every session's CUDA handle tables and the driver
// (real or simulated) calls are made through.
type CudaExecutor struct {
	driver gpu.CudaDriver // nil means DriverUnavailable

	mu       sync.Mutex
	sessions map[uint32]*session.Session
}

// NewCudaExecutor constructs an executor. driver may be nil, in which case
// every command fails with DriverUnavailable (spec.md §7); no read-only
// query is answered from a fallback.
func NewCudaExecutor(driver gpu.CudaDriver) *CudaExecutor {
	return &CudaExecutor{driver: driver, sessions: make(map[uint32]*session.Session)}
}

func (e *CudaExecutor) sessionFor(id uint32, serverID uint16) *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		s = session.New(id, serverID)
		e.sessions[id] = s
	}
	return s
}

// CleanupSession runs the reverse-dependency destroy pass for session id
// and forgets it (S4, P3).
func (e *CudaExecutor) CleanupSession(ctx context.Context, id uint32) {
	e.mu.Lock()
	s, ok := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()
	if !ok || e.driver == nil {
		return
	}
	session.CleanupCuda(ctx, s, e.driver)
}

func unavailable(msg string) wire.CommandResult {
	return errorResult(wire.ErrorKindDriverUnavailable, 0, msg)
}

func errorResult(kind wire.ErrorKind, code int32, msg string) wire.CommandResult {
	return wire.CommandResult{
		Kind: wire.ResultError,
		Error: wire.CommandError{Kind: kind, Code: code, Message: msg},
	}
}

func scalarResult(v uint64) wire.CommandResult {
	return wire.CommandResult{Kind: wire.ResultScalar, Scalar: v}
}

func handleResult(h handle.Network) wire.CommandResult {
	return wire.CommandResult{Kind: wire.ResultHandle, Handle: h}
}

func handlesResult(hs []handle.Network) wire.CommandResult {
	return wire.CommandResult{Kind: wire.ResultHandles, Handles: hs}
}

func bufferResult(b []byte) wire.CommandResult {
	return wire.CommandResult{Kind: wire.ResultBuffer, Buffer: b}
}

func driverErrorResult(err error) wire.CommandResult {
	return errorResult(wire.ErrorKindDriverError, -1, err.Error())
}

// Execute runs one CudaCommand against sessionID's handle tables and the
// underlying driver, returning the response to send back on the wire.
func (e *CudaExecutor) Execute(ctx context.Context, sessionID uint32, serverID uint16, cmd wire.CudaCommand) wire.CommandResult {
	if e.driver == nil {
		return unavailable("no CUDA driver loaded")
	}
	s := e.sessionFor(sessionID, serverID)

	switch cmd.Opcode {
	case cuda.OpDeviceGetCount:
		if e.driver == nil {
			return unavailable("no CUDA driver loaded")
		}
		n, err := e.driver.DeviceCount(ctx)
		if err != nil {
			return driverErrorResult(err)
		}
		return scalarResult(uint64(n))

	case cuda.OpDeviceGet:
		var args cuda.DeviceGetArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		if e.driver == nil {
			return unavailable("no CUDA driver loaded")
		}
		h := s.Allocate(handle.CuDevice, uint64(args.Ordinal))
		return handleResult(h)

	case cuda.OpDeviceGetName:
		var args cuda.DeviceGetNameArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ordinal, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		name, err := e.driver.DeviceName(ctx, int(ordinal))
		if err != nil {
			return driverErrorResult(err)
		}
		return bufferResult([]byte(name))

	case cuda.OpDeviceGetUuid:
		var args cuda.DeviceGetUuidArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ordinal, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		uuid, err := e.driver.DeviceUUID(ctx, int(ordinal))
		if err != nil {
			return driverErrorResult(err)
		}
		return bufferResult([]byte(uuid))

	case cuda.OpDeviceGetPCIBusId:
		var args cuda.DeviceGetPCIBusIdArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ordinal, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		id, err := e.driver.DevicePCIBusID(ctx, int(ordinal))
		if err != nil {
			return driverErrorResult(err)
		}
		return bufferResult([]byte(id))

	case cuda.OpDeviceTotalMem:
		var args cuda.DeviceTotalMemArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ordinal, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		bytes, err := e.driver.DeviceTotalMem(ctx, int(ordinal))
		if err != nil {
			return driverErrorResult(err)
		}
		return scalarResult(bytes)

	case cuda.OpCtxCreate:
		var args cuda.CtxCreateArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ordinal, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if e.driver == nil {
			return unavailable("no CUDA driver loaded")
		}
		localID, err := e.driver.CtxCreate(ctx, int(ordinal), args.Flags)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.CuContext, localID))

	case cuda.OpCtxDestroy:
		var args cuda.CtxDestroyArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(ctx, s, args.Context, func(id uint64) error { return e.driver.CtxDestroy(ctx, id) })

	case cuda.OpCtxSetCurrent:
		var args cuda.CtxSetCurrentArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		if _, err := s.Get(args.Context); err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		// cuCtxSetCurrent only rebinds the calling thread's current-context
		// slot; the driver has no call for it beyond validating the handle.
		return wire.CommandResult{Kind: wire.ResultScalar}

	case cuda.OpModuleLoad:
		var args cuda.ModuleLoadArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ctxID, err := s.Get(args.Context)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.ModuleLoad(ctx, ctxID, args.Data)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.CuModule, localID))

	case cuda.OpModuleLoadData:
		var args cuda.ModuleLoadDataArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ctxID, err := s.Get(args.Context)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.ModuleLoad(ctx, ctxID, args.Image)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.CuModule, localID))

	case cuda.OpModuleUnload:
		var args cuda.ModuleUnloadArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(ctx, s, args.Module, func(id uint64) error { return e.driver.ModuleUnload(ctx, id) })

	case cuda.OpModuleGetFunction:
		var args cuda.ModuleGetFunctionArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		modID, err := s.Get(args.Module)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.ModuleGetFunction(ctx, modID, args.Name)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.CuFunction, localID))

	case cuda.OpMemAlloc:
		var args cuda.MemAllocArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ctxID, err := s.Get(args.Context)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, devicePtr, err := e.driver.MemAlloc(ctx, ctxID, args.Bytes)
		if err != nil {
			return driverErrorResult(err)
		}
		h := s.Allocate(handle.CuDevicePtr, devicePtr)
		_ = localID
		s.AllocateDevicePtr(devicePtr, h)
		return wire.CommandResult{Kind: wire.ResultHandle, Handle: h, Scalar: devicePtr}

	case cuda.OpMemFree:
		var args cuda.MemFreeArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		h, ok := s.ResolveDevicePtr(args.DevicePtr)
		if !ok {
			return errorResult(wire.ErrorKindInvalidHandle, 0, "unknown device pointer")
		}
		if err := e.driver.MemFree(ctx, args.DevicePtr); err != nil {
			return driverErrorResult(err)
		}
		s.RemoveDevicePtr(args.DevicePtr)
		s.Remove(h)
		return wire.CommandResult{Kind: wire.ResultScalar}

	case cuda.OpMemcpyHtoD:
		var args cuda.MemcpyHtoDArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		if _, ok := s.ResolveDevicePtr(args.DevicePtr); !ok {
			return errorResult(wire.ErrorKindInvalidHandle, 0, "unknown device pointer")
		}
		if err := e.driver.MemcpyHtoD(ctx, args.DevicePtr, args.HostData); err != nil {
			return driverErrorResult(err)
		}
		return wire.CommandResult{Kind: wire.ResultScalar}

	case cuda.OpMemcpyDtoH:
		var args cuda.MemcpyDtoHArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		if _, ok := s.ResolveDevicePtr(args.DevicePtr); !ok {
			return errorResult(wire.ErrorKindInvalidHandle, 0, "unknown device pointer")
		}
		data, err := e.driver.MemcpyDtoH(ctx, args.DevicePtr, args.Bytes)
		if err != nil {
			return driverErrorResult(err)
		}
		return bufferResult(data)

	case cuda.OpMemcpyDtoD:
		var args cuda.MemcpyDtoDArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		if err := e.driver.MemcpyDtoD(ctx, args.DstDevicePtr, args.SrcDevicePtr, args.Bytes); err != nil {
			return driverErrorResult(err)
		}
		return wire.CommandResult{Kind: wire.ResultScalar}

	case cuda.OpStreamCreate:
		var args cuda.StreamCreateArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ctxID, err := s.Get(args.Context)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.StreamCreate(ctx, ctxID, args.Flags)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.CuStream, localID))

	case cuda.OpStreamDestroy:
		var args cuda.StreamDestroyArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(ctx, s, args.Stream, func(id uint64) error { return e.driver.StreamDestroy(ctx, id) })

	case cuda.OpStreamSynchronize:
		var args cuda.StreamSynchronizeArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		localID, err := s.Get(args.Stream)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if err := e.driver.StreamSynchronize(ctx, localID); err != nil {
			return driverErrorResult(err)
		}
		return wire.CommandResult{Kind: wire.ResultScalar}

	case cuda.OpEventCreate:
		var args cuda.EventCreateArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ctxID, err := s.Get(args.Context)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.EventCreate(ctx, ctxID, args.Flags)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.CuEvent, localID))

	case cuda.OpEventDestroy:
		var args cuda.EventDestroyArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(ctx, s, args.Event, func(id uint64) error { return e.driver.EventDestroy(ctx, id) })

	case cuda.OpEventRecord:
		var args cuda.EventRecordArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		eventID, err := s.Get(args.Event)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		streamID, err := s.Get(args.Stream)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if err := e.driver.EventRecord(ctx, eventID, streamID); err != nil {
			return driverErrorResult(err)
		}
		return wire.CommandResult{Kind: wire.ResultScalar}

	case cuda.OpEventSynchronize:
		var args cuda.EventSynchronizeArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		localID, err := s.Get(args.Event)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if err := e.driver.EventSynchronize(ctx, localID); err != nil {
			return driverErrorResult(err)
		}
		return wire.CommandResult{Kind: wire.ResultScalar}

	case cuda.OpEventElapsedTime:
		var args cuda.EventElapsedTimeArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		startID, err := s.Get(args.Start)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		endID, err := s.Get(args.End)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		ms, err := e.driver.EventElapsedTime(ctx, startID, endID)
		if err != nil {
			return driverErrorResult(err)
		}
		return scalarResult(uint64(math.Float32bits(ms)))

	case cuda.OpLaunchKernel:
		var args cuda.LaunchKernelArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		fnID, err := s.Get(args.Function)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		streamID, err := s.Get(args.Stream)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		grid := [3]uint32{args.GridDimX, args.GridDimY, args.GridDimZ}
		block := [3]uint32{args.BlockDimX, args.BlockDimY, args.BlockDimZ}
		if err := e.driver.LaunchKernel(ctx, fnID, streamID, grid, block, args.SharedMemBytes, args.ParamData); err != nil {
			return driverErrorResult(err)
		}
		return wire.CommandResult{Kind: wire.ResultScalar}

	case cuda.OpMemPoolCreate:
		var args cuda.MemPoolCreateArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ctxID, err := s.Get(args.Context)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.MemPoolCreate(ctx, ctxID)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.CuMemPool, localID))

	case cuda.OpMemPoolDestroy:
		var args cuda.MemPoolDestroyArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(ctx, s, args.MemPool, func(id uint64) error { return e.driver.MemPoolDestroy(ctx, id) })

	case cuda.OpMemPoolTrimTo:
		var args cuda.MemPoolTrimToArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		localID, err := s.Get(args.MemPool)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if err := e.driver.MemPoolTrimTo(ctx, localID, args.MinBytes); err != nil {
			return driverErrorResult(err)
		}
		return wire.CommandResult{Kind: wire.ResultScalar}

	case cuda.OpLinkerCreate:
		var args cuda.LinkerCreateArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ctxID, err := s.Get(args.Context)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.LinkerCreate(ctx, ctxID)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.CuLinker, localID))

	case cuda.OpLinkerAddData:
		var args cuda.LinkerAddDataArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		localID, err := s.Get(args.Linker)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if err := e.driver.LinkerAddData(ctx, localID, args.Data, args.Name); err != nil {
			return driverErrorResult(err)
		}
		return wire.CommandResult{Kind: wire.ResultScalar}

	case cuda.OpLinkerComplete:
		var args cuda.LinkerCompleteArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		localID, err := s.Get(args.Linker)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		cubin, err := e.driver.LinkerComplete(ctx, localID)
		if err != nil {
			return driverErrorResult(err)
		}
		return bufferResult(cubin)

	case cuda.OpLinkerDestroy:
		var args cuda.LinkerDestroyArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(ctx, s, args.Linker, func(id uint64) error { return e.driver.LinkerDestroy(ctx, id) })

	case cuda.OpHostAlloc:
		var args cuda.HostAllocArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		ctxID, err := s.Get(args.Context)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		_, hostPtr, err := e.driver.HostAlloc(ctx, ctxID, args.Bytes, args.Flags)
		if err != nil {
			return driverErrorResult(err)
		}
		h := s.Allocate(handle.CuHostPtr, hostPtr)
		s.AllocateHostPtr(hostPtr, h)
		return wire.CommandResult{Kind: wire.ResultHandle, Handle: h, Scalar: hostPtr}

	case cuda.OpHostFree:
		var args cuda.HostFreeArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		h, ok := s.ResolveHostPtr(args.HostPtr)
		if !ok {
			return errorResult(wire.ErrorKindInvalidHandle, 0, "unknown host pointer")
		}
		if err := e.driver.HostFree(ctx, args.HostPtr); err != nil {
			return driverErrorResult(err)
		}
		s.RemoveHostPtr(args.HostPtr)
		s.Remove(h)
		return wire.CommandResult{Kind: wire.ResultScalar}

	default:
		return errorResult(wire.ErrorKindNotSupported, 0, "unknown CUDA opcode")
	}
}

func (e *CudaExecutor) destroySimple(ctx context.Context, s *session.Session, h handle.Network, destroy func(uint64) error) wire.CommandResult {
	localID, err := s.Get(h)
	if err != nil {
		return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
	}
	if err := destroy(localID); err != nil {
		return driverErrorResult(err)
	}
	s.Remove(h)
	return wire.CommandResult{Kind: wire.ResultScalar}
}

// ExecuteBatch runs every command in a CudaBatch in order against the same
// session, continuing past individual failures, and returns every response
// in submitted order. CudaBatchResponse has no overall status; a failed
// command shows only in its own response.
func (e *CudaExecutor) ExecuteBatch(ctx context.Context, sessionID uint32, serverID uint16, batch wire.CudaBatch) wire.CudaBatchResponse {
	responses := make([]wire.CommandResult, len(batch.Commands))
	for i, cmd := range batch.Commands {
		responses[i] = e.Execute(ctx, sessionID, serverID, cmd)
	}
	return wire.CudaBatchResponse{RequestID: batch.RequestID, Responses: responses}
}
