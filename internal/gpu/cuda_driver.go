package gpu

import "context"

// CudaDriver is the seam between the per-session executor and a real
// (dynamically loaded libcuda/nvcuda) or simulated CUDA Driver API. Every
// method corresponds to one or more wire cuda.Opcode commands; local ids
// are driver-private handles that never cross the wire — the executor is
// the only thing that ever sees both a local id and the handle.Network the
// session's table maps it to.
type CudaDriver interface {
	DeviceCount(ctx context.Context) (int, error)
	DeviceName(ctx context.Context, ordinal int) (string, error)
	DeviceUUID(ctx context.Context, ordinal int) (string, error)
	DevicePCIBusID(ctx context.Context, ordinal int) (string, error)
	DeviceTotalMem(ctx context.Context, ordinal int) (uint64, error)

	CtxCreate(ctx context.Context, deviceOrdinal int, flags uint32) (localID uint64, err error)
	CtxDestroy(ctx context.Context, localID uint64) error

	ModuleLoad(ctx context.Context, ctxID uint64, data []byte) (localID uint64, err error)
	ModuleUnload(ctx context.Context, localID uint64) error
	ModuleGetFunction(ctx context.Context, moduleID uint64, name string) (localID uint64, err error)

	MemAlloc(ctx context.Context, ctxID uint64, bytes uint64) (localID uint64, devicePtr uint64, err error)
	MemFree(ctx context.Context, devicePtr uint64) error
	MemcpyHtoD(ctx context.Context, devicePtr uint64, data []byte) error
	MemcpyDtoH(ctx context.Context, devicePtr uint64, n uint64) ([]byte, error)
	MemcpyDtoD(ctx context.Context, dstPtr, srcPtr uint64, n uint64) error

	StreamCreate(ctx context.Context, ctxID uint64, flags uint32) (localID uint64, err error)
	StreamDestroy(ctx context.Context, localID uint64) error
	StreamSynchronize(ctx context.Context, localID uint64) error

	EventCreate(ctx context.Context, ctxID uint64, flags uint32) (localID uint64, err error)
	EventDestroy(ctx context.Context, localID uint64) error
	EventRecord(ctx context.Context, eventID, streamID uint64) error
	EventSynchronize(ctx context.Context, localID uint64) error
	EventElapsedTime(ctx context.Context, startID, endID uint64) (float32, error)

	LaunchKernel(ctx context.Context, fnID, streamID uint64, grid, block [3]uint32, sharedMemBytes uint32, params []byte) error

	MemPoolCreate(ctx context.Context, ctxID uint64) (localID uint64, err error)
	MemPoolDestroy(ctx context.Context, localID uint64) error
	MemPoolTrimTo(ctx context.Context, localID uint64, minBytes uint64) error

	LinkerCreate(ctx context.Context, ctxID uint64) (localID uint64, err error)
	LinkerAddData(ctx context.Context, linkerID uint64, data []byte, name string) error
	LinkerComplete(ctx context.Context, linkerID uint64) ([]byte, error)
	LinkerDestroy(ctx context.Context, localID uint64) error

	HostAlloc(ctx context.Context, ctxID uint64, bytes uint64, flags uint32) (localID uint64, hostPtr uint64, err error)
	HostFree(ctx context.Context, hostPtr uint64) error
}
