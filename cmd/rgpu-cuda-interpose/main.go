// Command rgpu-cuda-interpose builds a CUDA Driver API shim library: a
// cdylib that replaces libcuda.so/nvcuda.dll, forwarding every
// intercepted entry point to the client daemon over its local IPC
// socket. Build with:
//
//	go build -buildmode=c-shared -o librgpu_cuda_interpose.so ./cmd/rgpu-cuda-interpose
//
// and preload it ahead of the application: LD_PRELOAD=librgpu_cuda_interpose.so <app>.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/Fill84/RGPU-sub000/internal/client/interpose"
	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

const (
	cudaSuccess            = 0
	cudaErrorInvalidValue  = 1
	cudaErrorNotReady      = 600
	cudaErrorUnknown       = 999
)

// driverReportedVersion is what cuDriverGetVersion hands back; the call
// never reaches the backend since it describes this shim, not a real
// driver install.
const driverReportedVersion = 12040

var client = interpose.NewClient(ipcSocketPath())

func ipcSocketPath() string {
	if p := os.Getenv("RGPU_IPC_SOCKET"); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/rgpu/rgpu.sock"
	}
	return os.TempDir() + "/rgpu/rgpu.sock"
}

// resultCode turns a wire.CommandResult (plus a transport-level err, which
// takes priority) into the CUresult-style code this shim hands back to
// its caller.
func resultCode(res wire.CommandResult, err error) C.int {
	if err != nil {
		return cudaErrorUnknown
	}
	if res.Kind == wire.ResultError {
		if res.Error.Code != 0 {
			return C.int(res.Error.Code)
		}
		return cudaErrorUnknown
	}
	return cudaSuccess
}

func getHandle(kind handle.ResourceType, localID uint64) (handle.Network, bool) {
	h, err := client.Handles.Get(kind, localID)
	return h, err == nil
}

//export rgpu_interpose_marker
func rgpu_interpose_marker() C.int {
	return C.int(interpose.Marker)
}

//export cuInit
func cuInit(flags C.uint) C.int {
	// The client daemon is already running and connected by the time any
	// application loads this shim; there is nothing to initialize here.
	return cudaSuccess
}

//export cuDriverGetVersion
func cuDriverGetVersion(version *C.int) C.int {
	if version == nil {
		return cudaErrorInvalidValue
	}
	*version = driverReportedVersion
	return cudaSuccess
}

//export cuDeviceGetCount
func cuDeviceGetCount(count *C.int) C.int {
	if count == nil {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpDeviceGetCount, cuda.DeviceGetCountArgs{})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	*count = C.int(res.Scalar)
	return cudaSuccess
}

//export cuDeviceGet
func cuDeviceGet(device *C.int, ordinal C.int) C.int {
	if device == nil {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpDeviceGet, cuda.DeviceGetArgs{Ordinal: uint32(ordinal)})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	localID := client.Handles.Put(handle.CuDevice, res.Handle)
	*device = C.int(localID)
	return cudaSuccess
}

//export cuDeviceGetName
func cuDeviceGetName(name *C.char, length C.int, device C.int) C.int {
	if name == nil || length <= 0 {
		return cudaErrorInvalidValue
	}
	dev, ok := getHandle(handle.CuDevice, uint64(device))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpDeviceGetName, cuda.DeviceGetNameArgs{Device: dev})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	copyCString(name, length, res.Buffer)
	return cudaSuccess
}

//export cuDeviceGetUuid
func cuDeviceGetUuid(uuid *C.char, device C.int) C.int {
	if uuid == nil {
		return cudaErrorInvalidValue
	}
	dev, ok := getHandle(handle.CuDevice, uint64(device))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpDeviceGetUuid, cuda.DeviceGetUuidArgs{Device: dev})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	copyBytes(unsafe.Pointer(uuid), 16, res.Buffer)
	return cudaSuccess
}

//export cuDeviceGetPCIBusId
func cuDeviceGetPCIBusId(pciBusID *C.char, length C.int, device C.int) C.int {
	if pciBusID == nil || length <= 0 {
		return cudaErrorInvalidValue
	}
	dev, ok := getHandle(handle.CuDevice, uint64(device))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpDeviceGetPCIBusId, cuda.DeviceGetPCIBusIdArgs{Device: dev})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	copyCString(pciBusID, length, res.Buffer)
	return cudaSuccess
}

//export cuDeviceTotalMem_v2
func cuDeviceTotalMem_v2(bytes *C.uint64_t, device C.int) C.int {
	if bytes == nil {
		return cudaErrorInvalidValue
	}
	dev, ok := getHandle(handle.CuDevice, uint64(device))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpDeviceTotalMem, cuda.DeviceTotalMemArgs{Device: dev})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	*bytes = C.uint64_t(res.Scalar)
	return cudaSuccess
}

//export cuCtxCreate_v2
func cuCtxCreate_v2(pctx *unsafe.Pointer, flags C.uint, dev C.int) C.int {
	if pctx == nil {
		return cudaErrorInvalidValue
	}
	device, ok := getHandle(handle.CuDevice, uint64(dev))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpCtxCreate, cuda.CtxCreateArgs{Device: device, Flags: uint32(flags)})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	localID := client.Handles.Put(handle.CuContext, res.Handle)
	*pctx = uintptrToPointer(localID)
	return cudaSuccess
}

//export cuCtxDestroy_v2
func cuCtxDestroy_v2(ctx unsafe.Pointer) C.int {
	localID := pointerToUintptr(ctx)
	ctxHandle, ok := getHandle(handle.CuContext, localID)
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpCtxDestroy, cuda.CtxDestroyArgs{Context: ctxHandle})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	client.Handles.Remove(handle.CuContext, localID)
	return cudaSuccess
}

//export cuCtxSetCurrent
func cuCtxSetCurrent(ctx unsafe.Pointer) C.int {
	localID := pointerToUintptr(ctx)
	ctxHandle, ok := getHandle(handle.CuContext, localID)
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpCtxSetCurrent, cuda.CtxSetCurrentArgs{Context: ctxHandle})
	return resultCode(res, err)
}

//export cuModuleLoad
func cuModuleLoad(module *unsafe.Pointer, path *C.char) C.int {
	if module == nil || path == nil {
		return cudaErrorInvalidValue
	}
	data, err := os.ReadFile(C.GoString(path))
	if err != nil {
		return cudaErrorInvalidValue
	}
	return loadModule(module, data)
}

//export cuModuleLoadData
func cuModuleLoadData(module *unsafe.Pointer, image unsafe.Pointer) C.int {
	if module == nil || image == nil {
		return cudaErrorInvalidValue
	}
	data := readModuleImage(image)
	return loadModule(module, data)
}

func loadModule(module *unsafe.Pointer, data []byte) C.int {
	res, err := client.SendCuda(cuda.OpModuleLoadData, cuda.ModuleLoadDataArgs{Image: data})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	localID := client.Handles.Put(handle.CuModule, res.Handle)
	*module = uintptrToPointer(localID)
	return cudaSuccess
}

//export cuModuleUnload
func cuModuleUnload(hmod unsafe.Pointer) C.int {
	localID := pointerToUintptr(hmod)
	mod, ok := getHandle(handle.CuModule, localID)
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpModuleUnload, cuda.ModuleUnloadArgs{Module: mod})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	client.Handles.Remove(handle.CuModule, localID)
	return cudaSuccess
}

//export cuModuleGetFunction
func cuModuleGetFunction(hfunc *unsafe.Pointer, hmod unsafe.Pointer, name *C.char) C.int {
	if hfunc == nil || name == nil {
		return cudaErrorInvalidValue
	}
	mod, ok := getHandle(handle.CuModule, pointerToUintptr(hmod))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpModuleGetFunction, cuda.ModuleGetFunctionArgs{Module: mod, Name: C.GoString(name)})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	localID := client.Handles.Put(handle.CuFunction, res.Handle)
	*hfunc = uintptrToPointer(localID)
	return cudaSuccess
}

//export cuMemAlloc_v2
func cuMemAlloc_v2(dptr *C.uint64_t, byteSize C.size_t) C.int {
	if dptr == nil {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpMemAlloc, cuda.MemAllocArgs{Bytes: uint64(byteSize)})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	client.Handles.PutDevicePtr(res.Scalar, res.Handle)
	*dptr = C.uint64_t(res.Scalar)
	return cudaSuccess
}

//export cuMemFree_v2
func cuMemFree_v2(dptr C.uint64_t) C.int {
	ptr := uint64(dptr)
	if _, ok := client.Handles.ResolveDevicePtr(ptr); !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpMemFree, cuda.MemFreeArgs{DevicePtr: ptr})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	client.Handles.RemoveDevicePtr(ptr)
	return cudaSuccess
}

//export cuMemcpyHtoD_v2
func cuMemcpyHtoD_v2(dstDevice C.uint64_t, srcHost unsafe.Pointer, byteCount C.size_t) C.int {
	if srcHost == nil {
		return cudaErrorInvalidValue
	}
	ptr := uint64(dstDevice)
	if _, ok := client.Handles.ResolveDevicePtr(ptr); !ok {
		return cudaErrorInvalidValue
	}
	data := C.GoBytes(srcHost, C.int(byteCount))
	res, err := client.SendCuda(cuda.OpMemcpyHtoD, cuda.MemcpyHtoDArgs{DevicePtr: ptr, HostData: data})
	return resultCode(res, err)
}

//export cuMemcpyDtoH_v2
func cuMemcpyDtoH_v2(dstHost unsafe.Pointer, srcDevice C.uint64_t, byteCount C.size_t) C.int {
	if dstHost == nil {
		return cudaErrorInvalidValue
	}
	ptr := uint64(srcDevice)
	if _, ok := client.Handles.ResolveDevicePtr(ptr); !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpMemcpyDtoH, cuda.MemcpyDtoHArgs{DevicePtr: ptr, Bytes: uint64(byteCount)})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	copyBytes(dstHost, int(byteCount), res.Buffer)
	return cudaSuccess
}

//export cuMemcpyDtoD_v2
func cuMemcpyDtoD_v2(dstDevice, srcDevice C.uint64_t, byteCount C.size_t) C.int {
	dst, ok := client.Handles.ResolveDevicePtr(uint64(dstDevice))
	_ = dst
	if !ok {
		return cudaErrorInvalidValue
	}
	if _, ok := client.Handles.ResolveDevicePtr(uint64(srcDevice)); !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpMemcpyDtoD, cuda.MemcpyDtoDArgs{
		DstDevicePtr: uint64(dstDevice),
		SrcDevicePtr: uint64(srcDevice),
		Bytes:        uint64(byteCount),
	})
	return resultCode(res, err)
}

//export cuStreamCreate
func cuStreamCreate(phStream *unsafe.Pointer, flags C.uint) C.int {
	if phStream == nil {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpStreamCreate, cuda.StreamCreateArgs{Flags: uint32(flags)})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	localID := client.Handles.Put(handle.CuStream, res.Handle)
	*phStream = uintptrToPointer(localID)
	return cudaSuccess
}

//export cuStreamDestroy_v2
func cuStreamDestroy_v2(hStream unsafe.Pointer) C.int {
	localID := pointerToUintptr(hStream)
	stream, ok := getHandle(handle.CuStream, localID)
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpStreamDestroy, cuda.StreamDestroyArgs{Stream: stream})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	client.Handles.Remove(handle.CuStream, localID)
	return cudaSuccess
}

//export cuStreamSynchronize
func cuStreamSynchronize(hStream unsafe.Pointer) C.int {
	stream, ok := getHandle(handle.CuStream, pointerToUintptr(hStream))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpStreamSynchronize, cuda.StreamSynchronizeArgs{Stream: stream})
	return resultCode(res, err)
}

//export cuEventCreate
func cuEventCreate(phEvent *unsafe.Pointer, flags C.uint) C.int {
	if phEvent == nil {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpEventCreate, cuda.EventCreateArgs{Flags: uint32(flags)})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	localID := client.Handles.Put(handle.CuEvent, res.Handle)
	*phEvent = uintptrToPointer(localID)
	return cudaSuccess
}

//export cuEventDestroy_v2
func cuEventDestroy_v2(hEvent unsafe.Pointer) C.int {
	localID := pointerToUintptr(hEvent)
	event, ok := getHandle(handle.CuEvent, localID)
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpEventDestroy, cuda.EventDestroyArgs{Event: event})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	client.Handles.Remove(handle.CuEvent, localID)
	return cudaSuccess
}

//export cuEventRecord
func cuEventRecord(hEvent, hStream unsafe.Pointer) C.int {
	event, ok := getHandle(handle.CuEvent, pointerToUintptr(hEvent))
	if !ok {
		return cudaErrorInvalidValue
	}
	stream := handle.Network{Type: handle.CuStream}
	if hStream != nil {
		if s, ok := getHandle(handle.CuStream, pointerToUintptr(hStream)); ok {
			stream = s
		}
	}
	res, err := client.SendCuda(cuda.OpEventRecord, cuda.EventRecordArgs{Event: event, Stream: stream})
	return resultCode(res, err)
}

//export cuEventSynchronize
func cuEventSynchronize(hEvent unsafe.Pointer) C.int {
	event, ok := getHandle(handle.CuEvent, pointerToUintptr(hEvent))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpEventSynchronize, cuda.EventSynchronizeArgs{Event: event})
	return resultCode(res, err)
}

//export cuEventElapsedTime
func cuEventElapsedTime(ms *C.float, hStart, hEnd unsafe.Pointer) C.int {
	if ms == nil {
		return cudaErrorInvalidValue
	}
	start, ok := getHandle(handle.CuEvent, pointerToUintptr(hStart))
	if !ok {
		return cudaErrorInvalidValue
	}
	end, ok := getHandle(handle.CuEvent, pointerToUintptr(hEnd))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpEventElapsedTime, cuda.EventElapsedTimeArgs{Start: start, End: end})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	*ms = C.float(bitsToFloat32(res.Scalar))
	return cudaSuccess
}

//export cuLaunchKernel
func cuLaunchKernel(
	f unsafe.Pointer,
	gridDimX, gridDimY, gridDimZ C.uint,
	blockDimX, blockDimY, blockDimZ C.uint,
	sharedMemBytes C.uint,
	hStream unsafe.Pointer,
	kernelParams **unsafe.Pointer,
	extra **unsafe.Pointer,
) C.int {
	fn, ok := getHandle(handle.CuFunction, pointerToUintptr(f))
	if !ok {
		return cudaErrorInvalidValue
	}
	stream := handle.Network{Type: handle.CuStream}
	if hStream != nil {
		if s, ok := getHandle(handle.CuStream, pointerToUintptr(hStream)); ok {
			stream = s
		}
	}
	paramData := collectKernelParams(kernelParams)
	res, err := client.SendCuda(cuda.OpLaunchKernel, cuda.LaunchKernelArgs{
		Function:       fn,
		Stream:         stream,
		GridDimX:       uint32(gridDimX),
		GridDimY:       uint32(gridDimY),
		GridDimZ:       uint32(gridDimZ),
		BlockDimX:      uint32(blockDimX),
		BlockDimY:      uint32(blockDimY),
		BlockDimZ:      uint32(blockDimZ),
		SharedMemBytes: uint32(sharedMemBytes),
		ParamData:      paramData,
	})
	return resultCode(res, err)
}

//export cuMemPoolCreate
func cuMemPoolCreate(pool *unsafe.Pointer) C.int {
	if pool == nil {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpMemPoolCreate, cuda.MemPoolCreateArgs{})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	localID := client.Handles.Put(handle.CuMemPool, res.Handle)
	*pool = uintptrToPointer(localID)
	return cudaSuccess
}

//export cuMemPoolDestroy
func cuMemPoolDestroy(pool unsafe.Pointer) C.int {
	localID := pointerToUintptr(pool)
	memPool, ok := getHandle(handle.CuMemPool, localID)
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpMemPoolDestroy, cuda.MemPoolDestroyArgs{MemPool: memPool})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	client.Handles.Remove(handle.CuMemPool, localID)
	return cudaSuccess
}

//export cuMemPoolTrimTo
func cuMemPoolTrimTo(pool unsafe.Pointer, minBytesToKeep C.size_t) C.int {
	memPool, ok := getHandle(handle.CuMemPool, pointerToUintptr(pool))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpMemPoolTrimTo, cuda.MemPoolTrimToArgs{MemPool: memPool, MinBytes: uint64(minBytesToKeep)})
	return resultCode(res, err)
}

//export cuLinkCreate_v2
func cuLinkCreate_v2(state *unsafe.Pointer) C.int {
	if state == nil {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpLinkerCreate, cuda.LinkerCreateArgs{})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	localID := client.Handles.Put(handle.CuLinker, res.Handle)
	*state = uintptrToPointer(localID)
	return cudaSuccess
}

//export cuLinkAddData_v2
func cuLinkAddData_v2(state unsafe.Pointer, data unsafe.Pointer, size C.size_t, name *C.char) C.int {
	linker, ok := getHandle(handle.CuLinker, pointerToUintptr(state))
	if !ok {
		return cudaErrorInvalidValue
	}
	goName := ""
	if name != nil {
		goName = C.GoString(name)
	}
	res, err := client.SendCuda(cuda.OpLinkerAddData, cuda.LinkerAddDataArgs{
		Linker: linker,
		Data:   C.GoBytes(data, C.int(size)),
		Name:   goName,
	})
	return resultCode(res, err)
}

//export cuLinkComplete
func cuLinkComplete(state unsafe.Pointer, cubinOut *unsafe.Pointer, sizeOut *C.size_t) C.int {
	linker, ok := getHandle(handle.CuLinker, pointerToUintptr(state))
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpLinkerComplete, cuda.LinkerCompleteArgs{Linker: linker})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	if cubinOut != nil && sizeOut != nil {
		*cubinOut = C.CBytes(res.Buffer)
		*sizeOut = C.size_t(len(res.Buffer))
	}
	return cudaSuccess
}

//export cuLinkDestroy
func cuLinkDestroy(state unsafe.Pointer) C.int {
	localID := pointerToUintptr(state)
	linker, ok := getHandle(handle.CuLinker, localID)
	if !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpLinkerDestroy, cuda.LinkerDestroyArgs{Linker: linker})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	client.Handles.Remove(handle.CuLinker, localID)
	return cudaSuccess
}

//export cuMemHostAlloc
func cuMemHostAlloc(pp *unsafe.Pointer, byteSize C.size_t, flags C.uint) C.int {
	if pp == nil {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpHostAlloc, cuda.HostAllocArgs{Bytes: uint64(byteSize), Flags: uint32(flags)})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	client.Handles.PutHostPtr(res.Scalar, res.Handle)
	*pp = uintptrToPointer(res.Scalar)
	return cudaSuccess
}

//export cuMemFreeHost
func cuMemFreeHost(p unsafe.Pointer) C.int {
	ptr := pointerToUintptr(p)
	if _, ok := client.Handles.ResolveHostPtr(ptr); !ok {
		return cudaErrorInvalidValue
	}
	res, err := client.SendCuda(cuda.OpHostFree, cuda.HostFreeArgs{HostPtr: ptr})
	if code := resultCode(res, err); code != cudaSuccess {
		return code
	}
	client.Handles.RemoveHostPtr(ptr)
	return cudaSuccess
}

func main() {}
