package cuda

import "github.com/Fill84/RGPU-sub000/internal/protocol/handle"

// Each Args type below is the XDR body of a CudaCommand for the matching
// Opcode; each Result type is the data the executor extracts before
// wrapping it in a wire.CommandResult. Handles are carried as
// handle.Network both when they identify an existing resource and when a
// call creates one.

type DeviceGetCountArgs struct{}
type DeviceGetCountResult struct{ Count uint32 }

type DeviceGetArgs struct{ Ordinal uint32 }
type DeviceGetResult struct{ Device handle.Network }

type DeviceGetNameArgs struct{ Device handle.Network }
type DeviceGetNameResult struct{ Name string }

type DeviceGetUuidArgs struct{ Device handle.Network }
type DeviceGetUuidResult struct{ UUID string }

type DeviceGetPCIBusIdArgs struct{ Device handle.Network }
type DeviceGetPCIBusIdResult struct{ PCIBusID string }

type DeviceTotalMemArgs struct{ Device handle.Network }
type DeviceTotalMemResult struct{ Bytes uint64 }

type CtxCreateArgs struct {
	Device handle.Network
	Flags  uint32
}
type CtxCreateResult struct{ Context handle.Network }

type CtxDestroyArgs struct{ Context handle.Network }

type CtxSetCurrentArgs struct{ Context handle.Network }

type ModuleLoadArgs struct {
	Context handle.Network
	Data    []byte
}
type ModuleLoadResult struct{ Module handle.Network }

type ModuleLoadDataArgs struct {
	Context handle.Network
	Image   []byte
}
type ModuleLoadDataResult struct{ Module handle.Network }

type ModuleUnloadArgs struct{ Module handle.Network }

type ModuleGetFunctionArgs struct {
	Module handle.Network
	Name   string
}
type ModuleGetFunctionResult struct{ Function handle.Network }

type MemAllocArgs struct {
	Context handle.Network
	Bytes   uint64
}
type MemAllocResult struct {
	Memory    handle.Network
	DevicePtr uint64
}

type MemFreeArgs struct{ DevicePtr uint64 }

type MemcpyHtoDArgs struct {
	DevicePtr uint64
	HostData  []byte
}

type MemcpyDtoHArgs struct {
	DevicePtr uint64
	Bytes     uint64
}
type MemcpyDtoHResult struct{ HostData []byte }

type MemcpyDtoDArgs struct {
	DstDevicePtr uint64
	SrcDevicePtr uint64
	Bytes        uint64
}

type StreamCreateArgs struct {
	Context handle.Network
	Flags   uint32
}
type StreamCreateResult struct{ Stream handle.Network }

type StreamDestroyArgs struct{ Stream handle.Network }

type StreamSynchronizeArgs struct{ Stream handle.Network }

type EventCreateArgs struct {
	Context handle.Network
	Flags   uint32
}
type EventCreateResult struct{ Event handle.Network }

type EventDestroyArgs struct{ Event handle.Network }

type EventRecordArgs struct {
	Event  handle.Network
	Stream handle.Network
}

type EventSynchronizeArgs struct{ Event handle.Network }

type EventElapsedTimeArgs struct {
	Start handle.Network
	End   handle.Network
}
type EventElapsedTimeResult struct{ Milliseconds float32 }

type LaunchKernelArgs struct {
	Function                              handle.Network
	Stream                                 handle.Network
	GridDimX, GridDimY, GridDimZ           uint32
	BlockDimX, BlockDimY, BlockDimZ        uint32
	SharedMemBytes                         uint32
	ParamData                              []byte
}

type MemPoolCreateArgs struct {
	Context handle.Network
}
type MemPoolCreateResult struct{ MemPool handle.Network }

type MemPoolDestroyArgs struct{ MemPool handle.Network }

type MemPoolTrimToArgs struct {
	MemPool  handle.Network
	MinBytes uint64
}

type LinkerCreateArgs struct {
	Context handle.Network
}
type LinkerCreateResult struct{ Linker handle.Network }

type LinkerAddDataArgs struct {
	Linker handle.Network
	Data   []byte
	Name   string
}

type LinkerCompleteArgs struct{ Linker handle.Network }
type LinkerCompleteResult struct{ CubinImage []byte }

type LinkerDestroyArgs struct{ Linker handle.Network }

type HostAllocArgs struct {
	Context handle.Network
	Bytes   uint64
	Flags   uint32
}
type HostAllocResult struct {
	HostMemory handle.Network
	HostPtr    uint64
}

type HostFreeArgs struct{ HostPtr uint64 }
