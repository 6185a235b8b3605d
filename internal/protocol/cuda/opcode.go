// Package cuda defines the CUDA Driver API command vocabulary that crosses
// the wire: one Opcode per intercepted entry point, plus the argument and
// result shapes the executor and interpose shim agree on.
package cuda

import "fmt"

// Opcode identifies one CUDA Driver API call. Values are stable on the wire.
type Opcode uint16

const (
	OpDeviceGetCount Opcode = iota + 1
	OpDeviceGet
	OpDeviceGetName
	OpDeviceGetUuid
	OpDeviceGetPCIBusId
	OpDeviceTotalMem
	OpCtxCreate
	OpCtxDestroy
	OpCtxSetCurrent
	OpModuleLoad
	OpModuleLoadData
	OpModuleUnload
	OpModuleGetFunction
	OpMemAlloc
	OpMemFree
	OpMemcpyHtoD
	OpMemcpyDtoH
	OpMemcpyDtoD
	OpStreamCreate
	OpStreamDestroy
	OpStreamSynchronize
	OpEventCreate
	OpEventDestroy
	OpEventRecord
	OpEventSynchronize
	OpEventElapsedTime
	OpLaunchKernel
	OpMemPoolCreate
	OpMemPoolDestroy
	OpMemPoolTrimTo
	OpLinkerCreate
	OpLinkerAddData
	OpLinkerComplete
	OpLinkerDestroy
	OpHostAlloc
	OpHostFree
)

var names = map[Opcode]string{
	OpDeviceGetCount:     "cuDeviceGetCount",
	OpDeviceGet:          "cuDeviceGet",
	OpDeviceGetName:      "cuDeviceGetName",
	OpDeviceGetUuid:      "cuDeviceGetUuid",
	OpDeviceGetPCIBusId:  "cuDeviceGetPCIBusId",
	OpDeviceTotalMem:     "cuDeviceTotalMem",
	OpCtxCreate:          "cuCtxCreate",
	OpCtxDestroy:         "cuCtxDestroy",
	OpCtxSetCurrent:      "cuCtxSetCurrent",
	OpModuleLoad:         "cuModuleLoad",
	OpModuleLoadData:     "cuModuleLoadData",
	OpModuleUnload:       "cuModuleUnload",
	OpModuleGetFunction:  "cuModuleGetFunction",
	OpMemAlloc:           "cuMemAlloc",
	OpMemFree:            "cuMemFree",
	OpMemcpyHtoD:         "cuMemcpyHtoD",
	OpMemcpyDtoH:         "cuMemcpyDtoH",
	OpMemcpyDtoD:         "cuMemcpyDtoD",
	OpStreamCreate:       "cuStreamCreate",
	OpStreamDestroy:      "cuStreamDestroy",
	OpStreamSynchronize:  "cuStreamSynchronize",
	OpEventCreate:        "cuEventCreate",
	OpEventDestroy:       "cuEventDestroy",
	OpEventRecord:        "cuEventRecord",
	OpEventSynchronize:   "cuEventSynchronize",
	OpEventElapsedTime:   "cuEventElapsedTime",
	OpLaunchKernel:       "cuLaunchKernel",
	OpMemPoolCreate:      "cuMemPoolCreate",
	OpMemPoolDestroy:     "cuMemPoolDestroy",
	OpMemPoolTrimTo:      "cuMemPoolTrimTo",
	OpLinkerCreate:       "cuLinkerCreate",
	OpLinkerAddData:      "cuLinkerAddData",
	OpLinkerComplete:     "cuLinkerComplete",
	OpLinkerDestroy:      "cuLinkerDestroy",
	OpHostAlloc:          "cuMemHostAlloc",
	OpHostFree:           "cuMemFreeHost",
}

func (o Opcode) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return fmt.Sprintf("cuda.Opcode(%d)", uint16(o))
}

// IsCreation reports whether o allocates a brand new top-level resource
// that cannot be routed by an existing handle (device enumeration, context
// creation bound to a device ordinal rather than an existing handle).
func (o Opcode) IsCreation() bool {
	switch o {
	case OpDeviceGetCount, OpDeviceGet, OpDeviceGetName, OpDeviceGetUuid, OpDeviceGetPCIBusId, OpDeviceTotalMem, OpCtxCreate:
		return true
	default:
		return false
	}
}
