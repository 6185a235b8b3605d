// cuGetProcAddress_v2 is the dispatch table every real CUDA runtime
// consults instead of linking entry points directly — PyTorch in
// particular resolves nearly everything through it. Lookups are
// case-sensitive and resolve versioned aliases (cuDeviceTotalMem and
// cuDeviceTotalMem_v2 both resolve to the same shim), matching
// proc_address.rs's own alias table (spec.md §4.12).
package main

/*
#include <stdint.h>
#include <string.h>
#include "_cgo_export.h"

static void *rgpu_cuda_lookup(const char *name) {
	if (name == 0) {
		return 0;
	}
	if (!strcmp(name, "cuInit")) return (void*)cuInit;
	if (!strcmp(name, "cuDriverGetVersion")) return (void*)cuDriverGetVersion;
	if (!strcmp(name, "cuDeviceGetCount")) return (void*)cuDeviceGetCount;
	if (!strcmp(name, "cuDeviceGet")) return (void*)cuDeviceGet;
	if (!strcmp(name, "cuDeviceGetName")) return (void*)cuDeviceGetName;
	if (!strcmp(name, "cuDeviceGetUuid") || !strcmp(name, "cuDeviceGetUuid_v2")) return (void*)cuDeviceGetUuid;
	if (!strcmp(name, "cuDeviceGetPCIBusId")) return (void*)cuDeviceGetPCIBusId;
	if (!strcmp(name, "cuDeviceTotalMem") || !strcmp(name, "cuDeviceTotalMem_v2")) return (void*)cuDeviceTotalMem_v2;
	if (!strcmp(name, "cuCtxCreate") || !strcmp(name, "cuCtxCreate_v2")) return (void*)cuCtxCreate_v2;
	if (!strcmp(name, "cuCtxDestroy") || !strcmp(name, "cuCtxDestroy_v2")) return (void*)cuCtxDestroy_v2;
	if (!strcmp(name, "cuCtxSetCurrent")) return (void*)cuCtxSetCurrent;
	if (!strcmp(name, "cuModuleLoad")) return (void*)cuModuleLoad;
	if (!strcmp(name, "cuModuleLoadData")) return (void*)cuModuleLoadData;
	if (!strcmp(name, "cuModuleUnload")) return (void*)cuModuleUnload;
	if (!strcmp(name, "cuModuleGetFunction")) return (void*)cuModuleGetFunction;
	if (!strcmp(name, "cuMemAlloc") || !strcmp(name, "cuMemAlloc_v2")) return (void*)cuMemAlloc_v2;
	if (!strcmp(name, "cuMemFree") || !strcmp(name, "cuMemFree_v2")) return (void*)cuMemFree_v2;
	if (!strcmp(name, "cuMemcpyHtoD") || !strcmp(name, "cuMemcpyHtoD_v2")) return (void*)cuMemcpyHtoD_v2;
	if (!strcmp(name, "cuMemcpyDtoH") || !strcmp(name, "cuMemcpyDtoH_v2")) return (void*)cuMemcpyDtoH_v2;
	if (!strcmp(name, "cuMemcpyDtoD") || !strcmp(name, "cuMemcpyDtoD_v2")) return (void*)cuMemcpyDtoD_v2;
	if (!strcmp(name, "cuStreamCreate")) return (void*)cuStreamCreate;
	if (!strcmp(name, "cuStreamDestroy") || !strcmp(name, "cuStreamDestroy_v2")) return (void*)cuStreamDestroy_v2;
	if (!strcmp(name, "cuStreamSynchronize")) return (void*)cuStreamSynchronize;
	if (!strcmp(name, "cuEventCreate")) return (void*)cuEventCreate;
	if (!strcmp(name, "cuEventDestroy") || !strcmp(name, "cuEventDestroy_v2")) return (void*)cuEventDestroy_v2;
	if (!strcmp(name, "cuEventRecord")) return (void*)cuEventRecord;
	if (!strcmp(name, "cuEventSynchronize")) return (void*)cuEventSynchronize;
	if (!strcmp(name, "cuEventElapsedTime")) return (void*)cuEventElapsedTime;
	if (!strcmp(name, "cuLaunchKernel")) return (void*)cuLaunchKernel;
	if (!strcmp(name, "cuMemPoolCreate")) return (void*)cuMemPoolCreate;
	if (!strcmp(name, "cuMemPoolDestroy")) return (void*)cuMemPoolDestroy;
	if (!strcmp(name, "cuMemPoolTrimTo")) return (void*)cuMemPoolTrimTo;
	if (!strcmp(name, "cuLinkCreate") || !strcmp(name, "cuLinkCreate_v2")) return (void*)cuLinkCreate_v2;
	if (!strcmp(name, "cuLinkAddData") || !strcmp(name, "cuLinkAddData_v2")) return (void*)cuLinkAddData_v2;
	if (!strcmp(name, "cuLinkComplete")) return (void*)cuLinkComplete;
	if (!strcmp(name, "cuLinkDestroy")) return (void*)cuLinkDestroy;
	if (!strcmp(name, "cuMemHostAlloc")) return (void*)cuMemHostAlloc;
	if (!strcmp(name, "cuMemFreeHost")) return (void*)cuMemFreeHost;
	return 0;
}
*/
import "C"

import "unsafe"

const (
	cudaErrorNotFound = 500
)

//export cuGetProcAddress_v2
func cuGetProcAddress_v2(symbol *C.char, pfn *unsafe.Pointer, cudaVersion C.int, flags C.uint64_t, symbolStatus *C.int) C.int {
	if symbol == nil || pfn == nil {
		return cudaErrorInvalidValue
	}
	p := C.rgpu_cuda_lookup(symbol)
	if p == nil {
		if symbolStatus != nil {
			*symbolStatus = 2
		}
		return cudaErrorNotFound
	}
	*pfn = p
	if symbolStatus != nil {
		*symbolStatus = 0
	}
	return cudaSuccess
}

// cuGetProcAddress is the pre-CUDA-12 three-argument form; it dispatches
// to the same table, ignoring the newer flags/status arguments.
//
//export cuGetProcAddress
func cuGetProcAddress(symbol *C.char, pfn *unsafe.Pointer, cudaVersion C.int) C.int {
	return cuGetProcAddress_v2(symbol, pfn, cudaVersion, 0, nil)
}
