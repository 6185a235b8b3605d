// Package gpu provides the accelerator discovery and driver abstraction
// the backend server uses: a per-kind Driver interface the executors call
// through, and the advertised GpuInfo list a backend reports in
// AuthResult/GpuList.
package gpu

import (
	"fmt"

	"github.com/Fill84/RGPU-sub000/internal/config"
)

// Info describes one physical accelerator a backend advertises. It is the
// internal counterpart of wire.GpuInfo; the listener copies between the
// two at the wire boundary so this package has no wire dependency.
type Info struct {
	LocalOrdinal           uint32
	DeviceName             string
	VRAMBytes              uint64
	ComputeCapabilityMajor uint32
	ComputeCapabilityMinor uint32
	IsCudaCapable          bool
	IsVulkanCapable        bool
	PCIBusID               string
	UUID                   string
}

// Discover returns the GPUs a backend advertises. A production build
// would probe a dynamically loaded libcuda/libvulkan (original_source
// cuda_driver.rs); this exercise has no real driver to link against, so
// when cfg carries no simulated_gpus entries Discover synthesizes one
// default device rather than advertising zero GPUs, and otherwise seeds
// the list from config (§4.16's DriverUnavailable fallback seam).
func Discover(cfg []config.SimulatedGPUConfig) []Info {
	if len(cfg) == 0 {
		return []Info{defaultSimulatedGPU(0)}
	}
	infos := make([]Info, len(cfg))
	for i, c := range cfg {
		infos[i] = Info{
			LocalOrdinal:           uint32(i),
			DeviceName:             c.DeviceName,
			VRAMBytes:              c.VRAMBytes,
			ComputeCapabilityMajor: c.ComputeCapabilityMajor,
			ComputeCapabilityMinor: c.ComputeCapabilityMinor,
			IsCudaCapable:          c.IsCudaCapable,
			IsVulkanCapable:        c.IsVulkanCapable,
			PCIBusID:               syntheticPCIBusID(i),
			UUID:                   syntheticUUID(i),
		}
	}
	return infos
}

func defaultSimulatedGPU(ordinal int) Info {
	return Info{
		LocalOrdinal:           uint32(ordinal),
		DeviceName:             "RGPU Simulated Accelerator",
		VRAMBytes:              8 << 30,
		ComputeCapabilityMajor: 8,
		ComputeCapabilityMinor: 0,
		IsCudaCapable:          true,
		IsVulkanCapable:        true,
		PCIBusID:               syntheticPCIBusID(ordinal),
		UUID:                   syntheticUUID(ordinal),
	}
}

func syntheticPCIBusID(ordinal int) string {
	return fmt.Sprintf("0000:%02x:00.0", ordinal)
}

func syntheticUUID(ordinal int) string {
	return fmt.Sprintf("GPU-00000000-0000-0000-0000-%012x", ordinal)
}
