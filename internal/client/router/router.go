// Package router classifies a CUDA or Vulkan command by the handle it must
// be routed on, mirroring original_source daemon.rs's
// extract_cuda_routing_handle/extract_vulkan_routing_handle. Creation and
// global calls carry no routing handle at all and fall back to whichever
// backend the pool currently treats as default; everything else carries
// exactly one existing handle that pins it to the backend owning that
// handle's server_id.
package router

import (
	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/protocol/vulkan"
)

// Kind distinguishes the three ways a command can be routed.
type Kind int

const (
	// None means the command is global/creation and has no existing
	// handle to route by; the caller falls back to a default server.
	None Kind = iota
	// ByHandle means the command routes to whatever backend owns the
	// NetworkHandle carried in Handle.
	ByHandle
	// ByDevicePtr/ByHostPtr mean the command only carries a raw pointer
	// value (cuMemFree, cuMemcpyHtoD, ...); the caller must resolve it
	// through the client-side device_ptr/host_ptr secondary index (P6)
	// before it can route.
	ByDevicePtr
	ByHostPtr
)

// Routing is the result of classifying one command.
type Routing struct {
	Kind      Kind
	Handle    handle.Network
	DevicePtr uint64
	HostPtr   uint64
}

// ExtractCuda classifies a decoded CUDA command's Args by opcode. args
// must be the concrete *Args value already decoded from the wire payload
// (e.g. *cuda.MemAllocArgs), as produced by wire.DecodeBody.
func ExtractCuda(op cuda.Opcode, args any) Routing {
	switch op {
	case cuda.OpDeviceGetCount, cuda.OpDeviceGet, cuda.OpDeviceGetName,
		cuda.OpDeviceGetUuid, cuda.OpDeviceGetPCIBusId, cuda.OpDeviceTotalMem:
		// Device enumeration and queries are global: no session-owned
		// handle exists yet, or the device handle itself isn't
		// session-scoped. Falls back to the default server.
		return Routing{Kind: None}

	case cuda.OpCtxCreate:
		// Binds a brand new context to a device ordinal, not an
		// existing handle: creation, not routing.
		return Routing{Kind: None}
	case cuda.OpCtxDestroy:
		return byHandle(args.(*cuda.CtxDestroyArgs).Context)
	case cuda.OpCtxSetCurrent:
		return byHandle(args.(*cuda.CtxSetCurrentArgs).Context)

	case cuda.OpModuleLoad:
		return byHandle(args.(*cuda.ModuleLoadArgs).Context)
	case cuda.OpModuleLoadData:
		return byHandle(args.(*cuda.ModuleLoadDataArgs).Context)
	case cuda.OpModuleUnload:
		return byHandle(args.(*cuda.ModuleUnloadArgs).Module)
	case cuda.OpModuleGetFunction:
		return byHandle(args.(*cuda.ModuleGetFunctionArgs).Module)

	case cuda.OpMemAlloc:
		return byHandle(args.(*cuda.MemAllocArgs).Context)
	case cuda.OpMemFree:
		return Routing{Kind: ByDevicePtr, DevicePtr: args.(*cuda.MemFreeArgs).DevicePtr}
	case cuda.OpMemcpyHtoD:
		return Routing{Kind: ByDevicePtr, DevicePtr: args.(*cuda.MemcpyHtoDArgs).DevicePtr}
	case cuda.OpMemcpyDtoH:
		return Routing{Kind: ByDevicePtr, DevicePtr: args.(*cuda.MemcpyDtoHArgs).DevicePtr}
	case cuda.OpMemcpyDtoD:
		// Both pointers must already live on the same backend (the
		// interpose shim enforces this); either resolves the route.
		return Routing{Kind: ByDevicePtr, DevicePtr: args.(*cuda.MemcpyDtoDArgs).SrcDevicePtr}

	case cuda.OpStreamCreate:
		return byHandle(args.(*cuda.StreamCreateArgs).Context)
	case cuda.OpStreamDestroy:
		return byHandle(args.(*cuda.StreamDestroyArgs).Stream)
	case cuda.OpStreamSynchronize:
		return byHandle(args.(*cuda.StreamSynchronizeArgs).Stream)

	case cuda.OpEventCreate:
		return byHandle(args.(*cuda.EventCreateArgs).Context)
	case cuda.OpEventDestroy:
		return byHandle(args.(*cuda.EventDestroyArgs).Event)
	case cuda.OpEventRecord:
		return byHandle(args.(*cuda.EventRecordArgs).Event)
	case cuda.OpEventSynchronize:
		return byHandle(args.(*cuda.EventSynchronizeArgs).Event)
	case cuda.OpEventElapsedTime:
		return byHandle(args.(*cuda.EventElapsedTimeArgs).Start)

	case cuda.OpLaunchKernel:
		return byHandle(args.(*cuda.LaunchKernelArgs).Function)

	case cuda.OpMemPoolCreate:
		return byHandle(args.(*cuda.MemPoolCreateArgs).Context)
	case cuda.OpMemPoolDestroy:
		return byHandle(args.(*cuda.MemPoolDestroyArgs).MemPool)
	case cuda.OpMemPoolTrimTo:
		return byHandle(args.(*cuda.MemPoolTrimToArgs).MemPool)

	case cuda.OpLinkerCreate:
		return byHandle(args.(*cuda.LinkerCreateArgs).Context)
	case cuda.OpLinkerAddData:
		return byHandle(args.(*cuda.LinkerAddDataArgs).Linker)
	case cuda.OpLinkerComplete:
		return byHandle(args.(*cuda.LinkerCompleteArgs).Linker)
	case cuda.OpLinkerDestroy:
		return byHandle(args.(*cuda.LinkerDestroyArgs).Linker)

	case cuda.OpHostAlloc:
		return byHandle(args.(*cuda.HostAllocArgs).Context)
	case cuda.OpHostFree:
		return Routing{Kind: ByHostPtr, HostPtr: args.(*cuda.HostFreeArgs).HostPtr}

	default:
		return Routing{Kind: None}
	}
}

// ExtractVulkan classifies a decoded Vulkan command's Args by opcode, the
// same way ExtractCuda does for the CUDA vocabulary. vkCmd* opcodes never
// reach this function directly: the recorder buffers them under their
// owning command buffer and SubmitRecordedCommands carries that single
// routing handle instead (S5).
func ExtractVulkan(op vulkan.Opcode, args any) Routing {
	switch op {
	case vulkan.OpCreateInstance, vulkan.OpEnumeratePhysicalDevices:
		// Broadcast/global: no existing handle to route by.
		return Routing{Kind: None}

	case vulkan.OpDestroyInstance:
		return byHandle(args.(*vulkan.DestroyInstanceArgs).Instance)
	case vulkan.OpCreateDevice:
		return byHandle(args.(*vulkan.CreateDeviceArgs).PhysicalDevice)
	case vulkan.OpDestroyDevice:
		return byHandle(args.(*vulkan.DestroyDeviceArgs).Device)
	case vulkan.OpGetDeviceQueue:
		return byHandle(args.(*vulkan.GetDeviceQueueArgs).Device)

	case vulkan.OpAllocateMemory:
		return byHandle(args.(*vulkan.AllocateMemoryArgs).Device)
	case vulkan.OpFreeMemory:
		return byHandle(args.(*vulkan.FreeMemoryArgs).Memory)

	case vulkan.OpCreateBuffer:
		return byHandle(args.(*vulkan.CreateBufferArgs).Device)
	case vulkan.OpDestroyBuffer:
		return byHandle(args.(*vulkan.DestroyBufferArgs).Buffer)

	case vulkan.OpCreateImage:
		return byHandle(args.(*vulkan.CreateImageArgs).Device)
	case vulkan.OpDestroyImage:
		return byHandle(args.(*vulkan.DestroyImageArgs).Image)
	case vulkan.OpCreateImageView:
		return byHandle(args.(*vulkan.CreateImageViewArgs).Device)
	case vulkan.OpDestroyImageView:
		return byHandle(args.(*vulkan.DestroyImageViewArgs).ImageView)

	case vulkan.OpCreateShaderModule:
		return byHandle(args.(*vulkan.CreateShaderModuleArgs).Device)
	case vulkan.OpDestroyShaderModule:
		return byHandle(args.(*vulkan.DestroyShaderModuleArgs).ShaderModule)

	case vulkan.OpCreateRenderPass:
		return byHandle(args.(*vulkan.CreateRenderPassArgs).Device)
	case vulkan.OpDestroyRenderPass:
		return byHandle(args.(*vulkan.DestroyRenderPassArgs).RenderPass)

	case vulkan.OpCreateFramebuffer:
		return byHandle(args.(*vulkan.CreateFramebufferArgs).Device)
	case vulkan.OpDestroyFramebuffer:
		return byHandle(args.(*vulkan.DestroyFramebufferArgs).Framebuffer)

	case vulkan.OpCreateGraphicsPipelines:
		return byHandle(args.(*vulkan.CreateGraphicsPipelinesArgs).Device)
	case vulkan.OpDestroyPipeline:
		return byHandle(args.(*vulkan.DestroyPipelineArgs).Pipeline)

	case vulkan.OpCreatePipelineLayout:
		return byHandle(args.(*vulkan.CreatePipelineLayoutArgs).Device)
	case vulkan.OpDestroyPipelineLayout:
		return byHandle(args.(*vulkan.DestroyPipelineLayoutArgs).PipelineLayout)

	case vulkan.OpCreateDescriptorSetLayout:
		return byHandle(args.(*vulkan.CreateDescriptorSetLayoutArgs).Device)
	case vulkan.OpDestroyDescriptorSetLayout:
		return byHandle(args.(*vulkan.DestroyDescriptorSetLayoutArgs).DescriptorSetLayout)

	case vulkan.OpCreateDescriptorPool:
		return byHandle(args.(*vulkan.CreateDescriptorPoolArgs).Device)
	case vulkan.OpDestroyDescriptorPool:
		return byHandle(args.(*vulkan.DestroyDescriptorPoolArgs).DescriptorPool)
	case vulkan.OpAllocateDescriptorSets:
		return byHandle(args.(*vulkan.AllocateDescriptorSetsArgs).DescriptorPool)

	case vulkan.OpCreateCommandPool:
		return byHandle(args.(*vulkan.CreateCommandPoolArgs).Device)
	case vulkan.OpDestroyCommandPool:
		return byHandle(args.(*vulkan.DestroyCommandPoolArgs).CommandPool)
	case vulkan.OpAllocateCommandBuffers:
		return byHandle(args.(*vulkan.AllocateCommandBuffersArgs).CommandPool)
	case vulkan.OpBeginCommandBuffer:
		return byHandle(args.(*vulkan.BeginCommandBufferArgs).CommandBuffer)
	case vulkan.OpEndCommandBuffer:
		return byHandle(args.(*vulkan.EndCommandBufferArgs).CommandBuffer)

	case vulkan.OpQueueSubmit:
		return byHandle(args.(*vulkan.QueueSubmitArgs).CommandBuffer)

	case vulkan.OpCreateFence:
		return byHandle(args.(*vulkan.CreateFenceArgs).Device)
	case vulkan.OpDestroyFence:
		return byHandle(args.(*vulkan.DestroyFenceArgs).Fence)
	case vulkan.OpCreateSemaphore:
		return byHandle(args.(*vulkan.CreateSemaphoreArgs).Device)
	case vulkan.OpDestroySemaphore:
		return byHandle(args.(*vulkan.DestroySemaphoreArgs).Semaphore)

	default:
		return Routing{Kind: None}
	}
}

func byHandle(h handle.Network) Routing {
	return Routing{Kind: ByHandle, Handle: h}
}
