package router

import (
	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/protocol/vulkan"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// FromCudaCommand classifies a wire.CudaCommand's routing by decoding its
// Args into the concrete struct ExtractCuda expects for that opcode. This
// is what the daemon uses: unlike the interpose shim (which already holds
// the typed Args it is about to send), the daemon only ever sees a
// CudaCommand that has already been XDR-encoded over the local IPC
// socket.
func FromCudaCommand(cmd wire.CudaCommand) (Routing, error) {
	args, err := decodeCudaArgs(cmd.Opcode, cmd.Args)
	if err != nil {
		return Routing{}, err
	}
	return ExtractCuda(cmd.Opcode, args), nil
}

// FromVulkanCommand is FromCudaCommand's Vulkan counterpart.
func FromVulkanCommand(cmd wire.VulkanCommand) (Routing, error) {
	args, err := decodeVulkanArgs(cmd.Opcode, cmd.Args)
	if err != nil {
		return Routing{}, err
	}
	return ExtractVulkan(cmd.Opcode, args), nil
}

func decodeCudaArgs(op cuda.Opcode, body []byte) (any, error) {
	var dst any
	switch op {
	case cuda.OpDeviceGetCount:
		dst = &cuda.DeviceGetCountArgs{}
	case cuda.OpDeviceGet:
		dst = &cuda.DeviceGetArgs{}
	case cuda.OpDeviceGetName:
		dst = &cuda.DeviceGetNameArgs{}
	case cuda.OpDeviceGetUuid:
		dst = &cuda.DeviceGetUuidArgs{}
	case cuda.OpDeviceGetPCIBusId:
		dst = &cuda.DeviceGetPCIBusIdArgs{}
	case cuda.OpDeviceTotalMem:
		dst = &cuda.DeviceTotalMemArgs{}
	case cuda.OpCtxCreate:
		dst = &cuda.CtxCreateArgs{}
	case cuda.OpCtxDestroy:
		dst = &cuda.CtxDestroyArgs{}
	case cuda.OpCtxSetCurrent:
		dst = &cuda.CtxSetCurrentArgs{}
	case cuda.OpModuleLoad:
		dst = &cuda.ModuleLoadArgs{}
	case cuda.OpModuleLoadData:
		dst = &cuda.ModuleLoadDataArgs{}
	case cuda.OpModuleUnload:
		dst = &cuda.ModuleUnloadArgs{}
	case cuda.OpModuleGetFunction:
		dst = &cuda.ModuleGetFunctionArgs{}
	case cuda.OpMemAlloc:
		dst = &cuda.MemAllocArgs{}
	case cuda.OpMemFree:
		dst = &cuda.MemFreeArgs{}
	case cuda.OpMemcpyHtoD:
		dst = &cuda.MemcpyHtoDArgs{}
	case cuda.OpMemcpyDtoH:
		dst = &cuda.MemcpyDtoHArgs{}
	case cuda.OpMemcpyDtoD:
		dst = &cuda.MemcpyDtoDArgs{}
	case cuda.OpStreamCreate:
		dst = &cuda.StreamCreateArgs{}
	case cuda.OpStreamDestroy:
		dst = &cuda.StreamDestroyArgs{}
	case cuda.OpStreamSynchronize:
		dst = &cuda.StreamSynchronizeArgs{}
	case cuda.OpEventCreate:
		dst = &cuda.EventCreateArgs{}
	case cuda.OpEventDestroy:
		dst = &cuda.EventDestroyArgs{}
	case cuda.OpEventRecord:
		dst = &cuda.EventRecordArgs{}
	case cuda.OpEventSynchronize:
		dst = &cuda.EventSynchronizeArgs{}
	case cuda.OpEventElapsedTime:
		dst = &cuda.EventElapsedTimeArgs{}
	case cuda.OpLaunchKernel:
		dst = &cuda.LaunchKernelArgs{}
	case cuda.OpMemPoolCreate:
		dst = &cuda.MemPoolCreateArgs{}
	case cuda.OpMemPoolDestroy:
		dst = &cuda.MemPoolDestroyArgs{}
	case cuda.OpMemPoolTrimTo:
		dst = &cuda.MemPoolTrimToArgs{}
	case cuda.OpLinkerCreate:
		dst = &cuda.LinkerCreateArgs{}
	case cuda.OpLinkerAddData:
		dst = &cuda.LinkerAddDataArgs{}
	case cuda.OpLinkerComplete:
		dst = &cuda.LinkerCompleteArgs{}
	case cuda.OpLinkerDestroy:
		dst = &cuda.LinkerDestroyArgs{}
	case cuda.OpHostAlloc:
		dst = &cuda.HostAllocArgs{}
	case cuda.OpHostFree:
		dst = &cuda.HostFreeArgs{}
	default:
		dst = &cuda.DeviceGetCountArgs{}
	}
	if err := wire.DecodeBody(body, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

func decodeVulkanArgs(op vulkan.Opcode, body []byte) (any, error) {
	var dst any
	switch op {
	case vulkan.OpCreateInstance:
		dst = &vulkan.CreateInstanceArgs{}
	case vulkan.OpDestroyInstance:
		dst = &vulkan.DestroyInstanceArgs{}
	case vulkan.OpEnumeratePhysicalDevices:
		dst = &vulkan.EnumeratePhysicalDevicesArgs{}
	case vulkan.OpCreateDevice:
		dst = &vulkan.CreateDeviceArgs{}
	case vulkan.OpDestroyDevice:
		dst = &vulkan.DestroyDeviceArgs{}
	case vulkan.OpGetDeviceQueue:
		dst = &vulkan.GetDeviceQueueArgs{}
	case vulkan.OpAllocateMemory:
		dst = &vulkan.AllocateMemoryArgs{}
	case vulkan.OpFreeMemory:
		dst = &vulkan.FreeMemoryArgs{}
	case vulkan.OpCreateBuffer:
		dst = &vulkan.CreateBufferArgs{}
	case vulkan.OpDestroyBuffer:
		dst = &vulkan.DestroyBufferArgs{}
	case vulkan.OpCreateImage:
		dst = &vulkan.CreateImageArgs{}
	case vulkan.OpDestroyImage:
		dst = &vulkan.DestroyImageArgs{}
	case vulkan.OpCreateImageView:
		dst = &vulkan.CreateImageViewArgs{}
	case vulkan.OpDestroyImageView:
		dst = &vulkan.DestroyImageViewArgs{}
	case vulkan.OpCreateShaderModule:
		dst = &vulkan.CreateShaderModuleArgs{}
	case vulkan.OpDestroyShaderModule:
		dst = &vulkan.DestroyShaderModuleArgs{}
	case vulkan.OpCreateRenderPass:
		dst = &vulkan.CreateRenderPassArgs{}
	case vulkan.OpDestroyRenderPass:
		dst = &vulkan.DestroyRenderPassArgs{}
	case vulkan.OpCreateFramebuffer:
		dst = &vulkan.CreateFramebufferArgs{}
	case vulkan.OpDestroyFramebuffer:
		dst = &vulkan.DestroyFramebufferArgs{}
	case vulkan.OpCreateGraphicsPipelines:
		dst = &vulkan.CreateGraphicsPipelinesArgs{}
	case vulkan.OpDestroyPipeline:
		dst = &vulkan.DestroyPipelineArgs{}
	case vulkan.OpCreatePipelineLayout:
		dst = &vulkan.CreatePipelineLayoutArgs{}
	case vulkan.OpDestroyPipelineLayout:
		dst = &vulkan.DestroyPipelineLayoutArgs{}
	case vulkan.OpCreateDescriptorSetLayout:
		dst = &vulkan.CreateDescriptorSetLayoutArgs{}
	case vulkan.OpDestroyDescriptorSetLayout:
		dst = &vulkan.DestroyDescriptorSetLayoutArgs{}
	case vulkan.OpCreateDescriptorPool:
		dst = &vulkan.CreateDescriptorPoolArgs{}
	case vulkan.OpDestroyDescriptorPool:
		dst = &vulkan.DestroyDescriptorPoolArgs{}
	case vulkan.OpAllocateDescriptorSets:
		dst = &vulkan.AllocateDescriptorSetsArgs{}
	case vulkan.OpCreateCommandPool:
		dst = &vulkan.CreateCommandPoolArgs{}
	case vulkan.OpDestroyCommandPool:
		dst = &vulkan.DestroyCommandPoolArgs{}
	case vulkan.OpAllocateCommandBuffers:
		dst = &vulkan.AllocateCommandBuffersArgs{}
	case vulkan.OpBeginCommandBuffer:
		dst = &vulkan.BeginCommandBufferArgs{}
	case vulkan.OpEndCommandBuffer:
		dst = &vulkan.EndCommandBufferArgs{}
	case vulkan.OpQueueSubmit:
		dst = &vulkan.QueueSubmitArgs{}
	case vulkan.OpCreateFence:
		dst = &vulkan.CreateFenceArgs{}
	case vulkan.OpDestroyFence:
		dst = &vulkan.DestroyFenceArgs{}
	case vulkan.OpCreateSemaphore:
		dst = &vulkan.CreateSemaphoreArgs{}
	case vulkan.OpDestroySemaphore:
		dst = &vulkan.DestroySemaphoreArgs{}
	default:
		dst = &vulkan.CreateInstanceArgs{}
	}
	if err := wire.DecodeBody(body, dst); err != nil {
		return nil, err
	}
	return dst, nil
}
