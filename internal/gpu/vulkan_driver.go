package gpu

import "context"

// VulkanDriver is the seam between the per-session executor and a real
// (dynamically loaded libvulkan/vulkan-1) or simulated Vulkan 1.x
// implementation. Local ids are driver-private and never cross the wire.
type VulkanDriver interface {
	CreateInstance(ctx context.Context, appName string, apiVersion uint32) (localID uint64, err error)
	DestroyInstance(ctx context.Context, localID uint64) error
	EnumeratePhysicalDevices(ctx context.Context, instanceID uint64) (localIDs []uint64, err error)

	CreateDevice(ctx context.Context, physicalDeviceID uint64, queueFamilyIndex uint32) (localID uint64, err error)
	DestroyDevice(ctx context.Context, localID uint64) error
	GetDeviceQueue(ctx context.Context, deviceID uint64, queueFamilyIndex, queueIndex uint32) (localID uint64, err error)

	AllocateMemory(ctx context.Context, deviceID uint64, bytes uint64, memoryTypeIndex uint32) (localID uint64, err error)
	FreeMemory(ctx context.Context, localID uint64) error

	CreateBuffer(ctx context.Context, deviceID uint64, bytes uint64, usage uint32) (localID uint64, err error)
	DestroyBuffer(ctx context.Context, localID uint64) error

	CreateImage(ctx context.Context, deviceID uint64, width, height, format, usage uint32) (localID uint64, err error)
	DestroyImage(ctx context.Context, localID uint64) error
	CreateImageView(ctx context.Context, deviceID, imageID uint64, format uint32) (localID uint64, err error)
	DestroyImageView(ctx context.Context, localID uint64) error

	CreateShaderModule(ctx context.Context, deviceID uint64, code []byte) (localID uint64, err error)
	DestroyShaderModule(ctx context.Context, localID uint64) error

	CreateRenderPass(ctx context.Context, deviceID uint64, spec []byte) (localID uint64, err error)
	DestroyRenderPass(ctx context.Context, localID uint64) error
	CreateFramebuffer(ctx context.Context, deviceID, renderPassID uint64, attachmentIDs []uint64, width, height uint32) (localID uint64, err error)
	DestroyFramebuffer(ctx context.Context, localID uint64) error

	CreateGraphicsPipelines(ctx context.Context, deviceID, layoutID, renderPassID uint64, spec []byte) (localIDs []uint64, err error)
	DestroyPipeline(ctx context.Context, localID uint64) error
	CreatePipelineLayout(ctx context.Context, deviceID uint64, setLayoutIDs []uint64) (localID uint64, err error)
	DestroyPipelineLayout(ctx context.Context, localID uint64) error

	CreateDescriptorSetLayout(ctx context.Context, deviceID uint64, spec []byte) (localID uint64, err error)
	DestroyDescriptorSetLayout(ctx context.Context, localID uint64) error
	CreateDescriptorPool(ctx context.Context, deviceID uint64, maxSets uint32) (localID uint64, err error)
	DestroyDescriptorPool(ctx context.Context, localID uint64) error
	AllocateDescriptorSets(ctx context.Context, poolID uint64, setLayoutIDs []uint64) (localIDs []uint64, err error)

	CreateCommandPool(ctx context.Context, deviceID uint64, queueFamilyIndex uint32) (localID uint64, err error)
	DestroyCommandPool(ctx context.Context, localID uint64) error
	AllocateCommandBuffers(ctx context.Context, poolID uint64, count uint32) (localIDs []uint64, err error)

	BeginCommandBuffer(ctx context.Context, commandBufferID uint64) error
	EndCommandBuffer(ctx context.Context, commandBufferID uint64) error
	CmdBindPipeline(ctx context.Context, commandBufferID, pipelineID uint64) error
	CmdBindDescriptorSets(ctx context.Context, commandBufferID, layoutID uint64, setIDs []uint64) error
	CmdDispatch(ctx context.Context, commandBufferID uint64, x, y, z uint32) error
	CmdDraw(ctx context.Context, commandBufferID uint64, vertexCount, instanceCount, firstVertex, firstInstance uint32) error
	CmdCopyBuffer(ctx context.Context, commandBufferID, srcBufferID, dstBufferID uint64, bytes uint64) error
	CmdPipelineBarrier(ctx context.Context, commandBufferID uint64, spec []byte) error

	QueueSubmit(ctx context.Context, queueID, commandBufferID uint64, waitSemIDs, signalSemIDs []uint64, fenceID uint64) error

	CreateFence(ctx context.Context, deviceID uint64, flags uint32) (localID uint64, err error)
	DestroyFence(ctx context.Context, localID uint64) error
	CreateSemaphore(ctx context.Context, deviceID uint64) (localID uint64, err error)
	DestroySemaphore(ctx context.Context, localID uint64) error
}
