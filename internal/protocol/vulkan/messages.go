package vulkan

import "github.com/Fill84/RGPU-sub000/internal/protocol/handle"

// See cuda/messages.go for the Args/Result convention these mirror.

type CreateInstanceArgs struct {
	ApplicationName string
	ApiVersion      uint32
}
type CreateInstanceResult struct{ Instance handle.Network }

type DestroyInstanceArgs struct{ Instance handle.Network }

type EnumeratePhysicalDevicesArgs struct{ Instance handle.Network }
type EnumeratePhysicalDevicesResult struct{ PhysicalDevices []handle.Network }

type CreateDeviceArgs struct {
	PhysicalDevice handle.Network
	QueueFamilyIndex uint32
}
type CreateDeviceResult struct{ Device handle.Network }

type DestroyDeviceArgs struct{ Device handle.Network }

type GetDeviceQueueArgs struct {
	Device           handle.Network
	QueueFamilyIndex uint32
	QueueIndex       uint32
}
type GetDeviceQueueResult struct{ Queue handle.Network }

type AllocateMemoryArgs struct {
	Device         handle.Network
	Bytes          uint64
	MemoryTypeIndex uint32
}
type AllocateMemoryResult struct{ Memory handle.Network }

type FreeMemoryArgs struct{ Memory handle.Network }

type CreateBufferArgs struct {
	Device handle.Network
	Bytes  uint64
	Usage  uint32
}
type CreateBufferResult struct{ Buffer handle.Network }

type DestroyBufferArgs struct{ Buffer handle.Network }

type CreateImageArgs struct {
	Device handle.Network
	Width  uint32
	Height uint32
	Format uint32
	Usage  uint32
}
type CreateImageResult struct{ Image handle.Network }

type DestroyImageArgs struct{ Image handle.Network }

type CreateImageViewArgs struct {
	Device handle.Network
	Image  handle.Network
	Format uint32
}
type CreateImageViewResult struct{ ImageView handle.Network }

type DestroyImageViewArgs struct{ ImageView handle.Network }

type CreateShaderModuleArgs struct {
	Device handle.Network
	Code   []byte
}
type CreateShaderModuleResult struct{ ShaderModule handle.Network }

type DestroyShaderModuleArgs struct{ ShaderModule handle.Network }

type CreateRenderPassArgs struct {
	Device handle.Network
	Spec   []byte
}
type CreateRenderPassResult struct{ RenderPass handle.Network }

type DestroyRenderPassArgs struct{ RenderPass handle.Network }

type CreateFramebufferArgs struct {
	Device     handle.Network
	RenderPass handle.Network
	Attachments []handle.Network
	Width       uint32
	Height      uint32
}
type CreateFramebufferResult struct{ Framebuffer handle.Network }

type DestroyFramebufferArgs struct{ Framebuffer handle.Network }

type CreateGraphicsPipelinesArgs struct {
	Device         handle.Network
	PipelineLayout handle.Network
	RenderPass     handle.Network
	Spec           []byte
}
type CreateGraphicsPipelinesResult struct{ Pipelines []handle.Network }

type DestroyPipelineArgs struct{ Pipeline handle.Network }

type CreatePipelineLayoutArgs struct {
	Device              handle.Network
	DescriptorSetLayouts []handle.Network
}
type CreatePipelineLayoutResult struct{ PipelineLayout handle.Network }

type DestroyPipelineLayoutArgs struct{ PipelineLayout handle.Network }

type CreateDescriptorSetLayoutArgs struct {
	Device handle.Network
	Spec   []byte
}
type CreateDescriptorSetLayoutResult struct{ DescriptorSetLayout handle.Network }

type DestroyDescriptorSetLayoutArgs struct{ DescriptorSetLayout handle.Network }

type CreateDescriptorPoolArgs struct {
	Device   handle.Network
	MaxSets  uint32
}
type CreateDescriptorPoolResult struct{ DescriptorPool handle.Network }

type DestroyDescriptorPoolArgs struct{ DescriptorPool handle.Network }

type AllocateDescriptorSetsArgs struct {
	DescriptorPool       handle.Network
	DescriptorSetLayouts []handle.Network
}
type AllocateDescriptorSetsResult struct{ DescriptorSets []handle.Network }

type CreateCommandPoolArgs struct {
	Device           handle.Network
	QueueFamilyIndex uint32
}
type CreateCommandPoolResult struct{ CommandPool handle.Network }

type DestroyCommandPoolArgs struct{ CommandPool handle.Network }

type AllocateCommandBuffersArgs struct {
	CommandPool handle.Network
	Count       uint32
}
type AllocateCommandBuffersResult struct{ CommandBuffers []handle.Network }

type BeginCommandBufferArgs struct{ CommandBuffer handle.Network }

type EndCommandBufferArgs struct{ CommandBuffer handle.Network }

// QueueSubmitArgs is sent after SubmitRecordedCommands has replayed the
// buffered vkCmd* calls; it carries only the synchronization primitives,
// not the command list (S5).
type QueueSubmitArgs struct {
	Queue         handle.Network
	CommandBuffer handle.Network
	WaitSemaphores   []handle.Network
	SignalSemaphores []handle.Network
	Fence            handle.Network
}

type CreateFenceArgs struct {
	Device  handle.Network
	Flags   uint32
}
type CreateFenceResult struct{ Fence handle.Network }

type DestroyFenceArgs struct{ Fence handle.Network }

type CreateSemaphoreArgs struct{ Device handle.Network }
type CreateSemaphoreResult struct{ Semaphore handle.Network }

type DestroySemaphoreArgs struct{ Semaphore handle.Network }

// The vkCmd* family: these Args are what the client recorder buffers
// between Begin/End and ships in one SubmitRecordedCommands message.

type CmdBindPipelineArgs struct {
	CommandBuffer handle.Network
	Pipeline      handle.Network
}

type CmdBindDescriptorSetsArgs struct {
	CommandBuffer  handle.Network
	PipelineLayout handle.Network
	DescriptorSets []handle.Network
}

type CmdDispatchArgs struct {
	CommandBuffer handle.Network
	GroupCountX   uint32
	GroupCountY   uint32
	GroupCountZ   uint32
}

type CmdDrawArgs struct {
	CommandBuffer handle.Network
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

type CmdCopyBufferArgs struct {
	CommandBuffer handle.Network
	SrcBuffer     handle.Network
	DstBuffer     handle.Network
	Bytes         uint64
}

type CmdPipelineBarrierArgs struct {
	CommandBuffer handle.Network
	Spec          []byte
}
