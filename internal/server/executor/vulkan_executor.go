package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/Fill84/RGPU-sub000/internal/gpu"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/protocol/vulkan"
	"github.com/Fill84/RGPU-sub000/internal/server/session"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

// VulkanExecutor is the Vulkan counterpart of CudaExecutor.
type VulkanExecutor struct {
	driver gpu.VulkanDriver

	mu       sync.Mutex
	sessions map[uint32]*session.Session
}

func NewVulkanExecutor(driver gpu.VulkanDriver) *VulkanExecutor {
	return &VulkanExecutor{driver: driver, sessions: make(map[uint32]*session.Session)}
}

func (e *VulkanExecutor) sessionFor(id uint32, serverID uint16) *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		s = session.New(id, serverID)
		e.sessions[id] = s
	}
	return s
}

// CleanupSession runs the reverse-dependency destroy pass for session id
// and forgets it (S4, P3).
func (e *VulkanExecutor) CleanupSession(ctx context.Context, id uint32) {
	e.mu.Lock()
	s, ok := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()
	if !ok || e.driver == nil {
		return
	}
	session.CleanupVulkan(ctx, s, e.driver)
}

func (e *VulkanExecutor) destroySimple(s *session.Session, h handle.Network, destroy func(uint64) error) wire.CommandResult {
	localID, err := s.Get(h)
	if err != nil {
		return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
	}
	if err := destroy(localID); err != nil {
		return driverErrorResult(err)
	}
	s.Remove(h)
	return wire.CommandResult{Kind: wire.ResultScalar}
}

func (e *VulkanExecutor) resolveAll(s *session.Session, hs []handle.Network) ([]uint64, error) {
	ids := make([]uint64, len(hs))
	for i, h := range hs {
		id, err := s.Get(h)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Execute runs one VulkanCommand against sessionID's handle tables and the
// underlying driver. Recorded commands (vkCmd*) never reach Execute
// directly — they arrive bundled in a SubmitRecordedCommands message,
// handled by ReplayRecordedCommands below (S5).
func (e *VulkanExecutor) Execute(ctx context.Context, sessionID uint32, serverID uint16, cmd wire.VulkanCommand) wire.CommandResult {
	s := e.sessionFor(sessionID, serverID)
	if e.driver == nil {
		return unavailable("no Vulkan driver loaded")
	}

	switch cmd.Opcode {
	case vulkan.OpCreateInstance:
		var args vulkan.CreateInstanceArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		localID, err := e.driver.CreateInstance(ctx, args.ApplicationName, args.ApiVersion)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkInstance, localID))

	case vulkan.OpDestroyInstance:
		var args vulkan.DestroyInstanceArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.Instance, func(id uint64) error { return e.driver.DestroyInstance(ctx, id) })

	case vulkan.OpEnumeratePhysicalDevices:
		var args vulkan.EnumeratePhysicalDevicesArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		instID, err := s.Get(args.Instance)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localIDs, err := e.driver.EnumeratePhysicalDevices(ctx, instID)
		if err != nil {
			return driverErrorResult(err)
		}
		hs := make([]handle.Network, len(localIDs))
		for i, id := range localIDs {
			hs[i] = s.Allocate(handle.VkPhysicalDevice, id)
		}
		return handlesResult(hs)

	case vulkan.OpCreateDevice:
		var args vulkan.CreateDeviceArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		pdID, err := s.Get(args.PhysicalDevice)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateDevice(ctx, pdID, args.QueueFamilyIndex)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkDevice, localID))

	case vulkan.OpDestroyDevice:
		var args vulkan.DestroyDeviceArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.Device, func(id uint64) error { return e.driver.DestroyDevice(ctx, id) })

	case vulkan.OpGetDeviceQueue:
		var args vulkan.GetDeviceQueueArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.GetDeviceQueue(ctx, devID, args.QueueFamilyIndex, args.QueueIndex)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkQueue, localID))

	case vulkan.OpAllocateMemory:
		var args vulkan.AllocateMemoryArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.AllocateMemory(ctx, devID, args.Bytes, args.MemoryTypeIndex)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkDeviceMemory, localID))

	case vulkan.OpFreeMemory:
		var args vulkan.FreeMemoryArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.Memory, func(id uint64) error { return e.driver.FreeMemory(ctx, id) })

	case vulkan.OpCreateBuffer:
		var args vulkan.CreateBufferArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateBuffer(ctx, devID, args.Bytes, args.Usage)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkBuffer, localID))

	case vulkan.OpDestroyBuffer:
		var args vulkan.DestroyBufferArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.Buffer, func(id uint64) error { return e.driver.DestroyBuffer(ctx, id) })

	case vulkan.OpCreateImage:
		var args vulkan.CreateImageArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateImage(ctx, devID, args.Width, args.Height, args.Format, args.Usage)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkImage, localID))

	case vulkan.OpDestroyImage:
		var args vulkan.DestroyImageArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.Image, func(id uint64) error { return e.driver.DestroyImage(ctx, id) })

	case vulkan.OpCreateImageView:
		var args vulkan.CreateImageViewArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		imgID, err := s.Get(args.Image)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateImageView(ctx, devID, imgID, args.Format)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkImageView, localID))

	case vulkan.OpDestroyImageView:
		var args vulkan.DestroyImageViewArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.ImageView, func(id uint64) error { return e.driver.DestroyImageView(ctx, id) })

	case vulkan.OpCreateShaderModule:
		var args vulkan.CreateShaderModuleArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateShaderModule(ctx, devID, args.Code)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkShaderModule, localID))

	case vulkan.OpDestroyShaderModule:
		var args vulkan.DestroyShaderModuleArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.ShaderModule, func(id uint64) error { return e.driver.DestroyShaderModule(ctx, id) })

	case vulkan.OpCreateRenderPass:
		var args vulkan.CreateRenderPassArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateRenderPass(ctx, devID, args.Spec)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkRenderPass, localID))

	case vulkan.OpDestroyRenderPass:
		var args vulkan.DestroyRenderPassArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.RenderPass, func(id uint64) error { return e.driver.DestroyRenderPass(ctx, id) })

	case vulkan.OpCreateFramebuffer:
		var args vulkan.CreateFramebufferArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		rpID, err := s.Get(args.RenderPass)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		attIDs, err := e.resolveAll(s, args.Attachments)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateFramebuffer(ctx, devID, rpID, attIDs, args.Width, args.Height)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkFramebuffer, localID))

	case vulkan.OpDestroyFramebuffer:
		var args vulkan.DestroyFramebufferArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.Framebuffer, func(id uint64) error { return e.driver.DestroyFramebuffer(ctx, id) })

	case vulkan.OpCreateGraphicsPipelines:
		var args vulkan.CreateGraphicsPipelinesArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		layoutID, err := s.Get(args.PipelineLayout)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		rpID, err := s.Get(args.RenderPass)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localIDs, err := e.driver.CreateGraphicsPipelines(ctx, devID, layoutID, rpID, args.Spec)
		if err != nil {
			return driverErrorResult(err)
		}
		hs := make([]handle.Network, len(localIDs))
		for i, id := range localIDs {
			hs[i] = s.Allocate(handle.VkPipeline, id)
		}
		return handlesResult(hs)

	case vulkan.OpDestroyPipeline:
		var args vulkan.DestroyPipelineArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.Pipeline, func(id uint64) error { return e.driver.DestroyPipeline(ctx, id) })

	case vulkan.OpCreatePipelineLayout:
		var args vulkan.CreatePipelineLayoutArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		setLayoutIDs, err := e.resolveAll(s, args.DescriptorSetLayouts)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreatePipelineLayout(ctx, devID, setLayoutIDs)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkPipelineLayout, localID))

	case vulkan.OpDestroyPipelineLayout:
		var args vulkan.DestroyPipelineLayoutArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.PipelineLayout, func(id uint64) error { return e.driver.DestroyPipelineLayout(ctx, id) })

	case vulkan.OpCreateDescriptorSetLayout:
		var args vulkan.CreateDescriptorSetLayoutArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateDescriptorSetLayout(ctx, devID, args.Spec)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkDescriptorSetLayout, localID))

	case vulkan.OpDestroyDescriptorSetLayout:
		var args vulkan.DestroyDescriptorSetLayoutArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.DescriptorSetLayout, func(id uint64) error { return e.driver.DestroyDescriptorSetLayout(ctx, id) })

	case vulkan.OpCreateDescriptorPool:
		var args vulkan.CreateDescriptorPoolArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateDescriptorPool(ctx, devID, args.MaxSets)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkDescriptorPool, localID))

	case vulkan.OpDestroyDescriptorPool:
		var args vulkan.DestroyDescriptorPoolArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.DescriptorPool, func(id uint64) error { return e.driver.DestroyDescriptorPool(ctx, id) })

	case vulkan.OpAllocateDescriptorSets:
		var args vulkan.AllocateDescriptorSetsArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		poolID, err := s.Get(args.DescriptorPool)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		layoutIDs, err := e.resolveAll(s, args.DescriptorSetLayouts)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localIDs, err := e.driver.AllocateDescriptorSets(ctx, poolID, layoutIDs)
		if err != nil {
			return driverErrorResult(err)
		}
		hs := make([]handle.Network, len(localIDs))
		for i, id := range localIDs {
			hs[i] = s.Allocate(handle.VkDescriptorSet, id)
		}
		return handlesResult(hs)

	case vulkan.OpCreateCommandPool:
		var args vulkan.CreateCommandPoolArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateCommandPool(ctx, devID, args.QueueFamilyIndex)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkCommandPool, localID))

	case vulkan.OpDestroyCommandPool:
		var args vulkan.DestroyCommandPoolArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.CommandPool, func(id uint64) error { return e.driver.DestroyCommandPool(ctx, id) })

	case vulkan.OpAllocateCommandBuffers:
		var args vulkan.AllocateCommandBuffersArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		poolID, err := s.Get(args.CommandPool)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localIDs, err := e.driver.AllocateCommandBuffers(ctx, poolID, args.Count)
		if err != nil {
			return driverErrorResult(err)
		}
		hs := make([]handle.Network, len(localIDs))
		for i, id := range localIDs {
			hs[i] = s.Allocate(handle.VkCommandBuffer, id)
		}
		return handlesResult(hs)

	case vulkan.OpBeginCommandBuffer:
		var args vulkan.BeginCommandBufferArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		cbID, err := s.Get(args.CommandBuffer)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if err := e.driver.BeginCommandBuffer(ctx, cbID); err != nil {
			return driverErrorResult(err)
		}
		return wire.CommandResult{Kind: wire.ResultScalar}

	case vulkan.OpEndCommandBuffer:
		var args vulkan.EndCommandBufferArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		cbID, err := s.Get(args.CommandBuffer)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if err := e.driver.EndCommandBuffer(ctx, cbID); err != nil {
			return driverErrorResult(err)
		}
		return wire.CommandResult{Kind: wire.ResultScalar}

	case vulkan.OpQueueSubmit:
		var args vulkan.QueueSubmitArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.queueSubmit(ctx, s, args)

	case vulkan.OpCreateFence:
		var args vulkan.CreateFenceArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateFence(ctx, devID, args.Flags)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkFence, localID))

	case vulkan.OpDestroyFence:
		var args vulkan.DestroyFenceArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.Fence, func(id uint64) error { return e.driver.DestroyFence(ctx, id) })

	case vulkan.OpCreateSemaphore:
		var args vulkan.CreateSemaphoreArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		devID, err := s.Get(args.Device)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		localID, err := e.driver.CreateSemaphore(ctx, devID)
		if err != nil {
			return driverErrorResult(err)
		}
		return handleResult(s.Allocate(handle.VkSemaphore, localID))

	case vulkan.OpDestroySemaphore:
		var args vulkan.DestroySemaphoreArgs
		if err := wire.DecodeBody(cmd.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		return e.destroySimple(s, args.Semaphore, func(id uint64) error { return e.driver.DestroySemaphore(ctx, id) })

	default:
		if cmd.Opcode.IsRecordedCommand() {
			return errorResult(wire.ErrorKindNotSupported, 0, "vkCmd* opcodes must arrive inside SubmitRecordedCommands")
		}
		return errorResult(wire.ErrorKindNotSupported, 0, "unknown Vulkan opcode")
	}
}

func (e *VulkanExecutor) queueSubmit(ctx context.Context, s *session.Session, args vulkan.QueueSubmitArgs) wire.CommandResult {
	queueID, err := s.Get(args.Queue)
	if err != nil {
		return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
	}
	cbID, err := s.Get(args.CommandBuffer)
	if err != nil {
		return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
	}
	waitIDs, err := e.resolveAll(s, args.WaitSemaphores)
	if err != nil {
		return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
	}
	signalIDs, err := e.resolveAll(s, args.SignalSemaphores)
	if err != nil {
		return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
	}
	var fenceID uint64
	if !args.Fence.IsZero() {
		fenceID, err = s.Get(args.Fence)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
	}
	if err := e.driver.QueueSubmit(ctx, queueID, cbID, waitIDs, signalIDs, fenceID); err != nil {
		return driverErrorResult(err)
	}
	return wire.CommandResult{Kind: wire.ResultScalar}
}

// ReplayRecordedCommands runs the buffered vkCmd* calls a
// SubmitRecordedCommands message carries, between a real
// BeginCommandBuffer/EndCommandBuffer pair, exactly reproducing what the
// client would have sent immediately had recording not deferred them
// (spec.md §4.5, S5). It stops at the first failing command.
func (e *VulkanExecutor) ReplayRecordedCommands(ctx context.Context, sessionID uint32, serverID uint16, msg wire.SubmitRecordedCommands) wire.CommandResult {
	s := e.sessionFor(sessionID, serverID)
	if e.driver == nil {
		return unavailable("no Vulkan driver loaded")
	}

	cbID, err := s.Get(msg.CommandBuffer)
	if err != nil {
		return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
	}

	if err := e.driver.BeginCommandBuffer(ctx, cbID); err != nil {
		return driverErrorResult(err)
	}

	for _, rec := range msg.RecordedCommands {
		if result := e.replayOne(ctx, s, cbID, rec); result.Kind == wire.ResultError {
			_ = e.driver.EndCommandBuffer(ctx, cbID)
			return result
		}
	}

	if err := e.driver.EndCommandBuffer(ctx, cbID); err != nil {
		return driverErrorResult(err)
	}
	return wire.CommandResult{Kind: wire.ResultScalar}
}

func (e *VulkanExecutor) replayOne(ctx context.Context, s *session.Session, cbID uint64, rec wire.VulkanCommand) wire.CommandResult {
	switch rec.Opcode {
	case vulkan.OpCmdBindPipeline:
		var args vulkan.CmdBindPipelineArgs
		if err := wire.DecodeBody(rec.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		pipelineID, err := s.Get(args.Pipeline)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if err := e.driver.CmdBindPipeline(ctx, cbID, pipelineID); err != nil {
			return driverErrorResult(err)
		}

	case vulkan.OpCmdBindDescriptorSets:
		var args vulkan.CmdBindDescriptorSetsArgs
		if err := wire.DecodeBody(rec.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		layoutID, err := s.Get(args.PipelineLayout)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		setIDs, err := e.resolveAll(s, args.DescriptorSets)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if err := e.driver.CmdBindDescriptorSets(ctx, cbID, layoutID, setIDs); err != nil {
			return driverErrorResult(err)
		}

	case vulkan.OpCmdDispatch:
		var args vulkan.CmdDispatchArgs
		if err := wire.DecodeBody(rec.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		if err := e.driver.CmdDispatch(ctx, cbID, args.GroupCountX, args.GroupCountY, args.GroupCountZ); err != nil {
			return driverErrorResult(err)
		}

	case vulkan.OpCmdDraw:
		var args vulkan.CmdDrawArgs
		if err := wire.DecodeBody(rec.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		if err := e.driver.CmdDraw(ctx, cbID, args.VertexCount, args.InstanceCount, args.FirstVertex, args.FirstInstance); err != nil {
			return driverErrorResult(err)
		}

	case vulkan.OpCmdCopyBuffer:
		var args vulkan.CmdCopyBufferArgs
		if err := wire.DecodeBody(rec.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		srcID, err := s.Get(args.SrcBuffer)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		dstID, err := s.Get(args.DstBuffer)
		if err != nil {
			return errorResult(wire.ErrorKindInvalidHandle, 0, err.Error())
		}
		if err := e.driver.CmdCopyBuffer(ctx, cbID, srcID, dstID, args.Bytes); err != nil {
			return driverErrorResult(err)
		}

	case vulkan.OpCmdPipelineBarrier:
		var args vulkan.CmdPipelineBarrierArgs
		if err := wire.DecodeBody(rec.Args, &args); err != nil {
			return driverErrorResult(err)
		}
		if err := e.driver.CmdPipelineBarrier(ctx, cbID, args.Spec); err != nil {
			return driverErrorResult(err)
		}

	default:
		return errorResult(wire.ErrorKindNotSupported, 0, fmt.Sprintf("opcode %s is not a recordable command", rec.Opcode))
	}
	return wire.CommandResult{Kind: wire.ResultScalar}
}
