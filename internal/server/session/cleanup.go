package session

import (
	"context"

	"github.com/Fill84/RGPU-sub000/internal/gpu"
	"github.com/Fill84/RGPU-sub000/internal/logger"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
)

// CleanupCuda destroys every live CUDA handle in s in strict
// reverse-dependency order, exactly as original_source's cuda_executor.rs
// cleanup_session does: events, then streams, then device memory (and its
// device_ptr secondary index), then host memory, then linkers, then
// functions (tracking-only — the Driver API has no per-function destroy,
// they die with their module), then modules, then contexts, then
// mempools (tracking-only — pools are owned by their context and are not
// independently destroyable at cleanup time). Devices are never destroyed;
// they are not session-owned. This order is the authoritative
// implementation of spec.md §9's "reverse-dependency cleanup order" note
// and is what P3/S4 require.
func CleanupCuda(ctx context.Context, s *Session, driver gpu.CudaDriver) {
	destroyEach(ctx, s, handle.CuEvent, func(localID uint64) error { return driver.EventDestroy(ctx, localID) })
	destroyEach(ctx, s, handle.CuStream, func(localID uint64) error { return driver.StreamDestroy(ctx, localID) })

	for _, h := range s.Handles(handle.CuDevicePtr) {
		localID, err := s.Get(h)
		if err != nil {
			continue
		}
		devicePtr := localID
		if err := driver.MemFree(ctx, devicePtr); err != nil {
			logger.WarnCtx(ctx, "cleanup: MemFree failed", "handle", h.String(), "error", err)
		}
		s.RemoveDevicePtr(devicePtr)
		s.Remove(h)
	}

	for _, h := range s.Handles(handle.CuHostPtr) {
		localID, err := s.Get(h)
		if err != nil {
			continue
		}
		hostPtr := localID
		if err := driver.HostFree(ctx, hostPtr); err != nil {
			logger.WarnCtx(ctx, "cleanup: HostFree failed", "handle", h.String(), "error", err)
		}
		s.RemoveHostPtr(hostPtr)
		s.Remove(h)
	}

	destroyEach(ctx, s, handle.CuLinker, func(localID uint64) error { return driver.LinkerDestroy(ctx, localID) })

	// Functions are tracking-only: no driver call, they die with their module.
	for _, h := range s.Handles(handle.CuFunction) {
		s.Remove(h)
	}

	destroyEach(ctx, s, handle.CuModule, func(localID uint64) error { return driver.ModuleUnload(ctx, localID) })
	destroyEach(ctx, s, handle.CuContext, func(localID uint64) error { return driver.CtxDestroy(ctx, localID) })

	// Mempools are tracking-only at cleanup: they belong to their context
	// and do not outlive it independently.
	for _, h := range s.Handles(handle.CuMemPool) {
		s.Remove(h)
	}
}

// vulkanCleanupOrder is the declarative reverse-dependency order spec.md
// §9 calls for ("buffers before memory, pipelines before pipeline
// layouts, etc."), expressed as a table instead of being repeated at
// every disconnect site.
var vulkanCleanupOrder = []handle.ResourceType{
	handle.VkCommandBuffer,
	handle.VkCommandPool,
	handle.VkDescriptorSet,
	handle.VkDescriptorPool,
	handle.VkDescriptorSetLayout,
	handle.VkPipeline,
	handle.VkPipelineLayout,
	handle.VkFramebuffer,
	handle.VkRenderPass,
	handle.VkImageView,
	handle.VkImage,
	handle.VkShaderModule,
	handle.VkBuffer,
	handle.VkDeviceMemory,
	handle.VkFence,
	handle.VkSemaphore,
	handle.VkQueue,
	handle.VkDevice,
	handle.VkPhysicalDevice,
	handle.VkInstance,
}

// CleanupVulkan destroys every live Vulkan handle in s in the order
// vulkanCleanupOrder declares. Queues and physical devices are not
// independently destroyable in the Vulkan API; they are removed from the
// table without a driver call.
func CleanupVulkan(ctx context.Context, s *Session, driver gpu.VulkanDriver) {
	for _, kind := range vulkanCleanupOrder {
		switch kind {
		case handle.VkQueue, handle.VkPhysicalDevice:
			for _, h := range s.Handles(kind) {
				s.Remove(h)
			}
		case handle.VkCommandBuffer:
			for _, h := range s.Handles(kind) {
				s.Remove(h)
			}
		case handle.VkCommandPool:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyCommandPool(ctx, localID) })
		case handle.VkDescriptorSet:
			for _, h := range s.Handles(kind) {
				s.Remove(h)
			}
		case handle.VkDescriptorPool:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyDescriptorPool(ctx, localID) })
		case handle.VkDescriptorSetLayout:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyDescriptorSetLayout(ctx, localID) })
		case handle.VkPipeline:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyPipeline(ctx, localID) })
		case handle.VkPipelineLayout:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyPipelineLayout(ctx, localID) })
		case handle.VkFramebuffer:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyFramebuffer(ctx, localID) })
		case handle.VkRenderPass:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyRenderPass(ctx, localID) })
		case handle.VkImageView:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyImageView(ctx, localID) })
		case handle.VkImage:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyImage(ctx, localID) })
		case handle.VkShaderModule:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyShaderModule(ctx, localID) })
		case handle.VkBuffer:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyBuffer(ctx, localID) })
		case handle.VkDeviceMemory:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.FreeMemory(ctx, localID) })
		case handle.VkFence:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyFence(ctx, localID) })
		case handle.VkSemaphore:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroySemaphore(ctx, localID) })
		case handle.VkDevice:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyDevice(ctx, localID) })
		case handle.VkInstance:
			destroyEach(ctx, s, kind, func(localID uint64) error { return driver.DestroyInstance(ctx, localID) })
		}
	}
}

func destroyEach(ctx context.Context, s *Session, kind handle.ResourceType, destroy func(localID uint64) error) {
	for _, h := range s.Handles(kind) {
		localID, err := s.Get(h)
		if err != nil {
			continue
		}
		if err := destroy(localID); err != nil {
			logger.WarnCtx(ctx, "cleanup: destroy failed", "handle", h.String(), "error", err)
		}
		s.Remove(h)
	}
}
