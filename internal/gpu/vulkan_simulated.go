package gpu

import (
	"context"
	"sync"
	"sync/atomic"
)

// SimulatedVulkanDriver is the Vulkan counterpart of SimulatedCudaDriver:
// every call succeeds and allocates a fresh local id, with no real GPU
// memory or command execution behind it. It exists to exercise handle
// virtualization, broadcast semantics (S3), and command-buffer replay (S5)
// end to end.
type SimulatedVulkanDriver struct {
	physicalDevices []Info

	mu     sync.Mutex
	nextID uint64
	live   map[uint64]bool

	// recording remembers which command buffer ids have been begun but not
	// yet ended. No call checks it, so a mismatched begin/end is not
	// reported as an error.
	recording map[uint64]bool
}

func NewSimulatedVulkanDriver(physicalDevices []Info) *SimulatedVulkanDriver {
	return &SimulatedVulkanDriver{
		physicalDevices: physicalDevices,
		nextID:          1,
		live:            make(map[uint64]bool),
		recording:       make(map[uint64]bool),
	}
}

func (d *SimulatedVulkanDriver) allocID() uint64 { return atomic.AddUint64(&d.nextID, 1) }

func (d *SimulatedVulkanDriver) track(id uint64) uint64 {
	d.mu.Lock()
	d.live[id] = true
	d.mu.Unlock()
	return id
}

func (d *SimulatedVulkanDriver) untrack(id uint64) error {
	d.mu.Lock()
	delete(d.live, id)
	d.mu.Unlock()
	return nil
}

func (d *SimulatedVulkanDriver) CreateInstance(ctx context.Context, appName string, apiVersion uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyInstance(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) EnumeratePhysicalDevices(ctx context.Context, instanceID uint64) ([]uint64, error) {
	ids := make([]uint64, len(d.physicalDevices))
	for i := range d.physicalDevices {
		ids[i] = d.track(d.allocID())
	}
	return ids, nil
}

func (d *SimulatedVulkanDriver) CreateDevice(ctx context.Context, physicalDeviceID uint64, queueFamilyIndex uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyDevice(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) GetDeviceQueue(ctx context.Context, deviceID uint64, queueFamilyIndex, queueIndex uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}

func (d *SimulatedVulkanDriver) AllocateMemory(ctx context.Context, deviceID uint64, bytes uint64, memoryTypeIndex uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) FreeMemory(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) CreateBuffer(ctx context.Context, deviceID uint64, bytes uint64, usage uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyBuffer(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) CreateImage(ctx context.Context, deviceID uint64, width, height, format, usage uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyImage(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) CreateImageView(ctx context.Context, deviceID, imageID uint64, format uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyImageView(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) CreateShaderModule(ctx context.Context, deviceID uint64, code []byte) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyShaderModule(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) CreateRenderPass(ctx context.Context, deviceID uint64, spec []byte) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyRenderPass(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) CreateFramebuffer(ctx context.Context, deviceID, renderPassID uint64, attachmentIDs []uint64, width, height uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyFramebuffer(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) CreateGraphicsPipelines(ctx context.Context, deviceID, layoutID, renderPassID uint64, spec []byte) ([]uint64, error) {
	return []uint64{d.track(d.allocID())}, nil
}
func (d *SimulatedVulkanDriver) DestroyPipeline(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) CreatePipelineLayout(ctx context.Context, deviceID uint64, setLayoutIDs []uint64) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyPipelineLayout(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) CreateDescriptorSetLayout(ctx context.Context, deviceID uint64, spec []byte) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyDescriptorSetLayout(ctx context.Context, id uint64) error {
	return d.untrack(id)
}

func (d *SimulatedVulkanDriver) CreateDescriptorPool(ctx context.Context, deviceID uint64, maxSets uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyDescriptorPool(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) AllocateDescriptorSets(ctx context.Context, poolID uint64, setLayoutIDs []uint64) ([]uint64, error) {
	ids := make([]uint64, len(setLayoutIDs))
	for i := range setLayoutIDs {
		ids[i] = d.track(d.allocID())
	}
	return ids, nil
}

func (d *SimulatedVulkanDriver) CreateCommandPool(ctx context.Context, deviceID uint64, queueFamilyIndex uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyCommandPool(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) AllocateCommandBuffers(ctx context.Context, poolID uint64, count uint32) ([]uint64, error) {
	ids := make([]uint64, count)
	for i := range ids {
		ids[i] = d.track(d.allocID())
	}
	return ids, nil
}

func (d *SimulatedVulkanDriver) BeginCommandBuffer(ctx context.Context, commandBufferID uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recording[commandBufferID] = true
	return nil
}

func (d *SimulatedVulkanDriver) EndCommandBuffer(ctx context.Context, commandBufferID uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.recording, commandBufferID)
	return nil
}

func (d *SimulatedVulkanDriver) CmdBindPipeline(ctx context.Context, commandBufferID, pipelineID uint64) error {
	return nil
}
func (d *SimulatedVulkanDriver) CmdBindDescriptorSets(ctx context.Context, commandBufferID, layoutID uint64, setIDs []uint64) error {
	return nil
}
func (d *SimulatedVulkanDriver) CmdDispatch(ctx context.Context, commandBufferID uint64, x, y, z uint32) error {
	return nil
}
func (d *SimulatedVulkanDriver) CmdDraw(ctx context.Context, commandBufferID uint64, vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	return nil
}
func (d *SimulatedVulkanDriver) CmdCopyBuffer(ctx context.Context, commandBufferID, srcBufferID, dstBufferID uint64, bytes uint64) error {
	return nil
}
func (d *SimulatedVulkanDriver) CmdPipelineBarrier(ctx context.Context, commandBufferID uint64, spec []byte) error {
	return nil
}

func (d *SimulatedVulkanDriver) QueueSubmit(ctx context.Context, queueID, commandBufferID uint64, waitSemIDs, signalSemIDs []uint64, fenceID uint64) error {
	return nil
}

func (d *SimulatedVulkanDriver) CreateFence(ctx context.Context, deviceID uint64, flags uint32) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroyFence(ctx context.Context, id uint64) error { return d.untrack(id) }

func (d *SimulatedVulkanDriver) CreateSemaphore(ctx context.Context, deviceID uint64) (uint64, error) {
	return d.track(d.allocID()), nil
}
func (d *SimulatedVulkanDriver) DestroySemaphore(ctx context.Context, id uint64) error { return d.untrack(id) }
