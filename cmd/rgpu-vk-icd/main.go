// Command rgpu-vk-icd is the Vulkan Installable Client Driver shim. Built
// with -buildmode=c-shared and pointed at by a Vulkan ICD manifest JSON
// (packaging/vulkan/rgpu_icd.json), the loader dlopen()s this
// library and calls its vk_icdGetInstanceProcAddr entry point instead of
// ever touching a real GPU driver. Every entry point forwards to the
// backend fleet through the client daemon's IPC socket exactly like the
// CUDA interpose shim does, except that dispatchable Vulkan handles
// (instance, physical device, device, queue, command buffer) carry a
// leading dispatch-table pointer per the loader ABI (spec.md §4.3) and
// vkCmd* calls are buffered client-side by the recorder instead of sent
// immediately (spec.md §4.5).
//
//	go build -buildmode=c-shared -o librgpu_vk_icd.so ./cmd/rgpu-vk-icd
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/Fill84/RGPU-sub000/internal/client/handlestore"
	"github.com/Fill84/RGPU-sub000/internal/client/interpose"
	"github.com/Fill84/RGPU-sub000/internal/client/recorder"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/protocol/vulkan"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

const (
	vkSuccess               = 0
	vkErrorInitFailed       = -3
	vkErrorDeviceLost       = -4
	vkErrorExtNotPresent    = -7
	vkErrorIncompatibleDrv  = -9
	vkErrorUnknown          = -13
	icdLoaderInterfaceVer   = 5
)

var (
	client = interpose.NewClient(ipcSocketPath())
	rec    = recorder.New()
)

func ipcSocketPath() string {
	if p := os.Getenv("RGPU_IPC_SOCKET"); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/rgpu/rgpu.sock"
	}
	return os.TempDir() + "/rgpu/rgpu.sock"
}

func resultCode(res wire.CommandResult, err error) C.int {
	if err != nil {
		return vkErrorDeviceLost
	}
	if res.Kind == wire.ResultError {
		if res.Error.Code != 0 {
			return C.int(res.Error.Code)
		}
		return vkErrorUnknown
	}
	return vkSuccess
}

// getHandle resolves a plain (non-dispatchable) local_id to its
// NetworkHandle, the same convention the CUDA shim uses.
func getHandle(kind handle.ResourceType, localID uint64) (handle.Network, bool) {
	h, err := client.Handles.Get(kind, localID)
	return h, err == nil
}

// getDispatchable resolves a dispatchable handle's opaque pointer (the
// address of its DispatchHeader) back to the internal local_id it was
// minted with.
func getDispatchable(p unsafe.Pointer) (uint64, bool) {
	hdr := (*handlestore.DispatchHeader)(p)
	id, err := handlestore.ReadDispatchable(hdr)
	if err != nil {
		return 0, false
	}
	return id, true
}

func newDispatchablePointer(localID uint64) unsafe.Pointer {
	return unsafe.Pointer(handlestore.NewDispatchable(localID))
}

//export rgpu_interpose_marker
func rgpu_interpose_marker() C.int {
	return C.int(interpose.Marker)
}

// ── Instance ─────────────────────────────────────────────────

//export vkCreateInstance
func vkCreateInstance(appName *C.char, apiVersion C.uint32_t, pInstance *unsafe.Pointer) C.int {
	if pInstance == nil {
		return vkErrorInitFailed
	}
	name := ""
	if appName != nil {
		name = C.GoString(appName)
	}
	res, err := client.SendVulkan(vulkan.OpCreateInstance, &vulkan.CreateInstanceArgs{
		ApplicationName: name,
		ApiVersion:      uint32(apiVersion),
	})
	if err != nil {
		return vkErrorInitFailed
	}
	if res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	localID := client.Handles.Put(handle.VkInstance, res.Handle)
	*pInstance = newDispatchablePointer(localID)
	return vkSuccess
}

//export vkDestroyInstance
func vkDestroyInstance(instance unsafe.Pointer) {
	id, ok := getDispatchable(instance)
	if !ok {
		return
	}
	h, ok := getHandle(handle.VkInstance, id)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyInstance, &vulkan.DestroyInstanceArgs{Instance: h})
	client.Handles.Remove(handle.VkInstance, id)
	handlestore.ForgetDispatchable(id)
}

//export vkEnumeratePhysicalDevices
func vkEnumeratePhysicalDevices(instance unsafe.Pointer, pCount *C.uint32_t, pDevices *unsafe.Pointer) C.int {
	id, ok := getDispatchable(instance)
	if !ok || pCount == nil {
		return vkErrorInitFailed
	}
	h, ok := getHandle(handle.VkInstance, id)
	if !ok {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpEnumeratePhysicalDevices, &vulkan.EnumeratePhysicalDevicesArgs{Instance: h})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	n := len(res.Handles)
	if pDevices == nil {
		*pCount = C.uint32_t(n)
		return vkSuccess
	}
	max := int(*pCount)
	if n > max {
		n = max
	}
	out := unsafe.Slice(pDevices, max)
	for i := 0; i < n; i++ {
		localID := client.Handles.Put(handle.VkPhysicalDevice, res.Handles[i])
		out[i] = newDispatchablePointer(localID)
	}
	*pCount = C.uint32_t(n)
	return vkSuccess
}

// ── Device ───────────────────────────────────────────────────

//export vkCreateDevice
func vkCreateDevice(physicalDevice unsafe.Pointer, queueFamilyIndex C.uint32_t, pDevice *unsafe.Pointer) C.int {
	pdID, ok := getDispatchable(physicalDevice)
	if !ok || pDevice == nil {
		return vkErrorInitFailed
	}
	pd, ok := getHandle(handle.VkPhysicalDevice, pdID)
	if !ok {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpCreateDevice, &vulkan.CreateDeviceArgs{
		PhysicalDevice:   pd,
		QueueFamilyIndex: uint32(queueFamilyIndex),
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	localID := client.Handles.Put(handle.VkDevice, res.Handle)
	*pDevice = newDispatchablePointer(localID)
	return vkSuccess
}

//export vkDestroyDevice
func vkDestroyDevice(device unsafe.Pointer) {
	id, ok := getDispatchable(device)
	if !ok {
		return
	}
	h, ok := getHandle(handle.VkDevice, id)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyDevice, &vulkan.DestroyDeviceArgs{Device: h})
	client.Handles.Remove(handle.VkDevice, id)
	handlestore.ForgetDispatchable(id)
}

//export vkGetDeviceQueue
func vkGetDeviceQueue(device unsafe.Pointer, queueFamilyIndex, queueIndex C.uint32_t, pQueue *unsafe.Pointer) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pQueue == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpGetDeviceQueue, &vulkan.GetDeviceQueueArgs{
		Device:           dev,
		QueueFamilyIndex: uint32(queueFamilyIndex),
		QueueIndex:       uint32(queueIndex),
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	localID := client.Handles.Put(handle.VkQueue, res.Handle)
	*pQueue = newDispatchablePointer(localID)
	return vkSuccess
}

// ── Memory ───────────────────────────────────────────────────

//export vkAllocateMemory
func vkAllocateMemory(device unsafe.Pointer, bytes C.uint64_t, memoryTypeIndex C.uint32_t, pMemory *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pMemory == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpAllocateMemory, &vulkan.AllocateMemoryArgs{
		Device:          dev,
		Bytes:           uint64(bytes),
		MemoryTypeIndex: uint32(memoryTypeIndex),
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pMemory = client.Handles.Put(handle.VkDeviceMemory, res.Handle)
	return vkSuccess
}

//export vkFreeMemory
func vkFreeMemory(memory uint64) {
	h, ok := getHandle(handle.VkDeviceMemory, memory)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpFreeMemory, &vulkan.FreeMemoryArgs{Memory: h})
	client.Handles.Remove(handle.VkDeviceMemory, memory)
}

// ── Buffer / Image ───────────────────────────────────────────

//export vkCreateBuffer
func vkCreateBuffer(device unsafe.Pointer, bytes C.uint64_t, usage C.uint32_t, pBuffer *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pBuffer == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpCreateBuffer, &vulkan.CreateBufferArgs{
		Device: dev, Bytes: uint64(bytes), Usage: uint32(usage),
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pBuffer = client.Handles.Put(handle.VkBuffer, res.Handle)
	return vkSuccess
}

//export vkDestroyBuffer
func vkDestroyBuffer(buffer uint64) {
	h, ok := getHandle(handle.VkBuffer, buffer)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyBuffer, &vulkan.DestroyBufferArgs{Buffer: h})
	client.Handles.Remove(handle.VkBuffer, buffer)
}

//export vkCreateImage
func vkCreateImage(device unsafe.Pointer, width, height, format, usage C.uint32_t, pImage *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pImage == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpCreateImage, &vulkan.CreateImageArgs{
		Device: dev, Width: uint32(width), Height: uint32(height),
		Format: uint32(format), Usage: uint32(usage),
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pImage = client.Handles.Put(handle.VkImage, res.Handle)
	return vkSuccess
}

//export vkDestroyImage
func vkDestroyImage(image uint64) {
	h, ok := getHandle(handle.VkImage, image)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyImage, &vulkan.DestroyImageArgs{Image: h})
	client.Handles.Remove(handle.VkImage, image)
}

//export vkCreateImageView
func vkCreateImageView(device unsafe.Pointer, image uint64, format C.uint32_t, pView *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pView == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	img, imgOK := getHandle(handle.VkImage, image)
	if !ok || !imgOK {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpCreateImageView, &vulkan.CreateImageViewArgs{
		Device: dev, Image: img, Format: uint32(format),
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pView = client.Handles.Put(handle.VkImageView, res.Handle)
	return vkSuccess
}

//export vkDestroyImageView
func vkDestroyImageView(view uint64) {
	h, ok := getHandle(handle.VkImageView, view)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyImageView, &vulkan.DestroyImageViewArgs{ImageView: h})
	client.Handles.Remove(handle.VkImageView, view)
}

// ── Shader / render pass / framebuffer / pipeline ────────────

//export vkCreateShaderModule
func vkCreateShaderModule(device unsafe.Pointer, code unsafe.Pointer, codeSize C.uint64_t, pModule *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pModule == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	blob := copyN(code, int(codeSize))
	res, err := client.SendVulkan(vulkan.OpCreateShaderModule, &vulkan.CreateShaderModuleArgs{Device: dev, Code: blob})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pModule = client.Handles.Put(handle.VkShaderModule, res.Handle)
	return vkSuccess
}

//export vkDestroyShaderModule
func vkDestroyShaderModule(module uint64) {
	h, ok := getHandle(handle.VkShaderModule, module)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyShaderModule, &vulkan.DestroyShaderModuleArgs{ShaderModule: h})
	client.Handles.Remove(handle.VkShaderModule, module)
}

//export vkCreateRenderPass
func vkCreateRenderPass(device unsafe.Pointer, spec unsafe.Pointer, specSize C.uint64_t, pRenderPass *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pRenderPass == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	blob := copyN(spec, int(specSize))
	res, err := client.SendVulkan(vulkan.OpCreateRenderPass, &vulkan.CreateRenderPassArgs{Device: dev, Spec: blob})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pRenderPass = client.Handles.Put(handle.VkRenderPass, res.Handle)
	return vkSuccess
}

//export vkDestroyRenderPass
func vkDestroyRenderPass(renderPass uint64) {
	h, ok := getHandle(handle.VkRenderPass, renderPass)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyRenderPass, &vulkan.DestroyRenderPassArgs{RenderPass: h})
	client.Handles.Remove(handle.VkRenderPass, renderPass)
}

//export vkCreateFramebuffer
func vkCreateFramebuffer(device unsafe.Pointer, renderPass uint64, attachments *uint64, attachmentCount C.uint32_t, width, height C.uint32_t, pFramebuffer *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pFramebuffer == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	rp, rpOK := getHandle(handle.VkRenderPass, renderPass)
	if !ok || !rpOK {
		return vkErrorDeviceLost
	}
	var atts []handle.Network
	if attachmentCount > 0 && attachments != nil {
		ids := unsafe.Slice(attachments, int(attachmentCount))
		for _, id := range ids {
			if h, ok := getHandle(handle.VkImageView, id); ok {
				atts = append(atts, h)
			}
		}
	}
	res, err := client.SendVulkan(vulkan.OpCreateFramebuffer, &vulkan.CreateFramebufferArgs{
		Device: dev, RenderPass: rp, Attachments: atts,
		Width: uint32(width), Height: uint32(height),
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pFramebuffer = client.Handles.Put(handle.VkFramebuffer, res.Handle)
	return vkSuccess
}

//export vkDestroyFramebuffer
func vkDestroyFramebuffer(framebuffer uint64) {
	h, ok := getHandle(handle.VkFramebuffer, framebuffer)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyFramebuffer, &vulkan.DestroyFramebufferArgs{Framebuffer: h})
	client.Handles.Remove(handle.VkFramebuffer, framebuffer)
}

//export vkCreateGraphicsPipelines
func vkCreateGraphicsPipelines(device unsafe.Pointer, layout, renderPass uint64, spec unsafe.Pointer, specSize C.uint64_t, pPipeline *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pPipeline == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	pl, plOK := getHandle(handle.VkPipelineLayout, layout)
	rp, rpOK := getHandle(handle.VkRenderPass, renderPass)
	if !ok || !plOK || !rpOK {
		return vkErrorDeviceLost
	}
	blob := copyN(spec, int(specSize))
	res, err := client.SendVulkan(vulkan.OpCreateGraphicsPipelines, &vulkan.CreateGraphicsPipelinesArgs{
		Device: dev, PipelineLayout: pl, RenderPass: rp, Spec: blob,
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	if len(res.Handles) == 0 {
		return vkErrorUnknown
	}
	*pPipeline = client.Handles.Put(handle.VkPipeline, res.Handles[0])
	return vkSuccess
}

//export vkDestroyPipeline
func vkDestroyPipeline(pipeline uint64) {
	h, ok := getHandle(handle.VkPipeline, pipeline)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyPipeline, &vulkan.DestroyPipelineArgs{Pipeline: h})
	client.Handles.Remove(handle.VkPipeline, pipeline)
}

//export vkCreatePipelineLayout
func vkCreatePipelineLayout(device unsafe.Pointer, setLayouts *uint64, setLayoutCount C.uint32_t, pLayout *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pLayout == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	layouts := resolveMany(handle.VkDescriptorSetLayout, setLayouts, int(setLayoutCount))
	res, err := client.SendVulkan(vulkan.OpCreatePipelineLayout, &vulkan.CreatePipelineLayoutArgs{
		Device: dev, DescriptorSetLayouts: layouts,
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pLayout = client.Handles.Put(handle.VkPipelineLayout, res.Handle)
	return vkSuccess
}

//export vkDestroyPipelineLayout
func vkDestroyPipelineLayout(layout uint64) {
	h, ok := getHandle(handle.VkPipelineLayout, layout)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyPipelineLayout, &vulkan.DestroyPipelineLayoutArgs{PipelineLayout: h})
	client.Handles.Remove(handle.VkPipelineLayout, layout)
}

// ── Descriptor sets ──────────────────────────────────────────

//export vkCreateDescriptorSetLayout
func vkCreateDescriptorSetLayout(device unsafe.Pointer, spec unsafe.Pointer, specSize C.uint64_t, pLayout *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pLayout == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	blob := copyN(spec, int(specSize))
	res, err := client.SendVulkan(vulkan.OpCreateDescriptorSetLayout, &vulkan.CreateDescriptorSetLayoutArgs{Device: dev, Spec: blob})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pLayout = client.Handles.Put(handle.VkDescriptorSetLayout, res.Handle)
	return vkSuccess
}

//export vkDestroyDescriptorSetLayout
func vkDestroyDescriptorSetLayout(layout uint64) {
	h, ok := getHandle(handle.VkDescriptorSetLayout, layout)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyDescriptorSetLayout, &vulkan.DestroyDescriptorSetLayoutArgs{DescriptorSetLayout: h})
	client.Handles.Remove(handle.VkDescriptorSetLayout, layout)
}

//export vkCreateDescriptorPool
func vkCreateDescriptorPool(device unsafe.Pointer, maxSets C.uint32_t, pPool *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pPool == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpCreateDescriptorPool, &vulkan.CreateDescriptorPoolArgs{Device: dev, MaxSets: uint32(maxSets)})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pPool = client.Handles.Put(handle.VkDescriptorPool, res.Handle)
	return vkSuccess
}

//export vkDestroyDescriptorPool
func vkDestroyDescriptorPool(pool uint64) {
	h, ok := getHandle(handle.VkDescriptorPool, pool)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyDescriptorPool, &vulkan.DestroyDescriptorPoolArgs{DescriptorPool: h})
	client.Handles.Remove(handle.VkDescriptorPool, pool)
}

//export vkAllocateDescriptorSets
func vkAllocateDescriptorSets(pool uint64, setLayouts *uint64, setLayoutCount C.uint32_t, pSets *uint64) C.int {
	dp, ok := getHandle(handle.VkDescriptorPool, pool)
	if !ok || pSets == nil {
		return vkErrorDeviceLost
	}
	layouts := resolveMany(handle.VkDescriptorSetLayout, setLayouts, int(setLayoutCount))
	res, err := client.SendVulkan(vulkan.OpAllocateDescriptorSets, &vulkan.AllocateDescriptorSetsArgs{
		DescriptorPool: dp, DescriptorSetLayouts: layouts,
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	out := unsafe.Slice(pSets, len(res.Handles))
	for i, h := range res.Handles {
		out[i] = client.Handles.Put(handle.VkDescriptorSet, h)
	}
	return vkSuccess
}

// ── Command pool / command buffers ──────────────────────────

//export vkCreateCommandPool
func vkCreateCommandPool(device unsafe.Pointer, queueFamilyIndex C.uint32_t, pPool *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pPool == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpCreateCommandPool, &vulkan.CreateCommandPoolArgs{
		Device: dev, QueueFamilyIndex: uint32(queueFamilyIndex),
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pPool = client.Handles.Put(handle.VkCommandPool, res.Handle)
	return vkSuccess
}

//export vkDestroyCommandPool
func vkDestroyCommandPool(pool uint64) {
	h, ok := getHandle(handle.VkCommandPool, pool)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyCommandPool, &vulkan.DestroyCommandPoolArgs{CommandPool: h})
	client.Handles.Remove(handle.VkCommandPool, pool)
}

//export vkAllocateCommandBuffers
func vkAllocateCommandBuffers(pool uint64, count C.uint32_t, pBuffers *unsafe.Pointer) C.int {
	cp, ok := getHandle(handle.VkCommandPool, pool)
	if !ok || pBuffers == nil {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpAllocateCommandBuffers, &vulkan.AllocateCommandBuffersArgs{
		CommandPool: cp, Count: uint32(count),
	})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	out := unsafe.Slice(pBuffers, len(res.Handles))
	for i, h := range res.Handles {
		localID := client.Handles.Put(handle.VkCommandBuffer, h)
		out[i] = newDispatchablePointer(localID)
	}
	return vkSuccess
}

//export vkFreeCommandBuffers
func vkFreeCommandBuffers(buffers *unsafe.Pointer, count C.uint32_t) {
	if buffers == nil {
		return
	}
	ptrs := unsafe.Slice(buffers, int(count))
	for _, p := range ptrs {
		id, ok := getDispatchable(p)
		if !ok {
			continue
		}
		client.Handles.Remove(handle.VkCommandBuffer, id)
		handlestore.ForgetDispatchable(id)
		rec.Reset(id)
	}
}

//export vkBeginCommandBuffer
func vkBeginCommandBuffer(commandBuffer unsafe.Pointer) C.int {
	id, ok := getDispatchable(commandBuffer)
	if !ok {
		return vkErrorDeviceLost
	}
	rec.Begin(id)
	return vkSuccess
}

//export vkEndCommandBuffer
func vkEndCommandBuffer(commandBuffer unsafe.Pointer) C.int {
	id, ok := getDispatchable(commandBuffer)
	if !ok {
		return vkErrorDeviceLost
	}
	rec.End(id)
	return vkSuccess
}

//export vkResetCommandBuffer
func vkResetCommandBuffer(commandBuffer unsafe.Pointer) C.int {
	id, ok := getDispatchable(commandBuffer)
	if !ok {
		return vkErrorDeviceLost
	}
	rec.Reset(id)
	return vkSuccess
}

// ── Queue submission ─────────────────────────────────────────

// vkQueueSubmit replays the command buffer's buffered vkCmd* calls through
// SubmitRecordedCommands before issuing QueueSubmit itself, exactly as
// spec.md §4.5 requires: the server executes the replay between its own
// begin/end of the real command buffer, so a replay failure surfaces on
// this call's return code rather than silently dropping commands.
//
//export vkQueueSubmit
func vkQueueSubmit(queue unsafe.Pointer, commandBuffer unsafe.Pointer, waitSemaphores *uint64, waitCount C.uint32_t, signalSemaphores *uint64, signalCount C.uint32_t, fence uint64) C.int {
	qID, ok := getDispatchable(queue)
	if !ok {
		return vkErrorDeviceLost
	}
	q, ok := getHandle(handle.VkQueue, qID)
	if !ok {
		return vkErrorDeviceLost
	}
	cbID, ok := getDispatchable(commandBuffer)
	if !ok {
		return vkErrorDeviceLost
	}
	cb, ok := getHandle(handle.VkCommandBuffer, cbID)
	if !ok {
		return vkErrorDeviceLost
	}

	cmds := rec.Take(cbID)
	if len(cmds) > 0 {
		if res, err := client.SubmitRecorded(cb, cmds); err != nil || res.Kind == wire.ResultError {
			return vkErrorUnknown
		}
	}

	waits := resolveMany(handle.VkSemaphore, waitSemaphores, int(waitCount))
	signals := resolveMany(handle.VkSemaphore, signalSemaphores, int(signalCount))
	fenceHandle, _ := getHandle(handle.VkFence, fence)

	res, err := client.SendVulkan(vulkan.OpQueueSubmit, &vulkan.QueueSubmitArgs{
		Queue: q, CommandBuffer: cb,
		WaitSemaphores: waits, SignalSemaphores: signals, Fence: fenceHandle,
	})
	return resultCode(res, err)
}

// ── Synchronization primitives ───────────────────────────────

//export vkCreateFence
func vkCreateFence(device unsafe.Pointer, flags C.uint32_t, pFence *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pFence == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpCreateFence, &vulkan.CreateFenceArgs{Device: dev, Flags: uint32(flags)})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pFence = client.Handles.Put(handle.VkFence, res.Handle)
	return vkSuccess
}

//export vkDestroyFence
func vkDestroyFence(fence uint64) {
	h, ok := getHandle(handle.VkFence, fence)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroyFence, &vulkan.DestroyFenceArgs{Fence: h})
	client.Handles.Remove(handle.VkFence, fence)
}

//export vkCreateSemaphore
func vkCreateSemaphore(device unsafe.Pointer, pSemaphore *uint64) C.int {
	devID, ok := getDispatchable(device)
	if !ok || pSemaphore == nil {
		return vkErrorDeviceLost
	}
	dev, ok := getHandle(handle.VkDevice, devID)
	if !ok {
		return vkErrorDeviceLost
	}
	res, err := client.SendVulkan(vulkan.OpCreateSemaphore, &vulkan.CreateSemaphoreArgs{Device: dev})
	if err != nil || res.Kind == wire.ResultError {
		return vkErrorUnknown
	}
	*pSemaphore = client.Handles.Put(handle.VkSemaphore, res.Handle)
	return vkSuccess
}

//export vkDestroySemaphore
func vkDestroySemaphore(semaphore uint64) {
	h, ok := getHandle(handle.VkSemaphore, semaphore)
	if !ok {
		return
	}
	client.SendVulkan(vulkan.OpDestroySemaphore, &vulkan.DestroySemaphoreArgs{Semaphore: h})
	client.Handles.Remove(handle.VkSemaphore, semaphore)
}

// ── vkCmd* family: recorded, never sent immediately (S5) ─────

//export vkCmdBindPipeline
func vkCmdBindPipeline(commandBuffer unsafe.Pointer, pipeline uint64) {
	id, ok := getDispatchable(commandBuffer)
	if !ok {
		return
	}
	h, ok := getHandle(handle.VkPipeline, pipeline)
	if !ok {
		return
	}
	rec.CmdBindPipeline(id, h)
}

//export vkCmdBindDescriptorSets
func vkCmdBindDescriptorSets(commandBuffer unsafe.Pointer, layout uint64, sets *uint64, setCount C.uint32_t) {
	id, ok := getDispatchable(commandBuffer)
	if !ok {
		return
	}
	pl, ok := getHandle(handle.VkPipelineLayout, layout)
	if !ok {
		return
	}
	resolved := resolveMany(handle.VkDescriptorSet, sets, int(setCount))
	rec.CmdBindDescriptorSets(id, pl, resolved)
}

//export vkCmdDispatch
func vkCmdDispatch(commandBuffer unsafe.Pointer, x, y, z C.uint32_t) {
	id, ok := getDispatchable(commandBuffer)
	if !ok {
		return
	}
	rec.CmdDispatch(id, uint32(x), uint32(y), uint32(z))
}

//export vkCmdDraw
func vkCmdDraw(commandBuffer unsafe.Pointer, vertexCount, instanceCount, firstVertex, firstInstance C.uint32_t) {
	id, ok := getDispatchable(commandBuffer)
	if !ok {
		return
	}
	rec.CmdDraw(id, uint32(vertexCount), uint32(instanceCount), uint32(firstVertex), uint32(firstInstance))
}

//export vkCmdCopyBuffer
func vkCmdCopyBuffer(commandBuffer unsafe.Pointer, src, dst uint64, bytes C.uint64_t) {
	id, ok := getDispatchable(commandBuffer)
	if !ok {
		return
	}
	srcH, srcOK := getHandle(handle.VkBuffer, src)
	dstH, dstOK := getHandle(handle.VkBuffer, dst)
	if !srcOK || !dstOK {
		return
	}
	rec.CmdCopyBuffer(id, srcH, dstH, uint64(bytes))
}

//export vkCmdPipelineBarrier
func vkCmdPipelineBarrier(commandBuffer unsafe.Pointer, spec unsafe.Pointer, specSize C.uint64_t) {
	id, ok := getDispatchable(commandBuffer)
	if !ok {
		return
	}
	blob := copyN(spec, int(specSize))
	rec.CmdPipelineBarrier(id, blob)
}

func resolveMany(kind handle.ResourceType, ids *uint64, count int) []handle.Network {
	if count == 0 || ids == nil {
		return nil
	}
	src := unsafe.Slice(ids, count)
	out := make([]handle.Network, 0, count)
	for _, id := range src {
		if h, ok := getHandle(kind, id); ok {
			out = append(out, h)
		}
	}
	return out
}

func main() {}
