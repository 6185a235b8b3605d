// Package handle defines the network-wide resource handle that is the
// common currency between client and backend: every CUDA/Vulkan resource a
// client creates is identified, once it crosses the wire, by a
// NetworkHandle rather than by the real driver pointer/integer the backend
// holds internally.
package handle

import "fmt"

// ResourceType tags which per-kind table a NetworkHandle belongs to. The
// byte values are stable across the wire and are never renumbered once
// shipped, mirroring the teacher's stateid "type tag" byte (see
// nfs/v4/state/stateid.go StateTypeOpen/StateTypeLock/StateTypeDeleg).
type ResourceType uint8

const (
	ResourceTypeNone ResourceType = iota

	// CUDA resource kinds.
	CuDevice
	CuContext
	CuModule
	CuFunction
	CuDevicePtr
	CuHostPtr
	CuStream
	CuEvent
	CuLinker
	CuMemPool

	// Vulkan resource kinds.
	VkInstance
	VkPhysicalDevice
	VkDevice
	VkQueue
	VkDeviceMemory
	VkBuffer
	VkImage
	VkImageView
	VkShaderModule
	VkRenderPass
	VkFramebuffer
	VkPipeline
	VkPipelineLayout
	VkDescriptorSetLayout
	VkDescriptorPool
	VkDescriptorSet
	VkCommandPool
	VkCommandBuffer
	VkFence
	VkSemaphore
)

var resourceTypeNames = map[ResourceType]string{
	ResourceTypeNone:      "none",
	CuDevice:              "cu_device",
	CuContext:             "cu_context",
	CuModule:              "cu_module",
	CuFunction:            "cu_function",
	CuDevicePtr:           "cu_device_ptr",
	CuHostPtr:             "cu_host_ptr",
	CuStream:              "cu_stream",
	CuEvent:               "cu_event",
	CuLinker:              "cu_linker",
	CuMemPool:             "cu_mem_pool",
	VkInstance:            "vk_instance",
	VkPhysicalDevice:      "vk_physical_device",
	VkDevice:              "vk_device",
	VkQueue:               "vk_queue",
	VkDeviceMemory:        "vk_device_memory",
	VkBuffer:              "vk_buffer",
	VkImage:               "vk_image",
	VkImageView:           "vk_image_view",
	VkShaderModule:        "vk_shader_module",
	VkRenderPass:          "vk_render_pass",
	VkFramebuffer:         "vk_framebuffer",
	VkPipeline:            "vk_pipeline",
	VkPipelineLayout:      "vk_pipeline_layout",
	VkDescriptorSetLayout: "vk_descriptor_set_layout",
	VkDescriptorPool:      "vk_descriptor_pool",
	VkDescriptorSet:       "vk_descriptor_set",
	VkCommandPool:         "vk_command_pool",
	VkCommandBuffer:       "vk_command_buffer",
	VkFence:               "vk_fence",
	VkSemaphore:           "vk_semaphore",
}

func (t ResourceType) String() string {
	if name, ok := resourceTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("resource_type(%d)", uint8(t))
}

// IsVulkan reports whether t belongs to the Vulkan resource family.
func (t ResourceType) IsVulkan() bool { return t >= VkInstance }

// IsCuda reports whether t belongs to the CUDA resource family.
func (t ResourceType) IsCuda() bool { return t >= CuDevice && t < VkInstance }

// Network identifies a resource anywhere in the fleet: the backend that
// owns it, the session within that backend that allocated it, and a
// per-session monotonically increasing resource id. It is a plain
// comparable struct so it can be used directly as a map key (I1-I3 in
// spec.md §3).
type Network struct {
	ServerID   uint16
	SessionID  uint32
	ResourceID uint64
	Type       ResourceType
}

// Zero is the NULL handle for any resource kind: the zero value.
var Zero = Network{}

// IsZero reports whether h is the NULL handle.
func (h Network) IsZero() bool { return h == Zero }

func (h Network) String() string {
	if h.IsZero() {
		return "null"
	}
	return fmt.Sprintf("%s{server=%d session=%d id=%d}", h.Type, h.ServerID, h.SessionID, h.ResourceID)
}
