// Package vulkan defines the Vulkan 1.x command vocabulary that crosses the
// wire, including the vkCmd* family that the client-side recorder buffers
// rather than sending immediately (spec.md §4.5).
package vulkan

import "fmt"

// Opcode identifies one Vulkan call. Values are stable on the wire.
type Opcode uint16

const (
	OpCreateInstance Opcode = iota + 1
	OpDestroyInstance
	OpEnumeratePhysicalDevices
	OpCreateDevice
	OpDestroyDevice
	OpGetDeviceQueue
	OpAllocateMemory
	OpFreeMemory
	OpCreateBuffer
	OpDestroyBuffer
	OpCreateImage
	OpDestroyImage
	OpCreateImageView
	OpDestroyImageView
	OpCreateShaderModule
	OpDestroyShaderModule
	OpCreateRenderPass
	OpDestroyRenderPass
	OpCreateFramebuffer
	OpDestroyFramebuffer
	OpCreateGraphicsPipelines
	OpDestroyPipeline
	OpCreatePipelineLayout
	OpDestroyPipelineLayout
	OpCreateDescriptorSetLayout
	OpDestroyDescriptorSetLayout
	OpCreateDescriptorPool
	OpDestroyDescriptorPool
	OpAllocateDescriptorSets
	OpCreateCommandPool
	OpDestroyCommandPool
	OpAllocateCommandBuffers
	OpBeginCommandBuffer
	OpEndCommandBuffer
	OpQueueSubmit
	OpCreateFence
	OpDestroyFence
	OpCreateSemaphore
	OpDestroySemaphore

	// The vkCmd* family: buffered by the client recorder between
	// Begin/End, never sent individually (S5).
	OpCmdBindPipeline
	OpCmdBindDescriptorSets
	OpCmdDispatch
	OpCmdDraw
	OpCmdCopyBuffer
	OpCmdPipelineBarrier
)

var names = map[Opcode]string{
	OpCreateInstance:             "vkCreateInstance",
	OpDestroyInstance:            "vkDestroyInstance",
	OpEnumeratePhysicalDevices:   "vkEnumeratePhysicalDevices",
	OpCreateDevice:               "vkCreateDevice",
	OpDestroyDevice:              "vkDestroyDevice",
	OpGetDeviceQueue:             "vkGetDeviceQueue",
	OpAllocateMemory:             "vkAllocateMemory",
	OpFreeMemory:                 "vkFreeMemory",
	OpCreateBuffer:               "vkCreateBuffer",
	OpDestroyBuffer:              "vkDestroyBuffer",
	OpCreateImage:                "vkCreateImage",
	OpDestroyImage:               "vkDestroyImage",
	OpCreateImageView:            "vkCreateImageView",
	OpDestroyImageView:           "vkDestroyImageView",
	OpCreateShaderModule:         "vkCreateShaderModule",
	OpDestroyShaderModule:        "vkDestroyShaderModule",
	OpCreateRenderPass:           "vkCreateRenderPass",
	OpDestroyRenderPass:          "vkDestroyRenderPass",
	OpCreateFramebuffer:          "vkCreateFramebuffer",
	OpDestroyFramebuffer:         "vkDestroyFramebuffer",
	OpCreateGraphicsPipelines:    "vkCreateGraphicsPipelines",
	OpDestroyPipeline:            "vkDestroyPipeline",
	OpCreatePipelineLayout:       "vkCreatePipelineLayout",
	OpDestroyPipelineLayout:      "vkDestroyPipelineLayout",
	OpCreateDescriptorSetLayout:  "vkCreateDescriptorSetLayout",
	OpDestroyDescriptorSetLayout: "vkDestroyDescriptorSetLayout",
	OpCreateDescriptorPool:       "vkCreateDescriptorPool",
	OpDestroyDescriptorPool:      "vkDestroyDescriptorPool",
	OpAllocateDescriptorSets:     "vkAllocateDescriptorSets",
	OpCreateCommandPool:          "vkCreateCommandPool",
	OpDestroyCommandPool:         "vkDestroyCommandPool",
	OpAllocateCommandBuffers:     "vkAllocateCommandBuffers",
	OpBeginCommandBuffer:         "vkBeginCommandBuffer",
	OpEndCommandBuffer:           "vkEndCommandBuffer",
	OpQueueSubmit:                "vkQueueSubmit",
	OpCreateFence:                "vkCreateFence",
	OpDestroyFence:               "vkDestroyFence",
	OpCreateSemaphore:            "vkCreateSemaphore",
	OpDestroySemaphore:           "vkDestroySemaphore",
	OpCmdBindPipeline:            "vkCmdBindPipeline",
	OpCmdBindDescriptorSets:      "vkCmdBindDescriptorSets",
	OpCmdDispatch:                "vkCmdDispatch",
	OpCmdDraw:                    "vkCmdDraw",
	OpCmdCopyBuffer:              "vkCmdCopyBuffer",
	OpCmdPipelineBarrier:         "vkCmdPipelineBarrier",
}

func (o Opcode) String() string {
	if n, ok := names[o]; ok {
		return n
	}
	return fmt.Sprintf("vulkan.Opcode(%d)", uint16(o))
}

// IsRecordedCommand reports whether o is a vkCmd* call that the client
// recorder buffers instead of forwarding immediately.
func (o Opcode) IsRecordedCommand() bool {
	return o >= OpCmdBindPipeline
}

// IsBroadcast reports whether o must be issued to every connected backend
// rather than routed to a single one (S3).
func (o Opcode) IsBroadcast() bool {
	switch o {
	case OpCreateInstance, OpEnumeratePhysicalDevices:
		return true
	default:
		return false
	}
}
