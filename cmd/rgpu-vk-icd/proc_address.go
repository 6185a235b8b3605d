// Symbol dispatch table (spec.md §4.12): vkGetInstanceProcAddr and
// vkGetDeviceProcAddr are how a loader or application actually finds every
// other entry point in this shim — nothing is linked against directly.
// Lookups are case-sensitive, in the same style as proc_address.rs's
// cuGetProcAddress_v2 dispatch table on the CUDA side; unlike that table,
// this one lists each function under a single name, with no versioned
// aliases.
package main

/*
#include <stdint.h>
#include <string.h>
#include "_cgo_export.h"

static void *rgpu_vk_lookup(const char *name) {
	if (name == 0) {
		return 0;
	}
	if (!strcmp(name, "vkCreateInstance")) return (void*)vkCreateInstance;
	if (!strcmp(name, "vkDestroyInstance")) return (void*)vkDestroyInstance;
	if (!strcmp(name, "vkEnumeratePhysicalDevices")) return (void*)vkEnumeratePhysicalDevices;
	if (!strcmp(name, "vkCreateDevice")) return (void*)vkCreateDevice;
	if (!strcmp(name, "vkDestroyDevice")) return (void*)vkDestroyDevice;
	if (!strcmp(name, "vkGetDeviceQueue")) return (void*)vkGetDeviceQueue;
	if (!strcmp(name, "vkAllocateMemory")) return (void*)vkAllocateMemory;
	if (!strcmp(name, "vkFreeMemory")) return (void*)vkFreeMemory;
	if (!strcmp(name, "vkCreateBuffer")) return (void*)vkCreateBuffer;
	if (!strcmp(name, "vkDestroyBuffer")) return (void*)vkDestroyBuffer;
	if (!strcmp(name, "vkCreateImage")) return (void*)vkCreateImage;
	if (!strcmp(name, "vkDestroyImage")) return (void*)vkDestroyImage;
	if (!strcmp(name, "vkCreateImageView")) return (void*)vkCreateImageView;
	if (!strcmp(name, "vkDestroyImageView")) return (void*)vkDestroyImageView;
	if (!strcmp(name, "vkCreateShaderModule")) return (void*)vkCreateShaderModule;
	if (!strcmp(name, "vkDestroyShaderModule")) return (void*)vkDestroyShaderModule;
	if (!strcmp(name, "vkCreateRenderPass")) return (void*)vkCreateRenderPass;
	if (!strcmp(name, "vkDestroyRenderPass")) return (void*)vkDestroyRenderPass;
	if (!strcmp(name, "vkCreateFramebuffer")) return (void*)vkCreateFramebuffer;
	if (!strcmp(name, "vkDestroyFramebuffer")) return (void*)vkDestroyFramebuffer;
	if (!strcmp(name, "vkCreateGraphicsPipelines")) return (void*)vkCreateGraphicsPipelines;
	if (!strcmp(name, "vkDestroyPipeline")) return (void*)vkDestroyPipeline;
	if (!strcmp(name, "vkCreatePipelineLayout")) return (void*)vkCreatePipelineLayout;
	if (!strcmp(name, "vkDestroyPipelineLayout")) return (void*)vkDestroyPipelineLayout;
	if (!strcmp(name, "vkCreateDescriptorSetLayout")) return (void*)vkCreateDescriptorSetLayout;
	if (!strcmp(name, "vkDestroyDescriptorSetLayout")) return (void*)vkDestroyDescriptorSetLayout;
	if (!strcmp(name, "vkCreateDescriptorPool")) return (void*)vkCreateDescriptorPool;
	if (!strcmp(name, "vkDestroyDescriptorPool")) return (void*)vkDestroyDescriptorPool;
	if (!strcmp(name, "vkAllocateDescriptorSets")) return (void*)vkAllocateDescriptorSets;
	if (!strcmp(name, "vkCreateCommandPool")) return (void*)vkCreateCommandPool;
	if (!strcmp(name, "vkDestroyCommandPool")) return (void*)vkDestroyCommandPool;
	if (!strcmp(name, "vkAllocateCommandBuffers")) return (void*)vkAllocateCommandBuffers;
	if (!strcmp(name, "vkFreeCommandBuffers")) return (void*)vkFreeCommandBuffers;
	if (!strcmp(name, "vkBeginCommandBuffer")) return (void*)vkBeginCommandBuffer;
	if (!strcmp(name, "vkEndCommandBuffer")) return (void*)vkEndCommandBuffer;
	if (!strcmp(name, "vkResetCommandBuffer")) return (void*)vkResetCommandBuffer;
	if (!strcmp(name, "vkQueueSubmit")) return (void*)vkQueueSubmit;
	if (!strcmp(name, "vkCreateFence")) return (void*)vkCreateFence;
	if (!strcmp(name, "vkDestroyFence")) return (void*)vkDestroyFence;
	if (!strcmp(name, "vkCreateSemaphore")) return (void*)vkCreateSemaphore;
	if (!strcmp(name, "vkDestroySemaphore")) return (void*)vkDestroySemaphore;
	if (!strcmp(name, "vkCmdBindPipeline")) return (void*)vkCmdBindPipeline;
	if (!strcmp(name, "vkCmdBindDescriptorSets")) return (void*)vkCmdBindDescriptorSets;
	if (!strcmp(name, "vkCmdDispatch")) return (void*)vkCmdDispatch;
	if (!strcmp(name, "vkCmdDraw")) return (void*)vkCmdDraw;
	if (!strcmp(name, "vkCmdCopyBuffer")) return (void*)vkCmdCopyBuffer;
	if (!strcmp(name, "vkCmdPipelineBarrier")) return (void*)vkCmdPipelineBarrier;
	if (!strcmp(name, "vkGetInstanceProcAddr")) return (void*)vkGetInstanceProcAddr;
	if (!strcmp(name, "vkGetDeviceProcAddr")) return (void*)vkGetDeviceProcAddr;
	return 0;
}
*/
import "C"

import "unsafe"

//export vkGetInstanceProcAddr
func vkGetInstanceProcAddr(instance unsafe.Pointer, name *C.char) unsafe.Pointer {
	return C.rgpu_vk_lookup(name)
}

//export vkGetDeviceProcAddr
func vkGetDeviceProcAddr(device unsafe.Pointer, name *C.char) unsafe.Pointer {
	return C.rgpu_vk_lookup(name)
}

// vk_icdGetInstanceProcAddr is the loader's actual entry point (the
// "_icd" prefix is what the loader dlsym()s for before ever calling
// vkGetInstanceProcAddr itself) per the Vulkan Loader/ICD interface.
//
//export vk_icdGetInstanceProcAddr
func vk_icdGetInstanceProcAddr(instance unsafe.Pointer, name *C.char) unsafe.Pointer {
	if name != nil && C.GoString(name) == "vkCreateInstance" {
		return C.rgpu_vk_lookup(name)
	}
	return vkGetInstanceProcAddr(instance, name)
}

// vk_icdNegotiateLoaderICDInterfaceVersion negotiates the loader/ICD
// interface version; this shim implements interface version 5 (the
// version at which the loader stopped requiring a GetPhysicalDeviceProcAddr
// export).
//
//export vk_icdNegotiateLoaderICDInterfaceVersion
func vk_icdNegotiateLoaderICDInterfaceVersion(pSupportedVersion *C.uint32_t) C.int {
	if pSupportedVersion == nil {
		return vkErrorInitFailed
	}
	if uint32(*pSupportedVersion) > icdLoaderInterfaceVer {
		*pSupportedVersion = C.uint32_t(icdLoaderInterfaceVer)
	}
	return vkSuccess
}
