package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/protocol/cuda"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/protocol/vulkan"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

func TestExtractCuda_CreationAndGlobalOpsRouteByNone(t *testing.T) {
	assert.Equal(t, None, ExtractCuda(cuda.OpDeviceGetCount, &cuda.DeviceGetCountArgs{}).Kind)
	assert.Equal(t, None, ExtractCuda(cuda.OpCtxCreate, &cuda.CtxCreateArgs{}).Kind)
}

func TestExtractCuda_HandleBearingOpsRouteByHandle(t *testing.T) {
	h := handle.Network{ServerID: 3, Type: handle.CuContext, ResourceID: 1}
	r := ExtractCuda(cuda.OpCtxDestroy, &cuda.CtxDestroyArgs{Context: h})
	assert.Equal(t, ByHandle, r.Kind)
	assert.Equal(t, h, r.Handle)
}

func TestExtractCuda_MemFreeRoutesByDevicePtr(t *testing.T) {
	r := ExtractCuda(cuda.OpMemFree, &cuda.MemFreeArgs{DevicePtr: 0xcafe})
	assert.Equal(t, ByDevicePtr, r.Kind)
	assert.Equal(t, uint64(0xcafe), r.DevicePtr)
}

func TestExtractCuda_HostFreeRoutesByHostPtr(t *testing.T) {
	r := ExtractCuda(cuda.OpHostFree, &cuda.HostFreeArgs{HostPtr: 0xf00d})
	assert.Equal(t, ByHostPtr, r.Kind)
	assert.Equal(t, uint64(0xf00d), r.HostPtr)
}

func TestExtractCuda_MemcpyDtoD_RoutesBySrcPointer(t *testing.T) {
	r := ExtractCuda(cuda.OpMemcpyDtoD, &cuda.MemcpyDtoDArgs{SrcDevicePtr: 0x10, DstDevicePtr: 0x20})
	assert.Equal(t, ByDevicePtr, r.Kind)
	assert.Equal(t, uint64(0x10), r.DevicePtr)
}

func TestExtractVulkan_CreateInstanceAndEnumerateAreGlobal(t *testing.T) {
	assert.Equal(t, None, ExtractVulkan(vulkan.OpCreateInstance, &vulkan.CreateInstanceArgs{}).Kind)
	assert.Equal(t, None, ExtractVulkan(vulkan.OpEnumeratePhysicalDevices, &vulkan.EnumeratePhysicalDevicesArgs{}).Kind)
}

func TestExtractVulkan_QueueSubmitRoutesByCommandBuffer(t *testing.T) {
	h := handle.Network{ServerID: 2, Type: handle.VkCommandBuffer, ResourceID: 9}
	r := ExtractVulkan(vulkan.OpQueueSubmit, &vulkan.QueueSubmitArgs{CommandBuffer: h})
	assert.Equal(t, ByHandle, r.Kind)
	assert.Equal(t, h, r.Handle)
}

func TestFromCudaCommand_DecodesBodyThenRoutes(t *testing.T) {
	h := handle.Network{ServerID: 4, Type: handle.CuStream, ResourceID: 7}
	body, err := wire.EncodeBody(cuda.StreamDestroyArgs{Stream: h})
	require.NoError(t, err)

	routing, err := FromCudaCommand(wire.CudaCommand{Opcode: cuda.OpStreamDestroy, Args: body})
	require.NoError(t, err)
	assert.Equal(t, ByHandle, routing.Kind)
	assert.Equal(t, h, routing.Handle)
}

func TestFromCudaCommand_PropagatesDecodeError(t *testing.T) {
	_, err := FromCudaCommand(wire.CudaCommand{Opcode: cuda.OpCtxDestroy, Args: []byte{0x01}})
	assert.Error(t, err)
}

func TestFromVulkanCommand_DecodesBodyThenRoutes(t *testing.T) {
	h := handle.Network{ServerID: 5, Type: handle.VkBuffer, ResourceID: 3}
	body, err := wire.EncodeBody(vulkan.DestroyBufferArgs{Buffer: h})
	require.NoError(t, err)

	routing, err := FromVulkanCommand(wire.VulkanCommand{Opcode: vulkan.OpDestroyBuffer, Args: body})
	require.NoError(t, err)
	assert.Equal(t, ByHandle, routing.Kind)
	assert.Equal(t, h, routing.Handle)
}

func TestFromVulkanCommand_UnknownOpcodeFallsBackToNone(t *testing.T) {
	body, err := wire.EncodeBody(vulkan.CreateInstanceArgs{})
	require.NoError(t, err)
	routing, err := FromVulkanCommand(wire.VulkanCommand{Opcode: vulkan.Opcode(250), Args: body})
	require.NoError(t, err)
	assert.Equal(t, None, routing.Kind)
}
