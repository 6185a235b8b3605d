package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/gpu"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
)

func TestCleanupCuda_DestroysEveryHandleAndEmptiesSession(t *testing.T) {
	ctx := context.Background()
	driver := gpu.NewSimulatedCudaDriver([]gpu.Info{{LocalOrdinal: 0}})
	s := New(1, 7)

	ctxID, err := driver.CtxCreate(ctx, 0, 0)
	require.NoError(t, err)
	cudaCtx := s.Allocate(handle.CuContext, ctxID)

	streamID, err := driver.StreamCreate(ctx, ctxID, 0)
	require.NoError(t, err)
	s.Allocate(handle.CuStream, streamID)

	modID, err := driver.ModuleLoad(ctx, ctxID, []byte("fake-cubin"))
	require.NoError(t, err)
	s.Allocate(handle.CuModule, modID)

	fnID, err := driver.ModuleGetFunction(ctx, modID, "kernel")
	require.NoError(t, err)
	s.Allocate(handle.CuFunction, fnID)

	_, devicePtr, err := driver.MemAlloc(ctx, ctxID, 1024)
	require.NoError(t, err)
	memHandle := s.Allocate(handle.CuDevicePtr, devicePtr)
	s.AllocateDevicePtr(devicePtr, memHandle)

	_ = cudaCtx

	CleanupCuda(ctx, s, driver)

	assert.True(t, s.IsEmpty(), "every table is empty after cleanup (P3)")
	_, ok := s.ResolveDevicePtr(devicePtr)
	assert.False(t, ok, "the device_ptr secondary index is cleared alongside the handle")
}

func TestCleanupCuda_SkipsMissingLocalIDsWithoutPanicking(t *testing.T) {
	ctx := context.Background()
	driver := gpu.NewSimulatedCudaDriver([]gpu.Info{{LocalOrdinal: 0}})
	s := New(1, 7)

	// a context handle whose local id the simulated driver never created:
	// the simulated CtxDestroy ignores unknown ids, so this checks that
	// cleanup runs without panicking and still removes the handle.
	s.Allocate(handle.CuContext, 999999)

	assert.NotPanics(t, func() { CleanupCuda(ctx, s, driver) })
	assert.Equal(t, 0, s.Count(handle.CuContext))
}

func TestCleanupVulkan_DestroysEveryHandleAndEmptiesSession(t *testing.T) {
	ctx := context.Background()
	driver := gpu.NewSimulatedVulkanDriver([]gpu.Info{{LocalOrdinal: 0}})
	s := New(1, 7)

	instID, err := driver.CreateInstance(ctx, "test", 0)
	require.NoError(t, err)
	s.Allocate(handle.VkInstance, instID)

	pdIDs, err := driver.EnumeratePhysicalDevices(ctx, instID)
	require.NoError(t, err)
	require.NotEmpty(t, pdIDs)
	s.Allocate(handle.VkPhysicalDevice, pdIDs[0])

	devID, err := driver.CreateDevice(ctx, pdIDs[0], 0)
	require.NoError(t, err)
	s.Allocate(handle.VkDevice, devID)

	queueID, err := driver.GetDeviceQueue(ctx, devID, 0, 0)
	require.NoError(t, err)
	s.Allocate(handle.VkQueue, queueID)

	bufID, err := driver.CreateBuffer(ctx, devID, 256, 0)
	require.NoError(t, err)
	s.Allocate(handle.VkBuffer, bufID)

	CleanupVulkan(ctx, s, driver)

	assert.True(t, s.IsEmpty())
}

func TestCleanupVulkan_QueueAndPhysicalDeviceAreTrackingOnly(t *testing.T) {
	ctx := context.Background()
	driver := gpu.NewSimulatedVulkanDriver([]gpu.Info{{LocalOrdinal: 0}})
	s := New(1, 7)

	// register handles of kinds the Vulkan API has no independent destroy
	// call for; cleanup must still drop them from the table.
	s.Allocate(handle.VkQueue, 1)
	s.Allocate(handle.VkPhysicalDevice, 2)

	CleanupVulkan(ctx, s, driver)

	assert.Equal(t, 0, s.Count(handle.VkQueue))
	assert.Equal(t, 0, s.Count(handle.VkPhysicalDevice))
}
