package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fill84/RGPU-sub000/internal/gpu"
	"github.com/Fill84/RGPU-sub000/internal/protocol/handle"
	"github.com/Fill84/RGPU-sub000/internal/protocol/vulkan"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

func testVulkanDriver() gpu.VulkanDriver {
	return gpu.NewSimulatedVulkanDriver([]gpu.Info{
		{LocalOrdinal: 0, DeviceName: "sim-0"},
	})
}

// vkBootstrap drives a fresh executor through instance -> physical device ->
// logical device -> queue, returning the handles every other test builds on.
func vkBootstrap(t *testing.T, e *VulkanExecutor) (instance, physicalDevice, device, queue handle.Network) {
	t.Helper()
	ctx := context.Background()

	instRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpCreateInstance,
		Args:   encodeArgs(t, vulkan.CreateInstanceArgs{ApplicationName: "test", ApiVersion: 1<<22 | 3<<12}),
	})
	require.Equal(t, wire.ResultHandle, instRes.Kind)

	pdRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpEnumeratePhysicalDevices,
		Args:   encodeArgs(t, vulkan.EnumeratePhysicalDevicesArgs{Instance: instRes.Handle}),
	})
	require.Equal(t, wire.ResultHandles, pdRes.Kind)
	require.NotEmpty(t, pdRes.Handles)

	devRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpCreateDevice,
		Args:   encodeArgs(t, vulkan.CreateDeviceArgs{PhysicalDevice: pdRes.Handles[0], QueueFamilyIndex: 0}),
	})
	require.Equal(t, wire.ResultHandle, devRes.Kind)

	queueRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpGetDeviceQueue,
		Args:   encodeArgs(t, vulkan.GetDeviceQueueArgs{Device: devRes.Handle, QueueFamilyIndex: 0, QueueIndex: 0}),
	})
	require.Equal(t, wire.ResultHandle, queueRes.Kind)

	return instRes.Handle, pdRes.Handles[0], devRes.Handle, queueRes.Handle
}

func TestVulkanExecute_NoDriverReturnsUnavailable(t *testing.T) {
	e := NewVulkanExecutor(nil)
	res := e.Execute(context.Background(), 1, 7, wire.VulkanCommand{Opcode: vulkan.OpCreateInstance})
	assert.Equal(t, wire.ResultError, res.Kind)
	assert.Equal(t, wire.ErrorKindDriverUnavailable, res.Error.Kind)
}

func TestVulkanExecute_BootstrapChain(t *testing.T) {
	e := NewVulkanExecutor(testVulkanDriver())
	instance, pd, device, queue := vkBootstrap(t, e)
	assert.Equal(t, handle.VkInstance, instance.Type)
	assert.Equal(t, handle.VkPhysicalDevice, pd.Type)
	assert.Equal(t, handle.VkDevice, device.Type)
	assert.Equal(t, handle.VkQueue, queue.Type)
}

func TestVulkanExecute_DestroyInstance_ThenEnumerateFails(t *testing.T) {
	e := NewVulkanExecutor(testVulkanDriver())
	ctx := context.Background()
	instance, _, _, _ := vkBootstrap(t, e)

	destroyRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpDestroyInstance,
		Args:   encodeArgs(t, vulkan.DestroyInstanceArgs{Instance: instance}),
	})
	assert.Equal(t, wire.ResultScalar, destroyRes.Kind)

	again := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpEnumeratePhysicalDevices,
		Args:   encodeArgs(t, vulkan.EnumeratePhysicalDevicesArgs{Instance: instance}),
	})
	assert.Equal(t, wire.ResultError, again.Kind)
	assert.Equal(t, wire.ErrorKindInvalidHandle, again.Error.Kind)
}

func TestVulkanExecute_QueueSubmit_RejectsUnknownFence(t *testing.T) {
	e := NewVulkanExecutor(testVulkanDriver())
	ctx := context.Background()
	_, _, device, queue := vkBootstrap(t, e)

	poolRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpCreateCommandPool,
		Args:   encodeArgs(t, vulkan.CreateCommandPoolArgs{Device: device, QueueFamilyIndex: 0}),
	})
	require.Equal(t, wire.ResultHandle, poolRes.Kind)

	cbRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpAllocateCommandBuffers,
		Args:   encodeArgs(t, vulkan.AllocateCommandBuffersArgs{CommandPool: poolRes.Handle, Count: 1}),
	})
	require.Equal(t, wire.ResultHandles, cbRes.Kind)
	require.Len(t, cbRes.Handles, 1)

	submitRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpQueueSubmit,
		Args: encodeArgs(t, vulkan.QueueSubmitArgs{
			Queue:         queue,
			CommandBuffer: cbRes.Handles[0],
			Fence:         handle.Network{Type: handle.VkFence, ResourceID: 9999},
		}),
	})
	assert.Equal(t, wire.ResultError, submitRes.Kind)
	assert.Equal(t, wire.ErrorKindInvalidHandle, submitRes.Error.Kind)
}

func TestVulkanExecute_QueueSubmit_NoFenceSucceeds(t *testing.T) {
	e := NewVulkanExecutor(testVulkanDriver())
	ctx := context.Background()
	_, _, device, queue := vkBootstrap(t, e)

	poolRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpCreateCommandPool,
		Args:   encodeArgs(t, vulkan.CreateCommandPoolArgs{Device: device, QueueFamilyIndex: 0}),
	})
	cbRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpAllocateCommandBuffers,
		Args:   encodeArgs(t, vulkan.AllocateCommandBuffersArgs{CommandPool: poolRes.Handle, Count: 1}),
	})
	require.Len(t, cbRes.Handles, 1)

	submitRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpQueueSubmit,
		Args:   encodeArgs(t, vulkan.QueueSubmitArgs{Queue: queue, CommandBuffer: cbRes.Handles[0]}),
	})
	assert.Equal(t, wire.ResultScalar, submitRes.Kind)
}

func TestReplayRecordedCommands_RunsBufferedCommandsBetweenBeginEnd(t *testing.T) {
	e := NewVulkanExecutor(testVulkanDriver())
	ctx := context.Background()
	_, _, device, _ := vkBootstrap(t, e)

	poolRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpCreateCommandPool,
		Args:   encodeArgs(t, vulkan.CreateCommandPoolArgs{Device: device, QueueFamilyIndex: 0}),
	})
	cbRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpAllocateCommandBuffers,
		Args:   encodeArgs(t, vulkan.AllocateCommandBuffersArgs{CommandPool: poolRes.Handle, Count: 1}),
	})
	require.Len(t, cbRes.Handles, 1)
	cb := cbRes.Handles[0]

	dispatchCmd := wire.VulkanCommand{
		Opcode: vulkan.OpCmdDispatch,
		Args:   encodeArgs(t, vulkan.CmdDispatchArgs{CommandBuffer: cb, GroupCountX: 4, GroupCountY: 1, GroupCountZ: 1}),
	}

	result := e.ReplayRecordedCommands(ctx, 1, 7, wire.SubmitRecordedCommands{
		CommandBuffer:    cb,
		RecordedCommands: []wire.VulkanCommand{dispatchCmd},
	})
	assert.Equal(t, wire.ResultScalar, result.Kind)
}

func TestReplayRecordedCommands_StopsAtFirstFailingCommand(t *testing.T) {
	e := NewVulkanExecutor(testVulkanDriver())
	ctx := context.Background()
	_, _, device, _ := vkBootstrap(t, e)

	poolRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpCreateCommandPool,
		Args:   encodeArgs(t, vulkan.CreateCommandPoolArgs{Device: device, QueueFamilyIndex: 0}),
	})
	cbRes := e.Execute(ctx, 1, 7, wire.VulkanCommand{
		Opcode: vulkan.OpAllocateCommandBuffers,
		Args:   encodeArgs(t, vulkan.AllocateCommandBuffersArgs{CommandPool: poolRes.Handle, Count: 1}),
	})
	cb := cbRes.Handles[0]

	badBind := wire.VulkanCommand{
		Opcode: vulkan.OpCmdBindPipeline,
		Args:   encodeArgs(t, vulkan.CmdBindPipelineArgs{CommandBuffer: cb, Pipeline: handle.Network{Type: handle.VkPipeline, ResourceID: 404}}),
	}

	result := e.ReplayRecordedCommands(ctx, 1, 7, wire.SubmitRecordedCommands{
		CommandBuffer:    cb,
		RecordedCommands: []wire.VulkanCommand{badBind},
	})
	assert.Equal(t, wire.ResultError, result.Kind)
	assert.Equal(t, wire.ErrorKindInvalidHandle, result.Error.Kind)
}

func TestVulkanCleanupSession_ForgetsSession(t *testing.T) {
	e := NewVulkanExecutor(testVulkanDriver())
	ctx := context.Background()
	vkBootstrap(t, e)

	e.CleanupSession(ctx, 1)
	e.CleanupSession(ctx, 1)

	e.mu.Lock()
	_, tracked := e.sessions[1]
	e.mu.Unlock()
	assert.False(t, tracked)
}
