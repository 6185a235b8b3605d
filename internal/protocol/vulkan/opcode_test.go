package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpcode_String(t *testing.T) {
	assert.Equal(t, "vkCreateInstance", OpCreateInstance.String())
	assert.Equal(t, "vkCmdDispatch", OpCmdDispatch.String())
}

func TestOpcode_IsRecordedCommand(t *testing.T) {
	assert.False(t, OpCreateInstance.IsRecordedCommand())
	assert.False(t, OpQueueSubmit.IsRecordedCommand())
	assert.True(t, OpCmdBindPipeline.IsRecordedCommand())
	assert.True(t, OpCmdPipelineBarrier.IsRecordedCommand())
}

func TestOpcode_IsBroadcast(t *testing.T) {
	assert.True(t, OpCreateInstance.IsBroadcast())
	assert.True(t, OpEnumeratePhysicalDevices.IsBroadcast())
	assert.False(t, OpCreateDevice.IsBroadcast())
	assert.False(t, OpCmdDispatch.IsBroadcast())
}
