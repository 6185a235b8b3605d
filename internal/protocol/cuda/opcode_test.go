package cuda

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpcode_String(t *testing.T) {
	assert.Equal(t, "cuDeviceGetCount", OpDeviceGetCount.String())
	assert.Equal(t, "cuLaunchKernel", OpLaunchKernel.String())
}

func TestOpcode_StringOfUnknownValue(t *testing.T) {
	var unknown Opcode = 0
	assert.Contains(t, unknown.String(), "cuda.Opcode")
}

func TestOpcode_IsCreation(t *testing.T) {
	assert.True(t, OpDeviceGetCount.IsCreation())
	assert.True(t, OpCtxCreate.IsCreation())
	assert.False(t, OpMemAlloc.IsCreation())
	assert.False(t, OpLaunchKernel.IsCreation())
}
